package domain

// Label is a model decision resolved from a class value.
type Label string

// Decision labels.
const (
	LabelBuy  Label = "buy"
	LabelHold Label = "hold"
	LabelSell Label = "sell"
)
