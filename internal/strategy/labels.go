package strategy

import (
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// ResolveLabel maps a raw class value to a decision label.
// Binary models: 0 buy, 1 sell. Ternary models: 0 buy, 1 hold, 2 sell.
func ResolveLabel(classes, class int) (domain.Label, error) {
	switch classes {
	case 2:
		switch class {
		case 0:
			return domain.LabelBuy, nil
		case 1:
			return domain.LabelSell, nil
		}
	case 3:
		switch class {
		case 0:
			return domain.LabelBuy, nil
		case 1:
			return domain.LabelHold, nil
		case 2:
			return domain.LabelSell, nil
		}
	default:
		return "", fmt.Errorf("%w: got %d", ErrUnsupportedClasses, classes)
	}
	return "", fmt.Errorf("%w: %d for %d-class model", ErrUnknownLabel, class, classes)
}
