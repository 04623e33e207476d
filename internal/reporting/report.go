package reporting

import "time"

// Report compares runs sharing a name prefix.
type Report struct {
	GeneratedAt time.Time
	Title       string
	Runs        []RunRow
	Best        *RunRow // highest end capital, nil when Runs is empty
}

// RunRow is one run in a Report.
type RunRow struct {
	RunID      string
	RunName    string
	TP         *float64
	SL         *float64
	TTL        *int
	EndCapital float64
	Trades     int
	WinRate    *float64
	TPHit      *float64
	SLHit      *float64
	TTLHit     *float64
	RiskReward *float64
	StoredRows int // trade rows found in storage
}
