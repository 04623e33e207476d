package reporting

import (
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// LatexRow renders a run as one row of the results table: model, timeframe
// and window; tp, sl and ttl; end capital; win, mean loss and mean profit
// percentages; tp, sl and ttl hit percentages. Undefined values print as "-".
func LatexRow(cfg domain.RunConfig, s domain.Summary) string {
	p := cfg.Params
	return fmt.Sprintf("& %s \\newline %d \\newline %d & %s \\newline %s \\newline %s & %s & %s & %s & %s & %s & %s & %s \\\\",
		cfg.Model, cfg.Timeframe, cfg.WindowLength,
		latexOptF(p.TP), latexOptF(p.SL), latexOptI(p.TTL),
		formatF(Round(s.FinalCapital, CapitalPlaces)),
		percent(s.WinRate),
		percent(s.MeanLoss),
		percent(s.MeanProfit),
		percent(s.TPHitShare),
		percent(s.SLHitShare),
		percent(s.TTLHitShare),
	)
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatF(Round(*v*100, 2))
}

func latexOptF(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatF(*v)
}

func latexOptI(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
