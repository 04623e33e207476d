package reporting

import (
	"github.com/shopspring/decimal"

	"signal-backtest-lab/internal/domain"
)

// Decimal places of exported results.
const (
	CapitalPlaces = 2
	RatioPlaces   = 4
)

// Round rounds v to places decimals, ties to even.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}

func roundPtr(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v, places)
	return &r
}

// RoundSummary returns a copy of s rounded for export: capital to 2 places,
// ratios and currency totals to 4. Drawdown and win extremes are kept as is.
func RoundSummary(s domain.Summary) domain.Summary {
	out := s
	out.FinalCapital = Round(s.FinalCapital, CapitalPlaces)
	out.WinRate = roundPtr(s.WinRate, RatioPlaces)
	out.MeanProfit = roundPtr(s.MeanProfit, RatioPlaces)
	out.MeanLoss = roundPtr(s.MeanLoss, RatioPlaces)
	out.ProfitLossMeanRatio = roundPtr(s.ProfitLossMeanRatio, RatioPlaces)
	out.ModelEndShare = roundPtr(s.ModelEndShare, RatioPlaces)
	out.TPHitShare = roundPtr(s.TPHitShare, RatioPlaces)
	out.SLHitShare = roundPtr(s.SLHitShare, RatioPlaces)
	out.TTLHitShare = roundPtr(s.TTLHitShare, RatioPlaces)
	out.TotalFees = Round(s.TotalFees, RatioPlaces)
	out.TotalWin = Round(s.TotalWin, RatioPlaces)
	out.TotalLossAndFees = Round(s.TotalLossAndFees, RatioPlaces)
	out.RiskReward = roundPtr(s.RiskReward, RatioPlaces)
	return out
}
