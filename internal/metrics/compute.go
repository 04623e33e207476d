package metrics

import (
	"errors"
	"math"

	"signal-backtest-lab/internal/domain"
)

// SummaryParams carries the run parameters the summary depends on.
type SummaryParams struct {
	InitialCapital float64
	TP             *float64
	SL             *float64
}

// Summary metric names, as exported.
const (
	MetricWinRate                       = "win_%"
	MetricMeanProfit                    = "mean_profit"
	MetricMeanLoss                      = "mean_loss"
	MetricProfitLossMeanRatio           = "profit_loss_mean_ratio"
	MetricModelEndShare                 = "model_end_trade_%"
	MetricTPHitShare                    = "tp_hit_%"
	MetricSLHitShare                    = "sl_hit_%"
	MetricTTLHitShare                   = "ttl_hit_%"
	MetricAvgTradeLen                   = "avg_trade_len"
	MetricMaxDrawdown                   = "max_drawdown"
	MetricMaxDrawdownWinningTrade       = "max_drawdown_winning_trade"
	MetricHighestPossibleWin            = "highest_possible_win"
	MetricHighestPossibleWinLosingTrade = "highest_possible_win_losing_trade"
	MetricRiskReward                    = "R_R"
)

// Summarize reduces closed trades, in closing order, to a run summary.
//
// Metrics over an empty subset are left nil and listed in Summary.Undefined.
// The returned error joins one *UndefinedMetricError per such metric; the
// summary is returned in every case.
func Summarize(trades []*domain.TradeRecord, params SummaryParams) (*domain.Summary, error) {
	s := &domain.Summary{
		FinalCapital: params.InitialCapital,
		TradeCount:   len(trades),
	}
	u := &undefined{}

	var (
		winPcts, lossPcts         []float64
		winDrawdowns, lossHighest []float64
		drawdowns, highest        []float64
		durations                 []float64
		byReason                  = make(map[domain.EndReason]int, len(domain.EndReasons))
	)

	for _, t := range trades {
		s.FinalCapital += t.Profit
		s.TotalFees += t.TotalFee
		byReason[t.EndReason]++
		drawdowns = append(drawdowns, t.MaxDrawdown)
		highest = append(highest, t.HighestPossibleWin)
		durations = append(durations, float64(t.DurationMinutes))

		if t.IsWin() {
			s.Wins++
			s.TotalWin += t.Profit
			winPcts = append(winPcts, t.ProfitPercentage)
			winDrawdowns = append(winDrawdowns, t.MaxDrawdown)
		} else {
			s.Losses++
			s.TotalLossAndFees += t.Profit
			lossPcts = append(lossPcts, t.ProfitPercentage)
			lossHighest = append(lossHighest, t.HighestPossibleWin)
		}
	}

	n := len(trades)
	if n == 0 {
		for _, m := range []string{
			MetricWinRate, MetricModelEndShare, MetricTPHitShare, MetricSLHitShare,
			MetricTTLHitShare, MetricAvgTradeLen, MetricMaxDrawdown, MetricHighestPossibleWin,
		} {
			u.add(m, ErrNoTrades)
		}
	} else {
		s.WinRate = ratio(s.Wins, n)
		s.ModelEndShare = ratio(byReason[domain.EndReasonModel], n)
		s.TPHitShare = ratio(byReason[domain.EndReasonTP], n)
		s.SLHitShare = ratio(byReason[domain.EndReasonSL], n)
		s.TTLHitShare = ratio(byReason[domain.EndReasonTTL], n)
		avg := int64(computeMean(durations))
		s.AvgTradeMinutes = &avg
		s.MaxDrawdown = ptr(computeMax(drawdowns))
		s.HighestPossibleWin = ptr(computeMax(highest))
	}

	if len(winPcts) == 0 {
		u.add(MetricMeanProfit, ErrNoWinningTrades)
		u.add(MetricMaxDrawdownWinningTrade, ErrNoWinningTrades)
	} else {
		s.MeanProfit = ptr(computeMean(winPcts))
		s.MaxDrawdownWinningTrade = ptr(computeMax(winDrawdowns))
	}

	if len(lossPcts) == 0 {
		u.add(MetricMeanLoss, ErrNoLosingTrades)
		u.add(MetricHighestPossibleWinLosingTrade, ErrNoLosingTrades)
	} else {
		s.MeanLoss = ptr(computeMean(lossPcts))
		s.HighestPossibleWinLosingTrade = ptr(computeMax(lossHighest))
	}

	switch {
	case s.MeanProfit == nil:
		u.add(MetricProfitLossMeanRatio, ErrNoWinningTrades)
	case s.MeanLoss == nil:
		u.add(MetricProfitLossMeanRatio, ErrNoLosingTrades)
	case *s.MeanLoss == 0:
		u.add(MetricProfitLossMeanRatio, ErrZeroDenominator)
	default:
		s.ProfitLossMeanRatio = ptr(math.Abs(*s.MeanProfit / *s.MeanLoss))
	}

	// R_R is simply absent when either threshold is not configured.
	if params.TP != nil && params.SL != nil {
		if *params.SL == 0 {
			u.add(MetricRiskReward, ErrZeroDenominator)
		} else {
			s.RiskReward = ptr(*params.TP / *params.SL)
		}
	}

	if len(u.errs) > 0 {
		s.Undefined = u.reasons
	}
	return s, u.err()
}

type undefined struct {
	errs    []error
	reasons map[string]string
}

func (u *undefined) add(metric string, err error) {
	if u.reasons == nil {
		u.reasons = make(map[string]string)
	}
	u.reasons[metric] = err.Error()
	u.errs = append(u.errs, &UndefinedMetricError{Metric: metric, Err: err})
}

func (u *undefined) err() error {
	return errors.Join(u.errs...)
}

func ratio(count, total int) *float64 {
	return ptr(float64(count) / float64(total))
}

func ptr(v float64) *float64 {
	return &v
}

// computeMean calculates arithmetic mean. values must be non-empty.
func computeMean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeMax returns the largest value. values must be non-empty.
func computeMax(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
