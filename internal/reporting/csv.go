package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"signal-backtest-lab/internal/domain"
)

// TradeColumns is the header of the trades export.
var TradeColumns = []string{
	"trade_id", "run_id", "before_trade_capital", "position_capital", "entry_price", "start_time",
	"size", "buy_fee", "fee_percentage", "tp", "sl", "ttl", "sell_price", "sell_fee", "end_time",
	"end_reason", "trade_duration", "total_fee", "profit", "profit_percentage", "price_change",
	"max_drawdown", "highest_possible_win", "trade_verdict", "lowest_price", "highest_price",
}

// RenderTradesCSV renders closed trades as CSV string, one row per trade.
func RenderTradesCSV(trades []*domain.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString(strings.Join(TradeColumns, ","))
	sb.WriteString("\n")

	for _, t := range trades {
		endTime := ""
		if t.EndTime != nil {
			endTime = t.EndTime.UTC().Format(time.RFC3339)
		}
		fields := []string{
			t.TradeID,
			t.RunID,
			formatF(t.BeforeTradeCapital),
			formatF(t.PositionCapital),
			formatF(t.EntryPrice),
			t.EntryTime.UTC().Format(time.RFC3339),
			formatF(t.Size),
			formatF(t.BuyFee),
			formatF(t.FeeRate),
			formatOptF(t.TP),
			formatOptF(t.SL),
			formatOptI(t.TTL),
			formatF(t.SellPrice),
			formatF(t.SellFee),
			endTime,
			string(t.EndReason),
			strconv.FormatInt(t.DurationMinutes, 10),
			formatF(t.TotalFee),
			formatF(t.Profit),
			formatF(t.ProfitPercentage),
			formatF(t.PriceChange),
			formatF(t.MaxDrawdown),
			formatF(t.HighestPossibleWin),
			t.Verdict,
			formatF(t.LowestPrice),
			formatF(t.HighestPrice),
		}
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteString("\n")
	}

	return sb.String()
}

// SweepColumns is the header of the sweep export.
var SweepColumns = []string{
	"run_name", "tp", "sl", "ttl", "end_capital", "number_of_trades", "winning_trades",
	"losing_trades", "win_%", "profit_loss_mean_ratio", "mean_loss", "mean_profit",
	"model_end_trade_%", "tp_hit_%", "sl_hit_%", "ttl_hit_%", "avg_trade_len", "total_fees_usd",
	"total_win_usd", "total_loss_and_fees_usd", "run_time", "max_drawdown",
	"max_drawdown_winning_trade", "highest_possible_win", "highest_possible_win_losing_trade", "R_R",
}

// RenderSweepCSV renders one rounded result row per run, in the given order.
func RenderSweepCSV(records []*domain.RunRecord) string {
	var sb strings.Builder

	sb.WriteString(strings.Join(SweepColumns, ","))
	sb.WriteString("\n")

	for _, r := range records {
		p := r.Config.Params
		s := RoundSummary(r.Summary)
		avgLen := ""
		if s.AvgTradeMinutes != nil {
			avgLen = strconv.FormatInt(*s.AvgTradeMinutes, 10)
		}
		fields := []string{
			r.RunName,
			formatOptF(p.TP),
			formatOptF(p.SL),
			formatOptI(p.TTL),
			formatF(s.FinalCapital),
			strconv.Itoa(s.TradeCount),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Losses),
			formatOptF(s.WinRate),
			formatOptF(s.ProfitLossMeanRatio),
			formatOptF(s.MeanLoss),
			formatOptF(s.MeanProfit),
			formatOptF(s.ModelEndShare),
			formatOptF(s.TPHitShare),
			formatOptF(s.SLHitShare),
			formatOptF(s.TTLHitShare),
			avgLen,
			formatF(s.TotalFees),
			formatF(s.TotalWin),
			formatF(s.TotalLossAndFees),
			formatF(s.RunTimeSeconds),
			formatOptF(s.MaxDrawdown),
			formatOptF(s.MaxDrawdownWinningTrade),
			formatOptF(s.HighestPossibleWin),
			formatOptF(s.HighestPossibleWinLosingTrade),
			formatOptF(s.RiskReward),
		}
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteString("\n")
	}

	return sb.String()
}

// SweepFileName names the sweep export after its size and model settings.
func SweepFileName(scenarios int, model string, timeframe, window int) string {
	return fmt.Sprintf("tuning_%d_scenarios_%s_%d_timeframe_%d_window.csv", scenarios, model, timeframe, window)
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatOptF(f *float64) string {
	if f == nil {
		return ""
	}
	return formatF(*f)
}

func formatOptI(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
