package domain

import "time"

// OpenSignalPolicy decides what a buy signal does while a position is open.
type OpenSignalPolicy string

// Open signal policies.
const (
	// OpenSignalClose closes the open position with reason ml_model.
	OpenSignalClose OpenSignalPolicy = "close"
	// OpenSignalExitChecks only runs the TP/SL/TTL checks.
	OpenSignalExitChecks OpenSignalPolicy = "exit_checks"
)

// RunParams holds trading parameters of a single backtest run.
type RunParams struct {
	TP                 *float64         `json:"tp"`
	SL                 *float64         `json:"sl"`
	TTL                *int             `json:"ttl"` // minutes
	TradeFee           float64          `json:"trade_fee"`
	InitialCapital     float64          `json:"initial_capital"`
	MaxPositionCapital float64          `json:"max_position_capital"`
	BuyWhileOpen       OpenSignalPolicy `json:"buy_while_open,omitempty"`
}

// DatasetPaths locates the inputs of a run on disk.
type DatasetPaths struct {
	Dataset      string `json:"dataset"`       // raw rows, open_time column
	MinutePrices string `json:"minute_prices"` // open_time,close per minute
	Predictions  string `json:"predictions"`   // one class label per decision row
	Symbol       string `json:"symbol,omitempty"`
}

// RunConfig is the resolved configuration of one backtest run.
type RunConfig struct {
	RunName        string       `json:"run_name"`
	Model          string       `json:"model"`
	Classes        int          `json:"classes"`
	Timeframe      int          `json:"timeframe"`     // minutes per decision
	WindowLength   int          `json:"window_length"` // rows consumed by feature construction
	Params         RunParams    `json:"params"`
	LogToStdout    bool         `json:"log_to_stdout"`
	LogToTelemetry bool         `json:"log_to_telemetry"`
	Data           DatasetPaths `json:"data"`
}

// Summary holds aggregate statistics of the closed trades of one run.
// Pointer fields are nil when the metric is undefined (empty subset).
type Summary struct {
	FinalCapital float64 `json:"end_capital"`
	TradeCount   int     `json:"number_of_trades"`
	Wins         int     `json:"winning_trades"`
	Losses       int     `json:"losing_trades"`

	WinRate             *float64 `json:"win_%"`
	MeanProfit          *float64 `json:"mean_profit"`
	MeanLoss            *float64 `json:"mean_loss"`
	ProfitLossMeanRatio *float64 `json:"profit_loss_mean_ratio"`

	ModelEndShare *float64 `json:"model_end_trade_%"`
	TPHitShare    *float64 `json:"tp_hit_%"`
	SLHitShare    *float64 `json:"sl_hit_%"`
	TTLHitShare   *float64 `json:"ttl_hit_%"`

	AvgTradeMinutes *int64 `json:"avg_trade_len"`

	TotalFees        float64 `json:"total_fees_usd"`
	TotalWin         float64 `json:"total_win_usd"`
	TotalLossAndFees float64 `json:"total_loss_and_fees_usd"`

	MaxDrawdown                   *float64 `json:"max_drawdown"`
	MaxDrawdownWinningTrade       *float64 `json:"max_drawdown_winning_trade"`
	HighestPossibleWin            *float64 `json:"highest_possible_win"`
	HighestPossibleWinLosingTrade *float64 `json:"highest_possible_win_losing_trade"`

	RiskReward *float64 `json:"R_R"`

	RunTimeSeconds float64 `json:"run_time"`

	// Undefined names the metrics left nil, with the reason.
	Undefined map[string]string `json:"undefined,omitempty"`
}

// RunRecord is the persisted outcome of a run: resolved config plus summary.
type RunRecord struct {
	RunID     string
	RunName   string
	Config    RunConfig
	Summary   Summary
	Duration  time.Duration
	CreatedAt time.Time
}
