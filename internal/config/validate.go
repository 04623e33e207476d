package config

import (
	"errors"
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// ErrInvalidConfig is returned for run configurations that cannot be simulated.
var ErrInvalidConfig = errors.New("invalid run config")

// ValidateRun checks a run configuration. Every violation is reported.
func ValidateRun(cfg domain.RunConfig) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if cfg.RunName == "" {
		fail("run_name is required")
	}
	if cfg.Classes != 2 && cfg.Classes != 3 {
		fail("classes must be 2 or 3, got %d", cfg.Classes)
	}
	if cfg.Timeframe < 1 {
		fail("timeframe must be >= 1, got %d", cfg.Timeframe)
	}
	if cfg.WindowLength < 1 {
		fail("window_length must be >= 1, got %d", cfg.WindowLength)
	}

	p := cfg.Params
	if p.TradeFee < 0 || p.TradeFee >= 1 {
		fail("trade_fee must be in [0, 1), got %v", p.TradeFee)
	}
	if p.InitialCapital <= 0 {
		fail("initial_capital must be > 0, got %v", p.InitialCapital)
	}
	if p.MaxPositionCapital <= 0 {
		fail("max_position_capital must be > 0, got %v", p.MaxPositionCapital)
	}
	if p.TP != nil && *p.TP <= 0 {
		fail("tp must be > 0 when set, got %v", *p.TP)
	}
	if p.SL != nil && *p.SL <= 0 {
		fail("sl must be > 0 when set, got %v", *p.SL)
	}
	if p.TTL != nil && *p.TTL <= 0 {
		fail("ttl must be > 0 when set, got %d", *p.TTL)
	}
	switch p.BuyWhileOpen {
	case "", domain.OpenSignalClose, domain.OpenSignalExitChecks:
	default:
		fail("buy_while_open must be %q or %q, got %q", domain.OpenSignalClose, domain.OpenSignalExitChecks, p.BuyWhileOpen)
	}

	return errors.Join(errs...)
}
