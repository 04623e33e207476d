package memory

import (
	"context"
	"fmt"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// RunWriter stores a run and its trades under both store locks, so readers
// never see a run without its trades.
type RunWriter struct {
	runs   *RunStore
	trades *TradeRecordStore
}

// NewRunWriter creates a writer over the given stores.
func NewRunWriter(runs *RunStore, trades *TradeRecordStore) *RunWriter {
	return &RunWriter{runs: runs, trades: trades}
}

// InsertRun implements storage.RunWriter.
func (w *RunWriter) InsertRun(_ context.Context, r *domain.RunRecord, trades []*domain.TradeRecord) error {
	if r == nil || r.RunID == "" || r.RunName == "" {
		return storage.ErrInvalidInput
	}
	for _, t := range trades {
		if t != nil && t.RunID != r.RunID {
			return fmt.Errorf("%w: trade %s belongs to run %s, not %s", storage.ErrInvalidInput, t.TradeID, t.RunID, r.RunID)
		}
	}

	w.runs.mu.Lock()
	defer w.runs.mu.Unlock()
	w.trades.mu.Lock()
	defer w.trades.mu.Unlock()

	if _, exists := w.runs.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	if err := w.trades.checkLocked(trades); err != nil {
		return err
	}

	copy := *r
	w.runs.data[r.RunID] = &copy
	w.trades.putLocked(trades)
	return nil
}

var _ storage.RunWriter = (*RunWriter)(nil)
