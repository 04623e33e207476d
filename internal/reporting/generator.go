package reporting

import (
	"context"
	"fmt"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// Generator builds comparison reports from persisted runs.
type Generator struct {
	runStore   storage.RunStore
	tradeStore storage.TradeRecordStore
	now        func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore, tradeStore storage.TradeRecordStore) *Generator {
	return &Generator{
		runStore:   runStore,
		tradeStore: tradeStore,
		now:        time.Now,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over every stored run carrying one of names,
// grouped by name in argument order.
func (g *Generator) Generate(ctx context.Context, title string, names ...string) (*Report, error) {
	var rows []RunRow
	for _, name := range names {
		records, err := g.runStore.GetByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load runs %s: %w", name, err)
		}
		for _, rec := range records {
			trades, err := g.tradeStore.GetByRunID(ctx, rec.RunID)
			if err != nil {
				return nil, fmt.Errorf("load trades of %s: %w", rec.RunID, err)
			}
			row := rowOf(rec)
			row.StoredRows = len(trades)
			rows = append(rows, row)
		}
	}

	return NewReport(title, rows, g.now()), nil
}

// NewReport assembles a report from rows, in the given order.
func NewReport(title string, rows []RunRow, at time.Time) *Report {
	r := &Report{
		GeneratedAt: at.UTC(),
		Title:       title,
		Runs:        rows,
	}
	for i := range rows {
		if r.Best == nil || rows[i].EndCapital > r.Best.EndCapital {
			r.Best = &rows[i]
		}
	}
	return r
}

// RowsOf converts run records to report rows.
func RowsOf(records []*domain.RunRecord) []RunRow {
	rows := make([]RunRow, len(records))
	for i, rec := range records {
		rows[i] = rowOf(rec)
	}
	return rows
}

func rowOf(rec *domain.RunRecord) RunRow {
	s := RoundSummary(rec.Summary)
	p := rec.Config.Params
	return RunRow{
		RunID:      rec.RunID,
		RunName:    rec.RunName,
		TP:         p.TP,
		SL:         p.SL,
		TTL:        p.TTL,
		EndCapital: s.FinalCapital,
		Trades:     s.TradeCount,
		WinRate:    s.WinRate,
		TPHit:      s.TPHitShare,
		SLHit:      s.SLHitShare,
		TTLHit:     s.TTLHitShare,
		RiskReward: s.RiskReward,
		StoredRows: s.TradeCount,
	}
}
