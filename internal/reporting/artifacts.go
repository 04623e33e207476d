package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"signal-backtest-lab/internal/domain"
)

// RunDocument is the exported form of a run: resolved config and rounded results.
type RunDocument struct {
	RunID   string           `json:"run_id"`
	Config  domain.RunConfig `json:"config"`
	Results domain.Summary   `json:"results"`
}

// NewRunDocument builds the export document of rec.
func NewRunDocument(rec *domain.RunRecord) RunDocument {
	return RunDocument{
		RunID:   rec.RunID,
		Config:  rec.Config,
		Results: RoundSummary(rec.Summary),
	}
}

// RenderRunJSON renders rec as indented JSON.
func RenderRunJSON(rec *domain.RunRecord) ([]byte, error) {
	data, err := json.MarshalIndent(NewRunDocument(rec), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal run %s: %w", rec.RunName, err)
	}
	return append(data, '\n'), nil
}

// RunArtifacts lists the files written for one run.
type RunArtifacts struct {
	ConfigPath string
	TradesPath string
}

// WriteRunArtifacts writes <dir>/<run>_cfg.json and <dir>/<run>_trades.csv.
func WriteRunArtifacts(dir string, rec *domain.RunRecord, trades []*domain.TradeRecord) (*RunArtifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	doc, err := RenderRunJSON(rec)
	if err != nil {
		return nil, err
	}

	out := &RunArtifacts{
		ConfigPath: filepath.Join(dir, rec.RunName+"_cfg.json"),
		TradesPath: filepath.Join(dir, rec.RunName+"_trades.csv"),
	}
	if err := os.WriteFile(out.ConfigPath, doc, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out.ConfigPath, err)
	}
	if err := os.WriteFile(out.TradesPath, []byte(RenderTradesCSV(trades)), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out.TradesPath, err)
	}
	return out, nil
}

// WriteSweep writes the sweep results of records into dir and returns the path.
func WriteSweep(dir string, base domain.RunConfig, records []*domain.RunRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, SweepFileName(len(records), base.Model, base.Timeframe, base.WindowLength))
	if err := os.WriteFile(path, []byte(RenderSweepCSV(records)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
