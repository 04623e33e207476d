package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name        string
		runName     string
		entryTimeMs int64
		wantLen     int // hash length should be 64
	}{
		{
			name:        "single run",
			runName:     "nn_backtest_60_timeframe_30_window",
			entryTimeMs: 1704067200000,
			wantLen:     64,
		},
		{
			name:        "sweep scenario",
			runName:     "tunning_strategy_17",
			entryTimeMs: 1704070800000,
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.runName, tt.entryTimeMs)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			got2 := ComputeTradeID(tt.runName, tt.entryTimeMs)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("run", 1000)

	if base == ComputeTradeID("other_run", 1000) {
		t.Error("Different run name should produce different hash")
	}

	if base == ComputeTradeID("run", 2000) {
		t.Error("Different entry time should produce different hash")
	}
}

func TestComputeTradeID_NoSeparatorCollision(t *testing.T) {
	// "run1" + "|" + "23" must differ from "run" + "|" + "123"
	if ComputeTradeID("run1", 23) == ComputeTradeID("run", 123) {
		t.Error("Concatenation without separator collision")
	}
}
