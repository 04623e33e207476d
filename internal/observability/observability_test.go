package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		wantErr bool
	}{
		{level: "", enabled: zapcore.InfoLevel},
		{level: "debug", enabled: zapcore.DebugLevel},
		{level: "WARN", enabled: zapcore.WarnLevel},
		{level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		logger, err := NewLogger(tt.level)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewLogger(%q): expected error", tt.level)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", tt.level, err)
		}
		if !logger.Core().Enabled(tt.enabled) {
			t.Errorf("NewLogger(%q): level %s not enabled", tt.level, tt.enabled)
		}
		if tt.enabled > zapcore.DebugLevel && logger.Core().Enabled(tt.enabled-1) {
			t.Errorf("NewLogger(%q): level %s should be disabled", tt.level, tt.enabled-1)
		}
	}
}

func TestNewMux(t *testing.T) {
	RecordRun("ok", 0.5)

	srv := httptest.NewServer(NewMux(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("/health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "signal_backtest_run_runs_total") {
		t.Errorf("/metrics missing run counter")
	}
}

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.TradesClosed.WithLabelValues("tp_hit").Inc()
	m.TradesClosed.WithLabelValues("tp_hit").Inc()
	m.DBQueryErrors.WithLabelValues("postgres", "insert_run").Inc()

	if got := testutil.ToFloat64(m.TradesClosed.WithLabelValues("tp_hit")); got != 2 {
		t.Errorf("trades_closed_total{tp_hit} = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(reg, "test_db_query_errors_total"); got != 1 {
		t.Errorf("db_query_errors_total series = %d, want 1", got)
	}
}

func TestRecordTelemetry(t *testing.T) {
	published := testutil.ToFloat64(DefaultMetrics.TelemetryPublished)
	failed := testutil.ToFloat64(DefaultMetrics.TelemetryFailed)

	RecordTelemetry(nil)
	RecordTelemetry(errors.New("broker down"))

	if got := testutil.ToFloat64(DefaultMetrics.TelemetryPublished); got != published+1 {
		t.Errorf("published = %v, want %v", got, published+1)
	}
	if got := testutil.ToFloat64(DefaultMetrics.TelemetryFailed); got != failed+1 {
		t.Errorf("failed = %v, want %v", got, failed+1)
	}
}
