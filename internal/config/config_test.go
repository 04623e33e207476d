package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/domain"
)

const validRun = `{
	"run_name": "nn_backtest_60_timeframe_30_window",
	"model": "NN",
	"classes": 2,
	"timeframe": 60,
	"window_length": 30,
	"params": {"tp": 0.05, "sl": null, "trade_fee": 0.00075, "initial_capital": 100, "max_position_capital": 100},
	"log_to_stdout": false,
	"log_to_telemetry": true,
	"data": {"dataset": "d.csv", "minute_prices": "m.csv", "predictions": "p.csv"}
}`

func validConfig() domain.RunConfig {
	tp := 0.05
	return domain.RunConfig{
		RunName:      "r",
		Classes:      3,
		Timeframe:    1,
		WindowLength: 1,
		Params: domain.RunParams{
			TP:                 &tp,
			TradeFee:           0.001,
			InitialCapital:     100,
			MaxPositionCapital: 100,
		},
	}
}

func TestParseRunConfig(t *testing.T) {
	cfg, err := ParseRunConfig([]byte(validRun))
	require.NoError(t, err)

	assert.Equal(t, "NN", cfg.Model)
	assert.Equal(t, 2, cfg.Classes)
	assert.Equal(t, 60, cfg.Timeframe)
	require.NotNil(t, cfg.Params.TP)
	assert.Equal(t, 0.05, *cfg.Params.TP)
	assert.Nil(t, cfg.Params.SL)
	assert.Nil(t, cfg.Params.TTL)
	assert.Equal(t, domain.OpenSignalClose, cfg.Params.BuyWhileOpen)
	assert.Equal(t, "m.csv", cfg.Data.MinutePrices)
}

func TestParseRunConfig_RejectsUnknownFields(t *testing.T) {
	_, err := ParseRunConfig([]byte(`{"run_name": "r", "scaler": "x.save"}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(validRun), 0o644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "nn_backtest_60_timeframe_30_window", cfg.RunName)

	_, err = LoadRunConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidateRun(t *testing.T) {
	neg := -0.1
	zero := 0

	tests := []struct {
		name   string
		mutate func(*domain.RunConfig)
		ok     bool
	}{
		{"valid", func(*domain.RunConfig) {}, true},
		{"zero fee", func(c *domain.RunConfig) { c.Params.TradeFee = 0 }, true},
		{"fee of one", func(c *domain.RunConfig) { c.Params.TradeFee = 1 }, false},
		{"negative fee", func(c *domain.RunConfig) { c.Params.TradeFee = -0.01 }, false},
		{"zero capital", func(c *domain.RunConfig) { c.Params.InitialCapital = 0 }, false},
		{"zero max position", func(c *domain.RunConfig) { c.Params.MaxPositionCapital = 0 }, false},
		{"zero timeframe", func(c *domain.RunConfig) { c.Timeframe = 0 }, false},
		{"zero window", func(c *domain.RunConfig) { c.WindowLength = 0 }, false},
		{"four classes", func(c *domain.RunConfig) { c.Classes = 4 }, false},
		{"negative sl", func(c *domain.RunConfig) { c.Params.SL = &neg }, false},
		{"zero ttl", func(c *domain.RunConfig) { c.Params.TTL = &zero }, false},
		{"missing name", func(c *domain.RunConfig) { c.RunName = "" }, false},
		{"exit checks policy", func(c *domain.RunConfig) { c.Params.BuyWhileOpen = domain.OpenSignalExitChecks }, true},
		{"unknown policy", func(c *domain.RunConfig) { c.Params.BuyWhileOpen = "ignore" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateRun(cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestValidateRun_ReportsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Timeframe = 0
	cfg.Params.InitialCapital = -1

	err := ValidateRun(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeframe")
	assert.Contains(t, err.Error(), "initial_capital")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KAFKA_BROKERS=a:9092,b:9092\nOUTPUT_DIR=from-file\n"), 0o644))

	t.Setenv("OUTPUT_DIR", "from-env")
	t.Setenv("TELEMETRY_TIMEOUT", "500ms")

	t.Cleanup(func() { os.Unsetenv("KAFKA_BROKERS") })
	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "from-env", cfg.OutputDir)
	assert.Equal(t, 500*time.Millisecond, cfg.TelemetryTimeout)
	assert.Equal(t, "backtest-audit", cfg.KafkaTopic)
	assert.True(t, cfg.TelemetryEnabled())
}

func TestLoadEnv_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestParseLists(t *testing.T) {
	floats, err := ParseFloatList("none, 0.005,0.01")
	require.NoError(t, err)
	require.Len(t, floats, 3)
	assert.Nil(t, floats[0])
	assert.Equal(t, 0.005, *floats[1])

	ints, err := ParseIntList("180,null,300")
	require.NoError(t, err)
	require.Len(t, ints, 3)
	assert.Equal(t, 180, *ints[0])
	assert.Nil(t, ints[1])

	empty, err := ParseFloatList("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseFloatList("0.1,abc")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ParseIntList("1.5")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
