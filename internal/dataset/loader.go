package dataset

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/ristretto"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/replay"
)

// Dataset is everything a run reads from disk.
type Dataset struct {
	Closes      []*domain.MinuteClose
	Decisions   []domain.DecisionRow
	Predictions []int
}

// Loader reads dataset files and keeps parsed results in a cache so that
// repeated runs over the same files parse them once. Cached slices are
// shared and must not be modified.
type Loader struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewLoader creates a loader whose cache holds up to maxRows parsed rows.
func NewLoader(maxRows int64, ttl time.Duration) (*Loader, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     maxRows,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create dataset cache: %w", err)
	}
	return &Loader{cache: c, ttl: ttl}, nil
}

// Load reads the files named in paths and derives the decision rows for
// windowLength. The prediction count must equal the decision count.
func (l *Loader) Load(paths domain.DatasetPaths, windowLength int) (*Dataset, error) {
	closes, err := l.MinuteCloses(paths.MinutePrices, paths.Symbol)
	if err != nil {
		return nil, err
	}
	decisions, err := l.Decisions(paths.Dataset, windowLength)
	if err != nil {
		return nil, err
	}
	predictions, err := l.Predictions(paths.Predictions)
	if err != nil {
		return nil, err
	}
	if len(predictions) != len(decisions) {
		return nil, fmt.Errorf("%w: %d predictions, %d decision rows", ErrPredictionCount, len(predictions), len(decisions))
	}

	return &Dataset{Closes: closes, Decisions: decisions, Predictions: predictions}, nil
}

// MinuteCloses returns the parsed close series at path.
func (l *Loader) MinuteCloses(path, symbol string) ([]*domain.MinuteClose, error) {
	key := "closes|" + symbol + "|" + path
	if v, ok := l.cache.Get(key); ok {
		return v.([]*domain.MinuteClose), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open minute closes: %w", err)
	}
	defer f.Close()

	closes, err := ReadMinuteCloses(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.set(key, closes, int64(len(closes)))
	return closes, nil
}

// Decisions returns the decision rows of the raw dataset at path.
func (l *Loader) Decisions(path string, windowLength int) ([]domain.DecisionRow, error) {
	key := "rows|" + path
	var rows []time.Time
	if v, ok := l.cache.Get(key); ok {
		rows = v.([]time.Time)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()

		if rows, err = ReadRowTimes(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		l.set(key, rows, int64(len(rows)))
	}

	return replay.DecisionRows(rows, windowLength)
}

// Predictions returns the class labels at path.
func (l *Loader) Predictions(path string) ([]int, error) {
	key := "predictions|" + path
	if v, ok := l.cache.Get(key); ok {
		return v.([]int), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer f.Close()

	predictions, err := ReadPredictions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.set(key, predictions, int64(len(predictions)))
	return predictions, nil
}

func (l *Loader) set(key string, value any, cost int64) {
	l.cache.SetWithTTL(key, value, cost, l.ttl)
	l.cache.Wait()
}

// Close releases the cache.
func (l *Loader) Close() {
	l.cache.Close()
}
