package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// PriceSeriesStore is an in-memory implementation of storage.PriceSeriesStore.
type PriceSeriesStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MinuteClose // keyed by (symbol, timestamp_ms)
}

// NewPriceSeriesStore creates a new in-memory minute close store.
func NewPriceSeriesStore() *PriceSeriesStore {
	return &PriceSeriesStore{
		data: make(map[string]*domain.MinuteClose),
	}
}

func priceKey(symbol string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, timestampMs)
}

// InsertBulk adds multiple closes. Fails entire batch on duplicate.
func (s *PriceSeriesStore) InsertBulk(_ context.Context, points []*domain.MinuteClose) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := priceKey(p.Symbol, p.Time.UnixMilli())

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[priceKey(p.Symbol, p.Time.UnixMilli())] = &pointCopy
	}

	return nil
}

// GetByTimeRange retrieves closes for a symbol within [start, end] (inclusive).
func (s *PriceSeriesStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.MinuteClose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MinuteClose
	for _, p := range s.data {
		ts := p.Time.UnixMilli()
		if p.Symbol == symbol && ts >= start && ts <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})

	return result, nil
}

// GetSymbols lists stored symbols in ascending order.
func (s *PriceSeriesStore) GetSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range s.data {
		seen[p.Symbol] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for sym := range seen {
		result = append(result, sym)
	}
	sort.Strings(result)
	return result, nil
}

var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)
