package memory

import (
	"context"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// tradeKey identifies a trade: trade ids repeat across runs of the same name.
type tradeKey struct {
	runID   string
	tradeID string
}

func keyOf(t *domain.TradeRecord) tradeKey {
	return tradeKey{runID: t.RunID, tradeID: t.TradeID}
}

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data map[tradeKey]*domain.TradeRecord
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data: make(map[tradeKey]*domain.TradeRecord),
	}
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(_ context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(trades); err != nil {
		return err
	}
	s.putLocked(trades)
	return nil
}

// checkLocked validates a batch against the stored trades and itself.
func (s *TradeRecordStore) checkLocked(trades []*domain.TradeRecord) error {
	batchKeys := make(map[tradeKey]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" || !t.Ended() {
			return storage.ErrInvalidInput
		}
		k := keyOf(t)
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}
	return nil
}

func (s *TradeRecordStore) putLocked(trades []*domain.TradeRecord) {
	for _, t := range trades {
		copy := *t
		s.data[keyOf(t)] = &copy
	}
}

// GetByID retrieves one trade of a run.
func (s *TradeRecordStore) GetByID(_ context.Context, runID, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[tradeKey{runID: runID, tradeID: tradeID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// GetByRunID retrieves all trades of a run, ordered by entry time ASC.
func (s *TradeRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for k, t := range s.data {
		if k.runID == runID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].EntryTime.Equal(result[j].EntryTime) {
			return result[i].EntryTime.Before(result[j].EntryTime)
		}
		return result[i].TradeID < result[j].TradeID
	})

	return result, nil
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)
