package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// InMemoryStore keeps audit records in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
	seen    map[string]struct{}
	now     func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		seen: make(map[string]struct{}),
		now:  time.Now,
	}
}

// Append records evt.
func (s *InMemoryStore) Append(_ context.Context, evt event.DomainEvent) error {
	record, err := NewRecord(evt, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[record.EventID]; ok {
		return nil
	}
	s.seen[record.EventID] = struct{}{}
	s.records = append(s.records, record)
	return nil
}

// History returns the records of one aggregate ordered by occurrence.
func (s *InMemoryStore) History(_ context.Context, aggregateType, aggregateID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.AggregateType == aggregateType && r.AggregateID == aggregateID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

// Len returns the number of records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
