package store

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bitegraph/internal/model"
)

type memRecord struct {
	interp model.FoodEventInterpretation
	hash   string
}

// MemoryStore keeps the log in process memory. Each event has an ordered
// arena of versions plus an index of its current position.
type MemoryStore struct {
	mu      sync.RWMutex
	policy  Policy
	log     map[string][]memRecord
	current map[string]int
}

// NewMemory creates an empty MemoryStore.
func NewMemory(policy Policy) *MemoryStore {
	if policy == "" {
		policy = PolicySkipUnchanged
	}
	return &MemoryStore{
		policy:  policy,
		log:     make(map[string][]memRecord),
		current: make(map[string]int),
	}
}

func (s *MemoryStore) Put(_ context.Context, eventID string, interp model.FoodEventInterpretation) (*PutResult, error) {
	if err := validateWrite(eventID, interp); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *model.FoodEventInterpretation
	var latestHash string
	if i, ok := s.current[eventID]; ok {
		rec := s.log[eventID][i]
		latest, latestHash = &rec.interp, rec.hash
	}

	version, skip := plan(s.policy, latest, latestHash, interp)
	if skip {
		return &PutResult{Interpretation: *latest}, nil
	}

	rec := prepare(eventID, interp, version)
	s.log[eventID] = append(s.log[eventID], memRecord{interp: rec, hash: rec.ContentHash()})
	s.current[eventID] = len(s.log[eventID]) - 1
	return &PutResult{Interpretation: rec, Appended: true}, nil
}

func (s *MemoryStore) GetCurrent(_ context.Context, eventID string) (*model.FoodEventInterpretation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.current[eventID]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "store: get current %s", eventID)
	}
	out := s.log[eventID][i].interp
	return &out, nil
}

func (s *MemoryStore) GetHistory(_ context.Context, eventID string) ([]model.FoodEventInterpretation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.log[eventID]
	out := make([]model.FoodEventInterpretation, len(recs))
	for i, r := range recs {
		out[i] = r.interp
	}
	return out, nil
}

// Len returns the number of events with at least one version.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current)
}

func (s *MemoryStore) Close() error { return nil }
