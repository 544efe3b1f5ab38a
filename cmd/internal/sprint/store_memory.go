package sprint

import (
	"context"
	"sort"
	"sync"
	"time"
)

type featureKey struct {
	studio string
	team   int
	sprint int
}

// InMemoryStore is a dev-only Store.
type InMemoryStore struct {
	mu       sync.Mutex
	features map[featureKey]Feature
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{features: make(map[featureKey]Feature)}
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Upsert(ctx context.Context, in Feature) (Feature, error) {
	if err := ctx.Err(); err != nil {
		return Feature{}, err
	}
	f, err := Validate(in)
	if err != nil {
		return Feature{}, err
	}
	now := f.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := featureKey{f.StudioID, f.Team, f.Sprint}
	if prev, ok := s.features[k]; ok {
		f.CreatedAt = prev.CreatedAt
	} else {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	s.features[k] = f
	return f, nil
}

func (s *InMemoryStore) Get(ctx context.Context, studioID string, team, sprint int) (Feature, error) {
	if err := ctx.Err(); err != nil {
		return Feature{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.features[featureKey{studioID, team, sprint}]
	if !ok {
		return Feature{}, ErrNotFound
	}
	return f, nil
}

func (s *InMemoryStore) ListBySprint(ctx context.Context, studioID string, sprint int) ([]Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]Feature, 0, 8)
	for k, f := range s.features {
		if k.studio == studioID && k.sprint == sprint {
			out = append(out, f)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out, nil
}
