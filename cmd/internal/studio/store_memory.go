package studio

import (
	"context"
	"strings"
	"sync"
	"time"
)

type studioKey struct {
	number int
	year   int
}

// InMemoryStore is a dev-only Store used when no database is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	studios map[string]Studio
	byKey   map[studioKey]string
	links   map[string]string // guild id -> studio id
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		studios: make(map[string]Studio),
		byKey:   make(map[studioKey]string),
		links:   make(map[string]string),
	}
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) GetByGuild(ctx context.Context, guildID string) (Studio, error) {
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}
	if strings.TrimSpace(guildID) == "" {
		return Studio{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.links[guildID]
	if !ok {
		return Studio{}, ErrNotFound
	}
	st, ok := s.studios[id]
	if !ok {
		return Studio{}, ErrNotFound
	}
	return st, nil
}

func (s *InMemoryStore) GetByKey(ctx context.Context, number, year int) (Studio, error) {
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[studioKey{number, year}]
	if !ok {
		return Studio{}, ErrNotFound
	}
	return s.studios[id], nil
}

func (s *InMemoryStore) Create(ctx context.Context, in Studio) (Studio, error) {
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}
	if strings.TrimSpace(in.ID) == "" || in.Number <= 0 || in.Year <= 0 || strings.TrimSpace(in.RepoName) == "" {
		return Studio{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := studioKey{in.Number, in.Year}
	if _, ok := s.byKey[k]; ok {
		return Studio{}, ConflictError{Op: "studio.Create", Field: "number_year"}
	}
	if _, ok := s.studios[in.ID]; ok {
		return Studio{}, ConflictError{Op: "studio.Create", Field: "id"}
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = in.CreatedAt
	}
	s.studios[in.ID] = in
	s.byKey[k] = in.ID
	return in, nil
}

func (s *InMemoryStore) UpdateRepository(ctx context.Context, studioID, repoName string, now time.Time) (Studio, error) {
	if err := ctx.Err(); err != nil {
		return Studio{}, err
	}
	if strings.TrimSpace(studioID) == "" || strings.TrimSpace(repoName) == "" {
		return Studio{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.studios[studioID]
	if !ok {
		return Studio{}, ErrNotFound
	}
	st.RepoName = repoName
	st.UpdatedAt = now
	s.studios[studioID] = st
	return st, nil
}

func (s *InMemoryStore) LinkGuild(ctx context.Context, guildID, studioID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(guildID) == "" || strings.TrimSpace(studioID) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.studios[studioID]; !ok {
		return ErrNotFound
	}
	s.links[guildID] = studioID
	return nil
}

func (s *InMemoryStore) UnlinkGuild(ctx context.Context, guildID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.links[guildID]
	delete(s.links, guildID)
	return ok, nil
}
