package member

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a dev-only Store used when no database is configured.
type InMemoryStore struct {
	mu    sync.Mutex
	users map[string]User
	byGH  map[int64]string
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]User), byGH: make(map[int64]string)}
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Get(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemoryStore) GetByGitHub(ctx context.Context, githubID int64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if githubID <= 0 {
		return User{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byGH[githubID]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *InMemoryStore) SetGitHub(ctx context.Context, userID string, githubID int64, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(userID) == "" || githubID < 0 {
		return User{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if githubID != 0 {
		if holder, ok := s.byGH[githubID]; ok && holder != userID {
			return User{}, ErrConflict
		}
	}

	u, ok := s.users[userID]
	if !ok {
		u = User{ID: userID, CreatedAt: now}
	}
	if u.GitHubID != 0 {
		delete(s.byGH, u.GitHubID)
	}
	u.GitHubID = githubID
	u.UpdatedAt = now
	if githubID != 0 {
		s.byGH[githubID] = userID
	}
	s.users[userID] = u
	return u, nil
}
