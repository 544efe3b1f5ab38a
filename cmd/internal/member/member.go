// Package member stores the link between a chat user and their GitHub account.
package member

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("member: invalid input")
	ErrNotFound     = errors.New("member: not found")
	ErrConflict     = errors.New("member: github account already linked")
)

// User is a chat user record. GitHubID is zero when no account is linked.
type User struct {
	ID        string
	GitHubID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Linked reports whether u has a GitHub account.
func (u User) Linked() bool { return u.GitHubID != 0 }

// Store persists users. A GitHub id belongs to at most one user.
type Store interface {
	Get(ctx context.Context, userID string) (User, error)
	GetByGitHub(ctx context.Context, githubID int64) (User, error)

	// SetGitHub creates or updates userID with githubID (zero clears it).
	SetGitHub(ctx context.Context, userID string, githubID int64, now time.Time) (User, error)

	Close() error
}
