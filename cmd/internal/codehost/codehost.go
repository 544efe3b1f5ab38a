// Package codehost looks up repositories and accounts in the course's GitHub organization.
package codehost

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("codehost: invalid input")
	ErrNotFound     = errors.New("codehost: not found")
)

// Repo is the subset of repository metadata the bot displays.
type Repo struct {
	Name         string
	FullName     string
	URL          string
	Description  string
	Stars        int
	Forks        int
	Watchers     int
	OpenIssues   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	OrgAvatarURL string
}

// Account is a GitHub user.
type Account struct {
	ID        int64
	Login     string
	URL       string
	AvatarURL string
	Bio       string
	CreatedAt time.Time
}

// API is the remote surface used by Host. Missing resources return ErrNotFound.
type API interface {
	GetRepo(ctx context.Context, org, name string) (Repo, error)
	ListOrgRepos(ctx context.Context, org string) ([]string, error)
	ListOrgMembers(ctx context.Context, org string) ([]Account, error)
	GetUserByID(ctx context.Context, id int64) (Account, error)
}
