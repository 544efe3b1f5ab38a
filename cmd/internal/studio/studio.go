// Package studio owns the studio records and their guild links, and reconciles a completed
// setup against what is already persisted.
package studio

import (
	"context"
	"time"
)

// Studio is one course studio. (Number, Year) is unique.
type Studio struct {
	ID        string
	Number    int
	Year      int
	RepoName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outcome is the branch Reconcile took.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeJoined
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeJoined:
		return "joined"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Store persists studios and guild links. A guild links to at most one studio.
type Store interface {
	GetByGuild(ctx context.Context, guildID string) (Studio, error)
	GetByKey(ctx context.Context, number, year int) (Studio, error)
	Create(ctx context.Context, s Studio) (Studio, error)
	UpdateRepository(ctx context.Context, studioID, repoName string, now time.Time) (Studio, error)

	// LinkGuild replaces any existing link for guildID.
	LinkGuild(ctx context.Context, guildID, studioID string) error
	UnlinkGuild(ctx context.Context, guildID string) (bool, error)

	Close() error
}
