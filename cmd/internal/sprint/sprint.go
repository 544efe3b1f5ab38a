// Package sprint records what each studio team is building in each sprint.
package sprint

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxDescriptionLen bounds a feature description.
const MaxDescriptionLen = 1000

var (
	ErrInvalidInput = errors.New("sprint: invalid input")
	ErrNotFound     = errors.New("sprint: not found")
)

// Feature is one team's description for one sprint.
type Feature struct {
	StudioID    string
	Team        int
	Sprint      int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists features keyed by (StudioID, Team, Sprint).
type Store interface {
	Upsert(ctx context.Context, f Feature) (Feature, error)
	Get(ctx context.Context, studioID string, team, sprint int) (Feature, error)
	ListBySprint(ctx context.Context, studioID string, sprint int) ([]Feature, error)
	Close() error
}

// Validate normalizes f and rejects out-of-range fields.
func Validate(f Feature) (Feature, error) {
	f.StudioID = strings.TrimSpace(f.StudioID)
	f.Description = strings.TrimSpace(f.Description)
	if f.StudioID == "" || f.Team < 1 || f.Sprint < 1 {
		return Feature{}, ErrInvalidInput
	}
	if f.Description == "" || len(f.Description) > MaxDescriptionLen {
		return Feature{}, ErrInvalidInput
	}
	return f, nil
}
