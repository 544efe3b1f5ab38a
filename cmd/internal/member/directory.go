package member

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lucashicks1/cssebot/cmd/internal/cache"
)

// LinkResult is the decision taken by Directory.Link.
type LinkResult int

const (
	// Linked: the account is now linked to the requester.
	Linked LinkResult = iota + 1
	// AlreadyYours: the requester already holds this account.
	AlreadyYours
	// HeldByOther: another present user holds the account.
	HeldByOther
	// HolderLeft: the holder is gone; their link was cleared and the requester may retry.
	HolderLeft
	// RequesterLinked: the requester already holds a different account.
	RequesterLinked
)

func (r LinkResult) String() string {
	switch r {
	case Linked:
		return "linked"
	case AlreadyYours:
		return "already_yours"
	case HeldByOther:
		return "held_by_other"
	case HolderLeft:
		return "holder_left"
	case RequesterLinked:
		return "requester_linked"
	default:
		return "unknown"
	}
}

// LinkDecision is the outcome of a link attempt.
type LinkDecision struct {
	Result LinkResult
	User   User
	Holder string
}

// PresenceFunc reports whether userID is still around (e.g. a member of the guild).
type PresenceFunc func(ctx context.Context, userID string) (bool, error)

// Directory is the read-through view over Store used by commands.
type Directory struct {
	store Store
	users *cache.Async[string, User]
	now   func() time.Time
	log   *slog.Logger
}

// NewDirectory constructs a Directory. cacheOpts configure the per-user cache.
func NewDirectory(store Store, log *slog.Logger, cacheOpts ...cache.Option) (*Directory, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Directory{store: store, now: func() time.Time { return time.Now().UTC() }, log: log}
	d.users = cache.NewAsync(func(ctx context.Context, id string) (User, bool, error) {
		u, err := store.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return User{}, false, nil
		}
		if err != nil {
			return User{}, false, err
		}
		return u, true, nil
	}, cacheOpts...)
	return d, nil
}

// Cache exposes the per-user cache for sweeping.
func (d *Directory) Cache() *cache.Async[string, User] { return d.users }

// Get returns the cached user record.
func (d *Directory) Get(ctx context.Context, userID string) (User, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, false, ErrInvalidInput
	}
	return d.users.Get(ctx, userID)
}

// Link associates githubID with userID following the ownership rules: an account already held by
// a present user is refused, one held by a departed user is released, and a requester who already
// has an account must have it cleared first.
func (d *Directory) Link(ctx context.Context, userID string, githubID int64, present PresenceFunc) (LinkDecision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || githubID <= 0 || present == nil {
		return LinkDecision{}, ErrInvalidInput
	}

	self, _, err := d.Get(ctx, userID)
	if err != nil {
		return LinkDecision{}, err
	}

	holder, err := d.store.GetByGitHub(ctx, githubID)
	switch {
	case err == nil && holder.ID == userID:
		return LinkDecision{Result: AlreadyYours, User: holder}, nil
	case err == nil:
		here, err := present(ctx, holder.ID)
		if err != nil {
			return LinkDecision{}, err
		}
		if here {
			return LinkDecision{Result: HeldByOther, Holder: holder.ID, User: self}, nil
		}
		cleared, err := d.store.SetGitHub(ctx, holder.ID, 0, d.now())
		if err != nil {
			return LinkDecision{}, err
		}
		d.users.Set(holder.ID, cleared)
		d.log.Info("member.link.holder_released", "holder", holder.ID, "github_id", githubID)
		return LinkDecision{Result: HolderLeft, Holder: holder.ID, User: self}, nil
	case !errors.Is(err, ErrNotFound):
		return LinkDecision{}, err
	}

	if self.Linked() {
		return LinkDecision{Result: RequesterLinked, User: self}, nil
	}

	u, err := d.store.SetGitHub(ctx, userID, githubID, d.now())
	if err != nil {
		return LinkDecision{}, err
	}
	d.users.Set(userID, u)
	d.log.Info("member.link", "user", userID, "github_id", githubID)
	return LinkDecision{Result: Linked, User: u}, nil
}

// Unlink clears userID's GitHub account. It reports false when there was nothing to clear.
func (d *Directory) Unlink(ctx context.Context, userID string) (bool, error) {
	self, found, err := d.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !found || !self.Linked() {
		return false, nil
	}
	u, err := d.store.SetGitHub(ctx, self.ID, 0, d.now())
	if err != nil {
		return false, err
	}
	d.users.Set(self.ID, u)
	d.log.Info("member.unlink", "user", self.ID)
	return true, nil
}
