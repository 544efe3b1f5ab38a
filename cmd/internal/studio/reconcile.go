package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lucashicks1/cssebot/cmd/internal/cache"
	"github.com/lucashicks1/cssebot/cmd/internal/ids"
)

// GuildCache maps guild id to its linked studio. A guild with no studio is cached as absent.
type GuildCache = cache.Async[string, Studio]

// NewGuildCache builds the read-through guild cache over store.
func NewGuildCache(store Store, opts ...cache.Option) *GuildCache {
	return cache.NewAsync(func(ctx context.Context, guildID string) (Studio, bool, error) {
		st, err := store.GetByGuild(ctx, guildID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Studio{}, false, nil
			}
			return Studio{}, false, err
		}
		return st, true, nil
	}, opts...)
}

// OutcomeObserver is told which branch each successful Reconcile took.
type OutcomeObserver interface {
	Reconciled(o Outcome)
}

type noopObserver struct{}

func (noopObserver) Reconciled(Outcome) {}

// Reconciler applies a completed setup to the persisted studios and the guild cache.
type Reconciler struct {
	store Store
	cache *GuildCache
	now   func() time.Time
	log   *slog.Logger
	obs   OutcomeObserver
}

// Option configures the Reconciler.
type Option func(*Reconciler) error

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) error {
		if now == nil {
			return ErrInvalidInput
		}
		r.now = now
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) error {
		if log != nil {
			r.log = log
		}
		return nil
	}
}

// WithObserver reports outcomes to obs.
func WithObserver(obs OutcomeObserver) Option {
	return func(r *Reconciler) error {
		if obs != nil {
			r.obs = obs
		}
		return nil
	}
}

// NewReconciler constructs a Reconciler. The cache is shared with every other reader of guild links.
func NewReconciler(store Store, guilds *GuildCache, opts ...Option) (*Reconciler, error) {
	if store == nil || guilds == nil {
		return nil, ErrInvalidInput
	}
	r := &Reconciler{
		store: store,
		cache: guilds,
		now:   func() time.Time { return time.Now().UTC() },
		log:   slog.Default(),
		obs:   noopObserver{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Reconcile records that guildID belongs to studio (number, year) with repository repo.
//
// A new (number, year) creates the studio. A known studio reached from a guild that is not
// yet linked to it only gains the link: its repository name is left alone in case the input
// was a mistake. A guild re-running setup for its own studio updates the repository name.
func (r *Reconciler) Reconcile(ctx context.Context, guildID string, number, year int, repo string) (Studio, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Studio{}, 0, err
	}
	guildID = strings.TrimSpace(guildID)
	repo = strings.TrimSpace(repo)
	if guildID == "" || number <= 0 || year <= 0 || repo == "" {
		return Studio{}, 0, ErrInvalidInput
	}

	log := r.log.With("guild_id", guildID, "number", number, "year", year)

	linked, err := r.store.GetByGuild(ctx, guildID)
	linkedOK := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Studio{}, 0, fmt.Errorf("load guild studio: %w", err)
	}

	existing, err := r.store.GetByKey(ctx, number, year)
	switch {
	case errors.Is(err, ErrNotFound):
		created, err := r.create(ctx, number, year, repo)
		if err == nil {
			if err := r.store.LinkGuild(ctx, guildID, created.ID); err != nil {
				return Studio{}, 0, fmt.Errorf("link guild: %w", err)
			}
			log.Info("studio.reconcile.created", "studio_id", created.ID, "repo_name", created.RepoName)
			return r.done(guildID, created, OutcomeCreated), OutcomeCreated, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Studio{}, 0, fmt.Errorf("create studio: %w", err)
		}
		// Lost a create race; continue with the winner's row.
		existing, err = r.store.GetByKey(ctx, number, year)
		if err != nil {
			return Studio{}, 0, fmt.Errorf("reload studio: %w", err)
		}
	case err != nil:
		return Studio{}, 0, fmt.Errorf("load studio: %w", err)
	}

	if !linkedOK || linked.ID != existing.ID {
		if err := r.store.LinkGuild(ctx, guildID, existing.ID); err != nil {
			return Studio{}, 0, fmt.Errorf("link guild: %w", err)
		}
		log.Info("studio.reconcile.joined",
			"studio_id", existing.ID,
			"repo_name", existing.RepoName,
			"requested_repo_name", repo,
			"note", "repository name not updated in case of misinput",
		)
		return r.done(guildID, existing, OutcomeJoined), OutcomeJoined, nil
	}

	updated := existing
	if existing.RepoName != repo {
		updated, err = r.store.UpdateRepository(ctx, existing.ID, repo, r.now())
		if err != nil {
			return Studio{}, 0, fmt.Errorf("update repository: %w", err)
		}
	}
	log.Info("studio.reconcile.updated", "studio_id", updated.ID, "repo_name", updated.RepoName, "changed", updated.RepoName != existing.RepoName)
	return r.done(guildID, updated, OutcomeUpdated), OutcomeUpdated, nil
}

func (r *Reconciler) create(ctx context.Context, number, year int, repo string) (Studio, error) {
	now := r.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Studio{}, err
	}
	return r.store.Create(ctx, Studio{
		ID:        id,
		Number:    number,
		Year:      year,
		RepoName:  repo,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (r *Reconciler) done(guildID string, st Studio, o Outcome) Studio {
	r.cache.Set(guildID, st)
	r.obs.Reconciled(o)
	return st
}

// Lookup returns the studio linked to guildID through the guild cache.
func (r *Reconciler) Lookup(ctx context.Context, guildID string) (Studio, bool, error) {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return Studio{}, false, ErrInvalidInput
	}
	return r.cache.Get(ctx, guildID)
}

// Unlink removes guildID's studio link and drops it from the cache.
func (r *Reconciler) Unlink(ctx context.Context, guildID string) (bool, error) {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return false, ErrInvalidInput
	}
	ok, err := r.store.UnlinkGuild(ctx, guildID)
	if err != nil {
		return false, err
	}
	r.cache.Remove(guildID)
	r.log.Info("studio.unlink", "guild_id", guildID, "was_linked", ok)
	return ok, nil
}
