package codehost

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lucashicks1/cssebot/cmd/internal/cache"
)

const defaultCallTimeout = 10 * time.Second

// Host caches lookups against one organization.
type Host struct {
	api     API
	org     string
	timeout time.Duration
	log     *slog.Logger

	repos     *cache.Sync[string, Repo]
	repoNames *cache.Async[string, []string]
	accounts  *cache.Sync[int64, Account]

	mu      sync.RWMutex
	members map[string]int64 // lower-cased login -> id
}

// Option configures Host.
type Option func(*Host)

// WithCallTimeout bounds each remote call made from a synchronous cache loader.
func WithCallTimeout(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Host) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHost constructs a Host for org. cacheOpts apply to every cache it owns.
func NewHost(api API, org string, cacheOpts []cache.Option, opts ...Option) (*Host, error) {
	org = strings.TrimSpace(org)
	if api == nil || org == "" {
		return nil, ErrInvalidInput
	}
	h := &Host{api: api, org: org, timeout: defaultCallTimeout, log: slog.Default(), members: map[string]int64{}}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	h.repos = cache.NewSync(func(name string) (Repo, bool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		r, err := h.api.GetRepo(ctx, h.org, name)
		return found(r, err)
	}, cacheOpts...)

	h.accounts = cache.NewSync(func(id int64) (Account, bool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		a, err := h.api.GetUserByID(ctx, id)
		return found(a, err)
	}, cacheOpts...)

	h.repoNames = cache.NewAsync(func(ctx context.Context, org string) ([]string, bool, error) {
		names, err := h.api.ListOrgRepos(ctx, org)
		return found(names, err)
	}, cacheOpts...)

	return h, nil
}

func found[V any](v V, err error) (V, bool, error) {
	var zero V
	if errors.Is(err, ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Org returns the organization name.
func (h *Host) Org() string { return h.org }

// RepoURL returns the web URL for a repository in the organization.
func (h *Host) RepoURL(name string) string {
	return "https://github.com/" + h.org + "/" + name
}

// Repo looks up a repository by name. A missing repository is remembered until the entry expires.
func (h *Host) Repo(name string) (Repo, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Repo{}, false, ErrInvalidInput
	}
	return h.repos.Get(name)
}

// RepoNames lists the organization's repositories.
func (h *Host) RepoNames(ctx context.Context) ([]string, error) {
	names, _, err := h.repoNames.Get(ctx, h.org)
	return names, err
}

// Account looks up a GitHub user by id.
func (h *Host) Account(id int64) (Account, bool, error) {
	if id <= 0 {
		return Account{}, false, ErrInvalidInput
	}
	return h.accounts.Get(id)
}

// Refresh replaces the login snapshot with the organization's current members.
func (h *Host) Refresh(ctx context.Context) (int, error) {
	members, err := h.api.ListOrgMembers(ctx, h.org)
	if err != nil {
		h.log.Error("codehost.members.refresh.fail", "org", h.org, "err", err)
		return 0, err
	}
	next := make(map[string]int64, len(members))
	for _, m := range members {
		next[strings.ToLower(m.Login)] = m.ID
	}

	h.mu.Lock()
	h.members = next
	h.mu.Unlock()

	h.log.Info("codehost.members.refreshed", "org", h.org, "count", len(next))
	return len(next), nil
}

// MemberID resolves a login from the last Refresh. Logins are case-insensitive.
func (h *Host) MemberID(login string) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.members[strings.ToLower(strings.TrimSpace(login))]
	return id, ok
}

// Sweep evicts expired entries from every cache.
func (h *Host) Sweep() int {
	return h.repos.Sweep() + h.accounts.Sweep() + h.repoNames.Sweep()
}
