package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type outcomeCounter struct {
	mu   sync.Mutex
	seen []Outcome
}

func (c *outcomeCounter) Reconciled(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, o)
}

// flakyStore wraps InMemoryStore with per-method failure injection and call counts.
type flakyStore struct {
	*InMemoryStore

	mu     sync.Mutex
	failOn map[string]error
	calls  map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{InMemoryStore: NewInMemoryStore(), failOn: map[string]error{}, calls: map[string]int{}}
}

func (s *flakyStore) hit(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.failOn[op]
}

func (s *flakyStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *flakyStore) GetByGuild(ctx context.Context, guildID string) (Studio, error) {
	if err := s.hit("GetByGuild"); err != nil {
		return Studio{}, err
	}
	return s.InMemoryStore.GetByGuild(ctx, guildID)
}

func (s *flakyStore) GetByKey(ctx context.Context, number, year int) (Studio, error) {
	if err := s.hit("GetByKey"); err != nil {
		return Studio{}, err
	}
	return s.InMemoryStore.GetByKey(ctx, number, year)
}

func (s *flakyStore) Create(ctx context.Context, in Studio) (Studio, error) {
	if err := s.hit("Create"); err != nil {
		return Studio{}, err
	}
	return s.InMemoryStore.Create(ctx, in)
}

func (s *flakyStore) UpdateRepository(ctx context.Context, id, repo string, now time.Time) (Studio, error) {
	if err := s.hit("UpdateRepository"); err != nil {
		return Studio{}, err
	}
	return s.InMemoryStore.UpdateRepository(ctx, id, repo, now)
}

func (s *flakyStore) LinkGuild(ctx context.Context, guildID, studioID string) error {
	if err := s.hit("LinkGuild"); err != nil {
		return err
	}
	return s.InMemoryStore.LinkGuild(ctx, guildID, studioID)
}

type reconcileFixture struct {
	store *flakyStore
	cache *GuildCache
	rec   *Reconciler
	obs   *outcomeCounter
	now   time.Time
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	fx := &reconcileFixture{
		store: newFlakyStore(),
		obs:   &outcomeCounter{},
		now:   time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	}
	fx.cache = NewGuildCache(fx.store)
	rec, err := NewReconciler(fx.store, fx.cache, WithClock(func() time.Time { return fx.now }), WithObserver(fx.obs))
	require.NoError(t, err)
	fx.rec = rec
	return fx
}

func (fx *reconcileFixture) cached(t *testing.T, guildID string) Studio {
	t.Helper()
	st, found, ok := fx.cache.Lookup(guildID)
	require.True(t, ok, "expected cache entry for %s", guildID)
	require.True(t, found)
	return st
}

func TestReconcile_CreatesNewStudio(t *testing.T) {
	t.Parallel()

	fx := newReconcileFixture(t)
	ctx := context.Background()

	st, o, err := fx.rec.Reconcile(ctx, "g1", 3, 2025, "2025-studio-3")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, o)
	require.Len(t, st.ID, 26)
	require.Equal(t, 3, st.Number)
	require.Equal(t, 2025, st.Year)
	require.Equal(t, "2025-studio-3", st.RepoName)
	require.True(t, st.CreatedAt.Equal(fx.now))

	got, err := fx.store.GetByGuild(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, st, got)
	require.Equal(t, st, fx.cached(t, "g1"))
	require.Equal(t, []Outcome{OutcomeCreated}, fx.obs.seen)
}

func TestReconcile_JoinDoesNotTouchStudio(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		preLinkTo *Studio
	}{
		{name: "guild unlinked"},
		{name: "guild linked elsewhere", preLinkTo: &Studio{Number: 9, Year: 2025, RepoName: "other"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fx := newReconcileFixture(t)
			ctx := context.Background()

			original, _, err := fx.rec.Reconcile(ctx, "g1", 3, 2025, "2025-studio-3")
			require.NoError(t, err)

			if tc.preLinkTo != nil {
				_, o, err := fx.rec.Reconcile(ctx, "g2", tc.preLinkTo.Number, tc.preLinkTo.Year, tc.preLinkTo.RepoName)
				require.NoError(t, err)
				require.Equal(t, OutcomeCreated, o)
			}

			fx.now = fx.now.Add(time.Hour)
			st, o, err := fx.rec.Reconcile(ctx, "g2", 3, 2025, "typo-repo")
			require.NoError(t, err)
			require.Equal(t, OutcomeJoined, o)
			require.Equal(t, original, st)
			require.Equal(t, 0, fx.store.count("UpdateRepository"))

			row, err := fx.store.GetByKey(ctx, 3, 2025)
			require.NoError(t, err)
			require.Equal(t, "2025-studio-3", row.RepoName)
			require.True(t, row.UpdatedAt.Equal(original.UpdatedAt))

			linked, err := fx.store.GetByGuild(ctx, "g2")
			require.NoError(t, err)
			require.Equal(t, original.ID, linked.ID)
			require.Equal(t, original, fx.cached(t, "g2"))

			// g1 keeps its own link.
			linked, err = fx.store.GetByGuild(ctx, "g1")
			require.NoError(t, err)
			require.Equal(t, original.ID, linked.ID)
		})
	}
}

func TestReconcile_UpdatesRepositoryForLinkedGuild(t *testing.T) {
	t.Parallel()

	fx := newReconcileFixture(t)
	ctx := context.Background()

	original, _, err := fx.rec.Reconcile(ctx, "g1", 3, 2025, "old-repo")
	require.NoError(t, err)

	fx.now = fx.now.Add(time.Hour)
	st, o, err := fx.rec.Reconcile(ctx, "g1", 3, 2025, "new-repo")
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, o)
	require.Equal(t, original.ID, st.ID)
	require.Equal(t, "new-repo", st.RepoName)
	require.True(t, st.UpdatedAt.Equal(fx.now))
	require.Equal(t, st, fx.cached(t, "g1"))

	// Same repository again is an update with no write.
	st2, o, err := fx.rec.Reconcile(ctx, "g1", 3, 2025, "new-repo")
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, o)
	require.Equal(t, st, st2)
	require.Equal(t, 1, fx.store.count("UpdateRepository"))
}

func TestReconcile_PersistenceErrorsLeaveCacheUntouched(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	for _, op := range []string{"GetByGuild", "GetByKey", "Create", "LinkGuild"} {
		t.Run(op, func(t *testing.T) {
			t.Parallel()

			fx := newReconcileFixture(t)
			fx.store.failOn[op] = boom

			_, _, err := fx.rec.Reconcile(context.Background(), "g1", 3, 2025, "repo")
			require.ErrorIs(t, err, boom)
			require.False(t, fx.cache.Contains("g1"))
			require.Empty(t, fx.obs.seen)
		})
	}

	t.Run("UpdateRepository", func(t *testing.T) {
		t.Parallel()

		fx := newReconcileFixture(t)
		ctx := context.Background()
		before, _, err := fx.rec.Reconcile(ctx, "g1", 3, 2025, "repo")
		require.NoError(t, err)

		fx.store.failOn["UpdateRepository"] = boom
		_, _, err = fx.rec.Reconcile(ctx, "g1", 3, 2025, "repo-2")
		require.ErrorIs(t, err, boom)
		require.Equal(t, before, fx.cached(t, "g1"))
	})
}

func TestReconcile_CreateRaceFallsBackToJoin(t *testing.T) {
	t.Parallel()

	fx := newReconcileFixture(t)
	ctx := context.Background()

	// Another process created the studio between our lookup and insert.
	winner := Studio{ID: "01J0000000000000000000WIN0", Number: 4, Year: 2025, RepoName: "winner", CreatedAt: fx.now, UpdatedAt: fx.now}
	racing := &racingStore{flakyStore: fx.store, winner: winner}
	rec, err := NewReconciler(racing, fx.cache)
	require.NoError(t, err)

	st, o, err := rec.Reconcile(ctx, "g1", 4, 2025, "loser")
	require.NoError(t, err)
	require.Equal(t, OutcomeJoined, o)
	require.Equal(t, winner, st)
}

type racingStore struct {
	*flakyStore
	winner Studio
	once   sync.Once
}

func (s *racingStore) Create(ctx context.Context, in Studio) (Studio, error) {
	s.once.Do(func() { _, _ = s.flakyStore.InMemoryStore.Create(ctx, s.winner) })
	return s.flakyStore.Create(ctx, in)
}

func TestReconcile_InvalidInput(t *testing.T) {
	t.Parallel()

	fx := newReconcileFixture(t)
	ctx := context.Background()

	for _, tc := range []struct {
		guild  string
		number int
		year   int
		repo   string
	}{
		{guild: "", number: 1, year: 2025, repo: "r"},
		{guild: "g", number: 0, year: 2025, repo: "r"},
		{guild: "g", number: 1, year: 0, repo: "r"},
		{guild: "g", number: 1, year: 2025, repo: "  "},
	} {
		_, _, err := fx.rec.Reconcile(ctx, tc.guild, tc.number, tc.year, tc.repo)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	require.Equal(t, 0, fx.store.count("GetByGuild"))
}

func TestLookupAndUnlink(t *testing.T) {
	t.Parallel()

	fx := newReconcileFixture(t)
	ctx := context.Background()

	_, found, err := fx.rec.Lookup(ctx, "g1")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 1, fx.store.count("GetByGuild"))

	// Absent result is cached.
	_, found, err = fx.rec.Lookup(ctx, "g1")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 1, fx.store.count("GetByGuild"))

	st, _, err := fx.rec.Reconcile(ctx, "g1", 2, 2024, "repo")
	require.NoError(t, err)

	got, found, err := fx.rec.Lookup(ctx, "g1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, st, got)

	ok, err := fx.rec.Unlink(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, fx.cache.Contains("g1"))

	_, found, err = fx.rec.Lookup(ctx, "g1")
	require.NoError(t, err)
	require.False(t, found)

	ok, err = fx.rec.Unlink(ctx, "g1")
	require.NoError(t, err)
	require.False(t, ok)
}
