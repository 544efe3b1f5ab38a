package member

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func presentSet(ids ...string) PresenceFunc {
	m := map[string]bool{}
	for _, id := range ids {
		m[id] = true
	}
	return func(_ context.Context, id string) (bool, error) { return m[id], nil }
}

func TestDirectory_LinkRules(t *testing.T) {
	t.Parallel()

	const gh = int64(1001)
	cases := []struct {
		name    string
		seed    map[string]int64
		user    string
		present []string
		want    LinkResult
		holder  string
		wantGH  map[string]int64
	}{
		{
			name:   "fresh link",
			user:   "u1",
			want:   Linked,
			wantGH: map[string]int64{"u1": gh},
		},
		{
			name:   "same user again",
			seed:   map[string]int64{"u1": gh},
			user:   "u1",
			want:   AlreadyYours,
			wantGH: map[string]int64{"u1": gh},
		},
		{
			name:    "held by present user",
			seed:    map[string]int64{"u2": gh},
			user:    "u1",
			present: []string{"u2"},
			want:    HeldByOther,
			holder:  "u2",
			wantGH:  map[string]int64{"u2": gh},
		},
		{
			name:   "held by departed user",
			seed:   map[string]int64{"u2": gh},
			user:   "u1",
			want:   HolderLeft,
			holder: "u2",
			wantGH: map[string]int64{"u2": 0},
		},
		{
			name:   "requester already linked elsewhere",
			seed:   map[string]int64{"u1": 2002},
			user:   "u1",
			want:   RequesterLinked,
			wantGH: map[string]int64{"u1": 2002},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := NewInMemoryStore()
			for id, g := range tc.seed {
				_, err := store.SetGitHub(ctx, id, g, time.Time{})
				require.NoError(t, err)
			}
			dir, err := NewDirectory(store, nil)
			require.NoError(t, err)

			dec, err := dir.Link(ctx, tc.user, gh, presentSet(tc.present...))
			require.NoError(t, err)
			require.Equal(t, tc.want, dec.Result, dec.Result.String())
			require.Equal(t, tc.holder, dec.Holder)

			for id, g := range tc.wantGH {
				u, found, err := dir.Get(ctx, id)
				require.NoError(t, err)
				require.True(t, found)
				require.Equal(t, g, u.GitHubID, id)

				stored, err := store.Get(ctx, id)
				require.NoError(t, err)
				require.Equal(t, g, stored.GitHubID, id)
			}
		})
	}
}

func TestDirectory_PresenceErrorPropagates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()
	_, err := store.SetGitHub(ctx, "u2", 5, time.Time{})
	require.NoError(t, err)
	dir, err := NewDirectory(store, nil)
	require.NoError(t, err)

	boom := errors.New("rest down")
	_, err = dir.Link(ctx, "u1", 5, func(context.Context, string) (bool, error) { return false, boom })
	require.ErrorIs(t, err, boom)

	u, err := store.Get(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, int64(5), u.GitHubID)
}

func TestDirectory_Unlink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()
	dir, err := NewDirectory(store, nil)
	require.NoError(t, err)

	ok, err := dir.Unlink(ctx, "nobody")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = dir.Link(ctx, "u1", 9, presentSet())
	require.NoError(t, err)

	ok, err = dir.Unlink(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	u, found, err := dir.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, u.Linked())

	ok, err = dir.Unlink(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	// The account is free again.
	dec, err := dir.Link(ctx, "u3", 9, presentSet())
	require.NoError(t, err)
	require.Equal(t, Linked, dec.Result)
}

func TestInMemoryStore_Conflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemoryStore()
	_, err := store.SetGitHub(ctx, "a", 1, time.Time{})
	require.NoError(t, err)
	_, err = store.SetGitHub(ctx, "b", 1, time.Time{})
	require.ErrorIs(t, err, ErrConflict)

	_, err = store.SetGitHub(ctx, "a", 2, time.Time{})
	require.NoError(t, err)
	_, err = store.GetByGitHub(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.SetGitHub(ctx, "b", 1, time.Time{})
	require.NoError(t, err)
}
