package member

import (
	"context"
	"testing"
	"time"

	"github.com/lucashicks1/cssebot/cmd/internal/pgschema/pgtest"

	"github.com/stretchr/testify/require"
)

func TestPostgresStore_SetGitHub(t *testing.T) {
	t.Parallel()

	pool, schema := pgtest.Open(t, "member")
	store, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err = store.Get(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	u, err := store.SetGitHub(ctx, "u1", 42, now)
	require.NoError(t, err)
	require.Equal(t, int64(42), u.GitHubID)
	require.True(t, u.CreatedAt.Equal(now))

	_, err = store.SetGitHub(ctx, "u2", 42, now)
	require.ErrorIs(t, err, ErrConflict)

	got, err := store.GetByGitHub(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)

	later := now.Add(time.Minute)
	cleared, err := store.SetGitHub(ctx, "u1", 0, later)
	require.NoError(t, err)
	require.False(t, cleared.Linked())
	require.True(t, cleared.CreatedAt.Equal(now))
	require.True(t, cleared.UpdatedAt.Equal(later))

	_, err = store.GetByGitHub(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)

	// Two users without an account do not collide.
	_, err = store.SetGitHub(ctx, "u3", 0, later)
	require.NoError(t, err)
}
