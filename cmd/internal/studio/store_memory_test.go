package studio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	t.Parallel()

	st := NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a, err := st.Create(ctx, Studio{ID: "A", Number: 1, Year: 2025, RepoName: "a", CreatedAt: now})
	require.NoError(t, err)
	require.True(t, a.UpdatedAt.Equal(now))

	_, err = st.Create(ctx, Studio{ID: "B", Number: 1, Year: 2025, RepoName: "b"})
	require.ErrorIs(t, err, ErrConflict)
	_, err = st.Create(ctx, Studio{ID: "", Number: 1, Year: 2025, RepoName: "b"})
	require.ErrorIs(t, err, ErrInvalidInput)

	require.ErrorIs(t, st.LinkGuild(ctx, "g", "missing"), ErrNotFound)
	require.NoError(t, st.LinkGuild(ctx, "g", "A"))

	got, err := st.GetByGuild(ctx, "g")
	require.NoError(t, err)
	require.Equal(t, a, got)

	upd, err := st.UpdateRepository(ctx, "A", "a2", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "a2", upd.RepoName)

	got, err = st.GetByKey(ctx, 1, 2025)
	require.NoError(t, err)
	require.Equal(t, upd, got)

	ok, err := st.UnlinkGuild(ctx, "g")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = st.GetByGuild(ctx, "g")
	require.ErrorIs(t, err, ErrNotFound)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = st.GetByKey(cctx, 1, 2025)
	require.ErrorIs(t, err, context.Canceled)
}
