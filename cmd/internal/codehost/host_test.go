package codehost

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	repos    map[string]Repo
	names    []string
	members  []Account
	accounts map[int64]Account
	calls    map[string]int
	err      error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{repos: map[string]Repo{}, accounts: map[int64]Account{}, calls: map[string]int{}}
}

func (f *fakeAPI) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.err
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) GetRepo(_ context.Context, _, name string) (Repo, error) {
	if err := f.hit("GetRepo"); err != nil {
		return Repo{}, err
	}
	r, ok := f.repos[name]
	if !ok {
		return Repo{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeAPI) ListOrgRepos(context.Context, string) ([]string, error) {
	if err := f.hit("ListOrgRepos"); err != nil {
		return nil, err
	}
	return f.names, nil
}

func (f *fakeAPI) ListOrgMembers(context.Context, string) ([]Account, error) {
	if err := f.hit("ListOrgMembers"); err != nil {
		return nil, err
	}
	return f.members, nil
}

func (f *fakeAPI) GetUserByID(_ context.Context, id int64) (Account, error) {
	if err := f.hit("GetUserByID"); err != nil {
		return Account{}, err
	}
	a, ok := f.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func TestHost_RepoCachesHitsAndMisses(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.repos["game"] = Repo{Name: "game", Stars: 3}
	h, err := NewHost(api, "UQcsse3200", nil)
	require.NoError(t, err)

	for range 3 {
		r, ok, err := h.Repo("game")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 3, r.Stars)

		_, ok, err = h.Repo("missing")
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Equal(t, 2, api.count("GetRepo"))
	require.Equal(t, "https://github.com/UQcsse3200/game", h.RepoURL("game"))
}

func TestHost_RemoteErrorNotCached(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.err = errors.New("rate limited")
	h, err := NewHost(api, "org", nil)
	require.NoError(t, err)

	_, _, err = h.Account(5)
	require.ErrorIs(t, err, api.err)

	api.mu.Lock()
	api.err = nil
	api.accounts[5] = Account{ID: 5, Login: "octo"}
	api.mu.Unlock()

	a, ok, err := h.Account(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "octo", a.Login)
	require.Equal(t, 2, api.count("GetUserByID"))
}

func TestHost_RefreshMembers(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.members = []Account{{ID: 1, Login: "Alice"}, {ID: 2, Login: "bob"}}
	h, err := NewHost(api, "org", nil)
	require.NoError(t, err)

	_, ok := h.MemberID("alice")
	require.False(t, ok)

	n, err := h.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	id, ok := h.MemberID(" ALICE ")
	require.True(t, ok)
	require.Equal(t, int64(1), id)

	api.mu.Lock()
	api.err = errors.New("boom")
	api.mu.Unlock()
	_, err = h.Refresh(context.Background())
	require.Error(t, err)
	_, ok = h.MemberID("bob")
	require.True(t, ok, "failed refresh keeps the previous snapshot")
}

func TestHost_RepoNames(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.names = []string{"a", "b"}
	h, err := NewHost(api, "org", nil)
	require.NoError(t, err)

	for range 2 {
		names, err := h.RepoNames(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, names)
	}
	require.Equal(t, 1, api.count("ListOrgRepos"))
}

func TestNewHost_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := NewHost(nil, "org", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = NewHost(newFakeAPI(), " ", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}
