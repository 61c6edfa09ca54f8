package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"tailtrail/internal/api"
	"tailtrail/internal/client"
	"tailtrail/internal/files"
	"tailtrail/internal/utils"
)

func newTokenStore(t *testing.T) *files.TokenStore {
	t.Helper()
	s, err := files.NewTokenStore(files.TokenStoreConfig{
		Dir:       t.TempDir(),
		Service:   "com.tailtrail.authtoken",
		MasterKey: bytes.Repeat([]byte{9}, 32),
	})
	require.NoError(t, err)
	return s
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	users, err := files.NewUserStore(dir)
	require.NoError(t, err)
	posts, err := files.NewPostStore(dir)
	require.NoError(t, err)
	ts := httptest.NewServer(api.NewRouter(api.NewServer(api.Config{Users: users, Posts: posts})))
	t.Cleanup(ts.Close)
	return ts
}

func TestRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	ts := newBackend(t)
	store := newTokenStore(t)
	m := NewManager(ts.URL, store, utils.Discard())

	require.False(t, m.IsLoggedIn())
	require.Nil(t, m.CurrentUser())

	require.NoError(t, m.Register(ctx, "rex@example.com", "woof-woof"))
	require.True(t, m.IsLoggedIn())
	require.True(t, store.HasToken())
	require.Equal(t, "rex@example.com", m.CurrentUser().Email)

	u, err := m.FetchProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, "New", u.FirstName)

	require.NoError(t, m.Logout())
	require.False(t, m.IsLoggedIn())
	require.False(t, store.HasToken())

	_, err = m.FetchProfile(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)

	require.Error(t, m.Login(ctx, "rex@example.com", "wrong"))
	require.False(t, m.IsLoggedIn())

	require.NoError(t, m.Login(ctx, "rex@example.com", "woof-woof"))
	require.True(t, m.IsLoggedIn())
}

func TestRegisterTwiceFails(t *testing.T) {
	ctx := context.Background()
	ts := newBackend(t)
	m := NewManager(ts.URL, newTokenStore(t), nil)

	require.NoError(t, m.Register(ctx, "a@example.com", "pw"))
	err := m.Register(ctx, "a@example.com", "pw")
	var apiErr *utils.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Code)
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	ts := newBackend(t)
	store := newTokenStore(t)

	require.NoError(t, NewManager(ts.URL, store, nil).Register(ctx, "b@example.com", "pw"))

	m := NewManager(ts.URL, store, nil)
	require.True(t, m.IsLoggedIn())
	u, err := m.FetchProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, "b@example.com", u.Email)
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	ts := newBackend(t)
	m := NewManager(ts.URL, newTokenStore(t), nil)

	require.ErrorIs(t, m.DeleteAccount(ctx), ErrNotLoggedIn)

	require.NoError(t, m.Register(ctx, "c@example.com", "pw"))
	require.NoError(t, m.DeleteAccount(ctx))
	require.False(t, m.IsLoggedIn())
	require.Error(t, m.Login(ctx, "c@example.com", "pw"))
}

func TestExpiredTokenLogsOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token expired!"}`))
	}))
	defer srv.Close()

	store := newTokenStore(t)
	require.NoError(t, store.Save("stale"))
	m := NewManager(srv.URL, store, nil)
	require.True(t, m.IsLoggedIn())

	_, err := m.FetchProfile(context.Background())
	require.ErrorIs(t, err, client.ErrTokenExpired)
	require.False(t, m.IsLoggedIn())
	require.False(t, store.HasToken())
}

func TestMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":"1","email":"d@example.com"}}`))
	}))
	defer srv.Close()

	m := NewManager(srv.URL, newTokenStore(t), nil)
	require.ErrorIs(t, m.Login(context.Background(), "d@example.com", "pw"), ErrMissingAccessToken)
	require.False(t, m.IsLoggedIn())
}
