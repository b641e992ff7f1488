package profiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garlicnation/commontags"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetProfile(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/danthareja", r.URL.Path)
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"danthareja","name":"Dan Thareja","avatar_url":"https://avatars.githubusercontent.com/u/6980359?v=3"}`))
	})

	c := New(Options{BaseURL: srv.URL, Token: "secret"})
	p, err := c.GetProfile(context.Background(), "danthareja")
	require.NoError(t, err)
	require.Equal(t, commontags.Profile{
		Handle:      "danthareja",
		DisplayName: "Dan Thareja",
		AvatarURL:   "https://avatars.githubusercontent.com/u/6980359?v=3",
	}, p)
}

func TestGetProfileEscapesHandle(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"login":"a/b","avatar_url":"x"}`))
	})
	_, err := New(Options{BaseURL: srv.URL}).GetProfile(context.Background(), "a/b")
	require.NoError(t, err)
}

func TestGetProfileNotFound(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := New(Options{BaseURL: srv.URL}).GetProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, ErrNotFound, errors.Cause(err))
}

func TestGetProfileRateLimited(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := New(Options{BaseURL: srv.URL}).GetProfile(context.Background(), "alice")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestGetProfileUnexpectedStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	_, err := New(Options{BaseURL: srv.URL}).GetProfile(context.Background(), "alice")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.Equal(t, "upstream down", statusErr.Body)
}

func TestGetProfileEmptyHandle(t *testing.T) {
	var hits int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	_, err := New(Options{BaseURL: srv.URL}).GetProfile(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyHandle)
	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestGetProfileHonoursContext(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Options{BaseURL: srv.URL}).GetProfile(ctx, "alice")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetProfileRateLimiterWaits(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"login":"alice","avatar_url":"x"}`))
	})
	c := New(Options{BaseURL: srv.URL, RateLimit: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.GetProfile(context.Background(), "alice")
		require.NoError(t, err)
	}
	// Burst of one: the second and third calls wait ~50ms each.
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
