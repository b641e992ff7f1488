package tagger

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garlicnation/commontags"
)

func newTokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		id, secret, ok := r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !ok {
			id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
		}
		if id != "client" || secret != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":3600}`, atomic.LoadInt32(calls))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthenticate(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	a := NewAuthenticator(srv.URL, "client", "secret", nil, srv.Client())
	tok, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, commontags.Token("tok-1"), tok)
}

func TestAuthenticateRequestsFreshTokenEachCall(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	a := NewAuthenticator(srv.URL, "client", "secret", nil, nil)
	first, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	second, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestAuthenticateBadCredentials(t *testing.T) {
	var calls int32
	srv := newTokenServer(t, &calls)

	a := NewAuthenticator(srv.URL, "client", "nope", nil, nil)
	_, err := a.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}
