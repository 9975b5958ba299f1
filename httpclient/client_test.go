package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/tramcan-session/httpclient"
	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type mutableSource struct {
	token atomic.Value
}

func newSource(tok string) *mutableSource {
	s := &mutableSource{}
	s.token.Store(tok)
	return s
}

func (s *mutableSource) set(tok string) { s.token.Store(tok) }

func (s *mutableSource) Token() (*oauth2.Token, error) {
	tok := s.token.Load().(string)
	if tok == "" {
		return nil, interrors.ErrNoToken
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

type testFixture struct {
	server  *httptest.Server
	hits    atomic.Int32
	headers chan http.Header
	status  func(n int32, r *http.Request) int
}

func newFixture(t *testing.T, status func(n int32, r *http.Request) int) *testFixture {
	t.Helper()
	f := &testFixture{status: status, headers: make(chan http.Header, 8)}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.hits.Add(1)
		select {
		case f.headers <- r.Header.Clone():
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status(n, r))
		_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *testFixture) client(t *testing.T, tokens httpclient.Tokens, options ...httpclient.Option) *httpclient.Client {
	t.Helper()
	options = append([]httpclient.Option{httpclient.WithLogger(zerolog.Nop())}, options...)
	client, err := httpclient.New(f.server.URL, tokens, options...)
	require.NoError(t, err)
	return client
}

func always(code int) func(int32, *http.Request) int {
	return func(int32, *http.Request) int { return code }
}

func TestDo_InjectsScopedBearer(t *testing.T) {
	f := newFixture(t, always(http.StatusOK))
	session := newSource("sess-1")
	generic := newSource("gen-1")
	client := f.client(t, httpclient.Tokens{Generic: generic, Session: session, StationUser: session})

	resp, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeSession, Method: http.MethodGet, Path: "/tramcan/my-stations"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := <-f.headers
	require.Equal(t, "Bearer sess-1", h.Get("Authorization"))
	require.NotEmpty(t, h.Get(httpclient.HeaderRequestID))
	require.Equal(t, resp.RequestID, h.Get(httpclient.HeaderRequestID))

	// The token is read live on every request.
	session.set("sess-2")
	_, err = client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeSession, Method: http.MethodGet, Path: "/tramcan/my-stations"})
	require.NoError(t, err)
	require.Equal(t, "Bearer sess-2", (<-f.headers).Get("Authorization"))

	_, err = client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopePublic, Method: http.MethodPost, Path: "/tramcan/auth/login", Body: map[string]string{"a": "b"}})
	require.NoError(t, err)
	h = <-f.headers
	require.Empty(t, h.Get("Authorization"))
	require.Equal(t, "application/json", h.Get("Content-Type"))

	_, err = client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeSession, Method: http.MethodPost, Path: "/tramcan/select-station", Token: "explicit"})
	require.NoError(t, err)
	require.Equal(t, "Bearer explicit", (<-f.headers).Get("Authorization"))
}

func TestDo_MissingTokenFailsFast(t *testing.T) {
	f := newFixture(t, always(http.StatusOK))
	client := f.client(t, httpclient.Tokens{Generic: newSource(""), Session: newSource("")})

	_, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeGeneric, Method: http.MethodGet, Path: "/auth/validate"})
	require.ErrorIs(t, err, interrors.ErrNoToken)
	_, err = client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeStationUser, Method: http.MethodGet, Path: "/x"})
	require.ErrorIs(t, err, interrors.ErrNoToken)
	require.Equal(t, int32(0), f.hits.Load())
}

func TestDo_OneShotUnauthorizedGuard(t *testing.T) {
	t.Run("handler that never re-sends", func(t *testing.T) {
		f := newFixture(t, always(http.StatusUnauthorized))
		generic := newSource("gen-1")
		var calls atomic.Int32
		client := f.client(t, httpclient.Tokens{Generic: generic})
		client.SetUnauthorizedHandler(func(ctx context.Context, u httpclient.Unauthorized) bool {
			calls.Add(1)
			require.Equal(t, httpclient.ScopeGeneric, u.Scope)
			require.Equal(t, "gen-1", u.Token)
			require.NotEmpty(t, u.RequestID)
			generic.set("")
			return false
		})

		_, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeGeneric, Method: http.MethodGet, Path: "/items"})
		require.ErrorIs(t, err, interrors.ErrUnauthorized)
		require.Equal(t, int32(1), f.hits.Load())
		require.Equal(t, int32(1), calls.Load())

		// Next call fails fast without a second round trip.
		_, err = client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeGeneric, Method: http.MethodGet, Path: "/items"})
		require.ErrorIs(t, err, interrors.ErrNoToken)
		require.Equal(t, int32(1), f.hits.Load())
	})

	t.Run("two consecutive 401s are retried at most once", func(t *testing.T) {
		f := newFixture(t, always(http.StatusUnauthorized))
		session := newSource("tok-a")
		next := []string{"tok-b", "tok-c", "tok-d"}
		client := f.client(t, httpclient.Tokens{Session: session}, httpclient.WithUnauthorizedHandler(
			func(ctx context.Context, u httpclient.Unauthorized) bool {
				session.set(next[0])
				next = next[1:]
				return true
			}))

		_, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeSession, Method: http.MethodGet, Path: "/tramcan/my-stations"})
		require.ErrorIs(t, err, interrors.ErrUnauthorized)
		require.Equal(t, int32(2), f.hits.Load())
	})

	t.Run("re-send succeeds with a new token", func(t *testing.T) {
		f := newFixture(t, func(n int32, r *http.Request) int {
			if r.Header.Get("Authorization") == "Bearer fresh" {
				return http.StatusOK
			}
			return http.StatusUnauthorized
		})
		session := newSource("stale")
		client := f.client(t, httpclient.Tokens{Session: session}, httpclient.WithUnauthorizedHandler(
			func(ctx context.Context, u httpclient.Unauthorized) bool {
				session.set("fresh")
				return true
			}))

		resp, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeSession, Method: http.MethodGet, Path: "/x"})
		require.NoError(t, err)
		require.Equal(t, 2, resp.Attempts)
	})

	t.Run("handler sees the token each attempt was sent with", func(t *testing.T) {
		f := newFixture(t, always(http.StatusUnauthorized))
		session := newSource("old")
		var seen []string
		client := f.client(t, httpclient.Tokens{Session: session}, httpclient.WithUnauthorizedHandler(
			func(ctx context.Context, u httpclient.Unauthorized) bool {
				seen = append(seen, u.Token)
				session.set("new")
				return true
			}))

		_, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeSession, Method: http.MethodGet, Path: "/x"})
		require.ErrorIs(t, err, interrors.ErrUnauthorized)
		require.Equal(t, []string{"old", "new"}, seen)
	})

	t.Run("re-send with unchanged token is refused", func(t *testing.T) {
		f := newFixture(t, always(http.StatusUnauthorized))
		client := f.client(t, httpclient.Tokens{Session: newSource("same")}, httpclient.WithUnauthorizedHandler(
			func(ctx context.Context, u httpclient.Unauthorized) bool { return true }))

		_, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopeSession, Method: http.MethodGet, Path: "/x"})
		require.ErrorIs(t, err, interrors.ErrUnauthorized)
		require.Equal(t, int32(1), f.hits.Load())
	})
}

func TestDo_OtherStatusesPropagate(t *testing.T) {
	f := newFixture(t, always(http.StatusInternalServerError))
	client := f.client(t, httpclient.Tokens{})

	resp, err := client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopePublic, Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, 1, resp.Attempts)
	require.Equal(t, int32(1), f.hits.Load())
}

func TestDo_TimeoutIsUnreachable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client, err := httpclient.New(server.URL, httpclient.Tokens{},
		httpclient.WithLogger(zerolog.Nop()), httpclient.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Do(context.Background(), httpclient.Call{Scope: httpclient.ScopePublic, Method: http.MethodGet, Path: "/slow"})
	require.ErrorIs(t, err, interrors.ErrUnreachable)
}

func TestDo_CanceledContext(t *testing.T) {
	f := newFixture(t, always(http.StatusOK))
	client := f.client(t, httpclient.Tokens{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, httpclient.Call{Scope: httpclient.ScopePublic, Method: http.MethodGet, Path: "/x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := httpclient.New("", httpclient.Tokens{})
	require.Error(t, err)
}
