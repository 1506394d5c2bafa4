package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechEagle-Innovations/skyops-go/api"
	"github.com/TechEagle-Innovations/skyops-go/apierror"
	"github.com/TechEagle-Innovations/skyops-go/auth"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func validToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
}

func expiredToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
}

// fixture wires a controller against a real token service, an in-memory
// store, and a backend test server.
type fixture struct {
	store *auth.MemoryStore
	ctrl  *Controller
}

func newFixture(t *testing.T, serverURL string) *fixture {
	t.Helper()

	retryClient, err := retry.NewClient()
	require.NoError(t, err)

	store := auth.NewMemoryStore()
	tokens := auth.NewTokenService(
		store,
		serverURL+"/user/refresh-token",
		retryClient,
		5*time.Second,
		zerolog.Nop(),
	)

	logger := zerolog.Nop()
	client, err := api.New(api.Config{
		BaseURL:    serverURL,
		HTTPClient: retryClient,
		Tokens:     tokens,
		Logger:     &logger,
	})
	require.NoError(t, err)

	return &fixture{
		store: store,
		ctrl:  NewController(tokens, client, zerolog.Nop()),
	}
}

// backend builds a test server handling refresh and logout.
func backend(t *testing.T, refreshCalls *atomic.Int32, refreshStatus int, refreshResp auth.AuthResponse) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		if refreshStatus != http.StatusOK {
			w.WriteHeader(refreshStatus)
			json.NewEncoder(w).Encode(map[string]string{"message": "refresh token revoked"})
			return
		}
		json.NewEncoder(w).Encode(refreshResp)
	})
	mux.HandleFunc("/user/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestBootstrap_NoStoredTokens(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{})

	f := newFixture(t, server.URL)

	var notified []State
	f.ctrl.Subscribe(func(st State) { notified = append(notified, st) })

	assert.True(t, f.ctrl.State().IsLoading)

	f.ctrl.Bootstrap(context.Background())

	st := f.ctrl.State()
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Equal(t, int32(0), refreshCalls.Load())
	require.Len(t, notified, 1, "settling out of bootstrap must notify once")
	assert.False(t, notified[0].IsAuthenticated)
}

func TestBootstrap_ValidTokenFromStorage(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{})

	f := newFixture(t, server.URL)
	access := validToken(t)
	require.NoError(t, f.store.Save(
		auth.TokenPair{AccessToken: access, RefreshToken: "refresh-1"},
		&auth.User{ID: "u1", Email: "pilot@example.com"},
	))

	f.ctrl.Bootstrap(context.Background())

	st := f.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, access, st.AccessToken)
	assert.Equal(t, "refresh-1", st.RefreshToken)
	require.NotNil(t, st.User)
	assert.Equal(t, "pilot@example.com", st.User.Email)
	assert.Equal(t, int32(0), refreshCalls.Load(), "a valid token settles without any network call")
}

func TestBootstrap_ValidTokenProfileFromClaim(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{})

	f := newFixture(t, server.URL)
	access := signToken(t, jwt.MapClaims{
		"exp":  time.Now().Add(time.Hour).Unix(),
		"user": map[string]any{"id": "u1", "email": "claim@example.com"},
	})
	// Tokens persisted without a profile, as older stores were.
	require.NoError(t, f.store.Save(
		auth.TokenPair{AccessToken: access, RefreshToken: "refresh-1"}, nil,
	))

	f.ctrl.Bootstrap(context.Background())

	st := f.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, "claim@example.com", st.User.Email)
	assert.Equal(t, int32(0), refreshCalls.Load())
}

func TestBootstrap_ExpiredTokenRefreshes(t *testing.T) {
	newAccess := validToken(t)
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{
		AccessToken:  newAccess,
		RefreshToken: "refresh-2",
		User:         &auth.User{ID: "u1", Email: "pilot@example.com"},
	})

	f := newFixture(t, server.URL)
	require.NoError(t, f.store.Save(
		auth.TokenPair{AccessToken: expiredToken(t), RefreshToken: "refresh-1"}, nil,
	))

	f.ctrl.Bootstrap(context.Background())

	st := f.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, newAccess, st.AccessToken)
	assert.Equal(t, "refresh-2", st.RefreshToken)
	assert.Equal(t, int32(1), refreshCalls.Load())

	// The refreshed pair is persisted.
	assert.Equal(t, newAccess, f.store.Load().AccessToken)
}

func TestBootstrap_RefreshFailureSettlesUnauthenticated(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusBadRequest, auth.AuthResponse{})

	f := newFixture(t, server.URL)
	require.NoError(t, f.store.Save(
		auth.TokenPair{AccessToken: expiredToken(t), RefreshToken: "refresh-1"},
		&auth.User{ID: "u1"},
	))

	f.ctrl.Bootstrap(context.Background())

	st := f.ctrl.State()
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.User)
	assert.True(t, f.store.Load().IsZero(), "failed refresh clears storage")
}

func TestBootstrap_RefreshWithoutProfileSettlesUnauthenticated(t *testing.T) {
	// The refresh succeeds but yields no profile from any source: the
	// response omits the user object, nothing is stored, and the new access
	// token carries no user claim. An authenticated state without an
	// operator is not representable, so the session is discarded.
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{
		AccessToken:  validToken(t),
		RefreshToken: "refresh-2",
	})

	f := newFixture(t, server.URL)
	require.NoError(t, f.store.Save(
		auth.TokenPair{AccessToken: expiredToken(t), RefreshToken: "refresh-1"}, nil,
	))

	f.ctrl.Bootstrap(context.Background())

	st := f.ctrl.State()
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.User)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.True(t, f.store.Load().IsZero(), "an unusable refreshed session must not be persisted")
}

func TestRefreshAuth_NoProfileForcesLogout(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{
		AccessToken:  validToken(t),
		RefreshToken: "refresh-2",
	})

	f := newFixture(t, server.URL)
	require.NoError(t, f.store.Save(
		auth.TokenPair{AccessToken: validToken(t), RefreshToken: "refresh-1"}, nil,
	))

	err := f.ctrl.RefreshAuth(context.Background())
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindRefresh))

	assert.False(t, f.ctrl.State().IsAuthenticated)
	assert.True(t, f.store.Load().IsZero())
}

func TestLogin(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{})

	f := newFixture(t, server.URL)
	f.ctrl.Bootstrap(context.Background())

	var notified []State
	f.ctrl.Subscribe(func(st State) { notified = append(notified, st) })

	resp := auth.AuthResponse{
		AccessToken:  validToken(t),
		RefreshToken: "refresh-1",
		User:         &auth.User{ID: "u1", Email: "pilot@example.com"},
	}
	require.NoError(t, f.ctrl.Login(context.Background(), resp))

	st := f.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "pilot@example.com", st.User.Email)

	// Credentials are persisted through the store.
	assert.Equal(t, resp.AccessToken, f.store.Load().AccessToken)
	require.NotNil(t, f.store.LoadUser())

	require.Len(t, notified, 1)
	assert.True(t, notified[0].IsAuthenticated)
}

func TestLogin_RejectsIncompleteResponse(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{})

	f := newFixture(t, server.URL)
	f.ctrl.Bootstrap(context.Background())

	tests := []struct {
		name string
		resp auth.AuthResponse
	}{
		{name: "missing refresh token", resp: auth.AuthResponse{
			AccessToken: validToken(t),
			User:        &auth.User{ID: "u1"},
		}},
		{name: "missing user", resp: auth.AuthResponse{
			AccessToken:  validToken(t),
			RefreshToken: "refresh-1",
		}},
		{name: "empty", resp: auth.AuthResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ctrl.Login(context.Background(), tt.resp)
			require.Error(t, err)
			assert.True(t, apierror.IsKind(err, apierror.KindValidation))
			assert.False(t, f.ctrl.State().IsAuthenticated)
			assert.True(t, f.store.Load().IsZero(), "rejected login must not persist anything")
		})
	}
}

func TestLogout_RemoteFailureStillClears(t *testing.T) {
	// Backend rejects both refresh and logout.
	mux := http.NewServeMux()
	mux.HandleFunc("/user/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("/user/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newFixture(t, server.URL)
	require.NoError(t, f.ctrl.Login(context.Background(), auth.AuthResponse{
		AccessToken:  validToken(t),
		RefreshToken: "refresh-1",
		User:         &auth.User{ID: "u1", Email: "pilot@example.com"},
	}))

	var notified []State
	f.ctrl.Subscribe(func(st State) { notified = append(notified, st) })

	f.ctrl.Logout(context.Background())

	st := f.ctrl.State()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.True(t, f.store.Load().IsZero())
	require.Len(t, notified, 1)
	assert.False(t, notified[0].IsAuthenticated)
}

func TestRefreshAuth_SilentOnSuccess(t *testing.T) {
	newAccess := validToken(t)
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{
		AccessToken:  newAccess,
		RefreshToken: "refresh-2",
	})

	f := newFixture(t, server.URL)
	require.NoError(t, f.ctrl.Login(context.Background(), auth.AuthResponse{
		AccessToken:  validToken(t),
		RefreshToken: "refresh-1",
		User:         &auth.User{ID: "u1", Email: "pilot@example.com"},
	}))

	var notifications int
	f.ctrl.Subscribe(func(State) { notifications++ })

	require.NoError(t, f.ctrl.RefreshAuth(context.Background()))

	st := f.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, newAccess, st.AccessToken)
	require.NotNil(t, st.User, "profile survives a refresh that omits the user object")
	assert.Equal(t, "pilot@example.com", st.User.Email)
	assert.Equal(t, 0, notifications, "a silent refresh is not an externally visible transition")
}

func TestRefreshAuth_FailureForcesLogout(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusBadRequest, auth.AuthResponse{})

	f := newFixture(t, server.URL)
	require.NoError(t, f.ctrl.Login(context.Background(), auth.AuthResponse{
		AccessToken:  validToken(t),
		RefreshToken: "refresh-1",
		User:         &auth.User{ID: "u1"},
	}))

	var notified []State
	f.ctrl.Subscribe(func(st State) { notified = append(notified, st) })

	err := f.ctrl.RefreshAuth(context.Background())
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindRefresh))

	assert.False(t, f.ctrl.State().IsAuthenticated)
	assert.True(t, f.store.Load().IsZero())
	require.Len(t, notified, 1)
	assert.False(t, notified[0].IsAuthenticated)
}

func TestSubscribe_CancelStopsNotifications(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{})

	f := newFixture(t, server.URL)

	var notifications int
	cancel := f.ctrl.Subscribe(func(State) { notifications++ })
	cancel()

	f.ctrl.Bootstrap(context.Background())
	assert.Equal(t, 0, notifications)
}

func TestState_SnapshotIsolated(t *testing.T) {
	var refreshCalls atomic.Int32
	server := backend(t, &refreshCalls, http.StatusOK, auth.AuthResponse{})

	f := newFixture(t, server.URL)
	require.NoError(t, f.ctrl.Login(context.Background(), auth.AuthResponse{
		AccessToken:  validToken(t),
		RefreshToken: "refresh-1",
		User:         &auth.User{ID: "u1", Email: "pilot@example.com"},
	}))

	st := f.ctrl.State()
	st.User.Email = "mutated@example.com"

	assert.Equal(t, "pilot@example.com", f.ctrl.State().User.Email,
		"snapshots must not alias controller state")
}
