// Package session holds the process-wide authentication state machine:
// bootstrapping on startup, then authenticated or unauthenticated, moved
// between by explicit login/logout and silent refresh. The routing layer
// observes state transitions through subscriptions; IsAuthenticated is the
// sole signal it consumes.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/TechEagle-Innovations/skyops-go/account"
	"github.com/TechEagle-Innovations/skyops-go/api"
	"github.com/TechEagle-Innovations/skyops-go/apierror"
	"github.com/TechEagle-Innovations/skyops-go/auth"
)

// State is a snapshot of the session.
//
// Invariant: IsAuthenticated implies User, AccessToken and RefreshToken
// are all set; !IsAuthenticated implies all three are empty. IsLoading is
// true only while the startup bootstrap is still deciding.
type State struct {
	IsAuthenticated bool
	User            *auth.User
	AccessToken     string
	RefreshToken    string
	IsLoading       bool
}

// Controller drives session state. All credential mutation goes through
// the TokenService (and thus the credential store); the controller never
// writes tokens itself.
type Controller struct {
	tokens *auth.TokenService
	client *api.Client
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewController creates a Controller in the bootstrapping state. client is
// used only for the best-effort remote logout call.
func NewController(tokens *auth.TokenService, client *api.Client, logger zerolog.Logger) *Controller {
	return &Controller{
		tokens: tokens,
		client: client,
		logger: logger,
		state:  State{IsLoading: true},
		subs:   make(map[int]func(State)),
	}
}

// State returns a snapshot of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to be called with a state snapshot on every
// settled transition (bootstrap decision, login, logout, forced logout).
// Silent refreshes that keep the session authenticated are not externally
// visible transitions and do not notify. The returned function cancels the
// subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Bootstrap decides the initial session state from persisted credentials:
// absent tokens settle unauthenticated; a valid access token settles
// authenticated from storage; an expired one goes through a silent
// refresh, whose failure settles unauthenticated with storage cleared.
func (c *Controller) Bootstrap(ctx context.Context) {
	pair := c.tokens.Tokens()
	if !pair.Complete() {
		c.settleUnauthenticated()
		return
	}

	if !auth.IsExpired(pair.AccessToken) {
		// The profile persisted by the most recent login/refresh is the
		// source of truth; the token's embedded user claim only covers
		// stores written before profiles were persisted.
		user := c.tokens.Profile()
		if user == nil {
			user = auth.UserClaim(pair.AccessToken)
		}
		if user != nil {
			c.settleAuthenticated(pair, user)
			return
		}
		c.logger.Warn().Msg("stored session carries no usable profile, refreshing")
	}

	resp, err := c.tokens.Refresh(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("silent refresh failed during bootstrap")
		c.settleUnauthenticated()
		return
	}

	user := c.profileFor(resp)
	if user == nil {
		c.logger.Warn().Msg("refreshed session carries no usable profile, discarding it")
		c.tokens.ClearSession()
		c.settleUnauthenticated()
		return
	}
	c.settleAuthenticated(resp.Pair(), user)
}

// Login persists the credentials from a successful login response and
// transitions to authenticated. Only the structural shape of the response
// is checked; the server's word is otherwise taken as-is.
func (c *Controller) Login(ctx context.Context, resp auth.AuthResponse) error {
	if !resp.Pair().Complete() || resp.User == nil {
		return &apierror.Error{
			Kind:    apierror.KindValidation,
			Message: apierror.MsgGeneric,
		}
	}

	// Persist before exposing the authenticated state, so any observer
	// reading storage after a notification sees the new pair.
	c.tokens.SaveSession(resp)
	c.settleAuthenticated(resp.Pair(), resp.User)
	return nil
}

// Logout invalidates the session server-side (best effort), clears all
// persisted credentials, and transitions to unauthenticated. The
// transition happens unconditionally: neither a failed remote call nor a
// failed storage delete keeps the session alive.
func (c *Controller) Logout(ctx context.Context) {
	if c.client != nil {
		if err := c.client.Post(ctx, account.LogoutPath, nil, nil); err != nil {
			c.logger.Warn().Err(err).Msg("remote logout failed")
		}
	}

	c.tokens.ClearSession()
	c.settleUnauthenticated()
}

// RefreshAuth refreshes the session in place. On success the session stays
// authenticated with the fresh pair (no externally visible transition); on
// failure the session is forced unauthenticated — storage has already been
// cleared by the refresh — and the error is returned.
func (c *Controller) RefreshAuth(ctx context.Context) error {
	resp, err := c.tokens.Refresh(ctx)
	if err != nil {
		c.settleUnauthenticated()
		return err
	}

	user := c.profileFor(resp)
	if user == nil {
		c.logger.Warn().Msg("refreshed session carries no usable profile, discarding it")
		c.tokens.ClearSession()
		c.settleUnauthenticated()
		return &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: apierror.MsgGeneric,
			Cause:   errors.New("refresh response carries no operator profile"),
		}
	}

	c.settleAuthenticated(resp.Pair(), user)
	return nil
}

// profileFor resolves the operator profile for a refresh response, which
// may omit the user object. The profile persisted by the last login or
// refresh wins; the token's embedded claim is the final fallback.
func (c *Controller) profileFor(resp auth.AuthResponse) *auth.User {
	if resp.User != nil {
		return resp.User
	}
	if user := c.tokens.Profile(); user != nil {
		return user
	}
	return auth.UserClaim(resp.AccessToken)
}

func (c *Controller) settleAuthenticated(pair auth.TokenPair, user *auth.User) {
	c.setState(State{
		IsAuthenticated: true,
		User:            user,
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
	})
}

func (c *Controller) settleUnauthenticated() {
	c.setState(State{})
}

// setState applies the new state and notifies subscribers when the
// externally visible signal (authenticated flag or loading flag) changed.
// Subscribers run outside the lock with a value snapshot.
func (c *Controller) setState(next State) {
	c.mu.Lock()
	visible := next.IsAuthenticated != c.state.IsAuthenticated ||
		next.IsLoading != c.state.IsLoading
	c.state = next

	var fns []func(State)
	var snapshot State
	if visible {
		fns = make([]func(State), 0, len(c.subs))
		for _, fn := range c.subs {
			fns = append(fns, fn)
		}
		snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (c *Controller) snapshotLocked() State {
	snapshot := c.state
	if snapshot.User != nil {
		u := *snapshot.User
		snapshot.User = &u
	}
	return snapshot
}
