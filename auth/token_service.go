package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/TechEagle-Innovations/skyops-go/apierror"
)

// ErrNoRefreshToken indicates that a refresh was requested with no refresh
// token in storage.
var ErrNoRefreshToken = errors.New("no refresh token available")

// refreshFlightKey is the singleflight key; there is exactly one logical
// refresh operation per process.
const refreshFlightKey = "refresh"

// TokenService owns the persisted credential pair and the refresh
// operation against the remote API.
//
// Concurrent Refresh calls are collapsed into a single network call:
// every caller that arrives while a refresh is in flight is parked on the
// same operation and receives its outcome. The in-flight handle is
// released when the operation settles, success or failure, so the next
// burst starts a fresh attempt.
type TokenService struct {
	store      Store
	refreshURL string
	httpClient *retry.Client
	timeout    time.Duration
	logger     zerolog.Logger

	flight singleflight.Group
}

// NewTokenService creates a TokenService refreshing against refreshURL
// (the full URL of the refresh-token endpoint). The timeout bounds each
// refresh request; there is no separate refresh deadline beyond it.
func NewTokenService(
	store Store,
	refreshURL string,
	httpClient *retry.Client,
	timeout time.Duration,
	logger zerolog.Logger,
) *TokenService {
	return &TokenService{
		store:      store,
		refreshURL: refreshURL,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}
}

// Tokens returns the currently persisted pair, reading storage directly so
// callers always observe the latest refresh outcome.
func (s *TokenService) Tokens() TokenPair {
	return s.store.Load()
}

// AccessToken returns the persisted access token, or "" when none is
// stored.
func (s *TokenService) AccessToken() string {
	return s.store.Load().AccessToken
}

// Profile returns the persisted operator profile, or nil when none is
// stored.
func (s *TokenService) Profile() *User {
	return s.store.LoadUser()
}

// SaveSession persists the token pair and profile from a login or refresh
// response. Storage failures are logged, not escalated: the session stays
// usable in memory for the rest of the process lifetime.
func (s *TokenService) SaveSession(resp AuthResponse) {
	if err := s.store.Save(resp.Pair(), resp.User); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist session credentials")
	}
}

// ClearSession removes all persisted credentials.
func (s *TokenService) ClearSession() {
	s.store.Clear()
}

// Refresh exchanges the stored refresh token for a new pair.
//
// Single-flight: if a refresh is already in flight, the caller joins it
// and receives the same outcome rather than issuing another network call.
// On success the new pair (and profile, when returned) is persisted before
// Refresh returns. On failure all persisted credentials are cleared — a
// failed refresh must not leave stale tokens behind.
func (s *TokenService) Refresh(ctx context.Context) (AuthResponse, error) {
	v, err, _ := s.flight.Do(refreshFlightKey, func() (any, error) {
		return s.doRefresh(ctx)
	})
	if err != nil {
		return AuthResponse{}, err
	}
	return v.(AuthResponse), nil
}

func (s *TokenService) doRefresh(ctx context.Context) (AuthResponse, error) {
	pair := s.store.Load()
	if pair.RefreshToken == "" {
		s.store.Clear()
		return AuthResponse{}, &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: "No refresh token available.",
			Cause:   ErrNoRefreshToken,
		}
	}

	resp, err := s.callRefreshEndpoint(ctx, pair.RefreshToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("token refresh failed, clearing credentials")
		s.store.Clear()
		return AuthResponse{}, err
	}

	// Some deployments rotate the refresh token on every refresh, others
	// keep it fixed and omit it from the response. Preserve the old one in
	// the latter case so the pair is never persisted half-empty.
	if resp.RefreshToken == "" {
		resp.RefreshToken = pair.RefreshToken
	}

	s.SaveSession(resp)
	return resp, nil
}

// callRefreshEndpoint performs the actual network exchange. The request is
// detached from the caller's cancellation: once a refresh is issued it
// runs to completion or failure, bounded only by the configured timeout,
// because its outcome is shared with every parked caller.
func (s *TokenService) callRefreshEndpoint(
	ctx context.Context,
	refreshToken string,
) (AuthResponse, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		reqCtx,
		http.MethodPost,
		s.refreshURL,
		bytes.NewReader([]byte("{}")),
	)
	if err != nil {
		return AuthResponse{}, &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: apierror.MsgGeneric,
			Cause:   fmt.Errorf("failed to create refresh request: %w", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	httpResp, err := s.httpClient.DoWithContext(reqCtx, req)
	if err != nil {
		return AuthResponse{}, &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: apierror.MsgNetwork,
			Cause:   fmt.Errorf("refresh request failed: %w", err),
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return AuthResponse{}, &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: apierror.MsgGeneric,
			Cause:   fmt.Errorf("failed to read refresh response: %w", err),
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		message := apierror.MessageForStatus(httpResp.StatusCode)
		var errBody struct {
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &errBody); jsonErr == nil && errBody.Message != "" {
			message = errBody.Message
		}
		return AuthResponse{}, &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: message,
			Code:    strconv.Itoa(httpResp.StatusCode),
			Cause:   fmt.Errorf("refresh rejected with status %d", httpResp.StatusCode),
		}
	}

	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return AuthResponse{}, &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: apierror.MsgGeneric,
			Cause:   fmt.Errorf("failed to parse refresh response: %w", err),
		}
	}
	if resp.AccessToken == "" {
		return AuthResponse{}, &apierror.Error{
			Kind:    apierror.KindRefresh,
			Message: apierror.MsgGeneric,
			Cause:   errors.New("refresh response carries no access token"),
		}
	}

	return resp, nil
}
