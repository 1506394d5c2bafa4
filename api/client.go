// Package api provides the authenticated JSON client for the operations
// backend. It attaches the current bearer token to every request, maps all
// failures into the normalized apierror shape, and transparently performs
// one refresh-and-retry cycle when a request is rejected with 401.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TechEagle-Innovations/skyops-go/apierror"
	"github.com/TechEagle-Innovations/skyops-go/auth"
)

// DefaultTimeout bounds each request when the config does not override it.
const DefaultTimeout = 10 * time.Second

// TokenProvider supplies the bearer token for outgoing requests and the
// refresh operation for the 401 retry protocol. AccessToken must read the
// current persisted token on every call rather than a cached copy, so a
// retry after refresh picks up the new pair.
type TokenProvider interface {
	AccessToken() string
	Refresh(ctx context.Context) (auth.AuthResponse, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://ops.example.com".
	BaseURL string
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Headers are sent with every request. Defaults to JSON content
	// negotiation headers when nil.
	Headers map[string]string
	// HTTPClient is the underlying transport. Built via NewHTTPClient
	// when nil.
	HTTPClient *retry.Client
	// Tokens supplies bearer tokens and refresh. When nil the client
	// issues unauthenticated requests and surfaces 401s directly.
	Tokens TokenProvider
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Client is the JSON API client.
type Client struct {
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	httpClient *retry.Client
	tokens     TokenProvider
	logger     zerolog.Logger
}

// NewHTTPClient builds the retrying HTTP client used for all API traffic.
func NewHTTPClient() (*retry.Client, error) {
	base := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}
	return retry.NewBackgroundClient(retry.WithHTTPClient(base))
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = NewHTTPClient()
		if err != nil {
			return nil, fmt.Errorf("api: failed to create HTTP client: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := cfg.Headers
	if headers == nil {
		headers = map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		headers:    headers,
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		logger:     logger,
	}, nil
}

// Get issues a GET and decodes the JSON response into out (ignored when
// out is nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.request(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with the JSON-encoded body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.request(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with the JSON-encoded body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.request(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.request(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &apierror.Error{
				Kind:    apierror.KindValidation,
				Message: apierror.MsgGeneric,
				Cause:   fmt.Errorf("failed to encode request body: %w", err),
			}
		}
	}
	return c.do(ctx, method, path, payload, out, false)
}

// do executes one request. When a 401 comes back on a request not already
// marked as a retry, it triggers exactly one refresh through the token
// provider and reissues the request once with the new token. The retried
// request is marked so a second 401 surfaces as unauthorized instead of
// looping.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	payload []byte,
	out any,
	retried bool,
) error {
	fullURL := c.joinURL(path)
	requestID := uuid.NewString()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, bodyReader)
	if err != nil {
		return &apierror.Error{
			Kind:    apierror.KindGeneric,
			Message: apierror.MsgGeneric,
			Cause:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", requestID)

	// The token is read from storage on every attempt, so the retry after
	// a refresh automatically carries the new pair.
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", fullURL).
		Str("request_id", requestID).
		Bool("retry", retried).
		Msg("issuing API request")

	resp, err := c.httpClient.DoWithContext(reqCtx, req)
	if err != nil {
		return apierror.Network(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierror.Network(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized && !retried && c.tokens != nil {
		c.logger.Debug().
			Str("url", fullURL).
			Str("request_id", requestID).
			Msg("access token rejected, refreshing")

		if _, refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
			return apierror.Unauthorized(refreshErr)
		}
		return c.do(ctx, method, path, payload, out, true)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &apierror.Error{
				Kind:    apierror.KindGeneric,
				Message: apierror.MsgGeneric,
				Cause:   fmt.Errorf("failed to parse response: %w", err),
			}
		}
	}

	return nil
}

// joinURL joins the base URL and path with exactly one slash between them.
func (c *Client) joinURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// errorFromResponse maps a non-2xx response into the normalized error
// shape: the server's own message when the body parses, otherwise a
// fallback keyed by status-code class.
func errorFromResponse(status int, body []byte) error {
	apiErr := &apierror.Error{
		Kind:    apierror.KindForStatus(status),
		Message: apierror.MessageForStatus(status),
		Code:    strconv.Itoa(status),
	}

	var errBody struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Details any    `json:"details"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil {
		if errBody.Message != "" {
			apiErr.Message = errBody.Message
		}
		if errBody.Code != "" {
			apiErr.Code = errBody.Code
		}
		apiErr.Details = errBody.Details
	}

	return apiErr
}
