// Package ehr is the authenticated client for the remote EHR API. It owns
// the token lifecycle: bearer attachment on every call, and a single-flight
// refresh-and-retry protocol when the remote answers 401.
package ehr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/chartview/chartview/internal/platform/token"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the remote resource root, e.g. "https://ehr.example.com/fhir".
	BaseURL string
	// TokenURL is the OAuth2-style token exchange endpoint.
	TokenURL string
	// ClientID and ClientSecret are sent on grant exchanges when set.
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Logger       zerolog.Logger
}

// Client issues requests against the remote EHR. It is safe for concurrent
// use and holds no per-user state; sessions carry that.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client
	log          zerolog.Logger
}

func NewClient(opts Options) *Client {
	// Transient network errors and 5xx answers are retried at the transport
	// level. 401 is never retried here — that is the refresh protocol's job.
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}

	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		tokenURL:     opts.TokenURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		http:         rc.StandardClient(),
		log:          opts.Logger,
	}
}

// TokenResponse is the remote token endpoint's answer to a grant exchange.
// Raw preserves the exact body so login can relay it unmodified.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Pair returns the response's token pair.
func (t *TokenResponse) Pair() token.Pair {
	return token.Pair{Access: t.AccessToken, Refresh: t.RefreshToken}
}

// PasswordGrant exchanges user credentials for a token pair.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	return c.exchange(ctx, form)
}

// RefreshGrant exchanges a refresh token for a new pair.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.exchange(ctx, form)
}

func (c *Client) exchange(ctx context.Context, form url.Values) (*TokenResponse, error) {
	if c.clientID != "" {
		form.Set("client_id", c.clientID)
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp.StatusCode, body)
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	tr.Raw = body
	return &tr, nil
}

// Session binds the client to one user's token store. All calls made
// through the same Session share one refresh flight: however many of them
// hit 401 at once, exactly one refresh goes out and every caller resumes on
// its outcome.
func (c *Client) Session(store token.Store) *Session {
	return &Session{client: c, tokens: store}
}

type Session struct {
	client *Client
	tokens token.Store

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

type refreshResult struct {
	access string
	err    error
}

// Get issues an authenticated GET and returns the raw response body.
func (s *Session) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return s.do(ctx, http.MethodGet, path, query, nil, false)
}

// Put issues an authenticated PUT with a JSON body.
func (s *Session) Put(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return s.do(ctx, http.MethodPut, path, nil, body, false)
}

func (s *Session) do(ctx context.Context, method, path string, query url.Values, body interface{}, retried bool) (json.RawMessage, error) {
	access := s.tokens.Get(token.Access)
	if access == "" {
		if retried {
			return nil, ErrUnauthorized
		}
		// No access token but maybe a refresh token: run the refresh path
		// before the first attempt. This consumes the call's one recovery.
		tok, err := s.awaitRefresh(ctx, "")
		if err != nil {
			return nil, err
		}
		return s.doWith(ctx, method, path, query, body, tok, true)
	}
	return s.doWith(ctx, method, path, query, body, access, retried)
}

func (s *Session) doWith(ctx context.Context, method, path string, query url.Values, body interface{}, access string, retried bool) (json.RawMessage, error) {
	u := s.client.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil

	case resp.StatusCode == http.StatusUnauthorized:
		if retried {
			// Already retried once for this logical call. Surfacing the
			// failure here is what prevents an infinite refresh loop against
			// a remote that always answers 401.
			return nil, ErrUnauthorized
		}
		tok, err := s.awaitRefresh(ctx, access)
		if err != nil {
			return nil, err
		}
		return s.doWith(ctx, method, path, query, body, tok, true)

	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)

	default:
		return nil, remoteError(resp.StatusCode, respBody)
	}
}

// awaitRefresh runs (or joins) the session's refresh flight and returns the
// access token that came out of it. At most one refresh call is in flight
// per session; every concurrent caller that observes the REFRESHING state is
// parked and resumed with the same outcome. staleAccess is the token the
// caller just failed with, so a flight that already replaced it is not
// repeated.
func (s *Session) awaitRefresh(ctx context.Context, staleAccess string) (string, error) {
	s.mu.Lock()
	if s.refreshing {
		ch := make(chan refreshResult, 1)
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()
		select {
		case res := <-ch:
			return res.access, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.refreshing = true
	s.mu.Unlock()

	res := s.refresh(ctx, staleAccess)

	s.mu.Lock()
	s.refreshing = false
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
	return res.access, res.err
}

func (s *Session) refresh(ctx context.Context, staleAccess string) refreshResult {
	// A flight that finished moments ago may already have replaced the
	// token this caller failed with; reuse it instead of refreshing twice.
	if cur := s.tokens.Get(token.Access); cur != "" && cur != staleAccess {
		return refreshResult{access: cur}
	}

	refreshToken := s.tokens.Get(token.Refresh)
	if refreshToken == "" {
		s.tokens.Clear()
		return refreshResult{err: ErrNoSession}
	}

	tr, err := s.client.RefreshGrant(ctx, refreshToken)
	if err != nil {
		s.tokens.Clear()
		s.client.log.Warn().Err(err).Msg("token refresh rejected, session cleared")
		return refreshResult{err: fmt.Errorf("%w: %v", ErrSessionExpired, err)}
	}

	s.tokens.Set(tr.Pair())
	s.client.log.Debug().Msg("token pair refreshed")
	return refreshResult{access: tr.AccessToken}
}
