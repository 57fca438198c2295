// Package apiclient is a generic REST client with per-endpoint
// rate-limit bookkeeping, timeout enforcement and error normalization.
// It is independent of the auth providers, which simulate their own
// latency locally and never call it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/storage"
)

// Rate-limit response headers per the API contract. Reset is in unix
// seconds.
const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitInfo is the last observed rate-limit triple for an endpoint
// base path.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     int64
}

// Client wraps outbound requests with default headers, bearer-token
// injection from the stored session, a per-call timeout and response
// normalization.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	scopes  storage.Scopes
	logger  *slog.Logger

	mu         sync.Mutex
	rateLimits map[string]RateLimitInfo
}

// New builds a client. scopes supplies the stored session the bearer
// token is read from; it may be zero-valued to disable auth injection.
func New(baseURL string, timeout time.Duration, scopes storage.Scopes, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		http:       &http.Client{},
		scopes:     scopes,
		logger:     logger,
		rateLimits: make(map[string]RateLimitInfo),
	}
}

// RateLimit returns the remembered rate-limit info for an endpoint.
func (c *Client) RateLimit(endpoint string) (RateLimitInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.rateLimits[basePath(endpoint)]
	return info, ok
}

// Get issues a GET request decoding the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPut, endpoint, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out)
}

// Do executes one request. It fails fast with RATE_LIMIT_EXCEEDED when
// the remembered remaining count for the endpoint is exhausted and the
// reset deadline is still in the future, without touching the network.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := c.checkRateLimit(endpoint); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return autherr.Unexpected(fmt.Errorf("encode request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return autherr.Unexpected(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.sessionToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return autherr.New(autherr.CodeRequestTimeout, http.StatusRequestTimeout,
				fmt.Sprintf("request to %s timed out after %s", endpoint, c.timeout))
		}
		return autherr.Unexpected(err)
	}
	defer resp.Body.Close()

	// Header bookkeeping happens regardless of status code.
	c.updateRateLimit(endpoint, resp.Header)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if resp.StatusCode == http.StatusNoContent || out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return autherr.Unexpected(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	return c.normalizeFailure(endpoint, resp)
}

// checkRateLimit consults the remembered triple for the endpoint.
func (c *Client) checkRateLimit(endpoint string) error {
	c.mu.Lock()
	info, ok := c.rateLimits[basePath(endpoint)]
	c.mu.Unlock()
	if !ok || info.Remaining > 0 {
		return nil
	}
	resetIn := info.Reset - time.Now().Unix()
	if resetIn <= 0 {
		return nil
	}
	err := autherr.New(autherr.CodeRateLimitExceeded, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded for %s, retry in %d seconds", basePath(endpoint), resetIn))
	return err.WithDetails(map[string]any{
		"limit":          info.Limit,
		"reset":          info.Reset,
		"resetInSeconds": resetIn,
	})
}

// updateRateLimit records the triple from response headers when all
// three are present.
func (c *Client) updateRateLimit(endpoint string, header http.Header) {
	limit, errL := strconv.Atoi(header.Get(headerRateLimitLimit))
	remaining, errR := strconv.Atoi(header.Get(headerRateLimitRemaining))
	reset, errT := strconv.ParseInt(header.Get(headerRateLimitReset), 10, 64)
	if errL != nil || errR != nil || errT != nil {
		return
	}
	c.mu.Lock()
	c.rateLimits[basePath(endpoint)] = RateLimitInfo{Limit: limit, Remaining: remaining, Reset: reset}
	c.mu.Unlock()
}

// apiErrorBody is the error envelope returned by the API.
type apiErrorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// normalizeFailure maps a non-2xx response onto the error taxonomy.
func (c *Client) normalizeFailure(endpoint string, resp *http.Response) error {
	var body apiErrorBody
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	code := autherr.CodeUnexpected
	message := body.Error.Message
	if decodeErr != nil || message == "" {
		message = "an unknown error occurred"
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		code = autherr.CodeUnauthorized
		if body.Error.Code == "TOKEN_EXPIRED" || strings.Contains(message, "expired") {
			code = autherr.CodeSessionExpired
			message = "session has expired"
		}
	case http.StatusTooManyRequests:
		code = autherr.CodeRateLimitExceeded
	}

	c.logger.Warn("api request failed", "endpoint", endpoint, "status", resp.StatusCode, "code", body.Error.Code)
	err := autherr.New(code, resp.StatusCode, message)
	if body.Error.Details != nil {
		err.WithDetails(body.Error.Details)
	}
	return err
}

// sessionToken reads the bearer token out of the stored session,
// durable scope first. Sessions without a token yield no header.
func (c *Client) sessionToken(ctx context.Context) string {
	if c.scopes.Durable == nil && c.scopes.Ephemeral == nil {
		return ""
	}
	raw, ok := c.readSession(ctx, c.scopes.Durable)
	if !ok {
		raw, ok = c.readSession(ctx, c.scopes.Ephemeral)
	}
	if !ok {
		return ""
	}
	var record struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return ""
	}
	return record.Token
}

func (c *Client) readSession(ctx context.Context, scope storage.Scope) (string, bool) {
	if scope == nil {
		return "", false
	}
	raw, ok, err := scope.Get(ctx, "auth")
	if err != nil || !ok {
		return "", false
	}
	return raw, true
}

// basePath strips the query string from an endpoint.
func basePath(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
