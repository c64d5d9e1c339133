// Package arenaclient is a REST and websocket client for a running arena.
package arenaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/duel-arena/pkg/dueldto"
	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// APIError is a non-2xx answer from the arena.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arena api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// Code returns the reason code of err when it is an *APIError.
func Code(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read-only calls are retried on transport errors and 5xx answers; commands are not.

func (c *Client) Health(ctx context.Context) (*dueldto.Health, error) {
	var h dueldto.Health
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/health", "", nil, &h, true); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Players(ctx context.Context) ([]dueldto.Player, error) {
	var out []dueldto.Player
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/players", "", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Connect(ctx context.Context, playerID string) (*dueldto.Player, error) {
	var p dueldto.Player
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/players/"+url.PathEscape(playerID)+"/connect", "", nil, &p, false); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Disconnect(ctx context.Context, playerID string) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, "/players/"+url.PathEscape(playerID), "", nil, nil, false)
}

func (c *Client) MarkAvailable(ctx context.Context, playerID string) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/players/"+url.PathEscape(playerID)+"/available", "", nil, nil, false)
}

// StartMatch requests a match; empty ids are drawn from the free queue.
func (c *Client) StartMatch(ctx context.Context, requesterID, player1, player2 string) (*dueldto.Match, error) {
	var m dueldto.Match
	req := dueldto.StartMatchRequest{Player1: player1, Player2: player2}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games", requesterID, req, &m, false); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) LiveMatches(ctx context.Context) ([]dueldto.Match, error) {
	var out []dueldto.Match
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games", "", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Match(ctx context.Context, matchID string) (*dueldto.Match, error) {
	var m dueldto.Match
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/"+url.PathEscape(matchID), "", nil, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) SubmitMove(ctx context.Context, playerID, action string) (*dueldto.MoveResponse, error) {
	var resp dueldto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/moves", playerID, dueldto.MoveRequest{Action: action}, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) History(ctx context.Context, playerID string, limit int) ([]dueldto.Result, error) {
	path := "/players/" + url.PathEscape(playerID) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []dueldto.Result
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, "", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, playerID string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if playerID != "" {
		req.Header.Set("X-Player-Id", playerID)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts || c.sleepWithContext(ctx, backoffDuration(attempt)) != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = decodeAPIError(status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) || c.sleepWithContext(ctx, backoffDuration(attempt)) != nil {
				return lastErr
			}
			continue
		}

		if out != nil && len(resp.Body()) > 0 {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeAPIError(status int, body []byte) *APIError {
	ae := &APIError{Status: status}
	var eb dueldto.ErrorBody
	if json.Unmarshal(body, &eb) == nil && eb.Code != "" {
		ae.Code, ae.Message = eb.Code, eb.Message
		return ae
	}
	ae.Message = truncate(string(body), 512)
	return ae
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = max(1, min(attempt, 6))
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
