// Package homebox is the HomeBox REST API gateway.
package homebox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
	"github.com/Proton-105/homebox-bot/pkg/config"
	"github.com/Proton-105/homebox-bot/pkg/metrics"
)

const gatewayName = "homebox"

// ErrUnauthorized is returned when neither the static token nor a fresh login is accepted.
var ErrUnauthorized = errors.New("homebox: unauthorized")

// StatusError carries an unexpected HTTP status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s -> HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string
	static   bool
	retry    apperrors.RetryPolicy
	breaker  *apperrors.CircuitBreaker
	log      *slog.Logger

	mu    sync.Mutex
	token string
}

// New builds a client. A configured token is used as-is and never refreshed.
func New(cfg config.HomeBoxConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		http:     &http.Client{Timeout: timeout},
		username: cfg.Username,
		password: cfg.Password,
		static:   cfg.Token != "",
		token:    cfg.Token,
		retry:    apperrors.RetryPolicy{Attempts: cfg.RetryAttempts, Initial: cfg.RetryDelay},
		breaker: apperrors.NewCircuitBreaker(gatewayName, func(err error) bool {
			return apperrors.IsGateway(err) && apperrors.IsRetryable(err)
		}),
		log: log.With(slog.String("gateway", gatewayName)),
	}
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	want        int
	idempotent  bool
}

func jsonRequest(method, path string, payload any, want int) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	return request{method: method, path: path, body: body, contentType: "application/json", want: want}, nil
}

// call runs req through the breaker, retrying idempotent requests, and decodes the body into out.
func (c *Client) call(ctx context.Context, op string, req request, out any) error {
	start := time.Now()

	err := c.breaker.Call(func() error {
		if req.idempotent {
			return apperrors.WithRetryPolicy(ctx, c.retry, func() error {
				return c.send(ctx, req, out)
			})
		}
		return c.send(ctx, req, out)
	})

	metrics.ObserveGateway(gatewayName, op, start, err)

	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.NewGatewayError(gatewayName, errors.Is(err, apperrors.ErrCircuitOpen), err)
		}
		c.log.Warn("homebox call failed", slog.String("op", op), slog.String("path", req.path), slog.Any("error", err))
	}

	return err
}

func (c *Client) send(ctx context.Context, req request, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.roundTrip(ctx, req, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !c.static {
		drain(resp)
		c.invalidate(token)

		if token, err = c.ensureToken(ctx); err != nil {
			return err
		}
		if resp, err = c.roundTrip(ctx, req, token); err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode != req.want {
		return statusError(req, resp)
	}

	if out == nil {
		return nil
	}

	if w, ok := out.(io.Writer); ok {
		if r, ok := out.(interface{ Reset() }); ok {
			r.Reset()
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			return apperrors.NewGatewayError(gatewayName, true, fmt.Errorf("read %s: %w", req.path, err))
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewGatewayError(gatewayName, false, fmt.Errorf("decode %s: %w", req.path, err))
	}

	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request, token string) (*http.Response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewGatewayError(gatewayName, ctx.Err() == nil, fmt.Errorf("%s %s: %w", req.method, req.path, err))
	}

	return resp, nil
}

// ensureToken logs in when no token is held.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" || c.static {
		return c.token, nil
	}
	if c.username == "" || c.password == "" {
		return "", apperrors.NewGatewayError(gatewayName, false, ErrUnauthorized)
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req := request{
		method:      http.MethodPost,
		path:        "/api/v1/users/login",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		want:        http.StatusOK,
	}

	resp, err := c.roundTrip(ctx, req, "")
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return "", statusError(req, resp)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Token == "" {
		return "", apperrors.NewGatewayError(gatewayName, false, fmt.Errorf("login response missing token: %v", err))
	}

	c.token = authHeader(payload.Token)
	c.log.Info("homebox login succeeded", slog.String("username", c.username))

	return c.token, nil
}

func (c *Client) invalidate(token string) {
	c.mu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
}

// Ping checks that the API is reachable and the credentials work.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListLocations(ctx)
	return err
}

// authHeader keeps HomeBox's "Bearer ..." token as issued and adds the scheme when it is missing.
func authHeader(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

func statusError(req request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := &StatusError{Method: req.method, Path: req.path, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}

	retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	if resp.StatusCode == http.StatusUnauthorized {
		return apperrors.NewGatewayError(gatewayName, false, fmt.Errorf("%w: %v", ErrUnauthorized, cause))
	}

	return apperrors.NewGatewayError(gatewayName, retryable, cause)
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
