// Package yapi fetches interface descriptors from a YAPI server.
package yapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	interfacePath = "api/interface/get"
	projectPath   = "api/project/get"
	loginPath     = "api/user/login"
)

// SessionStore persists the login cookie between runs.
type SessionStore interface {
	LoadCookie(ctx context.Context, server string) (string, error)
	SaveCookie(ctx context.Context, server, cookie string) error
}

// Settings configures client behavior.
type Settings struct {
	Server   string
	Email    string
	Password string
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 30 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates a Client under construction.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option  { return func(c *Client) { c.http = hc } }
func WithSessionStore(s SessionStore) Option { return func(c *Client) { c.sessions = s } }
func WithLogger(l zerolog.Logger) Option     { return func(c *Client) { c.log = l } }

// WithCookie seeds the session cookie, skipping the initial login.
func WithCookie(cookie string) Option {
	return func(c *Client) { c.cookie, c.storeChecked = cookie, cookie != "" }
}

// Client talks to one YAPI server. It is safe for concurrent use; an
// expired session triggers a single login shared by all waiting callers.
type Client struct {
	settings Settings
	base     *url.URL
	http     *http.Client
	sessions SessionStore
	limiter  *rate.Limiter
	log      zerolog.Logger

	mu           sync.Mutex
	cookie       string
	storeChecked bool
	generation   uint64 // bumped after each successful login

	loginMu sync.Mutex
}

// NewClient validates settings and returns a client.
func NewClient(settings Settings, opts ...Option) (*Client, error) {
	server := strings.TrimSpace(settings.Server)
	if server == "" {
		return nil, &APIError{Code: InputError, Message: "yapi: server URL is required"}
	}
	u, err := url.Parse(strings.TrimRight(server, "/") + "/")
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &APIError{Code: InputError, Message: fmt.Sprintf("yapi: invalid server URL %q", server), Cause: err}
	}
	defaults := DefaultSettings()
	if settings.HTTPTimeout <= 0 {
		settings.HTTPTimeout = defaults.HTTPTimeout
	}
	if settings.BackoffBase <= 0 {
		settings.BackoffBase = defaults.BackoffBase
	}
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = 1
	}

	c := &Client{
		settings: settings,
		base:     u,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: settings.HTTPTimeout}
	}
	if settings.RateLimit > 0 {
		burst := int(settings.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), burst)
	}
	return c, nil
}

// Server returns the base URL without a trailing slash.
func (c *Client) Server() string {
	return strings.TrimRight(c.base.String(), "/")
}

// Endpoint fetches one interface descriptor.
func (c *Client) Endpoint(ctx context.Context, id int64) (*Endpoint, error) {
	var ep Endpoint
	if err := c.get(ctx, interfacePath, id, &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

// Project fetches project metadata.
func (c *Client) Project(ctx context.Context, id int64) (*Project, error) {
	var p Project
	if err := c.get(ctx, projectPath, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string, id int64, out any) error {
	q := url.Values{"id": []string{strconv.FormatInt(id, 10)}}

	cookie, gen, err := c.session(ctx)
	if err != nil {
		return err
	}

	env, err := c.call(ctx, http.MethodGet, path, q, nil, cookie)
	if err != nil {
		return err
	}
	if env.Errcode == errcodeSessionExpired {
		c.log.Debug().Str("path", path).Msg("yapi session expired, logging in again")
		if err := c.relogin(ctx, gen); err != nil {
			return err
		}
		cookie, _, err = c.session(ctx)
		if err != nil {
			return err
		}
		if env, err = c.call(ctx, http.MethodGet, path, q, nil, cookie); err != nil {
			return err
		}
	}

	switch env.Errcode {
	case errcodeOK:
	case errcodeNotFound:
		return &APIError{Code: NotFoundError, Errcode: env.Errcode, Path: path, Message: fmt.Sprintf("yapi: id %d does not exist", id)}
	case errcodeSessionExpired:
		return &APIError{Code: AuthError, Errcode: env.Errcode, Path: path, Message: "yapi: session still expired after login"}
	default:
		return &APIError{Code: RemoteError, Errcode: env.Errcode, Path: path, Message: fmt.Sprintf("yapi: %s failed: errcode %d: %s", path, env.Errcode, env.Errmsg)}
	}

	if len(env.Data) == 0 {
		return &APIError{Code: DecodeError, Path: path, Message: fmt.Sprintf("yapi: %s returned no data", path)}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Code: DecodeError, Path: path, Message: fmt.Sprintf("yapi: decode %s: %v", path, err), Cause: err}
	}
	return nil
}

// session returns the current cookie, loading it from the store or
// logging in when none is known yet.
func (c *Client) session(ctx context.Context) (string, uint64, error) {
	c.mu.Lock()
	if !c.storeChecked && c.sessions != nil {
		cookie, err := c.sessions.LoadCookie(ctx, c.Server())
		if err != nil {
			c.log.Warn().Err(err).Msg("load stored yapi session")
		}
		c.cookie = cookie
	}
	c.storeChecked = true
	cookie, gen := c.cookie, c.generation
	c.mu.Unlock()

	if cookie != "" {
		return cookie, gen, nil
	}
	if err := c.relogin(ctx, gen); err != nil {
		return "", 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookie, c.generation, nil
}

// relogin logs in unless another caller already did so after seen.
func (c *Client) relogin(ctx context.Context, seen uint64) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.mu.Lock()
	current := c.generation
	c.mu.Unlock()
	if current != seen {
		return nil
	}
	return c.Login(ctx)
}

// Login authenticates with the configured credentials and stores the
// session cookie.
func (c *Client) Login(ctx context.Context) error {
	if c.settings.Email == "" || c.settings.Password == "" {
		return &APIError{Code: AuthError, Path: loginPath, Message: "yapi: email and password are required to log in"}
	}
	body, err := json.Marshal(map[string]string{
		"email":    c.settings.Email,
		"password": c.settings.Password,
	})
	if err != nil {
		return fmt.Errorf("yapi: encode login: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, loginPath, nil, body, "")
	if err != nil {
		return err
	}
	env, err := decodeEnvelope(loginPath, resp.body)
	if err != nil {
		return err
	}
	if env.Errcode != errcodeOK {
		return &APIError{Code: AuthError, Errcode: env.Errcode, Path: loginPath, Message: fmt.Sprintf("yapi: login failed: %s", env.Errmsg)}
	}
	cookie := joinCookies(resp.cookies)
	if cookie == "" {
		return &APIError{Code: AuthError, Path: loginPath, Message: "yapi: login returned no session cookie"}
	}

	c.mu.Lock()
	c.cookie = cookie
	c.storeChecked = true
	c.generation++
	c.mu.Unlock()
	c.log.Info().Str("server", c.Server()).Msg("logged in to yapi")

	if c.sessions != nil {
		if err := c.sessions.SaveCookie(ctx, c.Server(), cookie); err != nil {
			c.log.Warn().Err(err).Msg("persist yapi session")
		}
	}
	return nil
}

func joinCookies(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" {
			continue
		}
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

func (c *Client) call(ctx context.Context, method, path string, q url.Values, body []byte, cookie string) (*envelope, error) {
	resp, err := c.do(ctx, method, path, q, body, cookie)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(path, resp.body)
}

func decodeEnvelope(path string, body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &APIError{Code: DecodeError, Path: path, Message: fmt.Sprintf("yapi: decode %s response: %v", path, err), Cause: err}
	}
	return &env, nil
}

type rawResponse struct {
	body    []byte
	cookies []*http.Cookie
}

// do sends one request, retrying transient failures with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, cookie string) (*rawResponse, error) {
	target := c.base.JoinPath(path)
	if len(q) > 0 {
		target.RawQuery = q.Encode()
	}

	var lastErr error
	backoff := c.settings.BackoffBase
	for i := 0; i < c.settings.MaxRetries; i++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &APIError{Code: NetworkError, Path: path, Message: fmt.Sprintf("yapi: %s: %v", path, err), Cause: err}
			}
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
		if err != nil {
			return nil, &APIError{Code: InputError, Path: path, Message: fmt.Sprintf("yapi: build request: %v", err), Cause: err}
		}
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
		c.log.Debug().Str("method", method).Str("url", target.String()).Int("attempt", i+1).Msg("yapi request")

		resp, err := c.http.Do(req)
		if err == nil {
			data, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case rerr != nil:
				lastErr = rerr
			case resp.StatusCode < 300:
				return &rawResponse{body: data, cookies: resp.Cookies()}, nil
			case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
				lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
			default:
				snippet := data
				if len(snippet) > 1024 {
					snippet = snippet[:1024]
				}
				return nil, &APIError{Code: RemoteError, Path: path, Message: fmt.Sprintf("yapi: %s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))}
			}
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
		if i == c.settings.MaxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		lastErr = ctxErr
	}
	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return nil, &APIError{Code: NetworkError, Path: path, Message: fmt.Sprintf("yapi: %s: %v", path, lastErr), Cause: lastErr}
}
