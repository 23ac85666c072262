// Package subsonic talks to a Subsonic-compatible music server: search,
// playlists, albums, artist discographies, cover art, autoplay sources and
// stream URLs.
//
// Every operation follows one contract. A value and nil error means success.
// A zero value and nil error means the server had nothing for us (not found,
// empty list, unparsable payload), which callers must not treat as a
// failure. A non-nil error is fatal: an *APIError from the envelope or a
// transport failure. Autoplay sources and cover art never fail.
package subsonic

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/keshon/discodrome/pkg/retrylimit"
)

const (
	DefaultVersion    = "1.15.0"
	DefaultClientName = "discodrome"
	DefaultCoverSize  = 300

	maxBodySize = 8 << 20
)

// Config describes the server and the credentials shared by every request.
type Config struct {
	BaseURL    string
	User       string
	Password   string
	Version    string
	ClientName string
	// TokenAuth sends md5(password+salt) instead of the clear password.
	TokenAuth bool
	Timeout   time.Duration
	// RequestsPerSecond is the starting rate of the adaptive limiter.
	RequestsPerSecond float64

	CacheDir      string
	FallbackCover string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the lazily created HTTP session.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg retrylimit.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client is safe for concurrent use by every guild.
type Client struct {
	cfg   Config
	log   *log.Logger
	retry retrylimit.Config
	lim   *retrylimit.AdaptiveLimiter

	mu        sync.Mutex
	hc        *http.Client
	transport *http.Transport

	covers singleflight.Group
}

// New builds a Client. No connection is opened until the first request.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache"
	}
	if cfg.FallbackCover == "" {
		cfg.FallbackCover = "resources/cover_not_found.jpg"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	rps := rate.Limit(cfg.RequestsPerSecond)
	c := &Client{
		cfg:   cfg,
		retry: retrylimit.DefaultConfig(),
		lim:   retrylimit.NewAdaptiveLimiter(rps, 1, rps*2, 1, 0.5),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log.Default().WithPrefix("subsonic")
	}
	return c
}

// session returns the shared HTTP session, creating it on first use.
func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hc == nil {
		c.transport = http.DefaultTransport.(*http.Transport).Clone()
		c.hc = &http.Client{Timeout: c.cfg.Timeout, Transport: c.transport}
	}
	return c.hc
}

// Close releases the idle connections of the shared session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		c.transport.CloseIdleConnections()
		c.transport = nil
		c.hc = nil
	}
}

// params returns the shared credential parameters merged with extra.
func (c *Client) params(extra url.Values) url.Values {
	v := url.Values{
		"u": {c.cfg.User},
		"v": {c.cfg.Version},
		"c": {c.cfg.ClientName},
		"f": {"json"},
	}
	if c.cfg.TokenAuth {
		salt := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		sum := md5.Sum([]byte(c.cfg.Password + salt))
		v.Set("t", hex.EncodeToString(sum[:]))
		v.Set("s", salt)
	} else {
		v.Set("p", c.cfg.Password)
	}
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

func (c *Client) endpoint(name string, extra url.Values) string {
	return c.cfg.BaseURL + "/rest/" + name + "?" + c.params(extra).Encode()
}

// get performs a GET with rate limiting and retries on 429/5xx and
// transport errors. The caller closes the body.
func (c *Client) get(ctx context.Context, name string, extra url.Values) (*http.Response, error) {
	target := c.endpoint(name, extra)

	var resp *http.Response
	err := retrylimit.Do(ctx, c.retry, c.lim, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return retrylimit.Fatal(fmt.Errorf("building %s request: %w", name, err))
		}
		r, err := c.session().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retrylimit.Fatal(ctx.Err())
			}
			return fmt.Errorf("requesting %s: %w", name, err)
		}
		if r.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
			r.Body.Close()
			serr := &StatusError{Code: r.StatusCode, Endpoint: name}
			if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
				return serr
			}
			return retrylimit.Fatal(serr)
		}
		resp = r
		return nil
	})
	if err != nil {
		c.log.Error("request failed", "endpoint", name, "err", err)
		return nil, err
	}
	return resp, nil
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type responseBody struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	Error         *errorBody      `json:"error"`
	SearchResult3 json.RawMessage `json:"searchResult3"`
	Playlists     json.RawMessage `json:"playlists"`
	Playlist      json.RawMessage `json:"playlist"`
	Artist        json.RawMessage `json:"artist"`
	Album         json.RawMessage `json:"album"`
	RandomSongs   json.RawMessage `json:"randomSongs"`
	SimilarSongs  json.RawMessage `json:"similarSongs"`
}

type envelope struct {
	Response responseBody `json:"subsonic-response"`
}

// call performs a request and interprets the envelope. Besides transport
// errors it returns *APIError, ErrNotFound or ErrMalformedResponse.
func (c *Client) call(ctx context.Context, name string, extra url.Values) (*responseBody, error) {
	resp, err := c.get(ctx, name, extra)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.log.Error("reading response", "endpoint", name, "err", err)
		return nil, fmt.Errorf("reading %s response: %w", name, err)
	}
	c.log.Debug("response", "endpoint", name, "bytes", len(data))

	return c.interpret(name, data)
}

func (c *Client) interpret(name string, data []byte) (*responseBody, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Response.Status == "" {
		c.log.Error("unexpected response shape", "endpoint", name, "err", err)
		return nil, ErrMalformedResponse
	}
	if err := c.check(name, &env.Response); err != nil {
		return nil, err
	}
	return &env.Response, nil
}

// check turns a failed envelope into an error and logs it.
func (c *Client) check(name string, body *responseBody) error {
	if body.Status == "ok" {
		return nil
	}
	code, serverMsg := CodeGeneric, ""
	if body.Error != nil {
		code, serverMsg = body.Error.Code, body.Error.Message
	}
	err := errorFromEnvelope(code)

	msg := codeMessages[CodeNotFound]
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	c.log.Warn("api responded with error", "endpoint", name, "code", code, "message", msg, "server_message", serverMsg)
	return err
}

// soft reports whether err is one of the conditions absorbed into empty
// results.
func soft(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedResponse)
}

// decode unmarshals a payload field, logging and reporting
// ErrMalformedResponse when it is missing or has the wrong shape.
func (c *Client) decode(name string, raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		c.log.Error("missing payload", "endpoint", name)
		return ErrMalformedResponse
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Error("failed to parse payload", "endpoint", name, "err", err)
		return ErrMalformedResponse
	}
	return nil
}

// Ping checks connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.call(ctx, "ping.view", nil)
	if err != nil {
		return err
	}
	c.log.Debug("ping", "server_version", body.Version)
	return nil
}
