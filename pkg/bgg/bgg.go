// Package bgg talks to the BoardGameGeek website and XML API: session login,
// play logging, wishlist updates and owned-collection lookups.
package bgg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/nraw/gamescanner/pkg/whttp"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL     = "https://boardgamegeek.com"
	DefaultConcurrency = 5

	detailsCacheSize = 1000
	defaultRetryMax  = 3
)

var ErrNotAuthenticated = errors.New("bgg: not authenticated")

// APIError is returned when BGG answers with an unexpected status or an
// error payload.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "bgg: " + e.Message
	}
	return fmt.Sprintf("bgg: status %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	Username string
	Password string
	// APIKey is sent as a bearer token to the XML API.
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Proxy       string
	Concurrency int
	Logger      logrus.FieldLogger
}

type Client struct {
	username    string
	password    string
	apiKey      string
	baseURL     string
	concurrency int

	http    *retryablehttp.Client
	write   *retryablehttp.Client
	log     logrus.FieldLogger
	details *lru.Cache[string, Game]
	now     func() time.Time

	mu       sync.Mutex
	loggedIn bool
}

func New(cfg Config) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	httpClient, err := whttp.NewClient(whttp.ClientOptions{
		Timeout:    cfg.Timeout,
		RetryMax:   defaultRetryMax,
		Proxy:      cfg.Proxy,
		Jar:        jar,
		CheckRetry: retryQueued,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	// Writes are not idempotent: a play BGG committed before answering 5xx
	// must not be sent again.
	writeClient, err := whttp.NewClient(whttp.ClientOptions{
		Timeout: cfg.Timeout,
		Proxy:   cfg.Proxy,
		Jar:     jar,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	details, err := lru.New[string, Game](detailsCacheSize)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Client{
		username:    cfg.Username,
		password:    cfg.Password,
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		concurrency: concurrency,
		http:        httpClient,
		write:       writeClient,
		log:         log,
		details:     details,
		now:         time.Now,
	}, nil
}

// retryQueued treats the XML API's 202 "request queued" answer as retryable
// on top of the default policy. Only the read client uses it.
func retryQueued(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusAccepted {
		return true, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Login opens a website session. The session cookie is kept in the client's
// jar and reused by LogPlay and AddWishlist.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return ErrNotAuthenticated
	}

	payload := map[string]interface{}{
		"credentials": map[string]string{
			"username": c.username,
			"password": c.password,
		},
	}
	res, err := c.postJSON(ctx, "/login/api/v1", payload)
	if err != nil {
		return fmt.Errorf("bgg login: %w", err)
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrNotAuthenticated, res.Summary())
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{StatusCode: res.StatusCode, Message: res.Summary()}
	}

	c.loggedIn = true
	c.log.Debugf("[bgg] logged in as %s", c.username)
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	return c.login(ctx)
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (*whttp.WHTTPRes, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Headers: []whttp.WHTTPHeader{
			{Name: "Content-Type", Value: "application/json"},
		},
		Body: body,
	}, c.write)
}

// postAuthed sends a write that needs a website session. A 401 means the
// session expired: it logs in again and resends once.
func (c *Client) postAuthed(ctx context.Context, path string, payload interface{}) (*whttp.WHTTPRes, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	res, err := c.postJSON(ctx, path, payload)
	if err != nil || res.StatusCode != http.StatusUnauthorized {
		return res, err
	}

	c.log.Debugf("[bgg] session expired, logging in again")
	c.mu.Lock()
	c.loggedIn = false
	err = c.login(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	res, err = c.postJSON(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	return res, nil
}

func (c *Client) getXML(ctx context.Context, path string) (*whttp.WHTTPRes, error) {
	req := &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    c.baseURL + path,
	}
	if c.apiKey != "" {
		req.Headers = append(req.Headers, whttp.WHTTPHeader{Name: "Authorization", Value: "Bearer " + c.apiKey})
	}

	res, err := whttp.SendHTTPRequest(ctx, req, c.http)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: res.StatusCode, Message: res.Summary()}
	}
	return res, nil
}

// GameURL is the public page of a game on this client's BGG host.
func (c *Client) GameURL(id string) string {
	return c.baseURL + "/boardgame/" + id
}
