// Package search normalizes third-party web search backends into a single
// Provider capability returning ordered {title, link} items.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/nraw/gamescanner/pkg/whttp"
)

// Item is a single search hit.
type Item struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Result is an ordered list of hits, most relevant first. Providers never
// return an empty Result together with a nil error.
type Result []Item

// Titles returns the lower-cased titles of r, in order.
func (r Result) Titles() []string {
	out := make([]string, 0, len(r))
	for _, it := range r {
		out = append(out, strings.ToLower(it.Title))
	}
	return out
}

// Provider abstracts a web search backend. A non-empty site restricts results
// to that domain (and optional path prefix).
//
// Implementations send exactly one request per call and report failures as
// *NoMatchesError, *QuotaError or *ProviderError.
type Provider interface {
	Name() string
	Search(ctx context.Context, query, site string) (Result, error)
}

var (
	ErrNoMatches     = errors.New("no search matches")
	ErrQuotaExceeded = errors.New("search quota exceeded")
	ErrProvider      = errors.New("search provider error")
)

type NoMatchesError struct {
	Provider string
	Query    string
}

func (e *NoMatchesError) Error() string {
	return fmt.Sprintf("%s: no matches for %q", e.Provider, e.Query)
}

func (e *NoMatchesError) Is(target error) bool { return target == ErrNoMatches }

type QuotaError struct {
	Provider string
	Message  string
}

func (e *QuotaError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: quota exceeded", e.Provider)
	}
	return fmt.Sprintf("%s: quota exceeded: %s", e.Provider, e.Message)
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

// ProviderError covers every other backend failure: non-success status codes,
// malformed bodies and transport errors (StatusCode is 0 for the latter).
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func (e *ProviderError) Unwrap() error { return e.Err }

// Config selects and configures a backend for New.
type Config struct {
	Provider     string
	BraveAPIKey  string
	GoogleAPIKey string
	GoogleCX     string
	Timeout      time.Duration
	Proxy        string
	Logger       logrus.FieldLogger
}

const DefaultProvider = "brave"

type factory func(cfg Config, client *retryablehttp.Client) (Provider, error)

var factories = map[string]factory{
	"brave": func(cfg Config, c *retryablehttp.Client) (Provider, error) {
		if cfg.BraveAPIKey == "" {
			return nil, errors.New("brave search requires an API key (set brave.api_key in config or BRAVE_API_KEY)")
		}
		return NewBrave(cfg.BraveAPIKey, c), nil
	},
	"google": func(cfg Config, c *retryablehttp.Client) (Provider, error) {
		if cfg.GoogleAPIKey == "" || cfg.GoogleCX == "" {
			return nil, errors.New("google search requires google.api_key and google.cx (or GOOGLE_API_KEY / GOOGLE_CX)")
		}
		return NewGoogle(cfg.GoogleAPIKey, cfg.GoogleCX, c), nil
	},
	"duckduckgo": func(cfg Config, c *retryablehttp.Client) (Provider, error) {
		return NewDuckDuckGo(c), nil
	},
}

// Available lists the backend names New accepts.
func Available() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the configured backend. It is meant to be called once at startup
// and the result injected wherever searching is needed.
func New(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = DefaultProvider
	}
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown search provider %q (available: %s)", name, strings.Join(Available(), ", "))
	}

	client, err := whttp.NewClient(whttp.ClientOptions{
		Timeout: cfg.Timeout,
		Proxy:   cfg.Proxy,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return f(cfg, client)
}

// withSite appends a site: operator for backends without a native filter.
func withSite(query, site string) string {
	if site == "" {
		return query
	}
	return query + " site:" + site
}
