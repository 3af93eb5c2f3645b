// Package resolve turns a scanned barcode or a free-text name into a
// BoardGameGeek game identifier.
package resolve

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/search"
)

const DefaultMemoSize = 1000

// Options tunes a Resolver. The zero value is usable.
type Options struct {
	// MemoSize caps the in-process memo of search calls. Zero selects
	// DefaultMemoSize, a negative value disables memoization.
	MemoSize int
	// BadWords replaces DefaultBadWords when non-nil.
	BadWords []string
	Logger   Logger
}

type memoKey struct {
	query string
	site  string
}

// Resolver resolves queries through a search provider. It is safe for
// concurrent use.
type Resolver struct {
	provider search.Provider
	memo     *lru.Cache[memoKey, search.Result]
	badWords []string
	log      Logger
}

func NewResolver(provider search.Provider, opts Options) (*Resolver, error) {
	if provider == nil {
		return nil, errors.New("resolver requires a search provider")
	}

	r := &Resolver{
		provider: provider,
		badWords: opts.BadWords,
		log:      opts.Logger,
	}
	if r.badWords == nil {
		r.badWords = DefaultBadWords
	}
	if r.log == nil {
		r.log = nopLogger{}
	}

	size := opts.MemoSize
	if size == 0 {
		size = DefaultMemoSize
	}
	if size > 0 {
		memo, err := lru.New[memoKey, search.Result](size)
		if err != nil {
			return nil, fmt.Errorf("could not create search memo: %w", err)
		}
		r.memo = memo
	}
	return r, nil
}

// Resolve returns the game identifier for query. Search failures are returned
// unchanged (see search.ErrNoMatches, search.ErrQuotaExceeded,
// search.ErrProvider); a scoped result that is not a game page yields
// ErrUnrecognizedResult.
func (r *Resolver) Resolve(ctx context.Context, query string) (string, error) {
	id, _, err := r.resolve(ctx, query)
	return id, err
}

// ResolveURL is like Resolve but returns the game page link.
func (r *Resolver) ResolveURL(ctx context.Context, query string) (string, error) {
	_, link, err := r.resolve(ctx, query)
	return link, err
}

func (r *Resolver) resolve(ctx context.Context, query string) (id, link string, err error) {
	title := query
	if utils.IsBarcode(query) {
		res, err := r.search(ctx, query, "")
		if err != nil {
			return "", "", err
		}
		if id, err := ExtractID(res[0].Link); err == nil {
			r.log.Debugf("barcode %s resolved directly from %s", query, res[0].Link)
			return id, res[0].Link, nil
		}
		title = r.reconcile(res.Titles(), query)
	} else {
		r.log.Debugf("%q is not a barcode, searching it as a title", query)
	}
	r.log.Infof("searching game pages for title %q", title)

	res, err := r.search(ctx, title, BGGSite)
	if err != nil {
		return "", "", err
	}
	link = res[0].Link
	id, err = ExtractID(link)
	if err != nil {
		return "", "", err
	}
	return id, link, nil
}

func (r *Resolver) reconcile(titles []string, query string) string {
	title := ProcessTitles(titles, query, r.badWords)
	switch {
	case len(titles) == 1:
		r.log.Warnf("only one title matched, keeping whole title: %s", title)
	case title == titles[0]:
		r.log.Warnf("no common words between results, keeping first title: %s", title)
	}
	return title
}

// search memoizes successful provider calls. Two goroutines missing on the
// same key both hit the provider; the later Add wins.
func (r *Resolver) search(ctx context.Context, query, site string) (search.Result, error) {
	key := memoKey{query: query, site: site}
	if r.memo != nil {
		if res, ok := r.memo.Get(key); ok {
			return res, nil
		}
	}

	res, err := r.provider.Search(ctx, query, site)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, &search.NoMatchesError{Provider: r.provider.Name(), Query: query}
	}
	if r.memo != nil {
		r.memo.Add(key, res)
	}
	return res, nil
}

// IsNotFound reports whether err means the query matched nothing, which is
// safe to show to a user as "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, search.ErrNoMatches)
}

// IsRetryable reports whether err is a rate limit worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, search.ErrQuotaExceeded)
}
