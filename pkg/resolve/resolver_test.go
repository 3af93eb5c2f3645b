package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nraw/gamescanner/pkg/search"
)

const nemesisLink = "https://boardgamegeek.com/boardgame/167355/nemesis"

func newTestResolver(t *testing.T, p search.Provider, opts Options) *Resolver {
	t.Helper()
	r, err := NewResolver(p, opts)
	require.NoError(t, err)
	return r
}

func TestResolveTitleQuery(t *testing.T) {
	p := newFakeProvider().on("nemesis", BGGSite, search.Item{Title: "Nemesis | Board Game", Link: nemesisLink})
	r := newTestResolver(t, p, Options{})

	id, err := r.Resolve(context.Background(), "nemesis")
	require.NoError(t, err)
	assert.Equal(t, "167355", id)
	assert.Equal(t, []call{{"nemesis", BGGSite}}, p.calls, "a title query must not trigger the raw search")
}

func TestResolveBarcodeShortcut(t *testing.T) {
	p := newFakeProvider().on("634482735077", "",
		search.Item{Title: "Nemesis", Link: nemesisLink},
		search.Item{Title: "Nemesis on ebay", Link: "https://ebay.com/itm/1"},
	)
	r := newTestResolver(t, p, Options{})

	id, err := r.Resolve(context.Background(), "634482735077")
	require.NoError(t, err)
	assert.Equal(t, "167355", id)
	assert.Equal(t, 0, p.callCount(BGGSite))

	link, err := r.ResolveURL(context.Background(), "634482735077")
	require.NoError(t, err)
	assert.Equal(t, nemesisLink, link)
}

func TestResolveBarcodeReconcilesTitles(t *testing.T) {
	p := newFakeProvider().
		on("826956600107", "",
			search.Item{Title: "Azul Board Game 826956600107", Link: "https://shop.example.com/azul"},
			search.Item{Title: "Azul - Next Move Games | 826956600107", Link: "https://upcitemdb.com/upc/826956600107"},
			search.Item{Title: "Plan B Games Azul Board Game", Link: "https://amazon.com/dp/B07"},
		).
		on("azul", BGGSite, search.Item{Title: "Azul | Board Game", Link: "https://boardgamegeek.com/boardgame/230802/azul"})
	r := newTestResolver(t, p, Options{})

	id, err := r.Resolve(context.Background(), "826956600107")
	require.NoError(t, err)
	assert.Equal(t, "230802", id)
	assert.Equal(t, []call{{"826956600107", ""}, {"azul", BGGSite}}, p.calls)
}

func TestResolveSingleCandidateUsesWholeTitle(t *testing.T) {
	p := newFakeProvider().
		on("4250231725357", "", search.Item{Title: "Just One Party Game", Link: "https://shop.example.com/justone"}).
		on("just one party game", BGGSite, search.Item{Link: "https://boardgamegeek.com/boardgame/254640/just-one"})
	r := newTestResolver(t, p, Options{})

	id, err := r.Resolve(context.Background(), "4250231725357")
	require.NoError(t, err)
	assert.Equal(t, "254640", id)
}

func TestResolveNoCommonWordsFallsBackToAnchor(t *testing.T) {
	p := newFakeProvider().
		on("111", "",
			search.Item{Title: "Catan", Link: "https://a.example.com"},
			search.Item{Title: "Something Else Entirely", Link: "https://b.example.com"},
		).
		on("catan", BGGSite, search.Item{Link: "https://boardgamegeek.com/boardgame/13/catan"})
	r := newTestResolver(t, p, Options{})

	id, err := r.Resolve(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, "13", id)
}

func TestResolvePropagatesTypedErrors(t *testing.T) {
	quota := &search.QuotaError{Provider: "fake", Message: "slow down"}
	apiErr := &search.ProviderError{Provider: "fake", StatusCode: 500, Message: "boom"}

	tests := []struct {
		name   string
		p      *fakeProvider
		query  string
		target error
		same   error
	}{
		{"no matches", newFakeProvider(), "zzz_no_such_game_zzz", search.ErrNoMatches, nil},
		{"no matches on raw barcode search", newFakeProvider(), "000000", search.ErrNoMatches, nil},
		{"quota", newFakeProvider().fail("nemesis", BGGSite, quota), "nemesis", search.ErrQuotaExceeded, quota},
		{"provider", newFakeProvider().fail("123", "", apiErr), "123", search.ErrProvider, apiErr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestResolver(t, tc.p, Options{})
			_, err := r.Resolve(context.Background(), tc.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			if tc.same != nil {
				assert.Same(t, tc.same, err, "errors must propagate unchanged")
			}
		})
	}
}

func TestResolveErrorClassification(t *testing.T) {
	notFound := &search.NoMatchesError{Query: "x"}
	quota := &search.QuotaError{}
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(quota))
	assert.True(t, IsRetryable(quota))
	assert.False(t, IsRetryable(&search.ProviderError{StatusCode: 500}))
}

func TestResolveUnrecognizedTopLink(t *testing.T) {
	p := newFakeProvider().on("nemesis", BGGSite, search.Item{Link: "https://boardgamegeek.com/thread/999/nemesis-rules"})
	r := newTestResolver(t, p, Options{})

	_, err := r.Resolve(context.Background(), "nemesis")
	var uerr *UnrecognizedResultError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "https://boardgamegeek.com/thread/999/nemesis-rules", uerr.URL)
	assert.False(t, errors.Is(err, search.ErrNoMatches))
}

func TestResolveMemoizesSearches(t *testing.T) {
	p := newFakeProvider().on("nemesis", BGGSite, search.Item{Link: nemesisLink})
	r := newTestResolver(t, p, Options{})

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "nemesis")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p.total())
}

func TestResolveMemoIsBounded(t *testing.T) {
	p := newFakeProvider().
		on("a", BGGSite, search.Item{Link: "https://boardgamegeek.com/boardgame/1/a"}).
		on("b", BGGSite, search.Item{Link: "https://boardgamegeek.com/boardgame/2/b"})
	r := newTestResolver(t, p, Options{MemoSize: 1})

	ctx := context.Background()
	for _, q := range []string{"a", "b", "a"} {
		_, err := r.Resolve(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, p.total(), "\"a\" must have been evicted by \"b\"")
	assert.Equal(t, 1, r.memo.Len())
}

func TestResolveMemoDisabled(t *testing.T) {
	p := newFakeProvider().on("nemesis", BGGSite, search.Item{Link: nemesisLink})
	r := newTestResolver(t, p, Options{MemoSize: -1})

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "nemesis")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.total())
}

func TestResolveFailuresAreNotMemoized(t *testing.T) {
	p := newFakeProvider().fail("nemesis", BGGSite, &search.QuotaError{Provider: "fake"})
	r := newTestResolver(t, p, Options{})

	_, err := r.Resolve(context.Background(), "nemesis")
	require.ErrorIs(t, err, search.ErrQuotaExceeded)

	delete(p.errs, call{"nemesis", BGGSite})
	p.on("nemesis", BGGSite, search.Item{Link: nemesisLink})

	id, err := r.Resolve(context.Background(), "nemesis")
	require.NoError(t, err)
	assert.Equal(t, "167355", id)
}

func TestResolveConcurrent(t *testing.T) {
	p := newFakeProvider().
		on("nemesis", BGGSite, search.Item{Link: nemesisLink}).
		on("azul", BGGSite, search.Item{Link: "https://boardgamegeek.com/boardgame/230802/azul"})
	r := newTestResolver(t, p, Options{MemoSize: 8})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, want := "nemesis", "167355"
			if i%2 == 0 {
				q, want = "azul", "230802"
			}
			id, err := r.Resolve(context.Background(), q)
			assert.NoError(t, err)
			assert.Equal(t, want, id)
		}(i)
	}
	wg.Wait()
}

func TestNewResolverRequiresProvider(t *testing.T) {
	_, err := NewResolver(nil, Options{})
	assert.Error(t, err)
}
