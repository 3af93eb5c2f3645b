package resolve

import (
	"context"
	"sync"

	"github.com/nraw/gamescanner/pkg/search"
)

type call struct {
	query string
	site  string
}

// fakeProvider answers from a fixed table keyed by (query, site) and records
// every call it receives.
type fakeProvider struct {
	mu      sync.Mutex
	answers map[call]search.Result
	errs    map[call]error
	calls   []call
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{answers: map[call]search.Result{}, errs: map[call]error{}}
}

func (f *fakeProvider) on(query, site string, items ...search.Item) *fakeProvider {
	f.answers[call{query, site}] = items
	return f
}

func (f *fakeProvider) fail(query, site string, err error) *fakeProvider {
	f.errs[call{query, site}] = err
	return f
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, query, site string) (search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := call{query, site}
	f.calls = append(f.calls, c)
	if err, ok := f.errs[c]; ok {
		return nil, err
	}
	if res, ok := f.answers[c]; ok {
		return res, nil
	}
	return nil, &search.NoMatchesError{Provider: "fake", Query: query}
}

func (f *fakeProvider) callCount(site string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.site == site {
			n++
		}
	}
	return n
}

func (f *fakeProvider) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type record struct {
	query string
	id    string
	auto  bool
}

type memStore struct {
	mu      sync.Mutex
	records []record
	readErr error
}

func (m *memStore) AppendMapping(_ context.Context, query, id string, auto bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record{query, id, auto})
	return nil
}

func (m *memStore) LatestMapping(_ context.Context, query string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", false, m.readErr
	}
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].query == query {
			return m.records[i].id, true, nil
		}
	}
	return "", false, nil
}
