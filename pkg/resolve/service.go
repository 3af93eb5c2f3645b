package resolve

import (
	"context"
	"errors"

	"github.com/nraw/gamescanner/internal/utils"
)

// MappingStore is the append-only query -> game id log consulted before any
// search. LatestMapping reports a miss as ("", false, nil).
type MappingStore interface {
	AppendMapping(ctx context.Context, query, bggID string, auto bool) error
	LatestMapping(ctx context.Context, query string) (string, bool, error)
}

var (
	ErrEmptyQuery    = errors.New("query is required")
	ErrInvalidGameID = errors.New("game id must be numeric")
)

// LookupRequest carries a scanned query plus optional user corrections.
type LookupRequest struct {
	Query string
	// BGGID, when set, is taken as the answer for Query.
	BGGID string
	// Name, when set, is resolved instead of Query.
	Name string
}

type Lookup struct {
	GameID string `json:"game_id"`
	URL    string `json:"url"`
	Cached bool   `json:"cached"`
	Auto   bool   `json:"auto"`
}

// Service fronts a Resolver with a MappingStore.
type Service struct {
	resolver *Resolver
	store    MappingStore
	log      Logger
}

func NewService(resolver *Resolver, store MappingStore, log Logger) *Service {
	if log == nil {
		log = nopLogger{}
	}
	return &Service{resolver: resolver, store: store, log: log}
}

// Lookup answers req in order of precedence: explicit id, explicit name,
// stored mapping, search. Every answer not read from the store is appended to
// it; answers derived from Query alone are flagged auto.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (Lookup, error) {
	if req.Query == "" {
		return Lookup{}, ErrEmptyQuery
	}

	var (
		id   string
		auto bool
		err  error
	)
	switch {
	case req.BGGID != "":
		if !utils.IsBarcode(req.BGGID) {
			return Lookup{}, ErrInvalidGameID
		}
		id = req.BGGID
	case req.Name != "":
		id, err = s.resolver.Resolve(ctx, req.Name)
	default:
		cached, ok, cerr := s.store.LatestMapping(ctx, req.Query)
		if cerr != nil {
			s.log.Warnf("mapping lookup for %q failed, falling back to search: %v", req.Query, cerr)
		} else if ok {
			s.log.Debugf("mapping hit for %q: %s", req.Query, cached)
			return Lookup{GameID: cached, URL: GameURL(cached), Cached: true}, nil
		}
		id, err = s.resolver.Resolve(ctx, req.Query)
		auto = true
	}
	if err != nil {
		return Lookup{}, err
	}

	if err := s.store.AppendMapping(ctx, req.Query, id, auto); err != nil {
		s.log.Errorf("could not save mapping %q -> %s: %v", req.Query, id, err)
	}
	return Lookup{GameID: id, URL: GameURL(id), Auto: auto}, nil
}

// Resolve exposes the underlying resolver for callers that only need an id
// for a name, such as logging a play by game title.
func (s *Service) Resolve(ctx context.Context, query string) (string, error) {
	return s.resolver.Resolve(ctx, query)
}
