package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/briangreenhill/cityexplorer/internal/metrics"
	"github.com/briangreenhill/cityexplorer/internal/providers"
	"github.com/briangreenhill/cityexplorer/internal/records"
	"github.com/briangreenhill/cityexplorer/internal/staleness"
)

var (
	// ErrStoreRead is returned when cached rows could not be read. The lookup
	// stops there; it never falls through to the provider.
	ErrStoreRead = errors.New("store read failed")

	// ErrUpstream is returned when the provider call failed. Nothing is written.
	ErrUpstream = errors.New("upstream fetch failed")

	// ErrNoFetcher is returned for a kind whose provider is not configured.
	ErrNoFetcher = errors.New("no provider configured")
)

// Binding ties a refreshable kind to the fetcher that refreshes it and the
// age after which its rows are replaced.
type Binding struct {
	Kind    records.Kind
	Fetcher providers.Fetcher
	TTL     time.Duration
}

// Bindings builds one binding per refreshable kind present in reg, using the
// standard timeouts.
func Bindings(reg *providers.Registry) []Binding {
	var out []Binding
	for _, k := range records.Refreshable {
		if f, ok := reg.Get(k); ok {
			out = append(out, Binding{Kind: k, Fetcher: f, TTL: staleness.Timeout(k)})
		}
	}
	return out
}

type Options struct {
	Store    Store
	Bindings []Binding
	// Geocoder serves Locate. Nil makes Locate fail on a miss.
	Geocoder Geocoder
	// Persister defaults to a BackgroundPersister over Store.
	Persister Persister
	Clock     clockwork.Clock
	Logger    zerolog.Logger
	// FlightTimeout bounds a shared refresh once it no longer follows any
	// caller's context. Defaults to DefaultFlightTimeout.
	FlightTimeout time.Duration
}

// DefaultFlightTimeout bounds a shared refresh when Options leaves it unset.
const DefaultFlightTimeout = 30 * time.Second

// Service is the cache orchestrator.
type Service struct {
	store     Store
	bindings  map[records.Kind]Binding
	geocoder  Geocoder
	persister Persister
	clock     clockwork.Clock
	logger    zerolog.Logger
	timeout   time.Duration

	// Concurrent lookups of the same kind and key share one refresh.
	group singleflight.Group
	// joined, when set, runs once a caller is attached to a flight.
	joined func(key string)
}

func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("cache: store required")
	}
	s := &Service{
		store:     opts.Store,
		bindings:  make(map[records.Kind]Binding, len(opts.Bindings)),
		geocoder:  opts.Geocoder,
		persister: opts.Persister,
		clock:     opts.Clock,
		logger:    opts.Logger,
		timeout:   opts.FlightTimeout,
	}
	for _, b := range opts.Bindings {
		if !b.Kind.Refreshable() {
			return nil, fmt.Errorf("cache: kind %q is not refreshable", b.Kind)
		}
		if b.Fetcher == nil || b.TTL <= 0 {
			return nil, fmt.Errorf("cache: incomplete binding for %q", b.Kind)
		}
		s.bindings[b.Kind] = b
	}
	if s.persister == nil {
		s.persister = NewBackgroundPersister(opts.Store, opts.Logger)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultFlightTimeout
	}
	return s, nil
}

// share runs fn once per key among concurrent callers. The work runs on a
// context detached from ctx, so a caller that gives up only ends its own wait.
func (s *Service) share(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return fn(fctx)
	})
	if s.joined != nil {
		s.joined(key)
	}
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve returns the records of kind for q.Key, from the store while they
// are fresh and from the bound provider otherwise.
func (s *Service) Resolve(ctx context.Context, kind records.Kind, q providers.Query) ([]records.Record, error) {
	b, ok := s.bindings[kind]
	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", kind, ErrNoFetcher)
	}
	v, err := s.share(ctx, string(kind)+":"+q.Key, func(ctx context.Context) (any, error) {
		return s.resolve(ctx, b, q)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", kind, err)
	}
	return v.([]records.Record), nil
}

func (s *Service) resolve(ctx context.Context, b Binding, q providers.Query) ([]records.Record, error) {
	log := s.logger.With().Str("kind", string(b.Kind)).Str("key", q.Key).Logger()

	rows, err := s.store.ReadByKey(ctx, b.Kind, q.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}

	if len(rows) == 0 {
		metrics.RecordLookup(string(b.Kind), metrics.OutcomeMiss)
	} else {
		// Rows are ordered by date_created; the oldest decides for the set.
		if !staleness.Expired(rows[0].Created(), b.TTL, s.clock.Now()) {
			metrics.RecordLookup(string(b.Kind), metrics.OutcomeHit)
			return rows, nil
		}
		metrics.RecordLookup(string(b.Kind), metrics.OutcomeStale)
		log.Debug().Int("rows", len(rows)).Msg("cached rows expired")
		if err := s.store.DeleteByKey(ctx, b.Kind, q.Key); err != nil {
			metrics.RecordStoreWriteError(string(b.Kind))
			log.Warn().Err(err).Msg("delete expired rows failed")
		}
	}

	fresh, err := b.Fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	created := s.clock.Now()
	for _, r := range fresh {
		r.Stamp(q.Key, created)
	}
	s.persister.Persist(ctx, b.Kind, fresh)

	log.Debug().Str("provider", b.Fetcher.Name()).Int("rows", len(fresh)).Msg("refreshed from provider")
	return fresh, nil
}

// LocationKey normalizes a free-text location into its lookup key.
func LocationKey(query string) string {
	return strings.ToLower(query)
}

// Locate returns the stored location for query or geocodes and stores it.
// Locations never expire.
func (s *Service) Locate(ctx context.Context, query string) (*records.Location, error) {
	key := LocationKey(query)
	v, err := s.share(ctx, string(records.KindLocation)+":"+key, func(ctx context.Context) (any, error) {
		return s.locate(ctx, key)
	})
	if err != nil {
		return nil, fmt.Errorf("locate: %w", err)
	}
	return v.(*records.Location), nil
}

func (s *Service) locate(ctx context.Context, key string) (*records.Location, error) {
	rows, err := s.store.ReadByKey(ctx, records.KindLocation, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	if len(rows) > 0 {
		loc, ok := rows[0].(*records.Location)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected row type %T", ErrStoreRead, rows[0])
		}
		metrics.RecordLookup(string(records.KindLocation), metrics.OutcomeHit)
		return loc, nil
	}
	metrics.RecordLookup(string(records.KindLocation), metrics.OutcomeMiss)

	if s.geocoder == nil {
		return nil, ErrNoFetcher
	}
	loc, err := s.geocoder.Geocode(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	loc.Stamp(key, s.clock.Now())
	s.persister.Persist(ctx, records.KindLocation, []records.Record{loc})
	return loc, nil
}
