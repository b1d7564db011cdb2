// Package providers contains the upstream data provider clients. Each client
// fetches one resource kind and normalizes the provider's response into
// canonical records.
package providers

import (
	"context"
	"sort"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

// Query carries the caller's lookup parameters. Lat and Long are passed
// through verbatim to providers that need coordinates.
type Query struct {
	Key  string
	Lat  string
	Long string
}

// Fetcher defines the interface every refreshable upstream provider implements
type Fetcher interface {
	// Name returns the provider name used in logs and metrics (e.g. "darksky")
	Name() string

	// Fetch calls the provider and returns normalized, unstamped records
	Fetch(ctx context.Context, q Query) ([]records.Record, error)
}

// Registry maps resource kinds to the fetcher that refreshes them
type Registry struct {
	fetchers map[records.Kind]Fetcher
}

// NewRegistry creates a new, empty registry
func NewRegistry() *Registry {
	return &Registry{
		fetchers: make(map[records.Kind]Fetcher),
	}
}

// Register binds a fetcher to kind, replacing any previous binding
func (r *Registry) Register(kind records.Kind, f Fetcher) {
	r.fetchers[kind] = f
}

// Get retrieves the fetcher bound to kind
func (r *Registry) Get(kind records.Kind) (Fetcher, bool) {
	f, exists := r.fetchers[kind]
	return f, exists
}

// List returns all bound kinds in sorted order
func (r *Registry) List() []records.Kind {
	kinds := make([]records.Kind, 0, len(r.fetchers))
	for k := range r.fetchers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
