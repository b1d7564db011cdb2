// Package cache implements the cache-aside lookup: serve stored records while
// they are fresh, otherwise drop them, refetch from the provider and persist
// the replacement in the background.
package cache

import (
	"context"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

// Reader defines the interface for reading cached rows
type Reader interface {
	// ReadByKey returns every row of kind stored under key, oldest first
	ReadByKey(ctx context.Context, kind records.Kind, key string) ([]records.Record, error)
}

// Writer defines the interface for writing a single row
type Writer interface {
	// Insert persists one stamped record
	Insert(ctx context.Context, rec records.Record) error
}

// Deleter defines the interface for invalidating a key
type Deleter interface {
	// DeleteByKey removes every row of kind stored under key
	DeleteByKey(ctx context.Context, kind records.Kind, key string) error
}

// Store combines all store operations the orchestrator needs
type Store interface {
	Reader
	Writer
	Deleter
}

// Persister writes freshly fetched records without blocking the caller.
// Implementations log and count failures; they never report them back.
type Persister interface {
	Persist(ctx context.Context, kind records.Kind, recs []records.Record)
}

// Geocoder resolves a free-text location into coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*records.Location, error)
}
