// Package staleness decides whether a cached record set is still fresh.
package staleness

import (
	"fmt"
	"time"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

// Timeouts maps each kind to how long its rows stay fresh.
// Weather turns over every 15s.
var Timeouts = map[records.Kind]time.Duration{
	records.KindWeather:  15 * time.Second,
	records.KindLocation: 24 * time.Hour,
	records.KindEvents:   24 * time.Hour,
	records.KindMovies:   30 * 24 * time.Hour,
	records.KindYelp:     2 * 24 * time.Hour,
}

// Timeout returns the freshness window of kind. It panics for a kind without
// an entry, which can only come from a programming error.
func Timeout(kind records.Kind) time.Duration {
	d, ok := Timeouts[kind]
	if !ok {
		panic(fmt.Sprintf("staleness: no timeout for kind %q", kind))
	}
	return d
}

// IsStale reports whether a row created at createdAt (epoch milliseconds)
// has outlived its kind's timeout at now.
func IsStale(kind records.Kind, createdAt int64, now time.Time) bool {
	return Expired(createdAt, Timeout(kind), now)
}

// Expired reports whether more than ttl has elapsed between createdAt (epoch
// milliseconds) and now. Exactly ttl is still fresh.
func Expired(createdAt int64, ttl time.Duration, now time.Time) bool {
	return now.UnixMilli()-createdAt > ttl.Milliseconds()
}
