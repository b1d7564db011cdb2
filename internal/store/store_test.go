package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

func TestSelectSQL(t *testing.T) {
	assert.Equal(t,
		"SELECT forecast, time, search_query, date_created FROM weather WHERE search_query = $1 ORDER BY date_created",
		selectSQL(records.KindWeather))
}

func TestDeleteSQL(t *testing.T) {
	assert.Equal(t, "DELETE FROM yelp WHERE search_query = $1", deleteSQL(records.KindYelp))
	assert.Panics(t, func() { deleteSQL(records.Kind("event")) })
}

func TestInsertSQL(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO events (id, link, name, event_date, summary, search_query, date_created) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		insertSQL(records.KindEvents))
}

func TestInsertSQLMatchesValues(t *testing.T) {
	recs := []records.Record{
		&records.Location{}, &records.Weather{}, &records.Event{}, &records.Movie{}, &records.Business{},
	}
	for _, r := range recs {
		assert.Len(t, records.Columns(r.Kind()), len(r.Values()), "kind %s", r.Kind())
	}
}

func TestSchemaCoversEveryKind(t *testing.T) {
	for _, k := range append([]records.Kind{records.KindLocation}, records.Refreshable...) {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+k.Table()+" (")
		for _, col := range records.Columns(k) {
			assert.Contains(t, schema, "    "+col+" ", "kind %s column %s", k, col)
		}
	}
}

// TestStoreRoundTrip exercises the adapter against a real database.
func TestStoreRoundTrip(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping store integration test")
	}

	ctx := context.Background()
	pool, err := Open(ctx, dbURL, 2)
	require.NoError(t, err)
	defer pool.Close()

	s := New(pool)
	require.NoError(t, s.Migrate(ctx))
	// Migrate is idempotent.
	require.NoError(t, s.Migrate(ctx))

	key := "store-test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		for _, k := range append([]records.Kind{records.KindLocation}, records.Refreshable...) {
			_ = s.DeleteByKey(context.Background(), k, key)
		}
	})

	got, err := s.ReadByKey(ctx, records.KindWeather, key)
	require.NoError(t, err)
	assert.Empty(t, got)

	older := &records.Weather{Forecast: "Rain", Time: "Sun Mar 10 2024"}
	older.Stamp(key, time.UnixMilli(1000))
	newer := &records.Weather{Forecast: "Sun", Time: "Mon Mar 11 2024"}
	newer.Stamp(key, time.UnixMilli(2000))
	require.NoError(t, s.Insert(ctx, newer))
	require.NoError(t, s.Insert(ctx, older))

	got, err = s.ReadByKey(ctx, records.KindWeather, key)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older, got[0])
	assert.Equal(t, newer, got[1])

	movie := &records.Movie{Title: "Dune", AverageVotes: 8.1, TotalVotes: 10, Popularity: 1.5, ImageURL: "u"}
	movie.Stamp(key, time.UnixMilli(3000))
	require.NoError(t, s.Insert(ctx, movie))
	movies, err := s.ReadByKey(ctx, records.KindMovies, key)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, movie, movies[0])

	require.NoError(t, s.DeleteByKey(ctx, records.KindWeather, key))
	got, err = s.ReadByKey(ctx, records.KindWeather, key)
	require.NoError(t, err)
	assert.Empty(t, got)

	movies, err = s.ReadByKey(ctx, records.KindMovies, key)
	require.NoError(t, err)
	assert.Len(t, movies, 1, "deleting weather must not touch movies")
}
