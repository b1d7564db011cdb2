package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

// upstream serves body for GETs on path. The returned func yields the last
// request received.
func upstream(t *testing.T, path string, status int, body string) (*httptest.Server, func() *http.Request) {
	t.Helper()
	var (
		mu   sync.Mutex
		last *http.Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.Clone(context.Background())
		mu.Unlock()
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, func() *http.Request {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestGeocode(t *testing.T) {
	srv, last := upstream(t, "/maps/api/geocode/json", http.StatusOK, `{
		"status": "OK",
		"results": [
			{"formatted_address": "Seattle, WA, USA", "geometry": {"location": {"lat": 47.6062, "lng": -122.3321}}},
			{"formatted_address": "Seattle Heights", "geometry": {"location": {"lat": 1, "lng": 2}}}
		]}`)

	g, err := NewGeocoder("gkey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	loc, err := g.Geocode(context.Background(), "seattle")
	require.NoError(t, err)
	assert.Equal(t, "Seattle, WA, USA", loc.FormattedQuery)
	assert.InDelta(t, 47.6062, loc.Latitude, 1e-9)
	assert.InDelta(t, -122.3321, loc.Longitude, 1e-9)
	assert.Empty(t, loc.SearchQuery)

	assert.Equal(t, "seattle", last().URL.Query().Get("address"))
	assert.Equal(t, "gkey", last().URL.Query().Get("key"))
}

func TestGeocodeNoResults(t *testing.T) {
	srv, _ := upstream(t, "/maps/api/geocode/json", http.StatusOK, `{"status": "ZERO_RESULTS", "results": []}`)
	g, err := NewGeocoder("gkey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestGeocodeDeniedStatus(t *testing.T) {
	srv, _ := upstream(t, "/maps/api/geocode/json", http.StatusOK, `{"status": "REQUEST_DENIED", "results": []}`)
	g, err := NewGeocoder("gkey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "seattle")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestForecastFetch(t *testing.T) {
	srv, last := upstream(t, "/forecast/wkey/47.6,-122.3", http.StatusOK, `{
		"daily": {"data": [
			{"summary": "Light rain.", "time": 1710028800},
			{"summary": "Clear.", "time": 1710115200}
		]}}`)

	f, err := NewForecast("wkey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	recs, err := f.Fetch(context.Background(), Query{Key: "seattle", Lat: "47.6", Long: "-122.3"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	w := recs[0].(*records.Weather)
	assert.Equal(t, "Light rain.", w.Forecast)
	assert.Equal(t, "Sun Mar 10 2024", w.Time)
	assert.Equal(t, "Mon Mar 11 2024", recs[1].(*records.Weather).Time)
	assert.Equal(t, "/forecast/wkey/47.6,-122.3", last().URL.Path)
}

func TestForecastMissingDaily(t *testing.T) {
	srv, _ := upstream(t, "/forecast/wkey/1,2", http.StatusOK, `{"currently": {}}`)
	f, err := NewForecast("wkey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), Query{Lat: "1", Long: "2"})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEventsFetch(t *testing.T) {
	srv, last := upstream(t, "/v3/events/search", http.StatusOK, `{
		"events": [{
			"url": "https://eventbrite.com/e/1",
			"name": {"text": "Jazz Night"},
			"start": {"local": "2024-03-12T19:00:00"},
			"description": {"text": "Live jazz"}
		}]}`)

	e, err := NewEvents("etoken", WithBaseURL(srv.URL))
	require.NoError(t, err)

	recs, err := e.Fetch(context.Background(), Query{Key: "seattle", Lat: "47.6", Long: "-122.3"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, &records.Event{
		Link:      "https://eventbrite.com/e/1",
		Name:      "Jazz Night",
		EventDate: "2024-03-12T19:00:00",
		Summary:   "Live jazz",
	}, recs[0])

	q := last().URL.Query()
	assert.Equal(t, "47.6", q.Get("location.latitude"))
	assert.Equal(t, "-122.3", q.Get("location.longitude"))
	assert.Equal(t, "etoken", q.Get("token"))
}

func TestEventsEmptyList(t *testing.T) {
	srv, _ := upstream(t, "/v3/events/search", http.StatusOK, `{"events": []}`)
	e, err := NewEvents("etoken", WithBaseURL(srv.URL))
	require.NoError(t, err)

	recs, err := e.Fetch(context.Background(), Query{Lat: "1", Long: "2"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMoviesIgnoreSearchKey(t *testing.T) {
	srv, last := upstream(t, "/3/discover/movie", http.StatusOK, `{
		"results": [{
			"title": "Dune", "overview": "Spice.", "vote_average": 8.1, "vote_count": 4200,
			"poster_path": "/dune.jpg", "popularity": 310.5, "release_date": "2024-02-27"
		}]}`)

	m, err := NewMovies("mkey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	first, err := m.Fetch(context.Background(), Query{Key: "seattle"})
	require.NoError(t, err)
	assert.NotContains(t, last().URL.RawQuery, "seattle")

	second, err := m.Fetch(context.Background(), Query{Key: "portland"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	movie := first[0].(*records.Movie)
	assert.Equal(t, "https://image.tmdb.org/t/p/w200/dune.jpg", movie.ImageURL)
	assert.Equal(t, 4200, movie.TotalVotes)
	assert.InDelta(t, 8.1, movie.AverageVotes, 1e-9)
	assert.Equal(t, "2024-02-27", movie.ReleasedOn)

	q := last().URL.Query()
	assert.Equal(t, "mkey", q.Get("api_key"))
	assert.Equal(t, "popularity.desc", q.Get("sort_by"))
	assert.Equal(t, "1", q.Get("page"))
}

func TestYelpSendsBearerToken(t *testing.T) {
	srv, last := upstream(t, "/v3/businesses/search", http.StatusOK, `{
		"businesses": [{"name": "Pike Place Chowder", "image_url": "https://img/1.jpg", "price": "$$", "rating": 4.5, "url": "https://yelp.com/biz/1"}]}`)

	y, err := NewYelp("ykey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	recs, err := y.Fetch(context.Background(), Query{Key: "seattle"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	b := recs[0].(*records.Business)
	assert.Equal(t, "Pike Place Chowder", b.Name)
	assert.Equal(t, "$$", b.Price)
	assert.InDelta(t, 4.5, b.Rating, 1e-9)

	assert.Equal(t, "Bearer ykey", last().Header.Get("Authorization"))
	assert.Equal(t, "seattle", last().URL.Query().Get("location"))
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv, _ := upstream(t, "/v3/businesses/search", http.StatusUnauthorized, `{"error": {"code": "TOKEN_INVALID"}}`)
	y, err := NewYelp("bad", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = y.Fetch(context.Background(), Query{Key: "seattle"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "yelp", se.Provider)
	assert.Contains(t, se.Body, "TOKEN_INVALID")
}

func TestMalformedBody(t *testing.T) {
	srv, _ := upstream(t, "/3/discover/movie", http.StatusOK, `<html>not json</html>`)
	m, err := NewMovies("mkey", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = m.Fetch(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTransportErrorHidesCredentials(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	f, err := NewForecast("secret-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), Query{Lat: "1", Long: "2"})
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "secret-key"), "error leaks key: %v", err)
}

func TestConstructorsRequireKey(t *testing.T) {
	_, err := NewGeocoder("")
	assert.Error(t, err)
	_, err = NewForecast("")
	assert.Error(t, err)
	_, err = NewEvents("")
	assert.Error(t, err)
	_, err = NewMovies("")
	assert.Error(t, err)
	_, err = NewYelp("")
	assert.Error(t, err)
}

func TestNormalizeForecastUsesUTC(t *testing.T) {
	var body forecastResponse
	require.NoError(t, json.Unmarshal([]byte(`{"daily": {"data": [{"summary": "late", "time": 1710115199}]}}`), &body))

	recs, err := normalizeForecast(body)
	require.NoError(t, err)
	assert.Equal(t, "Sun Mar 10 2024", recs[0].(*records.Weather).Time)
}
