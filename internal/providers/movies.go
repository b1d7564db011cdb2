package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

const (
	DefaultMoviesBaseURL = "https://api.themoviedb.org"
	PosterBaseURL        = "https://image.tmdb.org/t/p/w200"
)

type moviesResponse struct {
	Results *[]struct {
		Title       string  `json:"title"`
		Overview    string  `json:"overview"`
		VoteAverage float64 `json:"vote_average"`
		VoteCount   int     `json:"vote_count"`
		PosterPath  string  `json:"poster_path"`
		Popularity  float64 `json:"popularity"`
		ReleaseDate string  `json:"release_date"`
	} `json:"results"`
}

// Movies pulls the current popularity-sorted discover list from TMDB. The
// list is global: the search key is never sent upstream.
type Movies struct {
	c      *client
	apiKey string
}

func NewMovies(apiKey string, opts ...Option) (*Movies, error) {
	if apiKey == "" {
		return nil, errors.New("movies: apiKey required")
	}
	c, err := newClient("tmdb", DefaultMoviesBaseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Movies{c: c, apiKey: apiKey}, nil
}

func (m *Movies) Name() string { return m.c.name }

func (m *Movies) Fetch(ctx context.Context, _ Query) ([]records.Record, error) {
	v := url.Values{}
	v.Set("api_key", m.apiKey)
	v.Set("language", "en-US")
	v.Set("sort_by", "popularity.desc")
	v.Set("include_adult", "false")
	v.Set("include_video", "false")
	v.Set("page", "1")

	var body moviesResponse
	if err := m.c.getJSON(ctx, "/3/discover/movie", v, &body); err != nil {
		return nil, err
	}
	return normalizeMovies(body)
}

func normalizeMovies(body moviesResponse) ([]records.Record, error) {
	if body.Results == nil {
		return nil, fmt.Errorf("tmdb: missing results: %w", ErrMalformed)
	}
	out := make([]records.Record, 0, len(*body.Results))
	for _, r := range *body.Results {
		out = append(out, &records.Movie{
			Title:        r.Title,
			Overview:     r.Overview,
			AverageVotes: r.VoteAverage,
			TotalVotes:   r.VoteCount,
			ImageURL:     PosterBaseURL + r.PosterPath,
			Popularity:   r.Popularity,
			ReleasedOn:   r.ReleaseDate,
		})
	}
	return out, nil
}
