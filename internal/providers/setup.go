package providers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/cityexplorer/internal/config"
	"github.com/briangreenhill/cityexplorer/internal/records"
)

// Setup creates a registry with every configured fetcher plus the geocoder.
// Providers without a key are skipped with a warning; the geocoder is nil
// when GEOCODE_API_KEY is unset.
func Setup(cfg config.UpstreamConfig, logger zerolog.Logger) (*Registry, *Geocoder) {
	registry := NewRegistry()
	httpClient := &http.Client{Timeout: cfg.Timeout}

	opts := func(p config.ProviderConfig) []Option {
		return []Option{WithHTTPClient(httpClient), WithBaseURL(p.BaseURL)}
	}

	register := func(kind records.Kind, p config.ProviderConfig, build func(string, ...Option) (Fetcher, error)) {
		if !p.Configured() {
			logger.Warn().Str("kind", string(kind)).Msg("provider not configured, route will fail")
			return
		}
		f, err := build(p.APIKey, opts(p)...)
		if err != nil {
			logger.Error().Err(err).Str("kind", string(kind)).Msg("provider setup failed")
			return
		}
		registry.Register(kind, f)
	}

	register(records.KindWeather, cfg.Weather, func(k string, o ...Option) (Fetcher, error) { return NewForecast(k, o...) })
	register(records.KindEvents, cfg.Eventbrite, func(k string, o ...Option) (Fetcher, error) { return NewEvents(k, o...) })
	register(records.KindMovies, cfg.Movie, func(k string, o ...Option) (Fetcher, error) { return NewMovies(k, o...) })
	register(records.KindYelp, cfg.Yelp, func(k string, o ...Option) (Fetcher, error) { return NewYelp(k, o...) })

	var geocoder *Geocoder
	if cfg.Geocode.Configured() {
		g, err := NewGeocoder(cfg.Geocode.APIKey, opts(cfg.Geocode)...)
		if err != nil {
			logger.Error().Err(err).Msg("geocoder setup failed")
		} else {
			geocoder = g
		}
	} else {
		logger.Warn().Str("kind", string(records.KindLocation)).Msg("geocoder not configured, route will fail")
	}

	return registry, geocoder
}
