package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

const DefaultGeocodeBaseURL = "https://maps.googleapis.com"

// ErrNoResults is returned when the geocoder has no match for the address.
var ErrNoResults = errors.New("no geocoding results")

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocoder resolves a free-text address with the Google Geocoding API. It is
// not a Fetcher: locations are looked up once and never refreshed.
type Geocoder struct {
	c      *client
	apiKey string
}

func NewGeocoder(apiKey string, opts ...Option) (*Geocoder, error) {
	if apiKey == "" {
		return nil, errors.New("geocode: apiKey required")
	}
	c, err := newClient("google", DefaultGeocodeBaseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Geocoder{c: c, apiKey: apiKey}, nil
}

func (g *Geocoder) Name() string { return g.c.name }

// Geocode returns the first match for address as an unstamped location.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*records.Location, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", g.apiKey)

	var body geocodeResponse
	if err := g.c.getJSON(ctx, "/maps/api/geocode/json", q, &body); err != nil {
		return nil, err
	}
	return normalizeGeocode(body)
}

func normalizeGeocode(body geocodeResponse) (*records.Location, error) {
	if len(body.Results) == 0 {
		if body.Status != "" && body.Status != "OK" && body.Status != "ZERO_RESULTS" {
			return nil, fmt.Errorf("google: status %s: %w", body.Status, ErrMalformed)
		}
		return nil, ErrNoResults
	}
	first := body.Results[0]
	return &records.Location{
		FormattedQuery: first.FormattedAddress,
		Latitude:       first.Geometry.Location.Lat,
		Longitude:      first.Geometry.Location.Lng,
	}, nil
}
