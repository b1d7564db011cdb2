package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

const DefaultForecastBaseURL = "https://api.darksky.net"

// ForecastDateLayout renders a forecast day, e.g. "Sun Mar 10 2024".
const ForecastDateLayout = "Mon Jan 02 2006"

type forecastResponse struct {
	Daily *struct {
		Data []struct {
			Summary string `json:"summary"`
			Time    int64  `json:"time"`
		} `json:"data"`
	} `json:"daily"`
}

// Forecast fetches daily forecasts from the Dark Sky API.
type Forecast struct {
	c      *client
	apiKey string
}

func NewForecast(apiKey string, opts ...Option) (*Forecast, error) {
	if apiKey == "" {
		return nil, errors.New("forecast: apiKey required")
	}
	c, err := newClient("darksky", DefaultForecastBaseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Forecast{c: c, apiKey: apiKey}, nil
}

func (f *Forecast) Name() string { return f.c.name }

func (f *Forecast) Fetch(ctx context.Context, q Query) ([]records.Record, error) {
	p := fmt.Sprintf("/forecast/%s/%s,%s", f.apiKey, q.Lat, q.Long)

	var body forecastResponse
	if err := f.c.getJSON(ctx, p, nil, &body); err != nil {
		return nil, err
	}
	return normalizeForecast(body)
}

func normalizeForecast(body forecastResponse) ([]records.Record, error) {
	if body.Daily == nil {
		return nil, fmt.Errorf("darksky: missing daily block: %w", ErrMalformed)
	}
	out := make([]records.Record, 0, len(body.Daily.Data))
	for _, d := range body.Daily.Data {
		out = append(out, &records.Weather{
			Forecast: d.Summary,
			Time:     time.Unix(d.Time, 0).UTC().Format(ForecastDateLayout),
		})
	}
	return out, nil
}
