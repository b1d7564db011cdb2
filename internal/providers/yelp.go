package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

const DefaultYelpBaseURL = "https://api.yelp.com"

type yelpResponse struct {
	Businesses *[]struct {
		Name     string  `json:"name"`
		ImageURL string  `json:"image_url"`
		Price    string  `json:"price"`
		Rating   float64 `json:"rating"`
		URL      string  `json:"url"`
	} `json:"businesses"`
}

// Yelp searches Yelp Fusion for businesses near a location string. The API
// key travels as a bearer token.
type Yelp struct {
	c *client
}

// NewYelp wraps the configured HTTP client (or http.DefaultClient) in an
// oauth2 transport carrying apiKey as a static bearer token.
func NewYelp(apiKey string, opts ...Option) (*Yelp, error) {
	if apiKey == "" {
		return nil, errors.New("yelp: apiKey required")
	}
	c, err := newClient("yelp", DefaultYelpBaseURL, opts)
	if err != nil {
		return nil, err
	}
	base := c.http
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: apiKey,
		TokenType:   "Bearer",
	}))
	authed.Timeout = base.Timeout
	c.http = authed
	return &Yelp{c: c}, nil
}

func (y *Yelp) Name() string { return y.c.name }

func (y *Yelp) Fetch(ctx context.Context, q Query) ([]records.Record, error) {
	v := url.Values{}
	v.Set("location", q.Key)

	var body yelpResponse
	if err := y.c.getJSON(ctx, "/v3/businesses/search", v, &body); err != nil {
		return nil, err
	}
	return normalizeYelp(body)
}

func normalizeYelp(body yelpResponse) ([]records.Record, error) {
	if body.Businesses == nil {
		return nil, fmt.Errorf("yelp: missing businesses: %w", ErrMalformed)
	}
	out := make([]records.Record, 0, len(*body.Businesses))
	for _, b := range *body.Businesses {
		out = append(out, &records.Business{
			Name:     b.Name,
			ImageURL: b.ImageURL,
			Price:    b.Price,
			Rating:   b.Rating,
			URL:      b.URL,
		})
	}
	return out, nil
}
