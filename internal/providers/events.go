package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

const DefaultEventsBaseURL = "https://www.eventbriteapi.com"

type text struct {
	Text string `json:"text"`
}

type eventsResponse struct {
	Events *[]struct {
		URL         string `json:"url"`
		Name        text   `json:"name"`
		Description text   `json:"description"`
		Start       struct {
			Local string `json:"local"`
		} `json:"start"`
	} `json:"events"`
}

// Events searches Eventbrite for events near a coordinate pair.
type Events struct {
	c     *client
	token string
}

func NewEvents(token string, opts ...Option) (*Events, error) {
	if token == "" {
		return nil, errors.New("events: token required")
	}
	c, err := newClient("eventbrite", DefaultEventsBaseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Events{c: c, token: token}, nil
}

func (e *Events) Name() string { return e.c.name }

func (e *Events) Fetch(ctx context.Context, q Query) ([]records.Record, error) {
	v := url.Values{}
	v.Set("location.longitude", q.Long)
	v.Set("location.latitude", q.Lat)
	v.Set("token", e.token)

	var body eventsResponse
	if err := e.c.getJSON(ctx, "/v3/events/search", v, &body); err != nil {
		return nil, err
	}
	return normalizeEvents(body)
}

func normalizeEvents(body eventsResponse) ([]records.Record, error) {
	if body.Events == nil {
		return nil, fmt.Errorf("eventbrite: missing events: %w", ErrMalformed)
	}
	out := make([]records.Record, 0, len(*body.Events))
	for _, ev := range *body.Events {
		out = append(out, &records.Event{
			Link:      ev.URL,
			Name:      ev.Name.Text,
			EventDate: ev.Start.Local,
			Summary:   ev.Description.Text,
		})
	}
	return out, nil
}
