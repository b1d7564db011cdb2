// Package records defines the resource kinds served by the proxy and the
// canonical row shape persisted for each of them.
package records

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names a resource kind. Its value doubles as the backing table name.
type Kind string

const (
	KindLocation Kind = "location"
	KindWeather  Kind = "weather"
	KindEvents   Kind = "events"
	KindMovies   Kind = "movies"
	KindYelp     Kind = "yelp"
)

// Refreshable lists the kinds whose cached rows expire and get refetched.
// Location is looked up once and kept.
var Refreshable = []Kind{KindWeather, KindEvents, KindMovies, KindYelp}

// Table returns the table holding rows of this kind.
func (k Kind) Table() string { return string(k) }

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := columns[k]
	return ok
}

// Refreshable reports whether k participates in expiry and refresh.
func (k Kind) Refreshable() bool {
	for _, r := range Refreshable {
		if r == k {
			return true
		}
	}
	return false
}

// ParseKind converts a table name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
	return k, nil
}

// Record is a row of any kind. Concrete records are pointers to the structs
// below; only the provider normalizers construct them.
type Record interface {
	Kind() Kind
	// Values returns column values in the order of Columns(Kind()).
	Values() []any
	Key() string
	Created() int64
	Stamp(key string, created time.Time)
}

// Meta holds the columns every table shares: the lookup key and the creation
// time in epoch milliseconds used by the staleness policy.
type Meta struct {
	SearchQuery string `json:"search_query" db:"search_query"`
	DateCreated int64  `json:"date_created" db:"date_created"`
}

func (m *Meta) Key() string    { return m.SearchQuery }
func (m *Meta) Created() int64 { return m.DateCreated }

// Stamp assigns the search key and creation time before a record is persisted.
func (m *Meta) Stamp(key string, created time.Time) {
	m.SearchQuery = key
	m.DateCreated = created.UnixMilli()
}

type Location struct {
	FormattedQuery string  `json:"formatted_query" db:"formatted_query"`
	Latitude       float64 `json:"latitude" db:"latitude"`
	Longitude      float64 `json:"longitude" db:"longitude"`
	Meta
}

func (*Location) Kind() Kind { return KindLocation }
func (l *Location) Values() []any {
	return []any{l.FormattedQuery, l.Latitude, l.Longitude, l.SearchQuery, l.DateCreated}
}

type Weather struct {
	Forecast string `json:"forecast" db:"forecast"`
	Time     string `json:"time" db:"time"`
	Meta
}

func (*Weather) Kind() Kind { return KindWeather }
func (w *Weather) Values() []any {
	return []any{w.Forecast, w.Time, w.SearchQuery, w.DateCreated}
}

type Event struct {
	Link      string `json:"link" db:"link"`
	Name      string `json:"name" db:"name"`
	EventDate string `json:"event_date" db:"event_date"`
	Summary   string `json:"summary" db:"summary"`
	Meta
}

func (*Event) Kind() Kind { return KindEvents }
func (e *Event) Values() []any {
	return []any{e.Link, e.Name, e.EventDate, e.Summary, e.SearchQuery, e.DateCreated}
}

type Movie struct {
	Title        string  `json:"title" db:"title"`
	Overview     string  `json:"overview" db:"overview"`
	AverageVotes float64 `json:"average_votes" db:"average_votes"`
	TotalVotes   int     `json:"total_votes" db:"total_votes"`
	ImageURL     string  `json:"image_url" db:"image_url"`
	Popularity   float64 `json:"popularity" db:"popularity"`
	ReleasedOn   string  `json:"released_on" db:"released_on"`
	Meta
}

func (*Movie) Kind() Kind { return KindMovies }
func (m *Movie) Values() []any {
	return []any{m.Title, m.Overview, m.AverageVotes, m.TotalVotes, m.ImageURL,
		m.Popularity, m.ReleasedOn, m.SearchQuery, m.DateCreated}
}

type Business struct {
	Name     string  `json:"name" db:"name"`
	ImageURL string  `json:"image_url" db:"image_url"`
	Price    string  `json:"price" db:"price"`
	Rating   float64 `json:"rating" db:"rating"`
	URL      string  `json:"url" db:"url"`
	Meta
}

func (*Business) Kind() Kind { return KindYelp }
func (b *Business) Values() []any {
	return []any{b.Name, b.ImageURL, b.Price, b.Rating, b.URL, b.SearchQuery, b.DateCreated}
}

var columns = map[Kind][]string{
	KindLocation: {"formatted_query", "latitude", "longitude", "search_query", "date_created"},
	KindWeather:  {"forecast", "time", "search_query", "date_created"},
	KindEvents:   {"link", "name", "event_date", "summary", "search_query", "date_created"},
	KindMovies:   {"title", "overview", "average_votes", "total_votes", "image_url", "popularity", "released_on", "search_query", "date_created"},
	KindYelp:     {"name", "image_url", "price", "rating", "url", "search_query", "date_created"},
}

// Columns returns the persisted columns of kind k, matching Record.Values.
func Columns(k Kind) []string {
	c, ok := columns[k]
	if !ok {
		panic(fmt.Sprintf("records: unknown kind %q", k))
	}
	return c
}

// Decode unmarshals a JSON array of records of kind k, as produced by
// json.Marshal on a []Record.
func Decode(k Kind, raw []byte) ([]Record, error) {
	switch k {
	case KindLocation:
		return decode[Location](raw)
	case KindWeather:
		return decode[Weather](raw)
	case KindEvents:
		return decode[Event](raw)
	case KindMovies:
		return decode[Movie](raw)
	case KindYelp:
		return decode[Business](raw)
	default:
		return nil, fmt.Errorf("decode records: unknown kind %q", k)
	}
}

func decode[T any, P interface {
	*T
	Record
}](raw []byte) ([]Record, error) {
	var rows []*T
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %T records: %w", *new(T), err)
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = P(r)
	}
	return out, nil
}
