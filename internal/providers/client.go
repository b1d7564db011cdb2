package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/briangreenhill/cityexplorer/internal/metrics"
)

// ErrMalformed is returned when a provider answers 2xx with a body that does
// not have the expected shape.
var ErrMalformed = errors.New("malformed provider response")

// StatusError is returned for any non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.Status, http.StatusText(e.Status), e.Body)
}

type Option func(*options)

type options struct {
	http    *http.Client
	baseURL string
}

func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.http = h }
}

// WithBaseURL points the client at another host, e.g. a test server.
// Empty values keep the default.
func WithBaseURL(raw string) Option {
	return func(o *options) {
		if raw != "" {
			o.baseURL = raw
		}
	}
}

// client is the GET-and-decode plumbing shared by every provider.
type client struct {
	name    string
	http    *http.Client
	baseURL *url.URL
}

func newClient(name, defaultBase string, opts []Option) (*client, error) {
	o := options{http: http.DefaultClient, baseURL: defaultBase}
	for _, fn := range opts {
		fn(&o)
	}
	u, err := url.Parse(o.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", name, err)
	}
	return &client{name: name, http: o.http, baseURL: u}, nil
}

// maxErrorBody bounds how much of a failed response ends up in StatusError.
const maxErrorBody = 512

// getJSON issues GET base+p?q and decodes a 2xx body into out. URLs are kept
// out of errors since several providers carry credentials in them.
func (c *client) getJSON(ctx context.Context, p string, q url.Values, out any) error {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstream(c.name, 0, time.Since(start))
		return fmt.Errorf("%s: request failed: %w", c.name, redact(err))
	}
	defer resp.Body.Close() //nolint:errcheck
	metrics.RecordUpstream(c.name, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &StatusError{Provider: c.name, Status: resp.StatusCode, Body: text}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", c.name, ErrMalformed, err)
	}
	return nil
}

// redact drops the request URL from transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
