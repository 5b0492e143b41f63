package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tomes/pkg/log"
	"tomes/pkg/version"
)

var logger = log.ForService("openlibrary")

// DefaultBaseURL is the production Open Library endpoint.
const DefaultBaseURL = "https://openlibrary.org"

// DefaultLimit is the number of results requested when no limit is
// configured.
const DefaultLimit = 1

// DefaultFields are the response fields requested when none are configured.
var DefaultFields = []string{"title", "author_name"}

// Config holds the client defaults. The zero value is usable: Validate fills
// every unset field.
type Config struct {
	// Fields is the ordered list of response fields requested by default.
	Fields []string
	// Limit is the default maximum number of results per query.
	Limit int
	// BaseURL overrides the service endpoint, mainly for tests.
	BaseURL string
	// UserAgent identifies the tool to the service.
	UserAgent string
	// Timeout bounds each round-trip.
	Timeout time.Duration
	// RequestsPerSecond paces requests toward the public API. Zero disables
	// pacing. Pacing delays a call, it never adds attempts.
	RequestsPerSecond float64
}

// Validate normalizes unset fields to their defaults and rejects values that
// cannot be defaulted away.
func (c *Config) Validate() error {
	if len(c.Fields) == 0 {
		c.Fields = append([]string(nil), DefaultFields...)
	}
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = "tomes/" + version.Version
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// Client performs title searches against the Open Library search endpoint.
// It is immutable after construction and safe for concurrent use; each call
// is an independent synchronous round-trip with no shared mutable state, no
// caching and no retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
	fields     []string
	limit      int
}

// NewClient builds a client from cfg. Construction performs no I/O. The
// fields slice is copied so later mutation by the caller cannot reach the
// client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		fields:     append([]string(nil), cfg.Fields...),
		limit:      cfg.Limit,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// Fields returns a copy of the default response fields.
func (c *Client) Fields() []string {
	return append([]string(nil), c.fields...)
}

// Limit returns the default result limit.
func (c *Client) Limit() int {
	return c.limit
}

// SearchOptions override the client defaults for a single call. Zero values
// mean "use the default".
type SearchOptions struct {
	Fields []string
	Limit  int
}

// TransportError reports a search round-trip that could not complete or came
// back with a failure status. StatusCode is zero when no response was
// received; Err carries the underlying transport failure and is nil for
// status failures.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("requesting %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("API request failed with status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Search issues one GET to {base}/search.json for the given title and
// returns the decoded response. The title must be non-empty after trimming.
// Transport failures and non-2xx statuses return a *TransportError, logged
// once at the point of detection and then propagated; nothing is retried and
// identical queries always re-issue the call.
func (c *Client) Search(ctx context.Context, title string, opts SearchOptions) (*SearchResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title must not be empty")
	}

	fields := c.fields
	if len(opts.Fields) > 0 {
		fields = opts.Fields
	}
	limit := c.limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	url := c.searchURL(title, fields, limit)
	logger.Debugf("GET %s", url)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &TransportError{URL: url, Err: err}
		logger.Errorf("API request failed: %v", terr)
		return nil, terr
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("closing response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &TransportError{URL: url, StatusCode: resp.StatusCode}
		logger.Errorf("API request failed: %v", terr)
		return nil, terr
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &result, nil
}

// searchURL assembles the query string by hand. The service expects spaces
// inside the title as literal '+' separators and the field list as a raw
// comma join; url.Values would percent-escape both. Reserved characters
// beyond spaces are passed through untouched, so titles containing '&' or
// '#' will not survive the trip intact.
func (c *Client) searchURL(title string, fields []string, limit int) string {
	term := strings.ReplaceAll(title, " ", "+")
	return fmt.Sprintf("%s/search.json?title=%s&fields=%s&limit=%d",
		c.baseURL, term, strings.Join(fields, ","), limit)
}
