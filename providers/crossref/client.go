// Package crossref enriches extracted records against the CrossRef works
// API, following its polite-pool etiquette: an identifying User-Agent, a
// client-side rate limit and backoff on 429/5xx responses.
package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ref-mill/services"
)

const (
	// BaseURL is the CrossRef works API base URL.
	BaseURL = "https://api.crossref.org/works"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRate is the client-side request rate per second.
	DefaultRate = 5.0

	// DefaultRetries is how many times a transient response is retried.
	DefaultRetries = 3

	searchRows = 5
)

// ErrNotFound means CrossRef has no record for the query. It is a normal
// outcome, not a failure: the record simply stays unenriched.
var ErrNotFound = errors.New("crossref: work not found")

// Client is a rate-limited HTTP client for the CrossRef works API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	retries    int
	backoff    time.Duration
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithMailto sets the contact address sent in the User-Agent, which routes
// requests into CrossRef's polite pool.
func WithMailto(mailto string) ClientOption {
	return func(c *Client) {
		c.mailto = mailto
	}
}

// WithRate sets the client-side request rate per second.
func WithRate(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetries sets how many transient failures are retried.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.retries = n
	}
}

// WithBackoff sets the base retry backoff (for testing).
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a CrossRef client.
func NewClient(logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), 1),
		baseURL:    BaseURL,
		retries:    DefaultRetries,
		backoff:    time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupDOI fetches the work registered under a DOI.
func (c *Client) LookupDOI(ctx context.Context, doi string) (services.Fields, error) {
	raw, err := c.get(ctx, c.baseURL+"/"+url.PathEscape(doi))
	if err != nil {
		return services.Fields{}, err
	}

	var resp worksResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return services.Fields{}, fmt.Errorf("crossref: parsing work: %w", err)
	}
	return toFields(resp.Message), nil
}

// SearchTitleAuthor finds the best bibliographic match for a title and
// author string. The first result of the relevance-ranked query is taken;
// no result at all maps to ErrNotFound.
func (c *Client) SearchTitleAuthor(ctx context.Context, title, authors string) (services.Fields, error) {
	if title == "" {
		return services.Fields{}, ErrNotFound
	}

	q := url.Values{}
	q.Set("query.title", title)
	if authors != "" {
		q.Set("query.author", authors)
	}
	q.Set("rows", fmt.Sprint(searchRows))

	raw, err := c.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return services.Fields{}, err
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return services.Fields{}, fmt.Errorf("crossref: parsing search results: %w", err)
	}
	if len(resp.Message.Items) == 0 {
		return services.Fields{}, ErrNotFound
	}
	return toFields(resp.Message.Items[0]), nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			c.logger.Debug("crossref retry",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("crossref: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = fmt.Errorf("crossref: reading response: %w", err)
				continue
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("crossref: status %d", resp.StatusCode)
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("crossref: unexpected status %d", resp.StatusCode)
		}
	}
	return nil, lastErr
}

func (c *Client) userAgent() string {
	if c.mailto != "" {
		return fmt.Sprintf("ref-mill/1.0 (mailto:%s)", c.mailto)
	}
	return "ref-mill/1.0"
}
