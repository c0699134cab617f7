// Package grobid wraps the GROBID structured-extraction service. Requests
// carry the PDF as multipart form data and responses come back as TEI XML.
package grobid

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ref-mill/services"
)

const (
	// DefaultTimeout bounds one extraction request end to end.
	DefaultTimeout = 60 * time.Second

	isAlivePath    = "/api/isalive"
	headerPath     = "/api/processHeaderDocument"
	referencesPath = "/api/processReferences"
)

// ErrUnavailable marks a transient failure: the service is down, timing out
// or shedding load. Jobs hitting it are retried rather than failed.
var ErrUnavailable = errors.New("grobid unavailable")

// Client is an HTTP client for one GROBID instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a client for the GROBID instance at baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAlive reports whether the service answers its health endpoint.
func (c *Client) IsAlive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+isAlivePath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ExtractHeader runs header extraction on a PDF and returns the document's
// own bibliographic fields. A 204 response means GROBID found nothing; the
// zero value is returned without error and the caller's quality gate decides
// what to do with it.
func (c *Client) ExtractHeader(ctx context.Context, pdf []byte) (services.Fields, error) {
	doc, err := c.process(ctx, headerPath, pdf)
	if err != nil || doc == nil {
		return services.Fields{}, err
	}
	return headerFields(doc), nil
}

// ExtractReferences runs reference parsing on a PDF and returns one field
// set per recognised entry.
func (c *Client) ExtractReferences(ctx context.Context, pdf []byte) ([]services.Fields, error) {
	doc, err := c.process(ctx, referencesPath, pdf)
	if err != nil || doc == nil {
		return nil, err
	}
	refs := make([]services.Fields, 0, len(doc.Text.ListBibl))
	for _, b := range doc.Text.ListBibl {
		f := biblFields(b)
		if f.Empty() {
			continue
		}
		refs = append(refs, f)
	}
	return refs, nil
}

func (c *Client) process(ctx context.Context, path string, pdf []byte) (*TEI, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("input", "input.pdf")
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		c.logger.Debug("grobid returned no content", zap.String("path", path))
		return nil, nil
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("grobid: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	var doc TEI
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("grobid: parsing TEI response: %w", err)
	}
	return &doc, nil
}
