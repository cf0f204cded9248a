// Package yelp is a thin client for the Yelp Fusion business endpoints.
package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/SOA2017-ILV/CityDashboardAPI/pkg/httpclient"
)

const (
	// DefaultBaseURL is the Yelp Fusion API host.
	DefaultBaseURL = "https://api.yelp.com"
	// DefaultSearchLimit is sent when a SearchQuery leaves Limit unset.
	DefaultSearchLimit = 5

	searchPath   = "/v3/businesses/search"
	businessPath = "/v3/businesses/"
)

// Payload is a decoded JSON object returned verbatim from the API.
type Payload map[string]any

// SearchQuery holds the parameters of a business search. A zero Limit means DefaultSearchLimit.
type SearchQuery struct {
	Term     string
	Location string
	Limit    int
}

// Client issues authenticated requests against the Fusion API. It holds no
// mutable state and may be shared between goroutines.
type Client struct {
	token   string
	baseURL string
	http    httpclient.Client
	log     Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API host, e.g. for a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(client httpclient.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// NewClient builds a Client for the given bearer token. The token is sent as-is;
// the API decides whether it is valid.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		log:     noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(httpclient.Options{})
	}
	return c
}

// Search runs a business search. Term and location are not validated locally.
func (c *Client) Search(ctx context.Context, q SearchQuery) (Payload, error) {
	limit := q.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	params := url.Values{}
	params.Set("term", q.Term)
	params.Set("location", q.Location)
	params.Set("limit", strconv.Itoa(limit))

	return c.get(ctx, searchPath, params)
}

// Business looks up a single business by id.
func (c *Client) Business(ctx context.Context, id string) (Payload, error) {
	return c.get(ctx, businessPath+url.PathEscape(id), nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (Payload, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + c.token,
		"Accept":        "application/json",
	}

	resp, err := c.http.Get(ctx, c.baseURL+path, params, headers)
	if err != nil {
		return nil, fmt.Errorf("yelp request %s: %w", path, err)
	}

	c.log.DebugObj("yelp request completed", "yelp_request", map[string]any{
		"path":   path,
		"query":  params.Encode(),
		"status": resp.StatusCode(),
	})

	if err := errorForStatus(resp.StatusCode(), resp.Body()); err != nil {
		c.log.WarnObj("yelp request failed", "yelp_error", map[string]any{
			"path":   path,
			"status": resp.StatusCode(),
			"error":  err.Error(),
		})
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode yelp response %s: %w", path, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("decode yelp response %s: empty json object", path)
	}
	return payload, nil
}
