package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/SOA2017-ILV/CityDashboardAPI/internal/config"
	"github.com/SOA2017-ILV/CityDashboardAPI/internal/logger"
	"github.com/SOA2017-ILV/CityDashboardAPI/pkg/httpclient"
	"github.com/SOA2017-ILV/CityDashboardAPI/pkg/yelp"
)

// Demo parameters for Run.
const (
	DefaultTerm       = "dinner"
	DefaultLocation   = "San Francisco, CA"
	DefaultBusinessID = "yelp-san-francisco"
)

// BusinessAPI is the subset of yelp.Client the dashboard needs.
type BusinessAPI interface {
	Search(ctx context.Context, q yelp.SearchQuery) (yelp.Payload, error)
	Business(ctx context.Context, id string) (yelp.Payload, error)
}

// Dashboard runs Yelp lookups on behalf of the CLI.
type Dashboard struct {
	api BusinessAPI
	log logger.Logger
}

// NewDashboard builds a dashboard backed by a Yelp client configured from cfg.
func NewDashboard(cfg *config.Config, log logger.Logger) (*Dashboard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	transport := httpclient.NewRestyClient(httpclient.Options{Timeout: cfg.HTTPTimeout})
	client := yelp.NewClient(cfg.YelpToken,
		yelp.WithBaseURL(cfg.YelpAPIHost),
		yelp.WithHTTPClient(transport),
		yelp.WithLogger(log),
	)
	log.InfoObj("yelp client initialized", "yelp_client", map[string]any{
		"api_host":        cfg.YelpAPIHost,
		"timeout_seconds": int(cfg.HTTPTimeout.Seconds()),
	})

	return NewDashboardWith(client, log), nil
}

// NewDashboardWith wraps an existing API implementation.
func NewDashboardWith(api BusinessAPI, log logger.Logger) *Dashboard {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Dashboard{api: api, log: log}
}

// Run performs the fixed demo: one search printing business names, then one
// lookup printed as indented JSON.
func (d *Dashboard) Run(ctx context.Context, w io.Writer) error {
	start := time.Now()

	result, err := d.api.Search(ctx, yelp.SearchQuery{Term: DefaultTerm, Location: DefaultLocation})
	if err != nil {
		return fmt.Errorf("search %q in %q: %w", DefaultTerm, DefaultLocation, err)
	}
	for _, name := range BusinessNames(result) {
		fmt.Fprintln(w, name)
	}

	if err := d.PrintBusiness(ctx, w, DefaultBusinessID); err != nil {
		return err
	}

	d.log.InfoObj("dashboard demo completed", "demo_meta", map[string]any{
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// PrintSearch writes the raw search result as indented JSON.
func (d *Dashboard) PrintSearch(ctx context.Context, w io.Writer, q yelp.SearchQuery) error {
	result, err := d.api.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search %q in %q: %w", q.Term, q.Location, err)
	}
	return writeJSON(w, result)
}

// PrintBusiness writes a business record as indented JSON.
func (d *Dashboard) PrintBusiness(ctx context.Context, w io.Writer, id string) error {
	biz, err := d.api.Business(ctx, id)
	if err != nil {
		return fmt.Errorf("business %q: %w", id, err)
	}
	return writeJSON(w, biz)
}

// BusinessNames extracts businesses[].name from a search result, skipping malformed entries.
func BusinessNames(result yelp.Payload) []string {
	list, ok := result["businesses"].([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		biz, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := biz["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
