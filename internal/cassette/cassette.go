// Package cassette wraps go-vcr so tests can replay recorded Yelp exchanges
// and re-record them against the live API when asked to.
package cassette

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"
)

// Mode selects how unmatched requests are handled.
type Mode int

const (
	// ModeReplay fails any request that has no recorded interaction.
	ModeReplay Mode = iota
	// ModeRecordNew replays known interactions and records unmatched ones from the real transport.
	ModeRecordNew
)

// ErrNoInteraction is returned in replay mode when a request has no recording.
var ErrNoInteraction = cassette.ErrInteractionNotFound

// Filter hides a secret value behind a placeholder in the stored file.
// The query-escaped form of Value is stored as the placeholder with an _ESC suffix.
type Filter struct {
	Placeholder string
	Value       string
}

// Options configures a Recorder.
type Options struct {
	Mode    Mode
	Filters []Filter
	// MatchHeaders lists request headers that must match in addition to method and URL.
	// Defaults to Authorization.
	MatchHeaders []string
	// Transport serves unmatched requests in ModeRecordNew. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// ModeFromEnv returns ModeRecordNew when the named variable is set to a true-ish value.
func ModeFromEnv(key string) Mode {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return ModeRecordNew
	default:
		return ModeReplay
	}
}

// Recorder is an http.RoundTripper backed by a go-vcr cassette.
type Recorder struct {
	rec *recorder.Recorder
}

// Open loads the cassette name (stored as name.yaml). A missing file is only accepted in ModeRecordNew.
func Open(name string, opts Options) (*Recorder, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".yaml")
	if name == "" {
		return nil, errors.New("cassette name is empty")
	}
	opts = normalizeOptions(opts)

	mode := recorder.ModeReplayOnly
	if opts.Mode == ModeRecordNew {
		mode = recorder.ModeReplayWithNewEpisodes
	}

	rec, err := recorder.New(name,
		recorder.WithMode(mode),
		recorder.WithRealTransport(opts.Transport),
		recorder.WithReplayableInteractions(true),
		recorder.WithSkipRequestLatency(true),
		recorder.WithMatcher(matcher(opts)),
		recorder.WithHook(concealHook(opts.Filters), recorder.BeforeSaveHook),
		recorder.WithHook(revealHook(opts.Filters), recorder.BeforeResponseReplayHook),
	)
	if err != nil {
		return nil, fmt.Errorf("open cassette %s: %w", name, err)
	}
	return &Recorder{rec: rec}, nil
}

func normalizeOptions(opts Options) Options {
	if len(opts.MatchHeaders) == 0 {
		opts.MatchHeaders = []string{"Authorization"}
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	filters := make([]Filter, 0, len(opts.Filters))
	for _, f := range opts.Filters {
		if f.Placeholder == "" || f.Value == "" {
			continue
		}
		filters = append(filters, f)
	}
	opts.Filters = filters
	return opts
}

// RoundTrip serves req from the cassette, recording it first when allowed.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	return r.rec.RoundTrip(req)
}

// Stop flushes newly recorded interactions to disk with secrets concealed.
func (r *Recorder) Stop() error {
	return r.rec.Stop()
}

// matcher compares method, URL and the selected headers after restoring secrets in the recording.
func matcher(opts Options) cassette.MatcherFunc {
	return func(req *http.Request, recorded cassette.Request) bool {
		if !strings.EqualFold(req.Method, recorded.Method) {
			return false
		}
		if req.URL.String() != reveal(recorded.URL, opts.Filters) {
			return false
		}
		for _, name := range opts.MatchHeaders {
			if req.Header.Get(name) != reveal(recorded.Headers.Get(name), opts.Filters) {
				return false
			}
		}
		return true
	}
}

func concealHook(filters []Filter) recorder.HookFunc {
	return func(i *cassette.Interaction) error {
		i.Request.URL = conceal(i.Request.URL, filters)
		i.Request.Body = conceal(i.Request.Body, filters)
		rewriteHeader(i.Request.Headers, func(s string) string { return conceal(s, filters) })
		i.Response.Body = conceal(i.Response.Body, filters)
		rewriteHeader(i.Response.Headers, func(s string) string { return conceal(s, filters) })
		return nil
	}
}

func revealHook(filters []Filter) recorder.HookFunc {
	return func(i *cassette.Interaction) error {
		i.Response.Body = reveal(i.Response.Body, filters)
		rewriteHeader(i.Response.Headers, func(s string) string { return reveal(s, filters) })
		return nil
	}
}

// conceal swaps secret values (raw and query-escaped) for their placeholders.
func conceal(s string, filters []Filter) string {
	for _, f := range filters {
		s = strings.ReplaceAll(s, f.Value, f.Placeholder)
		if esc := url.QueryEscape(f.Value); esc != f.Value {
			s = strings.ReplaceAll(s, esc, escapedPlaceholder(f.Placeholder))
		}
	}
	return s
}

// reveal is the inverse of conceal.
func reveal(s string, filters []Filter) string {
	for _, f := range filters {
		s = strings.ReplaceAll(s, escapedPlaceholder(f.Placeholder), url.QueryEscape(f.Value))
		s = strings.ReplaceAll(s, f.Placeholder, f.Value)
	}
	return s
}

// escapedPlaceholder turns <TOKEN> into <TOKEN_ESC>.
func escapedPlaceholder(p string) string {
	if strings.HasSuffix(p, ">") {
		return strings.TrimSuffix(p, ">") + "_ESC>"
	}
	return p + "_ESC"
}

func rewriteHeader(h http.Header, fn func(string) string) {
	for k, vs := range h {
		for i := range vs {
			vs[i] = fn(vs[i])
		}
		h[k] = vs
	}
}
