package cassette

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCassette = `---
version: 2
interactions:
    - id: 0
      request:
        proto: HTTP/1.1
        proto_major: 1
        proto_minor: 1
        host: api.yelp.com
        headers:
            Authorization:
                - Bearer <TOKEN>
        url: https://api.yelp.com/v3/businesses/yelp-san-francisco
        method: GET
      response:
        proto: HTTP/1.1
        proto_major: 1
        proto_minor: 1
        content_length: -1
        body: '{"id":"yelp-san-francisco","name":"Yelp"}'
        headers:
            Content-Type:
                - application/json
        status: 200 OK
        code: 200
`

var tokenFilter = []Filter{{Placeholder: "<TOKEN>", Value: "secret"}}

func writeCassette(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "cassette")
	require.NoError(t, os.WriteFile(name+".yaml", []byte(content), 0o644))
	return name
}

func get(t *testing.T, rt http.RoundTripper, url, auth string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return rt.RoundTrip(req)
}

func TestReplayServesRecordedInteraction(t *testing.T) {
	rec, err := Open(writeCassette(t, sampleCassette), Options{Filters: tokenFilter})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Stop() })

	for i := 0; i < 2; i++ {
		resp, err := get(t, rec, "https://api.yelp.com/v3/businesses/yelp-san-francisco", "Bearer secret")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"id":"yelp-san-francisco","name":"Yelp"}`, string(body))
	}
}

func TestReplayRejectsHeaderMismatch(t *testing.T) {
	rec, err := Open(writeCassette(t, sampleCassette), Options{Filters: tokenFilter})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Stop() })

	_, err = get(t, rec, "https://api.yelp.com/v3/businesses/yelp-san-francisco", "Bearer other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInteraction), "got %v", err)
}

func TestReplayRequiresExistingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
	require.Error(t, err)
}

func TestOpenRejectsEmptyName(t *testing.T) {
	_, err := Open("  ", Options{})
	require.Error(t, err)
}

func TestRecordNewStoresAndFiltersSecrets(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"echo":"` + r.Header.Get("Authorization") + `"}`))
	}))
	defer srv.Close()

	name := filepath.Join(t.TempDir(), "recorded")
	filters := []Filter{{Placeholder: "<TOKEN>", Value: "s3cr3t+value"}}
	target := srv.URL + "/v3/businesses/search?term=dinner&key=s3cr3t%2Bvalue"

	rec, err := Open(name, Options{Mode: ModeRecordNew, Filters: filters})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := get(t, rec, target, "Bearer s3cr3t+value")
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, int32(1), hits.Load(), "second call should be served from the cassette")
	require.NoError(t, rec.Stop())

	raw, err := os.ReadFile(name + ".yaml")
	require.NoError(t, err)
	stored := string(raw)
	assert.NotContains(t, stored, "s3cr3t")
	assert.Contains(t, stored, "Bearer <TOKEN>")
	assert.Contains(t, stored, "key=<TOKEN_ESC>")

	replay, err := Open(name, Options{Filters: filters})
	require.NoError(t, err)
	t.Cleanup(func() { _ = replay.Stop() })

	resp, err := get(t, replay, target, "Bearer s3cr3t+value")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"Bearer s3cr3t+value"}`, string(body))
	assert.Equal(t, int32(1), hits.Load(), "replay must not reach the server")
}

func TestModeFromEnv(t *testing.T) {
	t.Setenv("CASSETTE_RECORD_TEST", "1")
	assert.Equal(t, ModeRecordNew, ModeFromEnv("CASSETTE_RECORD_TEST"))

	t.Setenv("CASSETTE_RECORD_TEST", " TRUE ")
	assert.Equal(t, ModeRecordNew, ModeFromEnv("CASSETTE_RECORD_TEST"))

	t.Setenv("CASSETTE_RECORD_TEST", "")
	assert.Equal(t, ModeReplay, ModeFromEnv("CASSETTE_RECORD_TEST"))

	t.Setenv("CASSETTE_RECORD_TEST", "no")
	assert.Equal(t, ModeReplay, ModeFromEnv("CASSETTE_RECORD_TEST"))
}

func TestConcealRevealRoundTrip(t *testing.T) {
	filters := []Filter{{Placeholder: "<TOKEN>", Value: "a b"}}
	in := "Bearer a b ?t=a+b"

	hidden := conceal(in, filters)
	assert.Equal(t, "Bearer <TOKEN> ?t=<TOKEN_ESC>", hidden)
	assert.Equal(t, in, reveal(hidden, filters))
}
