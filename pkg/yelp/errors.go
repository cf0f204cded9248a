package yelp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Error kinds. Use errors.Is against these to classify failures returned by Client.
var (
	// ErrUnauthorized means the API rejected the bearer token (401).
	ErrUnauthorized = errors.New("yelp: unauthorized")
	// ErrNotFound means the requested resource does not exist (404).
	ErrNotFound = errors.New("yelp: not found")
	// ErrUnexpectedStatus covers every other non-2xx status.
	ErrUnexpectedStatus = errors.New("yelp: unexpected status")
)

var statusErrors = map[int]error{
	http.StatusUnauthorized: ErrUnauthorized,
	http.StatusNotFound:     ErrNotFound,
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	Body        []byte

	kind error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (status %d)", e.Unwrap(), e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	} else if snippet := responseSnippet(e.Body); snippet != "" {
		fmt.Fprintf(&b, ": %s", snippet)
	}
	return b.String()
}

// Unwrap exposes the error kind.
func (e *APIError) Unwrap() error {
	if e.kind == nil {
		return ErrUnexpectedStatus
	}
	return e.kind
}

// errorEnvelope is the body Yelp sends alongside error statuses.
type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// errorForStatus returns nil for 2xx statuses and an *APIError otherwise.
func errorForStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	kind, ok := statusErrors[status]
	if !ok {
		kind = ErrUnexpectedStatus
	}

	apiErr := &APIError{StatusCode: status, Body: body, kind: kind}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Description = env.Error.Description
	}
	return apiErr
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
