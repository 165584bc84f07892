package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

var (
	ErrInvalidRequest   = errors.New("api: invalid request")
	ErrInvalidResponse  = errors.New("api: invalid response")
	ErrMissingData      = errors.New("api: response carried no data")
	ErrNotAuthenticated = errors.New("api: no credentials available")
)

// Error codes the server attaches to failures that need special handling.
const (
	codeExpiredToken       = "expired_token"
	codeRegionNotSupported = "region_not_supported"
)

// StatusError is a non-2xx response. Code is filled when the body carried
// a structured API error payload.
type StatusError struct {
	Status  int
	Method  string
	Path    string
	Code    string
	Title   string
	Message string
	Debug   string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s %s returned %d (%s)", e.Method, e.Path, e.Status, e.Code)
	}
	return fmt.Sprintf("api: %s %s returned %d", e.Method, e.Path, e.Status)
}

// newStatusError parses the structured error payload when present.
func newStatusError(method, path string, status int, body []byte) *StatusError {
	e := &StatusError{Status: status, Method: method, Path: path, Body: body}

	var payload struct {
		Error struct {
			Code         string `json:"code"`
			Title        string `json:"title"`
			Message      string `json:"message"`
			DebugMessage string `json:"debug_message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Code = payload.Error.Code
		e.Title = payload.Error.Title
		e.Message = payload.Error.Message
		e.Debug = payload.Error.DebugMessage
	}
	return e
}

// DecodeError is a response body that could not be unmarshaled.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("api: decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError is a request that failed before producing a response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ReasonError is a failure wrapped with the domain-specific reason a
// resource assigns to it, carrying the user-facing text for the caller's
// UI surface.
type ReasonError struct {
	Title   string
	Message string
	Debug   string
	Err     error
}

func (e *ReasonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ReasonError) Unwrap() error { return e.Err }

// CanBeReported is true only when a debug message exists to report.
func (e *ReasonError) CanBeReported() bool { return e.Debug != "" }

func statusErr(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	se, ok := statusErr(err)
	return ok && se.Status == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool {
	se, ok := statusErr(err)
	return ok && se.Status == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	se, ok := statusErr(err)
	return ok && se.Status == http.StatusNotFound
}

// IsExpiredToken reports whether the server rejected the bearer token as
// expired, which is recoverable via a refresh.
func IsExpiredToken(err error) bool {
	se, ok := statusErr(err)
	return ok && se.Status == http.StatusUnauthorized && se.Code == codeExpiredToken
}

// IsRestrictedRegion reports whether the server disabled payment
// capability for the user's location. A plain 403 stays "forbidden"; the
// discriminator is the error code on the payload.
func IsRestrictedRegion(err error) bool {
	se, ok := statusErr(err)
	return ok && se.Status == http.StatusForbidden && se.Code == codeRegionNotSupported
}

// IsNetworkLost reports whether err is a connection-level failure rather
// than a server response, so callers can avoid alarming error UI for a
// flaky link.
func IsNetworkLost(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	var ue *url.Error
	if errors.As(te.Err, &ue) && (ue.Timeout() || ue.Temporary()) {
		return true
	}
	var ne net.Error
	return errors.As(te.Err, &ne)
}
