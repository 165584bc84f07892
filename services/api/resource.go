package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Resource declares one HTTP call: where it goes, what it carries, and
// how its failures are classified. Resources are values built fresh per
// call and never mutated after construction.
type Resource struct {
	Method     string
	Path       string // may contain :param placeholders
	PathParams map[string]string
	Query      url.Values
	Headers    http.Header
	Body       any

	// Unauthenticated calls authenticate with the publishable key instead
	// of the bearer token (used before any token exists).
	Unauthenticated bool

	// NoRetry forbids the refresh-and-retry flow for this call.
	NoRetry bool

	// WrapError maps a raw failure onto the resource's domain-specific
	// reason. Nil leaves the error unwrapped.
	WrapError func(error) error
}

// resolvedPath substitutes :param placeholders from PathParams.
func (r Resource) resolvedPath() (string, error) {
	if !strings.Contains(r.Path, ":") {
		return r.Path, nil
	}

	segments := strings.Split(r.Path, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		name := seg[1:]
		value, ok := r.PathParams[name]
		if !ok || value == "" {
			return "", fmt.Errorf("%w: missing path param %q", ErrInvalidRequest, name)
		}
		segments[i] = url.PathEscape(value)
	}
	return strings.Join(segments, "/"), nil
}

// buildRequest assembles the http.Request for a resource: scheme and host
// from configuration, path params substituted, JSON body, merged headers,
// HTTP Basic auth with the secret as the password half, and a fresh
// Client-Trace-Id for correlation.
func (c *Client) buildRequest(ctx context.Context, res Resource, secret string) (*http.Request, error) {
	path, err := res.resolvedPath()
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL() + path
	if len(res.Query) > 0 {
		endpoint += "?" + res.Query.Encode()
	}

	var body *bytes.Reader
	if res.Body != nil {
		raw, err := json.Marshal(res.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %v", ErrInvalidRequest, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, res.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.flexa+json")
	req.Header.Set("Flexa-Client", c.cfg.AppID)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Client-Trace-Id", uuid.NewString())
	for key, values := range res.Headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	req.Header.Set("Authorization", BasicAuth(secret))

	return req, nil
}

// BasicAuth encodes the credential the Flexa way: HTTP Basic with an
// empty username and the publishable key or bearer JWT as the password.
func BasicAuth(secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+secret))
}
