// Package api builds requests from declarative resources, executes them,
// and runs the retry/token-refresh state machine around every call.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flexa/config"
	"flexa/internal/events"
	"flexa/internal/guard"
	"flexa/models"
)

// TokenProvider is the slice of the auth store the engine needs: read the
// current token, refresh it, and clear it when auth is unrecoverable.
type TokenProvider interface {
	Current() (models.AccessToken, bool)
	Refresh(ctx context.Context) error
	SignOut(reason error)
}

// Client executes declarative resources against the Flexa API.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	cfg        config.Config
	bus        *events.Bus
	tokens     TokenProvider
	canSpend   *guard.Value[bool]

	// BaseURL overrides scheme+host, used by tests pointing at a local
	// server. Empty means https:// plus the configured host.
	BaseURL string

	// retryDelay picks the wait before the single invalid-token retry.
	// Injectable so tests can observe and shrink it.
	retryDelay func() time.Duration
	sleep      func(context.Context, time.Duration) error
}

// NewClient creates an engine. The token provider is attached afterwards
// with SetTokenProvider, since the auth store itself sends through this
// client.
func NewClient(cfg config.Config, bus *events.Bus, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		log:        slog.Default().With("component", "api"),
		httpClient: httpClient,
		cfg:        cfg,
		bus:        bus,
		canSpend:   guard.NewValue(true),
		retryDelay: func() time.Duration {
			// Uniform in [1,5) seconds; spreads out clients retrying after
			// a server-side token rotation.
			return time.Duration(float64(time.Second) * (1 + rand.Float64()*4))
		},
		sleep: sleepCtx,
	}
}

// SetTokenProvider attaches the auth store.
func (c *Client) SetTokenProvider(p TokenProvider) {
	c.tokens = p
}

// CanSpend reports whether the SDK believes payment capability is
// currently available (false after a restricted-region response).
func (c *Client) CanSpend() bool {
	return c.canSpend.Get()
}

func (c *Client) setCanSpend(v bool) {
	if c.canSpend.Get() == v {
		return
	}
	c.canSpend.Set(v)
	if c.bus != nil {
		c.bus.Publish(events.TopicCapabilityChanged, v)
	}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return "https://" + c.cfg.Host
}

// Do executes the resource and decodes the response into out (skipped when
// out is nil). Recoverable auth failures are handled internally: an
// expired token triggers one refresh-and-resend, a racy 401 triggers one
// jittered retry. Callers see only terminal outcomes.
func (c *Client) Do(ctx context.Context, res Resource, out any) (*http.Response, error) {
	return c.send(ctx, res, out, true, true)
}

// send is one pass of the state machine. retryOnInvalidToken and
// refreshOnFailure each allow their branch exactly once per logical call;
// recursion always clears the flag it consumed, so the machine terminates.
func (c *Client) send(ctx context.Context, res Resource, out any, retryOnInvalidToken, refreshOnFailure bool) (*http.Response, error) {
	secret := c.cfg.PublishableKey
	if !res.Unauthenticated {
		if c.tokens == nil {
			return nil, ErrNotAuthenticated
		}
		token, ok := c.tokens.Current()
		if !ok {
			// No credentials at all: unauthenticated, not recoverable here.
			c.tokens.SignOut(ErrNotAuthenticated)
			return nil, ErrNotAuthenticated
		}
		if token.IsExpired() {
			// Best effort; the request below still goes out either way.
			if err := c.tokens.Refresh(ctx); err != nil {
				c.log.Debug("proactive refresh failed", "error", err)
			}
			if fresh, ok := c.tokens.Current(); ok {
				token = fresh
			}
		}
		secret = token.Value
	}

	resp, err := c.execute(ctx, res, secret, out)
	if err == nil {
		c.setCanSpend(true)
		return resp, nil
	}

	if IsRestrictedRegion(err) {
		c.setCanSpend(false)
		return resp, err
	}
	// The server is reachable; the call merely failed.
	c.setCanSpend(true)

	if IsExpiredToken(err) && refreshOnFailure {
		return c.refreshAndRetry(ctx, res, out, err)
	}

	if IsUnauthorized(err) && retryOnInvalidToken {
		// A token may have been rotated server-side while this request was
		// in flight. One spread-out retry picks up the replacement.
		if serr := c.sleep(ctx, c.retryDelay()); serr != nil {
			return resp, serr
		}
		return c.send(ctx, res, out, false, refreshOnFailure)
	}

	return resp, c.wrap(res, err)
}

// refreshAndRetry handles a server-declared expired token: refresh, then
// resend the original request once.
func (c *Client) refreshAndRetry(ctx context.Context, res Resource, out any, original error) (*http.Response, error) {
	if res.NoRetry {
		return nil, c.wrap(res, original)
	}

	expired := true
	if token, ok := c.tokens.Current(); ok {
		expired = token.IsExpired()
	}
	if !expired && !isRefreshWorthy(original) {
		return nil, c.wrap(res, original)
	}

	if refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
		if IsRestrictedRegion(refreshErr) {
			c.setCanSpend(false)
			return nil, refreshErr
		}
		if IsUnauthorized(refreshErr) {
			c.tokens.SignOut(refreshErr)
			return nil, c.wrap(res, refreshErr)
		}
		return nil, c.wrap(res, original)
	}

	return c.send(ctx, res, out, false, false)
}

// isRefreshWorthy classifies failures where a fresh token might change the
// outcome.
func isRefreshWorthy(err error) bool {
	if IsRestrictedRegion(err) {
		return false
	}
	return IsForbidden(err) || IsUnauthorized(err) || IsNotFound(err)
}

// wrap applies the terminal error policy: auth and region failures get the
// generic wrapper, everything else gets the resource's own reason.
func (c *Client) wrap(res Resource, err error) error {
	if IsRestrictedRegion(err) || IsUnauthorized(err) {
		return &ReasonError{
			Title:   "Authorization failed",
			Message: "Your session is no longer valid. Please sign in again.",
			Err:     err,
		}
	}
	if res.WrapError != nil {
		return res.WrapError(err)
	}
	return err
}

// execute performs one HTTP round trip and classifies the outcome.
func (c *Client) execute(ctx context.Context, res Resource, secret string, out any) (*http.Response, error) {
	req, err := c.buildRequest(ctx, res, secret)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: res.Method, Path: res.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, &TransportError{Method: res.Method, Path: res.Path, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return resp, newStatusError(res.Method, res.Path, resp.StatusCode, body)
	}

	if out == nil {
		return resp, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return resp, ErrMissingData
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp, &DecodeError{Err: err}
	}
	return resp, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Page is the server's standard list envelope.
type Page[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// DefaultPageLimit is the page size used when walking full lists.
const DefaultPageLimit = 100

// GetAll walks a paginated list resource to exhaustion using limit and
// starting_after cursors. cursor extracts the id used to resume after the
// last item of a page.
func GetAll[T any](ctx context.Context, c *Client, res Resource, cursor func(T) string) ([]T, error) {
	var all []T
	startingAfter := ""

	for {
		query := url.Values{}
		for k, vs := range res.Query {
			query[k] = vs
		}
		query.Set("limit", strconv.Itoa(DefaultPageLimit))
		if startingAfter != "" {
			query.Set("starting_after", startingAfter)
		}

		paged := res
		paged.Query = query

		var page Page[T]
		if _, err := c.Do(ctx, paged, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		startingAfter = cursor(page.Data[len(page.Data)-1])
	}
}
