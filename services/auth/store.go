// Package auth owns the access token: it is the only component that
// writes one, the only component that clears one, and the place every
// concurrent refresh collapses into a single upstream call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"flexa/internal/events"
	"flexa/internal/securestore"
	"flexa/models"
	"flexa/services/api"
)

var (
	ErrNotSignedIn        = errors.New("auth: not signed in")
	ErrNoPendingSignIn    = errors.New("auth: no sign-in in progress")
	ErrVerificationFailed = errors.New("auth: verification failed")
)

const (
	storeKeyToken = "access_token"

	// DefaultRefreshThreshold is how close to expiry a token gets before
	// the background refresh renews it early.
	DefaultRefreshThreshold = 5 * time.Minute
)

type tokenResponse struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	ExpiresIn int64  `json:"expires_in"`
	Status    string `json:"status,omitempty"`
}

// Store holds the current access token behind a read/write lock and
// persists it so a relaunched app resumes signed in.
type Store struct {
	log    *slog.Logger
	api    *api.Client
	secure securestore.Store
	bus    *events.Bus

	mu        sync.RWMutex
	token     *models.AccessToken
	pendingID string

	group singleflight.Group
}

// NewStore creates the auth store and loads any persisted token.
func NewStore(apiClient *api.Client, secure securestore.Store, bus *events.Bus) (*Store, error) {
	s := &Store{
		log:    slog.Default().With("component", "auth"),
		api:    apiClient,
		secure: secure,
		bus:    bus,
	}

	var stored models.AccessToken
	found, err := secure.Get(storeKeyToken, &stored)
	if err != nil {
		return nil, fmt.Errorf("load persisted token: %w", err)
	}
	if found && stored.Value != "" {
		s.token = &stored
	}
	return s, nil
}

// Current returns the access token, if one exists. Readers proceed
// concurrently; only refresh and sign-out take the write lock.
func (s *Store) Current() (models.AccessToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return models.AccessToken{}, false
	}
	return *s.token, true
}

// IsSignedIn reports whether a token exists, expired or not.
func (s *Store) IsSignedIn() bool {
	_, ok := s.Current()
	return ok
}

// ShouldRefresh reports whether the token is expired, or active but within
// threshold of expiring.
func (s *Store) ShouldRefresh(threshold time.Duration) bool {
	token, ok := s.Current()
	if !ok {
		return false
	}
	if token.IsExpired() {
		return true
	}
	remaining := token.ExpiringIn()
	return remaining != nil && *remaining < threshold
}

// Begin starts email sign-in: the server mails a verification code and
// returns a pending token.
func (s *Store) Begin(ctx context.Context, email string) error {
	res := api.Resource{
		Method:          http.MethodPost,
		Path:            "/tokens",
		Body:            map[string]string{"email": email},
		Unauthenticated: true,
		NoRetry:         true,
		WrapError: func(err error) error {
			return &api.ReasonError{
				Title:   "Sign in failed",
				Message: "We could not start sign in. Please try again.",
				Err:     err,
			}
		},
	}

	var resp tokenResponse
	if _, err := s.api.Do(ctx, res, &resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.pendingID = resp.ID
	s.mu.Unlock()
	return nil
}

// Verify completes sign-in with the emailed code, minting the first
// access token.
func (s *Store) Verify(ctx context.Context, code string) error {
	s.mu.RLock()
	pendingID := s.pendingID
	s.mu.RUnlock()
	if pendingID == "" {
		return ErrNoPendingSignIn
	}

	res := api.Resource{
		Method:          http.MethodPatch,
		Path:            "/tokens/:id",
		PathParams:      map[string]string{"id": pendingID},
		Body:            map[string]string{"verifier": code},
		Unauthenticated: true,
		NoRetry:         true,
		WrapError: func(err error) error {
			return &api.ReasonError{
				Title:   "Verification failed",
				Message: "The code was not accepted. Please try again.",
				Err:     fmt.Errorf("%w: %w", ErrVerificationFailed, err),
			}
		},
	}

	var resp tokenResponse
	if _, err := s.api.Do(ctx, res, &resp); err != nil {
		return err
	}

	token := models.AccessToken{
		ID:        resp.ID,
		Value:     resp.Value,
		IssuedAt:  time.Now(),
		ExpiresIn: resp.ExpiresIn,
	}
	s.setToken(token)

	s.mu.Lock()
	s.pendingID = ""
	s.mu.Unlock()
	return nil
}

// Refresh replaces the current token with a renewed one. Concurrent
// callers collapse into a single upstream call and share its result.
func (s *Store) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Store) refresh(ctx context.Context) error {
	current, ok := s.Current()
	if !ok {
		return ErrNotSignedIn
	}

	res := api.Resource{
		Method:          http.MethodPut,
		Path:            "/tokens/:id",
		PathParams:      map[string]string{"id": current.ID},
		Body:            map[string]string{"value": current.Value},
		Unauthenticated: true,
		NoRetry:         true,
	}

	var resp tokenResponse
	if _, err := s.api.Do(ctx, res, &resp); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	s.setToken(models.AccessToken{
		ID:        resp.ID,
		Value:     resp.Value,
		IssuedAt:  time.Now(),
		ExpiresIn: resp.ExpiresIn,
	})
	return nil
}

// SignOut clears the stored credential and broadcasts the authorization
// failure so every dependent component resets. The broadcast fires even
// when no token was held: a request attempted with no credentials is
// itself an authorization failure the host must hear about. A nil
// reason clears state quietly.
func (s *Store) SignOut(reason error) {
	s.mu.Lock()
	s.token = nil
	s.pendingID = ""
	s.mu.Unlock()

	if err := s.secure.Remove(storeKeyToken); err != nil {
		s.log.Error("remove persisted token", "error", err)
	}

	if reason != nil && s.bus != nil {
		s.bus.Publish(events.TopicAuthorizationError, reason)
	}
}

func (s *Store) setToken(token models.AccessToken) {
	s.mu.Lock()
	s.token = &token
	s.mu.Unlock()

	if err := s.secure.Set(storeKeyToken, token); err != nil {
		s.log.Error("persist token", "error", err)
	}
}
