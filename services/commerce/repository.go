// Package commerce manages the server-owned payment session: creating and
// mutating it over REST, and keeping a local copy in sync from the
// server's event stream.
package commerce

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"flexa/internal/securestore"
	"flexa/models"
	"flexa/services/api"
)

const storeKeyCurrentSession = "current_commerce_session"

// Repository creates, fetches, and mutates commerce sessions. The local
// "current" session survives restarts so an interrupted payment can
// resume; server-pushed snapshots are the only thing that mutates it.
type Repository struct {
	log    *slog.Logger
	api    *api.Client
	secure securestore.Store

	mu      sync.RWMutex
	current *models.CommerceSession
}

// NewRepository creates the repository and restores any persisted current
// session.
func NewRepository(apiClient *api.Client, secure securestore.Store) (*Repository, error) {
	r := &Repository{
		log:    slog.Default().With("component", "commerce"),
		api:    apiClient,
		secure: secure,
	}

	var stored models.CommerceSession
	found, err := secure.Get(storeKeyCurrentSession, &stored)
	if err != nil {
		return nil, fmt.Errorf("load current session: %w", err)
	}
	if found && stored.ID != "" {
		r.current = &stored
	}
	return r, nil
}

// Current returns the locally tracked session, if any.
func (r *Repository) Current() (models.CommerceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return models.CommerceSession{}, false
	}
	return *r.current, true
}

// Create opens a new commerce session with a merchant brand and tracks it
// as current.
func (r *Repository) Create(ctx context.Context, brandID, amount, assetID string) (models.CommerceSession, error) {
	res := api.Resource{
		Method: http.MethodPost,
		Path:   "/commerce_sessions",
		Body: map[string]string{
			"brand":                   brandID,
			"amount":                  amount,
			"preferred_payment_asset": assetID,
		},
		WrapError: wrapReason("Payment failed", "We could not start this payment. Please try again."),
	}

	var session models.CommerceSession
	if _, err := r.api.Do(ctx, res, &session); err != nil {
		return models.CommerceSession{}, err
	}
	r.setCurrent(session)
	return session, nil
}

// Get fetches a session snapshot by id.
func (r *Repository) Get(ctx context.Context, id string) (models.CommerceSession, error) {
	res := api.Resource{
		Method:     http.MethodGet,
		Path:       "/commerce_sessions/:id",
		PathParams: map[string]string{"id": id},
		WrapError:  wrapReason("Payment unavailable", "We could not load this payment."),
	}

	var session models.CommerceSession
	if _, err := r.api.Do(ctx, res, &session); err != nil {
		return models.CommerceSession{}, err
	}
	return session, nil
}

// SetAmount sets the session's payment amount.
func (r *Repository) SetAmount(ctx context.Context, id, amount string) error {
	return r.patch(ctx, id, map[string]string{"amount": amount})
}

// SetPaymentAsset selects which asset pays for the session.
func (r *Repository) SetPaymentAsset(ctx context.Context, id, assetID string) error {
	return r.patch(ctx, id, map[string]string{"preferred_payment_asset": assetID})
}

func (r *Repository) patch(ctx context.Context, id string, body map[string]string) error {
	res := api.Resource{
		Method:     http.MethodPatch,
		Path:       "/commerce_sessions/:id",
		PathParams: map[string]string{"id": id},
		Body:       body,
		WrapError:  wrapReason("Payment update failed", "We could not update this payment."),
	}
	_, err := r.api.Do(ctx, res, nil)
	return err
}

// Approve approves the session on the user's behalf.
func (r *Repository) Approve(ctx context.Context, id string) error {
	res := api.Resource{
		Method:     http.MethodPost,
		Path:       "/commerce_sessions/:id/approve",
		PathParams: map[string]string{"id": id},
		WrapError:  wrapReason("Approval failed", "We could not approve this payment."),
	}
	_, err := r.api.Do(ctx, res, nil)
	return err
}

// Close ends the session server-side and drops the local pointer when it
// referred to the same session.
func (r *Repository) Close(ctx context.Context, id string) error {
	res := api.Resource{
		Method:     http.MethodDelete,
		Path:       "/commerce_sessions/:id",
		PathParams: map[string]string{"id": id},
		WrapError:  wrapReason("Payment close failed", "We could not close this payment."),
	}
	if _, err := r.api.Do(ctx, res, nil); err != nil {
		return err
	}
	r.clearCurrent(id)
	return nil
}

// Clear drops the local current-session pointer without touching the
// server.
func (r *Repository) Clear() {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	if err := r.secure.Remove(storeKeyCurrentSession); err != nil {
		r.log.Error("remove current session", "error", err)
	}
}

// apply replaces the local copy with a server-pushed snapshot. Terminal
// snapshots clear the persisted pointer instead of keeping a dead session
// around.
func (r *Repository) apply(session models.CommerceSession) {
	if session.IsClosed() {
		r.clearCurrent(session.ID)
		return
	}
	r.setCurrent(session)
}

func (r *Repository) setCurrent(session models.CommerceSession) {
	r.mu.Lock()
	r.current = &session
	r.mu.Unlock()
	if err := r.secure.Set(storeKeyCurrentSession, session); err != nil {
		r.log.Error("persist current session", "error", err)
	}
}

func (r *Repository) clearCurrent(id string) {
	r.mu.Lock()
	matches := r.current != nil && r.current.ID == id
	if matches {
		r.current = nil
	}
	r.mu.Unlock()
	if matches {
		if err := r.secure.Remove(storeKeyCurrentSession); err != nil {
			r.log.Error("remove current session", "error", err)
		}
	}
}

func wrapReason(title, message string) func(error) error {
	return func(err error) error {
		return &api.ReasonError{Title: title, Message: message, Err: err}
	}
}
