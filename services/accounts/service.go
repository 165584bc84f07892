// Package accounts syncs the host app's wallet accounts with the server
// and caches the server's view of them.
package accounts

import (
	"context"
	"net/http"
	"sync"

	"flexa/config"
	"flexa/models"
	"flexa/services/api"
)

// Account is the server's view of one registered wallet account.
type Account struct {
	AccountID       string                  `json:"account_id"`
	DisplayName     string                  `json:"display_name,omitempty"`
	AvailableAssets []models.AvailableAsset `json:"available_assets"`
}

// Service pushes app accounts up and caches the response.
type Service struct {
	api *api.Client
	cfg *config.Manager

	mu       sync.RWMutex
	accounts []Account
}

// NewService creates an empty account cache.
func NewService(apiClient *api.Client, cfg *config.Manager) *Service {
	return &Service{api: apiClient, cfg: cfg}
}

// Refresh uploads the currently configured app accounts and replaces the
// cache with the server's reconciled view.
func (s *Service) Refresh(ctx context.Context) error {
	appAccounts := s.cfg.AppAccounts()

	res := api.Resource{
		Method: http.MethodPut,
		Path:   "/accounts/me/app_accounts",
		Body:   map[string]any{"data": appAccounts},
		WrapError: func(err error) error {
			return &api.ReasonError{Title: "Account sync failed", Message: "We could not sync your accounts.", Err: err}
		},
	}

	var page api.Page[Account]
	if _, err := s.api.Do(ctx, res, &page); err != nil {
		return err
	}

	s.mu.Lock()
	s.accounts = page.Data
	s.mu.Unlock()
	return nil
}

// All returns the cached server-side accounts.
func (s *Service) All() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}
