// Package onetimekeys syncs the one-time keys that seed flexcode
// generation. Keys are replaced wholesale on each refresh.
package onetimekeys

import (
	"context"
	"net/http"
	"sync"

	"flexa/models"
	"flexa/services/api"
)

// Service caches the current one-time key set.
type Service struct {
	api *api.Client

	mu   sync.RWMutex
	keys []models.OneTimeKey
}

// NewService creates an empty key cache.
func NewService(apiClient *api.Client) *Service {
	return &Service{api: apiClient}
}

// Refresh replaces the key set with the server's current one.
func (s *Service) Refresh(ctx context.Context) error {
	res := api.Resource{
		Method: http.MethodGet,
		Path:   "/one_time_keys",
		WrapError: func(err error) error {
			return &api.ReasonError{Title: "Keys unavailable", Message: "We could not refresh payment keys.", Err: err}
		},
	}

	keys, err := api.GetAll(ctx, s.api, res, func(k models.OneTimeKey) string { return k.ID })
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return nil
}

// All returns the cached keys that are still valid.
func (s *Service) All() []models.OneTimeKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OneTimeKey, 0, len(s.keys))
	for _, k := range s.keys {
		if !k.IsExpired() {
			out = append(out, k)
		}
	}
	return out
}

// ForAsset returns the live key for one asset, if present.
func (s *Service) ForAsset(assetID string) (models.OneTimeKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.Asset == assetID && !k.IsExpired() {
			return k, true
		}
	}
	return models.OneTimeKey{}, false
}
