// Package assets maintains the cached list of spendable assets.
package assets

import (
	"context"
	"net/http"
	"sync"

	"flexa/models"
	"flexa/services/api"
)

// Service caches the server's asset list.
type Service struct {
	api *api.Client

	mu     sync.RWMutex
	assets []models.Asset
}

// NewService creates an empty asset cache.
func NewService(apiClient *api.Client) *Service {
	return &Service{api: apiClient}
}

// Refresh replaces the cache with the full server list.
func (s *Service) Refresh(ctx context.Context) error {
	res := api.Resource{
		Method: http.MethodGet,
		Path:   "/assets",
		WrapError: func(err error) error {
			return &api.ReasonError{Title: "Assets unavailable", Message: "We could not load assets.", Err: err}
		},
	}

	assets, err := api.GetAll(ctx, s.api, res, func(a models.Asset) string { return a.ID })
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.assets = assets
	s.mu.Unlock()
	return nil
}

// All returns the cached assets.
func (s *Service) All() []models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

// Get returns the cached asset with the given id.
func (s *Service) Get(id string) (models.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assets {
		if a.ID == id {
			return a, true
		}
	}
	return models.Asset{}, false
}
