// Package brands maintains the cached merchant lists: brands that accept
// sessions and the legacy flexcode-only directory.
package brands

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"flexa/models"
	"flexa/services/api"
)

// Service caches the brand directory.
type Service struct {
	api *api.Client

	mu     sync.RWMutex
	brands []models.Brand
	legacy []models.Brand
}

// NewService creates an empty brand cache.
func NewService(apiClient *api.Client) *Service {
	return &Service{api: apiClient}
}

// Refresh replaces the cached brand list.
func (s *Service) Refresh(ctx context.Context) error {
	brands, err := s.fetch(ctx, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.brands = brands
	s.mu.Unlock()
	return nil
}

// RefreshLegacy replaces the cached legacy-flexcode brand list.
func (s *Service) RefreshLegacy(ctx context.Context) error {
	legacy, err := s.fetch(ctx, url.Values{"legacy_flexcodes": []string{"true"}})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.legacy = legacy
	s.mu.Unlock()
	return nil
}

func (s *Service) fetch(ctx context.Context, query url.Values) ([]models.Brand, error) {
	res := api.Resource{
		Method: http.MethodGet,
		Path:   "/brands",
		Query:  query,
		WrapError: func(err error) error {
			return &api.ReasonError{Title: "Brands unavailable", Message: "We could not load merchants.", Err: err}
		},
	}
	return api.GetAll(ctx, s.api, res, func(b models.Brand) string { return b.ID })
}

// All returns the cached brands.
func (s *Service) All() []models.Brand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Brand, len(s.brands))
	copy(out, s.brands)
	return out
}

// Legacy returns the cached legacy-flexcode brands.
func (s *Service) Legacy() []models.Brand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Brand, len(s.legacy))
	copy(out, s.legacy)
	return out
}
