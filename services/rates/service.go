// Package rates maintains the cached exchange-rate quotes.
package rates

import (
	"context"
	"net/http"
	"sync"

	"flexa/models"
	"flexa/services/api"
)

// Service caches exchange rates by asset.
type Service struct {
	api *api.Client

	mu    sync.RWMutex
	rates map[string]models.ExchangeRate
}

// NewService creates an empty rate cache.
func NewService(apiClient *api.Client) *Service {
	return &Service{api: apiClient, rates: make(map[string]models.ExchangeRate)}
}

// Refresh replaces all cached quotes.
func (s *Service) Refresh(ctx context.Context) error {
	res := api.Resource{
		Method: http.MethodGet,
		Path:   "/exchange_rates",
		WrapError: func(err error) error {
			return &api.ReasonError{Title: "Rates unavailable", Message: "We could not refresh exchange rates.", Err: err}
		},
	}

	quotes, err := api.GetAll(ctx, s.api, res, func(r models.ExchangeRate) string { return r.Asset })
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.rates = make(map[string]models.ExchangeRate, len(quotes))
	for _, q := range quotes {
		s.rates[q.Asset] = q
	}
	s.mu.Unlock()
	return nil
}

// ForAsset returns the cached quote for an asset. Expired quotes are
// still returned; callers decide whether a stale price is acceptable.
func (s *Service) ForAsset(assetID string) (models.ExchangeRate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.rates[assetID]
	return rate, ok
}
