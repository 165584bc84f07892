package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flexa/config"
	"flexa/internal/events"
	"flexa/models"
	"flexa/services/api"
)

type staticTokens struct{}

func (staticTokens) Current() (models.AccessToken, bool) {
	return models.AccessToken{ID: "tok_1", Value: "jwt", IssuedAt: time.Now(), ExpiresIn: 3600}, true
}
func (staticTokens) Refresh(context.Context) error { return nil }
func (staticTokens) SignOut(error)                 {}

func newService(t *testing.T, serverURL string) *Service {
	t.Helper()
	cfg := config.Config{PublishableKey: "pk_test"}
	require.NoError(t, cfg.Validate())
	client := api.NewClient(cfg, events.NewBus(), nil)
	client.BaseURL = serverURL
	client.SetTokenProvider(staticTokens{})
	return NewService(client)
}

func TestRefreshIndexesByAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange_rates", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"asset":"eip155:1/slip44:60","unit_of_account":"iso4217/USD","price":"2950.10"},
			{"asset":"bip122:000000000019d6689c085ae165831e93/slip44:0","unit_of_account":"iso4217/USD","price":"64210.55"}
		],"has_more":false}`)
	}))
	defer server.Close()

	svc := newService(t, server.URL)
	require.NoError(t, svc.Refresh(context.Background()))

	rate, ok := svc.ForAsset("eip155:1/slip44:60")
	require.True(t, ok)
	require.Equal(t, "2950.10", rate.Price)

	_, ok = svc.ForAsset("unknown")
	require.False(t, ok)
}
