package onetimekeys

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

func TestRefreshAndExpiredFiltering(t *testing.T) {
	live := time.Now().Add(time.Hour).Format(time.RFC3339)
	dead := time.Now().Add(-time.Hour).Format(time.RFC3339)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/one_time_keys", r.URL.Path)
		fmt.Fprintf(w, `{"data":[
			{"id":"otk_1","asset":"eip155:1/slip44:60","secret":"SECRET1","length":6,"expires_at":%q},
			{"id":"otk_2","asset":"bip122:000000000019d6689c085ae165831e93/slip44:0","secret":"SECRET2","length":6,"expires_at":%q}
		],"has_more":false}`, live, dead)
	}))
	defer server.Close()

	svc := newService(t, server.URL)
	require.NoError(t, svc.Refresh(context.Background()))

	all := svc.All()
	require.Len(t, all, 1, "expired keys are dropped on read")
	require.Equal(t, "otk_1", all[0].ID)

	key, ok := svc.ForAsset("eip155:1/slip44:60")
	require.True(t, ok)
	require.Equal(t, "otk_1", key.ID)

	_, ok = svc.ForAsset("bip122:000000000019d6689c085ae165831e93/slip44:0")
	require.False(t, ok, "expired key must not be served")
}
