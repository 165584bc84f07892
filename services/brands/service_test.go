package brands

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

func TestRefreshSplitsMainAndLegacyLists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/brands", r.URL.Path)
		if r.URL.Query().Get("legacy_flexcodes") == "true" {
			fmt.Fprint(w, `{"data":[{"id":"brand_legacy","name":"Corner Store"}],"has_more":false}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"brand_1","name":"Coffee Shop"}],"has_more":false}`)
	}))
	defer server.Close()

	svc := newService(t, server.URL)
	require.NoError(t, svc.Refresh(context.Background()))
	require.NoError(t, svc.RefreshLegacy(context.Background()))

	all := svc.All()
	require.Len(t, all, 1)
	require.Equal(t, "brand_1", all[0].ID)

	legacy := svc.Legacy()
	require.Len(t, legacy, 1)
	require.Equal(t, "brand_legacy", legacy[0].ID)
}

func TestRefreshFollowsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("starting_after") == "brand_1" {
			fmt.Fprint(w, `{"data":[{"id":"brand_2","name":"Second"}],"has_more":false}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"brand_1","name":"First"}],"has_more":true}`)
	}))
	defer server.Close()

	svc := newService(t, server.URL)
	require.NoError(t, svc.Refresh(context.Background()))

	all := svc.All()
	require.Len(t, all, 2)
	require.Equal(t, "brand_1", all[0].ID)
	require.Equal(t, "brand_2", all[1].ID)
}
