package accounts

import (
	"context"
	"encoding/json"
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

func newService(t *testing.T, serverURL string) (*Service, *config.Manager) {
	t.Helper()
	bus := events.NewBus()
	mgr, err := config.NewManager(config.Config{PublishableKey: "pk_test"}, bus)
	require.NoError(t, err)

	client := api.NewClient(mgr.Config(), bus, nil)
	client.BaseURL = serverURL
	client.SetTokenProvider(staticTokens{})
	return NewService(client, mgr), mgr
}

func TestRefreshUploadsAppAccounts(t *testing.T) {
	var gotBody struct {
		Data []models.AppAccount `json:"data"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/accounts/me/app_accounts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"data":[{"account_id":"wallet-1","available_assets":[{"asset":"eip155:1/slip44:60","balance":"1.25"}]}],"has_more":false}`)
	}))
	defer server.Close()

	svc, mgr := newService(t, server.URL)
	mgr.SetAppAccounts([]models.AppAccount{{
		AccountID: "wallet-1",
		AvailableAssets: []models.AvailableAsset{
			{Asset: "eip155:1/slip44:60", Balance: "1.25"},
		},
	}})

	require.NoError(t, svc.Refresh(context.Background()))

	require.Len(t, gotBody.Data, 1)
	require.Equal(t, "wallet-1", gotBody.Data[0].AccountID)

	accounts := svc.All()
	require.Len(t, accounts, 1)
	require.Equal(t, "wallet-1", accounts[0].AccountID)
	require.Equal(t, "1.25", accounts[0].AvailableAssets[0].Balance)
}

func TestRefreshErrorKeepsCache(t *testing.T) {
	var fail bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":"server_error","message":"boom"}}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"account_id":"wallet-1","available_assets":[]}],"has_more":false}`)
	}))
	defer server.Close()

	svc, _ := newService(t, server.URL)
	require.NoError(t, svc.Refresh(context.Background()))
	require.Len(t, svc.All(), 1)

	fail = true
	err := svc.Refresh(context.Background())
	require.Error(t, err)

	var reason *api.ReasonError
	require.ErrorAs(t, err, &reason)
	require.Len(t, svc.All(), 1, "failed refresh must not wipe the cache")
}
