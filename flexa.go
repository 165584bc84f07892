// Package flexa is a payments SDK for wallet applications. The host app
// supplies a publishable key and its wallet accounts; the SDK handles
// sign-in, background state sync, flexcode generation and commerce
// sessions against the Flexa API.
package flexa

import (
	"context"
	"fmt"

	"flexa/config"
	"flexa/internal/events"
	"flexa/internal/logging"
	"flexa/internal/securestore"
	"flexa/models"
	"flexa/services/accounts"
	"flexa/services/api"
	"flexa/services/appstate"
	"flexa/services/assets"
	"flexa/services/auth"
	"flexa/services/brands"
	"flexa/services/commerce"
	"flexa/services/flexcode"
	"flexa/services/onetimekeys"
	"flexa/services/rates"
)

// Config is re-exported so hosts only import the root package to get
// started.
type Config = config.Config

// SDK wires the services together. Construct with New, then Start to
// launch background refresh.
type SDK struct {
	Auth        *auth.Store
	Accounts    *accounts.Service
	Assets      *assets.Service
	Brands      *brands.Service
	OneTimeKeys *onetimekeys.Service
	Rates       *rates.Service
	Commerce    *commerce.Repository
	Flexcode    *flexcode.Generator

	cfg      *config.Manager
	bus      *events.Bus
	api      *api.Client
	appstate *appstate.Manager
	watcher  *commerce.Watcher
}

// New validates the configuration and builds the full service graph.
// Nothing touches the network until the host signs in or calls Start.
func New(cfg Config) (*SDK, error) {
	bus := events.NewBus()
	manager, err := config.NewManager(cfg, bus)
	if err != nil {
		return nil, err
	}
	cfg = manager.Config()

	logging.Setup(cfg.StorageDir, cfg.Debug)

	secure, err := securestore.NewFileStore(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("flexa: open storage: %w", err)
	}

	client := api.NewClient(cfg, bus, nil)
	store, err := auth.NewStore(client, secure, bus)
	if err != nil {
		return nil, fmt.Errorf("flexa: load credentials: %w", err)
	}
	client.SetTokenProvider(store)

	repo, err := commerce.NewRepository(client, secure)
	if err != nil {
		return nil, fmt.Errorf("flexa: load session state: %w", err)
	}

	generator, err := flexcode.NewGenerator()
	if err != nil {
		return nil, err
	}

	sdk := &SDK{
		Auth:        store,
		Accounts:    accounts.NewService(client, manager),
		Assets:      assets.NewService(client),
		Brands:      brands.NewService(client),
		OneTimeKeys: onetimekeys.NewService(client),
		Rates:       rates.NewService(client),
		Commerce:    repo,
		Flexcode:    generator,
		cfg:         manager,
		bus:         bus,
		api:         client,
	}
	sdk.watcher = commerce.NewWatcher(repo, store, nil, "https://"+cfg.Host+"/events")
	sdk.appstate = appstate.NewManager(manager, bus, store, appstate.Sources{
		Accounts:    sdk.Accounts,
		Assets:      sdk.Assets,
		Brands:      sdk.Brands,
		OneTimeKeys: sdk.OneTimeKeys,
		Rates:       sdk.Rates,
	})
	return sdk, nil
}

// Start launches the background refresh loop.
func (s *SDK) Start(ctx context.Context) {
	s.appstate.Start(ctx)
}

// Stop halts background refresh and any active session watch.
func (s *SDK) Stop() {
	s.watcher.Stop()
	s.appstate.Stop()
}

// SetAppAccounts replaces the registered wallet accounts and triggers a
// resync.
func (s *SDK) SetAppAccounts(appAccounts []models.AppAccount) {
	s.cfg.SetAppAccounts(appAccounts)
}

// CanSpend reports whether payment capability is currently available.
func (s *SDK) CanSpend() bool {
	return s.api.CanSpend()
}

// Refresh runs a foreground sync of every read model.
func (s *SDK) Refresh(ctx context.Context) error {
	return s.appstate.Refresh(ctx)
}

// WatchSession begins streaming commerce-session events. The returned
// channel closes when the watch ends.
func (s *SDK) WatchSession(ctx context.Context) (<-chan commerce.Event, error) {
	return s.watcher.Start(ctx)
}

// StopWatching ends the session event stream.
func (s *SDK) StopWatching() {
	s.watcher.Stop()
}

// Subscribe registers a handler for one of the SDK's broadcast topics
// and returns the id to unsubscribe with.
func (s *SDK) Subscribe(topic events.Topic, handler events.Handler) string {
	return s.bus.Subscribe(topic, handler)
}

// Unsubscribe removes a previously registered handler.
func (s *SDK) Unsubscribe(topic events.Topic, id string) {
	s.bus.Unsubscribe(topic, id)
}
