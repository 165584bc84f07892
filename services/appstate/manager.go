// Package appstate keeps the SDK's read models warm. A background loop
// refreshes the auth token ahead of expiry and resyncs the cached
// accounts, assets, brands, keys and rates on a fixed cadence.
package appstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"flexa/config"
	"flexa/internal/events"
	"flexa/internal/guard"
	"flexa/services/auth"
)

// Refresher is one read model the manager keeps in sync.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// BrandSource is the merchant directory with its legacy companion list.
type BrandSource interface {
	Refresher
	RefreshLegacy(ctx context.Context) error
}

// TokenSource is the credential store the manager refreshes ahead of
// token expiry.
type TokenSource interface {
	IsSignedIn() bool
	ShouldRefresh(threshold time.Duration) bool
	Refresh(ctx context.Context) error
}

// Sources are the read models the manager refreshes.
type Sources struct {
	Accounts    Refresher
	Assets      Refresher
	Brands      BrandSource
	OneTimeKeys Refresher
	Rates       Refresher
}

// Manager runs the background refresh loop.
type Manager struct {
	log    *slog.Logger
	cfg    *config.Manager
	bus    *events.Bus
	tokens TokenSource
	src    Sources

	refreshing guard.Flag

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	accountID string
}

// NewManager wires the refresh loop to its sources. Start must be
// called before anything refreshes.
func NewManager(cfg *config.Manager, bus *events.Bus, tokens TokenSource, src Sources) *Manager {
	return &Manager{
		log:    slog.Default().With("component", "appstate"),
		cfg:    cfg,
		bus:    bus,
		tokens: tokens,
		src:    src,
	}
}

// Start launches the background loop. Starting an already running
// manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	if m.bus != nil {
		m.accountID = m.bus.Subscribe(events.TopicAppAccountsChanged, func(any) {
			m.BackgroundRefresh(loopCtx)
		})
	}

	m.wg.Add(1)
	go m.loop(loopCtx)

	m.log.Info("background refresh started", "interval", m.cfg.Config().RefreshInterval)
}

// Stop cancels the loop and waits for any in-flight refresh.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.bus != nil {
		m.bus.Unsubscribe(events.TopicAppAccountsChanged, m.accountID)
	}

	m.cancel()
	m.wg.Wait()
	m.running = false
	m.log.Info("background refresh stopped")
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Config().RefreshInterval)
	defer ticker.Stop()

	// Warm the caches immediately on start.
	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	if !m.tokens.IsSignedIn() {
		return
	}

	if m.tokens.ShouldRefresh(auth.DefaultRefreshThreshold) {
		if err := m.tokens.Refresh(ctx); err != nil {
			m.log.Warn("token refresh failed", "error", err)
		}
	}

	m.BackgroundRefresh(ctx)
}

// BackgroundRefresh refreshes all read models concurrently. It is a
// no-op until the host is signed in and has registered wallet accounts.
// Overlapping calls collapse into the one already in flight. Individual
// failures are logged and do not abort the others.
func (m *Manager) BackgroundRefresh(ctx context.Context) {
	if !m.tokens.IsSignedIn() || !m.cfg.HasAppAccounts() {
		return
	}
	if !m.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer m.refreshing.Set(false)

	p := pool.New().WithContext(ctx)
	for _, step := range m.steps(true) {
		p.Go(func(ctx context.Context) error {
			if err := step.run(ctx); err != nil {
				m.log.Warn("refresh failed", "step", step.name, "error", err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		m.log.Warn("refresh interrupted", "error", err)
	}
}

// Refresh refreshes all read models sequentially and reports every
// failure. One failing step does not stop the rest. The directory
// models always refresh; the wallet-derived ones wait for accounts.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, step := range m.steps(m.cfg.HasAppAccounts()) {
		if err := step.run(ctx); err != nil {
			m.log.Warn("refresh failed", "step", step.name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type refreshStep struct {
	name string
	run  func(ctx context.Context) error
}

// steps lists the refresh fanout. One-time keys and exchange rates hang
// off registered wallet accounts, so they join only when withKeyed.
func (m *Manager) steps(withKeyed bool) []refreshStep {
	steps := []refreshStep{
		{"accounts", m.src.Accounts.Refresh},
		{"assets", m.src.Assets.Refresh},
		{"brands", m.src.Brands.Refresh},
		{"legacy_brands", m.src.Brands.RefreshLegacy},
	}
	if withKeyed {
		steps = append(steps,
			refreshStep{"one_time_keys", m.src.OneTimeKeys.Refresh},
			refreshStep{"exchange_rates", m.src.Rates.Refresh},
		)
	}
	return steps
}
