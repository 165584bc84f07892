package appstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flexa/config"
	"flexa/internal/events"
	"flexa/models"
)

type fakeRefresher struct {
	calls atomic.Int32
	block chan struct{}
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

type fakeBrands struct {
	fakeRefresher
	legacyCalls atomic.Int32
}

func (f *fakeBrands) RefreshLegacy(ctx context.Context) error {
	f.legacyCalls.Add(1)
	return f.err
}

type fakeTokens struct {
	mu         sync.Mutex
	signedIn   bool
	stale      bool
	refreshes  int
	refreshErr error
}

func (f *fakeTokens) IsSignedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedIn
}

func (f *fakeTokens) ShouldRefresh(time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale
}

func (f *fakeTokens) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.stale = false
	return f.refreshErr
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type fixture struct {
	manager  *Manager
	cfg      *config.Manager
	tokens   *fakeTokens
	accounts *fakeRefresher
	assets   *fakeRefresher
	brands   *fakeBrands
	keys     *fakeRefresher
	rates    *fakeRefresher
	bus      *events.Bus
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	f := newFixtureWithoutAccounts(t, interval)
	f.cfg.SetAppAccounts([]models.AppAccount{{AccountID: "wallet-1"}})
	return f
}

func newFixtureWithoutAccounts(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	bus := events.NewBus()
	mgr, err := config.NewManager(config.Config{
		PublishableKey:  "pk_test",
		RefreshInterval: interval,
	}, bus)
	require.NoError(t, err)

	f := &fixture{
		cfg:      mgr,
		tokens:   &fakeTokens{signedIn: true},
		accounts: &fakeRefresher{},
		assets:   &fakeRefresher{},
		brands:   &fakeBrands{},
		keys:     &fakeRefresher{},
		rates:    &fakeRefresher{},
		bus:      bus,
	}
	f.manager = NewManager(mgr, bus, f.tokens, Sources{
		Accounts:    f.accounts,
		Assets:      f.assets,
		Brands:      f.brands,
		OneTimeKeys: f.keys,
		Rates:       f.rates,
	})
	return f
}

func TestRefreshRunsEveryStep(t *testing.T) {
	f := newFixture(t, time.Hour)

	require.NoError(t, f.manager.Refresh(context.Background()))
	require.Equal(t, int32(1), f.accounts.calls.Load())
	require.Equal(t, int32(1), f.assets.calls.Load())
	require.Equal(t, int32(1), f.brands.calls.Load())
	require.Equal(t, int32(1), f.brands.legacyCalls.Load())
	require.Equal(t, int32(1), f.keys.calls.Load())
	require.Equal(t, int32(1), f.rates.calls.Load())
}

func TestRefreshContinuesPastFailures(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.assets.err = errors.New("assets down")

	err := f.manager.Refresh(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "assets down")

	// Later steps still ran.
	require.Equal(t, int32(1), f.keys.calls.Load())
	require.Equal(t, int32(1), f.rates.calls.Load())
}

func TestBackgroundRefreshWaitsForAppAccounts(t *testing.T) {
	f := newFixtureWithoutAccounts(t, time.Hour)

	f.manager.BackgroundRefresh(context.Background())

	require.Zero(t, f.accounts.calls.Load())
	require.Zero(t, f.assets.calls.Load())
	require.Zero(t, f.keys.calls.Load(), "no wallet registered, nothing to derive keys for")
	require.Zero(t, f.rates.calls.Load())

	// Registering a wallet unblocks the fanout.
	f.cfg.SetAppAccounts([]models.AppAccount{{AccountID: "wallet-1"}})
	f.manager.BackgroundRefresh(context.Background())
	require.Equal(t, int32(1), f.accounts.calls.Load())
	require.Equal(t, int32(1), f.keys.calls.Load())
}

func TestRefreshWithoutAccountsSkipsWalletModels(t *testing.T) {
	f := newFixtureWithoutAccounts(t, time.Hour)

	require.NoError(t, f.manager.Refresh(context.Background()))

	require.Equal(t, int32(1), f.accounts.calls.Load())
	require.Equal(t, int32(1), f.assets.calls.Load())
	require.Equal(t, int32(1), f.brands.calls.Load())
	require.Equal(t, int32(1), f.brands.legacyCalls.Load())
	require.Zero(t, f.keys.calls.Load())
	require.Zero(t, f.rates.calls.Load())
}

func TestBackgroundRefreshCollapsesOverlap(t *testing.T) {
	f := newFixture(t, time.Hour)
	release := make(chan struct{})
	f.accounts.block = release

	var wg sync.WaitGroup
	first := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(first)
		f.manager.BackgroundRefresh(context.Background())
	}()

	<-first
	require.Eventually(t, func() bool {
		return f.accounts.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// A second call while the first is in flight is dropped.
	f.manager.BackgroundRefresh(context.Background())
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), f.accounts.calls.Load())
}

func TestLoopRefreshesOnStartAndTokenAheadOfExpiry(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.tokens.stale = true

	f.manager.Start(context.Background())
	defer f.manager.Stop()

	require.Eventually(t, func() bool {
		return f.tokens.refreshCount() >= 1 && f.rates.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond, "first tick fires immediately")

	require.Eventually(t, func() bool {
		return f.rates.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond, "ticker keeps refreshing")
}

func TestLoopIdleWhenSignedOut(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	f.tokens.signedIn = false

	f.manager.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	f.manager.Stop()

	require.Zero(t, f.accounts.calls.Load())
	require.Zero(t, f.tokens.refreshCount())
}

func TestAccountChangeTriggersResync(t *testing.T) {
	f := newFixture(t, time.Hour)

	f.manager.Start(context.Background())
	defer f.manager.Stop()

	require.Eventually(t, func() bool {
		return f.accounts.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		f.cfg.SetAppAccounts([]models.AppAccount{{AccountID: "wallet-1"}, {AccountID: "wallet-2"}})
		return f.accounts.calls.Load() >= 2
	}, time.Second, 10*time.Millisecond, "wallet change must resync accounts")
}

func TestStartTwiceIsNoop(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.manager.Start(context.Background())
	f.manager.Start(context.Background())
	f.manager.Stop()
	f.manager.Stop()
}
