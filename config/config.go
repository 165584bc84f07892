// Package config holds the host application's SDK configuration.
package config

import (
	"errors"
	"strings"
	"sync"
	"time"

	"flexa/internal/events"
	"flexa/models"
)

var (
	ErrPublishableKeyRequired = errors.New("publishable key is required")
	ErrHostRequired           = errors.New("api host is required")
)

const (
	// DefaultHost is the production API host.
	DefaultHost = "api.flexa.co"
	// DefaultRefreshInterval is the background refresh cadence.
	DefaultRefreshInterval = 60 * time.Second
	// DefaultUserAgent identifies the SDK on every request.
	DefaultUserAgent = "flexa-go/1.0"
	// DefaultAppID is the client identifier header value.
	DefaultAppID = "com.flexa.sdk"
)

// Config is the immutable part of the SDK setup supplied by the host app.
type Config struct {
	PublishableKey  string
	Host            string
	AppID           string
	UserAgent       string
	StorageDir      string
	RefreshInterval time.Duration
	Debug           bool
}

// Validate checks required fields and fills defaults in place.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PublishableKey) == "" {
		return ErrPublishableKeyRequired
	}
	if strings.TrimSpace(c.Host) == "" {
		c.Host = DefaultHost
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AppID == "" {
		c.AppID = DefaultAppID
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	return nil
}

// Manager holds the validated config plus the mutable app-account list the
// host updates as wallet balances change.
type Manager struct {
	cfg Config
	bus *events.Bus

	mu       sync.RWMutex
	accounts []models.AppAccount
}

// NewManager validates cfg and wraps it.
func NewManager(cfg Config, bus *events.Bus) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		return nil, ErrHostRequired
	}
	return &Manager{cfg: cfg, bus: bus}, nil
}

// Config returns the validated configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// AppAccounts returns the currently registered wallet accounts.
func (m *Manager) AppAccounts() []models.AppAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AppAccount, len(m.accounts))
	copy(out, m.accounts)
	return out
}

// HasAppAccounts reports whether the host registered any wallet accounts.
func (m *Manager) HasAppAccounts() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts) > 0
}

// SetAppAccounts replaces the wallet account list and broadcasts the
// change so dependent read models resync.
func (m *Manager) SetAppAccounts(accounts []models.AppAccount) {
	m.mu.Lock()
	m.accounts = make([]models.AppAccount, len(accounts))
	copy(m.accounts, accounts)
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(events.TopicAppAccountsChanged, accounts)
	}
}
