package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"smart-stay/internal/config"
	"smart-stay/internal/obs"
	"smart-stay/internal/smartthings"
	"smart-stay/internal/storage"
)

// Exchanger performs the OAuth refresh_token grant.
type Exchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*smartthings.TokenResponse, error)
}

// CredentialStore persists the refresh token across restarts.
type CredentialStore interface {
	GetCredential(ctx context.Context, name string) (string, error)
	PutCredential(ctx context.Context, name string, value string) error
}

// State describes the credential pair for operator tooling. Secrets are masked.
type State struct {
	HasAccessToken   bool      `json:"has_access_token" yaml:"has_access_token"`
	RefreshTokenHint string    `json:"refresh_token_hint" yaml:"refresh_token_hint"`
	LastRefreshed    time.Time `json:"last_refreshed_at" yaml:"last_refreshed_at"`
}

type Option func(*Manager)

func WithSealer(s *Sealer) Option {
	return func(m *Manager) { m.sealer = s }
}

func WithInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the access/refresh credential pair. Access tokens live in memory only;
// rotated refresh tokens are written to the credential store.
type Manager struct {
	exchanger Exchanger
	store     CredentialStore
	sealer    *Sealer
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu            sync.RWMutex
	accessToken   string
	refreshToken  string
	lastRefreshed time.Time
	generation    uint64 // bumped whenever the refresh token is replaced

	flight singleflight.Group
}

func NewManager(exchanger Exchanger, store CredentialStore, refreshToken string, opts ...Option) *Manager {
	m := &Manager{
		exchanger:    exchanger,
		store:        store,
		interval:     12 * time.Hour,
		now:          time.Now,
		logger:       slog.With("component", "token"),
		refreshToken: refreshToken,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the bootstrap refresh token with the persisted one, if any. A token
// installed by a refresh that finished while the store was being read is kept.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.RLock()
	generation := m.generation
	m.mu.RUnlock()

	stored, err := m.store.GetCredential(ctx, config.REFRESH_TOKEN_KEY)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Info("No persisted refresh token, using configured one")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load refresh token: %w", err)
	}

	plain, err := m.sealer.Open(stored)
	if err != nil {
		return fmt.Errorf("failed to load refresh token: %w", err)
	}
	if plain == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		m.logger.Info("Refresh token replaced while loading, keeping the newer one")
		return nil
	}
	m.refreshToken = plain
	m.generation++
	m.logger.Info("Loaded persisted refresh token", "hint", mask(plain))
	return nil
}

// AccessToken returns the cached access token, refreshing first when forced or when none
// is cached. A failed refresh leaves the cached pair untouched.
func (m *Manager) AccessToken(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		m.mu.RLock()
		token := m.accessToken
		m.mu.RUnlock()
		if token != "" {
			return token, nil
		}
	}
	return m.Refresh(ctx)
}

// Refresh runs one refresh exchange. Concurrent callers share a single in-flight exchange,
// which is not cancelled when one of the callers goes away.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	ch := m.flight.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := m.refreshToken
	m.mu.RUnlock()

	resp, err := m.exchanger.ExchangeRefreshToken(ctx, current)
	obs.TokenRefreshes.WithLabelValues(obs.Result(err)).Inc()
	if err != nil {
		m.logger.Error("Token refresh failed", "error", err)
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	next := current
	if resp.RefreshToken != "" && resp.RefreshToken != current {
		next = resp.RefreshToken
		if err := m.persist(ctx, next); err != nil {
			// The provider already rotated the token, so the new one is kept in memory regardless.
			m.logger.Error("Failed to persist rotated refresh token", "error", err)
		} else {
			m.logger.Info("Persisted rotated refresh token", "hint", mask(next))
		}
	}

	m.mu.Lock()
	m.accessToken = resp.AccessToken
	if next != current {
		m.refreshToken = next
		m.generation++
	}
	m.lastRefreshed = m.now()
	m.mu.Unlock()

	m.logger.Info("Access token refreshed", "expires_in", resp.ExpiresIn)
	return resp.AccessToken, nil
}

// SetRefreshToken installs an externally obtained refresh token and persists it.
func (m *Manager) SetRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: empty refresh token", smartthings.ErrConfiguration)
	}
	if err := m.persist(ctx, refreshToken); err != nil {
		return err
	}
	m.mu.Lock()
	m.refreshToken = refreshToken
	m.generation++
	m.accessToken = ""
	m.mu.Unlock()
	return nil
}

func (m *Manager) persist(ctx context.Context, refreshToken string) error {
	sealed, err := m.sealer.Seal(refreshToken)
	if err != nil {
		return err
	}
	return m.store.PutCredential(ctx, config.REFRESH_TOKEN_KEY, sealed)
}

// Start loads the persisted token, refreshes once and then keeps refreshing every
// interval until ctx is cancelled. Run it in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	if err := m.Load(ctx); err != nil {
		m.logger.Error("Failed to load persisted refresh token", "error", err)
	}
	if _, err := m.Refresh(ctx); err != nil {
		m.logger.Warn("Initial token refresh failed", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Background token refresh started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Background token refresh stopped")
			return
		case <-ticker.C:
			if _, err := m.Refresh(ctx); err != nil {
				m.logger.Warn("Scheduled token refresh failed", "error", err)
			}
		}
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		HasAccessToken:   m.accessToken != "",
		RefreshTokenHint: mask(m.refreshToken),
		LastRefreshed:    m.lastRefreshed,
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "…" + secret[len(secret)-4:]
}
