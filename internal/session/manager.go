// internal/session/manager.go
package session

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/config"
)

// Manager owns credential exchange, token storage, and proactive refresh.
// It is the only writer of the persisted Session record.
type Manager struct {
	provider  TokenProvider
	store     Store
	lookahead time.Duration
	now       func() time.Time
	refresh   singleflight.Group
	log       *zap.Logger
}

// Option tweaks a Manager at construction time.
type Option func(*Manager)

// WithClock swaps the time source. Test use.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager wires a Manager against a provider and a store.
func NewManager(cfg config.APIConfig, provider TokenProvider, store Store, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		provider:  provider,
		store:     store,
		lookahead: cfg.RefreshLookahead,
		now:       time.Now,
		log:       logger.Named("session"),
	}
	if m.lookahead <= 0 {
		m.lookahead = 60 * time.Second
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login exchanges credentials for a token pair and persists the resulting
// Session. Provider error text is surfaced verbatim inside the AuthError.
func (m *Manager) Login(ctx context.Context, email, password string) (schemas.Session, error) {
	tr, err := m.provider.PasswordGrant(ctx, email, password)
	if err != nil {
		return schemas.Session{}, err
	}

	s := schemas.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		UserEmail:    email,
		TokenExpiry:  tr.ExpiryAt(m.now()),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return schemas.Session{}, err
	}
	m.log.Info("Login succeeded", zap.String("email", email))
	return s, nil
}

// Current returns the persisted session without touching its freshness.
func (m *Manager) Current(ctx context.Context) (schemas.Session, error) {
	return m.store.Load(ctx)
}

// ValidToken returns a usable access token, refreshing first when the cached
// one expires within the lookahead window. A failed refresh discards the
// whole session and returns an empty token, forcing a re-login.
//
// Concurrent callers share a single refresh per refresh token: the winner's
// new Session atomically replaces the old record and everyone gets the same
// token back.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	s, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if !s.Valid() {
		return "", nil
	}
	if !s.ExpiresWithin(m.now(), m.lookahead) {
		return s.AccessToken, nil
	}

	token, err, _ := m.refresh.Do(s.RefreshToken, func() (any, error) {
		tr, err := m.provider.RefreshGrant(ctx, s.RefreshToken)
		if err != nil {
			m.log.Warn("Token refresh failed; discarding session", zap.Error(err))
			if clearErr := m.store.Clear(ctx); clearErr != nil {
				m.log.Error("Failed to clear session after refresh failure", zap.Error(clearErr))
			}
			return "", nil //nolint:nilerr // refresh failure normalizes to "no token, show login"
		}
		next := schemas.Session{
			AccessToken:  tr.AccessToken,
			RefreshToken: tr.RefreshToken,
			UserEmail:    s.UserEmail,
			TokenExpiry:  tr.ExpiryAt(m.now()),
		}
		if err := m.store.Save(ctx, next); err != nil {
			return "", err
		}
		m.log.Debug("Token refreshed", zap.Time("expiry", next.TokenExpiry))
		return next.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Logout discards the session unconditionally.
func (m *Manager) Logout(ctx context.Context) error {
	m.log.Info("Logging out")
	return m.store.Clear(ctx)
}
