// internal/session/provider.go
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenProvider exchanges credentials or a refresh token for a bearer token
// pair. Implemented against the remote auth provider's REST token endpoint;
// mocked in tests.
type TokenProvider interface {
	PasswordGrant(ctx context.Context, email, password string) (TokenResponse, error)
	RefreshGrant(ctx context.Context, refreshToken string) (TokenResponse, error)
}

// TokenResponse is the provider's answer to either grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ExpiryAt resolves the absolute expiry instant for a token issued at now.
// ExpiresIn wins when present; otherwise the unverified "exp" claim of the
// access token is used, since some providers omit expires_in on refresh.
func (r TokenResponse) ExpiryAt(now time.Time) time.Time {
	if r.ExpiresIn > 0 {
		return now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	// Expiry is advisory here, not a trust decision, so skipping signature
	// verification is fine.
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(r.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now
}

// providerError mirrors the error body shapes the auth provider emits.
type providerError struct {
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
}

func (p providerError) text(fallback string) string {
	switch {
	case p.ErrorDescription != "":
		return p.ErrorDescription
	case p.Message != "":
		return p.Message
	case p.Msg != "":
		return p.Msg
	default:
		return fallback
	}
}

// HTTPTokenProvider talks to the provider's token endpoint:
// POST {authURL}/token?grant_type=password|refresh_token.
type HTTPTokenProvider struct {
	authURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

// NewHTTPTokenProvider builds the production token client.
func NewHTTPTokenProvider(cfg config.APIConfig, timeout time.Duration, logger *zap.Logger) *HTTPTokenProvider {
	return &HTTPTokenProvider{
		authURL: cfg.AuthURL,
		apiKey:  cfg.AuthAPIKey,
		client:  &http.Client{Timeout: timeout},
		log:     logger.Named("auth_provider"),
	}
}

// PasswordGrant trades email/password for a token pair.
func (p *HTTPTokenProvider) PasswordGrant(ctx context.Context, email, password string) (TokenResponse, error) {
	body := map[string]string{"email": email, "password": password}
	return p.grant(ctx, "password", body, "Login failed")
}

// RefreshGrant trades a refresh token for a fresh pair.
func (p *HTTPTokenProvider) RefreshGrant(ctx context.Context, refreshToken string) (TokenResponse, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return p.grant(ctx, "refresh_token", body, "Token refresh failed")
}

func (p *HTTPTokenProvider) grant(ctx context.Context, grantType string, body map[string]string, fallbackMsg string) (TokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to marshal grant payload: %w", err)
	}

	url := fmt.Sprintf("%s/token?grant_type=%s", p.authURL, grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// Unreachable provider normalizes to "session invalid, show login".
		p.log.Warn("Token endpoint unreachable", zap.String("grant", grantType), zap.Error(err))
		return TokenResponse{}, &schemas.AuthError{Message: fallbackMsg}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var pe providerError
		_ = json.Unmarshal(raw, &pe)
		p.log.Info("Grant rejected",
			zap.String("grant", grantType),
			zap.Int("status", resp.StatusCode))
		return TokenResponse{}, &schemas.AuthError{Message: pe.text(fallbackMsg)}
	}

	var tr TokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return TokenResponse{}, &schemas.AuthError{Message: fallbackMsg}
	}
	return tr, nil
}
