// internal/background/proxy.go
package background

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/config"
)

const (
	defaultContentType = "application/octet-stream"
	defaultFilename    = "resume.pdf"
)

// Proxy performs network fetches on behalf of page contexts that cannot do
// so themselves (cross-origin, CSP). It is the pipeline's only
// network-capable component; everything else reaches the network through it.
// Fetched bytes live only for the one request/response round trip - the
// proxy never caches a document.
type Proxy struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewProxy builds the proxy with the configured timeout and throttle.
func NewProxy(cfg config.NetworkConfig, logger *zap.Logger) *Proxy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSecond := cfg.FetchesPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.FetchBurst
	if burst <= 0 {
		burst = 1
	}
	return &Proxy{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		log:     logger.Named("fetch_proxy"),
	}
}

// FetchResource downloads the document at downloadURL, attaching the bearer
// token when present, and encodes the body into a TransferEnvelope. A
// non-success status fails with a FetchError carrying that status; there is
// no retry - a failed fetch is reported, not masked.
func (p *Proxy) FetchResource(ctx context.Context, downloadURL, token string) (schemas.TransferEnvelope, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return schemas.TransferEnvelope{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return schemas.TransferEnvelope{}, fmt.Errorf("failed to create fetch request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	p.log.Debug("Fetching resource", zap.String("url", downloadURL))
	resp, err := p.client.Do(req)
	if err != nil {
		return schemas.TransferEnvelope{}, &schemas.FetchError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return schemas.TransferEnvelope{}, &schemas.FetchError{Status: resp.StatusCode, Reason: "download failed"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return schemas.TransferEnvelope{}, &schemas.FetchError{Reason: err.Error()}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	env := schemas.NewTransferEnvelope(body, contentType, filenameFromURL(downloadURL))
	p.log.Info("Fetched resource",
		zap.String("url", downloadURL),
		zap.Int("bytes", len(body)),
		zap.String("content_type", contentType))
	return env, nil
}

// filenameFromURL derives a default file name from the URL path.
func filenameFromURL(downloadURL string) string {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return defaultFilename
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return defaultFilename
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultFilename
	}
	return name
}
