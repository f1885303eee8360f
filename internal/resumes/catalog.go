// internal/resumes/catalog.go
package resumes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Catalog lists the user's remotely stored resumes and resolves where each
// one can be downloaded from. Descriptors are rebuilt on every call and are
// never persisted.
type Catalog struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewCatalog builds a catalog client against the resume storage service.
func NewCatalog(cfg config.APIConfig, timeout time.Duration, logger *zap.Logger) *Catalog {
	return &Catalog{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		log:     logger.Named("catalog"),
	}
}

// List fetches the resume catalog with the given bearer token. A 401 means
// the session expired; callers clear the session and show the login prompt.
func (c *Catalog) List(ctx context.Context, token string) ([]schemas.ResumeDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/resumes", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &schemas.FetchError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &schemas.AuthError{Message: "Session expired"}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("Catalog request failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, &schemas.FetchError{Status: resp.StatusCode, Reason: "failed to fetch resumes"}
	}

	var list []schemas.ResumeDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode resume list: %w", err)
	}

	for i := range list {
		list[i].DownloadURL = c.resolveDownloadURL(list[i])
	}
	c.log.Debug("Catalog loaded", zap.Int("count", len(list)))
	return list, nil
}

// resolveDownloadURL prefers the service-provided location and falls back to
// the conventional download endpoint for the descriptor's filename.
func (c *Catalog) resolveDownloadURL(r schemas.ResumeDescriptor) string {
	if r.DownloadURL != "" {
		return r.DownloadURL
	}
	if r.Filename == "" {
		return ""
	}
	return c.baseURL + "/download-resume/" + url.PathEscape(r.Filename)
}
