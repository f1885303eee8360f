// internal/popup/controller.go
package popup

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/messaging"
	"github.com/sheasmith19/ezapp/internal/resumes"
	"github.com/sheasmith19/ezapp/internal/session"
)

// ErrUploadInFlight rejects a second Start while one upload is outstanding.
// The popup drives one upload at a time; the user retries after the first
// one reports.
var ErrUploadInFlight = errors.New("an upload is already in progress")

// ErrNotLoggedIn is returned when no usable session exists. The caller's
// only recourse is Login.
var ErrNotLoggedIn = errors.New("not logged in")

// ScriptInjector programmatically installs the content script into a tab.
// Used when the tab has no listener yet, which happens when the page loaded
// before the pipeline attached or the script was unloaded.
type ScriptInjector interface {
	InjectContentScript(ctx context.Context, tabID string) error
}

const defaultRetryDelay = 300 * time.Millisecond

// Controller is the popup context: short-lived, stateless between opens,
// and the only context that initiates uploads. It talks to the session
// manager and catalog directly and to the tab over the bus.
type Controller struct {
	bus        *messaging.Bus
	sessions   *session.Manager
	catalog    *resumes.Catalog
	scripts    ScriptInjector
	retryDelay time.Duration
	log        *zap.Logger

	uploading atomic.Bool
}

// Option adjusts controller construction.
type Option func(*Controller)

// WithRetryDelay overrides the pause before the single re-send after a
// script injection. Tests shorten it.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Controller) { c.retryDelay = d }
}

// NewController wires the popup context. scripts may be nil when the host
// environment cannot inject scripts; the retry path then fails straight
// through to the channel error.
func NewController(bus *messaging.Bus, sessions *session.Manager, catalog *resumes.Catalog, scripts ScriptInjector, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		bus:        bus,
		sessions:   sessions,
		catalog:    catalog,
		scripts:    scripts,
		retryDelay: defaultRetryDelay,
		log:        logger.Named("popup"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authenticates and persists the session.
func (c *Controller) Login(ctx context.Context, email, password string) (schemas.Session, error) {
	return c.sessions.Login(ctx, email, password)
}

// Logout discards the stored session.
func (c *Controller) Logout(ctx context.Context) error {
	return c.sessions.Logout(ctx)
}

// ListResumes rebuilds the picker contents from the catalog service. The
// list is never cached; every popup open fetches it fresh.
func (c *Controller) ListResumes(ctx context.Context) ([]schemas.ResumeDescriptor, error) {
	token, err := c.sessions.ValidToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	list, err := c.catalog.List(ctx, token)
	if err != nil {
		c.dropSessionOnAuthError(ctx, err)
		return nil, err
	}
	return list, nil
}

// dropSessionOnAuthError discards the stored session when the service has
// rejected its token. An AuthError forces a fresh login; keeping the
// session around would re-present the same dead token on the next call.
func (c *Controller) dropSessionOnAuthError(ctx context.Context, err error) {
	if !schemas.IsAuthError(err) {
		return
	}
	if clearErr := c.sessions.Logout(ctx); clearErr != nil {
		c.log.Warn("Failed to discard rejected session", zap.Error(clearErr))
	}
}

// StartUpload drives one injection end to end: resolve a fresh token, send
// the upload command to the tab's content script, and if the tab has no
// listener, inject the script and re-send exactly once. The returned
// UploadResult is the content script's own report.
func (c *Controller) StartUpload(ctx context.Context, tabID string, resume schemas.ResumeDescriptor) (schemas.UploadResult, error) {
	if !c.uploading.CompareAndSwap(false, true) {
		return schemas.UploadResult{}, ErrUploadInFlight
	}
	defer c.uploading.Store(false)

	token, err := c.sessions.ValidToken(ctx)
	if err != nil {
		return schemas.UploadResult{}, err
	}
	if token == "" {
		return schemas.UploadResult{}, ErrNotLoggedIn
	}

	cmd := schemas.UploadCommand{
		Action:      schemas.ActionUpload,
		DownloadURL: resume.DownloadURL,
		Token:       token,
	}
	address := messaging.TabAddress(tabID)

	reply, err := c.bus.Send(ctx, address, cmd)
	if schemas.IsChannelError(err) && c.scripts != nil {
		c.log.Info("Tab has no listener; injecting content script",
			zap.String("tab", tabID))
		if injErr := c.scripts.InjectContentScript(ctx, tabID); injErr != nil {
			return schemas.UploadResult{}, injErr
		}
		// Give the fresh script a beat to register, then re-send. One
		// retry only: a second channel failure is a real error.
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return schemas.UploadResult{}, ctx.Err()
		}
		reply, err = c.bus.Send(ctx, address, cmd)
	}
	if err != nil {
		return schemas.UploadResult{}, err
	}

	result, ok := reply.(schemas.UploadResult)
	if !ok {
		return schemas.UploadResult{}, &schemas.ChannelError{Address: address}
	}
	c.log.Info("Upload reported",
		zap.String("tab", tabID),
		zap.Bool("ok", result.OK),
		zap.String("detail", result.Detail),
		zap.String("error", result.Error))
	return result, nil
}
