// -- cmd/app.go --
package cmd

import (
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/internal/background"
	"github.com/sheasmith19/ezapp/internal/browser"
	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/observability"
	"github.com/sheasmith19/ezapp/internal/resumes"
	"github.com/sheasmith19/ezapp/internal/session"
)

const apiTimeout = 15 * time.Second

// app bundles the wired components a command needs. Commands build it
// after PersistentPreRunE has produced a validated config and a logger.
type app struct {
	log      *zap.Logger
	sessions *session.Manager
	catalog  *resumes.Catalog
	proxy    *background.Proxy
	scorer   *classifier.Classifier
	live     *browser.Live
}

// newApp wires production components from the loaded config.
func newApp() (*app, error) {
	log := observability.GetLogger()

	store, err := session.NewFileStore(afero.NewOsFs(), cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}
	provider := session.NewHTTPTokenProvider(cfg.API, apiTimeout, log)
	scorer := classifier.New(cfg.Classifier, log)

	return &app{
		log:      log,
		sessions: session.NewManager(cfg.API, provider, store, log),
		catalog:  resumes.NewCatalog(cfg.API, apiTimeout, log),
		proxy:    background.NewProxy(cfg.Network, log),
		scorer:   scorer,
		live:     browser.NewLive(cfg.Browser, scorer, log),
	}, nil
}
