// internal/browser/live.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/config"
	"github.com/sheasmith19/ezapp/internal/dompage"
	"github.com/sheasmith19/ezapp/internal/injector"
)

// Live drives a real Chrome tab over CDP. It reuses the same classifier
// that runs against fixture pages: the tab's DOM is snapshotted to HTML,
// scored offline, and only the chosen control's selector goes back to the
// browser. Chrome never runs the scoring.
type Live struct {
	cfg        config.BrowserConfig
	classifier *classifier.Classifier
	log        *zap.Logger
}

// NewLive builds the adapter around an existing classifier.
func NewLive(cfg config.BrowserConfig, c *classifier.Classifier, logger *zap.Logger) *Live {
	return &Live{cfg: cfg, classifier: c, log: logger.Named("browser")}
}

// execOptions translates the browser config into allocator options. The
// sandbox and shm flags keep Chrome alive in containers.
func (l *Live) execOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	return opts
}

// newTab allocates a browser context, either attached to a remote debugger
// or over a locally launched Chrome. The returned cancel tears the whole
// allocation down.
func (l *Live) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.cfg.RemoteDebuggerURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, l.cfg.RemoteDebuggerURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, l.execOptions()...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	return tabCtx, func() {
		tabCancel()
		allocCancel()
	}
}

// Snapshot navigates to pageURL, waits for the page to settle, and returns
// the live DOM parsed into the offline harness.
func (l *Live) Snapshot(ctx context.Context, pageURL string) (*dompage.Page, error) {
	tabCtx, cancel := l.newTab(ctx)
	defer cancel()
	return l.snapshotIn(tabCtx, pageURL)
}

func (l *Live) snapshotIn(tabCtx context.Context, pageURL string) (*dompage.Page, error) {
	navCtx, cancel := context.WithTimeout(tabCtx, l.cfg.NavigationTimeout)
	defer cancel()

	// Surface failing subresource loads in the log; job boards routinely
	// gate their widgets behind flaky third-party scripts.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response.Status >= 400 {
				l.log.Debug("Subresource failed",
					zap.String("url", e.Response.URL),
					zap.Int64("status", e.Response.Status))
			}
		case *network.EventLoadingFailed:
			l.log.Debug("Load failed",
				zap.String("error", e.ErrorText))
		}
	})

	var rawHTML string
	err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(l.cfg.PostLoadWait),
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &schemas.FetchError{Reason: fmt.Sprintf("page load failed: %v", err)}
	}
	l.log.Debug("Snapshotted page",
		zap.String("url", pageURL),
		zap.Int("html_bytes", len(rawHTML)))
	return dompage.Parse(rawHTML, pageURL)
}

// Detect loads pageURL and returns the scored upload candidates, best
// first among equals by document order.
func (l *Live) Detect(ctx context.Context, pageURL string) ([]classifier.Candidate, error) {
	page, err := l.Snapshot(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return l.classifier.Scan(page), nil
}

// Apply performs one live injection: navigate, score the snapshot, write
// the document to a scratch file, hand that file to the chosen control,
// and fire the event sequence pages listen for.
func (l *Live) Apply(ctx context.Context, pageURL string, env schemas.TransferEnvelope) (schemas.InjectionResult, error) {
	if env.IsMarkup() {
		return schemas.InjectionResult{}, &schemas.FetchError{Reason: "download returned HTML, not a document"}
	}
	data, err := env.Decode()
	if err != nil {
		return schemas.InjectionResult{}, &schemas.FetchError{Reason: err.Error()}
	}

	tabCtx, cancel := l.newTab(ctx)
	defer cancel()

	page, err := l.snapshotIn(tabCtx, pageURL)
	if err != nil {
		return schemas.InjectionResult{}, err
	}

	det := l.classifier.Classify(page, classifier.PolicyStrict)
	if !det.Found {
		if det.HasCandidates {
			return schemas.InjectionResult{}, &schemas.NoTargetError{Reason: "upload controls present, none resume-like"}
		}
		return schemas.InjectionResult{}, &schemas.NoTargetError{Reason: "no upload control on page"}
	}
	target := det.Best.Control

	neg, err := injector.Negotiate(target.Attr("accept"), env.ContentType)
	if err != nil {
		return schemas.InjectionResult{}, err
	}
	if err := injector.CheckIntegrity(neg.MediaType, data); err != nil {
		return schemas.InjectionResult{}, err
	}

	scratch, err := writeScratchFile(env.Filename, neg, data)
	if err != nil {
		return schemas.InjectionResult{}, err
	}
	defer os.RemoveAll(filepath.Dir(scratch))

	selector, prepare, err := SelectorFor(det.Best)
	if err != nil {
		return schemas.InjectionResult{}, err
	}

	l.log.Info("Applying to live page",
		zap.String("url", pageURL),
		zap.String("selector", selector),
		zap.String("media_type", neg.MediaType))

	events := []string{"input", "change", "focus", "blur"}
	var tasks chromedp.Tasks
	if prepare != "" {
		tasks = append(tasks, chromedp.Evaluate(prepare, nil))
	}
	tasks = append(tasks,
		chromedp.SetUploadFiles(selector, []string{scratch}, chromedp.ByQuery),
		chromedp.Evaluate(dispatchScript(selector, events), nil),
	)
	if err = chromedp.Run(tabCtx, tasks); err != nil {
		return schemas.InjectionResult{}, fmt.Errorf("failed to assign file in page: %w", err)
	}

	return schemas.InjectionResult{
		Outcome:    schemas.OutcomeAttached,
		TargetID:   det.Best.Identifier(),
		Filename:   filepath.Base(scratch),
		MediaType:  neg.MediaType,
		EventsSent: events,
	}, nil
}

// writeScratchFile materializes the document bytes under the negotiated
// name so Chrome's file chooser API has a real path to hand the page.
func writeScratchFile(filename string, neg injector.Negotiated, data []byte) (string, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "resume"
	}
	dir, err := os.MkdirTemp("", "ezapp-apply-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	path := filepath.Join(dir, base+neg.Ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	return path, nil
}
