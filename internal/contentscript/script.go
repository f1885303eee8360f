// internal/contentscript/script.go
package contentscript

import (
	"context"

	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/dompage"
	"github.com/sheasmith19/ezapp/internal/injector"
	"github.com/sheasmith19/ezapp/internal/messaging"
)

// Script is the content-script context for one tab and one page load. It
// holds the per-load detector state, answers upload commands from the
// popup, and pushes detection reports to the background. Navigation builds
// a fresh Script; nothing here survives it.
type Script struct {
	tabID    string
	page     *dompage.Page
	bus      *messaging.Bus
	detector *classifier.Detector
	injector *injector.Injector
	log      *zap.Logger
}

// New binds a content script to its page. The detector is created here so
// its once-per-page-load state has exactly the script's lifetime.
func New(tabID string, page *dompage.Page, bus *messaging.Bus, c *classifier.Classifier, inj *injector.Injector, logger *zap.Logger) *Script {
	return &Script{
		tabID:    tabID,
		page:     page,
		bus:      bus,
		detector: classifier.NewDetector(c, logger),
		injector: inj,
		log:      logger.Named("content").With(zap.String("tab", tabID)),
	}
}

// Detector exposes the per-load detection state for the host environment.
func (s *Script) Detector() *classifier.Detector { return s.detector }

// Attach registers this script as the tab's listener. A re-injected script
// replaces the previous listener, matching how the platform reloads
// content scripts in place.
func (s *Script) Attach() {
	s.bus.Register(messaging.TabAddress(s.tabID), s.handle)
}

// Detach removes the tab listener, as a navigation away would.
func (s *Script) Detach() {
	s.bus.Unregister(messaging.TabAddress(s.tabID))
}

// OnMutation runs one detection pass over the current DOM. The page itself
// is unprivileged, so a positive result is only reported upward, once per
// page load; every later positive from a mutation storm stays silent.
// Reporting uses the loose policy, same as the badge path: any file input
// that appears is worth surfacing, while target choice inside the detector
// still requires the strict threshold.
func (s *Script) OnMutation(ctx context.Context) {
	det, first := s.detector.Observe(s.page, classifier.PolicyAny)
	if !first {
		return
	}
	s.log.Info("Upload field appeared after load",
		zap.String("identifier", det.Best.Identifier()),
		zap.Int("score", det.Best.Score))

	_, err := s.bus.Send(ctx, messaging.AddressBackground, schemas.FieldDetectedReport{
		Action: schemas.ActionFieldDetected,
		TabID:  s.tabID,
	})
	if err != nil {
		s.log.Warn("Detection report not delivered", zap.Error(err))
	}
}

// handle answers one delivery from the popup. Upload commands are
// asynchronous end to end: the handler signals pending, bridges to the
// background for the document bytes, injects, and responds from its own
// goroutine.
func (s *Script) handle(ctx context.Context, d messaging.Delivery, respond func(any)) bool {
	cmd, ok := d.Payload.(schemas.UploadCommand)
	if !ok || cmd.Action != schemas.ActionUpload {
		s.log.Warn("Unrecognized message", zap.String("correlation_id", d.ID))
		return false
	}

	go func() {
		respond(s.runUpload(ctx, cmd))
	}()
	return true
}

// runUpload performs one complete upload: fetch via the background proxy,
// then inject into this script's page.
func (s *Script) runUpload(ctx context.Context, cmd schemas.UploadCommand) schemas.UploadResult {
	reply, err := s.bus.Send(ctx, messaging.AddressBackground, schemas.FetchResumeRequest{
		Action:      schemas.ActionFetchResume,
		DownloadURL: cmd.DownloadURL,
		Token:       cmd.Token,
	})
	if err != nil {
		return schemas.UploadResult{OK: false, Error: err.Error()}
	}
	resp, ok := reply.(schemas.FetchResumeResponse)
	if !ok || !resp.OK || resp.Envelope == nil {
		msg := "document fetch failed"
		if ok && resp.Error != "" {
			msg = resp.Error
		}
		return schemas.UploadResult{OK: false, Error: msg}
	}

	result, err := s.injector.Inject(s.page, s.detector, *resp.Envelope)
	if err != nil {
		s.log.Warn("Injection failed", zap.Error(err))
		return schemas.UploadResult{OK: false, Error: err.Error()}
	}

	s.log.Info("Injection complete",
		zap.String("outcome", string(result.Outcome)),
		zap.String("target", result.TargetID),
		zap.String("filename", result.Filename))
	return schemas.UploadResult{OK: true, Detail: string(result.Outcome)}
}
