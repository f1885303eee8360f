// internal/injector/injector.go
package injector

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/dompage"
)

// Presenter is the last-resort fallback: hand the fetched document over for
// manual handling when the page offers neither an upload control nor a text
// target. The document is never silently dropped.
type Presenter interface {
	Present(envelope schemas.TransferEnvelope, data []byte) error
}

// Injector attaches a fetched document to the page the way a user's own
// file selection would.
type Injector struct {
	presenter Presenter
	log       *zap.Logger
}

// New builds an Injector. presenter may be nil, in which case the
// present-for-manual-handling fallback reports NoTargetError instead.
func New(presenter Presenter, logger *zap.Logger) *Injector {
	return &Injector{presenter: presenter, log: logger.Named("injector")}
}

// Inject performs one injection: resolve the target control, negotiate the
// file identity against its accept declaration, verify integrity, assign
// the synthetic file, and fire the event sequence host pages rely on.
func (inj *Injector) Inject(page *dompage.Page, det *classifier.Detector, env schemas.TransferEnvelope) (schemas.InjectionResult, error) {
	if env.IsMarkup() {
		// An HTML body here is the storage service's error page, not a
		// resume.
		return schemas.InjectionResult{}, &schemas.FetchError{Reason: "download returned HTML, not a document"}
	}

	data, err := env.Decode()
	if err != nil {
		return schemas.InjectionResult{}, &schemas.FetchError{Reason: err.Error()}
	}

	target, candidatesExist := inj.resolveTarget(page, det)
	if target != nil {
		return inj.attach(target, env, data)
	}
	if candidatesExist {
		return schemas.InjectionResult{}, &schemas.NoTargetError{Reason: "multiple upload controls, none resume-like"}
	}

	if env.IsTextLike() {
		if res, ok := inj.pasteText(page, data); ok {
			return res, nil
		}
	}

	if inj.presenter != nil {
		if err := inj.presenter.Present(env, data); err != nil {
			return schemas.InjectionResult{}, fmt.Errorf("failed to present document: %w", err)
		}
		inj.log.Info("No attachable target; presented document for manual handling",
			zap.String("filename", env.Filename))
		return schemas.InjectionResult{Outcome: schemas.OutcomePresented, Filename: env.Filename}, nil
	}
	return schemas.InjectionResult{}, &schemas.NoTargetError{Reason: "no upload control or text target"}
}

// resolveTarget picks the control to attach to: the remembered choice when
// it still resolves, otherwise a fresh scoring pass. candidatesExist is
// true when the page has upload controls at all, which gates the fallbacks.
func (inj *Injector) resolveTarget(page *dompage.Page, det *classifier.Detector) (*dompage.Element, bool) {
	if target := det.Target(page); target != nil {
		inj.log.Debug("Reusing remembered upload target", zap.String("identifier", det.ChosenIdentifier()))
		return target, true
	}

	cands := det.Classifier().Scan(page)
	if len(cands) == 0 {
		return nil, false
	}
	best, _ := det.Classifier().Best(cands)
	if best.Score > 0 {
		return best.Control, true
	}
	if len(cands) == 1 {
		inj.log.Debug("Using the page's sole upload control")
		return cands[0].Control, true
	}
	return nil, true
}

// attach performs steps 2-4 against a concrete control.
func (inj *Injector) attach(target *dompage.Element, env schemas.TransferEnvelope, data []byte) (schemas.InjectionResult, error) {
	negotiated, err := Negotiate(target.Attr("accept"), env.ContentType)
	if err != nil {
		return schemas.InjectionResult{}, err
	}
	if err := CheckIntegrity(negotiated.MediaType, data); err != nil {
		return schemas.InjectionResult{}, err
	}

	filename := baseName(env.Filename) + negotiated.Ext
	target.Files = []dompage.File{{Name: filename, Type: negotiated.MediaType, Data: data}}

	// Event order matters: some hosts only wire logic to the inline
	// attribute, some validate on blur, and delegated listeners live on
	// ancestors, hence everything bubbles.
	var sent []string
	if target.HasInlineChange() {
		target.InvokeInlineChange(dompage.Event{Type: "change", Bubbles: true})
		sent = append(sent, "inline-change")
	}
	for _, evType := range []string{"input", "change", "focus", "blur"} {
		target.Dispatch(dompage.Event{Type: evType, Bubbles: true})
		sent = append(sent, evType)
	}

	identifier := target.Name()
	if identifier == "" {
		identifier = target.ID()
	}
	inj.log.Info("Attached file to upload control",
		zap.String("target", identifier),
		zap.String("filename", filename),
		zap.String("media_type", negotiated.MediaType))

	return schemas.InjectionResult{
		Outcome:    schemas.OutcomeAttached,
		TargetID:   identifier,
		Filename:   filename,
		MediaType:  negotiated.MediaType,
		EventsSent: sent,
	}, nil
}

// pasteText sets the document text on an editable target, preferring the
// focused element.
func (inj *Injector) pasteText(page *dompage.Page, data []byte) (schemas.InjectionResult, bool) {
	target := page.Focused()
	if target == nil || !target.IsTextTarget() {
		target = nil
		for _, doc := range page.Documents() {
			doc.Descendants(func(e *dompage.Element) bool {
				if e.IsTextTarget() {
					target = e
					return false
				}
				return true
			})
			if target != nil {
				break
			}
		}
	}
	if target == nil {
		return schemas.InjectionResult{}, false
	}

	target.Value = string(data)
	target.Dispatch(dompage.Event{Type: "input", Bubbles: true})
	inj.log.Info("Pasted text content into editable target", zap.String("tag", target.Tag))
	return schemas.InjectionResult{
		Outcome:    schemas.OutcomePasted,
		TargetID:   target.ID(),
		EventsSent: []string{"input"},
	}, true
}

// baseName strips the extension off the transferred filename, defaulting
// to "resume".
func baseName(filename string) string {
	if filename == "" {
		return "resume"
	}
	if i := strings.LastIndexByte(filename, '.'); i > 0 {
		filename = filename[:i]
	}
	if filename == "" {
		return "resume"
	}
	return filename
}
