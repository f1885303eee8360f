// internal/injector/injector_test.go
package injector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/config"
	"github.com/sheasmith19/ezapp/internal/dompage"
)

var pdfBytes = []byte("%PDF-1.7 fake document body")

func newDetector() *classifier.Detector {
	c := classifier.New(config.Default().Classifier, zap.NewNop())
	return classifier.NewDetector(c, zap.NewNop())
}

func parsePage(t *testing.T, rawHTML string) *dompage.Page {
	t.Helper()
	page, err := dompage.Parse(rawHTML, "https://jobs.example.com/apply")
	require.NoError(t, err)
	return page
}

func pdfEnvelope(filename string) schemas.TransferEnvelope {
	return schemas.NewTransferEnvelope(pdfBytes, "application/pdf", filename)
}

func findUpload(page *dompage.Page) *dompage.Element {
	for _, doc := range page.Documents() {
		var found *dompage.Element
		doc.Descendants(func(e *dompage.Element) bool {
			if e.IsUploadControl() {
				found = e
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func TestInjectAttachesToScoredControl(t *testing.T) {
	page := parsePage(t, `<form><input type="file" name="cv_upload"></form>`)
	input := findUpload(page)

	var observed []string
	input.AddEventListener("input", func(ev dompage.Event) { observed = append(observed, ev.Type) })
	input.AddEventListener("change", func(ev dompage.Event) { observed = append(observed, ev.Type) })

	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(page, newDetector(), pdfEnvelope("resume.pdf"))
	require.NoError(t, err)

	assert.Equal(t, schemas.OutcomeAttached, res.Outcome)
	assert.Equal(t, "cv_upload", res.TargetID)
	require.Len(t, input.Files, 1, "the control's file list has exactly one entry")
	assert.Equal(t, "resume.pdf", input.Files[0].Name)
	assert.Equal(t, pdfBytes, input.Files[0].Data)
	assert.Equal(t, []string{"input", "change"}, observed, "page-level listeners saw input and change")
}

func TestInjectEventSequenceAndBubbling(t *testing.T) {
	page := parsePage(t, `<form id="f"><input type="file" name="cv" onchange="h(event)"></form>`)
	input := findUpload(page)

	var formSaw []string
	form := input.Parent
	for _, evType := range []string{"input", "change", "focus", "blur"} {
		evType := evType
		form.AddEventListener(evType, func(dompage.Event) { formSaw = append(formSaw, evType) })
	}

	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(page, newDetector(), pdfEnvelope("resume.pdf"))
	require.NoError(t, err)

	assert.Equal(t, []string{"inline-change", "input", "change", "focus", "blur"}, res.EventsSent)
	assert.Equal(t, 1, input.InlineChangeCalls(), "inline handler invoked directly")
	assert.Equal(t, []string{"input", "change", "focus", "blur"}, formSaw, "every event bubbles to the ancestor")
}

func TestInjectReusesRememberedTarget(t *testing.T) {
	page := parsePage(t, `
		<input type="file" name="resume_main">
		<input type="file" name="resume_secondary">`)
	det := newDetector()
	_, _ = det.Observe(page, classifier.PolicyStrict)
	require.Equal(t, "resume_main", det.ChosenIdentifier())

	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(page, det, pdfEnvelope("resume.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "resume_main", res.TargetID)
}

func TestInjectFallsBackToRescoringWhenTargetGone(t *testing.T) {
	det := newDetector()
	_, _ = det.Observe(parsePage(t, `<input type="file" name="resume_old">`), classifier.PolicyStrict)

	// Navigation within the page replaced the form; the identifier is stale.
	changed := parsePage(t, `<input type="file" name="resume_new">`)
	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(changed, det, pdfEnvelope("resume.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "resume_new", res.TargetID, "stale identifier falls back to rescoring")
}

func TestInjectUsesSoleUnscoredControl(t *testing.T) {
	page := parsePage(t, `<input type="file" name="upload_thing">`)
	inj := New(nil, zap.NewNop())

	res, err := inj.Inject(page, newDetector(), pdfEnvelope("resume.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "upload_thing", res.TargetID)
}

func TestInjectAmbiguousUnscoredControlsIsNoTarget(t *testing.T) {
	page := parsePage(t, `
		<input type="file" name="photo">
		<input type="file" name="cover_letter_scan">`)
	inj := New(nil, zap.NewNop())

	_, err := inj.Inject(page, newDetector(), pdfEnvelope("resume.pdf"))
	var nte *schemas.NoTargetError
	require.ErrorAs(t, err, &nte)
}

func TestInjectNegotiatesAgainstAcceptList(t *testing.T) {
	page := parsePage(t, `<input type="file" name="resume" accept=".docx">`)
	input := findUpload(page)

	docx := schemas.NewTransferEnvelope([]byte("PK\x03\x04 docx bytes"), mimeDocx, "resume.docx")
	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(page, newDetector(), docx)
	require.NoError(t, err)

	assert.Equal(t, mimeDocx, res.MediaType)
	assert.Equal(t, "resume.docx", input.Files[0].Name)
}

func TestInjectHTMLBodyIsFetchError(t *testing.T) {
	page := parsePage(t, `<input type="file" name="resume">`)
	env := schemas.NewTransferEnvelope([]byte("<html>500</html>"), "text/html; charset=utf-8", "resume.pdf")

	inj := New(nil, zap.NewNop())
	_, err := inj.Inject(page, newDetector(), env)

	var fe *schemas.FetchError
	require.ErrorAs(t, err, &fe, "an HTML download is an error page, not a document")
	assert.Empty(t, findUpload(page).Files, "no DOM mutation on failure")
}

func TestInjectCorruptPDFIsIntegrityError(t *testing.T) {
	page := parsePage(t, `<input type="file" name="resume" accept=".pdf">`)
	env := schemas.NewTransferEnvelope([]byte("GIF89a not a pdf"), "application/pdf", "resume.pdf")

	inj := New(nil, zap.NewNop())
	_, err := inj.Inject(page, newDetector(), env)

	var ie *schemas.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Empty(t, findUpload(page).Files, "corrupt data is never attached")
}

func TestInjectTextFallbackPrefersFocusedTarget(t *testing.T) {
	page := parsePage(t, `
		<textarea id="first"></textarea>
		<textarea id="cover" autofocus></textarea>`)
	env := schemas.NewTransferEnvelope([]byte("Hello"), "text/plain", "resume.txt")

	saw := 0
	page.Focused().AddEventListener("input", func(dompage.Event) { saw++ })

	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(page, newDetector(), env)
	require.NoError(t, err)

	assert.Equal(t, schemas.OutcomePasted, res.Outcome)
	assert.Equal(t, "cover", res.TargetID)
	assert.Equal(t, "Hello", page.Focused().Value)
	assert.Equal(t, 1, saw, "an input event fires on the text target")
}

func TestInjectTextFallbackFindsFirstEditable(t *testing.T) {
	page := parsePage(t, `<div><textarea id="notes"></textarea></div>`)
	env := schemas.NewTransferEnvelope([]byte("plain text resume"), "text/plain", "r.txt")

	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(page, newDetector(), env)
	require.NoError(t, err)
	assert.Equal(t, "notes", res.TargetID)
}

type capturingPresenter struct {
	envelopes []schemas.TransferEnvelope
	err       error
}

func (p *capturingPresenter) Present(env schemas.TransferEnvelope, data []byte) error {
	p.envelopes = append(p.envelopes, env)
	return p.err
}

func TestInjectPresentsWhenNothingElseApplies(t *testing.T) {
	page := parsePage(t, `<p>A page with nothing editable</p>`)
	env := pdfEnvelope("resume.pdf")

	presenter := &capturingPresenter{}
	inj := New(presenter, zap.NewNop())
	res, err := inj.Inject(page, newDetector(), env)
	require.NoError(t, err)

	assert.Equal(t, schemas.OutcomePresented, res.Outcome)
	require.Len(t, presenter.envelopes, 1, "the document is never silently dropped")
}

func TestInjectNoPresenterIsNoTarget(t *testing.T) {
	page := parsePage(t, `<p>nothing</p>`)

	inj := New(nil, zap.NewNop())
	_, err := inj.Inject(page, newDetector(), pdfEnvelope("resume.pdf"))

	var nte *schemas.NoTargetError
	require.ErrorAs(t, err, &nte)
}

func TestInjectPresenterFailureSurfaces(t *testing.T) {
	page := parsePage(t, `<p>nothing</p>`)

	inj := New(&capturingPresenter{err: errors.New("no display available")}, zap.NewNop())
	_, err := inj.Inject(page, newDetector(), pdfEnvelope("resume.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display available")
}

func TestInjectZeroLengthBodyRoundTrips(t *testing.T) {
	page := parsePage(t, `<input type="file" name="resume" accept=".txt">`)
	env := schemas.NewTransferEnvelope([]byte{}, "text/plain", "empty.txt")

	inj := New(nil, zap.NewNop())
	res, err := inj.Inject(page, newDetector(), env)
	require.NoError(t, err)

	assert.Equal(t, schemas.OutcomeAttached, res.Outcome)
	input := findUpload(page)
	require.Len(t, input.Files, 1)
	assert.Empty(t, input.Files[0].Data)
}
