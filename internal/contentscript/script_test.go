// internal/contentscript/script_test.go
package contentscript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/background"
	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/config"
	"github.com/sheasmith19/ezapp/internal/dompage"
	"github.com/sheasmith19/ezapp/internal/injector"
	"github.com/sheasmith19/ezapp/internal/messaging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingBadge struct{ calls int }

func (b *recordingBadge) SetBadge(string, bool) { b.calls++ }

// fixture assembles the full in-process pipeline: a bus, the background
// context backed by a test server, and a content script on the given page.
type fixture struct {
	bus    *messaging.Bus
	script *Script
	badge  *recordingBadge
}

func newFixture(t *testing.T, rawHTML string) *fixture {
	t.Helper()
	cfg := config.Default()
	log := zap.NewNop()

	page, err := dompage.Parse(rawHTML, "https://jobs.example.com/apply")
	require.NoError(t, err)

	bus := messaging.NewBus(log)
	badge := &recordingBadge{}
	c := classifier.New(cfg.Classifier, log)
	tabs := background.NewTabController(c, badge, nil, nil, log)
	background.NewService(background.NewProxy(cfg.Network, log), tabs, log).Attach(bus)

	script := New("1", page, bus, c, injector.New(nil, log), log)
	script.Attach()
	t.Cleanup(script.Detach)
	return &fixture{bus: bus, script: script, badge: badge}
}

func (f *fixture) upload(t *testing.T, url string) schemas.UploadResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := f.bus.Send(ctx, messaging.TabAddress("1"), schemas.UploadCommand{
		Action:      schemas.ActionUpload,
		DownloadURL: url,
		Token:       "tok",
	})
	require.NoError(t, err)
	res, ok := reply.(schemas.UploadResult)
	require.True(t, ok)
	return res
}

func findControl(page *dompage.Page, name string) *dompage.Element {
	var found *dompage.Element
	for _, doc := range page.Documents() {
		doc.Descendants(func(e *dompage.Element) bool {
			if e.IsUploadControl() && e.Name() == name {
				found = e
				return false
			}
			return true
		})
	}
	return found
}

func TestUploadCommandAttachesFetchedDocument(t *testing.T) {
	payload := []byte("%PDF-1.7 fetched through the proxy")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newFixture(t, `
		<form>
			<label for="up">Upload your resume</label>
			<input type="file" id="up" name="cv_upload" accept=".pdf,.doc,.docx">
		</form>`)

	control := findControl(f.script.page, "cv_upload")
	require.NotNil(t, control)
	var seen []string
	for _, ev := range []string{"input", "change"} {
		ev := ev
		control.AddEventListener(ev, func(e dompage.Event) { seen = append(seen, e.Type) })
	}

	res := f.upload(t, srv.URL+"/files/main.pdf")
	require.True(t, res.OK, res.Error)
	assert.Equal(t, string(schemas.OutcomeAttached), res.Detail)

	require.Len(t, control.Files, 1)
	assert.Equal(t, "main.pdf", control.Files[0].Name)
	assert.Equal(t, "application/pdf", control.Files[0].Type)
	assert.Equal(t, payload, control.Files[0].Data)
	assert.Equal(t, []string{"input", "change"}, seen)
}

func TestUploadCommandSurfacesFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t, `<input type="file" name="resume">`)
	res := f.upload(t, srv.URL+"/r.pdf")

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "500")

	control := findControl(f.script.page, "resume")
	require.NotNil(t, control)
	assert.Empty(t, control.Files, "a failed fetch must not touch the page")
}

func TestUploadCommandRejectsMarkupBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>login page</body></html>"))
	}))
	defer srv.Close()

	f := newFixture(t, `<input type="file" name="resume">`)
	res := f.upload(t, srv.URL+"/r.pdf")

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "download failed")
	assert.Empty(t, findControl(f.script.page, "resume").Files)
}

func TestUploadCommandPastesTextWithoutUploadControl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Jane Doe\nSenior Gopher"))
	}))
	defer srv.Close()

	f := newFixture(t, `<form><textarea name="cover" autofocus></textarea></form>`)
	res := f.upload(t, srv.URL+"/r.txt")

	require.True(t, res.OK, res.Error)
	assert.Equal(t, string(schemas.OutcomePasted), res.Detail)

	focused := f.script.page.Focused()
	require.NotNil(t, focused)
	assert.Equal(t, "Jane Doe\nSenior Gopher", focused.Value)
}

func TestUploadCommandWithNoTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	f := newFixture(t, `<p>nothing editable here</p>`)
	res := f.upload(t, srv.URL+"/r.pdf")

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "nothing to attach to")
}

func TestMutationReportsOncePerPageLoad(t *testing.T) {
	f := newFixture(t, `<input type="file" name="resume" placeholder="Attach your CV">`)

	ctx := context.Background()
	f.script.OnMutation(ctx)
	f.script.OnMutation(ctx)
	f.script.OnMutation(ctx)

	// One report reaches the background; the badge flips once.
	assert.Equal(t, 1, f.badge.calls)
}

func TestMutationReportsGenericFileInput(t *testing.T) {
	// A late-appearing file input with no resume wording still surfaces:
	// reporting runs under the loose policy, like the badge path. Target
	// choice stays strict, so nothing gets remembered for injection.
	f := newFixture(t, `<input type="file" name="attachment" accept=".pdf">`)

	ctx := context.Background()
	f.script.OnMutation(ctx)
	f.script.OnMutation(ctx)
	f.script.OnMutation(ctx)

	assert.Equal(t, 1, f.badge.calls)
	assert.Empty(t, f.script.Detector().ChosenIdentifier(),
		"a below-threshold control is reported but never chosen as target")
}

func TestMutationWithoutFileInputStaysSilent(t *testing.T) {
	f := newFixture(t, `<p>no controls yet</p>`)
	f.script.OnMutation(context.Background())
	assert.Zero(t, f.badge.calls)
}

func TestDetachedScriptYieldsChannelError(t *testing.T) {
	f := newFixture(t, `<input type="file" name="resume">`)
	f.script.Detach()

	_, err := f.bus.Send(context.Background(), messaging.TabAddress("1"), schemas.UploadCommand{
		Action: schemas.ActionUpload,
	})
	assert.True(t, schemas.IsChannelError(err))
}

func TestUnrecognizedPayloadTearsDownChannel(t *testing.T) {
	f := newFixture(t, `<input type="file" name="resume">`)
	reply, err := f.bus.Send(context.Background(), messaging.TabAddress("1"), "not a command")
	require.NoError(t, err)
	assert.Nil(t, reply)
}
