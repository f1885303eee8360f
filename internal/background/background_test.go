// internal/background/background_test.go
package background

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/config"
	"github.com/sheasmith19/ezapp/internal/dompage"
	"github.com/sheasmith19/ezapp/internal/messaging"
)

func newTestProxy() *Proxy {
	return NewProxy(config.Default().Network, zap.NewNop())
}

func TestFetchResourceEncodesBody(t *testing.T) {
	payload := []byte("%PDF-1.7 body \x00\x01\x02 binary")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	env, err := newTestProxy().FetchResource(context.Background(), srv.URL+"/files/main.pdf", "tok")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", env.ContentType)
	assert.Equal(t, "main.pdf", env.Filename)

	decoded, err := env.Decode()
	require.NoError(t, err)
	assert.Equal(t, payload, decoded, "bytes round trip the transport encoding exactly")
}

func TestFetchResourceRoundTripsArbitraryBinary(t *testing.T) {
	cases := map[string][]byte{
		"zero length": {},
		"all bytes": func() []byte {
			b := make([]byte, 256)
			for i := range b {
				b[i] = byte(i)
			}
			return b
		}(),
	}
	for name, payload := range cases {
		payload := payload
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			env, err := newTestProxy().FetchResource(context.Background(), srv.URL+"/doc", "")
			require.NoError(t, err)
			decoded, err := env.Decode()
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestFetchResourceDefaultsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil // suppress Go's sniffing default
		_, _ = w.Write([]byte{0x01})
	}))
	defer srv.Close()

	env, err := newTestProxy().FetchResource(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", env.ContentType)
	assert.Equal(t, "resume.pdf", env.Filename, "no usable path segment falls back to the default name")
}

func TestFetchResourceNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestProxy().FetchResource(context.Background(), srv.URL+"/x.pdf", "")
	var fe *schemas.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusInternalServerError, fe.Status)
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.example.com/download-resume/main.pdf", "main.pdf"},
		{"https://api.example.com/download-resume/my%20resume.pdf", "my resume.pdf"},
		{"https://api.example.com/", "resume.pdf"},
		{"https://api.example.com", "resume.pdf"},
		{"://bad", "resume.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, filenameFromURL(tt.url), tt.url)
	}
}

// -- TabController --

type fakeBadge struct {
	mu    sync.Mutex
	calls []string
}

func (b *fakeBadge) SetBadge(tabID string, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("%s:%v", tabID, on))
}

type fakeOpener struct {
	err   error
	calls int
}

func (o *fakeOpener) OpenPopup(tabID string) error {
	o.calls++
	return o.err
}

type fakeNotifier struct{ calls int }

func (n *fakeNotifier) Notify(title, body string) { n.calls++ }

func newTestTabs(badge *fakeBadge, opener *fakeOpener, notifier *fakeNotifier) *TabController {
	c := classifier.New(config.Default().Classifier, zap.NewNop())
	return NewTabController(c, badge, opener, notifier, zap.NewNop())
}

func mustParse(t *testing.T, rawHTML string) *dompage.Page {
	t.Helper()
	page, err := dompage.Parse(rawHTML, "https://jobs.example.com/apply")
	require.NoError(t, err)
	return page
}

func TestNavigationCompleteSetsBadgeUnderLoosePolicy(t *testing.T) {
	badge := &fakeBadge{}
	opener := &fakeOpener{}
	tabs := newTestTabs(badge, opener, nil)

	// A bare attachment input with no resume signal still counts: the
	// badge path deliberately accepts false positives.
	tabs.OnNavigationComplete("42", mustParse(t, `<input type="file" name="attachment">`))

	assert.Equal(t, []string{"42:true"}, badge.calls)
	assert.Equal(t, 1, opener.calls)
}

func TestNavigationCompleteClearsBadgeOnNegative(t *testing.T) {
	badge := &fakeBadge{}
	tabs := newTestTabs(badge, &fakeOpener{}, nil)

	tabs.OnNavigationComplete("42", mustParse(t, `<p>no forms</p>`))
	assert.Equal(t, []string{"42:false"}, badge.calls)
}

func TestRefusedPopupFallsBackToOneNotification(t *testing.T) {
	badge := &fakeBadge{}
	opener := &fakeOpener{err: fmt.Errorf("user gesture required")}
	notifier := &fakeNotifier{}
	tabs := newTestTabs(badge, opener, notifier)

	page := mustParse(t, `<input type="file" name="resume">`)
	tabs.OnNavigationComplete("42", page)
	assert.Equal(t, 1, notifier.calls)

	// Late mutation reports on the same page load stay silent.
	tabs.OnFieldDetected("42")
	tabs.OnFieldDetected("42")
	assert.Equal(t, 1, notifier.calls, "notification fires once per page load")
	assert.Equal(t, []string{"42:true"}, badge.calls)
}

func TestFieldDetectedAfterNewNavigationFiresAgain(t *testing.T) {
	badge := &fakeBadge{}
	notifier := &fakeNotifier{}
	tabs := newTestTabs(badge, &fakeOpener{err: fmt.Errorf("refused")}, notifier)

	tabs.OnFieldDetected("42")
	require.Equal(t, 1, notifier.calls)

	// Navigation starts a fresh page load, so the next report surfaces.
	tabs.OnNavigationComplete("42", mustParse(t, `<p>empty at load</p>`))
	tabs.OnFieldDetected("42")
	assert.Equal(t, 2, notifier.calls)
}

// -- Service over the bus --

func TestServiceProxiesFetchOverBus(t *testing.T) {
	payload := []byte("%PDF-1.7 over the bus")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	bus := messaging.NewBus(zap.NewNop())
	svc := NewService(newTestProxy(), newTestTabs(&fakeBadge{}, &fakeOpener{}, nil), zap.NewNop())
	svc.Attach(bus)

	reply, err := bus.Send(context.Background(), messaging.AddressBackground,
		schemas.FetchResumeRequest{Action: schemas.ActionFetchResume, DownloadURL: srv.URL + "/r.pdf"})
	require.NoError(t, err)

	resp, ok := reply.(schemas.FetchResumeResponse)
	require.True(t, ok)
	require.True(t, resp.OK)
	decoded, err := resp.Envelope.Decode()
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestServiceReportsFetchFailureOverBus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	bus := messaging.NewBus(zap.NewNop())
	svc := NewService(newTestProxy(), newTestTabs(&fakeBadge{}, &fakeOpener{}, nil), zap.NewNop())
	svc.Attach(bus)

	reply, err := bus.Send(context.Background(), messaging.AddressBackground,
		schemas.FetchResumeRequest{DownloadURL: srv.URL})
	require.NoError(t, err)

	resp := reply.(schemas.FetchResumeResponse)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "404")
}

func TestServiceHandlesFieldDetectedReport(t *testing.T) {
	badge := &fakeBadge{}
	bus := messaging.NewBus(zap.NewNop())
	svc := NewService(newTestProxy(), newTestTabs(badge, &fakeOpener{}, nil), zap.NewNop())
	svc.Attach(bus)

	reply, err := bus.Send(context.Background(), messaging.AddressBackground,
		schemas.FieldDetectedReport{Action: schemas.ActionFieldDetected, TabID: "7"})
	require.NoError(t, err)

	res := reply.(schemas.UploadResult)
	assert.True(t, res.OK)
	assert.Equal(t, []string{"7:true"}, badge.calls)
}
