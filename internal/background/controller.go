// internal/background/controller.go
package background

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/dompage"
)

// Badger reflects detection results as a per-tab visual affordance.
type Badger interface {
	SetBadge(tabID string, on bool)
}

// Opener attempts to surface the popup automatically. The platform may
// refuse, in which case the controller falls back to a notification.
type Opener interface {
	OpenPopup(tabID string) error
}

// Notifier posts a one-shot system notification.
type Notifier interface {
	Notify(title, body string)
}

// TabController watches tab navigation, runs detection, and reflects the
// result on the badge. Detection here uses the loose any-control policy on
// purpose: a false badge costs little, a missed unconventional form costs
// the user the whole feature. The strict policy stays where target choice
// happens, in the content script.
type TabController struct {
	classifier *classifier.Classifier
	badger     Badger
	opener     Opener
	notifier   Notifier
	log        *zap.Logger

	mu       sync.Mutex
	notified map[string]bool // per tab, per page load
}

// NewTabController wires the controller. opener and notifier may be nil
// when the host environment has no popup or notification surface.
func NewTabController(c *classifier.Classifier, badger Badger, opener Opener, notifier Notifier, logger *zap.Logger) *TabController {
	return &TabController{
		classifier: c,
		badger:     badger,
		opener:     opener,
		notifier:   notifier,
		log:        logger.Named("tabs"),
		notified:   make(map[string]bool),
	}
}

// OnNavigationComplete runs when a tab finishes loading a page. A new page
// load resets the tab's notification state, then the loose-policy detection
// decides the badge.
func (t *TabController) OnNavigationComplete(tabID string, page *dompage.Page) {
	t.mu.Lock()
	delete(t.notified, tabID)
	t.mu.Unlock()

	det := t.classifier.Classify(page, classifier.PolicyAny)
	if !det.Found {
		t.badger.SetBadge(tabID, false)
		t.log.Debug("No upload control on page", zap.String("tab", tabID))
		return
	}
	t.surfaceOnce(tabID)
}

// OnFieldDetected handles the explicit report pushed by the in-page
// mutation observer for controls that appear after initial load. Same badge
// and notification logic, at most once per page load.
func (t *TabController) OnFieldDetected(tabID string) {
	t.surfaceOnce(tabID)
}

func (t *TabController) surfaceOnce(tabID string) {
	t.mu.Lock()
	already := t.notified[tabID]
	t.notified[tabID] = true
	t.mu.Unlock()
	if already {
		return
	}

	t.badger.SetBadge(tabID, true)
	t.log.Info("Upload control detected", zap.String("tab", tabID))

	if t.opener != nil {
		err := t.opener.OpenPopup(tabID)
		if err == nil {
			return
		}
		t.log.Debug("Automatic popup refused; falling back to notification",
			zap.String("tab", tabID), zap.Error(err))
	}
	if t.notifier != nil {
		t.notifier.Notify("Resume field detected", "This page accepts a resume upload. Open the picker to attach one.")
	}
}
