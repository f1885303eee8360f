// internal/classifier/detector.go
package classifier

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/internal/dompage"
)

// Detector carries the per-page-load mutable state: whether a detection has
// already been reported, and which control was chosen. One Detector is
// constructed at content-script attach time and threaded through detection
// and injection; navigation builds a fresh one, which is what resets the
// state. Nothing here survives navigation.
type Detector struct {
	classifier *Classifier
	log        *zap.Logger

	mu       sync.Mutex
	notified bool
	chosenID string
}

// NewDetector binds a Detector to a classifier for one page load.
func NewDetector(c *Classifier, logger *zap.Logger) *Detector {
	return &Detector{classifier: c, log: logger.Named("detector")}
}

// Observe runs one detection pass under the given policy. firstReport is
// true only for the first positive detection of this page load; mutation
// storms re-invoke Observe freely and every later positive is silent.
// The winning control's identifier is recorded once, when the detection
// clears the strict threshold, so a later injection can reuse the target
// without rescoring.
func (d *Detector) Observe(page *dompage.Page, policy Policy) (Detection, bool) {
	det := d.classifier.Classify(page, policy)

	d.mu.Lock()
	defer d.mu.Unlock()

	if det.Qualified && d.chosenID == "" {
		d.chosenID = det.Best.Identifier()
		d.log.Info("Chose upload target",
			zap.String("identifier", d.chosenID),
			zap.Int("score", det.Best.Score))
	}

	if !det.Found {
		return det, false
	}
	if d.notified {
		return det, false
	}
	d.notified = true
	return det, true
}

// ChosenIdentifier returns the remembered target identifier, or "".
func (d *Detector) ChosenIdentifier() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chosenID
}

// Target re-resolves the remembered control against the current DOM.
// Returns nil when nothing was chosen or the DOM changed underneath it;
// callers fall back to rescoring with the same algorithm.
func (d *Detector) Target(page *dompage.Page) *dompage.Element {
	id := d.ChosenIdentifier()
	if id == "" {
		return nil
	}
	target := d.classifier.Resolve(page, id)
	if target == nil {
		d.log.Debug("Remembered target no longer resolvable", zap.String("identifier", id))
	}
	return target
}

// Classifier exposes the scoring engine for the injector's fallback path.
func (d *Detector) Classifier() *Classifier {
	return d.classifier
}
