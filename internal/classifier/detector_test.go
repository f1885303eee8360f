// internal/classifier/detector_test.go
package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(newTestClassifier(t), zap.NewNop())
}

func TestObserveReportsOncePerPageLoad(t *testing.T) {
	page := parsePage(t, `<input type="file" name="resume">`)
	d := newTestDetector(t)

	det, first := d.Observe(page, PolicyStrict)
	assert.True(t, det.Found)
	assert.True(t, first, "first positive detection reports")

	// Mutation-triggered rescans on an unchanged DOM are silent no-ops.
	for i := 0; i < 3; i++ {
		det, first = d.Observe(page, PolicyStrict)
		assert.True(t, det.Found)
		assert.False(t, first, "already notified this page load")
	}
}

func TestObserveNegativeThenPositive(t *testing.T) {
	d := newTestDetector(t)

	empty := parsePage(t, `<p>nothing yet</p>`)
	det, first := d.Observe(empty, PolicyAny)
	assert.False(t, det.Found)
	assert.False(t, first)

	// The control appears later, behind an "apply" click.
	revealed := parsePage(t, `<input type="file" name="resume">`)
	det, first = d.Observe(revealed, PolicyAny)
	assert.True(t, det.Found)
	assert.True(t, first, "late-appearing control still reports exactly once")

	_, first = d.Observe(revealed, PolicyAny)
	assert.False(t, first)
}

func TestObserveRemembersChosenTargetOnce(t *testing.T) {
	d := newTestDetector(t)

	page := parsePage(t, `
		<input type="file" name="resume_main">
		<input type="file" name="other">`)
	_, _ = d.Observe(page, PolicyStrict)
	require.Equal(t, "resume_main", d.ChosenIdentifier())

	// A later, higher-scoring DOM must not displace the chosen target:
	// at most one candidate is chosen per page load.
	richer := parsePage(t, `
		<input type="file" name="resume_cv_better" id="resume" placeholder="resume">
		<input type="file" name="resume_main">`)
	_, _ = d.Observe(richer, PolicyStrict)
	assert.Equal(t, "resume_main", d.ChosenIdentifier())
}

func TestObserveLoosePositiveDoesNotChooseUnqualifiedTarget(t *testing.T) {
	d := newTestDetector(t)

	page := parsePage(t, `<input type="file" name="attachment">`)
	det, first := d.Observe(page, PolicyAny)
	assert.True(t, det.Found)
	assert.True(t, first)
	assert.Empty(t, d.ChosenIdentifier(), "only a strict-qualified winner is recorded")
}

func TestTargetResolvesRememberedControl(t *testing.T) {
	d := newTestDetector(t)
	page := parsePage(t, `<input type="file" name="resume">`)
	_, _ = d.Observe(page, PolicyStrict)

	target := d.Target(page)
	require.NotNil(t, target)
	assert.Equal(t, "resume", target.Name())
}

func TestTargetFallsBackWhenDOMChanged(t *testing.T) {
	d := newTestDetector(t)
	_, _ = d.Observe(parsePage(t, `<input type="file" name="resume">`), PolicyStrict)

	changed := parsePage(t, `<input type="file" name="completely_different">`)
	assert.Nil(t, d.Target(changed), "stale identifier resolves to nil; caller rescans")
}

func TestFreshDetectorResetsState(t *testing.T) {
	// New page load means a new Detector; detection fires again.
	page := parsePage(t, `<input type="file" name="resume">`)

	d1 := newTestDetector(t)
	_, first := d1.Observe(page, PolicyStrict)
	require.True(t, first)

	d2 := newTestDetector(t)
	_, first = d2.Observe(page, PolicyStrict)
	assert.True(t, first)
}
