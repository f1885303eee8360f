// internal/classifier/classifier.go
package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/internal/config"
	"github.com/sheasmith19/ezapp/internal/dompage"
)

// Policy names the two deliberately different detection strictnesses.
// Strict demands clear resume/CV indicators before classifying the page;
// Any treats every upload control as a positive signal, trading false
// positives for not missing unconventional forms. Both are kept as distinct
// modes on purpose; do not merge them.
type Policy string

const (
	PolicyStrict Policy = "strict"
	PolicyAny    Policy = "any"
)

// Candidate is one observed upload control with its relevance score and the
// rationale behind it. Recomputed on every scan, never persisted.
type Candidate struct {
	Control *dompage.Element
	Score   int
	// Ordinal is the control's position among all collected controls, used
	// as the identifier of last resort.
	Ordinal   int
	Rationale []string
}

// Identifier returns the stable handle recorded for a chosen control: its
// name, its id, or its ordinal position when it has neither.
func (c Candidate) Identifier() string {
	if name := c.Control.Name(); name != "" {
		return name
	}
	if id := c.Control.ID(); id != "" {
		return id
	}
	return fmt.Sprintf("input-%d", c.Ordinal)
}

// Classifier scores upload controls by likely resume relevance. It is a
// pure function of the page snapshot and its configured weight table, which
// is what makes the heuristic testable without a fixture per weight.
type Classifier struct {
	cfg config.ClassifierConfig
	log *zap.Logger

	wordRe     map[string]*regexp.Regexp
	wordReOnce sync.Once
}

// New builds a Classifier from the weight/keyword configuration.
func New(cfg config.ClassifierConfig, logger *zap.Logger) *Classifier {
	return &Classifier{cfg: cfg, log: logger.Named("classifier")}
}

// Scan collects every upload control reachable on the page: the main
// document, each shadow subtree, and each same-origin frame. Cross-origin
// frames are skipped. Candidates come back in document order, scored.
func (c *Classifier) Scan(page *dompage.Page) []Candidate {
	var cands []Candidate
	for _, doc := range page.Documents() {
		doc := doc
		doc.Descendants(func(e *dompage.Element) bool {
			if e.IsUploadControl() {
				cand := Candidate{Control: e, Ordinal: len(cands)}
				cand.Score, cand.Rationale = c.score(doc, e)
				cands = append(cands, cand)
			}
			return true
		})
	}
	for _, cand := range cands {
		c.log.Debug("Scored upload control",
			zap.String("identifier", cand.Identifier()),
			zap.Int("score", cand.Score),
			zap.Strings("rationale", cand.Rationale))
	}
	return cands
}

// Best returns the highest scoring candidate. Ties break by document order,
// which keeps the scan deterministic for a fixed snapshot.
func (c *Classifier) Best(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, cand := range cands[1:] {
		if cand.Score > best.Score {
			best = cand
		}
	}
	return best, true
}

// Detection is the outcome of one classification pass.
type Detection struct {
	// Found reports whether the page qualifies under the requested policy.
	Found bool
	// Best is the winning candidate when any control exists.
	Best Candidate
	// HasCandidates reports whether any upload control exists at all.
	HasCandidates bool
	// Qualified reports whether Best clears the strict threshold, which is
	// what decides if its identifier is worth remembering.
	Qualified bool
}

// Classify runs one scan under a policy.
func (c *Classifier) Classify(page *dompage.Page, policy Policy) Detection {
	cands := c.Scan(page)
	best, ok := c.Best(cands)
	det := Detection{
		Best:          best,
		HasCandidates: ok,
		Qualified:     ok && best.Score >= c.cfg.StrictThreshold,
	}
	switch policy {
	case PolicyAny:
		det.Found = det.HasCandidates
	default:
		det.Found = det.Qualified
	}
	return det
}

// Resolve re-finds a previously chosen control by its recorded identifier.
// Returns nil when the DOM changed underneath it; the caller falls back to
// a fresh scan.
func (c *Classifier) Resolve(page *dompage.Page, identifier string) *dompage.Element {
	if identifier == "" {
		return nil
	}
	cands := c.Scan(page)
	for _, cand := range cands {
		if cand.Control.Name() == identifier || cand.Control.ID() == identifier {
			return cand.Control
		}
	}
	if rest, ok := strings.CutPrefix(identifier, "input-"); ok {
		if idx, err := strconv.Atoi(rest); err == nil && idx >= 0 && idx < len(cands) {
			return cands[idx].Control
		}
	}
	return nil
}

// score sums the independent signals for one control. doc is the document
// root the control lives in; label association does not cross shadow or
// frame boundaries.
func (c *Classifier) score(doc, e *dompage.Element) (int, []string) {
	w := c.cfg.Weights
	score := 0
	var rationale []string

	if c.containsKeyword(e.Name()) {
		score += w.NameAttr
		rationale = append(rationale, "name attribute")
	}
	if c.containsKeyword(e.ID()) {
		score += w.IDAttr
		rationale = append(rationale, "id attribute")
	}
	if c.containsKeyword(e.Attr("placeholder")) {
		score += w.Placeholder
		rationale = append(rationale, "placeholder attribute")
	}
	if label := c.associatedLabel(doc, e); label != nil && c.containsKeyword(label.TextContent()) {
		score += w.Label
		rationale = append(rationale, "associated label")
	}
	if n := c.countNearby(e); n > 0 {
		score += w.NearbyText * n
		rationale = append(rationale, fmt.Sprintf("nearby text x%d", n))
	}
	return score, rationale
}

// containsKeyword checks attribute-style values: any configured keyword as
// a case-insensitive substring.
func (c *Classifier) containsKeyword(s string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, kw := range c.cfg.Keywords {
		if strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// associatedLabel finds label[for=<id>] within the same document root.
func (c *Classifier) associatedLabel(doc, e *dompage.Element) *dompage.Element {
	id := e.ID()
	if id == "" {
		return nil
	}
	var label *dompage.Element
	doc.Descendants(func(cand *dompage.Element) bool {
		if cand.Tag == "label" && cand.Attr("for") == id {
			label = cand
			return false
		}
		return true
	})
	return label
}

// countNearby concatenates the text of up to AncestorDepth enclosing
// elements and counts keyword occurrences in the combined string. An
// ancestor's text includes its children's, so occurrences close to the
// control weigh more than ones further out; the overlap is intentional and
// matches the shipped heuristic.
func (c *Classifier) countNearby(e *dompage.Element) int {
	var sb strings.Builder
	current := e.Parent
	for depth := 0; current != nil && depth < c.cfg.AncestorDepth; depth++ {
		sb.WriteString(current.TextContent())
		sb.WriteByte(' ')
		current = current.Parent
	}
	text := strings.ToLower(sb.String())
	if text == "" {
		return 0
	}

	c.wordReOnce.Do(func() {
		c.wordRe = make(map[string]*regexp.Regexp, len(c.cfg.StandaloneKeywords))
		for _, kw := range c.cfg.StandaloneKeywords {
			c.wordRe[strings.ToLower(kw)] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
		}
	})

	total := 0
	for _, kw := range c.cfg.Keywords {
		kw = strings.ToLower(kw)
		if re, standalone := c.wordRe[kw]; standalone {
			total += len(re.FindAllStringIndex(text, -1))
			continue
		}
		total += strings.Count(text, kw)
	}
	return total
}
