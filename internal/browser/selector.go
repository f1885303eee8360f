// internal/browser/selector.go
package browser

import (
	"fmt"
	"strings"

	"github.com/sheasmith19/ezapp/api/schemas"
	"github.com/sheasmith19/ezapp/internal/classifier"
)

// markerAttr tags an anonymous control in the live DOM so a CSS selector
// can re-find it. Nothing on the page uses the attribute; it exists only
// for the one upload and goes away with the page.
const markerAttr = "data-ezapp-target"

// SelectorFor builds the CSS selector that re-finds a scored candidate in
// the live DOM, plus a preparation script to run first when the control
// carries neither a name nor an id. Preference order matches the candidate
// identifier: name attribute, then id, then document-order position among
// file inputs.
func SelectorFor(c classifier.Candidate) (selector, prepare string, err error) {
	if c.Control == nil {
		return "", "", &schemas.NoTargetError{Reason: "candidate has no control"}
	}
	if name := c.Control.Name(); name != "" {
		return fmt.Sprintf(`input[type=file][name=%s]`, cssString(name)), "", nil
	}
	if id := c.Control.ID(); id != "" {
		return fmt.Sprintf(`input[type=file][id=%s]`, cssString(id)), "", nil
	}
	// Anonymous control: CSS cannot address the nth match of a compound
	// selector, so a preparation script tags it first.
	prepare = fmt.Sprintf(
		`(() => { const els = document.querySelectorAll('input[type=file]'); if (els.length <= %d) { return false; } els[%d].setAttribute(%q, "1"); return true; })()`,
		c.Ordinal, c.Ordinal, markerAttr)
	return fmt.Sprintf(`input[type=file][%s="1"]`, markerAttr), prepare, nil
}

// cssString quotes a value for use inside an attribute selector.
func cssString(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// dispatchScript builds the JS that replays the event sequence a manual
// file selection produces, against the same selector the upload targeted.
func dispatchScript(selector string, events []string) string {
	var sb strings.Builder
	sb.WriteString("(() => {\n")
	sb.WriteString(fmt.Sprintf("  const el = document.querySelector(%q);\n", selector))
	sb.WriteString("  if (!el) { return false; }\n")
	for _, ev := range events {
		sb.WriteString(fmt.Sprintf("  el.dispatchEvent(new Event(%q, { bubbles: true }));\n", ev))
	}
	sb.WriteString("  return true;\n")
	sb.WriteString("})()")
	return sb.String()
}
