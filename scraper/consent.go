package scraper

import (
	"encoding/json"
	"fmt"
	"time"

	"lead-harvester/utils"
)

// Consent texts and CSS hooks. Reject / necessary-only affordances are always
// tried before accept.
var (
	RejectTexts = []string{
		"Reject non-essential", "Only necessary", "Necessary only", "Essential only", "Strictly necessary",
		"Tout refuser", "Refuser", "Accepter uniquement les essentiels", "Seulement les essentiels",
		"Nur notwendige", "Alles ablehnen", "Allow essential only", "Reject all", "Refuse non-essential",
		"Accept necessary only", "Necessaire uniquement", "Nur erforderliche",
	}
	AcceptTexts = []string{
		"Accept all", "Accept all cookies", "Accept & continue", "I accept", "Accept", "Allow all",
		"Agree", "Tout accepter", "Alles akzeptieren", "Accepter", "Allow", "OK",
	}
	RejectSelectors = []string{
		"[id*='reject']", "[class*='reject']", "[data-action='reject']", ".cc-reject", ".cc-deny",
		"[aria-label*='eject']", "button[class*='necessary']", "a[class*='necessary']",
	}
	AcceptSelectors = []string{
		"#onetrust-accept-btn-handler", "[data-testid='accept-cookies']", ".cookie-consent button",
		"[class*='cookie'] button", "[class*='consent'] button", "[id*='accept']",
		".cc-btn.cc-allow", "[aria-label*='Accept']",
	}
)

// ConsentProbe is one attempt at dismissing a banner. Texts are matched
// case-insensitively against visible buttons, links and role=button nodes;
// selectors are tried in order. With Frames set the probe searches nested
// same-origin frames instead of the top document.
type ConsentProbe struct {
	Name      string
	Texts     []string
	Selectors []string
	Frames    bool
}

// ConsentChain is tried in order; the first probe that clicks something wins.
type ConsentChain []ConsentProbe

// DefaultConsentChain is reject-by-text, accept-by-text, reject hooks,
// accept hooks, then frames.
func DefaultConsentChain() ConsentChain {
	return NewConsentChain(nil, nil)
}

// NewConsentChain builds the default chain with source-specific texts and
// selectors tried ahead of the shared ones at the same stage.
func NewConsentChain(extraTexts, extraSelectors []string) ConsentChain {
	rejectText := append(append([]string{}, extraTexts...), RejectTexts...)
	hooks := append(append([]string{}, extraSelectors...), RejectSelectors...)
	return ConsentChain{
		{Name: "reject-text", Texts: rejectText},
		{Name: "accept-text", Texts: AcceptTexts},
		{Name: "reject-selector", Selectors: hooks},
		{Name: "accept-selector", Selectors: AcceptSelectors},
		{
			Name:      "frames",
			Texts:     append(append([]string{}, rejectText...), AcceptTexts...),
			Selectors: append(append([]string{}, hooks...), AcceptSelectors...),
			Frames:    true,
		},
	}
}

// clickScript polls for a matching visible element until the timeout and
// clicks it. It resolves to the matched text or selector, or "".
const clickScript = `(async function(opts) {
	var deadline = Date.now() + opts.timeout;
	function visible(el) {
		var view = el.ownerDocument.defaultView || window;
		var r = el.getBoundingClientRect();
		var s = view.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
	}
	function docs() {
		if (!opts.frames) return [document];
		var out = [];
		for (var i = 0; i < window.frames.length; i++) {
			try { if (window.frames[i].document) out.push(window.frames[i].document); } catch (e) {}
		}
		return out;
	}
	function matches(el, needle) {
		var txt = (el.innerText || el.textContent || '').trim().toLowerCase();
		if (needle.length <= 3) return txt === needle;
		return txt.indexOf(needle) !== -1;
	}
	function find(doc) {
		var nodes = doc.querySelectorAll('button, a, [role="button"], [role="menuitem"]');
		for (var t = 0; t < opts.texts.length; t++) {
			var needle = opts.texts[t].toLowerCase();
			for (var n = 0; n < nodes.length; n++) {
				if (matches(nodes[n], needle) && visible(nodes[n])) return [nodes[n], opts.texts[t]];
			}
		}
		for (var s = 0; s < opts.selectors.length; s++) {
			var el = null;
			try { el = doc.querySelector(opts.selectors[s]); } catch (e) { continue; }
			if (el && visible(el)) return [el, opts.selectors[s]];
		}
		return null;
	}
	while (true) {
		var ds = docs();
		for (var d = 0; d < ds.length; d++) {
			var hit = find(ds[d]);
			if (hit) { hit[0].click(); return hit[1]; }
		}
		if (Date.now() >= deadline) return '';
		await new Promise(function(r) { setTimeout(r, 50); });
	}
})(%s)`

type clickOptions struct {
	Texts     []string `json:"texts"`
	Selectors []string `json:"selectors"`
	Timeout   int64    `json:"timeout"`
	Frames    bool     `json:"frames"`
}

// clickFirst clicks the first visible element matching texts or selectors.
func clickFirst(page Page, texts, selectors []string, frames bool, timeout time.Duration) (string, error) {
	if texts == nil {
		texts = []string{}
	}
	if selectors == nil {
		selectors = []string{}
	}
	arg, err := json.Marshal(clickOptions{
		Texts:     texts,
		Selectors: selectors,
		Timeout:   timeout.Milliseconds(),
		Frames:    frames,
	})
	if err != nil {
		return "", err
	}
	var label string
	if err := page.Evaluate(fmt.Sprintf(clickScript, arg), &label); err != nil {
		return "", err
	}
	return label, nil
}

// Dismiss runs the probes in order with a per-probe timeout. It returns the
// winning probe and label, or ok=false when nothing matched. Failures are
// never fatal.
func (c ConsentChain) Dismiss(page Page, perProbe time.Duration, logger *utils.Logger) (probe, label string, ok bool) {
	for _, p := range c {
		got, err := clickFirst(page, p.Texts, p.Selectors, p.Frames, perProbe)
		if err != nil {
			logger.Debug("[consent] probe %s failed: %v", p.Name, err)
			continue
		}
		if got != "" {
			return p.Name, got, true
		}
	}
	return "", "", false
}
