package scraper

import (
	"errors"
	"time"
)

// ErrBrowserUnavailable marks infrastructure failures the browser cannot
// recover from. The orchestrator treats it as fatal.
var ErrBrowserUnavailable = errors.New("browser unavailable")

// Element is a snapshot of one DOM node returned by QuerySelectorAll.
type Element struct {
	text  string
	html  string
	attrs map[string]string
}

// NewElement builds an Element from its rendered text, outer HTML and attributes.
func NewElement(text, html string, attrs map[string]string) Element {
	return Element{text: text, html: html, attrs: attrs}
}

// Text returns the element's rendered text (innerText).
func (e Element) Text() string { return e.text }

// HTML returns the element's outer HTML.
func (e Element) HTML() string { return e.html }

// Attribute returns the named attribute or "".
func (e Element) Attribute(name string) string { return e.attrs[name] }

// Page is one browser tab. A Page is owned by the goroutine that opened it.
type Page interface {
	// Goto navigates and waits for the basic load signal only, never for
	// network idle.
	Goto(url string, timeout time.Duration) error
	// URL returns the current document URL.
	URL() string
	// Evaluate runs script and decodes its (possibly awaited) result into out.
	// A nil out discards the result; scripts must not evaluate to undefined.
	Evaluate(script string, out any) error
	QuerySelectorAll(selector string) ([]Element, error)
	MouseMove(x, y float64) error
	Close() error
}

// Browser opens pages.
type Browser interface {
	NewPage() (Page, error)
	Close() error
}
