package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"lead-harvester/models"
	"lead-harvester/utils"
)

type fakePage struct {
	mu       sync.Mutex
	url      string
	gotos    []string
	gotoErr  map[string]error
	elements map[string][]Element
	evaluate func(script string) (any, error)
	scripts  []string
	moves    int
	closed   bool
}

func newFakePage(url string) *fakePage {
	return &fakePage{url: url, gotoErr: map[string]error{}, elements: map[string][]Element{}}
}

func (p *fakePage) Goto(url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotos = append(p.gotos, url)
	if err := p.gotoErr[url]; err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) Evaluate(script string, out any) error {
	p.mu.Lock()
	p.scripts = append(p.scripts, script)
	eval := p.evaluate
	p.mu.Unlock()
	if eval == nil {
		return nil
	}
	v, err := eval(script)
	if err != nil || v == nil || out == nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *fakePage) QuerySelectorAll(sel string) ([]Element, error) {
	return p.elements[sel], nil
}

func (p *fakePage) MouseMove(_, _ float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves++
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func (p *fakePage) clickScripts() []string {
	var out []string
	for _, s := range p.scripts {
		if strings.Contains(s, `"timeout":`) {
			out = append(out, s)
		}
	}
	return out
}

type fakeAnalyzer struct {
	structured models.StructuredListing
	structErr  error
}

func (a *fakeAnalyzer) KeywordSeller(text string) (models.SellerJudgement, bool) {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "private seller"):
		return models.SellerJudgement{IsPrivate: true, Confidence: 9, Heuristic: true}, true
	case strings.Contains(t, "agence"):
		return models.SellerJudgement{IsPrivate: false, Confidence: 9, AgencyName: "Agence Test", Heuristic: true}, true
	}
	return models.SellerJudgement{}, false
}

func (a *fakeAnalyzer) ScanContact(text string) models.Contact {
	var c models.Contact
	if strings.Contains(text, "jane@example.com") {
		c.Email = "jane@example.com"
	}
	if strings.Contains(text, "621 123 456") {
		c.Phone = "+352621123456"
	}
	return c
}

func (a *fakeAnalyzer) ExtractStructured(_ context.Context, _ string) (models.StructuredListing, error) {
	return a.structured, a.structErr
}

var errNav = errors.New("navigation timeout")

func newTestProtocol(a Analyzer, shutdown *utils.Shutdown) *Protocol {
	return NewProtocol(a, Options{ScrollDepth: 2}, utils.NewLoggerTo(io.Discard), shutdown)
}
