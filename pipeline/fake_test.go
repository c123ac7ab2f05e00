package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"lead-harvester/classifier"
	"lead-harvester/config"
	"lead-harvester/scraper"
	"lead-harvester/storage"
	"lead-harvester/utils"
)

const janeListing = "Private seller, 3 bedroom apartment, contact jane@example.com, $450,000"

// fakeBrowser serves pages whose cards are keyed by URL.
type fakeBrowser struct {
	mu      sync.Mutex
	cards   map[string][]string
	gotoErr map[string]error
	pageErr error
	onGoto  func(url string)
	now     func() time.Time
	// delay holds each navigation so parallel workers overlap.
	delay time.Duration

	visits   []string
	visitAt  []time.Time
	opened   int
	closed   int
	pagesOut int
	peak     int
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{cards: map[string][]string{}, gotoErr: map[string]error{}, now: time.Now}
}

func (b *fakeBrowser) NewPage() (scraper.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	b.opened++
	b.pagesOut++
	b.peak = max(b.peak, b.pagesOut)
	return &fakePage{b: b}, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *fakeBrowser) visited() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

type fakePage struct {
	b       *fakeBrowser
	current string
}

func (p *fakePage) Goto(url string, _ time.Duration) error {
	p.b.mu.Lock()
	p.b.visits = append(p.b.visits, url)
	p.b.visitAt = append(p.b.visitAt, p.b.now())
	err := p.b.gotoErr[url]
	hook := p.b.onGoto
	delay := p.b.delay
	p.b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if hook != nil {
		hook(url)
	}
	if err != nil {
		return err
	}
	p.current = url
	return nil
}

func (p *fakePage) URL() string { return p.current }

func (p *fakePage) Evaluate(string, any) error { return nil }

func (p *fakePage) QuerySelectorAll(string) ([]scraper.Element, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	var out []scraper.Element
	for i, text := range p.b.cards[p.current] {
		html := fmt.Sprintf(`<article><p>%s</p><a href="/annonces/%d">View</a></article>`, text, i+1)
		out = append(out, scraper.NewElement(text, html, nil))
	}
	return out, nil
}

func (p *fakePage) MouseMove(float64, float64) error { return nil }

func (p *fakePage) Close() error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.pagesOut--
	return nil
}

// promptBackend answers each judgement by recognising its prompt.
type promptBackend struct {
	mu       sync.Mutex
	eligible bool
	calls    map[string]int
}

func (b *promptBackend) Name() string { return "prompt" }

func (b *promptBackend) Complete(_ context.Context, prompt, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = map[string]int{}
	}
	switch {
	case strings.Contains(prompt, "screen real estate listings"):
		b.calls["eligibility"]++
		return fmt.Sprintf(`{"eligible": %t, "reason": "owner listing"}`, b.eligible), nil
	case strings.Contains(prompt, "short-term rental"):
		b.calls["viability"]++
		return `{"viable": true, "rating": 7, "reason": "central", "qualification_factors": ["3 bedrooms"]}`, nil
	case strings.Contains(prompt, "contact details"):
		b.calls["contact"]++
		return `{"email": "jane@example.com", "phone": ""}`, nil
	case strings.Contains(prompt, "PRIVATE SELLER or AGENT"):
		b.calls["seller"]++
		return `{"is_private": false, "confidence": 8, "reason": "agency", "agency_name": ""}`, nil
	}
	return "", errors.New("unexpected prompt")
}

func (b *promptBackend) count(kind string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[kind]
}

type harness struct {
	orch     *Orchestrator
	browser  *fakeBrowser
	store    *storage.MemoryStore
	backend  *promptBackend
	shutdown *utils.Shutdown
	limiter  *utils.RateLimiter
}

func newHarness(targets *config.Targets) *harness {
	logger := utils.NewLoggerTo(io.Discard)
	shutdown := utils.NewShutdown()
	backend := &promptBackend{eligible: true}
	judge := classifier.New(backend, classifier.Config{
		Model:             "test",
		Criteria:          "FSBO only",
		ViabilityCriteria: "Short-term rental potential",
		PrivateKeywords:   config.DefaultPrivateKeywords,
		AgentKeywords:     config.DefaultAgentKeywords,
		SellerBackoff:     time.Millisecond,
	}, logger, shutdown)

	proto := scraper.NewProtocol(judge, scraper.Options{
		ConsentTimeout: time.Millisecond,
		ScrollDepth:    0,
	}, logger, shutdown)

	store := storage.NewMemoryStore()
	browser := newFakeBrowser()
	limiter := utils.NewRateLimiter(60, nil, logger, shutdown)

	orch := New(Options{
		Targets:              targets,
		ParallelURLs:         1,
		MaxRetries:           3,
		RetryBaseDelay:       time.Millisecond,
		CycleCooldown:        time.Millisecond,
		MinPrivateConfidence: 6,
	}, Deps{
		Browser:  browser,
		Registry: scraper.NewRegistry(proto),
		Judge:    judge,
		Store:    store,
		Side:     storage.NewSideChannel(store, nil, logger),
		Limiter:  limiter,
		Logger:   logger,
		Shutdown: shutdown,
	})
	return &harness{orch: orch, browser: browser, store: store, backend: backend, shutdown: shutdown, limiter: limiter}
}

func leadCount(s *storage.MemoryStore) int {
	leads, _ := s.ListLeadsByPriorityDesc(context.Background(), 0)
	return len(leads)
}
