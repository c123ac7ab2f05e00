package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"lead-harvester/models"
	"lead-harvester/utils"
)

// Analyzer supplies the offline judgements an extractor merges into each
// record. Model-backed seller and contact calls wait for triage, after dedup
// and eligibility. It is satisfied by *classifier.Classifier.
type Analyzer interface {
	// KeywordSeller reports decided=false when the keywords are ambiguous.
	KeywordSeller(text string) (models.SellerJudgement, bool)
	// ScanContact is pattern matching only.
	ScanContact(text string) models.Contact
	ExtractStructured(ctx context.Context, text string) (models.StructuredListing, error)
}

// Options tunes the shared navigation protocol.
type Options struct {
	NavTimeout     time.Duration
	ConsentTimeout time.Duration
	ScrollDepth    int
	ScrollDelayMin time.Duration
	ScrollDelayMax time.Duration
	// SettleDelay is the pause after navigation and consent clicks. Zero
	// disables it.
	SettleDelay time.Duration
	// Selector is the configured listing selector for pages without a
	// dedicated extractor.
	Selector string

	AtHomeLang    string
	AtHomeSection string
}

func (o Options) withDefaults() Options {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 45 * time.Second
	}
	if o.ConsentTimeout <= 0 {
		o.ConsentTimeout = 350 * time.Millisecond
	}
	if o.ScrollDepth < 0 {
		o.ScrollDepth = 0
	}
	if o.ScrollDelayMax < o.ScrollDelayMin {
		o.ScrollDelayMax = o.ScrollDelayMin
	}
	return o
}

// Extractor turns one listing-page URL into canonical listings. Expected
// failures (invalid URL, nothing found) yield an empty slice and nil error;
// only navigation and browser failures are returned.
type Extractor interface {
	Kind() models.SourceKind
	Scrape(ctx context.Context, page Page, rawURL string) ([]*models.Listing, error)
}

// Protocol carries what every extractor shares: the analyzer, pacing,
// logging and the shutdown token.
type Protocol struct {
	Analyzer Analyzer
	Logger   *utils.Logger
	Shutdown *utils.Shutdown
	Opts     Options

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewProtocol builds the shared protocol.
func NewProtocol(analyzer Analyzer, opts Options, logger *utils.Logger, shutdown *utils.Shutdown) *Protocol {
	return &Protocol{
		Analyzer: analyzer,
		Logger:   logger,
		Shutdown: shutdown,
		Opts:     opts.withDefaults(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

func (p *Protocol) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Intn(n)
}

// jitter returns a random duration in [lo, hi].
func (p *Protocol) jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + time.Duration(p.rnd.Int63n(int64(hi-lo)+1))
}

// pause sleeps for a random duration in [lo, hi]. It reports false when the
// sleep was cut short by shutdown.
func (p *Protocol) pause(lo, hi time.Duration) bool {
	return p.Shutdown.Sleep(p.jitter(lo, hi)) == nil
}

// settle waits SettleDelay plus up to 60% jitter.
func (p *Protocol) settle() bool {
	d := p.Opts.SettleDelay
	return p.pause(d, d+d*3/5)
}

// open validates and navigates. ok is false for a rejected URL.
func (p *Protocol) open(page Page, rawURL, tag string) (ok bool, err error) {
	if _, err := ValidateURL(rawURL); err != nil {
		p.Logger.Warn("[%s] Skipping URL: %v", tag, err)
		return false, nil
	}
	if err := page.Goto(rawURL, p.Opts.NavTimeout); err != nil {
		return false, err
	}
	return true, nil
}

// dismissConsent runs the chain and never fails.
func (p *Protocol) dismissConsent(page Page, chain ConsentChain, tag string) {
	if chain == nil {
		chain = DefaultConsentChain()
	}
	if probe, label, ok := chain.Dismiss(page, p.Opts.ConsentTimeout, p.Logger); ok {
		p.Logger.Debug("[%s] Consent dismissed via %s (%s)", tag, probe, label)
		p.settle()
		return
	}
	p.Logger.Debug("[%s] No consent banner dismissed", tag)
}

const scrollJS = `window.scrollTo(0, document.body.scrollHeight); true`

// scroll performs the bounded lazy-load scroll with random pointer moves and
// delays. It stops early on shutdown.
func (p *Protocol) scroll(page Page, tag string) {
	for i := 0; i < p.Opts.ScrollDepth; i++ {
		if p.Shutdown.Requested() {
			return
		}
		if err := page.MouseMove(float64(100+p.intn(600)), float64(100+p.intn(400))); err != nil {
			p.Logger.Debug("[%s] pointer move: %v", tag, err)
		}
		if err := page.Evaluate(scrollJS, nil); err != nil {
			p.Logger.Debug("[%s] scroll step %d: %v", tag, i+1, err)
		}
		if !p.pause(p.Opts.ScrollDelayMin, p.Opts.ScrollDelayMax) {
			return
		}
	}
}

// collect tries the primary selector then each fallback until one matches.
func (p *Protocol) collect(page Page, primary string, fallbacks []string, tag string) []Element {
	tried := utils.NewStringSet()
	for _, sel := range append([]string{primary}, fallbacks...) {
		if sel == "" || !tried.Add(sel) {
			continue
		}
		els, err := page.QuerySelectorAll(sel)
		if err != nil {
			p.Logger.Debug("[%s] selector %q: %v", tag, sel, err)
			continue
		}
		if len(els) > 0 {
			p.Logger.Info("[%s] Collected %d elements with selector %.50s", tag, len(els), sel)
			return els
		}
	}
	return nil
}

// enrich applies the keyword seller verdict and scanned contact details,
// then stamps the source. An ambiguous seller stays Unknown. Listings keep
// whatever contact the mapper already found.
func (p *Protocol) enrich(l *models.Listing, kind models.SourceKind, pageURL string) {
	if l.URL == "" {
		l.URL = pageURL
	}
	l.Source = kind
	l.ScrapedAt = p.now()
	if p.Analyzer == nil {
		return
	}
	text := l.Text()
	if seller, ok := p.Analyzer.KeywordSeller(text); ok {
		l.IsPrivate = models.TristateOf(seller.IsPrivate)
		l.PrivateConfidence = seller.Confidence
		if l.AgencyName == "" {
			l.AgencyName = seller.AgencyName
		}
	}
	if l.Contact.Empty() {
		l.Contact = p.Analyzer.ScanContact(text)
	}
}

// SourceDef is the per-source variation: selectors, link resolution and an
// optional pre-navigation step. Everything else is the shared protocol.
type SourceDef struct {
	Kind      models.SourceKind
	Selector  string
	Fallbacks []string
	// WaitFor is polled briefly after scrolling; missing it is not an error.
	WaitFor string
	BaseURL string
	Fields  FieldSelectors
	// KeepLink picks the listing link among the anchors of a card.
	KeepLink     func(href string) bool
	ConsentTexts []string
	ConsentHooks []string
	PreNavigate  func(p *Protocol, page Page, rawURL string)
	MapElement   func(el Element, base string) *models.Listing
	// Configurable lets Options.Selector replace Selector.
	Configurable bool
}

type siteExtractor struct {
	proto   *Protocol
	def     SourceDef
	consent ConsentChain
}

func newSiteExtractor(proto *Protocol, def SourceDef) *siteExtractor {
	if def.Fields == (FieldSelectors{}) {
		def.Fields = DefaultFields
	}
	return &siteExtractor{
		proto:   proto,
		def:     def,
		consent: NewConsentChain(def.ConsentTexts, def.ConsentHooks),
	}
}

func (s *siteExtractor) Kind() models.SourceKind { return s.def.Kind }

func (s *siteExtractor) Scrape(ctx context.Context, page Page, rawURL string) ([]*models.Listing, error) {
	return s.scrapeAs(ctx, page, rawURL, s.def.Kind)
}

func (s *siteExtractor) scrapeAs(ctx context.Context, page Page, rawURL string, kind models.SourceKind) ([]*models.Listing, error) {
	tag := string(kind)
	ok, err := s.proto.open(page, rawURL, tag)
	if err != nil || !ok {
		return nil, err
	}
	s.proto.settle()
	s.proto.dismissConsent(page, s.consent, tag)
	if s.def.PreNavigate != nil {
		s.def.PreNavigate(s.proto, page, rawURL)
	}
	s.proto.scroll(page, tag)
	if s.def.WaitFor != "" {
		waitForSelector(page, s.def.WaitFor, 3*time.Second)
	}

	primary := s.def.Selector
	if s.proto.Opts.Selector != "" && s.def.Configurable {
		primary = s.proto.Opts.Selector
	}
	elements := s.proto.collect(page, primary, s.def.Fallbacks, tag)

	base := s.def.BaseURL
	if base == "" {
		base = pageBase(page, rawURL)
	}
	listings := make([]*models.Listing, 0, len(elements))
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return listings, err
		}
		var l *models.Listing
		if s.def.MapElement != nil {
			l = s.def.MapElement(el, base)
		} else {
			l = mapCard(el, base, s.def.Fields, s.def.KeepLink)
		}
		if l == nil {
			continue
		}
		s.proto.enrich(l, kind, rawURL)
		listings = append(listings, l)
	}
	return listings, nil
}

// mapCard is the default element mapper: goquery fields from the card HTML,
// regex numerics and price from its rendered text.
func mapCard(el Element, base string, fields FieldSelectors, keep func(string) bool) *models.Listing {
	link, f := cardFields(el, fields, keep)
	text := el.Text()
	l := &models.Listing{
		URL:         ResolveURL(base, link),
		Title:       f.Title,
		Price:       f.Price,
		Location:    f.Location,
		Description: f.Description,
	}
	if l.Title == "" {
		l.Title = truncateRunes(firstLine(text), 200)
	}
	if l.Price == "" {
		l.Price = FindPrice(text)
	}
	FillNumerics(text, l)
	return l
}

const waitForJS = `(async function(sel, timeout) {
	var deadline = Date.now() + timeout;
	while (Date.now() < deadline) {
		if (document.querySelector(sel)) return true;
		await new Promise(function(r) { setTimeout(r, 100); });
	}
	return false;
})(%s, %d)`

func waitForSelector(page Page, selector string, timeout time.Duration) bool {
	arg, _ := json.Marshal(selector)
	var found bool
	if err := page.Evaluate(fmt.Sprintf(waitForJS, arg, timeout.Milliseconds()), &found); err != nil {
		return false
	}
	return found
}

// pageBase prefers the document's current URL for relative link resolution.
func pageBase(page Page, fallback string) string {
	if u := page.URL(); u != "" {
		return u
	}
	return fallback
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// IsFatal reports whether err means the browser itself is gone.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBrowserUnavailable)
}
