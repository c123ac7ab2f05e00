package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lead-harvester/models"
	"lead-harvester/utils"
)

const atHomeCard = `<a href="/en/buy/apartment/luxembourg/id-123.html">` +
	`<span class="title">Bright flat</span><span class="price">€ 450.000</span>` +
	`<span class="location">Luxembourg-Belair</span></a>`

func TestConsentChainOrder(t *testing.T) {
	chain := DefaultConsentChain()
	names := make([]string, len(chain))
	for i, p := range chain {
		names[i] = p.Name
	}
	want := "reject-text,accept-text,reject-selector,accept-selector,frames"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("probe order = %s; want %s", got, want)
	}
	if !chain[4].Frames {
		t.Error("last probe should search frames")
	}
}

func TestConsentDismissStopsAtFirstHit(t *testing.T) {
	page := newFakePage("https://example.com")
	calls := 0
	page.evaluate = func(script string) (any, error) {
		calls++
		switch calls {
		case 1:
			if !strings.Contains(script, "Tout refuser") || strings.Contains(script, "Tout accepter") {
				t.Errorf("first probe should only carry reject texts")
			}
			return "", nil
		case 2:
			return "Accept all", nil
		}
		t.Errorf("unexpected probe %d", calls)
		return "", nil
	}

	probe, label, ok := DefaultConsentChain().Dismiss(page, 0, newTestProtocol(nil, nil).Logger)
	if !ok || probe != "accept-text" || label != "Accept all" {
		t.Errorf("Dismiss = %q %q %v", probe, label, ok)
	}
}

func TestConsentDismissNeverFails(t *testing.T) {
	page := newFakePage("https://example.com")
	page.evaluate = func(string) (any, error) { return nil, errors.New("frame detached") }

	if _, _, ok := DefaultConsentChain().Dismiss(page, 0, newTestProtocol(nil, nil).Logger); ok {
		t.Error("expected no dismissal")
	}
	if len(page.scripts) != 5 {
		t.Errorf("expected every probe to be tried, got %d", len(page.scripts))
	}
}

func TestSiteExtractorFallbackSelectorAndMapping(t *testing.T) {
	page := newFakePage("https://www.athome.lu/en/buy")
	page.elements["a[href*='/id-'][href$='.html']"] = []Element{
		NewElement("Bright flat\n€ 450.000\n2 chambres 80 m²", atHomeCard, nil),
	}
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, utils.NewShutdown()))

	ex := reg.ForURL("https://www.athome.lu/en/buy")
	if ex.Kind() != models.SourceAtHome {
		t.Fatalf("expected athome extractor, got %s", ex.Kind())
	}
	listings, err := ex.Scrape(context.Background(), page, "https://www.athome.lu/en/buy")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	l := listings[0]
	if l.URL != "https://www.athome.lu/en/buy/apartment/luxembourg/id-123.html" {
		t.Errorf("url = %q", l.URL)
	}
	if l.Title != "Bright flat" || l.Price != "€ 450.000" || l.Location != "Luxembourg-Belair" {
		t.Errorf("fields = %q / %q / %q", l.Title, l.Price, l.Location)
	}
	if l.Bedrooms != "2" || l.Size != "80 m²" {
		t.Errorf("numerics = %q / %q", l.Bedrooms, l.Size)
	}
	if l.Source != models.SourceAtHome {
		t.Errorf("source = %s", l.Source)
	}
	if l.IsPrivate != models.Unknown || l.PrivateConfidence != 0 || l.AgencyName != "" {
		t.Errorf("ambiguous keywords should leave the seller undecided: %v %d %q", l.IsPrivate, l.PrivateConfidence, l.AgencyName)
	}
	if len(page.gotos) != 1 {
		t.Errorf("athome already in en/buy should not re-navigate: %v", page.gotos)
	}
	if page.moves != 2 {
		t.Errorf("expected 2 scroll steps, got %d", page.moves)
	}
}

func TestScrapeRejectsInvalidURLWithoutNavigating(t *testing.T) {
	page := newFakePage("")
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, nil))

	listings, err := reg.ForURL("ftp://athome.lu/list").Scrape(context.Background(), page, "ftp://athome.lu/list")
	if err != nil || len(listings) != 0 {
		t.Errorf("expected empty result, got %d listings, err=%v", len(listings), err)
	}
	if len(page.gotos) != 0 {
		t.Error("invalid URL must not be navigated")
	}
}

func TestScrapeReturnsNavigationError(t *testing.T) {
	page := newFakePage("")
	page.gotoErr["https://www.immotop.lu/vente"] = errNav
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, nil))

	_, err := reg.ForURL("https://www.immotop.lu/vente").Scrape(context.Background(), page, "https://www.immotop.lu/vente")
	if !errors.Is(err, errNav) {
		t.Errorf("expected navigation error, got %v", err)
	}
}

func TestScrollStopsOnShutdown(t *testing.T) {
	shutdown := utils.NewShutdown()
	shutdown.Request()
	page := newFakePage("")
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, shutdown))

	if _, err := reg.ForURL("https://www.wortimmo.lu/fr").Scrape(context.Background(), page, "https://www.wortimmo.lu/fr"); err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if page.moves != 0 {
		t.Errorf("expected no scroll after shutdown, got %d moves", page.moves)
	}
}

func TestAtHomeHelpers(t *testing.T) {
	if got := atHomeLanguage("https://www.athome.lu/fr/acheter", "en"); got != "fr" {
		t.Errorf("language from path = %s", got)
	}
	if got := atHomeLanguage("https://www.athome.lu/", "DE"); got != "de" {
		t.Errorf("configured language = %s", got)
	}
	if got := atHomeSection("https://www.athome.lu/en/rent/flat", ""); got != "rent" {
		t.Errorf("section from path = %s", got)
	}
	if got := atHomeSection("https://www.athome.lu/", ""); got != "buy" {
		t.Errorf("default section = %s", got)
	}
	if got := atHomeLangPath("https://www.athome.lu/fr/acheter?x=1", "en"); got != "https://www.athome.lu/en/acheter?x=1" {
		t.Errorf("lang path = %s", got)
	}
}

func TestAtHomeSwitchesLanguageByPath(t *testing.T) {
	page := newFakePage("")
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, nil))

	if _, err := reg.ForKind(models.SourceAtHome).Scrape(context.Background(), page, "https://www.athome.lu/fr/vente"); err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	// fr is taken from the URL, so no language change; section "buy" is
	// not in the path and no link matches, so nothing else navigates.
	if len(page.gotos) != 1 {
		t.Errorf("gotos = %v", page.gotos)
	}
}

func TestFacebookCardMapping(t *testing.T) {
	el := NewElement("3 bedroom house\nLuxembourg 1234\n€ 650,000\nPrivate seller",
		`<div><a href="/marketplace/item/987/">x</a></div>`, nil)

	l := mapFacebookCard(el, facebookBase)
	if l.Title != "3 bedroom house" || l.Price != "€ 650,000" || l.Location != "Luxembourg 1234" {
		t.Errorf("fields = %q / %q / %q", l.Title, l.Price, l.Location)
	}
	if l.URL != "https://www.facebook.com/marketplace/item/987/" {
		t.Errorf("url = %q", l.URL)
	}
	if l.Bedrooms != "3" {
		t.Errorf("bedrooms = %q", l.Bedrooms)
	}
}

func TestScrapeGroupsBatch(t *testing.T) {
	page := newFakePage("")
	g1 := "https://www.facebook.com/groups/one"
	g2 := "https://www.facebook.com/groups/two"
	mp := "https://www.facebook.com/marketplace/luxembourg/propertyforsale"
	page.gotoErr[g1] = errNav
	page.elements[`[data-testid="marketplace_feed_card"]`] = []Element{
		NewElement("Flat for sale\n€ 300,000\nPrivate seller jane@example.com", `<div><a href="/marketplace/item/1/">x</a></div>`, nil),
	}
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, nil))

	listings, err := reg.Facebook().ScrapeGroups(context.Background(), page, []string{g1, g2}, mp)
	if err != nil {
		t.Fatalf("ScrapeGroups: %v", err)
	}
	if strings.Join(page.gotos, " ") != g1+" "+g2+" "+mp {
		t.Errorf("visit order = %v", page.gotos)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[0].Source != models.SourceFacebookGroup || listings[1].Source != models.SourceFacebookMarketplace {
		t.Errorf("sources = %s, %s", listings[0].Source, listings[1].Source)
	}
	if listings[1].Contact.Email != "jane@example.com" || listings[1].IsPrivate != models.Yes {
		t.Errorf("enrichment missing: %+v", listings[1])
	}
}

func TestScrapeGroupsKeepsGroupListingsWhenMarketplaceFails(t *testing.T) {
	page := newFakePage("")
	g1 := "https://www.facebook.com/groups/one"
	mp := "https://www.facebook.com/marketplace/luxembourg/propertyforsale"
	page.gotoErr[mp] = errNav
	page.elements[`[data-testid="marketplace_feed_card"]`] = []Element{
		NewElement("Villa\n€ 900,000\nAgence du Parc", `<div><a href="/groups/one/posts/7/">x</a></div>`, nil),
	}
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, nil))

	listings, err := reg.Facebook().ScrapeGroups(context.Background(), page, []string{g1}, mp)
	if err != nil {
		t.Fatalf("a failing marketplace feed should not fail the batch: %v", err)
	}
	if len(listings) != 1 || listings[0].Source != models.SourceFacebookGroup {
		t.Fatalf("group listings lost: %+v", listings)
	}
	if listings[0].IsPrivate != models.No || listings[0].AgencyName != "Agence Test" {
		t.Errorf("keyword verdict = %v %q", listings[0].IsPrivate, listings[0].AgencyName)
	}
	if len(page.gotos) != 2 {
		t.Errorf("visits = %v", page.gotos)
	}
}

func TestScrapeGroupsStopsOnDeadBrowser(t *testing.T) {
	page := newFakePage("")
	g1 := "https://www.facebook.com/groups/one"
	page.gotoErr[g1] = ErrBrowserUnavailable
	reg := NewRegistry(newTestProtocol(&fakeAnalyzer{}, nil))

	_, err := reg.Facebook().ScrapeGroups(context.Background(), page, []string{g1, "https://www.facebook.com/groups/two"}, "")
	if !IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if len(page.gotos) != 1 {
		t.Errorf("batch should stop after a dead browser: %v", page.gotos)
	}
}

func TestGenericExtractorLowConfidenceUsesScannedContact(t *testing.T) {
	page := newFakePage("")
	page.elements["[data-listing], article"] = []Element{
		NewElement("Cosy studio, call 621 123 456", `<article><h2>Cosy studio</h2></article>`, nil),
	}
	a := &fakeAnalyzer{structured: models.StructuredListing{
		Title: "Cosy studio", Price: "€ 900", Contact: models.Contact{Email: "guess@example.com"},
		IsPrivate: true, Confidence: 3,
	}}
	reg := NewRegistry(newTestProtocol(a, nil))

	ex := reg.ForURL("https://example.com/ads")
	if reg.Dedicated(ex.Kind()) {
		t.Fatal("example.com should use the generic extractor")
	}
	listings, err := ex.Scrape(context.Background(), page, "https://example.com/ads")
	if err != nil || len(listings) != 1 {
		t.Fatalf("Scrape = %d listings, err=%v", len(listings), err)
	}
	l := listings[0]
	if l.Contact.Phone != "+352621123456" || l.Contact.Email != "" {
		t.Errorf("contact = %+v", l.Contact)
	}
	if l.IsPrivate != models.Yes || l.PrivateConfidence != 3 || l.Price != "€ 900" {
		t.Errorf("structured fields not applied: %+v", l)
	}
	if l.URL != "https://example.com/ads" || l.Source != models.SourceGeneric {
		t.Errorf("url/source = %q %s", l.URL, l.Source)
	}
}
