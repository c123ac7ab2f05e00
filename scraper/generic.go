package scraper

import (
	"context"

	"lead-harvester/models"
)

// structuredMinConfidence is the structured-extraction confidence below
// which pattern-matched contacts replace the model's.
const structuredMinConfidence = 5

// GenericExtractor handles pages without a dedicated extractor: the shared
// navigate-consent-scroll-collect protocol with the configured selector, then
// one structured extraction call per element.
type GenericExtractor struct {
	proto   *Protocol
	consent ConsentChain
}

// NewGenericExtractor builds the fallback extractor.
func NewGenericExtractor(proto *Protocol) *GenericExtractor {
	return &GenericExtractor{proto: proto, consent: DefaultConsentChain()}
}

func (g *GenericExtractor) Kind() models.SourceKind { return models.SourceGeneric }

func (g *GenericExtractor) Scrape(ctx context.Context, page Page, rawURL string) ([]*models.Listing, error) {
	const tag = "generic"
	p := g.proto
	ok, err := p.open(page, rawURL, tag)
	if err != nil || !ok {
		return nil, err
	}
	p.settle()
	p.dismissConsent(page, g.consent, tag)
	p.scroll(page, tag)

	primary := p.Opts.Selector
	if primary == "" {
		primary = "[data-listing], article"
	}
	elements := p.collect(page, primary, []string{"[data-listing]", "article"}, tag)
	base := pageBase(page, rawURL)

	listings := make([]*models.Listing, 0, len(elements))
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return listings, err
		}
		l := g.mapElement(ctx, el, base)
		if l == nil {
			continue
		}
		if l.URL == "" {
			l.URL = rawURL
		}
		l.Source = models.SourceGeneric
		l.ScrapedAt = p.now()
		listings = append(listings, l)
	}
	return listings, nil
}

func (g *GenericExtractor) mapElement(ctx context.Context, el Element, base string) *models.Listing {
	l := mapCard(el, base, DefaultFields, nil)
	text := el.Text()
	if text == "" {
		text = l.Text()
	}
	if text == "" {
		return nil
	}
	if l.Description == "" {
		l.Description = text
	}
	a := g.proto.Analyzer
	if a == nil {
		return l
	}

	s, err := a.ExtractStructured(ctx, text)
	if err != nil {
		g.proto.Logger.Debug("[generic] structured extraction failed: %v", err)
		if seller, ok := a.KeywordSeller(l.Text()); ok {
			l.IsPrivate = models.TristateOf(seller.IsPrivate)
			l.PrivateConfidence = seller.Confidence
			l.AgencyName = seller.AgencyName
		}
		l.Contact = a.ScanContact(text)
		return l
	}
	if s.Title != "" {
		l.Title = s.Title
	}
	if s.Price != "" {
		l.Price = s.Price
	}
	if s.Location != "" {
		l.Location = s.Location
	}
	l.IsPrivate = models.TristateOf(s.IsPrivate)
	l.PrivateConfidence = s.Confidence
	l.Contact = s.Contact
	if s.Confidence < structuredMinConfidence {
		if scanned := a.ScanContact(text); !scanned.Empty() {
			l.Contact = scanned
		}
	}
	return l
}
