package scraper

import (
	"context"
	"strings"
	"unicode"

	"lead-harvester/models"
)

const facebookBase = "https://www.facebook.com"

// FacebookExtractor covers marketplace feeds and group feeds. Cards have no
// stable field markup, so fields are read line by line from rendered text.
type FacebookExtractor struct {
	site *siteExtractor
}

// NewFacebookExtractor builds the marketplace/groups extractor.
func NewFacebookExtractor(proto *Protocol) *FacebookExtractor {
	return &FacebookExtractor{site: newSiteExtractor(proto, SourceDef{
		Kind:         models.SourceFacebookMarketplace,
		Selector:     `[data-testid="marketplace_feed_card"]`,
		Fallbacks:    []string{`a[href*="/marketplace/item/"]`, `[role="article"]`},
		BaseURL:      facebookBase,
		ConsentTexts: []string{"Decline optional cookies", "Only allow essential cookies"},
		MapElement:   mapFacebookCard,
	})}
}

func (f *FacebookExtractor) Kind() models.SourceKind { return models.SourceFacebookMarketplace }

// Scrape handles one marketplace or group URL; the source tag follows the URL.
func (f *FacebookExtractor) Scrape(ctx context.Context, page Page, rawURL string) ([]*models.Listing, error) {
	kind := models.SourceFacebookMarketplace
	if InferSource(rawURL) == models.SourceFacebookGroup {
		kind = models.SourceFacebookGroup
	}
	return f.site.scrapeAs(ctx, page, rawURL, kind)
}

// ScrapeGroups visits every group URL and then, when set, one marketplace
// feed, all on the same page. A failing group or feed is logged and skipped
// so it costs only its own listings; a dead browser stops the batch.
// Shutdown is honoured between URLs.
func (f *FacebookExtractor) ScrapeGroups(ctx context.Context, page Page, groupURLs []string, marketplaceURL string) ([]*models.Listing, error) {
	proto := f.site.proto
	var all []*models.Listing
	for _, g := range groupURLs {
		if proto.Shutdown.Requested() {
			return all, nil
		}
		listings, err := f.site.scrapeAs(ctx, page, g, models.SourceFacebookGroup)
		if err != nil {
			if IsFatal(err) {
				return all, err
			}
			proto.Logger.Warn("[facebook] group scrape %s: %v", g, err)
			continue
		}
		all = append(all, listings...)
	}
	if marketplaceURL == "" || proto.Shutdown.Requested() {
		return all, nil
	}
	listings, err := f.site.scrapeAs(ctx, page, marketplaceURL, models.SourceFacebookMarketplace)
	if err != nil {
		if IsFatal(err) {
			return all, err
		}
		proto.Logger.Warn("[facebook] marketplace scrape %s: %v", marketplaceURL, err)
		return all, nil
	}
	return append(all, listings...), nil
}

// mapFacebookCard: first line is the title, the first currency line is the
// price, and a short line with digits before it is the location.
func mapFacebookCard(el Element, base string) *models.Listing {
	text := el.Text()
	l := &models.Listing{Description: strings.TrimSpace(text)}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		l.Title = lines[0]
	}
	for _, line := range lines[min(1, len(lines)):] {
		if strings.ContainsAny(line, "€$£") {
			l.Price = line
			break
		}
		if l.Location == "" && len(line) < 50 && strings.IndexFunc(line, unicode.IsDigit) >= 0 {
			l.Location = line
		}
	}

	link, _ := cardFields(el, FieldSelectors{}, nil)
	l.URL = ResolveURL(base, link)
	FillNumerics(text, l)
	return l
}
