package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/idna"

	"lead-harvester/models"
	"lead-harvester/services"
)

// ErrInvalidURL is returned for URLs rejected before any navigation.
var ErrInvalidURL = errors.New("invalid url")

var (
	bedroomsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bedrooms?|beds?|chambres?|chb)\b`)
	bathroomsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:bathrooms?|baths?|salles? de bains?)\b`)
	sizeM2Re    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:m²|m2\b|sqm\b)`)
	sizeSqftRe  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:sq\.?\s*ft|sqft)\b`)
	priceRe     = regexp.MustCompile(`(?:[€$£]\s*\d[\d.,\s]*\d|\d[\d.,\s]*\d\s*(?:€|EUR|\$|£|GBP|USD))`)
)

// ValidateURL accepts only absolute http(s) URLs with a well-formed host.
// The host is normalised through IDNA lookup rules.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %v", ErrInvalidURL, host, err)
	}
	if !strings.Contains(ascii, ".") && ascii != "localhost" {
		return nil, fmt.Errorf("%w: host %q has no domain", ErrInvalidURL, host)
	}
	return u, nil
}

// Domain returns the lower-cased host of rawURL, or "unknown".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ResolveURL makes href absolute against base. Empty href yields "".
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// FillNumerics sets bedrooms, bathrooms and size from rendered text when the
// listing does not carry them yet.
func FillNumerics(text string, l *models.Listing) {
	if l.Bedrooms == "" {
		if m := bedroomsRe.FindStringSubmatch(text); m != nil {
			l.Bedrooms = m[1]
		}
	}
	if l.Bathrooms == "" {
		if m := bathroomsRe.FindStringSubmatch(text); m != nil {
			l.Bathrooms = m[1]
		}
	}
	if l.Size == "" {
		if m := sizeM2Re.FindStringSubmatch(text); m != nil {
			l.Size = strings.ReplaceAll(m[1], ",", ".") + " m²"
		} else if m := sizeSqftRe.FindStringSubmatch(text); m != nil {
			l.Size = strings.ReplaceAll(m[1], ",", ".") + " sqft"
		}
	}
}

// FindPrice returns the first currency-marked amount in text.
func FindPrice(text string) string {
	return strings.TrimSpace(priceRe.FindString(text))
}

// FieldSelectors are the CSS hooks used to pull fields out of a listing card.
type FieldSelectors struct {
	Title       string
	Price       string
	Location    string
	Description string
}

// DefaultFields fit most classified-ad card markup.
var DefaultFields = FieldSelectors{
	Title:       ".title, [class*='title'], h2, h3",
	Price:       ".price, [class*='price']",
	Location:    ".location, [class*='location'], [class*='address']",
	Description: ".description, [class*='description'], p",
}

// cardFields parses an element's outer HTML with goquery and returns the
// first link accepted by keep (or the first link when keep is nil) along
// with the text fields.
func cardFields(el Element, sel FieldSelectors, keep func(string) bool) (link string, f FieldSelectors) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(el.HTML()))
	if err != nil {
		return el.Attribute("href"), FieldSelectors{}
	}

	first := func(selector string) string {
		if selector == "" {
			return ""
		}
		return services.NormaliseText(doc.Find(selector).First().Text())
	}
	f.Title = first(sel.Title)
	f.Price = first(sel.Price)
	f.Location = first(sel.Location)
	f.Description = first(sel.Description)

	var fallback string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if fallback == "" {
			fallback = href
		}
		if keep == nil || keep(href) {
			link = href
			return false
		}
		return true
	})
	if link == "" {
		if own := el.Attribute("href"); own != "" && (keep == nil || keep(own)) {
			link = own
		} else {
			link = fallback
		}
	}
	return link, f
}
