package scraper

import (
	"strings"

	"lead-harvester/models"
)

// InferSource maps a URL shape onto the closed set of source kinds.
// Unrecognised URLs are generic.
func InferSource(rawURL string) models.SourceKind {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, "facebook.com/marketplace"), strings.Contains(u, "fb.com/marketplace"):
		return models.SourceFacebookMarketplace
	case strings.Contains(u, "facebook.com/groups"), strings.Contains(u, "fb.com/groups"):
		return models.SourceFacebookGroup
	case strings.Contains(u, "nextimmo.lu"):
		return models.SourceNextimmo
	case strings.Contains(u, "wortimmo.lu"):
		return models.SourceWortimmo
	case strings.Contains(u, "athome"), strings.Contains(u, "at-home"):
		return models.SourceAtHome
	case strings.Contains(u, "immotop"):
		return models.SourceImmotop
	case strings.Contains(u, "rightmove"):
		return models.SourceRightmove
	}
	return models.SourceGeneric
}

// Registry holds one extractor per source kind.
type Registry struct {
	generic  *GenericExtractor
	facebook *FacebookExtractor
	sites    map[models.SourceKind]Extractor
}

// NewRegistry builds every extractor over the shared protocol.
func NewRegistry(proto *Protocol) *Registry {
	r := &Registry{
		generic:  NewGenericExtractor(proto),
		facebook: NewFacebookExtractor(proto),
		sites:    make(map[models.SourceKind]Extractor),
	}
	for _, def := range []SourceDef{
		atHomeSource(),
		immotopSource(),
		nextimmoSource(),
		wortimmoSource(),
		rightmoveSource(),
	} {
		r.sites[def.Kind] = newSiteExtractor(proto, def)
	}
	return r
}

// ForURL returns the dedicated extractor for rawURL, or the generic one.
func (r *Registry) ForURL(rawURL string) Extractor {
	return r.ForKind(InferSource(rawURL))
}

// ForKind returns the extractor for kind, or the generic one.
func (r *Registry) ForKind(kind models.SourceKind) Extractor {
	switch kind {
	case models.SourceFacebookMarketplace, models.SourceFacebookGroup:
		return r.facebook
	case models.SourceGeneric:
		return r.generic
	}
	if e, ok := r.sites[kind]; ok {
		return e
	}
	return r.generic
}

// Generic is the navigate-scroll-collect fallback.
func (r *Registry) Generic() *GenericExtractor { return r.generic }

// Facebook exposes the groups batch mode.
func (r *Registry) Facebook() *FacebookExtractor { return r.facebook }

// Dedicated reports whether kind has its own extractor.
func (r *Registry) Dedicated(kind models.SourceKind) bool {
	return r.ForKind(kind) != Extractor(r.generic)
}

func hrefContains(parts ...string) func(string) bool {
	return func(href string) bool {
		for _, p := range parts {
			if !strings.Contains(href, p) {
				return false
			}
		}
		return true
	}
}

func immotopSource() SourceDef {
	return SourceDef{
		Kind:     models.SourceImmotop,
		Selector: ".property-item",
		Fallbacks: []string{
			"a[href*='/annonces/']",
			"[class*='card'] a[href*='/annonces/']",
			"article a[href*='/annonces/']",
		},
		WaitFor: "a[href*='/annonces/']",
		BaseURL: "https://www.immotop.lu",
		Fields: FieldSelectors{
			Title:       ".title, [class*='title'], .property-title",
			Price:       ".price, [class*='price']",
			Location:    ".location, [class*='location'], .address",
			Description: ".description, [class*='description']",
		},
		KeepLink: hrefContains("/annonces/"),
	}
}

func nextimmoSource() SourceDef {
	return SourceDef{
		Kind:      models.SourceNextimmo,
		Selector:  "[class*='listing'], [class*='card'], article a[href*='/details/']",
		Fallbacks: []string{"a[href*='/en/details/']", "a[href*='/details/']"},
		WaitFor:   "a[href*='/en/details/'], a[href*='/details/']",
		BaseURL:   "https://nextimmo.lu",
		Fields: FieldSelectors{
			Title:       "h2, h3, .title, [class*='title'], [class*='Title']",
			Price:       ".price, [class*='price'], [class*='Price']",
			Location:    ".location, [class*='location'], [class*='address'], address",
			Description: ".description, [class*='description']",
		},
		KeepLink: hrefContains("/details/"),
	}
}

func wortimmoSource() SourceDef {
	return SourceDef{
		Kind:      models.SourceWortimmo,
		Selector:  "a[href*='-id_'], a[href*='/vente-'], a[href*='/location/']",
		Fallbacks: []string{"[class*='card'] a[href*='-id_']", "[class*='listing'] a[href*='-id_']"},
		WaitFor:   "a[href*='-id_']",
		BaseURL:   "https://www.wortimmo.lu",
		KeepLink:  hrefContains("-id_"),
	}
}

func rightmoveSource() SourceDef {
	return SourceDef{
		Kind:     models.SourceRightmove,
		Selector: "[data-testid='propertyCard'], .l-searchResult, article[class*='PropertyCard']",
		BaseURL:  "https://www.rightmove.co.uk",
		Fields: FieldSelectors{
			Title:       "h2, .propertyCard-title, [data-testid='propertyCardTitle'], [class*='title']",
			Price:       ".propertyCard-price, [data-testid='propertyCardPrice'], [class*='price']",
			Location:    "address, [data-testid='address'], .propertyCard-address, [class*='address']",
			Description: ".propertyCard-description, [class*='description']",
		},
		KeepLink: hrefContains("/properties/"),
	}
}
