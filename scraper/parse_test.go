package scraper

import (
	"errors"
	"testing"

	"lead-harvester/models"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"https://www.athome.lu/en/buy", true},
		{"http://localhost:8080/listings", true},
		{"https://bücher.example/list", true},
		{"ftp://example.com/file", false},
		{"javascript:alert(1)", false},
		{"https:///nohost", false},
		{"https://intranet/list", false},
		{"", false},
	}
	for _, tt := range tests {
		_, err := ValidateURL(tt.raw)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateURL(%q) err=%v, want ok=%v", tt.raw, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidURL) {
			t.Errorf("ValidateURL(%q) error %v is not ErrInvalidURL", tt.raw, err)
		}
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"https://www.athome.lu", "/en/buy/id-1.html", "https://www.athome.lu/en/buy/id-1.html"},
		{"https://example.com/list/", "item/2", "https://example.com/list/item/2"},
		{"https://example.com", "https://other.com/x", "https://other.com/x"},
		{"https://example.com", "#top", ""},
		{"https://example.com", "javascript:void(0)", ""},
		{"not a base", "/x", ""},
	}
	for _, tt := range tests {
		if got := ResolveURL(tt.base, tt.href); got != tt.want {
			t.Errorf("ResolveURL(%q, %q) = %q; want %q", tt.base, tt.href, got, tt.want)
		}
	}
}

func TestFillNumerics(t *testing.T) {
	tests := []struct {
		text                string
		beds, baths, size   string
	}{
		{"3 bedroom apartment, 2 bathrooms, 95 m²", "3", "2", "95 m²"},
		{"Maison 4 chambres, 1 salle de bain, 120,5 m2", "4", "1", "120.5 m²"},
		{"2 beds 1 bath 850 sq ft", "2", "1", "850 sqft"},
		{"Studio in the centre", "", "", ""},
	}
	for _, tt := range tests {
		l := &models.Listing{}
		FillNumerics(tt.text, l)
		if l.Bedrooms != tt.beds || l.Bathrooms != tt.baths || l.Size != tt.size {
			t.Errorf("FillNumerics(%q) = %q/%q/%q; want %q/%q/%q",
				tt.text, l.Bedrooms, l.Bathrooms, l.Size, tt.beds, tt.baths, tt.size)
		}
	}
}

func TestFillNumericsKeepsExisting(t *testing.T) {
	l := &models.Listing{Bedrooms: "5"}
	FillNumerics("2 bedrooms", l)
	if l.Bedrooms != "5" {
		t.Errorf("existing bedrooms overwritten: %q", l.Bedrooms)
	}
}

func TestFindPrice(t *testing.T) {
	tests := []struct{ text, want string }{
		{"Nice flat € 450.000 negotiable", "€ 450.000"},
		{"Asking 1 250 000 EUR", "1 250 000 EUR"},
		{"Contact jane@example.com, $450,000", "$450,000"},
		{"price on request", ""},
	}
	for _, tt := range tests {
		if got := FindPrice(tt.text); got != tt.want {
			t.Errorf("FindPrice(%q) = %q; want %q", tt.text, got, tt.want)
		}
	}
}

func TestInferSource(t *testing.T) {
	tests := []struct {
		url  string
		want models.SourceKind
	}{
		{"https://www.athome.lu/en/buy", models.SourceAtHome},
		{"https://www.immotop.lu/vente", models.SourceImmotop},
		{"https://nextimmo.lu/en/search", models.SourceNextimmo},
		{"https://www.wortimmo.lu/fr/vente", models.SourceWortimmo},
		{"https://www.rightmove.co.uk/property-for-sale", models.SourceRightmove},
		{"https://www.facebook.com/marketplace/luxembourg/propertyforsale", models.SourceFacebookMarketplace},
		{"https://www.facebook.com/groups/12345", models.SourceFacebookGroup},
		{"https://example.com/listings", models.SourceGeneric},
	}
	for _, tt := range tests {
		if got := InferSource(tt.url); got != tt.want {
			t.Errorf("InferSource(%q) = %s; want %s", tt.url, got, tt.want)
		}
	}
}
