package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Targets is the YAML-described set of sources and triage criteria.
type Targets struct {
	Countries       []string            `yaml:"countries"`
	StartURLs       []string            `yaml:"start_urls"`
	SitesByCountry  map[string][]string `yaml:"sites_by_country"`
	Facebook        FacebookTargets     `yaml:"facebook"`
	AtHome          AtHomeOptions       `yaml:"athome"`
	ListingSelector string              `yaml:"listing_selector"`

	Criteria          string   `yaml:"criteria"`
	ViabilityCriteria string   `yaml:"viability_criteria"`
	PrivateKeywords   []string `yaml:"private_keywords"`
	AgentKeywords     []string `yaml:"agent_keywords"`
}

// FacebookTargets configures marketplace feeds and group lists.
type FacebookTargets struct {
	MarketplaceEnabled     bool                `yaml:"marketplace_enabled"`
	MarketplaceURLTemplate string              `yaml:"marketplace_url_template"`
	GroupsByCountry        map[string][]string `yaml:"groups_by_country"`
}

// AtHomeOptions drives the atHome pre-navigation steps.
type AtHomeOptions struct {
	Lang    string `yaml:"lang"`
	Section string `yaml:"section"`
}

// DefaultPrivateKeywords mark a listing as posted by its owner.
var DefaultPrivateKeywords = []string{
	"private seller", "owner direct", "fsbo", "for sale by owner", "no agency", "no agent",
}

// DefaultAgentKeywords mark a listing as posted through an agency.
var DefaultAgentKeywords = []string{
	"agency", "broker", "realtor", "real estate agent", "estate agent", "listing agent", "commission",
}

// LoadTargets decodes the YAML targets file at path.
func LoadTargets(path string) (*Targets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	t := &Targets{}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("parse targets %q: %w", path, err)
	}
	t.applyDefaults()
	return t, nil
}

func (t *Targets) applyDefaults() {
	if len(t.PrivateKeywords) == 0 {
		t.PrivateKeywords = DefaultPrivateKeywords
	}
	if len(t.AgentKeywords) == 0 {
		t.AgentKeywords = DefaultAgentKeywords
	}
	if t.ListingSelector == "" {
		t.ListingSelector = "[data-listing], article"
	}
	if t.AtHome.Lang == "" {
		t.AtHome.Lang = "en"
	}
}

// MarketplaceURL renders the marketplace template for one country.
func (f FacebookTargets) MarketplaceURL(country string) string {
	if f.MarketplaceURLTemplate == "" {
		return ""
	}
	slug := strings.ToLower(strings.ReplaceAll(country, " ", ""))
	return strings.ReplaceAll(f.MarketplaceURLTemplate, "{country}", slug)
}

// GroupURLs returns the configured group URLs for the listed countries.
func (f FacebookTargets) GroupURLs(countries []string) []string {
	var out []string
	for _, c := range countries {
		out = append(out, f.GroupsByCountry[c]...)
	}
	return out
}
