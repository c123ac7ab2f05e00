package pipeline

import (
	"sort"

	"lead-harvester/config"
	"lead-harvester/utils"
)

// Targets is the resolved work list for one cycle.
type Targets struct {
	// URLs are scraped one per dispatch.
	URLs []string
	// Groups are scraped in one browser session, followed by Marketplace
	// when it is set.
	Groups      []string
	Marketplace string
}

// Empty reports whether there is nothing to scrape.
func (t Targets) Empty() bool {
	return len(t.URLs) == 0 && len(t.Groups) == 0
}

// Count is the number of pages the cycle will visit.
func (t Targets) Count() int {
	n := len(t.URLs) + len(t.Groups)
	if len(t.Groups) > 0 && t.Marketplace != "" {
		n++
	}
	return n
}

// BuildTargets resolves start URLs, per-country sites and Facebook feeds
// into a deduplicated, order-preserving list. With group URLs configured,
// the first marketplace feed rides along with the group batch.
func BuildTargets(t *config.Targets) Targets {
	if t == nil {
		return Targets{}
	}
	countries := t.Countries
	if len(countries) == 0 {
		for c := range t.SitesByCountry {
			countries = append(countries, c)
		}
		sort.Strings(countries)
	}

	urls := append([]string{}, t.StartURLs...)
	for _, c := range countries {
		urls = append(urls, t.SitesByCountry[c]...)
	}

	var feeds []string
	if t.Facebook.MarketplaceEnabled {
		for _, c := range countries {
			feeds = append(feeds, t.Facebook.MarketplaceURL(c))
		}
	}
	feeds = utils.Unique(feeds)

	var out Targets
	if groups := utils.Unique(t.Facebook.GroupURLs(countries)); len(groups) > 0 {
		out.Groups = groups
		if len(feeds) > 0 {
			out.Marketplace = feeds[0]
			feeds = feeds[1:]
		}
	}
	out.URLs = utils.Unique(append(urls, feeds...))
	return out
}
