package scraper

import (
	"net/url"
	"strings"
	"time"

	"lead-harvester/models"
)

const atHomeBase = "https://www.athome.lu"

var atHomeLangLabels = map[string]string{"en": "English", "fr": "Français", "de": "Deutsch"}

func atHomeSource() SourceDef {
	return SourceDef{
		Kind:     models.SourceAtHome,
		Selector: ".listing-item",
		Fallbacks: []string{
			"a[href*='/id-'][href$='.html']",
			"a[href*='/en/buy/'][href*='.html'], a[href*='/en/rent/'][href*='.html']",
			"[class*='card'] a[href*='.html']",
			"article a[href*='/buy/'], article a[href*='/rent/']",
		},
		WaitFor:      "a[href*='/id-'][href$='.html'], .listing-item",
		BaseURL:      atHomeBase,
		KeepLink:     hrefContains("/id-", ".html"),
		ConsentTexts: []string{"Tout refuser", "Refuser", "Only necessary"},
		PreNavigate:  atHomePreNavigate,
	}
}

// atHomeLanguage picks the language from the URL path, else the configured one.
func atHomeLanguage(rawURL, configured string) string {
	for _, lang := range []string{"fr", "de", "en"} {
		if strings.Contains(rawURL, "/"+lang+"/") {
			return lang
		}
	}
	if configured == "" {
		return "en"
	}
	return strings.ToLower(configured)
}

// atHomeSection picks buy or rent from configuration, else the URL.
func atHomeSection(rawURL, configured string) string {
	if configured != "" {
		return strings.ToLower(configured)
	}
	if strings.Contains(strings.ToLower(rawURL), "/rent") {
		return "rent"
	}
	return "buy"
}

// atHomeLangPath rewrites the first path segment to lang.
func atHomeLangPath(current, lang string) string {
	u, err := url.Parse(current)
	if err != nil || u.Host == "" {
		return ""
	}
	rest := strings.TrimPrefix(u.Path, "/")
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = ""
	}
	u.Path = "/" + lang + "/" + rest
	return u.String()
}

func atHomePreNavigate(p *Protocol, page Page, rawURL string) {
	atHomeSetLanguage(p, page, atHomeLanguage(rawURL, p.Opts.AtHomeLang))
	atHomeOpenSection(p, page, atHomeSection(rawURL, p.Opts.AtHomeSection))
}

func atHomeSetLanguage(p *Protocol, page Page, lang string) {
	current := page.URL()
	if strings.Contains(current, "/"+lang+"/") || strings.HasSuffix(strings.TrimRight(current, "/"), "/"+lang) {
		p.Logger.Debug("[athome] Language already %s", lang)
		return
	}
	label, ok := atHomeLangLabels[lang]
	if !ok {
		label = "English"
	}
	hit, err := clickFirst(page, []string{label}, []string{"a[href*='/" + lang + "/']"}, false, 800*time.Millisecond)
	if err == nil && hit != "" {
		p.Logger.Info("[athome] Language %s", lang)
		p.settle()
		return
	}
	target := atHomeLangPath(current, lang)
	if target == "" {
		p.Logger.Warn("[athome] Could not switch language to %s", lang)
		return
	}
	if err := page.Goto(target, 15*time.Second); err != nil {
		p.Logger.Warn("[athome] set language failed: %v", err)
		return
	}
	p.Logger.Info("[athome] Navigated to %s path", lang)
}

func atHomeOpenSection(p *Protocol, page Page, section string) {
	current := strings.ToLower(page.URL())
	if strings.Contains(current, "/"+section) || strings.Contains(current, "?tr="+section) {
		p.Logger.Debug("[athome] Already on %s section", section)
		return
	}
	text := "Buy"
	if section == "rent" {
		text = "Rent"
	}
	hit, err := clickFirst(page, []string{text},
		[]string{"a[href*='/" + section + "']", "a[href*='tr=" + section + "']"}, false, 800*time.Millisecond)
	if err != nil || hit == "" {
		p.Logger.Warn("[athome] Could not navigate to section %s", section)
		return
	}
	p.Logger.Info("[athome] Section %s", section)
	p.settle()
}
