package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"lead-harvester/models"
	"lead-harvester/utils"
)

// amountRegexp captures a numeric amount with thousands/decimal separators.
var amountRegexp = regexp.MustCompile(`\d[\d.,' ]*`)

// Cleaner normalises raw extracted listings before triage.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean normalises whitespace in every text field and drops listings that
// carry no text at all. Listings are modified in place.
func (c *Cleaner) Clean(raw []*models.Listing) []*models.Listing {
	result := make([]*models.Listing, 0, len(raw))

	for _, l := range raw {
		l.Title = NormaliseText(l.Title)
		l.Price = NormaliseText(l.Price)
		l.Location = NormaliseText(l.Location)
		l.Description = NormaliseText(l.Description)
		l.AgencyName = NormaliseText(l.AgencyName)
		l.URL = strings.TrimSpace(l.URL)

		if l.Title == "" && l.Description == "" {
			c.logger.Debug("[cleaner] Dropping listing with no text: %s", l.URL)
			continue
		}
		result = append(result, l)
	}

	if dropped := len(raw) - len(result); dropped > 0 {
		c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
			len(raw), len(result), dropped)
	}
	return result
}

// PriceAmount extracts the numeric amount of a free-text price.
// Examples:
//
//	"€ 450.000"   → 450000
//	"$450,000"    → 450000
//	"1.250,50 €"  → 1250.5
//	"on request"  → 0
func PriceAmount(raw string) float64 {
	match := strings.TrimSpace(amountRegexp.FindString(raw))
	if match == "" {
		return 0
	}
	s := strings.NewReplacer(" ", "", "'", "").Replace(match)

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = separatorToDecimal(s, ",")
	case lastDot >= 0:
		s = separatorToDecimal(s, ".")
	}

	val, err := strconv.ParseFloat(strings.Trim(s, "."), 64)
	if err != nil {
		return 0
	}
	return val
}

// separatorToDecimal treats sep as a thousands separator when every group
// after it has exactly three digits, else as the decimal point.
func separatorToDecimal(s, sep string) string {
	parts := strings.Split(s, sep)
	thousands := len(parts) > 1
	for _, p := range parts[1:] {
		if len(p) != 3 {
			thousands = false
			break
		}
	}
	if thousands {
		return strings.Join(parts, "")
	}
	if len(parts) == 2 {
		return parts[0] + "." + parts[1]
	}
	return strings.Join(parts, "")
}

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
