package classifier

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"lead-harvester/models"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+|00)?\d[\d\s().-]{6,}\d`)
)

const defaultPhoneRegion = "LU"

// ScanContact finds the first email and the first valid phone number in
// text. Phones are returned in E.164.
func ScanContact(text, region string) models.Contact {
	var c models.Contact
	c.Email = strings.ToLower(emailRe.FindString(text))
	for _, cand := range phoneRe.FindAllString(text, -1) {
		if p := NormalizePhone(cand, region); p != "" {
			c.Phone = p
			break
		}
	}
	return c
}

// NormalizePhone returns raw in E.164 or "" when it is not a valid number.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "00") {
		raw = "+" + raw[2:]
	}
	if region == "" {
		region = defaultPhoneRegion
	}
	number, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// mergeContact fills empty fields of primary from fallback.
func mergeContact(primary, fallback models.Contact) models.Contact {
	if primary.Email == "" {
		primary.Email = fallback.Email
	}
	if primary.Phone == "" {
		primary.Phone = fallback.Phone
	}
	return primary
}
