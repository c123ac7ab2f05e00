package models

import "time"

// SourceKind tags the extractor that produced a listing.
type SourceKind string

const (
	SourceGeneric             SourceKind = "generic"
	SourceAtHome              SourceKind = "athome"
	SourceImmotop             SourceKind = "immotop"
	SourceNextimmo            SourceKind = "nextimmo"
	SourceWortimmo            SourceKind = "wortimmo"
	SourceRightmove           SourceKind = "rightmove"
	SourceFacebookMarketplace SourceKind = "facebook_marketplace"
	SourceFacebookGroup       SourceKind = "facebook_group"
)

// Tristate is a boolean that may also be unknown.
type Tristate int8

const (
	Unknown Tristate = iota
	Yes
	No
)

// TristateOf converts a plain bool.
func TristateOf(b bool) Tristate {
	if b {
		return Yes
	}
	return No
}

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "true"
	case No:
		return "false"
	default:
		return "unknown"
	}
}

// Contact holds whatever reachability details were found in a listing.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Empty reports whether neither an email nor a phone is known.
func (c Contact) Empty() bool {
	return c.Email == "" && c.Phone == ""
}

// Value returns the preferred single contact string: email first, then phone.
func (c Contact) Value() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Phone
}

// Listing is one scraped offer normalised to the canonical record.
// Source is always set and URL is absolute by the time it leaves an extractor.
type Listing struct {
	URL         string
	Title       string
	Price       string
	Location    string
	Description string
	Bedrooms    string
	Bathrooms   string
	Size        string
	Source      SourceKind
	Contact     Contact
	IsPrivate   Tristate
	AgencyName  string
	ScrapedAt   time.Time

	// PrivateConfidence is set by the extractor's seller-type heuristic.
	PrivateConfidence int
}

// Text is the classification input: description followed by title.
func (l *Listing) Text() string {
	switch {
	case l.Description == "":
		return l.Title
	case l.Title == "":
		return l.Description
	}
	return l.Description + " " + l.Title
}
