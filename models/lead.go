package models

import (
	"fmt"
	"strings"
	"time"
)

// LeadStatus is the outreach state of a persisted lead.
type LeadStatus string

const (
	StatusNew       LeadStatus = "New"
	StatusContacted LeadStatus = "Contacted"
	StatusSkipped   LeadStatus = "Skipped"
	StatusFailed    LeadStatus = "Failed"
)

// ParseLeadStatus accepts any casing of the four known statuses.
func ParseLeadStatus(s string) (LeadStatus, error) {
	for _, st := range []LeadStatus{StatusNew, StatusContacted, StatusSkipped, StatusFailed} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown lead status %q", s)
}

// ClassificationResult is produced once per triaged listing and never
// mutated. The lead or agent row is derived from it.
type ClassificationResult struct {
	Eligible             bool
	IsPrivate            bool
	Confidence           int
	Reason               string
	Viable               bool
	ViabilityRating      int
	ViabilityReason      string
	QualificationFactors []string
}

// AcceptedAsPrivate reports whether an eligible private verdict reaches
// minConfidence, which makes the listing a lead.
func (r ClassificationResult) AcceptedAsPrivate(minConfidence int) bool {
	return r.Eligible && r.IsPrivate && r.Confidence >= minConfidence
}

// Lead is one accepted listing queued for human triage and outreach.
type Lead struct {
	ID                   int64
	Fingerprint          string
	Title                string
	Price                string
	Location             string
	Contact              string
	ListingURL           string
	Description          string
	Viable               bool
	ViabilityReason      string
	ViabilityRating      int
	QualificationFactors []string
	Status               LeadStatus
	PriorityScore        int
	CreatedAt            time.Time
}

// AgentListing is an append-only archive row for non-private listings.
type AgentListing struct {
	Fingerprint string
	AgencyName  string
	Title       string
	Price       string
	Location    string
	URL         string
	Contact     string
	Reason      string
	CreatedAt   time.Time
}

// CycleReport summarises one orchestrator pass.
type CycleReport struct {
	CycleID        string
	StartedAt      time.Time
	Duration       time.Duration
	URLs           int
	FailedURLs     int
	RawListings    int
	Duplicates     int
	Ineligible     int
	LeadsCreated   int
	AgentListings  int
	ViableListings int
	SideChannelErr int64
	TopLeads       []*Lead
	BySource       map[SourceKind]int
}

// SellerJudgement is the private-vs-agent verdict for one listing text.
type SellerJudgement struct {
	IsPrivate  bool
	Confidence int
	AgencyName string
	// Heuristic is true when the keyword fast path decided.
	Heuristic bool
}

// StructuredListing is the single-call extraction used for pages without a
// dedicated extractor.
type StructuredListing struct {
	Title      string  `json:"title"`
	Price      string  `json:"price"`
	Location   string  `json:"location"`
	Contact    Contact `json:"contact"`
	IsPrivate  bool    `json:"is_private"`
	Confidence int     `json:"confidence"`
}
