package services

import (
	"fmt"
	"sort"
	"strings"

	"lead-harvester/models"
	"lead-harvester/utils"
)

// QueueInsights summarises the persisted lead queue.
type QueueInsights struct {
	TotalLeads      int
	NewLeads        int
	ViableLeads     int
	AveragePrice    float64
	MinPrice        float64
	MaxPrice        float64
	TopPriority     []*models.Lead
	LeadsByStatus   map[models.LeadStatus]int
	LeadsByLocation map[string]int
}

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes queue statistics. leads is expected in priority order.
func (s *InsightService) Generate(leads []*models.Lead) *QueueInsights {
	q := &QueueInsights{
		LeadsByStatus:   make(map[models.LeadStatus]int),
		LeadsByLocation: make(map[string]int),
	}
	if len(leads) == 0 {
		return q
	}
	q.TotalLeads = len(leads)

	var total float64
	var priced int
	for _, l := range leads {
		q.LeadsByStatus[l.Status]++
		if l.Status == models.StatusNew {
			q.NewLeads++
		}
		if l.Viable {
			q.ViableLeads++
		}
		if l.Location != "" {
			q.LeadsByLocation[l.Location]++
		}
		amount := PriceAmount(l.Price)
		if amount <= 0 {
			continue
		}
		if priced == 0 || amount < q.MinPrice {
			q.MinPrice = amount
		}
		if amount > q.MaxPrice {
			q.MaxPrice = amount
		}
		total += amount
		priced++
	}
	if priced > 0 {
		q.AveragePrice = round2(total / float64(priced))
	}

	top := append([]*models.Lead(nil), leads...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].PriorityScore > top[j].PriorityScore
	})
	if len(top) > 5 {
		top = top[:5]
	}
	q.TopPriority = top
	return q
}

// PrintCycle writes the end-of-cycle summary.
func (s *InsightService) PrintCycle(r *models.CycleReport) {
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m  Cycle %s\033[0m  (%s)\n", shortID(r.CycleID), r.Duration.Round(1e9))
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  URLs visited        : \033[1m%d\033[0m (%d failed)\n", r.URLs, r.FailedURLs)
	fmt.Printf("  Raw listings        : \033[1m%d\033[0m\n", r.RawListings)
	fmt.Printf("  Duplicates skipped  : %d\n", r.Duplicates)
	fmt.Printf("  Ineligible          : %d\n", r.Ineligible)
	fmt.Printf("  Leads created       : \033[1;32m%d\033[0m\n", r.LeadsCreated)
	fmt.Printf("  Agent listings      : %d\n", r.AgentListings)
	if r.SideChannelErr > 0 {
		fmt.Printf("  Side-channel errors : \033[1;31m%d\033[0m\n", r.SideChannelErr)
	}
	if len(r.BySource) > 0 {
		kinds := make([]string, 0, len(r.BySource))
		for k := range r.BySource {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("    %-22s %d\n", k, r.BySource[models.SourceKind(k)])
		}
	}
	fmt.Printf("  %d viable listing(s) identified for short-term rental\n\n", r.ViableListings)
}

// PrintQueue writes the lead queue overview.
func (s *InsightService) PrintQueue(q *QueueInsights) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  LEAD QUEUE\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total leads  : \033[1m%d\033[0m\n", q.TotalLeads)
	fmt.Printf("  New          : \033[1m%d\033[0m\n", q.NewLeads)
	fmt.Printf("  Viable       : \033[1m%d\033[0m\n", q.ViableLeads)
	if q.AveragePrice > 0 {
		fmt.Printf("  Price avg    : %.2f (min %.2f, max %.2f)\n", q.AveragePrice, q.MinPrice, q.MaxPrice)
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Top Priority\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(q.TopPriority) == 0 {
		fmt.Printf("  No leads yet\n")
	}
	for i, l := range q.TopPriority {
		fmt.Printf("  \033[1m%d.\033[0m %-40s \033[1;32m%3d\033[0m  %s\n",
			i+1, truncate(l.Title, 38), l.PriorityScore, l.Status)
	}
	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to max runes, ending in "..." when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
