package services

// Priority weights. The maximum of each term sums to 100.
const (
	viabilityWeight  = 6  // per rating point, 0..60
	privateBonus     = 20 // private seller
	contactBonus     = 10 // any email or phone
	confidenceWeight = 1  // per confidence point, 0..10
)

// PriorityInput holds the signals that order the lead queue.
type PriorityInput struct {
	ViabilityRating   int
	IsPrivate         bool
	HasContact        bool
	PrivateConfidence int
}

// PriorityScore is a deterministic 0..100 score used only to order leads for
// human triage.
func PriorityScore(in PriorityInput) int {
	score := clampInt(in.ViabilityRating, 0, 10) * viabilityWeight
	if in.IsPrivate {
		score += privateBonus
		score += clampInt(in.PrivateConfidence, 0, 10) * confidenceWeight
	}
	if in.HasContact {
		score += contactBonus
	}
	return clampInt(score, 0, 100)
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
