package classifier

import (
	"context"
	"regexp"
	"strings"
	"time"

	"lead-harvester/models"
	"lead-harvester/utils"
)

// Config carries the criteria text, keyword lists and model for every
// judgement.
type Config struct {
	Model             string
	Criteria          string
	ViabilityCriteria string
	PrivateKeywords   []string
	AgentKeywords     []string
	PhoneRegion       string

	// SellerAttempts and SellerBackoff drive the seller-type fallback.
	// Defaults are 3 attempts starting at one second.
	SellerAttempts int
	SellerBackoff  time.Duration
}

// Classifier produces the eligibility, seller-type, viability and contact
// judgements for listing text.
type Classifier struct {
	backend  TextClassifier
	cfg      Config
	logger   *utils.Logger
	shutdown *utils.Shutdown
}

// New builds a Classifier over backend.
func New(backend TextClassifier, cfg Config, logger *utils.Logger, shutdown *utils.Shutdown) *Classifier {
	if cfg.SellerAttempts <= 0 {
		cfg.SellerAttempts = 3
	}
	if cfg.SellerBackoff <= 0 {
		cfg.SellerBackoff = time.Second
	}
	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = defaultPhoneRegion
	}
	cfg.PrivateKeywords = lowerAll(cfg.PrivateKeywords)
	cfg.AgentKeywords = lowerAll(cfg.AgentKeywords)
	return &Classifier{backend: backend, cfg: cfg, logger: logger, shutdown: shutdown}
}

// Eligibility gates a listing against the free-text criteria. Any failure
// is treated as ineligible.
func (c *Classifier) Eligibility(ctx context.Context, text string) (bool, string) {
	if strings.TrimSpace(c.cfg.Criteria) == "" {
		return true, "no criteria configured"
	}
	var resp struct {
		Eligible flexBool `json:"eligible"`
		Reason   string   `json:"reason"`
	}
	if err := CallJSON(ctx, c.backend, eligibilityPrompt(text, c.cfg.Criteria), c.cfg.Model, &resp); err != nil {
		c.logger.Warn("[classifier] eligibility failed, treating as ineligible: %v", err)
		return false, "eligibility check failed"
	}
	return bool(resp.Eligible), resp.Reason
}

// KeywordSeller is the fast path. decided is false when both or neither
// keyword family is present.
func (c *Classifier) KeywordSeller(text string) (j models.SellerJudgement, decided bool) {
	t := strings.ToLower(text)
	private := containsAny(t, c.cfg.PrivateKeywords)
	agent := containsAny(t, c.cfg.AgentKeywords)
	switch {
	case private && !agent:
		return models.SellerJudgement{IsPrivate: true, Confidence: 9, Heuristic: true}, true
	case agent && !private:
		return models.SellerJudgement{IsPrivate: false, Confidence: 9, AgencyName: agencyName(text), Heuristic: true}, true
	}
	return models.SellerJudgement{}, false
}

// SellerType decides private vs agent: keywords first, then the language
// model with retries. When every attempt fails it returns not-private with
// zero confidence.
func (c *Classifier) SellerType(ctx context.Context, text string) models.SellerJudgement {
	if j, ok := c.KeywordSeller(text); ok {
		return j
	}

	type sellerResp struct {
		IsPrivate  flexBool `json:"is_private"`
		Confidence flexInt  `json:"confidence"`
		Reason     string   `json:"reason"`
		AgencyName string   `json:"agency_name"`
	}
	retry := &utils.RetryConfig{
		MaxAttempts: c.cfg.SellerAttempts,
		BaseDelay:   c.cfg.SellerBackoff,
		Factor:      2,
		Logger:      c.logger,
		Shutdown:    c.shutdown,
	}
	resp, err := utils.Retry(retry, "seller-type", func() (sellerResp, error) {
		var r sellerResp
		err := CallJSON(ctx, c.backend, sellerPrompt(text), c.cfg.Model, &r)
		return r, err
	})
	if err != nil {
		c.logger.Warn("[classifier] seller type defaulted to agent: %v", err)
		return models.SellerJudgement{}
	}
	return models.SellerJudgement{
		IsPrivate:  bool(resp.IsPrivate),
		Confidence: clamp10(int(resp.Confidence)),
		AgencyName: strings.TrimSpace(resp.AgencyName),
	}
}

// Viability is the short-term-rental judgement.
type Viability struct {
	Viable  bool
	Rating  int
	Reason  string
	Factors []string
}

// Viability rates the listing against the viability criteria. Failures
// yield a non-viable zero rating.
func (c *Classifier) Viability(ctx context.Context, text string) Viability {
	var resp struct {
		Viable  flexBool `json:"viable"`
		Rating  flexInt  `json:"rating"`
		Reason  string   `json:"reason"`
		Factors []string `json:"qualification_factors"`
	}
	if err := CallJSON(ctx, c.backend, viabilityPrompt(text, c.cfg.ViabilityCriteria), c.cfg.Model, &resp); err != nil {
		c.logger.Warn("[classifier] viability failed: %v", err)
		return Viability{Reason: "viability check failed"}
	}
	return Viability{
		Viable:  bool(resp.Viable),
		Rating:  clamp10(int(resp.Rating)),
		Reason:  resp.Reason,
		Factors: resp.Factors,
	}
}

// ExtractContact asks the model for contact details and fills whatever it
// missed by pattern matching. Model phones are validated like scanned ones.
func (c *Classifier) ExtractContact(ctx context.Context, text string) models.Contact {
	scanned := c.ScanContact(text)
	var resp struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := CallJSON(ctx, c.backend, contactPrompt(text), c.cfg.Model, &resp); err != nil {
		c.logger.Debug("[classifier] contact extraction fell back to patterns: %v", err)
		return scanned
	}
	got := models.Contact{
		Email: strings.ToLower(strings.TrimSpace(resp.Email)),
		Phone: NormalizePhone(resp.Phone, c.cfg.PhoneRegion),
	}
	if got.Email != "" && !emailRe.MatchString(got.Email) {
		got.Email = ""
	}
	return mergeContact(got, scanned)
}

// ScanContact is pattern matching only.
func (c *Classifier) ScanContact(text string) models.Contact {
	return ScanContact(text, c.cfg.PhoneRegion)
}

// ExtractStructured pulls the listing fields and a seller verdict in one
// call, for pages without a dedicated extractor.
func (c *Classifier) ExtractStructured(ctx context.Context, text string) (models.StructuredListing, error) {
	var resp struct {
		Title      string         `json:"title"`
		Price      string         `json:"price"`
		Location   string         `json:"location"`
		Contact    models.Contact `json:"contact"`
		IsPrivate  flexBool       `json:"is_private"`
		Confidence flexInt        `json:"confidence"`
	}
	if err := CallJSON(ctx, c.backend, structuredPrompt(text), c.cfg.Model, &resp); err != nil {
		return models.StructuredListing{}, err
	}
	contact := resp.Contact
	contact.Phone = NormalizePhone(contact.Phone, c.cfg.PhoneRegion)
	return models.StructuredListing{
		Title:      strings.TrimSpace(resp.Title),
		Price:      strings.TrimSpace(resp.Price),
		Location:   strings.TrimSpace(resp.Location),
		Contact:    contact,
		IsPrivate:  bool(resp.IsPrivate),
		Confidence: clamp10(int(resp.Confidence)),
	}, nil
}

// Ping checks backend reachability when the backend supports it.
func (c *Classifier) Ping(ctx context.Context) error {
	if p, ok := c.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

var (
	agentPriceRe    = regexp.MustCompile(`[$€£]\s*\d[\d.,]*(?:\s*[kK])?|\d[\d.,]*\s*(?:€|EUR)`)
	agentLocationRe = regexp.MustCompile(`(?i)\b(?:in|near|at)\s+([A-Za-zÀ-ÿ\-]+(?:\s+[A-Za-zÀ-ÿ\-]+)?)`)
	agencyRe        = regexp.MustCompile(`([A-Z][\w&.'-]*(?:\s+[A-Z][\w&.'-]*){0,3}\s+(?:[Aa]gency|[Rr]ealty|[Rr]eal [Ee]state|[Ii]mmobilier|[Ii]mmo))\b`)
)

// AgentDetails fills an agent-log row from listing fields, reading missing
// ones out of the text.
func (c *Classifier) AgentDetails(l *models.Listing, reason string) models.AgentListing {
	text := l.Text()
	a := models.AgentListing{
		AgencyName: l.AgencyName,
		Title:      l.Title,
		Price:      l.Price,
		Location:   l.Location,
		URL:        l.URL,
		Contact:    l.Contact.Value(),
		Reason:     reason,
	}
	if a.AgencyName == "" {
		a.AgencyName = agencyName(text)
	}
	if a.Title == "" {
		a.Title = truncate(strings.TrimSpace(strings.SplitN(text, "\n", 2)[0]), 80)
	}
	if a.Price == "" {
		a.Price = strings.TrimSpace(agentPriceRe.FindString(text))
	}
	if a.Location == "" {
		if m := agentLocationRe.FindStringSubmatch(text); m != nil {
			a.Location = strings.TrimSpace(m[1])
		}
	}
	if a.Contact == "" {
		a.Contact = c.ScanContact(text).Value()
	}
	return a
}

func agencyName(text string) string {
	if m := agencyRe.FindStringSubmatch(text); m != nil {
		return truncate(strings.TrimSpace(m[1]), 80)
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp10(n int) int {
	return max(0, min(n, 10))
}
