package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lead-harvester/classifier"
	"lead-harvester/config"
	"lead-harvester/models"
	"lead-harvester/scraper"
	"lead-harvester/services"
	"lead-harvester/storage"
	"lead-harvester/utils"
)

// Judge is the per-listing triage surface. *classifier.Classifier
// satisfies it.
type Judge interface {
	Eligibility(ctx context.Context, text string) (bool, string)
	SellerType(ctx context.Context, text string) models.SellerJudgement
	ExtractContact(ctx context.Context, text string) models.Contact
	Viability(ctx context.Context, text string) classifier.Viability
	AgentDetails(l *models.Listing, reason string) models.AgentListing
}

// Reporter receives every finished cycle report.
type Reporter interface {
	PrintCycle(r *models.CycleReport)
}

// Options are the cycle knobs taken from configuration.
type Options struct {
	Targets              *config.Targets
	ParallelURLs         int
	MaxRetries           int
	RetryBaseDelay       time.Duration
	CycleCooldown        time.Duration
	CooldownMin          time.Duration
	CooldownMax          time.Duration
	MinPrivateConfidence int
	TopLeads             int
}

// OptionsFrom copies the cycle settings out of cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Targets:              cfg.Targets,
		ParallelURLs:         cfg.ParallelURLs,
		MaxRetries:           cfg.MaxRetries,
		RetryBaseDelay:       cfg.RetryBaseDelay,
		CycleCooldown:        cfg.CycleCooldown,
		CooldownMin:          cfg.CooldownMin,
		CooldownMax:          cfg.CooldownMax,
		MinPrivateConfidence: cfg.MinPrivateConfidence,
	}
}

// Deps are the collaborators the orchestrator drives. Reporter may be nil.
type Deps struct {
	Browser  scraper.Browser
	Registry *scraper.Registry
	Judge    Judge
	Store    storage.LeadStore
	Side     *storage.SideChannel
	Limiter  *utils.RateLimiter
	Reporter Reporter
	Logger   *utils.Logger
	Shutdown *utils.Shutdown
}

// Orchestrator runs the acquisition cycle: build targets, extract in a small
// worker pool, triage on one goroutine, cool down, repeat.
type Orchestrator struct {
	opts Options
	deps Deps

	dedup   *services.Deduplicator
	cleaner *services.Cleaner

	state     atomic.Int32
	closeOnce sync.Once

	mu    sync.Mutex
	rnd   *rand.Rand
	now   func() time.Time
	sleep func(time.Duration) error
}

// New wires an orchestrator.
func New(opts Options, deps Deps) *Orchestrator {
	if opts.ParallelURLs <= 0 {
		opts.ParallelURLs = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.CooldownMax < opts.CooldownMin {
		opts.CooldownMax = opts.CooldownMin
	}
	if opts.TopLeads <= 0 {
		opts.TopLeads = 5
	}
	if deps.Side == nil {
		deps.Side = storage.NewSideChannel(deps.Store, nil, deps.Logger)
	}
	return &Orchestrator{
		opts:    opts,
		deps:    deps,
		dedup:   services.NewDeduplicator(deps.Store, deps.Logger),
		cleaner: services.NewCleaner(deps.Logger),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		sleep:   deps.Shutdown.Sleep,
	}
}

// State returns the current state. Safe from any goroutine.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	if prev := State(o.state.Swap(int32(s))); prev != s {
		o.deps.Logger.Debug("[orchestrator] %s -> %s", prev, s)
	}
}

func (o *Orchestrator) stopping(ctx context.Context) bool {
	return o.deps.Shutdown.Requested() || ctx.Err() != nil
}

// Run loops cycles until shutdown, context cancellation or a fatal error.
// The browser is closed before it returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.Close()

	for cycle := 1; ; cycle++ {
		if o.stopping(ctx) {
			o.setState(StateShutdown)
			return nil
		}
		report, err := o.RunCycle(ctx)
		if err != nil {
			o.setState(StateShutdown)
			o.deps.Logger.Error("[orchestrator] cycle %d aborted: %v", cycle, err)
			return err
		}
		if o.deps.Reporter != nil {
			o.deps.Reporter.PrintCycle(report)
		}
		if o.stopping(ctx) {
			o.setState(StateShutdown)
			return nil
		}

		o.setState(StateCoolingDown)
		wait := o.cooldown(report.Duration)
		o.deps.Logger.Info("[orchestrator] Cycle %d done in %s, next cycle in %s",
			cycle, report.Duration.Round(time.Second), wait.Round(time.Second))
		if err := o.sleep(wait); err != nil {
			o.setState(StateShutdown)
			return nil
		}
	}
}

// Close releases the browser. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		if o.deps.Browser == nil {
			return
		}
		if err := o.deps.Browser.Close(); err != nil {
			o.deps.Logger.Warn("[orchestrator] browser close: %v", err)
		}
	})
}

// cooldown is the configured interval shortened by the cycle's own
// duration. An overrunning cycle waits a random time in [min, max].
func (o *Orchestrator) cooldown(elapsed time.Duration) time.Duration {
	if remaining := o.opts.CycleCooldown - elapsed; remaining > 0 {
		return remaining
	}
	lo, hi := o.opts.CooldownMin, o.opts.CooldownMax
	if hi <= lo {
		return lo
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return lo + time.Duration(o.rnd.Int63n(int64(hi-lo)+1))
}

// RunCycle performs one full pass. Only fatal errors are returned: a dead
// browser or a failed lead upsert.
func (o *Orchestrator) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	report := &models.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: o.now(),
		BySource:  make(map[models.SourceKind]int),
	}
	sideBefore := o.deps.Side.Failures()
	defer func() {
		report.Duration = o.now().Sub(report.StartedAt)
		report.SideChannelErr = o.deps.Side.Failures() - sideBefore
	}()

	o.setState(StateBuildingTargets)
	targets := BuildTargets(o.opts.Targets)
	report.URLs = targets.Count()
	o.deps.Logger.Info("[orchestrator] Cycle %s: %d target page(s)", report.CycleID, report.URLs)
	if targets.Empty() {
		o.deps.Logger.Warn("[orchestrator] No targets configured")
		o.setState(StateIdle)
		return report, nil
	}
	if o.stopping(ctx) {
		return report, nil
	}

	o.setState(StateExtracting)
	listings, err := o.extract(ctx, targets, report)
	if err != nil {
		return report, err
	}
	report.RawListings = len(listings)
	if o.stopping(ctx) {
		return report, nil
	}

	o.setState(StateTriaging)
	if err := o.triage(ctx, listings, report); err != nil {
		return report, err
	}
	o.setState(StateIdle)
	return report, nil
}

type dispatch struct {
	url         string
	groups      []string
	marketplace string
}

func (d dispatch) label() string {
	if len(d.groups) > 0 {
		return fmt.Sprintf("facebook groups (%d)", len(d.groups))
	}
	return d.url
}

// extract fans the dispatches out over the worker pool and flattens the
// results in dispatch order.
func (o *Orchestrator) extract(ctx context.Context, t Targets, report *models.CycleReport) ([]*models.Listing, error) {
	jobs := make([]dispatch, 0, len(t.URLs)+1)
	for _, u := range t.URLs {
		jobs = append(jobs, dispatch{url: u})
	}
	if len(t.Groups) > 0 {
		jobs = append(jobs, dispatch{url: t.Groups[0], groups: t.Groups, marketplace: t.Marketplace})
	}

	pool := utils.NewWorkerPool(o.opts.ParallelURLs)
	results := utils.Map(pool, jobs, func() bool { return o.stopping(ctx) },
		func(_ int, d dispatch) ([]*models.Listing, error) {
			return o.scrape(ctx, d)
		})

	var all []*models.Listing
	var fatal error
	for i, r := range results {
		if r.Err != nil {
			if scraper.IsFatal(r.Err) {
				fatal = errors.Join(fatal, r.Err)
				continue
			}
			report.FailedURLs++
			o.deps.Logger.Warn("[orchestrator] %s yielded no listings: %v", jobs[i].label(), r.Err)
			continue
		}
		for _, l := range r.Value {
			report.BySource[l.Source]++
		}
		all = append(all, r.Value...)
	}
	if fatal != nil {
		return all, fmt.Errorf("extraction: %w", fatal)
	}
	return all, nil
}

// scrape runs one dispatch on its own page, behind the domain rate limit and
// the retry policy. A rejected URL or a shutdown before navigation yields
// nothing.
func (o *Orchestrator) scrape(ctx context.Context, d dispatch) ([]*models.Listing, error) {
	if o.stopping(ctx) {
		return nil, nil
	}
	if _, err := scraper.ValidateURL(d.url); err != nil {
		o.deps.Logger.Warn("[orchestrator] Skipping %s: %v", d.label(), err)
		return nil, nil
	}
	start := o.now()

	page, err := o.deps.Browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			o.deps.Logger.Debug("[orchestrator] page close: %v", cerr)
		}
	}()

	if err := o.deps.Limiter.WaitIfNeeded(scraper.Domain(d.url)); err != nil {
		return nil, nil
	}

	retry := &utils.RetryConfig{
		MaxAttempts: o.opts.MaxRetries,
		BaseDelay:   o.opts.RetryBaseDelay,
		Factor:      2,
		Logger:      o.deps.Logger,
		Shutdown:    o.deps.Shutdown,
		Permanent:   scraper.IsFatal,
	}
	listings, err := utils.Retry(retry, "scrape "+d.label(), func() ([]*models.Listing, error) {
		if len(d.groups) > 0 {
			return o.deps.Registry.Facebook().ScrapeGroups(ctx, page, d.groups, d.marketplace)
		}
		return o.deps.Registry.ForURL(d.url).Scrape(ctx, page, d.url)
	})
	if err != nil {
		if errors.Is(err, utils.ErrShutdown) {
			return nil, nil
		}
		return nil, err
	}

	o.deps.Logger.Event(utils.LevelInfo, "url_scraped",
		"url", d.label(),
		"listing_count", len(listings),
		"duration_sec", o.now().Sub(start).Round(10*time.Millisecond).Seconds(),
	)
	return listings, nil
}

// triage walks the listings on the calling goroutine. Classification
// failures degrade inside the judge; only a failed lead upsert is returned.
func (o *Orchestrator) triage(ctx context.Context, raw []*models.Listing, report *models.CycleReport) error {
	listings := o.cleaner.Clean(raw)
	session := utils.NewStringSet()
	var created []*models.Lead

	for _, l := range listings {
		if o.stopping(ctx) {
			o.deps.Logger.Info("[orchestrator] Shutdown requested, triage stopped")
			break
		}
		fp := services.ListingFingerprint(l)
		if o.dedup.IsDuplicate(ctx, fp, session) {
			report.Duplicates++
			continue
		}

		lead, err := o.triageOne(ctx, l, fp, report)
		if err != nil {
			return err
		}
		if lead != nil {
			created = append(created, lead)
		}
		o.deps.Side.RecordFingerprint(ctx, fp, l.Source)
	}

	sort.SliceStable(created, func(i, j int) bool {
		if created[i].PriorityScore != created[j].PriorityScore {
			return created[i].PriorityScore > created[j].PriorityScore
		}
		return created[i].ViabilityRating > created[j].ViabilityRating
	})
	if len(created) > o.opts.TopLeads {
		created = created[:o.opts.TopLeads]
	}
	report.TopLeads = created
	return nil
}

// triageOne classifies one fresh listing. Model-backed seller and contact
// calls run only here, after dedup and eligibility, and only for what the
// extractor's keyword and pattern pass left undecided.
func (o *Orchestrator) triageOne(ctx context.Context, l *models.Listing, fp string, report *models.CycleReport) (*models.Lead, error) {
	j := o.deps.Judge
	text := l.Text()

	eligible, reason := j.Eligibility(ctx, text)
	if !eligible {
		report.Ineligible++
		o.deps.Logger.Debug("[triage] %.12s ineligible: %s", fp, reason)
		return nil, nil
	}

	if l.IsPrivate == models.Unknown {
		seller := j.SellerType(ctx, text)
		l.IsPrivate = models.TristateOf(seller.IsPrivate)
		l.PrivateConfidence = seller.Confidence
		if l.AgencyName == "" {
			l.AgencyName = seller.AgencyName
		}
	}
	if l.Contact.Empty() {
		l.Contact = j.ExtractContact(ctx, text)
	}

	v := j.Viability(ctx, text)
	res := models.ClassificationResult{
		Eligible:             eligible,
		IsPrivate:            l.IsPrivate == models.Yes,
		Confidence:           l.PrivateConfidence,
		Reason:               reason,
		Viable:               v.Viable,
		ViabilityRating:      v.Rating,
		ViabilityReason:      v.Reason,
		QualificationFactors: v.Factors,
	}
	if res.Viable {
		report.ViableListings++
	}

	if !res.AcceptedAsPrivate(o.opts.MinPrivateConfidence) {
		a := j.AgentDetails(l, agentReason(res))
		a.Fingerprint = fp
		o.deps.Side.RecordAgent(ctx, &a)
		report.AgentListings++
		return nil, nil
	}

	lead := newLead(l, fp, res, o.now())
	id, err := o.deps.Store.UpsertLead(ctx, lead)
	if err != nil {
		return nil, fmt.Errorf("persist lead %.12s: %w", fp, err)
	}
	lead.ID = id
	report.LeadsCreated++
	o.deps.Logger.Info("[triage] Lead #%d queued (priority %d): %.60s", id, lead.PriorityScore, lead.Title)
	return lead, nil
}

// newLead derives the queued row from the listing and its verdicts.
func newLead(l *models.Listing, fp string, res models.ClassificationResult, now time.Time) *models.Lead {
	return &models.Lead{
		Fingerprint:          fp,
		Title:                l.Title,
		Price:                l.Price,
		Location:             l.Location,
		Contact:              l.Contact.Value(),
		ListingURL:           l.URL,
		Description:          l.Description,
		Viable:               res.Viable,
		ViabilityReason:      res.ViabilityReason,
		ViabilityRating:      res.ViabilityRating,
		QualificationFactors: res.QualificationFactors,
		Status:               models.StatusNew,
		PriorityScore: services.PriorityScore(services.PriorityInput{
			ViabilityRating:   res.ViabilityRating,
			IsPrivate:         res.IsPrivate,
			HasContact:        !l.Contact.Empty(),
			PrivateConfidence: res.Confidence,
		}),
		CreatedAt: now,
	}
}

func agentReason(res models.ClassificationResult) string {
	if res.IsPrivate {
		return fmt.Sprintf("private below confidence threshold (%d)", res.Confidence)
	}
	if res.Reason != "" {
		return "agent listing: " + res.Reason
	}
	return "agent listing"
}
