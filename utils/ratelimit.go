package utils

import (
	"strings"
	"sync"
	"time"
)

const rateWindow = time.Minute

// RateLimiter is a per-domain sliding-window admission control. Each domain
// gets at most its requests-per-minute budget of admissions in any 60s window.
// Safe for concurrent use by several workers hitting the same domain.
type RateLimiter struct {
	mu        sync.Mutex
	rpm       int
	perDomain map[string]int
	admitted  map[string][]time.Time

	logger   *Logger
	shutdown *Shutdown

	now   func() time.Time
	sleep func(time.Duration) error
}

// NewRateLimiter creates a limiter with a global budget and optional
// per-domain overrides. Budgets below 1 are raised to 1.
func NewRateLimiter(requestsPerMinute int, perDomain map[string]int, logger *Logger, shutdown *Shutdown) *RateLimiter {
	overrides := make(map[string]int, len(perDomain))
	for d, n := range perDomain {
		overrides[strings.ToLower(d)] = max(1, n)
	}
	return &RateLimiter{
		rpm:       max(1, requestsPerMinute),
		perDomain: overrides,
		admitted:  make(map[string][]time.Time),
		logger:    logger,
		shutdown:  shutdown,
		now:       time.Now,
		sleep:     shutdown.Sleep,
	}
}

func (rl *RateLimiter) budget(domain string) int {
	if n, ok := rl.perDomain[domain]; ok {
		return n
	}
	return rl.rpm
}

// evict drops timestamps older than the window. Caller holds mu.
func (rl *RateLimiter) evict(domain string, now time.Time) []time.Time {
	times := rl.admitted[domain]
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	times = times[i:]
	rl.admitted[domain] = times
	return times
}

// WaitIfNeeded blocks until domain has capacity, then records the admission.
// It returns ErrShutdown if shutdown is requested while waiting.
func (rl *RateLimiter) WaitIfNeeded(domain string) error {
	domain = strings.ToLower(domain)
	for {
		rl.mu.Lock()
		now := rl.now()
		times := rl.evict(domain, now)
		if len(times) < rl.budget(domain) {
			rl.admitted[domain] = append(times, now)
			rl.mu.Unlock()
			return nil
		}
		wait := times[0].Add(rateWindow).Sub(now)
		rl.mu.Unlock()

		if rl.logger != nil {
			rl.logger.Info("[ratelimit] %s: budget exhausted, sleeping %.1fs", domain, wait.Seconds())
		}
		if err := rl.sleep(wait); err != nil {
			return err
		}
	}
}

// InWindow returns how many admissions domain has in the current window.
func (rl *RateLimiter) InWindow(domain string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.evict(strings.ToLower(domain), rl.now()))
}

// SetClock replaces the time source and the sleep used while waiting.
func (rl *RateLimiter) SetClock(now func() time.Time, sleep func(time.Duration) error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
	rl.sleep = sleep
}
