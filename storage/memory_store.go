package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lead-harvester/models"
)

// MemoryStore is an in-process LeadStore for dry runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	leads  map[string]*models.Lead
	agents []models.AgentListing
	seen   map[string]models.SourceKind
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads: make(map[string]*models.Lead),
		seen:  make(map[string]models.SourceKind),
		now:   time.Now,
	}
}

func (m *MemoryStore) UpsertLead(_ context.Context, l *models.Lead) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.leads[l.Fingerprint]; ok {
		return existing.ID, nil
	}
	m.nextID++
	cp := *l
	cp.ID = m.nextID
	if cp.Status == "" {
		cp.Status = models.StatusNew
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	cp.QualificationFactors = append([]string(nil), l.QualificationFactors...)
	m.leads[l.Fingerprint] = &cp
	return cp.ID, nil
}

func (m *MemoryStore) HasSeenFingerprint(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[hash]; ok {
		return true, nil
	}
	if _, ok := m.leads[hash]; ok {
		return true, nil
	}
	for _, a := range m.agents {
		if a.Fingerprint == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) RecordFingerprint(_ context.Context, hash string, source models.SourceKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[hash]; !ok {
		m.seen[hash] = source
	}
	return nil
}

func (m *MemoryStore) RecordAgentListing(_ context.Context, a *models.AgentListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.agents = append(m.agents, cp)
	return nil
}

// AgentListings returns a copy of the agent log in insertion order.
func (m *MemoryStore) AgentListings() []models.AgentListing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AgentListing(nil), m.agents...)
}

func (m *MemoryStore) ListLeadsByPriorityDesc(_ context.Context, limit int) ([]*models.Lead, error) {
	m.mu.Lock()
	out := make([]*models.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		cp := *l
		out = append(out, &cp)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.ViabilityRating != b.ViabilityRating {
			return a.ViabilityRating > b.ViabilityRating
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateLeadStatus(_ context.Context, id int64, status models.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.ID == id {
			l.Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", ErrLeadNotFound, id)
}

func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = make(map[string]*models.Lead)
	m.seen = make(map[string]models.SourceKind)
	m.agents = nil
	m.nextID = 0
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
