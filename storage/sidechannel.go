package storage

import (
	"context"
	"sync/atomic"

	"lead-harvester/models"
	"lead-harvester/utils"
)

// SideChannel records best-effort writes: the agent log, the CSV archive and
// seen fingerprints. Failures are logged and counted, never returned.
type SideChannel struct {
	store    LeadStore
	archive  AgentArchive
	logger   *utils.Logger
	failures atomic.Int64
}

// NewSideChannel wraps store and an optional archive.
func NewSideChannel(store LeadStore, archive AgentArchive, logger *utils.Logger) *SideChannel {
	return &SideChannel{store: store, archive: archive, logger: logger}
}

// RecordAgent writes a to the agent log and the archive.
func (s *SideChannel) RecordAgent(ctx context.Context, a *models.AgentListing) {
	if err := s.store.RecordAgentListing(ctx, a); err != nil {
		s.fail("agent log", err)
	}
	if s.archive == nil {
		return
	}
	if err := s.archive.Append(a); err != nil {
		s.fail("agent archive", err)
	}
}

// RecordFingerprint marks hash as seen.
func (s *SideChannel) RecordFingerprint(ctx context.Context, hash string, source models.SourceKind) {
	if err := s.store.RecordFingerprint(ctx, hash, source); err != nil {
		s.fail("fingerprint", err)
	}
}

// Failures is the number of swallowed errors since creation.
func (s *SideChannel) Failures() int64 {
	return s.failures.Load()
}

func (s *SideChannel) fail(what string, err error) {
	s.failures.Add(1)
	s.logger.Warn("[sidechannel] %s write failed: %v", what, err)
}
