package storage

import (
	"context"
	"errors"

	"lead-harvester/models"
)

// ErrLeadNotFound is returned by status updates for unknown lead IDs.
var ErrLeadNotFound = errors.New("lead not found")

// LeadStore persists leads, the agent log and the seen-fingerprint history.
// Implementations must be safe for concurrent use.
type LeadStore interface {
	// UpsertLead inserts lead keyed by fingerprint and returns its ID. An
	// existing row is left unchanged.
	UpsertLead(ctx context.Context, lead *models.Lead) (int64, error)
	HasSeenFingerprint(ctx context.Context, hash string) (bool, error)
	RecordFingerprint(ctx context.Context, hash string, source models.SourceKind) error
	RecordAgentListing(ctx context.Context, a *models.AgentListing) error
	// ListLeadsByPriorityDesc returns at most limit leads, all when limit <= 0.
	ListLeadsByPriorityDesc(ctx context.Context, limit int) ([]*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error
	// Reset deletes every lead, agent listing and seen fingerprint.
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// AgentArchive is an append-only export of agent listings.
type AgentArchive interface {
	Append(a *models.AgentListing) error
	Close() error
}
