package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"lead-harvester/models"
	"lead-harvester/utils"
)

// Fingerprint is the dedup key: SHA-256 of description followed by title.
// URL and source do not take part, so tracking-parameter drift and cross-
// posting collapse onto one key.
func Fingerprint(description, title string) string {
	sum := sha256.Sum256([]byte(description + title))
	return hex.EncodeToString(sum[:])
}

// ListingFingerprint fingerprints a canonical listing.
func ListingFingerprint(l *models.Listing) string {
	return Fingerprint(l.Description, l.Title)
}

// FingerprintLookup answers whether the persistent store has seen a hash.
type FingerprintLookup interface {
	HasSeenFingerprint(ctx context.Context, hash string) (bool, error)
}

// Deduplicator checks the current cycle's set first, then the store.
type Deduplicator struct {
	store  FingerprintLookup
	logger *utils.Logger
}

// NewDeduplicator wires a deduplicator to the persistent lookup.
func NewDeduplicator(store FingerprintLookup, logger *utils.Logger) *Deduplicator {
	return &Deduplicator{store: store, logger: logger}
}

// IsDuplicate reports whether hash was already processed. When it was not,
// hash is added to session so later repeats in the same cycle never reach
// the store. A store error is logged and treated as "not seen".
func (d *Deduplicator) IsDuplicate(ctx context.Context, hash string, session *utils.StringSet) bool {
	if session.Contains(hash) {
		return true
	}
	seen, err := d.store.HasSeenFingerprint(ctx, hash)
	if err != nil {
		d.logger.Warn("[dedup] store lookup failed for %.12s: %v", hash, err)
	}
	if seen {
		session.Add(hash)
		return true
	}
	session.Add(hash)
	return false
}
