package radar

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// Deduplicator assigns stable identities to postings and decides
// new vs already-seen against the opportunity ledger.
type Deduplicator struct {
	store *OpportunityStore
}

// NewDeduplicator creates a Deduplicator backed by the given store.
func NewDeduplicator(store *OpportunityStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// IdentityOf computes the stable identity of a posting from its folded
// company name, folded title and a content fingerprint of the description.
// The source URL never participates: the same posting reappearing at a
// different URL across search providers must map to the same identity.
func (d *Deduplicator) IdentityOf(p *JobPosting) OpportunityID {
	key := engine.FoldText(p.Company) + "|" + engine.FoldText(p.Title) + "|" + Fingerprint(p.Description)
	sum := sha256.Sum256([]byte(key))
	return OpportunityID(fmt.Sprintf("%x", sum[:16]))
}

// Fingerprint hashes the folded description text. Near-duplicates that
// differ only in whitespace, casing or punctuation fingerprint identically.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(engine.FoldText(text)))
	return fmt.Sprintf("%x", sum[:16])
}

// IsNew reports whether id has never been recorded before.
func (d *Deduplicator) IsNew(ctx context.Context, id OpportunityID) (bool, error) {
	exists, err := d.store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("dedup: %w", err)
	}
	return !exists, nil
}
