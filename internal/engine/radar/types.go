// Package radar implements the matching and scoring core: it turns
// resume and job-posting text into comparable embeddings, combines
// semantic and structured signals into a ranked score, and keeps a
// deduplicated, durable ledger of every opportunity seen across runs.
package radar

import (
	"strings"
	"time"
)

// SourceKind distinguishes section vocabularies for normalization.
type SourceKind string

const (
	SourceResume SourceKind = "resume"
	SourceJob    SourceKind = "job"
)

// Section is one named block of a structured document.
type Section struct {
	Tag  string
	Text string
}

// StructuredDocument is normalized text split into named sections.
type StructuredDocument struct {
	Kind     SourceKind
	Sections []Section
}

// Section returns the text of the first section with the given tag, or "".
func (d *StructuredDocument) Section(tag string) string {
	for _, s := range d.Sections {
		if s.Tag == tag {
			return s.Text
		}
	}
	return ""
}

// Pooled joins all section text into one block for whole-document embedding.
func (d *StructuredDocument) Pooled() string {
	parts := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

// OpportunityID is the stable identity of a job posting, derived from its
// content — never from the source URL. It is the join key between the
// vector store and the opportunity store and must never change once assigned.
type OpportunityID string

// JobPosting is an immutable posting produced by the ingestion layer.
type JobPosting struct {
	ID           OpportunityID `json:"id"`
	Title        string        `json:"title"`
	Company      string        `json:"company"`
	Description  string        `json:"description"`
	URL          string        `json:"url"`
	DiscoveredAt time.Time     `json:"discovered_at"`
}

// Embedding is a fixed-dimension vector plus the entity it represents and
// the model that produced it. Vectors from different models must never be
// compared for similarity.
type Embedding struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// Status is the review status of an opportunity.
type Status string

const (
	StatusNew       Status = "new"
	StatusScored    Status = "scored"
	StatusDismissed Status = "dismissed"
	StatusApplied   Status = "applied"
)

// ValidStatus checks if a status string is valid.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusNew, StatusScored, StatusDismissed, StatusApplied:
		return true
	}
	return false
}

// Opportunity is a posting joined with its latest score and review status.
// Dismissed is a status, not a removal — rows are never deleted, which is
// what preserves dedup history across runs.
type Opportunity struct {
	JobPosting
	Status      Status    `json:"status"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Latest      *Score    `json:"latest_score,omitempty"`
}
