package radar

import (
	"fmt"
	"math"
	"time"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// FormulaVersion is recorded with every Score so historical rows stay
// interpretable when weights change. Bump on any formula change.
const FormulaVersion = "v1"

// Weights is the externally supplied scoring configuration. Scoring never
// reads globals — weights travel with the call so they can be tuned
// without re-deriving embeddings.
type Weights struct {
	Semantic float64
	Skills   float64
	Recency  float64
}

// DefaultWeights returns the standard weight configuration.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.55, Skills: 0.30, Recency: 0.15}
}

// RecencyCurve shapes the discovery-age decay: half-life exponential with
// a floor, so stale-but-excellent matches are downweighted but never to zero.
type RecencyCurve struct {
	HalfLife time.Duration
	Floor    float64
}

// DefaultRecencyCurve downweights with a 30-day half-life to a 0.25 floor.
func DefaultRecencyCurve() RecencyCurve {
	return RecencyCurve{HalfLife: 30 * 24 * time.Hour, Floor: 0.25}
}

// JobMeta carries the structured posting signals the scorer consumes.
type JobMeta struct {
	Title        string
	Description  string
	DiscoveredAt time.Time
}

// ResumeMeta carries the structured resume signals the scorer consumes.
type ResumeMeta struct {
	Skills []string
}

// Score is one scoring of a (resume, job) pair. Never mutated in place:
// a rescore produces a new record that supersedes this one.
type Score struct {
	OpportunityID OpportunityID `json:"opportunity_id"`
	Semantic      float64       `json:"semantic"`       // raw cosine, [-1,1]
	SkillsOverlap float64       `json:"skills_overlap"` // [0,1]
	Recency       float64       `json:"recency"`        // (0,1]
	Final         float64       `json:"final"`          // [0,1]
	Version       string        `json:"version"`
	ScoredAt      time.Time     `json:"scored_at"`
	MatchedSkills []string      `json:"matched_skills,omitempty"`
	MissingSkills []string      `json:"missing_skills,omitempty"`
}

// ScoreMatch combines semantic similarity, skills overlap and recency into
// one ranked score. Pure: identical inputs always yield an identical Score.
// Fails with ErrIncompatibleEmbeddingSpace when the embeddings come from
// different models — mixing vector spaces would silently corrupt scores.
func ScoreMatch(resume, job *Embedding, jobMeta JobMeta, resumeMeta ResumeMeta, w Weights, curve RecencyCurve, now time.Time) (*Score, error) {
	if resume.Model != job.Model {
		return nil, fmt.Errorf("score: resume model %q vs job model %q: %w",
			resume.Model, job.Model, engine.ErrIncompatibleEmbeddingSpace)
	}

	cos := CosineSimilarity(resume.Vector, job.Vector)
	semantic01 := (cos + 1) / 2 // scale [-1,1] → [0,1]

	overlap, matched, missing := skillsOverlap(resumeMeta.Skills, jobMeta.Title+"\n"+jobMeta.Description)
	rec := recencyFactor(now.Sub(jobMeta.DiscoveredAt), curve)

	total := w.Semantic + w.Skills + w.Recency
	if total <= 0 {
		return nil, fmt.Errorf("score: weights sum to %v", total)
	}
	final := (w.Semantic*semantic01 + w.Skills*overlap + w.Recency*rec) / total

	return &Score{
		OpportunityID: OpportunityID(job.ID),
		Semantic:      cos,
		SkillsOverlap: overlap,
		Recency:       rec,
		Final:         final,
		Version:       FormulaVersion,
		ScoredAt:      now,
		MatchedSkills: matched,
		MissingSkills: missing,
	}, nil
}

// skillsOverlap returns the ratio of job-required skill terms covered by
// the resume, plus the matched and missing term lists for review.
func skillsOverlap(resumeSkills []string, jobText string) (ratio float64, matched, missing []string) {
	required := ExtractSkills(jobText)
	if len(required) == 0 {
		return 0, nil, nil
	}
	have := make(map[string]bool, len(resumeSkills))
	for _, s := range resumeSkills {
		have[s] = true
	}
	for _, s := range required {
		if have[s] {
			matched = append(matched, s)
		} else {
			missing = append(missing, s)
		}
	}
	return float64(len(matched)) / float64(len(required)), matched, missing
}

// recencyFactor decays monotonically with age and never reaches zero.
func recencyFactor(age time.Duration, curve RecencyCurve) float64 {
	if age < 0 {
		age = 0
	}
	halfLife := curve.HalfLife
	if halfLife <= 0 {
		halfLife = DefaultRecencyCurve().HalfLife
	}
	floor := curve.Floor
	if floor <= 0 || floor >= 1 {
		floor = DefaultRecencyCurve().Floor
	}
	decay := math.Exp2(-float64(age) / float64(halfLife))
	return floor + (1-floor)*decay
}

// CosineSimilarity returns the normalized dot product of a and b, in
// [-1,1]. Zero when either vector has zero norm or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
