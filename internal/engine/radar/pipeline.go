package radar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// Pipeline runs one batch: dedup → normalize → embed → upsert → score →
// record. Provider calls fan out with bounded concurrency; everything
// else is cheap enough to stay inline.
type Pipeline struct {
	Dedup         *Deduplicator
	Embedder      *Embedder
	Vectors       *VectorStore
	Opps          *OpportunityStore
	Resume        *ResumeProfile
	Weights       Weights
	Curve         RecencyCurve
	Concurrency   int      // provider fan-out; 0 = 4
	TitleKeywords []string // pre-embedding relevance gate; empty = accept all
}

// ItemFailure is one per-item failure accumulated during a run.
type ItemFailure struct {
	Company string
	Title   string
	Stage   string
	Err     error
}

// RunSummary reports what a run did. Per-item failures never abort the
// batch; they are collected here and surfaced at the end.
type RunSummary struct {
	RunID    string
	Seen     int // postings handed to the pipeline
	Known    int // already in the ledger, re-sighting confirmed
	Skipped  int // filtered by the title gate
	Scored   int // newly scored opportunities
	Failures []ItemFailure
	Elapsed  time.Duration
}

// Run processes a batch of raw postings against the loaded resume.
// A non-nil error means the run aborted (storage failure or incompatible
// embedding space); partial progress already persisted remains valid.
func (pl *Pipeline) Run(ctx context.Context, postings []RawPosting) (*RunSummary, error) {
	start := time.Now()
	sum := &RunSummary{RunID: uuid.NewString()}
	slog.Info("run started", slog.String("run_id", sum.RunID), slog.Int("postings", len(postings)))

	// Identity pass: serial, cheap, needs ledger reads.
	var fresh []*JobPosting
	seenIDs := make(map[OpportunityID]bool) // collapse duplicates inside the batch
	for i := range postings {
		raw := &postings[i]
		engine.IncrPostingsSeen()
		sum.Seen++

		if !pl.titleRelevant(raw.Title) {
			sum.Skipped++
			continue
		}

		p := &JobPosting{
			Title:        raw.Title,
			Company:      raw.Company,
			Description:  raw.Description,
			URL:          raw.URL,
			DiscoveredAt: raw.DiscoveredAt,
		}
		p.ID = pl.Dedup.IdentityOf(p)
		if seenIDs[p.ID] {
			sum.Known++
			continue
		}
		seenIDs[p.ID] = true

		isNew, err := pl.Dedup.IsNew(ctx, p.ID)
		if err != nil {
			return sum, fmt.Errorf("pipeline: %w", err)
		}
		if !isNew {
			if err := pl.Opps.Touch(ctx, p.ID); err != nil {
				return sum, fmt.Errorf("pipeline: %w", err)
			}
			sum.Known++
			continue
		}
		engine.IncrPostingsNew()
		fresh = append(fresh, p)
	}

	// Embed and score new postings with bounded provider fan-out. Jobs
	// may complete in any order; each job's scoring stays attached to
	// its own posting, so ranking depends only on computed scores.
	concurrency := pl.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	fail := func(p *JobPosting, stage string, err error) {
		engine.IncrPostingsFailed()
		slog.Warn("posting failed",
			slog.String("stage", stage),
			slog.String("company", p.Company),
			slog.String("title", p.Title),
			slog.Any("error", err))
		mu.Lock()
		sum.Failures = append(sum.Failures, ItemFailure{Company: p.Company, Title: p.Title, Stage: stage, Err: err})
		mu.Unlock()
	}

	for _, p := range fresh {
		g.Go(func() error {
			doc, err := Normalize(p.Title+"\n\n"+p.Description, SourceJob)
			if err != nil {
				if errors.Is(err, engine.ErrMalformedDocument) {
					fail(p, "normalize", err)
					return nil
				}
				return err
			}

			emb, err := pl.Embedder.Embed(gctx, doc, string(p.ID))
			if err != nil {
				if errors.Is(err, engine.ErrProviderUnavailable) || errors.Is(err, engine.ErrProviderRejected) {
					fail(p, "embed", err)
					return nil
				}
				return err
			}

			if err := pl.Vectors.Upsert(gctx, emb); err != nil {
				return err
			}

			sc, err := ScoreMatch(pl.Resume.Embedding, emb,
				JobMeta{Title: p.Title, Description: p.Description, DiscoveredAt: p.DiscoveredAt},
				ResumeMeta{Skills: pl.Resume.Skills},
				pl.Weights, pl.Curve, time.Now().UTC())
			if err != nil {
				return err // incompatible space: all further scores would be meaningless
			}

			if err := pl.Opps.Record(gctx, p.ID, p, sc); err != nil {
				return err
			}
			engine.IncrPostingsScored()
			mu.Lock()
			sum.Scored++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sum.Elapsed = time.Since(start)
	if err != nil {
		slog.Error("run aborted", slog.String("run_id", sum.RunID), slog.Any("error", err))
		return sum, err
	}

	slog.Info("run finished",
		slog.String("run_id", sum.RunID),
		slog.Int("seen", sum.Seen),
		slog.Int("known", sum.Known),
		slog.Int("skipped", sum.Skipped),
		slog.Int("scored", sum.Scored),
		slog.Int("failed", len(sum.Failures)),
		slog.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

func (pl *Pipeline) titleRelevant(title string) bool {
	if len(pl.TitleKeywords) == 0 {
		return true
	}
	t := strings.ToLower(title)
	for _, kw := range pl.TitleKeywords {
		if strings.Contains(t, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
