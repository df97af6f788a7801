// oppradar — resume-to-job opportunity radar.
//
// One entry point, no subcommands: search for postings, deduplicate
// against the ledger, embed and score the new ones against the resume,
// and persist everything under the data directory so the next run picks
// up exactly where this one left off.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/joho/godotenv"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
	"github.com/anatolykoptev/go_oppradar/internal/engine/radar"
)

var version = "dev"

// Exit codes: 0 clean, 1 unrecoverable, 2 completed with item failures.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	c := engine.Config{
		EmbedAPIKey:      env.Str("EMBED_API_KEY", ""),
		EmbedAPIBase:     env.Str("EMBED_API_BASE", "https://api.openai.com/v1"),
		EmbedModel:       env.Str("EMBED_MODEL", "text-embedding-3-small"),
		SearchAPIKey:     env.Str("SEARCH_API_KEY", ""),
		SearchAPIBase:    env.Str("SEARCH_API_BASE", "https://serpapi.com"),
		DataDir:          env.Str("DATA_DIR", "data"),
		ResumePath:       env.Str("RESUME_PATH", "resume.txt"),
		KeywordsPath:     env.Str("KEYWORDS_PATH", "keywords.csv"),
		EmbedConcurrency: env.Int("EMBED_CONCURRENCY", 4),
		EmbedRPS:         env.Float("EMBED_RPS", 2.0),
		EmbedTimeout:     env.Duration("EMBED_TIMEOUT", 20*time.Second),
		MaxInputChars:    env.Int("MAX_INPUT_CHARS", 6000),
		WeightSemantic:   env.Float("WEIGHT_SEMANTIC", 0.55),
		WeightSkills:     env.Float("WEIGHT_SKILLS", 0.30),
		WeightRecency:    env.Float("WEIGHT_RECENCY", 0.15),
		RecencyHalfLife:  env.Duration("RECENCY_HALF_LIFE", 30*24*time.Hour),
		RecencyFloor:     env.Float("RECENCY_FLOOR", 0.25),
		TitleKeywords:    env.List("TITLE_KEYWORDS", ""),
		GreenhouseBoards: env.List("GREENHOUSE_BOARDS", ""),
		LeverBoards:      env.List("LEVER_BOARDS", ""),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	if err := c.Validate(); err != nil {
		slog.Error("configuration invalid", slog.Any("error", err))
		return exitFatal
	}
	engine.Init(c)

	slog.Info("starting oppradar",
		slog.String("version", version),
		slog.String("data_dir", c.DataDir),
		slog.String("model", c.EmbedModel),
	)

	// A run may be aborted between jobs; idempotent upserts and the dedup
	// ledger make the next run resume safely.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vectors, err := radar.OpenVectorStore(filepath.Join(c.DataDir, "vectors.db"))
	if err != nil {
		slog.Error("vector store init failed", slog.Any("error", err))
		return exitFatal
	}
	defer vectors.Close()

	opps, err := radar.OpenOpportunityStore(filepath.Join(c.DataDir, "oppradar.db"))
	if err != nil {
		slog.Error("opportunity store init failed", slog.Any("error", err))
		return exitFatal
	}
	defer opps.Close()

	cache, err := radar.OpenEmbedCache(vectors.DB())
	if err != nil {
		slog.Error("embed cache init failed", slog.Any("error", err))
		return exitFatal
	}

	provider := radar.NewOpenAIProvider(c.EmbedAPIBase, c.EmbedAPIKey, c.EmbedModel,
		&http.Client{Timeout: c.EmbedTimeout})
	embedder := radar.NewEmbedder(provider, cache, radar.EmbedderOptions{
		ModelID:       c.EmbedModel,
		MaxInputChars: c.MaxInputChars,
		RPS:           c.EmbedRPS,
		Retry:         engine.DefaultRetryConfig,
	})

	resume, err := radar.BuildResumeProfile(ctx, c.ResumePath, embedder)
	if err != nil {
		slog.Error("resume load failed", slog.Any("error", err))
		return exitFatal
	}
	slog.Info("resume loaded",
		slog.Int("sections", len(resume.Doc.Sections)),
		slog.Int("skills", len(resume.Skills)),
	)

	queries, err := radar.LoadQueries(c.KeywordsPath)
	if err != nil {
		slog.Error("keywords load failed", slog.Any("error", err))
		return exitFatal
	}

	// Gather raw postings from the collaborators. Query-level failures
	// are logged and skipped; they never block the other sources.
	search := radar.NewSerpClient(c.SearchAPIBase, c.SearchAPIKey)
	var postings []radar.RawPosting
	for _, q := range queries {
		results, err := search.Search(ctx, q)
		if err != nil {
			slog.Warn("search query failed", slog.String("query", q), slog.Any("error", err))
			continue
		}
		postings = append(postings, results...)
	}
	boards := &radar.BoardSource{Greenhouse: c.GreenhouseBoards, Lever: c.LeverBoards}
	postings = append(postings, boards.Fetch(ctx)...)
	slog.Info("postings gathered", slog.Int("count", len(postings)))

	pl := &radar.Pipeline{
		Dedup:    radar.NewDeduplicator(opps),
		Embedder: embedder,
		Vectors:  vectors,
		Opps:     opps,
		Resume:   resume,
		Weights: radar.Weights{
			Semantic: c.WeightSemantic,
			Skills:   c.WeightSkills,
			Recency:  c.WeightRecency,
		},
		Curve:         radar.RecencyCurve{HalfLife: c.RecencyHalfLife, Floor: c.RecencyFloor},
		Concurrency:   min(c.EmbedConcurrency, 8),
		TitleKeywords: c.TitleKeywords,
	}

	summary, err := pl.Run(ctx, postings)
	if err != nil {
		slog.Error("pipeline failed", slog.Any("error", err))
		return exitFatal
	}

	printTop(ctx, opps)
	slog.Info("metrics\n" + engine.FormatMetrics())

	if len(summary.Failures) > 0 {
		for _, f := range summary.Failures {
			slog.Warn("item failure",
				slog.String("company", f.Company),
				slog.String("title", f.Title),
				slog.String("stage", f.Stage),
				slog.Any("error", f.Err))
		}
		return exitPartial
	}
	return exitOK
}

// printTop logs the current top-ranked opportunities for review.
func printTop(ctx context.Context, opps *radar.OpportunityStore) {
	for o, err := range opps.List(ctx, radar.Filter{Limit: 15}) {
		if err != nil {
			slog.Warn("listing failed", slog.Any("error", err))
			return
		}
		attrs := []any{
			slog.String("company", o.Company),
			slog.String("title", engine.TruncateAtWord(o.Title, 80)),
			slog.String("status", string(o.Status)),
		}
		if o.Latest != nil {
			attrs = append(attrs,
				slog.Float64("score", o.Latest.Final),
				slog.String("matched", strings.Join(o.Latest.MatchedSkills, ",")),
			)
		}
		slog.Info("opportunity", attrs...)
	}
}
