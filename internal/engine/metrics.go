package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across a run.
var metrics struct {
	SearchRequests     atomic.Int64
	GreenhouseRequests atomic.Int64
	LeverRequests      atomic.Int64
	ProviderCalls      atomic.Int64
	ProviderErrors     atomic.Int64
	EmbedCacheHits     atomic.Int64
	EmbedCacheMisses   atomic.Int64
	PostingsSeen       atomic.Int64
	PostingsNew        atomic.Int64
	PostingsScored     atomic.Int64
	PostingsFailed     atomic.Int64
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"search_requests":     metrics.SearchRequests.Load(),
		"greenhouse_requests": metrics.GreenhouseRequests.Load(),
		"lever_requests":      metrics.LeverRequests.Load(),
		"provider_calls":      metrics.ProviderCalls.Load(),
		"provider_errors":     metrics.ProviderErrors.Load(),
		"embed_cache_hits":    metrics.EmbedCacheHits.Load(),
		"embed_cache_misses":  metrics.EmbedCacheMisses.Load(),
		"postings_seen":       metrics.PostingsSeen.Load(),
		"postings_new":        metrics.PostingsNew.Load(),
		"postings_scored":     metrics.PostingsScored.Load(),
		"postings_failed":     metrics.PostingsFailed.Load(),
	}
}

// FormatMetrics returns counters as simple text for the end-of-run summary.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"search_requests", "greenhouse_requests", "lever_requests",
		"provider_calls", "provider_errors",
		"embed_cache_hits", "embed_cache_misses",
		"postings_seen", "postings_new", "postings_scored", "postings_failed",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the radar sub-package.
func IncrSearchRequests()     { metrics.SearchRequests.Add(1) }
func IncrGreenhouseRequests() { metrics.GreenhouseRequests.Add(1) }
func IncrLeverRequests()      { metrics.LeverRequests.Add(1) }
func IncrProviderCalls()      { metrics.ProviderCalls.Add(1) }
func IncrProviderErrors()     { metrics.ProviderErrors.Add(1) }
func IncrEmbedCacheHits()     { metrics.EmbedCacheHits.Add(1) }
func IncrEmbedCacheMisses()   { metrics.EmbedCacheMisses.Add(1) }
func IncrPostingsSeen()       { metrics.PostingsSeen.Add(1) }
func IncrPostingsNew()        { metrics.PostingsNew.Add(1) }
func IncrPostingsScored()     { metrics.PostingsScored.Add(1) }
func IncrPostingsFailed()     { metrics.PostingsFailed.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
