package radar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// BoardSource pulls postings straight from company job boards, keyed by
// board slug. Per-board failures are logged and skipped — a dead board
// never blocks the rest of the run.
type BoardSource struct {
	Greenhouse []string
	Lever      []string
}

// Fetch gathers postings from all configured boards.
func (b *BoardSource) Fetch(ctx context.Context) []RawPosting {
	var postings []RawPosting
	for _, slug := range b.Greenhouse {
		jobs, err := fetchGreenhouse(ctx, slug)
		if err != nil {
			slog.Warn("greenhouse board failed", slog.String("board", slug), slog.Any("error", err))
			continue
		}
		postings = append(postings, jobs...)
	}
	for _, slug := range b.Lever {
		jobs, err := fetchLever(ctx, slug)
		if err != nil {
			slog.Warn("lever board failed", slog.String("board", slug), slog.Any("error", err))
			continue
		}
		postings = append(postings, jobs...)
	}
	return postings
}

// fetchGreenhouse pulls open roles from a Greenhouse board.
func fetchGreenhouse(ctx context.Context, slug string) ([]RawPosting, error) {
	engine.IncrGreenhouseRequests()

	var raw struct {
		Jobs []struct {
			Title       string `json:"title"`
			AbsoluteURL string `json:"absolute_url"`
			Content     string `json:"content"`
			UpdatedAt   string `json:"updated_at"`
		} `json:"jobs"`
	}
	url := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true", slug)
	if err := engine.FetchJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("greenhouse %s: %w", slug, err)
	}

	now := time.Now().UTC()
	postings := make([]RawPosting, 0, len(raw.Jobs))
	for _, j := range raw.Jobs {
		discovered := now
		if t, err := time.Parse(time.RFC3339, j.UpdatedAt); err == nil {
			discovered = t
		}
		postings = append(postings, RawPosting{
			Title:        j.Title,
			Company:      slug,
			Description:  j.Content, // HTML; the normalizer converts it
			URL:          j.AbsoluteURL,
			DiscoveredAt: discovered,
		})
	}
	return postings, nil
}

// fetchLever pulls open roles from a Lever board.
func fetchLever(ctx context.Context, slug string) ([]RawPosting, error) {
	engine.IncrLeverRequests()

	var raw []struct {
		Text             string `json:"text"`
		HostedURL        string `json:"hostedUrl"`
		DescriptionPlain string `json:"descriptionPlain"`
		CreatedAt        int64  `json:"createdAt"` // epoch millis
	}
	url := fmt.Sprintf("https://api.lever.co/v1/postings/%s?mode=json", slug)
	if err := engine.FetchJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("lever %s: %w", slug, err)
	}

	now := time.Now().UTC()
	postings := make([]RawPosting, 0, len(raw))
	for _, j := range raw {
		discovered := now
		if j.CreatedAt > 0 {
			discovered = time.UnixMilli(j.CreatedAt).UTC()
		}
		postings = append(postings, RawPosting{
			Title:        j.Text,
			Company:      slug,
			Description:  j.DescriptionPlain,
			URL:          j.HostedURL,
			DiscoveredAt: discovered,
		})
	}
	return postings, nil
}
