package radar

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// RawPosting is what the ingestion collaborators hand to the core.
type RawPosting struct {
	Title        string
	Company      string
	Description  string
	URL          string
	DiscoveredAt time.Time
}

// SearchProvider is the job-search collaborator contract: one capability,
// so a test double can substitute deterministic fixtures.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]RawPosting, error)
}

// SerpClient queries a SerpAPI-compatible google_jobs endpoint.
type SerpClient struct {
	baseURL string
	apiKey  string
}

// NewSerpClient creates a search client.
func NewSerpClient(baseURL, apiKey string) *SerpClient {
	return &SerpClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// Search runs one query and maps results to raw postings.
func (c *SerpClient) Search(ctx context.Context, query string) ([]RawPosting, error) {
	engine.IncrSearchRequests()

	q := url.Values{}
	q.Set("engine", "google_jobs")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)

	var raw struct {
		JobsResults []struct {
			Title       string `json:"title"`
			CompanyName string `json:"company_name"`
			Description string `json:"description"`
			ShareLink   string `json:"share_link"`
			ApplyLink   string `json:"apply_link"`
		} `json:"jobs_results"`
	}
	if err := engine.FetchJSON(ctx, c.baseURL+"/search.json?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	now := time.Now().UTC()
	postings := make([]RawPosting, 0, len(raw.JobsResults))
	for _, j := range raw.JobsResults {
		link := j.ShareLink
		if link == "" {
			link = j.ApplyLink
		}
		postings = append(postings, RawPosting{
			Title:        j.Title,
			Company:      j.CompanyName,
			Description:  j.Description,
			URL:          link,
			DiscoveredAt: now,
		})
	}
	return postings, nil
}

// LoadQueries reads the newline-delimited search term list: one query per
// line, no header row, blank lines skipped.
func LoadQueries(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("queries: read %s: %w", path, err)
	}
	var queries []string
	for _, line := range strings.Split(string(b), "\n") {
		if q := strings.TrimSpace(line); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("queries: %s contains no queries", path)
	}
	return queries, nil
}
