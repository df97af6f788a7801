package engine

import (
	"errors"
	"net/http"
	"time"
)

// Config holds all pipeline configuration, injected from main.
type Config struct {
	EmbedAPIKey   string
	EmbedAPIBase  string // OpenAI-compatible endpoint base
	EmbedModel    string
	SearchAPIKey  string
	SearchAPIBase string

	DataDir      string
	ResumePath   string
	KeywordsPath string

	EmbedConcurrency int           // bounded provider fan-out
	EmbedRPS         float64       // provider rate limit (requests/sec)
	EmbedTimeout     time.Duration // per-call timeout
	MaxInputChars    int           // cap on text sent per provider call

	WeightSemantic  float64
	WeightSkills    float64
	WeightRecency   float64
	RecencyHalfLife time.Duration
	RecencyFloor    float64

	TitleKeywords    []string // pre-embedding relevance gate; empty = accept all
	GreenhouseBoards []string
	LeverBoards      []string

	HTTPClient *http.Client
}

// Validate checks startup-time requirements. Missing credentials are a
// fatal configuration error, not a per-call one.
func (c *Config) Validate() error {
	if c.EmbedAPIKey == "" {
		return errors.New("config: EMBED_API_KEY is required")
	}
	if c.SearchAPIKey == "" {
		return errors.New("config: SEARCH_API_KEY is required")
	}
	if c.DataDir == "" {
		return errors.New("config: data directory must not be empty")
	}
	return nil
}

var cfg Config

// Cfg exposes the pipeline configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
