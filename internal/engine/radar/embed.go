package radar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// Provider is the single-capability embedding interface. A test double
// substitutes deterministic fixtures; the real one makes a blocking
// network call. Returns the vector and the model id that produced it.
type Provider interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

// OpenAIProvider talks to an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewOpenAIProvider creates a provider client. A nil httpClient gets a
// default with a 60s timeout.
func NewOpenAIProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIProvider{baseURL: baseURL, apiKey: apiKey, model: model, http: httpClient}
}

// EmbedText requests one embedding. Transport failures, 429 and 5xx map
// to ErrProviderUnavailable (retryable); other non-200s map to
// ErrProviderRejected (the input is the problem, retrying won't help).
func (p *OpenAIProvider) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	body, err := json.Marshal(map[string]any{
		"model": p.model,
		"input": text,
	})
	if err != nil {
		return nil, "", fmt.Errorf("embed: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("embed: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	engine.IncrProviderCalls()
	resp, err := p.http.Do(req)
	if err != nil {
		engine.IncrProviderErrors()
		return nil, "", fmt.Errorf("embed: %w: %v", engine.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		engine.IncrProviderErrors()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if engine.IsRetryableStatus(resp.StatusCode) {
			return nil, "", fmt.Errorf("embed: %w: status %d: %s", engine.ErrProviderUnavailable, resp.StatusCode, b)
		}
		return nil, "", fmt.Errorf("embed: %w: status %d: %s", engine.ErrProviderRejected, resp.StatusCode, b)
	}

	var raw struct {
		Model string `json:"model"`
		Data  []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		engine.IncrProviderErrors()
		return nil, "", fmt.Errorf("embed: %w: decode: %v", engine.ErrProviderUnavailable, err)
	}
	if len(raw.Data) == 0 || len(raw.Data[0].Embedding) == 0 {
		engine.IncrProviderErrors()
		return nil, "", fmt.Errorf("embed: %w: empty embedding in response", engine.ErrProviderRejected)
	}
	model := raw.Model
	if model == "" {
		model = p.model
	}
	return raw.Data[0].Embedding, model, nil
}

// EmbedderOptions is the explicit configuration for an Embedder.
type EmbedderOptions struct {
	ModelID       string  // expected model; used for cache keying
	MaxInputChars int     // 0 = no cap
	RPS           float64 // 0 = no rate limit
	Retry         engine.RetryConfig
}

// Embedder converts structured documents into embeddings via a Provider,
// with content-hash caching, rate limiting and bounded retry.
type Embedder struct {
	provider Provider
	cache    *EmbedCache // nil disables caching
	limiter  *rate.Limiter
	opts     EmbedderOptions
}

// NewEmbedder wires a provider with the given options.
func NewEmbedder(p Provider, cache *EmbedCache, opts EmbedderOptions) *Embedder {
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialWait == 0 {
		opts.Retry = engine.DefaultRetryConfig
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Embedder{provider: p, cache: cache, limiter: limiter, opts: opts}
}

// Embed embeds the pooled document text under the given entity id.
func (e *Embedder) Embed(ctx context.Context, doc *StructuredDocument, id string) (*Embedding, error) {
	text := doc.Pooled()
	if e.opts.MaxInputChars > 0 {
		text = engine.TruncateRunes(text, e.opts.MaxInputChars, "")
	}

	key := CacheKey(e.opts.ModelID, text)
	if e.cache != nil {
		if vec, ok := e.cache.Get(ctx, key); ok {
			return &Embedding{ID: id, Model: e.opts.ModelID, Vector: vec, CreatedAt: time.Now().UTC()}, nil
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	type result struct {
		vec   []float32
		model string
	}
	var res result
	err := engine.TrackOperation(ctx, "embed "+id, func(ctx context.Context) error {
		var rerr error
		res, rerr = engine.RetryDo(ctx, e.opts.Retry, func() (result, error) {
			vec, model, err := e.provider.EmbedText(ctx, text)
			return result{vec, model}, err
		})
		return rerr
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cerr := e.cache.Put(ctx, key, res.model, res.vec); cerr != nil {
			slog.Warn("embed cache write failed", slog.String("id", id), slog.Any("error", cerr))
		}
	}
	return &Embedding{ID: id, Model: res.model, Vector: res.vec, CreatedAt: time.Now().UTC()}, nil
}
