package radar

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// EmbedCache provides 2-tier caching of provider calls keyed by content
// hash: L1 in-memory for the current run, L2 SQLite so re-runs never
// re-pay the provider for text already embedded. L2 lives in the same
// database file as the vector store.
type EmbedCache struct {
	l1 sync.Map // key → []float32
	db *sql.DB
}

// OpenEmbedCache prepares the cache table on db.
func OpenEmbedCache(db *sql.DB) (*EmbedCache, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS embed_cache (
		key        TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		dim        INTEGER NOT NULL,
		vector     BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("embedcache: init schema: %w", err)
	}
	return &EmbedCache{db: db}, nil
}

// CacheKey builds a deterministic key from the model id and exact input text.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "|" + text))
	return fmt.Sprintf("ec:%x", sum[:12])
}

// Get tries L1, then L2. On L2 hit, populates L1.
func (c *EmbedCache) Get(ctx context.Context, key string) ([]float32, bool) {
	if val, ok := c.l1.Load(key); ok {
		engine.IncrEmbedCacheHits()
		return val.([]float32), true
	}

	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT vector FROM embed_cache WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) || err != nil {
		engine.IncrEmbedCacheMisses()
		return nil, false
	}
	vec, derr := decodeVector(blob)
	if derr != nil {
		engine.IncrEmbedCacheMisses()
		return nil, false
	}
	c.l1.Store(key, vec)
	engine.IncrEmbedCacheHits()
	return vec, true
}

// Put stores a vector in both tiers. Cache write failures are not fatal —
// the embedding itself already succeeded.
func (c *EmbedCache) Put(ctx context.Context, key, model string, vec []float32) error {
	c.l1.Store(key, vec)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO embed_cache (key, model, dim, vector, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET vector=excluded.vector, dim=excluded.dim`,
		key, model, len(vec), encodeVector(vec), now)
	if err != nil {
		return fmt.Errorf("embedcache: put: %w", err)
	}
	return nil
}
