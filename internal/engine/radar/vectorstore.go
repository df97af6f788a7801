package radar

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// VectorStore persists embeddings in SQLite, keyed by opportunity id.
// Every upsert is durable before the call returns. All vectors in one
// store must share a model — nearest-neighbor queries across mismatched
// model spaces fail instead of returning silently-wrong similarities.
type VectorStore struct {
	db *sql.DB
}

// OpenVectorStore opens (or creates) the vector database at path.
func OpenVectorStore(path string) (*VectorStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("vectorstore: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		id         TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		dim        INTEGER NOT NULL,
		vector     BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: init schema: %w", err)
	}
	return &VectorStore{db: db}, nil
}

// DB exposes the underlying handle so the embed cache can share the file.
func (s *VectorStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *VectorStore) Close() error { return s.db.Close() }

// Upsert stores e, replacing any prior embedding for the same id.
// Idempotent; a bit-identical write is a silent no-op.
func (s *VectorStore) Upsert(ctx context.Context, e *Embedding) error {
	if e.ID == "" || len(e.Vector) == 0 {
		return errors.New("vectorstore: upsert requires id and vector")
	}
	blob := encodeVector(e.Vector)

	var prevModel string
	var prevBlob []byte
	err := s.db.QueryRowContext(ctx, `SELECT model, vector FROM embeddings WHERE id = ?`, e.ID).
		Scan(&prevModel, &prevBlob)
	if err == nil && prevModel == e.Model && bytes.Equal(prevBlob, blob) {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("vectorstore: upsert read: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embeddings (id, model, dim, vector, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET model=excluded.model, dim=excluded.dim,
		 vector=excluded.vector, updated_at=excluded.updated_at`,
		e.ID, e.Model, len(e.Vector), blob, now)
	if err != nil {
		return fmt.Errorf("vectorstore: upsert: %w", err)
	}
	return nil
}

// Get returns the embedding stored under id, or ErrNotFound.
func (s *VectorStore) Get(ctx context.Context, id string) (*Embedding, error) {
	var e Embedding
	var blob []byte
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, model, vector, updated_at FROM embeddings WHERE id = ?`, id).
		Scan(&e.ID, &e.Model, &blob, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vectorstore: id %q: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get: %w", err)
	}
	e.Vector, err = decodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get %q: %w", id, err)
	}
	if t, perr := time.Parse(time.RFC3339, updatedAt); perr == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

// Neighbor is one nearest-neighbor result.
type Neighbor struct {
	ID         string
	Similarity float64
}

// QueryNearest returns up to k stored embeddings ordered by descending
// cosine similarity to vec. The query vector's model must match every
// stored entry; a mismatch fails with ErrIncompatibleEmbeddingSpace.
func (s *VectorStore) QueryNearest(ctx context.Context, vec []float32, model string, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, model, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var id, m string
		var blob []byte
		if err := rows.Scan(&id, &m, &blob); err != nil {
			return nil, fmt.Errorf("vectorstore: scan: %w", err)
		}
		if m != model {
			return nil, fmt.Errorf("vectorstore: query model %q vs stored model %q for %q: %w",
				model, m, id, engine.ErrIncompatibleEmbeddingSpace)
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: decode %q: %w", id, err)
		}
		neighbors = append(neighbors, Neighbor{ID: id, Similarity: CosineSimilarity(vec, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: rows: %w", err)
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].ID < neighbors[j].ID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 vector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
