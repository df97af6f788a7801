package radar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// OpportunityStore is the durable ledger of every opportunity seen, its
// score history and its review status. Rows are never deleted — dismissed
// is a status — so dedup history survives across runs. Scores are
// append-only: a rescore supersedes, never overwrites.
type OpportunityStore struct {
	db *sql.DB
}

// OpenOpportunityStore opens (or creates) the ledger database at path.
func OpenOpportunityStore(path string) (*OpportunityStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initStoreSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &OpportunityStore{db: db}, nil
}

func initStoreSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS opportunities (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		company       TEXT NOT NULL,
		url           TEXT,
		fingerprint   TEXT NOT NULL,
		discovered_at TEXT NOT NULL,
		first_seen_at TEXT NOT NULL,
		last_seen_at  TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'new'
	);
	CREATE TABLE IF NOT EXISTS scores (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		opportunity_id TEXT NOT NULL REFERENCES opportunities(id),
		semantic       REAL NOT NULL,
		skills_overlap REAL NOT NULL,
		recency        REAL NOT NULL,
		final          REAL NOT NULL,
		version        TEXT NOT NULL,
		scored_at      TEXT NOT NULL,
		matched        TEXT,
		missing        TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_scores_opp ON scores(opportunity_id, scored_at DESC);`)
	return err
}

// Close closes the database.
func (s *OpportunityStore) Close() error { return s.db.Close() }

// Exists reports whether id has ever been recorded.
func (s *OpportunityStore) Exists(ctx context.Context, id OpportunityID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM opportunities WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return true, nil
}

// Record upserts the posting metadata and appends the score, if any.
// Status is initialized to "new" only on first creation; a first score
// promotes new→scored, and rescoring never resets an operator-set status.
func (s *OpportunityStore) Record(ctx context.Context, id OpportunityID, p *JobPosting, sc *Score) error {
	if id == "" || p == nil {
		return errors.New("store: record requires id and posting")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO opportunities (id, title, company, url, fingerprint, discovered_at, first_seen_at, last_seen_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'new')
		 ON CONFLICT(id) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		id, p.Title, p.Company, p.URL, Fingerprint(p.Description),
		p.DiscoveredAt.UTC().Format(time.RFC3339), now, now)
	if err != nil {
		return fmt.Errorf("store: record upsert: %w", err)
	}

	if sc != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scores (opportunity_id, semantic, skills_overlap, recency, final, version, scored_at, matched, missing)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sc.Semantic, sc.SkillsOverlap, sc.Recency, sc.Final, sc.Version,
			sc.ScoredAt.UTC().Format(time.RFC3339Nano),
			strings.Join(sc.MatchedSkills, ","), strings.Join(sc.MissingSkills, ","))
		if err != nil {
			return fmt.Errorf("store: record score: %w", err)
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE opportunities SET status = 'scored' WHERE id = ? AND status = 'new'`, id); err != nil {
			return fmt.Errorf("store: record promote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: record commit: %w", err)
	}
	return nil
}

// Touch updates last_seen_at for an already-known opportunity, confirming
// a re-sighting without changing its identity, score or status.
func (s *OpportunityStore) Touch(ctx context.Context, id OpportunityID) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET last_seen_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("store: touch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: touch %q: %w", id, engine.ErrNotFound)
	}
	return nil
}

// SetStatus applies an operator transition. "new" only applies before the
// first score; every other status may be set freely.
func (s *OpportunityStore) SetStatus(ctx context.Context, id OpportunityID, status Status) error {
	if !ValidStatus(string(status)) {
		return fmt.Errorf("store: invalid status %q (valid: new, scored, dismissed, applied)", status)
	}
	if status == StatusNew {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM scores WHERE opportunity_id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("store: set status: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("store: %q already scored, cannot return to 'new'", id)
		}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE opportunities SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: set status %q: %w", id, engine.ErrNotFound)
	}
	return nil
}

// LatestScore returns the most recent score for id, or ErrNotFound.
func (s *OpportunityStore) LatestScore(ctx context.Context, id OpportunityID) (*Score, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT semantic, skills_overlap, recency, final, version, scored_at, matched, missing
		 FROM scores WHERE opportunity_id = ? ORDER BY scored_at DESC, id DESC LIMIT 1`, id)
	sc, err := scanScore(row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: no score for %q: %w", id, engine.ErrNotFound)
	}
	return sc, err
}

// ScoreCount returns the number of score records for id.
func (s *OpportunityStore) ScoreCount(ctx context.Context, id OpportunityID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores WHERE opportunity_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: score count: %w", err)
	}
	return n, nil
}

// Filter narrows List results.
type Filter struct {
	Status   Status  // "" = all
	Company  string  // exact match, "" = all
	MinFinal float64 // 0 = all
	Limit    int     // 0 = all
}

// List returns a lazy, restartable sequence of opportunities joined with
// their latest score, ordered by final score descending, ties broken by
// discovery recency then raw semantic similarity. Each range re-queries,
// so the sequence can be iterated any number of times.
func (s *OpportunityStore) List(ctx context.Context, f Filter) iter.Seq2[*Opportunity, error] {
	return func(yield func(*Opportunity, error) bool) {
		query := `
		SELECT o.id, o.title, o.company, o.url, o.discovered_at, o.first_seen_at, o.last_seen_at, o.status,
		       s.semantic, s.skills_overlap, s.recency, s.final, s.version, s.scored_at, s.matched, s.missing
		FROM opportunities o
		LEFT JOIN scores s ON s.id = (
			SELECT id FROM scores WHERE opportunity_id = o.id ORDER BY scored_at DESC, id DESC LIMIT 1
		)`
		var conds []string
		var args []any
		if f.Status != "" {
			conds = append(conds, "o.status = ?")
			args = append(args, f.Status)
		}
		if f.Company != "" {
			conds = append(conds, "o.company = ?")
			args = append(args, f.Company)
		}
		if f.MinFinal > 0 {
			conds = append(conds, "s.final >= ?")
			args = append(args, f.MinFinal)
		}
		if len(conds) > 0 {
			query += " WHERE " + strings.Join(conds, " AND ")
		}
		query += ` ORDER BY COALESCE(s.final, -1) DESC, o.discovered_at DESC, COALESCE(s.semantic, -2) DESC`
		if f.Limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", f.Limit)
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("store: list: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var o Opportunity
			var url sql.NullString
			var discovered, firstSeen, lastSeen string
			var semantic, overlap, recency, final sql.NullFloat64
			var version, scoredAt, matched, missing sql.NullString
			if err := rows.Scan(&o.ID, &o.Title, &o.Company, &url, &discovered, &firstSeen, &lastSeen, &o.Status,
				&semantic, &overlap, &recency, &final, &version, &scoredAt, &matched, &missing); err != nil {
				yield(nil, fmt.Errorf("store: list scan: %w", err))
				return
			}
			o.URL = url.String
			o.DiscoveredAt, _ = time.Parse(time.RFC3339, discovered)
			o.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeen)
			o.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)
			if final.Valid {
				sc := &Score{
					OpportunityID: o.ID,
					Semantic:      semantic.Float64,
					SkillsOverlap: overlap.Float64,
					Recency:       recency.Float64,
					Final:         final.Float64,
					Version:       version.String,
				}
				sc.ScoredAt, _ = time.Parse(time.RFC3339Nano, scoredAt.String)
				sc.MatchedSkills = splitList(matched.String)
				sc.MissingSkills = splitList(missing.String)
				o.Latest = sc
			}
			if !yield(&o, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("store: list rows: %w", err))
		}
	}
}

func scanScore(row *sql.Row, id OpportunityID) (*Score, error) {
	var sc Score
	var scoredAt string
	var matched, missing sql.NullString
	err := row.Scan(&sc.Semantic, &sc.SkillsOverlap, &sc.Recency, &sc.Final, &sc.Version, &scoredAt, &matched, &missing)
	if err != nil {
		return nil, err
	}
	sc.OpportunityID = id
	sc.ScoredAt, _ = time.Parse(time.RFC3339Nano, scoredAt)
	sc.MatchedSkills = splitList(matched.String)
	sc.MissingSkills = splitList(missing.String)
	return &sc, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
