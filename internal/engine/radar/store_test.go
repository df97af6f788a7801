package radar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

func posting(title, company, desc string) *JobPosting {
	p := &JobPosting{Title: title, Company: company, Description: desc, DiscoveredAt: time.Now().UTC()}
	p.ID = NewDeduplicator(nil).IdentityOf(p)
	return p
}

func scoreOf(id OpportunityID, final float64, at time.Time) *Score {
	return &Score{
		OpportunityID: id,
		Semantic:      final,
		SkillsOverlap: final,
		Recency:       1,
		Final:         final,
		Version:       FormulaVersion,
		ScoredAt:      at,
		MatchedSkills: []string{"go"},
		MissingSkills: []string{"rust"},
	}
}

func TestStoreRecordWithoutScoreStaysNew(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	p := posting("Backend Engineer", "Acme", "We use Go.")

	require.NoError(t, store.Record(ctx, p.ID, p, nil))

	var got *Opportunity
	for o, err := range store.List(ctx, Filter{}) {
		require.NoError(t, err)
		got = o
	}
	require.NotNil(t, got)
	assert.Equal(t, StatusNew, got.Status)
	assert.Nil(t, got.Latest)
}

func TestStoreFirstScorePromotesToScored(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	p := posting("Backend Engineer", "Acme", "We use Go.")

	require.NoError(t, store.Record(ctx, p.ID, p, scoreOf(p.ID, 0.8, time.Now())))

	for o, err := range store.List(ctx, Filter{}) {
		require.NoError(t, err)
		assert.Equal(t, StatusScored, o.Status)
		require.NotNil(t, o.Latest)
		assert.InDelta(t, 0.8, o.Latest.Final, 1e-9)
		assert.Equal(t, []string{"go"}, o.Latest.MatchedSkills)
		assert.Equal(t, []string{"rust"}, o.Latest.MissingSkills)
	}
}

func TestStoreRescoreAppendsAndKeepsOperatorStatus(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	p := posting("Backend Engineer", "Acme", "We use Go.")

	now := time.Now()
	require.NoError(t, store.Record(ctx, p.ID, p, scoreOf(p.ID, 0.5, now)))
	require.NoError(t, store.SetStatus(ctx, p.ID, StatusDismissed))

	// Rescoring supersedes the old score but never resets the status.
	require.NoError(t, store.Record(ctx, p.ID, p, scoreOf(p.ID, 0.9, now.Add(time.Minute))))

	n, err := store.ScoreCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	latest, err := store.LatestScore(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, latest.Final, 1e-9)

	for o, err := range store.List(ctx, Filter{}) {
		require.NoError(t, err)
		assert.Equal(t, StatusDismissed, o.Status)
		assert.InDelta(t, 0.9, o.Latest.Final, 1e-9)
	}
}

func TestStoreTouch(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	p := posting("Backend Engineer", "Acme", "We use Go.")
	require.NoError(t, store.Record(ctx, p.ID, p, nil))

	require.NoError(t, store.Touch(ctx, p.ID))

	err := store.Touch(ctx, "no-such-id")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSetStatusRules(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	p := posting("Backend Engineer", "Acme", "We use Go.")
	require.NoError(t, store.Record(ctx, p.ID, p, scoreOf(p.ID, 0.7, time.Now())))

	assert.Error(t, store.SetStatus(ctx, p.ID, Status("archived")))
	assert.Error(t, store.SetStatus(ctx, p.ID, StatusNew), "scored opportunity cannot return to new")
	assert.NoError(t, store.SetStatus(ctx, p.ID, StatusApplied))

	err := store.SetStatus(ctx, "no-such-id", StatusDismissed)
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreLatestScoreNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.LatestScore(context.Background(), "no-such-id")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	now := time.Now()
	low := posting("Data Engineer", "Acme", "ETL pipelines in Python.")
	high := posting("Backend Engineer", "Globex", "Distributed systems in Go.")
	unscored := posting("Platform Engineer", "Initech", "Kubernetes platform work.")

	require.NoError(t, store.Record(ctx, low.ID, low, scoreOf(low.ID, 0.3, now)))
	require.NoError(t, store.Record(ctx, high.ID, high, scoreOf(high.ID, 0.9, now)))
	require.NoError(t, store.Record(ctx, unscored.ID, unscored, nil))

	var order []string
	for o, err := range store.List(ctx, Filter{}) {
		require.NoError(t, err)
		order = append(order, o.Company)
	}
	// Scored rows rank above unscored, best final first.
	assert.Equal(t, []string{"Globex", "Acme", "Initech"}, order)

	var n int
	for o, err := range store.List(ctx, Filter{MinFinal: 0.5}) {
		require.NoError(t, err)
		assert.Equal(t, "Globex", o.Company)
		n++
	}
	assert.Equal(t, 1, n)

	n = 0
	for _, err := range store.List(ctx, Filter{Status: StatusNew}) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)

	n = 0
	for _, err := range store.List(ctx, Filter{Limit: 2}) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestStoreListIsRestartable(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	p := posting("Backend Engineer", "Acme", "We use Go.")
	require.NoError(t, store.Record(ctx, p.ID, p, nil))

	seq := store.List(ctx, Filter{})
	for range 2 {
		var n int
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		assert.Equal(t, 1, n, "each range over the sequence re-queries")
	}
}
