package radar

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

var scoreNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func emb(id string, vec ...float32) *Embedding {
	return &Embedding{ID: id, Model: "test-embed-1", Vector: vec}
}

func TestScoreMatchDeterministic(t *testing.T) {
	resume := emb("resume", 1, 0, 1)
	job := emb("job-1", 1, 1, 0)
	meta := JobMeta{Title: "Backend Engineer", Description: "requires Python and SQL", DiscoveredAt: scoreNow.Add(-24 * time.Hour)}
	rm := ResumeMeta{Skills: []string{"python", "sql", "kubernetes"}}

	a, err := ScoreMatch(resume, job, meta, rm, DefaultWeights(), DefaultRecencyCurve(), scoreNow)
	require.NoError(t, err)
	b, err := ScoreMatch(resume, job, meta, rm, DefaultWeights(), DefaultRecencyCurve(), scoreNow)
	require.NoError(t, err)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("score is not a pure function:\n%+v\n%+v", a, b)
	}
	assert.Equal(t, FormulaVersion, a.Version)
}

func TestScoreMatchSkillsOverlapScenario(t *testing.T) {
	// Resume SKILLS: Python, SQL, Kubernetes. Job requires Python, Docker,
	// SQL — two of three required terms covered.
	rm := ResumeMeta{Skills: ExtractSkills("Python, SQL, Kubernetes")}
	meta := JobMeta{
		Title:        "Backend Engineer",
		Description:  "Backend Engineer — requires Python, Docker, SQL",
		DiscoveredAt: scoreNow,
	}
	sc, err := ScoreMatch(emb("resume", 1, 0), emb("job", 0, 1), meta, rm, DefaultWeights(), DefaultRecencyCurve(), scoreNow)
	require.NoError(t, err)

	assert.InDelta(t, 2.0/3.0, sc.SkillsOverlap, 1e-9)
	assert.Equal(t, []string{"python", "sql"}, sc.MatchedSkills)
	assert.Equal(t, []string{"docker"}, sc.MissingSkills)

	// Final score is the configured weighted sum of the sub-scores.
	w := DefaultWeights()
	want := (w.Semantic*(sc.Semantic+1)/2 + w.Skills*sc.SkillsOverlap + w.Recency*sc.Recency) /
		(w.Semantic + w.Skills + w.Recency)
	assert.InDelta(t, want, sc.Final, 1e-9)
}

func TestScoreMatchRecencyMonotonic(t *testing.T) {
	resume := emb("resume", 1, 0, 1)
	job := emb("job", 1, 1, 0)
	rm := ResumeMeta{Skills: []string{"python"}}

	var prev float64 = 2
	for _, age := range []time.Duration{0, 24 * time.Hour, 30 * 24 * time.Hour, 365 * 24 * time.Hour} {
		meta := JobMeta{Title: "Engineer", Description: "python", DiscoveredAt: scoreNow.Add(-age)}
		sc, err := ScoreMatch(resume, job, meta, rm, DefaultWeights(), DefaultRecencyCurve(), scoreNow)
		require.NoError(t, err)
		if sc.Final > prev {
			t.Errorf("older posting scored higher: age=%v final=%v prev=%v", age, sc.Final, prev)
		}
		if sc.Recency <= 0 {
			t.Errorf("recency must never reach zero, got %v at age %v", sc.Recency, age)
		}
		prev = sc.Final
	}
}

func TestScoreMatchIncompatibleSpace(t *testing.T) {
	resume := &Embedding{ID: "resume", Model: "model-a", Vector: []float32{1, 0}}
	job := &Embedding{ID: "job", Model: "model-b", Vector: []float32{1, 0}}
	_, err := ScoreMatch(resume, job, JobMeta{DiscoveredAt: scoreNow}, ResumeMeta{}, DefaultWeights(), DefaultRecencyCurve(), scoreNow)
	if !errors.Is(err, engine.ErrIncompatibleEmbeddingSpace) {
		t.Errorf("expected ErrIncompatibleEmbeddingSpace, got %v", err)
	}
}

func TestRecencyFactorBounds(t *testing.T) {
	curve := DefaultRecencyCurve()
	if got := recencyFactor(0, curve); got != 1 {
		t.Errorf("zero age factor = %v, want 1", got)
	}
	tenYears := 10 * 365 * 24 * time.Hour
	got := recencyFactor(tenYears, curve)
	if got < curve.Floor || got > curve.Floor+1e-6 {
		t.Errorf("ancient posting factor = %v, want ≈ floor %v", got, curve.Floor)
	}
	if recencyFactor(-time.Hour, curve) != 1 {
		t.Error("future timestamps clamp to now")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestExtractSkills(t *testing.T) {
	got := ExtractSkills("Senior role: C++, node.js, Go and Machine Learning on AWS")
	want := []string{"aws", "c++", "go", "machine learning", "node.js"}
	assert.Equal(t, want, got)

	assert.Empty(t, ExtractSkills("we value teamwork and communication"))
}
