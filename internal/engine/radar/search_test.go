package radar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google_jobs", r.URL.Query().Get("engine"))
		assert.Equal(t, "backend engineer", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `{"jobs_results":[
			{"title":"Backend Engineer","company_name":"Acme","description":"Go services.","share_link":"https://jobs.example/1"},
			{"title":"Data Engineer","company_name":"Globex","description":"Python pipelines.","apply_link":"https://jobs.example/2"}
		]}`)
	}))
	defer srv.Close()

	c := NewSerpClient(srv.URL, "test-key")
	got, err := c.Search(context.Background(), "backend engineer")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Acme", got[0].Company)
	assert.Equal(t, "https://jobs.example/1", got[0].URL)
	// apply_link is the fallback when no share_link is present.
	assert.Equal(t, "https://jobs.example/2", got[1].URL)
	assert.False(t, got[0].DiscoveredAt.IsZero())
}

func TestSerpClientSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewSerpClient(srv.URL, "bad-key")
	_, err := c.Search(context.Background(), "backend engineer")
	assert.Error(t, err)
}

func TestLoadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.csv")
	require.NoError(t, os.WriteFile(path, []byte("backend engineer\n\n  platform engineer  \n"), 0600))

	got, err := LoadQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"backend engineer", "platform engineer"}, got)
}

func TestLoadQueriesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.csv")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0600))
	_, err := LoadQueries(path)
	assert.Error(t, err)

	_, err = LoadQueries(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
