package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/httpclient"
	"grantio/grantscraper/internal/orchestrator"
	"grantio/grantscraper/services/cache"
	"grantio/grantscraper/services/storage"
)

// testListingHTML mimics a ministry grant listing page
const testListingHTML = `
<!DOCTYPE html>
<html>
<head><title>Dotace a granty</title></head>
<body>
	<nav><a href="/">Domů</a></nav>
	<div class="grants">
		<a class="grant" href="/dotace/bydleni-2024">Podpora bydlení 2024</a>
		<a class="grant" href="/dotace/sport-2024">Podpora sportu 2024</a>
		<a class="grant" href="/aktuality/novinka">Tisková zpráva</a>
	</div>
</body>
</html>
`

const testDetailTemplate = `
<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
	<main>
		<h1>%s</h1>
		<p class="perex">Výzva na podporu projektů v roce 2024 určená obcím a krajům.</p>
		<p>Uzávěrka: %s</p>
		<p>Maximální částka: 5 mil. Kč</p>
		<h2>Oprávnění žadatelé</h2>
		<p>obce, kraje</p>
		<a href="/files/vyzva.pdf">Výzva (PDF)</a>
		<p>Kontakt: <a href="mailto:dotace@example.com">dotace@example.com</a></p>
	</main>
</body>
</html>
`

func newGrantPortal(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/dotace", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testListingHTML))
	})
	mux.HandleFunc("/dotace/bydleni-2024", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, testDetailTemplate, "Podpora bydlení 2024", "Podpora bydlení 2024", "31. 12. 2024")
	})
	mux.HandleFunc("/dotace/sport-2024", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, testDetailTemplate, "Podpora sportu 2024", "Podpora sportu 2024", "30. 6. 2025")
	})
	return httptest.NewServer(mux)
}

func writeCatalog(t *testing.T, baseURL string) string {
	t.Helper()
	catalog := fmt.Sprintf(`
sources:
  - source_id: mfcr
    source_name: "Ministerstvo financí"
    base_url: "%s"
    listing_url: "${GRANT_TEST_LISTING_URL:-%s/dotace}"
    listing_selector: "a.grant"
    detail_url_pattern: "/dotace/"
    requests_per_second: 100
`, baseURL, baseURL)

	path := filepath.Join(t.TempDir(), "sources.yml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))
	return path
}

func newIntegrationClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		RequestsPerSecond: 100,
		Timeout:           5 * time.Second,
		CacheTTL:          time.Minute,
		Cache:             cache.NewMemoryService(),
		Retry:             httpclient.NoRetry(),
	})
}

// TestPipelineEndToEnd runs catalog loading, discovery, extraction,
// deduplication, and output writing against a fake grant portal.
func TestPipelineEndToEnd(t *testing.T) {
	server := newGrantPortal(t)
	defer server.Close()

	sources, err := config.LoadSources(writeCatalog(t, server.URL))
	require.NoError(t, err)
	require.Len(t, sources, 1)

	o := orchestrator.New(sources, newIntegrationClient())
	grants, err := o.Run(context.Background(), orchestrator.Options{})
	require.NoError(t, err)
	require.Len(t, grants, 2, "press release link must be filtered out")

	stats := o.Stats()
	assert.Equal(t, 2, stats.Discovered)
	assert.Equal(t, 2, stats.Extracted)
	assert.Zero(t, stats.Errors)

	for _, g := range grants {
		assert.Equal(t, "mfcr", g.SourceID)
		assert.NotNil(t, g.Deadline)
		assert.NotNil(t, g.Funding)
		assert.Equal(t, int64(5_000_000), g.Funding.Max)
		assert.Equal(t, []string{"dotace@example.com"}, g.ContactEmail)
		assert.NotEmpty(t, g.Documents)
	}

	// Persist and re-read the run output
	outDir := t.TempDir()
	path, err := storage.NewWriter(outDir).SaveJSON(grants)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "grant", records[0]["recordType"])
}

// TestPipelineIncremental verifies that a second run over unchanged pages
// skips everything recorded in the processed-ID state.
func TestPipelineIncremental(t *testing.T) {
	server := newGrantPortal(t)
	defer server.Close()

	sources, err := config.LoadSources(writeCatalog(t, server.URL))
	require.NoError(t, err)

	outDir := t.TempDir()

	o := orchestrator.New(sources, newIntegrationClient())
	grants, err := o.Run(context.Background(), orchestrator.Options{})
	require.NoError(t, err)
	require.Len(t, grants, 2)

	state := storage.LoadState(outDir)
	for _, g := range grants {
		state.Add(g.ContentHash)
	}
	require.NoError(t, state.Save())

	reloaded := storage.LoadState(outDir)
	o2 := orchestrator.New(sources, newIntegrationClient())
	second, err := o2.Run(context.Background(), orchestrator.Options{Seen: reloaded.Contains})
	require.NoError(t, err)

	assert.Empty(t, second)
	assert.Equal(t, 2, o2.Stats().Skipped)
}
