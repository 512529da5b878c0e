package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/httpclient"
)

const detailOne = `<html><body><main>
	<h1>Podpora bydlení</h1>
	<p>Uzávěrka: 31. 12. 2024</p>
	<p>Maximální částka: 5 mil. Kč</p>
</main></body></html>`

const detailTwo = `<html><body><main>
	<h1>Podpora sportu</h1>
	<p>Uzávěrka: 30. 6. 2025</p>
</main></body></html>`

// grantSite serves a listing of two grants plus their detail pages
func grantSite(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(grantMux())
}

func grantMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a class="item" href="/vyzvy/bydleni">Podpora bydlení</a>
			<a class="item" href="/vyzvy/sport">Podpora sportu</a>
		</body></html>`))
	})
	mux.HandleFunc("/vyzvy/bydleni", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailOne))
	})
	mux.HandleFunc("/vyzvy/sport", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailTwo))
	})
	return mux
}

func testOrchestrator(t *testing.T, sources ...*config.SourceConfig) *Orchestrator {
	t.Helper()
	for _, s := range sources {
		require.NoError(t, s.Validate())
	}
	client := httpclient.New(httpclient.Config{
		RequestsPerSecond: 100,
		Timeout:           5 * time.Second,
		Retry:             httpclient.NoRetry(),
	})
	return New(sources, client)
}

func siteSource(id, baseURL string) *config.SourceConfig {
	return &config.SourceConfig{
		SourceID:          id,
		SourceName:        "Test " + id,
		BaseURL:           baseURL,
		ListingURL:        baseURL + "/list",
		ListingSelector:   "a.item",
		RequestsPerSecond: 100,
	}
}

func TestRun(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	o := testOrchestrator(t, siteSource("mfcr", server.URL))
	grants, err := o.Run(context.Background(), Options{})

	require.NoError(t, err)
	require.Len(t, grants, 2)

	stats := o.Stats()
	assert.Equal(t, 1, stats.SourcesProcessed)
	assert.Equal(t, 2, stats.Discovered)
	assert.Equal(t, 2, stats.Extracted)
	assert.Zero(t, stats.Deduplicated)
	assert.Zero(t, stats.Errors)

	titles := []string{grants[0].Title, grants[1].Title}
	assert.ElementsMatch(t, []string{"Podpora bydlení", "Podpora sportu"}, titles)
	for _, g := range grants {
		assert.NotNil(t, g.Deadline)
		assert.NotEmpty(t, g.ContentHash)
	}
}

func TestRunDryRun(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	o := testOrchestrator(t, siteSource("mfcr", server.URL))
	grants, err := o.Run(context.Background(), Options{DryRun: true})

	require.NoError(t, err)
	assert.Empty(t, grants)

	stats := o.Stats()
	assert.Equal(t, 2, stats.Discovered)
	assert.Zero(t, stats.Extracted, "dry run must not extract")
}

func TestRunSourceFilter(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	o := testOrchestrator(t,
		siteSource("mfcr", server.URL),
		siteSource("msmt", server.URL),
	)
	grants, err := o.Run(context.Background(), Options{Sources: []string{"mfcr"}})

	require.NoError(t, err)
	assert.Equal(t, 1, o.Stats().SourcesProcessed)
	assert.Len(t, grants, 2)
}

func TestRunNoMatchingSources(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	o := testOrchestrator(t, siteSource("mfcr", server.URL))
	grants, err := o.Run(context.Background(), Options{Sources: []string{"nonexistent"}})

	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestRunMergesCrossSourceDuplicates(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	// Both sources list the same detail pages; the ministry outranks the
	// aggregator in the priority table, so its records win
	o := testOrchestrator(t,
		siteSource("dotaceeu", server.URL),
		siteSource("mfcr", server.URL),
	)
	grants, err := o.Run(context.Background(), Options{})

	require.NoError(t, err)
	require.Len(t, grants, 2)

	stats := o.Stats()
	assert.Equal(t, 4, stats.Extracted)
	assert.Equal(t, 2, stats.Deduplicated)

	for _, g := range grants {
		assert.Equal(t, "mfcr", g.SourceID)
		assert.Equal(t, "dotaceeu,mfcr", g.AdditionalMetadata["_merged_from"])
	}
}

func TestRunSourceFailureIsolated(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	o := testOrchestrator(t,
		siteSource("opst", broken.URL),
		siteSource("mfcr", server.URL),
	)
	grants, err := o.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Len(t, grants, 2, "a broken source must not abort the run")

	stats := o.Stats()
	assert.Equal(t, 2, stats.SourcesProcessed)
	assert.Equal(t, 1, stats.Errors)
}

func TestRunIncrementalSkipsSeen(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	o := testOrchestrator(t, siteSource("mfcr", server.URL))
	first, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, first, 2)

	seen := make(map[string]bool)
	for _, g := range first {
		seen[g.ContentHash] = true
	}

	o2 := testOrchestrator(t, siteSource("mfcr", server.URL))
	second, err := o2.Run(context.Background(), Options{
		Seen: func(hash string) bool { return seen[hash] },
	})

	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 2, o2.Stats().Skipped)
	assert.Zero(t, o2.Stats().Extracted)
}

func TestRunMaxGrants(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	o := testOrchestrator(t, siteSource("mfcr", server.URL))
	grants, err := o.Run(context.Background(), Options{MaxGrants: 1})

	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestRunDropsUnusablePages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a class="item" href="/vyzvy/bydleni">Podpora bydlení</a>
			<a class="item" href="/vyzvy/prazdna"></a>
		</body></html>`))
	})
	mux.HandleFunc("/vyzvy/bydleni", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailOne))
	})
	mux.HandleFunc("/vyzvy/prazdna", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><main><p>Stránka bez nadpisu.</p></main></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	o := testOrchestrator(t, siteSource("mfcr", server.URL))
	grants, err := o.Run(context.Background(), Options{})

	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "Podpora bydlení", grants[0].Title)

	stats := o.Stats()
	assert.Equal(t, 2, stats.Discovered)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 1, stats.Errors)
}

// timedSite serves the grant site while recording when each request arrived
func timedSite(t *testing.T) (*httptest.Server, func() []time.Time) {
	t.Helper()

	var mu sync.Mutex
	var times []time.Time

	mux := grantMux()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		mux.ServeHTTP(w, r)
	}))

	return server, func() []time.Time {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Time(nil), times...)
	}
}

func TestRunAppliesSourceRates(t *testing.T) {
	fastServer, fastTimes := timedSite(t)
	defer fastServer.Close()
	slowServer, slowTimes := timedSite(t)
	defer slowServer.Close()

	fast := siteSource("mfcr", fastServer.URL)
	slow := siteSource("msmt", slowServer.URL)
	slow.RequestsPerSecond = 5

	o := testOrchestrator(t, fast, slow)
	_, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	span := func(times []time.Time) time.Duration {
		require.Len(t, times, 3)
		return times[len(times)-1].Sub(times[0])
	}

	// Listing plus two detail fetches: two inter-request gaps of 200ms at 5 rps
	assert.GreaterOrEqual(t, span(slowTimes()), 300*time.Millisecond)
	assert.Less(t, span(fastTimes()), 150*time.Millisecond)
}

func TestRunCanceledContext(t *testing.T) {
	server := grantSite(t)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := testOrchestrator(t, siteSource("mfcr", server.URL))
	grants, err := o.Run(ctx, Options{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, grants)
}
