package navigator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantio/grantscraper/config"
	"grantio/grantscraper/internal/httpclient"
)

func newTestHTTPClient(rps float64) *httpclient.Client {
	return httpclient.New(httpclient.Config{
		RequestsPerSecond: rps,
		Timeout:           5 * time.Second,
		Retry:             httpclient.NoRetry(),
	})
}

// listingServer serves pages /list?page=N with linksPerPage grant links
// each and a next link up to totalPages
func listingServer(t *testing.T, totalPages, linksPerPage int, fetches *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}

		var b strings.Builder
		b.WriteString("<html><body><ul>")
		for i := 0; i < linksPerPage; i++ {
			n := (page-1)*linksPerPage + i
			fmt.Fprintf(&b, `<li><a class="item" href="/vyzvy/detail-%d">Výzva %d</a></li>`, n, n)
		}
		b.WriteString("</ul>")
		if page < totalPages {
			fmt.Fprintf(&b, `<a class="next" href="/list?page=%d">Další</a>`, page+1)
		}
		b.WriteString("</body></html>")
		w.Write([]byte(b.String()))
	}))
}

func singleLevelSource(baseURL string) *config.SourceConfig {
	source := &config.SourceConfig{
		SourceID:           "test",
		SourceName:         "Test Source",
		BaseURL:            baseURL,
		ListingURL:         baseURL + "/list",
		ListingSelector:    "a.item",
		DetailURLPattern:   "/vyzvy/",
		PaginationSelector: "a.next",
		MaxPages:           10,
	}
	if err := source.Validate(); err != nil {
		panic(err)
	}
	return source
}

func TestSingleLevelPagination(t *testing.T) {
	var fetches atomic.Int64
	server := listingServer(t, 3, 10, &fetches)
	defer server.Close()

	nav := NewSingleLevel(newTestHTTPClient(100))
	targets, err := nav.Discover(context.Background(), singleLevelSource(server.URL), 0)

	require.NoError(t, err)
	assert.Len(t, targets, 30)
	assert.Equal(t, int64(3), fetches.Load())

	assert.Equal(t, server.URL+"/vyzvy/detail-0", targets[0].URL)
	assert.Equal(t, "Výzva 0", targets[0].Title)
	assert.Equal(t, "test", targets[0].SourceID)
	assert.Equal(t, "Test Source", targets[0].Metadata["source_name"])
}

func TestSingleLevelPaginationSpacing(t *testing.T) {
	var fetches atomic.Int64
	server := listingServer(t, 3, 10, &fetches)
	defer server.Close()

	// 10 rps: three same-origin fetches need two waits of 100ms each
	nav := NewSingleLevel(newTestHTTPClient(10))
	start := time.Now()
	targets, err := nav.Discover(context.Background(), singleLevelSource(server.URL), 0)

	require.NoError(t, err)
	assert.Len(t, targets, 30)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestSingleLevelMaxTargets(t *testing.T) {
	var fetches atomic.Int64
	server := listingServer(t, 3, 10, &fetches)
	defer server.Close()

	nav := NewSingleLevel(newTestHTTPClient(100))
	targets, err := nav.Discover(context.Background(), singleLevelSource(server.URL), 15)

	require.NoError(t, err)
	assert.Len(t, targets, 15)
	assert.LessOrEqual(t, fetches.Load(), int64(2), "discovery must stop fetching once the cap is reached")
}

func TestSingleLevelMaxPages(t *testing.T) {
	var fetches atomic.Int64
	server := listingServer(t, 10, 5, &fetches)
	defer server.Close()

	source := singleLevelSource(server.URL)
	source.MaxPages = 2

	nav := NewSingleLevel(newTestHTTPClient(100))
	targets, err := nav.Discover(context.Background(), source, 0)

	require.NoError(t, err)
	assert.Len(t, targets, 10)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestSingleLevelLoopingNextLink(t *testing.T) {
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		// Every page links back to page 2: the second visit yields no new
		// links and pagination must stop
		w.Write([]byte(`<html><body>
			<a class="item" href="/vyzvy/only">Jediná výzva</a>
			<a class="next" href="/list?page=2">Další</a>
		</body></html>`))
	}))
	defer server.Close()

	nav := NewSingleLevel(newTestHTTPClient(100))
	targets, err := nav.Discover(context.Background(), singleLevelSource(server.URL), 0)

	require.NoError(t, err)
	assert.Len(t, targets, 1)
	assert.Equal(t, int64(2), fetches.Load(), "pagination must stop after the page yields nothing new")
}

func TestSingleLevelNoPagination(t *testing.T) {
	var fetches atomic.Int64
	server := listingServer(t, 3, 10, &fetches)
	defer server.Close()

	source := singleLevelSource(server.URL)
	source.PaginationSelector = ""

	nav := NewSingleLevel(newTestHTTPClient(100))
	targets, err := nav.Discover(context.Background(), source, 0)

	require.NoError(t, err)
	assert.Len(t, targets, 10)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestSingleLevelFirstPageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	nav := NewSingleLevel(newTestHTTPClient(100))
	_, err := nav.Discover(context.Background(), singleLevelSource(server.URL), 0)

	assert.Error(t, err)
}

func TestSingleLevelLaterPageErrorKeepsResults(t *testing.T) {
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches.Add(1) > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`<html><body>
			<a class="item" href="/vyzvy/a">A</a>
			<a class="item" href="/vyzvy/b">B</a>
			<a class="next" href="/list?page=2">Další</a>
		</body></html>`))
	}))
	defer server.Close()

	nav := NewSingleLevel(newTestHTTPClient(100))
	targets, err := nav.Discover(context.Background(), singleLevelSource(server.URL), 0)

	require.NoError(t, err)
	assert.Len(t, targets, 2, "targets from pages before the failure survive")
}

func TestSingleLevelDetailFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a class="item" href="/vyzvy/real">Výzva</a>
			<a class="item" href="/aktuality/news">Novinka</a>
			<a class="item" href="javascript:void(0)">Menu</a>
			<a class="item" href="mailto:info@example.com">Mail</a>
		</body></html>`))
	}))
	defer server.Close()

	source := singleLevelSource(server.URL)
	source.PaginationSelector = ""

	nav := NewSingleLevel(newTestHTTPClient(100))
	targets, err := nav.Discover(context.Background(), source, 0)

	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, server.URL+"/vyzvy/real", targets[0].URL)
}
