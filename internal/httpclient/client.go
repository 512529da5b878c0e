// Package httpclient provides the shared fetch layer for the pipeline:
// per-origin rate limiting, TTL response caching, retry with backoff,
// and user-agent rotation.
package httpclient

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"grantio/grantscraper/logger"
	pkgerrors "grantio/grantscraper/pkg/errors"
	"grantio/grantscraper/services/cache"
)

// userAgents is the pool rotated through per outbound request
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
}

const downloadChunkSize = 8192

// Response is a fetched HTTP response with the body fully read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config controls client behavior
type Config struct {
	// RequestsPerSecond is the per-origin rate limit
	RequestsPerSecond float64
	// Timeout bounds each request
	Timeout time.Duration
	// CacheTTL bounds how long responses are served from cache
	CacheTTL time.Duration
	// Cache is the response cache backend; nil disables caching
	Cache cache.CacheService
	// Retry is the retry policy for network-class failures
	Retry RetryPolicy
}

// Client is the rate-limited, caching, retrying HTTP client shared by
// navigators and parsers within one run
type Client struct {
	http     *http.Client
	cfg      Config
	log      *logger.Logger
	uaIndex  atomic.Uint64
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a client from config, filling defaults
func New(cfg Config) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:      cfg,
		log:      logger.ForComponent("httpclient"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// originOf derives the rate-limiting key (scheme+host) for a URL
func originOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return "unknown"
}

// limiter returns the rate limiter for a URL's origin, creating it at
// the configured default rate on first use. Burst 1 enforces the minimum
// inter-request interval between consecutive requests to one origin.
func (c *Client) limiter(rawURL string) *rate.Limiter {
	origin := originOf(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[origin]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), 1)
		c.limiters[origin] = l
	}
	return l
}

// SetOriginRate sets the rate limit for a URL's origin, replacing the
// configured default for that origin. Non-positive rates are ignored.
func (c *Client) SetOriginRate(rawURL string, rps float64) {
	if rps <= 0 {
		return
	}
	origin := originOf(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[origin]; ok {
		l.SetLimit(rate.Limit(rps))
		return
	}
	c.limiters[origin] = rate.NewLimiter(rate.Limit(rps), 1)
}

// cacheKey hashes the URL into the response cache key
func cacheKey(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return "httpcache:" + hex.EncodeToString(sum[:])
}

// nextUserAgent rotates through the pool
func (c *Client) nextUserAgent() string {
	idx := c.uaIndex.Add(1) - 1
	return userAgents[idx%uint64(len(userAgents))]
}

// Get fetches a URL. With useCache true, a fresh cached body is returned
// without network I/O; successful responses are cached for the TTL.
func (c *Client) Get(ctx context.Context, rawURL string, useCache bool) (*Response, error) {
	if useCache && c.cfg.Cache != nil {
		if body, err := c.cfg.Cache.Get(cacheKey(rawURL)); err == nil {
			c.log.Debug().Str("url", rawURL).Msg("cache hit")
			return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: body}, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.cfg.Retry.Backoff(attempt - 1)
			c.log.Debug().Str("url", rawURL).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, pkgerrors.NewNetwork("", "request canceled", ctx.Err())
			}
		}

		if err := c.limiter(rawURL).Wait(ctx); err != nil {
			return nil, pkgerrors.NewNetwork("", "rate limiter wait", err)
		}

		resp, err := c.doRequest(ctx, rawURL)
		if err == nil {
			c.setCached(rawURL, resp)
			return resp, nil
		}

		lastErr = err
		if !c.cfg.Retry.Retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// doRequest performs one attempt. 4xx/5xx surface as HTTP status errors.
func (c *Client) doRequest(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, pkgerrors.NewConfig("invalid request URL "+rawURL, err)
	}
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept-Language", "cs,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.NewNetwork("", "fetch "+rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, pkgerrors.NewHTTPStatus("", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.NewNetwork("", "read body "+rawURL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// setCached stores a successful response body for the TTL
func (c *Client) setCached(rawURL string, resp *Response) {
	if c.cfg.Cache == nil || resp.StatusCode != http.StatusOK {
		return
	}
	if err := c.cfg.Cache.Set(cacheKey(rawURL), resp.Body, c.cfg.CacheTTL); err != nil {
		c.log.Warn().Err(err).Str("url", rawURL).Msg("cache store failed")
	}
}

// GetText fetches a URL and returns the body decoded to UTF-8
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.Get(ctx, rawURL, true)
	if err != nil {
		return "", err
	}

	contentType := resp.Header.Get("Content-Type")
	enc, name, _ := charset.DetermineEncoding(resp.Body, contentType)
	if name == "utf-8" {
		return string(resp.Body), nil
	}

	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(resp.Body)))
	if err != nil {
		return "", pkgerrors.NewParse("", "decode body to UTF-8", err)
	}
	return string(decoded), nil
}

// GetBytes fetches a URL and returns the raw body
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Download streams a URL to disk in fixed chunks, creating the target
// directory. It never returns an error; failures are logged as
// download-class errors and reported as false.
func (c *Client) Download(ctx context.Context, rawURL, savePath string) bool {
	if err := c.download(ctx, rawURL, savePath); err != nil {
		c.log.Error().Err(err).Str("url", rawURL).Str("path", savePath).Msg("download failed")
		return false
	}

	c.log.Info().Str("url", rawURL).Str("path", savePath).Msg("download complete")
	return true
}

func (c *Client) download(ctx context.Context, rawURL, savePath string) error {
	if err := c.limiter(rawURL).Wait(ctx); err != nil {
		return pkgerrors.NewDownload("", "rate limiter wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return pkgerrors.NewDownload("", "invalid download URL "+rawURL, err)
	}
	req.Header.Set("User-Agent", c.nextUserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.NewDownload("", "fetch "+rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return pkgerrors.NewDownload("", "fetch "+rawURL, pkgerrors.NewHTTPStatus("", rawURL, resp.StatusCode))
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return pkgerrors.NewDownload("", "create directory for "+savePath, err)
	}

	f, err := os.Create(savePath)
	if err != nil {
		return pkgerrors.NewDownload("", "create "+savePath, err)
	}
	defer f.Close()

	buf := make([]byte, downloadChunkSize)
	if _, err := io.CopyBuffer(f, resp.Body, buf); err != nil {
		return pkgerrors.NewDownload("", "write "+savePath, err)
	}

	return nil
}
