package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/job-comb/app/cache"
	"github.com/lysyi3m/job-comb/app/metrics"
)

const (
	primaryAccept   = "application/rss+xml, application/xml, text/xml, application/json"
	alternateAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	alternateAccept = "application/xml, text/xml, */*"
	alternateLang   = "en-US,en;q=0.9"

	// Upper bound for a single payload
	maxBodySize = 20 << 20
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Tier string

const (
	TierPrimary   Tier = "primary"
	TierAlternate Tier = "alternate"
	TierDirect    Tier = "direct"
)

type Attempt struct {
	Tier Tier
	Err  error
}

type FetchError struct {
	URL      string
	Attempts []Attempt
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Tier, a.Err))
	}
	return fmt.Sprintf("failed to fetch %s (%s)", e.URL, strings.Join(parts, "; "))
}

type Options struct {
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

type Fetcher struct {
	client    HTTPClient
	direct    HTTPClient
	cache     cache.Cache
	userAgent string
	timeout   time.Duration
	cacheTTL  time.Duration
}

// NewFetcher builds a fetcher. A nil direct client gets a fresh transport
// without connection reuse; a nil cache disables caching.
func NewFetcher(client HTTPClient, direct HTTPClient, payloadCache cache.Cache, opts Options) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if direct == nil {
		direct = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}

	return &Fetcher{
		client:    client,
		direct:    direct,
		cache:     payloadCache,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		cacheTTL:  opts.CacheTTL,
	}
}

// Run retrieves the payload at url, trying each tier in order until one
// returns a non-empty body. A zero timeout uses the fetcher default.
func (f *Fetcher) Run(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = f.timeout
	}

	key := cache.FeedKey(url)
	if f.cache != nil && f.cacheTTL > 0 {
		data, ok, err := f.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("Payload cache read failed", "url", url, "error", err)
		} else if ok {
			metrics.FetchCacheHits.Inc()
			slog.Debug("Payload served from cache", "url", url)
			return data, nil
		}
	}

	fetchErr := &FetchError{URL: url}

	for _, tier := range []Tier{TierPrimary, TierAlternate, TierDirect} {
		if err := ctx.Err(); err != nil {
			fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Tier: tier, Err: err})
			break
		}

		data, err := f.attempt(ctx, tier, url, timeout)
		if err != nil {
			metrics.FetchAttempts.WithLabelValues(string(tier), "failure").Inc()
			slog.Debug("Fetch attempt failed", "tier", tier, "url", url, "error", err)
			fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Tier: tier, Err: err})
			continue
		}

		metrics.FetchAttempts.WithLabelValues(string(tier), "success").Inc()

		if f.cache != nil && f.cacheTTL > 0 {
			if err := f.cache.Set(ctx, key, data, f.cacheTTL); err != nil {
				slog.Warn("Payload cache write failed", "url", url, "error", err)
			}
		}

		return data, nil
	}

	return nil, fetchErr
}

func (f *Fetcher) attempt(ctx context.Context, tier Tier, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := f.client
	switch tier {
	case TierPrimary:
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", primaryAccept)
	case TierAlternate:
		req.Header.Set("User-Agent", alternateAgent)
		req.Header.Set("Accept", alternateAccept)
		req.Header.Set("Accept-Language", alternateLang)
	case TierDirect:
		client = f.direct
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if tier == TierDirect {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
		}
	} else if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("empty response body")
	}

	return data, nil
}
