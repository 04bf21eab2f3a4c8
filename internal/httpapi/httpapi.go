// Package httpapi is the HTTP transport shared by the Roster Scraper
// (D) and Match-History Scraper (E): a rate-limited, retrying client
// over the upstream tournament platform. Adapted from the reference
// ingestion service's SportsDataIO client, swapping its fixed
// semaphore and hand-rolled exponential backoff for
// golang.org/x/time/rate and github.com/cenkalti/backoff/v4, and its
// typed per-endpoint methods for a single generic fetcher returning
// raw bytes (this client does not know about HTML vs JSON roster
// formats; that parsing lives in internal/scrape).
package httpapi

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/greenbier/divrank/internal/errs"
	"github.com/greenbier/divrank/internal/metrics"
)

// Client fetches pages from the upstream tournament platform, one
// request at a time per goroutine, gated by a shared rate limiter and
// per-request jitter so a worker pool of N goroutines never exceeds
// one request roughly every jitter window.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxRetries int
	retryBase  time.Duration
	jitterMin  time.Duration
	jitterMax  time.Duration
}

// New builds a Client. The rate limiter is shared across every
// worker goroutine spawned from the same Client so the jitter budget
// is a property of the whole pipeline, not of one worker.
func New(userAgent string, timeout time.Duration, maxWorkers int, jitterMin, jitterMax time.Duration, maxRetries int, retryBase time.Duration) *Client {
	// one token per average jitter interval, burst sized to the
	// worker pool so a cold start doesn't serialize behind the limiter
	avgInterval := (jitterMin + jitterMax) / 2
	limit := rate.Every(avgInterval)

	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: maxWorkers,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(limit, maxWorkers),
		userAgent:  userAgent,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		jitterMin:  jitterMin,
		jitterMax:  jitterMax,
	}
}

// Fetch performs one GET against url, waiting for both the shared
// rate limiter and a per-call jitter sleep before the request, and
// retrying transient failures with exponential backoff.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("httpapi: waiting for rate limiter: %w", err)
	}
	c.jitter(ctx)

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("httpapi: building request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "text/html,application/json")

		attemptStart := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.RecordHTTPRequest("upstream", "error", time.Since(attemptStart).Seconds())
			log.Warn().Err(err).Str("url", url).Msg("request failed, will retry")
			return fmt.Errorf("%w: %v", errs.ErrTransientHTTP, err)
		}
		defer resp.Body.Close()
		metrics.RecordHTTPRequest("upstream", strconv.Itoa(resp.StatusCode), time.Since(attemptStart).Seconds())

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading body: %v", errs.ErrTransientHTTP, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body = data
			return nil
		case http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", errs.ErrProfileNotFound, url))
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", errs.ErrRateLimited, url)
		case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
			return fmt.Errorf("%w: status %d", errs.ErrTransientHTTP, resp.StatusCode)
		default:
			if resp.StatusCode >= 500 {
				return fmt.Errorf("%w: status %d", errs.ErrTransientHTTP, resp.StatusCode)
			}
			return backoff.Permanent(fmt.Errorf("httpapi: unexpected status %d fetching %s", resp.StatusCode, url))
		}
	}

	// maxRetries counts total attempts, so the backoff allows one fewer
	// retry; the interval doubles from retryBase without randomization.
	retries := c.maxRetries - 1
	if retries < 0 {
		retries = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.retryBase),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0),
		), uint64(retries)), ctx)

	if err := backoff.RetryNotify(operation, bo, func(err error, d time.Duration) {
		log.Info().Err(err).Str("url", url).Dur("backoff", d).Msg("retrying upstream fetch")
	}); err != nil {
		return nil, err
	}
	return body, nil
}

// jitter sleeps a random duration in [jitterMin, jitterMax] to keep
// request timing from looking mechanical, on top of the token-bucket
// spacing enforced by the shared limiter.
func (c *Client) jitter(ctx context.Context) {
	span := c.jitterMax - c.jitterMin
	d := c.jitterMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
