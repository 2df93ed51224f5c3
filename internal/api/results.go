package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"race-tracker/internal/config"
	"race-tracker/internal/constants"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// ErrNoContent is returned once every fetch attempt has failed.
var ErrNoContent = errors.New("no content after retries")

// ResultsClient fetches pages from the results host with bounded retry.
type ResultsClient struct {
	client      *fasthttp.Client
	userAgent   string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	retryAfter  time.Duration
	jitter      func() time.Duration
	logger      zerolog.Logger

	throttleMu sync.RWMutex
	throttle   ThrottleInfo
}

// ThrottleInfo records the last rate-limit response seen from the host.
type ThrottleInfo struct {
	Count          int           `json:"count"`
	LastRetryAfter time.Duration `json:"last_retry_after"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func NewResultsClient(cfg *config.Config, logger zerolog.Logger) *ResultsClient {
	return &ResultsClient{
		client: &fasthttp.Client{
			Name:                cfg.UserAgent,
			MaxConnsPerHost:     4,
			ReadTimeout:         cfg.FetchTimeout,
			WriteTimeout:        cfg.FetchTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
			MaxResponseBodySize: constants.MaxBodyBytes,
		},
		userAgent:   cfg.UserAgent,
		timeout:     cfg.FetchTimeout,
		maxAttempts: max(cfg.FetchMaxAttempts, 1),
		baseDelay:   cfg.FetchBaseDelay,
		retryAfter:  cfg.FetchRetryAfter,
		jitter:      func() time.Duration { return time.Duration(rand.Int64N(int64(time.Second))) },
		logger:      logger,
	}
}

func (c *ResultsClient) GetThrottleInfo() ThrottleInfo {
	c.throttleMu.RLock()
	defer c.throttleMu.RUnlock()
	return c.throttle
}

func (c *ResultsClient) recordThrottle(wait time.Duration) {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()
	c.throttle.Count++
	c.throttle.LastRetryAfter = wait
	c.throttle.UpdatedAt = time.Now()
}

// Close releases idle connections held by the client.
func (c *ResultsClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("results host returned HTTP %d", e.code)
}

// Fetch GETs url and returns the body. HTTP 429 waits for Retry-After; other
// failures wait base*2^attempt plus up to one second of jitter. Both consume
// an attempt. When all attempts fail the error wraps ErrNoContent.
func (c *ResultsClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	var (
		attempt     int
		throttled   bool
		pendingWait time.Duration
		body        []byte
	)

	schedule := retry.BackoffFunc(func() (time.Duration, bool) {
		if throttled {
			throttled = false
			return pendingWait, false
		}
		return c.delay(attempt), false
	})
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), schedule)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		page, err := c.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn().
				Err(err).
				Str("url", url).
				Int("attempt", attempt).
				Int("max_attempts", c.maxAttempts).
				Msg("request error")
			return retry.RetryableError(err)
		}

		switch {
		case page.status == fasthttp.StatusTooManyRequests:
			throttled = true
			pendingWait = parseRetryAfter(page.retryAfter, c.retryAfter, time.Now())
			c.recordThrottle(pendingWait)
			c.logger.Warn().
				Str("url", url).
				Int("attempt", attempt).
				Dur("retry_after", pendingWait).
				Msg("rate limited")
			return retry.RetryableError(&statusError{code: page.status})
		case page.status < 200 || page.status >= 300:
			c.logger.Warn().
				Str("url", url).
				Int("status", page.status).
				Int("attempt", attempt).
				Int("max_attempts", c.maxAttempts).
				Msg("unexpected status")
			return retry.RetryableError(&statusError{code: page.status})
		}

		body = page.body
		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error().Err(err).Str("url", url).Int("attempts", attempt).Msg("all retries exhausted")
		return nil, fmt.Errorf("%w: %d attempts for %s: %v", ErrNoContent, attempt, url, err)
	}
	return body, nil
}

// delay is the wait after a failed attempt (1-based) that was not rate limited.
func (c *ResultsClient) delay(attempt int) time.Duration {
	return c.baseDelay*time.Duration(1<<(attempt-1)) + c.jitter()
}

type page struct {
	status     int
	body       []byte
	retryAfter string
}

// do performs one request. A cancelled ctx abandons the in-flight request;
// its buffers are released once fasthttp returns.
func (c *ResultsClient) do(ctx context.Context, url string) (*page, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(c.userAgent)
	req.SetTimeout(c.timeout)

	done := make(chan error, 1)
	go func() {
		done <- c.client.DoRedirects(req, resp, constants.MaxRedirects)
	}()

	select {
	case <-ctx.Done():
		go func() {
			<-done
			release()
		}()
		return nil, ctx.Err()
	case err := <-done:
		defer release()
		if err != nil {
			return nil, err
		}
		body, err := resp.BodyUncompressed()
		if err != nil {
			return nil, fmt.Errorf("failed to decode body: %w", err)
		}
		return &page{
			status:     resp.StatusCode(),
			body:       append([]byte(nil), body...),
			retryAfter: string(resp.Header.Peek(fasthttp.HeaderRetryAfter)),
		}, nil
	}
}

// parseRetryAfter reads delta-seconds or an HTTP date, falling back when the
// header is absent, negative or unreadable. Zero or a past date means retry now.
func parseRetryAfter(value string, fallback time.Duration, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := fasthttp.ParseHTTPDate([]byte(value)); err == nil {
		return max(at.Sub(now), 0)
	}
	return fallback
}
