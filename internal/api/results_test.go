package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"race-tracker/internal/config"

	"github.com/rs/zerolog"
)

func testClient(attempts int) *ResultsClient {
	c := NewResultsClient(&config.Config{
		UserAgent:        "test-agent/1.0",
		FetchTimeout:     2 * time.Second,
		FetchMaxAttempts: attempts,
		FetchBaseDelay:   time.Millisecond,
		FetchRetryAfter:  5 * time.Millisecond,
	}, zerolog.Nop())
	c.jitter = func() time.Duration { return 0 }
	return c
}

func TestFetchSuccess(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := testClient(3)
	defer c.Close()

	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Errorf("body: got %q", body)
	}
	if got := ua.Load(); got != "test-agent/1.0" {
		t.Errorf("user agent: got %v", got)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("third time lucky"))
	}))
	defer srv.Close()

	body, err := testClient(3).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "third time lucky" {
		t.Errorf("body: got %q", body)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("hits: got %d, want 3", n)
	}
}

func TestFetchExhaustion(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(3).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("err: got %v, want ErrNoContent", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("hits: got %d, want 3", n)
	}
}

func TestFetchSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := testClient(1).Fetch(context.Background(), srv.URL); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err: got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("hits: got %d, want 1", n)
	}
}

func TestFetchRateLimitConsumesAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(2)
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	info := c.GetThrottleInfo()
	if info.Count != 1 {
		t.Errorf("throttle count: got %d, want 1", info.Count)
	}
	if info.LastRetryAfter != 5*time.Millisecond {
		t.Errorf("retry after: got %s, want fallback 5ms", info.LastRetryAfter)
	}

	var limited atomic.Int32
	always := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limited.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer always.Close()

	if _, err := testClient(2).Fetch(context.Background(), always.URL); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err: got %v, want ErrNoContent", err)
	}
	if n := limited.Load(); n != 2 {
		t.Errorf("429 should consume attempts: got %d hits, want 2", n)
	}
}

// hitRecorder stamps every request the test server receives.
type hitRecorder struct {
	mu   sync.Mutex
	hits []time.Time
}

func (h *hitRecorder) stamp() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits = append(h.hits, time.Now())
	return len(h.hits)
}

func (h *hitRecorder) gaps() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []time.Duration
	for i := 1; i < len(h.hits); i++ {
		out = append(out, h.hits[i].Sub(h.hits[i-1]))
	}
	return out
}

func TestResultsClientDelay(t *testing.T) {
	c := testClient(4)
	c.baseDelay = 100 * time.Millisecond
	c.jitter = func() time.Duration { return 7 * time.Millisecond }

	want := []time.Duration{107 * time.Millisecond, 207 * time.Millisecond, 407 * time.Millisecond}
	for i, w := range want {
		if got := c.delay(i + 1); got != w {
			t.Errorf("delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestFetchDelaySchedule(t *testing.T) {
	rec := &hitRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.stamp()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	const (
		base = 40 * time.Millisecond
		jit  = 15 * time.Millisecond
	)
	var jitterCalls atomic.Int32
	c := testClient(3)
	c.baseDelay = base
	c.jitter = func() time.Duration {
		jitterCalls.Add(1)
		return jit
	}

	if _, err := c.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err: got %v, want ErrNoContent", err)
	}
	returned := time.Now()

	gaps := rec.gaps()
	if len(gaps) != 2 {
		t.Fatalf("gaps: got %d, want 2", len(gaps))
	}
	for i, floor := range []time.Duration{base + jit, 2*base + jit} {
		if gaps[i] < floor {
			t.Errorf("gap %d: got %s, want at least %s", i+1, gaps[i], floor)
		}
	}
	if gaps[1] <= gaps[0] {
		t.Errorf("second wait %s should exceed first %s", gaps[1], gaps[0])
	}
	if n := jitterCalls.Load(); n != 2 {
		t.Errorf("jitter drawn %d times, want 2", n)
	}

	rec.mu.Lock()
	last := rec.hits[len(rec.hits)-1]
	rec.mu.Unlock()
	if idle := returned.Sub(last); idle >= 4*base {
		t.Errorf("waited %s after the final attempt", idle)
	}
}

func TestFetchRetryAfterReplacesBackoff(t *testing.T) {
	rec := &hitRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec.stamp() == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var jitterCalls atomic.Int32
	c := testClient(2)
	c.baseDelay = 5 * time.Millisecond
	c.retryAfter = 80 * time.Millisecond
	c.jitter = func() time.Duration {
		jitterCalls.Add(1)
		return 0
	}

	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	gaps := rec.gaps()
	if len(gaps) != 1 {
		t.Fatalf("gaps: got %d, want 1", len(gaps))
	}
	if gaps[0] < 80*time.Millisecond {
		t.Errorf("wait: got %s, want at least the 80ms retry-after", gaps[0])
	}
	if n := jitterCalls.Load(); n != 0 {
		t.Errorf("exponential delay computed %d times for a rate-limited attempt", n)
	}
}

func TestFetchRetryAfterZeroRetriesImmediately(t *testing.T) {
	rec := &hitRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec.stamp() == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(2)
	c.baseDelay = time.Second
	c.retryAfter = time.Second

	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if info := c.GetThrottleInfo(); info.LastRetryAfter != 0 {
		t.Errorf("retry after: got %s, want 0", info.LastRetryAfter)
	}
	if gaps := rec.gaps(); len(gaps) != 1 || gaps[0] >= 500*time.Millisecond {
		t.Errorf("gaps: got %v, want one immediate retry", gaps)
	}
}

func TestFetchCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := testClient(3).Fetch(ctx, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err: got %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %s", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fallback := 10 * time.Second
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", fallback},
		{"7", 7 * time.Second},
		{" 3 ", 3 * time.Second},
		{"0", 0},
		{"-4", fallback},
		{"soon", fallback},
		{"Sat, 01 Mar 2025 12:00:30 GMT", 30 * time.Second},
		{"Sat, 01 Mar 2025 11:59:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, fallback, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
