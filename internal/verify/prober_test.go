package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/dealcore/internal/logging"
	"github.com/ppiankov/dealcore/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	probeSleepFunc = func(ctx context.Context, d time.Duration) bool { return ctx.Err() == nil }
}

func newTestProber(robots bool) *Prober {
	return NewProber(model.VerificationConfig{
		ProbeTimeout:  2 * time.Second,
		MaxRetries:    3,
		RespectRobots: robots,
	}, model.HTTPConfig{UserAgent: "DealCore/0.1"}, logging.Nop())
}

func TestProber_Reachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "DealCore/0.1" {
			t.Errorf("Unexpected User-Agent: %q", ua)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestProber(false).Probe(context.Background(), server.URL+"/p/1")
	if result.Reachability != model.ReachabilityReachable {
		t.Errorf("Expected reachable, got %q (%s)", result.Reachability, result.Error)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", result.StatusCode)
	}
}

func TestProber_HeadNotAllowedFallsBackToGet(t *testing.T) {
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestProber(false).Probe(context.Background(), server.URL)
	if result.Reachability != model.ReachabilityReachable {
		t.Errorf("Expected reachable after GET fallback, got %q", result.Reachability)
	}
	if gets.Load() != 1 {
		t.Errorf("Expected 1 GET, got %d", gets.Load())
	}
}

func TestProber_NotFound(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := newTestProber(false).Probe(context.Background(), server.URL)
	if result.Reachability != model.ReachabilityUnreachable {
		t.Errorf("Expected unreachable, got %q", result.Reachability)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestProber_RetriesTransient(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestProber(false).Probe(context.Background(), server.URL)
	if result.Reachability != model.ReachabilityReachable {
		t.Errorf("Expected reachable after retries, got %q", result.Reachability)
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
}

func TestProber_TimeoutIsUnknown(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := newTestProber(false).Probe(ctx, server.URL)
	if result.Reachability != model.ReachabilityUnknown {
		t.Errorf("Expected unknown on timeout, got %q", result.Reachability)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Probe outlived its deadline: %v", elapsed)
	}
}

func TestProber_RobotsDisallowIsUnknown(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newTestProber(true)
	result := p.Probe(context.Background(), server.URL+"/private/item")
	if result.Reachability != model.ReachabilityUnknown {
		t.Errorf("Expected unknown for disallowed url, got %q", result.Reachability)
	}
	if probes.Load() != 0 {
		t.Errorf("Disallowed url must not be probed, got %d requests", probes.Load())
	}

	result = p.Probe(context.Background(), server.URL+"/public/item")
	if result.Reachability != model.ReachabilityReachable {
		t.Errorf("Expected reachable for allowed url, got %q", result.Reachability)
	}
}

func TestProber_EmptyURL(t *testing.T) {
	result := newTestProber(false).Probe(context.Background(), "")
	if result.Reachability != model.ReachabilityUnknown {
		t.Errorf("Expected unknown for empty url, got %q", result.Reachability)
	}
}

func TestIsRetryableProbe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   bool
	}{
		{"ok", 200, nil, false},
		{"404", 404, nil, false},
		{"500", 500, nil, true},
		{"503", 503, nil, true},
		{"429", 429, nil, true},
		{"refused", 0, errors.New("request failed: dial tcp: connection refused"), true},
		{"reset", 0, errors.New("read: connection reset by peer"), true},
		{"deadline", 0, fmt.Errorf("request failed: %w", context.DeadlineExceeded), false},
		{"dns", 0, errors.New("no such host"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableProbe(tt.status, tt.err); got != tt.want {
				t.Errorf("isRetryableProbe(%d, %v) = %v, want %v", tt.status, tt.err, got, tt.want)
			}
		})
	}
}
