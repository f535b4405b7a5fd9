package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/dealcore/internal/model"
)

func newTestProvider(t *testing.T, endpoint string) *HTTPProvider {
	t.Helper()
	p, err := NewHTTPProvider(model.SearchConfig{
		Endpoint: endpoint,
		APIKey:   "secret",
		Timeout:  5 * time.Second,
	}, model.HTTPConfig{UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("NewHTTPProvider: %v", err)
	}
	return p
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := searchSleepFunc
	searchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { searchSleepFunc = orig })
}

func TestHTTPProvider_Success(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Unexpected Authorization header: %q", auth)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("Unexpected User-Agent: %q", ua)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"results":[{"title":"iPhone 15 128GB","url":"https://www.bestbuy.com/p/1","price":"$799.99"}]}`)
	}))
	defer server.Close()

	ceiling := decimal.NewFromInt(900)
	p := newTestProvider(t, server.URL)
	records, err := p.Search(context.Background(), "iphone 15", model.Filters{MaxPrice: &ceiling, MaxResults: 5, Category: "electronics"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 || records[0].Title != "iPhone 15 128GB" {
		t.Fatalf("Unexpected records: %+v", records)
	}
	if got.Query != "iphone 15" || got.MaxPrice != "900" || got.MaxResults != 5 || got.Category != "electronics" {
		t.Errorf("Unexpected request body: %+v", got)
	}
}

func TestHTTPProvider_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()
	noSleep(t)

	p := newTestProvider(t, server.URL)
	if _, err := p.Search(context.Background(), "tv", model.Filters{}); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPProvider_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	noSleep(t)

	p := newTestProvider(t, server.URL)
	_, err := p.Search(context.Background(), "tv", model.Filters{})
	if err == nil {
		t.Fatal("Expected error for 401, got nil")
	}
	if got := err.Error(); got != "unexpected status: 401 Unauthorized" {
		t.Errorf("Unexpected error: %s", got)
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPProvider_RateLimitedExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()
	noSleep(t)

	p := newTestProvider(t, server.URL)
	if _, err := p.Search(context.Background(), "tv", model.Filters{}); err == nil {
		t.Fatal("Expected error after retries, got nil")
	}
	if attempts.Load() != searchMaxRetries {
		t.Errorf("Expected %d attempts, got %d", searchMaxRetries, attempts.Load())
	}
}

func TestHTTPProvider_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"results":[{"title":"`+strings.Repeat("x", 200)+`"}]}`)
	}))
	defer server.Close()

	p, err := NewHTTPProvider(model.SearchConfig{Endpoint: server.URL, MaxBodyBytes: 64}, model.HTTPConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Search(context.Background(), "tv", model.Filters{}); err == nil {
		t.Error("Expected decode error for truncated body")
	}
}

func TestNewHTTPProvider_RequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPProvider(model.SearchConfig{}, model.HTTPConfig{}); err == nil {
		t.Error("Expected error for missing endpoint")
	}
}

func TestIsRetryableSearchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &statusError{code: 503, status: "Service Unavailable"}, true},
		{"500", &statusError{code: 500}, true},
		{"429", &statusError{code: 429}, true},
		{"404", &statusError{code: 404}, false},
		{"wrapped 502", fmt.Errorf("search: %w", &statusError{code: 502}), true},
		{"timeout", errors.New("search request: net/http: request canceled (Client.Timeout exceeded) timeout"), true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:1: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"canceled", fmt.Errorf("search request: %w", context.Canceled), false},
		{"decode", errors.New("decode response: unexpected EOF"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableSearchError(tt.err); got != tt.want {
				t.Errorf("isRetryableSearchError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseMaxPrice(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"laptop under $500", "500"},
		{"headphones below 300", "300"},
		{"shoes less than $80", "80"},
		{"tv max $1,000", "1000"},
		{"camera under 1.5k", "1500"},
		{"phones < 500", "500"},
		{"monitor <$250", "250"},
		{"iphone 15", ""},
		{"under warranty phone", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ParseMaxPrice(tt.query)
			if tt.want == "" {
				if got != nil {
					t.Errorf("ParseMaxPrice(%q) = %s, want nil", tt.query, got)
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Errorf("ParseMaxPrice(%q) = %v, want %s", tt.query, got, tt.want)
			}
		})
	}
}
