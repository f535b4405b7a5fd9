// Package search runs the cache-aware search stage and hosts the
// search-provider adapter.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/util"
)

const searchMaxRetries = 3

// searchSleepFunc is the sleep function used between retries (injectable for tests)
var searchSleepFunc = time.Sleep

// Provider returns candidate records for a query
type Provider interface {
	Search(ctx context.Context, query string, filters model.Filters) ([]model.RawRecord, error)
}

// HTTPProvider calls a JSON search endpoint:
// POST {"query","max_results","max_price","category","include_domains"}
// and expects {"results":[RawRecord...]}.
type HTTPProvider struct {
	endpoint   string
	apiKey     string
	userAgent  string
	maxBytes   int64
	httpClient *http.Client
}

type searchRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	MaxPrice       string   `json:"max_price,omitempty"`
	Category       string   `json:"category,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type searchResponse struct {
	Results []model.RawRecord `json:"results"`
}

// statusError is a non-2xx reply from the endpoint
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.code, e.status)
}

// NewHTTPProvider creates a provider for endpoint
func NewHTTPProvider(cfg model.SearchConfig, httpCfg model.HTTPConfig) (*HTTPProvider, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("search endpoint is required")
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPProvider{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		userAgent:  httpCfg.UserAgent,
		maxBytes:   maxBytes,
		httpClient: util.NewHTTPClient(timeout, 3, httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
	}, nil
}

// Search queries the endpoint, retrying transient failures with backoff
func (p *HTTPProvider) Search(ctx context.Context, query string, filters model.Filters) ([]model.RawRecord, error) {
	body := searchRequest{
		Query:          query,
		MaxResults:     filters.MaxResults,
		Category:       filters.Category,
		IncludeDomains: filters.IncludeDomains,
	}
	if filters.MaxPrice != nil {
		body.MaxPrice = filters.MaxPrice.String()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < searchMaxRetries; attempt++ {
		records, err := p.searchOnce(ctx, payload)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if !isRetryableSearchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < searchMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			searchSleepFunc(backoff)
		}
	}
	return nil, lastErr
}

func (p *HTTPProvider) searchOnce(ctx context.Context, payload []byte) ([]model.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: http.StatusText(resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var out searchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Results, nil
}

// isRetryableSearchError reports transient failures: 5xx, 429, timeouts,
// refused or reset connections
func isRetryableSearchError(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
