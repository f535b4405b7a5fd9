// Package verify checks offers for reachability, completeness and
// relevance, and filters them by strictness.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/util"
	"github.com/ppiankov/dealcore/internal/worker"
)

// probeSleepFunc waits between retries. It returns false if ctx ended first
// (injectable for tests).
var probeSleepFunc = func(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Checker probes a url for existence
type Checker interface {
	Probe(ctx context.Context, rawURL string) ProbeResult
}

// ProbeResult is the outcome of one url probe
type ProbeResult struct {
	URL          string
	Reachability model.Reachability
	StatusCode   int
	Attempts     int
	Error        string
}

// Prober is the HTTP Checker: HEAD with a GET fallback, robots.txt
// honored, rate limited per host
type Prober struct {
	httpClient *http.Client
	userAgent  string
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	maxRetries int
	log        zerolog.Logger
}

// NewProber creates a prober from verification and HTTP settings
func NewProber(cfg model.VerificationConfig, httpCfg model.HTTPConfig, log zerolog.Logger) *Prober {
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	client := util.NewHTTPClient(timeout, 3, httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy)
	p := &Prober{
		httpClient: client,
		userAgent:  httpCfg.UserAgent,
		limiter:    worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		maxRetries: retries,
		log:        log,
	}
	if cfg.RespectRobots {
		p.robots = util.NewRobotsChecker(httpCfg.UserAgent, client)
	}
	return p
}

// Probe checks rawURL. A deadline, cancellation or robots.txt refusal
// yields unknown rather than unreachable.
func (p *Prober) Probe(ctx context.Context, rawURL string) ProbeResult {
	result := ProbeResult{URL: rawURL, Reachability: model.ReachabilityUnknown}
	if strings.TrimSpace(rawURL) == "" {
		result.Error = "no url"
		return result
	}

	if p.robots != nil {
		allowed, delay, err := p.robots.CanFetch(ctx, rawURL)
		if err != nil {
			result.Reachability = model.ReachabilityUnreachable
			result.Error = err.Error()
			return result
		}
		if !allowed {
			result.Error = "disallowed by robots.txt"
			return result
		}
		if delay > 0 {
			p.limiter.ApplyCrawlDelay(rawURL, delay)
		}
	}

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if err := p.limiter.Wait(ctx, rawURL); err != nil {
			result.Error = fmt.Sprintf("rate limit: %v", err)
			result.Reachability = model.ReachabilityUnknown
			return result
		}

		result.Attempts = attempt + 1
		status, err := p.probeOnce(ctx, rawURL)
		result.StatusCode = status
		result.Error = ""
		if err != nil {
			result.Error = err.Error()
		}

		if ctx.Err() != nil {
			result.Reachability = model.ReachabilityUnknown
			return result
		}
		if err == nil && status >= 200 && status < 400 {
			result.Reachability = model.ReachabilityReachable
			return result
		}
		result.Reachability = model.ReachabilityUnreachable
		if !isRetryableProbe(status, err) {
			return result
		}
		if attempt < p.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if !probeSleepFunc(ctx, backoff) {
				result.Reachability = model.ReachabilityUnknown
				return result
			}
		}
	}
	return result
}

// probeOnce issues HEAD, falling back to GET when the server rejects HEAD
func (p *Prober) probeOnce(ctx context.Context, rawURL string) (int, error) {
	status, err := p.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return 0, err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		return p.do(ctx, http.MethodGet, rawURL)
	}
	return status, nil
}

func (p *Prober) do(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// isRetryableProbe returns true for outcomes that indicate transient failures
func isRetryableProbe(status int, err error) bool {
	if status >= 500 && status < 600 {
		return true
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return isRetryableNetworkError(err.Error())
	}
	return false
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
