package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// WarmReport summarizes one warmed query
type WarmReport struct {
	State  string // search stage outcome, e.g. "miss" or "hit-fresh"
	Offers int
}

// Warmer runs a query through the search path so its records land in cache
type Warmer interface {
	Warm(ctx context.Context, query string) (WarmReport, error)
}

// WarmJob represents one query to warm
type WarmJob struct {
	Index  int
	Query  string
	Warmer Warmer
}

// Execute executes the warm job
func (j *WarmJob) Execute(ctx context.Context) Result {
	report, err := j.Warmer.Warm(ctx, j.Query)
	return &WarmResult{
		Index:  j.Index,
		Query:  j.Query,
		Report: report,
		Error:  err,
	}
}

// WarmResult represents the result of a warm job
type WarmResult struct {
	Index  int
	Query  string
	Report WarmReport
	Error  error
}

// GetError returns the error from the warm result
func (r *WarmResult) GetError() error {
	return r.Error
}

// BatchProcessor warms many queries concurrently
type BatchProcessor struct {
	warmer      Warmer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(warmer Warmer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		warmer:      warmer,
		concurrency: concurrency,
	}
}

// ProcessQueries warms queries concurrently and returns results in input order
func (b *BatchProcessor) ProcessQueries(ctx context.Context, queries []string) []*WarmResult {
	if len(queries) == 0 {
		return []*WarmResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, q := range queries {
		if !pool.Submit(&WarmJob{Index: i, Query: q, Warmer: b.warmer}) {
			break
		}
	}

	results := pool.Wait()

	ordered := make([]*WarmResult, len(queries))
	for _, result := range results {
		wr := result.(*WarmResult)
		ordered[wr.Index] = wr
	}
	// Jobs never started because ctx ended
	for i, wr := range ordered {
		if wr == nil {
			ordered[i] = &WarmResult{Index: i, Query: queries[i], Error: fmt.Errorf("not started: %w", context.Cause(ctx))}
		}
	}

	return ordered
}

// ProcessFile reads queries from a file and warms them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*WarmResult, error) {
	queries, err := ReadQueriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}

	return b.ProcessQueries(ctx, queries), nil
}

// ReadQueriesFromFile reads queries from a file (one per line). Blank
// lines and # comments are skipped; queries that differ only in case or
// spacing are kept once.
func ReadQueriesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var queries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := strings.Join(strings.Fields(strings.ToLower(line)), " ")
		if !seen[key] {
			seen[key] = true
			queries = append(queries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return queries, nil
}
