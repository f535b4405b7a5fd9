package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dealcore/internal/search"
	"github.com/ppiankov/dealcore/internal/worker"
)

var (
	concurrency int
	warmTimeout time.Duration
)

// warmCmd represents the warm command
var warmCmd = &cobra.Command{
	Use:   "warm <file>",
	Short: "Pre-fetch popular queries into the cache",
	Long: `Warm reads queries from a file (one per line, # comments allowed)
and runs each through the search stage in parallel, so later searches are
served from cache. Fresh entries are left alone.

Example:
  dealcore warm popular.txt
  dealcore warm popular.txt --concurrency 8 --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)

	warmCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	warmCmd.Flags().DurationVar(&warmTimeout, "timeout", 10*time.Minute, "total timeout for warming")
}

func runWarm(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), warmTimeout)
	defer cancel()

	p, _, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  DealCore Cache Warming\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", warmTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(p, concurrency)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	counts := make(map[string]int)
	failures := 0
	for _, r := range results {
		if r.Error != nil {
			failures++
			failure(os.Stderr, "%s: %v", r.Query, r.Error)
			continue
		}
		counts[r.Report.State]++
		success(os.Stderr, "%s (%s, %d offers)", r.Query, r.Report.State, r.Report.Offers)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Warming Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d queries\n", len(results))
	fmt.Fprintf(os.Stderr, "  Fetched:    %d\n", counts[string(search.StateMiss)]+counts[string(search.StateRefreshed)])
	fmt.Fprintf(os.Stderr, "  Cached:     %d\n", counts[string(search.StateHitFresh)]+counts[string(search.StateHitStale)])
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", failures)
	fmt.Fprintf(os.Stderr, "\n")

	if failures > 0 && failures == len(results) {
		return fmt.Errorf("all %d queries failed", failures)
	}
	return nil
}
