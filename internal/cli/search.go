package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	sessionID  string
	jsonOutput bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search for deals and start or continue a session",
	Long: `Search finds deals for a query:
- Serve fresh cached results, or fetch when the cache is missing or too old
- Verify each offer (completeness, relevance, reachability)
- Rank by price, discount, rating, quality and freshness
- Print a numbered list and remember it for follow-up questions

Example:
  dealcore search "iPhone 15"
  dealcore search "cheapest airpods under $150" --session 3f2c...
  dealcore search "gaming laptop" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&sessionID, "session", "", "session id (generated when empty)")
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result set as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	p, cfg, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TurnTimeout+5*time.Second)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Searching: %s\n", query)
		fmt.Fprintf(os.Stderr, "Session:   %s\n", sessionID)
		fmt.Fprintln(os.Stderr)
	}

	resp, err := p.RunSearch(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp.ResultSet); err != nil {
			return fmt.Errorf("encode result set: %w", err)
		}
	} else {
		fmt.Println(resp.Summary)
	}

	if verbose {
		fmt.Fprintln(os.Stderr)
		success(os.Stderr, "Cache state: %s", resp.State)
	}
	fmt.Fprintf(os.Stderr, "\nsession: %s\n", sessionID)
	return nil
}
