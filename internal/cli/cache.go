package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached search records",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <query>",
	Short: "Drop the cached records for a query",
	Long: `Invalidate removes the cached records for a query so the next search
fetches fresh results. Queries that differ only in case or spacing share
one entry.

Example:
  dealcore cache invalidate "iPhone 15"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		p, _, err := openPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		if err := p.Invalidate(cmd.Context(), query); err != nil {
			return fmt.Errorf("invalidate %q: %w", query, err)
		}
		success(os.Stdout, "Invalidated cached records for %q", query)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
}
