package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dealcore/internal/model"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask about a deal from the session's last search",
	Long: `Ask resolves which deal a question refers to and answers from that
listing only. Each fact is marked:
  ✅ verified (with its source URL)
  ⚠️ inferred (with the rule used)
  ❌ not specified by the listing

Example:
  dealcore ask "tell me about #2" --session 3f2c...
  dealcore ask "does the cheapest one have good battery life?" --session 3f2c...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&sessionID, "session", "", "session id printed by search")
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the verified claims as JSON")
	_ = askCmd.MarkFlagRequired("session")
}

func runAsk(cmd *cobra.Command, args []string) error {
	utterance := strings.Join(args, " ")

	p, cfg, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TurnTimeout+5*time.Second)
	defer cancel()

	resp, err := p.RunFollowUp(ctx, utterance, sessionID)
	var ambiguous *model.AmbiguousReferenceError
	switch {
	case errors.As(err, &ambiguous):
		warning(os.Stdout, "Which one do you mean?")
		for _, o := range ambiguous.Alternatives {
			fmt.Printf("  #%d %s\n", o.SequenceNumber, o.Name())
		}
		return err
	case errors.Is(err, model.ErrNoResultSet):
		return fmt.Errorf("no search results for session %s, run 'dealcore search' first", sessionID)
	case err != nil:
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp.Claims()); err != nil {
			return fmt.Errorf("encode claims: %w", err)
		}
		return nil
	}
	fmt.Println(resp.Text)
	return nil
}
