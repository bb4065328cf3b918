package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/recall/internal/engine"
)

var (
	searchLimit  int
	searchMinSim float64
)

var searchCmd = &cobra.Command{
	Use:   "search [project] [query]",
	Short: "Search a project's memories by similarity",
	Long:  "Rank memories against the query using the local deterministic embedder. Only memories stored with --embed participate.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	project := args[0]
	query := strings.Join(args[1:], " ")

	e, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := e.SearchText(ctx, project, query, engine.SearchOpts{
		Limit:         searchLimit,
		MinSimilarity: searchMinSim,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.Similarity, r.Title)
		content := r.Entry.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("   %s\n\n", content)
	}
	return nil
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinSim, "min-similarity", 0.3, "Minimum similarity to include a result")
}
