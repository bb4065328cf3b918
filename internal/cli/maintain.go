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
	maintainQuery         string
	maintainNoConsolidate bool
	maintainNoPrune       bool
)

var maintainCmd = &cobra.Command{
	Use:   "maintain [project]",
	Short: "Run a maintenance pass: consolidate, adjust importance, prune",
	Long:  "Merge near-duplicate memories, optionally decay or reinforce importance against a reference query, and prune entries past the configured limits. The record is rewritten once, only if every stage succeeds.",
	Args:  cobra.ExactArgs(1),
	RunE:  runMaintain,
}

func runMaintain(cmd *cobra.Command, args []string) error {
	project := args[0]

	e, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	policy := engine.MaintenancePolicy{
		Consolidate:         !maintainNoConsolidate,
		SimilarityThreshold: cfg.Maintenance.SimilarityThreshold,
		MinClusterSize:      cfg.Maintenance.MinClusterSize,
		AdjustThreshold:     0.7,
		DecayFactor:         cfg.Maintenance.DecayFactor,
		ReinforcementFactor: cfg.Maintenance.ReinforcementFactor,
		Prune:               !maintainNoPrune,
		MaxEntries:          cfg.Maintenance.MaxEntries,
		MinImportance:       cfg.Maintenance.MinImportance,
		MaxAge:              cfg.MaxAge(),
	}

	// A reference query turns on the decay/reinforcement stage; without one
	// importance is left alone.
	if maintainQuery != "" {
		vec, err := e.Embedder.Embed(ctx, maintainQuery)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		policy.AdjustImportance = true
		policy.ReferenceVector = vec
	}

	report, err := e.RunMaintenance(ctx, project, policy)
	if err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}

	fmt.Printf("maintenance %s completed in %s\n", report.ID, report.Duration.Round(time.Millisecond))
	fmt.Printf("  consolidated: %d merged across %d clusters\n", report.MergedCount, report.ClusterCount)
	if policy.AdjustImportance {
		fmt.Printf("  importance:   %d reinforced, %d decayed\n", report.Reinforced, report.Decayed)
	}
	fmt.Printf("  pruned:       %d\n", report.PrunedCount)
	if len(report.PruneReasons) > 0 {
		fmt.Printf("    %s\n", strings.Join(report.PruneReasons, "\n    "))
	}
	return nil
}

func init() {
	maintainCmd.Flags().StringVarP(&maintainQuery, "query", "q", "", "Reference query for importance reinforcement")
	maintainCmd.Flags().BoolVar(&maintainNoConsolidate, "no-consolidate", false, "Skip the consolidation stage")
	maintainCmd.Flags().BoolVar(&maintainNoPrune, "no-prune", false, "Skip the pruning stage")
}
