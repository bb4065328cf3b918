package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lazypower/recall/internal/engine"
)

// --- store command ---

var storeEmbed bool

var storeCmd = &cobra.Command{
	Use:   "store [project] [title] [content]",
	Short: "Store a memory",
	Long:  "Create or overwrite a titled memory in a project. With --embed, a deterministic local embedding is attached so the memory participates in similarity search.",
	Args:  cobra.ExactArgs(3),
	RunE:  runStore,
}

func runStore(cmd *cobra.Command, args []string) error {
	project, title, content := args[0], args[1], args[2]

	e, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	var embedding []float64
	if storeEmbed {
		embedding, err = e.Embedder.Embed(context.Background(), content)
		if err != nil {
			return fmt.Errorf("embed content: %w", err)
		}
	}

	if err := e.StoreMemory(project, title, content, embedding); err != nil {
		return err
	}
	fmt.Printf("stored %q in %s\n", title, project)
	return nil
}

// --- get command ---

var getCmd = &cobra.Command{
	Use:   "get [project] [title]",
	Short: "Fetch a memory's content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		content, err := e.Fetch(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(content)
		return nil
	},
}

// --- update command ---

var updateMode string

var updateCmd = &cobra.Command{
	Use:   "update [project] [title] [content]",
	Short: "Update an existing memory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := e.UpdateMemory(args[0], args[1], args[2], engine.UpdateMode(updateMode)); err != nil {
			return err
		}
		fmt.Printf("updated %q in %s (%s)\n", args[1], args[0], updateMode)
		return nil
	},
}

// --- delete command ---

var deleteCmd = &cobra.Command{
	Use:   "delete [project] [title]",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := e.DeleteMemory(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("deleted %q from %s\n", args[1], args[0])
		return nil
	},
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list [project]",
	Short: "List a project's memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		rec, err := e.Store.Read(args[0])
		if err != nil {
			return err
		}
		if len(rec.Memories) == 0 {
			fmt.Println("No memories stored.")
			return nil
		}

		titles := make([]string, 0, len(rec.Memories))
		for title := range rec.Memories {
			titles = append(titles, title)
		}
		sort.Strings(titles)

		for _, title := range titles {
			entry := rec.Memories[title]
			fmt.Printf("%s  (importance %.2f, accessed %d)\n",
				title, entry.Importance, entry.AccessCount)
		}
		return nil
	},
}

// --- projects command ---

var projectsStats bool

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		projects, err := e.Store.List()
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects yet.")
			return nil
		}
		sort.Strings(projects)
		for _, p := range projects {
			rec, err := e.Store.Read(p)
			if err != nil {
				fmt.Printf("%s  (unreadable: %v)\n", p, err)
				continue
			}
			fmt.Printf("%s  (%d memories, updated %s)\n",
				p, len(rec.Memories), rec.LastUpdated.Format("2006-01-02 15:04"))
		}

		if projectsStats {
			stats := e.Store.CacheStats()
			fmt.Printf("\ncache: %d hits, %d misses, %d entries, ~%d bytes\n",
				stats.Hits, stats.Misses, stats.Size, stats.MemoryBytes)
		}
		return nil
	},
}

func init() {
	storeCmd.Flags().BoolVar(&storeEmbed, "embed", false, "Attach a local embedding for similarity search")
	projectsCmd.Flags().BoolVar(&projectsStats, "stats", false, "Include read-cache statistics")
	updateCmd.Flags().StringVarP(&updateMode, "mode", "m", "replace", "Update mode: append, prepend, or replace")
}
