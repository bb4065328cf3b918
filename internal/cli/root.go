package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/recall/internal/backup"
	"github.com/lazypower/recall/internal/cache"
	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/engine"
	"github.com/lazypower/recall/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Durable project-scoped memory with backups and lifecycle maintenance",
	Long:  "Recall stores titled text memories per project, serves them through a cache, keeps rotating backups, and maintains long-term health via consolidation, decay, and pruning.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(maintainCmd)
}

// loadConfig reads the config file from RECALL_CONFIG or the default path.
func loadConfig() (config.Config, error) {
	path := os.Getenv("RECALL_CONFIG")
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}

// openEngine wires cache, store, and backup supervisor for CLI commands.
// The returned cleanup stops background goroutines.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	storeDir := cfg.Storage.Dir
	if storeDir == "" {
		storeDir, err = store.DefaultStorePath()
		if err != nil {
			return nil, nil, err
		}
	}
	backupDir := cfg.Backup.Dir
	if backupDir == "" {
		backupDir, err = backup.DefaultBackupPath()
		if err != nil {
			return nil, nil, err
		}
	}

	c := cache.New(cfg.Cache.Capacity, cfg.CacheTTL(), cfg.CacheSweep())

	s, err := store.Open(storeDir, c)
	if err != nil {
		c.Stop()
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	sup, err := backup.New(s, backupDir, cfg.BackupCooldown(), cfg.Backup.Retention, cfg.BackupSweep())
	if err != nil {
		c.Stop()
		return nil, nil, fmt.Errorf("open backups: %w", err)
	}

	e := engine.New(s, sup)
	e.SetEmbedder(engine.NewHashEmbedder(cfg.Embedding.Dimensions))

	cleanup := func() {
		sup.Stop()
		c.Stop()
	}
	return e, cleanup, nil
}
