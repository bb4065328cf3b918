// Package config holds recall configuration: typed defaults, YAML loading,
// and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all recall configuration.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Cache       CacheConfig       `yaml:"cache"`
	Backup      BackupConfig      `yaml:"backup"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"` // record directory; empty resolves to ~/.recall/projects
}

type CacheConfig struct {
	Capacity     int `yaml:"capacity"`
	TTLSeconds   int `yaml:"ttl_seconds"`
	SweepSeconds int `yaml:"sweep_seconds"`
}

type BackupConfig struct {
	Dir             string `yaml:"dir"` // backup root; empty resolves to ~/.recall/backups
	CooldownSeconds int    `yaml:"cooldown_seconds"`
	Retention       int    `yaml:"retention"`
	SweepMinutes    int    `yaml:"sweep_minutes"`
}

type MaintenanceConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinClusterSize      int     `yaml:"min_cluster_size"`
	DecayFactor         float64 `yaml:"decay_factor"`
	ReinforcementFactor float64 `yaml:"reinforcement_factor"`
	MaxEntries          int     `yaml:"max_entries"`
	MinImportance       float64 `yaml:"min_importance"`
	MaxAgeDays          int     `yaml:"max_age_days"`
}

type EmbeddingConfig struct {
	Dimensions int `yaml:"dimensions"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Dir: "", // resolved at runtime via store.DefaultStorePath()
		},
		Cache: CacheConfig{
			Capacity:     128,
			TTLSeconds:   300,
			SweepSeconds: 60,
		},
		Backup: BackupConfig{
			Dir:             "", // resolved at runtime via backup.DefaultBackupPath()
			CooldownSeconds: 120,
			Retention:       25,
			SweepMinutes:    10,
		},
		Maintenance: MaintenanceConfig{
			SimilarityThreshold: 0.85,
			MinClusterSize:      2,
			DecayFactor:         0.95,
			ReinforcementFactor: 1.1,
			MaxEntries:          200,
			MinImportance:       0.05,
			MaxAgeDays:          90,
		},
		Embedding: EmbeddingConfig{
			Dimensions: 256,
		},
	}
}

// DefaultPath returns the default config file path: ~/.recall/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".recall", "config.yaml"), nil
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate rejects out-of-range settings.
func (c *Config) Validate() error {
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Backup.Retention < 1 {
		return fmt.Errorf("backup retention must be positive, got %d", c.Backup.Retention)
	}
	if c.Maintenance.SimilarityThreshold < 0 || c.Maintenance.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in [0, 1], got %f",
			c.Maintenance.SimilarityThreshold)
	}
	if c.Maintenance.DecayFactor <= 0 || c.Maintenance.DecayFactor > 1 {
		return fmt.Errorf("decay factor must be in (0, 1], got %f",
			c.Maintenance.DecayFactor)
	}
	if c.Maintenance.ReinforcementFactor < 1 {
		return fmt.Errorf("reinforcement factor must be >= 1, got %f",
			c.Maintenance.ReinforcementFactor)
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding dimensions must be positive, got %d",
			c.Embedding.Dimensions)
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// CacheSweep returns the cache sweep interval as a duration.
func (c *Config) CacheSweep() time.Duration {
	return time.Duration(c.Cache.SweepSeconds) * time.Second
}

// BackupCooldown returns the backup cooldown as a duration.
func (c *Config) BackupCooldown() time.Duration {
	return time.Duration(c.Backup.CooldownSeconds) * time.Second
}

// BackupSweep returns the backup sweep interval as a duration.
func (c *Config) BackupSweep() time.Duration {
	return time.Duration(c.Backup.SweepMinutes) * time.Minute
}

// MaxAge returns the maintenance age limit as a duration.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.Maintenance.MaxAgeDays) * 24 * time.Hour
}
