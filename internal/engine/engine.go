// Package engine implements the memory lifecycle operations: titled memory
// CRUD over the record store, similarity search, and the maintenance pass
// (consolidation, importance adjustment, pruning). The similarity algorithms
// are pure functions over an in-memory record; only the Engine persists.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/recall/internal/backup"
	"github.com/lazypower/recall/internal/errs"
	"github.com/lazypower/recall/internal/store"
)

// UpdateMode selects how Update combines new content with existing content.
type UpdateMode string

const (
	ModeAppend  UpdateMode = "append"
	ModePrepend UpdateMode = "prepend"
	ModeReplace UpdateMode = "replace"
)

// Engine orchestrates memory storage, search, backups, and maintenance.
type Engine struct {
	Store    *store.Store
	Backups  *backup.Supervisor
	Embedder Embedder
}

// New creates a new Engine. The backup supervisor is optional; without it,
// writes are not followed by opportunistic backups.
func New(s *store.Store, b *backup.Supervisor) *Engine {
	return &Engine{Store: s, Backups: b}
}

// SetEmbedder configures the embedding provider used by SearchText.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// StoreMemory creates or overwrites a titled memory. New entries get the
// default importance; existing entries keep importance, access count and
// tags, and refresh content, embedding and timestamp.
func (e *Engine) StoreMemory(project, title, content string, embedding []float64) error {
	if title == "" {
		return errs.New("engine.store", errs.CodeNotFound,
			"memory title must not be empty").WithProject(project).
			WithSuggestion("provide a non-empty title")
	}

	err := e.Store.Update(project, func(rec *store.ProjectRecord) error {
		entry, ok := rec.Memories[title]
		if !ok {
			entry = &store.MemoryEntry{
				Title:      title,
				Importance: store.DefaultImportance,
				Tags:       []string{},
			}
			rec.Memories[title] = entry
		}
		entry.Content = content
		entry.Embedding = embedding
		entry.Timestamp = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	e.backupAfterWrite(project)
	return nil
}

// Fetch returns a memory's content and counts the access.
func (e *Engine) Fetch(project, title string) (string, error) {
	var content string
	err := e.Store.Update(project, func(rec *store.ProjectRecord) error {
		entry, ok := rec.Memories[title]
		if !ok {
			return errs.New("engine.fetch", errs.CodeNotFound,
				fmt.Sprintf("memory %q not found in project %q", title, project)).
				WithProject(project).WithTitle(title).
				WithSuggestion("list the project's memories to see what is available")
		}
		entry.AccessCount++
		content = entry.Content
		return nil
	})
	return content, err
}

// UpdateMemory modifies an existing memory's content per the given mode.
func (e *Engine) UpdateMemory(project, title, content string, mode UpdateMode) error {
	err := e.Store.Update(project, func(rec *store.ProjectRecord) error {
		entry, ok := rec.Memories[title]
		if !ok {
			return errs.New("engine.update", errs.CodeNotFound,
				fmt.Sprintf("memory %q not found in project %q", title, project)).
				WithProject(project).WithTitle(title).
				WithSuggestion("store the memory first")
		}
		switch mode {
		case ModeAppend:
			entry.Content = entry.Content + "\n" + content
		case ModePrepend:
			entry.Content = content + "\n" + entry.Content
		case ModeReplace, "":
			entry.Content = content
		default:
			return errs.New("engine.update", errs.CodeNotFound,
				fmt.Sprintf("unknown update mode %q", mode)).
				WithProject(project).WithTitle(title).
				WithSuggestion("use append, prepend, or replace")
		}
		entry.Timestamp = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	e.backupAfterWrite(project)
	return nil
}

// DeleteMemory removes a titled memory.
func (e *Engine) DeleteMemory(project, title string) error {
	err := e.Store.Update(project, func(rec *store.ProjectRecord) error {
		if _, ok := rec.Memories[title]; !ok {
			return errs.New("engine.delete", errs.CodeNotFound,
				fmt.Sprintf("memory %q not found in project %q", title, project)).
				WithProject(project).WithTitle(title).
				WithSuggestion("list the project's memories to see what is available")
		}
		delete(rec.Memories, title)
		return nil
	})
	if err != nil {
		return err
	}

	e.backupAfterWrite(project)
	return nil
}

// Search ranks the project's memories against the query vector and persists
// the access-count bumps for returned entries.
func (e *Engine) Search(project string, query []float64, opts SearchOpts) ([]SearchResult, error) {
	var results []SearchResult
	err := e.Store.Update(project, func(rec *store.ProjectRecord) error {
		found, err := Search(rec, query, opts)
		if err != nil {
			return err
		}
		// Clone entries out of the working record so callers cannot mutate
		// store state through the results.
		results = make([]SearchResult, len(found))
		for i, r := range found {
			results[i] = SearchResult{
				Title:      r.Title,
				Similarity: r.Similarity,
				Entry:      r.Entry.Clone(),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchText embeds the query with the configured embedder and searches.
func (e *Engine) SearchText(ctx context.Context, project, query string, opts SearchOpts) ([]SearchResult, error) {
	if e.Embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	vec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.Search(project, vec, opts)
}

// BackupNow snapshots the project, optionally bypassing the cooldown.
func (e *Engine) BackupNow(project string, force bool) (string, error) {
	if e.Backups == nil {
		return "", fmt.Errorf("no backup supervisor configured")
	}
	return e.Backups.Backup(project, backup.Options{Force: force})
}

// Restore replaces a project's live record with a validated backup.
func (e *Engine) Restore(path, project string) error {
	if e.Backups == nil {
		return fmt.Errorf("no backup supervisor configured")
	}
	return e.Backups.Restore(path, project)
}

// backupAfterWrite takes an opportunistic snapshot when the cooldown allows.
// Backup failure never fails the write that triggered it.
func (e *Engine) backupAfterWrite(project string) {
	if e.Backups == nil || !e.Backups.CanBackup(project, false) {
		return
	}
	if _, err := e.Backups.Backup(project, backup.Options{}); err != nil {
		log.Printf("engine: post-write backup for %s: %v", project, err)
	}
}

// MaintenancePolicy selects and parameterizes the maintenance stages.
type MaintenancePolicy struct {
	Consolidate         bool
	SimilarityThreshold float64
	MinClusterSize      int

	AdjustImportance    bool
	ReferenceVector     []float64
	AdjustThreshold     float64
	DecayFactor         float64
	ReinforcementFactor float64

	Prune         bool
	MaxEntries    int
	MinImportance float64
	MaxAge        time.Duration
}

// DefaultMaintenancePolicy returns the standard scheduled-pass settings.
func DefaultMaintenancePolicy() MaintenancePolicy {
	return MaintenancePolicy{
		Consolidate:         true,
		SimilarityThreshold: 0.85,
		MinClusterSize:      2,
		AdjustImportance:    false,
		AdjustThreshold:     0.7,
		DecayFactor:         0.95,
		ReinforcementFactor: 1.1,
		Prune:               true,
		MaxEntries:          200,
		MinImportance:       0.05,
		MaxAge:              90 * 24 * time.Hour,
	}
}

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	ID        string
	Project   string
	StartedAt time.Time
	Duration  time.Duration

	MergedCount  int
	ClusterCount int
	Reinforced   int
	Decayed      int
	PrunedCount  int
	PruneReasons []string
}

// RunMaintenance runs consolidation, importance adjustment, and pruning as
// one read-modify-write pass. The record is persisted once, only if every
// enabled stage completes; cancellation or a stage error leaves durable
// state untouched.
func (e *Engine) RunMaintenance(ctx context.Context, project string, policy MaintenancePolicy) (*MaintenanceReport, error) {
	report := &MaintenanceReport{
		ID:        uuid.NewString(),
		Project:   project,
		StartedAt: time.Now().UTC(),
	}

	err := e.Store.Update(project, func(rec *store.ProjectRecord) error {
		if policy.Consolidate {
			res, err := Consolidate(ctx, rec, policy.SimilarityThreshold, policy.MinClusterSize)
			if err != nil {
				return err
			}
			report.MergedCount = res.MergedCount
			report.ClusterCount = res.ClusterCount
		}
		if policy.AdjustImportance {
			res, err := AdjustImportance(rec, policy.ReferenceVector,
				policy.AdjustThreshold, policy.DecayFactor, policy.ReinforcementFactor)
			if err != nil {
				return err
			}
			report.Reinforced = res.Reinforced
			report.Decayed = res.Decayed
		}
		if policy.Prune {
			res, err := Prune(ctx, rec, policy.MaxEntries, policy.MinImportance, policy.MaxAge)
			if err != nil {
				return err
			}
			report.PrunedCount = res.PrunedCount
			report.PruneReasons = res.Reasons
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Duration = time.Since(report.StartedAt)
	log.Printf("maintenance: %s merged=%d pruned=%d (op %s)",
		project, report.MergedCount, report.PrunedCount, report.ID)
	return report, nil
}
