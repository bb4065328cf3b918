package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lazypower/recall/internal/store"
)

// PruneResult reports what a pruning pass removed and why.
type PruneResult struct {
	PrunedCount int
	Reasons     []string
}

// Prune removes low-value memories in two minimal passes. The first pass
// removes entries below minImportance or older than maxAge; the second
// keeps only the top maxEntries survivors ranked by the composite score
// importance * log(accessCount + 1). Zero disables the respective
// constraint. Every discard records a human-readable reason. The record is
// mutated in place; the caller persists it.
func Prune(ctx context.Context, rec *store.ProjectRecord, maxEntries int, minImportance float64, maxAge time.Duration) (PruneResult, error) {
	var res PruneResult
	now := time.Now().UTC()

	// Pass 1: threshold and age criteria, each minimal for its own rule.
	for _, entry := range orderedEntries(rec) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if minImportance > 0 && entry.Importance < minImportance {
			delete(rec.Memories, entry.Title)
			res.PrunedCount++
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"%s: importance %.3f below minimum %.3f",
				entry.Title, entry.Importance, minImportance))
			continue
		}
		if maxAge > 0 && now.Sub(entry.Timestamp) > maxAge {
			delete(rec.Memories, entry.Title)
			res.PrunedCount++
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"%s: age %s exceeds maximum %s",
				entry.Title, now.Sub(entry.Timestamp).Round(time.Hour), maxAge))
		}
	}

	// Pass 2: quota. Only runs when survivors still exceed maxEntries, and
	// removes exactly the excess.
	if maxEntries <= 0 || len(rec.Memories) <= maxEntries {
		return res, nil
	}

	survivors := orderedEntries(rec)
	sort.SliceStable(survivors, func(i, j int) bool {
		return pruneScore(survivors[i]) > pruneScore(survivors[j])
	})

	for rank, entry := range survivors[maxEntries:] {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		delete(rec.Memories, entry.Title)
		res.PrunedCount++
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"%s: score %.3f ranked %d over quota %d",
			entry.Title, pruneScore(entry), maxEntries+rank+1, maxEntries))
	}

	return res, nil
}

// pruneScore is the composite ranking used when a quota is still exceeded
// after threshold filtering: importance weighted by access frequency.
func pruneScore(e *store.MemoryEntry) float64 {
	return e.Importance * math.Log(float64(e.AccessCount)+1)
}
