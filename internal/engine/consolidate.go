package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lazypower/recall/internal/store"
)

// ConsolidationBonus scales the mean importance of merged members so a
// consolidated memory outranks its parts.
const ConsolidationBonus = 1.2

// contentDelimiter separates member contents inside a merged memory.
const contentDelimiter = "\n\n---\n\n"

// ConsolidateResult summarizes one consolidation pass.
type ConsolidateResult struct {
	MergedCount  int // entries removed by merging (cluster size - 1 per cluster)
	ClusterCount int // clusters that met the minimum size
}

// Consolidate merges clusters of highly similar memories into single
// entries. Clustering is single-pass greedy: entries are visited in a
// deterministic stored order (timestamp, then title) and each unassigned
// entry seeds a cluster that absorbs every later unassigned entry whose
// similarity to the seed meets the threshold. Clusters below minClusterSize
// are discarded. The record is mutated in place; the caller persists it.
func Consolidate(ctx context.Context, rec *store.ProjectRecord, threshold float64, minClusterSize int) (ConsolidateResult, error) {
	var res ConsolidateResult
	if minClusterSize < 2 {
		minClusterSize = 2
	}

	entries := orderedEntries(rec)

	// Cluster first, mutate after: a vector shape error must not leave the
	// record half-merged.
	claimed := make(map[string]bool)
	var clusters [][]*store.MemoryEntry
	for i, seed := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if claimed[seed.Title] || len(seed.Embedding) == 0 {
			continue
		}
		cluster := []*store.MemoryEntry{seed}
		for _, candidate := range entries[i+1:] {
			if claimed[candidate.Title] || len(candidate.Embedding) == 0 {
				continue
			}
			sim, err := Cosine(seed.Embedding, candidate.Embedding)
			if err != nil {
				return res, err
			}
			if sim >= threshold {
				cluster = append(cluster, candidate)
				claimed[candidate.Title] = true
			}
		}
		claimed[seed.Title] = true
		if len(cluster) >= minClusterSize {
			clusters = append(clusters, cluster)
		}
	}

	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		merged, err := mergeCluster(cluster)
		if err != nil {
			return res, err
		}
		for _, member := range cluster {
			delete(rec.Memories, member.Title)
		}
		rec.Memories[merged.Title] = merged
		res.ClusterCount++
		res.MergedCount += len(cluster) - 1
	}

	return res, nil
}

// mergeCluster folds cluster members into one entry. The importance-highest
// member supplies the base fields; contents concatenate in cluster order,
// tags union, embeddings average (re-normalized), importances average with
// the consolidation bonus, access counts sum.
func mergeCluster(cluster []*store.MemoryEntry) (*store.MemoryEntry, error) {
	base := cluster[0]
	for _, m := range cluster[1:] {
		if m.Importance > base.Importance {
			base = m
		}
	}

	var contents []string
	var vecs [][]float64
	tagSet := make(map[string]bool)
	importanceSum := 0.0
	accessSum := 0
	for _, m := range cluster {
		contents = append(contents, m.Content)
		vecs = append(vecs, m.Embedding)
		for _, tag := range m.Tags {
			tagSet[tag] = true
		}
		importanceSum += m.Importance
		accessSum += m.AccessCount
	}

	embedding, err := meanVector(vecs)
	if err != nil {
		return nil, err
	}
	normalize(embedding)

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return &store.MemoryEntry{
		Title:       base.Title,
		Content:     strings.Join(contents, contentDelimiter),
		Embedding:   embedding,
		Importance:  clamp(importanceSum/float64(len(cluster))*ConsolidationBonus, 0, 1),
		AccessCount: accessSum,
		Timestamp:   time.Now().UTC(),
		Tags:        tags,
	}, nil
}

// orderedEntries returns the record's memories in deterministic stored
// order: timestamp ascending, title ascending on ties.
func orderedEntries(rec *store.ProjectRecord) []*store.MemoryEntry {
	entries := make([]*store.MemoryEntry, 0, len(rec.Memories))
	for _, e := range rec.Memories {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].Title < entries[j].Title
	})
	return entries
}
