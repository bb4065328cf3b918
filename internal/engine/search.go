package engine

import (
	"sort"

	"github.com/lazypower/recall/internal/store"
)

// SearchResult is one ranked hit from a similarity search.
type SearchResult struct {
	Title      string             `json:"title"`
	Similarity float64            `json:"similarity"`
	Entry      *store.MemoryEntry `json:"entry"`
}

// SearchOpts controls search behavior.
type SearchOpts struct {
	Limit         int     // max results (default 10)
	MinSimilarity float64 // drop candidates below this similarity
}

func (o SearchOpts) limit() int {
	if o.Limit <= 0 {
		return 10
	}
	return o.Limit
}

// Search ranks the record's memories by cosine similarity to the query
// vector. Entries without an embedding are excluded. Ties break by higher
// importance, then more recent timestamp. Every returned entry's access
// count is incremented in place; the caller persists the mutated record.
func Search(rec *store.ProjectRecord, query []float64, opts SearchOpts) ([]SearchResult, error) {
	var results []SearchResult
	for title, entry := range rec.Memories {
		if len(entry.Embedding) == 0 {
			continue
		}
		sim, err := Cosine(query, entry.Embedding)
		if err != nil {
			return nil, err
		}
		if sim < opts.MinSimilarity {
			continue
		}
		results = append(results, SearchResult{
			Title:      title,
			Similarity: sim,
			Entry:      entry,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Entry.Importance != b.Entry.Importance {
			return a.Entry.Importance > b.Entry.Importance
		}
		return a.Entry.Timestamp.After(b.Entry.Timestamp)
	})

	limit := opts.limit()
	if len(results) > limit {
		results = results[:limit]
	}

	// Retrieval counts as access.
	for _, r := range results {
		r.Entry.AccessCount++
	}

	return results, nil
}
