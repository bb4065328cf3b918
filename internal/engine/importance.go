package engine

import (
	"github.com/lazypower/recall/internal/store"
)

// Importance bounds. The floor keeps decayed entries distinguishable from
// "no signal" under the pruning score; the ceiling caps reinforcement.
const (
	MinImportance = 0.01
	MaxImportance = 1.0
)

// AdjustResult counts the entries touched by an adjustment pass.
type AdjustResult struct {
	Reinforced int
	Decayed    int
}

// AdjustImportance reinforces entries similar to the reference vector and
// decays the rest. Entries without an embedding cannot match and decay.
// Results are clamped to [MinImportance, MaxImportance]. The record is
// mutated in place; the caller persists it.
func AdjustImportance(rec *store.ProjectRecord, reference []float64, threshold, decayFactor, reinforcementFactor float64) (AdjustResult, error) {
	var res AdjustResult
	for _, entry := range rec.Memories {
		sim := 0.0
		if len(entry.Embedding) > 0 {
			s, err := Cosine(reference, entry.Embedding)
			if err != nil {
				return res, err
			}
			sim = s
		}

		if sim > threshold {
			entry.Importance *= reinforcementFactor
			res.Reinforced++
		} else {
			entry.Importance *= decayFactor
			res.Decayed++
		}
		entry.Importance = clamp(entry.Importance, MinImportance, MaxImportance)
	}
	return res, nil
}
