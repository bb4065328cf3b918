package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/recall/internal/store"
)

func TestPruneImportanceThreshold(t *testing.T) {
	rec := store.NewRecord("demo")
	rec.Memories["weak"] = seedEntry("weak", nil, 0.05, time.Hour)
	rec.Memories["strong"] = seedEntry("strong", nil, 0.9, time.Hour)

	res, err := Prune(context.Background(), rec, 0, 0.1, 0)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if res.PrunedCount != 1 {
		t.Errorf("prunedCount = %d, want 1", res.PrunedCount)
	}
	if rec.Memories["weak"] != nil {
		t.Error("weak entry should be pruned")
	}
	if rec.Memories["strong"] == nil {
		t.Error("strong entry should survive")
	}
	if len(res.Reasons) != 1 || !strings.Contains(res.Reasons[0], "importance") {
		t.Errorf("reasons = %v", res.Reasons)
	}
}

func TestPruneAge(t *testing.T) {
	rec := store.NewRecord("demo")
	rec.Memories["ancient"] = seedEntry("ancient", nil, 0.9, 100*24*time.Hour)
	rec.Memories["fresh"] = seedEntry("fresh", nil, 0.9, time.Hour)

	res, err := Prune(context.Background(), rec, 0, 0, 90*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if res.PrunedCount != 1 {
		t.Errorf("prunedCount = %d, want 1", res.PrunedCount)
	}
	if rec.Memories["ancient"] != nil {
		t.Error("ancient entry should be pruned")
	}
	if len(res.Reasons) != 1 || !strings.Contains(res.Reasons[0], "age") {
		t.Errorf("reasons = %v", res.Reasons)
	}
}

func TestPruneQuotaByCompositeScore(t *testing.T) {
	rec := store.NewRecord("demo")

	high := seedEntry("high", nil, 0.9, time.Hour)
	high.AccessCount = 10
	mid := seedEntry("mid", nil, 0.5, time.Hour)
	mid.AccessCount = 5
	low := seedEntry("low", nil, 0.4, time.Hour)
	low.AccessCount = 0 // score = 0.4 * log(1) = 0
	rec.Memories["high"] = high
	rec.Memories["mid"] = mid
	rec.Memories["low"] = low

	res, err := Prune(context.Background(), rec, 2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.PrunedCount != 1 {
		t.Errorf("prunedCount = %d, want 1", res.PrunedCount)
	}
	if rec.Memories["low"] != nil {
		t.Error("lowest composite score should be pruned")
	}
	if rec.Memories["high"] == nil || rec.Memories["mid"] == nil {
		t.Error("top scorers should survive")
	}
	if len(res.Reasons) != 1 || !strings.Contains(res.Reasons[0], "quota") {
		t.Errorf("reasons = %v", res.Reasons)
	}
}

// Prune never removes an entry satisfying both thresholds unless the
// quota is still exceeded.
func TestPruneMinimality(t *testing.T) {
	rec := store.NewRecord("demo")
	for _, title := range []string{"a", "b", "c"} {
		e := seedEntry(title, nil, 0.8, time.Hour)
		e.AccessCount = 4
		rec.Memories[title] = e
	}

	// Thresholds pass everything, quota allows everything: no pruning.
	res, err := Prune(context.Background(), rec, 3, 0.1, 90*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if res.PrunedCount != 0 {
		t.Errorf("prunedCount = %d, want 0", res.PrunedCount)
	}
	if len(rec.Memories) != 3 {
		t.Errorf("entries = %d, want 3", len(rec.Memories))
	}

	// Quota of 2 removes exactly one, no more.
	res, err = Prune(context.Background(), rec, 2, 0.1, 90*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if res.PrunedCount != 1 {
		t.Errorf("prunedCount = %d, want exactly 1", res.PrunedCount)
	}
}

func TestPruneDisabledConstraints(t *testing.T) {
	rec := store.NewRecord("demo")
	rec.Memories["old-weak"] = seedEntry("old-weak", nil, 0.02, 365*24*time.Hour)

	// All constraints disabled: nothing to prune.
	res, err := Prune(context.Background(), rec, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.PrunedCount != 0 || len(rec.Memories) != 1 {
		t.Errorf("res = %+v, want no pruning with constraints disabled", res)
	}
}

func TestPruneCancellation(t *testing.T) {
	rec := store.NewRecord("demo")
	rec.Memories["a"] = seedEntry("a", nil, 0.02, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Prune(ctx, rec, 0, 0.1, 0); err == nil {
		t.Error("expected cancellation error")
	}
}
