package engine

import (
	"testing"
	"time"

	"github.com/lazypower/recall/internal/errs"
	"github.com/lazypower/recall/internal/store"
)

func TestAdjustImportance(t *testing.T) {
	rec := store.NewRecord("demo")
	rec.Memories["related"] = seedEntry("related", []float64{1, 0.05, 0}, 0.5, time.Hour)
	rec.Memories["unrelated"] = seedEntry("unrelated", []float64{0, 1, 0}, 0.5, time.Hour)

	res, err := AdjustImportance(rec, []float64{1, 0, 0}, 0.8, 0.9, 1.2)
	if err != nil {
		t.Fatalf("AdjustImportance: %v", err)
	}
	if res.Reinforced != 1 || res.Decayed != 1 {
		t.Errorf("res = %+v, want 1 reinforced / 1 decayed", res)
	}
	if rec.Memories["related"].Importance <= 0.5 {
		t.Errorf("related importance = %f, want reinforced above 0.5",
			rec.Memories["related"].Importance)
	}
	if rec.Memories["unrelated"].Importance >= 0.5 {
		t.Errorf("unrelated importance = %f, want decayed below 0.5",
			rec.Memories["unrelated"].Importance)
	}
}

func TestImportanceBounds(t *testing.T) {
	rec := store.NewRecord("demo")
	nearFloor := seedEntry("floor", []float64{0, 1}, 0.02, time.Hour)
	nearCeiling := seedEntry("ceiling", []float64{1, 0}, 0.95, time.Hour)
	rec.Memories["floor"] = nearFloor
	rec.Memories["ceiling"] = nearCeiling

	// Repeated passes must never leave the [0.01, 1.0] band.
	for i := 0; i < 50; i++ {
		if _, err := AdjustImportance(rec, []float64{1, 0}, 0.8, 0.5, 1.5); err != nil {
			t.Fatal(err)
		}
	}

	for title, e := range rec.Memories {
		if e.Importance < MinImportance || e.Importance > MaxImportance {
			t.Errorf("%s importance = %f, out of [%f, %f]",
				title, e.Importance, MinImportance, MaxImportance)
		}
	}
	if rec.Memories["floor"].Importance != MinImportance {
		t.Errorf("floor importance = %f, want clamped to %f",
			rec.Memories["floor"].Importance, MinImportance)
	}
	if rec.Memories["ceiling"].Importance != MaxImportance {
		t.Errorf("ceiling importance = %f, want clamped to %f",
			rec.Memories["ceiling"].Importance, MaxImportance)
	}
}

func TestAdjustImportanceNoEmbeddingDecays(t *testing.T) {
	rec := store.NewRecord("demo")
	rec.Memories["plain"] = &store.MemoryEntry{
		Title: "plain", Importance: 0.5, Timestamp: time.Now().UTC(), Tags: []string{},
	}

	res, err := AdjustImportance(rec, []float64{1, 0}, 0.8, 0.9, 1.2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decayed != 1 {
		t.Errorf("decayed = %d, want 1", res.Decayed)
	}
	if rec.Memories["plain"].Importance >= 0.5 {
		t.Error("entry without embedding should decay")
	}
}

func TestAdjustImportanceShapeMismatch(t *testing.T) {
	rec := store.NewRecord("demo")
	rec.Memories["bad"] = seedEntry("bad", []float64{1, 0, 0}, 0.5, time.Hour)

	_, err := AdjustImportance(rec, []float64{1, 0}, 0.8, 0.9, 1.2)
	if !errs.Is(err, errs.CodeVectorShape) {
		t.Errorf("code = %q, want vector_shape", errs.CodeOf(err))
	}
}
