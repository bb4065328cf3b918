package store

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lazypower/recall/internal/errs"
)

// ProjectRecord is the durable document for one project: every memory the
// project holds plus a free-text summary maintained by collaborators.
type ProjectRecord struct {
	ProjectName string                  `json:"projectName"`
	Memories    map[string]*MemoryEntry `json:"memories"`
	Summary     string                  `json:"summary"`
	LastUpdated time.Time               `json:"lastUpdated"`
}

// MemoryEntry is a single titled memory within a project.
type MemoryEntry struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Embedding   []float64 `json:"embedding,omitempty"`
	Importance  float64   `json:"importance"`
	AccessCount int       `json:"accessCount"`
	Timestamp   time.Time `json:"timestamp"`
	Tags        []string  `json:"tags"`
}

// DefaultImportance is assigned to entries created or repaired without an
// explicit importance.
const DefaultImportance = 0.5

// NewRecord returns an empty record for the given project.
func NewRecord(project string) *ProjectRecord {
	return &ProjectRecord{
		ProjectName: project,
		Memories:    make(map[string]*MemoryEntry),
		LastUpdated: time.Now().UTC(),
	}
}

// Clone returns a deep copy. The store hands out clones so callers can
// mutate freely without corrupting the cached canonical record.
func (r *ProjectRecord) Clone() *ProjectRecord {
	out := &ProjectRecord{
		ProjectName: r.ProjectName,
		Memories:    make(map[string]*MemoryEntry, len(r.Memories)),
		Summary:     r.Summary,
		LastUpdated: r.LastUpdated,
	}
	for title, e := range r.Memories {
		out.Memories[title] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of the entry.
func (e *MemoryEntry) Clone() *MemoryEntry {
	out := *e
	if e.Embedding != nil {
		out.Embedding = append([]float64(nil), e.Embedding...)
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return &out
}

// decodeRecord parses raw bytes into a ProjectRecord, filling documented
// defaults for missing or mistyped fields. It reports whether any repair was
// applied so the caller can persist the repaired form. Bytes that are not a
// JSON object at all are a hard corrupt-store error; no repair is attempted.
func decodeRecord(project string, data []byte) (*ProjectRecord, bool, error) {
	if !gjson.ValidBytes(data) {
		return nil, false, errs.New("store.decode", errs.CodeCorruptStore,
			"record is not valid JSON").
			WithProject(project).
			WithSuggestion("restore the project from a backup")
	}
	top := gjson.ParseBytes(data)
	if !top.IsObject() {
		return nil, false, errs.New("store.decode", errs.CodeCorruptStore,
			"record top-level value is not an object").
			WithProject(project).
			WithSuggestion("restore the project from a backup")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, errs.Wrap("store.decode", errs.CodeCorruptStore,
			"record cannot be decoded", err).WithProject(project)
	}

	rec := NewRecord(project)
	repaired := false

	var name string
	if !decodeField(raw["projectName"], &name) || name == "" {
		repaired = true
	} else {
		rec.ProjectName = name
	}

	if !decodeField(raw["summary"], &rec.Summary) {
		repaired = true
	}

	var updated time.Time
	if decodeField(raw["lastUpdated"], &updated) && !updated.IsZero() {
		rec.LastUpdated = updated
	} else {
		repaired = true
	}

	var mems map[string]json.RawMessage
	if !decodeField(raw["memories"], &mems) {
		repaired = true
	}
	for title, body := range mems {
		if title == "" {
			// Empty titles violate the record invariant; drop them.
			repaired = true
			continue
		}
		entry, entryRepaired := decodeEntry(title, body)
		if entry.Title != title {
			// The map key is authoritative for the title.
			entry.Title = title
			entryRepaired = true
		}
		if entryRepaired {
			repaired = true
		}
		rec.Memories[title] = entry
	}

	return rec, repaired, nil
}

// decodeEntry parses one memory entry, defaulting missing fields and
// clamping out-of-range values.
func decodeEntry(title string, data json.RawMessage) (*MemoryEntry, bool) {
	entry := &MemoryEntry{
		Title:      title,
		Importance: DefaultImportance,
		Timestamp:  time.Now().UTC(),
		Tags:       []string{},
	}
	repaired := false

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return entry, true
	}

	var t string
	if decodeField(raw["title"], &t) && t != "" {
		entry.Title = t
	} else {
		repaired = true
	}

	if !decodeField(raw["content"], &entry.Content) {
		repaired = true
	}

	var emb []float64
	if decodeField(raw["embedding"], &emb) {
		entry.Embedding = emb
	} else if raw["embedding"] != nil {
		repaired = true
	}

	var imp float64
	if decodeField(raw["importance"], &imp) {
		if imp < 0.01 || imp > 1.0 {
			repaired = true
			imp = clamp(imp, 0.01, 1.0)
		}
		entry.Importance = imp
	} else {
		repaired = true
	}

	var count int
	if decodeField(raw["accessCount"], &count) && count >= 0 {
		entry.AccessCount = count
	} else {
		repaired = true
	}

	var ts time.Time
	if decodeField(raw["timestamp"], &ts) && !ts.IsZero() {
		entry.Timestamp = ts
	} else {
		repaired = true
	}

	var tags []string
	if decodeField(raw["tags"], &tags) && tags != nil {
		entry.Tags = tags
	} else {
		repaired = true
	}

	return entry, repaired
}

// decodeField unmarshals a raw field into dst, reporting success. A nil
// field (absent from the document) is a failure so callers can default it.
func decodeField(data json.RawMessage, dst any) bool {
	if data == nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
