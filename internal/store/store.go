// Package store persists one JSON document per project and fronts all reads
// with a TTL cache. Writes are atomic (temp file + rename) and serialized
// per project name.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lazypower/recall/internal/cache"
	"github.com/lazypower/recall/internal/errs"
)

// writeAttempts bounds filesystem retry on transient write failures.
const writeAttempts = 3

var projectNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store manages per-project record files under a base directory.
type Store struct {
	dir   string
	cache *cache.Cache
	locks sync.Map // project name -> *sync.Mutex
}

// DefaultStorePath returns the default record directory: ~/.recall/projects
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".recall", "projects"), nil
}

// Open creates (if needed) the record directory and returns a Store fronted
// by the given cache.
func Open(dir string, c *cache.Cache) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap("store.open", errs.CodeFilesystem,
			"create record directory", err).WithPath(dir).
			WithSuggestion("check directory permissions")
	}
	return &Store{dir: dir, cache: c}, nil
}

// Dir returns the record directory.
func (s *Store) Dir() string { return s.dir }

// CacheStats returns a snapshot of the read cache counters.
func (s *Store) CacheStats() cache.Stats { return s.cache.Stats() }

// FilePath returns the durable path for a project's record.
func (s *Store) FilePath(project string) string {
	return filepath.Join(s.dir, project+".json")
}

// ValidProjectName reports whether name is a filesystem-safe project slug.
func ValidProjectName(name string) bool {
	return projectNameRe.MatchString(name)
}

func cacheKey(project string) string { return "record:" + project }

// lockFor returns the per-project mutex, creating it on first use.
func (s *Store) lockFor(project string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(project, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Read returns the record for project, creating a default one if no file
// exists. Partial or older shapes are repaired in memory (defaults filled)
// and the repaired form persisted; unparseable bytes fail with a
// corrupt-store error. The returned record is a private copy.
func (s *Store) Read(project string) (*ProjectRecord, error) {
	if !ValidProjectName(project) {
		return nil, errs.New("store.read", errs.CodeNotFound,
			fmt.Sprintf("invalid project name %q", project)).
			WithProject(project).
			WithSuggestion("project names are alphanumeric slugs")
	}

	if v, ok := s.cache.Get(cacheKey(project)); ok {
		if rec, ok := v.(*ProjectRecord); ok {
			return rec.Clone(), nil
		}
	}

	mu := s.lockFor(project)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.loadLocked(project)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// loadLocked loads (or synthesizes) the record from disk and refreshes the
// cache. Caller must hold the project lock.
func (s *Store) loadLocked(project string) (*ProjectRecord, error) {
	path := s.FilePath(project)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		rec := NewRecord(project)
		if err := s.persistLocked(project, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	if err != nil {
		return nil, errs.Wrap("store.read", errs.CodeFilesystem,
			"read record file", err).WithProject(project).WithPath(path).
			WithSuggestion("check file permissions and disk health")
	}

	rec, repaired, err := decodeRecord(project, data)
	if err != nil {
		return nil, err
	}
	if repaired {
		if err := s.persistLocked(project, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	s.cache.Set(cacheKey(project), rec.Clone())
	return rec, nil
}

// Write validates and persists the record, then updates the cache with the
// exact value written. The cache is only touched after the durable write
// succeeds.
func (s *Store) Write(project string, rec *ProjectRecord) error {
	if !ValidProjectName(project) {
		return errs.New("store.write", errs.CodeNotFound,
			fmt.Sprintf("invalid project name %q", project)).
			WithProject(project).
			WithSuggestion("project names are alphanumeric slugs")
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	mu := s.lockFor(project)
	mu.Lock()
	defer mu.Unlock()

	rec.ProjectName = project
	rec.LastUpdated = time.Now().UTC()
	return s.persistLocked(project, rec.Clone())
}

// Update applies fn to the current record under the project lock and
// persists the result. The whole read-modify-write is atomic with respect
// to other writers of the same project.
func (s *Store) Update(project string, fn func(*ProjectRecord) error) error {
	if !ValidProjectName(project) {
		return errs.New("store.update", errs.CodeNotFound,
			fmt.Sprintf("invalid project name %q", project)).
			WithProject(project)
	}

	mu := s.lockFor(project)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.loadLocked(project)
	if err != nil {
		return err
	}
	working := rec.Clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := validateRecord(working); err != nil {
		return err
	}
	working.LastUpdated = time.Now().UTC()
	return s.persistLocked(project, working)
}

// persistLocked writes the record atomically and refreshes the cache.
// Caller must hold the project lock. The given record becomes the cached
// canonical instance, so callers pass a clone they will not mutate again.
func (s *Store) persistLocked(project string, rec *ProjectRecord) error {
	path := s.FilePath(project)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errs.Wrap("store.write", errs.CodeCorruptStore,
			"encode record", err).WithProject(project)
	}

	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		lastErr = atomicWriteFile(path, data)
		if lastErr == nil {
			s.cache.Set(cacheKey(project), rec)
			return nil
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return errs.Wrap("store.write", errs.CodeFilesystem,
		"persist record file", lastErr).WithProject(project).WithPath(path).
		WithSuggestion("check disk space and permissions")
}

// atomicWriteFile writes data to a temp file in the same directory and
// renames it into place so a crash mid-write cannot leave a torn file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Exists reports whether project has a durable record.
func (s *Store) Exists(project string) bool {
	if !ValidProjectName(project) {
		return false
	}
	if _, ok := s.cache.Get(cacheKey(project)); ok {
		return true
	}
	_, err := os.Stat(s.FilePath(project))
	return err == nil
}

// List returns the names of all projects with durable records.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Wrap("store.list", errs.CodeFilesystem,
			"read record directory", err).WithPath(s.dir)
	}

	var projects []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if ValidProjectName(name) {
			projects = append(projects, name)
		}
	}
	return projects, nil
}

// Delete removes a project's record and drops it from the cache.
func (s *Store) Delete(project string) error {
	if !ValidProjectName(project) {
		return errs.New("store.delete", errs.CodeNotFound,
			fmt.Sprintf("invalid project name %q", project)).
			WithProject(project)
	}

	mu := s.lockFor(project)
	mu.Lock()
	defer mu.Unlock()

	err := os.Remove(s.FilePath(project))
	if os.IsNotExist(err) {
		return errs.New("store.delete", errs.CodeNotFound,
			fmt.Sprintf("project %q does not exist", project)).
			WithProject(project).
			WithSuggestion("list projects to see what is available")
	}
	if err != nil {
		return errs.Wrap("store.delete", errs.CodeFilesystem,
			"remove record file", err).WithProject(project).
			WithPath(s.FilePath(project))
	}
	s.cache.Delete(cacheKey(project))
	return nil
}

// EnsureExists creates a default record only if none exists. Idempotent.
func (s *Store) EnsureExists(project string) error {
	if s.Exists(project) {
		return nil
	}
	_, err := s.Read(project)
	return err
}

// ImportRecord decodes raw bytes (repairing partial shapes) and persists
// them as the project's record, refreshing the cache. Used by restore.
func (s *Store) ImportRecord(project string, data []byte) error {
	if !ValidProjectName(project) {
		return errs.New("store.import", errs.CodeNotFound,
			fmt.Sprintf("invalid project name %q", project)).
			WithProject(project)
	}

	rec, _, err := decodeRecord(project, data)
	if err != nil {
		return err
	}

	mu := s.lockFor(project)
	mu.Lock()
	defer mu.Unlock()
	return s.persistLocked(project, rec)
}

// validateRecord enforces the record invariants before any durable write.
func validateRecord(rec *ProjectRecord) error {
	if rec == nil {
		return errs.New("store.validate", errs.CodeCorruptStore, "nil record")
	}
	if rec.Memories == nil {
		rec.Memories = make(map[string]*MemoryEntry)
	}
	for title, entry := range rec.Memories {
		if title == "" {
			return errs.New("store.validate", errs.CodeCorruptStore,
				"memory title must not be empty").WithProject(rec.ProjectName)
		}
		if entry == nil {
			return errs.New("store.validate", errs.CodeCorruptStore,
				"memory entry must not be nil").
				WithProject(rec.ProjectName).WithTitle(title)
		}
		// The map key is authoritative for the title.
		entry.Title = title
	}
	return nil
}
