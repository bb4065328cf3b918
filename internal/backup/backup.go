// Package backup snapshots project records into cooldown-gated, rotation-capped
// backup files and restores them after validation.
package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/lazypower/recall/internal/errs"
	"github.com/lazypower/recall/internal/store"
)

const (
	// DefaultCooldown is the minimum wall-clock interval between unforced
	// backups of the same project. Purely time-based: a backup inside the
	// window is refused even if the record changed.
	DefaultCooldown = 2 * time.Minute

	// DefaultRetention caps backups kept per project; oldest excess are deleted.
	DefaultRetention = 25

	// DefaultSweepInterval drives the periodic backup sweep.
	DefaultSweepInterval = 10 * time.Minute

	// timestampFormat sorts lexically in chronological order.
	timestampFormat = "2006-01-02_15-04-05"
)

// timestampSuffixRe matches the trailing timestamp in a backup file name.
var timestampSuffixRe = regexp.MustCompile(`_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}$`)

// Metadata describes a single backup file.
type Metadata struct {
	ProjectName  string
	Timestamp    string
	FilePath     string
	FileSize     int64
	IsCompressed bool
}

// Options controls a single backup invocation.
type Options struct {
	Force bool   // bypass the cooldown gate
	Dir   string // destination root; empty means the supervisor's default
}

// Supervisor owns backup creation, retention, validation and restore for
// all projects in a store.
type Supervisor struct {
	store     *store.Store
	dir       string
	cooldown  time.Duration
	retention int
	interval  time.Duration

	mu         sync.Mutex
	lastBackup map[string]time.Time

	sweepMu  sync.Mutex // reentrancy guard: TryLock skips overlapping sweeps
	stopCh   chan struct{}
	stopOnce sync.Once
}

// DefaultBackupPath returns the default backup root: ~/.recall/backups
func DefaultBackupPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".recall", "backups"), nil
}

// New creates a Supervisor rooted at dir. Zero-valued knobs fall back to
// the package defaults.
func New(s *store.Store, dir string, cooldown time.Duration, retention int, interval time.Duration) (*Supervisor, error) {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap("backup.new", errs.CodeFilesystem,
			"create backup directory", err).WithPath(dir).
			WithSuggestion("check directory permissions")
	}
	return &Supervisor{
		store:      s,
		dir:        dir,
		cooldown:   cooldown,
		retention:  retention,
		interval:   interval,
		lastBackup: make(map[string]time.Time),
		stopCh:     make(chan struct{}),
	}, nil
}

// Dir returns the backup root directory.
func (b *Supervisor) Dir() string { return b.dir }

// CanBackup reports whether a backup of project is allowed now. True when
// forced, when no prior backup is recorded, or when the cooldown elapsed.
func (b *Supervisor) CanBackup(project string, force bool) bool {
	if force {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	last, ok := b.lastBackup[project]
	if !ok {
		return true
	}
	return time.Since(last) > b.cooldown
}

// Backup copies the project's record file into the backup directory and
// enforces the retention cap. Fails with cooldown_active unless CanBackup
// is true, and with source_not_found if the record file is missing.
func (b *Supervisor) Backup(project string, opts Options) (string, error) {
	if !b.CanBackup(project, opts.Force) {
		b.mu.Lock()
		last := b.lastBackup[project]
		b.mu.Unlock()
		remaining := b.cooldown - time.Since(last)
		return "", errs.New("backup.create", errs.CodeCooldownActive,
			fmt.Sprintf("cooldown active for %s", remaining.Round(time.Second))).
			WithProject(project).
			WithSuggestion("wait for the cooldown to elapse or force the backup")
	}

	source := b.store.FilePath(project)
	if _, err := os.Stat(source); err != nil {
		return "", errs.Wrap("backup.create", errs.CodeSourceNotFound,
			fmt.Sprintf("no record file for project %q", project), err).
			WithProject(project).WithPath(source).
			WithSuggestion("store a memory first to create the project record")
	}

	root := opts.Dir
	if root == "" {
		root = b.dir
	}
	destDir := filepath.Join(root, project)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errs.Wrap("backup.create", errs.CodeFilesystem,
			"create project backup directory", err).
			WithProject(project).WithPath(destDir)
	}

	now := time.Now()
	name := fmt.Sprintf("%s_%s.json", project, now.Format(timestampFormat))
	dest := filepath.Join(destDir, name)

	if err := copyFile(source, dest); err != nil {
		return "", errs.Wrap("backup.create", errs.CodeFilesystem,
			"copy record file", err).WithProject(project).WithPath(dest).
			WithSuggestion("check disk space")
	}

	b.mu.Lock()
	b.lastBackup[project] = now
	b.mu.Unlock()

	opID := uuid.NewString()
	log.Printf("backup: %s created %s (op %s)", project, name, opID)

	if removed := b.enforceRetention(project, destDir); removed > 0 {
		log.Printf("backup: %s retention removed %d old backups (op %s)", project, removed, opID)
	}

	return dest, nil
}

// enforceRetention deletes the oldest backups beyond the retention cap.
// Individual deletion failures are logged and skipped.
func (b *Supervisor) enforceRetention(project, dir string) int {
	backups, err := listBackupFiles(project, dir)
	if err != nil {
		log.Printf("backup: retention list for %s: %v", project, err)
		return 0
	}
	if len(backups) <= b.retention {
		return 0
	}

	removed := 0
	for _, m := range backups[b.retention:] {
		if err := os.Remove(m.FilePath); err != nil {
			log.Printf("backup: retention remove %s: %v", m.FilePath, err)
			continue
		}
		removed++
	}
	return removed
}

// List returns the project's backups, newest first.
func (b *Supervisor) List(project string) ([]Metadata, error) {
	dir := filepath.Join(b.dir, project)
	backups, err := listBackupFiles(project, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap("backup.list", errs.CodeFilesystem,
			"list backup directory", err).WithProject(project).WithPath(dir)
	}
	return backups, nil
}

// listBackupFiles reads dir and returns metadata sorted newest first.
// Lexical name sort equals chronological sort by construction.
func listBackupFiles(project, dir string) ([]Metadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var backups []Metadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".json")
		if !timestampSuffixRe.MatchString(base) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Metadata{
			ProjectName: project,
			Timestamp:   base[len(base)-len(timestampFormat):],
			FilePath:    filepath.Join(dir, e.Name()),
			FileSize:    info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})
	return backups, nil
}

// Validate reports whether the backup file exists, parses as JSON, and has
// a non-null object at the top level. A cheap syntactic check only.
func (b *Supervisor) Validate(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if !gjson.ValidBytes(data) {
		return false
	}
	return gjson.ParseBytes(data).IsObject()
}

// Restore copies a validated backup over the live record. When project is
// empty it is derived by stripping the timestamp suffix from the file name.
func (b *Supervisor) Restore(path, project string) error {
	if _, err := os.Stat(path); err != nil {
		return errs.Wrap("backup.restore", errs.CodeBackupNotFound,
			"backup file missing", err).WithPath(path).
			WithSuggestion("list available backups for the project")
	}
	if !b.Validate(path) {
		return errs.New("backup.restore", errs.CodeBackupCorrupted,
			"backup failed validation").WithPath(path).
			WithSuggestion("pick an older backup that validates")
	}

	if project == "" {
		derived, err := deriveProject(path)
		if err != nil {
			return err
		}
		project = derived
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap("backup.restore", errs.CodeFilesystem,
			"read backup file", err).WithProject(project).WithPath(path)
	}
	if err := b.store.ImportRecord(project, data); err != nil {
		return err
	}

	log.Printf("backup: restored %s from %s", project, filepath.Base(path))
	return nil
}

// deriveProject extracts the project name from a backup file name.
func deriveProject(path string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".json")
	loc := timestampSuffixRe.FindStringIndex(base)
	if loc == nil || loc[0] == 0 {
		return "", errs.New("backup.restore", errs.CodeBackupCorrupted,
			fmt.Sprintf("cannot derive project name from %q", base)).
			WithPath(path).
			WithSuggestion("pass the project name explicitly")
	}
	return base[:loc[0]], nil
}

// CleanupOrphaned removes backups whose source project no longer exists.
// Returns the number of files removed; per-item failures are logged and
// skipped.
func (b *Supervisor) CleanupOrphaned() (int, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, errs.Wrap("backup.cleanup", errs.CodeFilesystem,
			"read backup root", err).WithPath(b.dir)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		project := e.Name()
		if b.store.Exists(project) {
			continue
		}
		backups, err := listBackupFiles(project, filepath.Join(b.dir, project))
		if err != nil {
			log.Printf("backup: cleanup orphaned list %s: %v", project, err)
			continue
		}
		for _, m := range backups {
			if err := os.Remove(m.FilePath); err != nil {
				log.Printf("backup: cleanup orphaned remove %s: %v", m.FilePath, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// CleanupCorrupted removes backups that fail validation. Returns the number
// removed; per-item failures are logged and skipped.
func (b *Supervisor) CleanupCorrupted() (int, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, errs.Wrap("backup.cleanup", errs.CodeFilesystem,
			"read backup root", err).WithPath(b.dir)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		project := e.Name()
		backups, err := listBackupFiles(project, filepath.Join(b.dir, project))
		if err != nil {
			log.Printf("backup: cleanup corrupted list %s: %v", project, err)
			continue
		}
		for _, m := range backups {
			if b.Validate(m.FilePath) {
				continue
			}
			if err := os.Remove(m.FilePath); err != nil {
				log.Printf("backup: cleanup corrupted remove %s: %v", m.FilePath, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// Start launches the periodic backup sweep. A tick that arrives while a
// sweep is still running is skipped, not queued.
func (b *Supervisor) Start() {
	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !b.sweepMu.TryLock() {
					log.Printf("backup: sweep already in flight, skipping tick")
					continue
				}
				b.sweep()
				b.sweepMu.Unlock()
			case <-b.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the periodic sweep.
func (b *Supervisor) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// sweep backs up every project whose cooldown has elapsed.
func (b *Supervisor) sweep() {
	projects, err := b.store.List()
	if err != nil {
		log.Printf("backup: sweep list projects: %v", err)
		return
	}
	for _, project := range projects {
		if !b.CanBackup(project, false) {
			continue
		}
		if _, err := b.Backup(project, Options{}); err != nil {
			log.Printf("backup: sweep %s: %v", project, err)
		}
	}
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return out.Sync()
}
