package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lazypower/recall/internal/cache"
	"github.com/lazypower/recall/internal/errs"
	"github.com/lazypower/recall/internal/store"
)

// testSupervisor builds a store with one seeded project and a supervisor
// over a temp backup root.
func testSupervisor(t *testing.T) (*Supervisor, *store.Store) {
	t.Helper()

	c := cache.New(64, time.Minute, time.Hour)
	t.Cleanup(c.Stop)

	s, err := store.Open(t.TempDir(), c)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := s.EnsureExists("demo"); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}

	sup, err := New(s, t.TempDir(), DefaultCooldown, DefaultRetention, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(sup.Stop)
	return sup, s
}

// seedBackupFile writes a syntactically valid backup with the given
// timestamp under the supervisor's root.
func seedBackupFile(t *testing.T, sup *Supervisor, project, ts string) string {
	t.Helper()
	dir := filepath.Join(sup.Dir(), project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", project, ts))
	body := fmt.Sprintf(`{"projectName": %q, "memories": {}, "summary": "", "lastUpdated": "2024-01-01T00:00:00Z"}`, project)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCooldownGate(t *testing.T) {
	sup, _ := testSupervisor(t)

	if _, err := sup.Backup("demo", Options{}); err != nil {
		t.Fatalf("first backup: %v", err)
	}

	_, err := sup.Backup("demo", Options{})
	if !errs.Is(err, errs.CodeCooldownActive) {
		t.Errorf("second backup code = %q, want cooldown_active", errs.CodeOf(err))
	}

	if _, err := sup.Backup("demo", Options{Force: true}); err != nil {
		t.Errorf("forced backup should bypass cooldown: %v", err)
	}
}

func TestCanBackupStates(t *testing.T) {
	sup, _ := testSupervisor(t)

	// No prior backup recorded.
	if !sup.CanBackup("demo", false) {
		t.Error("expected CanBackup true with no prior backup")
	}

	sup.Backup("demo", Options{})
	if sup.CanBackup("demo", false) {
		t.Error("expected CanBackup false inside cooldown window")
	}
	if !sup.CanBackup("demo", true) {
		t.Error("force must always pass the gate")
	}
}

func TestBackupSourceNotFound(t *testing.T) {
	sup, _ := testSupervisor(t)

	_, err := sup.Backup("ghost", Options{Force: true})
	if !errs.Is(err, errs.CodeSourceNotFound) {
		t.Errorf("code = %q, want source_not_found", errs.CodeOf(err))
	}
}

func TestRetentionCap(t *testing.T) {
	sup, _ := testSupervisor(t)

	// 30 backups one second apart; retention must keep the newest 25.
	for i := 0; i < 30; i++ {
		seedBackupFile(t, sup, "demo",
			fmt.Sprintf("2024-03-01_10-00-%02d", i))
	}

	dir := filepath.Join(sup.Dir(), "demo")
	removed := sup.enforceRetention("demo", dir)
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}

	backups, err := sup.List("demo")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(backups) != 25 {
		t.Fatalf("remaining = %d, want 25", len(backups))
	}
	// Newest first; the oldest 5 (seconds 00-04) must be gone.
	if backups[0].Timestamp != "2024-03-01_10-00-29" {
		t.Errorf("newest = %s", backups[0].Timestamp)
	}
	if backups[len(backups)-1].Timestamp != "2024-03-01_10-00-05" {
		t.Errorf("oldest survivor = %s", backups[len(backups)-1].Timestamp)
	}
}

func TestBackupTriggersRetention(t *testing.T) {
	c := cache.New(64, time.Minute, time.Hour)
	t.Cleanup(c.Stop)
	s, _ := store.Open(t.TempDir(), c)
	s.EnsureExists("demo")

	sup, err := New(s, t.TempDir(), DefaultCooldown, 3, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sup.Stop)

	for i := 0; i < 5; i++ {
		seedBackupFile(t, sup, "demo",
			fmt.Sprintf("2024-03-01_09-00-%02d", i))
	}

	if _, err := sup.Backup("demo", Options{Force: true}); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	backups, _ := sup.List("demo")
	if len(backups) != 3 {
		t.Errorf("remaining = %d, want retention cap 3", len(backups))
	}
	// The fresh backup is the newest and must survive.
	if backups[0].Timestamp <= "2024-03-01_09-00-04" {
		t.Errorf("newest backup %s should be the fresh one", backups[0].Timestamp)
	}
}

func TestValidate(t *testing.T) {
	sup, _ := testSupervisor(t)

	valid := seedBackupFile(t, sup, "demo", "2024-03-01_10-00-00")
	if !sup.Validate(valid) {
		t.Error("expected valid backup to validate")
	}

	corrupt := filepath.Join(sup.Dir(), "demo", "demo_2024-03-01_10-00-01.json")
	os.WriteFile(corrupt, []byte("{{{"), 0644)
	if sup.Validate(corrupt) {
		t.Error("expected corrupt backup to fail validation")
	}

	array := filepath.Join(sup.Dir(), "demo", "demo_2024-03-01_10-00-02.json")
	os.WriteFile(array, []byte("[1,2]"), 0644)
	if sup.Validate(array) {
		t.Error("top-level array must fail validation")
	}

	if sup.Validate(filepath.Join(sup.Dir(), "missing.json")) {
		t.Error("missing file must fail validation")
	}
}

func TestRestore(t *testing.T) {
	sup, s := testSupervisor(t)

	// Write a memory, back it up, wipe it, then restore.
	err := s.Update("demo", func(rec *store.ProjectRecord) error {
		rec.Memories["kept"] = &store.MemoryEntry{Title: "kept", Content: "snapshot me",
			Importance: 0.5, Timestamp: time.Now().UTC(), Tags: []string{}}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	path, err := sup.Backup("demo", Options{Force: true})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	s.Update("demo", func(rec *store.ProjectRecord) error {
		delete(rec.Memories, "kept")
		return nil
	})

	// Project name derived from the file name.
	if err := sup.Restore(path, ""); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	rec, _ := s.Read("demo")
	if rec.Memories["kept"] == nil {
		t.Error("restored record missing memory")
	} else if rec.Memories["kept"].Content != "snapshot me" {
		t.Errorf("content = %q", rec.Memories["kept"].Content)
	}
}

func TestRestoreErrors(t *testing.T) {
	sup, _ := testSupervisor(t)

	err := sup.Restore(filepath.Join(sup.Dir(), "nope.json"), "demo")
	if !errs.Is(err, errs.CodeBackupNotFound) {
		t.Errorf("code = %q, want backup_not_found", errs.CodeOf(err))
	}

	corrupt := filepath.Join(sup.Dir(), "demo")
	os.MkdirAll(corrupt, 0755)
	path := filepath.Join(corrupt, "demo_2024-03-01_10-00-00.json")
	os.WriteFile(path, []byte("not json"), 0644)

	err = sup.Restore(path, "demo")
	if !errs.Is(err, errs.CodeBackupCorrupted) {
		t.Errorf("code = %q, want backup_corrupted", errs.CodeOf(err))
	}
}

func TestDeriveProject(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"demo_2024-03-01_10-00-00.json", "demo", false},
		{"my_app_2024-03-01_10-00-00.json", "my_app", false},
		{"no-timestamp.json", "", true},
	}
	for _, tt := range tests {
		got, err := deriveProject(tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("deriveProject(%q): expected error", tt.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("deriveProject(%q): %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("deriveProject(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCleanupOrphaned(t *testing.T) {
	sup, _ := testSupervisor(t)

	seedBackupFile(t, sup, "demo", "2024-03-01_10-00-00")
	seedBackupFile(t, sup, "gone", "2024-03-01_10-00-00")
	seedBackupFile(t, sup, "gone", "2024-03-01_10-00-01")

	removed, err := sup.CleanupOrphaned()
	if err != nil {
		t.Fatalf("CleanupOrphaned: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	// Live project's backups survive.
	backups, _ := sup.List("demo")
	if len(backups) != 1 {
		t.Errorf("demo backups = %d, want 1", len(backups))
	}
}

func TestCleanupCorrupted(t *testing.T) {
	sup, _ := testSupervisor(t)

	seedBackupFile(t, sup, "demo", "2024-03-01_10-00-00")
	bad := filepath.Join(sup.Dir(), "demo", "demo_2024-03-01_10-00-01.json")
	os.WriteFile(bad, []byte("{{{"), 0644)

	removed, err := sup.CleanupCorrupted()
	if err != nil {
		t.Fatalf("CleanupCorrupted: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	backups, _ := sup.List("demo")
	if len(backups) != 1 {
		t.Errorf("valid backups = %d, want 1", len(backups))
	}
}
