package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julianstephens/affirm/internal/cache"
	"github.com/julianstephens/affirm/internal/config"
	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/dataset"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/storage"
)

type recordingDisplay struct {
	mu    sync.Mutex
	shown []models.Notification
	err   error
}

func (d *recordingDisplay) Show(n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.shown = append(d.shown, n)
	return nil
}

func setupTestContext(t *testing.T) (*Context, *bytes.Buffer) {
	t.Helper()
	tempDir := t.TempDir()

	store := storage.NewSQLiteStore(filepath.Join(tempDir, "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.AgentDir = tempDir
	cfg.LogDir = filepath.Join(tempDir, "logs")

	var out bytes.Buffer
	ctx := NewContext(context.Background(), store, cfg)
	ctx.Out = &out
	ctx.Display = &recordingDisplay{}
	return ctx, &out
}

func at(hhmm string) func() time.Time {
	t, _ := time.ParseInLocation("2006-01-02 15:04", "2026-03-10 "+hhmm, time.Local)
	return func() time.Time { return t }
}

func TestPersonalCmds(t *testing.T) {
	ctx, out := setupTestContext(t)

	if err := (&PersonalAddCmd{Text: "  I am enough  "}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := (&PersonalAddCmd{Text: "I am calm"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := (&PersonalAddCmd{Text: "   "}).Run(ctx); err == nil {
		t.Error("expected error adding empty text")
	}

	out.Reset()
	if err := (&PersonalListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), " 1. I am enough") || !strings.Contains(out.String(), " 2. I am calm") {
		t.Errorf("unexpected list output:\n%s", out.String())
	}

	if err := (&PersonalRemoveCmd{Number: 1}).Run(ctx); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got := ctx.Prefs.GetPersonal(); len(got) != 1 || got[0] != "I am calm" {
		t.Errorf("expected only 'I am calm' left, got %v", got)
	}
	if err := (&PersonalRemoveCmd{Number: 5}).Run(ctx); err == nil {
		t.Error("expected error removing out-of-range entry")
	}
}

func TestShowCmd_PlainOutput(t *testing.T) {
	ctx, out := setupTestContext(t)
	if _, err := ctx.Prefs.AddPersonal("I am here"); err != nil {
		t.Fatalf("failed to add personal: %v", err)
	}

	if err := (&ShowCmd{Category: constants.CategoryPersonal, Count: 1}).Run(ctx); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if got := out.String(); got != "I am here\tPersonal\n" {
		t.Errorf("unexpected output %q", got)
	}

	if err := (&ShowCmd{Category: "nope"}).Run(ctx); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestCategoriesCmds(t *testing.T) {
	ctx, out := setupTestContext(t)

	if err := (&CategoriesEnableCmd{Keys: []string{"not-a-category"}}).Run(ctx); err == nil {
		t.Error("expected error enabling unknown category")
	}
	if err := (&CategoriesEnableCmd{Keys: []string{"love"}}).Run(ctx); err != nil {
		t.Fatalf("enable failed: %v", err)
	}

	out.Reset()
	if err := (&CategoriesListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "[✓] love") || !strings.Contains(out.String(), "[ ] faith") {
		t.Errorf("unexpected list output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Data source: "+string(dataset.SourceBundled)) {
		t.Errorf("expected bundled data source, got:\n%s", out.String())
	}

	if err := (&CategoriesResetCmd{}).Run(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !ctx.Prefs.GetEnabledCategories().All() {
		t.Error("expected all categories enabled after reset")
	}
}

func TestRemindersSetCmd(t *testing.T) {
	ctx, out := setupTestContext(t)

	if err := (&RemindersSetCmd{Slot: "morning"}).Run(ctx); err == nil {
		t.Error("expected error when nothing changes")
	}
	if err := (&RemindersSetCmd{Slot: "morning", Time: "25:00"}).Run(ctx); err == nil {
		t.Error("expected error for invalid time")
	}
	if err := (&RemindersSetCmd{Slot: "morning", Time: "07:30", Enable: true}).Run(ctx); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	cfg := ctx.Prefs.GetReminderConfig()
	if !cfg.Morning.Enabled || cfg.Morning.Time != "07:30" {
		t.Errorf("unexpected morning slot %+v", cfg.Morning)
	}
	if cfg.Noon != models.DefaultReminderConfig().Noon {
		t.Errorf("noon slot changed: %+v", cfg.Noon)
	}
	if !strings.Contains(out.String(), "affirm notifications enable") {
		t.Errorf("expected permission hint, got:\n%s", out.String())
	}

	out.Reset()
	if err := (&RemindersShowCmd{}).Run(ctx); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out.String(), "morning  07:30  on") {
		t.Errorf("unexpected show output:\n%s", out.String())
	}
}

func TestNotificationsEnableCmd(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		ctx, _ := setupTestContext(t)
		display := ctx.Display.(*recordingDisplay)

		if err := (&NotificationsEnableCmd{}).Run(ctx); err != nil {
			t.Fatalf("enable failed: %v", err)
		}
		if got := ctx.Prefs.GetPermission(); got != constants.PermissionGranted {
			t.Errorf("expected granted, got %s", got)
		}
		if len(display.shown) != 1 {
			t.Errorf("expected one test notification, got %d", len(display.shown))
		}
	})

	t.Run("denied", func(t *testing.T) {
		ctx, out := setupTestContext(t)
		ctx.Display = &recordingDisplay{err: errors.New("no notification service")}

		if err := (&NotificationsEnableCmd{}).Run(ctx); err != nil {
			t.Fatalf("enable failed: %v", err)
		}
		if got := ctx.Prefs.GetPermission(); got != constants.PermissionDenied {
			t.Errorf("expected denied, got %s", got)
		}
		if !strings.Contains(out.String(), "not available") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})
}

func TestNotifyCmd_DryRun(t *testing.T) {
	ctx, out := setupTestContext(t)
	ctx.Now = at("08:00")

	if err := (&NotifyCmd{DryRun: true}).Run(ctx); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if !strings.Contains(out.String(), "not enabled") {
		t.Errorf("expected permission message, got:\n%s", out.String())
	}

	cfg := models.DefaultReminderConfig()
	cfg.Morning.Enabled = true
	if err := ctx.Prefs.SaveReminderConfig(cfg); err != nil {
		t.Fatalf("failed to save reminders: %v", err)
	}
	if err := ctx.Prefs.SavePermission(constants.PermissionGranted); err != nil {
		t.Fatalf("failed to save permission: %v", err)
	}

	out.Reset()
	if err := (&NotifyCmd{DryRun: true}).Run(ctx); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "[affirmation-"+models.SlotTitle(constants.SlotMorning)+"]") {
		t.Errorf("expected printed notification, got:\n%s", got)
	}
	if !strings.Contains(got, "Sent morning reminder") {
		t.Errorf("expected sent line, got:\n%s", got)
	}

	// Same minute again: already sent today.
	out.Reset()
	if err := (&NotifyCmd{DryRun: true}).Run(ctx); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if !strings.Contains(out.String(), "No reminders due.") {
		t.Errorf("expected no reminders due, got:\n%s", out.String())
	}
	if display := ctx.Display.(*recordingDisplay); len(display.shown) != 0 {
		t.Errorf("dry run should not use the desktop display, got %d", len(display.shown))
	}
}

// newOriginServer serves the application and counts the requests it receives.
func newOriginServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	hits := new(atomic.Int64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasSuffix(r.URL.Path, "/data/affirmations.json") {
			w.Header().Set("Content-Type", "application/json")
			w.Write(dataset.Bundled())
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>" + r.URL.Path + "</html>"))
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestCacheCmds(t *testing.T) {
	ctx, out := setupTestContext(t)

	if err := (&CacheStatusCmd{}).Run(ctx); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out.String(), "Snapshots: none") {
		t.Errorf("unexpected status output:\n%s", out.String())
	}
	if err := (&CacheInstallCmd{}).Run(ctx); err == nil {
		t.Error("expected install to fail without an origin")
	}

	srv, _ := newOriginServer(t)
	ctx.Config.Origin = srv.URL
	if err := ctx.Store.PutSnapshot(context.Background(), "affirmations-old", nil); err != nil {
		t.Fatalf("failed to seed old snapshot: %v", err)
	}

	if err := (&CacheInstallCmd{}).Run(ctx); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if err := (&CacheActivateCmd{}).Run(ctx); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	out.Reset()
	if err := (&CacheStatusCmd{}).Run(ctx); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Installed: yes") {
		t.Errorf("expected installed snapshot, got:\n%s", got)
	}
	if strings.Contains(got, "affirmations-old") {
		t.Errorf("expected old snapshot to be deleted, got:\n%s", got)
	}
}

func TestNewApp_SharedCacheManager(t *testing.T) {
	ctx, _ := setupTestContext(t)
	srv, hits := newOriginServer(t)
	ctx.Config.Origin = srv.URL

	mgr := ctx.Cache()
	ctrl, _ := ctx.NewApp(ctx.context(), appOptions{foregroundOnly: true, cache: mgr})
	ctrl.Close()
	mgr.Wait()

	if mgr.State() != cache.StateActive {
		t.Errorf("expected the passed manager to be opened, got %s", mgr.State())
	}
	// The data resource is answered from the fresh snapshot.
	if got, want := hits.Load(), int64(len(constants.InstallAssets)); got != want {
		t.Errorf("expected %d origin requests, got %d", want, got)
	}
}

func TestCategoriesListCmd_RemoteSource(t *testing.T) {
	ctx, out := setupTestContext(t)
	srv, _ := newOriginServer(t)
	ctx.Config.Origin = srv.URL

	if err := (&CategoriesListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "Data source: "+string(dataset.SourceRemote)) {
		t.Errorf("expected remote data source, got:\n%s", out.String())
	}
	names, err := ctx.Store.SnapshotNames(context.Background())
	if err != nil || len(names) != 1 || names[0] != ctx.Config.CacheVersion {
		t.Errorf("expected only %s installed, got %v (%v)", ctx.Config.CacheVersion, names, err)
	}
}

func TestDoctorCmd(t *testing.T) {
	ctx, out := setupTestContext(t)

	if err := (&DoctorCmd{}).Run(ctx); err != nil {
		t.Fatalf("doctor failed: %v\n%s", err, out.String())
	}
	got := out.String()
	for _, want := range []string{
		"✓ Storage reachable: OK",
		"✓ Schema version: OK",
		"✓ Reminder settings: OK",
		"⚠ Notification permission: WARNING",
		"⚠ Background agent: WARNING",
		"All diagnostics passed!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}

	ctx.Config.DataFile = filepath.Join(t.TempDir(), "missing.json")
	out.Reset()
	if err := (&DoctorCmd{}).Run(ctx); err == nil {
		t.Error("expected doctor to fail with a missing data file")
	}
	if !strings.Contains(out.String(), "❌ Data file: FAIL") {
		t.Errorf("expected data file failure, got:\n%s", out.String())
	}
}

func TestNewStore(t *testing.T) {
	if _, ok := NewStore("/tmp/affirm.JSON").(*storage.JSONStore); !ok {
		t.Error("expected JSON store for .json path")
	}
	if _, ok := NewStore("/tmp/affirm.db").(*storage.SQLiteStore); !ok {
		t.Error("expected SQLite store for .db path")
	}
}

func TestBackupCmds(t *testing.T) {
	ctx, out := setupTestContext(t)
	if _, err := ctx.Prefs.AddPersonal("Before backup"); err != nil {
		t.Fatalf("failed to add personal: %v", err)
	}

	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup create failed: %v", err)
	}
	name := strings.TrimSpace(strings.TrimPrefix(out.String(), "✓ Backup created:"))

	out.Reset()
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), name) {
		t.Errorf("expected %s in list output:\n%s", name, out.String())
	}

	if _, err := ctx.Prefs.AddPersonal("After backup"); err != nil {
		t.Fatalf("failed to add personal: %v", err)
	}
	if err := (&BackupRestoreCmd{BackupFile: name, Yes: true}).Run(ctx); err != nil {
		t.Fatalf("backup restore failed: %v", err)
	}
	if err := ctx.Store.Load(); err != nil {
		t.Fatalf("failed to reload store: %v", err)
	}
	if got := ctx.Prefs.GetPersonal(); len(got) != 1 || got[0] != "Before backup" {
		t.Errorf("expected restored personal list, got %v", got)
	}

	if err := (&BackupRestoreCmd{BackupFile: "affirm-missing.db", Yes: true}).Run(ctx); err == nil {
		t.Error("expected error restoring a missing backup")
	}
}
