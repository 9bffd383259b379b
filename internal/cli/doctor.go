package cli

import (
	"fmt"
	"time"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/dataset"
	"github.com/julianstephens/affirm/internal/notifier"
	"github.com/julianstephens/affirm/internal/storage"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	out := ctx.out()
	fmt.Fprintln(out, "Running diagnostics...")
	fmt.Fprintln(out)

	hasError := false
	fail := func(name string, err error) {
		fmt.Fprintf(out, "❌ %s: FAIL\n", name)
		fmt.Fprintf(out, "   Error: %v\n", err)
		hasError = true
	}
	warn := func(name string, err error) {
		fmt.Fprintf(out, "⚠ %s: WARNING\n", name)
		fmt.Fprintf(out, "   %v\n", err)
	}
	ok := func(name string) {
		fmt.Fprintf(out, "✓ %s: OK\n", name)
	}

	// Check 1: store reachable
	storeReachable := false
	if err := checkStoreReachable(ctx); err != nil {
		fail("Storage reachable", err)
	} else {
		ok("Storage reachable")
		storeReachable = true
	}

	if storeReachable {
		// Check 2: schema version
		if err := checkSchemaVersion(ctx); err != nil {
			fail("Schema version", err)
		} else {
			ok("Schema version")
		}

		// Check 3: reminder settings
		if err := ctx.Prefs.GetReminderConfig().Validate(); err != nil {
			fail("Reminder settings", err)
		} else {
			ok("Reminder settings")
		}

		// Check 4: notification permission (warning only)
		if perm := ctx.Prefs.GetPermission(); perm != constants.PermissionGranted {
			warn("Notification permission", fmt.Errorf("permission is %s, reminders will not fire", perm))
		} else {
			ok("Notification permission")
		}

		// Check 5: offline cache (warning only)
		if err := checkCacheInstalled(ctx); err != nil {
			warn("Offline cache", err)
		} else {
			ok("Offline cache")
		}
	} else {
		fmt.Fprintln(out, "⊘ Schema version: SKIPPED (storage not reachable)")
		fmt.Fprintln(out, "⊘ Reminder settings: SKIPPED (storage not reachable)")
		fmt.Fprintln(out, "⊘ Notification permission: SKIPPED (storage not reachable)")
		fmt.Fprintln(out, "⊘ Offline cache: SKIPPED (storage not reachable)")
	}

	// Check 6: background agent (warning only)
	if !notifier.NewClient(ctx.Config.LockfilePath()).Available() {
		warn("Background agent", fmt.Errorf("not running, notifications are shown only while affirm is open"))
	} else {
		ok("Background agent")
	}

	// Check 7: data resource
	if err := checkDataFile(ctx); err != nil {
		fail("Data file", err)
	} else {
		ok("Data file")
	}

	// Check 8: clock/timezone sanity
	if err := checkClockTimezone(); err != nil {
		fail("Clock/timezone", err)
	} else {
		ok("Clock/timezone")
	}

	fmt.Fprintln(out)
	if hasError {
		fmt.Fprintln(out, "Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Fprintln(out, "All diagnostics passed!")
	return nil
}

func checkStoreReachable(ctx *Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load storage: %w", err)
	}
	if _, _, err := ctx.Store.GetRecord(constants.RecordReminderSettings); err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *Context) error {
	sqliteStore, isSQLite := ctx.Store.(*storage.SQLiteStore)
	if !isSQLite {
		// JSON store doesn't have schema version
		return nil
	}

	current, latest, err := sqliteStore.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("database schema version (%d) is behind (%d)", current, latest)
	}
	return nil
}

func checkCacheInstalled(ctx *Context) error {
	if ctx.Config.OriginURL() == nil {
		return fmt.Errorf("no origin configured, running offline only")
	}
	st, err := ctx.Cache().Status(ctx.context())
	if err != nil {
		return err
	}
	for _, name := range st.Snapshots {
		if name == st.Version {
			return nil
		}
	}
	return fmt.Errorf("snapshot %s is not installed, run 'affirm cache install'", st.Version)
}

func checkDataFile(ctx *Context) error {
	if ctx.Config.DataFile == "" {
		return nil
	}
	_, err := dataset.ReadFile(ctx.Config.DataFile)
	return err
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock appears wrong: %s", now.Format(time.RFC3339))
	}
	if now.Location() == nil {
		return fmt.Errorf("no local timezone")
	}
	return nil
}
