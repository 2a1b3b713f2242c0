package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/logbug/logbug/internal/registry"
	"github.com/logbug/logbug/internal/scanner"
	"github.com/logbug/logbug/internal/storage/jsonfile"
	"github.com/logbug/logbug/internal/types"
)

func testDaemon(t *testing.T, watchDir string) (*Daemon, *registry.Registry) {
	t.Helper()

	sc, err := scanner.NewScanner(&scanner.Config{WatchDirs: []string{watchDir}})
	if err != nil {
		t.Fatalf("scanner: %v", err)
	}
	store, err := jsonfile.New(filepath.Join(t.TempDir(), "bugs.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	reg, err := registry.NewRegistry(nil, store, nil, nil, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	d, err := New(&Config{
		PollInterval:    10 * time.Millisecond,
		ProcessInterval: 10 * time.Millisecond,
		SweepInterval:   10 * time.Millisecond,
		SummaryInterval: time.Hour,
	}, sc, reg, nil)
	if err != nil {
		t.Fatalf("daemon: %v", err)
	}
	return d, reg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDaemon_EndToEnd(t *testing.T) {
	watchDir := t.TempDir()
	logPath := filepath.Join(watchDir, "app.log")
	if err := os.WriteFile(logPath, []byte("ERROR payment handler failed to render response\n"), 0644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	d, reg := testDaemon(t, watchDir)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return len(reg.List(nil)) == 1
	})

	bug := reg.List(nil)[0]
	if bug.Frequency != 1 || bug.Status != types.StatusAssigned {
		t.Errorf("bug = %+v", bug)
	}

	// Appending the same error again folds into the existing bug.
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	f.WriteString("ERROR payment handler failed to render response\n")
	f.Close()

	waitFor(t, 2*time.Second, func() bool {
		bugs := reg.List(nil)
		return len(bugs) == 1 && bugs[0].Frequency == 2
	})
}

func TestDaemon_StartTwiceFails(t *testing.T) {
	d, _ := testDaemon(t, t.TempDir())
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(context.Background()); err == nil {
		t.Error("second start should fail")
	}
}

func TestDaemon_StopIsIdempotent(t *testing.T) {
	d, _ := testDaemon(t, t.TempDir())
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	d.Stop()
	d.Stop()
}

func TestDaemon_SweepRemovesResolvedBugs(t *testing.T) {
	watchDir := t.TempDir()
	logPath := filepath.Join(watchDir, "app.log")
	os.WriteFile(logPath, []byte("ERROR payment handler failed to render response\n"), 0644)

	sc, _ := scanner.NewScanner(&scanner.Config{WatchDirs: []string{watchDir}})
	store, _ := jsonfile.New(filepath.Join(t.TempDir(), "bugs.json"))
	regCfg := registry.DefaultConfig()
	regCfg.RetentionPeriod = time.Nanosecond
	reg, _ := registry.NewRegistry(regCfg, store, nil, nil, nil)

	d, err := New(&Config{
		PollInterval:    10 * time.Millisecond,
		ProcessInterval: 10 * time.Millisecond,
		SweepInterval:   10 * time.Millisecond,
		SummaryInterval: time.Hour,
	}, sc, reg, nil)
	if err != nil {
		t.Fatalf("daemon: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	waitFor(t, 2*time.Second, func() bool { return len(reg.List(nil)) == 1 })

	// Resolve it and remove the log so no new events recreate it.
	os.Remove(logPath)
	bug := reg.List(nil)[0]
	resolved := types.StatusResolved
	if _, err := reg.Update(context.Background(), bug.ID, registry.UpdateRequest{Status: &resolved}); err != nil {
		t.Fatalf("update: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(reg.List(nil)) == 0 })
}
