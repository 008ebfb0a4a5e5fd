package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/journal/internal/storage"
)

// watcherTestEnv sets up a journal dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

const sampleEntry = "---\ntags: [work]\n---\n# March 5, 2023\n"

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "2023-03-05.md"), []byte(sampleEntry), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("2023-03-05.md")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:2023-03-05.md" {
				return true
			}
		}
		return false
	}, "expected created:2023-03-05.md callback")
}

func TestWatcher_NewMonthDirWatched(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	monthDir := filepath.Join(root, "2023", "03")
	_ = os.MkdirAll(monthDir, 0o755)
	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(monthDir, "2023-03-05.md"), []byte(sampleEntry), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("2023/03/2023-03-05.md")
		return cs != ""
	}, "file in new month dir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromCatalog(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(root, "2023-03-05.md"), []byte(sampleEntry), 0o644)
	_ = Sync(db, store, quietLogger())

	if cs, _ := db.GetChecksum("2023-03-05.md"); cs == "" {
		t.Fatal("precondition: file should be cataloged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "2023-03-05.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("2023-03-05.md")
		return cs == ""
	}, "deleted file still in catalog")
}

func TestWatcher_AtomicRewriteUpdatesTags(t *testing.T) {
	_, store, db := watcherTestEnv(t)

	_ = store.Write("2023-03-05.md", []byte(sampleEntry))
	_ = Sync(db, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = store.Write("2023-03-05.md", []byte("---\ntags: [job]\n---\n# March 5, 2023\n"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		e, err := db.GetEntry("2023-03-05.md")
		return err == nil && len(e.Tags) == 1 && e.Tags[0] == "job"
	}, "rewritten header not picked up by watcher")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(root, "2023-03-05.md"), []byte(sampleEntry), 0o644)
	_ = Sync(db, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(root, "2023-03-05.md"), filepath.Join(root, "2023-03-06.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("2023-03-05.md")
		newCS, _ := db.GetChecksum("2023-03-06.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestWatcher_IgnoresNonEntryFiles(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	// Present before the watcher starts and never cataloged: no header.
	_ = os.WriteFile(filepath.Join(root, "2023-03-07.md"), []byte("no header"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, store, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "README.md"), []byte(sampleEntry), 0o644)
	_ = os.Remove(filepath.Join(root, "2023-03-07.md"))
	_ = os.WriteFile(filepath.Join(root, "2023-03-05.md"), []byte(sampleEntry), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("2023-03-05.md")
		return cs != ""
	}, "entry not indexed by watcher")

	if cs, _ := db.GetChecksum("README.md"); cs != "" {
		t.Error("README.md was cataloged")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		if e == "created:README.md" || e == "updated:README.md" || e == "deleted:2023-03-07.md" {
			t.Errorf("unexpected event %s", e)
		}
	}
}
