package endpoint

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/portway-io/portway/internal/logger"
)

// rescanDebounce coalesces the burst of filesystem events an editor or
// deploy produces into one rescan.
const rescanDebounce = 250 * time.Millisecond

// Registry loads endpoint descriptors from a directory tree and publishes
// them as immutable snapshots. A filesystem watcher triggers debounced
// rescans; readers always see either the old snapshot or the new one, never
// a partially built state.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	root     string
	debounce time.Duration

	snapshot atomic.Pointer[Snapshot]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	stopped sync.Once
}

// NewRegistry walks root once and returns a registry holding the initial
// snapshot. Per-descriptor errors are recorded in the snapshot, not
// returned; only an unreadable root fails construction.
func NewRegistry(root string) (*Registry, error) {
	snap, err := load(root)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		root:     root,
		debounce: rescanDebounce,
		stopCh:   make(chan struct{}),
	}
	r.snapshot.Store(snap)

	logSnapshot(snap, root)
	return r, nil
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Find resolves an endpoint in the current snapshot.
func (r *Registry) Find(name string) (*Definition, bool) {
	return r.Snapshot().Find(name)
}

// Reload rescans the descriptor tree and atomically publishes the new
// snapshot. In-flight requests keep whatever snapshot they already took.
func (r *Registry) Reload() error {
	snap, err := load(r.root)
	if err != nil {
		return err
	}
	r.snapshot.Store(snap)

	logSnapshot(snap, r.root)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		r.addWatches(snap)
	}
	return nil
}

// Start begins watching the descriptor tree for changes. Events are
// debounced before triggering a rescan.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create descriptor watcher: %w", err)
	}
	r.watcher = watcher
	r.addWatches(r.Snapshot())

	go r.watchLoop(watcher)

	logger.Info("endpoint watcher started", "dir", r.root)
	return nil
}

// Stop stops the watcher. Safe to call multiple times or on a registry
// that was never started.
func (r *Registry) Stop() {
	r.stopped.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.watcher != nil {
			_ = r.watcher.Close()
			r.watcher = nil
		}
	})
}

// addWatches registers every directory of the snapshot with the watcher.
// fsnotify does not recurse, so each level is added individually; watching
// an already-watched directory is a no-op.
func (r *Registry) addWatches(snap *Snapshot) {
	for _, dir := range snap.dirs {
		if err := r.watcher.Add(dir); err != nil {
			logger.Warn("failed to watch descriptor directory", "dir", dir, "error", err)
		}
	}
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher) {
	debounce := time.NewTimer(r.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// New directories need their own watch before the rescan
			// fires, or nested creates go unseen.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}

			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(r.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("descriptor watcher error", "error", err)

		case <-debounce.C:
			if err := r.Reload(); err != nil {
				logger.Error("descriptor rescan failed", "dir", r.root, "error", err)
			}

		case <-r.stopCh:
			return
		}
	}
}

func logSnapshot(snap *Snapshot, root string) {
	logger.Info("endpoint snapshot published",
		"dir", root,
		"endpoints", snap.Len(),
		"errors", len(snap.Errors()))

	for _, loadErr := range snap.Errors() {
		logger.Warn("endpoint descriptor skipped",
			"path", loadErr.Path,
			"error", loadErr.Err)
	}
}
