package grammar

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/edcore/internal/config"
	"github.com/standardbeagle/edcore/internal/debug"
)

// DefaultWatchDebounce coalesces a burst of saves (an editor's atomic
// rename-over-write pattern fires multiple fsnotify events per save) into
// one reload, the same debounce role the teacher's eventDebouncer plays
// for source-file watching.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watcher watches a grammar directory and the manifest file, invoking
// OnReload whenever a `.peg` file or the manifest changes on disk. Grounded
// on the teacher's internal/indexing/watcher.go (fsnotify.Watcher plus a
// mutex-guarded pending-set debouncer, ctx/cancel/wg shutdown), scoped down
// to a single flat grammar directory rather than a recursive source tree
// walk.
type Watcher struct {
	fsw          *fsnotify.Watcher
	root         string
	manifestPath string
	debounce     time.Duration

	mu      sync.Mutex
	pending bool
	timer   *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	OnReload func()
}

// NewWatcher creates a Watcher over root (a grammar directory) and
// manifestPath (the grammars.toml this root belongs to). debounce of 0
// uses DefaultWatchDebounce.
func NewWatcher(root, manifestPath string, debounce time.Duration, onReload func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsw:          fsw,
		root:         root,
		manifestPath: manifestPath,
		debounce:     debounce,
		ctx:          ctx,
		cancel:       cancel,
		OnReload:     onReload,
	}
	return w, nil
}

// Start begins watching root and the manifest's parent directory, and
// launches the event-processing goroutine. Safe to call once.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.root); err != nil {
		return err
	}
	if manifestDir := filepath.Dir(w.manifestPath); manifestDir != w.root {
		if err := w.fsw.Add(manifestDir); err != nil {
			return err
		}
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop cancels watching and blocks until the event-processing goroutine
// exits.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogParser("grammar watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	isManifest := event.Name == w.manifestPath || name == filepath.Base(w.manifestPath)
	isGrammarFile := filepath.Ext(name) == ".peg"
	if !isManifest && !isGrammarFile {
		return
	}
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fireReload)
}

func (w *Watcher) fireReload() {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	if w.OnReload != nil {
		w.OnReload()
	}
}
