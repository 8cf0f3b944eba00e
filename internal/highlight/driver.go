// Package highlight implements HighlightDriver (spec §4.3): per-buffer
// incremental re-parse scheduling, a content-hash capture-tree cache, and
// completion-capture ranking.
package highlight

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/edcore/internal/cache"
	"github.com/standardbeagle/edcore/internal/debug"
	"github.com/standardbeagle/edcore/internal/parser"
	"github.com/standardbeagle/edcore/internal/task"
)

// DefaultReparseDebounce coalesces a burst of edits (a paste, a fast
// typist's keystroke run) before scheduling a re-parse, distinct from
// internal/grammar.DefaultWatchDebounce which debounces grammar *file*
// saves rather than buffer edits (SPEC_FULL §4).
const DefaultReparseDebounce = 15 * time.Millisecond

// ContentSource is whatever a buffer exposes for the driver to pull a
// fresh snapshot of bytes to re-parse. Decoupling from *piecetree.PieceTree
// directly keeps internal/highlight from importing internal/piecetree, so
// the Buffer API package is the only place that wires the two together.
type ContentSource interface {
	Bytes() []byte
}

// ContentSourceFunc adapts a plain func to ContentSource.
type ContentSourceFunc func() []byte

func (f ContentSourceFunc) Bytes() []byte { return f() }

// DriverMetrics is a snapshot of a Driver's running counters (SPEC_FULL §4
// supplemented feature "per-buffer metrics"), adapted from the teacher's
// internal/cache/metrics_cache.go atomic-counter cache-entry shape.
type DriverMetrics struct {
	ParsesRun            int64
	ParsesDiscardedStale int64
	CacheHits            int64
	CacheMisses          int64
	TotalParseTime       time.Duration
}

// AverageParseLatency is TotalParseTime / ParsesRun, or 0 if no parse has
// completed yet.
func (m DriverMetrics) AverageParseLatency() time.Duration {
	if m.ParsesRun == 0 {
		return 0
	}
	return m.TotalParseTime / time.Duration(m.ParsesRun)
}

// Driver owns one buffer's re-parse lifecycle: it debounces edit
// notifications, runs at most one parse at a time, discards any parse
// result that completes after a newer edit has already arrived, and
// caches capture trees by a hash of the whole buffer's content so a
// re-parse over unchanged bytes (e.g. a duplicate notification) reuses the
// prior parse; any change to the buffer's bytes is a cache miss.
type Driver struct {
	source   ContentSource
	lang     *parser.Language
	resolver parser.GrammarResolver
	engine   parser.Engine
	executor *task.Executor
	captures *cache.CaptureCache
	debounce time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	inFlight   bool
	dirty      bool
	root       *parser.CaptureNode
	onParsed   func(*parser.CaptureNode)

	parsesRun       int64
	parsesDiscarded int64
	cacheHitsLocal  int64
	cacheMissLocal  int64
	totalParseNanos int64
}

// NewDriver builds a Driver over source, parsing with lang and resolving
// any `@inject` regions against resolver. executor runs the actual parse
// off the caller's goroutine. cacheSize <= 0 uses cache.DefaultMaxEntries;
// debounce <= 0 uses DefaultReparseDebounce.
func NewDriver(source ContentSource, lang *parser.Language, resolver parser.GrammarResolver, executor *task.Executor, cacheSize int, debounce time.Duration) *Driver {
	if debounce <= 0 {
		debounce = DefaultReparseDebounce
	}
	return &Driver{
		source:   source,
		lang:     lang,
		resolver: resolver,
		engine:   parser.Interpreter{},
		executor: executor,
		captures: cache.New(cacheSize),
		debounce: debounce,
	}
}

// SetEngine swaps the Engine backend a later re-parse runs with (e.g. to
// switch a buffer onto a registered JIT backend mid-session).
func (d *Driver) SetEngine(e parser.Engine) {
	d.mu.Lock()
	d.engine = e
	d.mu.Unlock()
}

// SetLanguage swaps the active grammar, clearing the capture cache since
// every cached subtree belongs to the old grammar's rule names.
func (d *Driver) SetLanguage(lang *parser.Language) {
	d.mu.Lock()
	d.lang = lang
	d.mu.Unlock()
	d.captures.Clear()
}

// OnParsed registers a callback invoked with the fresh root after each
// re-parse that isn't discarded as stale. Not called while holding d.mu.
func (d *Driver) OnParsed(fn func(*parser.CaptureNode)) {
	d.mu.Lock()
	d.onParsed = fn
	d.mu.Unlock()
}

// Root returns the most recently completed (non-stale) parse result, or
// nil if none has completed yet.
func (d *Driver) Root() *parser.CaptureNode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root
}

// RequestReparse notifies the Driver that the buffer changed. It resets
// the debounce timer; only the last call in a debounce window actually
// triggers a parse (spec §4 "debounced re-highlight scheduling", adapted
// from the teacher's DebouncedRebuilder.ScheduleRebuild timer-reset).
func (d *Driver) RequestReparse(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, func() { d.fireReparse(ctx) })
}

// fireReparse starts a parse task unless one is already in flight, in
// which case it just marks the run dirty so the in-flight task schedules
// one more pass after it completes (the "at most one in-flight parse per
// buffer" invariant, spec §4.3).
func (d *Driver) fireReparse(ctx context.Context) {
	d.mu.Lock()
	if d.inFlight {
		d.dirty = true
		d.mu.Unlock()
		return
	}
	d.inFlight = true
	gen := d.generation
	d.mu.Unlock()

	runTask := func(taskCtx context.Context) error {
		d.runParse(taskCtx, gen)
		return nil
	}
	if d.executor != nil {
		if err := d.executor.Go(runTask); err != nil {
			debug.LogHighlight("highlight: failed to schedule re-parse: %v", err)
			d.mu.Lock()
			d.inFlight = false
			d.mu.Unlock()
		}
		return
	}
	_ = runTask(ctx)
}

// cacheGeneration is the generation value this Driver splices and looks
// up cached entries under. It is deliberately NOT d.generation (the
// edit-sequence counter used for stale-result discard): a whole-buffer
// content hash already disambiguates two different buffer states from
// each other, so a cache hit only needs "is this the current grammar's
// cache" (invalidated wholesale by SetLanguage's Clear), not "is this the
// current edit." Reusing the edit counter here would make every reparse
// after any edit a guaranteed miss even when the edit left the buffer's
// bytes unchanged (e.g. a duplicate notification), which defeats the
// cache's purpose.
const cacheGeneration = 1

// runParse executes one parse against the buffer's current content and
// installs the result unless a newer edit has superseded gen by the time
// it finishes.
func (d *Driver) runParse(ctx context.Context, gen uint64) {
	content := d.source.Bytes()
	key := cache.HashRegion(content)

	start := time.Now()
	var root *parser.CaptureNode
	if cached, ok := d.captures.Get(key, cacheGeneration); ok {
		atomic.AddInt64(&d.cacheHitsLocal, 1)
		root = cached
	} else {
		atomic.AddInt64(&d.cacheMissLocal, 1)
		d.mu.Lock()
		lang, engine, resolver := d.lang, d.engine, d.resolver
		d.mu.Unlock()
		if lang == nil {
			d.finishParse(gen, nil, time.Since(start))
			return
		}
		parsed, err := lang.Parse(ctx, content, engine, resolver)
		if err != nil {
			debug.LogHighlight("highlight: parse failed: %v", err)
			d.finishParse(gen, nil, time.Since(start))
			return
		}
		root = parsed
		d.captures.Splice(key, root, cacheGeneration, time.Now().UnixNano())
	}
	d.finishParse(gen, root, time.Since(start))
}

func (d *Driver) finishParse(gen uint64, root *parser.CaptureNode, elapsed time.Duration) {
	d.mu.Lock()
	stale := gen != d.generation
	if stale {
		d.parsesDiscarded++
	} else {
		d.parsesRun++
		d.totalParseNanos += elapsed.Nanoseconds()
		if root != nil {
			d.root = root
		}
	}
	wasDirty := d.dirty
	d.dirty = false
	d.inFlight = false
	onParsed := d.onParsed
	newRoot := d.root
	d.mu.Unlock()

	if !stale && root != nil && onParsed != nil {
		onParsed(newRoot)
	}
	if wasDirty {
		d.RequestReparse(context.Background())
	}
}

// Metrics returns a snapshot of this Driver's counters.
func (d *Driver) Metrics() DriverMetrics {
	d.mu.Lock()
	run := d.parsesRun
	discarded := d.parsesDiscarded
	nanos := d.totalParseNanos
	d.mu.Unlock()
	return DriverMetrics{
		ParsesRun:            run,
		ParsesDiscardedStale: discarded,
		CacheHits:            atomic.LoadInt64(&d.cacheHitsLocal),
		CacheMisses:          atomic.LoadInt64(&d.cacheMissLocal),
		TotalParseTime:       time.Duration(nanos),
	}
}

// CacheStats exposes the underlying capture cache's own counters (which
// include evictions/splices that DriverMetrics doesn't track separately).
func (d *Driver) CacheStats() cache.Stats {
	return d.captures.Stats()
}
