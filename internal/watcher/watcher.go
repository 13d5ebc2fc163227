package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is a file change kind.
type Operation int

const (
	// OpCreate indicates a new file.
	OpCreate Operation = iota
	// OpModify indicates changed content.
	OpModify
	// OpDelete indicates the file is gone (removed or renamed away).
	OpDelete
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is a change to one file in the watched directory.
type Event struct {
	// Path is the absolute file path.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long a file must be quiet before its event is
	// emitted. Default: 300ms.
	DebounceWindow time.Duration
	// PollInterval is the scan period in polling mode. Default: 2s.
	PollInterval time.Duration
	// EventBufferSize bounds undelivered batches. Default: 64.
	EventBufferSize int
	// Filter selects file names (base names) to report. Nil reports all.
	Filter func(name string) bool
	// ForcePolling skips fsnotify.
	ForcePolling bool
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 300 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = 64
	}
	return o
}

// Watcher watches the regular files directly inside one directory.
type Watcher struct {
	dir       string
	opts      Options
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []Event
	errors    chan error
	stopCh    chan struct{}

	mu      sync.Mutex
	stopped bool
	dropped atomic.Uint64
}

// New creates a watcher for dir. It falls back to polling when fsnotify is
// unavailable.
func New(dir string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", abs)
	}

	opts = opts.withDefaults()
	w := &Watcher{
		dir:       abs,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []Event, opts.EventBufferSize),
		errors:    make(chan error, 8),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err := fsw.Add(abs); err == nil {
				w.fs = fsw
			} else {
				_ = fsw.Close()
				slog.Warn("fsnotify_unavailable", slog.String("dir", abs), slog.String("error", err.Error()))
			}
		} else {
			slog.Warn("fsnotify_unavailable", slog.String("dir", abs), slog.String("error", err.Error()))
		}
	}
	return w, nil
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fs != nil {
		return "fsnotify"
	}
	return "polling"
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Run delivers events until ctx is done or Stop is called. It stops the
// watcher before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.Stop() }()

	go w.forward()

	slog.Info("watcher_started", slog.String("dir", w.dir), slog.String("mode", w.Mode()))
	if w.fs != nil {
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Dir(ev.Name) != w.dir || !w.accept(filepath.Base(ev.Name)) {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	if op != OpDelete {
		if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
			return
		}
	}
	w.debouncer.Add(Event{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

type fileState struct {
	modTime time.Time
	size    int64
}

func (w *Watcher) runPolling(ctx context.Context) error {
	state, err := w.scan()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			next, err := w.scan()
			if err != nil {
				w.emitError(err)
				continue
			}
			now := time.Now()
			for path, cur := range next {
				prev, ok := state[path]
				switch {
				case !ok:
					w.debouncer.Add(Event{Path: path, Operation: OpCreate, Timestamp: now})
				case prev != cur:
					w.debouncer.Add(Event{Path: path, Operation: OpModify, Timestamp: now})
				}
			}
			for path := range state {
				if _, ok := next[path]; !ok {
					w.debouncer.Add(Event{Path: path, Operation: OpDelete, Timestamp: now})
				}
			}
			state = next
		}
	}
}

func (w *Watcher) scan() (map[string]fileState, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("scan watch directory: %w", err)
	}
	state := make(map[string]fileState, len(entries))
	for _, e := range entries {
		if e.IsDir() || !w.accept(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		state[filepath.Join(w.dir, e.Name())] = fileState{modTime: info.ModTime(), size: info.Size()}
	}
	return state, nil
}

func (w *Watcher) accept(name string) bool {
	return w.opts.Filter == nil || w.opts.Filter(name)
}

// forward moves debounced batches to the events channel.
func (w *Watcher) forward() {
	for batch := range w.debouncer.Output() {
		w.mu.Lock()
		if !w.stopped {
			select {
			case w.events <- batch:
			default:
				n := w.dropped.Add(1)
				slog.Warn("watcher_buffer_full",
					slog.Int("batch_size", len(batch)),
					slog.Uint64("total_dropped_batches", n))
			}
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Events returns debounced batches. Closed after Stop.
func (w *Watcher) Events() <-chan []Event { return w.events }

// Errors returns non-fatal watch errors. Closed after Stop.
func (w *Watcher) Errors() <-chan error { return w.errors }

// DroppedBatches counts batches lost to a full events buffer.
func (w *Watcher) DroppedBatches() uint64 { return w.dropped.Load() }

// Stop releases the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fs != nil {
		_ = w.fs.Close()
	}
	close(w.events)
	close(w.errors)
	return nil
}
