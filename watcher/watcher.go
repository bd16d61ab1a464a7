// Package watcher rebuilds schemas when they or their imports change on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/loader"
	"github.com/teranos/protobridge/logger"
	"github.com/teranos/protobridge/strategy"
	"go.uber.org/zap"
)

// DefaultDebounce absorbs the burst of events editors produce for one save
const DefaultDebounce = 200 * time.Millisecond

// Loader is the part of loader.Loader the watcher needs
type Loader interface {
	Load(ctx context.Context, inv loader.Invocation) (*strategy.Result, error)
}

// Handler receives every outcome, including the initial build
type Handler func(loader.Outcome)

// Watcher reloads invocations whose schema or dependencies change.
// Loads run one at a time on the Run goroutine.
type Watcher struct {
	load    Loader
	handler Handler
	logger  *zap.SugaredLogger

	fsw            *fsnotify.Watcher
	debouncePeriod time.Duration
	ready          chan string
	done           chan struct{} // closed when Run returns

	mu      sync.Mutex
	invs    map[string]loader.Invocation // by absolute schema path
	deps    map[string]map[string]bool   // watched file -> schemas depending on it
	dirs    map[string]bool
	timers  map[string]*time.Timer
	stopped bool
}

// New creates a Watcher for invs. Call Run to start it.
func New(l Loader, invs []loader.Invocation, handler Handler, log *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		load:           l,
		handler:        handler,
		logger:         logger.OrNop(log),
		fsw:            fsw,
		debouncePeriod: DefaultDebounce,
		ready:          make(chan string),
		done:           make(chan struct{}),
		invs:           make(map[string]loader.Invocation),
		deps:           make(map[string]map[string]bool),
		dirs:           make(map[string]bool),
		timers:         make(map[string]*time.Timer),
	}

	for _, inv := range invs {
		abs, err := filepath.Abs(inv.Schema)
		if err != nil {
			fsw.Close()
			return nil, errors.Wrapf(err, "failed to resolve schema path %s", inv.Schema)
		}
		inv.Schema = abs
		w.invs[abs] = inv
		if err := w.track(abs, []string{abs}); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// SetDebounce changes the quiet period before a reload
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debouncePeriod = d
}

// Watched returns the files currently being watched, sorted
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	files := make([]string, 0, len(w.deps))
	for f := range w.deps {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Run builds every schema once, then reloads on change until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	w.mu.Lock()
	schemas := make([]string, 0, len(w.invs))
	for s := range w.invs {
		schemas = append(schemas, s)
	}
	w.mu.Unlock()
	sort.Strings(schemas)

	for _, s := range schemas {
		if ctx.Err() != nil {
			return nil
		}
		w.reload(ctx, s)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case schema := <-w.ready:
			w.reload(ctx, schema)

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			for _, schema := range w.dependents(event.Name) {
				w.logger.Debugw("Watcher detected change",
					"file", event.Name,
					"op", event.Op.String(),
					logger.FieldSchema, schema,
				)
				w.schedule(ctx, schema)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("Watcher error", logger.FieldError, err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context, schema string) {
	w.mu.Lock()
	inv := w.invs[schema]
	w.mu.Unlock()

	res, err := w.load.Load(ctx, inv)
	if err == nil {
		if terr := w.track(schema, res.Dependencies); terr != nil {
			w.logger.Warnw("Failed to watch dependencies", logger.FieldSchema, schema, logger.FieldError, terr)
		}
	}
	if w.handler != nil {
		w.handler(loader.Outcome{Invocation: inv, Result: res, Err: err})
	}
}

// schedule debounces reloads per schema
func (w *Watcher) schedule(ctx context.Context, schema string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if t := w.timers[schema]; t != nil {
		t.Stop()
	}
	w.timers[schema] = time.AfterFunc(w.debouncePeriod, func() {
		w.signal(ctx, schema)
	})
}

// signal hands schema to the Run loop, giving up once Run has returned
func (w *Watcher) signal(ctx context.Context, schema string) {
	select {
	case w.ready <- schema:
	case <-w.done:
	case <-ctx.Done():
	}
}

// track records that schema depends on files and watches their directories.
// Directories are watched rather than files so atomic-rename saves are seen.
func (w *Watcher) track(schema string, files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for file, dependents := range w.deps {
		delete(dependents, schema)
		if len(dependents) == 0 {
			delete(w.deps, file)
		}
	}

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s", f)
		}
		if w.deps[abs] == nil {
			w.deps[abs] = make(map[string]bool)
		}
		w.deps[abs][schema] = true

		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch directory %s", dir)
		}
		w.dirs[dir] = true
	}
	return nil
}

func (w *Watcher) dependents(file string) []string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	schemas := make([]string, 0, len(w.deps[abs]))
	for s := range w.deps[abs] {
		schemas = append(schemas, s)
	}
	sort.Strings(schemas)
	return schemas
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	for _, t := range w.timers {
		t.Stop()
	}
	close(w.done)
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		w.logger.Warnw("Failed to close watcher", logger.FieldError, err)
	}
}
