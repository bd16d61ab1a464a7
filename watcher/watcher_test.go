package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/protobridge/errors"
	fixtures "github.com/teranos/protobridge/internal/testing"
	"github.com/teranos/protobridge/loader"
	"github.com/teranos/protobridge/strategy"
)

// fakeLoader reports extra as dependencies and fails while failing is set
type fakeLoader struct {
	mu      sync.Mutex
	extra   []string
	failing bool
	calls   int
}

func (f *fakeLoader) Load(_ context.Context, inv loader.Invocation) (*strategy.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing {
		return nil, errors.ErrSchemaParse
	}
	return &strategy.Result{
		Source:       "module",
		Strategy:     strategy.NameDynamic,
		Dependencies: append([]string{inv.Schema}, f.extra...),
	}, nil
}

type harness struct {
	outcomes chan loader.Outcome
	cancel   context.CancelFunc
	done     chan error
}

func start(t *testing.T, l Loader, schemas ...string) (*Watcher, *harness) {
	t.Helper()
	h := &harness{outcomes: make(chan loader.Outcome, 16), done: make(chan error, 1)}

	invs := make([]loader.Invocation, 0, len(schemas))
	for _, s := range schemas {
		invs = append(invs, loader.Invocation{Schema: s})
	}
	w, err := New(l, invs, func(o loader.Outcome) { h.outcomes <- o }, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return w, h
}

func (h *harness) next(t *testing.T) loader.Outcome {
	t.Helper()
	select {
	case o := <-h.outcomes:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return loader.Outcome{}
	}
}

func (h *harness) none(t *testing.T) {
	t.Helper()
	select {
	case o := <-h.outcomes:
		t.Fatalf("unexpected outcome for %s", o.Invocation.Schema)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_InitialBuildAndReload(t *testing.T) {
	dir := t.TempDir()
	schema := fixtures.WriteSchema(t, dir, "greeter.proto", fixtures.GreeterProto)

	_, h := start(t, &fakeLoader{}, schema)

	first := h.next(t)
	require.NoError(t, first.Err)
	assert.Equal(t, schema, first.Invocation.Schema)

	require.NoError(t, os.WriteFile(schema, []byte(fixtures.GreeterProto+"\n// edited\n"), 0o644))
	second := h.next(t)
	require.NoError(t, second.Err)
	assert.Equal(t, schema, second.Invocation.Schema)
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	schema := fixtures.WriteSchema(t, dir, "greeter.proto", fixtures.GreeterProto)

	_, h := start(t, &fakeLoader{}, schema)
	h.next(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	h.none(t)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	schema := fixtures.WriteSchema(t, dir, "greeter.proto", fixtures.GreeterProto)

	w, h := start(t, &fakeLoader{}, schema)
	w.SetDebounce(150 * time.Millisecond)
	h.next(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(schema, []byte(fixtures.GreeterProto), 0o644))
	}
	h.next(t)
	h.none(t)
}

func TestWatcher_ReloadsOnDependencyChange(t *testing.T) {
	dir := t.TempDir()
	schema := fixtures.WriteSchema(t, dir, "clock.proto", `syntax = "proto3";`)
	dep := fixtures.WriteSchema(t, filepath.Join(dir, "shared"), "zone.proto", `syntax = "proto3";`)

	w, h := start(t, &fakeLoader{extra: []string{dep}}, schema)
	h.next(t)
	assert.Contains(t, w.Watched(), dep)

	require.NoError(t, os.WriteFile(dep, []byte(`syntax = "proto3"; // edited`), 0o644))
	o := h.next(t)
	assert.Equal(t, schema, o.Invocation.Schema)
}

func TestWatcher_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	schema := fixtures.WriteSchema(t, dir, "broken.proto", fixtures.BrokenProto)

	fl := &fakeLoader{failing: true}
	_, h := start(t, fl, schema)

	o := h.next(t)
	assert.Nil(t, o.Result)
	assert.True(t, errors.Is(o.Err, errors.ErrSchemaParse))

	// The schema itself stays watched after a failure
	fl.mu.Lock()
	fl.failing = false
	fl.mu.Unlock()
	require.NoError(t, os.WriteFile(schema, []byte(fixtures.GreeterProto), 0o644))
	assert.NoError(t, h.next(t).Err)
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	schema := fixtures.WriteSchema(t, t.TempDir(), "greeter.proto", fixtures.GreeterProto)

	_, h := start(t, &fakeLoader{}, schema)
	h.next(t)
	h.cancel()

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_PendingReloadReleasedAfterStop(t *testing.T) {
	schemaPath := fixtures.WriteSchema(t, t.TempDir(), "greeter.proto", fixtures.GreeterProto)

	w, err := New(&fakeLoader{}, []loader.Invocation{{Schema: schemaPath}}, nil, nil)
	require.NoError(t, err)
	w.stop()

	released := make(chan struct{})
	go func() {
		// Live context and nobody reading ready: only the stop signal can release it
		w.signal(context.Background(), schemaPath)
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("pending reload still blocked after the watcher stopped")
	}

	// Stopping twice is harmless and no new timers are scheduled
	w.stop()
	w.schedule(context.Background(), schemaPath)
	assert.Empty(t, w.timers)
}
