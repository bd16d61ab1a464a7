package loader

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/protobridge/compiler"
	"github.com/teranos/protobridge/config"
	"github.com/teranos/protobridge/errors"
	fixtures "github.com/teranos/protobridge/internal/testing"
		"github.com/teranos/protobridge/strategy"
)

// recordingStrategy counts calls and returns a canned result or error
type recordingStrategy struct {
	name string
	err  error

	mu    sync.Mutex
	calls []strategy.Options
}

func (r *recordingStrategy) Name() string { return r.name }

func (r *recordingStrategy) Generate(_ context.Context, schemaPath string, opts strategy.Options) (*strategy.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &strategy.Result{Source: r.name + ":" + schemaPath, Strategy: r.name}, nil
}

func (r *recordingStrategy) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func boolPtr(b bool) *bool { return &b }

func newRecordingLoader(defaults strategy.Options) (*Loader, *recordingStrategy, *recordingStrategy) {
	static := &recordingStrategy{name: strategy.NameStatic}
	dynamic := &recordingStrategy{name: strategy.NameDynamic}
	return NewWithStrategies(defaults, static, dynamic, nil), static, dynamic
}

func TestResolveOptions(t *testing.T) {
	tests := []struct {
		name     string
		defaults strategy.Options
		opts     map[string]interface{}
		want     strategy.Options
	}{
		{
			name:     "no options keep defaults",
			defaults: strategy.Options{Static: true},
			want:     strategy.Options{Static: true},
		},
		{
			name:     "boolean static",
			defaults: strategy.Options{Static: true},
			opts:     map[string]interface{}{"static": false},
			want:     strategy.Options{Static: false},
		},
		{
			name:     "string values from a query string",
			defaults: strategy.Options{Static: true},
			opts:     map[string]interface{}{"static": "false", "longsAsStrings": "true"},
			want:     strategy.Options{Static: false, LongsAsStrings: boolPtr(true)},
		},
		{
			name:     "keys match case-insensitively",
			defaults: strategy.Options{Static: true},
			opts:     map[string]interface{}{"STATIC": false, "enumsasstrings": true},
			want:     strategy.Options{Static: false, EnumsAsStrings: boolPtr(true)},
		},
		{
			name:     "invocation overrides configured defaults",
			defaults: strategy.Options{Static: false, BinaryAsBase64: boolPtr(true)},
			opts:     map[string]interface{}{"binaryAsBase64": false},
			want:     strategy.Options{Static: false, BinaryAsBase64: boolPtr(false)},
		},
		{
			name:     "configured defaults survive unrelated options",
			defaults: strategy.Options{Static: false, ConvertFieldsToCamelCase: boolPtr(false)},
			opts:     map[string]interface{}{"longsAsStrings": true},
			want: strategy.Options{
				Static:                   false,
				ConvertFieldsToCamelCase: boolPtr(false),
				LongsAsStrings:           boolPtr(true),
			},
		},
		{
			name:     "unknown and nil options are ignored",
			defaults: strategy.Options{Static: true},
			opts:     map[string]interface{}{"cacheDirectory": "/tmp/x", "static": nil},
			want:     strategy.Options{Static: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, _ := newRecordingLoader(tt.defaults)
			got, err := l.ResolveOptions(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveOptions_InvalidValue(t *testing.T) {
	l, _, _ := newRecordingLoader(strategy.Options{Static: true})

	_, err := l.ResolveOptions(map[string]interface{}{"static": "sometimes"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidOption))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestLoad_DispatchesExactlyOnce(t *testing.T) {
	tests := []struct {
		name        string
		opts        map[string]interface{}
		wantStatic  int
		wantDynamic int
	}{
		{name: "default is static", wantStatic: 1},
		{name: "static true", opts: map[string]interface{}{"static": true}, wantStatic: 1},
		{name: "static false", opts: map[string]interface{}{"static": false}, wantDynamic: 1},
		{name: "static string false", opts: map[string]interface{}{"static": "false"}, wantDynamic: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, static, dynamic := newRecordingLoader(strategy.Options{Static: true})

			res, err := l.Load(context.Background(), Invocation{Schema: "greeter.proto", Options: tt.opts})
			require.NoError(t, err)
			require.NotNil(t, res)

			assert.Equal(t, tt.wantStatic, static.count())
			assert.Equal(t, tt.wantDynamic, dynamic.count())
		})
	}
}

func TestLoad_ResolvesSchemaPath(t *testing.T) {
	l, _, _ := newRecordingLoader(strategy.Options{Static: true})

	res, err := l.Load(context.Background(), Invocation{Schema: "greeter.proto"})
	require.NoError(t, err)

	abs, err := filepath.Abs("greeter.proto")
	require.NoError(t, err)
	assert.Equal(t, strategy.NameStatic+":"+abs, res.Source)
}

func TestLoad_InvalidOptionSkipsStrategies(t *testing.T) {
	l, static, dynamic := newRecordingLoader(strategy.Options{Static: true})

	_, err := l.Load(context.Background(), Invocation{Schema: "greeter.proto", Options: map[string]interface{}{"static": "nope"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidOption))
	assert.Zero(t, static.count())
	assert.Zero(t, dynamic.count())
}

func TestLoad_PropagatesStrategyError(t *testing.T) {
	cause := &compiler.CompileError{Schema: "greeter.proto", Binary: "protoc", ExitCode: 1, Stderr: "boom"}
	static := &recordingStrategy{name: strategy.NameStatic, err: cause}
	l := NewWithStrategies(strategy.Options{Static: true}, static, &recordingStrategy{name: strategy.NameDynamic}, nil)

	res, err := l.Load(context.Background(), Invocation{Schema: "greeter.proto"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Same(t, cause, err)
	assert.Equal(t, cause.Error(), err.Error())
	assert.True(t, errors.Is(err, errors.ErrCompile))

	var ce *compiler.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "boom", ce.Stderr)
}

func TestLoadAsync_SingleOutcome(t *testing.T) {
	l, _, _ := newRecordingLoader(strategy.Options{Static: true})

	ch := l.LoadAsync(context.Background(), Invocation{Schema: "greeter.proto"})
	out, ok := <-ch
	require.True(t, ok)
	require.NoError(t, out.Err)
	assert.Equal(t, strategy.NameStatic, out.Result.Strategy)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after one outcome")
}

func TestLoadAsync_ErrorOutcome(t *testing.T) {
	static := &recordingStrategy{name: strategy.NameStatic, err: errors.ErrWorkspace}
	l := NewWithStrategies(strategy.Options{Static: true}, static, &recordingStrategy{name: strategy.NameDynamic}, nil)

	var outcomes []Outcome
	for o := range l.LoadAsync(context.Background(), Invocation{Schema: "greeter.proto"}) {
		outcomes = append(outcomes, o)
	}
	require.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0].Result)
	assert.True(t, errors.Is(outcomes[0].Err, errors.ErrWorkspace))
}

func TestLoadAll_OrderAndIsolation(t *testing.T) {
	static := &recordingStrategy{name: strategy.NameStatic, err: errors.ErrArtifactMissing}
	dynamic := &recordingStrategy{name: strategy.NameDynamic}
	l := NewWithStrategies(strategy.Options{Static: false}, static, dynamic, nil)

	invs := []Invocation{
		{Schema: "a.proto"},
		{Schema: "b.proto", Options: map[string]interface{}{"static": true}},
		{Schema: "c.proto"},
		{Schema: "d.proto"},
	}
	outcomes := l.LoadAll(context.Background(), invs, 2)
	require.Len(t, outcomes, len(invs))

	for i, o := range outcomes {
		assert.Equal(t, invs[i].Schema, o.Invocation.Schema)
	}
	assert.True(t, errors.Is(outcomes[1].Err, errors.ErrArtifactMissing))
	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[2].Err)
	assert.NoError(t, outcomes[3].Err)
	assert.Equal(t, 1, Failed(outcomes))
	assert.Equal(t, 3, dynamic.count())
}

func TestNew_EndToEnd(t *testing.T) {
	cfg := &config.Config{
		Loader: config.LoaderConfig{Static: true},
		Compiler: config.CompilerConfig{
			Command: fixtures.FakeCompiler(t, fixtures.CompilerOK),
			Plugin:  fixtures.FakePlugin(t),
		},
		Workspace: config.WorkspaceConfig{Root: t.TempDir()},
		Artifacts: config.ArtifactsConfig{Dir: t.TempDir()},
	}
	l, err := New(cfg, nil)
	require.NoError(t, err)

	schemaPath := fixtures.WriteSchema(t, t.TempDir(), "greeter.proto", fixtures.GreeterProto)

	static, err := l.Load(context.Background(), Invocation{Schema: schemaPath})
	require.NoError(t, err)
	assert.Equal(t, strategy.NameStatic, static.Strategy)
	assert.Contains(t, static.Source, "exports.services = require(")

	dynamic, err := l.Load(context.Background(), Invocation{
		Schema:  schemaPath,
		Options: map[string]interface{}{"static": "false", "longsAsStrings": "true"},
	})
	require.NoError(t, err)
	assert.Equal(t, strategy.NameDynamic, dynamic.Strategy)
	assert.Contains(t, dynamic.Source, `"longsAsStrings":true`)

	broken := fixtures.WriteSchema(t, t.TempDir(), "broken.proto", fixtures.BrokenProto)
	_, err = l.Load(context.Background(), Invocation{Schema: broken})
	assert.True(t, errors.Is(err, errors.ErrCompile))
	_, err = l.Load(context.Background(), Invocation{Schema: broken, Options: map[string]interface{}{"static": false}})
	assert.True(t, errors.Is(err, errors.ErrSchemaParse))
	assert.True(t, errors.IsRejectedSchema(err))
}

func TestNew_InvalidCompilerCommand(t *testing.T) {
	_, err := New(&config.Config{Compiler: config.CompilerConfig{Command: `protoc "unterminated`}}, nil)
	assert.Error(t, err)
}
