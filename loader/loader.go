// Package loader is the entry point the build pipeline calls: it resolves the
// options of one invocation, picks the static or dynamic strategy and hands
// back module source.
package loader

import (
	"context"
	"path/filepath"
	"runtime"
	"time"

	"github.com/teranos/protobridge/compiler"
	"github.com/teranos/protobridge/config"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/linker"
	"github.com/teranos/protobridge/logger"
	"github.com/teranos/protobridge/schema"
	"github.com/teranos/protobridge/strategy"
	"github.com/teranos/protobridge/workspace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Invocation is one request to turn a schema file into module source
type Invocation struct {
	// Schema is the path of the .proto file
	Schema string
	// Options are raw pipeline options (e.g. parsed from a query string).
	// Values may be booleans or strings such as "false".
	Options map[string]interface{}
}

// Outcome carries the result of one asynchronous invocation
type Outcome struct {
	Invocation Invocation
	Result     *strategy.Result
	Err        error
}

// Loader dispatches invocations. It is safe for concurrent use.
type Loader struct {
	defaults strategy.Options
	static   strategy.Strategy
	dynamic  strategy.Strategy
	logger   *zap.SugaredLogger
}

// New builds both strategies from cfg
func New(cfg *config.Config, log *zap.SugaredLogger) (*Loader, error) {
	log = logger.OrNop(log)

	inv, err := compiler.New(compiler.Config{
		Command:    cfg.Compiler.Command,
		Plugin:     cfg.Compiler.Plugin,
		ToolsDir:   cfg.Compiler.ToolsDir,
		MinVersion: cfg.Compiler.MinVersion,
	}, log.Named("compiler"))
	if err != nil {
		return nil, err
	}

	parser := schema.NewParser(cfg.Schema.IncludePaths, log.Named("schema"))
	static := strategy.NewStatic(
		workspace.NewManager(cfg.Workspace.Root, log.Named("workspace")),
		inv,
		linker.New(log.Named("linker")),
		parser,
		cfg.ArtifactsDir(),
		log.Named("static"),
	)
	dynamic := strategy.NewDynamic(parser, log.Named("dynamic"))

	return NewWithStrategies(DefaultsFromConfig(cfg.Loader), static, dynamic, log), nil
}

// NewWithStrategies creates a Loader around already-built strategies
func NewWithStrategies(defaults strategy.Options, static, dynamic strategy.Strategy, log *zap.SugaredLogger) *Loader {
	return &Loader{
		defaults: defaults,
		static:   static,
		dynamic:  dynamic,
		logger:   logger.OrNop(log).Named("loader"),
	}
}

// DefaultsFromConfig converts the configured loader section to strategy options
func DefaultsFromConfig(c config.LoaderConfig) strategy.Options {
	return strategy.Options{
		Static:                   c.Static,
		ConvertFieldsToCamelCase: c.ConvertFieldsToCamelCase,
		BinaryAsBase64:           c.BinaryAsBase64,
		LongsAsStrings:           c.LongsAsStrings,
		EnumsAsStrings:           c.EnumsAsStrings,
	}
}

// Defaults returns the options used when an invocation sets none
func (l *Loader) Defaults() strategy.Options {
	return l.defaults
}

// Load runs exactly one strategy for inv and returns its result or error.
// Strategy errors are returned as is.
func (l *Loader) Load(ctx context.Context, inv Invocation) (*strategy.Result, error) {
	opts, err := l.ResolveOptions(inv.Options)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid options for %s", inv.Schema)
	}

	path, err := filepath.Abs(inv.Schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve schema path %s", inv.Schema)
	}

	s := l.dynamic
	if opts.Static {
		s = l.static
	}

	start := time.Now()
	l.logger.Debugw("Dispatching invocation",
		logger.FieldSchema, path,
		logger.FieldStrategy, s.Name(),
	)

	res, err := s.Generate(ctx, path, opts)
	if err != nil {
		l.logger.Debugw("Invocation failed",
			logger.FieldSchema, path,
			logger.FieldStrategy, s.Name(),
			logger.FieldError, err,
		)
		return nil, err
	}

	l.logger.Infow("Loaded schema",
		logger.FieldSchema, path,
		logger.FieldStrategy, s.Name(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// LoadAsync runs Load in the background. The returned channel yields exactly
// one Outcome and is then closed.
func (l *Loader) LoadAsync(ctx context.Context, inv Invocation) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := l.Load(ctx, inv)
		ch <- Outcome{Invocation: inv, Result: res, Err: err}
	}()
	return ch
}

// LoadAll runs invs with at most jobs in flight (jobs <= 0 means one per
// CPU). Outcomes are returned in input order. A failed invocation does not
// stop the others.
func (l *Loader) LoadAll(ctx context.Context, invs []Invocation, jobs int) []Outcome {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	outcomes := make([]Outcome, len(invs))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, inv := range invs {
		g.Go(func() error {
			res, err := l.Load(ctx, inv)
			outcomes[i] = Outcome{Invocation: inv, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Failed counts outcomes carrying an error
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
