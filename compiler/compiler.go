// Package compiler runs the external schema compiler (protoc with the gRPC
// node plugin) against a single schema file.
package compiler

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/logger"
	"go.uber.org/zap"
)

// Default tool names, as shipped in grpc-tools' bin directory
const (
	DefaultCompiler = "protoc"
	DefaultPlugin   = "grpc_node_plugin"
)

// Argument contract with the compiler
const (
	ProtoPathFlag    = "--proto_path"
	MessagesOutFlag  = "--js_out"
	MessagesFormat   = "import_style=commonjs,binary"
	ServicesOutFlag  = "--grpc_out"
	PluginFlag       = "--plugin"
	ServicesPluginID = "protoc-gen-grpc"
)

// Config selects the compiler and plugin binaries
type Config struct {
	// Command is the compiler command line, shell-quoted. Words after the
	// first are passed before the contract arguments, so wrappers such as
	// "npx grpc_tools_node_protoc" work.
	Command string

	// Plugin is the gRPC code generation plugin. Bare names are looked up on PATH.
	Plugin string

	// ToolsDir holds protoc and grpc_node_plugin when Command/Plugin are empty
	ToolsDir string

	// MinVersion is the minimum accepted libprotoc version (empty = no check)
	MinVersion string
}

// Output is what a successful compiler run leaves behind besides its files
type Output struct {
	Stdout string
	// Diagnostics holds stderr text from a successful run (warnings)
	Diagnostics string
	Duration    time.Duration
}

// Invoker runs the compiler. It is safe for concurrent use.
type Invoker struct {
	binary     string
	prefix     []string
	plugin     string
	minVersion *semver.Version
	logger     *zap.SugaredLogger

	versionMu      sync.Mutex
	versionChecked bool
	versionErr     error
}

// New creates an Invoker. Binaries are not required to exist yet: a missing
// compiler surfaces as a spawn CompileError from Compile.
func New(cfg Config, log *zap.SugaredLogger) (*Invoker, error) {
	inv := &Invoker{logger: logger.OrNop(log)}

	if cfg.Command != "" {
		words, err := shellquote.Split(cfg.Command)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid compiler command %q", cfg.Command)
		}
		if len(words) == 0 {
			return nil, errors.New("compiler command is blank")
		}
		inv.binary, inv.prefix = words[0], words[1:]
	} else {
		inv.binary = toolPath(cfg.ToolsDir, DefaultCompiler)
	}

	if cfg.Plugin != "" {
		inv.plugin = cfg.Plugin
	} else {
		inv.plugin = toolPath(cfg.ToolsDir, DefaultPlugin)
	}

	if cfg.MinVersion != "" {
		v, err := semver.NewVersion(cfg.MinVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid minimum compiler version %q", cfg.MinVersion)
		}
		inv.minVersion = v
	}

	return inv, nil
}

// toolPath returns name inside dir (with the platform executable suffix), or
// the bare name for PATH lookup when dir is empty.
func toolPath(dir, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// Binary returns the compiler executable
func (i *Invoker) Binary() string {
	return i.binary
}

// Fingerprint identifies the compiler setup, for cache keys
func (i *Invoker) Fingerprint() string {
	return shellquote.Join(append([]string{i.binary}, i.prefix...)...) + " " + i.plugin
}

// Args returns the contract arguments for compiling schemaPath into outDir
func (i *Invoker) Args(schemaPath, outDir string) []string {
	return []string{
		ProtoPathFlag + "=" + filepath.Dir(schemaPath),
		MessagesOutFlag + "=" + MessagesFormat + ":" + outDir,
		ServicesOutFlag + "=" + outDir,
		PluginFlag + "=" + ServicesPluginID + "=" + i.pluginPath(),
		schemaPath,
	}
}

// pluginPath resolves a bare plugin name on PATH, since protoc wants a path
func (i *Invoker) pluginPath() string {
	if strings.ContainsAny(i.plugin, `/\`) {
		return i.plugin
	}
	if resolved, err := exec.LookPath(i.plugin); err == nil {
		return resolved
	}
	return i.plugin
}

// Compile runs the compiler for schemaPath, writing generated files to outDir.
//
// There is no timeout: a hung compiler blocks until ctx is cancelled.
func (i *Invoker) Compile(ctx context.Context, schemaPath, outDir string) (*Output, error) {
	if err := i.CheckVersion(ctx); err != nil {
		return nil, err
	}

	args := append(append([]string{}, i.prefix...), i.Args(schemaPath, outDir)...)
	i.logger.Debugw("Invoking compiler",
		logger.FieldSchema, schemaPath,
		logger.FieldBinary, i.binary,
		logger.FieldArgs, args,
	)

	start := time.Now()
	stdout, stderr, err := i.run(ctx, args...)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "compiler interrupted for %s", schemaPath)
		}
		compileErr := newCompileError(schemaPath, i.binary, stderr, err)
		i.logger.Debugw("Compiler failed",
			logger.FieldSchema, schemaPath,
			logger.FieldExitCode, compileErr.ExitCode,
			logger.FieldStderr, compileErr.Stderr,
		)
		return nil, compileErr
	}

	out := &Output{
		Stdout:      stdout,
		Diagnostics: strings.TrimSpace(stderr),
		Duration:    duration,
	}
	if out.Diagnostics != "" {
		i.logger.Warnw("Compiler reported diagnostics",
			logger.FieldSchema, schemaPath,
			logger.FieldStderr, out.Diagnostics,
		)
	}
	i.logger.Debugw("Compiler finished",
		logger.FieldSchema, schemaPath,
		logger.FieldDurationMS, duration.Milliseconds(),
	)
	return out, nil
}

func (i *Invoker) run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, i.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
