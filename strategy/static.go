package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/teranos/protobridge/compiler"
	"github.com/teranos/protobridge/linker"
	"github.com/teranos/protobridge/logger"
	"github.com/teranos/protobridge/schema"
	"github.com/teranos/protobridge/workspace"
	"go.uber.org/zap"
)

// Static generates code ahead of time with the external compiler.
//
// Per invocation: create workspace, run compiler, link and relocate the
// generated pair, emit the glue module, and destroy the workspace on every
// path out.
type Static struct {
	workspaces   *workspace.Manager
	compiler     *compiler.Invoker
	linker       *linker.Linker
	imports      *schema.Parser
	artifactsDir string
	logger       *zap.SugaredLogger
}

// NewStatic wires the static strategy. Linked artifacts are kept under
// artifactsDir. When imports is non-nil it resolves the schema's imported
// files for Result.Dependencies; otherwise only the schema is reported.
func NewStatic(ws *workspace.Manager, inv *compiler.Invoker, lk *linker.Linker, imports *schema.Parser, artifactsDir string, log *zap.SugaredLogger) *Static {
	return &Static{
		workspaces:   ws,
		compiler:     inv,
		linker:       lk,
		imports:      imports,
		artifactsDir: artifactsDir,
		logger:       logger.OrNop(log),
	}
}

// Name returns NameStatic
func (s *Static) Name() string { return NameStatic }

// Generate compiles schemaPath and returns a module re-exporting
// `services` and `messages` from the linked files.
func (s *Static) Generate(ctx context.Context, schemaPath string, _ Options) (*Result, error) {
	ws, err := s.workspaces.Create()
	if err != nil {
		return nil, err
	}
	defer s.workspaces.Destroy(ws)

	out, err := s.compiler.Compile(ctx, schemaPath, ws.Path)
	if err != nil {
		return nil, err
	}

	dest := s.destination(schemaPath)

	arts, err := s.linker.Link(schemaPath, ws.Path, dest)
	if err != nil {
		return nil, err
	}

	source, err := EmitStatic(schemaPath, arts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Source:       source,
		Strategy:     NameStatic,
		Cacheable:    true,
		Dependencies: s.dependencies(ctx, schemaPath),
		Artifacts:    arts,
	}
	if out.Diagnostics != "" {
		res.Diagnostics = append(res.Diagnostics, out.Diagnostics)
	}

	s.logger.Infow("Generated static module",
		logger.FieldSchema, schemaPath,
		logger.FieldServices, arts.ServicesPath,
		logger.FieldDurationMS, out.Duration.Milliseconds(),
	)
	return res, nil
}

// destination returns <artifactsDir>/<base>-<digest>. The digest covers the
// schema path and the compiler setup only, so an edited schema overwrites its
// previous artifacts instead of adding a directory.
func (s *Static) destination(schemaPath string) string {
	h := sha256.New()
	h.Write([]byte(schemaPath))
	h.Write([]byte{0})
	h.Write([]byte(s.compiler.Fingerprint()))
	digest := hex.EncodeToString(h.Sum(nil))[:16]

	return filepath.Join(s.artifactsDir, linker.Names(schemaPath).Base+"-"+digest)
}

// dependencies lists the schema and the imported files it resolves on disk.
// The compiler already accepted the schema, so a parse failure here only
// narrows the list.
func (s *Static) dependencies(ctx context.Context, schemaPath string) []string {
	if s.imports == nil {
		return []string{schemaPath}
	}
	parsed, err := s.imports.Parse(ctx, schemaPath)
	if err != nil {
		s.logger.Debugw("Could not resolve schema imports",
			logger.FieldSchema, schemaPath,
			logger.FieldError, err,
		)
		return []string{schemaPath}
	}
	return parsed.Dependencies()
}
