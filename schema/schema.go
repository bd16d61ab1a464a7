// Package schema parses .proto files in-process and serializes their
// descriptors, without an external compiler.
package schema

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/reporter"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/logger"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Schema is a parsed schema file
type Schema struct {
	// Path is the absolute path of the schema file
	Path string
	// File is the linked descriptor
	File protoreflect.FileDescriptor
	// Warnings holds non-fatal parser findings (e.g. unused imports)
	Warnings []string

	importPaths []string
}

// Parser loads schema files. It is safe for concurrent use.
type Parser struct {
	includePaths []string
	logger       *zap.SugaredLogger
}

// NewParser creates a Parser. The schema's own directory is always searched
// first, then includePaths, then the well-known google/protobuf types.
func NewParser(includePaths []string, log *zap.SugaredLogger) *Parser {
	return &Parser{includePaths: includePaths, logger: logger.OrNop(log)}
}

// Parse loads and links schemaPath
func (p *Parser) Parse(ctx context.Context, schemaPath string) (*Schema, error) {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve schema path %s", schemaPath)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, &SchemaParseError{Schema: abs, Err: err}
	}

	importPaths := append([]string{filepath.Dir(abs)}, p.includePaths...)

	var problems, warnings []string
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: importPaths,
		}),
		SourceInfoMode: protocompile.SourceInfoStandard,
		Reporter: reporter.NewReporter(
			func(err reporter.ErrorWithPos) error {
				// Keep going to report every problem at once
				problems = append(problems, err.Error())
				return nil
			},
			func(warn reporter.ErrorWithPos) {
				warnings = append(warnings, warn.Error())
			},
		),
	}

	files, err := compiler.Compile(ctx, filepath.Base(abs))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "schema parse interrupted for %s", abs)
		}
		return nil, &SchemaParseError{Schema: abs, Problems: problems, Err: err}
	}
	if len(files) != 1 {
		return nil, errors.AssertionFailedf("compiled %d files for %s", len(files), abs)
	}

	for _, w := range warnings {
		p.logger.Warnw("Schema warning", logger.FieldSchema, abs, "warning", w)
	}

	return &Schema{
		Path:        abs,
		File:        files[0],
		Warnings:    warnings,
		importPaths: importPaths,
	}, nil
}

// DescriptorSet returns the file and its transitive imports, dependencies first
func (s *Schema) DescriptorSet() *descriptorpb.FileDescriptorSet {
	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	var visit func(fd protoreflect.FileDescriptor)
	visit = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			visit(imports.Get(i).FileDescriptor)
		}
		set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
	}
	visit(s.File)
	return set
}

// DescriptorJSON serializes DescriptorSet as JSON text. Field names are
// lowerCamelCase, the object form protobuf.js descriptor loaders accept.
func (s *Schema) DescriptorJSON() ([]byte, error) {
	b, err := protojson.MarshalOptions{}.Marshal(s.DescriptorSet())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize descriptor for %s", s.Path)
	}
	return b, nil
}

// Dependencies returns the schema and every imported file found on disk
// through the import paths. Well-known types bundled with the parser are
// not included.
func (s *Schema) Dependencies() []string {
	deps := []string{s.Path}
	seen := map[string]bool{s.Path: true}
	for _, fd := range s.DescriptorSet().File {
		for _, dir := range s.importPaths {
			candidate := filepath.Join(dir, filepath.FromSlash(fd.GetName()))
			if _, err := os.Stat(candidate); err == nil {
				if abs, err := filepath.Abs(candidate); err == nil && !seen[abs] {
					seen[abs] = true
					deps = append(deps, abs)
				}
				break
			}
		}
	}
	return deps
}

// Summary lists declared messages and services by full name
type Summary struct {
	Messages []string
	// Services maps service full names to method names
	Services map[string][]string
}

// Summarize walks the schema file (not its imports)
func (s *Schema) Summarize() Summary {
	sum := Summary{Services: make(map[string][]string)}

	var walk func(msgs protoreflect.MessageDescriptors)
	walk = func(msgs protoreflect.MessageDescriptors) {
		for i := 0; i < msgs.Len(); i++ {
			md := msgs.Get(i)
			if md.IsMapEntry() {
				continue
			}
			sum.Messages = append(sum.Messages, string(md.FullName()))
			walk(md.Messages())
		}
	}
	walk(s.File.Messages())
	sort.Strings(sum.Messages)

	services := s.File.Services()
	for i := 0; i < services.Len(); i++ {
		sd := services.Get(i)
		methods := make([]string, 0, sd.Methods().Len())
		for j := 0; j < sd.Methods().Len(); j++ {
			methods = append(methods, string(sd.Methods().Get(j).Name()))
		}
		sum.Services[string(sd.FullName())] = methods
	}
	return sum
}
