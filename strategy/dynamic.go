package strategy

import (
	"context"
	"encoding/json"

	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/logger"
	"github.com/teranos/protobridge/schema"
	"go.uber.org/zap"
)

// Dynamic parses the schema in-process and defers binding to load time.
// No subprocess, no workspace.
type Dynamic struct {
	parser *schema.Parser
	logger *zap.SugaredLogger
}

// NewDynamic wires the dynamic strategy
func NewDynamic(parser *schema.Parser, log *zap.SugaredLogger) *Dynamic {
	return &Dynamic{parser: parser, logger: logger.OrNop(log)}
}

// Name returns NameDynamic
func (d *Dynamic) Name() string { return NameDynamic }

// Generate returns a module exporting the gRPC package definition built from
// the embedded descriptor set and option subset.
func (d *Dynamic) Generate(ctx context.Context, schemaPath string, opts Options) (*Result, error) {
	s, err := d.parser.Parse(ctx, schemaPath)
	if err != nil {
		return nil, err
	}

	descriptor, err := s.DescriptorJSON()
	if err != nil {
		return nil, err
	}
	config, err := json.Marshal(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize loader options")
	}

	source, err := EmitDynamic(s.Path, descriptor, config)
	if err != nil {
		return nil, err
	}

	d.logger.Infow("Generated dynamic module",
		logger.FieldSchema, s.Path,
		"descriptor_bytes", len(descriptor),
	)
	return &Result{
		Source:       source,
		Strategy:     NameDynamic,
		Cacheable:    true,
		Diagnostics:  s.Warnings,
		Dependencies: s.Dependencies(),
		Schema:       s,
	}, nil
}
