// Package strategy holds the two ways of turning a schema file into module
// source: Static (external compiler, generated files on disk) and Dynamic
// (in-process parsing, descriptor embedded in the module).
package strategy

import (
	"context"

	"github.com/teranos/protobridge/linker"
	"github.com/teranos/protobridge/schema"
)

// Strategy names
const (
	NameStatic  = "static"
	NameDynamic = "dynamic"
)

// Options is the resolved Strategy Config for one invocation
type Options struct {
	Static bool `mapstructure:"static" json:"-"`

	// Dynamic only. nil leaves the runtime loader's default in place.
	ConvertFieldsToCamelCase *bool `mapstructure:"convertFieldsToCamelCase" json:"convertFieldsToCamelCase,omitempty"`
	BinaryAsBase64           *bool `mapstructure:"binaryAsBase64" json:"binaryAsBase64,omitempty"`
	LongsAsStrings           *bool `mapstructure:"longsAsStrings" json:"longsAsStrings,omitempty"`
	EnumsAsStrings           *bool `mapstructure:"enumsAsStrings" json:"enumsAsStrings,omitempty"`
}

// Result is what one invocation hands back to the build pipeline
type Result struct {
	// Source is the module source text
	Source string
	// Strategy is NameStatic or NameDynamic
	Strategy string
	// Cacheable tells the pipeline it may cache Source until Dependencies change
	Cacheable bool
	// Diagnostics holds non-fatal compiler or parser output
	Diagnostics []string
	// Dependencies are files the pipeline should watch for this module
	Dependencies []string

	// Artifacts is set by the static strategy
	Artifacts *linker.Artifacts
	// Schema is set by the dynamic strategy
	Schema *schema.Schema
}

// Strategy produces module source for a schema file
type Strategy interface {
	Name() string
	Generate(ctx context.Context, schemaPath string, opts Options) (*Result, error)
}
