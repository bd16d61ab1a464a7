// Package config loads protobridge configuration with Viper.
//
// Precedence (lowest to highest): defaults < user config
// (~/.config/protobridge/protobridge.toml) < project config (protobridge.toml
// found by walking up from the working directory) < PROTOBRIDGE_* env vars.
package config

import (
	"os"
	"path/filepath"
)

// Config represents the protobridge configuration
type Config struct {
	Loader    LoaderConfig    `mapstructure:"loader" yaml:"loader" json:"loader"`
	Compiler  CompilerConfig  `mapstructure:"compiler" yaml:"compiler" json:"compiler"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace" json:"workspace"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts" json:"artifacts"`
	Schema    SchemaConfig    `mapstructure:"schema" yaml:"schema" json:"schema"`
}

// LoaderConfig holds the default Strategy Config. Invocation options are
// overlaid on top of these values.
type LoaderConfig struct {
	Static bool `mapstructure:"static" yaml:"static" json:"static"` // Use the external compiler (default: true)

	// Dynamic strategy options. nil leaves the runtime loader's own default in place.
	ConvertFieldsToCamelCase *bool `mapstructure:"convert_fields_to_camel_case" yaml:"convert_fields_to_camel_case,omitempty" json:"convert_fields_to_camel_case,omitempty"`
	BinaryAsBase64           *bool `mapstructure:"binary_as_base64" yaml:"binary_as_base64,omitempty" json:"binary_as_base64,omitempty"`
	LongsAsStrings           *bool `mapstructure:"longs_as_strings" yaml:"longs_as_strings,omitempty" json:"longs_as_strings,omitempty"`
	EnumsAsStrings           *bool `mapstructure:"enums_as_strings" yaml:"enums_as_strings,omitempty" json:"enums_as_strings,omitempty"`
}

// CompilerConfig configures the external schema compiler
type CompilerConfig struct {
	Command    string `mapstructure:"command" yaml:"command" json:"command"`             // Compiler command line, shell-quoted (default: protoc from tools_dir or PATH)
	Plugin     string `mapstructure:"plugin" yaml:"plugin" json:"plugin"`                // gRPC code generation plugin binary (default: grpc_node_plugin from tools_dir or PATH)
	ToolsDir   string `mapstructure:"tools_dir" yaml:"tools_dir" json:"tools_dir"`       // Directory holding protoc and grpc_node_plugin (e.g., node_modules/grpc-tools/bin)
	MinVersion string `mapstructure:"min_version" yaml:"min_version" json:"min_version"` // Minimum accepted libprotoc version (empty = no check)
}

// WorkspaceConfig configures ephemeral invocation workspaces
type WorkspaceConfig struct {
	Root string `mapstructure:"root" yaml:"root" json:"root"` // Parent of per-invocation directories (empty = os.TempDir())
}

// ArtifactsConfig configures where linked static artifacts are kept
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"` // empty = <user cache dir>/protobridge/artifacts
}

// SchemaConfig configures in-process schema parsing
type SchemaConfig struct {
	IncludePaths []string `mapstructure:"include_paths" yaml:"include_paths" json:"include_paths"` // Extra import paths besides the schema's own directory
}

// ArtifactsDir returns the configured artifacts directory or the default one
func (c *Config) ArtifactsDir() string {
	if c.Artifacts.Dir != "" {
		return c.Artifacts.Dir
	}
	return DefaultArtifactsDir()
}

// DefaultArtifactsDir returns <user cache dir>/protobridge/artifacts, falling
// back to the temp dir when no cache dir is available.
func DefaultArtifactsDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, AppName, "artifacts")
}
