package config

import (
	"github.com/spf13/viper"
)

const (
	// AppName names config files, env prefixes and cache directories
	AppName = "protobridge"

	// ProjectConfigFile is searched for from the working directory upwards
	ProjectConfigFile = "protobridge.toml"

	// DefaultDirPermissions is used for directories protobridge creates
	DefaultDirPermissions = 0o755
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("loader.static", true)

	v.SetDefault("compiler.command", "")
	v.SetDefault("compiler.plugin", "")
	v.SetDefault("compiler.tools_dir", "")
	v.SetDefault("compiler.min_version", "")

	v.SetDefault("workspace.root", "")
	v.SetDefault("artifacts.dir", "")
	v.SetDefault("schema.include_paths", []string{})
}

// optionalKeys have no default so that "unset" survives unmarshalling
var optionalKeys = []string{
	"loader.convert_fields_to_camel_case",
	"loader.binary_as_base64",
	"loader.longs_as_strings",
	"loader.enums_as_strings",
}
