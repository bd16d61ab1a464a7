package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/protobridge/errors"
	"gopkg.in/yaml.v3"
)

// ConfigCmd prints the resolved configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after defaults, config files and environment are merged.

Configuration sources (in order of precedence):
1. Environment variables (PROTOBRIDGE_* prefix, e.g. PROTOBRIDGE_COMPILER_TOOLS_DIR)
2. Project config (protobridge.toml, searched from the working directory up)
3. User config (<user config dir>/protobridge/protobridge.toml)
4. Default values`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configFormat string

func init() {
	ConfigCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format: yaml, json")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var out []byte
	switch configFormat {
	case "yaml":
		out, err = yaml.Marshal(cfg)
	case "json":
		out, err = json.MarshalIndent(cfg, "", "  ")
		out = append(out, '\n')
	default:
		return errors.Newf("unknown format %q (use yaml or json)", configFormat)
	}
	if err != nil {
		return errors.Wrap(err, "failed to encode configuration")
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
	if err == nil {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "# artifacts directory in use: %s\n", cfg.ArtifactsDir())
	}
	return err
}
