package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/teranos/protobridge/compiler"
	"github.com/teranos/protobridge/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show protobridge version information",
	Long:  `Display version, build time, commit hash and platform of the binary, plus the version of the configured protoc when it can be run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		info := version.Get()
		info.Compiler = compilerVersion(cmd)

		if jsonOutput {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s\n", info.Platform)
		fmt.Fprintf(cmd.OutOrStdout(), "Go: %s\n", info.GoVersion)
		if info.Compiler != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "libprotoc: %s\n", info.Compiler)
		}
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}

// compilerVersion returns "" when the compiler is not configured or cannot run
func compilerVersion(cmd *cobra.Command) string {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return ""
	}
	inv, err := compiler.New(compiler.Config{
		Command:  cfg.Compiler.Command,
		ToolsDir: cfg.Compiler.ToolsDir,
	}, nil)
	if err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(contextOf(cmd), 5*time.Second)
	defer cancel()
	v, err := inv.Version(ctx)
	if err != nil {
		return ""
	}
	return v.String()
}
