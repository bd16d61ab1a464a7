package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/protobridge/cmd/protobridge/commands"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/logger"
)

var rootCmd = &cobra.Command{
	Use:   "protobridge",
	Short: "Turn .proto schemas into loadable JavaScript modules",
	Long: `protobridge - Turn .proto schemas into loadable JavaScript modules.

Two strategies are available:
  static   - run protoc with the gRPC plugin and re-export the generated files
  dynamic  - parse the schema in-process and build the package definition at load time

Available commands:
  load     - Generate the module for one schema
  build    - Generate modules for many schemas into a directory
  watch    - Rebuild modules when schemas change
  config   - Show the resolved configuration
  version  - Show version information

Examples:
  protobridge load greeter.proto                    # Static module on stdout
  protobridge load greeter.proto -O static=false    # Dynamic module
  protobridge build protos/*.proto --out-dir gen    # Build a directory of modules
  protobridge watch protos/*.proto --out-dir gen    # Rebuild on change`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: protobridge.toml found from the working directory up)")

	rootCmd.AddCommand(commands.LoadCmd)
	rootCmd.AddCommand(commands.BuildCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
