package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/loader"
)

// LoadCmd generates the module for a single schema
var LoadCmd = &cobra.Command{
	Use:   "load <schema.proto>",
	Short: "Generate the module for one schema",
	Long: `Generate the JavaScript module for one schema and print it, or write it with -o.

Options are passed the way a build pipeline passes them:
  -O static=false                  use the dynamic strategy
  -O longsAsStrings=true           dynamic only
  -O convertFieldsToCamelCase=false
  -O binaryAsBase64=true
  -O enumsAsStrings=true`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

var (
	loadOptions []string
	loadOutput  string
)

func init() {
	LoadCmd.Flags().StringArrayVarP(&loadOptions, "option", "O", nil, "Invocation option as key=value (repeatable)")
	LoadCmd.Flags().StringVarP(&loadOutput, "output", "o", "", "Write the module to this file instead of stdout")
}

func runLoad(cmd *cobra.Command, args []string) error {
	opts, err := ParseOptions(loadOptions)
	if err != nil {
		return err
	}
	l, err := newLoader(cmd)
	if err != nil {
		return err
	}

	res, err := l.Load(contextOf(cmd), loader.Invocation{Schema: args[0], Options: opts})
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		pterm.Warning.WithWriter(cmd.ErrOrStderr()).Println(d)
	}

	if loadOutput == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), res.Source)
		return err
	}
	if err := os.WriteFile(loadOutput, []byte(res.Source), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write module %s", loadOutput)
	}
	pterm.Success.WithWriter(cmd.ErrOrStderr()).Printfln("Wrote %s (%s)", loadOutput, res.Strategy)
	return nil
}
