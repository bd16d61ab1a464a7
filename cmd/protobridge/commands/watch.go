package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/protobridge/loader"
	"github.com/teranos/protobridge/logger"
	"github.com/teranos/protobridge/watcher"
)

// WatchCmd rebuilds modules whenever their schemas change
var WatchCmd = &cobra.Command{
	Use:   "watch <schema.proto>...",
	Short: "Rebuild modules when schemas change",
	Long: `Build every schema into --out-dir, then rebuild a module whenever its
schema or one of the files it imports changes. Press Ctrl+C to stop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchOptions []string
	watchOutDir  string
)

func init() {
	WatchCmd.Flags().StringArrayVarP(&watchOptions, "option", "O", nil, "Invocation option as key=value (repeatable)")
	WatchCmd.Flags().StringVar(&watchOutDir, "out-dir", "", "Directory for generated modules")
	_ = WatchCmd.MarkFlagRequired("out-dir")
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := ParseOptions(watchOptions)
	if err != nil {
		return err
	}
	if err := checkOutputNames(args); err != nil {
		return err
	}
	l, err := newLoader(cmd)
	if err != nil {
		return err
	}

	w, err := watcher.New(l, invocations(args, opts), func(o loader.Outcome) {
		if o.Err != nil {
			pterm.Error.Printfln("%s: %v", o.Invocation.Schema, o.Err)
			return
		}
		path, err := writeModule(watchOutDir, o.Invocation.Schema, o.Result.Source)
		if err != nil {
			pterm.Error.Printfln("%s: %v", o.Invocation.Schema, err)
			return
		}
		pterm.Success.Printfln("%s -> %s (%s)", o.Invocation.Schema, path, o.Result.Strategy)
	}, logger.Named("watcher"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Printfln("Watching %d schema(s), press Ctrl+C to stop", len(args))
	return w.Run(ctx)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
