package commands

import (
	"context"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/loader"
	"gopkg.in/yaml.v3"
)

// BuildCmd generates modules for many schemas
var BuildCmd = &cobra.Command{
	Use:   "build <schema.proto>...",
	Short: "Generate modules for many schemas into a directory",
	Long: `Generate one module per schema into --out-dir, running up to --jobs
invocations at once. A failing schema does not stop the others; the command
fails if any schema failed.

With --manifest, a YAML record of every module (strategy, dependencies,
artifacts, diagnostics, errors) is written as well.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

var (
	buildOptions  []string
	buildOutDir   string
	buildJobs     int
	buildManifest string
)

func init() {
	BuildCmd.Flags().StringArrayVarP(&buildOptions, "option", "O", nil, "Invocation option as key=value (repeatable)")
	BuildCmd.Flags().StringVar(&buildOutDir, "out-dir", "", "Directory for generated modules")
	BuildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "Concurrent invocations (default: number of CPUs)")
	BuildCmd.Flags().StringVar(&buildManifest, "manifest", "", "Write a YAML build manifest to this file")
	_ = BuildCmd.MarkFlagRequired("out-dir")
}

// Manifest records one build
type Manifest struct {
	GeneratedAt time.Time       `yaml:"generated_at"`
	OutDir      string          `yaml:"out_dir"`
	Modules     []ManifestEntry `yaml:"modules"`
}

// ManifestEntry records one schema of a build
type ManifestEntry struct {
	Schema       string   `yaml:"schema"`
	Output       string   `yaml:"output,omitempty"`
	Strategy     string   `yaml:"strategy,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Messages     string   `yaml:"messages,omitempty"`
	Services     string   `yaml:"services,omitempty"`
	Diagnostics  []string `yaml:"diagnostics,omitempty"`
	Error        string   `yaml:"error,omitempty"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, err := ParseOptions(buildOptions)
	if err != nil {
		return err
	}
	l, err := newLoader(cmd)
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).Start("Generating modules...")
	manifest, err := Build(contextOf(cmd), l, invocations(args, opts), buildOutDir, buildJobs)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if manifest != nil {
		report(manifest)
	}

	if buildManifest != "" && manifest != nil {
		if werr := WriteManifest(buildManifest, manifest); werr != nil {
			return werr
		}
	}
	return err
}

// Build runs invs through l and writes each module into outDir. The manifest
// is returned even when some schemas failed.
func Build(ctx context.Context, l *loader.Loader, invs []loader.Invocation, outDir string, jobs int) (*Manifest, error) {
	schemas := make([]string, 0, len(invs))
	for _, inv := range invs {
		schemas = append(schemas, inv.Schema)
	}
	if err := checkOutputNames(schemas); err != nil {
		return nil, err
	}

	outcomes := l.LoadAll(ctx, invs, jobs)
	manifest := &Manifest{GeneratedAt: time.Now().UTC(), OutDir: outDir}
	failed := 0
	for _, o := range outcomes {
		entry := ManifestEntry{Schema: o.Invocation.Schema}
		if o.Err == nil {
			entry.Output, o.Err = writeModule(outDir, o.Invocation.Schema, o.Result.Source)
		}
		if o.Err != nil {
			failed++
			entry.Error = o.Err.Error()
			manifest.Modules = append(manifest.Modules, entry)
			continue
		}

		entry.Strategy = o.Result.Strategy
		entry.Dependencies = o.Result.Dependencies
		entry.Diagnostics = o.Result.Diagnostics
		if a := o.Result.Artifacts; a != nil {
			entry.Messages = a.MessagesPath
			entry.Services = a.ServicesPath
		}
		manifest.Modules = append(manifest.Modules, entry)
	}

	if failed > 0 {
		return manifest, errors.Newf("%d of %d schemas failed", failed, len(invs))
	}
	return manifest, nil
}

// WriteManifest writes m as YAML
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "failed to encode manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write manifest %s", path)
	}
	return nil
}

func report(m *Manifest) {
	for _, e := range m.Modules {
		if e.Error != "" {
			pterm.Error.Printfln("%s: %s", e.Schema, e.Error)
			continue
		}
		pterm.Success.Printfln("%s -> %s (%s)", e.Schema, e.Output, e.Strategy)
		for _, d := range e.Diagnostics {
			pterm.Warning.Printfln("%s: %s", e.Schema, d)
		}
	}
}
