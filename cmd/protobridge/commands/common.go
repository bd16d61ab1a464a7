package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teranos/protobridge/config"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/loader"
	"github.com/teranos/protobridge/logger"
)

// loadConfig honours the --config flag, falling back to the normal search
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newLoader(cmd *cobra.Command) (*loader.Loader, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return loader.New(cfg, logger.Logger)
}

// ParseOptions turns repeated -O key=value flags into invocation options.
// A bare key means true, as in a query string.
func ParseOptions(pairs []string) (map[string]interface{}, error) {
	opts := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.WithHint(
				errors.NewInvalidOptionError("option %q has no key", pair),
				"use -O key=value, e.g. -O static=false",
			)
		}
		if !found {
			value = "true"
		}
		opts[key] = value
	}
	return opts, nil
}

func invocations(schemas []string, opts map[string]interface{}) []loader.Invocation {
	invs := make([]loader.Invocation, 0, len(schemas))
	for _, s := range schemas {
		invs = append(invs, loader.Invocation{Schema: s, Options: opts})
	}
	return invs
}

// OutputName is the module file written for a schema: greeter.proto -> greeter.js
func OutputName(schemaPath string) string {
	return strings.TrimSuffix(filepath.Base(schemaPath), filepath.Ext(schemaPath)) + ".js"
}

// checkOutputNames rejects schemas that would overwrite each other's module
func checkOutputNames(schemas []string) error {
	seen := make(map[string]string, len(schemas))
	var clashes []string
	for _, s := range schemas {
		name := OutputName(s)
		if prev, ok := seen[name]; ok && prev != s {
			clashes = append(clashes, fmt.Sprintf("%s (%s, %s)", name, prev, s))
			continue
		}
		seen[name] = s
	}
	if len(clashes) == 0 {
		return nil
	}
	sort.Strings(clashes)
	return errors.WithHint(
		errors.Newf("output name clash: %s", strings.Join(clashes, "; ")),
		"build schemas with the same base name into separate --out-dir directories",
	)
}

// writeModule writes source to <outDir>/<OutputName(schema)>
func writeModule(outDir, schemaPath, source string) (string, error) {
	if err := os.MkdirAll(outDir, config.DefaultDirPermissions); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %s", outDir)
	}
	path := filepath.Join(outDir, OutputName(schemaPath))
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write module %s", path)
	}
	return path, nil
}

// PrintError writes err and any attached hints
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}
