package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/teranos/protobridge/errors"
)

// expandPaths resolves every filesystem path in the config to an absolute path
func (c *Config) expandPaths() error {
	var err error
	if c.Compiler.ToolsDir, err = ExpandPath(c.Compiler.ToolsDir); err != nil {
		return errors.Wrap(err, "compiler.tools_dir")
	}
	// A bare plugin name is looked up on PATH by the compiler invoker
	if strings.ContainsAny(c.Compiler.Plugin, `/\~`) {
		if c.Compiler.Plugin, err = ExpandPath(c.Compiler.Plugin); err != nil {
			return errors.Wrap(err, "compiler.plugin")
		}
	}
	if c.Workspace.Root, err = ExpandPath(c.Workspace.Root); err != nil {
		return errors.Wrap(err, "workspace.root")
	}
	if c.Artifacts.Dir, err = ExpandPath(c.Artifacts.Dir); err != nil {
		return errors.Wrap(err, "artifacts.dir")
	}
	for i, p := range c.Schema.IncludePaths {
		if c.Schema.IncludePaths[i], err = ExpandPath(p); err != nil {
			return errors.Wrapf(err, "schema.include_paths[%d]", i)
		}
	}
	return nil
}

// ExpandPath expands ~ and makes a local path absolute, using go-getter's
// detection to reject remote sources. Empty input stays empty.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, path[2:])
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		return home, nil
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(path, pwd, getter.Detectors)
	if err != nil {
		return "", errors.Wrapf(err, "invalid path %q", path)
	}

	u, err := url.Parse(detected)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse path %q", path)
	}

	switch u.Scheme {
	case "file":
		return filepath.FromSlash(u.Path), nil
	case "":
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", errors.Wrap(err, "failed to make absolute path")
		}
		return abs, nil
	default:
		return "", errors.Newf("path %q resolves to a remote %s source, expected a local path", path, u.Scheme)
	}
}
