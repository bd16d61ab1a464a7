package config

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"
	"github.com/teranos/protobridge/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Compiler.Command != "" {
		words, err := shellquote.Split(c.Compiler.Command)
		if err != nil {
			return errors.Wrap(err, "compiler.command is not a valid command line")
		}
		if len(words) == 0 {
			return errors.New("compiler.command cannot be blank (omit for default)")
		}
	}

	if c.Compiler.MinVersion != "" {
		if _, err := semver.NewVersion(c.Compiler.MinVersion); err != nil {
			return errors.Wrapf(err, "compiler.min_version %q is not a semantic version", c.Compiler.MinVersion)
		}
	}

	for i, p := range c.Schema.IncludePaths {
		if strings.TrimSpace(p) == "" {
			return errors.Newf("schema.include_paths[%d] cannot be empty", i)
		}
	}
	return nil
}
