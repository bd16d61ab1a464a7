package compiler

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/teranos/protobridge/errors"
)

// Version runs the compiler with --version and parses "libprotoc X.Y.Z"
func (i *Invoker) Version(ctx context.Context) (*semver.Version, error) {
	args := append(append([]string{}, i.prefix...), "--version")
	stdout, stderr, err := i.run(ctx, args...)
	if err != nil {
		return nil, newCompileError("", i.binary, stderr, err)
	}
	return parseVersion(stdout)
}

func parseVersion(output string) (*semver.Version, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return nil, errors.New("compiler printed no version")
	}
	v, err := semver.NewVersion(fields[len(fields)-1])
	if err != nil {
		return nil, errors.Wrapf(err, "unrecognised compiler version output %q", strings.TrimSpace(output))
	}
	return v, nil
}

// CheckVersion fails when a minimum version is configured and the compiler is
// older. The outcome is computed once per Invoker.
func (i *Invoker) CheckVersion(ctx context.Context) error {
	if i.minVersion == nil {
		return nil
	}

	i.versionMu.Lock()
	defer i.versionMu.Unlock()
	if i.versionChecked {
		return i.versionErr
	}

	v, err := i.Version(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Not cached: a later invocation with a live context may succeed
			return errors.Wrap(ctx.Err(), "compiler version check interrupted")
		}
		i.versionChecked, i.versionErr = true, err
		return err
	}

	if v.LessThan(i.minVersion) {
		i.versionErr = &CompileError{
			Binary: i.binary,
			Err:    errors.Newf("compiler version %s is older than required %s", v, i.minVersion),
			exited: true,
		}
		i.versionErr = errors.WithHint(i.versionErr, "upgrade grpc-tools or set compiler.command to a newer protoc")
	}
	i.versionChecked = true
	i.logger.Debugw("Checked compiler version", "version", v.String(), "min_version", i.minVersion.String())
	return i.versionErr
}
