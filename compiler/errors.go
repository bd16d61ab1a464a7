package compiler

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/teranos/protobridge/errors"
)

// CompileError reports a compiler that could not be spawned or exited non-zero
type CompileError struct {
	Schema   string
	Binary   string
	ExitCode int    // -1 when the process never ran
	Stderr   string // captured stderr, the authoritative error detail
	Err      error

	exited bool
}

func newCompileError(schema, binary, stderr string, err error) *CompileError {
	ce := &CompileError{
		Schema:   schema,
		Binary:   binary,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
		ce.exited = true
	}
	return ce
}

// Spawn reports whether the compiler process failed to start
func (e *CompileError) Spawn() bool {
	return !e.exited
}

func (e *CompileError) Error() string {
	var msg string
	switch {
	case e.Spawn():
		return fmt.Sprintf("failed to start schema compiler %s: %v", e.Binary, e.Err)
	case e.Schema == "":
		msg = fmt.Sprintf("schema compiler %s: %v", e.Binary, e.Err)
	default:
		msg = fmt.Sprintf("schema compiler failed for %s (%v)", e.Schema, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, errors.ErrCompile) hold
func (e *CompileError) Is(target error) bool { return target == errors.ErrCompile }
