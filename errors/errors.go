// Package errors provides error handling for protobridge.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// It also defines the invocation error taxonomy. Every structured error
// returned by a protobridge component answers errors.Is for exactly one of
// the sentinels below, so callers can classify failures without type switches:
//
//	if errors.Is(err, errors.ErrCompile) {
//	    // protoc exited non-zero or could not be spawned
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Invocation error taxonomy. All of these are terminal for an invocation:
// every cause is deterministic given the same input and environment.
var (
	// ErrWorkspace indicates the filesystem could not provide an ephemeral directory
	ErrWorkspace = New("workspace unavailable")

	// ErrCompile indicates the schema compiler exited non-zero or failed to spawn
	ErrCompile = New("schema compilation failed")

	// ErrArtifactMissing indicates the compiler succeeded but did not emit the expected files
	ErrArtifactMissing = New("generated artifact missing")

	// ErrLink indicates the generated services file did not reference the messages file as expected
	ErrLink = New("artifact link failed")

	// ErrSchemaParse indicates the in-process schema parser rejected the schema
	ErrSchemaParse = New("schema parse failed")

	// ErrInvalidOption indicates an invocation option could not be interpreted
	ErrInvalidOption = New("invalid option")
)

// IsCompileError checks if an error is or wraps ErrCompile
func IsCompileError(err error) bool {
	return err != nil && Is(err, ErrCompile)
}

// IsSchemaParseError checks if an error is or wraps ErrSchemaParse
func IsSchemaParseError(err error) bool {
	return err != nil && Is(err, ErrSchemaParse)
}

// IsRejectedSchema reports whether err means the schema itself was rejected,
// by either the external compiler or the in-process parser.
func IsRejectedSchema(err error) bool {
	return IsCompileError(err) || IsSchemaParseError(err)
}

// NewInvalidOptionError creates an invalid-option error with a formatted message
func NewInvalidOptionError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidOption, Newf(format, args...).Error())
}
