package schema

import (
	"fmt"
	"strings"

	"github.com/teranos/protobridge/errors"
)

// SchemaParseError reports a schema the in-process parser rejected
type SchemaParseError struct {
	Schema string
	// Problems holds every positioned error, "file:line:col: message"
	Problems []string
	Err      error
}

func (e *SchemaParseError) Error() string {
	if len(e.Problems) > 0 {
		return fmt.Sprintf("failed to parse %s: %s", e.Schema, strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Schema, e.Err)
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, errors.ErrSchemaParse) hold
func (e *SchemaParseError) Is(target error) bool { return target == errors.ErrSchemaParse }
