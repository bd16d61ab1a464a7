package linker

import (
	"fmt"
	"strings"

	"github.com/teranos/protobridge/errors"
)

// ArtifactMissingError reports that the compiler succeeded without emitting
// the expected pair, which points at a compiler/plugin mismatch.
type ArtifactMissingError struct {
	Schema  string
	Dir     string
	Missing []string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("compiler produced no %s for %s in %s",
		strings.Join(e.Missing, ", "), e.Schema, e.Dir)
}

// Is makes errors.Is(err, errors.ErrArtifactMissing) hold
func (e *ArtifactMissingError) Is(target error) bool { return target == errors.ErrArtifactMissing }

// LinkError reports a services file whose messages reference is absent or ambiguous
type LinkError struct {
	MessagesFile string
	Reference    string
	Count        int
}

func (e *LinkError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("services file does not reference %s (expected %s)", e.MessagesFile, e.Reference)
	}
	return fmt.Sprintf("services file references %s %d times, expected exactly once", e.MessagesFile, e.Count)
}

// Is makes errors.Is(err, errors.ErrLink) hold
func (e *LinkError) Is(target error) bool { return target == errors.ErrLink }
