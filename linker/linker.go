// Package linker relocates the compiler's generated artifact pair and
// rewrites the services file's relative reference to the messages file.
package linker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/logger"
	"go.uber.org/zap"
)

// Generated file naming convention of protoc's JS and gRPC node generators
const (
	Ext            = ".js"
	MessagesSuffix = "_pb"
	ServicesSuffix = "_grpc_pb"
)

// Pair names the two files generated for one schema
type Pair struct {
	Base         string // schema file name without extension
	MessagesFile string // <base>_pb.js
	ServicesFile string // <base>_grpc_pb.js
}

// Names computes the generated file names for schemaPath
func Names(schemaPath string) Pair {
	name := filepath.Base(schemaPath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		// A bare dotfile such as ".proto" keeps its full name
		base = name
	}
	return Pair{
		Base:         base,
		MessagesFile: base + MessagesSuffix + Ext,
		ServicesFile: base + ServicesSuffix + Ext,
	}
}

// Artifacts is a linked pair in its final location
type Artifacts struct {
	MessagesPath string
	ServicesPath string
	ServicesText string // rewritten services source, as persisted
}

// Linker moves generated pairs out of workspaces
type Linker struct {
	logger *zap.SugaredLogger
}

// New creates a Linker
func New(log *zap.SugaredLogger) *Linker {
	return &Linker{logger: logger.OrNop(log)}
}

// Link locates the pair generated for schemaPath in workspaceDir, rewrites the
// services file so it references the messages file at its destination, and
// writes both into destDir. The rewritten services text is also persisted in
// place inside the workspace.
func (l *Linker) Link(schemaPath, workspaceDir, destDir string) (*Artifacts, error) {
	pair := Names(schemaPath)
	srcMessages := filepath.Join(workspaceDir, pair.MessagesFile)
	srcServices := filepath.Join(workspaceDir, pair.ServicesFile)

	var missing []string
	for _, p := range []string{srcMessages, srcServices} {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, filepath.Base(p))
		}
	}
	if len(missing) > 0 {
		return nil, &ArtifactMissingError{Schema: schemaPath, Dir: workspaceDir, Missing: missing}
	}

	servicesText, err := os.ReadFile(srcServices)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", pair.ServicesFile)
	}
	messagesText, err := os.ReadFile(srcMessages)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", pair.MessagesFile)
	}

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve artifact directory %s", destDir)
	}
	dstMessages := filepath.Join(absDest, pair.MessagesFile)
	dstServices := filepath.Join(absDest, pair.ServicesFile)

	rewritten, err := Rewrite(string(servicesText), pair.MessagesFile, dstMessages)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to link %s", pair.ServicesFile)
	}

	if err := os.WriteFile(srcServices, []byte(rewritten), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to persist rewritten %s", pair.ServicesFile)
	}

	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create artifact directory %s", absDest)
	}
	// Messages first, so a visible services file never points at nothing
	if err := writeFileAtomic(dstMessages, messagesText); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(dstServices, []byte(rewritten)); err != nil {
		return nil, err
	}

	l.logger.Debugw("Linked artifacts",
		logger.FieldSchema, schemaPath,
		logger.FieldMessages, dstMessages,
		logger.FieldServices, dstServices,
	)
	return &Artifacts{
		MessagesPath: dstMessages,
		ServicesPath: dstServices,
		ServicesText: rewritten,
	}, nil
}

// writeFileAtomic writes data to a temp file beside path and renames it over
// path, so concurrent writers of identical content never expose a torn file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrapf(err, "failed to set permissions on %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "failed to move %s into place", path)
	}
	return nil
}
