// Package workspace manages the ephemeral directories that hold one
// invocation's intermediate compiler output.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/logger"
	"go.uber.org/zap"
)

// Prefix starts the name of every workspace directory
const Prefix = "protobridge-"

// Workspace is one invocation's ephemeral directory
type Workspace struct {
	// Path is the absolute directory path
	Path string
}

// WorkspaceError reports that the filesystem could not provide a workspace
type WorkspaceError struct {
	Root string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return "failed to create workspace under " + e.Root + ": " + e.Err.Error()
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, errors.ErrWorkspace) hold
func (e *WorkspaceError) Is(target error) bool { return target == errors.ErrWorkspace }

// Manager creates and destroys workspaces under a fixed root
type Manager struct {
	root   string
	logger *zap.SugaredLogger
}

// NewManager returns a Manager rooted at root. An empty root means os.TempDir().
func NewManager(root string, log *zap.SugaredLogger) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{root: root, logger: logger.OrNop(log)}
}

// Root returns the directory workspaces are created under
func (m *Manager) Root() string {
	return m.root
}

// Create allocates a fresh, uniquely named workspace directory
func (m *Manager) Create() (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, &WorkspaceError{Root: m.root, Err: err}
	}

	// Mkdir (not MkdirAll) so a name collision is an error rather than sharing
	dir := filepath.Join(m.root, Prefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, &WorkspaceError{Root: m.root, Err: err}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.Remove(dir)
		return nil, &WorkspaceError{Root: m.root, Err: err}
	}

	m.logger.Debugw("Created workspace", logger.FieldWorkspace, abs)
	return &Workspace{Path: abs}, nil
}

// Destroy recursively removes the workspace. Failures are logged, never
// returned, so cleanup cannot mask the error that led to it.
func (m *Manager) Destroy(ws *Workspace) {
	if ws == nil || ws.Path == "" {
		return
	}
	if err := os.RemoveAll(ws.Path); err != nil {
		m.logger.Warnw("Failed to remove workspace",
			logger.FieldWorkspace, ws.Path,
			logger.FieldError, err,
		)
		return
	}
	m.logger.Debugw("Removed workspace", logger.FieldWorkspace, ws.Path)
}
