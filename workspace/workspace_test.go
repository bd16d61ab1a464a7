package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/protobridge/errors"
)

func TestCreateAndDestroy(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, nil)

	ws, err := m.Create()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(ws.Path))
	assert.Equal(t, root, filepath.Dir(ws.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Path), Prefix))
	assert.DirExists(t, ws.Path)

	// Nested content is removed too
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Path, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "nested", "greeter_pb.js"), []byte("x"), 0o644))

	m.Destroy(ws)
	assert.NoDirExists(t, ws.Path)

	// Idempotent
	m.Destroy(ws)
	m.Destroy(nil)
}

func TestCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")
	m := NewManager(root, nil)

	ws, err := m.Create()
	require.NoError(t, err)
	defer m.Destroy(ws)

	assert.DirExists(t, root)
}

func TestDefaultRoot(t *testing.T) {
	m := NewManager("", nil)
	assert.Equal(t, os.TempDir(), m.Root())
}

func TestCreateFailure(t *testing.T) {
	// A regular file where the root directory should be
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	m := NewManager(filepath.Join(blocker, "root"), nil)
	ws, err := m.Create()
	require.Error(t, err)
	assert.Nil(t, ws)
	assert.True(t, errors.Is(err, errors.ErrWorkspace))

	var wsErr *WorkspaceError
	require.True(t, errors.As(err, &wsErr))
	assert.Equal(t, filepath.Join(blocker, "root"), wsErr.Root)
}

func TestCreateReadOnlyRoot(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	root := t.TempDir()
	require.NoError(t, os.Chmod(root, 0o500))
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	_, err := NewManager(root, nil).Create()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWorkspace))
}

func TestConcurrentCreateIsUnique(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	const n = 32
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := m.Create()
			if assert.NoError(t, err) {
				paths <- ws.Path
			}
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		assert.False(t, seen[p], "duplicate workspace %s", p)
		seen[p] = true
	}
	assert.Len(t, seen, n)
}
