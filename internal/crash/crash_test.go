package crash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zipfuzz/internal/oracle"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return &Manager{
		logger:   zap.NewNop(),
		crashDir: t.TempDir(),
		toolPath: "/usr/bin/7z",
		runID:    "test-run",
	}
}

func crashDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

func TestArchivePersistsArtifacts(t *testing.T) {
	m := newTestManager(t)
	data := []byte("corrupted archive bytes")
	diag := &oracle.Diagnostics{Stdout: "Testing archive", Stderr: "Segmentation fault", ExitCode: 2}

	m.Archive(7, data, diag)

	dirs := crashDirs(t, m.crashDir)
	require.Len(t, dirs, 1)
	store := filepath.Join(m.crashDir, dirs[0])

	raw, err := os.ReadFile(filepath.Join(store, "crash.zip"))
	require.NoError(t, err)
	assert.Equal(t, data, raw)

	info, err := os.ReadFile(filepath.Join(store, "info.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "Iteration: 7")
	assert.Contains(t, string(info), "File size: 23 bytes")
	assert.Contains(t, string(info), "File hash (MD5):")
	assert.Contains(t, string(info), "Tool path: /usr/bin/7z")

	out, err := os.ReadFile(filepath.Join(store, "7z_output.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "=== STDOUT ===")
	assert.Contains(t, string(out), "Segmentation fault")
	assert.Contains(t, string(out), "=== RETURN CODE: 2 ===")
}

func TestArchiveWithoutDiagnostics(t *testing.T) {
	m := newTestManager(t)

	// a timed-out invocation has no captured output
	m.Archive(3, []byte("hung candidate"), nil)

	dirs := crashDirs(t, m.crashDir)
	require.Len(t, dirs, 1)
	store := filepath.Join(m.crashDir, dirs[0])

	_, err := os.Stat(filepath.Join(store, "crash.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(store, "7z_output.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestConsecutiveArchivesGetDistinctNames(t *testing.T) {
	m := newTestManager(t)
	diag := &oracle.Diagnostics{ExitCode: 2}

	// both archives land within the same wall-clock second
	m.Archive(1, []byte("first"), diag)
	m.Archive(2, []byte("second"), diag)

	dirs := crashDirs(t, m.crashDir)
	require.Len(t, dirs, 2)
	assert.NotEqual(t, dirs[0], dirs[1])
}

func TestArchiveSurvivesWriteFailure(t *testing.T) {
	m := newTestManager(t)
	m.crashDir = filepath.Join(m.crashDir, "missing", "\x00bad")

	// must not panic; persistence is best-effort
	m.Archive(1, []byte("data"), nil)
}
