package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureProjectDir_CreatesDirectory(t *testing.T) {
	base := t.TempDir()

	got, err := EnsureProjectDir(base, "proj-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "proj-1"), got)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestEnsureProjectDir_Idempotent(t *testing.T) {
	base := t.TempDir()

	first, err := EnsureProjectDir(base, "proj-1")
	require.NoError(t, err)
	second, err := EnsureProjectDir(base, "proj-1")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureProjectDir_FailsIfFileWithSameNameExists(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "proj-1"), []byte("x"), 0o660))

	_, err := EnsureProjectDir(base, "proj-1")
	require.Error(t, err)
}
