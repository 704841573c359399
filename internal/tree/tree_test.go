package tree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bsbernd/ql-fstest/internal/tree"
)

func TestNewRoot_CreatesDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "fstest.1")

	tr, err := tree.NewRoot(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, root+string(filepath.Separator), tr.Path(tr.Root()))
}

func TestNewRoot_FailsIfExists(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "fstest.1")
	require.NoError(t, os.Mkdir(root, 0o700))

	_, err := tree.NewRoot(root)
	require.Error(t, err)
}

func TestGrowLevel_FanOutMatchesOriginalRecursion(t *testing.T) {
	base := t.TempDir()
	tr, err := tree.NewRoot(filepath.Join(base, "fstest.1"))
	require.NoError(t, err)

	// GrowLevel(root, 3) must create d00(->d00(->d00), d01), d01(->d00), d02:
	// the i-th new child gets n-1-i children of its own, so depth 1, 2 and 3
	// hold 3 + 3 + 1 = 7 directories in total.
	created, err := tr.GrowLevel(tr.Root(), 3)
	require.NoError(t, err)
	require.Len(t, created, 7)

	for _, idx := range created {
		info, err := os.Stat(tr.Path(idx))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestAddRemoveFile_TracksCount(t *testing.T) {
	base := t.TempDir()
	tr, err := tree.NewRoot(filepath.Join(base, "fstest.1"))
	require.NoError(t, err)

	root := tr.Root()
	tr.AddFile(root, "a")
	tr.AddFile(root, "b")
	require.Equal(t, 2, tr.NumFiles(root))

	tr.RemoveFile(root, "a")
	require.Equal(t, 1, tr.NumFiles(root))
}

func TestTeardown_RemovesEverything(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "fstest.1")
	tr, err := tree.NewRoot(root)
	require.NoError(t, err)

	created, err := tr.GrowLevel(tr.Root(), 2)
	require.NoError(t, err)

	filePath := filepath.Join(tr.Path(created[0]), "deadbeef")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o600))
	tr.AddFile(created[0], "deadbeef")

	err = tr.Teardown(map[tree.Index][]string{created[0]: {filePath}})
	require.NoError(t, err)

	_, statErr := os.Stat(root)
	require.True(t, os.IsNotExist(statErr))
}
