package filetree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/reuse/errs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(root, "sub", "deep", "c.txt"), "c")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	return root
}

func TestListDescendsDirectories(t *testing.T) {
	root := buildTree(t)

	files, err := List(root)
	require.NoError(t, err)
	require.Len(t, files, 3)

	names := make(map[string]struct{}, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		names[filepath.ToSlash(rel)] = struct{}{}
	}
	require.Contains(t, names, "a.txt")
	require.Contains(t, names, "sub/b.txt")
	require.Contains(t, names, "sub/deep/c.txt")
}

func TestListMissingRoot(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "nope"))
	require.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestListRejectsFileRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	writeFile(t, file, "x")

	_, err := List(file)
	require.Equal(t, errs.CodeInvalidArgument, errs.CodeOf(err))
}

func TestListFromPrependsSeed(t *testing.T) {
	root := buildTree(t)

	files, err := ListFrom([]string{"classpath.jar"}, root)
	require.NoError(t, err)
	require.Len(t, files, 4)
	require.Equal(t, "classpath.jar", files[0])
}

func TestDeleteRemovesTree(t *testing.T) {
	root := buildTree(t)

	require.NoError(t, Delete(filepath.Join(root, "sub")))
	_, err := os.Stat(filepath.Join(root, "sub"))
	require.True(t, os.IsNotExist(err))
}

func TestDeleteMissingPath(t *testing.T) {
	err := Delete(filepath.Join(t.TempDir(), "nope"))
	require.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestDeleteContentsKeepsDirectory(t *testing.T) {
	root := buildTree(t)

	require.NoError(t, DeleteContents(root))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateDirIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deep")

	created, err := CreateDirIfMissing(dir)
	require.NoError(t, err)
	require.True(t, created)

	created, err = CreateDirIfMissing(dir)
	require.NoError(t, err)
	require.False(t, created)
}

func TestCreateDirIfMissingOverFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	writeFile(t, file, "x")

	_, err := CreateDirIfMissing(file)
	require.Equal(t, errs.CodeInvalidArgument, errs.CodeOf(err))
}

func TestRecreateFileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	writeFile(t, path, "old content")

	require.NoError(t, RecreateFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestRecreateFileCreatesWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.log")
	require.NoError(t, RecreateFile(path))
	_, err := os.Stat(path)
	require.NoError(t, err)
}
