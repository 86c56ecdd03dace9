package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCocosProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name":"demo"}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets", "scenes"), 0o755))
	return root
}

func TestFindProjectRootFromDirWalksUpward(t *testing.T) {
	root := makeCocosProject(t)
	nested := filepath.Join(root, "assets", "scenes")
	assert.Equal(t, root, FindProjectRootFromDir(nested))

	plain := t.TempDir()
	assert.Equal(t, plain, FindProjectRootFromDir(plain))
}

func TestResolveProjectFileRejectsEscapeAndAbsolutePaths(t *testing.T) {
	root := makeCocosProject(t)

	path, err := ResolveProjectFile(root, "temp/logs/project.log")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "temp", "logs", "project.log"), path)

	_, err = ResolveProjectFile(root, "../outside.log")
	assert.EqualError(t, err, "path escapes project root")

	_, err = ResolveProjectFile(root, filepath.Join(root, "abs.log"))
	assert.EqualError(t, err, "absolute paths are not allowed")
}

func TestProjectRootCandidatesOrder(t *testing.T) {
	editorRoot := makeCocosProject(t)
	envRoot := makeCocosProject(t)
	t.Setenv(ProjectPathEnv, envRoot)

	candidates := ProjectRootCandidates(editorRoot, envRoot)
	require.GreaterOrEqual(t, len(candidates), 2)
	assert.Equal(t, editorRoot, candidates[0])
	assert.Equal(t, envRoot, candidates[1])
}

func TestFirstExistingProjectFileProbesInOrder(t *testing.T) {
	empty := makeCocosProject(t)
	withLog := makeCocosProject(t)
	logPath := filepath.Join(withLog, "temp", "logs", "project.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0o755))
	require.NoError(t, os.WriteFile(logPath, []byte("line\n"), 0o644))

	found, ok := FirstExistingProjectFile([]string{empty, withLog}, "temp/logs/project.log")
	require.True(t, ok)
	assert.Equal(t, logPath, found)

	_, ok = FirstExistingProjectFile([]string{empty}, "temp/logs/project.log")
	assert.False(t, ok)
}
