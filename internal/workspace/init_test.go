package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	root := t.TempDir()
	tmpl := t.TempDir()
	return Paths{Root: root, HomeDefaults: tmpl}
}

func TestInitZoneRules(t *testing.T) {
	p := testPaths(t)
	write(t, filepath.Join(p.HomeDefaults, "workspace", "CLAUDE.md"), "template rules v1")
	write(t, filepath.Join(p.HomeDefaults, "workspace", "notes.md"), "template notes")

	require.NoError(t, Init(p))
	assert.Equal(t, "template rules v1", read(t, filepath.Join(p.Workspace(), "CLAUDE.md")))
	assert.Equal(t, "template notes", read(t, filepath.Join(p.Workspace(), "notes.md")))

	// User edits both; the template updates both.
	write(t, filepath.Join(p.Workspace(), "CLAUDE.md"), "user rules")
	write(t, filepath.Join(p.Workspace(), "notes.md"), "user notes")
	write(t, filepath.Join(p.HomeDefaults, "workspace", "CLAUDE.md"), "template rules v2")

	require.NoError(t, Init(p))
	assert.Equal(t, "template rules v2",
		read(t, filepath.Join(p.Workspace(), "CLAUDE.md")), "rule files always overwritten")
	assert.Equal(t, "user notes",
		read(t, filepath.Join(p.Workspace(), "notes.md")), "other files seeded once")
}

func TestInitMirrorsAgentsFile(t *testing.T) {
	p := testPaths(t)
	write(t, filepath.Join(p.HomeDefaults, "workspace", "CLAUDE.md"), "rules")

	require.NoError(t, Init(p))
	assert.Equal(t, "rules", read(t, filepath.Join(p.Workspace(), "AGENTS.md")))
}

func TestInitCreatesRequiredDirs(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, Init(p))
	for _, dir := range p.RequiredDirs() {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestInitMigratesLegacyTasksDir(t *testing.T) {
	p := testPaths(t)
	write(t, filepath.Join(p.Workspace(), "tasks", "old-task", "TASK_DESCRIPTION.md"), "x")

	require.NoError(t, Init(p))
	assert.FileExists(t, filepath.Join(p.CronTasksDir(), "old-task", "TASK_DESCRIPTION.md"))
	assert.NoDirExists(t, filepath.Join(p.Workspace(), "tasks"))
}

func TestSyncRulePairCreatesMissing(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "CLAUDE.md"), "only one")

	syncRulePair(dir)
	assert.Equal(t, "only one", read(t, filepath.Join(dir, "AGENTS.md")))
}

func TestSyncRulePairNewerWins(t *testing.T) {
	dir := t.TempDir()
	claude := filepath.Join(dir, "CLAUDE.md")
	agents := filepath.Join(dir, "AGENTS.md")
	write(t, claude, "older")
	write(t, agents, "newer")

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(claude, old, old))

	syncRulePair(dir)
	assert.Equal(t, "newer", read(t, claude))
}

func TestSkipName(t *testing.T) {
	assert.True(t, skipName(".git"))
	assert.True(t, skipName("__pycache__"))
	assert.True(t, skipName("node_modules"))
	assert.True(t, skipName(".hidden"))
	assert.False(t, skipName("src"))
}

func TestInjectRuntimeEnvironmentIdempotent(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, os.MkdirAll(p.Workspace(), 0o755))
	write(t, filepath.Join(p.Workspace(), "CLAUDE.md"), "rules")
	write(t, filepath.Join(p.Workspace(), "AGENTS.md"), "rules")

	InjectRuntimeEnvironment(p, "")
	first := read(t, filepath.Join(p.Workspace(), "CLAUDE.md"))
	assert.Contains(t, first, "## Runtime Environment")
	assert.Contains(t, first, "NO SANDBOX")

	InjectRuntimeEnvironment(p, "")
	assert.Equal(t, first, read(t, filepath.Join(p.Workspace(), "CLAUDE.md")),
		"second injection is a no-op")
}

func TestInjectRuntimeEnvironmentDocker(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, os.MkdirAll(p.Workspace(), 0o755))
	write(t, filepath.Join(p.Workspace(), "CLAUDE.md"), "rules")

	InjectRuntimeEnvironment(p, "ductor-box")
	content := read(t, filepath.Join(p.Workspace(), "CLAUDE.md"))
	assert.Contains(t, content, "DOCKER CONTAINER (ductor-box)")
}

func TestCleanOrphanSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	write(t, target, "x")
	good := filepath.Join(dir, "good-link")
	bad := filepath.Join(dir, "bad-link")
	require.NoError(t, os.Symlink(target, good))
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), bad))

	cleanOrphanSymlinks(dir)
	_, err := os.Lstat(good)
	assert.NoError(t, err, "valid links survive")
	_, err = os.Lstat(bad)
	assert.True(t, os.IsNotExist(err), "broken links removed")
}
