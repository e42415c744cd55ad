package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSkill(t *testing.T, base, name string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestDiscoverSkills(t *testing.T) {
	base := t.TempDir()
	mkSkill(t, base, "pdf-tools")
	mkSkill(t, base, ".hidden")
	write(t, filepath.Join(base, "not-a-dir.txt"), "x")

	// A valid symlink counts, a broken one does not.
	require.NoError(t, os.Symlink(filepath.Join(base, "pdf-tools"), filepath.Join(base, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(base, "gone"), filepath.Join(base, "broken")))

	skills := discoverSkills(base)
	assert.Contains(t, skills, "pdf-tools")
	assert.Contains(t, skills, "linked")
	assert.NotContains(t, skills, ".hidden")
	assert.NotContains(t, skills, "not-a-dir.txt")
	assert.NotContains(t, skills, "broken")
}

func TestResolveCanonicalPrefersRealDir(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	real := mkSkill(t, b, "skill")
	link := filepath.Join(a, "skill")
	require.NoError(t, os.Symlink(real, link))

	// Priority order puts the symlink first, but the real directory in
	// the second registry wins.
	canonical := resolveCanonical("skill", []map[string]string{
		{"skill": link},
		{"skill": real},
	})
	assert.Equal(t, real, canonical)
}

func TestEnsureLinkIdempotent(t *testing.T) {
	base := t.TempDir()
	target := mkSkill(t, base, "target")
	link := filepath.Join(base, "link")

	created, err := ensureLink(link, target)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = ensureLink(link, target)
	require.NoError(t, err)
	assert.False(t, created, "existing correct link untouched")
}

func TestEnsureLinkNeverDestroysRealDir(t *testing.T) {
	base := t.TempDir()
	target := mkSkill(t, base, "target")
	real := mkSkill(t, base, "real")
	write(t, filepath.Join(real, "data.txt"), "precious")

	created, err := ensureLink(real, target)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "precious", read(t, filepath.Join(real, "data.txt")))
}

func TestEnsureLinkPreservesForeignSymlink(t *testing.T) {
	base := t.TempDir()
	target := mkSkill(t, base, "target")
	foreign := mkSkill(t, base, "foreign")
	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(foreign, link))

	created, err := ensureLink(link, target)
	require.NoError(t, err)
	assert.False(t, created, "valid user-managed links stay")

	resolved, err := filepath.EvalSymlinks(link)
	require.NoError(t, err)
	expected, err := filepath.EvalSymlinks(foreign)
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestCleanBrokenLinks(t *testing.T) {
	base := t.TempDir()
	target := mkSkill(t, base, "target")
	require.NoError(t, os.Symlink(target, filepath.Join(base, "good")))
	require.NoError(t, os.Symlink(filepath.Join(base, "gone"), filepath.Join(base, "bad")))

	assert.Equal(t, 1, cleanBrokenLinks(base))
	_, err := os.Lstat(filepath.Join(base, "good"))
	assert.NoError(t, err)
}

func TestListSkillsFrontmatter(t *testing.T) {
	p := Paths{Root: t.TempDir()}
	dir := mkSkill(t, p.SkillsDir(), "pdf-tools")
	write(t, filepath.Join(dir, "SKILL.md"),
		"---\nname: PDF Tools\ndescription: Work with PDF files\n---\n\n# Usage\n")
	mkSkill(t, p.SkillsDir(), "bare-skill")

	skills := ListSkills(p)
	require.Len(t, skills, 2)
	assert.Equal(t, "bare-skill", skills[0].Name, "no header falls back to dir name")
	assert.Equal(t, "PDF Tools", skills[1].Name)
	assert.Equal(t, "Work with PDF files", skills[1].Description)
}
