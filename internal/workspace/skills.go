package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Three-way skill sync: every skill becomes visible in the workspace
// skills directory, the Claude home, and the Codex home, with exactly
// one real directory and symlinks everywhere else.

const skillSyncInterval = 30 * time.Second

// skillLocations returns the sync set in canonical priority order:
// workspace first, then each CLI home whose parent directory exists.
func skillLocations(p Paths) []skillLocation {
	locs := []skillLocation{{name: "ductor", dir: p.SkillsDir()}}

	home, err := os.UserHomeDir()
	if err != nil {
		return locs
	}
	claudeHome := filepath.Join(home, ".claude")
	if info, err := os.Stat(claudeHome); err == nil && info.IsDir() {
		locs = append(locs, skillLocation{name: "claude", dir: filepath.Join(claudeHome, "skills")})
	}
	codexHome := os.Getenv("CODEX_HOME")
	if codexHome == "" {
		codexHome = filepath.Join(home, ".codex")
	}
	if info, err := os.Stat(codexHome); err == nil && info.IsDir() {
		locs = append(locs, skillLocation{name: "codex", dir: filepath.Join(codexHome, "skills")})
	}
	return locs
}

type skillLocation struct {
	name string
	dir  string
}

// discoverSkills enumerates immediate subdirectories of base, skipping
// dot-prefixed names and broken symlinks. Valid symlinks count.
func discoverSkills(base string) map[string]string {
	skills := map[string]string{}
	entries, err := os.ReadDir(base)
	if err != nil {
		return skills
	}
	for _, entry := range entries {
		if skipName(entry.Name()) {
			continue
		}
		path := filepath.Join(base, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if _, err := os.Stat(path); err == nil {
				skills[entry.Name()] = path
			}
			continue
		}
		if info.IsDir() {
			skills[entry.Name()] = path
		}
	}
	return skills
}

// resolveCanonical picks the real (non-symlink) directory for a skill in
// location priority order, falling back to resolving the first valid
// symlink when no real directory exists anywhere.
func resolveCanonical(name string, registries []map[string]string) string {
	for _, reg := range registries {
		path, ok := reg[name]
		if !ok {
			continue
		}
		if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink == 0 {
			return path
		}
	}
	for _, reg := range registries {
		path, ok := reg[name]
		if !ok {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			return resolved
		}
	}
	return ""
}

// ensureLink idempotently makes link a symlink to target. Real
// directories are never destroyed. Returns true when a link was created.
func ensureLink(link, target string) (bool, error) {
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return false, nil
		}
		resolved, rerr := filepath.EvalSymlinks(link)
		wanted, werr := filepath.EvalSymlinks(target)
		if rerr == nil && werr == nil && resolved == wanted {
			return false, nil
		}
		if rerr == nil {
			// Valid symlink pointing elsewhere: user-managed, leave it.
			return false, nil
		}
		os.Remove(link)
	}
	if err := createDirLink(link, target); err != nil {
		return false, err
	}
	return true, nil
}

func cleanBrokenLinks(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			os.Remove(path)
			removed++
		}
	}
	return removed
}

// SyncSkills runs one three-way sync pass. Safety rules: real
// directories are never overwritten or removed, and valid symlinks
// pointing outside the sync set are preserved.
func SyncSkills(p Paths) {
	locs := skillLocations(p)

	registries := make([]map[string]string, len(locs))
	names := map[string]bool{}
	for i, loc := range locs {
		registries[i] = discoverSkills(loc.dir)
		for name := range registries[i] {
			names[name] = true
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		canonical := resolveCanonical(name, registries)
		if canonical == "" {
			continue
		}
		for _, loc := range locs {
			if err := os.MkdirAll(loc.dir, 0o755); err != nil {
				continue
			}
			link := filepath.Join(loc.dir, name)
			if link == canonical {
				continue
			}
			created, err := ensureLink(link, canonical)
			if err != nil {
				log.Warnf("Failed to link skill %s in %s: %v", name, loc.name, err)
				continue
			}
			if created {
				log.Infof("Skill link created: %s -> %s", link, canonical)
			}
		}
	}

	for _, loc := range locs {
		if removed := cleanBrokenLinks(loc.dir); removed > 0 {
			log.Infof("Cleaned %d broken skill link(s) in %s", removed, loc.dir)
		}
	}
}

// WatchSkills repeats the sync pass until ctx is cancelled.
func WatchSkills(ctx context.Context, p Paths) {
	ticker := time.NewTicker(skillSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			SyncSkills(p)
		}
	}
}

// CleanupSkillLinks removes symlinks in the CLI skill directories whose
// targets resolve under the workspace skills directory. Run on shutdown
// so uninstalling ductor leaves no dangling links behind.
func CleanupSkillLinks(p Paths) {
	wsSkills, err := filepath.EvalSymlinks(p.SkillsDir())
	if err != nil {
		wsSkills = p.SkillsDir()
	}
	for _, loc := range skillLocations(p) {
		if loc.name == "ductor" {
			continue
		}
		entries, err := os.ReadDir(loc.dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			path := filepath.Join(loc.dir, entry.Name())
			info, err := os.Lstat(path)
			if err != nil || info.Mode()&os.ModeSymlink == 0 {
				continue
			}
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				os.Remove(path)
				continue
			}
			if strings.HasPrefix(resolved, wsSkills+string(os.PathSeparator)) {
				os.Remove(path)
			}
		}
	}
}

// SkillInfo is the SKILL.md frontmatter of an installed skill.
type SkillInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Dir         string `yaml:"-"`
}

// ListSkills reads SKILL.md frontmatter for every skill in the workspace
// skills directory. Skills without a parseable header fall back to the
// directory name.
func ListSkills(p Paths) []SkillInfo {
	skills := discoverSkills(p.SkillsDir())
	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]SkillInfo, 0, len(names))
	for _, name := range names {
		info := SkillInfo{Name: name, Dir: skills[name]}
		if parsed, ok := parseSkillFrontmatter(filepath.Join(skills[name], "SKILL.md")); ok {
			if parsed.Name != "" {
				info.Name = parsed.Name
			}
			info.Description = parsed.Description
		}
		out = append(out, info)
	}
	return out
}

func parseSkillFrontmatter(path string) (SkillInfo, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SkillInfo{}, false
	}
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		return SkillInfo{}, false
	}
	rest := text[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return SkillInfo{}, false
	}
	var info SkillInfo
	if err := yaml.Unmarshal([]byte(rest[:end]), &info); err != nil {
		return SkillInfo{}, false
	}
	return info, true
}
