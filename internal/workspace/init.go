package workspace

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/bmatcuk/doublestar/v4"
)

var log = logging.Component("workspace")

// Rule files are always overwritten from the template (zone-always) so
// framework updates reach users on restart. Everything else is seeded
// once and never touched again (zone-once).
var zoneAlwaysFiles = map[string]bool{
	"CLAUDE.md": true,
	"AGENTS.md": true,
}

// skipPatterns are doublestar patterns matched against each path segment
// during template walks and rule-file pairing.
var skipPatterns = []string{
	".git", ".venv", ".mypy_cache", "__pycache__", "node_modules", "*.cache",
}

const ruleSyncInterval = 10 * time.Second

func skipName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, pat := range skipPatterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// Init materializes the workspace. Idempotent: safe to call on every
// start against an existing tree.
func Init(p Paths) error {
	log.Infof("Workspace init started root=%s", p.Root)

	migrateLegacyTasksDir(p)

	for _, dir := range p.RequiredDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if p.HomeDefaults != "" {
		if info, err := os.Stat(p.HomeDefaults); err == nil && info.IsDir() {
			if err := walkAndCopy(p.HomeDefaults, p.Root); err != nil {
				return err
			}
		} else {
			log.Warnf("Home defaults directory not found: %s", p.HomeDefaults)
		}
	}

	SyncRuleFiles(p.Workspace())
	cleanOrphanSymlinks(p.Workspace())
	SyncSkills(p)

	log.Infof("Workspace init completed")
	return nil
}

// migrateLegacyTasksDir renames workspace/tasks to workspace/cron_tasks,
// a one-time layout migration.
func migrateLegacyTasksDir(p Paths) {
	old := filepath.Join(p.Workspace(), "tasks")
	if info, err := os.Stat(old); err == nil && info.IsDir() {
		if _, err := os.Stat(p.CronTasksDir()); os.IsNotExist(err) {
			if err := os.Rename(old, p.CronTasksDir()); err == nil {
				log.Infof("Migrated workspace/tasks/ -> workspace/cron_tasks/")
			}
		}
	}
}

// walkAndCopy copies the template tree into dst honouring zone rules.
func walkAndCopy(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if skipName(entry.Name()) {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := walkAndCopy(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}

		if zoneAlwaysFiles[entry.Name()] {
			if err := overwriteFile(srcPath, dstPath); err != nil {
				return err
			}
			log.Debugf("Zone-always copy: %s", dstPath)
			// Every CLAUDE.md gets a matching AGENTS.md mirror.
			if entry.Name() == "CLAUDE.md" {
				mirror := filepath.Join(dst, "AGENTS.md")
				if err := overwriteFile(srcPath, mirror); err != nil {
					return err
				}
			}
			continue
		}

		if _, err := os.Lstat(dstPath); os.IsNotExist(err) {
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
			log.Debugf("Zone-once seed: %s", dstPath)
		}
	}
	return nil
}

func overwriteFile(src, dst string) error {
	// Preserve bundled links by replacing them with real file content
	// only when they are symlinks pointing at the template itself.
	if info, err := os.Lstat(dst); err == nil && info.Mode()&os.ModeSymlink != 0 {
		os.Remove(dst)
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(src); err == nil {
		os.Chtimes(dst, time.Now(), info.ModTime())
	}
	return nil
}

// SyncRuleFiles pairs CLAUDE.md and AGENTS.md in every directory under
// root: the missing one is created from the other, and when both exist
// the newer mtime wins.
func SyncRuleFiles(root string) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return
	}
	syncRulePair(root)
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return nil
		}
		if skipName(d.Name()) {
			return filepath.SkipDir
		}
		syncRulePair(path)
		return nil
	})
}

func syncRulePair(dir string) {
	claude := filepath.Join(dir, "CLAUDE.md")
	agents := filepath.Join(dir, "AGENTS.md")

	ci, cerr := os.Stat(claude)
	ai, aerr := os.Stat(agents)

	switch {
	case cerr == nil && aerr != nil:
		copyFile(claude, agents)
	case aerr == nil && cerr != nil:
		copyFile(agents, claude)
	case cerr == nil && aerr == nil:
		if ci.ModTime().After(ai.ModTime()) {
			copyFile(claude, agents)
		} else if ai.ModTime().After(ci.ModTime()) {
			copyFile(agents, claude)
		}
	}
}

func cleanOrphanSymlinks(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			os.Remove(path)
		}
	}
}

// WatchRuleFiles repeats rule-file pairing until ctx is cancelled.
func WatchRuleFiles(ctx context.Context, root string) {
	ticker := time.NewTicker(ruleSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			SyncRuleFiles(root)
		}
	}
}

// Runtime environment notices appended to the workspace rule files once
// the sandbox state is known.

const dockerNotice = `

---

## Runtime Environment

**IMPORTANT: YOU ARE RUNNING INSIDE A DOCKER CONTAINER (%s).**

- Your filesystem is isolated. /ductor is the mounted host directory ~/.ductor.
- You cannot see or access the host system outside this mount.
- Feel free to experiment -- the host is protected.
`

const hostNotice = `

---

## Runtime Environment

**WARNING: YOU ARE RUNNING DIRECTLY ON THE HOST SYSTEM. THERE IS NO SANDBOX.**

- Every file operation, command, and script runs on the user's real machine.
- Be careful with destructive commands (rm -rf, chmod, etc.).
- Ask before touching anything outside workspace/.
`

// InjectRuntimeEnvironment appends the environment section to the two
// workspace-root rule files. Idempotent: a file already carrying the
// section is left alone.
func InjectRuntimeEnvironment(p Paths, dockerContainer string) {
	notice := hostNotice
	if dockerContainer != "" {
		notice = strings.ReplaceAll(dockerNotice, "%s", dockerContainer)
	}
	for _, name := range []string{"CLAUDE.md", "AGENTS.md"} {
		target := filepath.Join(p.Workspace(), name)
		data, err := os.ReadFile(target)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), "## Runtime Environment") {
			continue
		}
		os.WriteFile(target, append(data, []byte(notice)...), 0o644)
	}
	mode := "host"
	if dockerContainer != "" {
		mode = "docker"
	}
	log.Infof("Runtime environment injected: %s", mode)
}
