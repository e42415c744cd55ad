// Package workspace materializes and keeps synchronized the on-disk
// runtime layout: template seeding with zone rules, rule-file pairing,
// three-way skill symlink sync, and runtime-environment injection.
package workspace

import (
	"os"
	"path/filepath"
)

// Paths is the single source of truth for every path the runtime
// touches. All fields derive from one root.
type Paths struct {
	Root         string // user data directory, default ~/.ductor
	HomeDefaults string // bundled template mirroring Root
}

// ResolvePaths builds Paths from an explicit root, the DUCTOR_HOME
// environment variable, or ~/.ductor.
func ResolvePaths(root, homeDefaults string) Paths {
	if root == "" {
		root = os.Getenv("DUCTOR_HOME")
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		root = filepath.Join(home, ".ductor")
	}
	abs, err := filepath.Abs(root)
	if err == nil {
		root = abs
	}
	return Paths{Root: root, HomeDefaults: homeDefaults}
}

func (p Paths) Workspace() string     { return filepath.Join(p.Root, "workspace") }
func (p Paths) ConfigDir() string     { return filepath.Join(p.Root, "config") }
func (p Paths) ConfigPath() string    { return filepath.Join(p.ConfigDir(), "config.json") }
func (p Paths) SessionsPath() string  { return filepath.Join(p.Root, "sessions.json") }
func (p Paths) CronJobsPath() string  { return filepath.Join(p.Root, "cron_jobs.json") }
func (p Paths) WebhooksPath() string  { return filepath.Join(p.Root, "webhooks.json") }
func (p Paths) LogsDir() string       { return filepath.Join(p.Root, "logs") }
func (p Paths) PIDPath() string       { return filepath.Join(p.Root, "bot.pid") }
func (p Paths) RestartSentinel() string {
	return filepath.Join(p.Root, "restart-sentinel.json")
}

func (p Paths) CronTasksDir() string { return filepath.Join(p.Workspace(), "cron_tasks") }
func (p Paths) ToolsDir() string     { return filepath.Join(p.Workspace(), "tools") }
func (p Paths) UserToolsDir() string { return filepath.Join(p.ToolsDir(), "user_tools") }
func (p Paths) OutputDir() string    { return filepath.Join(p.Workspace(), "output_to_user") }
func (p Paths) ChatFilesDir() string { return filepath.Join(p.Workspace(), "chat_files") }
func (p Paths) MemoryDir() string    { return filepath.Join(p.Workspace(), "memory_system") }
func (p Paths) SkillsDir() string    { return filepath.Join(p.Workspace(), "skills") }
func (p Paths) MainMemoryPath() string {
	return filepath.Join(p.MemoryDir(), "MAINMEMORY.md")
}

// RequiredDirs is the fixed set of directories init always creates.
func (p Paths) RequiredDirs() []string {
	return []string{
		p.Workspace(),
		p.ConfigDir(),
		p.LogsDir(),
		p.CronTasksDir(),
		filepath.Join(p.ToolsDir(), "cron_tools"),
		filepath.Join(p.ToolsDir(), "webhook_tools"),
		filepath.Join(p.ToolsDir(), "chat_tools"),
		p.UserToolsDir(),
		p.OutputDir(),
		p.ChatFilesDir(),
		p.MemoryDir(),
		p.SkillsDir(),
	}
}
