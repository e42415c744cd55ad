package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/infra"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

const memoryPreviewLimit = 3500

func (o *Orchestrator) registerCommands() {
	o.commands.Register("/new", cmdNew)
	o.commands.Register("/stop", cmdStop)
	o.commands.Register("/status", cmdStatus)
	o.commands.Register("/model", cmdModelWizard)
	o.commands.Register("/model ", cmdModelDirect)
	o.commands.Register("/memory", cmdMemory)
	o.commands.Register("/cron", cmdCron)
	o.commands.Register("/diagnose", cmdDiagnose)
	o.commands.Register("/showfiles", cmdShowFiles)
	o.commands.Register("/restart", cmdRestart)
}

func cmdRestart(_ context.Context, o *Orchestrator, chatID int64, _ string) (*Result, error) {
	if o.RequestRestart == nil {
		return &Result{Text: "Restart is not available in this runtime."}, nil
	}
	if err := infra.WriteRestartSentinel(o.paths.RestartSentinel(), "user requested restart"); err != nil {
		return nil, err
	}
	o.Registry().KillAll(chatID)
	o.RequestRestart()
	return &Result{Text: "Restarting. Back in a few seconds."}, nil
}

func cmdNew(_ context.Context, o *Orchestrator, chatID int64, _ string) (*Result, error) {
	killed := o.Registry().KillAll(chatID)
	provider := o.cfg.Provider
	if sess := o.sessions.Get(chatID); sess != nil {
		provider = sess.Provider
	}
	if err := o.sessions.ClearBucket(chatID, provider); err != nil {
		return nil, err
	}
	reply := "Session cleared. The next message starts a fresh conversation."
	if killed > 0 {
		reply = fmt.Sprintf("Stopped %d running process(es) and cleared the session. "+
			"The next message starts a fresh conversation.", killed)
	}
	return &Result{Text: reply}, nil
}

func cmdStop(_ context.Context, o *Orchestrator, chatID int64, _ string) (*Result, error) {
	killed := o.Registry().KillAll(chatID)
	if killed == 0 {
		return &Result{Text: "Nothing is running."}, nil
	}
	return &Result{Text: fmt.Sprintf("Stopped %d process(es).", killed)}, nil
}

func cmdStatus(_ context.Context, o *Orchestrator, chatID int64, _ string) (*Result, error) {
	var b strings.Builder
	b.WriteString("Status\n")

	provider, model := o.cfg.Provider, o.cfg.Model
	sess := o.sessions.Get(chatID)
	if sess != nil && sess.Model != "" {
		provider, model = sess.Provider, sess.Model
	}
	fmt.Fprintf(&b, "Model: %s (%s)\n", model, provider)
	if provider == cli.ProviderCodex && o.cfg.ReasoningEffort != "" {
		fmt.Fprintf(&b, "Reasoning effort: %s\n", o.cfg.ReasoningEffort)
	}

	if sess == nil || sess.ActiveBucket().SessionID == "" {
		b.WriteString("Session: none (next message starts fresh)\n")
	} else {
		bucket := sess.ActiveBucket()
		fmt.Fprintf(&b, "Session: %d message(s), %s old\n",
			bucket.MessageCount, formatAgeShort(sess.Age(time.Now().UTC())))
		if bucket.TotalCostUSD > 0 {
			fmt.Fprintf(&b, "Cost: $%.4f, %d tokens\n", bucket.TotalCostUSD, bucket.TotalTokens)
		}
	}

	if running := o.Registry().Count(chatID); running > 0 {
		fmt.Fprintf(&b, "Running: %d process(es)\n", running)
	}
	for name, status := range cli.CheckAllAuth() {
		fmt.Fprintf(&b, "CLI %s: %s\n", name, status)
	}
	return &Result{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func cmdMemory(_ context.Context, o *Orchestrator, _ int64, _ string) (*Result, error) {
	mem := strings.TrimSpace(o.readMainMemory())
	if mem == "" {
		return &Result{Text: "Long-term memory is empty. The agent fills " +
			"memory_system/MAINMEMORY.md as you talk."}, nil
	}
	if len(mem) > memoryPreviewLimit {
		mem = mem[:memoryPreviewLimit] + "\n\n[... truncated]"
	}
	return &Result{Text: mem}, nil
}

func cmdCron(_ context.Context, o *Orchestrator, _ int64, _ string) (*Result, error) {
	if o.CronSummary == nil {
		return &Result{Text: "Scheduler is not running."}, nil
	}
	return &Result{Text: o.CronSummary()}, nil
}

func cmdDiagnose(_ context.Context, o *Orchestrator, chatID int64, _ string) (*Result, error) {
	var b strings.Builder
	b.WriteString("Diagnostics\n")
	fmt.Fprintf(&b, "Data dir: %s\n", o.paths.Root)
	fmt.Fprintf(&b, "Workspace: %s\n", o.paths.Workspace())
	for name, status := range cli.CheckAllAuth() {
		fmt.Fprintf(&b, "CLI %s: %s\n", name, status)
	}
	fmt.Fprintf(&b, "Processes (this chat): %d\n", o.Registry().Count(chatID))
	fmt.Fprintf(&b, "Heartbeat: %s\n", onOff(o.cfg.Heartbeat.Enabled))
	fmt.Fprintf(&b, "Webhook server: %s\n", onOff(o.cfg.Webhook.Enabled))
	fmt.Fprintf(&b, "Cleanup: %s\n", onOff(o.cfg.Cleanup.Enabled))

	fmt.Fprintf(&b, "Skills: %d\n", len(workspace.ListSkills(o.paths)))
	return &Result{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func cmdShowFiles(_ context.Context, o *Orchestrator, _ int64, _ string) (*Result, error) {
	entries, err := os.ReadDir(o.paths.OutputDir())
	if err != nil || len(entries) == 0 {
		return &Result{Text: "No output files. The agent places files for you " +
			"under workspace/output_to_user/."}, nil
	}

	type fileLine struct {
		name string
		mod  time.Time
		size int64
	}
	var files []fileLine
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ierr := e.Info()
		if ierr != nil {
			continue
		}
		files = append(files, fileLine{e.Name(), info.ModTime(), info.Size()})
	}
	if len(files) == 0 {
		return &Result{Text: "No output files. The agent places files for you " +
			"under workspace/output_to_user/."}, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })

	var b strings.Builder
	fmt.Fprintf(&b, "Output files (%d):\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "  %s  (%s, %s)\n",
			f.name, formatSize(f.size), f.mod.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "\nPath: %s", filepath.Clean(o.paths.OutputDir()))
	return &Result{Text: b.String()}, nil
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func formatAgeShort(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
