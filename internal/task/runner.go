package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/logging"
)

var log = logging.Component("task")

// Run statuses persisted on the owning entry.
const (
	StatusSuccess       = "success"
	StatusFolderMissing = "error:folder_missing"
	StatusTimeout       = "error:timeout"
	StatusSkippedQuiet  = "skipped:quiet_hours"
)

// Spec describes one isolated task run.
type Spec struct {
	Name          string
	Folder        string
	Instruction   string
	DependencyKey string
	Timezone      string
	Quiet         *QuietWindow
	Overrides     *cli.TaskOverrides
}

// RunResult is the outcome of one run.
type RunResult struct {
	Status   string
	Output   string
	CostUSD  float64
	Duration time.Duration
}

// Runner executes task-mode work for the cron scheduler and webhook
// dispatcher: same folder checks, dependency serialization, quiet
// hours, and subprocess path for both.
type Runner struct {
	cfg  *config.Config
	svc  *cli.Service
	deps *DepQueue
}

// NewRunner wires a runner over the shared CLI service and dependency
// queue.
func NewRunner(cfg *config.Config, svc *cli.Service, deps *DepQueue) *Runner {
	return &Runner{cfg: cfg, svc: svc, deps: deps}
}

// Deps exposes the shared dependency queue.
func (r *Runner) Deps() *DepQueue { return r.deps }

// quietWindow picks the effective window: per-spec values win, the
// global heartbeat window is the fallback.
func (r *Runner) quietWindow(spec *Spec) QuietWindow {
	if spec.Quiet != nil {
		return *spec.Quiet
	}
	return QuietWindow{Start: r.cfg.Heartbeat.QuietStart, End: r.cfg.Heartbeat.QuietEnd}
}

// location resolves the task's timezone: per-task override, then the
// global chain (configured zone, host zone, UTC).
func (r *Runner) location(spec *Spec) *time.Location {
	if spec.Timezone != "" {
		if loc, err := time.LoadLocation(spec.Timezone); err == nil {
			return loc
		}
		log.Warnf("Task %s: bad timezone %q, using global", spec.Name, spec.Timezone)
	}
	return config.ResolveTimezone(r.cfg.UserTimezone)
}

// Run executes one task occurrence end to end. The dependency lock, if
// any, is held for the full subprocess duration so keyed tasks never
// overlap.
func (r *Runner) Run(ctx context.Context, spec *Spec) *RunResult {
	start := time.Now()

	if info, err := os.Stat(spec.Folder); err != nil || !info.IsDir() {
		log.Warnf("Task %s: folder missing: %s", spec.Name, spec.Folder)
		return &RunResult{Status: StatusFolderMissing}
	}

	if spec.DependencyKey != "" {
		if err := r.deps.Acquire(ctx, spec.DependencyKey); err != nil {
			return &RunResult{Status: "error:cancelled"}
		}
		defer r.deps.Release(spec.DependencyKey)
	}

	// Quiet hours are evaluated after the lock so a skipped keyed task
	// still takes its FIFO turn without running.
	window := r.quietWindow(spec)
	hour := time.Now().In(r.location(spec)).Hour()
	if window.Contains(hour) {
		log.Infof("Task %s: skipped, hour %d inside quiet window [%d,%d)",
			spec.Name, hour, window.Start, window.End)
		return &RunResult{Status: StatusSkippedQuiet}
	}

	execCfg, err := cli.ResolveExecutionConfig(r.cfg, spec.Overrides)
	if err != nil {
		log.Errorf("Task %s: config resolution failed: %v", spec.Name, err)
		return &RunResult{Status: "error:invalid_config"}
	}

	req := &cli.Request{
		Prompt:          r.enrichInstruction(spec),
		Provider:        execCfg.Provider,
		Model:           execCfg.Model,
		ReasoningEffort: execCfg.ReasoningEffort,
		PermissionMode:  execCfg.PermissionMode,
		FileAccess:      execCfg.FileAccess,
		ExtraArgs:       execCfg.CLIParameters,
		WorkingDir:      spec.Folder,
		Label:           "task:" + spec.Name,
	}

	resp, err := r.svc.Execute(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		return &RunResult{Status: statusForError(err, execCfg.Provider), Duration: elapsed}
	}
	if resp.IsError {
		return &RunResult{Status: "error:exit_1", Output: resp.Text, Duration: elapsed}
	}
	log.Infof("Task %s: success in %s", spec.Name, elapsed.Round(time.Second))
	return &RunResult{
		Status:   StatusSuccess,
		Output:   resp.Text,
		CostUSD:  resp.CostUSD,
		Duration: elapsed,
	}
}

// enrichInstruction prefixes the stored instruction with the run frame:
// where the task lives and which memory file to keep current.
func (r *Runner) enrichInstruction(spec *Spec) string {
	memory := strings.ToUpper(strings.ReplaceAll(spec.Name, "-", "_")) + "_MEMORY.md"
	return fmt.Sprintf(
		"You are running the scheduled task %q in its dedicated folder.\n"+
			"Read TASK_DESCRIPTION.md for the full brief and %s for state "+
			"from previous runs. Update %s before you finish.\n\n%s",
		spec.Name, memory, memory, spec.Instruction)
}

func statusForError(err error, provider string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "cli_not_found_"):
		return "error:cli_not_found_" + provider
	case strings.Contains(msg, "timeout"):
		return StatusTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("error:exit_%d", exitErr.ExitCode())
	}
	return "error:exit_1"
}
