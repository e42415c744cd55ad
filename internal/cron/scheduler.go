package cron

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/security"
	"github.com/PleasePrompto/ductor/internal/task"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

// reloadPollInterval is how often the jobs file mtime is checked.
const reloadPollInterval = 5 * time.Second

// parser accepts the classic five-field cron syntax.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ResultFunc receives each completed run for delivery to the user.
type ResultFunc func(job *Job, res *task.RunResult)

// Scheduler drives all cron entries. Each enabled entry gets its own
// timer loop; a file change cancels and rebuilds all of them.
type Scheduler struct {
	store    *Store
	runner   *task.Runner
	cfg      *config.Config
	paths    workspace.Paths
	OnResult ResultFunc

	mu        sync.Mutex
	cancelAll context.CancelFunc
	lastMtime time.Time
}

// NewScheduler wires the scheduler over the shared task runner.
func NewScheduler(store *Store, runner *task.Runner, cfg *config.Config, paths workspace.Paths) *Scheduler {
	return &Scheduler{store: store, runner: runner, cfg: cfg, paths: paths}
}

// Run loads the entries, schedules them, and watches the jobs file
// until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.reload(ctx)

	ticker := time.NewTicker(reloadPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopJobs()
			return ctx.Err()
		case <-ticker.C:
			mtime := s.store.ModTime()
			s.mu.Lock()
			changed := !mtime.Equal(s.lastMtime)
			s.mu.Unlock()
			if changed {
				log.Infof("Jobs file changed, rescheduling")
				s.reload(ctx)
			}
		}
	}
}

func (s *Scheduler) stopJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelAll != nil {
		s.cancelAll()
		s.cancelAll = nil
	}
}

// reload cancels every scheduled entry and rebuilds from disk.
func (s *Scheduler) reload(ctx context.Context) {
	s.stopJobs()

	jobs, err := s.store.Load()
	mtime := s.store.ModTime()
	s.mu.Lock()
	s.lastMtime = mtime
	s.mu.Unlock()
	if err != nil {
		log.Errorf("Jobs reload failed: %v", err)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelAll = cancel
	s.mu.Unlock()

	scheduled := 0
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		sched, perr := parser.Parse(job.Schedule)
		if perr != nil {
			log.Errorf("Job %s: bad schedule %q: %v", job.ID, job.Schedule, perr)
			continue
		}
		scheduled++
		go s.jobLoop(jobCtx, job, sched)
	}
	log.Infof("Scheduled %d of %d job(s)", scheduled, len(jobs))
}

// jobLoop sleeps until each next fire instant in the job's zone, runs
// the entry, and reschedules. It exits when the entries are rebuilt.
func (s *Scheduler) jobLoop(ctx context.Context, job *Job, sched cron.Schedule) {
	loc := s.jobLocation(job)
	for {
		next := sched.Next(time.Now().In(loc))
		delay := time.Until(next)
		log.Debugf("Job %s: next fire %s (in %s)", job.ID,
			next.Format(time.RFC3339), delay.Round(time.Second))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.fire(ctx, job)
	}
}

func (s *Scheduler) jobLocation(job *Job) *time.Location {
	if job.Timezone != "" {
		if loc, err := time.LoadLocation(job.Timezone); err == nil {
			return loc
		}
		log.Warnf("Job %s: bad timezone %q, using global", job.ID, job.Timezone)
	}
	return config.ResolveTimezone(s.cfg.UserTimezone)
}

// fire runs one occurrence through the shared task runner and records
// the outcome.
func (s *Scheduler) fire(ctx context.Context, job *Job) {
	spec := &task.Spec{
		Name:          job.Name,
		Folder:        s.folderFor(job),
		Instruction:   job.Instruction,
		DependencyKey: job.DependencyKey,
		Timezone:      job.Timezone,
		Quiet:         quietFor(job),
		Overrides:     job.Overrides(),
	}
	log.Infof("Job %s: firing", job.ID)
	res := s.runner.Run(ctx, spec)

	if err := s.store.RecordRun(job.ID, res.Status, time.Now().UTC()); err != nil {
		log.Warnf("Job %s: status persist failed: %v", job.ID, err)
	}
	// Our own status write bumps the mtime; absorb it so the watcher
	// does not reschedule everything after every run.
	mtime := s.store.ModTime()
	s.mu.Lock()
	s.lastMtime = mtime
	s.mu.Unlock()

	if s.OnResult != nil && res.Status != task.StatusSkippedQuiet {
		s.OnResult(job, res)
	}
}

// folderFor resolves the entry's task folder: absolute paths win,
// otherwise the folder lives under workspace/cron_tasks. Relative names
// that would escape the tasks dir fall back to the entry id.
func (s *Scheduler) folderFor(job *Job) string {
	if job.TaskFolder == "" {
		return filepath.Join(s.paths.CronTasksDir(), job.ID)
	}
	if filepath.IsAbs(job.TaskFolder) {
		return job.TaskFolder
	}
	if err := security.ValidatePathComponent(job.TaskFolder); err != nil {
		log.Warnf("Job %s: unsafe task folder %q, using id: %v", job.ID, job.TaskFolder, err)
		return filepath.Join(s.paths.CronTasksDir(), job.ID)
	}
	return filepath.Join(s.paths.CronTasksDir(), job.TaskFolder)
}

func quietFor(job *Job) *task.QuietWindow {
	if job.QuietStart == nil || job.QuietEnd == nil {
		return nil
	}
	return &task.QuietWindow{Start: *job.QuietStart, End: *job.QuietEnd}
}

// Summary renders the /cron listing.
func (s *Scheduler) Summary() string {
	jobs := s.store.Jobs()
	if len(jobs) == 0 {
		return "No cron jobs defined. Ask the agent to create one; entries " +
			"live in cron_jobs.json."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cron jobs (%d):\n", len(jobs))
	for _, j := range jobs {
		state := "enabled"
		if !j.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&b, "  %s  [%s]  %s", j.Name, j.Schedule, state)
		if j.LastStatus != "" {
			fmt.Fprintf(&b, "  last: %s", j.LastStatus)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
