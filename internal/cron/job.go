// Package cron schedules task entries in their resolved timezones,
// honours quiet hours, and serializes entries sharing a dependency key.
package cron

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/derrors"
	"github.com/PleasePrompto/ductor/internal/infra"
	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/PleasePrompto/ductor/internal/security"
)

var log = logging.Component("cron")

// Job is one persisted cron entry.
type Job struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Schedule      string   `json:"schedule"`
	TaskFolder    string   `json:"task_folder"`
	Instruction   string   `json:"instruction"`
	Enabled       bool     `json:"enabled"`
	Timezone      string   `json:"timezone,omitempty"`
	QuietStart    *int     `json:"quiet_start,omitempty"`
	QuietEnd      *int     `json:"quiet_end,omitempty"`
	DependencyKey string   `json:"dependency_key,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	Effort        string   `json:"reasoning_effort,omitempty"`
	CLIParameters []string `json:"cli_parameters,omitempty"`

	LastRun    *time.Time `json:"last_run,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
}

// Overrides maps the entry's per-task fields onto the shared resolver
// shape.
func (j *Job) Overrides() *cli.TaskOverrides {
	return &cli.TaskOverrides{
		Provider:        j.Provider,
		Model:           j.Model,
		ReasoningEffort: j.Effort,
		CLIParameters:   j.CLIParameters,
	}
}

type jobsFile struct {
	Jobs []*Job `json:"jobs"`
}

// Store owns cron_jobs.json. Reads happen on the scheduler goroutine;
// status writes happen from run goroutines, hence the mutex.
type Store struct {
	path string

	mu   sync.Mutex
	jobs []*Job
}

// NewStore binds a store to its file without loading it.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the file. A missing file yields an empty job list.
func (s *Store) Load() ([]*Job, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.jobs = nil
		s.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, derrors.Wrap(derrors.KindScheduler, "load-jobs", err)
	}
	var f jobsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, derrors.Wrap(derrors.KindScheduler, "load-jobs", err)
	}
	for _, j := range f.Jobs {
		if j != nil && j.ID == "" {
			// Entries written by hand often carry only a name; the id
			// doubles as the default folder name, so derive a safe one.
			j.ID = security.SanitizeID(j.Name)
		}
	}
	s.mu.Lock()
	s.jobs = f.Jobs
	s.mu.Unlock()
	return f.Jobs, nil
}

// Jobs returns the loaded entries.
func (s *Store) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

// ModTime returns the file's mtime, zero when absent.
func (s *Store) ModTime() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// RecordRun persists a run outcome on the entry. No-op when the entry
// has been removed meanwhile.
func (s *Store) RecordRun(id, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, j := range s.jobs {
		if j.ID == id {
			t := at
			j.LastRun = &t
			j.LastStatus = status
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	data, err := json.MarshalIndent(jobsFile{Jobs: s.jobs}, "", "  ")
	if err != nil {
		return derrors.Wrap(derrors.KindScheduler, "record-run", err)
	}
	if err := infra.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return derrors.Wrap(derrors.KindScheduler, "record-run", err)
	}
	return nil
}
