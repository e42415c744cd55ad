package cron

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/task"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

func TestParserNextFireInZone(t *testing.T) {
	sched, err := parser.Parse("0 7 * * *")
	require.NoError(t, err)

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 06:30 local: the next fire is 07:00 the same day, local time.
	after := time.Date(2026, 3, 10, 6, 30, 0, 0, berlin)
	next := sched.Next(after)
	assert.Equal(t, 7, next.In(berlin).Hour())
	assert.Equal(t, 10, next.In(berlin).Day())

	// 07:30 local: rolls to the next day.
	after = time.Date(2026, 3, 10, 7, 30, 0, 0, berlin)
	next = sched.Next(after)
	assert.Equal(t, 11, next.In(berlin).Day())
}

func TestParserRejectsBadSchedule(t *testing.T) {
	_, err := parser.Parse("not a schedule")
	assert.Error(t, err)
}

func writeJobs(t *testing.T, path string, jobs []*Job) {
	t.Helper()
	data, err := json.MarshalIndent(jobsFile{Jobs: jobs}, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestStoreLoadAndRecordRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron_jobs.json")
	writeJobs(t, path, []*Job{
		{ID: "daily-report", Name: "Daily report", Schedule: "0 7 * * *", Enabled: true},
	})

	store := NewStore(path)
	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	at := time.Now().UTC()
	require.NoError(t, store.RecordRun("daily-report", task.StatusSuccess, at))

	// Reload from disk and verify persistence.
	store2 := NewStore(path)
	jobs, err = store2.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, task.StatusSuccess, jobs[0].LastStatus)
	require.NotNil(t, jobs[0].LastRun)
	assert.WithinDuration(t, at, *jobs[0].LastRun, time.Second)
}

func TestStoreMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	jobs, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestFolderResolution(t *testing.T) {
	paths := workspace.ResolvePaths(t.TempDir(), "")
	s := NewScheduler(NewStore("x"), nil, &config.Config{}, paths)

	abs := string(filepath.Separator) + filepath.Join("opt", "tasks", "x")
	assert.Equal(t, abs, s.folderFor(&Job{ID: "j", TaskFolder: abs}))

	rel := s.folderFor(&Job{ID: "j", TaskFolder: "reports"})
	assert.Equal(t, filepath.Join(paths.CronTasksDir(), "reports"), rel)

	fallback := s.folderFor(&Job{ID: "j"})
	assert.Equal(t, filepath.Join(paths.CronTasksDir(), "j"), fallback)

	// Relative names that would escape cron_tasks fall back to the id.
	escape := s.folderFor(&Job{ID: "j", TaskFolder: "../outside"})
	assert.Equal(t, filepath.Join(paths.CronTasksDir(), "j"), escape)
}

func TestStoreLoadBackfillsID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron_jobs.json")
	writeJobs(t, path, []*Job{
		{Name: "Daily Report", Schedule: "0 7 * * *", Enabled: true},
	})

	jobs, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "daily-report", jobs[0].ID)
}

func TestQuietForRequiresBothBounds(t *testing.T) {
	start := 22
	assert.Nil(t, quietFor(&Job{QuietStart: &start}))

	end := 7
	w := quietFor(&Job{QuietStart: &start, QuietEnd: &end})
	require.NotNil(t, w)
	assert.Equal(t, task.QuietWindow{Start: 22, End: 7}, *w)
}
