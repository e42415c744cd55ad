// Package cleanup deletes aged top-level files from the exchange
// directories once a day.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

var log = logging.Component("cleanup")

// Sweeper walks the chat-files and output directories at the configured
// local hour and unlinks files past their retention. Subdirectories are
// never touched.
type Sweeper struct {
	cfg   *config.Config
	paths workspace.Paths

	lastRunDay string
}

// NewSweeper wires the sweeper.
func NewSweeper(cfg *config.Config, paths workspace.Paths) *Sweeper {
	return &Sweeper{cfg: cfg, paths: paths}
}

// Run wakes hourly until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.maybeSweep(time.Now())
		}
	}
}

// maybeSweep runs at most once per local day, at the configured hour.
func (s *Sweeper) maybeSweep(now time.Time) {
	local := now.In(config.ResolveTimezone(s.cfg.UserTimezone))
	if local.Hour() != s.cfg.Cleanup.CheckHour {
		return
	}
	day := local.Format("2006-01-02")
	if day == s.lastRunDay {
		return
	}
	s.lastRunDay = day

	s.sweepDir(s.paths.ChatFilesDir(), s.cfg.Cleanup.ChatFilesDays, now)
	s.sweepDir(s.paths.OutputDir(), s.cfg.Cleanup.OutputFilesDays, now)
}

// sweepDir unlinks top-level files older than days. Per-file errors are
// logged and the pass continues.
func (s *Sweeper) sweepDir(dir string, days int, now time.Time) {
	if days <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("Sweep skipped, cannot read %s: %v", dir, err)
		return
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ierr := e.Info()
		if ierr != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if rerr := os.Remove(path); rerr != nil {
			log.Warnf("Sweep could not remove %s: %v", path, rerr)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Infof("Sweep removed %d file(s) from %s (retention %dd)", removed, dir, days)
	}
}
