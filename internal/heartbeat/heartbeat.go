// Package heartbeat wakes the agent periodically so it can volunteer
// followups without user input.
package heartbeat

import (
	"context"
	"time"

	"github.com/PleasePrompto/ductor/internal/chat"
	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/PleasePrompto/ductor/internal/orchestrator"
	"github.com/PleasePrompto/ductor/internal/task"
)

var log = logging.Component("heartbeat")

// Observer drives the heartbeat loop for every allowed chat.
type Observer struct {
	cfg  *config.Config
	orch *orchestrator.Orchestrator
	pipe *chat.Pipeline
	gw   chat.Gateway
}

// NewObserver wires the observer.
func NewObserver(cfg *config.Config, orch *orchestrator.Orchestrator, pipe *chat.Pipeline, gw chat.Gateway) *Observer {
	return &Observer{cfg: cfg, orch: orch, pipe: pipe, gw: gw}
}

// Run ticks at the configured interval until ctx is done. Every tick
// sweeps stale processes before prompting; a wall-clock gap far beyond
// the interval additionally flags a likely host suspend.
func (o *Observer) Run(ctx context.Context) error {
	interval := time.Duration(o.cfg.Heartbeat.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastBeat := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := time.Now()
		if gap := now.Sub(lastBeat); gap > 2*interval {
			log.Warnf("Wall-clock gap of %s detected (host suspend?)",
				gap.Round(time.Second))
		}
		lastBeat = now

		o.tick(ctx)
	}
}

// tick is one heartbeat pass: sweep stale children, then beat.
func (o *Observer) tick(ctx context.Context) {
	o.sweepStale()
	o.beat(ctx)
}

// sweepStale kills registered processes older than twice the CLI
// timeout. Monotonic timers stall across suspend, so these children
// would otherwise outlive their deadline unbounded.
func (o *Observer) sweepStale() {
	maxAge := 2 * time.Duration(o.cfg.CLITimeoutSecs) * time.Second
	if killed := o.orch.Registry().KillStale(maxAge); killed > 0 {
		log.Warnf("Killed %d stale process(es)", killed)
	}
}

func (o *Observer) beat(ctx context.Context) {
	window := task.QuietWindow{
		Start: o.cfg.Heartbeat.QuietStart,
		End:   o.cfg.Heartbeat.QuietEnd,
	}
	hour := time.Now().In(config.ResolveTimezone(o.cfg.UserTimezone)).Hour()
	if window.Contains(hour) {
		log.Debugf("Heartbeat suppressed, hour %d inside quiet window [%d,%d)",
			hour, window.Start, window.End)
		return
	}

	for _, chatID := range o.cfg.AllowedUserIDs {
		if o.pipe.IsBusy(chatID) {
			log.Debugf("Heartbeat skipped for busy chat %d", chatID)
			continue
		}
		o.beatChat(ctx, chatID)
	}
}

// beatChat holds the chat lock for the full turn so a user message
// arriving mid-heartbeat queues behind it.
func (o *Observer) beatChat(ctx context.Context, chatID int64) {
	if err := o.pipe.Acquire(ctx, chatID); err != nil {
		return
	}
	defer o.pipe.Release(chatID)

	text, err := o.orch.HandleHeartbeat(ctx, chatID)
	if err != nil {
		log.Warnf("Heartbeat failed chat=%d: %v", chatID, err)
		return
	}
	if text == "" {
		return
	}
	if _, err := o.gw.SendMessage(ctx, chatID, text, chat.SendOptions{}); err != nil {
		log.Errorf("Heartbeat delivery failed chat=%d: %v", chatID, err)
	}
}
