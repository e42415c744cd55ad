// Package app assembles the runtime: configuration, workspace, session
// store, CLI service, orchestrator, ingress pipeline, and the
// background observers. A chat transport plugs into ProcessMessage and
// ProcessCallback.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PleasePrompto/ductor/internal/chat"
	"github.com/PleasePrompto/ductor/internal/cleanup"
	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/cron"
	"github.com/PleasePrompto/ductor/internal/heartbeat"
	"github.com/PleasePrompto/ductor/internal/infra"
	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/PleasePrompto/ductor/internal/orchestrator"
	"github.com/PleasePrompto/ductor/internal/session"
	"github.com/PleasePrompto/ductor/internal/task"
	"github.com/PleasePrompto/ductor/internal/webhook"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

var log = logging.Component("app")

// App is the fully wired runtime.
type App struct {
	Config   *config.Config
	Paths    workspace.Paths
	Gateway  chat.Gateway
	Pipeline *chat.Pipeline
	Orch     *orchestrator.Orchestrator

	sessions  *session.Manager
	svc       *cli.Service
	scheduler *cron.Scheduler
	webhookD  *webhook.CoreDispatcher
	whStore   *webhook.Store
	pidLock   *infra.PIDLock
	stop      chan struct{}
	stopOnce  sync.Once
}

// Options override defaults at assembly time.
type Options struct {
	Home     string // data root; DUCTOR_HOME / ~/.ductor when empty
	LogLevel string // overrides the configured level
	Gateway  chat.Gateway
}

// New assembles the runtime. The workspace is initialized, the PID lock
// taken, and every component wired; observers start in Run.
func New(opts Options) (*App, error) {
	paths := workspace.ResolvePaths(opts.Home, templateDir())
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}

	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		return nil, err
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if err := logging.Setup(level, paths.LogsDir()); err != nil {
		return nil, err
	}

	pidLock, err := infra.AcquirePIDLock(paths.PIDPath())
	if err != nil {
		return nil, err
	}

	if err := workspace.Init(paths); err != nil {
		pidLock.Release()
		return nil, err
	}
	workspace.InjectRuntimeEnvironment(paths, cfg.DockerContainer)

	sessions, err := session.NewManager(paths.SessionsPath())
	if err != nil {
		// Corrupt state is quarantined rather than fatal: rename and
		// start fresh.
		log.Errorf("Session store unreadable, starting fresh: %v", err)
		_ = os.Rename(paths.SessionsPath(), paths.SessionsPath()+".corrupt")
		sessions, err = session.NewManager(paths.SessionsPath())
		if err != nil {
			pidLock.Release()
			return nil, err
		}
	}

	timeout := time.Duration(cfg.CLITimeoutSecs) * time.Second
	registry := cli.NewRegistry()
	svc := cli.NewService(registry, cfg.Model, cfg.ReasoningEffort, timeout)

	orch := orchestrator.New(cfg, paths.ConfigPath(), paths, sessions, svc)

	gw := opts.Gateway
	if gw == nil {
		gw = chat.NewLoggingGateway()
	}
	pipe := chat.NewPipeline(gw, cfg.AllowedUserIDs)
	orch.IsBusy = pipe.IsBusy

	deps := task.NewDepQueue()
	runner := task.NewRunner(cfg, svc, deps)

	cronStore := cron.NewStore(paths.CronJobsPath())
	scheduler := cron.NewScheduler(cronStore, runner, cfg, paths)
	orch.CronSummary = scheduler.Summary

	whStore, err := webhook.NewStore(paths.WebhooksPath())
	if err != nil {
		pidLock.Release()
		return nil, err
	}
	if cfg.Webhook.Enabled && cfg.Webhook.GlobalToken == "" {
		if token, terr := webhook.GenerateToken(); terr == nil {
			cfg.Webhook.GlobalToken = token
			if uerr := config.Update(paths.ConfigPath(), map[string]any{"webhook": cfg.Webhook}); uerr != nil {
				log.Warnf("Webhook token persist failed: %v", uerr)
			} else {
				log.Infof("Generated webhook bearer token (persisted to config)")
			}
		}
	}

	a := &App{
		Config:    cfg,
		Paths:     paths,
		Gateway:   gw,
		Pipeline:  pipe,
		Orch:      orch,
		sessions:  sessions,
		svc:       svc,
		scheduler: scheduler,
		whStore:   whStore,
		pidLock:   pidLock,
		stop:      make(chan struct{}),
	}
	orch.RequestRestart = a.Stop
	a.webhookD = webhook.NewCoreDispatcher(cfg, whStore, orch, pipe, gw, runner, paths)
	a.wirePipeline()
	scheduler.OnResult = a.deliverTaskResult

	for name, status := range cli.CheckAllAuth() {
		log.Infof("Provider %s: %s", name, status)
	}
	return a, nil
}

// templateDir locates the bundled home_defaults directory next to the
// executable, falling back to the working directory.
func templateDir() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "home_defaults")
		if info, serr := os.Stat(candidate); serr == nil && info.IsDir() {
			return candidate
		}
	}
	return "home_defaults"
}

// wirePipeline connects the ingress stages to the orchestrator.
func (a *App) wirePipeline() {
	a.Pipeline.SetAbortHandler(func(ctx context.Context, chatID int64, _ chat.Message) bool {
		killed := a.Orch.Registry().KillAll(chatID)
		reply := "Nothing is running."
		if killed > 0 {
			reply = fmt.Sprintf("Stopped %d process(es).", killed)
		}
		a.send(ctx, chatID, reply, chat.SendOptions{})
		return true
	})

	a.Pipeline.SetQuickHandler(func(ctx context.Context, chatID int64, msg chat.Message) bool {
		res := a.Orch.HandleMessage(ctx, chatID, msg.Text)
		if res.Text != "" || len(res.Buttons) > 0 {
			a.send(ctx, chatID, res.Text, chat.SendOptions{Buttons: res.Buttons})
		}
		return true
	})

	a.Pipeline.SetHandler(func(ctx context.Context, msg chat.Message) {
		res := a.Orch.HandleMessage(ctx, msg.ChatID, msg.Text)
		if res.Text == "" && len(res.Buttons) == 0 {
			return
		}
		a.send(ctx, msg.ChatID, res.Text, chat.SendOptions{
			ReplyTo: msg.MessageID,
			TopicID: msg.TopicID,
			Buttons: res.Buttons,
		})
	})
}

func (a *App) send(ctx context.Context, chatID int64, text string, opts chat.SendOptions) {
	if _, err := a.Gateway.SendMessage(ctx, chatID, text, opts); err != nil {
		log.Errorf("Send failed chat=%d: %v", chatID, err)
	}
}

// deliverTaskResult forwards a finished cron run to every allowed chat.
func (a *App) deliverTaskResult(job *cron.Job, res *task.RunResult) {
	ctx := context.Background()
	var text string
	if res.Status == task.StatusSuccess {
		text = fmt.Sprintf("Task %q finished.\n\n%s", job.Name, res.Output)
	} else {
		text = fmt.Sprintf("Task %q failed: %s", job.Name, res.Status)
	}
	for _, chatID := range a.Config.AllowedUserIDs {
		a.send(ctx, chatID, text, chat.SendOptions{})
	}
}

// ProcessMessage is the transport entry for one inbound message.
func (a *App) ProcessMessage(ctx context.Context, msg chat.Message) {
	a.Pipeline.Process(ctx, msg)
}

// ProcessCallback is the transport entry for one inline-button press.
func (a *App) ProcessCallback(ctx context.Context, cb chat.Callback) {
	if a.Pipeline.HandleCallback(ctx, cb) {
		return
	}
	res := a.Orch.HandleCallback(ctx, cb.ChatID, cb.Data)
	if res.Text != "" || len(res.Buttons) > 0 {
		a.send(ctx, cb.ChatID, res.Text, chat.SendOptions{Buttons: res.Buttons})
	}
}

// Run starts every enabled observer and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-a.stop:
			return context.Canceled
		}
	})
	g.Go(func() error { return a.scheduler.Run(gctx) })
	g.Go(func() error {
		workspace.WatchRuleFiles(gctx, a.Paths.Workspace())
		return gctx.Err()
	})
	g.Go(func() error {
		workspace.WatchSkills(gctx, a.Paths)
		return gctx.Err()
	})

	if a.Config.Heartbeat.Enabled {
		hb := heartbeat.NewObserver(a.Config, a.Orch, a.Pipeline, a.Gateway)
		g.Go(func() error { return hb.Run(gctx) })
	}
	if a.Config.Cleanup.Enabled {
		sw := cleanup.NewSweeper(a.Config, a.Paths)
		g.Go(func() error { return sw.Run(gctx) })
	}
	if a.Config.Webhook.Enabled {
		srv := webhook.NewServer(a.Config, a.whStore, a.webhookD)
		g.Go(func() error { return srv.Run(gctx) })
	}

	log.Infof("ductor running, data root %s", a.Paths.Root)
	err := g.Wait()
	a.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// shutdown releases shared resources and removes skill links pointing
// into the workspace.
func (a *App) shutdown() {
	log.Infof("Shutting down")
	if err := a.sessions.Save(); err != nil {
		log.Warnf("Final session save failed: %v", err)
	}
	workspace.CleanupSkillLinks(a.Paths)
	a.pidLock.Release()
}

// Stop ends Run without an external signal, used by /restart.
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// RestartRequested reports whether a restart sentinel was written during
// this run. The process should exit with the restart code when true.
func (a *App) RestartRequested() bool {
	return infra.ConsumeRestartSentinel(a.Paths.RestartSentinel()) != nil
}
