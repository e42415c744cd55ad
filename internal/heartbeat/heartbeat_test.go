package heartbeat

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PleasePrompto/ductor/internal/chat"
	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/orchestrator"
	"github.com/PleasePrompto/ductor/internal/session"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

func TestTickSweepsStaleChildren(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.CLITimeoutSecs = 0 // any registered child counts as stale
	cfg.AllowedUserIDs = nil

	sessions, err := session.NewManager(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)
	paths := workspace.ResolvePaths(dir, "")

	reg := cli.NewRegistry()
	svc := cli.NewService(reg, "sonnet", "medium", time.Second)
	orch := orchestrator.New(cfg, cfgPath, paths, sessions, svc)

	gw := chat.NewLoggingGateway()
	obs := NewObserver(cfg, orch, chat.NewPipeline(gw, nil), gw)

	// A never-started command stands in for a child whose deadline
	// stalled across a host suspend.
	reg.Register(99, exec.Command("sleep", "60"), "chat")
	time.Sleep(5 * time.Millisecond)

	obs.tick(context.Background())

	assert.Zero(t, reg.Count(99), "ordinary ticks reap stale children")
	assert.True(t, reg.Aborted(99))
}
