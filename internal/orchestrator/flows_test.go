package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/infra"
	"github.com/PleasePrompto/ductor/internal/session"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

// fakeExecutor scripts provider responses per call and records every
// request it receives.
type fakeExecutor struct {
	reg      *cli.Registry
	requests []cli.Request
	handler  func(call int, req *cli.Request) (*cli.Response, error)
}

func (f *fakeExecutor) Execute(_ context.Context, req *cli.Request) (*cli.Response, error) {
	f.requests = append(f.requests, *req)
	return f.handler(len(f.requests), req)
}

func (f *fakeExecutor) ExecuteStreaming(
	ctx context.Context,
	req *cli.Request,
	_ cli.TextFunc, _ cli.ToolFunc, _ cli.StatusFunc,
) (*cli.Response, error) {
	return f.Execute(ctx, req)
}

func (f *fakeExecutor) Registry() *cli.Registry      { return f.reg }
func (f *fakeExecutor) UpdateDefaultModel(string)    {}
func (f *fakeExecutor) UpdateReasoningEffort(string) {}

func newTestOrchestrator(t *testing.T, fake *fakeExecutor) (*Orchestrator, *session.Manager) {
	t.Helper()
	// Empty PATH keeps provider auth discovery deterministic: neither
	// binary is found, so no cross-provider fallback kicks in.
	t.Setenv("PATH", "")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	sessions, err := session.NewManager(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)

	paths := workspace.ResolvePaths(dir, "")
	if fake.reg == nil {
		fake.reg = cli.NewRegistry()
	}
	return New(cfg, cfgPath, paths, sessions, fake), sessions
}

func seedResumableSession(t *testing.T, m *session.Manager, chatID int64, sessionID string) {
	t.Helper()
	m.GetOrCreate(chatID, cli.ProviderClaude, "sonnet")
	require.NoError(t, m.RecordUsage(chatID, cli.ProviderClaude, sessionID, 0, 0))
}

func TestNormalFlowRetriesOnceOnFailedResume(t *testing.T) {
	fake := &fakeExecutor{
		handler: func(call int, req *cli.Request) (*cli.Response, error) {
			if call == 1 {
				return nil, errors.New("resume id no longer valid")
			}
			return &cli.Response{Text: "fresh reply", SessionID: "sess-new"}, nil
		},
	}
	o, sessions := newTestOrchestrator(t, fake)
	seedResumableSession(t, sessions, 7, "sess-old")

	res := o.HandleMessage(context.Background(), 7, "hello")

	require.Len(t, fake.requests, 2)
	assert.Equal(t, "sess-old", fake.requests[0].ResumeSessionID)
	assert.Equal(t, "", fake.requests[1].ResumeSessionID, "retry starts a fresh session")
	assert.Equal(t, "fresh reply", res.Text)
	assert.Equal(t, "sess-new", sessions.Get(7).Bucket(cli.ProviderClaude).SessionID)
}

func TestNormalFlowNoRetryWithoutResumeID(t *testing.T) {
	fake := &fakeExecutor{
		handler: func(int, *cli.Request) (*cli.Response, error) {
			return nil, errors.New("spawn failed")
		},
	}
	o, _ := newTestOrchestrator(t, fake)

	res := o.HandleMessage(context.Background(), 7, "hello")

	require.Len(t, fake.requests, 1, "fresh sessions fail without a retry")
	assert.Equal(t, SessionResetReply, res.Text)
}

func TestNormalFlowAbortSkipsRetryAndKeepsBucket(t *testing.T) {
	fake := &fakeExecutor{reg: cli.NewRegistry()}
	fake.handler = func(_ int, req *cli.Request) (*cli.Response, error) {
		// A /stop arriving mid-call kills the child and flags the chat;
		// the wait then surfaces an error.
		fake.reg.KillAll(req.ChatID)
		return nil, errors.New("signal: terminated")
	}
	o, sessions := newTestOrchestrator(t, fake)
	seedResumableSession(t, sessions, 7, "sess-old")

	res := o.HandleMessage(context.Background(), 7, "hello")

	require.Len(t, fake.requests, 1, "aborted turns never respawn")
	assert.Equal(t, "", res.Text, "aborted turns vanish silently")
	assert.Equal(t, "sess-old", sessions.Get(7).Bucket(cli.ProviderClaude).SessionID,
		"abort leaves the resume id intact")
}

func TestNormalFlowAbortDuringRetry(t *testing.T) {
	fake := &fakeExecutor{reg: cli.NewRegistry()}
	fake.handler = func(call int, req *cli.Request) (*cli.Response, error) {
		if call == 1 {
			return nil, errors.New("resume id no longer valid")
		}
		fake.reg.KillAll(req.ChatID)
		return nil, errors.New("signal: terminated")
	}
	o, sessions := newTestOrchestrator(t, fake)
	seedResumableSession(t, sessions, 7, "sess-old")

	res := o.HandleMessage(context.Background(), 7, "hello")

	require.Len(t, fake.requests, 2)
	assert.Equal(t, "", res.Text)
	assert.NotEqual(t, SessionResetReply, res.Text, "abort is not a session failure")
}

func TestRestartCommand(t *testing.T) {
	fake := &fakeExecutor{
		handler: func(int, *cli.Request) (*cli.Response, error) {
			return &cli.Response{}, nil
		},
	}
	o, _ := newTestOrchestrator(t, fake)

	res := o.HandleMessage(context.Background(), 7, "/restart")
	assert.Equal(t, "Restart is not available in this runtime.", res.Text)

	stopped := false
	o.RequestRestart = func() { stopped = true }
	res = o.HandleMessage(context.Background(), 7, "/restart")
	assert.Contains(t, res.Text, "Restarting")
	assert.True(t, stopped, "the run loop is asked to stop")

	s := infra.ConsumeRestartSentinel(o.paths.RestartSentinel())
	require.NotNil(t, s, "sentinel written so the wrapper re-execs")
}

func TestNormalFlowSuccessRecordsUsage(t *testing.T) {
	fake := &fakeExecutor{
		handler: func(int, *cli.Request) (*cli.Response, error) {
			return &cli.Response{Text: "hi there", SessionID: "sess-1", CostUSD: 0.02, Tokens: 120}, nil
		},
	}
	o, sessions := newTestOrchestrator(t, fake)

	res := o.HandleMessage(context.Background(), 7, "hello")

	assert.Equal(t, "hi there", res.Text)
	b := sessions.Get(7).Bucket(cli.ProviderClaude)
	assert.Equal(t, "sess-1", b.SessionID)
	assert.Equal(t, 1, b.MessageCount)
	assert.InDelta(t, 0.02, b.TotalCostUSD, 1e-9)
}
