package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeBuildArgsNonStreaming(t *testing.T) {
	req := &Request{
		Prompt:         "hello",
		Model:          "sonnet",
		PermissionMode: "acceptEdits",
		MaxTurns:       25,
		Timeout:        time.Minute,
	}
	args := ClaudeProvider{}.BuildArgs(req, false, true)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-p --output-format json")
	assert.Contains(t, joined, "--permission-mode acceptEdits")
	assert.Contains(t, joined, "--model sonnet")
	assert.Contains(t, joined, "--max-turns 25")
	assert.Equal(t, "hello", args[len(args)-1])
	assert.Equal(t, "--", args[len(args)-2], "prompt is separated from flags")
}

func TestClaudeBuildArgsStreamingResume(t *testing.T) {
	req := &Request{Prompt: "p", ResumeSessionID: "sess-1"}
	args := ClaudeProvider{}.BuildArgs(req, true, true)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "--output-format stream-json --verbose")
	assert.Contains(t, joined, "--resume sess-1")
	assert.NotContains(t, joined, "--continue")
}

func TestClaudeBuildArgsStdinPrompt(t *testing.T) {
	req := &Request{Prompt: "p"}
	args := ClaudeProvider{}.BuildArgs(req, false, false)
	assert.NotContains(t, args, "p", "prompt stays off the command line")
}

func TestClaudeParseResult(t *testing.T) {
	data := []byte(`{"type":"result","subtype":"success","is_error":false,` +
		`"result":"done","session_id":"abc","total_cost_usd":0.12,` +
		`"usage":{"input_tokens":100,"output_tokens":50}}`)
	resp, err := ClaudeProvider{}.ParseResult(data)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, "abc", resp.SessionID)
	assert.InDelta(t, 0.12, resp.CostUSD, 1e-9)
	assert.Equal(t, int64(150), resp.Tokens)
	assert.False(t, resp.IsError)
}

func TestClaudeParseEventStream(t *testing.T) {
	p := ClaudeProvider{}

	init := p.ParseEvent([]byte(`{"type":"system","subtype":"init","session_id":"s1"}`))
	require.Len(t, init, 1)
	assert.Equal(t, EventSystemInit, init[0].Type)
	assert.Equal(t, "s1", init[0].SessionID)

	text := p.ParseEvent([]byte(`{"type":"assistant","message":{"content":` +
		`[{"type":"text","text":"hi"},{"type":"tool_use","name":"Bash"}]}}`))
	require.Len(t, text, 2)
	assert.Equal(t, EventTextDelta, text[0].Type)
	assert.Equal(t, "hi", text[0].Text)
	assert.Equal(t, EventToolUse, text[1].Type)
	assert.Equal(t, "Bash", text[1].Label)

	compact := p.ParseEvent([]byte(`{"type":"system","subtype":"compact_boundary",` +
		`"compact_metadata":{"trigger":"auto","pre_tokens":9000}}`))
	require.Len(t, compact, 1)
	assert.Equal(t, EventCompactBoundary, compact[0].Type)

	assert.Nil(t, p.ParseEvent([]byte(`not json`)), "malformed lines skip")
}

func TestCodexBuildArgs(t *testing.T) {
	req := &Request{
		Prompt:          "do it",
		Model:           "gpt-5.2-codex",
		ReasoningEffort: "high",
		FileAccess:      "full",
	}
	args := CodexProvider{}.BuildArgs(req, true, true)

	joined := strings.Join(args, " ")
	assert.True(t, strings.HasPrefix(joined, "exec --json"))
	assert.Contains(t, joined, "--sandbox danger-full-access")
	assert.Contains(t, joined, "-c model=gpt-5.2-codex")
	assert.Contains(t, joined, "-c model_reasoning_effort=high")
	assert.Equal(t, "do it", args[len(args)-1])
}

func TestCodexBuildArgsResume(t *testing.T) {
	req := &Request{Prompt: "p", ResumeSessionID: "thread-9"}
	args := CodexProvider{}.BuildArgs(req, false, true)
	assert.Equal(t, []string{"exec", "resume", "thread-9"}, args[:3])
}

func TestCodexSandboxMapping(t *testing.T) {
	assert.Equal(t, "danger-full-access", sandboxFor("full"))
	assert.Equal(t, "read-only", sandboxFor("readonly"))
	assert.Equal(t, "workspace-write", sandboxFor("workspace"))
	assert.Equal(t, "workspace-write", sandboxFor(""))
}

func TestCodexParseResultFoldsStream(t *testing.T) {
	data := []byte(strings.Join([]string{
		`{"type":"thread.started","thread_id":"t1"}`,
		`{"type":"item.started","item":{"type":"command_execution","command":"ls -la"}}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"part one"}}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"part two"}}`,
		`{"type":"turn.completed","usage":{"input_tokens":10,"output_tokens":5}}`,
	}, "\n"))

	resp, err := CodexProvider{}.ParseResult(data)
	require.NoError(t, err)
	assert.Equal(t, "t1", resp.SessionID)
	assert.Equal(t, "part one\npart two", resp.Text)
	assert.Equal(t, int64(15), resp.Tokens)
	assert.False(t, resp.IsError)
}

func TestCodexParseResultError(t *testing.T) {
	data := []byte(`{"type":"turn.failed","message":"boom"}`)
	resp, err := CodexProvider{}.ParseResult(data)
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Text, "boom")
}
