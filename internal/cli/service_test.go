//go:build unix

package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClaude installs a shell script named claude as the only binary on
// PATH. The script receives the composed arguments, so it can branch on
// streaming versus non-streaming invocations.
func fakeClaude(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", dir)
}

func newTestService() *Service {
	return NewService(NewRegistry(), "sonnet", "medium", 10*time.Second)
}

func streamRequest(chatID int64) *Request {
	return &Request{ChatID: chatID, Prompt: "hi", Provider: ProviderClaude, Model: "sonnet"}
}

func TestExecuteStreamingDeliversResult(t *testing.T) {
	fakeClaude(t, `
echo '{"type":"system","subtype":"init","session_id":"sess-1"}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"working"}]}}'
echo '{"type":"result","subtype":"success","is_error":false,"result":"done","session_id":"sess-1","total_cost_usd":0.01}'`)

	svc := newTestService()
	var deltas []string
	resp, err := svc.ExecuteStreaming(context.Background(), streamRequest(7),
		func(text string) { deltas = append(deltas, text) }, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.False(t, resp.StreamFallback)
	assert.Equal(t, []string{"working"}, deltas)
}

func TestExecuteStreamingSynthesizesFromAccumulatedText(t *testing.T) {
	// The stream dies after emitting deltas but before the result event.
	fakeClaude(t, `
echo '{"type":"system","subtype":"init","session_id":"sess-1"}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"Hello "}]}}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"world"}]}}'`)

	svc := newTestService()
	resp, err := svc.ExecuteStreaming(context.Background(), streamRequest(7), nil, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.True(t, resp.StreamFallback)
}

func TestExecuteStreamingRetriesNonStreaming(t *testing.T) {
	// Streaming produces nothing at all; the non-streaming retry
	// succeeds and the response carries the fallback flag.
	fakeClaude(t, `
case "$*" in
*stream-json*) exit 0 ;;
*) printf '%s' '{"type":"result","subtype":"success","is_error":false,"result":"recovered","session_id":"sess-2","total_cost_usd":0.01}' ;;
esac`)

	svc := newTestService()
	resp, err := svc.ExecuteStreaming(context.Background(), streamRequest(7), nil, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, "sess-2", resp.SessionID)
	assert.True(t, resp.StreamFallback)
}

func TestExecuteStreamingAbortedChatReturnsEmpty(t *testing.T) {
	fakeClaude(t, `
echo '{"type":"system","subtype":"init","session_id":"sess-1"}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}'`)

	svc := newTestService()
	svc.Registry().KillAll(7)

	resp, err := svc.ExecuteStreaming(context.Background(), streamRequest(7), nil, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "", resp.Text, "aborted chats deliver nothing")
	assert.False(t, resp.StreamFallback)
}

func TestExecuteMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	svc := newTestService()
	_, err := svc.Execute(context.Background(), streamRequest(7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cli_not_found_claude")
}
