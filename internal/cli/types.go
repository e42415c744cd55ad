// Package cli spawns the provider binaries, parses their event streams,
// and tracks every child process in a kill-capable registry.
package cli

import "time"

// Request describes one provider call.
type Request struct {
	ChatID             int64
	Prompt             string
	SystemPrompt       string
	AppendSystemPrompt string
	ResumeSessionID    string
	ContinueLast       bool
	Provider           string
	Model              string
	ReasoningEffort    string
	PermissionMode     string
	FileAccess         string
	MaxTurns           int
	MaxBudgetUSD       float64
	ExtraArgs          []string
	WorkingDir         string
	Timeout            time.Duration
	Label              string
}

// Response is the normalized final result of a provider call.
type Response struct {
	Text           string
	SessionID      string
	CostUSD        float64
	Tokens         int64
	IsError        bool
	StreamFallback bool
}

// Streaming callbacks. All are optional; nil callbacks are skipped.
type (
	// TextFunc receives assistant text chunks in arrival order.
	TextFunc func(chunk string)
	// ToolFunc receives a short label each time the agent invokes a tool.
	ToolFunc func(label string)
	// StatusFunc receives system status labels (thinking, compacting, ...).
	StatusFunc func(label string)
)

// EventType enumerates the normalized stream events.
type EventType string

const (
	EventTextDelta       EventType = "text_delta"
	EventToolUse         EventType = "tool_use"
	EventSystemInit      EventType = "system_init"
	EventSystemStatus    EventType = "system_status"
	EventCompactBoundary EventType = "compact_boundary"
	EventResult          EventType = "result"
)

// StreamEvent is one normalized event from a provider's stdout stream.
type StreamEvent struct {
	Type      EventType
	Text      string
	Label     string
	SessionID string
	Trigger   string
	PreTokens int64
	Result    *Response
}
