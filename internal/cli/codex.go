package cli

import (
	"encoding/json"
	"strings"
)

// CodexProvider composes and parses calls to the Codex CLI.
type CodexProvider struct{}

func (CodexProvider) Name() string { return ProviderCodex }

func (CodexProvider) Binary() string { return "codex" }

// sandboxFor maps the configured file-access level to a Codex sandbox.
func sandboxFor(fileAccess string) string {
	switch fileAccess {
	case "full":
		return "danger-full-access"
	case "readonly":
		return "read-only"
	default:
		return "workspace-write"
	}
}

// BuildArgs composes the command line. Resume uses the dedicated
// subcommand with the session id; the prompt is the final positional
// argument unless it goes through stdin.
func (CodexProvider) BuildArgs(req *Request, _ bool, promptInArgs bool) []string {
	args := []string{"exec"}
	if req.ResumeSessionID != "" {
		args = append(args, "resume", req.ResumeSessionID)
	}
	args = append(args, "--json", "--color", "never",
		"--sandbox", sandboxFor(req.FileAccess))
	if req.Model != "" {
		args = append(args, "-c", "model="+req.Model)
	}
	if req.ReasoningEffort != "" {
		args = append(args, "-c", "model_reasoning_effort="+req.ReasoningEffort)
	}
	args = append(args, req.ExtraArgs...)
	if promptInArgs {
		args = append(args, req.Prompt)
	} else {
		args = append(args, "-")
	}
	return args
}

type codexStreamLine struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
	Item     struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Command string `json:"command"`
	} `json:"item"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// ParseEvent maps one Codex JSONL event to normalized events.
func (CodexProvider) ParseEvent(line []byte) []StreamEvent {
	var ev codexStreamLine
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil
	}

	switch ev.Type {
	case "thread.started":
		return []StreamEvent{{Type: EventSystemInit, SessionID: ev.ThreadID}}

	case "item.started":
		switch ev.Item.Type {
		case "command_execution":
			label := firstToken(ev.Item.Command)
			if label == "" {
				label = "command"
			}
			return []StreamEvent{{Type: EventToolUse, Label: label}}
		case "reasoning":
			return []StreamEvent{{Type: EventSystemStatus, Label: "thinking"}}
		}
		return nil

	case "item.completed":
		if ev.Item.Type == "agent_message" && ev.Item.Text != "" {
			return []StreamEvent{{Type: EventTextDelta, Text: ev.Item.Text}}
		}
		return nil

	case "turn.completed":
		return []StreamEvent{{
			Type: EventResult,
			Result: &Response{
				Tokens: ev.Usage.InputTokens + ev.Usage.OutputTokens,
			},
		}}

	case "error", "turn.failed":
		return []StreamEvent{{
			Type:   EventResult,
			Result: &Response{Text: ev.Message, IsError: true},
		}}
	}
	return nil
}

// ParseResult folds the full JSONL output of a non-streaming run into a
// single response. Codex has no single-object result format, so the
// accumulated agent text plus the last turn's usage is the result.
func (p CodexProvider) ParseResult(data []byte) (*Response, error) {
	resp := &Response{}
	var parts []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, ev := range p.ParseEvent([]byte(line)) {
			switch ev.Type {
			case EventSystemInit:
				resp.SessionID = ev.SessionID
			case EventTextDelta:
				parts = append(parts, ev.Text)
			case EventResult:
				if ev.Result.IsError {
					resp.IsError = true
					if ev.Result.Text != "" {
						parts = append(parts, ev.Result.Text)
					}
				}
				resp.Tokens += ev.Result.Tokens
			}
		}
	}
	resp.Text = strings.Join(parts, "\n")
	return resp, nil
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
