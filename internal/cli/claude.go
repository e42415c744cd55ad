package cli

import (
	"encoding/json"
	"strconv"
)

// ClaudeProvider composes and parses calls to the Claude Code CLI.
type ClaudeProvider struct{}

func (ClaudeProvider) Name() string { return ProviderClaude }

func (ClaudeProvider) Binary() string { return "claude" }

// BuildArgs composes the command line. The prompt goes after a "--"
// separator; on Windows the service feeds it via stdin instead and
// passes promptInArgs=false.
func (ClaudeProvider) BuildArgs(req *Request, streaming, promptInArgs bool) []string {
	args := []string{"-p"}
	if streaming {
		args = append(args, "--output-format", "stream-json", "--verbose")
	} else {
		args = append(args, "--output-format", "json")
	}
	if req.PermissionMode != "" {
		args = append(args, "--permission-mode", req.PermissionMode)
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	if req.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.AppendSystemPrompt)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}
	if req.MaxBudgetUSD > 0 {
		args = append(args, "--max-budget-usd",
			strconv.FormatFloat(req.MaxBudgetUSD, 'f', -1, 64))
	}
	switch {
	case req.ResumeSessionID != "":
		args = append(args, "--resume", req.ResumeSessionID)
	case req.ContinueLast:
		args = append(args, "--continue")
	}
	args = append(args, req.ExtraArgs...)
	if promptInArgs {
		args = append(args, "--", req.Prompt)
	}
	return args
}

// claudeResult is the single-object JSON emitted in non-streaming mode
// and as the final stream event.
type claudeResult struct {
	Type         string  `json:"type"`
	Subtype      string  `json:"subtype"`
	IsError      bool    `json:"is_error"`
	Result       string  `json:"result"`
	SessionID    string  `json:"session_id"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Usage        struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// ParseResult parses the non-streaming JSON output.
func (ClaudeProvider) ParseResult(data []byte) (*Response, error) {
	var res claudeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &Response{
		Text:      res.Result,
		SessionID: res.SessionID,
		CostUSD:   res.TotalCostUSD,
		Tokens:    res.Usage.InputTokens + res.Usage.OutputTokens,
		IsError:   res.IsError,
	}, nil
}

type claudeStreamLine struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Message   struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
			Name string `json:"name"`
		} `json:"content"`
	} `json:"message"`
	CompactMetadata struct {
		Trigger   string `json:"trigger"`
		PreTokens int64  `json:"pre_tokens"`
	} `json:"compact_metadata"`
}

// ParseEvent maps one NDJSON line to normalized events. Malformed lines
// return nil events and are skipped by the reader.
func (p ClaudeProvider) ParseEvent(line []byte) []StreamEvent {
	var ev claudeStreamLine
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil
	}

	switch ev.Type {
	case "system":
		switch ev.Subtype {
		case "init":
			return []StreamEvent{{Type: EventSystemInit, SessionID: ev.SessionID}}
		case "compact_boundary":
			return []StreamEvent{{
				Type:      EventCompactBoundary,
				Trigger:   ev.CompactMetadata.Trigger,
				PreTokens: ev.CompactMetadata.PreTokens,
			}}
		case "":
			return nil
		default:
			return []StreamEvent{{Type: EventSystemStatus, Label: ev.Subtype}}
		}

	case "assistant":
		var events []StreamEvent
		for _, block := range ev.Message.Content {
			switch block.Type {
			case "text":
				if block.Text != "" {
					events = append(events, StreamEvent{Type: EventTextDelta, Text: block.Text})
				}
			case "tool_use":
				events = append(events, StreamEvent{Type: EventToolUse, Label: block.Name})
			}
		}
		return events

	case "result":
		res, err := (ClaudeProvider{}).ParseResult(line)
		if err != nil {
			return nil
		}
		return []StreamEvent{{Type: EventResult, SessionID: res.SessionID, Result: res}}
	}
	return nil
}
