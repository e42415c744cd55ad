package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/PleasePrompto/ductor/internal/derrors"
)

// Provider is one agent CLI the service can drive.
type Provider interface {
	Name() string
	Binary() string
	BuildArgs(req *Request, streaming, promptInArgs bool) []string
	ParseEvent(line []byte) []StreamEvent
	ParseResult(data []byte) (*Response, error)
}

// maxStreamLine caps a single NDJSON line; tool output inside events can
// get large.
const maxStreamLine = 4 * 1024 * 1024

// Service executes provider calls and owns the mutable default target.
type Service struct {
	registry  *Registry
	providers map[string]Provider

	mu             sync.Mutex
	defaultModel   string
	defaultEffort  string
	defaultTimeout time.Duration
}

// NewService wires the two providers over a shared process registry.
func NewService(registry *Registry, model, effort string, timeout time.Duration) *Service {
	return &Service{
		registry: registry,
		providers: map[string]Provider{
			ProviderClaude: ClaudeProvider{},
			ProviderCodex:  CodexProvider{},
		},
		defaultModel:   model,
		defaultEffort:  effort,
		defaultTimeout: timeout,
	}
}

// UpdateDefaultModel changes the model applied to requests that carry none.
func (s *Service) UpdateDefaultModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultModel = model
}

// UpdateReasoningEffort changes the default Codex reasoning effort.
func (s *Service) UpdateReasoningEffort(effort string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultEffort = effort
}

// Registry exposes the process registry for abort paths.
func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) fill(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	if req.Provider == "" {
		req.Provider = ProviderFor(req.Model)
	}
	if req.ReasoningEffort == "" && req.Provider == ProviderCodex {
		req.ReasoningEffort = s.defaultEffort
	}
	if req.Timeout <= 0 {
		req.Timeout = s.defaultTimeout
	}
	if req.Label == "" {
		req.Label = req.Provider
	}
}

func (s *Service) provider(name string) (Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, derrors.CLI("provider", "unknown provider "+name)
	}
	return p, nil
}

// promptViaStdin reports whether the prompt must bypass the command
// line. Windows mangles long multi-line arguments.
func promptViaStdin() bool { return runtime.GOOS == "windows" }

func (s *Service) spawn(
	ctx context.Context,
	p Provider,
	req *Request,
	streaming bool,
) (*exec.Cmd, context.CancelFunc, error) {
	promptInArgs := !promptViaStdin()
	args := p.BuildArgs(req, streaming, promptInArgs)

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	cmd := exec.CommandContext(runCtx, p.Binary(), args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	if !promptInArgs {
		cmd.Stdin = strings.NewReader(req.Prompt)
	}
	setupProcAttr(cmd)
	return cmd, cancel, nil
}

// Execute runs a non-streaming call and parses the final result.
func (s *Service) Execute(ctx context.Context, req *Request) (*Response, error) {
	s.fill(req)
	p, err := s.provider(req.Provider)
	if err != nil {
		return nil, err
	}

	cmd, cancel, err := s.spawn(ctx, p, req, false)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, derrors.CLI("spawn", "cli_not_found_"+req.Provider)
		}
		return nil, derrors.Wrap(derrors.KindCLI, "spawn", err)
	}
	regID := s.registry.Register(req.ChatID, cmd, req.Label)
	waitErr := cmd.Wait()
	s.registry.Unregister(regID)

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || cmdTimedOut(cmd, waitErr) {
			return nil, derrors.CLI("execute", "timeout")
		}
		// Providers report many agent-level failures on stdout with a
		// parseable result; prefer that over the exit code.
		if resp, perr := p.ParseResult(stdout.Bytes()); perr == nil && resp.Text != "" {
			resp.IsError = true
			return resp, nil
		}
		return nil, derrors.Wrap(derrors.KindCLI, "execute",
			errors.Join(waitErr, errors.New(strings.TrimSpace(stderr.String()))))
	}

	resp, perr := p.ParseResult(stdout.Bytes())
	if perr != nil {
		return nil, derrors.Wrap(derrors.KindCLI, "parse-result", perr)
	}
	return resp, nil
}

func cmdTimedOut(cmd *exec.Cmd, waitErr error) bool {
	// CommandContext kills on deadline; the wait error then reports the
	// kill signal rather than the context error.
	return cmd.ProcessState != nil && !cmd.ProcessState.Exited() &&
		strings.Contains(waitErr.Error(), "killed")
}

// ExecuteStreaming runs a streaming call, dispatching normalized events
// to the callbacks in arrival order. Fallback rules when the stream ends
// without a result event: aborted chats return empty; accumulated text
// is synthesized into a result; otherwise the call retries once
// non-streaming with the stream-fallback flag set.
func (s *Service) ExecuteStreaming(
	ctx context.Context,
	req *Request,
	onText TextFunc,
	onTool ToolFunc,
	onStatus StatusFunc,
) (*Response, error) {
	s.fill(req)
	p, err := s.provider(req.Provider)
	if err != nil {
		return nil, err
	}

	cmd, cancel, err := s.spawn(ctx, p, req, true)
	if err != nil {
		return nil, err
	}
	defer cancel()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, derrors.Wrap(derrors.KindCLI, "spawn", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, derrors.CLI("spawn", "cli_not_found_"+req.Provider)
		}
		return nil, derrors.Wrap(derrors.KindCLI, "spawn", err)
	}
	regID := s.registry.Register(req.ChatID, cmd, req.Label)
	defer s.registry.Unregister(regID)

	var (
		accumulated []string
		sessionID   string
		result      *Response
		streamErr   bool
		aborted     bool
	)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLine)

	for scanner.Scan() {
		if s.registry.Aborted(req.ChatID) {
			// An independent path already signalled the child.
			aborted = true
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		for _, ev := range p.ParseEvent(line) {
			switch ev.Type {
			case EventTextDelta:
				accumulated = append(accumulated, ev.Text)
				if onText != nil {
					onText(ev.Text)
				}
			case EventToolUse:
				if onTool != nil {
					onTool(ev.Label)
				}
			case EventSystemInit:
				sessionID = ev.SessionID
			case EventSystemStatus:
				if onStatus != nil {
					onStatus(ev.Label)
				}
			case EventCompactBoundary:
				if onStatus != nil {
					onStatus("compacting")
				}
			case EventResult:
				result = ev.Result
				if result.SessionID == "" {
					result.SessionID = sessionID
				}
				if result.IsError {
					streamErr = true
				}
			}
		}
		if result != nil {
			break
		}
	}
	if serr := scanner.Err(); serr != nil && result == nil {
		streamErr = true
		log.Warnf("Stream read error chat=%d: %v", req.ChatID, serr)
	}

	waitErr := cmd.Wait()

	switch {
	case result != nil:
		if result.Text == "" && len(accumulated) > 0 {
			result.Text = strings.Join(accumulated, "")
		}
		return result, nil

	case aborted || s.registry.Aborted(req.ChatID):
		return &Response{SessionID: sessionID}, nil

	case len(accumulated) > 0 && !streamErr:
		log.Warnf("Stream ended without result, synthesizing chat=%d", req.ChatID)
		return &Response{
			Text:           strings.Join(accumulated, ""),
			SessionID:      sessionID,
			StreamFallback: true,
		}, nil

	default:
		if waitErr != nil && (errors.Is(waitErr, context.DeadlineExceeded) ||
			cmdTimedOut(cmd, waitErr)) {
			return nil, derrors.CLI("execute-streaming", "timeout")
		}
		log.Warnf("Stream failed, retrying non-streaming chat=%d", req.ChatID)
		resp, rerr := s.Execute(ctx, req)
		if rerr != nil {
			return nil, rerr
		}
		resp.StreamFallback = true
		return resp, nil
	}
}
