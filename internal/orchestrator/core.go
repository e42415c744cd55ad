// Package orchestrator classifies inbound text, drives the provider
// flows, and owns the cross-cutting state: active model, hooks, and the
// command registry.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/derrors"
	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/PleasePrompto/ductor/internal/security"
	"github.com/PleasePrompto/ductor/internal/session"
	"github.com/PleasePrompto/ductor/internal/workspace"
)

var log = logging.Component("orchestrator")

// InternalErrorReply is the generic user-visible reply for any typed
// core error caught at the orchestrator boundary.
const InternalErrorReply = "An internal error occurred. Please try again."

// SessionResetReply is emitted when the core clears provider state
// after a failed call.
const SessionResetReply = "Something went wrong, so I reset the session. " +
	"Your next message starts fresh."

const directiveOnlyReply = "Model directive noted. Send the directive together " +
	"with a message, e.g. \"@opus summarize my notes\"."

// Executor is the provider-call surface the flows depend on.
// *cli.Service satisfies it.
type Executor interface {
	Execute(ctx context.Context, req *cli.Request) (*cli.Response, error)
	ExecuteStreaming(ctx context.Context, req *cli.Request,
		onText cli.TextFunc, onTool cli.ToolFunc, onStatus cli.StatusFunc) (*cli.Response, error)
	Registry() *cli.Registry
	UpdateDefaultModel(model string)
	UpdateReasoningEffort(effort string)
}

// Orchestrator wires the session store and CLI service into the message
// and heartbeat flows.
type Orchestrator struct {
	cfg      *config.Config
	cfgPath  string
	paths    workspace.Paths
	sessions *session.Manager
	svc      Executor

	hooks    HookRegistry
	commands CommandRegistry

	// IsBusy is injected by the ingress pipeline so the model wizard
	// can refuse to start mid-conversation.
	IsBusy func(chatID int64) bool

	// CronSummary is injected by the cron observer for /cron.
	CronSummary func() string

	// RequestRestart is injected by the runtime; /restart writes the
	// sentinel and then calls it to stop the run loop.
	RequestRestart func()
}

// New builds an orchestrator with the built-in hooks and commands
// registered.
func New(
	cfg *config.Config,
	cfgPath string,
	paths workspace.Paths,
	sessions *session.Manager,
	svc Executor,
) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		cfgPath:  cfgPath,
		paths:    paths,
		sessions: sessions,
		svc:      svc,
	}
	o.hooks.Register(MainMemoryReminder)
	o.registerCommands()
	return o
}

// Config exposes the live configuration (heartbeat, allowlist).
func (o *Orchestrator) Config() *config.Config { return o.cfg }

// Registry exposes the process registry for the abort path.
func (o *Orchestrator) Registry() *cli.Registry { return o.svc.Registry() }

// HandleMessage runs the non-streaming flow for one message.
func (o *Orchestrator) HandleMessage(ctx context.Context, chatID int64, text string) *Result {
	return o.boundary(chatID, func() (*Result, error) {
		return o.route(ctx, chatID, text, nil, nil, nil)
	})
}

// HandleMessageStreaming runs the flow with live callbacks for text
// deltas, tool indicators, and system status.
func (o *Orchestrator) HandleMessageStreaming(
	ctx context.Context,
	chatID int64,
	text string,
	onText cli.TextFunc,
	onTool cli.ToolFunc,
	onStatus cli.StatusFunc,
) *Result {
	return o.boundary(chatID, func() (*Result, error) {
		return o.route(ctx, chatID, text, onText, onTool, onStatus)
	})
}

// boundary converts typed core errors into the generic reply. Full
// detail goes to the log with the chat id.
func (o *Orchestrator) boundary(chatID int64, fn func() (*Result, error)) *Result {
	res, err := fn()
	if err != nil {
		var derr *derrors.Error
		if errors.As(err, &derr) {
			log.Errorf("Core error chat=%d kind=%s op=%s: %v", chatID, derr.Kind, derr.Op, err)
		} else {
			log.Errorf("Unexpected error chat=%d: %v", chatID, err)
		}
		return &Result{Text: InternalErrorReply}
	}
	if res == nil {
		res = &Result{}
	}
	return res
}

func (o *Orchestrator) route(
	ctx context.Context,
	chatID int64,
	text string,
	onText cli.TextFunc,
	onTool cli.ToolFunc,
	onStatus cli.StatusFunc,
) (*Result, error) {
	o.Registry().ClearAborted(chatID)
	security.ScanInput(text)

	d := ParseDirectives(text, cli.IsKnownModel)
	if d.HasModel() && d.DirectiveOnly() {
		return &Result{Text: directiveOnlyReply}, nil
	}

	cmd := firstWord(d.Cleaned)
	if len(cmd) > 1 && cmd[0] == '/' {
		if res, err, ok := o.commands.Dispatch(ctx, o, chatID, d.Cleaned, d.Cleaned); ok {
			return res, err
		}
		// Unknown commands fall through to free-text routing.
	}

	return o.normalFlow(ctx, chatID, d, onText, onTool, onStatus)
}

// resolveTarget picks (provider, model): directive > per-chat override >
// configured default, then falls back across providers via the
// equivalence map when the requested one is unauthenticated.
func (o *Orchestrator) resolveTarget(chatID int64, directiveModel string) (string, string) {
	model := o.cfg.Model
	if sess := o.sessions.Get(chatID); sess != nil && sess.Model != "" {
		model = sess.Model
	}
	if directiveModel != "" {
		model = directiveModel
	}
	provider := cli.ProviderFor(model)

	if cli.CheckAuth(provider) != cli.AuthAuthenticated {
		other := cli.ProviderClaude
		if provider == cli.ProviderClaude {
			other = cli.ProviderCodex
		}
		if cli.CheckAuth(other) == cli.AuthAuthenticated {
			fallback := cli.EquivalentModel(model, other)
			log.Warnf("Provider %s unavailable, falling back to %s/%s", provider, other, fallback)
			return other, fallback
		}
	}
	return provider, model
}

// HandleHeartbeat executes one heartbeat turn. Empty string means
// nothing to deliver.
func (o *Orchestrator) HandleHeartbeat(ctx context.Context, chatID int64) (string, error) {
	sess := o.sessions.Get(chatID)
	if sess == nil {
		return "", nil
	}
	bucket := sess.ActiveBucket()
	if bucket.SessionID == "" {
		return "", nil
	}
	if sess.Provider != o.cfg.Provider {
		return "", nil
	}
	cooldown := time.Duration(o.cfg.Heartbeat.CooldownMinutes) * time.Minute
	if cooldown > 0 && time.Since(sess.LastActiveAt) < cooldown {
		return "", nil
	}

	req := &cli.Request{
		ChatID:          chatID,
		Prompt:          heartbeatPrompt,
		ResumeSessionID: bucket.SessionID,
		Provider:        sess.Provider,
		Model:           sess.Model,
		PermissionMode:  o.cfg.PermissionMode,
		FileAccess:      o.cfg.FileAccess,
		WorkingDir:      o.paths.Workspace(),
		Label:           "heartbeat",
	}
	resp, err := o.svc.Execute(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.IsError || isHeartbeatAck(resp.Text) {
		return "", nil
	}
	if err := o.sessions.RecordUsage(chatID, sess.Provider, resp.SessionID,
		resp.CostUSD, resp.Tokens); err != nil {
		log.Warnf("Heartbeat usage record failed chat=%d: %v", chatID, err)
	}
	return resp.Text, nil
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			return s[:i]
		}
	}
	return s
}

func (o *Orchestrator) readMainMemory() string {
	data, err := os.ReadFile(o.paths.MainMemoryPath())
	if err != nil {
		return ""
	}
	return string(data)
}
