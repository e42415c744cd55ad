package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/PleasePrompto/ductor/internal/cli"
)

// heartbeatAck is the token the agent replies with when it has nothing
// proactive to say. Replies starting with it are suppressed.
const heartbeatAck = "HEARTBEAT_OK"

const heartbeatPrompt = "This is an automated heartbeat check, not a user message. " +
	"Review the conversation so far. If there is something genuinely useful to " +
	"proactively tell the user right now (a followup you promised, a result that " +
	"finished, a reminder that is due), say it concisely. " +
	"Otherwise reply with exactly " + heartbeatAck + " and nothing else."

func isHeartbeatAck(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), heartbeatAck)
}

// normalFlow is the free-text path: resolve the target, build the
// request with session resume and hooks, execute, record usage.
func (o *Orchestrator) normalFlow(
	ctx context.Context,
	chatID int64,
	d Directives,
	onText cli.TextFunc,
	onTool cli.ToolFunc,
	onStatus cli.StatusFunc,
) (*Result, error) {
	provider, model := o.resolveTarget(chatID, d.Model)

	sess := o.sessions.GetOrCreate(chatID, provider, model)
	if sess.Provider != provider || sess.Model != model {
		if err := o.sessions.SetTarget(chatID, provider, model); err != nil {
			log.Warnf("Target update failed chat=%d: %v", chatID, err)
		}
	}
	bucket := sess.Bucket(provider)
	isNew := bucket.SessionID == ""

	hookCtx := HookContext{
		ChatID:       chatID,
		MessageCount: bucket.MessageCount,
		IsNewSession: isNew,
		Provider:     provider,
		Model:        model,
	}
	prompt := o.hooks.Apply(d.Cleaned, hookCtx)

	req := &cli.Request{
		ChatID:          chatID,
		Prompt:          prompt,
		ResumeSessionID: bucket.SessionID,
		Provider:        provider,
		Model:           model,
		PermissionMode:  o.cfg.PermissionMode,
		FileAccess:      o.cfg.FileAccess,
		MaxTurns:        o.cfg.MaxTurns,
		MaxBudgetUSD:    o.cfg.MaxBudgetUSD,
		WorkingDir:      o.paths.Workspace(),
		Label:           "chat",
	}
	if isNew {
		if mem := o.readMainMemory(); mem != "" {
			req.AppendSystemPrompt = "## Long-term memory\n" + mem
		}
	}

	resp, err := o.execute(ctx, req, onText, onTool, onStatus)

	// A user abort surfaces as an error from the killed child. Bail out
	// before the retry path so the turn vanishes without touching the
	// bucket or spawning a second process.
	if o.Registry().Aborted(chatID) {
		return &Result{}, nil
	}

	// A dead resume id is recoverable: clear the bucket and retry the
	// same message exactly once as a fresh session.
	if (err != nil || (resp != nil && resp.IsError)) && req.ResumeSessionID != "" {
		log.Warnf("Call failed with resume id, retrying fresh chat=%d: %v", chatID, err)
		if cerr := o.sessions.ClearBucket(chatID, provider); cerr != nil {
			log.Warnf("Bucket clear failed chat=%d: %v", chatID, cerr)
		}
		retry := *req
		retry.ResumeSessionID = ""
		if mem := o.readMainMemory(); mem != "" {
			retry.AppendSystemPrompt = "## Long-term memory\n" + mem
		}
		resp, err = o.execute(ctx, &retry, onText, onTool, onStatus)
		if o.Registry().Aborted(chatID) {
			return &Result{}, nil
		}
	}

	if err != nil || resp == nil || resp.IsError {
		o.Registry().KillAll(chatID)
		if cerr := o.sessions.ClearBucket(chatID, provider); cerr != nil {
			log.Warnf("Bucket clear failed chat=%d: %v", chatID, cerr)
		}
		if err != nil {
			log.Errorf("Provider call failed chat=%d provider=%s: %v", chatID, provider, err)
		}
		return &Result{Text: SessionResetReply}, nil
	}

	if o.Registry().Aborted(chatID) || resp.Text == "" && resp.SessionID == "" {
		// Abort mid-stream: nothing to deliver, nothing to record.
		return &Result{}, nil
	}

	if rerr := o.sessions.RecordUsage(chatID, provider, resp.SessionID,
		resp.CostUSD, resp.Tokens); rerr != nil {
		log.Warnf("Usage record failed chat=%d: %v", chatID, rerr)
	}

	text := resp.Text
	if sess := o.sessions.Get(chatID); sess != nil {
		warnAfter := time.Duration(o.cfg.SessionWarnHrs) * time.Hour
		text += sess.AgeFooter(time.Now().UTC(), warnAfter)
	}

	return &Result{Text: text, StreamFallback: resp.StreamFallback}, nil
}

func (o *Orchestrator) execute(
	ctx context.Context,
	req *cli.Request,
	onText cli.TextFunc,
	onTool cli.ToolFunc,
	onStatus cli.StatusFunc,
) (*cli.Response, error) {
	if onText == nil && onTool == nil && onStatus == nil {
		return o.svc.Execute(ctx, req)
	}
	return o.svc.ExecuteStreaming(ctx, req, onText, onTool, onStatus)
}
