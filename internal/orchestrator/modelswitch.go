package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/PleasePrompto/ductor/internal/chat"
	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/config"
)

// ModelSwitchPrefix marks callback data owned by the model wizard.
const ModelSwitchPrefix = "ms:"

var wizardModels = map[string][]string{
	cli.ProviderClaude: {"haiku", "sonnet", "opus"},
	cli.ProviderCodex:  {"gpt-5.2-codex-mini", "gpt-5.2-codex"},
}

var wizardEfforts = []string{"low", "medium", "high", "xhigh"}

// cmdModelWizard opens the interactive picker on a bare /model.
func cmdModelWizard(_ context.Context, o *Orchestrator, chatID int64, _ string) (*Result, error) {
	if o.IsBusy != nil && o.IsBusy(chatID) {
		return &Result{Text: "A message is still being processed. " +
			"Wait for it to finish (or send /stop) before switching models."}, nil
	}
	return &Result{
		Text:    o.wizardHeader(chatID),
		Buttons: providerButtons(),
	}, nil
}

// cmdModelDirect handles "/model <name> [effort]" without the wizard.
func cmdModelDirect(ctx context.Context, o *Orchestrator, chatID int64, text string) (*Result, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return cmdModelWizard(ctx, o, chatID, text)
	}
	model := strings.ToLower(fields[1])
	effort := ""
	if len(fields) > 2 {
		effort = strings.ToLower(fields[2])
	}

	if !cli.IsKnownModel(model) {
		return &Result{Text: fmt.Sprintf(
			"Unknown model %q. Send /model to pick from the list.", model)}, nil
	}
	return o.switchModel(chatID, model, effort)
}

// HandleCallback routes a wizard button press. Unrecognized data is
// ignored with an empty result.
func (o *Orchestrator) HandleCallback(_ context.Context, chatID int64, data string) *Result {
	if !strings.HasPrefix(data, ModelSwitchPrefix) {
		return &Result{}
	}
	parts := strings.SplitN(strings.TrimPrefix(data, ModelSwitchPrefix), ":", 3)

	switch parts[0] {
	case "b": // back to provider list
		return &Result{Text: o.wizardHeader(chatID), Buttons: providerButtons()}

	case "p": // provider chosen, list its models
		if len(parts) < 2 {
			return &Result{}
		}
		provider := parts[1]
		models, ok := wizardModels[provider]
		if !ok {
			return &Result{}
		}
		rows := make([][]chat.Button, 0, len(models)+1)
		for _, m := range models {
			rows = append(rows, []chat.Button{{
				Text:         m,
				CallbackData: ModelSwitchPrefix + "m:" + m,
			}})
		}
		rows = append(rows, []chat.Button{{
			Text:         "« Back",
			CallbackData: ModelSwitchPrefix + "b:root",
		}})
		return &Result{Text: "Pick a model:", Buttons: rows}

	case "m": // model chosen
		if len(parts) < 2 {
			return &Result{}
		}
		model := parts[1]
		if cli.ProviderFor(model) == cli.ProviderCodex {
			rows := make([][]chat.Button, 0, len(wizardEfforts)+1)
			for _, e := range wizardEfforts {
				rows = append(rows, []chat.Button{{
					Text:         e,
					CallbackData: ModelSwitchPrefix + "r:" + e + ":" + model,
				}})
			}
			rows = append(rows, []chat.Button{{
				Text:         "« Back",
				CallbackData: ModelSwitchPrefix + "p:" + cli.ProviderCodex,
			}})
			return &Result{Text: "Pick a reasoning effort for " + model + ":", Buttons: rows}
		}
		res, err := o.switchModel(chatID, model, "")
		if err != nil {
			log.Errorf("Model switch failed chat=%d: %v", chatID, err)
			return &Result{Text: InternalErrorReply}
		}
		return res

	case "r": // effort chosen for a codex model
		if len(parts) < 3 {
			return &Result{}
		}
		res, err := o.switchModel(chatID, parts[2], parts[1])
		if err != nil {
			log.Errorf("Model switch failed chat=%d: %v", chatID, err)
			return &Result{Text: InternalErrorReply}
		}
		return res
	}
	return &Result{}
}

func (o *Orchestrator) wizardHeader(chatID int64) string {
	_, model := o.resolveTarget(chatID, "")
	return fmt.Sprintf("Current model: %s\nPick a provider:", model)
}

func providerButtons() [][]chat.Button {
	return [][]chat.Button{
		{{Text: "Claude", CallbackData: ModelSwitchPrefix + "p:" + cli.ProviderClaude}},
		{{Text: "Codex", CallbackData: ModelSwitchPrefix + "p:" + cli.ProviderCodex}},
	}
}

// switchModel applies a new per-chat target, persists it as the global
// default, and kills any in-flight processes for the chat. The previous
// provider's session bucket survives so switching back resumes it.
func (o *Orchestrator) switchModel(chatID int64, model, effort string) (*Result, error) {
	provider := cli.ProviderFor(model)

	if provider == cli.ProviderCodex && effort != "" {
		valid := false
		for _, e := range wizardEfforts {
			if e == effort {
				valid = true
				break
			}
		}
		if !valid {
			return &Result{Text: fmt.Sprintf(
				"Unknown reasoning effort %q. Use one of: %s.",
				effort, strings.Join(wizardEfforts, ", "))}, nil
		}
	}

	sess := o.sessions.Get(chatID)
	sameModel := sess != nil && sess.Model == model
	if sameModel && (effort == "" || effort == o.cfg.ReasoningEffort) {
		return &Result{Text: fmt.Sprintf("Already running %s.", model)}, nil
	}

	if !sameModel {
		o.Registry().KillAll(chatID)
	}
	o.sessions.GetOrCreate(chatID, provider, model)
	if err := o.sessions.SetTarget(chatID, provider, model); err != nil {
		return nil, err
	}

	o.cfg.Provider = provider
	o.cfg.Model = model
	updates := map[string]any{"provider": provider, "model": model}
	if provider == cli.ProviderCodex && effort != "" {
		o.cfg.ReasoningEffort = effort
		o.svc.UpdateReasoningEffort(effort)
		updates["reasoning_effort"] = effort
	}
	o.svc.UpdateDefaultModel(model)
	if err := config.Update(o.cfgPath, updates); err != nil {
		log.Warnf("Config persist failed after model switch: %v", err)
	}

	reply := fmt.Sprintf("Switched to %s (%s).", model, provider)
	if effort != "" {
		reply = fmt.Sprintf("Switched to %s (%s, %s effort).", model, provider, effort)
	}
	bucket := o.sessions.Get(chatID).Bucket(provider)
	if bucket.SessionID != "" {
		reply += fmt.Sprintf(" Resuming the existing %s conversation (%d message(s)).",
			provider, bucket.MessageCount)
	} else {
		reply += " The next message starts a fresh conversation on this provider."
	}
	return &Result{Text: reply}, nil
}
