package cli

import (
	"fmt"

	"github.com/PleasePrompto/ductor/internal/config"
	"github.com/PleasePrompto/ductor/internal/derrors"
)

// TaskOverrides are the per-task execution overrides a cron entry or
// webhook may carry. Overrides win whole-field over global config; CLI
// parameter arrays are not merged.
type TaskOverrides struct {
	Provider        string
	Model           string
	ReasoningEffort string
	CLIParameters   []string
}

// ExecutionConfig is the resolved, validated configuration for one
// task-mode CLI run.
type ExecutionConfig struct {
	Provider        string
	Model           string
	ReasoningEffort string
	CLIParameters   []string
	PermissionMode  string
	FileAccess      string
}

var codexEfforts = map[string]bool{
	"low": true, "medium": true, "high": true, "xhigh": true,
}

// ResolveExecutionConfig layers task overrides over the global config
// and validates the resolved model against the provider's known set.
func ResolveExecutionConfig(cfg *config.Config, overrides *TaskOverrides) (*ExecutionConfig, error) {
	o := overrides
	if o == nil {
		o = &TaskOverrides{}
	}

	provider := cfg.Provider
	if o.Provider != "" {
		provider = o.Provider
	}
	model := cfg.Model
	if o.Model != "" {
		model = o.Model
	}

	switch provider {
	case ProviderClaude:
		if !IsClaudeModel(model) {
			return nil, derrors.Scheduler("resolve-config",
				fmt.Sprintf("invalid claude model %q", model))
		}
	case ProviderCodex:
		// Codex models are validated by the CLI itself; only the shape
		// is checked here.
		if model == "" {
			return nil, derrors.Scheduler("resolve-config", "empty codex model")
		}
	default:
		return nil, derrors.Scheduler("resolve-config",
			fmt.Sprintf("unknown provider %q", provider))
	}

	effort := ""
	if provider == ProviderCodex {
		requested := cfg.ReasoningEffort
		if o.ReasoningEffort != "" {
			requested = o.ReasoningEffort
		}
		if codexEfforts[requested] {
			effort = requested
		}
	}

	params := append([]string(nil), o.CLIParameters...)

	return &ExecutionConfig{
		Provider:        provider,
		Model:           model,
		ReasoningEffort: effort,
		CLIParameters:   params,
		PermissionMode:  cfg.PermissionMode,
		FileAccess:      cfg.FileAccess,
	}, nil
}
