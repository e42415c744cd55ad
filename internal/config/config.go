// Package config loads and persists the runtime configuration.
//
// config.json is deep-merged with built-in defaults at the top level:
// new default keys are added silently, unknown user keys are preserved.
// All writes go through the atomic file writer.
package config

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/PleasePrompto/ductor/internal/derrors"
	"github.com/PleasePrompto/ductor/internal/infra"
	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/mitchellh/mapstructure"
)

var log = logging.Component("config")

// HeartbeatConfig controls the periodic background prompter.
type HeartbeatConfig struct {
	Enabled         bool `json:"enabled" mapstructure:"enabled"`
	IntervalMinutes int  `json:"interval_minutes" mapstructure:"interval_minutes"`
	QuietStart      int  `json:"quiet_start" mapstructure:"quiet_start"`
	QuietEnd        int  `json:"quiet_end" mapstructure:"quiet_end"`
	CooldownMinutes int  `json:"cooldown_minutes" mapstructure:"cooldown_minutes"`
}

// CleanupConfig controls the daily file-retention sweeper.
type CleanupConfig struct {
	Enabled         bool `json:"enabled" mapstructure:"enabled"`
	CheckHour       int  `json:"check_hour" mapstructure:"check_hour"`
	ChatFilesDays   int  `json:"chat_files_days" mapstructure:"chat_files_days"`
	OutputFilesDays int  `json:"output_files_days" mapstructure:"output_files_days"`
}

// WebhookConfig controls the inbound HTTP event server.
type WebhookConfig struct {
	Enabled            bool   `json:"enabled" mapstructure:"enabled"`
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	MaxBodyBytes       int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	GlobalToken        string `json:"global_token" mapstructure:"global_token"`
}

// Config is the typed view of config.json.
type Config struct {
	ChatToken       string  `json:"chat_token" mapstructure:"chat_token"`
	AllowedUserIDs  []int64 `json:"allowed_user_ids" mapstructure:"allowed_user_ids"`
	Provider        string  `json:"provider" mapstructure:"provider"`
	Model           string  `json:"model" mapstructure:"model"`
	ReasoningEffort string  `json:"reasoning_effort" mapstructure:"reasoning_effort"`
	PermissionMode  string  `json:"permission_mode" mapstructure:"permission_mode"`
	FileAccess      string  `json:"file_access" mapstructure:"file_access"`
	CLITimeoutSecs  int     `json:"cli_timeout_seconds" mapstructure:"cli_timeout_seconds"`
	MaxTurns        int     `json:"max_turns" mapstructure:"max_turns"`
	MaxBudgetUSD    float64 `json:"max_budget_usd" mapstructure:"max_budget_usd"`
	UserTimezone    string  `json:"user_timezone" mapstructure:"user_timezone"`
	DockerContainer string  `json:"docker_container" mapstructure:"docker_container"`
	LogLevel        string  `json:"log_level" mapstructure:"log_level"`
	SessionWarnHrs  int     `json:"session_warn_hours" mapstructure:"session_warn_hours"`

	Heartbeat HeartbeatConfig `json:"heartbeat" mapstructure:"heartbeat"`
	Cleanup   CleanupConfig   `json:"cleanup" mapstructure:"cleanup"`
	Webhook   WebhookConfig   `json:"webhook" mapstructure:"webhook"`
}

// Defaults returns the built-in configuration as a plain map, the form
// used for the top-level merge with the user's file.
func Defaults() map[string]any {
	return map[string]any{
		"chat_token":          "",
		"allowed_user_ids":    []int64{},
		"provider":            "claude",
		"model":               "sonnet",
		"reasoning_effort":    "medium",
		"permission_mode":     "acceptEdits",
		"file_access":         "workspace",
		"cli_timeout_seconds": 900,
		"max_turns":           0,
		"max_budget_usd":      0.0,
		"user_timezone":       "",
		"docker_container":    "",
		"log_level":           "info",
		"session_warn_hours":  12,
		"heartbeat": map[string]any{
			"enabled":          true,
			"interval_minutes": 30,
			"quiet_start":      21,
			"quiet_end":        8,
			"cooldown_minutes": 5,
		},
		"cleanup": map[string]any{
			"enabled":           true,
			"check_hour":        3,
			"chat_files_days":   30,
			"output_files_days": 30,
		},
		"webhook": map[string]any{
			"enabled":               false,
			"host":                  "127.0.0.1",
			"port":                  8742,
			"max_body_bytes":        262144,
			"rate_limit_per_minute": 30,
			"global_token":          "",
		},
	}
}

// Load reads config.json, merges defaults at the top level, writes the
// file back only when the merge added keys, and decodes the typed view.
// A missing file is created from defaults.
func Load(path string) (*Config, error) {
	raw := map[string]any{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &raw); jerr != nil {
			return nil, derrors.Wrap(derrors.KindInfra, "config-load", jerr)
		}
	case os.IsNotExist(err):
		log.Infof("Config not found, creating defaults at %s", path)
	default:
		return nil, derrors.Wrap(derrors.KindInfra, "config-load", err)
	}

	merged, added := mergeTopLevel(Defaults(), raw)
	if added > 0 || os.IsNotExist(err) {
		if werr := writeJSON(path, merged); werr != nil {
			return nil, werr
		}
		if added > 0 {
			log.Infof("Config merged: %d new default key(s) added", added)
		}
	}

	var cfg Config
	dec, derr := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if derr != nil {
		return nil, derrors.Wrap(derrors.KindInfra, "config-decode", derr)
	}
	if derr := dec.Decode(merged); derr != nil {
		return nil, derrors.Wrap(derrors.KindInfra, "config-decode", derr)
	}
	return &cfg, nil
}

// Update applies key/value updates to config.json atomically, preserving
// every other key in the file.
func Update(path string, updates map[string]any) error {
	raw := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if jerr := json.Unmarshal(data, &raw); jerr != nil {
			return derrors.Wrap(derrors.KindInfra, "config-update", jerr)
		}
	}
	for k, v := range updates {
		raw[k] = v
	}
	return writeJSON(path, raw)
}

// mergeTopLevel overlays user values on defaults. User keys always win;
// unknown user keys are carried through. Returns the merged map and how
// many default keys were missing from the user map.
func mergeTopLevel(defaults, user map[string]any) (map[string]any, int) {
	merged := make(map[string]any, len(defaults)+len(user))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}

	added := 0
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := user[k]; !ok {
			added++
		}
	}
	if len(user) == 0 {
		// Fresh file: everything counts as already written.
		return merged, 0
	}
	return merged, added
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return derrors.Wrap(derrors.KindInfra, "config-write", err)
	}
	return infra.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
