// Package webhook runs the inbound HTTP server: per-hook auth, strict
// request validation, and fire-and-forget dispatch in wake or task mode.
package webhook

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/PleasePrompto/ductor/internal/cli"
	"github.com/PleasePrompto/ductor/internal/derrors"
	"github.com/PleasePrompto/ductor/internal/infra"
	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/PleasePrompto/ductor/internal/task"
)

var log = logging.Component("webhook")

// Hook modes.
const (
	ModeWake = "wake"
	ModeTask = "task"
)

// Auth types.
const (
	AuthBearer = "bearer"
	AuthHMAC   = "hmac"
)

// AuthSpec is a hook's authentication contract.
type AuthSpec struct {
	Type string `json:"type"`

	// Bearer: per-hook token, falling back to the global token.
	Token string `json:"token,omitempty"`

	// HMAC parameters.
	Secret             string `json:"secret,omitempty"`
	Algorithm          string `json:"algorithm,omitempty"` // sha1, sha256, sha512
	Encoding           string `json:"encoding,omitempty"`  // hex, base64
	SignatureHeader    string `json:"signature_header,omitempty"`
	SignaturePrefix    string `json:"signature_prefix,omitempty"`
	SignatureRegex     string `json:"signature_regex,omitempty"`
	PayloadPrefixRegex string `json:"payload_prefix_regex,omitempty"`
}

// Entry is one persisted webhook definition.
type Entry struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Enabled bool     `json:"enabled"`
	Mode    string   `json:"mode"`
	Auth    AuthSpec `json:"auth"`

	// Wake mode: the message template rendered from the payload.
	Template string `json:"template,omitempty"`

	// Task mode: same shape as a cron entry.
	TaskFolder    string   `json:"task_folder,omitempty"`
	Instruction   string   `json:"instruction,omitempty"`
	DependencyKey string   `json:"dependency_key,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
	QuietStart    *int     `json:"quiet_start,omitempty"`
	QuietEnd      *int     `json:"quiet_end,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	Effort        string   `json:"reasoning_effort,omitempty"`
	CLIParameters []string `json:"cli_parameters,omitempty"`

	TriggerCount  int        `json:"trigger_count"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
}

// Overrides maps the entry's task fields onto the shared resolver shape.
func (e *Entry) Overrides() *cli.TaskOverrides {
	return &cli.TaskOverrides{
		Provider:        e.Provider,
		Model:           e.Model,
		ReasoningEffort: e.Effort,
		CLIParameters:   e.CLIParameters,
	}
}

// Quiet returns the entry's own window, nil when unset.
func (e *Entry) Quiet() *task.QuietWindow {
	if e.QuietStart == nil || e.QuietEnd == nil {
		return nil
	}
	return &task.QuietWindow{Start: *e.QuietStart, End: *e.QuietEnd}
}

type hooksFile struct {
	Hooks []*Entry `json:"hooks"`
}

// Store owns webhooks.json.
type Store struct {
	path string

	mu    sync.Mutex
	hooks map[string]*Entry
	order []string
}

// NewStore loads webhooks.json; a missing file yields an empty store.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, hooks: map[string]*Entry{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, derrors.Wrap(derrors.KindWebhook, "load", err)
	}
	var f hooksFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, derrors.Wrap(derrors.KindWebhook, "load", err)
	}
	assigned := 0
	for _, h := range f.Hooks {
		if h == nil {
			continue
		}
		if h.ID == "" {
			h.ID = NewHookID()
			assigned++
		}
		s.hooks[h.ID] = h
		s.order = append(s.order, h.ID)
	}
	if assigned > 0 {
		if err := s.flush(); err != nil {
			log.Warnf("Webhook id backfill persist failed: %v", err)
		} else {
			log.Infof("Assigned ids to %d webhook(s)", assigned)
		}
	}
	log.Infof("Loaded %d webhook(s) from %s", len(s.hooks), path)
	return s, nil
}

// Get returns the hook with this id, or nil.
func (s *Store) Get(id string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hooks[id]
}

// RecordTrigger updates counters after a dispatch attempt. lastError is
// nil on success.
func (s *Store) RecordTrigger(id string, lastError *string) error {
	s.mu.Lock()
	h, ok := s.hooks[id]
	if ok {
		now := time.Now().UTC()
		h.TriggerCount++
		h.LastTriggered = &now
		h.LastError = lastError
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.flush()
}

// flush rewrites webhooks.json from the in-memory entries, preserving
// file order.
func (s *Store) flush() error {
	s.mu.Lock()
	f := hooksFile{Hooks: make([]*Entry, 0, len(s.order))}
	for _, hid := range s.order {
		f.Hooks = append(f.Hooks, s.hooks[hid])
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return derrors.Wrap(derrors.KindWebhook, "save", err)
	}
	if err := infra.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return derrors.Wrap(derrors.KindWebhook, "save", err)
	}
	return nil
}
