package infra

import (
	"encoding/json"
	"os"
	"time"
)

// ExitCodeRestart tells the supervisor to restart immediately instead of
// applying backoff.
const ExitCodeRestart = 42

// RestartSentinel records why a restart was requested so the next
// instance can report it.
type RestartSentinel struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// WriteRestartSentinel persists a restart request next to the other
// state files.
func WriteRestartSentinel(path, reason string) error {
	data, err := json.MarshalIndent(RestartSentinel{
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o644)
}

// ConsumeRestartSentinel reads and removes the sentinel. Returns nil when
// no sentinel exists.
func ConsumeRestartSentinel(path string) *RestartSentinel {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	defer os.Remove(path)
	var s RestartSentinel
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}
