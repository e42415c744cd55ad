package cli

import (
	"os/exec"
	"sync"
	"time"

	"github.com/PleasePrompto/ductor/internal/logging"
	"github.com/google/uuid"
)

var log = logging.Component("cli")

// termGrace is how long a child gets between terminate and kill.
const termGrace = 2 * time.Second

type procEntry struct {
	id           string
	chatID       int64
	label        string
	cmd          *exec.Cmd
	registeredAt time.Time
}

// Registry tracks every spawned child and the per-chat aborted flags.
// One mutex guards the map; kill paths drop the lock before OS calls.
type Registry struct {
	mu      sync.Mutex
	procs   map[string]*procEntry
	aborted map[int64]bool
}

// NewRegistry builds an empty process registry.
func NewRegistry() *Registry {
	return &Registry{
		procs:   map[string]*procEntry{},
		aborted: map[int64]bool{},
	}
}

// Register records a started child and returns its registry id.
func (r *Registry) Register(chatID int64, cmd *exec.Cmd, label string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New().String()
	r.procs[id] = &procEntry{
		id:           id,
		chatID:       chatID,
		label:        label,
		cmd:          cmd,
		registeredAt: time.Now(),
	}
	log.Debugf("Process registered chat=%d label=%s id=%s", chatID, label, id)
	return id
}

// Unregister drops a child from the registry, normally on exit.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, id)
}

// Aborted reports the chat's aborted flag. Streaming readers check it
// on every event.
func (r *Registry) Aborted(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted[chatID]
}

// ClearAborted resets the flag, called at the start of the next message.
func (r *Registry) ClearAborted(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.aborted, chatID)
}

// Count returns how many children are registered for a chat.
func (r *Registry) Count(chatID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.procs {
		if e.chatID == chatID {
			n++
		}
	}
	return n
}

// KillAll terminates every child of a chat: terminate, grace, kill,
// reap. Sets the chat's aborted flag. Returns the number of children
// signalled.
func (r *Registry) KillAll(chatID int64) int {
	r.mu.Lock()
	r.aborted[chatID] = true
	victims := make([]*procEntry, 0, 2)
	for _, e := range r.procs {
		if e.chatID == chatID {
			victims = append(victims, e)
		}
	}
	for _, e := range victims {
		delete(r.procs, e.id)
	}
	r.mu.Unlock()

	for _, e := range victims {
		killTree(e.cmd, termGrace)
		log.Infof("Process killed chat=%d label=%s", chatID, e.label)
	}
	return len(victims)
}

// KillStale terminates children older than maxAge in wall-clock time.
// Defends against host suspend/resume where monotonic timers stall.
func (r *Registry) KillStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	stale := make([]*procEntry, 0, 2)
	for _, e := range r.procs {
		if e.registeredAt.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		delete(r.procs, e.id)
		r.aborted[e.chatID] = true
	}
	r.mu.Unlock()

	for _, e := range stale {
		killTree(e.cmd, termGrace)
		log.Warnf("Stale process killed chat=%d label=%s age=%s",
			e.chatID, e.label, time.Since(e.registeredAt).Round(time.Second))
	}
	return len(stale)
}
