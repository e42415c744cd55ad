package session

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/PleasePrompto/ductor/internal/derrors"
	"github.com/PleasePrompto/ductor/internal/infra"
	"github.com/PleasePrompto/ductor/internal/logging"
)

var log = logging.Component("session")

// Manager is the single writer for sessions.json. The in-memory map is
// guarded by one mutex; every save is a full atomic rewrite.
type Manager struct {
	path string

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager loads sessions.json from path. A missing file yields an
// empty store; a corrupt file is an error (the caller decides whether to
// start fresh).
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path, sessions: map[int64]*Session{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, derrors.Wrap(derrors.KindSession, "load", err)
	}

	raw := map[string]*Session{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, derrors.Wrap(derrors.KindSession, "load", err)
	}
	for key, sess := range raw {
		chatID, perr := strconv.ParseInt(key, 10, 64)
		if perr != nil || sess == nil {
			log.Warnf("Skipping malformed session key %q", key)
			continue
		}
		sess.ChatID = chatID
		m.sessions[chatID] = sess
	}
	log.Infof("Loaded %d session(s) from %s", len(m.sessions), path)
	return m, nil
}

// Get returns the chat's envelope, or nil. Callers must route mutations
// through the manager methods.
func (m *Manager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[chatID]
}

// GetOrCreate returns the chat's envelope, creating it with the given
// target on first use.
func (m *Manager) GetOrCreate(chatID int64, provider, model string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[chatID]
	if !ok {
		now := time.Now().UTC()
		sess = &Session{
			ChatID:           chatID,
			Provider:         provider,
			Model:            model,
			ProviderSessions: map[string]*ProviderSession{},
			CreatedAt:        now,
			LastActiveAt:     now,
		}
		m.sessions[chatID] = sess
		log.Infof("Session created chat=%d provider=%s model=%s", chatID, provider, model)
	}
	return sess
}

// SetTarget switches the envelope's active provider/model. Buckets for
// other providers are untouched.
func (m *Manager) SetTarget(chatID int64, provider, model string) error {
	m.mu.Lock()
	sess, ok := m.sessions[chatID]
	if ok {
		sess.Provider = provider
		sess.Model = model
		sess.Bucket(provider)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.save()
}

// RecordUsage persists the outcome of one successful call: new session
// id if the provider issued one, incremented message count, accumulated
// cost and tokens, refreshed last-active. The persisted record is folded
// in first with per-metric max; helper tools edit the same file, and a
// stale in-memory snapshot must never regress their counters.
func (m *Manager) RecordUsage(
	chatID int64,
	provider, sessionID string,
	costUSD float64,
	tokens int64,
) error {
	m.mu.Lock()
	sess, ok := m.sessions[chatID]
	if ok {
		b := sess.Bucket(provider)
		if disk := m.diskBucket(chatID, provider); disk != nil {
			b.merge(disk)
		}
		if sessionID != "" {
			b.SessionID = sessionID
		}
		b.MessageCount++
		b.TotalCostUSD += costUSD
		b.TotalTokens += tokens
		sess.LastActiveAt = time.Now().UTC()
	}
	m.mu.Unlock()
	if !ok {
		return derrors.Session("record-usage", "no session for chat")
	}
	return m.save()
}

// ClearBucket wipes one provider's record, used by /new and by recovery
// after a failed resume. Other providers' buckets are untouched.
func (m *Manager) ClearBucket(chatID int64, provider string) error {
	m.mu.Lock()
	sess, ok := m.sessions[chatID]
	if ok {
		sess.ProviderSessions[provider] = &ProviderSession{}
		sess.CreatedAt = time.Now().UTC()
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.save()
}

// diskBucket reads the persisted bucket for one chat and provider, nil
// when the file or record is absent or unreadable. Caller holds the
// mutex.
func (m *Manager) diskBucket(chatID int64, provider string) *ProviderSession {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil
	}
	raw := map[string]*Session{}
	if json.Unmarshal(data, &raw) != nil {
		return nil
	}
	sess := raw[strconv.FormatInt(chatID, 10)]
	if sess == nil {
		return nil
	}
	return sess.ProviderSessions[provider]
}

// Save flushes the in-memory map to disk.
func (m *Manager) Save() error { return m.save() }

func (m *Manager) save() error {
	m.mu.Lock()
	raw := make(map[string]*Session, len(m.sessions))
	for chatID, sess := range m.sessions {
		raw[strconv.FormatInt(chatID, 10)] = sess
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return derrors.Wrap(derrors.KindSession, "save", err)
	}
	if err := infra.WriteFileAtomic(m.path, append(data, '\n'), 0o644); err != nil {
		return derrors.Wrap(derrors.KindSession, "save", err)
	}
	return nil
}
