// Package session holds per-chat session envelopes with provider-local
// state, persisted as JSON with atomic replace.
package session

import (
	"fmt"
	"time"
)

// ProviderSession is one provider's local record inside an envelope:
// the opaque resume id that provider issued plus its usage metrics.
type ProviderSession struct {
	SessionID    string  `json:"session_id"`
	MessageCount int     `json:"message_count"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int64   `json:"total_tokens"`
}

// merge combines two records for the same provider. Counters never
// regress: every metric takes the per-metric max.
func (p *ProviderSession) merge(other *ProviderSession) {
	if other == nil {
		return
	}
	if other.SessionID != "" && p.SessionID == "" {
		p.SessionID = other.SessionID
	}
	if other.MessageCount > p.MessageCount {
		p.MessageCount = other.MessageCount
	}
	if other.TotalCostUSD > p.TotalCostUSD {
		p.TotalCostUSD = other.TotalCostUSD
	}
	if other.TotalTokens > p.TotalTokens {
		p.TotalTokens = other.TotalTokens
	}
}

// Session is the envelope for one chat: the active target plus one
// bucket per provider that has ever been used in this chat.
type Session struct {
	ChatID           int64                       `json:"chat_id"`
	Provider         string                      `json:"provider"`
	Model            string                      `json:"model"`
	ProviderSessions map[string]*ProviderSession `json:"provider_sessions"`
	CreatedAt        time.Time                   `json:"created_at"`
	LastActiveAt     time.Time                   `json:"last_active_at"`
}

// Bucket returns the record for provider, creating it when absent.
func (s *Session) Bucket(provider string) *ProviderSession {
	if s.ProviderSessions == nil {
		s.ProviderSessions = map[string]*ProviderSession{}
	}
	b, ok := s.ProviderSessions[provider]
	if !ok {
		b = &ProviderSession{}
		s.ProviderSessions[provider] = b
	}
	return b
}

// ActiveBucket returns the record for the currently active provider.
func (s *Session) ActiveBucket() *ProviderSession {
	return s.Bucket(s.Provider)
}

// Age returns how long ago the envelope was created.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// AgeFooter returns the "consider /new" footer when the session has
// outlived warnAfter and the active bucket's message count is a
// multiple of 10. Empty string otherwise.
func (s *Session) AgeFooter(now time.Time, warnAfter time.Duration) string {
	if warnAfter <= 0 || s.Age(now) < warnAfter {
		return ""
	}
	count := s.ActiveBucket().MessageCount
	if count == 0 || count%10 != 0 {
		return ""
	}
	return fmt.Sprintf(
		"\n\n---\n[Session is %s old. Use /new for a fresh start.]",
		formatAge(s.Age(now)),
	)
}

func formatAge(d time.Duration) string {
	if d >= 48*time.Hour {
		return fmt.Sprintf("%d days", int(d.Hours()/24))
	}
	if d >= 2*time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
