package chat

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/PleasePrompto/ductor/internal/logging"
)

var log = logging.Component("chat")

// MQPrefix is the callback-data prefix for queue cancel buttons.
const MQPrefix = "mq:"

const maxLocks = 1000

// QuickCommands bypass the per-chat lock. All are read-only.
var QuickCommands = map[string]bool{
	"/status":    true,
	"/memory":    true,
	"/cron":      true,
	"/diagnose":  true,
	"/model":     true,
	"/showfiles": true,
}

// IsQuickCommand matches bare commands and commands with arguments.
func IsQuickCommand(text string) bool {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return false
	}
	return QuickCommands[fields[0]]
}

// AbortHandler is invoked for abort triggers before the lock. Returns
// true when the trigger was handled and routing must stop.
type AbortHandler func(ctx context.Context, chatID int64, msg Message) bool

// QuickHandler is invoked for read-only commands before the lock.
type QuickHandler func(ctx context.Context, chatID int64, msg Message) bool

// Handler processes a message once the chat's lock is held.
type Handler func(ctx context.Context, msg Message)

// QueueEntry is one message waiting behind a held chat lock.
type QueueEntry struct {
	ID          int64
	ChatID      int64
	MessageID   int64
	TextPreview string
	Cancelled   bool
	IndicatorID int64
}

type chatLock struct {
	sem chan struct{}
}

func (l *chatLock) locked() bool { return len(l.sem) > 0 }

// Pipeline serializes work per chat with a visible cancellable queue.
type Pipeline struct {
	gw      Gateway
	allowed map[int64]bool
	dedup   *DedupeCache

	abortFn AbortHandler
	quickFn QuickHandler
	handler Handler

	mu      sync.Mutex
	locks   map[int64]*chatLock
	pending map[int64][]*QueueEntry
	counter int64
}

// NewPipeline builds a pipeline over a gateway and a user allowlist.
func NewPipeline(gw Gateway, allowedUserIDs []int64) *Pipeline {
	allowed := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	return &Pipeline{
		gw:      gw,
		allowed: allowed,
		dedup:   NewDedupeCache(),
		locks:   map[int64]*chatLock{},
		pending: map[int64][]*QueueEntry{},
	}
}

// SetAbortHandler registers the abort callback run before the lock.
func (p *Pipeline) SetAbortHandler(fn AbortHandler) { p.abortFn = fn }

// SetQuickHandler registers the quick-command bypass callback.
func (p *Pipeline) SetQuickHandler(fn QuickHandler) { p.quickFn = fn }

// SetHandler registers the locked message handler.
func (p *Pipeline) SetHandler(fn Handler) { p.handler = fn }

// lock returns the chat's lock, creating it if needed. When the table
// is full, half of the idle locks are evicted first.
func (p *Pipeline) lock(chatID int64) *chatLock {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.locks[chatID]; ok {
		return l
	}
	if len(p.locks) >= maxLocks {
		idle := make([]int64, 0, len(p.locks))
		for id, l := range p.locks {
			if !l.locked() {
				idle = append(idle, id)
			}
		}
		for _, id := range idle[:len(idle)/2] {
			delete(p.locks, id)
		}
	}
	l := &chatLock{sem: make(chan struct{}, 1)}
	p.locks[chatID] = l
	return l
}

// Acquire blocks until the chat's lock is held. Exposed for webhook
// wake dispatch, which queues behind active conversations.
func (p *Pipeline) Acquire(ctx context.Context, chatID int64) error {
	l := p.lock(chatID)
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the chat's lock.
func (p *Pipeline) Release(chatID int64) {
	l := p.lock(chatID)
	select {
	case <-l.sem:
	default:
	}
}

// HasPending reports whether the chat has queued messages.
func (p *Pipeline) HasPending(chatID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending[chatID]) > 0
}

// IsBusy reports whether the chat's lock is held or its queue is
// non-empty.
func (p *Pipeline) IsBusy(chatID int64) bool {
	p.mu.Lock()
	l := p.locks[chatID]
	busy := l != nil && l.locked()
	p.mu.Unlock()
	return busy || p.HasPending(chatID)
}

// Process runs one inbound message through the pipeline. Blocks until
// the message has been handled, cancelled, or dropped.
func (p *Pipeline) Process(ctx context.Context, msg Message) {
	if !p.allowed[msg.UserID] {
		return
	}

	text := strings.TrimSpace(msg.Text)

	if p.abortFn != nil && text != "" && IsAbortMessage(text) {
		log.Debugf("Abort trigger detected chat=%d", msg.ChatID)
		if p.abortFn(ctx, msg.ChatID, msg) {
			p.DrainPending(ctx, msg.ChatID)
			return
		}
	}

	if p.quickFn != nil && text != "" && IsQuickCommand(text) {
		log.Debugf("Quick command bypass chat=%d cmd=%s", msg.ChatID, text)
		if p.quickFn(ctx, msg.ChatID, msg) {
			return
		}
	}

	if p.dedup.Check(DedupeKey(msg.ChatID, msg.MessageID)) {
		log.Debugf("Message deduplicated chat=%d msg=%d", msg.ChatID, msg.MessageID)
		return
	}

	l := p.lock(msg.ChatID)
	var entry *QueueEntry
	if l.locked() {
		entry = p.enqueue(msg)
		p.sendIndicator(ctx, entry, msg)
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		if entry != nil {
			p.removeEntry(msg.ChatID, entry)
		}
		return
	}
	defer func() { <-l.sem }()

	if entry != nil {
		p.removeEntry(msg.ChatID, entry)
		p.deleteIndicator(ctx, entry)
		if entry.Cancelled {
			return
		}
	}

	if p.handler != nil {
		p.handler(ctx, msg)
	}
}

// CancelEntry cancels one queued message and edits its indicator to the
// terminal cancelled string. Returns true when found.
func (p *Pipeline) CancelEntry(ctx context.Context, chatID, entryID int64) bool {
	p.mu.Lock()
	var target *QueueEntry
	for _, e := range p.pending[chatID] {
		if e.ID == entryID && !e.Cancelled {
			e.Cancelled = true
			target = e
			break
		}
	}
	p.mu.Unlock()

	if target == nil {
		return false
	}
	p.editIndicator(ctx, target, "[Message cancelled.]")
	log.Infof("Queue entry cancelled chat=%d entry=%d", chatID, entryID)
	return true
}

// DrainPending cancels every queued message for a chat, editing each
// indicator to the terminal discarded string. Returns the count.
func (p *Pipeline) DrainPending(ctx context.Context, chatID int64) int {
	p.mu.Lock()
	var targets []*QueueEntry
	for _, e := range p.pending[chatID] {
		if !e.Cancelled {
			e.Cancelled = true
			targets = append(targets, e)
		}
	}
	p.mu.Unlock()

	for _, e := range targets {
		p.editIndicator(ctx, e, "[Message discarded.]")
	}
	log.Infof("Queue drained chat=%d discarded=%d", chatID, len(targets))
	return len(targets)
}

// HandleCallback routes an mq: cancel button press. Returns true when
// the data belonged to the queue.
func (p *Pipeline) HandleCallback(ctx context.Context, cb Callback) bool {
	if !strings.HasPrefix(cb.Data, MQPrefix) {
		return false
	}
	entryID, err := strconv.ParseInt(cb.Data[len(MQPrefix):], 10, 64)
	if err != nil {
		return true
	}
	p.CancelEntry(ctx, cb.ChatID, entryID)
	return true
}

func (p *Pipeline) enqueue(msg Message) *QueueEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter++
	preview := msg.Text
	if len(preview) > 40 {
		preview = preview[:40]
	}
	entry := &QueueEntry{
		ID:          p.counter,
		ChatID:      msg.ChatID,
		MessageID:   msg.MessageID,
		TextPreview: preview,
	}
	p.pending[msg.ChatID] = append(p.pending[msg.ChatID], entry)
	return entry
}

func (p *Pipeline) removeEntry(chatID int64, entry *QueueEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := p.pending[chatID]
	for i, e := range entries {
		if e == entry {
			p.pending[chatID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(p.pending[chatID]) == 0 {
		delete(p.pending, chatID)
	}
}

// Indicator failures are logged and ignored: a UI update failure never
// drops the message.

func (p *Pipeline) sendIndicator(ctx context.Context, entry *QueueEntry, msg Message) {
	id, err := p.gw.SendMessage(ctx, entry.ChatID, "[Message in queue...]", SendOptions{
		ReplyTo: msg.MessageID,
		TopicID: msg.TopicID,
		Buttons: [][]Button{{{
			Text:         "Cancel message",
			CallbackData: MQPrefix + strconv.FormatInt(entry.ID, 10),
		}}},
	})
	if err != nil {
		log.Debugf("Failed to send queue indicator: %v", err)
		return
	}
	p.mu.Lock()
	entry.IndicatorID = id
	p.mu.Unlock()
}

func (p *Pipeline) editIndicator(ctx context.Context, entry *QueueEntry, text string) {
	if entry.IndicatorID == 0 {
		return
	}
	if err := p.gw.EditMessage(ctx, entry.ChatID, entry.IndicatorID, text, nil); err != nil {
		log.Debugf("Failed to edit queue indicator: %v", err)
	}
}

func (p *Pipeline) deleteIndicator(ctx context.Context, entry *QueueEntry) {
	if entry.IndicatorID == 0 || entry.Cancelled {
		return
	}
	if err := p.gw.DeleteMessage(ctx, entry.ChatID, entry.IndicatorID); err != nil {
		log.Debugf("Failed to delete queue indicator: %v", err)
	}
}
