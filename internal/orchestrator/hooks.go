package orchestrator

// HookContext is the session snapshot passed to hook conditions.
// MessageCount is pre-increment: count 5 means the 6th message is about
// to be sent.
type HookContext struct {
	ChatID       int64
	MessageCount int
	IsNewSession bool
	Provider     string
	Model        string
}

// MessageHook appends its suffix to the outgoing prompt when the
// condition matches.
type MessageHook struct {
	Name      string
	Condition func(HookContext) bool
	Suffix    string
}

// HookRegistry evaluates hooks before each provider call.
type HookRegistry struct {
	hooks []MessageHook
}

// Register adds a hook.
func (r *HookRegistry) Register(h MessageHook) {
	r.hooks = append(r.hooks, h)
}

// Apply appends every matching hook's suffix to the prompt.
func (r *HookRegistry) Apply(prompt string, ctx HookContext) string {
	var suffixes []string
	for _, h := range r.hooks {
		if h.Condition(ctx) {
			log.Infof("Hook fired: %s msgs=%d", h.Name, ctx.MessageCount)
			suffixes = append(suffixes, h.Suffix)
		}
	}
	for _, s := range suffixes {
		prompt += "\n\n" + s
	}
	return prompt
}

// EveryNMessages fires on every n-th message, never on the first.
func EveryNMessages(n int) func(HookContext) bool {
	return func(ctx HookContext) bool {
		effective := ctx.MessageCount + 1
		return effective >= n && effective%n == 0
	}
}

// MainMemoryReminder is the built-in hook nudging the agent to keep its
// long-term memory file current.
var MainMemoryReminder = MessageHook{
	Name:      "mainmemory_reminder",
	Condition: EveryNMessages(6),
	Suffix: "## MEMORY CHECK\n" +
		"Silently review: memory_system/MAINMEMORY.md, user_tools/, cron_tasks/.\n" +
		"Compare what you already know with this conversation so far.\n" +
		"If something important is missing from memory (personality, preferences, " +
		"decisions, facts) -- update MAINMEMORY.md silently.\n" +
		"If you notice a gap that only the user can fill, ask ONE natural follow-up " +
		"question that fits the current conversation. Do not interrogate.",
}
