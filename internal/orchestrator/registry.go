package orchestrator

import (
	"context"
	"strings"

	"github.com/PleasePrompto/ductor/internal/chat"
)

// Result is the structured return of a handled message.
type Result struct {
	Text           string
	StreamFallback bool
	Buttons        [][]chat.Button
}

// CommandHandler handles one slash command. A nil result means the
// command produced no reply.
type CommandHandler func(ctx context.Context, o *Orchestrator, chatID int64, text string) (*Result, error)

type commandEntry struct {
	name        string
	handler     CommandHandler
	matchPrefix bool
}

// CommandRegistry dispatches slash commands. A name with a trailing
// space registers as a prefix match, which allows "/model sonnet".
type CommandRegistry struct {
	commands []commandEntry
}

// Register adds a command handler.
func (r *CommandRegistry) Register(name string, handler CommandHandler) {
	r.commands = append(r.commands, commandEntry{
		name:        name,
		handler:     handler,
		matchPrefix: strings.HasSuffix(name, " "),
	})
}

// Dispatch routes cmd to a registered handler. Returns (nil, false)
// when no command matches, which falls through to free-text routing.
func (r *CommandRegistry) Dispatch(
	ctx context.Context,
	o *Orchestrator,
	chatID int64,
	cmd, text string,
) (*Result, error, bool) {
	for _, entry := range r.commands {
		if entry.matchPrefix {
			if strings.HasPrefix(cmd, entry.name) {
				res, err := entry.handler(ctx, o, chatID, text)
				return res, err, true
			}
		} else if cmd == entry.name {
			res, err := entry.handler(ctx, o, chatID, text)
			return res, err, true
		}
	}
	return nil, nil, false
}
