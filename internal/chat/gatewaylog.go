package chat

import (
	"context"
	"sync/atomic"
)

// LoggingGateway is the default transport adapter: outbound messages go
// to the log with synthetic message ids. A real platform client
// implements Gateway and replaces it at wiring time.
type LoggingGateway struct {
	counter atomic.Int64
}

// NewLoggingGateway returns a gateway that only logs.
func NewLoggingGateway() *LoggingGateway { return &LoggingGateway{} }

func (g *LoggingGateway) SendMessage(_ context.Context, chatID int64, text string, _ SendOptions) (int64, error) {
	id := g.counter.Add(1)
	log.Infof("[outbound chat=%d msg=%d] %s", chatID, id, text)
	return id, nil
}

func (g *LoggingGateway) EditMessage(_ context.Context, chatID, messageID int64, text string, _ [][]Button) error {
	log.Infof("[edit chat=%d msg=%d] %s", chatID, messageID, text)
	return nil
}

func (g *LoggingGateway) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	log.Debugf("[delete chat=%d msg=%d]", chatID, messageID)
	return nil
}
