package battle

import (
	"log/slog"
	"sync"

	"github.com/duelscope/recorder/pkg/core"
)

// Context holds the battle being recorded and where processing currently is.
// The worker writes it, the logger and status monitor read it.
type Context struct {
	mu     sync.RWMutex
	Battle *core.Battle
	Round  int
	Turn   int
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Battle: &core.Battle{Name: "No battle loaded"},
	}
}

// GetBattle returns the current battle
func (c *Context) GetBattle() *core.Battle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Battle
}

// SetBattle sets the current battle and resets the position
func (c *Context) SetBattle(b *core.Battle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Battle = b
	c.Round = 0
	c.Turn = 0
}

// SetRound moves to the start of a round
func (c *Context) SetRound(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Round = round
	c.Turn = 0
}

// SetTurn records the last processed turn
func (c *Context) SetTurn(turn int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Turn = turn
}

// Position returns the current round and turn
func (c *Context) Position() (round, turn int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Round, c.Turn
}

// LogAttrs is a logging.ContextProvider
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Battle == nil || c.Battle.UUID == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("battle", c.Battle.UUID),
		slog.Int("round", c.Round),
		slog.Int("turn", c.Turn),
	}
}
