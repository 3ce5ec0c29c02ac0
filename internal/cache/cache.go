package cache

import (
	"fmt"
	"sync"

	"github.com/duelscope/recorder/pkg/core"
)

// RosterCache maps participant slots to robot names for the current battle so
// handlers do not need the battle record to label output.
type RosterCache struct {
	m     sync.RWMutex
	names map[int]string
}

func NewRosterCache() *RosterCache {
	return &RosterCache{
		names: make(map[int]string),
	}
}

// Reset clears the roster. Called at battle start.
func (c *RosterCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.names = make(map[int]string)
}

// Load replaces the roster with the battle's participants.
func (c *RosterCache) Load(participants []core.Participant) {
	c.m.Lock()
	defer c.m.Unlock()
	c.names = make(map[int]string, len(participants))
	for _, p := range participants {
		c.names[p.Index] = p.Name
	}
}

// Observe records names reported in a turn snapshot. Snapshot names win over
// the roster loaded at battle start.
func (c *RosterCache) Observe(robots []core.RobotSnapshot) {
	c.m.Lock()
	defer c.m.Unlock()
	for _, r := range robots {
		if r.Name != "" {
			c.names[r.Index] = r.Name
		}
	}
}

func (c *RosterCache) Get(index int) (string, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	name, ok := c.names[index]
	return name, ok
}

// Name returns the participant name or a "robot#N" placeholder.
func (c *RosterCache) Name(index int) string {
	if name, ok := c.Get(index); ok {
		return name
	}
	return fmt.Sprintf("robot#%d", index)
}

func (c *RosterCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.names)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
