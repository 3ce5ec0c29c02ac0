package cache

import (
	"sync"
	"testing"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterCache_New(t *testing.T) {
	c := NewRosterCache()

	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestRosterCache_LoadAndGet(t *testing.T) {
	c := NewRosterCache()
	c.Load([]core.Participant{{Index: 0, Name: "alpha"}, {Index: 1, Name: "beta"}})

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "beta", got)
	assert.Equal(t, "alpha", c.Name(0))
	assert.Equal(t, 2, c.Len())
}

func TestRosterCache_NameFallback(t *testing.T) {
	c := NewRosterCache()

	_, ok := c.Get(3)
	assert.False(t, ok)
	assert.Equal(t, "robot#3", c.Name(3))
}

func TestRosterCache_ObserveOverrides(t *testing.T) {
	c := NewRosterCache()
	c.Load([]core.Participant{{Index: 0, Name: "alpha"}})

	c.Observe([]core.RobotSnapshot{{Index: 0, Name: "alpha (1)"}, {Index: 1, Name: ""}})

	assert.Equal(t, "alpha (1)", c.Name(0))
	_, ok := c.Get(1)
	assert.False(t, ok, "empty names are not recorded")
}

func TestRosterCache_Reset(t *testing.T) {
	c := NewRosterCache()
	c.Load([]core.Participant{{Index: 0, Name: "alpha"}})
	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestRosterCache_ConcurrentAccess(t *testing.T) {
	c := NewRosterCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Observe([]core.RobotSnapshot{{Index: i % 2, Name: "r"}})
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Name(i % 2)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 2, c.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, c.Value())

	c.Set(3)
	assert.Equal(t, 3, c.Value())
}
