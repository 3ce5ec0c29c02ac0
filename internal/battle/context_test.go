package battle

import (
	"sync"
	"testing"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	b := ctx.GetBattle()
	assert.Equal(t, "No battle loaded", b.Name)
	assert.Nil(t, ctx.LogAttrs(), "no attributes before a battle starts")
}

func TestContext_Position(t *testing.T) {
	ctx := NewContext()
	ctx.SetBattle(&core.Battle{UUID: "b-1", Name: "alpha vs beta"})
	ctx.SetRound(2)
	ctx.SetTurn(40)

	round, turn := ctx.Position()
	assert.Equal(t, 2, round)
	assert.Equal(t, 40, turn)

	attrs := ctx.LogAttrs()
	assert.Len(t, attrs, 3)
	assert.Equal(t, "b-1", attrs[0].Value.String())

	ctx.SetRound(3)
	_, turn = ctx.Position()
	assert.Zero(t, turn, "a new round restarts the turn count")

	ctx.SetBattle(&core.Battle{UUID: "b-2"})
	round, _ = ctx.Position()
	assert.Zero(t, round)
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	ctx.SetBattle(&core.Battle{UUID: "b"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ctx.SetTurn(i)
		}(i)
		go func() {
			defer wg.Done()
			_ = ctx.LogAttrs()
			_, _ = ctx.Position()
		}()
	}
	wg.Wait()
}
