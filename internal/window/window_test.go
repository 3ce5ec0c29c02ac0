package window

import (
	"testing"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turn(n int) *core.TurnSnapshot {
	return &core.TurnSnapshot{Round: 1, Turn: n}
}

func TestAdvance_ShiftsHistory(t *testing.T) {
	w := New()

	f := w.Advance(turn(1))
	assert.Equal(t, 1, f.Current.Turn)
	assert.Nil(t, f.Previous)
	assert.Nil(t, f.TwoBack)
	assert.False(t, f.HasHistory())
	assert.Equal(t, 1, w.Depth())

	f = w.Advance(turn(2))
	require.NotNil(t, f.Previous)
	assert.Equal(t, 1, f.Previous.Turn)
	assert.Nil(t, f.TwoBack)

	f = w.Advance(turn(3))
	require.True(t, f.HasHistory())
	assert.Equal(t, 3, f.Current.Turn)
	assert.Equal(t, 2, f.Previous.Turn)
	assert.Equal(t, 1, f.TwoBack.Turn)
	assert.Equal(t, 2, w.Depth())

	f = w.Advance(turn(4))
	assert.Equal(t, 3, f.Previous.Turn)
	assert.Equal(t, 2, f.TwoBack.Turn)
}

func TestPeek_DoesNotShift(t *testing.T) {
	w := New()
	w.Advance(turn(1))

	f := w.Peek(turn(2))
	assert.Equal(t, 1, f.Previous.Turn)

	f = w.Peek(turn(2))
	assert.Equal(t, 1, f.Previous.Turn)
	assert.Equal(t, 1, w.Depth())
}

func TestReset(t *testing.T) {
	w := New()
	w.Advance(turn(1))
	w.Advance(turn(2))
	w.Reset()

	assert.Equal(t, 0, w.Depth())
	f := w.Advance(turn(1))
	assert.Nil(t, f.Previous)
	assert.Nil(t, f.TwoBack)
}

func TestAdvance_NilCurrentTolerated(t *testing.T) {
	w := New()
	assert.NotPanics(t, func() {
		w.Advance(nil)
		w.Advance(turn(2))
	})
}
