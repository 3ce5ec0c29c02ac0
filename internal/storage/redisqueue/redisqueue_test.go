package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/duelscope/recorder/internal/storage"
	"github.com/duelscope/recorder/pkg/core"
	"github.com/duelscope/recorder/pkg/streaming"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)

var _ Pusher = (*redis.Client)(nil)

// fakeList records LPUSH calls the way a Redis list would (newest first).
type fakeList struct {
	mu    sync.Mutex
	lists map[string][]string
	err   error
}

func (f *fakeList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewIntCmd(ctx, "lpush", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.lists == nil {
		f.lists = make(map[string][]string)
	}
	for _, v := range values {
		f.lists[key] = append([]string{string(v.([]byte))}, f.lists[key]...)
	}
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

// popAll returns messages in BRPOP order.
func (f *fakeList) popAll(t *testing.T, key string) []Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.lists[key]
	out := make([]Message, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var m Message
		require.NoError(t, json.Unmarshal([]byte(items[i]), &m))
		out = append(out, m)
	}
	return out
}

func TestDefaultQueueName(t *testing.T) {
	b := NewWithClient(&fakeList{}, "", nil)
	assert.Equal(t, DefaultQueueName, b.QueueName())
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{URL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestNewParsesURL(t *testing.T) {
	b, err := New(Config{URL: "redis://localhost:6379/2", QueueName: "q"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "q", b.QueueName())
	assert.Equal(t, 2, b.owned.Options().DB)
	assert.NoError(t, b.Close())
}

func TestBattleFlowOrderAndStamp(t *testing.T) {
	list := &fakeList{}
	b := NewWithClient(list, "duels", nil)

	require.NoError(t, b.StartBattle(&core.Battle{UUID: "u-42", Name: "alpha vs beta"}))
	require.NoError(t, b.StartRound(&core.Round{Number: 0}))
	require.NoError(t, b.RecordGuessFactor(&core.GuessFactorRecord{BulletKey: 1_000_003, VictimEscapeGF: 0.75}))
	require.NoError(t, b.RecordRoundSummary(&core.RoundSummary{Shooter: "alpha", Shots: 1}))
	require.NoError(t, b.EndRound(&core.RoundResult{Round: 0, Turn: 77}))
	require.NoError(t, b.EndBattle())
	require.NoError(t, b.StartRound(&core.Round{Number: 0}))

	msgs := list.popAll(t, "duels")
	require.Len(t, msgs, 7)

	var types []string
	for _, m := range msgs {
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{
		streaming.TypeStartBattle,
		streaming.TypeStartRound,
		streaming.TypeGuessFactor,
		streaming.TypeRoundSummary,
		streaming.TypeEndRound,
		streaming.TypeEndBattle,
		streaming.TypeStartRound,
	}, types)

	for _, m := range msgs[:6] {
		assert.Equal(t, "u-42", m.BattleUUID)
		assert.False(t, m.SentAt.IsZero())
	}
	assert.Empty(t, msgs[6].BattleUUID, "battle stamp cleared after end")

	var gf core.GuessFactorRecord
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &gf))
	assert.Equal(t, 0.75, gf.VictimEscapeGF)
}

func TestPushError(t *testing.T) {
	list := &fakeList{err: errors.New("connection refused")}
	b := NewWithClient(list, "duels", nil)

	err := b.RecordGuessFactor(&core.GuessFactorRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LPUSH")
	assert.Contains(t, err.Error(), "connection refused")
}
