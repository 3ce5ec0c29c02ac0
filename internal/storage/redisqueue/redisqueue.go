// Package redisqueue implements the storage.Backend interface by pushing
// JSON envelopes onto a Redis list for downstream aggregation workers.
// Consumers BRPOP the list, so messages come out in the order they were pushed.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/duelscope/recorder/pkg/streaming"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultQueueName is the list key used when none is configured.
	DefaultQueueName = "duel:guess_factors"
	pushTimeout      = 5 * time.Second
)

// Pusher is the subset of the Redis client the backend needs.
type Pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Config holds Redis backend configuration.
type Config struct {
	URL       string
	QueueName string
}

// Message is what consumers pop from the list.
type Message struct {
	streaming.Envelope
	BattleUUID string    `json:"battleUuid"`
	SentAt     time.Time `json:"sentAt"`
}

// Backend pushes battle analysis onto a Redis list.
type Backend struct {
	client Pusher
	owned  *redis.Client // closed on Close when the backend dialed it
	key    string
	logger *slog.Logger

	mu         sync.Mutex
	battleUUID string
}

// New parses the Redis URL and builds a client.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	b := NewWithClient(client, cfg.QueueName, logger)
	b.owned = client
	return b, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Pusher, queueName string, logger *slog.Logger) *Backend {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		client: client,
		key:    queueName,
		logger: logger.With("component", "redisqueue", "queue", queueName),
	}
}

// QueueName returns the list key.
func (b *Backend) QueueName() string {
	return b.key
}

// Init pings the server when the backend owns the client.
func (b *Backend) Init() error {
	if b.owned == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := b.owned.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	b.logger.Info("Connected to Redis")
	return nil
}

// Close releases the client when the backend owns it.
func (b *Backend) Close() error {
	if b.owned == nil {
		return nil
	}
	return b.owned.Close()
}

func (b *Backend) push(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", msgType, err)
	}

	b.mu.Lock()
	msg := Message{
		Envelope:   streaming.Envelope{Type: msgType, Payload: raw},
		BattleUUID: b.battleUUID,
		SentAt:     time.Now().UTC(),
	}
	b.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msgType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := b.client.LPush(ctx, b.key, data).Err(); err != nil {
		return fmt.Errorf("redis LPUSH %s: %w", msgType, err)
	}
	return nil
}

func (b *Backend) StartBattle(battle *core.Battle) error {
	b.mu.Lock()
	b.battleUUID = battle.UUID
	b.mu.Unlock()
	return b.push(streaming.TypeStartBattle, streaming.StartBattlePayload{Battle: battle})
}

func (b *Backend) EndBattle() error {
	err := b.push(streaming.TypeEndBattle, nil)
	b.mu.Lock()
	b.battleUUID = ""
	b.mu.Unlock()
	return err
}

func (b *Backend) StartRound(r *core.Round) error {
	return b.push(streaming.TypeStartRound, r)
}

func (b *Backend) EndRound(result *core.RoundResult) error {
	return b.push(streaming.TypeEndRound, result)
}

func (b *Backend) RecordGuessFactor(r *core.GuessFactorRecord) error {
	return b.push(streaming.TypeGuessFactor, r)
}

func (b *Backend) RecordRoundSummary(s *core.RoundSummary) error {
	return b.push(streaming.TypeRoundSummary, s)
}
