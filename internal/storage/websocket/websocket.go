// Package websocket streams battle analysis to a live dashboard.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/duelscope/recorder/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	Logger *slog.Logger
}

// Backend implements storage.Backend. Battle boundaries wait for a server ack;
// everything in between is queued and written asynchronously. Nothing is kept
// locally, so it is not storage.Uploadable.
type Backend struct {
	cfg  Config
	conn *connection
}

func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, conn: newConnection(logger.With("component", "websocket"))}
}

func (b *Backend) Init() error  { return b.conn.dial(b.cfg.URL, b.cfg.Secret) }
func (b *Backend) Close() error { return b.conn.close() }

// marshalEnvelope wraps payload in a streaming.Envelope of the given type.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) queue(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err == nil {
		b.conn.send(data)
	}
	return err
}

func (b *Backend) StartBattle(battle *core.Battle) error {
	data, err := marshalEnvelope(streaming.TypeStartBattle, streaming.StartBattlePayload{Battle: battle})
	if err != nil {
		return err
	}
	b.conn.setHandshake(data, nil)
	return b.conn.sendAndWait(data, streaming.TypeStartBattle, b.conn.ackTimeout)
}

// EndBattle waits for the ack and forgets the handshake even when it times out.
func (b *Backend) EndBattle() error {
	defer b.conn.setHandshake(nil, nil)

	data, err := marshalEnvelope(streaming.TypeEndBattle, nil)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, streaming.TypeEndBattle, b.conn.ackTimeout)
}

func (b *Backend) StartRound(r *core.Round) error {
	data, err := marshalEnvelope(streaming.TypeStartRound, r)
	if err != nil {
		return err
	}
	b.conn.setRound(data)
	b.conn.send(data)
	return nil
}

func (b *Backend) EndRound(result *core.RoundResult) error {
	return b.queue(streaming.TypeEndRound, result)
}

func (b *Backend) RecordGuessFactor(r *core.GuessFactorRecord) error {
	return b.queue(streaming.TypeGuessFactor, r)
}

func (b *Backend) RecordRoundSummary(s *core.RoundSummary) error {
	return b.queue(streaming.TypeRoundSummary, s)
}
