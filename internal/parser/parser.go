package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/duelscope/recorder/pkg/streaming"
	"github.com/google/uuid"
)

// ErrEmptyPayload is returned when an envelope carries no payload.
var ErrEmptyPayload = errors.New("empty payload")

// Service is the parsing surface the worker layer depends on.
type Service interface {
	ParseEnvelope(line []byte) (streaming.Envelope, error)
	ParseBattle(payload json.RawMessage) (core.Battle, error)
	ParseRoundStarted(payload json.RawMessage) (int, error)
	ParseTurn(payload json.RawMessage) (core.TurnSnapshot, error)
	ParseRoundEnded(payload json.RawMessage) (core.RoundResult, error)
}

// Parser provides pure payload -> core struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger

	// Static config set at creation time
	recorderVersion string
}

var _ Service = (*Parser)(nil)

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger, recorderVersion string) *Parser {
	return &Parser{
		logger:          logger,
		recorderVersion: recorderVersion,
	}
}

// ParseEnvelope decodes one newline-delimited input message.
func (p *Parser) ParseEnvelope(line []byte) (streaming.Envelope, error) {
	var env streaming.Envelope
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return env, ErrEmptyPayload
	}
	if err := json.Unmarshal(line, &env); err != nil {
		return env, fmt.Errorf("error unmarshalling envelope: %w", err)
	}
	if env.Type == "" {
		return env, errors.New("envelope has no type")
	}
	return env, nil
}

// ParseBattle parses battle_started. NO DB operations, NO cache resets, NO callbacks.
func (p *Parser) ParseBattle(payload json.RawMessage) (core.Battle, error) {
	var battle core.Battle
	var data streaming.BattleStartedPayload
	if err := decode(payload, &data); err != nil {
		return battle, fmt.Errorf("error unmarshalling battle data: %w", err)
	}
	if len(data.Participants) != 2 {
		return battle, fmt.Errorf("a duel needs exactly 2 participants, got %d", len(data.Participants))
	}

	battle.UUID = uuid.NewString()
	battle.Name = data.Name
	if battle.Name == "" {
		battle.Name = strings.Join(data.Participants, " vs ")
	}
	battle.Arena = core.Arena{Width: data.ArenaWidth, Height: data.ArenaHeight}
	battle.NumRounds = data.NumRounds
	battle.GunCoolingRate = data.GunCoolingRate
	battle.InactivityTime = data.InactivityTime
	for i, name := range data.Participants {
		battle.Participants = append(battle.Participants, core.Participant{Index: i, Name: name})
	}
	battle.StartTime = time.Now()
	battle.RecorderVersion = p.recorderVersion
	battle.SimulatorVersion = data.SimulatorVersion
	battle.Tag = data.Tag

	p.logger.Debug("Parsed battle data",
		"battleName", battle.Name,
		"rounds", battle.NumRounds)

	return battle, nil
}

// ParseRoundStarted returns the round number being started.
func (p *Parser) ParseRoundStarted(payload json.RawMessage) (int, error) {
	var data streaming.RoundStartedPayload
	if err := decode(payload, &data); err != nil {
		return 0, fmt.Errorf("error unmarshalling round data: %w", err)
	}
	if data.Round < 0 {
		return 0, fmt.Errorf("invalid round number %d", data.Round)
	}
	return data.Round, nil
}

// ParseRoundEnded parses round_ended.
func (p *Parser) ParseRoundEnded(payload json.RawMessage) (core.RoundResult, error) {
	var data streaming.RoundEndedPayload
	if err := decode(payload, &data); err != nil {
		return core.RoundResult{}, fmt.Errorf("error unmarshalling round result: %w", err)
	}
	return core.RoundResult{
		Round:     data.Round,
		Turn:      data.Turn,
		Winner:    data.Winner,
		Abandoned: data.Abandoned,
	}, nil
}

func decode(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 || string(payload) == "null" {
		return ErrEmptyPayload
	}
	return json.Unmarshal(payload, v)
}
