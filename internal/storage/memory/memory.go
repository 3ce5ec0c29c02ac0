// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/duelscope/recorder/internal/config"
	"github.com/duelscope/recorder/pkg/core"
)

// ErrNoBattle is returned when data arrives outside a battle.
var ErrNoBattle = errors.New("no battle started")

// RoundRecord groups a round with its analysis output
type RoundRecord struct {
	Round     core.Round
	Result    *core.RoundResult
	Bullets   []core.GuessFactorRecord
	Summaries []core.RoundSummary
}

// Backend keeps a battle in memory and exports it to JSON when it ends
type Backend struct {
	cfg    config.MemoryConfig
	battle *core.Battle
	rounds map[int]*RoundRecord // keyed by round number

	current        int
	idCounter      uint
	endTime        time.Time
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		rounds: make(map[int]*RoundRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartBattle begins recording a new battle
func (b *Backend) StartBattle(battle *core.Battle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.battle = battle
	b.rounds = make(map[int]*RoundRecord)
	b.current = 0
	b.idCounter = 0
	b.endTime = time.Time{}
	return nil
}

// EndBattle finalizes and exports the battle data
func (b *Backend) EndBattle() error {
	return b.EndBattleAt(time.Now())
}

// EndBattleAt exports the battle as if it ended at end. It is used when
// re-exporting battles loaded from the database.
func (b *Backend) EndBattleAt(end time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.battle == nil {
		return ErrNoBattle
	}
	b.endTime = end
	return b.exportJSON()
}

// StartRound opens a round and assigns its ID
func (b *Backend) StartRound(r *core.Round) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.battle == nil {
		return ErrNoBattle
	}
	b.idCounter++
	r.ID = b.idCounter
	r.BattleID = b.battle.ID

	b.rounds[r.Number] = &RoundRecord{Round: *r}
	b.current = r.Number
	return nil
}

// EndRound stores the round result
func (b *Backend) EndRound(result *core.RoundResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.roundLocked(result.Round)
	if err != nil {
		return err
	}
	res := *result
	rec.Result = &res
	return nil
}

// RecordGuessFactor appends an analyzed bullet to its round
func (b *Backend) RecordGuessFactor(r *core.GuessFactorRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.roundLocked(r.Round)
	if err != nil {
		return err
	}
	rec.Bullets = append(rec.Bullets, *r)
	return nil
}

// RecordRoundSummary appends a per-shooter summary to its round
func (b *Backend) RecordRoundSummary(s *core.RoundSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.roundLocked(s.Round)
	if err != nil {
		return err
	}
	rec.Summaries = append(rec.Summaries, *s)
	return nil
}

// roundLocked returns the round record, creating it for data that arrives
// without a round_started (e.g. a recorder attached mid-round).
func (b *Backend) roundLocked(number int) (*RoundRecord, error) {
	if b.battle == nil {
		return nil, ErrNoBattle
	}
	rec, ok := b.rounds[number]
	if !ok {
		b.idCounter++
		rec = &RoundRecord{Round: core.Round{ID: b.idCounter, BattleID: b.battle.ID, Number: number}}
		b.rounds[number] = rec
	}
	return rec, nil
}

// Rounds returns a copy of the recorded rounds ordered by number
func (b *Backend) Rounds() []RoundRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sorted := b.sortedRoundsLocked()
	out := make([]RoundRecord, 0, len(sorted))
	for _, rec := range sorted {
		out = append(out, *rec)
	}
	return out
}
