// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duelscope/recorder/internal/database"
	"github.com/duelscope/recorder/internal/logging"
	"github.com/duelscope/recorder/internal/model"
	"github.com/duelscope/recorder/internal/model/convert"
	"github.com/duelscope/recorder/internal/queue"
	"github.com/duelscope/recorder/pkg/core"

	"gorm.io/gorm"
)

// DefaultWriteInterval is how often the writer drains the queues.
const DefaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	WriteInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	GuessFactors   *queue.Queue[model.GuessFactor]
	RoundSummaries *queue.Queue[model.RoundSummary]
}

func newQueues() *queues {
	return &queues{
		GuessFactors:   queue.New[model.GuessFactor](),
		RoundSummaries: queue.New[model.RoundSummary](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	battleID atomic.Uint64
	stopChan chan struct{}
	done     chan struct{}
	writeMu  sync.Mutex // one drain at a time
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

func (b *Backend) log() *slog.Logger {
	if b.deps.LogManager == nil {
		return slog.Default()
	}
	return b.deps.LogManager.Logger()
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.log().Info("Migrating schema", "dialect", b.deps.DB.Dialector.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.closed || b.stopChan == nil {
		return nil
	}
	b.closed = true
	close(b.stopChan)
	<-b.done
	return nil
}

// StartBattle inserts the battle with its participants and assigns the DB ID.
func (b *Backend) StartBattle(battle *core.Battle) error {
	gormBattle := convert.CoreToBattle(*battle)
	gormBattle.ID = 0
	for i := range gormBattle.Participants {
		gormBattle.Participants[i].BattleID = 0
	}

	if err := b.deps.DB.Create(&gormBattle).Error; err != nil {
		return fmt.Errorf("failed to insert new battle: %w", err)
	}

	battle.ID = gormBattle.ID
	b.battleID.Store(uint64(gormBattle.ID))
	return nil
}

// EndBattle flushes pending writes and stamps the end time.
func (b *Backend) EndBattle() error {
	id := b.currentBattle()
	if id == 0 {
		return nil
	}
	b.Flush()

	now := time.Now()
	if err := b.deps.DB.Model(&model.Battle{}).Where("id = ?", id).Update("end_time", now).Error; err != nil {
		return fmt.Errorf("failed to close battle %d: %w", id, err)
	}
	return nil
}

// SetBattleID sets the current battle ID for the DB writer (used by CLI tools).
func (b *Backend) SetBattleID(id uint) {
	b.battleID.Store(uint64(id))
}

func (b *Backend) currentBattle() uint {
	return uint(b.battleID.Load())
}

// StartRound inserts the round synchronously so the ID is available.
func (b *Backend) StartRound(r *core.Round) error {
	gormRound := convert.CoreToRound(*r)
	gormRound.ID = 0
	gormRound.BattleID = b.currentBattle()

	if err := b.deps.DB.Omit("Battle").Create(&gormRound).Error; err != nil {
		return fmt.Errorf("failed to insert round %d: %w", r.Number, err)
	}
	r.ID = gormRound.ID
	r.BattleID = gormRound.BattleID
	return nil
}

// EndRound writes the result columns. A round that was never started is created.
func (b *Backend) EndRound(result *core.RoundResult) error {
	var round model.Round
	err := b.deps.DB.Where("battle_id = ? AND number = ?", b.currentBattle(), result.Round).First(&round).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find round %d: %w", result.Round, err)
		}
		round = model.Round{BattleID: b.currentBattle(), Number: result.Round}
	}

	convert.ApplyRoundResult(&round, *result, time.Now())
	if err := b.deps.DB.Omit("Battle").Save(&round).Error; err != nil {
		return fmt.Errorf("failed to save round %d: %w", result.Round, err)
	}
	return nil
}

// RecordGuessFactor converts and queues an analyzed bullet.
func (b *Backend) RecordGuessFactor(r *core.GuessFactorRecord) error {
	b.queues.GuessFactors.Push(convert.CoreToGuessFactor(*r))
	return nil
}

// RecordRoundSummary converts and queues a round summary.
func (b *Backend) RecordRoundSummary(s *core.RoundSummary) error {
	b.queues.RoundSummaries.Push(convert.CoreToRoundSummary(*s))
	return nil
}

// QueueLengths reports the pending writes.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		GuessFactors:   uint16(min(b.queues.GuessFactors.Len(), 65535)),
		RoundSummaries: uint16(min(b.queues.RoundSummaries.Len(), 65535)),
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) int {
	items := q.Drain(0)
	if len(items) == 0 {
		return 0
	}
	if prepare != nil {
		prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Battle").Create(&items).Error
	})
	if err != nil {
		log.Error("DB write failed", "queue", name, "count", len(items), "error", err)
		q.Requeue(items)
		return 0
	}
	return len(items)
}

// Flush drains every queue into the DB once.
func (b *Backend) Flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	log := b.log()
	battleID := b.currentBattle()
	pending := b.QueueLengths()
	start := time.Now()

	written := writeQueue(b.deps.DB, b.queues.GuessFactors, "guess factors", log, func(items []model.GuessFactor) {
		for i := range items {
			if items[i].BattleID == 0 {
				items[i].BattleID = battleID
			}
		}
	})
	written += writeQueue(b.deps.DB, b.queues.RoundSummaries, "round summaries", log, func(items []model.RoundSummary) {
		for i := range items {
			if items[i].BattleID == 0 {
				items[i].BattleID = battleID
			}
		}
	})

	if written == 0 || battleID == 0 {
		return
	}
	perf := model.RecorderPerformance{
		Time:                time.Now(),
		BattleID:            battleID,
		WriteQueueLengths:   pending,
		LastWriteDurationMs: float32(time.Since(start).Seconds() * 1000),
	}
	if err := b.deps.DB.Omit("Battle").Create(&perf).Error; err != nil {
		log.Warn("Failed to record write performance", "error", err)
	}
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
