package worker

import (
	"context"
	"sync"
	"time"

	"github.com/duelscope/recorder/internal/analyzer"
	"github.com/duelscope/recorder/internal/battle"
	"github.com/duelscope/recorder/internal/cache"
	"github.com/duelscope/recorder/internal/correlator"
	"github.com/duelscope/recorder/internal/logging"
	"github.com/duelscope/recorder/internal/model"
	"github.com/duelscope/recorder/internal/parser"
	"github.com/duelscope/recorder/internal/report"
	"github.com/duelscope/recorder/internal/storage"
	"github.com/duelscope/recorder/pkg/core"
)

// DefaultWriteTimeout bounds every write to an external sink made from a handler.
const DefaultWriteTimeout = 5 * time.Second

// PointWriter receives analysis output as time-series points.
type PointWriter interface {
	WriteGuessFactor(ctx context.Context, battleUUID string, r *core.GuessFactorRecord) error
	WriteRoundSummary(ctx context.Context, battleUUID string, s *core.RoundSummary) error
}

// Uploader sends an exported battle file to the web frontend.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Roster        *cache.RosterCache
	LogManager    *logging.SlogManager
	ParserService parser.Service
	BattleContext *battle.Context
	Analyzer      *analyzer.Analyzer
	// DefaultTag is stamped on battles that arrive without a tag.
	DefaultTag string

	// Optional sinks. A nil value disables the sink.
	Report   *report.Sink
	Points   PointWriter
	Uploader Uploader

	WriteTimeout  time.Duration
	UploadTimeout time.Duration
}

// Manager turns the battle lifecycle into correlated, analyzed bullets.
// Handlers run on a single dispatcher lane so there is one writer; the mutex
// only guards the accessors used by the status monitor.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	metrics *metrics

	mu         sync.Mutex
	correlator *correlator.Correlator
	lastStats  correlator.Stats
	active     bool
	// decided is the round closed because a participant died; its remaining
	// turns and its round_ended event are ignored. -1 when none.
	decided int

	turns    cache.SafeCounter
	analyzed cache.SafeCounter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) (*Manager, error) {
	if deps.Roster == nil {
		deps.Roster = cache.NewRosterCache()
	}
	if deps.BattleContext == nil {
		deps.BattleContext = battle.NewContext()
	}
	if deps.Analyzer == nil {
		deps.Analyzer = analyzer.New()
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = DefaultWriteTimeout
	}
	if deps.UploadTimeout <= 0 {
		deps.UploadTimeout = 2 * time.Minute
	}

	mt, err := newMetrics()
	if err != nil {
		return nil, err
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		metrics: mt,
		decided: -1,
	}, nil
}

func (m *Manager) hasBackend() bool {
	return m.backend != nil
}

// Backend returns the storage backend the manager writes to, possibly nil.
func (m *Manager) Backend() storage.Backend {
	return m.backend
}

// RoundStats returns the transition counters of the round in progress, or of
// the last finished round when none is open.
func (m *Manager) RoundStats() correlator.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.correlator != nil {
		return m.correlator.Stats()
	}
	return m.lastStats
}

// TurnsProcessed returns the number of turns fed to a correlator since start.
func (m *Manager) TurnsProcessed() int {
	return m.turns.Value()
}

// BulletsAnalyzed returns the number of guess-factor records produced since start.
func (m *Manager) BulletsAnalyzed() int {
	return m.analyzed.Value()
}

// WriteQueueLengthsProvider is an optional interface for backends that buffer writes.
type WriteQueueLengthsProvider interface {
	QueueLengths() model.WriteQueueLengths
}

// QueueLengths returns the backend's pending writes, or zeros when the
// backend writes synchronously.
func (m *Manager) QueueLengths() model.WriteQueueLengths {
	if p, ok := m.backend.(WriteQueueLengthsProvider); ok {
		return p.QueueLengths()
	}
	return model.WriteQueueLengths{}
}
