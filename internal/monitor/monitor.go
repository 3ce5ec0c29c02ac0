package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/duelscope/recorder/internal/battle"
	"github.com/duelscope/recorder/internal/config"
	"github.com/duelscope/recorder/internal/correlator"
	"github.com/duelscope/recorder/internal/influx"
	"github.com/duelscope/recorder/internal/logging"
	"github.com/duelscope/recorder/internal/model"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Source is the part of the worker manager the monitor reports on.
type Source interface {
	RoundStats() correlator.Stats
	TurnsProcessed() int
	BulletsAnalyzed() int
	QueueLengths() model.WriteQueueLengths
}

// PointWriter receives the throughput point of every tick.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager    *logging.SlogManager
	BattleContext *battle.Context
	Source        Source
	// QueueSizes reports dispatcher lane backlogs. Optional.
	QueueSizes func() map[string]int
	// Points receives a turn-rate point per tick. Optional.
	Points PointWriter
	Config config.StatusConfig
}

// Status is the content of the status file.
type Status struct {
	Time            time.Time               `json:"time"`
	Battle          string                  `json:"battle"`
	BattleUUID      string                  `json:"battleUuid"`
	Round           int                     `json:"round"`
	Turn            int                     `json:"turn"`
	TurnsProcessed  int                     `json:"turnsProcessed"`
	TurnsPerSecond  float64                 `json:"turnsPerSecond"`
	BulletsAnalyzed int                     `json:"bulletsAnalyzed"`
	RoundStats      correlator.Stats        `json:"roundStats"`
	WriteQueues     model.WriteQueueLengths `json:"writeQueues"`
	DispatchQueues  map[string]int          `json:"dispatchQueues,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}

	lastTurns int
	lastTick  time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Config.Interval <= 0 {
		deps.Config.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus snapshots the recorder state. TurnsPerSecond is measured since the
// previous call.
func (s *Service) GetStatus(now time.Time) Status {
	b := s.deps.BattleContext.GetBattle()
	round, turn := s.deps.BattleContext.Position()

	st := Status{
		Time:            now,
		Battle:          b.Name,
		BattleUUID:      b.UUID,
		Round:           round,
		Turn:            turn,
		TurnsProcessed:  s.deps.Source.TurnsProcessed(),
		BulletsAnalyzed: s.deps.Source.BulletsAnalyzed(),
		RoundStats:      s.deps.Source.RoundStats(),
		WriteQueues:     s.deps.Source.QueueLengths(),
	}
	if s.deps.QueueSizes != nil {
		st.DispatchQueues = s.deps.QueueSizes()
	}

	s.mu.Lock()
	if !s.lastTick.IsZero() {
		if elapsed := now.Sub(s.lastTick).Seconds(); elapsed > 0 {
			st.TurnsPerSecond = float64(st.TurnsProcessed-s.lastTurns) / elapsed
		}
	}
	s.lastTurns = st.TurnsProcessed
	s.lastTick = now
	s.mu.Unlock()

	return st
}

// WriteStatus renders st as indented JSON into path, replacing the previous content.
func WriteStatus(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if dir := filepath.Dir(s.deps.Config.File); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to create status directory: %w", err)
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "file", s.deps.Config.File)

		ticker := time.NewTicker(s.deps.Config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.tick(now)
			}
		}
	}()

	return nil
}

func (s *Service) tick(now time.Time) {
	logger := s.deps.LogManager.Logger()
	st := s.GetStatus(now)
	if st.BattleUUID == "" {
		return
	}

	if err := WriteStatus(s.deps.Config.File, st); err != nil {
		logger.Error("Error writing status file", "error", err)
	}

	if s.deps.Points != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.deps.Config.Interval)
		defer cancel()
		point := influx.TurnRatePoint(st.BattleUUID, st.TurnsPerSecond, st.RoundStats.InFlight, now)
		if err := s.deps.Points.WritePoint(ctx, influx.PerformanceBucket, point); err != nil {
			logger.Error("Error writing turn rate to InfluxDB", "error", err)
		}
	}
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
