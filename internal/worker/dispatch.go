package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/duelscope/recorder/internal/analyzer"
	"github.com/duelscope/recorder/internal/correlator"
	"github.com/duelscope/recorder/internal/dispatcher"
	"github.com/duelscope/recorder/internal/storage"
	"github.com/duelscope/recorder/pkg/core"
	"github.com/duelscope/recorder/pkg/streaming"
)

// LaneName is the dispatcher lane every lifecycle handler shares.
const LaneName = "battle"

// RegisterHandlers registers all event handlers with the dispatcher.
// Every lifecycle event goes through one ordered lane: a turn must be fully
// correlated before the next one arrives and a round must be flushed before
// the following round starts.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher, bufferSize int) {
	opts := []dispatcher.Option{
		dispatcher.Lane(LaneName),
		dispatcher.Buffered(bufferSize),
		dispatcher.Blocking(),
		dispatcher.Logged(),
	}
	d.Register(streaming.TypeBattleStarted, m.handleBattleStarted, opts...)
	d.Register(streaming.TypeRoundStarted, m.handleRoundStarted, opts...)
	d.Register(streaming.TypeTurnEnded, m.handleTurnEnded, opts...)
	d.Register(streaming.TypeRoundEnded, m.handleRoundEnded, opts...)
	d.Register(streaming.TypeBattleEnded, m.handleBattleEnded, opts...)
}

func (m *Manager) handleBattleStarted(e dispatcher.Event) (any, error) {
	b, err := m.deps.ParserService.ParseBattle(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to start battle: %w", err)
	}

	var errs []error
	if m.active {
		m.deps.LogManager.Logger().Warn("Battle started before the previous one ended, closing it",
			"battleName", m.deps.BattleContext.GetBattle().Name)
		errs = append(errs, m.endBattle())
	}

	if b.Tag == "" {
		b.Tag = m.deps.DefaultTag
	}
	// the backend assigns the ID before the battle becomes visible to readers
	if m.hasBackend() {
		if err := m.backend.StartBattle(&b); err != nil {
			errs = append(errs, fmt.Errorf("failed to store battle: %w", err))
		}
	}
	m.deps.BattleContext.SetBattle(&b)
	m.deps.Roster.Load(b.Participants)
	m.active = true

	m.deps.LogManager.Logger().Info("Battle started",
		"battleName", b.Name,
		"battleUuid", b.UUID,
		"rounds", b.NumRounds)
	return nil, errors.Join(errs...)
}

func (m *Manager) handleRoundStarted(e dispatcher.Event) (any, error) {
	round, err := m.deps.ParserService.ParseRoundStarted(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to start round: %w", err)
	}

	var errs []error
	if m.correlator != nil {
		errs = append(errs, m.abandonRound())
	}
	errs = append(errs, m.startRound(round, e))
	return nil, errors.Join(errs...)
}

func (m *Manager) startRound(round int, e dispatcher.Event) error {
	logger := m.deps.LogManager.Logger()

	m.mu.Lock()
	m.correlator = correlator.New(round, logger)
	m.decided = -1
	m.mu.Unlock()
	m.deps.BattleContext.SetRound(round)

	if !m.hasBackend() {
		return nil
	}
	r := &core.Round{
		BattleID:  m.deps.BattleContext.GetBattle().ID,
		Number:    round,
		StartTime: e.Timestamp,
	}
	if err := m.backend.StartRound(r); err != nil {
		return fmt.Errorf("failed to store round %d: %w", round, err)
	}
	return nil
}

func (m *Manager) handleTurnEnded(e dispatcher.Event) (any, error) {
	snap, err := m.deps.ParserService.ParseTurn(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse turn: %w", err)
	}

	if m.correlator == nil && m.decided == snap.Round {
		return nil, nil
	}

	var errs []error
	if m.correlator == nil || m.correlator.Round() != snap.Round {
		m.deps.LogManager.Logger().Warn("Turn arrived outside its round, opening the round implicitly",
			"round", snap.Round,
			"turn", snap.Turn)
		if m.correlator != nil {
			errs = append(errs, m.abandonRound())
		}
		errs = append(errs, m.startRound(snap.Round, e))
	}

	m.deps.Roster.Observe(snap.Robots)
	m.deps.BattleContext.SetTurn(snap.Turn)

	m.mu.Lock()
	err = m.correlator.ProcessTurn(&snap)
	m.mu.Unlock()
	m.turns.Inc()
	m.metrics.turns.Add(context.Background(), 1)

	if err != nil {
		errs = append(errs, fmt.Errorf("turn %d of round %d: %w", snap.Turn, snap.Round, err))
	}

	if len(snap.Robots) > 0 && snap.AliveCount() < 2 {
		errs = append(errs, m.decideRound(&snap))
	}
	return nil, errors.Join(errs...)
}

// decideRound closes the round on the turn a participant died, the same way a
// reported round end would.
func (m *Manager) decideRound(snap *core.TurnSnapshot) error {
	result := core.RoundResult{Round: snap.Round, Turn: snap.Turn}
	if s := snap.Survivor(); s != nil {
		result.Winner = s.Name
		if result.Winner == "" {
			result.Winner = m.deps.Roster.Name(s.Index)
		}
	}
	m.deps.LogManager.Logger().Info("Round decided by a death",
		"round", snap.Round,
		"turn", snap.Turn,
		"winner", result.Winner)

	err := m.finishRound(result)
	m.mu.Lock()
	m.decided = snap.Round
	m.mu.Unlock()
	return err
}

func (m *Manager) handleRoundEnded(e dispatcher.Event) (any, error) {
	result, err := m.deps.ParserService.ParseRoundEnded(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to end round: %w", err)
	}

	if m.correlator == nil && m.decided == result.Round {
		m.deps.LogManager.Logger().Debug("Round already closed by a death", "round", result.Round)
		return nil, nil
	}
	if m.correlator == nil {
		m.deps.LogManager.Logger().Warn("Round ended without being started", "round", result.Round)
		if m.hasBackend() {
			return nil, m.backend.EndRound(&result)
		}
		return nil, nil
	}
	if m.correlator.Round() != result.Round {
		m.deps.LogManager.Logger().Warn("Round end does not match the open round",
			"open", m.correlator.Round(),
			"ended", result.Round)
		result.Round = m.correlator.Round()
	}
	return nil, m.finishRound(result)
}

func (m *Manager) handleBattleEnded(e dispatcher.Event) (any, error) {
	if !m.active {
		m.deps.LogManager.Logger().Warn("Battle ended without being started")
		return nil, nil
	}
	return nil, m.endBattle()
}

// endBattle flushes any open round, closes the battle in storage and uploads
// the exported file when both the backend and the uploader support it.
func (m *Manager) endBattle() error {
	var errs []error
	if m.correlator != nil {
		errs = append(errs, m.abandonRound())
	}

	b := m.deps.BattleContext.GetBattle()
	if m.hasBackend() {
		if err := m.backend.EndBattle(); err != nil {
			errs = append(errs, fmt.Errorf("failed to end battle: %w", err))
		} else {
			errs = append(errs, m.upload())
		}
	}

	m.deps.Roster.Reset()
	m.active = false
	m.decided = -1
	m.deps.LogManager.Logger().Info("Battle ended",
		"battleName", b.Name,
		"battleUuid", b.UUID,
		"bulletsAnalyzed", m.analyzed.Value())
	return errors.Join(errs...)
}

func (m *Manager) upload() error {
	u, ok := m.backend.(storage.Uploadable)
	if !ok || m.deps.Uploader == nil {
		return nil
	}
	path := u.GetExportedFilePath()
	if path == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.deps.UploadTimeout)
	defer cancel()
	if err := m.deps.Uploader.Upload(ctx, path, u.GetExportMetadata()); err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	m.deps.LogManager.Logger().Info("Uploaded battle export", "path", path)
	return nil
}

// abandonRound closes a round the simulation never reported as ended.
func (m *Manager) abandonRound() error {
	_, turn := m.deps.BattleContext.Position()
	return m.finishRound(core.RoundResult{
		Round:     m.correlator.Round(),
		Turn:      turn,
		Abandoned: true,
	})
}

// finishRound flushes the correlator, analyzes the resolved bullets and hands
// the output to every sink. One failing sink does not keep the others from
// receiving the round.
func (m *Manager) finishRound(result core.RoundResult) error {
	logger := m.deps.LogManager.Logger()

	m.mu.Lock()
	c := m.correlator
	resolved := c.EndRound()
	m.lastStats = c.Stats()
	m.correlator = nil
	m.mu.Unlock()

	stats := m.lastStats
	if err := c.Err(); err != nil {
		logger.Error("Round was tracked partially", "round", c.Round(), "error", err)
	}

	b := m.deps.BattleContext.GetBattle()
	records, err := m.deps.Analyzer.AnalyzeAll(resolved)
	failures := analyzer.Failures(err)
	for _, f := range failures {
		logger.Warn("Bullet analysis failed",
			"round", c.Round(),
			"bulletId", f.BulletID,
			"owner", f.OwnerIndex,
			"kind", f.Kind.String())
	}
	for i := range records {
		records[i].BattleID = b.ID
		records[i].Round = c.Round()
	}

	summaries := analyzer.CountOutcomes(analyzer.Summarize(records), c.Records(), failures, m.deps.Roster.Name)
	for i := range summaries {
		summaries[i].BattleID = b.ID
		summaries[i].Round = c.Round()
	}

	var errs []error
	if m.deps.Report != nil {
		if err := m.deps.Report.WriteAll(records); err != nil {
			errs = append(errs, fmt.Errorf("failed to write report: %w", err))
		}
	}
	if m.hasBackend() {
		errs = append(errs, m.store(records, summaries, &result))
	}
	if m.deps.Points != nil {
		errs = append(errs, m.writePoints(b.UUID, records, summaries))
	}

	m.analyzed.Set(m.analyzed.Value() + len(records))
	m.metrics.recordRound(context.Background(), records, stats.Forced, len(failures))

	logger.Info("Round analyzed",
		"round", c.Round(),
		"winner", result.Winner,
		"abandoned", result.Abandoned,
		"tracked", stats.Tracked,
		"analyzed", len(records),
		"unresolved", stats.Forced,
		"failures", len(failures))
	return errors.Join(errs...)
}

func (m *Manager) store(records []core.GuessFactorRecord, summaries []core.RoundSummary, result *core.RoundResult) error {
	var errs []error
	for i := range records {
		if err := m.backend.RecordGuessFactor(&records[i]); err != nil {
			errs = append(errs, fmt.Errorf("failed to store bullet %d: %w", records[i].BulletKey, err))
		}
	}
	for i := range summaries {
		if err := m.backend.RecordRoundSummary(&summaries[i]); err != nil {
			errs = append(errs, fmt.Errorf("failed to store summary of %s: %w", summaries[i].Shooter, err))
		}
	}
	if err := m.backend.EndRound(result); err != nil {
		errs = append(errs, fmt.Errorf("failed to end round %d: %w", result.Round, err))
	}
	return errors.Join(errs...)
}

func (m *Manager) writePoints(battleUUID string, records []core.GuessFactorRecord, summaries []core.RoundSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.deps.WriteTimeout)
	defer cancel()

	var errs []error
	for i := range records {
		if err := m.deps.Points.WriteGuessFactor(ctx, battleUUID, &records[i]); err != nil {
			errs = append(errs, err)
		}
	}
	for i := range summaries {
		if err := m.deps.Points.WriteRoundSummary(ctx, battleUUID, &summaries[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to write points: %w", errors.Join(errs...))
	}
	return nil
}
