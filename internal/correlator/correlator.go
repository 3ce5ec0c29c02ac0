// Package correlator follows every bullet of a duel round from detection to
// resolution and hands the resolved ones to the analyzer at round end.
package correlator

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/duelscope/recorder/internal/geo"
	"github.com/duelscope/recorder/internal/window"
	"github.com/duelscope/recorder/pkg/core"
)

var (
	// ErrUnknownBulletStatus is returned for a bullet status the correlator does not
	// model. The round cannot be tracked further once this happens.
	ErrUnknownBulletStatus = errors.New("unknown bullet status")
	// ErrInvalidOwner is returned for a bullet whose owner is not one of the two duel slots.
	ErrInvalidOwner = errors.New("bullet owner is not a duel participant")
	// ErrCorrelatorFailed is returned for turns submitted after a fatal error. The
	// failed turn never entered the window, so the aim and fire snapshots of any
	// later bullet would come from the wrong turns.
	ErrCorrelatorFailed = errors.New("correlator stopped after fatal error")
	// ErrRoundClosed is returned for turns submitted after EndRound.
	ErrRoundClosed = errors.New("round already ended")
)

// Stats counts the transitions handled during the round.
type Stats struct {
	Turns    int `json:"turns"`
	Fired    int `json:"fired"`
	Hits     int `json:"hits"`
	Damaged  int `json:"damaged"`
	PassBys  int `json:"passBys"`
	Forced   int `json:"forced"`
	Ignored  int `json:"ignored"`
	Tracked  int `json:"tracked"`
	InFlight int `json:"inFlight"`
}

// Correlator tracks the bullets of a single round. Create one per round and
// drop it after EndRound. It is not safe for concurrent use.
type Correlator struct {
	round  int
	window *window.Window
	all    map[BulletKey]*Record
	flying map[BulletKey]*Record
	stats  Stats
	fatal  error
	closed bool
	logger *slog.Logger
}

// New creates a correlator for the given round.
func New(round int, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		round:  round,
		window: window.New(),
		all:    make(map[BulletKey]*Record),
		flying: make(map[BulletKey]*Record),
		logger: logger.With("round", round),
	}
}

// Round returns the round number this correlator tracks.
func (c *Correlator) Round() int {
	return c.round
}

// Err returns the fatal error that stopped the correlator, if any.
func (c *Correlator) Err() error {
	return c.fatal
}

// ProcessTurn classifies every identified bullet in snap and then advances the
// turn history. An unknown status or an invalid owner aborts the turn and every
// later turn of the round.
func (c *Correlator) ProcessTurn(snap *core.TurnSnapshot) error {
	if c.closed {
		return ErrRoundClosed
	}
	if c.fatal != nil {
		return fmt.Errorf("%w: %w", ErrCorrelatorFailed, c.fatal)
	}
	if snap == nil {
		return errors.New("nil turn snapshot")
	}

	frame := c.window.Peek(snap)
	for i := range snap.Bullets {
		bullet := &snap.Bullets[i]
		if !bullet.HasID() {
			continue
		}
		if err := c.classify(frame, bullet); err != nil {
			c.fatal = fmt.Errorf("turn %d: %w", snap.Turn, err)
			c.logger.Error("bullet classification failed", "turn", snap.Turn, "error", err)
			return c.fatal
		}
	}

	c.window.Advance(snap)
	c.stats.Turns++
	return nil
}

func (c *Correlator) classify(frame window.Frame, bullet *core.BulletSnapshot) error {
	if bullet.OwnerIndex != 0 && bullet.OwnerIndex != 1 {
		return fmt.Errorf("%w: bullet %d owner %d", ErrInvalidOwner, bullet.BulletID, bullet.OwnerIndex)
	}
	key := KeyFor(bullet.OwnerIndex, bullet.BulletID)

	switch bullet.Status {
	case core.BulletFired:
		c.onFired(frame, key, bullet)
	case core.BulletHitVictim:
		c.onHitVictim(frame, key, bullet)
	case core.BulletHitBullet, core.BulletHitWall, core.BulletExploded, core.BulletInactive:
		c.onDestroyed(frame, key, bullet)
	case core.BulletMoving:
		c.onMoving(frame, key, bullet)
	default:
		return fmt.Errorf("%w: %s for bullet %d of robot %d",
			ErrUnknownBulletStatus, bullet.Status, bullet.BulletID, bullet.OwnerIndex)
	}
	return nil
}

func (c *Correlator) onFired(frame window.Frame, key BulletKey, bullet *core.BulletSnapshot) {
	if _, exists := c.all[key]; exists {
		c.stats.Ignored++
		return
	}

	owner, victim := bullet.OwnerIndex, VictimOf(bullet.OwnerIndex)
	rec := &Record{
		Key:          key,
		BulletID:     bullet.BulletID,
		OwnerIndex:   owner,
		VictimIndex:  victim,
		AimOwner:     frame.TwoBack.Robot(owner),
		AimVictim:    frame.TwoBack.Robot(victim),
		FireOwner:    frame.Previous.Robot(owner),
		FireVictim:   frame.Previous.Robot(victim),
		DetectVictim: frame.Current.Robot(victim),
		TurnDetect:   frame.Current.Turn,
		First:        bullet,
	}
	if !frame.HasHistory() {
		c.logger.Warn("bullet detected without full turn history",
			"turn", frame.Current.Turn, "bullet", bullet.BulletID, "owner", owner)
	}

	for _, otherKey := range sortedKeys(c.flying) {
		other := c.flying[otherKey]
		if other.VictimIndex != victim {
			continue
		}
		rec.PrevFlying = append(rec.PrevFlying, otherKey)
		other.NextFlying = append(other.NextFlying, key)
	}

	c.all[key] = rec
	c.flying[key] = rec
	c.stats.Fired++
}

func (c *Correlator) onHitVictim(frame window.Frame, key BulletKey, bullet *core.BulletSnapshot) {
	rec, ok := c.all[key]
	if !ok || rec.Terminal() {
		c.stats.Ignored++
		return
	}
	rec.Hit = true
	rec.resolve(frame.Current.Turn, bullet, frame.Current.Robot(rec.VictimIndex))
	delete(c.flying, key)
	c.stats.Hits++
}

func (c *Correlator) onDestroyed(frame window.Frame, key BulletKey, bullet *core.BulletSnapshot) {
	rec, ok := c.all[key]
	if !ok || rec.Terminal() {
		c.stats.Ignored++
		return
	}
	rec.Damaged = true
	rec.resolve(frame.Current.Turn, bullet, nil)
	delete(c.flying, key)
	c.stats.Damaged++
}

// onMoving resolves a bullet as passed by once it has travelled further from
// the firing point than the victim currently is. This is a single-point test,
// not an intersection with the victim's bounding box. A dead victim no longer
// evades, so its bullets stay in flight until the round is flushed.
func (c *Correlator) onMoving(frame window.Frame, key BulletKey, bullet *core.BulletSnapshot) {
	rec, ok := c.all[key]
	if !ok || rec.Terminal() || rec.FireOwner == nil {
		return
	}
	victim := frame.Current.Robot(rec.VictimIndex)
	if victim == nil || victim.IsDead() {
		return
	}

	origin := rec.FireOwner.Position
	traveled := geo.Distance(origin, bullet.Position)
	toVictim := geo.Distance(origin, victim.Position)
	if traveled <= toVictim {
		return
	}

	rec.resolve(frame.Current.Turn, bullet, victim)
	delete(c.flying, key)
	c.stats.PassBys++
}

// EndRound marks every bullet still in flight as damaged, clears the in-flight
// set and returns the records eligible for analysis (hits and pass-bys) ordered
// by key. It runs even after a fatal classification error.
func (c *Correlator) EndRound() []*Record {
	if !c.closed {
		for _, key := range sortedKeys(c.flying) {
			rec := c.flying[key]
			rec.Damaged, rec.Forced = true, true
			c.stats.Forced++
		}
		clear(c.flying)
		c.window.Reset()
		c.closed = true
	}

	var out []*Record
	for _, key := range sortedKeys(c.all) {
		if rec := c.all[key]; !rec.Damaged {
			out = append(out, rec)
		}
	}
	return out
}

// Record returns the record for a key.
func (c *Correlator) Record(key BulletKey) (*Record, bool) {
	rec, ok := c.all[key]
	return rec, ok
}

// Records returns every bullet seen this round ordered by key.
func (c *Correlator) Records() []*Record {
	out := make([]*Record, 0, len(c.all))
	for _, key := range sortedKeys(c.all) {
		out = append(out, c.all[key])
	}
	return out
}

// Flying returns the keys of the bullets currently in flight.
func (c *Correlator) Flying() []BulletKey {
	return sortedKeys(c.flying)
}

// Stats returns a copy of the transition counters.
func (c *Correlator) Stats() Stats {
	s := c.stats
	s.Tracked = len(c.all)
	s.InFlight = len(c.flying)
	return s
}

func sortedKeys(m map[BulletKey]*Record) []BulletKey {
	keys := make([]BulletKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
