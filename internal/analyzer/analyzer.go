// Package analyzer derives escape angles and guess factors for resolved bullets.
package analyzer

import (
	"errors"
	"math"

	"github.com/duelscope/recorder/internal/correlator"
	"github.com/duelscope/recorder/internal/geo"
	"github.com/duelscope/recorder/pkg/core"
)

// minEscapeRange is the narrowest envelope, in radians, guess factors are computed for.
const minEscapeRange = 1e-9

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithEscapeAngles replaces the escape angle routine.
func WithEscapeAngles(fn geo.EscapeAngleFunc) Option {
	return func(a *Analyzer) {
		a.escape = fn
	}
}

// WithRotationDirection sets the orbit direction passed to the escape angle routine.
func WithRotationDirection(dir int) Option {
	return func(a *Analyzer) {
		if dir < 0 {
			a.direction = -1
		} else {
			a.direction = 1
		}
	}
}

// Analyzer computes firing-solution statistics. It holds no per-round state.
type Analyzer struct {
	escape    geo.EscapeAngleFunc
	direction int
}

// New returns an Analyzer using geo.PreciseEscapeAngles and a +1 rotation direction.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		escape:    geo.PreciseEscapeAngles,
		direction: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze computes the guess factor record of one resolved, undamaged bullet.
// Round and BattleID are left for the caller to fill in.
func (a *Analyzer) Analyze(rec *correlator.Record) (core.GuessFactorRecord, error) {
	if rec == nil {
		return core.GuessFactorRecord{}, &AnalysisError{Kind: MissingHistory, Detail: "nil record"}
	}
	if rec.FireOwner == nil || rec.FireVictim == nil || rec.First == nil || rec.LastVictim == nil {
		return core.GuessFactorRecord{}, a.fail(rec, MissingHistory, "")
	}

	owner := rec.FireOwner.Position
	victimAtFire := rec.FireVictim.Position

	maxAngle, minAngle := a.escape(
		victimAtFire,
		rec.FireVictim.Heading,
		rec.FireVictim.Velocity,
		owner,
		rec.First.Power,
		a.direction,
	)
	minAngle = -minAngle

	total := maxAngle - minAngle
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return core.GuessFactorRecord{}, a.fail(rec, NonFinite, "escape angles")
	}
	if total < minEscapeRange {
		return core.GuessFactorRecord{}, a.fail(rec, ZeroEscapeRange, "")
	}
	center := minAngle + total/2

	bearingAtFire := geo.AbsoluteBearing(owner, victimAtFire)
	ownerFireAngle := geo.NormalRelativeAngle(bearingAtFire - rec.First.Heading)
	victimEscapeAngle := geo.NormalRelativeAngle(bearingAtFire - geo.AbsoluteBearing(owner, rec.LastVictim.Position))

	ownerGF := (ownerFireAngle - minAngle) / total
	victimGF := (victimEscapeAngle - minAngle) / total
	for _, v := range []float64{ownerGF, victimGF} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.GuessFactorRecord{}, a.fail(rec, NonFinite, "guess factor")
		}
	}

	return core.GuessFactorRecord{
		BulletKey:         int(rec.Key),
		BulletID:          rec.BulletID,
		Shooter:           rec.FireOwner.Name,
		ShooterIdx:        rec.OwnerIndex,
		Victim:            rec.FireVictim.Name,
		VictimIdx:         rec.VictimIndex,
		TurnDetect:        rec.TurnDetect,
		TurnLast:          rec.TurnLast,
		Hit:               rec.Hit,
		Power:             rec.First.Power,
		FirePos:           owner,
		VictimStart:       victimAtFire,
		VictimEnd:         rec.LastVictim.Position,
		MaxEscapeAngle:    maxAngle,
		MinEscapeAngle:    minAngle,
		CenterEscapeAngle: center,
		OwnerFireAngle:    ownerFireAngle,
		VictimEscapeAngle: victimEscapeAngle,
		OwnerFireGF:       ownerGF,
		VictimEscapeGF:    victimGF,
		PrevFlyingBullets: keysToInts(rec.PrevFlying),
		NextFlyingBullets: keysToInts(rec.NextFlying),
	}, nil
}

// AnalyzeAll analyzes every record. Failed bullets are skipped and their errors
// joined into the returned error; use Failures to inspect them.
func (a *Analyzer) AnalyzeAll(records []*correlator.Record) ([]core.GuessFactorRecord, error) {
	out := make([]core.GuessFactorRecord, 0, len(records))
	var errs []error
	for _, rec := range records {
		gf, err := a.Analyze(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, gf)
	}
	return out, errors.Join(errs...)
}

func (a *Analyzer) fail(rec *correlator.Record, kind ErrorKind, detail string) *AnalysisError {
	return &AnalysisError{
		Kind:       kind,
		BulletID:   rec.BulletID,
		OwnerIndex: rec.OwnerIndex,
		Detail:     detail,
	}
}

func keysToInts(keys []correlator.BulletKey) []int {
	if len(keys) == 0 {
		return nil
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = int(k)
	}
	return out
}
