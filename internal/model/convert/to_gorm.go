// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"time"

	"github.com/duelscope/recorder/internal/geo"
	"github.com/duelscope/recorder/internal/model"
	"github.com/duelscope/recorder/pkg/core"
	"gorm.io/datatypes"
)

// keysToJSON converts a []int of bullet keys to datatypes.JSON for DB storage.
func keysToJSON(keys []int) datatypes.JSON {
	if len(keys) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(keys)
	return datatypes.JSON(data)
}

// CoreToBattle converts a core.Battle to a GORM model.Battle including its participants.
func CoreToBattle(b core.Battle) model.Battle {
	out := model.Battle{
		UUID:             b.UUID,
		Name:             b.Name,
		ArenaWidth:       b.Arena.Width,
		ArenaHeight:      b.Arena.Height,
		NumRounds:        b.NumRounds,
		GunCoolingRate:   b.GunCoolingRate,
		InactivityTime:   b.InactivityTime,
		StartTime:        b.StartTime,
		RecorderVersion:  b.RecorderVersion,
		SimulatorVersion: b.SimulatorVersion,
		Tag:              b.Tag,
		Participants:     make([]model.Participant, 0, len(b.Participants)),
	}
	out.ID = b.ID
	for _, p := range b.Participants {
		out.Participants = append(out.Participants, model.Participant{
			BattleID: b.ID,
			Index:    p.Index,
			Name:     p.Name,
		})
	}
	return out
}

// CoreToRound converts a core.Round to a GORM model.Round.
func CoreToRound(r core.Round) model.Round {
	return model.Round{
		ID:        r.ID,
		BattleID:  r.BattleID,
		Number:    r.Number,
		StartTime: r.StartTime,
	}
}

// ApplyRoundResult copies the result columns onto an existing round row.
func ApplyRoundResult(r *model.Round, res core.RoundResult, endedAt time.Time) {
	r.EndTime = &endedAt
	r.EndTurn = res.Turn
	r.Winner = res.Winner
	r.Abandoned = res.Abandoned
}

// CoreToGuessFactor converts a core.GuessFactorRecord to a GORM model.GuessFactor.
func CoreToGuessFactor(g core.GuessFactorRecord) model.GuessFactor {
	return model.GuessFactor{
		Time:              time.Now(),
		BattleID:          g.BattleID,
		Round:             g.Round,
		BulletKey:         g.BulletKey,
		BulletID:          g.BulletID,
		Shooter:           g.Shooter,
		ShooterIdx:        g.ShooterIdx,
		Victim:            g.Victim,
		VictimIdx:         g.VictimIdx,
		TurnDetect:        g.TurnDetect,
		TurnLast:          g.TurnLast,
		Hit:               g.Hit,
		Power:             g.Power,
		FirePos:           geo.PointFromPosition(g.FirePos),
		VictimStart:       geo.PointFromPosition(g.VictimStart),
		VictimEnd:         geo.PointFromPosition(g.VictimEnd),
		MaxEscapeAngle:    g.MaxEscapeAngle,
		MinEscapeAngle:    g.MinEscapeAngle,
		OwnerFireAngle:    g.OwnerFireAngle,
		VictimEscapeAngle: g.VictimEscapeAngle,
		OwnerFireGF:       g.OwnerFireGF,
		VictimEscapeGF:    g.VictimEscapeGF,
		PrevFlying:        keysToJSON(g.PrevFlyingBullets),
		NextFlying:        keysToJSON(g.NextFlyingBullets),
	}
}

// CoreToRoundSummary converts a core.RoundSummary to a GORM model.RoundSummary.
func CoreToRoundSummary(s core.RoundSummary) model.RoundSummary {
	return model.RoundSummary{
		BattleID:         s.BattleID,
		Round:            s.Round,
		Shooter:          s.Shooter,
		Shots:            s.Shots,
		Hits:             s.Hits,
		HitRate:          s.HitRate,
		MeanOwnerGF:      s.MeanOwnerGF,
		StdDevOwnerGF:    s.StdDevOwnerGF,
		MeanVictimGF:     s.MeanVictimGF,
		StdDevVictimGF:   s.StdDevVictimGF,
		MedianVictimGF:   s.MedianVictimGF,
		Unresolved:       s.Unresolved,
		AnalysisFailures: s.AnalysisFailures,
	}
}
