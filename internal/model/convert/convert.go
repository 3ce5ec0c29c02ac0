package convert

import (
	"encoding/json"

	"github.com/duelscope/recorder/internal/geo"
	"github.com/duelscope/recorder/internal/model"
	"github.com/duelscope/recorder/pkg/core"
	"gorm.io/datatypes"
)

func jsonToKeys(data datatypes.JSON) []int {
	var keys []int
	if len(data) > 0 {
		_ = json.Unmarshal(data, &keys)
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}

// BattleToCore converts a GORM Battle (with preloaded participants) to a core.Battle.
func BattleToCore(b model.Battle) core.Battle {
	out := core.Battle{
		ID:               b.ID,
		UUID:             b.UUID,
		Name:             b.Name,
		Arena:            core.Arena{Width: b.ArenaWidth, Height: b.ArenaHeight},
		NumRounds:        b.NumRounds,
		GunCoolingRate:   b.GunCoolingRate,
		InactivityTime:   b.InactivityTime,
		StartTime:        b.StartTime,
		RecorderVersion:  b.RecorderVersion,
		SimulatorVersion: b.SimulatorVersion,
		Tag:              b.Tag,
	}
	for _, p := range b.Participants {
		out.Participants = append(out.Participants, core.Participant{Index: p.Index, Name: p.Name})
	}
	return out
}

// GuessFactorToCore converts a GORM GuessFactor to a core.GuessFactorRecord.
// The center escape angle is not stored and is recomputed from the bounds.
func GuessFactorToCore(g model.GuessFactor) core.GuessFactorRecord {
	firePos, _ := geo.PositionFromPoint(g.FirePos)
	victimStart, _ := geo.PositionFromPoint(g.VictimStart)
	victimEnd, _ := geo.PositionFromPoint(g.VictimEnd)

	return core.GuessFactorRecord{
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
		FirePos:           firePos,
		VictimStart:       victimStart,
		VictimEnd:         victimEnd,
		MaxEscapeAngle:    g.MaxEscapeAngle,
		MinEscapeAngle:    g.MinEscapeAngle,
		CenterEscapeAngle: (g.MaxEscapeAngle + g.MinEscapeAngle) / 2,
		OwnerFireAngle:    g.OwnerFireAngle,
		VictimEscapeAngle: g.VictimEscapeAngle,
		OwnerFireGF:       g.OwnerFireGF,
		VictimEscapeGF:    g.VictimEscapeGF,
		PrevFlyingBullets: jsonToKeys(g.PrevFlying),
		NextFlyingBullets: jsonToKeys(g.NextFlying),
	}
}

// RoundSummaryToCore converts a GORM RoundSummary to a core.RoundSummary.
func RoundSummaryToCore(s model.RoundSummary) core.RoundSummary {
	return core.RoundSummary{
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
