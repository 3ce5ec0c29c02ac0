package convert

import (
	"testing"
	"time"

	"github.com/duelscope/recorder/internal/model"
	"github.com/duelscope/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestKeysToJSON(t *testing.T) {
	assert.Equal(t, datatypes.JSON("[]"), keysToJSON(nil))
	assert.Equal(t, datatypes.JSON("[1000001,2000003]"), keysToJSON([]int{1000001, 2000003}))
}

func TestJSONToKeys(t *testing.T) {
	assert.Nil(t, jsonToKeys(nil))
	assert.Nil(t, jsonToKeys(datatypes.JSON("[]")))
	assert.Nil(t, jsonToKeys(datatypes.JSON("not json")))
	assert.Equal(t, []int{5, 6}, jsonToKeys(datatypes.JSON("[5,6]")))
}

// Round-trip: Core → GORM → Core
func TestBattleRoundTrip(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	in := core.Battle{
		ID:               3,
		UUID:             "2b1f7c5e-8a0d-4d9e-bb8e-1c1f0a7e3a55",
		Name:             "alpha vs beta",
		Arena:            core.Arena{Width: 800, Height: 600},
		NumRounds:        35,
		GunCoolingRate:   0.1,
		InactivityTime:   450,
		StartTime:        start,
		RecorderVersion:  "1.2.0",
		SimulatorVersion: "1.9.5.0",
		Tag:              "Duel",
		Participants: []core.Participant{
			{Index: 0, Name: "alpha"},
			{Index: 1, Name: "beta"},
		},
	}

	gormBattle := CoreToBattle(in)
	require.Len(t, gormBattle.Participants, 2)
	assert.Equal(t, uint(3), gormBattle.Participants[1].BattleID)
	assert.Equal(t, 800.0, gormBattle.ArenaWidth)

	out := BattleToCore(gormBattle)
	assert.Equal(t, in, out)
}

func TestCoreToRound(t *testing.T) {
	r := CoreToRound(core.Round{ID: 9, BattleID: 3, Number: 4})
	assert.Equal(t, uint(9), r.ID)
	assert.Equal(t, uint(3), r.BattleID)
	assert.Equal(t, 4, r.Number)
	assert.Nil(t, r.EndTime)
}

func TestApplyRoundResult(t *testing.T) {
	r := model.Round{Number: 4}
	ended := time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC)

	ApplyRoundResult(&r, core.RoundResult{Round: 4, Turn: 1200, Winner: "alpha", Abandoned: true}, ended)

	require.NotNil(t, r.EndTime)
	assert.Equal(t, ended, *r.EndTime)
	assert.Equal(t, 1200, r.EndTurn)
	assert.Equal(t, "alpha", r.Winner)
	assert.True(t, r.Abandoned)
}

func TestGuessFactorRoundTrip(t *testing.T) {
	in := core.GuessFactorRecord{
		BattleID:          3,
		Round:             1,
		BulletKey:         1_000_042,
		BulletID:          42,
		Shooter:           "alpha",
		ShooterIdx:        0,
		Victim:            "beta",
		VictimIdx:         1,
		TurnDetect:        120,
		TurnLast:          151,
		Hit:               true,
		Power:             1.9,
		FirePos:           core.Position{X: 100, Y: 200},
		VictimStart:       core.Position{X: 400, Y: 500},
		VictimEnd:         core.Position{X: 410, Y: 480},
		MaxEscapeAngle:    0.6,
		MinEscapeAngle:    -0.4,
		CenterEscapeAngle: 0.1,
		OwnerFireAngle:    0.05,
		VictimEscapeAngle: -0.2,
		OwnerFireGF:       0.45,
		VictimEscapeGF:    0.2,
		PrevFlyingBullets: []int{1_000_041},
		NextFlyingBullets: []int{2_000_017, 1_000_043},
	}

	gormGF := CoreToGuessFactor(in)
	assert.False(t, gormGF.Time.IsZero())
	assert.False(t, gormGF.FirePos.IsEmpty())

	out := GuessFactorToCore(gormGF)
	assert.Equal(t, in.FirePos, out.FirePos)
	assert.Equal(t, in.VictimEnd, out.VictimEnd)
	assert.InDelta(t, in.CenterEscapeAngle, out.CenterEscapeAngle, 1e-12)

	out.CenterEscapeAngle = in.CenterEscapeAngle
	assert.Equal(t, in, out)
}

func TestGuessFactorNoFlyingBullets(t *testing.T) {
	gormGF := CoreToGuessFactor(core.GuessFactorRecord{BulletKey: 1_000_001})
	assert.Equal(t, datatypes.JSON("[]"), gormGF.PrevFlying)
	assert.Equal(t, datatypes.JSON("[]"), gormGF.NextFlying)

	out := GuessFactorToCore(gormGF)
	assert.Nil(t, out.PrevFlyingBullets)
	assert.Nil(t, out.NextFlyingBullets)
}

func TestRoundSummaryRoundTrip(t *testing.T) {
	in := core.RoundSummary{
		BattleID:         3,
		Round:            2,
		Shooter:          "beta",
		Shots:            14,
		Hits:             3,
		HitRate:          3.0 / 14.0,
		MeanOwnerGF:      0.5,
		StdDevOwnerGF:    0.1,
		MeanVictimGF:     0.62,
		StdDevVictimGF:   0.2,
		MedianVictimGF:   0.6,
		Unresolved:       1,
		AnalysisFailures: 2,
	}
	assert.Equal(t, in, RoundSummaryToCore(CoreToRoundSummary(in)))
}
