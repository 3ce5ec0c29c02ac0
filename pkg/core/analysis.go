// pkg/core/analysis.go
package core

// Outcome tags used in reports.
const (
	OutcomeHit  = "H"
	OutcomeMiss = "M"
)

// GuessFactorRecord is the analysis output for one resolved bullet.
type GuessFactorRecord struct {
	BattleID    uint     `json:"battleId"`
	Round       int      `json:"round"`
	BulletKey   int      `json:"bulletKey"`
	BulletID    int      `json:"bulletId"`
	Shooter     string   `json:"shooter"`
	ShooterIdx  int      `json:"shooterIdx"`
	Victim      string   `json:"victim"`
	VictimIdx   int      `json:"victimIdx"`
	TurnDetect  int      `json:"turnDetect"`
	TurnLast    int      `json:"turnLast"`
	Hit         bool     `json:"hit"`
	Power       float64  `json:"power"`
	FirePos     Position `json:"firePos"`
	VictimStart Position `json:"victimStart"`
	VictimEnd   Position `json:"victimEnd"`

	MaxEscapeAngle    float64 `json:"maxEscapeAngle"`
	MinEscapeAngle    float64 `json:"minEscapeAngle"`
	CenterEscapeAngle float64 `json:"centerEscapeAngle"`
	OwnerFireAngle    float64 `json:"ownerFireAngle"`
	VictimEscapeAngle float64 `json:"victimEscapeAngle"`
	OwnerFireGF       float64 `json:"ownerFireGF"`
	VictimEscapeGF    float64 `json:"victimEscapeGF"`
	PrevFlyingBullets []int   `json:"prevFlyingBullets"`
	NextFlyingBullets []int   `json:"nextFlyingBullets"`
}

// Outcome returns OutcomeHit or OutcomeMiss.
func (r *GuessFactorRecord) Outcome() string {
	if r.Hit {
		return OutcomeHit
	}
	return OutcomeMiss
}

// RoundSummary aggregates the guess factors of one shooter over a round.
type RoundSummary struct {
	BattleID         uint    `json:"battleId"`
	Round            int     `json:"round"`
	Shooter          string  `json:"shooter"`
	Shots            int     `json:"shots"`
	Hits             int     `json:"hits"`
	HitRate          float64 `json:"hitRate"`
	MeanOwnerGF      float64 `json:"meanOwnerGF"`
	StdDevOwnerGF    float64 `json:"stdDevOwnerGF"`
	MeanVictimGF     float64 `json:"meanVictimGF"`
	StdDevVictimGF   float64 `json:"stdDevVictimGF"`
	MedianVictimGF   float64 `json:"medianVictimGF"`
	Unresolved       int     `json:"unresolved"`
	AnalysisFailures int     `json:"analysisFailures"`
}
