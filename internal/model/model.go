package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Battle{},
	&Participant{},
	&Round{},
	&GuessFactor{},
	&RoundSummary{},
	&RecorderPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// RecorderPerformance is the model for recorder write metrics
type RecorderPerformance struct {
	Time                time.Time         `json:"time" gorm:"index:idx_perf_time"`
	BattleID            uint              `json:"battleId" gorm:"index:idx_perf_battle_id"`
	Battle              Battle            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*RecorderPerformance) TableName() string {
	return "recorder_performances"
}

// WriteQueueLengths is the model for the write queue lengths
type WriteQueueLengths struct {
	GuessFactors   uint16 `json:"guessFactors"`
	RoundSummaries uint16 `json:"roundSummaries"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Battle is the main model for a recorded duel
type Battle struct {
	gorm.Model
	UUID             string     `json:"uuid" gorm:"size:36;uniqueIndex:idx_battle_uuid"`
	Name             string     `json:"name" gorm:"size:200"`
	ArenaWidth       float64    `json:"arenaWidth"`
	ArenaHeight      float64    `json:"arenaHeight"`
	NumRounds        int        `json:"numRounds"`
	GunCoolingRate   float64    `json:"gunCoolingRate"`
	InactivityTime   int        `json:"inactivityTime"`
	StartTime        time.Time  `json:"battleStart" gorm:"index:idx_battle_start"`
	EndTime          *time.Time `json:"battleEnd"`
	RecorderVersion  string     `json:"recorderVersion" gorm:"size:64"`
	SimulatorVersion string     `json:"simulatorVersion" gorm:"size:64"`
	Tag              string     `json:"tag" gorm:"size:127"`

	Participants []Participant
	Rounds       []Round
}

func (*Battle) TableName() string {
	return "battles"
}

// Participant is a robot registered for a battle.
// Uses composite primary key (BattleID, Index)
type Participant struct {
	BattleID uint   `json:"battleId" gorm:"primaryKey;autoIncrement:false"`
	Index    int    `json:"index" gorm:"column:robot_index;primaryKey;autoIncrement:false"`
	Name     string `json:"name" gorm:"size:127;index:idx_participant_name"`
}

func (*Participant) TableName() string {
	return "participants"
}

// Round is one round of a battle. The result columns are filled when it ends.
type Round struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	BattleID  uint       `json:"battleId" gorm:"uniqueIndex:idx_round_battle_number"`
	Battle    Battle     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Number    int        `json:"number" gorm:"uniqueIndex:idx_round_battle_number"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	EndTurn   int        `json:"endTurn"`
	Winner    string     `json:"winner" gorm:"size:127"`
	Abandoned bool       `json:"abandoned"`
}

func (*Round) TableName() string {
	return "rounds"
}

// GuessFactor is one analyzed bullet
type GuessFactor struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time  `json:"time"`
	BattleID    uint       `json:"battleId" gorm:"index:idx_gf_battle_round"`
	Battle      Battle     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Round       int        `json:"round" gorm:"index:idx_gf_battle_round"`
	BulletKey   int        `json:"bulletKey"`
	BulletID    int        `json:"bulletId"`
	Shooter     string     `json:"shooter" gorm:"size:127;index:idx_gf_shooter"`
	ShooterIdx  int        `json:"shooterIdx"`
	Victim      string     `json:"victim" gorm:"size:127"`
	VictimIdx   int        `json:"victimIdx"`
	TurnDetect  int        `json:"turnDetect"`
	TurnLast    int        `json:"turnLast"`
	Hit         bool       `json:"hit"`
	Power       float64    `json:"power"`
	FirePos     geom.Point `json:"firePos"`     // shooter position at fire time
	VictimStart geom.Point `json:"victimStart"` // victim position at fire time
	VictimEnd   geom.Point `json:"victimEnd"`   // victim position when the bullet resolved

	MaxEscapeAngle    float64 `json:"maxEscapeAngle"`
	MinEscapeAngle    float64 `json:"minEscapeAngle"`
	OwnerFireAngle    float64 `json:"ownerFireAngle"`
	VictimEscapeAngle float64 `json:"victimEscapeAngle"`
	OwnerFireGF       float64 `json:"ownerFireGF"`
	VictimEscapeGF    float64 `json:"victimEscapeGF"`

	PrevFlying datatypes.JSON `json:"prevFlying"` // JSON array of bullet keys
	NextFlying datatypes.JSON `json:"nextFlying"`
}

func (*GuessFactor) TableName() string {
	return "guess_factors"
}

// RoundSummary is a per-shooter aggregate for a round
type RoundSummary struct {
	ID               uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	BattleID         uint    `json:"battleId" gorm:"index:idx_summary_battle_round"`
	Battle           Battle  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Round            int     `json:"round" gorm:"index:idx_summary_battle_round"`
	Shooter          string  `json:"shooter" gorm:"size:127"`
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

func (*RoundSummary) TableName() string {
	return "round_summaries"
}
