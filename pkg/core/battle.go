// pkg/core/battle.go
package core

import "time"

// Battle is one recorded duel session made of one or more rounds.
type Battle struct {
	ID               uint          `json:"id"`
	UUID             string        `json:"uuid"`
	Name             string        `json:"name"`
	Arena            Arena         `json:"arena"`
	NumRounds        int           `json:"numRounds"`
	GunCoolingRate   float64       `json:"gunCoolingRate"`
	InactivityTime   int           `json:"inactivityTime"`
	Participants     []Participant `json:"participants"`
	StartTime        time.Time     `json:"startTime"`
	RecorderVersion  string        `json:"recorderVersion"`
	SimulatorVersion string        `json:"simulatorVersion"`
	Tag              string        `json:"tag"`
}

// Arena is the battlefield size.
type Arena struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Participant is a robot registered for the battle.
type Participant struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Round is a single round of a battle.
type Round struct {
	ID        uint      `json:"id"`
	BattleID  uint      `json:"battleId"`
	Number    int       `json:"number"`
	StartTime time.Time `json:"startTime"`
}

// RoundResult is what the simulation reports when a round is over.
type RoundResult struct {
	Round     int    `json:"round"`
	Turn      int    `json:"turn"`
	Winner    string `json:"winner"`
	Abandoned bool   `json:"abandoned"` // the round ended early (fewer than two robots left)
}

// UploadMetadata holds the metadata sent alongside an exported battle file.
type UploadMetadata struct {
	BattleName  string  `json:"battleName"`
	Arena       string  `json:"arena"`
	RoundsCount int     `json:"roundsCount"`
	Duration    float64 `json:"duration"`
	Tag         string  `json:"tag"`
}
