package streaming

import (
	"encoding/json"

	"github.com/duelscope/recorder/pkg/core"
)

// Inbound message types emitted by the simulation.
const (
	TypeBattleStarted = "battle_started"
	TypeRoundStarted  = "round_started"
	TypeTurnEnded     = "turn_ended"
	TypeRoundEnded    = "round_ended"
	TypeBattleEnded   = "battle_ended"
)

// Outbound message types streamed to a live dashboard.
const (
	TypeStartBattle  = "start_battle"
	TypeEndBattle    = "end_battle"
	TypeStartRound   = "start_round"
	TypeEndRound     = "end_round"
	TypeGuessFactor  = "guess_factor"
	TypeRoundSummary = "round_summary"
	TypeAck          = "ack"
)

// Envelope wraps every message, inbound and outbound.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// BattleStartedPayload describes the battle about to be fought.
type BattleStartedPayload struct {
	Name             string   `json:"name"`
	ArenaWidth       float64  `json:"arenaWidth"`
	ArenaHeight      float64  `json:"arenaHeight"`
	NumRounds        int      `json:"numRounds"`
	GunCoolingRate   float64  `json:"gunCoolingRate"`
	InactivityTime   int      `json:"inactivityTime"`
	Participants     []string `json:"participants"`
	SimulatorVersion string   `json:"simulatorVersion"`
	Tag              string   `json:"tag"`
}

// RoundStartedPayload opens a round.
type RoundStartedPayload struct {
	Round int `json:"round"`
}

// RobotPayload is one robot in a turn. Position is "x,y".
type RobotPayload struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Position   string  `json:"position"`
	Heading    float64 `json:"heading"`
	GunHeading float64 `json:"gunHeading"`
	Velocity   float64 `json:"velocity"`
	Energy     float64 `json:"energy"`
	State      string  `json:"state"`
}

// BulletPayload is one bullet in a turn. A missing id means unassigned.
type BulletPayload struct {
	Owner    int     `json:"owner"`
	ID       *int    `json:"id"`
	Status   string  `json:"status"`
	Position string  `json:"position"`
	Heading  float64 `json:"heading"`
	Power    float64 `json:"power"`
}

// TurnEndedPayload is the finalized state of a turn.
type TurnEndedPayload struct {
	Round   int             `json:"round"`
	Turn    int             `json:"turn"`
	Robots  []RobotPayload  `json:"robots"`
	Bullets []BulletPayload `json:"bullets"`
}

// RoundEndedPayload closes a round. Abandoned rounds ended early.
type RoundEndedPayload struct {
	Round     int    `json:"round"`
	Turn      int    `json:"turn"`
	Winner    string `json:"winner"`
	Abandoned bool   `json:"abandoned"`
}

// StartBattlePayload carries the battle to the dashboard.
type StartBattlePayload struct {
	Battle *core.Battle `json:"battle"`
}
