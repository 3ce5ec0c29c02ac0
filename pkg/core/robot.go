// pkg/core/robot.go
package core

// Position is a point on the battlefield plane. Y grows northwards.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Robot lifecycle states as reported by the simulation.
const (
	RobotStateActive   = "ACTIVE"
	RobotStateHitWall  = "HIT_WALL"
	RobotStateHitRobot = "HIT_ROBOT"
	RobotStateDead     = "DEAD"
)

// RobotSnapshot is the state of one participant at the end of a turn.
// Index is the participant slot (0 or 1 in a duel).
type RobotSnapshot struct {
	Index      int
	Name       string
	Position   Position
	Heading    float64 // radians, 0 = north, clockwise
	GunHeading float64
	Velocity   float64
	Energy     float64
	State      string
}

// IsDead reports whether the robot has reached the dead state.
func (r *RobotSnapshot) IsDead() bool {
	return r != nil && r.State == RobotStateDead
}
