package geo

import (
	"math"

	"github.com/duelscope/recorder/pkg/core"
)

// maxPredictionTicks caps the orbit simulation. A power 0.1 bullet crossing the
// diagonal of a large arena needs fewer turns than this.
const maxPredictionTicks = 500

// EscapeAngleFunc computes the reachable angular half-ranges of a victim, as seen by
// the shooter, before a bullet of the given power reaches it. maxAngle is the
// reach when orbiting in direction, minAngle the reach when orbiting the other way.
// Both are non-negative.
type EscapeAngleFunc func(
	victimPos core.Position,
	victimHeading, victimVelocity float64,
	ownerPos core.Position,
	power float64,
	direction int,
) (maxAngle, minAngle float64)

// PreciseEscapeAngles is the default EscapeAngleFunc. It simulates the victim
// orbiting the shooter at full speed, under the movement rules, in both
// directions until the bullet wave passes it.
func PreciseEscapeAngles(
	victimPos core.Position,
	victimHeading, victimVelocity float64,
	ownerPos core.Position,
	power float64,
	direction int,
) (maxAngle, minAngle float64) {
	if direction >= 0 {
		direction = 1
	} else {
		direction = -1
	}
	maxAngle = orbitReach(victimPos, victimHeading, victimVelocity, ownerPos, power, direction)
	minAngle = orbitReach(victimPos, victimHeading, victimVelocity, ownerPos, power, -direction)
	return maxAngle, minAngle
}

func orbitReach(
	victimPos core.Position,
	heading, velocity float64,
	ownerPos core.Position,
	power float64,
	direction int,
) float64 {
	if Distance(ownerPos, victimPos) < 1e-9 {
		return 0
	}

	dir := float64(direction)
	startBearing := AbsoluteBearing(ownerPos, victimPos)
	speed := BulletSpeed(power)
	pos := victimPos
	best := 0.0

	for tick := 1; tick <= maxPredictionTicks; tick++ {
		goal := AbsoluteBearing(ownerPos, pos) + dir*math.Pi/2
		turn := NormalRelativeAngle(goal - heading)
		moveSign := 1.0
		if math.Abs(turn) > math.Pi/2 {
			// driving backwards reaches the goal heading sooner
			turn = NormalRelativeAngle(turn + math.Pi)
			moveSign = -1.0
		}
		limit := MaxTurnRate(velocity)
		turn = math.Max(-limit, math.Min(limit, turn))

		heading = NormalAbsoluteAngle(heading + turn)
		velocity = NextVelocity(velocity, moveSign*MaxVelocity)
		pos = Project(pos, heading, velocity)

		angle := dir * NormalRelativeAngle(AbsoluteBearing(ownerPos, pos)-startBearing)
		if angle > best {
			best = angle
		}
		if speed*float64(tick) > Distance(ownerPos, pos) {
			break
		}
	}
	return best
}
