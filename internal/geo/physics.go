package geo

import "math"

// Movement and gun rules of the duel simulation.
const (
	MaxVelocity     = 8.0
	Acceleration    = 1.0
	Deceleration    = 2.0
	MinBulletPower  = 0.1
	MaxBulletPower  = 3.0
	baseBulletSpeed = 20.0
)

// BulletSpeed returns the distance a bullet of the given power covers per turn.
func BulletSpeed(power float64) float64 {
	return baseBulletSpeed - 3*power
}

// MaxTurnRate returns the maximum body turn per turn, in radians, at a velocity.
func MaxTurnRate(velocity float64) float64 {
	return (10 - 0.75*math.Abs(velocity)) * math.Pi / 180
}

// NextVelocity applies one turn of acceleration towards goal.
// Reversing direction decelerates to a stop first.
func NextVelocity(velocity, goal float64) float64 {
	switch {
	case velocity*goal < 0:
		if math.Abs(velocity) > Deceleration {
			return velocity - math.Copysign(Deceleration, velocity)
		}
		return 0
	case math.Abs(goal) > math.Abs(velocity):
		return velocity + math.Copysign(math.Min(Acceleration, math.Abs(goal)-math.Abs(velocity)), goal)
	default:
		return velocity - math.Copysign(math.Min(Deceleration, math.Abs(velocity)-math.Abs(goal)), velocity)
	}
}
