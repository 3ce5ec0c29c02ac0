// pkg/core/snapshot.go
package core

// TurnSnapshot is everything the simulation reports once a turn has been
// finalized. Robots are ordered by index.
type TurnSnapshot struct {
	Round   int
	Turn    int
	Robots  []RobotSnapshot
	Bullets []BulletSnapshot
}

// Robot returns the robot with the given index, or nil if the snapshot does not
// contain it. A nil snapshot is tolerated.
func (t *TurnSnapshot) Robot(index int) *RobotSnapshot {
	if t == nil {
		return nil
	}
	if index >= 0 && index < len(t.Robots) && t.Robots[index].Index == index {
		return &t.Robots[index]
	}
	for i := range t.Robots {
		if t.Robots[i].Index == index {
			return &t.Robots[i]
		}
	}
	return nil
}

// AliveCount returns the number of robots that are not dead.
func (t *TurnSnapshot) AliveCount() int {
	if t == nil {
		return 0
	}
	n := 0
	for i := range t.Robots {
		if !t.Robots[i].IsDead() {
			n++
		}
	}
	return n
}

// Survivor returns the only robot that is not dead, or nil when none or
// several are alive.
func (t *TurnSnapshot) Survivor() *RobotSnapshot {
	if t.AliveCount() != 1 {
		return nil
	}
	for i := range t.Robots {
		if !t.Robots[i].IsDead() {
			return &t.Robots[i]
		}
	}
	return nil
}
