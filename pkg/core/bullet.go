// pkg/core/bullet.go
package core

import (
	"fmt"
	"strings"
)

// UnassignedBulletID marks a bullet the simulation has not yet given an id.
const UnassignedBulletID = -1

// BulletStatus is the lifecycle status of a bullet in a turn snapshot.
type BulletStatus int

// Bullet statuses. BulletUnknown is never produced by the simulation; it is what
// ParseBulletStatus returns for names it does not model.
const (
	BulletUnknown BulletStatus = iota
	BulletFired
	BulletMoving
	BulletHitVictim
	BulletHitBullet
	BulletHitWall
	BulletExploded
	BulletInactive
)

var bulletStatusNames = map[BulletStatus]string{
	BulletFired:     "FIRED",
	BulletMoving:    "MOVING",
	BulletHitVictim: "HIT_VICTIM",
	BulletHitBullet: "HIT_BULLET",
	BulletHitWall:   "HIT_WALL",
	BulletExploded:  "EXPLODED",
	BulletInactive:  "INACTIVE",
}

// String returns the wire name of the status.
func (s BulletStatus) String() string {
	if name, ok := bulletStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// ParseBulletStatus converts a wire name into a BulletStatus.
// Unrecognised names return BulletUnknown and an error.
func ParseBulletStatus(name string) (BulletStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for status, n := range bulletStatusNames {
		if n == upper {
			return status, nil
		}
	}
	return BulletUnknown, fmt.Errorf("unknown bullet status %q", name)
}

// BulletSnapshot is the state of one bullet at the end of a turn.
type BulletSnapshot struct {
	OwnerIndex int
	BulletID   int // UnassignedBulletID until the simulation assigns one
	Status     BulletStatus
	Position   Position
	Heading    float64
	Power      float64
}

// HasID reports whether the bullet carries a simulation-assigned id.
func (b *BulletSnapshot) HasID() bool {
	return b.BulletID != UnassignedBulletID
}
