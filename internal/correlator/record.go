package correlator

import (
	"fmt"

	"github.com/duelscope/recorder/pkg/core"
)

// ownerKeyStride separates the id spaces of the two participants.
const ownerKeyStride = 1_000_000

// BulletKey identifies a bullet within a round. Raw bullet ids are only unique
// per owner, so the owner slot is folded into the key.
type BulletKey int

// KeyFor returns the composite key of a bullet.
func KeyFor(ownerIndex, bulletID int) BulletKey {
	return BulletKey(bulletID + (ownerIndex+1)*ownerKeyStride)
}

// VictimOf returns the opposing participant slot in a duel.
func VictimOf(ownerIndex int) int {
	return 1 - ownerIndex
}

// Record is the lifecycle of one bullet across the round. Robot and bullet
// snapshots point into the turn history and are never modified after capture.
type Record struct {
	Key         BulletKey
	BulletID    int
	OwnerIndex  int
	VictimIndex int

	Hit     bool
	Damaged bool
	// Forced marks a bullet still flying when the round ended. It is also Damaged.
	Forced bool

	// turn T-2, when the shot was aimed
	AimOwner  *core.RobotSnapshot
	AimVictim *core.RobotSnapshot
	// turn T-1, when the bullet left the gun
	FireOwner  *core.RobotSnapshot
	FireVictim *core.RobotSnapshot

	DetectVictim *core.RobotSnapshot
	TurnDetect   int

	LastVictim *core.RobotSnapshot
	TurnLast   int

	First *core.BulletSnapshot
	Last  *core.BulletSnapshot

	PrevFlying []BulletKey
	NextFlying []BulletKey
}

// Terminal reports whether the bullet has been resolved. A terminal record is
// no longer modified by later turns.
func (r *Record) Terminal() bool {
	return r.Last != nil
}

// PassedBy reports whether the record was resolved by the pass-by distance test
// rather than a simulation event.
func (r *Record) PassedBy() bool {
	return r.Terminal() && !r.Hit && !r.Damaged
}

// Power returns the power the bullet was fired with.
func (r *Record) Power() float64 {
	if r.First == nil {
		return 0
	}
	return r.First.Power
}

func (r *Record) String() string {
	state := "flying"
	switch {
	case r.Hit:
		state = "hit"
	case r.Damaged:
		state = "damaged"
	case r.Terminal():
		state = "passed"
	}
	return fmt.Sprintf("bullet %d (owner %d, key %d, %s)", r.BulletID, r.OwnerIndex, r.Key, state)
}

func (r *Record) resolve(turn int, bullet *core.BulletSnapshot, victim *core.RobotSnapshot) {
	r.Last = bullet
	r.LastVictim = victim
	r.TurnLast = turn
}
