package correlator

import (
	"errors"
	"math"
	"testing"

	"github.com/duelscope/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// robots places the shooter still at (100,100) and the victim 400 units north,
// drifting one unit east per turn so every turn's state is distinguishable.
func robots(turn int) []core.RobotSnapshot {
	return []core.RobotSnapshot{
		{Index: 0, Name: "alpha", Position: core.Position{X: 100, Y: 100}, State: core.RobotStateActive},
		{Index: 1, Name: "beta", Position: core.Position{X: 100 + float64(turn), Y: 500}, Heading: math.Pi / 2, Velocity: 1, State: core.RobotStateActive},
	}
}

func snapshot(turn int, bullets ...core.BulletSnapshot) *core.TurnSnapshot {
	return &core.TurnSnapshot{Round: 1, Turn: turn, Robots: robots(turn), Bullets: bullets}
}

func shot(owner, id int, status core.BulletStatus, y float64) core.BulletSnapshot {
	return core.BulletSnapshot{
		OwnerIndex: owner,
		BulletID:   id,
		Status:     status,
		Position:   core.Position{X: 100, Y: y},
		Power:      2,
	}
}

func feed(t *testing.T, c *Correlator, snaps ...*core.TurnSnapshot) {
	t.Helper()
	for _, s := range snaps {
		require.NoError(t, c.ProcessTurn(s), "turn %d", s.Turn)
	}
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, BulletKey(1_000_007), KeyFor(0, 7))
	assert.Equal(t, BulletKey(2_000_007), KeyFor(1, 7))
	assert.NotEqual(t, KeyFor(0, 7), KeyFor(1, 7))
	assert.Equal(t, 1, VictimOf(0))
	assert.Equal(t, 0, VictimOf(1))
}

func TestHitScenario(t *testing.T) {
	c := New(1, nil)

	feed(t, c, snapshot(1), snapshot(2), snapshot(3), snapshot(4))
	feed(t, c, snapshot(5, shot(0, 1, core.BulletFired, 114)))
	for turn := 6; turn <= 9; turn++ {
		feed(t, c, snapshot(turn, shot(0, 1, core.BulletMoving, 114+14*float64(turn-5))))
	}
	feed(t, c, snapshot(10, shot(0, 1, core.BulletHitVictim, 184)))

	rec, ok := c.Record(KeyFor(0, 1))
	require.True(t, ok)
	assert.True(t, rec.Hit)
	assert.False(t, rec.Damaged)
	assert.Equal(t, 5, rec.TurnDetect)
	assert.Equal(t, 10, rec.TurnLast)
	assert.Empty(t, c.Flying())

	// aim is two turns before detection, fire is one turn before
	require.NotNil(t, rec.AimVictim)
	require.NotNil(t, rec.FireVictim)
	assert.Equal(t, robots(3)[1], *rec.AimVictim)
	assert.Equal(t, robots(4)[1], *rec.FireVictim)
	assert.Equal(t, robots(4)[0], *rec.FireOwner)
	assert.Equal(t, robots(5)[1], *rec.DetectVictim)
	assert.Equal(t, robots(10)[1], *rec.LastVictim)

	out := c.EndRound()
	require.Len(t, out, 1)
	assert.Equal(t, rec, out[0])
	assert.Equal(t, 2.0, out[0].Power())
}

func TestSameRawIDDifferentOwners(t *testing.T) {
	c := New(1, nil)
	feed(t, c, snapshot(1), snapshot(2))
	feed(t, c, snapshot(3,
		shot(0, 4, core.BulletFired, 114),
		core.BulletSnapshot{OwnerIndex: 1, BulletID: 4, Status: core.BulletFired, Position: core.Position{X: 103, Y: 486}, Power: 1},
	))

	a, ok := c.Record(KeyFor(0, 4))
	require.True(t, ok)
	b, ok := c.Record(KeyFor(1, 4))
	require.True(t, ok)
	assert.NotSame(t, a, b)
	assert.Equal(t, 1, a.VictimIndex)
	assert.Equal(t, 0, b.VictimIndex)

	feed(t, c, snapshot(4,
		shot(0, 4, core.BulletHitWall, 128),
		core.BulletSnapshot{OwnerIndex: 1, BulletID: 4, Status: core.BulletMoving, Position: core.Position{X: 103, Y: 469}, Power: 1},
	))
	assert.True(t, a.Damaged)
	assert.False(t, b.Terminal())
	assert.Equal(t, []BulletKey{KeyFor(1, 4)}, c.Flying())
}

func TestPassBy(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114)),
		snapshot(4, shot(0, 1, core.BulletMoving, 300)),
	)
	rec, _ := c.Record(KeyFor(0, 1))
	assert.False(t, rec.Terminal())

	// 420 from the firing point, the victim is ~400 away
	feed(t, c, snapshot(5, shot(0, 1, core.BulletMoving, 520)))
	assert.True(t, rec.Terminal())
	assert.True(t, rec.PassedBy())
	assert.False(t, rec.Hit)
	assert.False(t, rec.Damaged)
	assert.Equal(t, 5, rec.TurnLast)
	assert.Equal(t, robots(5)[1], *rec.LastVictim)
	assert.Empty(t, c.Flying())

	// later events for a resolved bullet are ignored
	feed(t, c, snapshot(6, shot(0, 1, core.BulletHitWall, 534)))
	assert.False(t, rec.Damaged)
	assert.Equal(t, 5, rec.TurnLast)

	out := c.EndRound()
	require.Len(t, out, 1)
	assert.Equal(t, KeyFor(0, 1), out[0].Key)
}

func TestTerminalRaceIgnored(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114)),
		snapshot(4, shot(0, 1, core.BulletHitVictim, 128), shot(0, 1, core.BulletHitBullet, 128)),
	)
	rec, _ := c.Record(KeyFor(0, 1))
	assert.True(t, rec.Hit)
	assert.False(t, rec.Damaged)
	assert.Equal(t, core.BulletHitVictim, rec.Last.Status)
	assert.Equal(t, 1, c.Stats().Ignored)
}

func TestFlyingGraph(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114)),
		snapshot(4,
			shot(0, 1, core.BulletMoving, 128),
			shot(0, 2, core.BulletFired, 114),
			core.BulletSnapshot{OwnerIndex: 1, BulletID: 1, Status: core.BulletFired, Position: core.Position{X: 104, Y: 486}, Power: 1},
		),
		snapshot(5,
			shot(0, 1, core.BulletMoving, 142),
			shot(0, 2, core.BulletMoving, 128),
			shot(0, 3, core.BulletFired, 114),
		),
	)

	first, _ := c.Record(KeyFor(0, 1))
	second, _ := c.Record(KeyFor(0, 2))
	third, _ := c.Record(KeyFor(0, 3))
	enemy, _ := c.Record(KeyFor(1, 1))

	assert.Empty(t, first.PrevFlying)
	assert.Equal(t, []BulletKey{KeyFor(0, 2), KeyFor(0, 3)}, first.NextFlying)
	assert.Equal(t, []BulletKey{KeyFor(0, 1)}, second.PrevFlying)
	assert.Equal(t, []BulletKey{KeyFor(0, 3)}, second.NextFlying)
	assert.Equal(t, []BulletKey{KeyFor(0, 1), KeyFor(0, 2)}, third.PrevFlying)
	assert.Empty(t, enemy.PrevFlying)
	assert.Empty(t, enemy.NextFlying)

	// every edge has its reverse and joins bullets aimed at the same victim
	for _, rec := range c.Records() {
		for _, k := range rec.PrevFlying {
			other, ok := c.Record(k)
			require.True(t, ok)
			assert.Contains(t, other.NextFlying, rec.Key)
			assert.Equal(t, rec.VictimIndex, other.VictimIndex)
		}
	}
}

func TestEndRoundFlushesFlying(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114), shot(0, 2, core.BulletFired, 114)),
		snapshot(4, shot(0, 1, core.BulletHitVictim, 128), shot(0, 2, core.BulletMoving, 128)),
	)

	out := c.EndRound()
	assert.Empty(t, c.Flying())
	require.Len(t, out, 1)
	assert.Equal(t, KeyFor(0, 1), out[0].Key)

	unresolved, _ := c.Record(KeyFor(0, 2))
	assert.True(t, unresolved.Damaged)
	assert.True(t, unresolved.Forced)
	assert.False(t, unresolved.Hit)
	assert.Equal(t, 1, c.Stats().Forced)

	hit, _ := c.Record(KeyFor(0, 1))
	assert.False(t, hit.Forced)

	// second call is idempotent and further turns are refused
	assert.Len(t, c.EndRound(), 1)
	assert.ErrorIs(t, c.ProcessTurn(snapshot(5)), ErrRoundClosed)

	for _, rec := range c.Records() {
		assert.False(t, rec.Hit && rec.Damaged, rec.String())
	}
}

func TestUnassignedBulletsIgnored(t *testing.T) {
	c := New(1, nil)
	feed(t, c, snapshot(1), snapshot(2), snapshot(3, shot(0, core.UnassignedBulletID, core.BulletFired, 114)))
	assert.Empty(t, c.Records())
}

func TestUnknownStatusIsFatal(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114)),
		snapshot(4, shot(0, 1, core.BulletHitVictim, 128)),
	)

	err := c.ProcessTurn(snapshot(5, shot(0, 2, core.BulletUnknown, 114)))
	require.ErrorIs(t, err, ErrUnknownBulletStatus)
	assert.Equal(t, err, c.Err())

	err = c.ProcessTurn(snapshot(6))
	assert.True(t, errors.Is(err, ErrCorrelatorFailed))
	assert.True(t, errors.Is(err, ErrUnknownBulletStatus))

	// flush and analysis selection still work
	out := c.EndRound()
	require.Len(t, out, 1)
	assert.True(t, out[0].Hit)
}

func TestInvalidOwner(t *testing.T) {
	c := New(1, nil)
	err := c.ProcessTurn(snapshot(1, shot(2, 1, core.BulletFired, 114)))
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestMissingHistoryTolerated(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1, shot(0, 1, core.BulletFired, 114)),
		snapshot(2, shot(0, 1, core.BulletMoving, 600)),
	)
	rec, ok := c.Record(KeyFor(0, 1))
	require.True(t, ok)
	assert.Nil(t, rec.AimOwner)
	assert.Nil(t, rec.FireOwner)
	assert.False(t, rec.Terminal(), "pass-by needs a firing position")

	assert.Empty(t, c.EndRound())
	assert.True(t, rec.Damaged)
}

func TestDuplicateFiredIgnored(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114)),
		snapshot(4, shot(0, 1, core.BulletFired, 128)),
	)
	rec, _ := c.Record(KeyFor(0, 1))
	assert.Equal(t, 3, rec.TurnDetect)
	assert.Equal(t, 1, c.Stats().Fired)
	assert.Equal(t, 1, c.Stats().Ignored)
}

func TestDeadVictimIsNotPassedBy(t *testing.T) {
	c := New(1, nil)
	dead := func(turn int) *core.TurnSnapshot {
		snap := snapshot(turn)
		snap.Robots[1].State = core.RobotStateDead
		return snap
	}

	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114)),
		dead(4),
	)
	after := dead(5)
	after.Bullets = []core.BulletSnapshot{shot(0, 1, core.BulletMoving, 520)}
	feed(t, c, after)

	rec, _ := c.Record(KeyFor(0, 1))
	assert.False(t, rec.Terminal(), "a dead victim is not an evasion endpoint")
	assert.Equal(t, []BulletKey{KeyFor(0, 1)}, c.Flying())
	assert.Zero(t, c.Stats().PassBys)

	assert.Empty(t, c.EndRound())
	assert.True(t, rec.Forced)
	assert.Equal(t, 1, c.Stats().Forced)
}

func TestDestroyedBulletIsNotForced(t *testing.T) {
	c := New(1, nil)
	feed(t, c,
		snapshot(1),
		snapshot(2),
		snapshot(3, shot(0, 1, core.BulletFired, 114)),
		snapshot(4, shot(0, 1, core.BulletHitWall, 128)),
	)
	c.EndRound()

	rec, _ := c.Record(KeyFor(0, 1))
	assert.True(t, rec.Damaged)
	assert.False(t, rec.Forced)
	assert.Zero(t, c.Stats().Forced)
}
