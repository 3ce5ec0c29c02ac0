package parser

import (
	"encoding/json"
	"testing"

	"github.com/duelscope/recorder/internal/geo"
	"github.com/duelscope/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const turnPayload = `{
	"round": 1,
	"turn": 42,
	"robots": [
		{"index": 1, "name": "beta", "position": "300.5,420", "heading": 1.57, "gunHeading": 3.1, "velocity": -8, "energy": 87.5, "state": "ACTIVE"},
		{"index": 0, "name": "alpha", "position": "100,100", "heading": 0, "gunHeading": 0.5, "velocity": 0, "energy": 100, "state": "HIT_WALL"}
	],
	"bullets": [
		{"owner": 0, "id": 7, "status": "FIRED", "position": "110,100", "heading": 0.5, "power": 1.9},
		{"owner": 1, "status": "MOVING", "position": "290,400", "heading": 3.1, "power": 3},
		{"owner": 1, "id": 2, "status": "hit_victim", "position": "105,102", "heading": 3.1, "power": 0.5},
		{"owner": 0, "id": 8, "status": "WARPED", "position": "0,0", "heading": 0, "power": 1}
	]
}`

func TestParseTurn(t *testing.T) {
	p := newTestParser()

	snap, err := p.ParseTurn(json.RawMessage(turnPayload))
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 42, snap.Turn)

	require.Len(t, snap.Robots, 2)
	assert.Equal(t, "alpha", snap.Robots[0].Name, "robots are ordered by index")
	assert.Equal(t, core.RobotStateHitWall, snap.Robots[0].State)
	assert.Equal(t, core.RobotSnapshot{
		Index:      1,
		Name:       "beta",
		Position:   core.Position{X: 300.5, Y: 420},
		Heading:    1.57,
		GunHeading: 3.1,
		Velocity:   -8,
		Energy:     87.5,
		State:      core.RobotStateActive,
	}, snap.Robots[1])

	require.Len(t, snap.Bullets, 4)
	assert.Equal(t, core.BulletSnapshot{
		OwnerIndex: 0,
		BulletID:   7,
		Status:     core.BulletFired,
		Position:   core.Position{X: 110, Y: 100},
		Heading:    0.5,
		Power:      1.9,
	}, snap.Bullets[0])
	assert.False(t, snap.Bullets[1].HasID())
	assert.Equal(t, core.BulletHitVictim, snap.Bullets[2].Status)
	assert.Equal(t, core.BulletUnknown, snap.Bullets[3].Status)
}

func TestParseTurn_BadPosition(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseTurn(json.RawMessage(`{"turn":1,"robots":[{"index":0,"position":"100"}]}`))
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	_, err = p.ParseTurn(json.RawMessage(`{"turn":1,"bullets":[{"owner":0,"id":1,"status":"MOVING","position":"x,1"}]}`))
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestParseTurn_Empty(t *testing.T) {
	p := newTestParser()

	snap, err := p.ParseTurn(json.RawMessage(`{"round":1,"turn":1}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Robots)
	assert.Empty(t, snap.Bullets)
}
