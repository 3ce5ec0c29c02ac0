package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnSnapshot_Survivor(t *testing.T) {
	robot := func(index int, state string) RobotSnapshot {
		return RobotSnapshot{Index: index, Name: []string{"alpha", "beta"}[index], State: state}
	}

	tests := []struct {
		name     string
		robots   []RobotSnapshot
		alive    int
		survivor string
	}{
		{"both alive", []RobotSnapshot{robot(0, RobotStateActive), robot(1, RobotStateHitWall)}, 2, ""},
		{"victim dead", []RobotSnapshot{robot(0, RobotStateActive), robot(1, RobotStateDead)}, 1, "alpha"},
		{"both dead", []RobotSnapshot{robot(0, RobotStateDead), robot(1, RobotStateDead)}, 0, ""},
		{"one reported", []RobotSnapshot{robot(1, RobotStateHitRobot)}, 1, "beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &TurnSnapshot{Robots: tt.robots}
			assert.Equal(t, tt.alive, snap.AliveCount())
			if tt.survivor == "" {
				assert.Nil(t, snap.Survivor())
				return
			}
			if assert.NotNil(t, snap.Survivor()) {
				assert.Equal(t, tt.survivor, snap.Survivor().Name)
			}
		})
	}

	var none *TurnSnapshot
	assert.Zero(t, none.AliveCount())
	assert.Nil(t, none.Survivor())
}
