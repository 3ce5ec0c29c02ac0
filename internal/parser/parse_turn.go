package parser

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/duelscope/recorder/internal/geo"
	"github.com/duelscope/recorder/pkg/core"
	"github.com/duelscope/recorder/pkg/streaming"
)

// ParseTurn parses turn_ended into a snapshot. Robots are ordered by index.
// Unknown bullet statuses are kept as core.BulletUnknown so the correlator can
// reject them; malformed positions are parse errors.
func (p *Parser) ParseTurn(payload json.RawMessage) (core.TurnSnapshot, error) {
	var snap core.TurnSnapshot
	var data streaming.TurnEndedPayload
	if err := decode(payload, &data); err != nil {
		return snap, fmt.Errorf("error unmarshalling turn data: %w", err)
	}

	snap.Round = data.Round
	snap.Turn = data.Turn

	snap.Robots = make([]core.RobotSnapshot, 0, len(data.Robots))
	for _, r := range data.Robots {
		pos, err := geo.PositionFromString(r.Position)
		if err != nil {
			return snap, fmt.Errorf("error parsing position of robot %d: %w", r.Index, err)
		}
		snap.Robots = append(snap.Robots, core.RobotSnapshot{
			Index:      r.Index,
			Name:       r.Name,
			Position:   pos,
			Heading:    r.Heading,
			GunHeading: r.GunHeading,
			Velocity:   r.Velocity,
			Energy:     r.Energy,
			State:      r.State,
		})
	}
	slices.SortStableFunc(snap.Robots, func(a, b core.RobotSnapshot) int {
		return a.Index - b.Index
	})

	snap.Bullets = make([]core.BulletSnapshot, 0, len(data.Bullets))
	for _, b := range data.Bullets {
		bullet, err := p.parseBullet(b)
		if err != nil {
			return snap, fmt.Errorf("turn %d: %w", data.Turn, err)
		}
		snap.Bullets = append(snap.Bullets, bullet)
	}

	return snap, nil
}

func (p *Parser) parseBullet(b streaming.BulletPayload) (core.BulletSnapshot, error) {
	bullet := core.BulletSnapshot{
		OwnerIndex: b.Owner,
		BulletID:   core.UnassignedBulletID,
		Heading:    b.Heading,
		Power:      b.Power,
	}
	if b.ID != nil {
		bullet.BulletID = *b.ID
	}

	status, err := core.ParseBulletStatus(b.Status)
	if err != nil {
		p.logger.Warn("Unmodeled bullet status", "status", b.Status, "owner", b.Owner, "bullet", bullet.BulletID)
	}
	bullet.Status = status

	pos, err := geo.PositionFromString(b.Position)
	if err != nil {
		return bullet, fmt.Errorf("error parsing position of bullet %d: %w", bullet.BulletID, err)
	}
	bullet.Position = pos
	return bullet, nil
}
