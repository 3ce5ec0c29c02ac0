package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/duelscope/recorder/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// POSITIONS
// The arena is a flat cartesian plane, Y grows northwards. Positions are persisted as
// 2D geom.Point values so both PostGIS and SQLite can scan them back through WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses an "x,y" string into a core.Position.
func PositionFromString(coords string) (core.Position, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Position{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return core.Position{}, ErrInvalidCoordinates
	}
	return core.Position{X: x, Y: y}, nil
}

// PointFromPosition creates a 2D geom.Point for storage.
func PointFromPosition(p core.Position) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   toXY(p),
			Type: geom.DimXY,
		},
	)
}

// PositionFromPoint reads a geom.Point back into a core.Position.
// Empty points return the origin and false.
func PositionFromPoint(pt geom.Point) (core.Position, bool) {
	coords, ok := pt.Coordinates()
	if !ok {
		return core.Position{}, false
	}
	return core.Position{X: coords.X, Y: coords.Y}, true
}

func toXY(p core.Position) geom.XY {
	return geom.XY{X: p.X, Y: p.Y}
}

// Distance returns the euclidean distance between two positions.
func Distance(a, b core.Position) float64 {
	return toXY(b).Sub(toXY(a)).Length()
}

// AbsoluteBearing returns the heading that points from one position to another.
// 0 is north, angles grow clockwise.
func AbsoluteBearing(from, to core.Position) float64 {
	return math.Atan2(to.X-from.X, to.Y-from.Y)
}

// NormalRelativeAngle maps an angle into [-pi, pi).
func NormalRelativeAngle(angle float64) float64 {
	a := math.Mod(angle+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// NormalAbsoluteAngle maps an angle into [0, 2*pi).
func NormalAbsoluteAngle(angle float64) float64 {
	a := math.Mod(angle, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// Project moves a position by distance along heading.
func Project(from core.Position, heading, distance float64) core.Position {
	return core.Position{
		X: from.X + math.Sin(heading)*distance,
		Y: from.Y + math.Cos(heading)*distance,
	}
}
