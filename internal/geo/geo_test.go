package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/duelscope/recorder/pkg/core"
)

func TestPositionFromString_Valid(t *testing.T) {
	pos, err := PositionFromString("100.5, 200.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.X != 100.5 {
		t.Errorf("expected X=100.5, got %f", pos.X)
	}
	if pos.Y != 200.25 {
		t.Errorf("expected Y=200.25, got %f", pos.Y)
	}
}

func TestPositionFromString_Invalid(t *testing.T) {
	for _, input := range []string{"", "1", "1,2,3", "a,2", "1,b", "NaN,1", "1,+Inf"} {
		_, err := PositionFromString(input)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", input, err)
		}
	}
}

func TestPointRoundTrip(t *testing.T) {
	in := core.Position{X: 12.5, Y: 400}
	out, ok := PositionFromPoint(PointFromPosition(in))
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if out != in {
		t.Errorf("expected %v, got %v", in, out)
	}
}

func TestDistance(t *testing.T) {
	d := Distance(core.Position{X: 0, Y: 0}, core.Position{X: 3, Y: 4})
	if d != 5 {
		t.Errorf("expected 5, got %f", d)
	}
}

func TestAbsoluteBearing(t *testing.T) {
	origin := core.Position{X: 100, Y: 100}
	cases := []struct {
		to   core.Position
		want float64
	}{
		{core.Position{X: 100, Y: 200}, 0},
		{core.Position{X: 200, Y: 100}, math.Pi / 2},
		{core.Position{X: 0, Y: 100}, -math.Pi / 2},
		{core.Position{X: 200, Y: 200}, math.Pi / 4},
	}
	for _, c := range cases {
		got := AbsoluteBearing(origin, c.to)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("bearing to %v: expected %f, got %f", c.to, c.want, got)
		}
	}
}

func TestNormalRelativeAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{math.Pi, -math.Pi},
		{5 * math.Pi, -math.Pi},
	}
	for _, c := range cases {
		got := NormalRelativeAngle(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("NormalRelativeAngle(%f): expected %f, got %f", c.in, c.want, got)
		}
	}
}

func TestNormalAbsoluteAngle(t *testing.T) {
	got := NormalAbsoluteAngle(-math.Pi / 2)
	if math.Abs(got-3*math.Pi/2) > 1e-12 {
		t.Errorf("expected 3pi/2, got %f", got)
	}
}

func TestProject(t *testing.T) {
	p := Project(core.Position{X: 10, Y: 10}, math.Pi/2, 5)
	if math.Abs(p.X-15) > 1e-12 || math.Abs(p.Y-10) > 1e-12 {
		t.Errorf("expected (15,10), got %v", p)
	}
}
