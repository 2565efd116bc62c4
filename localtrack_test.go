package mtt

import (
	"testing"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

func TestToLocalTrackVelocityIgnoresOriginAltitudeOffset(t *testing.T) {
	a := &ActiveTrack{
		trackBase: trackBase{VerticalChannelActive: false},
		X6:        [6]float64{1000, 2000, 50, -20, 3000, 5},
	}
	a.P6 = mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		a.P6.Set(i, i, 1)
	}
	a.Horizontal = HorizontalInfo{Y: mat.NewDense(6, 6, nil), y: mat.NewDense(6, 1, nil)}
	a.TurnX = [6]float64{1000, 2000, 50, -20, 1, 1}

	// A nonzero OriginAlt must only shift the position's up coordinate, never
	// the velocity: ToLocalTrack's pre-fix bug ran WCSVZ through ENUToWCS,
	// which added OriginAlt onto a vertical-velocity value.
	ref := FlatEarthReference{OriginLat: 0, OriginLon: 0, OriginAlt: 5000}

	lt := a.ToLocalTrack(ref, uuid.Nil)

	if lt.WCSZ != a.X6[4]+ref.OriginAlt {
		t.Fatalf("WCSZ = %f, want %f (position must carry the origin altitude offset)", lt.WCSZ, a.X6[4]+ref.OriginAlt)
	}
	if lt.WCSVX != a.X6[2] || lt.WCSVY != a.X6[3] {
		t.Fatalf("WCSVX/WCSVY = (%f,%f), want the raw local velocity (%f,%f)", lt.WCSVX, lt.WCSVY, a.X6[2], a.X6[3])
	}
	if lt.WCSVZ != a.X6[5] {
		t.Fatalf("WCSVZ = %f, want raw vertical velocity %f, not offset by OriginAlt", lt.WCSVZ, a.X6[5])
	}
}
