package mtt

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCriticalZMonotonic(t *testing.T) {
	z1 := CriticalZ(1e-3)
	z2 := CriticalZ(1e-6)
	if z2 <= z1 {
		t.Fatalf("a smaller false-reject probability must demand a larger critical z: z(1e-3)=%f z(1e-6)=%f", z1, z2)
	}
}

func TestWhitenInnovationNoDeltaIsNearZero(t *testing.T) {
	h := HMatrix(4)
	p := mat.NewDense(4, 4, []float64{
		100, 0, 0, 0,
		0, 100, 0, 0,
		0, 0, 10, 0,
		0, 0, 0, 10,
	})
	r := RangeCrossRangeCovariance(100, 5, 0.01)
	x := []float64{500, 500, 10, 10}
	z := []float64{500, 500}
	gr := whitenInnovation(h, p, r, x, z)
	if gr.ZTest > 1e-6 {
		t.Fatalf("z_test for a zero innovation should be ~0, got %f", gr.ZTest)
	}
}

func TestGateTrackToTrackRescalesVariance(t *testing.T) {
	p := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		p.Set(i, i, 1e12)
	}
	q := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		q.Set(i, i, 1e12)
	}
	gr := GateTrackToTrack([]float64{0, 0, 0, 0}, p, []float64{0, 0, 0, 0}, q, 1, 1e6)
	if math.IsInf(gr.ZTest, 1) || gr.ZTest == sentinelZTest {
		t.Fatalf("rescaled covariance should still produce a usable z_test, got %f", gr.ZTest)
	}
}

func TestTrackCorrelationCylinderRejectsOutsideRadius(t *testing.T) {
	if TrackCorrelationCylinder(600, 1000, 0, 0, false, 200) {
		t.Fatalf("an innovation beyond the cylinder radius must be rejected")
	}
	if !TrackCorrelationCylinder(400, 1000, 0, 0, false, 200) {
		t.Fatalf("an innovation within the cylinder radius must be accepted")
	}
}

func TestTrackCorrelationCylinderChecksHeightWhenBothVertical(t *testing.T) {
	if TrackCorrelationCylinder(10, 1000, 1000, 0, true, 200) {
		t.Fatalf("an altitude difference beyond half the cylinder height must be rejected when both channels are vertical-active")
	}
	if !TrackCorrelationCylinder(10, 1000, 50, 0, true, 200) {
		t.Fatalf("an altitude difference within half the cylinder height must be accepted")
	}
}

func TestTrackCorrelationCylinderUnconfiguredRejects(t *testing.T) {
	if TrackCorrelationCylinder(0, 0, 0, 0, false, 0) {
		t.Fatalf("diameter <= 0 means the cylinder gate is not configured and must never accept")
	}
}
