package mtt

import (
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestPropagateZeroDtIsNoop(t *testing.T) {
	phi := StraightFlightTransition(1.0)
	q := StraightFlightProcessNoise(1.0, 0.1, 0.1)
	x := []float64{1, 2, 3, 4}
	p := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	xNew, pNew := Propagate(0, phi, q, x, p)
	if &xNew[0] != &x[0] {
		t.Fatalf("Propagate(0, ...) must return the same slice, not a copy")
	}
	if pNew != p {
		t.Fatalf("Propagate(0, ...) must return the same covariance pointer")
	}
}

func TestStraightFlightTransitionInverse(t *testing.T) {
	phi := StraightFlightTransition(2.5)
	inv, err := TransitionInverse(phi)
	if err != nil {
		t.Fatalf("TransitionInverse: %v", err)
	}
	var prod mat.Dense
	prod.Mul(phi, inv)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if !floats.EqualWithinAbs(prod.At(i, j), want, 1e-9) {
				t.Fatalf("phi*phiInv[%d][%d] = %f, want %f", i, j, prod.At(i, j), want)
			}
		}
	}
}

func TestTurningFlightTransitionInverse(t *testing.T) {
	phi := TurningFlightTransition(1.3)
	inv, err := TransitionInverse(phi)
	if err != nil {
		t.Fatalf("TransitionInverse: %v", err)
	}
	var prod mat.Dense
	prod.Mul(phi, inv)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if !floats.EqualWithinAbs(prod.At(i, j), want, 1e-6) {
				t.Fatalf("phi*phiInv[%d][%d] = %f, want %f", i, j, prod.At(i, j), want)
			}
		}
	}
	// The acceleration-to-position term must come back positive: Phi = I + N
	// with N nilpotent past the second power, so Phi^-1 = I - N + N^2, not
	// the naive I - N a first attempt at this produced.
	if inv.At(0, 4) <= 0 {
		t.Fatalf("phiInv[0][4] = %f, want > 0 (second-order nilpotent correction)", inv.At(0, 4))
	}
}

func TestProcessNoiseSymmetric(t *testing.T) {
	q := TurningFlightProcessNoise(0.8, 2.0, 3.0)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			if !floats.EqualWithinAbs(q.At(i, j), q.At(j, i), 1e-12) {
				t.Fatalf("Q not symmetric at [%d][%d]", i, j)
			}
		}
	}
}
