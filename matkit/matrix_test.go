package matkit

import (
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestInvert2x2RoundTrip(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{4, 7, 2, 6})
	inv, err := Invert(m)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var id mat.Dense
	id.Mul(m, inv)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if !floats.EqualWithinAbs(id.At(i, j), want, 1e-9) {
				t.Fatalf("M*Minv[%d][%d] = %f, want %f", i, j, id.At(i, j), want)
			}
		}
	}
}

func TestInvertSingular(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
	if _, err := Invert(m); err == nil {
		t.Fatal("expected SingularMatrixError for a rank-deficient 2x2")
	}
}

func TestSymmetrize(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 0, 1})
	Symmetrize(m)
	if m.At(0, 1) != m.At(1, 0) {
		t.Fatalf("expected symmetric matrix, got %v", m.RawMatrix().Data)
	}
	if !floats.EqualWithinAbs(m.At(0, 1), 1, 1e-12) {
		t.Fatalf("expected off-diagonal 1, got %f", m.At(0, 1))
	}
}

func TestCholeskyRoundTrip(t *testing.T) {
	s := mat.NewDense(2, 2, []float64{4, 2, 2, 3})
	l, err := CholeskyLower(s)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var reconstructed mat.Dense
	reconstructed.Mul(l, l.T())
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !floats.EqualWithinAbs(reconstructed.At(i, j), s.At(i, j), 1e-9) {
				t.Fatalf("L*L^T != S at [%d][%d]: got %f want %f", i, j, reconstructed.At(i, j), s.At(i, j))
			}
		}
	}
}

func TestConditionNumberIdentity(t *testing.T) {
	id := Identity(4)
	cn, err := ConditionNumber(id)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !floats.EqualWithinAbs(cn, 1, 1e-6) {
		t.Fatalf("condition number of identity should be ~1, got %f", cn)
	}
}
