package mtt

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

func TestInertialMeasurementCovarianceNoRotationAlongX(t *testing.T) {
	// When the target lies due east (dy=0), the rotation is identity and the
	// inertial covariance must equal the body-frame one.
	r := InertialMeasurementCovariance(100, 0, 100, 5, 0.01)
	want := RangeCrossRangeCovariance(100, 5, 0.01)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !floats.EqualWithinAbs(r.At(i, j), want.At(i, j), 1e-9) {
				t.Fatalf("R[%d][%d] = %f, want %f", i, j, r.At(i, j), want.At(i, j))
			}
		}
	}
}

func TestHMatrixShape(t *testing.T) {
	h := HMatrix(6)
	rows, cols := h.Dims()
	if rows != 2 || cols != 6 {
		t.Fatalf("HMatrix(6) dims = %dx%d, want 2x6", rows, cols)
	}
	if h.At(0, 0) != 1 || h.At(1, 1) != 1 {
		t.Fatalf("HMatrix must be [I2 | 0]")
	}
}

func TestUpdateHorizontalInfoFoldIncreasesInformation(t *testing.T) {
	h := &HorizontalInfo{Y: mat.NewDense(4, 4, nil), y: mat.NewDense(4, 1, nil)}
	hMat := HMatrix(4)
	r := RangeCrossRangeCovariance(100, 5, 0.01)
	err := UpdateHorizontalInfo(h, 0, nil, nil, hMat, r, []float64{1000, 2000})
	if err != nil {
		t.Fatalf("UpdateHorizontalInfo: %v", err)
	}
	if h.Y.At(0, 0) <= 0 {
		t.Fatalf("folding a measurement must add positive information to the diagonal")
	}
}

func TestPropagateHorizontalInfoUsesRightDivisionForN(t *testing.T) {
	// M = [[2,1],[1,2]], Qinv = [[1,0],[0,3]] (q is its inverse), phiInv =
	// identity so M = Y directly. Hand-computed: N = M*(M+Qinv)^-1 =
	// [[9/14,1/14],[3/14,5/14]], Y' = (I-N)*M = [[0.642857,0.214286],
	// [0.214286,1.071429]] -- already symmetric.
	h := &HorizontalInfo{
		Y: mat.NewDense(2, 2, []float64{2, 1, 1, 2}),
		y: mat.NewDense(2, 1, nil),
	}
	phiInv := matkit.Identity(2)
	q := mat.NewDense(2, 2, []float64{1, 0, 0, 1.0 / 3})

	if err := PropagateHorizontalInfo(h, 1.0, phiInv, q); err != nil {
		t.Fatalf("PropagateHorizontalInfo: %v", err)
	}

	want := [2][2]float64{{0.642857, 0.214286}, {0.214286, 1.071429}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !floats.EqualWithinAbs(h.Y.At(i, j), want[i][j], 1e-5) {
				t.Fatalf("Y'[%d][%d] = %f, want %f", i, j, h.Y.At(i, j), want[i][j])
			}
		}
	}
}

func TestDopplerAugmentZeroResidualLeavesVelocityUnchanged(t *testing.T) {
	az, el := 0.3, 0.0
	vx, vy := 10.0, 5.0
	rangeRate := vx*math.Cos(az) + vy*math.Sin(az)
	nvx, nvy := DopplerAugment(vx, vy, az, el, rangeRate, 0, 0, 4, 4, 1)
	if !floats.EqualWithinAbs(nvx, vx, 1e-9) || !floats.EqualWithinAbs(nvy, vy, 1e-9) {
		t.Fatalf("zero-residual Doppler update changed velocity: (%f,%f) -> (%f,%f)", vx, vy, nvx, nvy)
	}
}
