// Package matkit implements the small dense-matrix kernel shared by every
// filter in the tracker: identity, invert (with a 2x2 closed-form fast
// path), symmetrize, condition number, solve, 2x2 Cholesky whitening and
// sub-block copy. Multiply and transpose are used straight from gonum's
// mat.Dense, on which everything here is built rather than re-deriving
// BLAS-level routines by hand.
package matkit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SingularMatrixError is returned whenever an inversion or solve hits a
// pivot below tolerance. Callers must treat this as a signaled failure for
// that sub-step, not as a programmer fault: propagation failures are an
// expected numerical condition, not a panic.
type SingularMatrixError struct {
	Op   string
	Size int
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("matkit: %s: matrix of size %d is singular", e.Op, e.Size)
}

// pivotTolerance is the minimum determinant magnitude the closed-form 2x2
// inversion accepts before declaring the matrix singular; larger matrices
// rely on gonum's own singularity check.
const pivotTolerance = 1e-12

// Identity returns the n x n identity matrix.
func Identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}

// Zeros returns an r x c matrix of zeros.
func Zeros(r, c int) *mat.Dense {
	return mat.NewDense(r, c, nil)
}

// Symmetrize replaces M in place with 0.5*(M + M^T). Information and
// covariance matrices must be re-symmetrized after every update to guard
// against numerical drift.
func Symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	if r != c {
		panic("matkit: Symmetrize called on non-square matrix")
	}
	var t mat.Dense
	t.CloneFrom(m)
	t.Sub(&t, m.T())
	t.Scale(-0.5, &t)
	m.Add(m, &t)
}

// Invert returns the inverse of m, using the closed-form 2x2 fast path when
// applicable and a general LU-based inversion (via gonum) otherwise.
func Invert(m *mat.Dense) (*mat.Dense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("matkit: Invert requires a square matrix, got %dx%d", r, c)
	}
	if r == 2 {
		return invert2x2(m)
	}
	out := mat.NewDense(r, r, nil)
	if err := out.Inverse(m); err != nil {
		return nil, &SingularMatrixError{Op: "Invert", Size: r}
	}
	return out, nil
}

// invert2x2 is the closed-form 2x2 fast path used throughout the vertical
// filter, the embryonic position gate and the fusion likelihood.
func invert2x2(m *mat.Dense) (*mat.Dense, error) {
	a, b := m.At(0, 0), m.At(0, 1)
	c, d := m.At(1, 0), m.At(1, 1)
	det := a*d - b*c
	if math.Abs(det) < pivotTolerance {
		return nil, &SingularMatrixError{Op: "Invert2x2", Size: 2}
	}
	invDet := 1 / det
	out := mat.NewDense(2, 2, nil)
	out.Set(0, 0, d*invDet)
	out.Set(0, 1, -b*invDet)
	out.Set(1, 0, -c*invDet)
	out.Set(1, 1, a*invDet)
	return out, nil
}

// Solve solves A*X = B for X, used in place of an explicit inverse whenever
// only the product is needed (e.g. N = M*(M+Qinv)^-1 in the horizontal
// information propagation).
func Solve(a, b *mat.Dense) (*mat.Dense, error) {
	ar, ac := a.Dims()
	if ar != ac {
		return nil, fmt.Errorf("matkit: Solve requires square A, got %dx%d", ar, ac)
	}
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return nil, &SingularMatrixError{Op: "Solve", Size: ar}
	}
	return &x, nil
}

// ConditionNumber approximates the condition number of m as
// ||m|| * ||m^-1|| (1-norm product, exactly 1 for the identity), which is
// cheap for the small (4x4/6x6) matrices this tracker ever inverts and
// avoids a full SVD on the hot path.
func ConditionNumber(m *mat.Dense) (float64, error) {
	inv, err := Invert(m)
	if err != nil {
		return math.Inf(1), err
	}
	return mat.Norm(m, 1) * mat.Norm(inv, 1), nil
}

// CholeskyLower returns the lower-triangular Cholesky factor of a symmetric
// positive-definite 2x2 matrix, used to whiten innovations in the gating
// tests. Returns an error if m is not positive definite.
func CholeskyLower(m *mat.Dense) (*mat.Dense, error) {
	r, c := m.Dims()
	if r != 2 || c != 2 {
		return nil, errors.New("matkit: CholeskyLower only supports 2x2 matrices")
	}
	s00 := m.At(0, 0)
	if s00 <= 0 {
		return nil, &SingularMatrixError{Op: "CholeskyLower", Size: 2}
	}
	l00 := math.Sqrt(s00)
	l10 := m.At(1, 0) / l00
	diag := m.At(1, 1) - l10*l10
	if diag <= 0 {
		return nil, &SingularMatrixError{Op: "CholeskyLower", Size: 2}
	}
	l11 := math.Sqrt(diag)
	out := mat.NewDense(2, 2, nil)
	out.Set(0, 0, l00)
	out.Set(1, 0, l10)
	out.Set(1, 1, l11)
	return out, nil
}

// ForwardSolveLower solves L*x = b for x where L is lower triangular 2x2,
// used to whiten a 2-vector innovation by the Cholesky factor of S.
func ForwardSolveLower(l *mat.Dense, b []float64) []float64 {
	x0 := b[0] / l.At(0, 0)
	x1 := (b[1] - l.At(1, 0)*x0) / l.At(1, 1)
	return []float64{x0, x1}
}

// Norm2 returns the Euclidean norm of a float64 slice.
func Norm2(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// SubBlock copies the r0:r0+rows, c0:c0+cols block of src into dst at
// (dr, dc), used when embedding a 4x4 candidate covariance into the
// upper-left block of a 6x6 active covariance.
func SubBlock(dst *mat.Dense, dr, dc int, src *mat.Dense, r0, c0, rows, cols int) {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.Set(dr+i, dc+j, src.At(r0+i, c0+j))
		}
	}
}
