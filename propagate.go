package mtt

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// StraightFlightTransition returns the closed-form 4-state (x,y,vx,vy)
// straight-flight transition matrix Phi(dt).
func StraightFlightTransition(dt float64) *mat.Dense {
	phi := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	return phi
}

// StraightFlightProcessNoise returns the 4x4 process-noise matrix Q for the
// straight-flight model, built from the closed-form position/velocity
// cross terms, independently weighted by wx, wy.
func StraightFlightProcessNoise(dt, wx, wy float64) *mat.Dense {
	q := mat.NewDense(4, 4, nil)
	dt3 := dt * dt * dt / 3
	dt2 := dt * dt / 2
	q.Set(0, 0, dt3*wx)
	q.Set(1, 1, dt3*wy)
	q.Set(0, 2, dt2*wx)
	q.Set(2, 0, dt2*wx)
	q.Set(1, 3, dt2*wy)
	q.Set(3, 1, dt2*wy)
	q.Set(2, 2, dt*wx)
	q.Set(3, 3, dt*wy)
	return q
}

// TurningFlightTransition returns the closed-form 6-state
// (x,y,vx,vy,ax,ay) turning-flight transition matrix.
func TurningFlightTransition(dt float64) *mat.Dense {
	phi := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		phi.Set(i, i, 1)
	}
	half := 0.5 * dt * dt
	// pos <- vel
	phi.Set(0, 2, dt)
	phi.Set(1, 3, dt)
	// pos <- acc
	phi.Set(0, 4, half)
	phi.Set(1, 5, half)
	// vel <- acc
	phi.Set(2, 4, dt)
	phi.Set(3, 5, dt)
	return phi
}

// TurningFlightProcessNoise returns the 6x6 process-noise matrix Q for the
// turning-flight model via Van Loan's closed form: dt^5/20,
// dt^4/8, dt^3/6, dt^3/3, dt^2/2, dt terms on the symmetric position,
// velocity and acceleration blocks, weighted by wx for the x-axis triplet
// (x,vx,ax) and wy for the y-axis triplet (y,vy,ay).
func TurningFlightProcessNoise(dt, wx, wy float64) *mat.Dense {
	q := mat.NewDense(6, 6, nil)
	d5 := pow(dt, 5) / 20
	d4 := pow(dt, 4) / 8
	d3a := pow(dt, 3) / 6
	d3b := pow(dt, 3) / 3
	d2 := dt * dt / 2

	fillAxisBlock(q, 0, 2, 4, wx, d5, d4, d3a, d3b, d2, dt)
	fillAxisBlock(q, 1, 3, 5, wy, d5, d4, d3a, d3b, d2, dt)
	return q
}

// fillAxisBlock writes the pos/vel/acc triplet block for one axis
// (ipos,ivel,iacc) into q, scaled by w.
func fillAxisBlock(q *mat.Dense, ipos, ivel, iacc int, w, d5, d4, d3a, d3b, d2, dt float64) {
	q.Set(ipos, ipos, w*d5)
	q.Set(ipos, ivel, w*d4)
	q.Set(ivel, ipos, w*d4)
	q.Set(ipos, iacc, w*d3a)
	q.Set(iacc, ipos, w*d3a)
	q.Set(ivel, ivel, w*d3b)
	q.Set(ivel, iacc, w*d2)
	q.Set(iacc, ivel, w*d2)
	q.Set(iacc, iacc, w*dt)
}

func pow(base float64, n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= base
	}
	return out
}

// TransitionInverse returns Phi(dt)^-1 for either the 4x4 straight-flight or
// 6x6 turning-flight transition, via the matrix kernel's general inversion.
// Both transitions are unipotent, so this never fails in practice, but
// errors still propagate so a caller can abort the propagation step rather
// than assume success.
func TransitionInverse(phi *mat.Dense) (*mat.Dense, error) {
	return matkit.Invert(phi)
}

// Propagate advances a covariance-form state (x, P) by Phi over dt: x <- Phi*x;
// P <- Phi*P*Phi^T + Q, then re-symmetrizes P. Only runs if dt > 0;
// Propagate(0, ...) must leave x and P bitwise unchanged.
func Propagate(dt float64, phi, q *mat.Dense, x []float64, p *mat.Dense) ([]float64, *mat.Dense) {
	if dt <= 0 {
		return x, p
	}
	n := len(x)
	xVec := mat.NewVecDense(n, x)
	var xNew mat.VecDense
	xNew.MulVec(phi, xVec)

	var phiP, pNew mat.Dense
	phiP.Mul(phi, p)
	pNew.Mul(&phiP, phi.T())
	pNew.Add(&pNew, q)
	matkit.Symmetrize(&pNew)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = xNew.AtVec(i)
	}
	return out, &pNew
}
