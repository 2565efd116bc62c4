package mtt

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// verticalTransition returns the closed-form 2x2 Phi for a constant
// altitude / first-order Gauss-Markov vertical velocity process with time
// constant tau.
func verticalTransition(dt, tau float64) *mat.Dense {
	beta := math.Exp(-dt / tau)
	phi := mat.NewDense(2, 2, nil)
	phi.Set(0, 0, 1)
	phi.Set(0, 1, tau*(1-beta))
	phi.Set(1, 1, beta)
	return phi
}

// verticalProcessNoise returns the closed-form 2x2 Q for the same
// Gauss-Markov model, driven by the steady-state vertical-velocity variance
// sigmaVV2 and time constant tau.
func verticalProcessNoise(dt, tau, sigmaVV2 float64) *mat.Dense {
	beta := math.Exp(-dt / tau)
	beta2 := beta * beta
	qvv := sigmaVV2 * (1 - beta2)
	qzz := 2 * sigmaVV2 * tau * (dt - 2*tau*(1-beta) + (tau/2)*(1-beta2))
	qzv := sigmaVV2 * tau * (1 - beta) * (1 - beta)
	q := mat.NewDense(2, 2, nil)
	q.Set(0, 0, qzz)
	q.Set(0, 1, qzv)
	q.Set(1, 0, qzv)
	q.Set(1, 1, qvv)
	return q
}

// PropagateVertical advances a track's vertical information filter to the
// current time, guarding against waking a dead channel: propagation only
// runs if the channel's state is nonzero.
func PropagateVertical(v *VerticalInfo, dt float64, tau, sigmaVV2 float64) {
	if v.IsZero() || dt <= 0 {
		return
	}
	p, err := matkit.Invert(v.P)
	if err != nil {
		return // singular: abort this propagation step, state unchanged
	}
	var x mat.Dense
	x.Mul(p, v.x)

	phi := verticalTransition(dt, tau)
	q := verticalProcessNoise(dt, tau, sigmaVV2)

	var phiP, pNew mat.Dense
	phiP.Mul(phi, p)
	pNew.Mul(&phiP, phi.T())
	pNew.Add(&pNew, q)
	matkit.Symmetrize(&pNew)

	var xNew mat.Dense
	xNew.Mul(phi, &x)

	newInfo, err := matkit.Invert(&pNew)
	if err != nil {
		return
	}
	var yNew mat.Dense
	yNew.Mul(newInfo, &xNew)

	v.P = newInfo
	v.x = &yNew
}

// UpdateVerticalInfo folds a z-only measurement into the vertical
// information filter: Y += H^T Rinv H; y += H^T Rinv z, where H = [1 0]
// RInv is the scalar inverse-variance of the altitude
// measurement (var_z of the range/elevation model, or the height-finder
// sigma).
func UpdateVerticalInfo(v *VerticalInfo, z, rInv float64) {
	if v.P == nil {
		v.Reset()
	}
	y := v.P.At(0, 0) + rInv
	v.P.Set(0, 0, y)
	v.x.Set(0, 0, v.x.At(0, 0)+rInv*z)
}

// CheckVerticalPromotion reports whether the vertical channel's
// post-inversion variances are below the configured thresholds. It does not
// read or set the active flag; callers assign the result. A zero or
// singular information matrix reports false.
func CheckVerticalPromotion(v *VerticalInfo, posVarThresh, velVarThresh float64) bool {
	if v.IsZero() {
		return false
	}
	p, err := matkit.Invert(v.P)
	if err != nil {
		return false
	}
	return p.At(0, 0) < posVarThresh && p.At(1, 1) < velVarThresh
}
