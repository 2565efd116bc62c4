package mtt

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// RangeCrossRangeCovariance returns R0 = diag(sigmaRange^2, range^2*sigmaAz^2),
// the measurement covariance expressed in the body (range, cross-range)
// frame before rotation into the inertial frame.
func RangeCrossRangeCovariance(rng, sigmaRange, sigmaAz float64) *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		sigmaRange * sigmaRange, 0,
		0, rng * rng * sigmaAz * sigmaAz,
	})
}

// RangeRotation returns the rotation B that aligns the range axis with
// inertial x, given the inertial-frame delta (dx, dy) and the slant range.
func RangeRotation(dx, dy, rng float64) *mat.Dense {
	a11 := dx / rng
	a12 := dy / rng
	return mat.NewDense(2, 2, []float64{
		a11, -a12,
		a12, a11,
	})
}

// InertialMeasurementCovariance computes R = B*R0*B^T, the measurement
// covariance rotated into the inertial frame.
func InertialMeasurementCovariance(dx, dy, rng, sigmaRange, sigmaAz float64) *mat.Dense {
	r0 := RangeCrossRangeCovariance(rng, sigmaRange, sigmaAz)
	b := RangeRotation(dx, dy, rng)
	var br, r mat.Dense
	br.Mul(b, r0)
	r.Mul(&br, b.T())
	return &r
}

// HMatrix returns H = [I2 | 0], sized to n (4 or 6) horizontal states.
func HMatrix(n int) *mat.Dense {
	h := mat.NewDense(2, n, nil)
	h.Set(0, 0, 1)
	h.Set(1, 1, 1)
	return h
}

// VerticalMeasurementVariance returns var_z and dz (the z-innovation input)
// for a measurement with both range and elevation available:
// var_z = sin^2(el)*sigmaRange^2 + slant^2*sigmaEl^2 ; dz = slant*sin(el).
func VerticalMeasurementVariance(slant, elevation, sigmaRange, sigmaEl float64) (varZ, dz float64) {
	sinEl := math.Sin(elevation)
	varZ = sinEl*sinEl*sigmaRange*sigmaRange + slant*slant*sigmaEl*sigmaEl
	dz = slant * sinEl
	return
}

// PropagateHorizontalInfo advances a HorizontalInfo in place by one step of
// the information-form propagation:
//
//	M = PhiInv^T * Y * PhiInv (symmetrized)
//	N = M * (M + Qinv)^-1 (right solve)
//	Y' = (I-N)*M (symmetrized)
//	y' = (I-N) * PhiInv^T * y
//
// No-op if dt <= 0. Aborts (state left unchanged) if Qinv or the right-solve
// is singular — a signaled failure, not a panic.
func PropagateHorizontalInfo(h *HorizontalInfo, dt float64, phiInv, q *mat.Dense) error {
	if dt <= 0 {
		return nil
	}
	n, _ := h.Y.Dims()
	qInv, err := matkit.Invert(q)
	if err != nil {
		return err
	}
	var phiInvT mat.Dense
	phiInvT.CloneFrom(phiInv.T())
	var m mat.Dense
	m.Mul(&phiInvT, h.Y)
	m.Mul(&m, phiInv)
	matkit.Symmetrize(&m)

	var mPlusQinv mat.Dense
	mPlusQinv.Add(&m, qInv)
	// Solve gives the left-division (M+Qinv)^-1 * M; spec §4.3 calls for the
	// right-division N = M*(M+Qinv)^-1, which is that result's transpose.
	nMatLeft, err := matkit.Solve(&mPlusQinv, &m)
	if err != nil {
		return err
	}
	var nMat mat.Dense
	nMat.CloneFrom(nMatLeft.T())
	id := matkit.Identity(n)
	var imN mat.Dense
	imN.Sub(id, &nMat)

	var yNew mat.Dense
	yNew.Mul(&imN, &m)
	matkit.Symmetrize(&yNew)

	var yVecNew mat.Dense
	yVecNew.Mul(&phiInvT, h.y)
	yVecNew.Mul(&imN, &yVecNew)

	h.Y = &yNew
	h.y = &yVecNew
	return nil
}

// UpdateHorizontalInfo runs the full information-form update on
// the given HorizontalInfo in place: propagate (PropagateHorizontalInfo,
// no-op for dt <= 0 or on numerical failure), then fold the measurement:
// Y += H^T Rinv H (symmetrized); y += H^T Rinv (sensorPos + delta).
func UpdateHorizontalInfo(h *HorizontalInfo, dt float64, phiInv, q *mat.Dense, hMat, r *mat.Dense, sensorPlusDelta []float64) error {
	_ = PropagateHorizontalInfo(h, dt, phiInv, q)

	rInv, err := matkit.Invert(r)
	if err != nil {
		return err
	}
	var htRinv, htRinvH mat.Dense
	htRinv.Mul(hMat.T(), rInv)
	htRinvH.Mul(&htRinv, hMat)

	var yAdd mat.Dense
	yAdd.Add(h.Y, &htRinvH)
	matkit.Symmetrize(&yAdd)
	h.Y = &yAdd

	delta := mat.NewDense(2, 1, sensorPlusDelta)
	var yVecAdd mat.Dense
	yVecAdd.Mul(&htRinv, delta)
	yVecAdd.Add(h.y, &yVecAdd)
	h.y = &yVecAdd
	return nil
}

// DopplerAugment folds a range-rate measurement into the already-updated
// horizontal velocity estimate. az is the measured azimuth;
// varVx, varVy are the current velocity-variance estimates (diagonal of the
// reconstructed covariance).
func DopplerAugment(vx, vy, az, el, rangeRate, sensorVx, sensorVy, varVx, varVy, sigmaRangeRate float64) (newVx, newVy float64) {
	cosAz, sinAz := math.Cos(az), math.Sin(az)
	res := (rangeRate*math.Cos(el) + sensorVx*cosAz + sensorVy*sinAz) - (vx*cosAz + vy*sinAz)
	c := varVx*cosAz*cosAz + varVy*sinAz*sinAz + sigmaRangeRate*sigmaRangeRate
	if c == 0 {
		return vx, vy
	}
	newVx = vx + (varVx*cosAz/c)*res
	newVy = vy + (varVy*sinAz/c)*res
	return
}
