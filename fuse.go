package mtt

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

const likelihoodFloor = 1e-10
const likelihoodQuadraticClamp = 50.0

// ModelFuseResult is one model's (straight or turn) output from FuseFilter:
// the fused state/covariance and the Gaussian likelihood used for IMM mode
// weighting.
type ModelFuseResult struct {
	X          []float64
	P          *mat.Dense
	Likelihood float64
}

// FuseFilter runs one IMM model's centralized information-form track fusion:
//  1. Propagate the local prediction (xLocal, pLocal) to the external
//     track's time using phi, q.
//  2. delta z = xExt - xLocalPropagated ; S = pExt + pLocalPropagated.
//  3. Gaussian likelihood over the leading 2x2 position (x, y) block of S,
//     clamped to >= likelihoodFloor; requires det(S_xy) >= 0 and the
//     quadratic form <= 50, else likelihood floors out.
//  4. Centralized KF fusion in information form:
//     Y_new = Yext - YextPrev + Ylocal ; P_new = Y_new^-1.
//  5. Standard Kalman-gain measurement update for the state mean.
func FuseFilter(
	dt float64, phi, q *mat.Dense,
	xLocal []float64, pLocal *mat.Dense,
	xExt []float64, pExt *mat.Dense,
	yExtInfo, yExtPrevInfo, yLocalInfo *mat.Dense,
) ModelFuseResult {
	xPred, pPred := Propagate(dt, phi, q, xLocal, pLocal)

	n := len(xPred)
	dz := make([]float64, n)
	for i := 0; i < n; i++ {
		dz[i] = xExt[i] - xPred[i]
	}
	var s mat.Dense
	s.Add(pExt, pPred)

	likelihood := gaussianLikelihood(dz, &s)

	var yNew mat.Dense
	yNew.Sub(yExtInfo, yExtPrevInfo)
	yNew.Add(&yNew, yLocalInfo)
	matkit.Symmetrize(&yNew)

	pNew, err := matkit.Invert(&yNew)
	if err != nil {
		// Fall back to the local prediction unchanged; an unfusable
		// information matrix must not corrupt the track.
		return ModelFuseResult{X: xPred, P: pPred, Likelihood: likelihood}
	}

	// Kalman-gain form measurement update of the mean using the fused
	// covariance in place of an explicit K (equivalent for this
	// information-form fusion since pNew already reflects both sources).
	var pPredInv mat.Dense
	if ierr := pPredInv.Inverse(pPred); ierr != nil {
		return ModelFuseResult{X: xPred, P: pNew, Likelihood: likelihood}
	}
	var gain mat.Dense
	gain.Mul(pNew, &pPredInv)

	xNew := make([]float64, n)
	var correction mat.Dense
	correction.Mul(&gain, mat.NewDense(n, 1, dz))
	for i := 0; i < n; i++ {
		xNew[i] = xPred[i] + correction.At(i, 0)
	}

	return ModelFuseResult{X: xNew, P: pNew, Likelihood: likelihood}
}

// gaussianLikelihood computes L = (2*pi*sqrt(|Sxy|))^-1 * exp(-0.5 *
// dz_xy^T Sxy^-1 dz_xy) over the leading 2x2 (x,y) block of S, floored at
// likelihoodFloor and zeroed out (floored) if the
// determinant is negative or the quadratic form exceeds 50.
func gaussianLikelihood(dz []float64, s *mat.Dense) float64 {
	sxy := mat.NewDense(2, 2, []float64{s.At(0, 0), s.At(0, 1), s.At(1, 0), s.At(1, 1)})
	det := sxy.At(0, 0)*sxy.At(1, 1) - sxy.At(0, 1)*sxy.At(1, 0)
	if det < 0 {
		return likelihoodFloor
	}
	sInv, err := matkit.Invert(sxy)
	if err != nil {
		return likelihoodFloor
	}
	dzxy := dz[:2]
	quad := dzxy[0]*(sInv.At(0, 0)*dzxy[0]+sInv.At(0, 1)*dzxy[1]) +
		dzxy[1]*(sInv.At(1, 0)*dzxy[0]+sInv.At(1, 1)*dzxy[1])
	if quad > likelihoodQuadraticClamp {
		return likelihoodFloor
	}
	l := 1 / (2 * math.Pi * math.Sqrt(det)) * math.Exp(-0.5*quad)
	if l < likelihoodFloor {
		return likelihoodFloor
	}
	return l
}

// IMMBlendResult is the output of IMM mode combination.
type IMMBlendResult struct {
	Mode ModeProbabilities
	X6   [6]float64
	P6   *mat.Dense
}

// BlendIMM combines the straight and turn model fusion results using the
// prior mode probabilities and the configured mode-transition matrix:
//
//	c   = L_L*(Mll*muL0 + Mtl*muT0) + L_T*(Mlt*muL0 + Mtt*muT0)
//	muL = (L_L/c) * (Mll*muL0 + Mtl*muT0)
//	muT = (L_T/c) * (Mlt*muL0 + Mtt*muT0)
//	x   = muL*xStraight(padded to 6) + muT*xTurn
//	P   = muL*(Pstraight6 + (x-xStraight)(x-xStraight)^T)
//	    + muT*(Pturn    + (x-xTurn   )(x-xTurn   )^T)
func BlendIMM(straight, turn ModelFuseResult, prior ModeProbabilities, m ModeTransition) IMMBlendResult {
	mixedL := m.StraightToStraight*prior.Straight + m.TurningToStraight*prior.Turning
	mixedT := m.StraightToTurning*prior.Straight + m.TurningToTurning*prior.Turning

	c := straight.Likelihood*mixedL + turn.Likelihood*mixedT
	if c == 0 {
		c = likelihoodFloor
	}
	mode := ModeProbabilities{
		Straight: (straight.Likelihood / c) * mixedL,
		Turning:  (turn.Likelihood / c) * mixedT,
	}
	mode.Normalize()

	xStraight6 := padTo6(straight.X)
	xTurn6 := padTo6(turn.X)

	x := make([]float64, 6)
	for i := 0; i < 6; i++ {
		x[i] = mode.Straight*xStraight6[i] + mode.Turning*xTurn6[i]
	}

	pStraight6 := embed6(straight.P)
	pTurn6 := embed6(turn.P)

	dStraight := diff(x, xStraight6)
	dTurn := diff(x, xTurn6)

	var outerS, outerT mat.Dense
	outerS.Mul(mat.NewDense(6, 1, dStraight), mat.NewDense(1, 6, dStraight))
	outerT.Mul(mat.NewDense(6, 1, dTurn), mat.NewDense(1, 6, dTurn))

	var termS, termT, p mat.Dense
	termS.Add(pStraight6, &outerS)
	termS.Scale(mode.Straight, &termS)
	termT.Add(pTurn6, &outerT)
	termT.Scale(mode.Turning, &termT)
	p.Add(&termS, &termT)
	matkit.Symmetrize(&p)

	var x6 [6]float64
	copy(x6[:], x)
	return IMMBlendResult{Mode: mode, X6: x6, P6: &p}
}

func padTo6(x []float64) []float64 {
	out := make([]float64, 6)
	copy(out, x)
	return out
}

func embed6(p *mat.Dense) *mat.Dense {
	r, _ := p.Dims()
	if r == 6 {
		return p
	}
	out := mat.NewDense(6, 6, nil)
	matkit.SubBlock(out, 0, 0, p, 0, 0, r, r)
	return out
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// FuseVertical fuses the vertical channel: when the external track carries
// vertical data (update flag 1 or 3), fuse the vertical information
// matrices additively if the local channel is active, or simply adopt the
// external vertical channel if the local one is inactive.
func FuseVertical(local *VerticalInfo, extUpdateFlag int, extHasVertical bool, extP, extX *mat.Dense) {
	if !extHasVertical || (extUpdateFlag != 1 && extUpdateFlag != 3) {
		return
	}
	if local.IsZero() {
		local.P = mat.DenseCopyOf(extP)
		local.x = mat.DenseCopyOf(extX)
		return
	}
	var pNew, xNew mat.Dense
	pNew.Add(local.P, extP)
	matkit.Symmetrize(&pNew)
	xNew.Add(local.x, extX)
	local.P = &pNew
	local.x = &xNew
}
