package mtt

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// sentinelZTest is returned when a Cholesky factorization fails or the gate
// is otherwise unevaluable: the track is never selected.
const sentinelZTest = 9.999999999e9

// GateResult is the outcome of gating one model against one track: the
// hypothesis test statistic (whitened innovation norm) and the raw
// (physical) innovation norm.
type GateResult struct {
	ZTest         float64
	InnovationNorm float64
}

// whitenInnovation computes S = H*P*H^T + R, delta z = z - H*x, the
// Cholesky-based whitened innovation X = C^-1 * delta z, and returns
// z_test = ||X|| along with the raw innovation norm. Returns the sentinel
// on Cholesky failure or a non-positive-definite S.
func whitenInnovation(h, p, r *mat.Dense, x []float64, z []float64) GateResult {
	var hp, s mat.Dense
	hp.Mul(h, p)
	s.Mul(&hp, h.T())
	s.Add(&s, r)

	if s.At(0, 0) < 0 {
		return GateResult{ZTest: sentinelZTest, InnovationNorm: sentinelZTest}
	}

	var hx mat.Dense
	hx.Mul(h, mat.NewDense(len(x), 1, x))
	dz := []float64{z[0] - hx.At(0, 0), z[1] - hx.At(1, 0)}
	innovNorm := matkit.Norm2(dz)

	c, err := matkit.CholeskyLower(&s)
	if err != nil {
		return GateResult{ZTest: sentinelZTest, InnovationNorm: innovNorm}
	}
	whitened := matkit.ForwardSolveLower(c, dz)
	return GateResult{ZTest: matkit.Norm2(whitened), InnovationNorm: innovNorm}
}

// CriticalZ returns the critical hypothesis-test threshold z_c = sqrt(-2 ln
// alpha) for a configured false-rejection probability alpha.
func CriticalZ(alpha float64) float64 {
	return math.Sqrt(-2 * math.Log(alpha))
}

// GateMeasurementToTrack runs both motion models (straight 4-state, turn
// full 6-state, each projected onto position by H) against a measurement,
// each propagated to the measurement time, and returns the better
// (smaller-z_test) of the two.
//
// straightX/straightP and turnX/turnP are the two models' pre-propagation
// state estimates; phiS/qS and phiT/qT are their already-built
// transition/process-noise matrices for this dt; z is the inertial-frame
// measurement position (sensor position plus delta).
func GateMeasurementToTrack(
	straightX []float64, straightP *mat.Dense, phiS, qS *mat.Dense,
	turnX []float64, turnP *mat.Dense, phiT, qT *mat.Dense,
	r *mat.Dense, z []float64,
) GateResult {
	sx, sp := Propagate(phiStepDT(phiS), phiS, qS, straightX, straightP)
	tx, tp := Propagate(phiStepDT(phiT), phiT, qT, turnX, turnP)

	hs := HMatrix(len(sx))
	ht := HMatrix(len(tx))

	rs := whitenInnovation(hs, sp, r, sx, z)
	rt := whitenInnovation(ht, tp, r, tx, z)

	if rs.ZTest <= rt.ZTest {
		return rs
	}
	return rt
}

// phiStepDT recovers the dt baked into a transition matrix's first
// off-diagonal entry, so GateMeasurementToTrack can reuse the shared
// Propagate helper without re-threading dt through every call site.
func phiStepDT(phi *mat.Dense) float64 {
	return phi.At(0, 2)
}

// RescaleVariance clamps the diagonal of a covariance matrix into
// [minVariance, maxVariance] in place, the rescale rule applied before
// track-to-track gating.
func RescaleVariance(p *mat.Dense, minVariance, maxVariance float64) {
	n, _ := p.Dims()
	for i := 0; i < n; i++ {
		v := p.At(i, i)
		if v > maxVariance {
			p.Set(i, i, maxVariance)
		} else if v < minVariance {
			p.Set(i, i, minVariance)
		}
	}
}

// GateTrackToTrack mirrors GateMeasurementToTrack but compares an active
// track's current state (no propagation is applied) against a temporary
// active-track snapshot built from an incoming nonlocal track, after
// rescaling covariance bounds.
func GateTrackToTrack(
	activeX []float64, activeP *mat.Dense,
	incomingX []float64, incomingP *mat.Dense,
	minVariance, maxVariance float64,
) GateResult {
	pCopy := mat.DenseCopyOf(activeP)
	RescaleVariance(pCopy, minVariance, maxVariance)
	incomingCopy := mat.DenseCopyOf(incomingP)
	RescaleVariance(incomingCopy, minVariance, maxVariance)

	var s mat.Dense
	s.Add(pCopy, incomingCopy)

	n := len(activeX)
	dz := make([]float64, n)
	for i := 0; i < n; i++ {
		dz[i] = incomingX[i] - activeX[i]
	}
	if n > 2 {
		dz = dz[:2]
	}
	s2 := mat.NewDense(2, 2, []float64{s.At(0, 0), s.At(0, 1), s.At(1, 0), s.At(1, 1)})

	if s2.At(0, 0) < 0 {
		return GateResult{ZTest: sentinelZTest, InnovationNorm: sentinelZTest}
	}
	innovNorm := matkit.Norm2(dz)
	c, err := matkit.CholeskyLower(s2)
	if err != nil {
		return GateResult{ZTest: sentinelZTest, InnovationNorm: innovNorm}
	}
	whitened := matkit.ForwardSolveLower(c, dz)
	return GateResult{ZTest: matkit.Norm2(whitened), InnovationNorm: innovNorm}
}

// TrackCorrelationCylinder implements the alternative geometric gate:
// accepted iff the horizontal innovation norm is within radius and, when
// both vertical channels are active, the altitude difference is within
// half the cylinder height.
func TrackCorrelationCylinder(horizontalInnovationNorm float64, diameter float64, trackZ, activeZ float64, bothVerticalActive bool, height float64) bool {
	if diameter <= 0 {
		return false // cylinder gate not configured; caller should fall back to the alpha gate
	}
	radius := diameter / 2
	if horizontalInnovationNorm > radius {
		return false
	}
	if bothVerticalActive {
		if math.Abs(trackZ-activeZ) > height/2 {
			return false
		}
	}
	return true
}
