package mtt

import "testing"

// confidentEmbryonic simulates ~40s of radar hits on a target moving at a
// constant (5, 5) velocity, so that the position/velocity cross terms of
// repeated propagate+fold cycles drive the filter's condition number and
// post-inversion variances down enough to pass promotion.
func confidentEmbryonic(id int) *EmbryonicTrack {
	e := NewEmbryonicTrack(id, 0)
	hMat := HMatrix(4)
	r := RangeCrossRangeCovariance(50, 2, 0.005)
	dt := 1.0
	x, y := 1000.0, 1000.0
	phi := StraightFlightTransition(dt)
	phiInv, _ := TransitionInverse(phi)
	q := StraightFlightProcessNoise(dt, 0.1, 0.1)
	for i := 0; i < 40; i++ {
		_ = UpdateHorizontalInfo(&e.Horizontal, dt, phiInv, q, hMat, r, []float64{x, y})
		x += 5 * dt
		y += 5 * dt
	}
	return e
}

func TestCanPromoteEmbryonicToCandidateAfterEnoughHits(t *testing.T) {
	p := DefaultParameters()
	e := confidentEmbryonic(1)
	if !CanPromoteEmbryonicToCandidate(e, p) {
		t.Fatalf("a well-conditioned, low-variance embryonic track should be promotable")
	}
}

func TestCanPromoteEmbryonicToCandidateRejectsSparseTrack(t *testing.T) {
	p := DefaultParameters()
	e := NewEmbryonicTrack(1, 0)
	hMat := HMatrix(4)
	r := RangeCrossRangeCovariance(100, 5, 0.01)
	_ = UpdateHorizontalInfo(&e.Horizontal, 0, nil, nil, hMat, r, []float64{1000, 1000})
	if CanPromoteEmbryonicToCandidate(e, p) {
		t.Fatalf("a single-hit embryonic track should still be too uncertain to promote")
	}
}

func TestCanPromoteEmbryonicToCandidateSingleSourceGate(t *testing.T) {
	p := DefaultParameters()
	p.PromoteSingleSourceHitThreshold = 5
	e := confidentEmbryonic(1)
	e.ConsecutiveSingleSourceHits = 1
	if CanPromoteEmbryonicToCandidate(e, p) {
		t.Fatalf("when PromoteSingleSourceHitThreshold is set, too few consecutive hits must block promotion")
	}
	e.ConsecutiveSingleSourceHits = 5
	if !CanPromoteEmbryonicToCandidate(e, p) {
		t.Fatalf("meeting PromoteSingleSourceHitThreshold should unblock promotion")
	}
}

func TestCandidateToActiveEmbedsUpperBlock(t *testing.T) {
	e := confidentEmbryonic(1)
	c := NewCandidateTrack(2, e)
	a, err := CandidateToActive(c)
	if err != nil {
		t.Fatalf("CandidateToActive: %v", err)
	}
	if a.OriginCandidateID != 2 {
		t.Fatalf("OriginCandidateID = %d, want 2", a.OriginCandidateID)
	}
	rows, cols := a.P6.Dims()
	if rows != 6 || cols != 6 {
		t.Fatalf("active covariance must be 6x6, got %dx%d", rows, cols)
	}
	if a.Mode.Straight != 0.5 || a.Mode.Turning != 0.5 {
		t.Fatalf("a freshly promoted track must start with even mode probabilities")
	}
}
