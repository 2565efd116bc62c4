package mtt

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// CanPromoteEmbryonicToCandidate reports whether an embryonic track's
// horizontal filter now satisfies every condition required to become a
// candidate:
//   - condition number of Y below PromoteTrackHorizontalThreshold
//   - post-inversion velocity-variance sum (diag[2][2]+diag[3][3]) below
//     VelocityVariancePromoteEmbryonic
//   - horizontal speed <= VelocityLimitPromoteEmbryonic
//   - (optional) consecutive single-source-hit count >= threshold, only
//     enforced when PromoteSingleSourceHitThreshold > 0
func CanPromoteEmbryonicToCandidate(e *EmbryonicTrack, p Parameters) bool {
	cond, err := matkit.ConditionNumber(e.Horizontal.Y)
	if err != nil || cond > p.PromoteTrackHorizontalThreshold {
		return false
	}
	cov, err := matkit.Invert(e.Horizontal.Y)
	if err != nil {
		return false
	}
	velVarSum := cov.At(2, 2) + cov.At(3, 3)
	if velVarSum > p.VelocityVariancePromoteEmbryonic {
		return false
	}
	var x mat.Dense
	x.Mul(cov, e.Horizontal.y)
	speed := matkit.Norm2([]float64{x.At(2, 0), x.At(3, 0)})
	if speed > p.VelocityLimitPromoteEmbryonic {
		return false
	}
	if p.PromoteSingleSourceHitThreshold > 0 && e.ConsecutiveSingleSourceHits < p.PromoteSingleSourceHitThreshold {
		return false
	}
	return true
}

// CanPromoteCandidateToActive reports whether a candidate track's
// horizontal filter satisfies the active-promotion conditions:
// condition number below threshold, position variances (diag[0][0],
// diag[1][1]) below PositionVariancePromoteCandidate, and velocity
// variances (diag[2][2], diag[3][3]) below VelocityVariancePromoteCandidate.
func CanPromoteCandidateToActive(c *CandidateTrack, p Parameters) bool {
	cond, err := matkit.ConditionNumber(c.Horizontal.Y)
	if err != nil || cond > p.PromoteTrackHorizontalThreshold {
		return false
	}
	cov, err := matkit.Invert(c.Horizontal.Y)
	if err != nil {
		return false
	}
	if cov.At(0, 0) >= p.PositionVariancePromoteCandidate || cov.At(1, 1) >= p.PositionVariancePromoteCandidate {
		return false
	}
	if cov.At(2, 2) >= p.VelocityVariancePromoteCandidate || cov.At(3, 3) >= p.VelocityVariancePromoteCandidate {
		return false
	}
	return true
}

// CandidateToActive converts a promoted candidate's 4x4 information state
// into the upper-left block of a fresh ActiveTrack's 6x6 IMM state:
// invert the candidate's information matrix (signaling error if
// singular), embed the resulting 4x4 covariance into the 6x6 covariance
// (remaining rows/cols zero), compute x = P*y and copy into the upper 4 of
// the 6-state, copy the vertical channel as-is, and initialize mode
// probabilities to (0.5, 0.5). The previous-step snapshot is seeded with
// this initial state and covariance at the candidate's update time, not
// zeroed.
func CandidateToActive(c *CandidateTrack) (*ActiveTrack, error) {
	cov, err := matkit.Invert(c.Horizontal.Y)
	if err != nil {
		return nil, err
	}
	var xVec mat.Dense
	xVec.Mul(cov, c.Horizontal.y)

	p6 := mat.NewDense(6, 6, nil)
	matkit.SubBlock(p6, 0, 0, cov, 0, 0, 4, 4)

	y6 := mat.NewDense(6, 1, nil)
	for i := 0; i < 4; i++ {
		y6.Set(i, 0, c.Horizontal.y.At(i, 0))
	}
	info6 := mat.NewDense(6, 6, nil)
	matkit.SubBlock(info6, 0, 0, c.Horizontal.Y, 0, 0, 4, 4)

	a := &ActiveTrack{
		trackBase: trackBase{
			UpdateTime:                  c.UpdateTime,
			VerticalChannelActive:       c.VerticalChannelActive,
			VerticalUpdateTime:          c.VerticalUpdateTime,
			Vertical:                    c.Vertical,
			ConsecutiveSingleSourceHits: c.ConsecutiveSingleSourceHits,
			LastSensorID:                c.LastSensorID,
		},
		Horizontal:        HorizontalInfo{Y: info6, y: y6},
		P6:                p6,
		Mode:              ModeProbabilities{Straight: 0.5, Turning: 0.5},
		OriginCandidateID: c.TrackID,
	}
	for i := 0; i < 4; i++ {
		a.X6[i] = xVec.At(i, 0)
		a.StraightX[i] = xVec.At(i, 0)
	}
	if c.VerticalChannelActive {
		vCov, verr := matkit.Invert(c.Vertical.P)
		if verr == nil {
			a.X6[4] = vCov.At(0, 0) * c.Vertical.x.At(0, 0)
		}
	}
	a.StraightP = mat.DenseCopyOf(cov)
	a.TurnX = a.X6
	a.TurnP = mat.DenseCopyOf(p6)
	a.Prev = ActiveTrackPrevious{Time: a.UpdateTime, X6: a.X6, P6: mat.DenseCopyOf(p6), Mode: a.Mode}
	return a, nil
}

// NewEmbryonicTrack allocates a fresh embryonic track whose horizontal
// information matrix and vector start at zero (infinite variance). It takes
// no measurement: the caller folds the first measurement in afterwards.
func NewEmbryonicTrack(id int, now float64) *EmbryonicTrack {
	return &EmbryonicTrack{
		trackBase: trackBase{
			UpdateTime: now,
			TrackID:    id,
		},
		Horizontal: HorizontalInfo{
			Y: mat.NewDense(4, 4, nil),
			y: mat.NewDense(4, 1, nil),
		},
	}
}

// NewCandidateTrack allocates a candidate track carrying over an
// embryonic's full horizontal and vertical filter state.
func NewCandidateTrack(id int, e *EmbryonicTrack) *CandidateTrack {
	return &CandidateTrack{
		trackBase: trackBase{
			UpdateTime:                  e.UpdateTime,
			TrackID:                     id,
			VerticalChannelActive:       e.VerticalChannelActive,
			VerticalUpdateTime:          e.VerticalUpdateTime,
			Vertical:                    e.Vertical,
			ConsecutiveSingleSourceHits: e.ConsecutiveSingleSourceHits,
			LastSensorID:                e.LastSensorID,
		},
		Horizontal: HorizontalInfo{
			Y: mat.DenseCopyOf(e.Horizontal.Y),
			y: mat.DenseCopyOf(e.Horizontal.y),
		},
	}
}
