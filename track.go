package mtt

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// HorizontalInfo is an information-form state of a horizontal filter: Y is
// the information matrix (P^-1), y is the information vector (Y*x). Living
// in information form lets embryonic tracks start at "infinite" variance
// without ever representing infinity directly.
type HorizontalInfo struct {
	Y *mat.Dense // n x n information matrix, n in {4, 6}
	y *mat.Dense // n x 1 information vector
}

// YVec returns the information vector as a flat slice for convenience.
func (h *HorizontalInfo) YVec() []float64 {
	n, _ := h.y.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = h.y.At(i, 0)
	}
	return out
}

// VerticalInfo is the 2-state (altitude, vertical-velocity) information
// filter shared by every track kind.
type VerticalInfo struct {
	P *mat.Dense // 2x2 information matrix
	x *mat.Dense // 2x1 information vector
}

// IsZero reports whether this vertical channel has never been initialized
// or has been reset to zero; propagation only runs while the state is
// nonzero.
func (v *VerticalInfo) IsZero() bool {
	if v.P == nil {
		return true
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if v.P.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// Reset zeroes the vertical information matrix and vector, the action taken
// when the vertical channel goes stale.
func (v *VerticalInfo) Reset() {
	v.P = mat.NewDense(2, 2, nil)
	v.x = mat.NewDense(2, 1, nil)
}

// trackBase carries the fields shared by all three track kinds.
type trackBase struct {
	UpdateTime            float64
	TrackID                int
	VerticalChannelActive  bool
	VerticalUpdateTime     float64
	Vertical               VerticalInfo
	// ConsecutiveSingleSourceHits counts consecutive updates from the same
	// sensor, used by the single-source-hit promotion rule.
	ConsecutiveSingleSourceHits int
	LastSensorID                int
}

// filteredAltitude recovers the shared vertical channel's current altitude
// estimate in state (not information) form, for the track kinds that have no
// X6 state of their own to read it from directly.
func (t *trackBase) filteredAltitude() (float64, bool) {
	if !t.VerticalChannelActive || t.Vertical.IsZero() {
		return 0, false
	}
	cov, err := matkit.Invert(t.Vertical.P)
	if err != nil {
		return 0, false
	}
	var x mat.Dense
	x.Mul(cov, t.Vertical.x)
	return x.At(0, 0), true
}

// EmbryonicTrack is the first lifecycle stage: born from an uncorrelated
// measurement, holding only a 4-state horizontal information filter plus
// the shared 2-state vertical channel.
type EmbryonicTrack struct {
	trackBase
	Horizontal HorizontalInfo // 4x4 / 4x1
}

// CandidateTrack is shape-identical to EmbryonicTrack; it exists as a
// distinct type so the registries and promotion rules stay statically
// distinguishable from an embryonic track, despite the identical shape.
type CandidateTrack struct {
	trackBase
	Horizontal HorizontalInfo // 4x4 / 4x1
}

// ModeProbabilities holds the IMM mode weights for the straight-flight and
// turning-flight hypotheses. Invariant: both entries >= modeProbFloor and
// Straight+Turning == 1.
type ModeProbabilities struct {
	Straight, Turning float64
}

const modeProbFloor = 1e-10

// Normalize clamps both probabilities to the floor and renormalizes so they
// sum to exactly 1.
func (m *ModeProbabilities) Normalize() {
	if m.Straight < modeProbFloor {
		m.Straight = modeProbFloor
	}
	if m.Turning < modeProbFloor {
		m.Turning = modeProbFloor
	}
	sum := m.Straight + m.Turning
	m.Straight /= sum
	m.Turning /= sum
}

// ActiveTrackPrevious is the previous-step snapshot of an active track's
// full IMM state, used for centralized Kalman fusion.
type ActiveTrackPrevious struct {
	Time float64
	X6   [6]float64
	P6   *mat.Dense // 6x6
	Mode ModeProbabilities
}

// ActiveTrack is the full IMM track: a 6-state horizontal information
// filter, the reconstructed 6-state covariance/mean pair used by the IMM
// blend, the 2-state vertical channel, mode probabilities, and the
// previous-step snapshot required for track fusion.
type ActiveTrack struct {
	trackBase
	Horizontal HorizontalInfo // 6x6 / 6x1, information form
	X6         [6]float64     // blended state: x,y,vx,vy,z,vz (z/vz come from the vertical channel when active)
	P6         *mat.Dense     // 6x6 blended covariance
	Mode       ModeProbabilities
	Prev       ActiveTrackPrevious

	// StraightX/StraightP and TurnX/TurnP are the parallel per-model IMM
	// state kept between ticks so FuseFilter/GateMeasurementToTrack can propagate
	// each model independently before blending: the two models are kept as
	// parallel records sharing common storage rather than a class hierarchy.
	StraightX [4]float64
	StraightP *mat.Dense // 4x4
	TurnX     [6]float64
	TurnP     *mat.Dense // 6x6

	OriginCandidateID int // candidate track id this was promoted from, 0 if created ex-nihilo
}

// Altitude returns the vertical channel's filtered altitude and whether it
// is currently meaningful (channel active).
func (a *ActiveTrack) Altitude() (z float64, ok bool) {
	if !a.VerticalChannelActive {
		return 0, false
	}
	return a.X6[4], true
}
