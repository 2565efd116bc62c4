package mtt

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// LocalTrack is the outbound projection of an ActiveTrack, emitted on
// request for consumption by an upstream track manager.
type LocalTrack struct {
	// BatchID lets a consumer de-duplicate a report across re-deliveries.
	// ToLocalTrack copies it from its argument; the ActiveTrack stores no id
	// of its own, so two reports carry the same BatchID only when they were
	// given the same one.
	BatchID uuid.UUID

	WCSX, WCSY, WCSZ    float64
	WCSVX, WCSVY, WCSVZ float64
	Is3D                bool // true iff vertical-channel-active

	// Cov is the 6x6 ENU covariance. When the vertical channel is inactive,
	// the vertical-off diagonals are inflated: 1e12 on position, 1e6 on
	// velocity, so a consumer that blindly trusts the full matrix does not
	// mistake an inactive channel for a confident one.
	Cov *mat.Dense

	EastAcceleration, NorthAcceleration float64
	HorizontalInformation               *mat.Dense // raw horizontal information matrix
	VerticalCovariance                  *mat.Dense
}

const (
	inactiveVerticalPositionVariance = 1e12
	inactiveVerticalVelocityVariance = 1e6
)

// ToLocalTrack projects an ActiveTrack through ref into the outbound
// LocalTrack shape.
func (a *ActiveTrack) ToLocalTrack(ref ReferencePoint, batchID uuid.UUID) LocalTrack {
	wx, wy, wz := ref.ENUToWCS(a.X6[0], a.X6[1], a.X6[4])
	wvx, wvy, wvz := ref.ENUVectorToWCS(a.X6[2], a.X6[3], a.X6[5])

	cov := mat.DenseCopyOf(a.P6)
	var vertCov *mat.Dense
	if a.VerticalChannelActive {
		if vc, err := invertVertical(&a.Vertical); err == nil {
			vertCov = vc
			cov.Set(4, 4, vc.At(0, 0))
			cov.Set(5, 5, vc.At(1, 1))
			cov.Set(4, 5, vc.At(0, 1))
			cov.Set(5, 4, vc.At(1, 0))
		}
	} else {
		cov.Set(4, 4, inactiveVerticalPositionVariance)
		cov.Set(5, 5, inactiveVerticalVelocityVariance)
		cov.Set(4, 5, 0)
		cov.Set(5, 4, 0)
	}

	return LocalTrack{
		BatchID:               batchID,
		WCSX:                  wx,
		WCSY:                  wy,
		WCSZ:                  wz,
		WCSVX:                 wvx,
		WCSVY:                 wvy,
		WCSVZ:                 wvz,
		Is3D:                  a.VerticalChannelActive,
		Cov:                   cov,
		EastAcceleration:      a.TurnX[4],
		NorthAcceleration:     a.TurnX[5],
		HorizontalInformation: mat.DenseCopyOf(a.Horizontal.Y),
		VerticalCovariance:    vertCov,
	}
}

func invertVertical(v *VerticalInfo) (*mat.Dense, error) {
	return matkit.Invert(v.P)
}
