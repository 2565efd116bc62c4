package mtt

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DataAvailable is a bitfield marking which quantities a measurement
// actually carries: range, azimuth, elevation, range-rate, sensor
// position, sensor velocity.
type DataAvailable uint8

const (
	HasRange DataAvailable = 1 << iota
	HasAzimuth
	HasElevation
	HasRangeRate
	HasSensorPosition
	HasSensorVelocity
)

// Has reports whether all bits in want are set.
func (d DataAvailable) Has(want DataAvailable) bool {
	return d&want == want
}

// RadarMeasurement is the radar payload of a Measurement: range, azimuth,
// elevation, range-rate with per-quantity sigma, and sensor position and
// velocity in the scenario's local flat ENU frame.
type RadarMeasurement struct {
	Range, Azimuth, Elevation, RangeRate float64
	SigmaRange, SigmaAzimuth             float64
	SigmaElevation, SigmaRangeRate       float64
	SensorX, SensorY, SensorZ            float64
	SensorVX, SensorVY, SensorVZ         float64
}

// Measurement is the type-erased record the dispatcher consumes for radar
// inputs. Payload is always a *RadarMeasurement today; a future payload kind
// would dispatch with a switch at the point of use rather than a base-class
// Clone.
type Measurement struct {
	Available DataAvailable
	Payload   *RadarMeasurement
}

// GroundRange returns the horizontal (ground) range implied by this
// measurement. When elevation is available, ground range = slant*cos(el);
// otherwise, if a filtered altitude is supplied (vertical channel active),
// estimate ground range via Pythagoras; otherwise fall back to slant range.
func (m Measurement) GroundRange(filteredAltitude float64, haveFilteredAltitude bool) float64 {
	r := m.Payload
	if m.Available.Has(HasElevation) {
		return r.Range * math.Cos(r.Elevation)
	}
	if haveFilteredAltitude {
		dz := r.SensorZ - filteredAltitude
		gr2 := r.Range*r.Range - dz*dz
		if gr2 < 0 {
			return r.Range
		}
		return math.Sqrt(gr2)
	}
	return r.Range
}

// CombinedTrack ("nonlocal track") is an externally-originated track passed
// into the dispatcher for track-to-track correlation/fusion.
type CombinedTrack struct {
	// UpdateFlag classifies the source: 1 = height-finder, 2 = 2D, 3 = 3D.
	UpdateFlag   int
	HasVertical  bool
	X            [6]float64 // x, y, vx, vy, z, vz
	Info6        *mat.Dense // 6x6 information matrix
	AccelX       float64
	AccelY       float64
	VInfo        *mat.Dense // 2x2 vertical information matrix
	Prev         CombinedTrackSnapshot
	OriginatorID int
	SensorID     int
}

// CombinedTrackSnapshot is the one-step-previous copy of a CombinedTrack's
// state, required by FuseFilter's centralized information-form fusion:
// Y_new = Y_ext - Y_ext_prev + Y_local.
type CombinedTrackSnapshot struct {
	X     [6]float64
	Info6 *mat.Dense
	VInfo *mat.Dense
	Time  float64
}

// PerceivedCluster is the dispatcher's input envelope: exactly one of
// Measurement or CombinedTrack is set.
type PerceivedCluster struct {
	Measurement           *Measurement
	CombinedTrack         *CombinedTrack
	TrackNumber           int // nonzero only for height-finder measurements targeting a specific active track
	LastOriginatorID      int
	LastSensorID          int
	ConsecutiveSingleHits int
}

// IsHeightFinder reports whether this cluster is a height-finder
// measurement routed directly at an existing active track.
func (p *PerceivedCluster) IsHeightFinder() bool {
	return p.Measurement != nil && p.TrackNumber != 0
}
