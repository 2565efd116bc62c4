package mtt

// ReferencePoint is the consumed interface contract the MTT core uses to
// project a track's local ENU state into WCS for outbound reporting. The
// real ECI/ECEF/NED/WCS machinery lives outside this core; this interface
// is the seam.
type ReferencePoint interface {
	// ENUToWCS converts a local east-north-up position to world coordinates
	// (e.g. geodetic lat/lon/alt or an ECEF frame, depending on the host
	// simulation's convention).
	ENUToWCS(east, north, up float64) (x, y, z float64)
	// ENUVectorToWCS rotates a local east-north-up vector (velocity,
	// acceleration) into the world frame's axes without the positional
	// origin offset ENUToWCS applies to a point.
	ENUVectorToWCS(east, north, up float64) (x, y, z float64)
	// Lat, Lon, Alt return the reference point's own location.
	Lat() float64
	Lon() float64
	Alt() float64
}

// FlatEarthReference is a minimal ReferencePoint good enough to exercise
// the LocalTrack projection end-to-end in tests without depending on a full
// ellipsoidal geodesy library: it treats WCS as ENU offset directly from a
// fixed origin, which is exact for the locally-flat frame the radar
// measurement model already assumes.
type FlatEarthReference struct {
	OriginLat, OriginLon, OriginAlt float64
}

func (f FlatEarthReference) ENUToWCS(east, north, up float64) (x, y, z float64) {
	return east, north, f.OriginAlt + up
}

// ENUVectorToWCS is the identity rotation for a flat-earth frame: its axes
// already align with WCS, so a vector needs no rotation, only ENUToWCS's
// positional offset must be withheld.
func (f FlatEarthReference) ENUVectorToWCS(east, north, up float64) (x, y, z float64) {
	return east, north, up
}

func (f FlatEarthReference) Lat() float64 { return f.OriginLat }
func (f FlatEarthReference) Lon() float64 { return f.OriginLon }
func (f FlatEarthReference) Alt() float64 { return f.OriginAlt }
