package mtt

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

// radarHitAt builds a PerceivedCluster for a target at (x, y) as seen by a
// sensor sitting at the scenario origin, with tight enough noise that a
// straight-flight track converges within a handful of hits.
func radarHitAt(x, y float64) *PerceivedCluster {
	rng := math.Hypot(x, y)
	az := math.Atan2(y, x)
	r := &RadarMeasurement{
		Range:          rng,
		Azimuth:        az,
		SigmaRange:     5,
		SigmaAzimuth:   0.002,
		SigmaElevation: 0.01,
		SigmaRangeRate: 1,
	}
	meas := &Measurement{Available: HasRange | HasAzimuth | HasSensorPosition, Payload: r}
	return &PerceivedCluster{Measurement: meas}
}

func TestTrackerLifecycleStraightFlightProgression(t *testing.T) {
	p := DefaultParameters()
	tr := NewTracker("scenario", p, FlatEarthReference{})

	x, y := 10000.0, 10000.0
	vx, vy := 40.0, 10.0
	dt := 1.0

	sawCandidate, sawActive := false, false
	for i := 0; i < 60; i++ {
		now := float64(i+1) * dt
		cluster := radarHitAt(x, y)
		res := tr.Update(now, cluster)
		if tr.Candidate.Len() > 0 {
			sawCandidate = true
		}
		if res.Track != nil && tr.Active.Len() > 0 {
			sawActive = true
		}
		x += vx * dt
		y += vy * dt
	}

	if !sawCandidate {
		t.Fatalf("a consistent stream of hits on one target should produce a candidate track")
	}
	if !sawActive {
		t.Fatalf("a consistent stream of hits on one target should eventually produce an active track")
	}
	if tr.Embryonic.Len() > 1 {
		t.Fatalf("a single converging target should not spawn a pile of unrelated embryonic tracks, got %d", tr.Embryonic.Len())
	}
}

func TestTrackerClutterDoesNotCorrelateAcrossWidelySeparatedHits(t *testing.T) {
	p := DefaultParameters()
	tr := NewTracker("clutter", p, FlatEarthReference{})

	tr.Update(1, radarHitAt(1000, 1000))
	tr.Update(2, radarHitAt(50000, -50000))
	tr.Update(3, radarHitAt(-20000, 30000))

	if tr.Embryonic.Len() != 3 {
		t.Fatalf("three widely separated single hits should remain three distinct embryonic tracks, got %d", tr.Embryonic.Len())
	}
}

func TestTrackerVerticalChannelDeactivatesOnStaleness(t *testing.T) {
	p := DefaultParameters()
	p.VerticalChannelDropTime = 2 * time.Second
	tr := NewTracker("vertical-staleness", p, FlatEarthReference{})

	id := tr.Active.AllocateID()
	a := &ActiveTrack{trackBase: trackBase{TrackID: id, UpdateTime: 0, VerticalChannelActive: true, VerticalUpdateTime: 0}}
	a.Vertical.Reset()
	a.Vertical.P.Set(0, 0, 1)
	a.Horizontal = HorizontalInfo{Y: mat.NewDense(6, 6, nil), y: mat.NewDense(6, 1, nil)}
	a.P6 = mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		a.P6.Set(i, i, 1)
	}
	tr.Active.AddWithID(id, a)

	tr.Update(10, &PerceivedCluster{})

	got := tr.Active.Find(id)
	if got.VerticalChannelActive {
		t.Fatalf("a vertical channel idle past VerticalChannelDropTime must deactivate")
	}
	if !got.Vertical.IsZero() {
		t.Fatalf("deactivating the vertical channel must reset it to zero")
	}
}

func TestTrackerCandidatePromotionBlockedByConditionNumber(t *testing.T) {
	p := DefaultParameters()
	p.PromoteTrackHorizontalThreshold = 1 // unreachably strict
	tr := NewTracker("ill-conditioned", p, FlatEarthReference{})

	x, y := 5000.0, 5000.0
	vx, vy := 30.0, 0.0
	for i := 0; i < 40; i++ {
		now := float64(i+1)
		tr.Update(now, radarHitAt(x, y))
		x += vx
		y += vy
	}

	if tr.Active.Len() != 0 {
		t.Fatalf("an unreachable condition-number threshold must block every promotion to active, got %d active tracks", tr.Active.Len())
	}
}

func TestTrackerHeightFinderOnlyPropagatesHorizontalNeverFolds(t *testing.T) {
	p := DefaultParameters()
	tr := NewTracker("height-finder", p, FlatEarthReference{})

	id := tr.Active.AllocateID()
	a := &ActiveTrack{trackBase: trackBase{TrackID: id, UpdateTime: 0}}
	a.Vertical.Reset()
	info := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		info.Set(i, i, 1e-3)
	}
	a.Horizontal = HorizontalInfo{Y: info, y: mat.NewDense(6, 1, nil)}
	tr.refreshActiveState(a)
	tr.Active.AddWithID(id, a)
	want := HorizontalInfo{Y: mat.DenseCopyOf(a.Horizontal.Y), y: mat.DenseCopyOf(a.Horizontal.y)}
	phiInv, err := TransitionInverse(TurningFlightTransition(5))
	if err != nil {
		t.Fatalf("TransitionInverse: %v", err)
	}
	if err := PropagateHorizontalInfo(&want, 5, phiInv, TurningFlightProcessNoise(5, p.TurningXAcceleration, p.TurningYAcceleration)); err != nil {
		t.Fatalf("PropagateHorizontalInfo: %v", err)
	}

	hfMeas := &Measurement{
		Available: HasRange | HasElevation,
		Payload:   &RadarMeasurement{Range: 10000, Elevation: 0.05, SigmaRange: 5, SigmaElevation: 0.01},
	}
	cluster := &PerceivedCluster{Measurement: hfMeas, TrackNumber: id}
	if !cluster.IsHeightFinder() {
		t.Fatalf("a measurement with a nonzero TrackNumber must be classified as a height-finder cluster")
	}

	res := tr.Update(5, cluster)
	if res.Track == nil || res.Track.TrackID != id {
		t.Fatalf("height-finder update should report back the targeted active track")
	}

	got := tr.Active.Find(id)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			// dt is 5s here so propagation alone is expected to change Y;
			// what must NOT happen is a fold injecting position certainty
			// from a measurement that carries no azimuth, so Y must equal
			// the propagation-only result.
			if got.Horizontal.Y.At(i, j) != want.Y.At(i, j) {
				t.Fatalf("Y[%d][%d] = %g, want propagation-only %g", i, j, got.Horizontal.Y.At(i, j), want.Y.At(i, j))
			}
		}
	}
}

func TestTrackerUnrecognizedHeightFinderTrackNumberIsIgnored(t *testing.T) {
	p := DefaultParameters()
	tr := NewTracker("orphan-height-finder", p, FlatEarthReference{})

	hfMeas := &Measurement{
		Available: HasRange | HasElevation,
		Payload:   &RadarMeasurement{Range: 10000, Elevation: 0.05, SigmaRange: 5, SigmaElevation: 0.01},
	}
	cluster := &PerceivedCluster{Measurement: hfMeas, TrackNumber: 999}
	res := tr.Update(1, cluster)
	if res.Track != nil {
		t.Fatalf("a height-finder measurement with no matching active track must be a no-op")
	}
	if cluster.TrackNumber != 0 {
		t.Fatalf("an unmatched TrackNumber must be cleared so upstream routing does not retry it")
	}
}
