package mtt

import (
	"math"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/ChristopherRabotin/mtt/matkit"
)

// Tracker is the single-threaded cooperative MTT core: one instance owns
// its three track registries outright, processes ticks in
// strictly increasing time order, and fires Observers synchronously on the
// caller's goroutine. A Tracker must never be driven concurrently by more
// than one caller; separate Trackers share no mutable state.
type Tracker struct {
	Name   string
	Params Parameters
	Ref    ReferencePoint
	Obs    Observers

	Embryonic *TrackRegistry[EmbryonicTrack]
	Candidate *TrackRegistry[CandidateTrack]
	Active    *TrackRegistry[ActiveTrack]

	logger kitlog.Logger
}

// TrackerLogInit builds the tracker's logfmt logger: debug logging gated
// by a single tracker-wide flag.
func TrackerLogInit(name string) kitlog.Logger {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	return kitlog.With(klog, "tracker", name)
}

// NewTracker constructs an empty Tracker against the given parameters and
// reference-point collaborator.
func NewTracker(name string, p Parameters, ref ReferencePoint) *Tracker {
	return &Tracker{
		Name:      name,
		Params:    p,
		Ref:       ref,
		Embryonic: NewTrackRegistry[EmbryonicTrack](),
		Candidate: NewTrackRegistry[CandidateTrack](),
		Active:    NewTrackRegistry[ActiveTrack](),
		logger:    TrackerLogInit(name),
	}
}

func (t *Tracker) debugf(msg string, kv ...interface{}) {
	if !t.Params.Debug {
		return
	}
	args := append([]interface{}{"level", "debug", "msg", msg}, kv...)
	t.logger.Log(args...)
}

// UpdateResult reports what the dispatcher did with one PerceivedCluster,
// mirroring the three correlation return codes of tryPromoteCandidate
// (1 = promoted-and-correlated, -1 = correlated but not promoted, 0 = no
// correlation).
type UpdateResult struct {
	Track    *ActiveTrack
	Code     int
	Promoted bool
}

// Update is the single entry point for one input event: it runs the
// correlation phase for a fresh PerceivedCluster, and the caller (acting as
// the external track-manager orchestration) calls Fuse once it has decided
// a track-to-track correlation is final.
func (t *Tracker) Update(now float64, cluster *PerceivedCluster) UpdateResult {
	t.dropStaleActive(now)
	t.dropStaleCandidate(now)
	t.dropStaleEmbryonic(now)

	switch {
	case cluster.IsHeightFinder():
		return t.updateHeightFilterOfTrack(now, cluster)
	case cluster.Measurement != nil:
		return t.correlateMeasurement(now, cluster)
	case cluster.CombinedTrack != nil:
		return t.correlateNonlocal(now, cluster)
	default:
		return UpdateResult{}
	}
}

// --- staleness sweeps ---------------------------------------------------

func (t *Tracker) dropStaleActive(now float64) {
	t.Active.Each(func(id int, a *ActiveTrack) bool {
		if now-a.UpdateTime > t.Params.ActiveDropTime.Seconds() {
			t.debugf("dropping stale active track", "id", id)
			t.Active.Remove(id)
			t.Obs.fireActiveDropped(now, a)
			return true
		}
		if a.VerticalChannelActive && now-a.VerticalUpdateTime > t.Params.VerticalChannelDropTime.Seconds() {
			a.VerticalChannelActive = false
			a.Vertical.Reset()
		}
		return true
	})
}

func (t *Tracker) dropStaleCandidate(now float64) {
	t.Candidate.Each(func(id int, c *CandidateTrack) bool {
		if now-c.UpdateTime > t.Params.CandidateDropTime.Seconds() {
			t.debugf("dropping stale candidate track", "id", id)
			t.Candidate.Remove(id)
			t.Obs.fireCandidateDropped(now, c)
			return true
		}
		if c.VerticalChannelActive && now-c.VerticalUpdateTime > t.Params.VerticalChannelDropTime.Seconds() {
			c.VerticalChannelActive = false
			c.Vertical.Reset()
		}
		return true
	})
}

func (t *Tracker) dropStaleEmbryonic(now float64) {
	t.Embryonic.Each(func(id int, e *EmbryonicTrack) bool {
		if now-e.UpdateTime > t.Params.EmbryonicDropTime.Seconds() {
			t.debugf("dropping stale embryonic track", "id", id)
			t.Embryonic.Remove(id)
			t.Obs.fireEmbryonicDropped(now, e)
		}
		return true
	})
}

// --- measurement inertial-frame helpers ----------------------------------

// inertialDelta returns the inertial-frame measurement position and the
// (dx, dy) ground-plane offsets used by the coordinate rotation.
func inertialDelta(m *RadarMeasurement, available DataAvailable, filteredAltitude float64, haveAltitude bool) (z []float64, dx, dy, groundRange float64) {
	meas := Measurement{Available: available, Payload: m}
	groundRange = meas.GroundRange(filteredAltitude, haveAltitude)
	dx = groundRange * math.Cos(m.Azimuth)
	dy = groundRange * math.Sin(m.Azimuth)
	z = []float64{m.SensorX + dx, m.SensorY + dy}
	return
}

// foldHorizontalModel runs the information-form propagate+fold on h for an
// n-state model (4 = straight, 6 = turning), aborting the fold
// silently (state left unchanged) if the transition cannot be inverted —
// the same signaled-failure discipline PropagateHorizontalInfo uses.
func (t *Tracker) foldHorizontalModel(h *HorizontalInfo, dt, wx, wy float64, r *mat.Dense, sensorPlusDelta []float64, n int) {
	var phi, q *mat.Dense
	if n == 4 {
		phi = StraightFlightTransition(dt)
		q = StraightFlightProcessNoise(dt, wx, wy)
	} else {
		phi = TurningFlightTransition(dt)
		q = TurningFlightProcessNoise(dt, wx, wy)
	}
	phiInv, err := TransitionInverse(phi)
	if err != nil {
		return
	}
	hMat := HMatrix(n)
	_ = UpdateHorizontalInfo(h, dt, phiInv, q, hMat, r, sensorPlusDelta)
}

// refreshActiveState reconstructs the horizontal part (x, y, vx, vy) of an
// ActiveTrack's blended state, and its covariance, from the updated
// horizontal information filter, leaving X6's vertical entries alone, and
// keeps the straight/turn per-model caches in step for the next gate/fuse
// call.
func (t *Tracker) refreshActiveState(a *ActiveTrack) {
	cov, err := matkit.Invert(a.Horizontal.Y)
	if err != nil {
		return
	}
	var x mat.Dense
	x.Mul(cov, a.Horizontal.y)
	for i := 0; i < 4; i++ {
		a.X6[i] = x.At(i, 0)
	}
	a.P6 = cov
	for i := 0; i < 4; i++ {
		a.StraightX[i] = x.At(i, 0)
	}
	a.StraightP = mat.NewDense(4, 4, nil)
	matkit.SubBlock(a.StraightP, 0, 0, cov, 0, 0, 4, 4)
	for i := 0; i < 6; i++ {
		a.TurnX[i] = x.At(i, 0)
	}
	a.TurnP = mat.DenseCopyOf(cov)
}

// applyVerticalAndDoppler folds Doppler velocity augmentation and an
// elevation+range vertical measurement into an active track, independent
// of whatever happened to the horizontal filter.
func (t *Tracker) applyVerticalAndDoppler(now float64, a *ActiveTrack, meas *Measurement) {
	r := meas.Payload
	if r.RangeRate != 0 && meas.Available.Has(HasRangeRate) {
		varVx, varVy := a.P6.At(2, 2), a.P6.At(3, 3)
		nvx, nvy := DopplerAugment(a.X6[2], a.X6[3], r.Azimuth, r.Elevation, r.RangeRate, r.SensorVX, r.SensorVY, varVx, varVy, r.SigmaRangeRate)
		a.X6[2], a.X6[3] = nvx, nvy
	}

	if meas.Available.Has(HasElevation) && meas.Available.Has(HasRange) {
		varZ, dz := VerticalMeasurementVariance(r.Range, r.Elevation, r.SigmaRange, r.SigmaElevation)
		if a.Vertical.IsZero() {
			a.Vertical.Reset()
		}
		PropagateVertical(&a.Vertical, now-a.VerticalUpdateTime, t.Params.VerticalVelocityDecorrelation.Seconds(), t.Params.VerticalVelocitySigma*t.Params.VerticalVelocitySigma)
		UpdateVerticalInfo(&a.Vertical, r.SensorZ+dz, 1/varZ)
		a.VerticalUpdateTime = now
		if !a.VerticalChannelActive {
			a.VerticalChannelActive = CheckVerticalPromotion(&a.Vertical, t.Params.PositionVariancePromoteVertical, t.Params.VelocityVariancePromoteVertical)
		}
	}
}

// --- correlation phase: measurement path --------------------------------

func (t *Tracker) correlateMeasurement(now float64, cluster *PerceivedCluster) UpdateResult {
	meas := cluster.Measurement

	if a, ok := t.tryCorrelateActiveTrack(now, meas); ok {
		t.updateActiveTrackFromMeasurement(now, a, meas)
		return UpdateResult{Track: a, Code: -1}
	}

	code, active := t.tryPromoteCandidate(now, meas, cluster)
	if code == 0 {
		t.createEmbryonicAndUpgradeExisting(now, meas)
		return UpdateResult{Code: 0}
	}
	return UpdateResult{Track: active, Code: code, Promoted: code == 1}
}

func (t *Tracker) tryCorrelateActiveTrack(now float64, meas *Measurement) (*ActiveTrack, bool) {
	r := meas.Payload
	zc := CriticalZ(t.Params.M2TFalseRejectProbability)

	var best *ActiveTrack
	bestZ := math.Inf(1)

	t.Active.Each(func(id int, a *ActiveTrack) bool {
		alt, haveAlt := a.Altitude()
		z, dx, dy, groundRange := inertialDelta(r, meas.Available, alt, haveAlt)
		rMat := InertialMeasurementCovariance(dx, dy, groundRange, r.SigmaRange, r.SigmaAzimuth)

		dt := now - a.UpdateTime
		phiS := StraightFlightTransition(dt)
		qS := StraightFlightProcessNoise(dt, t.Params.StraightXAcceleration, t.Params.StraightYAcceleration)
		phiT := TurningFlightTransition(dt)
		qT := TurningFlightProcessNoise(dt, t.Params.TurningXAcceleration, t.Params.TurningYAcceleration)

		gr := GateMeasurementToTrack(a.StraightX[:], a.StraightP, phiS, qS, a.TurnX[:], a.TurnP, phiT, qT, rMat, z)
		if gr.ZTest < zc && gr.ZTest < bestZ {
			best = a
			bestZ = gr.ZTest
		}
		return true
	})
	return best, best != nil
}

// updateActiveTrackFromMeasurement folds a correlated measurement into an
// active track's blended horizontal filter, then its vertical/Doppler
// channels.
func (t *Tracker) updateActiveTrackFromMeasurement(now float64, a *ActiveTrack, meas *Measurement) {
	r := meas.Payload
	alt, haveAlt := a.Altitude()
	_, dx, dy, groundRange := inertialDelta(r, meas.Available, alt, haveAlt)
	rMat := InertialMeasurementCovariance(dx, dy, groundRange, r.SigmaRange, r.SigmaAzimuth)
	sensorPlusDelta := []float64{r.SensorX + dx, r.SensorY + dy}

	dt := now - a.UpdateTime
	t.foldHorizontalModel(&a.Horizontal, dt, t.Params.TurningXAcceleration, t.Params.TurningYAcceleration, rMat, sensorPlusDelta, 6)
	t.refreshActiveState(a)
	t.applyVerticalAndDoppler(now, a, meas)

	a.UpdateTime = now
	a.ConsecutiveSingleSourceHits++
}

// --- correlation phase: candidate promotion -----------------------------

func (t *Tracker) tryPromoteCandidate(now float64, meas *Measurement, cluster *PerceivedCluster) (int, *ActiveTrack) {
	r := meas.Payload
	zc := CriticalZ(t.Params.M2TFalseRejectProbability)

	var bestID int
	bestZ := math.Inf(1)

	t.Candidate.Each(func(id int, c *CandidateTrack) bool {
		alt, haveAlt := c.filteredAltitude()
		z, dx, dy, groundRange := inertialDelta(r, meas.Available, alt, haveAlt)
		rMat := InertialMeasurementCovariance(dx, dy, groundRange, r.SigmaRange, r.SigmaAzimuth)
		dt := now - c.UpdateTime

		cov, err := matkit.Invert(c.Horizontal.Y)
		if err != nil {
			return true
		}
		var xv mat.Dense
		xv.Mul(cov, c.Horizontal.y)
		x4 := []float64{xv.At(0, 0), xv.At(1, 0), xv.At(2, 0), xv.At(3, 0)}

		phi := StraightFlightTransition(dt)
		q := StraightFlightProcessNoise(dt, t.Params.CandidateXAcceleration, t.Params.CandidateYAcceleration)
		xPred, pPred := Propagate(dt, phi, q, x4, cov)
		h := HMatrix(4)
		gr := whitenInnovation(h, pPred, rMat, xPred, z)
		if gr.ZTest < zc && gr.ZTest < bestZ {
			bestID = id
			bestZ = gr.ZTest
		}
		return true
	})

	if bestID == 0 {
		return 0, nil
	}
	c := t.Candidate.Find(bestID)

	alt, haveAlt := c.filteredAltitude()
	_, dx, dy, groundRange := inertialDelta(r, meas.Available, alt, haveAlt)
	rMat := InertialMeasurementCovariance(dx, dy, groundRange, r.SigmaRange, r.SigmaAzimuth)
	sensorPlusDelta := []float64{r.SensorX + dx, r.SensorY + dy}
	t.foldHorizontalModel(&c.Horizontal, now-c.UpdateTime, t.Params.CandidateXAcceleration, t.Params.CandidateYAcceleration, rMat, sensorPlusDelta, 4)
	c.UpdateTime = now
	if cluster.LastSensorID == c.LastSensorID && t.Params.PromoteSingleSourceHitThreshold > 0 {
		c.ConsecutiveSingleSourceHits++
	} else {
		c.ConsecutiveSingleSourceHits = 1
	}
	c.LastSensorID = cluster.LastSensorID

	if !CanPromoteCandidateToActive(c, t.Params) {
		return -1, nil
	}

	id := t.Active.AllocateID()
	a, err := CandidateToActive(c)
	if err != nil {
		return -1, nil
	}
	a.TrackID = id
	t.applyVerticalAndDoppler(now, a, meas)
	t.Active.AddWithID(id, a)
	t.Candidate.Remove(c.TrackID)
	t.debugf("promoted candidate to active", "candidate", c.TrackID, "active", id)
	t.Obs.fireActiveInitiated(now, a, c)
	t.Obs.fireCandidateDropped(now, c)
	return 1, a
}

// tryCorrelateEmbryonic gates an uncorrelated measurement against every live
// embryonic track's observable (position) subspace. A fresh embryonic track
// carries zero velocity information, so its full 4x4 Y is singular; gating
// on the 2x2 position sub-block is the projection onto the subspace that is
// actually observable at that point, and is enough to decide whether a
// repeat hit belongs to an existing embryonic track rather than minting a
// new one every tick: embryonic tracks accumulate hits across repeat reports.
func (t *Tracker) tryCorrelateEmbryonic(now float64, meas *Measurement) (*EmbryonicTrack, bool) {
	r := meas.Payload
	zc := CriticalZ(t.Params.M2TFalseRejectProbability)

	var best *EmbryonicTrack
	bestZ := math.Inf(1)

	t.Embryonic.Each(func(id int, e *EmbryonicTrack) bool {
		posInfo := mat.NewDense(2, 2, nil)
		matkit.SubBlock(posInfo, 0, 0, e.Horizontal.Y, 0, 0, 2, 2)
		posCov, err := matkit.Invert(posInfo)
		if err != nil {
			return true
		}
		var posVec mat.Dense
		posVec.Mul(posCov, mat.NewDense(2, 1, []float64{e.Horizontal.y.At(0, 0), e.Horizontal.y.At(1, 0)}))
		pos := []float64{posVec.At(0, 0), posVec.At(1, 0)}

		alt, haveAlt := e.filteredAltitude()
		z, dx, dy, groundRange := inertialDelta(r, meas.Available, alt, haveAlt)
		rMat := InertialMeasurementCovariance(dx, dy, groundRange, r.SigmaRange, r.SigmaAzimuth)

		gr := whitenInnovation(matkit.Identity(2), posCov, rMat, pos, z)
		if gr.ZTest < zc && gr.ZTest < bestZ {
			best = e
			bestZ = gr.ZTest
		}
		return true
	})
	return best, best != nil
}

// createEmbryonicAndUpgradeExisting folds an uncorrelated measurement into
// the best-matching existing embryonic track, or seeds a fresh one if none
// correlates, then upgrades any embryonic track whose promotion checks now
// pass.
func (t *Tracker) createEmbryonicAndUpgradeExisting(now float64, meas *Measurement) {
	r := meas.Payload

	if e, ok := t.tryCorrelateEmbryonic(now, meas); ok {
		alt, haveAlt := e.filteredAltitude()
		_, dx, dy, groundRange := inertialDelta(r, meas.Available, alt, haveAlt)
		rMat := InertialMeasurementCovariance(dx, dy, groundRange, r.SigmaRange, r.SigmaAzimuth)
		sensorPlusDelta := []float64{r.SensorX + dx, r.SensorY + dy}
		t.foldHorizontalModel(&e.Horizontal, now-e.UpdateTime, t.Params.CandidateXAcceleration, t.Params.CandidateYAcceleration, rMat, sensorPlusDelta, 4)
		e.UpdateTime = now
		e.ConsecutiveSingleSourceHits++
	} else {
		id := t.Embryonic.AllocateID()
		fresh := NewEmbryonicTrack(id, now)
		_, dx, dy, groundRange := inertialDelta(r, meas.Available, 0, false)
		rMat := InertialMeasurementCovariance(dx, dy, groundRange, r.SigmaRange, r.SigmaAzimuth)
		sensorPlusDelta := []float64{r.SensorX + dx, r.SensorY + dy}
		hMat := HMatrix(4)
		_ = UpdateHorizontalInfo(&fresh.Horizontal, 0, nil, nil, hMat, rMat, sensorPlusDelta)
		t.Embryonic.AddWithID(id, fresh)
		t.Obs.fireEmbryonicInitiated(now, fresh)
	}

	var toUpgrade []int
	t.Embryonic.Each(func(id int, e *EmbryonicTrack) bool {
		if CanPromoteEmbryonicToCandidate(e, t.Params) {
			toUpgrade = append(toUpgrade, id)
		}
		return true
	})
	for _, id := range toUpgrade {
		e := t.Embryonic.Find(id)
		candID := t.Candidate.AllocateID()
		c := NewCandidateTrack(candID, e)
		t.Candidate.AddWithID(candID, c)
		t.Embryonic.Remove(id)
		t.debugf("promoted embryonic to candidate", "embryonic", id, "candidate", candID)
		t.Obs.fireCandidateInitiated(now, c)
		t.Obs.fireEmbryonicDropped(now, e)
	}
}

// --- height-finder path ---------------------------------------------------

// updateHeightFilterOfTrack routes a height-finder measurement directly at
// an already-identified active track: the horizontal filter is
// only ever time-propagated, never folded against a height-finder reading,
// since a height-finder carries no horizontal position information.
func (t *Tracker) updateHeightFilterOfTrack(now float64, cluster *PerceivedCluster) UpdateResult {
	a := t.Active.Find(cluster.TrackNumber)
	if a == nil {
		cluster.TrackNumber = 0
		return UpdateResult{}
	}
	meas := cluster.Measurement
	r := meas.Payload

	dt := now - a.UpdateTime
	phi := TurningFlightTransition(dt)
	if phiInv, err := TransitionInverse(phi); err == nil {
		q := TurningFlightProcessNoise(dt, t.Params.TurningXAcceleration, t.Params.TurningYAcceleration)
		if err := PropagateHorizontalInfo(&a.Horizontal, dt, phiInv, q); err == nil {
			t.refreshActiveState(a)
		}
	}
	a.UpdateTime = now

	if a.VerticalChannelActive && now-a.VerticalUpdateTime > t.Params.VerticalChannelDropTime.Seconds() {
		a.VerticalChannelActive = false
		a.Vertical.Reset()
	}

	if meas.Available.Has(HasElevation) && meas.Available.Has(HasRange) {
		varZ, dz := VerticalMeasurementVariance(r.Range, r.Elevation, r.SigmaRange, r.SigmaElevation)
		if a.Vertical.IsZero() {
			a.Vertical.Reset()
		}
		PropagateVertical(&a.Vertical, now-a.VerticalUpdateTime, t.Params.VerticalVelocityDecorrelation.Seconds(), t.Params.VerticalVelocitySigma*t.Params.VerticalVelocitySigma)
		UpdateVerticalInfo(&a.Vertical, r.SensorZ+dz, 1/varZ)
		a.VerticalUpdateTime = now
		if !a.VerticalChannelActive {
			a.VerticalChannelActive = CheckVerticalPromotion(&a.Vertical, t.Params.PositionVariancePromoteVertical, t.Params.VelocityVariancePromoteVertical)
		}
		if vc, err := matkit.Invert(a.Vertical.P); err == nil {
			var xv mat.Dense
			xv.Mul(vc, a.Vertical.x)
			a.X6[4] = xv.At(0, 0)
			a.X6[5] = xv.At(1, 0)
		}
	}
	return UpdateResult{Track: a, Code: -1}
}

// --- correlation phase: nonlocal track path ------------------------------

func (t *Tracker) correlateNonlocal(now float64, cluster *PerceivedCluster) UpdateResult {
	ct := cluster.CombinedTrack
	best, ok := t.selectBestActiveTrackByTrackToTrackGate(now, ct)
	if !ok {
		a := t.createActiveFromNonlocalTrack(now, ct)
		return UpdateResult{Track: a, Code: 1, Promoted: true}
	}
	return UpdateResult{Track: best, Code: -1}
}

func (t *Tracker) selectBestActiveTrackByTrackToTrackGate(now float64, ct *CombinedTrack) (*ActiveTrack, bool) {
	zc := CriticalZ(t.Params.T2TFalseRejectProbability)
	cylDiameter := t.Params.TrackCorrelationCylinderDiameter
	cylHeight := t.Params.TrackCorrelationCylinderHeight

	var best *ActiveTrack
	bestZ := math.Inf(1)

	t.Active.Each(func(id int, a *ActiveTrack) bool {
		gr := GateTrackToTrack(a.X6[:], a.P6, ct.X[:], ct.Info6,
			t.Params.StraightMinVariance, t.Params.StraightMaxVariance)

		accepted := false
		if cylDiameter > 0 {
			bothVertical := a.VerticalChannelActive && ct.HasVertical
			accepted = TrackCorrelationCylinder(gr.InnovationNorm, cylDiameter, ct.X[4], a.X6[4], bothVertical, cylHeight)
		} else {
			accepted = gr.ZTest < zc
		}
		if accepted && gr.ZTest < bestZ {
			best = a
			bestZ = gr.ZTest
		}
		return true
	})
	return best, best != nil
}

func (t *Tracker) createActiveFromNonlocalTrack(now float64, ct *CombinedTrack) *ActiveTrack {
	id := t.Active.AllocateID()
	info6 := mat.DenseCopyOf(ct.Info6)
	var y6 mat.Dense
	y6.Mul(info6, mat.NewDense(6, 1, ct.X[:]))

	cov, err := matkit.Invert(info6)
	if err != nil {
		cov = matkit.Identity(6)
	}

	a := &ActiveTrack{
		trackBase: trackBase{
			UpdateTime:            now,
			TrackID:               id,
			VerticalChannelActive: ct.HasVertical,
		},
		Horizontal: HorizontalInfo{Y: info6, y: &y6},
		X6:         ct.X,
		P6:         cov,
		Mode:       ModeProbabilities{Straight: 0.5, Turning: 0.5},
	}
	for i := 0; i < 4; i++ {
		a.StraightX[i] = ct.X[i]
	}
	a.StraightP = mat.NewDense(4, 4, nil)
	matkit.SubBlock(a.StraightP, 0, 0, cov, 0, 0, 4, 4)
	a.TurnX = ct.X
	a.TurnP = mat.DenseCopyOf(cov)
	if ct.HasVertical && ct.VInfo != nil {
		a.Vertical.P = mat.DenseCopyOf(ct.VInfo)
		var vx mat.Dense
		vx.Mul(ct.VInfo, mat.NewDense(2, 1, []float64{ct.X[4], ct.X[5]}))
		a.Vertical.x = &vx
		a.VerticalUpdateTime = now
	} else {
		a.Vertical.Reset()
	}
	a.Prev = ActiveTrackPrevious{Time: now, X6: a.X6, P6: mat.DenseCopyOf(cov), Mode: a.Mode}

	t.Active.AddWithID(id, a)
	t.debugf("created active track from nonlocal track", "active", id)
	t.Obs.fireActiveInitiated(now, a, nil)
	return a
}

// --- fusion phase ----------------------------------------------------------

// Fuse runs the IMM fusion phase once an external orchestrator has decided
// a track-to-track correlation from Update is final. It is not invoked
// automatically by Update because the decision of "final" belongs to the
// surrounding track manager, outside this core.
func (t *Tracker) Fuse(now float64, a *ActiveTrack, ct *CombinedTrack) error {
	if a.VerticalChannelActive {
		PropagateVertical(&a.Vertical, now-a.VerticalUpdateTime, t.Params.VerticalVelocityDecorrelation.Seconds(), t.Params.VerticalVelocitySigma*t.Params.VerticalVelocitySigma)
	}

	if ct.UpdateFlag < 2 {
		// Height-finder nonlocal tracks carry no horizontal state to fuse.
		FuseVertical(&a.Vertical, ct.UpdateFlag, ct.HasVertical, ct.VInfo, mat.NewDense(2, 1, []float64{ct.X[4], ct.X[5]}))
		a.UpdateTime = now
		return nil
	}

	dt := now - a.Prev.Time
	phiS := StraightFlightTransition(dt)
	qS := StraightFlightProcessNoise(dt, t.Params.StraightXAcceleration, t.Params.StraightYAcceleration)
	phiT := TurningFlightTransition(dt)
	qT := TurningFlightProcessNoise(dt, t.Params.TurningXAcceleration, t.Params.TurningYAcceleration)

	extCov, err := matkit.Invert(ct.Info6)
	if err != nil {
		return err
	}

	yLocal6 := a.Horizontal.Y
	yLocal4 := extract4x4(yLocal6)

	straight := FuseFilter(dt, phiS, qS, a.Prev.X6[:4], extract4x4(a.Prev.P6),
		ct.X[:4], extract4x4(extCov), extract4x4(ct.Info6), extract4x4(ct.Prev.Info6), yLocal4)
	turn := FuseFilter(dt, phiT, qT, a.Prev.X6[:], a.Prev.P6,
		ct.X[:], extCov, ct.Info6, ct.Prev.Info6, yLocal6)

	blend := BlendIMM(straight, turn, a.Mode, t.Params.ModeTransition)

	a.Prev = ActiveTrackPrevious{Time: a.UpdateTime, X6: a.X6, P6: mat.DenseCopyOf(a.P6), Mode: a.Mode}
	a.X6 = blend.X6
	a.P6 = blend.P6
	a.Mode = blend.Mode
	a.StraightX = [4]float64{straight.X[0], straight.X[1], straight.X[2], straight.X[3]}
	a.StraightP = straight.P
	a.TurnX = [6]float64{turn.X[0], turn.X[1], turn.X[2], turn.X[3], turn.X[4], turn.X[5]}
	a.TurnP = turn.P

	if cov, err := matkit.Invert(blend.P6); err == nil {
		a.Horizontal.Y = cov
		var y mat.Dense
		y.Mul(cov, mat.NewDense(6, 1, blend.X6[:]))
		a.Horizontal.y = &y
	}

	FuseVertical(&a.Vertical, ct.UpdateFlag, ct.HasVertical, ct.VInfo, mat.NewDense(2, 1, []float64{ct.X[4], ct.X[5]}))
	a.UpdateTime = now
	return nil
}

func extract4x4(m *mat.Dense) *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	matkit.SubBlock(out, 0, 0, m, 0, 0, 4, 4)
	return out
}

// NewBatchID mints a fresh outbound LocalTrack batch identifier.
func NewBatchID() uuid.UUID {
	return uuid.New()
}
