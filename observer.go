package mtt

// Observers is the set of synchronous subscriber function slots a Tracker
// fires on lifecycle transitions. Every slot may hold any number of
// subscribers; invocations happen on the caller's goroutine and subscribers
// must not mutate the tracker re-entrantly.
type Observers struct {
	ActiveTrackInitiated    []func(now float64, active *ActiveTrack, fromCandidate *CandidateTrack)
	ActiveTrackDropped      []func(now float64, active *ActiveTrack)
	CandidateTrackInitiated []func(now float64, candidate *CandidateTrack)
	CandidateTrackDropped   []func(now float64, candidate *CandidateTrack)
	EmbryonicTrackInitiated []func(now float64, embryonic *EmbryonicTrack)
	EmbryonicTrackDropped   []func(now float64, embryonic *EmbryonicTrack)
}

func (o *Observers) fireActiveInitiated(now float64, a *ActiveTrack, from *CandidateTrack) {
	for _, fn := range o.ActiveTrackInitiated {
		fn(now, a, from)
	}
}

func (o *Observers) fireActiveDropped(now float64, a *ActiveTrack) {
	for _, fn := range o.ActiveTrackDropped {
		fn(now, a)
	}
}

func (o *Observers) fireCandidateInitiated(now float64, c *CandidateTrack) {
	for _, fn := range o.CandidateTrackInitiated {
		fn(now, c)
	}
}

func (o *Observers) fireCandidateDropped(now float64, c *CandidateTrack) {
	for _, fn := range o.CandidateTrackDropped {
		fn(now, c)
	}
}

func (o *Observers) fireEmbryonicInitiated(now float64, e *EmbryonicTrack) {
	for _, fn := range o.EmbryonicTrackInitiated {
		fn(now, e)
	}
}

func (o *Observers) fireEmbryonicDropped(now float64, e *EmbryonicTrack) {
	for _, fn := range o.EmbryonicTrackDropped {
		fn(now, e)
	}
}
