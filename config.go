package mtt

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ModeTransition is the 2x2 Markov matrix governing IMM mode switching
// between the straight-flight and turning-flight hypotheses. Rows sum to 1;
// M[i][j] = P(mode i -> mode j).
type ModeTransition struct {
	StraightToStraight, StraightToTurning float64
	TurningToStraight, TurningToTurning   float64
}

// Validate asserts the Markov-row-sum invariant.
func (m ModeTransition) Validate() error {
	const tol = 1e-9
	if d := (m.StraightToStraight + m.StraightToTurning) - 1; d > tol || d < -tol {
		return fmt.Errorf("mtt: straight-row of mode transition matrix sums to %f, want 1", m.StraightToStraight+m.StraightToTurning)
	}
	if d := (m.TurningToStraight + m.TurningToTurning) - 1; d > tol || d < -tol {
		return fmt.Errorf("mtt: turning-row of mode transition matrix sums to %f, want 1", m.TurningToStraight+m.TurningToTurning)
	}
	return nil
}

// Parameters is the tracker's flat configuration record. It is loaded once
// per tracker and may be swapped wholesale between ticks; every field is a
// read copy at the point of use.
type Parameters struct {
	EmbryonicDropTime time.Duration
	CandidateDropTime time.Duration
	ActiveDropTime    time.Duration

	VerticalChannelDropTime time.Duration
	ActiveTrackReportDelay  time.Duration

	CandidateXAcceleration float64
	CandidateYAcceleration float64

	StraightXAcceleration float64
	StraightYAcceleration float64
	TurningXAcceleration  float64
	TurningYAcceleration  float64

	VerticalVelocitySigma         float64
	VerticalVelocityDecorrelation time.Duration

	VelocityLimitPromoteEmbryonic float64

	VelocityVariancePromoteEmbryonic float64
	VelocityVariancePromoteCandidate float64
	VelocityVariancePromoteVertical  float64

	PositionVariancePromoteCandidate float64
	PositionVariancePromoteVertical  float64

	PromoteSingleSourceHitThreshold int

	PromoteTrackHorizontalThreshold float64
	PromoteTrackVerticalThreshold   float64

	StraightMaxVariance float64
	StraightMinVariance float64
	TurningMaxVariance  float64
	TurningMinVariance  float64

	ModeTransition ModeTransition

	M2TFalseRejectProbability float64
	T2TFalseRejectProbability float64

	TrackCorrelationCylinderHeight   float64
	TrackCorrelationCylinderDiameter float64

	Debug bool
}

// DefaultParameters returns the defaults taken directly from the
// constructor in MTT_Parameters.cpp.
func DefaultParameters() Parameters {
	return Parameters{
		EmbryonicDropTime:                30 * time.Second,
		CandidateDropTime:                30 * time.Second,
		ActiveDropTime:                   60 * time.Second,
		VerticalChannelDropTime:          60 * time.Second,
		ActiveTrackReportDelay:           0,
		CandidateXAcceleration:           9.0,
		CandidateYAcceleration:           9.0,
		StraightXAcceleration:            0.09,
		StraightYAcceleration:            0.09,
		TurningXAcceleration:             8.0,
		TurningYAcceleration:             8.0,
		VerticalVelocitySigma:            6.25,
		VerticalVelocityDecorrelation:    20 * time.Second,
		VelocityLimitPromoteEmbryonic:    700.0,
		VelocityVariancePromoteEmbryonic: 22500.0,
		VelocityVariancePromoteCandidate: 1600.0,
		VelocityVariancePromoteVertical:  1600.0,
		PositionVariancePromoteCandidate: 250000.0,
		PositionVariancePromoteVertical:  250000.0,
		PromoteSingleSourceHitThreshold:  0,
		PromoteTrackHorizontalThreshold:  2.0e4,
		PromoteTrackVerticalThreshold:    1.0e10,
		StraightMaxVariance:              64000.0,
		StraightMinVariance:              16000.0,
		TurningMaxVariance:               64000.0,
		TurningMinVariance:               16000.0,
		ModeTransition: ModeTransition{
			StraightToStraight: 0.70,
			StraightToTurning:  0.30,
			TurningToStraight:  0.70,
			TurningToTurning:   0.30,
		},
		M2TFalseRejectProbability:        1.0e-20,
		T2TFalseRejectProbability:        1.0e-20,
		TrackCorrelationCylinderHeight:   0,
		TrackCorrelationCylinderDiameter: 0,
		Debug:                            false,
	}
}

// LoadParameters reads a TOML scenario file via viper and overlays it on
// top of DefaultParameters, mirroring cmd/od's viper.AddConfigPath /
// SetConfigName / ReadInConfig flow.
func LoadParameters(path string) (Parameters, error) {
	p := DefaultParameters()
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return p, fmt.Errorf("mtt: reading parameters from %s: %w", path, err)
	}
	if err := v.Unmarshal(&p); err != nil {
		return p, fmt.Errorf("mtt: unmarshaling parameters from %s: %w", path, err)
	}
	if err := p.ModeTransition.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
