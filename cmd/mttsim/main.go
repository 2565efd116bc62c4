package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/ChristopherRabotin/mtt"
)

// replayMeasurements reads a scenario CSV of radar hits (time, range, azimuth,
// elevation, range-rate, sensor x/y/z, sensor vx/vy) and drives a Tracker
// through them in order, printing a log line whenever an active track is
// initiated, dropped or promoted from a candidate.
func replayMeasurements(scenarioPath, paramsPath string, debug bool) error {
	params := mtt.DefaultParameters()
	if paramsPath != "" {
		p, err := mtt.LoadParameters(paramsPath)
		if err != nil {
			return err
		}
		params = p
	}
	params.Debug = debug

	f, err := os.Open(scenarioPath)
	if err != nil {
		return fmt.Errorf("mttsim: opening scenario: %w", err)
	}
	defer f.Close()

	tracker := mtt.NewTracker("mttsim", params, mtt.FlatEarthReference{})
	tracker.Obs.ActiveTrackInitiated = append(tracker.Obs.ActiveTrackInitiated, func(now float64, a *mtt.ActiveTrack, _ *mtt.CandidateTrack) {
		log.Printf("t=%.3f active track %d initiated at (%.1f, %.1f)", now, a.TrackID, a.X6[0], a.X6[1])
	})
	tracker.Obs.ActiveTrackDropped = append(tracker.Obs.ActiveTrackDropped, func(now float64, a *mtt.ActiveTrack) {
		log.Printf("t=%.3f active track %d dropped", now, a.TrackID)
	})

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("mttsim: scenario row %d: %w", row, err)
		}
		row++
		if len(record) == 0 || record[0] == "" || record[0][0] == '#' {
			continue
		}
		cluster, now, perr := parseScenarioRow(record)
		if perr != nil {
			return fmt.Errorf("mttsim: scenario row %d: %w", row, perr)
		}
		result := tracker.Update(now, cluster)
		if result.Promoted {
			log.Printf("t=%.3f promoted to active track %d", now, result.Track.TrackID)
		}
	}
	log.Printf("finished: %d active, %d candidate, %d embryonic", tracker.Active.Len(), tracker.Candidate.Len(), tracker.Embryonic.Len())
	return nil
}

// parseScenarioRow turns one CSV record into a PerceivedCluster carrying a
// single radar measurement: time,range,azimuth,elevation,rangeRate,
// sensorX,sensorY,sensorZ,sensorVX,sensorVY,sigmaRange,sigmaAzimuth.
func parseScenarioRow(record []string) (*mtt.PerceivedCluster, float64, error) {
	if len(record) < 12 {
		return nil, 0, fmt.Errorf("want at least 12 fields, got %d", len(record))
	}
	vals := make([]float64, len(record))
	for i, s := range record {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("field %d (%q): %w", i, s, err)
		}
		vals[i] = v
	}
	now := vals[0]
	radar := &mtt.RadarMeasurement{
		Range:          vals[1],
		Azimuth:        vals[2],
		Elevation:      vals[3],
		RangeRate:      vals[4],
		SensorX:        vals[5],
		SensorY:        vals[6],
		SensorZ:        vals[7],
		SensorVX:       vals[8],
		SensorVY:       vals[9],
		SigmaRange:     vals[10],
		SigmaAzimuth:   vals[11],
		SigmaElevation: 0.01,
		SigmaRangeRate: 1.0,
	}
	meas := &mtt.Measurement{
		Available: mtt.HasRange | mtt.HasAzimuth | mtt.HasElevation | mtt.HasRangeRate | mtt.HasSensorPosition | mtt.HasSensorVelocity,
		Payload:   radar,
	}
	return &mtt.PerceivedCluster{Measurement: meas}, now, nil
}

// generateClutterScenario writes a scenario CSV of n uncorrelated radar
// returns scattered uniformly within radius meters of the sensor, each
// range reading perturbed by Gaussian noise drawn from a distmv.Normal
// seeded off a dedicated rand.Rand rather than math/rand directly. Useful
// for exercising clutter rejection: with a tight enough false-reject
// probability none of these hits should ever correlate into a track.
func generateClutterScenario(path string, n int, radius, sigmaRange, sigmaAzimuth float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mttsim: creating scenario: %w", err)
	}
	defer f.Close()

	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	rangeNoise, ok := distmv.NewNormal([]float64{0}, mat.NewSymDense(1, []float64{sigmaRange * sigmaRange}), seed)
	if !ok {
		return fmt.Errorf("mttsim: range noise covariance not positive definite")
	}

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"# time,range,azimuth,elevation,rangeRate,sensorX,sensorY,sensorZ,sensorVX,sensorVY,sigmaRange,sigmaAzimuth"}); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		x := (seed.Float64()*2 - 1) * radius
		y := (seed.Float64()*2 - 1) * radius
		rng := math.Hypot(x, y) + rangeNoise.Rand(nil)[0]
		az := math.Atan2(y, x)
		row := []string{
			strconv.FormatFloat(float64(i), 'f', 3, 64),
			strconv.FormatFloat(rng, 'f', 3, 64),
			strconv.FormatFloat(az, 'f', 6, 64),
			"0", "0", "0", "0", "0", "0", "0",
			strconv.FormatFloat(sigmaRange, 'f', 3, 64),
			strconv.FormatFloat(sigmaAzimuth, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "mttsim",
		Usage: "drive a multiple-target tracker over a recorded radar scenario",
		Commands: []*cli.Command{
			{
				Name:  "replay",
				Usage: "replay a scenario CSV through a Tracker, tick by tick",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "scenario",
						Usage:    "path to a scenario CSV file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "params",
						Usage: "path to a TOML parameters file overlaying the defaults",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "enable verbose tracker debug logging",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return replayMeasurements(cCtx.String("scenario"), cCtx.String("params"), cCtx.Bool("debug"))
				},
			},
			{
				Name:  "generate-clutter",
				Usage: "write a scenario CSV of n uncorrelated noisy radar returns, for clutter-rejection testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "path to write the generated scenario CSV",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "number of clutter returns to generate",
						Value: 20,
					},
					&cli.Float64Flag{
						Name:  "radius",
						Usage: "scatter radius in meters around the sensor",
						Value: 5000,
					},
					&cli.Float64Flag{
						Name:  "sigma-range",
						Usage: "range measurement sigma in meters",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "sigma-azimuth",
						Usage: "azimuth measurement sigma in radians",
						Value: 0.001,
					},
				},
				Action: func(cCtx *cli.Context) error {
					return generateClutterScenario(cCtx.String("out"), cCtx.Int("count"), cCtx.Float64("radius"), cCtx.Float64("sigma-range"), cCtx.Float64("sigma-azimuth"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
