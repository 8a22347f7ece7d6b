// Package sim closes the loop between the controller and a simulated
// vehicle, without a simulator process on the other end of a socket.
package sim

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mpcdrive/internal/config"
	"mpcdrive/internal/metrics"
	"mpcdrive/internal/mpc"
)

// windowSize is how many waypoints the runner hands the controller per
// cycle, mirroring what the driving simulator sends.
const windowSize = 6

// Observer sees every completed control cycle.
type Observer interface {
	OnCycle(s metrics.Sample, cmd mpc.Command)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(metrics.Sample, mpc.Command)

func (f ObserverFunc) OnCycle(s metrics.Sample, cmd mpc.Command) { f(s, cmd) }

type Result struct {
	Samples  []metrics.Sample
	Metrics  map[string]float64
	Cycles   int
	Failures int // cycles that ended on a fallback command
}

// Runner drives a Vehicle around a Track under closed-loop control.
type Runner struct {
	cfg       *config.Config
	track     Track
	vehicle   *Vehicle
	ctrl      *mpc.Controller
	metrics   []metrics.Metric
	observers []Observer
	period    float64
	log       zerolog.Logger
}

func NewRunner(cfg *config.Config, track Track, log zerolog.Logger) *Runner {
	period := cfg.Latency
	if period <= 0 {
		period = 0.1
	}
	return &Runner{
		cfg:     cfg,
		track:   track,
		vehicle: NewVehicle(cfg.Wheelbase),
		ctrl:    mpc.NewController(cfg, log),
		period:  period,
		log:     log.With().Str("component", "sim").Logger(),
	}
}

func (r *Runner) AddMetric(m metrics.Metric) { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer)     { r.observers = append(r.observers, o) }

// Run executes the given number of control cycles and reports the
// aggregate metrics. The partial result is returned alongside any error.
func (r *Runner) Run(ctx context.Context, cycles int) (*Result, error) {
	if cycles <= 0 {
		return nil, fmt.Errorf("sim: cycles must be positive, got %d", cycles)
	}
	if r.track.Len() < 2 {
		return nil, fmt.Errorf("sim: track needs at least 2 waypoints, got %d", r.track.Len())
	}
	for _, m := range r.metrics {
		m.Reset()
	}
	x, y, psi := r.track.Start()
	r.vehicle.Place(x, y, psi, 0)

	result := &Result{
		Samples: make([]metrics.Sample, 0, cycles),
		Metrics: make(map[string]float64),
	}
	t := 0.0
	for i := 0; i < cycles; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		xs, ys := r.track.Window(r.vehicle.X, r.vehicle.Y, windowSize)
		cmd, err := r.ctrl.Step(mpc.Input{
			WaypointsX: xs,
			WaypointsY: ys,
			X:          r.vehicle.X,
			Y:          r.vehicle.Y,
			Psi:        r.vehicle.Psi,
			Speed:      r.vehicle.V,
			PrevSteer:  r.vehicle.WireSteer(),
			PrevThrot:  r.vehicle.Throttle(),
		})
		if err != nil {
			return result, fmt.Errorf("sim: cycle %d: %w", i, err)
		}
		if cmd.Fallback {
			result.Failures++
		}

		// The old actuation keeps acting until the latency elapses,
		// then the fresh command covers the rest of the cycle.
		lat := r.cfg.Latency
		if lat > r.period {
			lat = r.period
		}
		r.vehicle.Integrate(lat)
		r.vehicle.Apply(cmd.Steer, cmd.Throttle, r.cfg.SteerBound)
		r.vehicle.Integrate(r.period - lat)
		t += r.period

		sample := metrics.Sample{
			T:          t,
			X:          r.vehicle.X,
			Y:          r.vehicle.Y,
			Psi:        r.vehicle.Psi,
			Speed:      r.vehicle.V,
			CrossTrack: r.track.CrossTrack(r.vehicle.X, r.vehicle.Y),
			Steer:      cmd.Steer,
			Throttle:   cmd.Throttle,
			Fallback:   cmd.Fallback,
		}
		result.Samples = append(result.Samples, sample)
		result.Cycles++
		for _, m := range r.metrics {
			m.Observe(sample)
		}
		for _, o := range r.observers {
			o.OnCycle(sample, cmd)
		}
		r.log.Debug().
			Int("cycle", i).
			Float64("cte", sample.CrossTrack).
			Float64("speed", sample.Speed).
			Float64("steer", cmd.Steer).
			Bool("fallback", cmd.Fallback).
			Msg("cycle")
	}
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}
