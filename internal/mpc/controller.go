package mpc

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.einride.tech/pid"

	"mpcdrive/internal/config"
	"mpcdrive/internal/nlp"
	"mpcdrive/internal/poly"
)

// Input is one telemetry sample in world frame.
type Input struct {
	WaypointsX []float64
	WaypointsY []float64
	X          float64
	Y          float64
	Psi        float64 // radians
	Speed      float64
	PrevSteer  float64 // radians, wire sign convention
	PrevThrot  float64
}

// Command is the controller's output for one cycle. Steer is normalized
// to [-1, 1] by the steering bound; Reference and Predicted are
// local-frame display polylines.
type Command struct {
	Steer     float64
	Throttle  float64
	Reference []Point
	Predicted []Point

	Status   nlp.Status
	Cost     float64
	Fallback bool
	Elapsed  time.Duration
}

// Controller runs the per-sample control loop: world-to-local transform,
// polynomial fit, latency compensation, horizon solve, command
// extraction. One instance serves one vehicle; calls are synchronous and
// never overlap.
type Controller struct {
	cfg    *config.Config
	solver *Solver
	log    zerolog.Logger

	steerPID pid.Controller
	speedPID pid.Controller

	prev     Command
	havePrev bool
}

func NewController(cfg *config.Config, log zerolog.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		solver: NewSolver(cfg),
		log:    log,
		steerPID: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: 0.1,
				IntegralGain:     0.002,
				DerivativeGain:   0.02,
			},
		},
		speedPID: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: 0.05,
				IntegralGain:     0.001,
			},
		},
	}
}

// Step computes one command. On malformed input (too few waypoints for
// the configured fit, degenerate fit matrix) it returns an error and no
// command is produced for the cycle.
func (c *Controller) Step(in Input) (Command, error) {
	start := time.Now()

	if len(in.WaypointsX) != len(in.WaypointsY) {
		return Command{}, fmt.Errorf("mpc: waypoint coordinate lengths differ: %d vs %d",
			len(in.WaypointsX), len(in.WaypointsY))
	}

	// Move the world into the vehicle frame: translate to the vehicle
	// position, rotate by the negative heading. The optimization then
	// starts at the origin with zero heading, which keeps the problem
	// well conditioned cycle after cycle.
	localX := make([]float64, len(in.WaypointsX))
	localY := make([]float64, len(in.WaypointsY))
	sinPsi, cosPsi := math.Sincos(-in.Psi)
	for i := range in.WaypointsX {
		dx := in.WaypointsX[i] - in.X
		dy := in.WaypointsY[i] - in.Y
		localX[i] = dx*cosPsi - dy*sinPsi
		localY[i] = dx*sinPsi + dy*cosPsi
	}

	ref, err := poly.Fit(localX, localY, c.cfg.PolyDegree)
	if err != nil {
		return Command{}, fmt.Errorf("mpc: reference fit: %w", err)
	}

	cte := ref.Eval(0)
	epsi := math.Atan(ref.Slope(0))

	// Wire steering is sign-flipped relative to the local frame.
	delta := -in.PrevSteer

	// Latency compensation: the command computed now is applied one
	// latency interval from now, so solve from the state the vehicle
	// will have reached under the previous actuation by then.
	state := VehicleState{V: in.Speed, CTE: cte, EPsi: epsi}
	if lat := c.cfg.Latency; lat > 0 {
		v := in.Speed
		state.X = v * math.Cos(delta) * lat
		state.Y = v * math.Sin(delta) * lat
		state.Psi = v * delta / c.cfg.Wheelbase * lat
		state.V = v + in.PrevThrot*lat
		state.CTE = cte + v*math.Sin(delta)*lat
		state.EPsi = epsi + v*delta/c.cfg.Wheelbase*lat
	}

	sol, err := c.solver.Solve(state, ref.Coeffs)
	if err != nil {
		return Command{}, err
	}

	cmd := Command{
		Steer:     clampUnit(-sol.First.Steer / c.cfg.SteerBound),
		Throttle:  clampUnit(sol.First.Accel / c.cfg.AccelBound),
		Predicted: sol.Trajectory,
		Status:    sol.Status,
		Cost:      sol.Cost,
	}

	// Forward projection of the raw reference polynomial for display.
	cmd.Reference = make([]Point, 0, c.cfg.PreviewPoints)
	for i := 1; i <= c.cfg.PreviewPoints; i++ {
		px := c.cfg.PreviewSpacing * float64(i)
		cmd.Reference = append(cmd.Reference, Point{X: px, Y: ref.Eval(px)})
	}

	if !sol.Converged() {
		cmd = c.applyFallback(cmd, state)
	}

	cmd.Elapsed = time.Since(start)
	c.prev = cmd
	c.havePrev = true

	c.log.Debug().
		Stringer("status", cmd.Status).
		Float64("cost", cmd.Cost).
		Float64("cte", cte).
		Float64("steer", cmd.Steer).
		Float64("throttle", cmd.Throttle).
		Bool("fallback", cmd.Fallback).
		Dur("elapsed", cmd.Elapsed).
		Msg("cycle")

	return cmd, nil
}

// applyFallback replaces the actuation of a non-converged solve per the
// configured policy. Display trajectories and the solver status are kept
// so callers can still see what the solver produced.
func (c *Controller) applyFallback(cmd Command, state VehicleState) Command {
	switch c.cfg.Fallback {
	case "hold":
		if c.havePrev {
			cmd.Steer = c.prev.Steer
			cmd.Throttle = c.prev.Throttle
		} else {
			cmd.Steer = 0
			cmd.Throttle = 0
		}
		cmd.Fallback = true
	case "pid":
		dt := time.Duration(c.cfg.Latency * float64(time.Second))
		if dt <= 0 {
			dt = 100 * time.Millisecond
		}
		c.steerPID.Update(pid.ControllerInput{
			ReferenceSignal:  0,
			ActualSignal:     state.CTE,
			SamplingInterval: dt,
		})
		c.speedPID.Update(pid.ControllerInput{
			ReferenceSignal:  c.cfg.TargetSpeed,
			ActualSignal:     state.V,
			SamplingInterval: dt,
		})
		cmd.Steer = clampUnit(c.steerPID.State.ControlSignal)
		cmd.Throttle = clampUnit(c.speedPID.State.ControlSignal)
		cmd.Fallback = true
	default: // "trust": reference behavior, keep the best iterate
	}
	if cmd.Fallback {
		c.log.Warn().
			Stringer("status", cmd.Status).
			Str("policy", c.cfg.Fallback).
			Msg("solver did not converge, fallback engaged")
	}
	return cmd
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
