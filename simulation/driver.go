package simulation

import (
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"clothsim/metrics"
)

// Stepper is advanced by the driver. *cloth.Cloth implements it.
type Stepper interface {
	Iterate(steps int) error
}

// Controls are run-time tunables written by other goroutines (telemetry
// clients, the settings watcher, keyboard input) and read once per frame.
type Controls struct {
	Paused atomic.Bool
	// MaxSteps overrides the per-frame clamp when > 0.
	MaxSteps atomic.Int64
}

// Stats is a point-in-time view of the loop.
type Stats struct {
	Frames         uint64        `json:"frames"`
	Steps          uint64        `json:"steps"`
	DroppedSteps   uint64        `json:"droppedSteps"`
	StepsLastFrame int           `json:"stepsLastFrame"`
	SimulatedTime  float64       `json:"simulatedSeconds"`
	LastIterate    time.Duration `json:"lastIterateNs"`
	FPS            float64       `json:"fps"`
	Paused         bool          `json:"paused"`
}

// Driver runs the simulation side of each frame.
type Driver struct {
	sim      Stepper
	clock    *FixedStep
	controls *Controls
	rec      *metrics.Recorder
	log      *zap.Logger
	simDt    float64

	frames         atomic.Uint64
	steps          atomic.Uint64
	dropped        atomic.Uint64
	stepsLastFrame atomic.Int64
	lastIterate    atomic.Duration
	fps            atomic.Float64
	paused         atomic.Bool
}

// NewDriver creates a driver stepping sim by clock. simDt is the simulated
// time covered by one step. controls and rec may be nil.
func NewDriver(sim Stepper, clock *FixedStep, simDt float32, controls *Controls, rec *metrics.Recorder, log *zap.Logger) *Driver {
	if controls == nil {
		controls = &Controls{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		sim:      sim,
		clock:    clock,
		controls: controls,
		rec:      rec,
		log:      log,
		simDt:    float64(simDt),
	}
}

// Controls returns the control block read by Frame.
func (d *Driver) Controls() *Controls { return d.controls }

// Frame converts elapsed wall time into steps and runs them. While paused
// the accumulated time is discarded.
func (d *Driver) Frame(elapsed time.Duration) (int, error) {
	if m := int(d.controls.MaxSteps.Load()); m > 0 && m != d.clock.MaxSteps {
		d.log.Info("max steps per frame changed", zap.Int("from", d.clock.MaxSteps), zap.Int("to", m))
		d.clock.SetMaxSteps(m)
	}

	before := d.clock.Dropped()
	steps := d.clock.Advance(elapsed)
	dropped := int(d.clock.Dropped() - before)

	paused := d.controls.Paused.Load()
	if paused != d.paused.Load() {
		d.paused.Store(paused)
		d.rec.SetPaused(paused)
		d.log.Info("simulation paused", zap.Bool("paused", paused))
	}
	if paused {
		steps, dropped = 0, 0
		d.clock.Reset()
	}

	var took time.Duration
	if steps > 0 {
		start := time.Now()
		if err := d.sim.Iterate(steps); err != nil {
			return 0, err
		}
		took = time.Since(start)
		d.lastIterate.Store(took)
	}

	d.frames.Inc()
	d.steps.Add(uint64(steps))
	d.dropped.Add(uint64(dropped))
	d.stepsLastFrame.Store(int64(steps))
	if elapsed > 0 {
		d.fps.Store(1 / elapsed.Seconds())
	}
	d.rec.ObserveFrame(elapsed, steps, dropped, took)
	if dropped > 0 {
		d.log.Debug("frame clamped", zap.Int("steps", steps), zap.Int("dropped", dropped))
	}
	return steps, nil
}

// Stats may be called from any goroutine.
func (d *Driver) Stats() Stats {
	steps := d.steps.Load()
	return Stats{
		Frames:         d.frames.Load(),
		Steps:          steps,
		DroppedSteps:   d.dropped.Load(),
		StepsLastFrame: int(d.stepsLastFrame.Load()),
		SimulatedTime:  float64(steps) * d.simDt,
		LastIterate:    d.lastIterate.Load(),
		FPS:            d.fps.Load(),
		Paused:         d.paused.Load(),
	}
}
