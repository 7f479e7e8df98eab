// Package metrics exports simulation loop metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the simulation metrics. A nil *Recorder records nothing.
type Recorder struct {
	Steps         prometheus.Counter
	DroppedSteps  prometheus.Counter
	Frames        prometheus.Counter
	IterateTime   prometheus.Histogram
	FrameTime     prometheus.Histogram
	StepsPerFrame prometheus.Histogram
	Paused        prometheus.Gauge
}

// NewRecorder registers the metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		Steps: f.NewCounter(prometheus.CounterOpts{
			Name: "clothsim_steps_total",
			Help: "Simulation steps executed",
		}),
		DroppedSteps: f.NewCounter(prometheus.CounterOpts{
			Name: "clothsim_dropped_steps_total",
			Help: "Steps dropped by the per-frame clamp",
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Name: "clothsim_frames_total",
			Help: "Frames driven by the simulation loop",
		}),
		IterateTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clothsim_iterate_seconds",
			Help:    "Time spent in Iterate per frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		FrameTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clothsim_frame_seconds",
			Help:    "Wall time between frames",
			Buckets: prometheus.DefBuckets,
		}),
		StepsPerFrame: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clothsim_steps_per_frame",
			Help:    "Steps executed per frame",
			Buckets: prometheus.LinearBuckets(0, 2, 16),
		}),
		Paused: f.NewGauge(prometheus.GaugeOpts{
			Name: "clothsim_paused",
			Help: "1 while the simulation is paused",
		}),
	}
}

// ObserveFrame records one frame.
func (r *Recorder) ObserveFrame(elapsed time.Duration, steps, dropped int, iterate time.Duration) {
	if r == nil {
		return
	}
	r.Frames.Inc()
	r.FrameTime.Observe(elapsed.Seconds())
	r.Steps.Add(float64(steps))
	r.StepsPerFrame.Observe(float64(steps))
	if dropped > 0 {
		r.DroppedSteps.Add(float64(dropped))
	}
	if steps > 0 {
		r.IterateTime.Observe(iterate.Seconds())
	}
}

// SetPaused updates the paused gauge.
func (r *Recorder) SetPaused(paused bool) {
	if r == nil {
		return
	}
	if paused {
		r.Paused.Set(1)
	} else {
		r.Paused.Set(0)
	}
}
