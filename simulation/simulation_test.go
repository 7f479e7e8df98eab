package simulation

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clothsim/metrics"
)

func TestFixedStepAdvance(t *testing.T) {
	const step = 10 * time.Millisecond

	tests := []struct {
		name    string
		max     int
		frames  []time.Duration
		want    []int
		pending time.Duration
		dropped uint64
	}{
		{"exact", 0, []time.Duration{20 * time.Millisecond}, []int{2}, 0, 0},
		{"remainder carried", 0, []time.Duration{15 * time.Millisecond, 5 * time.Millisecond}, []int{1, 1}, 0, 0},
		{"below one step", 0, []time.Duration{3 * time.Millisecond, 3 * time.Millisecond}, []int{0, 0}, 6 * time.Millisecond, 0},
		{"clamped backlog dropped", 4, []time.Duration{105 * time.Millisecond, 10 * time.Millisecond}, []int{4, 1}, 5 * time.Millisecond, 6},
		{"negative ignored", 0, []time.Duration{-time.Second, 10 * time.Millisecond}, []int{0, 1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFixedStep(step, tt.max)
			var got []int
			for _, e := range tt.frames {
				got = append(got, f.Advance(e))
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.pending, f.Pending())
			assert.Equal(t, tt.dropped, f.Dropped())
		})
	}
}

func TestFixedStepZeroStep(t *testing.T) {
	f := NewFixedStep(0, 5)
	assert.Zero(t, f.Advance(time.Second))
}

func TestFixedStepSetMaxSteps(t *testing.T) {
	f := NewFixedStep(time.Millisecond, 2)
	assert.Equal(t, 2, f.Advance(10*time.Millisecond))
	f.SetMaxSteps(20)
	assert.Equal(t, 10, f.Advance(10*time.Millisecond))
}

type countingStepper struct {
	calls []int
	err   error
}

func (s *countingStepper) Iterate(steps int) error {
	s.calls = append(s.calls, steps)
	return s.err
}

func TestDriverFrame(t *testing.T) {
	sim := &countingStepper{}
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	d := NewDriver(sim, NewFixedStep(time.Second/360, 12), 0.03, nil, rec, nil)

	n, err := d.Frame(time.Second / 60)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = d.Frame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = d.Frame(0)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []int{6, 12}, sim.calls, "zero-step frames do not call Iterate")

	st := d.Stats()
	assert.Equal(t, uint64(3), st.Frames)
	assert.Equal(t, uint64(18), st.Steps)
	assert.Equal(t, uint64(348), st.DroppedSteps)
	assert.InDelta(t, 18*0.03, st.SimulatedTime, 1e-6)
	assert.Equal(t, 18.0, testutil.ToFloat64(rec.Steps))
	assert.Equal(t, 348.0, testutil.ToFloat64(rec.DroppedSteps))
}

func TestDriverControls(t *testing.T) {
	sim := &countingStepper{}
	d := NewDriver(sim, NewFixedStep(time.Millisecond, 3), 0.01, nil, nil, nil)

	d.Controls().Paused.Store(true)
	n, err := d.Frame(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, d.Stats().Paused)
	assert.Empty(t, sim.calls)

	d.Controls().Paused.Store(false)
	d.Controls().MaxSteps.Store(8)
	n, err = d.Frame(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 8, n, "paused time is not replayed")
	assert.False(t, d.Stats().Paused)
}

func TestDriverIterateError(t *testing.T) {
	boom := errors.New("device lost")
	d := NewDriver(&countingStepper{err: boom}, NewFixedStep(time.Millisecond, 0), 0.01, nil, nil, nil)
	_, err := d.Frame(5 * time.Millisecond)
	assert.ErrorIs(t, err, boom)
}

func TestReloaderKeepsRuntimeControls(t *testing.T) {
	controls := &Controls{}
	r := NewReloader(controls, false, 12)

	// Pause key, then a reload that only changed the log level.
	controls.Paused.Store(true)
	controls.MaxSteps.Store(3)
	r.Apply(false, 12)
	assert.True(t, controls.Paused.Load())
	assert.Equal(t, int64(3), controls.MaxSteps.Load())

	tests := []struct {
		name       string
		paused     bool
		maxSteps   int
		wantPaused bool
		wantMax    int64
	}{
		{"file pauses", true, 12, true, 3},
		{"file resumes", false, 12, false, 3},
		{"file clamps", false, 6, false, 6},
		{"non-positive clamp ignored", false, 0, false, 6},
		{"unchanged", false, 0, false, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.Apply(tt.paused, tt.maxSteps)
			assert.Equal(t, tt.wantPaused, controls.Paused.Load())
			assert.Equal(t, tt.wantMax, controls.MaxSteps.Load())
		})
	}
}
