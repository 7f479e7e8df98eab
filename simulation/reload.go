package simulation

// Reloader applies values from a reloaded settings file to Controls. A
// value is forwarded only when it differs from the previous load, so pause
// and clamp changes made through the keyboard or telemetry survive edits
// to unrelated settings.
type Reloader struct {
	controls *Controls
	paused   bool
	maxSteps int
}

// NewReloader starts from the values of the initial load.
func NewReloader(c *Controls, paused bool, maxSteps int) *Reloader {
	return &Reloader{controls: c, paused: paused, maxSteps: maxSteps}
}

// Apply forwards changed values. Non-positive clamps are ignored.
func (r *Reloader) Apply(paused bool, maxSteps int) {
	if paused != r.paused {
		r.paused = paused
		r.controls.Paused.Store(paused)
	}
	if maxSteps != r.maxSteps {
		r.maxSteps = maxSteps
		if maxSteps > 0 {
			r.controls.MaxSteps.Store(int64(maxSteps))
		}
	}
}
