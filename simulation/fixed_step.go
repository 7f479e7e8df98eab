// Package simulation drives a cloth from a variable-rate frame loop.
package simulation

import "time"

// FixedStep converts variable frame times into whole simulation steps of a
// fixed length.
type FixedStep struct {
	Step     time.Duration
	MaxSteps int

	acc     time.Duration
	dropped uint64
}

// NewFixedStep returns an accumulator producing steps of length step and at
// most maxSteps per Advance. maxSteps <= 0 disables the clamp.
func NewFixedStep(step time.Duration, maxSteps int) *FixedStep {
	return &FixedStep{Step: step, MaxSteps: maxSteps}
}

// Advance adds elapsed to the accumulator and returns the number of whole
// steps now due. Steps above MaxSteps are discarded rather than carried to
// the next frame, so a long stall never snowballs into longer frames.
func (f *FixedStep) Advance(elapsed time.Duration) int {
	if f.Step <= 0 {
		return 0
	}
	if elapsed > 0 {
		f.acc += elapsed
	}
	n := int(f.acc / f.Step)
	f.acc -= time.Duration(n) * f.Step
	if f.MaxSteps > 0 && n > f.MaxSteps {
		f.dropped += uint64(n - f.MaxSteps)
		n = f.MaxSteps
	}
	return n
}

// SetMaxSteps changes the per-call clamp.
func (f *FixedStep) SetMaxSteps(n int) { f.MaxSteps = n }

// Pending returns the accumulated time not yet turned into steps.
func (f *FixedStep) Pending() time.Duration { return f.acc }

// Dropped returns the total number of discarded steps.
func (f *FixedStep) Dropped() uint64 { return f.dropped }

// Reset clears the accumulator.
func (f *FixedStep) Reset() { f.acc = 0 }
