package cloth

import (
	"fmt"

	"github.com/pkg/errors"

	"clothsim/gpu"
)

// State is the leapfrog state of the integrator.
type State int

const (
	Uninitialized State = iota
	// HalfStepPrimed: velocities lead positions by dt/2 but the velocity
	// kernel still carries the half step.
	HalfStepPrimed
	Steady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case HalfStepPrimed:
		return "half-step-primed"
	case Steady:
		return "steady"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Velocity kernel argument indices.
const (
	velArgPrev = iota
	velArgNext
	velArgPos
	velArgSizeX
	velArgSizeY
	velArgLength
	velArgStiffness
	velArgDamping
	velArgTimeStep
	velArgGravity
)

// Position kernel argument indices.
const (
	posArgPrev = iota
	posArgNext
	posArgVel
	posArgSizeX
	posArgSizeY
	posArgTimeStep
)

type integrator struct {
	queue  gpu.Queue
	pos    gpu.Kernel
	vel    gpu.Kernel
	bufs   *buffers
	sync   PositionSync
	params Params

	interior gpu.Range
	state    State
	steps    uint64
}

func newIntegrator(q gpu.Queue, pos, vel gpu.Kernel, bufs *buffers, sync PositionSync, p Params) *integrator {
	return &integrator{
		queue:  q,
		pos:    pos,
		vel:    vel,
		bufs:   bufs,
		sync:   sync,
		params: p,
		// Perimeter points are never updated and stay pinned.
		interior: gpu.Range{
			Offset: [2]int{1, 1},
			Global: [2]int{p.SizeX - 2, p.SizeY - 2},
		},
	}
}

type arg struct {
	index int
	value any
}

func setArgs(k gpu.Kernel, args []arg) error {
	for _, a := range args {
		if err := k.SetArg(a.index, a.value); err != nil {
			return errors.Wrapf(err, "binding %s argument %d", k.Name(), a.index)
		}
	}
	return nil
}

// bindConstants sets every kernel argument once. The velocity kernel starts
// with a half time step for priming.
func (in *integrator) bindConstants() error {
	p := in.params
	sx, sy := int32(p.SizeX), int32(p.SizeY)

	if err := in.bufs.shared.bindArg(in.pos, posArgNext); err != nil {
		return errors.Wrapf(err, "binding %s argument %d", in.pos.Name(), posArgNext)
	}
	if err := setArgs(in.pos, []arg{
		{posArgPrev, in.bufs.posPrev},
		{posArgVel, in.bufs.velPrev},
		{posArgSizeX, sx},
		{posArgSizeY, sy},
		{posArgTimeStep, p.TimeStep},
	}); err != nil {
		return err
	}
	return setArgs(in.vel, []arg{
		{velArgPrev, in.bufs.velPrev},
		{velArgNext, in.bufs.velNext},
		{velArgPos, in.bufs.posPrev},
		{velArgSizeX, sx},
		{velArgSizeY, sy},
		{velArgLength, p.Length},
		{velArgStiffness, p.EffectiveStiffness()},
		{velArgDamping, p.EffectiveDamping()},
		{velArgTimeStep, p.TimeStep * 0.5},
		{velArgGravity, p.Gravity},
	})
}

// prime advances velocities by half a step so they lead positions, then
// switches the velocity kernel to the full step.
func (in *integrator) prime() error {
	if in.state != Uninitialized {
		return errors.Errorf("priming integrator in state %s", in.state)
	}
	if err := in.bindConstants(); err != nil {
		return err
	}
	if err := in.queue.Dispatch(in.vel, in.interior); err != nil {
		return errors.Wrap(err, "half-step velocity dispatch")
	}
	if err := in.queue.CopyBuffer(in.bufs.velNext, in.bufs.velPrev, in.bufs.byteSize); err != nil {
		return errors.Wrap(err, "copying vel_next to vel_prev")
	}
	in.state = HalfStepPrimed

	if err := in.vel.SetArg(velArgTimeStep, in.params.TimeStep); err != nil {
		return errors.Wrap(err, "patching velocity time step")
	}
	in.state = Steady

	return errors.Wrap(in.queue.Finish(), "finishing priming")
}

// iterate runs steps full leapfrog steps and waits for the queue.
func (in *integrator) iterate(steps int) error {
	if steps < 0 {
		return errors.Wrapf(ErrNegativeSteps, "%d", steps)
	}
	if steps == 0 {
		return nil
	}
	if in.state != Steady {
		return errors.Errorf("iterating integrator in state %s", in.state)
	}
	for n := 0; n < steps; n++ {
		if err := in.step(); err != nil {
			return errors.Wrapf(err, "step %d of %d", n+1, steps)
		}
		in.steps++
	}
	return errors.Wrap(in.queue.Finish(), "finishing iterate")
}

func (in *integrator) step() error {
	lease, err := in.bufs.shared.Acquire()
	if err != nil {
		return err
	}
	if err := in.queue.Dispatch(in.pos, in.interior); err != nil {
		_ = lease.Release()
		return errors.Wrap(err, "position dispatch")
	}
	if err := in.sync.Sync(in.queue, lease, in.bufs.posPrev); err != nil {
		_ = lease.Release()
		return errors.Wrap(err, "syncing positions")
	}
	if err := lease.Release(); err != nil {
		return err
	}
	if err := in.queue.Barrier(); err != nil {
		return err
	}

	if err := in.queue.Dispatch(in.vel, in.interior); err != nil {
		return errors.Wrap(err, "velocity dispatch")
	}
	if err := in.queue.CopyBuffer(in.bufs.velNext, in.bufs.velPrev, in.bufs.byteSize); err != nil {
		return errors.Wrap(err, "copying vel_next to vel_prev")
	}
	return in.queue.Barrier()
}
