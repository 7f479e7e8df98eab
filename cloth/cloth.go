// Package cloth runs a mass-spring cloth on a compute device and draws it
// from the same vertex buffer the device writes.
//
// A Cloth owns four state buffers: pos_prev, pos_next, vel_prev and
// vel_next. pos_next is the render mesh's vertex buffer. Integration is
// leapfrog: velocities are advanced half a step at construction and lead
// positions by dt/2 from then on.
package cloth

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"clothsim/core"
	"clothsim/gpu"
)

const (
	DefaultPositionKernel = "iterate_pos"
	DefaultVelocityKernel = "iterate_vel"
)

// Options configure New. Either Compute or Backend must be set; with
// Backend the Cloth creates and owns its compute context.
type Options struct {
	Params Params

	Compute     *gpu.ComputeContext
	Backend     gpu.Backend
	DeviceIndex int

	// KernelSource takes precedence over KernelPath.
	KernelPath     string
	KernelSource   string
	PositionKernel string
	VelocityKernel string

	NewMesh MeshFactory
	Sync    PositionSync
	Logger  *zap.Logger
}

// Cloth is a simulated sheet. It is not safe for concurrent use; the
// thread that owns the OpenGL context drives it.
type Cloth struct {
	params Params
	log    *zap.Logger

	compute    *gpu.ComputeContext
	ownCompute bool
	queue      gpu.Queue
	pos, vel   gpu.Kernel
	mesh       Mesh
	bufs       *buffers
	integrator *integrator
	bridge     *RenderBridge

	destroyed bool
}

// Snapshot is a host copy of the four state buffers.
type Snapshot struct {
	PosPrev []float32
	PosNext []float32
	VelPrev []float32
	VelNext []float32
}

// New builds the kernels, uploads the rest grid, allocates the state and
// primes the integrator. Everything created is released on failure.
func New(opts Options) (_ *Cloth, err error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	p := opts.Params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if opts.NewMesh == nil {
		return nil, errors.New("cloth: no mesh factory")
	}
	if opts.Sync == nil {
		opts.Sync = CopySync{}
	}
	if opts.PositionKernel == "" {
		opts.PositionKernel = DefaultPositionKernel
	}
	if opts.VelocityKernel == "" {
		opts.VelocityKernel = DefaultVelocityKernel
	}

	c := &Cloth{params: p, log: log, compute: opts.Compute}
	defer func() {
		if err != nil {
			err = multierr.Append(err, c.release())
		}
	}()

	if c.compute == nil {
		if c.compute, err = gpu.Initialize(opts.Backend, opts.DeviceIndex, log); err != nil {
			return nil, err
		}
		c.ownCompute = true
	}

	if opts.KernelSource != "" {
		err = c.compute.BuildProgram(opts.KernelSource)
	} else {
		err = c.compute.BuildProgramFile(opts.KernelPath)
	}
	if err != nil {
		return nil, err
	}
	if c.pos, err = c.compute.CreateKernel(opts.PositionKernel); err != nil {
		return nil, err
	}
	if c.vel, err = c.compute.CreateKernel(opts.VelocityKernel); err != nil {
		return nil, err
	}

	grid := core.BuildGrid(p.SizeX, p.SizeY, p.Length)
	if c.mesh, err = opts.NewMesh(grid.Vertices, grid.Indices); err != nil {
		return nil, errors.Wrap(err, "creating mesh")
	}

	ctx := c.compute.Context()
	if c.queue, err = ctx.NewQueue(); err != nil {
		return nil, errors.Wrap(err, "creating command queue")
	}
	if c.bufs, err = allocateBuffers(ctx, c.queue, p.GridByteSize(), c.mesh, log); err != nil {
		return nil, err
	}

	c.integrator = newIntegrator(c.queue, c.pos, c.vel, c.bufs, opts.Sync, p)
	if err = c.integrator.prime(); err != nil {
		return nil, err
	}
	c.bridge = &RenderBridge{position: p.Position, shared: c.bufs.shared}

	log.Info("cloth ready",
		zap.Int("sizeX", p.SizeX),
		zap.Int("sizeY", p.SizeY),
		zap.Int("triangles", grid.IndexCount()/3),
		zap.Float32("dt", p.TimeStep),
		zap.Stringer("state", c.integrator.state))
	return c, nil
}

// Iterate advances the simulation by steps full time steps. Zero steps
// leave every buffer untouched.
func (c *Cloth) Iterate(steps int) error {
	if c.destroyed {
		return ErrDestroyed
	}
	return c.integrator.iterate(steps)
}

// Draw renders the current positions. No compute work is issued.
func (c *Cloth) Draw(cam Camera, sh Shader) error {
	if c.destroyed {
		return ErrDestroyed
	}
	return c.bridge.Draw(cam, sh)
}

// Snapshot reads all four state buffers back to the host. It blocks.
func (c *Cloth) Snapshot() (Snapshot, error) {
	if c.destroyed {
		return Snapshot{}, ErrDestroyed
	}
	n := c.params.PointCount() * 3
	s := Snapshot{
		PosPrev: make([]float32, n),
		PosNext: make([]float32, n),
		VelPrev: make([]float32, n),
		VelNext: make([]float32, n),
	}
	for _, r := range []struct {
		buf gpu.Buffer
		dst []float32
	}{
		{c.bufs.posPrev, s.PosPrev},
		{c.bufs.velPrev, s.VelPrev},
		{c.bufs.velNext, s.VelNext},
	} {
		if err := c.queue.ReadFloat32(r.buf, r.dst); err != nil {
			return Snapshot{}, errors.Wrap(err, "reading state")
		}
	}

	lease, err := c.bufs.shared.Acquire()
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.queue.ReadFloat32(lease.Buffer(), s.PosNext); err != nil {
		_ = lease.Release()
		return Snapshot{}, errors.Wrap(err, "reading pos_next")
	}
	if err := lease.Release(); err != nil {
		return Snapshot{}, err
	}
	return s, errors.Wrap(c.queue.Finish(), "finishing snapshot")
}

// Params returns the construction parameters.
func (c *Cloth) Params() Params { return c.params }

// State returns the integrator state.
func (c *Cloth) State() State {
	if c.integrator == nil {
		return Uninitialized
	}
	return c.integrator.state
}

// Steps returns the number of full steps taken since construction.
func (c *Cloth) Steps() uint64 { return c.integrator.steps }

// Shared exposes the shared vertex buffer lock.
func (c *Cloth) Shared() *SharedBuffer {
	if c.bufs == nil {
		return nil
	}
	return c.bufs.shared
}

// Bridge returns the render bridge.
func (c *Cloth) Bridge() *RenderBridge { return c.bridge }

// Destroy releases all device and render resources. It is safe to call
// more than once.
func (c *Cloth) Destroy() error {
	if c.destroyed {
		return nil
	}
	c.destroyed = true
	err := c.release()
	c.log.Info("cloth destroyed", zap.Error(err))
	return err
}

func (c *Cloth) release() error {
	var err error
	if c.queue != nil {
		err = multierr.Append(err, c.queue.Finish())
	}
	if c.bufs != nil {
		err = multierr.Append(err, c.bufs.close())
		c.bufs = nil
	}
	for _, k := range []*gpu.Kernel{&c.pos, &c.vel} {
		if *k != nil {
			err = multierr.Append(err, (*k).Close())
			*k = nil
		}
	}
	if c.queue != nil {
		err = multierr.Append(err, c.queue.Close())
		c.queue = nil
	}
	if c.mesh != nil {
		c.mesh.Release()
		c.mesh = nil
	}
	if c.ownCompute && c.compute != nil {
		err = multierr.Append(err, c.compute.Close())
	}
	c.compute = nil
	return err
}
