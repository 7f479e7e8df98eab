package cloth

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"clothsim/gpu"
)

// buffers holds the double-buffered simulation state. pos_next is the
// shared render buffer; the other three are plain device buffers.
type buffers struct {
	posPrev gpu.Buffer
	velPrev gpu.Buffer
	velNext gpu.Buffer
	shared  *SharedBuffer

	byteSize int
}

// allocateBuffers creates the state buffers for a grid of byteSize bytes
// and fills them: both velocities zero, pos_prev a copy of the rest shape
// already held by the mesh.
func allocateBuffers(ctx gpu.Context, q gpu.Queue, byteSize int, mesh Mesh, log *zap.Logger) (_ *buffers, err error) {
	b := &buffers{byteSize: byteSize}
	defer func() {
		if err != nil {
			err = multierr.Append(err, b.close())
		}
	}()

	for _, dst := range []*gpu.Buffer{&b.posPrev, &b.velPrev, &b.velNext} {
		if *dst, err = ctx.NewBuffer(byteSize); err != nil {
			return nil, errors.Wrap(err, "allocating state buffer")
		}
	}

	shared, err := ctx.ShareVertexBuffer(mesh)
	if err != nil {
		return nil, errors.Wrap(err, "sharing vertex buffer")
	}
	if shared.Size() != byteSize {
		_ = shared.Close()
		return nil, errors.Wrapf(gpu.ErrInvalidArgument, "shared vertex buffer is %d bytes, want %d", shared.Size(), byteSize)
	}
	b.shared = newSharedBuffer(shared, mesh, q)

	zeros := make([]float32, byteSize/4)
	if err = q.WriteFloat32(b.velPrev, zeros); err != nil {
		return nil, errors.Wrap(err, "clearing vel_prev")
	}
	if err = q.WriteFloat32(b.velNext, zeros); err != nil {
		return nil, errors.Wrap(err, "clearing vel_next")
	}

	lease, err := b.shared.Acquire()
	if err != nil {
		return nil, err
	}
	if err = q.CopyBuffer(lease.Buffer(), b.posPrev, byteSize); err != nil {
		_ = lease.Release()
		return nil, errors.Wrap(err, "copying rest shape to pos_prev")
	}
	if err = lease.Release(); err != nil {
		return nil, err
	}
	if err = q.Barrier(); err != nil {
		return nil, err
	}

	log.Debug("simulation buffers allocated",
		zap.Int("bytesEach", byteSize),
		zap.Uint32("vbo", mesh.VertexBuffer()))
	return b, nil
}

func (b *buffers) close() error {
	var err error
	for _, buf := range []*gpu.Buffer{&b.posPrev, &b.velPrev, &b.velNext} {
		if *buf != nil {
			err = multierr.Append(err, (*buf).Close())
			*buf = nil
		}
	}
	if b.shared != nil {
		err = multierr.Append(err, b.shared.close())
		b.shared = nil
	}
	return err
}
