package cloth

import (
	"github.com/pkg/errors"

	"clothsim/gpu"
)

// Owner is the side currently holding the shared vertex buffer.
type Owner int

const (
	RenderOwned Owner = iota
	ComputeOwned
)

func (o Owner) String() string {
	if o == ComputeOwned {
		return "compute"
	}
	return "render"
}

// SharedBuffer is the vertex buffer seen by both the renderer and the
// compute queue. Compute code reaches the device handle only through a
// Lease; rendering goes through UseForRender and is refused while a lease
// is open.
type SharedBuffer struct {
	buf   gpu.Buffer
	mesh  Mesh
	queue gpu.Queue
	owner Owner

	// rendered is set after a draw and cleared by the fence in Acquire.
	rendered bool

	acquires int
	releases int
}

func newSharedBuffer(buf gpu.Buffer, mesh Mesh, queue gpu.Queue) *SharedBuffer {
	// The mesh upload counts as render work: the first acquire is fenced.
	return &SharedBuffer{buf: buf, mesh: mesh, queue: queue, rendered: true}
}

// Lease is an open compute acquisition of a SharedBuffer.
type Lease struct {
	s        *SharedBuffer
	released bool
}

// Acquire hands the buffer to the compute queue. If the renderer used the
// buffer since the last acquisition, the render fence runs first.
func (s *SharedBuffer) Acquire() (*Lease, error) {
	if s.owner == ComputeOwned {
		return nil, ErrBufferBusy
	}
	if s.rendered {
		s.mesh.Finish()
		s.rendered = false
	}
	if err := s.queue.AcquireShared(s.buf); err != nil {
		return nil, errors.Wrap(err, "acquiring shared vertex buffer")
	}
	s.owner = ComputeOwned
	s.acquires++
	return &Lease{s: s}, nil
}

// Buffer returns the device handle, or nil once the lease is released.
func (l *Lease) Buffer() gpu.Buffer {
	if l.released {
		return nil
	}
	return l.s.buf
}

// Release hands the buffer back to the renderer. Releasing twice is a no-op.
func (l *Lease) Release() error {
	if l.released {
		return nil
	}
	if err := l.s.queue.ReleaseShared(l.s.buf); err != nil {
		return errors.Wrap(err, "releasing shared vertex buffer")
	}
	l.released = true
	l.s.owner = RenderOwned
	l.s.releases++
	return nil
}

// UseForRender runs fn with the mesh while the renderer owns the buffer.
func (s *SharedBuffer) UseForRender(fn func(Mesh) error) error {
	if s.owner == ComputeOwned {
		return ErrBufferBusy
	}
	s.rendered = true
	return fn(s.mesh)
}

// Owner reports which side holds the buffer.
func (s *SharedBuffer) Owner() Owner { return s.owner }

// Transfers returns how many acquisitions and releases have completed.
func (s *SharedBuffer) Transfers() (acquires, releases int) {
	return s.acquires, s.releases
}

// bindArg sets the buffer as a kernel argument. Binding does not touch
// the buffer contents, so no lease is needed.
func (s *SharedBuffer) bindArg(k gpu.Kernel, index int) error {
	return k.SetArg(index, s.buf)
}

func (s *SharedBuffer) close() error {
	if s.owner == ComputeOwned {
		if err := s.queue.ReleaseShared(s.buf); err != nil {
			return err
		}
		s.owner = RenderOwned
		s.releases++
	}
	return s.buf.Close()
}
