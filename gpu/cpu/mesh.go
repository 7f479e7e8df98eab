package cpu

import (
	"errors"
	"sync/atomic"
)

// ErrMeshHeld is returned by Mesh.Draw while the compute side holds the
// vertex buffer.
var ErrMeshHeld = errors.New("clothsim/gpu/cpu: vertex buffer held by compute")

var nextVBO atomic.Uint32

// Mesh is a headless render mesh whose vertex buffer lives in host memory.
// It satisfies cloth.Mesh and can be shared with the host backend.
type Mesh struct {
	vbo      uint32
	vertices []float32
	indices  []uint32
	held     bool
	draws    int
	finishes int
	released bool
}

// NewMesh copies vertices and indices into a new mesh.
func NewMesh(vertices []float32, indices []uint32) *Mesh {
	return &Mesh{
		vbo:      nextVBO.Add(1),
		vertices: append([]float32(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}
}

func (m *Mesh) VertexBuffer() uint32     { return m.vbo }
func (m *Mesh) VertexBytes() int         { return len(m.vertices) * 4 }
func (m *Mesh) IndexCount() int          { return len(m.indices) }
func (m *Mesh) HostVertices() []float32  { return m.vertices }
func (m *Mesh) Indices() []uint32        { return m.indices }
func (m *Mesh) setComputeHeld(held bool) { m.held = held }

// Draw records a draw call. It fails if compute currently holds the buffer.
func (m *Mesh) Draw() error {
	if m.held {
		return ErrMeshHeld
	}
	m.draws++
	return nil
}

// Finish is the render fence; it is a counter here.
func (m *Mesh) Finish() { m.finishes++ }

func (m *Mesh) Release() {
	m.released = true
	m.vertices = nil
	m.indices = nil
}

// Draws reports how many draw calls succeeded.
func (m *Mesh) Draws() int { return m.draws }

// Finishes reports how many render fences ran.
func (m *Mesh) Finishes() int { return m.finishes }

// Released reports whether Release was called.
func (m *Mesh) Released() bool { return m.released }
