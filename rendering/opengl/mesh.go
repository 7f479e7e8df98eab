package opengl

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"
)

// Mesh is an indexed triangle mesh whose vertex buffer is written by the
// compute device between frames.
type Mesh struct {
	vao, vbo, ebo uint32
	vertexBytes   int
	indexCount    int
}

// NewMesh uploads xyz vertices and triangle indices.
func NewMesh(vertices []float32, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 || len(vertices)%3 != 0 {
		return nil, errors.Errorf("mesh needs xyz vertices, got %d floats", len(vertices))
	}
	m := &Mesh{vertexBytes: len(vertices) * 4, indexCount: len(indices)}

	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, m.vertexBytes, gl.Ptr(vertices), gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	if len(indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		m.Release()
		return nil, errors.Errorf("mesh upload failed: GL error 0x%x", code)
	}
	return m, nil
}

func (m *Mesh) VertexBuffer() uint32 { return m.vbo }
func (m *Mesh) VertexBytes() int     { return m.vertexBytes }
func (m *Mesh) IndexCount() int      { return m.indexCount }

// Upload replaces the vertex data from host memory.
func (m *Mesh) Upload(vertices []float32) {
	n := len(vertices) * 4
	if n > m.vertexBytes {
		n = m.vertexBytes
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, n, gl.Ptr(vertices))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

// Draw issues the indexed draw. The active program is set by the caller.
func (m *Mesh) Draw() error {
	if m.vao == 0 {
		return errors.New("mesh released")
	}
	gl.BindVertexArray(m.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(m.indexCount), gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)
	return nil
}

// Finish blocks until queued GL commands, including draws reading the
// vertex buffer, have completed.
func (m *Mesh) Finish() { gl.Finish() }

func (m *Mesh) Release() {
	if m.ebo != 0 {
		gl.DeleteBuffers(1, &m.ebo)
		m.ebo = 0
	}
	if m.vbo != 0 {
		gl.DeleteBuffers(1, &m.vbo)
		m.vbo = 0
	}
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
		m.vao = 0
	}
}
