package opengl

import (
	"clothsim/gpu/cpu"
)

// HostMesh pairs a host-memory mesh, which the cpu backend writes, with a
// GL mesh that is refreshed from it before each draw.
type HostMesh struct {
	*cpu.Mesh
	gl *Mesh
}

func NewHostMesh(vertices []float32, indices []uint32) (*HostMesh, error) {
	m, err := NewMesh(vertices, indices)
	if err != nil {
		return nil, err
	}
	return &HostMesh{Mesh: cpu.NewMesh(vertices, indices), gl: m}, nil
}

func (m *HostMesh) Draw() error {
	if err := m.Mesh.Draw(); err != nil {
		return err
	}
	if len(m.HostVertices()) == 0 {
		return nil
	}
	m.gl.Upload(m.HostVertices())
	return m.gl.Draw()
}

func (m *HostMesh) Finish() {
	m.Mesh.Finish()
	m.gl.Finish()
}

func (m *HostMesh) Release() {
	m.gl.Release()
	m.Mesh.Release()
}
