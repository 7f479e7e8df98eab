package cloth

import (
	"github.com/go-gl/mathgl/mgl32"

	"clothsim/gpu"
)

// Camera supplies the view used to draw the cloth.
type Camera interface {
	PVMatrix() mgl32.Mat4
	Position() mgl32.Vec3
	// Normal is the view direction.
	Normal() mgl32.Vec3
}

// Shader receives uniforms by name.
type Shader interface {
	Use()
	SetMat4(name string, m mgl32.Mat4)
	SetMat3(name string, m mgl32.Mat3)
	SetVec3(name string, v mgl32.Vec3)
}

// Mesh is the render-side storage of the sheet. Its vertex buffer is
// shared with the compute device and written by the position kernel.
type Mesh interface {
	gpu.VertexSource
	IndexCount() int
	// Draw issues the indexed triangle draw.
	Draw() error
	// Finish blocks until the renderer has stopped using the vertex buffer.
	Finish()
	Release()
}

// MeshFactory uploads the rest shape and topology into a new Mesh.
type MeshFactory func(vertices []float32, indices []uint32) (Mesh, error)
