package cloth

import "github.com/go-gl/mathgl/mgl32"

// RenderBridge draws the shared buffer with the static topology.
type RenderBridge struct {
	position mgl32.Vec3
	shared   *SharedBuffer
}

// ModelMatrix places the sheet relative to the camera and flips Y: the
// grid is built Y-up, the renderer draws Y-down.
func (b *RenderBridge) ModelMatrix(cam Camera) mgl32.Mat4 {
	d := b.position.Sub(cam.Position())
	return mgl32.Translate3D(d.X(), d.Y(), d.Z()).Mul4(mgl32.Scale3D(1, -1, 1))
}

// Draw uploads the uniforms and issues the indexed draw. It fails with
// ErrBufferBusy while compute holds the buffer.
func (b *RenderBridge) Draw(cam Camera, sh Shader) error {
	m := b.ModelMatrix(cam)
	return b.shared.UseForRender(func(mesh Mesh) error {
		sh.Use()
		sh.SetMat4("PVM", cam.PVMatrix().Mul4(m))
		sh.SetMat3("M_normals", m.Inv().Transpose().Mat3())
		sh.SetVec3("camera_dir", cam.Normal())
		return mesh.Draw()
	})
}
