package cloth

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelMatrix(t *testing.T) {
	b := &RenderBridge{position: mgl32.Vec3{1, 2, 3}}
	m := b.ModelMatrix(testCamera{pos: mgl32.Vec3{1, 0, -1}})

	// Origin lands on position - camera.
	o := m.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Equal(t, mgl32.Vec4{0, 2, 4, 1}, o)

	// Y is flipped, X and Z are kept.
	p := m.Mul4x1(mgl32.Vec4{1, 1, 1, 1})
	assert.Equal(t, mgl32.Vec4{1, 1, 5, 1}, p)
}

func TestBridgeDrawUniforms(t *testing.T) {
	p := smallParams(4, 3)
	p.Position = mgl32.Vec3{0, 5, 0}
	c := newTestCloth(t, p)

	cam := testCamera{pos: mgl32.Vec3{0, 0, 10}}
	sh := &recordingShader{}
	require.NoError(t, c.Draw(cam, sh))

	assert.Equal(t, 1, sh.used)
	assert.Equal(t, []string{"use", "PVM", "M_normals", "camera_dir"}, sh.order)

	m := c.Bridge().ModelMatrix(cam)
	assert.Equal(t, m, sh.mat4["PVM"])
	assert.True(t, m.Inv().Transpose().Mat3().ApproxEqual(sh.mat3["M_normals"]))
	assert.Equal(t, cam.Normal(), sh.vec3["camera_dir"])
	assert.Equal(t, 1, c.mesh.Draws())
}
