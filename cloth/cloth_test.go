package cloth

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clothsim/core"
	"clothsim/gpu"
	"clothsim/gpu/cpu"
)

const kernelPath = "../kernels/cloth.cl"

type testCloth struct {
	*Cloth
	mesh  *cpu.Mesh
	queue *cpu.Queue
}

func newTestCloth(t testing.TB, p Params) *testCloth {
	t.Helper()
	tc := &testCloth{}
	c, err := New(Options{
		Params:      p,
		Backend:     cpu.NewBackend(2),
		DeviceIndex: gpu.AutoDevice,
		KernelPath:  kernelPath,
		NewMesh: func(v []float32, i []uint32) (Mesh, error) {
			tc.mesh = cpu.NewMesh(v, i)
			return tc.mesh, nil
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Destroy() })
	tc.Cloth = c
	tc.queue = c.queue.(*cpu.Queue)
	return tc
}

func smallParams(sx, sy int) Params {
	return Params{
		SizeX:     sx,
		SizeY:     sy,
		Length:    0.1,
		Mass:      1,
		Stiffness: 50,
		Damping:   0.2,
		TimeStep:  0.005,
		Gravity:   -9.81,
	}
}

func snapshot(t *testing.T, c *testCloth) Snapshot {
	t.Helper()
	s, err := c.Snapshot()
	require.NoError(t, err)
	return s
}

func assertBitIdentical(t *testing.T, want, got []float32, name string) {
	t.Helper()
	require.Len(t, got, len(want), name)
	for i := range want {
		if math.Float32bits(want[i]) != math.Float32bits(got[i]) {
			t.Fatalf("%s[%d]: want %v, got %v", name, i, want[i], got[i])
		}
	}
}

func assertSnapshotsIdentical(t *testing.T, want, got Snapshot) {
	t.Helper()
	assertBitIdentical(t, want.PosPrev, got.PosPrev, "pos_prev")
	assertBitIdentical(t, want.PosNext, got.PosNext, "pos_next")
	assertBitIdentical(t, want.VelPrev, got.VelPrev, "vel_prev")
	assertBitIdentical(t, want.VelNext, got.VelNext, "vel_next")
}

func TestBufferSizes(t *testing.T) {
	for _, size := range [][2]int{{2, 2}, {3, 3}, {4, 4}, {7, 5}} {
		p := smallParams(size[0], size[1])
		c := newTestCloth(t, p)

		want := size[0] * size[1] * 3 * 4
		assert.Equal(t, want, p.GridByteSize())
		assert.Equal(t, want, c.bufs.posPrev.Size())
		assert.Equal(t, want, c.bufs.velPrev.Size())
		assert.Equal(t, want, c.bufs.velNext.Size())
		assert.Equal(t, want, c.bufs.shared.buf.Size())
		assert.Equal(t, (size[0]-1)*(size[1]-1)*6, c.mesh.IndexCount())
	}
}

func TestIterateZeroIsIdentity(t *testing.T) {
	c := newTestCloth(t, smallParams(6, 5))
	require.NoError(t, c.Iterate(4))

	before := snapshot(t, c)
	dispatches := c.queue.Stats().Dispatches
	require.NoError(t, c.Iterate(0))
	after := snapshot(t, c)

	assertSnapshotsIdentical(t, before, after)
	assert.Equal(t, dispatches, c.queue.Stats().Dispatches)
}

func TestIterateComposes(t *testing.T) {
	tests := []struct{ a, b int }{{0, 5}, {1, 1}, {3, 4}, {10, 0}}
	for _, tt := range tests {
		split := newTestCloth(t, smallParams(8, 6))
		whole := newTestCloth(t, smallParams(8, 6))

		require.NoError(t, split.Iterate(tt.a))
		require.NoError(t, split.Iterate(tt.b))
		require.NoError(t, whole.Iterate(tt.a+tt.b))

		assertSnapshotsIdentical(t, snapshot(t, whole), snapshot(t, split))
		assert.Equal(t, uint64(tt.a+tt.b), split.Steps())
	}
}

func TestZeroForceKeepsRestShape(t *testing.T) {
	p := Params{SizeX: 3, SizeY: 3, Length: 1, Mass: 1, TimeStep: 0.01}
	rest := core.BuildGrid(3, 3, 1).Vertices
	zeros := make([]float32, len(rest))

	for _, n := range []int{0, 1, 10, 250} {
		c := newTestCloth(t, p)
		require.NoError(t, c.Iterate(n))
		s := snapshot(t, c)

		assertBitIdentical(t, zeros, s.VelPrev, "vel_prev")
		assertBitIdentical(t, zeros, s.VelNext, "vel_next")
		assertBitIdentical(t, rest, s.PosPrev, "pos_prev")
		assertBitIdentical(t, rest, s.PosNext, "pos_next")
	}
}

func TestPerimeterPinned(t *testing.T) {
	const n = 4
	p := smallParams(n, n)
	rest := core.BuildGrid(n, n, p.Length).Vertices

	c := newTestCloth(t, p)
	for _, steps := range []int{1, 9, 90} {
		require.NoError(t, c.Iterate(steps))
		s := snapshot(t, c)

		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				i := (y*n + x) * 3
				edge := x == 0 || y == 0 || x == n-1 || y == n-1
				if edge {
					assertBitIdentical(t, rest[i:i+3], s.PosNext[i:i+3], "perimeter pos_next")
					assertBitIdentical(t, rest[i:i+3], s.PosPrev[i:i+3], "perimeter pos_prev")
				} else {
					assert.NotEqual(t, rest[i+1], s.PosNext[i+1], "interior point (%d,%d) did not move", x, y)
				}
			}
		}
	}
}

func TestHalfStepPriming(t *testing.T) {
	p := Params{SizeX: 3, SizeY: 3, Length: 1, Mass: 2, TimeStep: 0.02, Gravity: -10}
	c := newTestCloth(t, p)
	assert.Equal(t, Steady, c.State())

	s := snapshot(t, c)
	center := (1*3 + 1) * 3
	assert.InDelta(t, -10*0.01, s.VelPrev[center+1], 1e-7)
	assert.Zero(t, s.VelPrev[1], "perimeter velocity")

	// One full step moves by the half-step velocity times dt.
	require.NoError(t, c.Iterate(1))
	s = snapshot(t, c)
	assert.InDelta(t, -10*0.01*0.02, s.PosNext[center+1], 1e-8)
}

func TestAcquireReleasePairing(t *testing.T) {
	c := newTestCloth(t, smallParams(5, 5))
	shared := c.Shared()

	a0, r0 := shared.Transfers()
	d0 := c.queue.Stats().Dispatches
	require.NoError(t, c.Iterate(7))
	a1, r1 := shared.Transfers()

	assert.Equal(t, 7, a1-a0)
	assert.Equal(t, 7, r1-r0)
	assert.Equal(t, 14, c.queue.Stats().Dispatches-d0)
	assert.Equal(t, RenderOwned, shared.Owner())

	lease, err := shared.Acquire()
	require.NoError(t, err)
	draws := c.mesh.Draws()
	assert.ErrorIs(t, c.Draw(testCamera{}, &recordingShader{}), ErrBufferBusy)
	assert.Equal(t, draws, c.mesh.Draws())
	_, err = shared.Acquire()
	assert.ErrorIs(t, err, ErrBufferBusy)

	require.NoError(t, lease.Release())
	assert.Nil(t, lease.Buffer())
	assert.NoError(t, lease.Release())
	assert.NoError(t, c.Draw(testCamera{}, &recordingShader{}))
	assert.Equal(t, draws+1, c.mesh.Draws())
}

func TestRenderFenceBeforeCompute(t *testing.T) {
	c := newTestCloth(t, smallParams(4, 4))
	f0 := c.mesh.Finishes()
	assert.Equal(t, 1, f0, "mesh upload fenced before the first acquire")

	require.NoError(t, c.Iterate(3))
	assert.Equal(t, f0, c.mesh.Finishes(), "no fence without a draw")

	require.NoError(t, c.Draw(testCamera{}, &recordingShader{}))
	require.NoError(t, c.Iterate(3))
	assert.Equal(t, f0+1, c.mesh.Finishes())
}

func TestNegativeSteps(t *testing.T) {
	c := newTestCloth(t, smallParams(3, 3))
	assert.ErrorIs(t, c.Iterate(-1), ErrNegativeSteps)
}

func TestDestroy(t *testing.T) {
	c := newTestCloth(t, smallParams(3, 3))
	require.NoError(t, c.Destroy())
	assert.NoError(t, c.Destroy())
	assert.True(t, c.mesh.Released())

	assert.ErrorIs(t, c.Iterate(1), ErrDestroyed)
	assert.ErrorIs(t, c.Draw(testCamera{}, &recordingShader{}), ErrDestroyed)
	_, err := c.Snapshot()
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestNewErrors(t *testing.T) {
	meshes := func(v []float32, i []uint32) (Mesh, error) { return cpu.NewMesh(v, i), nil }

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{
			name:    "invalid params",
			opts:    Options{Params: Params{SizeX: 1, SizeY: 4}, Backend: cpu.NewBackend(1), NewMesh: meshes},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "missing kernel source",
			opts:    Options{Params: smallParams(3, 3), Backend: cpu.NewBackend(1), KernelPath: "missing.cl", NewMesh: meshes},
			wantErr: gpu.ErrSourceRead,
		},
		{
			name:    "build failure",
			opts:    Options{Params: smallParams(3, 3), Backend: cpu.NewBackend(1), KernelSource: "void f() {}", NewMesh: meshes},
			wantErr: gpu.ErrBuildFailed,
		},
		{
			name: "missing entry point",
			opts: Options{Params: smallParams(3, 3), Backend: cpu.NewBackend(1), KernelPath: kernelPath,
				VelocityKernel: "iterate_force", NewMesh: meshes},
			wantErr: gpu.ErrKernelNotFound,
		},
		{
			name:    "no backend",
			opts:    Options{Params: smallParams(3, 3), KernelPath: kernelPath, NewMesh: meshes},
			wantErr: gpu.ErrBackendUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewReleasesMeshOnFailure(t *testing.T) {
	var mesh *cpu.Mesh
	c, err := New(Options{
		Params:     smallParams(3, 3),
		Backend:    cpu.NewBackend(1),
		KernelPath: kernelPath,
		NewMesh: func(v []float32, i []uint32) (Mesh, error) {
			mesh = cpu.NewMesh(v[:len(v)-3], i)
			return mesh, nil
		},
	})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	require.NotNil(t, mesh)
	assert.True(t, mesh.Released())
}

type failingSync struct{}

func (failingSync) Sync(gpu.Queue, *Lease, gpu.Buffer) error { return assert.AnError }

func TestSyncFailureReleasesLease(t *testing.T) {
	var mesh *cpu.Mesh
	c, err := New(Options{
		Params:     smallParams(4, 4),
		Backend:    cpu.NewBackend(1),
		KernelPath: kernelPath,
		NewMesh: func(v []float32, i []uint32) (Mesh, error) {
			mesh = cpu.NewMesh(v, i)
			return mesh, nil
		},
		Sync: failingSync{},
	})
	require.NoError(t, err)
	defer c.Destroy()

	err = c.Iterate(2)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, RenderOwned, c.Shared().Owner())
	assert.NoError(t, mesh.Draw())
}

func TestSharedCloth(t *testing.T) {
	cc, err := gpu.Initialize(cpu.NewBackend(1), gpu.AutoDevice, nil)
	require.NoError(t, err)
	defer cc.Close()

	c, err := New(Options{
		Params:     smallParams(3, 3),
		Compute:    cc,
		KernelPath: kernelPath,
		NewMesh:    func(v []float32, i []uint32) (Mesh, error) { return cpu.NewMesh(v, i), nil },
	})
	require.NoError(t, err)
	require.NoError(t, c.Destroy())

	// The caller still owns the context.
	_, err = cc.CreateKernel(DefaultPositionKernel)
	assert.NoError(t, err)
}

func TestParamsValidate(t *testing.T) {
	ok := DefaultParams()
	require.NoError(t, ok.Validate())
	assert.Equal(t, float32(500), ok.EffectiveStiffness())
	assert.InDelta(t, 0.1, ok.EffectiveDamping(), 1e-7)

	nan := float32(math.NaN())
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"tiny grid", func(p *Params) { p.SizeX = 1 }},
		{"zero length", func(p *Params) { p.Length = 0 }},
		{"zero mass", func(p *Params) { p.Mass = 0 }},
		{"negative stiffness", func(p *Params) { p.Stiffness = -1 }},
		{"negative damping", func(p *Params) { p.Damping = -0.1 }},
		{"zero time step", func(p *Params) { p.TimeStep = 0 }},
		{"nan gravity", func(p *Params) { p.Gravity = nan }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

type testCamera struct {
	pos mgl32.Vec3
}

func (c testCamera) PVMatrix() mgl32.Mat4 { return mgl32.Ident4() }
func (c testCamera) Position() mgl32.Vec3 { return c.pos }
func (c testCamera) Normal() mgl32.Vec3   { return mgl32.Vec3{0, 0, -1} }

type recordingShader struct {
	used  int
	mat4  map[string]mgl32.Mat4
	mat3  map[string]mgl32.Mat3
	vec3  map[string]mgl32.Vec3
	order []string
}

func (s *recordingShader) Use() { s.used++; s.order = append(s.order, "use") }

func (s *recordingShader) SetMat4(name string, m mgl32.Mat4) {
	if s.mat4 == nil {
		s.mat4 = map[string]mgl32.Mat4{}
	}
	s.mat4[name] = m
	s.order = append(s.order, name)
}

func (s *recordingShader) SetMat3(name string, m mgl32.Mat3) {
	if s.mat3 == nil {
		s.mat3 = map[string]mgl32.Mat3{}
	}
	s.mat3[name] = m
	s.order = append(s.order, name)
}

func (s *recordingShader) SetVec3(name string, v mgl32.Vec3) {
	if s.vec3 == nil {
		s.vec3 = map[string]mgl32.Vec3{}
	}
	s.vec3[name] = v
	s.order = append(s.order, name)
}
