package gpu_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clothsim/gpu"
	"clothsim/gpu/cpu"
)

func TestComputeContextLifecycle(t *testing.T) {
	cc, err := gpu.Initialize(cpu.NewBackend(1), gpu.AutoDevice, zap.NewNop())
	require.NoError(t, err)
	defer cc.Close()

	assert.Equal(t, gpu.DeviceCPU, cc.Device().Type)

	_, err = cc.CreateKernel("iterate_pos")
	assert.ErrorIs(t, err, gpu.ErrKernelNotFound)

	path := filepath.Join(t.TempDir(), "cloth.cl")
	require.NoError(t, os.WriteFile(path, []byte("__kernel void iterate_pos() {}\n__kernel void iterate_vel() {}\n"), 0o644))
	require.NoError(t, cc.BuildProgramFile(path))

	_, err = cc.CreateKernel("iterate_vel")
	assert.NoError(t, err)
	_, err = cc.CreateKernel("iterate_force")
	assert.ErrorIs(t, err, gpu.ErrKernelNotFound)
}

func TestComputeContextBuildFailure(t *testing.T) {
	cc, err := gpu.Initialize(cpu.NewBackend(1), gpu.AutoDevice, nil)
	require.NoError(t, err)
	defer cc.Close()

	err = cc.BuildProgram("this is not a kernel")
	var be *gpu.BuildError
	require.ErrorAs(t, err, &be)
	assert.NotEmpty(t, be.Log)

	err = cc.BuildProgramFile(filepath.Join(t.TempDir(), "missing.cl"))
	assert.ErrorIs(t, err, gpu.ErrSourceRead)
}

func TestInitializeExplicitDevice(t *testing.T) {
	_, err := gpu.Initialize(cpu.NewBackend(1), 4, nil)
	assert.ErrorIs(t, err, gpu.ErrNoDevice)
}
