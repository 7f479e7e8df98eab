package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasGLSharing(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{"", false},
		{"cl_khr_fp64 cl_khr_icd", false},
		{"cl_khr_fp64 cl_khr_gl_sharing cl_khr_icd", true},
		{"cl_APPLE_SetMemObjectDestructor cl_APPLE_gl_sharing", true},
		{"cl_khr_gl_sharing_ext", false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, HasGLSharing(tt.ext))
		})
	}
}

func TestSelectDevice(t *testing.T) {
	cpuShare := DeviceInfo{Index: 0, Name: "cpu", Type: DeviceCPU, GLSharing: true}
	gpuPlain := DeviceInfo{Index: 1, Name: "gpu-a", Type: DeviceGPU}
	gpuShare := DeviceInfo{Index: 2, Name: "gpu-b", Type: DeviceGPU, GLSharing: true}

	tests := []struct {
		name    string
		devices []DeviceInfo
		index   int
		want    string
		wantErr error
	}{
		{"none", nil, AutoDevice, "", ErrNoDevice},
		{"prefers sharing gpu", []DeviceInfo{cpuShare, gpuPlain, gpuShare}, AutoDevice, "gpu-b", nil},
		{"falls back to sharing cpu", []DeviceInfo{gpuPlain, cpuShare}, AutoDevice, "cpu", nil},
		{"no interop", []DeviceInfo{gpuPlain}, AutoDevice, "", ErrNoInteropDevice},
		{"explicit index", []DeviceInfo{cpuShare, gpuPlain}, 1, "gpu-a", nil},
		{"explicit out of range", []DeviceInfo{cpuShare}, 3, "", ErrNoDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := SelectDevice(tt.devices, tt.index)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name)
		})
	}
}

func TestRegistry(t *testing.T) {
	Register("test-null", func() Backend { return nil })
	defer Register("test-null", nil)

	assert.Contains(t, Backends(), "test-null")
	_, err := Lookup("test-null")
	assert.NoError(t, err)

	_, err = Lookup("does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	Register("test-null", nil)
	assert.NotContains(t, Backends(), "test-null")
}

func TestInitializeWithoutBackend(t *testing.T) {
	_, err := Initialize(nil, AutoDevice, nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestErrors(t *testing.T) {
	be := &BuildError{Log: "line 3: expected ';'"}
	assert.True(t, errors.Is(be, ErrBuildFailed))
	assert.Contains(t, be.Error(), "expected ';'")
	assert.Equal(t, ErrBuildFailed.Error(), (&BuildError{}).Error())

	de := &DeviceError{Op: "enqueue kernel", Code: -5}
	assert.Equal(t, "clothsim/gpu: enqueue kernel: CL_OUT_OF_RESOURCES (-5)", de.Error())
	assert.Equal(t, "CL_UNKNOWN_ERROR", CodeName(-999))
}

func TestLoadSource(t *testing.T) {
	_, err := LoadSource("testdata/does-not-exist.cl")
	assert.ErrorIs(t, err, ErrSourceRead)
}
