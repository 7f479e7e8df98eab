//go:build !opencl

package opencl

import (
	"fmt"

	"clothsim/gpu"
)

// BackendName is the registry name of this backend.
const BackendName = "opencl"

func init() {
	gpu.Register(BackendName, func() gpu.Backend { return Backend{} })
}

// Backend is registered when the binary is built without OpenCL support.
// Every operation reports gpu.ErrBackendUnavailable.
type Backend struct{}

func (Backend) Info() gpu.BackendInfo {
	return gpu.BackendInfo{
		Name:        BackendName,
		Description: "OpenCL support not compiled in; rebuild with -tags opencl",
	}
}

func (Backend) Devices() ([]gpu.DeviceInfo, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags opencl", gpu.ErrBackendUnavailable)
}

func (Backend) NewContext(gpu.DeviceInfo) (gpu.Context, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags opencl", gpu.ErrBackendUnavailable)
}
