// Package cpu is a host-memory reference backend for the gpu interfaces.
//
// It executes the cloth kernels in Go, one goroutine per block of rows,
// and enforces the same acquire/release discipline a GL-sharing device
// requires. Tests and headless runs use it in place of OpenCL.
package cpu

import (
	"runtime"

	"clothsim/gpu"
)

// BackendName is the registry name of this backend.
const BackendName = "cpu"

func init() {
	gpu.Register(BackendName, func() gpu.Backend { return NewBackend(0) })
}

// Backend implements gpu.Backend on the host.
type Backend struct {
	workers int
	device  gpu.DeviceInfo
}

// NewBackend returns a backend dispatching on up to workers goroutines.
// workers <= 0 uses runtime.NumCPU.
func NewBackend(workers int) *Backend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Backend{
		workers: workers,
		device: gpu.DeviceInfo{
			Platform:  "host",
			Name:      "Host CPU",
			Vendor:    "clothsim",
			Type:      gpu.DeviceCPU,
			GLSharing: true,
		},
	}
}

func (b *Backend) Info() gpu.BackendInfo {
	return gpu.BackendInfo{
		Name:        BackendName,
		Version:     "1.0",
		Description: "host reference backend",
	}
}

func (b *Backend) Devices() ([]gpu.DeviceInfo, error) {
	return []gpu.DeviceInfo{b.device}, nil
}

func (b *Backend) NewContext(device gpu.DeviceInfo) (gpu.Context, error) {
	if device.Index != 0 || device.Name != b.device.Name {
		return nil, gpu.ErrNoDevice
	}
	return &Context{device: b.device, workers: b.workers}, nil
}
