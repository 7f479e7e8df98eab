package gpu

import "strings"

// DeviceType classifies a compute device.
type DeviceType uint8

const (
	DeviceOther DeviceType = iota
	DeviceGPU
	DeviceCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceGPU:
		return "gpu"
	case DeviceCPU:
		return "cpu"
	default:
		return "other"
	}
}

// DeviceInfo describes a compute device.
type DeviceInfo struct {
	// Index is the position in the backend's flat device list.
	Index int
	// PlatformIndex and DeviceIndex locate the device inside its platform.
	PlatformIndex int
	DeviceIndex   int

	Platform   string
	Name       string
	Vendor     string
	Type       DeviceType
	MemoryMB   int
	Extensions string

	// GLSharing reports whether the device can share buffers with OpenGL.
	GLSharing bool
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// Interop extension names reported by OpenCL drivers.
const (
	ExtGLSharingKHR   = "cl_khr_gl_sharing"
	ExtGLSharingApple = "cl_APPLE_gl_sharing"
)

// HasGLSharing reports whether an extension string advertises GL interop.
func HasGLSharing(extensions string) bool {
	for _, ext := range strings.Fields(extensions) {
		if ext == ExtGLSharingKHR || ext == ExtGLSharingApple {
			return true
		}
	}
	return false
}
