package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPlatform is returned when no compute platform is installed.
	ErrNoPlatform = errors.New("clothsim/gpu: no compute platform found")

	// ErrNoDevice is returned when a platform exposes no usable device.
	ErrNoDevice = errors.New("clothsim/gpu: no compute device found")

	// ErrNoInteropDevice is returned when no device can share buffers with OpenGL.
	ErrNoInteropDevice = errors.New("clothsim/gpu: no device supports OpenGL sharing")

	// ErrBuildFailed is wrapped by BuildError.
	ErrBuildFailed = errors.New("clothsim/gpu: program build failed")

	// ErrKernelNotFound is returned when a program lacks the requested entry point.
	ErrKernelNotFound = errors.New("clothsim/gpu: kernel not found")

	// ErrSourceRead is returned when kernel source cannot be read.
	ErrSourceRead = errors.New("clothsim/gpu: cannot read kernel source")

	// ErrBackendUnavailable is returned when a backend is registered but not
	// usable on this system (driver missing, built without support).
	ErrBackendUnavailable = errors.New("clothsim/gpu: backend unavailable")

	// ErrUnknownBackend is returned by Lookup for unregistered names.
	ErrUnknownBackend = errors.New("clothsim/gpu: unknown backend")

	// ErrInvalidArgument is returned for malformed arguments and buffer sizes.
	ErrInvalidArgument = errors.New("clothsim/gpu: invalid argument")

	// ErrNotAcquired is returned when a shared buffer is used by the queue
	// outside an acquire/release pair.
	ErrNotAcquired = errors.New("clothsim/gpu: shared buffer not acquired")
)

// BuildError carries the compiler log of a failed program build.
type BuildError struct {
	Log string
}

func (e *BuildError) Error() string {
	if e.Log == "" {
		return ErrBuildFailed.Error()
	}
	return fmt.Sprintf("%s:\n%s", ErrBuildFailed, e.Log)
}

func (e *BuildError) Unwrap() error { return ErrBuildFailed }

// DeviceError is a failure reported by the compute driver.
type DeviceError struct {
	Op   string
	Code int
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("clothsim/gpu: %s: %s (%d)", e.Op, CodeName(e.Code), e.Code)
}

var codeNames = map[int]string{
	0:   "CL_SUCCESS",
	-1:  "CL_DEVICE_NOT_FOUND",
	-2:  "CL_DEVICE_NOT_AVAILABLE",
	-3:  "CL_COMPILER_NOT_AVAILABLE",
	-4:  "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	-5:  "CL_OUT_OF_RESOURCES",
	-6:  "CL_OUT_OF_HOST_MEMORY",
	-7:  "CL_PROFILING_INFO_NOT_AVAILABLE",
	-8:  "CL_MEM_COPY_OVERLAP",
	-9:  "CL_IMAGE_FORMAT_MISMATCH",
	-10: "CL_IMAGE_FORMAT_NOT_SUPPORTED",
	-11: "CL_BUILD_PROGRAM_FAILURE",
	-12: "CL_MAP_FAILURE",
	-13: "CL_MISALIGNED_SUB_BUFFER_OFFSET",
	-14: "CL_EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST",
	-30: "CL_INVALID_VALUE",
	-31: "CL_INVALID_DEVICE_TYPE",
	-32: "CL_INVALID_PLATFORM",
	-33: "CL_INVALID_DEVICE",
	-34: "CL_INVALID_CONTEXT",
	-35: "CL_INVALID_QUEUE_PROPERTIES",
	-36: "CL_INVALID_COMMAND_QUEUE",
	-37: "CL_INVALID_HOST_PTR",
	-38: "CL_INVALID_MEM_OBJECT",
	-39: "CL_INVALID_IMAGE_FORMAT_DESCRIPTOR",
	-40: "CL_INVALID_IMAGE_SIZE",
	-41: "CL_INVALID_SAMPLER",
	-42: "CL_INVALID_BINARY",
	-43: "CL_INVALID_BUILD_OPTIONS",
	-44: "CL_INVALID_PROGRAM",
	-45: "CL_INVALID_PROGRAM_EXECUTABLE",
	-46: "CL_INVALID_KERNEL_NAME",
	-47: "CL_INVALID_KERNEL_DEFINITION",
	-48: "CL_INVALID_KERNEL",
	-49: "CL_INVALID_ARG_INDEX",
	-50: "CL_INVALID_ARG_VALUE",
	-51: "CL_INVALID_ARG_SIZE",
	-52: "CL_INVALID_KERNEL_ARGS",
	-53: "CL_INVALID_WORK_DIMENSION",
	-54: "CL_INVALID_WORK_GROUP_SIZE",
	-55: "CL_INVALID_WORK_ITEM_SIZE",
	-56: "CL_INVALID_GLOBAL_OFFSET",
	-57: "CL_INVALID_EVENT_WAIT_LIST",
	-58: "CL_INVALID_EVENT",
	-59: "CL_INVALID_OPERATION",
	-60: "CL_INVALID_GL_OBJECT",
	-61: "CL_INVALID_BUFFER_SIZE",
	-62: "CL_INVALID_MIP_LEVEL",
	-63: "CL_INVALID_GLOBAL_WORK_SIZE",
	-64: "CL_INVALID_PROPERTY",
	-1000: "CL_INVALID_GL_SHAREGROUP_REFERENCE_KHR",
	-1001: "CL_PLATFORM_NOT_FOUND_KHR",
}

// CodeName returns the symbolic name of a native driver error code.
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "CL_UNKNOWN_ERROR"
}
