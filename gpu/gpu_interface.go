package gpu

// Backend is implemented by compute backends (OpenCL, host reference).
// It is responsible for device discovery and context creation.
type Backend interface {
	Info() BackendInfo
	Devices() ([]DeviceInfo, error)
	// NewContext creates a context on the given device. The context must
	// share memory with the current OpenGL context.
	NewContext(device DeviceInfo) (Context, error)
}

// Context is a device context able to build programs and own buffers.
type Context interface {
	Device() DeviceInfo
	BuildProgram(source string) (Program, error)
	// NewBuffer allocates a plain device buffer of size bytes.
	NewBuffer(size int) (Buffer, error)
	// ShareVertexBuffer wraps a render-owned vertex buffer without copying it.
	ShareVertexBuffer(src VertexSource) (Buffer, error)
	NewQueue() (Queue, error)
	Close() error
}

// VertexSource is the render side of a shared buffer.
type VertexSource interface {
	VertexBuffer() uint32
	VertexBytes() int
}

// Program is a compiled compute program.
type Program interface {
	Kernels() []string
	CreateKernel(name string) (Kernel, error)
	BuildLog() string
	Close() error
}

// Kernel is a program entry point with bound arguments.
// Supported argument values are Buffer, int32 and float32.
type Kernel interface {
	Name() string
	SetArg(index int, value any) error
	Close() error
}

// Buffer is a device memory object.
type Buffer interface {
	Size() int
	Shared() bool
	Close() error
}

// Range is a two-dimensional dispatch range.
type Range struct {
	Offset [2]int
	Global [2]int
}

// Queue is an in-order command queue. Operations are enqueued in program
// order; Finish blocks until all of them completed.
type Queue interface {
	WriteFloat32(dst Buffer, data []float32) error
	// ReadFloat32 is blocking.
	ReadFloat32(src Buffer, data []float32) error
	CopyBuffer(src, dst Buffer, size int) error
	Dispatch(k Kernel, r Range) error
	AcquireShared(bufs ...Buffer) error
	ReleaseShared(bufs ...Buffer) error
	Barrier() error
	Finish() error
	Close() error
}
