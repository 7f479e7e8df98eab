package cpu

import (
	"fmt"
	"regexp"
	"strings"

	"clothsim/gpu"
)

// Context implements gpu.Context.
type Context struct {
	device  gpu.DeviceInfo
	workers int
	closed  bool
}

// HostVertexSource is implemented by render meshes whose vertex data lives
// in host memory. The CPU backend shares such slices instead of GL objects.
type HostVertexSource interface {
	gpu.VertexSource
	HostVertices() []float32
	setComputeHeld(bool)
}

func (c *Context) Device() gpu.DeviceInfo { return c.device }

var entryPattern = regexp.MustCompile(`__kernel\s+void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// BuildProgram scans source for kernel entry points. A source without any
// entry point fails the build the way a driver compiler would.
func (c *Context) BuildProgram(source string) (gpu.Program, error) {
	if c.closed {
		return nil, gpu.ErrBackendUnavailable
	}
	matches := entryPattern.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return nil, &gpu.BuildError{Log: "error: no __kernel entry points in program source"}
	}
	p := &Program{}
	var log strings.Builder
	for _, m := range matches {
		name := m[1]
		if _, ok := kernelTable[name]; !ok {
			fmt.Fprintf(&log, "warning: kernel %q has no host implementation\n", name)
		}
		p.entries = append(p.entries, name)
	}
	p.log = log.String()
	return p, nil
}

func (c *Context) NewBuffer(size int) (gpu.Buffer, error) {
	if size <= 0 || size%4 != 0 {
		return nil, fmt.Errorf("%w: buffer size %d", gpu.ErrInvalidArgument, size)
	}
	return &Buffer{data: make([]float32, size/4)}, nil
}

func (c *Context) ShareVertexBuffer(src gpu.VertexSource) (gpu.Buffer, error) {
	host, ok := src.(HostVertexSource)
	if !ok {
		return nil, fmt.Errorf("%w: vertex source %T is not host memory", gpu.ErrInvalidArgument, src)
	}
	data := host.HostVertices()
	if len(data)*4 != src.VertexBytes() {
		return nil, fmt.Errorf("%w: vertex source reports %d bytes, holds %d", gpu.ErrInvalidArgument, src.VertexBytes(), len(data)*4)
	}
	return &Buffer{data: data, shared: true, owner: host}, nil
}

func (c *Context) NewQueue() (gpu.Queue, error) {
	return &Queue{workers: c.workers, acquired: map[*Buffer]bool{}}, nil
}

func (c *Context) Close() error {
	c.closed = true
	return nil
}

// Program implements gpu.Program.
type Program struct {
	entries []string
	log     string
}

func (p *Program) Kernels() []string { return append([]string(nil), p.entries...) }

func (p *Program) BuildLog() string { return p.log }

func (p *Program) CreateKernel(name string) (gpu.Kernel, error) {
	found := false
	for _, e := range p.entries {
		if e == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", gpu.ErrKernelNotFound, name)
	}
	impl, ok := kernelTable[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no host implementation", gpu.ErrKernelNotFound, name)
	}
	return &Kernel{name: name, impl: impl, args: make([]any, impl.arity)}, nil
}

func (p *Program) Close() error { return nil }

// Buffer implements gpu.Buffer over a float32 slice.
type Buffer struct {
	data   []float32
	shared bool
	owner  HostVertexSource
}

func (b *Buffer) Size() int    { return len(b.data) * 4 }
func (b *Buffer) Shared() bool { return b.shared }

func (b *Buffer) Close() error {
	b.data = nil
	b.owner = nil
	return nil
}

// Kernel implements gpu.Kernel.
type Kernel struct {
	name string
	impl kernelImpl
	args []any
}

func (k *Kernel) Name() string { return k.name }

func (k *Kernel) SetArg(index int, value any) error {
	if index < 0 || index >= len(k.args) {
		return fmt.Errorf("%w: %s argument index %d", gpu.ErrInvalidArgument, k.name, index)
	}
	switch v := value.(type) {
	case *Buffer, int32, float32:
		k.args[index] = v
	case gpu.Buffer:
		return fmt.Errorf("%w: %s argument %d: foreign buffer %T", gpu.ErrInvalidArgument, k.name, index, value)
	default:
		return fmt.Errorf("%w: %s argument %d: unsupported type %T", gpu.ErrInvalidArgument, k.name, index, value)
	}
	return nil
}

func (k *Kernel) Close() error {
	k.args = nil
	return nil
}
