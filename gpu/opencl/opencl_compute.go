//go:build opencl

// Package opencl implements the gpu backend on the system OpenCL driver,
// with buffers shared with the current OpenGL context.
package opencl

/*
#cgo darwin CFLAGS: -DCL_SILENCE_DEPRECATION -DGL_SILENCE_DEPRECATION
#cgo darwin LDFLAGS: -framework OpenCL -framework OpenGL
#cgo linux CFLAGS: -DCL_TARGET_OPENCL_VERSION=120
#cgo linux LDFLAGS: -lOpenCL -lGL

#ifdef __APPLE__
#include <OpenCL/opencl.h>
#include <OpenGL/OpenGL.h>
#else
#include <CL/cl.h>
#include <CL/cl_gl.h>
#include <GL/glx.h>
#endif
#include <stdlib.h>

static cl_context create_shared_context(cl_platform_id platform, cl_device_id device, cl_int* err) {
#ifdef __APPLE__
    CGLShareGroupObj group = CGLGetShareGroup(CGLGetCurrentContext());
    cl_context_properties props[] = {
        CL_CONTEXT_PROPERTY_USE_CGL_SHAREGROUP_APPLE, (cl_context_properties)group,
        0
    };
#else
    cl_context_properties props[] = {
        CL_GL_CONTEXT_KHR, (cl_context_properties)glXGetCurrentContext(),
        CL_GLX_DISPLAY_KHR, (cl_context_properties)glXGetCurrentDisplay(),
        CL_CONTEXT_PLATFORM, (cl_context_properties)platform,
        0
    };
#endif
    return clCreateContext(props, 1, &device, NULL, NULL, err);
}

static char* platform_string(cl_platform_id p, cl_platform_info param) {
    size_t n = 0;
    if (clGetPlatformInfo(p, param, 0, NULL, &n) != CL_SUCCESS || n == 0) return NULL;
    char* s = malloc(n);
    if (clGetPlatformInfo(p, param, n, s, NULL) != CL_SUCCESS) { free(s); return NULL; }
    return s;
}

static char* device_string(cl_device_id d, cl_device_info param) {
    size_t n = 0;
    if (clGetDeviceInfo(d, param, 0, NULL, &n) != CL_SUCCESS || n == 0) return NULL;
    char* s = malloc(n);
    if (clGetDeviceInfo(d, param, n, s, NULL) != CL_SUCCESS) { free(s); return NULL; }
    return s;
}

static cl_device_type device_type(cl_device_id d) {
    cl_device_type t = 0;
    clGetDeviceInfo(d, CL_DEVICE_TYPE, sizeof(t), &t, NULL);
    return t;
}

static cl_ulong device_memory(cl_device_id d) {
    cl_ulong m = 0;
    clGetDeviceInfo(d, CL_DEVICE_GLOBAL_MEM_SIZE, sizeof(m), &m, NULL);
    return m;
}

static cl_program build_program(cl_context ctx, cl_device_id device, const char* src, cl_int* err) {
    cl_program p = clCreateProgramWithSource(ctx, 1, &src, NULL, err);
    if (*err != CL_SUCCESS) return NULL;
    *err = clBuildProgram(p, 1, &device, NULL, NULL, NULL);
    return p;
}

static char* build_log(cl_program p, cl_device_id d) {
    size_t n = 0;
    if (clGetProgramBuildInfo(p, d, CL_PROGRAM_BUILD_LOG, 0, NULL, &n) != CL_SUCCESS || n == 0) return NULL;
    char* s = malloc(n);
    if (clGetProgramBuildInfo(p, d, CL_PROGRAM_BUILD_LOG, n, s, NULL) != CL_SUCCESS) { free(s); return NULL; }
    return s;
}

static char* kernel_names(cl_program p) {
    size_t n = 0;
    if (clGetProgramInfo(p, CL_PROGRAM_KERNEL_NAMES, 0, NULL, &n) != CL_SUCCESS || n == 0) return NULL;
    char* s = malloc(n);
    if (clGetProgramInfo(p, CL_PROGRAM_KERNEL_NAMES, n, s, NULL) != CL_SUCCESS) { free(s); return NULL; }
    return s;
}

static cl_int set_arg_mem(cl_kernel k, cl_uint i, cl_mem m) { return clSetKernelArg(k, i, sizeof(cl_mem), &m); }
static cl_int set_arg_int(cl_kernel k, cl_uint i, cl_int v) { return clSetKernelArg(k, i, sizeof(cl_int), &v); }
static cl_int set_arg_float(cl_kernel k, cl_uint i, cl_float v) { return clSetKernelArg(k, i, sizeof(cl_float), &v); }

static cl_int enqueue_2d(cl_command_queue q, cl_kernel k, size_t ox, size_t oy, size_t gx, size_t gy) {
    size_t offset[2] = { ox, oy };
    size_t global[2] = { gx, gy };
    return clEnqueueNDRangeKernel(q, k, 2, offset, global, NULL, 0, NULL, NULL);
}

static cl_int acquire_one(cl_command_queue q, cl_mem m) { return clEnqueueAcquireGLObjects(q, 1, &m, 0, NULL, NULL); }
static cl_int release_one(cl_command_queue q, cl_mem m) { return clEnqueueReleaseGLObjects(q, 1, &m, 0, NULL, NULL); }
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"clothsim/gpu"
)

// BackendName is the registry name of this backend.
const BackendName = "opencl"

const (
	maxIDs = 16

	// CL_PLATFORM_NOT_FOUND_KHR, returned by the ICD loader when no
	// platform is installed.
	platformNotFound = -1001
)

func init() {
	gpu.Register(BackendName, func() gpu.Backend { return &Backend{} })
}

// Backend implements gpu.Backend on the OpenCL ICD loader.
type Backend struct{}

func (b *Backend) Info() gpu.BackendInfo {
	return gpu.BackendInfo{
		Name:        BackendName,
		Version:     "1.2",
		Description: "OpenCL with OpenGL buffer sharing",
	}
}

func failed(op string, code C.cl_int) error {
	if code == C.CL_SUCCESS {
		return nil
	}
	return &gpu.DeviceError{Op: op, Code: int(code)}
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(s))
	return C.GoString(s)
}

// returned is how many ids a clGet*IDs call filled in. The driver reports
// the total count, which may exceed the array passed to it.
func returned(total uint32) int {
	return min(int(total), maxIDs)
}

func platforms() ([]C.cl_platform_id, error) {
	var ids [maxIDs]C.cl_platform_id
	var n C.cl_uint
	code := C.clGetPlatformIDs(maxIDs, &ids[0], &n)
	if code == platformNotFound || (code == C.CL_SUCCESS && n == 0) {
		return nil, gpu.ErrNoPlatform
	}
	if err := failed("clGetPlatformIDs", code); err != nil {
		return nil, err
	}
	return append([]C.cl_platform_id(nil), ids[:returned(uint32(n))]...), nil
}

func devicesOf(p C.cl_platform_id) ([]C.cl_device_id, error) {
	var ids [maxIDs]C.cl_device_id
	var n C.cl_uint
	code := C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_ALL, maxIDs, &ids[0], &n)
	if code == C.CL_DEVICE_NOT_FOUND {
		return nil, nil
	}
	if err := failed("clGetDeviceIDs", code); err != nil {
		return nil, err
	}
	return append([]C.cl_device_id(nil), ids[:returned(uint32(n))]...), nil
}

// Devices enumerates every device of every platform.
func (b *Backend) Devices() ([]gpu.DeviceInfo, error) {
	plats, err := platforms()
	if err != nil {
		return nil, err
	}
	var out []gpu.DeviceInfo
	for pi, p := range plats {
		platformName := goString(C.platform_string(p, C.CL_PLATFORM_NAME))
		devs, err := devicesOf(p)
		if err != nil {
			return nil, err
		}
		for di, d := range devs {
			ext := goString(C.device_string(d, C.CL_DEVICE_EXTENSIONS))
			info := gpu.DeviceInfo{
				Index:         len(out),
				PlatformIndex: pi,
				DeviceIndex:   di,
				Platform:      strings.TrimSpace(platformName),
				Name:          strings.TrimSpace(goString(C.device_string(d, C.CL_DEVICE_NAME))),
				Vendor:        strings.TrimSpace(goString(C.device_string(d, C.CL_DEVICE_VENDOR))),
				MemoryMB:      int(C.device_memory(d) >> 20),
				Extensions:    ext,
				GLSharing:     gpu.HasGLSharing(ext),
			}
			switch t := C.device_type(d); {
			case t&C.CL_DEVICE_TYPE_GPU != 0:
				info.Type = gpu.DeviceGPU
			case t&C.CL_DEVICE_TYPE_CPU != 0:
				info.Type = gpu.DeviceCPU
			}
			out = append(out, info)
		}
	}
	if len(out) == 0 {
		return nil, gpu.ErrNoDevice
	}
	return out, nil
}

// NewContext creates a context sharing memory with the OpenGL context that
// is current on the calling thread.
func (b *Backend) NewContext(device gpu.DeviceInfo) (gpu.Context, error) {
	plats, err := platforms()
	if err != nil {
		return nil, err
	}
	if device.PlatformIndex >= len(plats) {
		return nil, fmt.Errorf("%w: platform %d", gpu.ErrNoDevice, device.PlatformIndex)
	}
	platform := plats[device.PlatformIndex]
	devs, err := devicesOf(platform)
	if err != nil {
		return nil, err
	}
	if device.DeviceIndex >= len(devs) {
		return nil, fmt.Errorf("%w: device %d on platform %d", gpu.ErrNoDevice, device.DeviceIndex, device.PlatformIndex)
	}
	id := devs[device.DeviceIndex]

	var code C.cl_int
	ctx := C.create_shared_context(platform, id, &code)
	if err := failed("clCreateContext", code); err != nil {
		return nil, err
	}
	return &Context{ctx: ctx, device: id, info: device}, nil
}

// Context implements gpu.Context.
type Context struct {
	ctx    C.cl_context
	device C.cl_device_id
	info   gpu.DeviceInfo
}

func (c *Context) Device() gpu.DeviceInfo { return c.info }

func (c *Context) BuildProgram(source string) (gpu.Program, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))

	var code C.cl_int
	p := C.build_program(c.ctx, c.device, src, &code)
	if code == C.CL_BUILD_PROGRAM_FAILURE {
		log := goString(C.build_log(p, c.device))
		C.clReleaseProgram(p)
		return nil, &gpu.BuildError{Log: log}
	}
	if err := failed("clBuildProgram", code); err != nil {
		if p != nil {
			C.clReleaseProgram(p)
		}
		return nil, err
	}
	return &Program{p: p, log: goString(C.build_log(p, c.device))}, nil
}

func (c *Context) NewBuffer(size int) (gpu.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", gpu.ErrInvalidArgument, size)
	}
	var code C.cl_int
	mem := C.clCreateBuffer(c.ctx, C.CL_MEM_READ_WRITE, C.size_t(size), nil, &code)
	if err := failed("clCreateBuffer", code); err != nil {
		return nil, err
	}
	return &Buffer{mem: mem, size: size}, nil
}

// ShareVertexBuffer wraps the GL buffer object named by src.
func (c *Context) ShareVertexBuffer(src gpu.VertexSource) (gpu.Buffer, error) {
	var code C.cl_int
	mem := C.clCreateFromGLBuffer(c.ctx, C.CL_MEM_READ_WRITE, C.cl_GLuint(src.VertexBuffer()), &code)
	if err := failed("clCreateFromGLBuffer", code); err != nil {
		return nil, err
	}
	return &Buffer{mem: mem, size: src.VertexBytes(), shared: true}, nil
}

func (c *Context) NewQueue() (gpu.Queue, error) {
	var code C.cl_int
	q := C.clCreateCommandQueue(c.ctx, c.device, 0, &code)
	if err := failed("clCreateCommandQueue", code); err != nil {
		return nil, err
	}
	return &Queue{q: q, acquired: map[*Buffer]bool{}}, nil
}

func (c *Context) Close() error {
	if c.ctx == nil {
		return nil
	}
	err := failed("clReleaseContext", C.clReleaseContext(c.ctx))
	c.ctx = nil
	return err
}

// Program implements gpu.Program.
type Program struct {
	p   C.cl_program
	log string
}

func (p *Program) Kernels() []string {
	names := goString(C.kernel_names(p.p))
	if names == "" {
		return nil
	}
	return strings.Split(names, ";")
}

func (p *Program) BuildLog() string { return p.log }

func (p *Program) CreateKernel(name string) (gpu.Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var code C.cl_int
	k := C.clCreateKernel(p.p, cname, &code)
	if code == C.CL_INVALID_KERNEL_NAME {
		return nil, fmt.Errorf("%w: %q", gpu.ErrKernelNotFound, name)
	}
	if err := failed("clCreateKernel "+name, code); err != nil {
		return nil, err
	}
	return &Kernel{k: k, name: name, buffers: map[int]*Buffer{}}, nil
}

func (p *Program) Close() error {
	if p.p == nil {
		return nil
	}
	err := failed("clReleaseProgram", C.clReleaseProgram(p.p))
	p.p = nil
	return err
}

// Kernel implements gpu.Kernel.
type Kernel struct {
	k       C.cl_kernel
	name    string
	buffers map[int]*Buffer
}

func (k *Kernel) Name() string { return k.name }

func (k *Kernel) SetArg(index int, value any) error {
	op := fmt.Sprintf("clSetKernelArg %s[%d]", k.name, index)
	i := C.cl_uint(index)
	switch v := value.(type) {
	case *Buffer:
		if err := failed(op, C.set_arg_mem(k.k, i, v.mem)); err != nil {
			return err
		}
		k.buffers[index] = v
	case int32:
		delete(k.buffers, index)
		return failed(op, C.set_arg_int(k.k, i, C.cl_int(v)))
	case float32:
		delete(k.buffers, index)
		return failed(op, C.set_arg_float(k.k, i, C.cl_float(v)))
	default:
		return fmt.Errorf("%w: %s argument %d: unsupported type %T", gpu.ErrInvalidArgument, k.name, index, value)
	}
	return nil
}

func (k *Kernel) Close() error {
	if k.k == nil {
		return nil
	}
	err := failed("clReleaseKernel", C.clReleaseKernel(k.k))
	k.k = nil
	return err
}

// Buffer implements gpu.Buffer.
type Buffer struct {
	mem    C.cl_mem
	size   int
	shared bool
}

func (b *Buffer) Size() int    { return b.size }
func (b *Buffer) Shared() bool { return b.shared }

func (b *Buffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := failed("clReleaseMemObject", C.clReleaseMemObject(b.mem))
	b.mem = nil
	return err
}

func asBuffer(b gpu.Buffer) (*Buffer, error) {
	cb, ok := b.(*Buffer)
	if !ok || cb == nil || cb.mem == nil {
		return nil, fmt.Errorf("%w: buffer %T does not belong to the OpenCL backend", gpu.ErrInvalidArgument, b)
	}
	return cb, nil
}

// Queue implements gpu.Queue on an in-order command queue.
type Queue struct {
	q        C.cl_command_queue
	acquired map[*Buffer]bool
}

func (q *Queue) check(b *Buffer) error {
	if b.shared && !q.acquired[b] {
		return gpu.ErrNotAcquired
	}
	return nil
}

func (q *Queue) WriteFloat32(dst gpu.Buffer, data []float32) error {
	b, err := asBuffer(dst)
	if err != nil {
		return err
	}
	if err := q.check(b); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if len(data)*4 > b.size {
		return fmt.Errorf("%w: write of %d bytes into %d", gpu.ErrInvalidArgument, len(data)*4, b.size)
	}
	code := C.clEnqueueWriteBuffer(q.q, b.mem, C.CL_TRUE, 0, C.size_t(len(data)*4), unsafe.Pointer(&data[0]), 0, nil, nil)
	return failed("clEnqueueWriteBuffer", code)
}

func (q *Queue) ReadFloat32(src gpu.Buffer, data []float32) error {
	b, err := asBuffer(src)
	if err != nil {
		return err
	}
	if err := q.check(b); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if len(data)*4 > b.size {
		return fmt.Errorf("%w: read of %d bytes from %d", gpu.ErrInvalidArgument, len(data)*4, b.size)
	}
	code := C.clEnqueueReadBuffer(q.q, b.mem, C.CL_TRUE, 0, C.size_t(len(data)*4), unsafe.Pointer(&data[0]), 0, nil, nil)
	return failed("clEnqueueReadBuffer", code)
}

func (q *Queue) CopyBuffer(src, dst gpu.Buffer, size int) error {
	s, err := asBuffer(src)
	if err != nil {
		return err
	}
	d, err := asBuffer(dst)
	if err != nil {
		return err
	}
	if err := q.check(s); err != nil {
		return err
	}
	if err := q.check(d); err != nil {
		return err
	}
	code := C.clEnqueueCopyBuffer(q.q, s.mem, d.mem, 0, 0, C.size_t(size), 0, nil, nil)
	return failed("clEnqueueCopyBuffer", code)
}

func (q *Queue) Dispatch(k gpu.Kernel, r gpu.Range) error {
	ck, ok := k.(*Kernel)
	if !ok || ck.k == nil {
		return fmt.Errorf("%w: kernel %T does not belong to the OpenCL backend", gpu.ErrInvalidArgument, k)
	}
	for i, b := range ck.buffers {
		if err := q.check(b); err != nil {
			return fmt.Errorf("%s argument %d: %w", ck.name, i, err)
		}
	}
	if r.Global[0] <= 0 || r.Global[1] <= 0 {
		return nil
	}
	code := C.enqueue_2d(q.q, ck.k,
		C.size_t(r.Offset[0]), C.size_t(r.Offset[1]),
		C.size_t(r.Global[0]), C.size_t(r.Global[1]))
	return failed("clEnqueueNDRangeKernel "+ck.name, code)
}

func (q *Queue) AcquireShared(bufs ...gpu.Buffer) error {
	for _, buf := range bufs {
		b, err := asBuffer(buf)
		if err != nil {
			return err
		}
		if !b.shared || q.acquired[b] {
			return fmt.Errorf("%w: acquire of a non-shared or held buffer", gpu.ErrInvalidArgument)
		}
		if err := failed("clEnqueueAcquireGLObjects", C.acquire_one(q.q, b.mem)); err != nil {
			return err
		}
		q.acquired[b] = true
	}
	return nil
}

func (q *Queue) ReleaseShared(bufs ...gpu.Buffer) error {
	for _, buf := range bufs {
		b, err := asBuffer(buf)
		if err != nil {
			return err
		}
		if !q.acquired[b] {
			return gpu.ErrNotAcquired
		}
		if err := failed("clEnqueueReleaseGLObjects", C.release_one(q.q, b.mem)); err != nil {
			return err
		}
		delete(q.acquired, b)
	}
	return nil
}

func (q *Queue) Barrier() error {
	return failed("clEnqueueBarrierWithWaitList", C.clEnqueueBarrierWithWaitList(q.q, 0, nil, nil))
}

func (q *Queue) Finish() error {
	return failed("clFinish", C.clFinish(q.q))
}

func (q *Queue) Close() error {
	if q.q == nil {
		return nil
	}
	err := failed("clReleaseCommandQueue", C.clReleaseCommandQueue(q.q))
	q.q = nil
	return err
}
