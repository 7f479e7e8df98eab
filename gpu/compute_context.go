package gpu

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ComputeContext owns the device context and the compiled program of one
// simulation. All methods block until the driver has completed them.
type ComputeContext struct {
	backend Backend
	device  DeviceInfo
	ctx     Context
	program Program
	log     *zap.Logger
}

// Initialize discovers devices, selects one and creates a context that
// shares memory with the current OpenGL context.
func Initialize(b Backend, deviceIndex int, log *zap.Logger) (*ComputeContext, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if b == nil {
		return nil, ErrBackendUnavailable
	}

	devices, err := b.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating %s devices: %w", b.Info().Name, err)
	}
	device, err := SelectDevice(devices, deviceIndex)
	if err != nil {
		return nil, err
	}
	log.Info("using compute device",
		zap.String("backend", b.Info().Name),
		zap.String("platform", device.Platform),
		zap.String("device", device.Name),
		zap.Stringer("type", device.Type),
		zap.Bool("glSharing", device.GLSharing))

	ctx, err := b.NewContext(device)
	if err != nil {
		return nil, fmt.Errorf("creating shared context on %q: %w", device.Name, err)
	}

	return &ComputeContext{
		backend: b,
		device:  device,
		ctx:     ctx,
		log:     log,
	}, nil
}

// Device returns the selected device.
func (c *ComputeContext) Device() DeviceInfo { return c.device }

// Context returns the underlying backend context.
func (c *ComputeContext) Context() Context { return c.ctx }

// BuildProgram compiles source. A previously built program is released.
func (c *ComputeContext) BuildProgram(source string) error {
	p, err := c.ctx.BuildProgram(source)
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			c.log.Error("program build failed", zap.String("log", be.Log))
		}
		return err
	}
	if c.program != nil {
		_ = c.program.Close()
	}
	c.program = p
	c.log.Debug("program built", zap.Strings("kernels", p.Kernels()))
	return nil
}

// BuildProgramFile reads kernel source from path and compiles it.
func (c *ComputeContext) BuildProgramFile(path string) error {
	source, err := LoadSource(path)
	if err != nil {
		return err
	}
	return c.BuildProgram(source)
}

// CreateKernel binds an entry point of the built program.
func (c *ComputeContext) CreateKernel(name string) (Kernel, error) {
	if c.program == nil {
		return nil, fmt.Errorf("%w: %q (no program built)", ErrKernelNotFound, name)
	}
	return c.program.CreateKernel(name)
}

// Close releases the program and the context.
func (c *ComputeContext) Close() error {
	var errs []error
	if c.program != nil {
		errs = append(errs, c.program.Close())
		c.program = nil
	}
	if c.ctx != nil {
		errs = append(errs, c.ctx.Close())
		c.ctx = nil
	}
	return errors.Join(errs...)
}

// LoadSource reads a kernel source file.
func LoadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSourceRead, path, err)
	}
	return string(data), nil
}
