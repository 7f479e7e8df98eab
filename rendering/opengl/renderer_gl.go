// Package opengl owns the window, the GL context and the cloth's render
// resources.
package opengl

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"clothsim/rendering/camera"
)

// WindowConfig describes the window to open.
type WindowConfig struct {
	Width, Height int
	Title         string
	VSync         bool
	Wireframe     bool
}

// Window is a GLFW window with a current 4.1 core context. All methods must
// be called from the thread that created it.
type Window struct {
	window *glfw.Window
	cam    *camera.Camera
	log    *zap.Logger

	width, height int

	// Mouse look is active while the cursor is captured.
	captured   bool
	firstMouse bool
	lastMouseX float64
	lastMouseY float64

	onPause func()
}

// NewWindow initialises GLFW, creates the window and loads GL. The caller
// must have locked the OS thread.
func NewWindow(cfg WindowConfig, log *zap.Logger) (*Window, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize GLFW")
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Samples, 0)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "failed to create window")
	}
	window.MakeContextCurrent()
	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, errors.Wrap(err, "failed to initialize OpenGL")
	}
	log.Info("opengl ready",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	w := &Window{
		window:     window,
		log:        log,
		firstMouse: true,
	}
	w.width, w.height = window.GetFramebufferSize()

	gl.Enable(gl.DEPTH_TEST)
	gl.Viewport(0, 0, int32(w.width), int32(w.height))
	if cfg.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	}

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.onResize(width, height)
	})
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		w.onKey(key, action)
	})
	window.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		w.onScroll(yoff)
	})
	window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		w.onMouseButton(button, action)
	})
	window.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		w.onMouseMove(xpos, ypos)
	})

	return w, nil
}

// AttachCamera gives input control of c and sets its aspect.
func (w *Window) AttachCamera(c *camera.Camera) {
	w.cam = c
	if w.height > 0 {
		c.SetAspect(float32(w.width) / float32(w.height))
	}
}

// Aspect is the framebuffer's width over height.
func (w *Window) Aspect() float32 {
	if w.height == 0 {
		return 1
	}
	return float32(w.width) / float32(w.height)
}

// OnPause is called when the pause key is pressed.
func (w *Window) OnPause(fn func()) { w.onPause = fn }

// ProcessInput applies held movement keys for a frame of dt seconds.
func (w *Window) ProcessInput(dt float32) {
	if w.cam == nil {
		return
	}
	switch {
	case w.window.GetKey(glfw.KeyLeftShift) == glfw.Press:
		w.cam.SetFaster(true)
	case w.window.GetKey(glfw.KeyLeftControl) == glfw.Press:
		w.cam.SetSlower(true)
	default:
		w.cam.SetFaster(false)
	}

	moves := []struct {
		key glfw.Key
		dir camera.Direction
	}{
		{glfw.KeyW, camera.Forward},
		{glfw.KeyS, camera.Back},
		{glfw.KeyA, camera.Left},
		{glfw.KeyD, camera.Right},
	}
	for _, m := range moves {
		if w.window.GetKey(m.key) == glfw.Press {
			w.cam.Move(m.dir, dt)
		}
	}
}

// Clear starts a frame.
func (w *Window) Clear(rgb [3]float32) {
	gl.ClearColor(rgb[0], rgb[1], rgb[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// EndFrame presents the frame and processes window events.
func (w *Window) EndFrame() {
	w.window.SwapBuffers()
	glfw.PollEvents()
}

func (w *Window) ShouldClose() bool { return w.window.ShouldClose() }

// Time is seconds since GLFW was initialised.
func (w *Window) Time() float64 { return glfw.GetTime() }

func (w *Window) Close() {
	w.window.Destroy()
	glfw.Terminate()
}

func (w *Window) onResize(width, height int) {
	w.width, w.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	if w.cam != nil && height > 0 {
		w.cam.SetAspect(float32(width) / float32(height))
	}
}

func (w *Window) onKey(key glfw.Key, action glfw.Action) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEscape:
		w.window.SetShouldClose(true)
	case glfw.KeySpace:
		if w.onPause != nil {
			w.onPause()
		}
	}
}

func (w *Window) onScroll(yoff float64) {
	if w.cam != nil {
		w.cam.Zoom(float32(yoff))
	}
}

// onMouseButton toggles mouse look on a left click.
func (w *Window) onMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft || action != glfw.Press {
		return
	}
	w.captured = !w.captured
	if w.captured {
		w.window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		w.firstMouse = true
	} else {
		w.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

func (w *Window) onMouseMove(xpos, ypos float64) {
	if !w.captured || w.cam == nil {
		return
	}
	if w.firstMouse {
		w.lastMouseX, w.lastMouseY = xpos, ypos
		w.firstMouse = false
		return
	}
	dx := float32(xpos - w.lastMouseX)
	dy := float32(ypos - w.lastMouseY)
	w.lastMouseX, w.lastMouseY = xpos, ypos
	w.cam.Rotate(dx, dy)
}
