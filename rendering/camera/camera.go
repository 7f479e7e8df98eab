// Package camera is a free-flying perspective camera. It has no OpenGL
// dependency; the renderer reads its matrices.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	SpeedSlow   = 0.3
	SpeedNormal = 1.0
	SpeedFast   = 5.0

	MouseSensitivity = 0.2

	// Field of view limits in degrees; zooming in lowers the fov.
	MinFOV    = 10.0
	MaxFOV    = 90.0
	ZoomSpeed = 0.5

	Near = 0.1
	Far  = 1000.0
)

// The renderer's Y axis points down.
var worldUp = mgl32.Vec3{0, -1, 0}

// Direction of a Move.
type Direction int

const (
	Forward Direction = iota
	Back
	Left
	Right
)

// Camera looks from Position along Normal. The view matrix is built at the
// origin; world geometry is translated by -Position in its model matrix.
type Camera struct {
	fov, aspect float32
	yaw, pitch  float32
	speed       float32

	u, v, w  mgl32.Vec3
	position mgl32.Vec3
	pv       mgl32.Mat4
}

// New creates a camera. Angles are in degrees.
func New(fov, aspect float32, position mgl32.Vec3, yaw, pitch float32) *Camera {
	c := &Camera{
		fov:      fov,
		aspect:   aspect,
		yaw:      yaw,
		pitch:    pitch,
		speed:    SpeedSlow,
		position: position,
	}
	c.update()
	return c
}

func (c *Camera) update() {
	p := float64(mgl32.DegToRad(c.pitch))
	y := float64(mgl32.DegToRad(c.yaw))
	c.w = mgl32.Vec3{
		float32(math.Cos(p) * math.Sin(y)),
		float32(math.Sin(p)),
		float32(math.Cos(p) * math.Cos(y)),
	}.Normalize()
	c.u = c.w.Cross(worldUp).Normalize()
	c.v = c.u.Cross(c.w)
	c.updatePV()
}

func (c *Camera) updatePV() {
	proj := mgl32.Perspective(mgl32.DegToRad(c.fov), c.aspect, Near, Far)
	view := mgl32.LookAtV(mgl32.Vec3{}, c.w, c.v)
	c.pv = proj.Mul4(view)
}

// Move translates the camera by speed*dt along dir.
func (c *Camera) Move(dir Direction, dt float32) {
	ds := c.speed * dt
	switch dir {
	case Forward:
		c.position = c.position.Add(c.w.Mul(ds))
	case Back:
		c.position = c.position.Sub(c.w.Mul(ds))
	case Left:
		c.position = c.position.Sub(c.u.Mul(ds))
	case Right:
		c.position = c.position.Add(c.u.Mul(ds))
	}
}

// Rotate turns the camera by a mouse offset. Sensitivity scales with the
// field of view so aiming stays steady when zoomed in.
func (c *Camera) Rotate(dx, dy float32) {
	scale := float32(MouseSensitivity) * c.fov / MinFOV
	c.yaw += dx * scale
	c.pitch += dy * scale
	c.pitch = mgl32.Clamp(c.pitch, -89, 89)
	c.yaw = float32(math.Mod(float64(c.yaw), 360))
	c.update()
}

// Zoom changes the field of view by a scroll offset.
func (c *Camera) Zoom(scroll float32) {
	c.fov = mgl32.Clamp(c.fov+scroll*ZoomSpeed, MinFOV, MaxFOV)
	c.updatePV()
}

// SetFaster selects the fast or the normal speed.
func (c *Camera) SetFaster(on bool) {
	if on {
		c.speed = SpeedFast
	} else {
		c.speed = SpeedNormal
	}
}

// SetSlower selects the slow or the normal speed.
func (c *Camera) SetSlower(on bool) {
	if on {
		c.speed = SpeedSlow
	} else {
		c.speed = SpeedNormal
	}
}

// SetAspect updates the projection after a resize.
func (c *Camera) SetAspect(aspect float32) {
	c.aspect = aspect
	c.updatePV()
}

func (c *Camera) PVMatrix() mgl32.Mat4 { return c.pv }
func (c *Camera) Position() mgl32.Vec3 { return c.position }
func (c *Camera) Normal() mgl32.Vec3   { return c.w }
func (c *Camera) FOV() float32         { return c.fov }
func (c *Camera) Speed() float32       { return c.speed }
