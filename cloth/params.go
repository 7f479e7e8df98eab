package cloth

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Params are the physical and geometric constants of one cloth. They are
// fixed for the lifetime of a Cloth.
type Params struct {
	SizeX, SizeY int

	// Length is the spring rest length and the initial grid spacing.
	Length    float32
	Mass      float32
	Stiffness float32
	Damping   float32
	TimeStep  float32

	// Gravity is the acceleration along the simulation's +Y axis.
	Gravity float32

	// Position is the rest position of the sheet in world space.
	Position mgl32.Vec3
}

// DefaultParams returns a 500x100 sheet with 1cm springs.
func DefaultParams() Params {
	return Params{
		SizeX:     500,
		SizeY:     100,
		Length:    0.01,
		Mass:      1,
		Stiffness: 500,
		Damping:   0.1,
		TimeStep:  0.03,
	}
}

// EffectiveStiffness is Stiffness divided by Mass.
func (p Params) EffectiveStiffness() float32 { return p.Stiffness / p.Mass }

// EffectiveDamping is Damping divided by Mass.
func (p Params) EffectiveDamping() float32 { return p.Damping / p.Mass }

// PointCount is the number of simulated points.
func (p Params) PointCount() int { return p.SizeX * p.SizeY }

// GridByteSize is the size of each of the four simulation buffers.
func (p Params) GridByteSize() int { return p.PointCount() * 3 * 4 }

// Validate reports the first parameter that cannot describe a cloth.
func (p Params) Validate() error {
	finite := func(v float32) bool {
		f := float64(v)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	switch {
	case p.SizeX < 2 || p.SizeY < 2:
		return errors.Wrapf(ErrInvalidParams, "grid %dx%d smaller than 2x2", p.SizeX, p.SizeY)
	case !finite(p.Length) || p.Length <= 0:
		return errors.Wrapf(ErrInvalidParams, "length %v", p.Length)
	case !finite(p.Mass) || p.Mass <= 0:
		return errors.Wrapf(ErrInvalidParams, "mass %v", p.Mass)
	case !finite(p.Stiffness) || p.Stiffness < 0:
		return errors.Wrapf(ErrInvalidParams, "stiffness %v", p.Stiffness)
	case !finite(p.Damping) || p.Damping < 0:
		return errors.Wrapf(ErrInvalidParams, "damping %v", p.Damping)
	case !finite(p.TimeStep) || p.TimeStep <= 0:
		return errors.Wrapf(ErrInvalidParams, "time step %v", p.TimeStep)
	case !finite(p.Gravity):
		return errors.Wrapf(ErrInvalidParams, "gravity %v", p.Gravity)
	}
	return nil
}
