package cpu

import (
	"fmt"
	"math"

	"clothsim/gpu"
)

// kernelImpl is the host implementation of one program entry point.
// run is called once per row of the dispatch range.
type kernelImpl struct {
	arity int
	// buffers lists the argument indices that must hold buffers.
	buffers []int
	// halo is the number of neighbour points read around each work item.
	halo int
	row  func(args []any, y, x0, x1 int)
}

var kernelTable = map[string]kernelImpl{
	"iterate_pos": {
		arity:   6,
		buffers: []int{0, 1, 2},
		row:     iteratePosRow,
	},
	"iterate_vel": {
		arity:   10,
		buffers: []int{0, 1, 2},
		halo:    1,
		row:     iterateVelRow,
	},
}

// iterate_pos(pos_prev, pos_next, vel_prev, size_x, size_y, dt)
func iteratePosRow(args []any, y, x0, x1 int) {
	posPrev := args[0].(*Buffer).data
	posNext := args[1].(*Buffer).data
	velPrev := args[2].(*Buffer).data
	sx := int(args[3].(int32))
	dt := args[5].(float32)

	for x := x0; x < x1; x++ {
		i := (y*sx + x) * 3
		posNext[i] = posPrev[i] + velPrev[i]*dt
		posNext[i+1] = posPrev[i+1] + velPrev[i+1]*dt
		posNext[i+2] = posPrev[i+2] + velPrev[i+2]*dt
	}
}

// iterate_vel(vel_prev, vel_next, pos_prev, size_x, size_y, rest_length, k, b, dt, gravity)
func iterateVelRow(args []any, y, x0, x1 int) {
	velPrev := args[0].(*Buffer).data
	velNext := args[1].(*Buffer).data
	pos := args[2].(*Buffer).data
	sx := int(args[3].(int32))
	length := args[5].(float32)
	k := args[6].(float32)
	b := args[7].(float32)
	dt := args[8].(float32)
	g := args[9].(float32)

	for x := x0; x < x1; x++ {
		i := (y*sx + x) * 3
		px, py, pz := pos[i], pos[i+1], pos[i+2]

		var ax, ay, az float32
		for _, n := range [4]int{i - 3, i + 3, i - sx*3, i + sx*3} {
			dx := pos[n] - px
			dy := pos[n+1] - py
			dz := pos[n+2] - pz
			l := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
			if l > 0 {
				f := k * (l - length) / l
				ax += f * dx
				ay += f * dy
				az += f * dz
			}
		}

		vx, vy, vz := velPrev[i], velPrev[i+1], velPrev[i+2]
		ax -= b * vx
		ay += g - b*vy
		az -= b * vz

		velNext[i] = vx + ax*dt
		velNext[i+1] = vy + ay*dt
		velNext[i+2] = vz + az*dt
	}
}

// validate checks argument types and that the range plus halo stays inside
// the grid and the bound buffers.
func (impl kernelImpl) validate(name string, args []any, r gpu.Range) error {
	for i, a := range args {
		if a == nil {
			return fmt.Errorf("%w: %s argument %d not set", gpu.ErrInvalidArgument, name, i)
		}
	}
	isBuf := map[int]bool{}
	for _, i := range impl.buffers {
		if _, ok := args[i].(*Buffer); !ok {
			return fmt.Errorf("%w: %s argument %d must be a buffer", gpu.ErrInvalidArgument, name, i)
		}
		isBuf[i] = true
	}
	sx, ok1 := args[3].(int32)
	sy, ok2 := args[4].(int32)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: %s grid size must be int32", gpu.ErrInvalidArgument, name)
	}
	for i := 5; i < len(args); i++ {
		if _, ok := args[i].(float32); !ok && !isBuf[i] {
			return fmt.Errorf("%w: %s argument %d must be float32", gpu.ErrInvalidArgument, name, i)
		}
	}

	h := impl.halo
	for d, size := range [2]int{int(sx), int(sy)} {
		lo := r.Offset[d]
		hi := r.Offset[d] + r.Global[d]
		if r.Global[d] < 0 || lo-h < 0 || hi+h > size {
			return fmt.Errorf("%w: %s range %v exceeds %dx%d grid", gpu.ErrInvalidArgument, name, r, sx, sy)
		}
	}
	need := int(sx) * int(sy) * 3
	for _, i := range impl.buffers {
		if len(args[i].(*Buffer).data) < need {
			return fmt.Errorf("%w: %s argument %d smaller than grid", gpu.ErrInvalidArgument, name, i)
		}
	}
	return nil
}
