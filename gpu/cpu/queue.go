package cpu

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"clothsim/gpu"
)

// Stats counts the commands a queue has executed.
type Stats struct {
	Acquires   int
	Releases   int
	Dispatches int
	Copies     int
	Barriers   int
	Finishes   int
}

// Queue implements gpu.Queue. Commands run eagerly, so every command
// is complete when it returns and Barrier/Finish only count.
type Queue struct {
	workers  int
	acquired map[*Buffer]bool
	stats    Stats
}

// Stats returns a copy of the command counters.
func (q *Queue) Stats() Stats { return q.stats }

func hostBuffer(b gpu.Buffer) (*Buffer, error) {
	hb, ok := b.(*Buffer)
	if !ok || hb == nil {
		return nil, fmt.Errorf("%w: buffer %T does not belong to the host backend", gpu.ErrInvalidArgument, b)
	}
	if hb.data == nil {
		return nil, fmt.Errorf("%w: buffer already released", gpu.ErrInvalidArgument)
	}
	return hb, nil
}

func (q *Queue) checkAccess(b *Buffer) error {
	if b.shared && !q.acquired[b] {
		return gpu.ErrNotAcquired
	}
	return nil
}

func (q *Queue) WriteFloat32(dst gpu.Buffer, data []float32) error {
	b, err := hostBuffer(dst)
	if err != nil {
		return err
	}
	if err := q.checkAccess(b); err != nil {
		return err
	}
	if len(data) > len(b.data) {
		return fmt.Errorf("%w: write of %d floats into %d", gpu.ErrInvalidArgument, len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

func (q *Queue) ReadFloat32(src gpu.Buffer, data []float32) error {
	b, err := hostBuffer(src)
	if err != nil {
		return err
	}
	if err := q.checkAccess(b); err != nil {
		return err
	}
	if len(data) > len(b.data) {
		return fmt.Errorf("%w: read of %d floats from %d", gpu.ErrInvalidArgument, len(data), len(b.data))
	}
	copy(data, b.data)
	return nil
}

func (q *Queue) CopyBuffer(src, dst gpu.Buffer, size int) error {
	s, err := hostBuffer(src)
	if err != nil {
		return err
	}
	d, err := hostBuffer(dst)
	if err != nil {
		return err
	}
	if err := q.checkAccess(s); err != nil {
		return err
	}
	if err := q.checkAccess(d); err != nil {
		return err
	}
	if size%4 != 0 || size > s.Size() || size > d.Size() {
		return fmt.Errorf("%w: copy of %d bytes", gpu.ErrInvalidArgument, size)
	}
	copy(d.data[:size/4], s.data[:size/4])
	q.stats.Copies++
	return nil
}

// Dispatch runs k over r. Rows are split across the worker pool; each
// work item reads neighbours only from buffers it does not write.
func (q *Queue) Dispatch(k gpu.Kernel, r gpu.Range) error {
	hk, ok := k.(*Kernel)
	if !ok || hk.args == nil {
		return fmt.Errorf("%w: kernel %T does not belong to the host backend", gpu.ErrInvalidArgument, k)
	}
	if err := hk.impl.validate(hk.name, hk.args, r); err != nil {
		return err
	}
	for _, i := range hk.impl.buffers {
		if err := q.checkAccess(hk.args[i].(*Buffer)); err != nil {
			return fmt.Errorf("%s argument %d: %w", hk.name, i, err)
		}
	}
	q.stats.Dispatches++

	x0, x1 := r.Offset[0], r.Offset[0]+r.Global[0]
	y0, y1 := r.Offset[1], r.Offset[1]+r.Global[1]
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(q.workers)
	for y := y0; y < y1; y++ {
		y := y
		g.Go(func() error {
			hk.impl.row(hk.args, y, x0, x1)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) AcquireShared(bufs ...gpu.Buffer) error {
	for _, buf := range bufs {
		b, err := hostBuffer(buf)
		if err != nil {
			return err
		}
		if !b.shared {
			return fmt.Errorf("%w: acquire of a non-shared buffer", gpu.ErrInvalidArgument)
		}
		if q.acquired[b] {
			return fmt.Errorf("%w: buffer already acquired", gpu.ErrInvalidArgument)
		}
		q.acquired[b] = true
		if b.owner != nil {
			b.owner.setComputeHeld(true)
		}
		q.stats.Acquires++
	}
	return nil
}

func (q *Queue) ReleaseShared(bufs ...gpu.Buffer) error {
	for _, buf := range bufs {
		b, err := hostBuffer(buf)
		if err != nil {
			return err
		}
		if !q.acquired[b] {
			return gpu.ErrNotAcquired
		}
		delete(q.acquired, b)
		if b.owner != nil {
			b.owner.setComputeHeld(false)
		}
		q.stats.Releases++
	}
	return nil
}

func (q *Queue) Barrier() error {
	q.stats.Barriers++
	return nil
}

func (q *Queue) Finish() error {
	q.stats.Finishes++
	return nil
}

func (q *Queue) Close() error {
	if len(q.acquired) > 0 {
		return fmt.Errorf("%w: %d shared buffers still acquired", gpu.ErrInvalidArgument, len(q.acquired))
	}
	return nil
}
