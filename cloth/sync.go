package cloth

import "clothsim/gpu"

// PositionSync makes the freshly written positions the input of the next
// step. It runs while the shared buffer is leased to compute.
type PositionSync interface {
	Sync(q gpu.Queue, next *Lease, prev gpu.Buffer) error
}

// CopySync copies pos_next into pos_prev on the device. The shared buffer
// is bound to the renderer's vertex array, so the two cannot be swapped.
type CopySync struct{}

func (CopySync) Sync(q gpu.Queue, next *Lease, prev gpu.Buffer) error {
	return q.CopyBuffer(next.Buffer(), prev, prev.Size())
}
