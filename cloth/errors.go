package cloth

import "github.com/pkg/errors"

var (
	ErrInvalidParams = errors.New("clothsim/cloth: invalid parameters")
	ErrNegativeSteps = errors.New("clothsim/cloth: negative step count")
	// ErrBufferBusy is returned when the shared vertex buffer is requested
	// by one side while the other side holds it.
	ErrBufferBusy = errors.New("clothsim/cloth: shared buffer busy")
	ErrDestroyed  = errors.New("clothsim/cloth: cloth destroyed")
)
