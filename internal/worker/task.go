package worker

import (
	"context"
	"errors"

	"github.com/voxelgate/server/internal/vec"
)

// Kind tags the work a task performs. All kinds share the same pool and
// queue; the dispatcher decides ordering, the pool runs strictly FIFO.
type Kind uint8

const (
	KindGenerate Kind = iota
	KindMesh
	KindPhysics
)

func (k Kind) String() string {
	switch k {
	case KindGenerate:
		return "generate"
	case KindMesh:
		return "mesh"
	case KindPhysics:
		return "physics"
	default:
		return "unknown"
	}
}

// TaskID correlates a submitted task with its result and with Cancel calls.
type TaskID uint64

// Task is one unit of chunk work. Token is the coordinate's generation token
// at dispatch time; the dispatcher discards any result whose token no longer
// matches. Run must honour ctx cancellation for the soft timeout to work.
type Task struct {
	ID    TaskID
	Kind  Kind
	Coord vec.Vec2
	Token uint64
	Run   func(ctx context.Context) (any, error)
}

// Result is delivered on the pool's results channel, consumed only by the
// control goroutine.
type Result struct {
	TaskID  TaskID
	Kind    Kind
	Coord   vec.Vec2
	Token   uint64
	Payload any
	Err     error
}

var (
	// ErrBackpressure is returned by Submit when the bounded queue is full.
	// The caller requeues at its own level or drops; Submit never blocks.
	ErrBackpressure = errors.New("worker: queue full")

	// ErrTimeout marks a task that exceeded the pool's soft deadline. The
	// dispatcher treats it as a generation failure for retry purposes.
	ErrTimeout = errors.New("worker: task timed out")

	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("worker: pool closed")
)
