// Package queue provides the fire-and-forget task queue that hands job ids
// from the API process to execution workers.
package queue

import (
	"context"
	"time"
)

// Queue is the producer side. Enqueue is fire-and-forget: the caller
// observes no result beyond the enqueue succeeding.
type Queue interface {
	// Enqueue pushes a job id onto the execution queue.
	Enqueue(ctx context.Context, jobID string) error
}

// Consumer is the worker side.
type Consumer interface {
	// Dequeue blocks up to timeout for the next job id. Returns ErrEmpty
	// when the timeout elapses with nothing queued.
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}
