package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by Dequeue when no job is pending.
var ErrEmpty = errors.New("queue is empty")

// ErrNoResult is returned by GetResult when no entry exists for the id,
// whether it was never written or already expired.
var ErrNoResult = errors.New("no result")

// Broker is the shared queue plus result store that submitters and workers
// communicate through. Payloads are opaque bytes; both sides agree on the
// JSON job and result records. Implementations must make Dequeue atomic
// across concurrent consumers: no payload may be delivered twice.
type Broker interface {
	// Enqueue appends a job payload to the pending list.
	Enqueue(ctx context.Context, payload []byte) error
	// Dequeue removes the oldest pending payload without blocking,
	// returning ErrEmpty when there is none.
	Dequeue(ctx context.Context) ([]byte, error)
	// QueueLen reports the number of pending payloads.
	QueueLen(ctx context.Context) (int64, error)
	// PutResult stores a result payload under the job id with an expiry.
	PutResult(ctx context.Context, id string, payload []byte, ttl time.Duration) error
	// GetResult reads the result payload for a job id, returning
	// ErrNoResult when absent.
	GetResult(ctx context.Context, id string) ([]byte, error)
	Close() error
}
