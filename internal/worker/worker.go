package worker

import (
	"context"
)

// Worker is a long running background job of the board: the change relay
// in the API process, the projection in the worker process.
type Worker interface {
	// Start blocks until the worker stops or ctx ends.
	Start(ctx context.Context) error

	// Stop asks Start to return.
	Stop() error

	// Name is unique within a WorkerManager.
	Name() string
}
