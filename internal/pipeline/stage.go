// Package pipeline holds the stage handlers and the runner that enforces
// their shared contract: react to one queue message, perform one unit of
// work, emit at most one downstream message.
package pipeline

import (
	"context"
	"io"

	"github.com/conveyor-etl/conveyor/internal/databricks"
)

// Handler is one pipeline stage. Implementations are stateless: nothing
// persists in memory across invocations, and re-running with the same input
// reference must produce the same output blob name.
type Handler interface {
	Name() string

	// SourceContainer names the container the stage reads its input blob
	// from, or "" when the stage takes no single input blob. When non-empty,
	// the runner verifies the referenced blob exists before Process runs.
	SourceContainer() string

	// Process performs the stage's unit of work and returns the blob
	// reference for the downstream message, or "" when the stage emits
	// nothing. Any error aborts the invocation without emission.
	Process(ctx context.Context, msg Message) (string, error)
}

// ObjectStore is the slice of the blob client the handlers need.
type ObjectStore interface {
	Put(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, container, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, container, name string) (bool, error)
	Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error
}

// Sender is the producing side of the queue transport.
type Sender interface {
	Send(ctx context.Context, queue, payload string) (string, error)
}

// Delegate is the external compute engine used by Transform and Train.
type Delegate interface {
	SubmitRun(ctx context.Context, req databricks.SubmitRunRequest) (int64, error)
	RunNow(ctx context.Context, jobID int64, params map[string]string) (int64, error)
	AwaitRun(ctx context.Context, runID int64) (databricks.Run, error)
	RunOutput(ctx context.Context, runID int64) (string, error)
}

// Fetcher reads raw objects from an upstream source outside the blob store.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (io.ReadCloser, int64, error)
	Exists(ctx context.Context, ref string) (bool, error)
}
