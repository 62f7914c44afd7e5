package scheduler

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
)

// ResourceFetchError wraps a Wasm resource load failure. It is
// retryable with backoff, unlike the other task failure classes.
type ResourceFetchError struct {
	URI string
	Err error
}

func (e *ResourceFetchError) Error() string {
	return fmt.Sprintf("scheduler: fetch resource %s: %v", e.URI, e.Err)
}

func (e *ResourceFetchError) Unwrap() error { return e.Err }

// PromiseBranchMismatchError is returned when an await/ok or
// await/error selector is pointed at a receipt whose outcome is on the
// wrong branch, per §4.5's promise selector semantics.
type PromiseBranchMismatchError struct {
	Selector invocation.AwaitSelector
	Pointer  cid.Cid
	Got      invocation.OutcomeTag
}

func (e *PromiseBranchMismatchError) Error() string {
	return fmt.Sprintf("scheduler: %s on %s: receipt outcome is %q", e.Selector, e.Pointer, e.Got)
}

// UnresolvedAwaitError is returned when a task awaits a pointer that
// names no receipt produced earlier in this workflow run. Pointers
// outside the workflow are not looked up in the local cache, the DHT or
// from peers.
type UnresolvedAwaitError struct {
	Pointer cid.Cid
}

func (e *UnresolvedAwaitError) Error() string {
	return fmt.Sprintf("scheduler: unresolved await on %s", e.Pointer)
}

// ErrCancelled is returned by a task's dispatch when the workflow's
// context was cancelled mid-flight. No receipt is emitted for a
// cancelled task, per §4.5.
var ErrCancelled = errors.New("scheduler: task cancelled")
