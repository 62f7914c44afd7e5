package scheduler

import (
	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
)

// TaskState is a task's position in the per-task state machine from
// §4.5: Waiting -> Ready -> Running -> one of the four terminal
// states. Terminal states never transition again.
type TaskState string

const (
	TaskWaiting   TaskState = "waiting"
	TaskReady     TaskState = "ready"
	TaskRunning   TaskState = "running"
	TaskExecuted  TaskState = "executed"
	TaskReplayed  TaskState = "replayed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether s is one of the four states a task cannot
// leave once reached.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskExecuted, TaskReplayed, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// TaskResult is the outcome of dispatching a single task, fed back
// into the worker's resolved-promise table and workflow progress
// bookkeeping.
type TaskResult struct {
	Index   int
	State   TaskState
	Receipt *ReceiptRecord // nil when State is TaskCancelled
	Err     error          // set when State is TaskFailed
}

// ReceiptRecord pairs a receipt with its own CID, computed once at
// construction time and threaded through the rest of dispatch rather
// than recomputed.
type ReceiptRecord struct {
	CID     cid.Cid
	Receipt invocation.Receipt
}
