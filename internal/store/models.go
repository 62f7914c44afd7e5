package store

import "time"

// WorkflowStatus is one of the four states a workflow's durable
// progress record can be in.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowStuck     WorkflowStatus = "stuck"
)

// WorkflowInfo is the durable progress record keyed by workflow-CID.
type WorkflowInfo struct {
	CID            string
	NumTasks       int
	ProgressCount  int
	Resources      []byte
	CreatedAt      time.Time
	CompletedAt    *time.Time
	Status         WorkflowStatus
	Retries        int
	LastError      string
}
