package scheduler

import (
	"context"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/store"
)

// ReceiptLookup is the slice of *store.ReceiptCache the worker relies
// on for memoization and once-per-instruction exclusion.
type ReceiptLookup interface {
	Lookup(ctx context.Context, instructionCID string) (receiptCID string, ok bool, err error)
	Store(instructionCID, receiptCID string)
	InFlight(instructionCID string) (alreadyRunning bool, done func())
}

// ReceiptRepo is the slice of *store.Repository the worker persists
// receipts and workflow progress through.
type ReceiptRepo interface {
	GetReceipt(ctx context.Context, receiptCID string) (invocation.Receipt, error)
	PutReceipt(ctx context.Context, receiptCID string, receipt invocation.Receipt) error
	LinkReceipt(ctx context.Context, workflowCID, receiptCID string) error
	PutWorkflow(ctx context.Context, info store.WorkflowInfo) error
	GetWorkflow(ctx context.Context, workflowCID string) (store.WorkflowInfo, error)
	MarkStuck(ctx context.Context, workflowCID, lastError string) error
	MarkCompleted(ctx context.Context, workflowCID string) error
}
