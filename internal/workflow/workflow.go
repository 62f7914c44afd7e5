// Package workflow models an ordered sequence of tasks and the static
// DAG analysis that turns it into independent, dispatchable batches.
package workflow

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

// Workflow is an ordered task list. Tasks may execute concurrently
// once their await-set has resolved; ordering in Tasks only affects
// tie-breaking and human-readable display, not scheduling.
type Workflow struct {
	Name  string
	Tasks []invocation.Task
}

// ToValue renders a Workflow into its canonical IPLD form.
func (w Workflow) ToValue() ipld.Value {
	tasks := make([]ipld.Value, len(w.Tasks))
	for i, t := range w.Tasks {
		tasks[i] = t.ToValue()
	}
	return ipld.MapFromGo(map[string]ipld.Value{
		"tasks": ipld.List(tasks...),
	})
}

// CID computes the workflow's content address.
func (w Workflow) CID() (cid.Cid, error) {
	c, err := ipld.ComputeCID(w.ToValue())
	if err != nil {
		return cid.Undef, fmt.Errorf("workflow cid: %w", err)
	}
	return c, nil
}

// NumTasks returns the task count, used to populate WorkflowInfo.
func (w Workflow) NumTasks() int { return len(w.Tasks) }
