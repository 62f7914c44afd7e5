package workflow

import (
	"fmt"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

// ParseSubmission decodes the §6 workflow-submission RPC boundary
// shape, `{ tasks: [ { run: Instruction, meta, prf, cause? } ] }`,
// DAG-JSON encoded: links render as {"/": "<cid>"} and raw bytes as
// {"/": {"bytes": "<base64>"}}, and nonces may arrive as an empty
// string, a base32hex-lower string, or a byte object — all three
// normalize to the same bytes. An optional top-level "name" string is
// accepted as a human label; it plays no part in the workflow's CID.
func ParseSubmission(data []byte) (Workflow, error) {
	v, err := ipld.DecodeDagJSON(data)
	if err != nil {
		return Workflow{}, fmt.Errorf("workflow: %w", err)
	}

	fields, _, ok := v.AsMap()
	if !ok {
		return Workflow{}, fmt.Errorf("workflow: submission is not a map")
	}

	tasksField, ok := fields["tasks"]
	if !ok {
		return Workflow{}, fmt.Errorf("workflow: missing tasks")
	}
	items, ok := tasksField.AsList()
	if !ok {
		return Workflow{}, fmt.Errorf("workflow: tasks is not a list")
	}

	tasks := make([]invocation.Task, len(items))
	for i, item := range items {
		t, err := invocation.TaskFromValue(item)
		if err != nil {
			return Workflow{}, fmt.Errorf("workflow: task %d: %w", i, err)
		}
		tasks[i] = t
	}

	wf := Workflow{Tasks: tasks}
	if nameField, ok := fields["name"]; ok && !nameField.IsNull() {
		name, ok := nameField.AsString()
		if !ok {
			return Workflow{}, fmt.Errorf("workflow: name is not a string")
		}
		wf.Name = name
	}

	return wf, nil
}
