package workflow

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
)

// CyclicWorkflowError is returned when the task graph contains a cycle.
type CyclicWorkflowError struct {
	Cycle []int
}

func (e *CyclicWorkflowError) Error() string {
	return fmt.Sprintf("workflow: cyclic dependency among task indices %v", e.Cycle)
}

// Schedule is the result of static DAG analysis: a topologically
// ordered list of independent batches. Every task in batch N has all
// of its internal awaits satisfied by the union of batches 0..N-1.
type Schedule struct {
	Batches [][]int
}

// Analyze builds a DAG from the workflow's tasks by matching each
// task's Await pointers against the other tasks' instruction CIDs
// (computed statically, since an instruction's CID covers its
// unresolved Argument structure, not a resolved value). A pointer that
// does not match any task in this workflow does not create an internal
// edge; at dispatch time the worker does not resolve it, so it fails
// the dependent task rather than the workflow as a whole.
func Analyze(tasks []invocation.Task) (*Schedule, error) {
	n := len(tasks)

	instrCIDs := make([]cid.Cid, n)
	cidToIndex := make(map[cid.Cid]int, n)
	for i, t := range tasks {
		c, err := t.InstructionCID()
		if err != nil {
			return nil, fmt.Errorf("workflow: compute instruction cid for task %d: %w", i, err)
		}
		instrCIDs[i] = c
		cidToIndex[c] = i
	}

	// dependents[i] = tasks that await task i's output
	dependents := make([][]int, n)
	inDegree := make([]int, n)

	for i, t := range tasks {
		deps := map[int]bool{}
		for _, arg := range t.Run.Input.Args {
			if !arg.IsAwait {
				continue
			}
			if producer, ok := cidToIndex[arg.Pointer.CID]; ok && producer != i {
				deps[producer] = true
			}
		}
		for producer := range deps {
			dependents[producer] = append(dependents[producer], i)
			inDegree[i]++
		}
	}

	batches, err := kahnBatches(n, dependents, inDegree)
	if err != nil {
		return nil, err
	}
	return &Schedule{Batches: batches}, nil
}

// kahnBatches runs a batched Kahn's-algorithm topological sort:
// repeatedly peel off the set of all currently zero-in-degree nodes as
// one batch, rather than one node at a time, so independent tasks land
// in the same batch and can dispatch concurrently.
func kahnBatches(n int, dependents [][]int, inDegree []int) ([][]int, error) {
	remaining := make([]int, n)
	copy(remaining, inDegree)

	visited := make([]bool, n)
	var batches [][]int
	processed := 0

	for processed < n {
		var batch []int
		for i := 0; i < n; i++ {
			if !visited[i] && remaining[i] == 0 {
				batch = append(batch, i)
			}
		}
		if len(batch) == 0 {
			cyclic := make([]int, 0)
			for i := 0; i < n; i++ {
				if !visited[i] {
					cyclic = append(cyclic, i)
				}
			}
			return nil, &CyclicWorkflowError{Cycle: cyclic}
		}

		for _, i := range batch {
			visited[i] = true
			processed++
			for _, dep := range dependents[i] {
				remaining[dep]--
			}
		}
		batches = append(batches, batch)
	}

	return batches, nil
}
