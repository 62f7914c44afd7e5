package scheduler

import "testing"

func TestTaskStateTerminal(t *testing.T) {
	terminal := []TaskState{TaskExecuted, TaskReplayed, TaskFailed, TaskCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}

	nonTerminal := []TaskState{TaskWaiting, TaskReady, TaskRunning}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Fatalf("expected %s to not be terminal", s)
		}
	}
}
