package sandbox

import "fmt"

// ExhaustedResource names which per-task limit was exceeded.
type ExhaustedResource string

const (
	ResourceFuel   ExhaustedResource = "fuel"
	ResourceMemory ExhaustedResource = "memory"
)

// ResourceExhaustedError is returned when a task's fuel or memory cap
// is hit mid-execution.
type ResourceExhaustedError struct {
	Resource ExhaustedResource
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("sandbox: resource exhausted: %s", e.Resource)
}

// FetchError wraps a failure to resolve a task's resource into bytes.
type FetchError struct {
	URI string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("sandbox: fetch %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
