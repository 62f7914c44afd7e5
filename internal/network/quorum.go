package network

import "sync"

// QuorumTracker records, per CID, whether the most recent DHT put
// reached the configured quorum target, and lets a caller optionally
// block until that outcome is known.
type QuorumTracker struct {
	target int

	mu      sync.Mutex
	waiters map[string][]chan bool
	result  map[string]bool
}

// NewQuorumTracker builds a tracker for the given quorum target.
func NewQuorumTracker(target int) *QuorumTracker {
	return &QuorumTracker{
		target:  target,
		waiters: make(map[string][]chan bool),
		result:  make(map[string]bool),
	}
}

// Wait blocks until key's quorum outcome is recorded and returns
// whether it succeeded. The worker does not call this — it fires the
// put and moves on; no code path in this module waits on quorum.
func (q *QuorumTracker) Wait(key string) bool {
	q.mu.Lock()
	if ok, known := q.result[key]; known {
		q.mu.Unlock()
		return ok
	}
	ch := make(chan bool, 1)
	q.waiters[key] = append(q.waiters[key], ch)
	q.mu.Unlock()

	return <-ch
}

func (q *QuorumTracker) recordSuccess(key string) { q.record(key, true) }
func (q *QuorumTracker) recordFailure(key string) { q.record(key, false) }

func (q *QuorumTracker) record(key string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.result[key] = ok
	for _, ch := range q.waiters[key] {
		ch <- ok
	}
	delete(q.waiters, key)
}
