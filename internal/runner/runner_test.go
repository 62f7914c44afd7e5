package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
	"github.com/ipvm-wg/homestar/internal/logging"
	"github.com/ipvm-wg/homestar/internal/sandbox"
	"github.com/ipvm-wg/homestar/internal/store"
	"github.com/ipvm-wg/homestar/internal/workflow"
)

// fakeInvoker, fakeCache, fakeRepo, and permissiveSignatures below
// mirror the scheduler package's own unexported test fakes; this
// package cannot import unexported test helpers across package
// boundaries, so a narrow copy lives here. net is left nil in these
// tests (scheduler.Network's own gossip/DHT paths are exercised by
// the scheduler package's tests).

type fakeInvoker struct {
	mu    sync.Mutex
	calls int
	fn    func(task invocation.Task, args []ipld.Value) (sandbox.Result, error)
}

func (f *fakeInvoker) Invoke(_ context.Context, task invocation.Task, _ sandbox.Signature, args []ipld.Value) (sandbox.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(task, args)
	}
	return sandbox.Result{Value: ipld.Null()}, nil
}

type fakeCache struct {
	mu       sync.Mutex
	receipts map[string]string
	inFlight map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{receipts: map[string]string{}, inFlight: map[string]bool{}}
}

func (c *fakeCache) Lookup(_ context.Context, instructionCID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.receipts[instructionCID]
	return v, ok, nil
}

func (c *fakeCache) Store(instructionCID, receiptCID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[instructionCID] = receiptCID
}

func (c *fakeCache) InFlight(instructionCID string) (bool, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[instructionCID] {
		return true, func() {}
	}
	c.inFlight[instructionCID] = true
	return false, func() {
		c.mu.Lock()
		delete(c.inFlight, instructionCID)
		c.mu.Unlock()
	}
}

type fakeRepo struct {
	mu        sync.Mutex
	receipts  map[string]invocation.Receipt
	workflows map[string]store.WorkflowInfo
	links     map[string][]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		receipts:  map[string]invocation.Receipt{},
		workflows: map[string]store.WorkflowInfo{},
		links:     map[string][]string{},
	}
}

func (r *fakeRepo) GetReceipt(_ context.Context, receiptCID string) (invocation.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[receiptCID]
	if !ok {
		return invocation.Receipt{}, fmt.Errorf("fake repo: receipt %s not found", receiptCID)
	}
	return rc, nil
}

func (r *fakeRepo) PutReceipt(_ context.Context, receiptCID string, receipt invocation.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[receiptCID] = receipt
	return nil
}

func (r *fakeRepo) LinkReceipt(_ context.Context, workflowCID, receiptCID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[workflowCID] = append(r.links[workflowCID], receiptCID)
	return nil
}

func (r *fakeRepo) PutWorkflow(_ context.Context, info store.WorkflowInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[info.CID] = info
	return nil
}

func (r *fakeRepo) GetWorkflow(_ context.Context, workflowCID string) (store.WorkflowInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workflows[workflowCID], nil
}

func (r *fakeRepo) MarkStuck(_ context.Context, workflowCID, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.workflows[workflowCID]
	info.Status = store.WorkflowStuck
	info.LastError = lastError
	r.workflows[workflowCID] = info
	return nil
}

func (r *fakeRepo) MarkCompleted(_ context.Context, workflowCID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.workflows[workflowCID]
	info.Status = store.WorkflowCompleted
	r.workflows[workflowCID] = info
	return nil
}

func (r *fakeRepo) Retry(_ context.Context, workflowCID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.workflows[workflowCID]
	if !ok || info.Status != store.WorkflowStuck {
		return fmt.Errorf("fake repo: workflow %s is not stuck", workflowCID)
	}
	info.Status = store.WorkflowRunning
	info.Retries++
	r.workflows[workflowCID] = info
	return nil
}

type permissiveSignatures struct{}

func (permissiveSignatures) Resolve(invocation.Resource, string) (sandbox.Signature, error) {
	return sandbox.Signature{}, nil
}

func simpleTask(fn string) invocation.Task {
	return invocation.Task{
		Run: invocation.Instruction{
			Resource: invocation.Resource{URI: "ipfs://bafyfake"},
			Op:       invocation.OpWasmRun,
			Input:    invocation.Input{Func: fn},
		},
	}
}

func testRunner(t *testing.T, sb *fakeInvoker, repo *fakeRepo, queue Queue) *Runner {
	t.Helper()
	signer, err := invocation.LoadSigner(invocation.KeyTypeEd25519, "", "runner-test-seed")
	if err != nil {
		t.Fatalf("load signer: %v", err)
	}
	cache := newFakeCache()
	log := logging.New("error", "json")
	cfg := config.SchedulerConfig{WorkerConcurrency: 4, FetchRetryMax: 1, FetchRetryElapsed: 2 * time.Second}
	return New(repo, cache, nil, nil, sb, permissiveSignatures{}, signer, queue, log, cfg, time.Second)
}

func waitForNotification(t *testing.T, ch <-chan WorkflowNotification, timeout time.Duration) WorkflowNotification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(timeout):
		t.Fatal("timed out waiting for notification")
		return WorkflowNotification{}
	}
}

func TestSubmitRunsWorkflowAndNotifiesSubscribers(t *testing.T) {
	sb := &fakeInvoker{fn: func(invocation.Task, []ipld.Value) (sandbox.Result, error) {
		return sandbox.Result{Value: ipld.Int(42)}, nil
	}}
	repo := newFakeRepo()
	r := testRunner(t, sb, repo, nil)

	ch := make(chan WorkflowNotification, 4)
	unsubscribe := r.Subscribe(ch)
	defer unsubscribe()

	wf := workflow.Workflow{Name: "test", Tasks: []invocation.Task{simpleTask("crop")}}
	wfCID, err := r.Submit(context.Background(), wf)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	n := waitForNotification(t, ch, 2*time.Second)
	if n.WorkflowCID != wfCID.String() {
		t.Fatalf("expected notification for workflow %s, got %s", wfCID, n.WorkflowCID)
	}
	if n.Name != "crop" {
		t.Fatalf("expected notification for task crop, got %s", n.Name)
	}
	if n.Replayed {
		t.Fatal("expected a fresh execution, not a replay")
	}

	// The workflow is tracked for a subsequent Retry.
	r.mu.Lock()
	_, tracked := r.workflows[wfCID.String()]
	r.mu.Unlock()
	if !tracked {
		t.Fatal("expected workflow to be tracked after submit")
	}
}

func TestRetryUnknownWorkflowFails(t *testing.T) {
	sb := &fakeInvoker{}
	repo := newFakeRepo()
	r := testRunner(t, sb, repo, nil)

	if err := r.Retry(context.Background(), "bafyfakeworkflow"); err == nil {
		t.Fatal("expected an error retrying a workflow this runner never submitted")
	}
}

func TestRetryReDispatchesStuckWorkflow(t *testing.T) {
	sb := &fakeInvoker{fn: func(invocation.Task, []ipld.Value) (sandbox.Result, error) {
		return sandbox.Result{Value: ipld.Int(1)}, nil
	}}
	repo := newFakeRepo()
	r := testRunner(t, sb, repo, nil)

	wf := workflow.Workflow{Name: "test", Tasks: []invocation.Task{simpleTask("crop")}}
	wfCID, err := r.Submit(context.Background(), wf)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Wait for the first run to complete, then force the workflow into
	// Stuck the way a cancelled run would, so Retry's precondition holds.
	deadline := time.Now().Add(2 * time.Second)
	for {
		repo.mu.Lock()
		info := repo.workflows[wfCID.String()]
		repo.mu.Unlock()
		if info.Status == store.WorkflowCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for first run to complete")
		}
		time.Sleep(10 * time.Millisecond)
	}
	repo.mu.Lock()
	info := repo.workflows[wfCID.String()]
	info.Status = store.WorkflowStuck
	repo.workflows[wfCID.String()] = info
	repo.mu.Unlock()

	ch := make(chan WorkflowNotification, 4)
	defer r.Subscribe(ch)()

	if err := r.Retry(context.Background(), wfCID.String()); err != nil {
		t.Fatalf("retry: %v", err)
	}

	n := waitForNotification(t, ch, 2*time.Second)
	if n.WorkflowCID != wfCID.String() {
		t.Fatalf("expected retry notification for %s, got %s", wfCID, n.WorkflowCID)
	}
	// The re-dispatched task hits the local cache this time, so it
	// replays rather than re-invoking the sandbox a second time.
	if !n.Replayed {
		t.Fatal("expected the retried task to replay from cache")
	}
}

func TestPublishRelaysThroughQueueToOtherSubscribers(t *testing.T) {
	log := logging.New("error", "json")
	queue := NewMemoryQueue(log)
	defer queue.Close()

	sb := &fakeInvoker{}
	repo := newFakeRepo()
	r := testRunner(t, sb, repo, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	ch := make(chan WorkflowNotification, 4)
	defer r.Subscribe(ch)()

	ranCID, err := simpleTask("crop").Run.CID()
	if err != nil {
		t.Fatalf("instruction cid: %v", err)
	}
	receipt := invocation.Receipt{
		Ran: invocation.Pointer{CID: ranCID},
		Out: invocation.Outcome{Tag: invocation.OutcomeOk, Value: ipld.Int(1)},
	}
	r.publish(WorkflowNotification{WorkflowCID: "bafyworkflow", Name: "crop", ReceiptCID: "bafyreceipt", Receipt: receipt})

	// The first delivery is the direct in-process publish; the second is
	// the copy relayed back through the queue subscription.
	_ = waitForNotification(t, ch, 2*time.Second)
	n := waitForNotification(t, ch, 2*time.Second)
	if n.Name != "crop" || n.WorkflowCID != "bafyworkflow" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if !n.Receipt.Ran.CID.Equals(ranCID) {
		t.Fatalf("expected receipt to round-trip through the queue, got %+v", n.Receipt)
	}
}
