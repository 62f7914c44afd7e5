// Package scheduler turns a Workflow's static DAG schedule into
// dispatched task executions: cache/DHT replay, promise resolution,
// sandboxed invocation, receipt signing, and workflow progress
// tracking, per §4.5.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"

	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
	"github.com/ipvm-wg/homestar/internal/logging"
	"github.com/ipvm-wg/homestar/internal/sandbox"
	"github.com/ipvm-wg/homestar/internal/store"
	"github.com/ipvm-wg/homestar/internal/workflow"
)

// Notification is the per-task completion event the RPC boundary's
// subscribers receive, per §6: `{ metadata: { name, replayed,
// receipt_cid }, receipt }`.
type Notification struct {
	Name       string
	Replayed   bool
	ReceiptCID string
	Receipt    invocation.Receipt
}

// Invoker is the slice of *sandbox.Sandbox the worker depends on,
// kept as an interface so dispatch logic can be tested without a real
// wasmtime engine.
type Invoker interface {
	Invoke(ctx context.Context, task invocation.Task, sig sandbox.Signature, args []ipld.Value) (sandbox.Result, error)
}

// Worker executes one workflow: static analysis, per-batch dispatch,
// and workflow-level progress bookkeeping. A Worker is not reused
// across workflows.
type Worker struct {
	sandbox Invoker
	sigs    SignatureResolver
	signer  invocation.Signer
	cache   ReceiptLookup
	repo    ReceiptRepo
	net     Network // nil disables gossip/DHT replay and publication
	log     *logging.Logger

	concurrency int
	dhtTimeout  time.Duration
	fetchRetry  func() backoff.BackOff
}

// NewWorker wires a Worker from its collaborators. net may be nil for
// a node running in local-only mode (no gossip/DHT replay or publish).
func NewWorker(sb Invoker, sigs SignatureResolver, signer invocation.Signer, cache ReceiptLookup, repo ReceiptRepo, net Network, log *logging.Logger, cfg config.SchedulerConfig, dhtTimeout time.Duration) *Worker {
	concurrency := cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		sandbox:     sb,
		sigs:        sigs,
		signer:      signer,
		cache:       cache,
		repo:        repo,
		net:         net,
		log:         log,
		concurrency: concurrency,
		dhtTimeout:  dhtTimeout,
		fetchRetry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = cfg.FetchRetryElapsed
			// FetchRetryMax counts attempts; WithMaxRetries counts retries.
			retries := cfg.FetchRetryMax - 1
			if retries < 0 {
				retries = 0
			}
			return backoff.WithMaxRetries(b, uint64(retries))
		},
	}
}

// Run executes wf to completion, calling notify once per task as its
// receipt becomes available. It returns only for structural failures
// (CyclicWorkflow) or a context cancellation that aborted the whole
// run; task-level failures are reported as Error-tagged receipts, not
// as a Go error here.
func (w *Worker) Run(ctx context.Context, wf workflow.Workflow, notify func(Notification)) error {
	schedule, err := workflow.Analyze(wf.Tasks)
	if err != nil {
		return err
	}

	workflowCID, err := wf.CID()
	if err != nil {
		return fmt.Errorf("scheduler: compute workflow cid: %w", err)
	}
	wfCIDStr := workflowCID.String()
	log := w.log.WithWorkflowCID(wfCIDStr)

	if err := w.repo.PutWorkflow(ctx, store.WorkflowInfo{
		CID:      wfCIDStr,
		NumTasks: wf.NumTasks(),
		Status:   store.WorkflowRunning,
	}); err != nil {
		return fmt.Errorf("scheduler: persist workflow: %w", err)
	}

	resolved := make(map[cid.Cid]invocation.Receipt, wf.NumTasks())
	cancelled := false

	for batchIdx, batch := range schedule.Batches {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		results := make([]TaskResult, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.concurrency)

		for slot, taskIdx := range batch {
			slot, taskIdx := slot, taskIdx
			task := wf.Tasks[taskIdx]
			g.Go(func() error {
				results[slot] = w.dispatchTask(gctx, taskIdx, task, resolved)
				return nil
			})
		}
		// errgroup's own context cancellation never aborts this Wait
		// since dispatchTask always returns nil; individual task
		// outcomes, including Cancelled, are carried in results.
		_ = g.Wait()

		log.Info("batch dispatched", "batch", batchIdx, "size", len(batch))

		for _, res := range results {
			task := wf.Tasks[res.Index]
			funcName := task.Run.Input.Func

			switch res.State {
			case TaskCancelled:
				cancelled = true
			case TaskExecuted, TaskReplayed:
				instrCID, _ := task.InstructionCID()
				resolved[instrCID] = res.Receipt.Receipt
				receiptCIDStr := res.Receipt.CID.String()
				if err := w.repo.LinkReceipt(ctx, wfCIDStr, receiptCIDStr); err != nil {
					log.Error("link receipt to workflow failed", "err", err)
				}
				notify(Notification{
					Name:       funcName,
					Replayed:   res.State == TaskReplayed,
					ReceiptCID: receiptCIDStr,
					Receipt:    res.Receipt.Receipt,
				})
			case TaskFailed:
				instrCID, _ := task.InstructionCID()
				if res.Receipt != nil {
					resolved[instrCID] = res.Receipt.Receipt
					receiptCIDStr := res.Receipt.CID.String()
					if err := w.repo.LinkReceipt(ctx, wfCIDStr, receiptCIDStr); err != nil {
						log.Error("link receipt to workflow failed", "err", err)
					}
					notify(Notification{
						Name:       funcName,
						ReceiptCID: receiptCIDStr,
						Receipt:    res.Receipt.Receipt,
					})
				}
				log.Error("task failed", "task", res.Index, "err", res.Err)
			}
		}

		if cancelled {
			break
		}
	}

	if cancelled {
		if err := w.repo.MarkStuck(ctx, wfCIDStr, "cancelled"); err != nil {
			log.Error("mark workflow stuck failed", "err", err)
		}
		return ctx.Err()
	}

	if err := w.repo.MarkCompleted(ctx, wfCIDStr); err != nil {
		return fmt.Errorf("scheduler: mark workflow completed: %w", err)
	}
	return nil
}

// dispatchTask runs the six-step per-task dispatch from §4.5. It never
// returns a Go error: every failure class becomes part of the returned
// TaskResult so the caller's bookkeeping stays uniform.
func (w *Worker) dispatchTask(ctx context.Context, idx int, task invocation.Task, resolved map[cid.Cid]invocation.Receipt) TaskResult {
	if ctx.Err() != nil {
		return TaskResult{Index: idx, State: TaskCancelled}
	}

	instrCID, err := task.InstructionCID()
	if err != nil {
		return TaskResult{Index: idx, State: TaskFailed, Err: fmt.Errorf("scheduler: compute instruction cid: %w", err)}
	}
	log := w.log.WithInstructionCID(instrCID.String()).WithNodeID(idx)

	// Step 2: local cache.
	if receiptCIDStr, ok, err := w.cache.Lookup(ctx, instrCID.String()); err == nil && ok {
		if receipt, err := w.repo.GetReceipt(ctx, receiptCIDStr); err == nil {
			if rc, err := cid.Decode(receiptCIDStr); err == nil {
				log.Info("replayed from local cache")
				return TaskResult{Index: idx, State: TaskReplayed, Receipt: &ReceiptRecord{CID: rc, Receipt: receipt}}
			}
		}
	}

	// Step 3: DHT lookup, time-bounded.
	if w.net != nil {
		dctx, cancel := context.WithTimeout(ctx, w.dhtTimeout)
		receiptCID, found, err := w.net.GetReceiptByInstructionDHT(dctx, instrCID)
		cancel()
		if err == nil && found {
			dctx2, cancel2 := context.WithTimeout(ctx, w.dhtTimeout)
			receipt, ok, err := w.net.GetReceiptDHT(dctx2, receiptCID)
			cancel2()
			if err == nil && ok {
				if verifyErr := w.verifyReceipt(receipt); verifyErr == nil {
					w.cache.Store(instrCID.String(), receiptCID.String())
					log.Info("replayed from dht")
					return TaskResult{Index: idx, State: TaskReplayed, Receipt: &ReceiptRecord{CID: receiptCID, Receipt: receipt}}
				} else {
					log.Error("dht receipt failed signature verification", "err", verifyErr)
				}
			}
		}
	}

	// Once-per-instruction exclusion: if another local execution is
	// already in flight for this instruction, wait is not modeled here
	// (the caller's concurrency cap already bounds parallelism); treat
	// a concurrent claim as a miss and proceed to execute, relying on
	// the durable store's idempotent insert to reconcile duplicates.
	alreadyRunning, done := w.cache.InFlight(instrCID.String())
	if alreadyRunning {
		log.Info("instruction already in flight on this node; executing anyway, durable insert will dedupe")
	} else {
		defer done()
	}

	// Step 4: resolve promises.
	args, err := resolveArgs(task.Run.Input.Args, resolved)
	if err != nil {
		return w.errorResult(ctx, idx, task, instrCID, err)
	}

	// Step 5: fetch + sandbox invoke.
	sig, err := w.sigs.Resolve(task.Run.Resource, task.Run.Input.Func)
	if err != nil {
		return w.errorResult(ctx, idx, task, instrCID, err)
	}

	result, err := w.invokeWithRetry(ctx, task, sig, args)
	if err != nil {
		return w.errorResult(ctx, idx, task, instrCID, err)
	}

	receipt, err := w.signReceipt(instrCID, invocation.Outcome{Tag: invocation.OutcomeOk, Value: result.Value}, task.Prf)
	if err != nil {
		return TaskResult{Index: idx, State: TaskFailed, Err: err}
	}

	record, err := w.persistAndPublish(ctx, receipt)
	if err != nil {
		log.Error("persist/publish executed receipt failed", "err", err)
	}
	w.cache.Store(instrCID.String(), record.CID.String())

	log.Info("executed")
	return TaskResult{Index: idx, State: TaskExecuted, Receipt: record}
}

// invokeWithRetry runs the sandbox invocation, retrying only
// ResourceFetch failures with backoff; ResourceExhausted, trap, and
// interpreter failures are not retried since they are deterministic
// given the same inputs.
func (w *Worker) invokeWithRetry(ctx context.Context, task invocation.Task, sig sandbox.Signature, args []ipld.Value) (sandbox.Result, error) {
	var result sandbox.Result
	operation := func() error {
		r, err := w.sandbox.Invoke(ctx, task, sig, args)
		if err != nil {
			if isFetchError(err) {
				return &ResourceFetchError{URI: task.Run.Resource.URI, Err: err}
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(w.fetchRetry(), ctx)); err != nil {
		if permanent, ok := err.(*backoff.PermanentError); ok {
			return sandbox.Result{}, permanent.Err
		}
		return sandbox.Result{}, err
	}
	return result, nil
}

// errorResult builds a Failed TaskResult, signing and persisting an
// Error-tagged receipt for failClass so downstream await/* and
// await/error consumers still have something to resolve against.
func (w *Worker) errorResult(ctx context.Context, idx int, task invocation.Task, instrCID cid.Cid, failClass error) TaskResult {
	receipt, err := w.signReceipt(instrCID, invocation.Outcome{Tag: invocation.OutcomeError, Value: ipld.String(failClass.Error())}, task.Prf)
	if err != nil {
		return TaskResult{Index: idx, State: TaskFailed, Err: err}
	}
	record, pubErr := w.persistAndPublish(ctx, receipt)
	if pubErr != nil {
		w.log.Error("persist/publish error receipt failed", "err", pubErr)
	}
	w.cache.Store(instrCID.String(), record.CID.String())
	return TaskResult{Index: idx, State: TaskFailed, Receipt: record, Err: failClass}
}

func (w *Worker) signReceipt(instrCID cid.Cid, out invocation.Outcome, prf []cid.Cid) (invocation.Receipt, error) {
	unsigned := invocation.Receipt{
		Ran: invocation.Pointer{CID: instrCID},
		Out: out,
		Prf: prf,
	}
	receipt, err := invocation.SignReceipt(w.signer, unsigned)
	if err != nil {
		return invocation.Receipt{}, fmt.Errorf("scheduler: sign receipt: %w", err)
	}
	return receipt, nil
}

// persistAndPublish stores receipt durably, gossips it, and DHT-puts
// it. Steady-state, only the durable write is required for
// correctness (it is what LookupReceiptByInstruction reads); gossip
// and DHT failures are logged, not fatal to the task.
func (w *Worker) persistAndPublish(ctx context.Context, receipt invocation.Receipt) (*ReceiptRecord, error) {
	receiptCID, err := receipt.CID()
	if err != nil {
		return nil, fmt.Errorf("scheduler: compute receipt cid: %w", err)
	}
	record := &ReceiptRecord{CID: receiptCID, Receipt: receipt}

	if err := w.repo.PutReceipt(ctx, receiptCID.String(), receipt); err != nil {
		return record, fmt.Errorf("scheduler: persist receipt: %w", err)
	}

	if w.net != nil {
		if err := w.net.GossipReceipt(ctx, receiptCID, receipt); err != nil {
			w.log.Error("gossip receipt failed", "err", err)
		}
		if err := w.net.PutReceiptDHT(ctx, receiptCID, receipt); err != nil {
			w.log.Error("dht put receipt failed", "err", err)
		}
	}
	return record, nil
}

// verifyReceipt checks a DHT-sourced receipt's signature against its
// claimed issuer before the worker trusts it for replay, per §4.5
// step 3 ("validate signature and cache").
func (w *Worker) verifyReceipt(receipt invocation.Receipt) error {
	if receipt.Iss == nil {
		return fmt.Errorf("scheduler: dht receipt has no issuer")
	}
	if len(receipt.Signature) == 0 {
		return fmt.Errorf("scheduler: dht receipt has no signature")
	}
	payload, err := invocation.EncodeUnsigned(receipt)
	if err != nil {
		return err
	}
	return w.signer.Verify(payload, receipt.Signature)
}

// isFetchError reports whether err originated from the sandbox's
// resource fetch step rather than from compilation, instantiation, or
// execution — only fetch failures are treated as transient/retryable.
func isFetchError(err error) bool {
	var fetchErr *sandbox.FetchError
	return errors.As(err, &fetchErr)
}
