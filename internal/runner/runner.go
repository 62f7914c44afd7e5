// Package runner is the top-level supervisor from §4.5/§6: it accepts
// workflow submissions, spawns a scheduler.Worker per workflow, and
// fans out receipt notifications to subscribers, optionally relaying
// them across a Redis-backed deployment via Queue.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/logging"
	"github.com/ipvm-wg/homestar/internal/scheduler"
	"github.com/ipvm-wg/homestar/internal/workflow"
)

const notificationsTopic = "homestar.receipt-notifications"

// Host is the slice of *network.Host the runner starts and stops
// alongside its own lifecycle; kept narrow so Runner can be tested
// without a real libp2p stack.
type Host interface {
	Start(ctx context.Context) error
	Close() error
	OnReceipt(fn func(r invocation.Receipt, receiptCID cid.Cid))
}

// WorkflowStore is the slice of *store.Repository the runner needs
// beyond what scheduler.ReceiptRepo already covers: the operator-
// initiated retry transition.
type WorkflowStore interface {
	scheduler.ReceiptRepo
	Retry(ctx context.Context, workflowCID string) error
}

// Runner owns one node's workflow intake: it receives parsed workflows
// from the HTTP surface, runs each through its own scheduler.Worker,
// and publishes task-completion notifications to whoever is listening,
// relaying them through the queue when one is configured. Exactly one Runner exists per node.
type Runner struct {
	repo       WorkflowStore
	cache      scheduler.ReceiptLookup
	net        scheduler.Network
	host       Host // nil in local-only mode
	sandbox    scheduler.Invoker
	sigs       scheduler.SignatureResolver
	signer     invocation.Signer
	log        *logging.Logger
	cfg        config.SchedulerConfig
	dhtTimeout time.Duration

	queue Queue
	bus   *notificationBus

	mu        sync.Mutex
	workflows map[string]workflow.Workflow
}

// New wires a Runner from its collaborators. host and net may both be
// nil for a single-node, gossip/DHT-free deployment.
func New(repo WorkflowStore, cache scheduler.ReceiptLookup, net scheduler.Network, host Host, sb scheduler.Invoker, sigs scheduler.SignatureResolver, signer invocation.Signer, queue Queue, log *logging.Logger, cfg config.SchedulerConfig, dhtTimeout time.Duration) *Runner {
	return &Runner{
		repo:       repo,
		cache:      cache,
		net:        net,
		host:       host,
		sandbox:    sb,
		sigs:       sigs,
		signer:     signer,
		log:        log,
		cfg:        cfg,
		dhtTimeout: dhtTimeout,
		queue:      queue,
		bus:        newNotificationBus(),
		workflows:  make(map[string]workflow.Workflow),
	}
}

// Start brings the network host online (if any), wires gossiped
// receipts into the local cache, and subscribes the queue's
// notifications topic so a Redis-backed deployment relays
// notifications published by other nodes into this node's local
// subscribers too. Re-delivery of a node's own publication through
// this subscription is a harmless duplicate: notification consumers
// are expected to be idempotent, the same discipline the gossip and
// DHT receipt paths already rely on.
func (r *Runner) Start(ctx context.Context) error {
	if r.host != nil {
		r.host.OnReceipt(r.handleGossipedReceipt)
		if err := r.host.Start(ctx); err != nil {
			return fmt.Errorf("runner: start network host: %w", err)
		}
	}

	if r.queue != nil {
		err := r.queue.Subscribe(ctx, notificationsTopic, func(_ context.Context, message []byte) error {
			n, err := decodeNotification(message)
			if err != nil {
				return fmt.Errorf("runner: decode relayed notification: %w", err)
			}
			r.bus.publish(n)
			return nil
		})
		if err != nil {
			return fmt.Errorf("runner: subscribe notifications topic: %w", err)
		}
	}
	return nil
}

// Close tears down the network host and the queue.
func (r *Runner) Close() error {
	if r.host != nil {
		if err := r.host.Close(); err != nil {
			return err
		}
	}
	if r.queue != nil {
		return r.queue.Close()
	}
	return nil
}

func (r *Runner) handleGossipedReceipt(receipt invocation.Receipt, receiptCID cid.Cid) {
	r.cache.Store(receipt.Ran.CID.String(), receiptCID.String())
}

// Submit registers wf for execution and returns its workflow CID
// immediately; dispatch happens on a detached background context so
// a long-running workflow outlives the caller's request scope.
func (r *Runner) Submit(ctx context.Context, wf workflow.Workflow) (cid.Cid, error) {
	wfCID, err := wf.CID()
	if err != nil {
		return cid.Undef, fmt.Errorf("runner: compute workflow cid: %w", err)
	}
	wfCIDStr := wfCID.String()

	r.mu.Lock()
	r.workflows[wfCIDStr] = wf
	r.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	go r.dispatch(runCtx, wfCIDStr, wf)
	return wfCID, nil
}

// Retry re-dispatches a previously-submitted, now-stuck workflow. Since
// the durable store only keeps workflow-level progress, not the
// original task list, retry relies on the in-memory copy kept since
// Submit: re-running Worker.Run against the same workflow.Workflow
// value causes already-completed tasks to hit the local/DHT receipt
// cache and replay instantly, while genuinely unfinished tasks
// re-execute — an in-process approximation of "resume only the
// incomplete batches" that only works for workflows this runner itself
// accepted and is still holding.
func (r *Runner) Retry(ctx context.Context, workflowCID string) error {
	r.mu.Lock()
	wf, ok := r.workflows[workflowCID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("runner: workflow %s was not submitted to this runner", workflowCID)
	}

	if err := r.repo.Retry(ctx, workflowCID); err != nil {
		return fmt.Errorf("runner: retry workflow: %w", err)
	}

	runCtx := context.WithoutCancel(ctx)
	go r.dispatch(runCtx, workflowCID, wf)
	return nil
}

func (r *Runner) dispatch(ctx context.Context, wfCIDStr string, wf workflow.Workflow) {
	w := scheduler.NewWorker(r.sandbox, r.sigs, r.signer, r.cache, r.repo, r.net, r.log, r.cfg, r.dhtTimeout)

	err := w.Run(ctx, wf, func(n scheduler.Notification) {
		r.publish(fromScheduler(wfCIDStr, n))
	})
	if err != nil {
		r.log.WithWorkflowCID(wfCIDStr).Error("workflow run failed", "err", err)
	}
}

func (r *Runner) publish(n WorkflowNotification) {
	r.bus.publish(n)

	if r.queue == nil {
		return
	}
	data, err := n.encode()
	if err != nil {
		r.log.Error("encode notification for queue relay failed", "err", err)
		return
	}
	if err := r.queue.Publish(context.Background(), notificationsTopic, data); err != nil {
		r.log.Error("relay notification to queue failed", "err", err)
	}
}

// Subscribe registers ch to receive every workflow's task-completion
// notifications. The returned func unregisters it.
func (r *Runner) Subscribe(ch NotificationSubscriber) func() {
	return r.bus.subscribe(ch)
}
