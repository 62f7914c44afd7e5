package runner

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
	"github.com/ipvm-wg/homestar/internal/scheduler"
)

// WorkflowNotification pairs a task-completion Notification with the
// workflow it belongs to — the §6 "Receipt notification" RPC boundary
// shape, `{ metadata: { name, replayed, receipt_cid }, receipt }`, with
// the workflow identity a concurrent-workflow subscriber needs to tell
// notifications apart.
type WorkflowNotification struct {
	WorkflowCID string
	Name        string
	Replayed    bool
	ReceiptCID  string
	Receipt     invocation.Receipt
}

func fromScheduler(workflowCID string, n scheduler.Notification) WorkflowNotification {
	return WorkflowNotification{
		WorkflowCID: workflowCID,
		Name:        n.Name,
		Replayed:    n.Replayed,
		ReceiptCID:  n.ReceiptCID,
		Receipt:     n.Receipt,
	}
}

type notificationMetadata struct {
	Name       string `json:"name"`
	Replayed   bool   `json:"replayed"`
	ReceiptCID string `json:"receipt_cid"`
}

type notificationEnvelope struct {
	WorkflowCID string               `json:"workflow_cid"`
	Metadata    notificationMetadata `json:"metadata"`
	Receipt     json.RawMessage      `json:"receipt"`
}

// MarshalJSON renders the wire form §6 names: a metadata object plus
// the receipt, DAG-JSON encoded with its signature so a subscriber can
// verify it without a second round trip.
func (n WorkflowNotification) MarshalJSON() ([]byte, error) {
	receiptJSON, err := ipld.EncodeDagJSON(n.Receipt.ToWireValue())
	if err != nil {
		return nil, fmt.Errorf("notification: encode receipt: %w", err)
	}
	return json.Marshal(notificationEnvelope{
		WorkflowCID: n.WorkflowCID,
		Metadata: notificationMetadata{
			Name:       n.Name,
			Replayed:   n.Replayed,
			ReceiptCID: n.ReceiptCID,
		},
		Receipt: receiptJSON,
	})
}

func (n *WorkflowNotification) UnmarshalJSON(data []byte) error {
	var env notificationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("notification: %w", err)
	}
	v, err := ipld.DecodeDagJSON(env.Receipt)
	if err != nil {
		return fmt.Errorf("notification: decode receipt: %w", err)
	}
	receipt, err := invocation.ReceiptFromWireValue(v)
	if err != nil {
		return fmt.Errorf("notification: %w", err)
	}

	n.WorkflowCID = env.WorkflowCID
	n.Name = env.Metadata.Name
	n.Replayed = env.Metadata.Replayed
	n.ReceiptCID = env.Metadata.ReceiptCID
	n.Receipt = receipt
	return nil
}

// NotificationSubscriber receives every workflow's task-completion
// notifications this runner fans out, in-process or relayed from the
// queue. A subscriber must not block; delivery is best-effort.
type NotificationSubscriber chan<- WorkflowNotification

// notificationBus fans WorkflowNotifications out to a dynamic set of
// subscribers, the same drop-if-full shape as network.Bus — kept as
// its own small type rather than reused directly since it carries a
// different payload and this package must not import internal/network
// just for it.
type notificationBus struct {
	mu   sync.Mutex
	subs map[int]NotificationSubscriber
	next int
}

func newNotificationBus() *notificationBus {
	return &notificationBus{subs: make(map[int]NotificationSubscriber)}
}

func (b *notificationBus) subscribe(ch NotificationSubscriber) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *notificationBus) publish(n WorkflowNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- n:
		default:
		}
	}
}

func (n WorkflowNotification) encode() ([]byte, error) {
	return json.Marshal(n)
}

func decodeNotification(data []byte) (WorkflowNotification, error) {
	var n WorkflowNotification
	err := json.Unmarshal(data, &n)
	return n, err
}
