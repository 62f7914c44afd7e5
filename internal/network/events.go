package network

import (
	"sync"
	"time"
)

// EventKind enumerates the network notification taxonomy from §6 —
// a superset of status events every subscriber receives, each
// timestamped and carrying at minimum the relevant CID.
type EventKind string

const (
	EventConnectionEstablished       EventKind = "connection_established"
	EventConnectionClosed            EventKind = "connection_closed"
	EventDiscoveredMDNS              EventKind = "discovered_mdns"
	EventDiscoveredRendezvous        EventKind = "discovered_rendezvous"
	EventPublishedReceiptPubsub      EventKind = "published_receipt_pubsub"
	EventReceivedReceiptPubsub       EventKind = "received_receipt_pubsub"
	EventPutReceiptDHT               EventKind = "put_receipt_dht"
	EventGotReceiptDHT                EventKind = "got_receipt_dht"
	EventPutWorkflowInfoDHT           EventKind = "put_workflow_info_dht"
	EventGotWorkflowInfoDHT           EventKind = "got_workflow_info_dht"
	EventReceiptQuorumSuccess         EventKind = "receipt_quorum_success"
	EventReceiptQuorumFailure         EventKind = "receipt_quorum_failure_dht"
	EventWorkflowInfoQuorumSuccess    EventKind = "workflow_info_quorum_success"
	EventWorkflowInfoQuorumFailure    EventKind = "workflow_info_quorum_failure_dht"
	EventSentWorkflowInfo             EventKind = "sent_workflow_info"
	EventReceivedWorkflowInfo         EventKind = "received_workflow_info"
)

// Event is a single, timestamped network notification. CID names the
// receipt or workflow the event concerns; PeerID is set for
// connection/discovery events.
type Event struct {
	Kind      EventKind
	CID       string
	PeerID    string
	Timestamp time.Time
}

// Subscriber receives network events as they occur. Implementations
// must not block; Bus fans out on a best-effort, drop-if-full basis
// per subscriber channel so one slow subscriber cannot stall the
// network task.
type Subscriber chan<- Event

// Bus fans out Events to a dynamic set of subscribers. It is the
// network task's only way of surfacing notifications to the rest of
// the system — the scheduler and runner never touch libp2p directly.
type Bus struct {
	mu   sync.Mutex
	subs map[int]Subscriber
	next int
}

// NewBus builds an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Subscriber)}
}

// Subscribe registers ch to receive future events and returns an
// unsubscribe function.
func (b *Bus) Subscribe(ch Subscriber) func() {
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

// Publish fans e out to every current subscriber, dropping it for any
// subscriber whose channel is full rather than blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- e:
		default:
		}
	}
}
