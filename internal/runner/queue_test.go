package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
	"github.com/ipvm-wg/homestar/internal/logging"
)

func TestMemoryQueuePublishSubscribe(t *testing.T) {
	log := logging.New("error", "json")
	q := NewMemoryQueue(log)
	defer q.Close()

	var mu sync.Mutex
	var received []string

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Subscribe(ctx, "topic-a", func(_ context.Context, message []byte) error {
		mu.Lock()
		received = append(received, string(message))
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := q.Publish(ctx, "topic-a", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for message delivery")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0] != "hello" {
		t.Fatalf("expected %q, got %q", "hello", received[0])
	}
}

func TestMemoryQueueTopicsAreIndependent(t *testing.T) {
	log := logging.New("error", "json")
	q := NewMemoryQueue(log)
	defer q.Close()

	ctx := context.Background()
	gotB := make(chan []byte, 1)
	if err := q.Subscribe(ctx, "topic-b", func(_ context.Context, message []byte) error {
		gotB <- message
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := q.Publish(ctx, "topic-c", []byte("not for b")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.Publish(ctx, "topic-b", []byte("for b")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-gotB:
		if string(msg) != "for b" {
			t.Fatalf("expected %q, got %q", "for b", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for topic-b delivery")
	}
}

func TestMemoryQueueDropsWhenFull(t *testing.T) {
	log := logging.New("error", "json")
	q := NewMemoryQueue(log)
	defer q.Close()

	ctx := context.Background()
	// No subscriber drains this topic, so its buffer (1000) eventually
	// fills; Publish must not block once it does.
	for i := 0; i < 1001; i++ {
		if err := q.Publish(ctx, "topic-full", []byte("x")); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
}

func TestNotificationEncodeDecodeRoundTrips(t *testing.T) {
	ranCID, err := simpleTask("crop").Run.CID()
	if err != nil {
		t.Fatalf("instruction cid: %v", err)
	}
	n := WorkflowNotification{
		WorkflowCID: "bafyworkflow",
		Name:        "crop",
		Replayed:    true,
		ReceiptCID:  "bafyreceipt",
		Receipt: invocation.Receipt{
			Ran: invocation.Pointer{CID: ranCID},
			Out: invocation.Outcome{Tag: invocation.OutcomeOk, Value: ipld.Int(42)},
		},
	}
	data, err := n.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeNotification(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.WorkflowCID != n.WorkflowCID || decoded.Name != n.Name || decoded.Replayed != n.Replayed || decoded.ReceiptCID != n.ReceiptCID {
		t.Fatalf("expected %+v, got %+v", n, decoded)
	}
	if !decoded.Receipt.Ran.CID.Equals(ranCID) || !decoded.Receipt.Out.Value.Equal(n.Receipt.Out.Value) {
		t.Fatalf("expected receipt to round-trip, got %+v", decoded.Receipt)
	}
}
