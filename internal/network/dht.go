package network

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

const (
	receiptDHTPrefix     = "/homestar/receipt/"
	workflowDHTPrefix    = "/homestar/workflow/"
	instructionDHTPrefix = "/homestar/instruction/"
)

// PutReceiptDHT stores a receipt under its own CID in the DHT and
// reports quorum success/failure without blocking the caller on the
// outcome unless the caller itself chooses to wait (see QuorumTracker).
func (n *Host) PutReceiptDHT(ctx context.Context, receiptCID cid.Cid, receipt invocation.Receipt) error {
	data, err := ipld.EncodeDagCBOR(receipt.ToWireValue())
	if err != nil {
		return err
	}
	key := receiptDHTPrefix + receiptCID.String()

	if err := n.dht.PutValue(ctx, key, data); err != nil {
		n.bus.Publish(Event{Kind: EventReceiptQuorumFailure, CID: receiptCID.String(), Timestamp: now()})
		n.quorum.recordFailure(receiptCID.String())
		return fmt.Errorf("network: dht put receipt: %w", err)
	}

	n.bus.Publish(Event{Kind: EventPutReceiptDHT, CID: receiptCID.String(), Timestamp: now()})

	// Also index this receipt under its instruction-CID, so a node
	// that has never seen receiptCID before (only the instruction it
	// is awaiting on) can still discover it on the DHT, per the
	// scheduler's replay-via-DHT dispatch step.
	indexKey := instructionDHTPrefix + receipt.Ran.CID.String()
	_ = n.dht.PutValue(ctx, indexKey, []byte(receiptCID.String()))

	reached := n.countProviders(ctx, key)
	if reached >= n.cfg.QuorumTarget {
		n.bus.Publish(Event{Kind: EventReceiptQuorumSuccess, CID: receiptCID.String(), Timestamp: now()})
		n.quorum.recordSuccess(receiptCID.String())
	} else {
		n.bus.Publish(Event{Kind: EventReceiptQuorumFailure, CID: receiptCID.String(), Timestamp: now()})
		n.quorum.recordFailure(receiptCID.String())
	}
	return nil
}

// GetReceiptDHT looks up a receipt by CID on the DHT, time-bounded by
// ctx's deadline, used as the scheduler's fallback when a local cache
// miss occurs before falling through to full re-execution.
func (n *Host) GetReceiptDHT(ctx context.Context, receiptCID cid.Cid) (invocation.Receipt, bool, error) {
	key := receiptDHTPrefix + receiptCID.String()
	data, err := n.dht.GetValue(ctx, key)
	if err != nil {
		return invocation.Receipt{}, false, nil
	}

	v, err := ipld.DecodeDagCBOR(data)
	if err != nil {
		return invocation.Receipt{}, false, fmt.Errorf("network: decode dht receipt: %w", err)
	}
	receipt, err := invocation.ReceiptFromWireValue(v)
	if err != nil {
		return invocation.Receipt{}, false, fmt.Errorf("network: parse dht receipt: %w", err)
	}
	n.bus.Publish(Event{Kind: EventGotReceiptDHT, CID: receiptCID.String(), Timestamp: now()})
	return receipt, true, nil
}

// GetReceiptByInstructionDHT looks up the receipt-CID indexed under an
// instruction-CID, the DHT-backed counterpart of the local cache's
// instruction -> receipt-CID memoization.
func (n *Host) GetReceiptByInstructionDHT(ctx context.Context, instructionCID cid.Cid) (cid.Cid, bool, error) {
	key := instructionDHTPrefix + instructionCID.String()
	data, err := n.dht.GetValue(ctx, key)
	if err != nil {
		return cid.Undef, false, nil
	}
	receiptCID, err := cid.Decode(string(data))
	if err != nil {
		return cid.Undef, false, fmt.Errorf("network: decode dht instruction index: %w", err)
	}
	return receiptCID, true, nil
}

// PutWorkflowInfoDHT stores a workflow's progress record under its
// workflow-CID.
func (n *Host) PutWorkflowInfoDHT(ctx context.Context, workflowCID cid.Cid, encoded []byte) error {
	key := workflowDHTPrefix + workflowCID.String()
	if err := n.dht.PutValue(ctx, key, encoded); err != nil {
		n.bus.Publish(Event{Kind: EventWorkflowInfoQuorumFailure, CID: workflowCID.String(), Timestamp: now()})
		return fmt.Errorf("network: dht put workflow info: %w", err)
	}
	n.bus.Publish(Event{Kind: EventPutWorkflowInfoDHT, CID: workflowCID.String(), Timestamp: now()})

	if n.countProviders(ctx, key) >= n.cfg.QuorumTarget {
		n.bus.Publish(Event{Kind: EventWorkflowInfoQuorumSuccess, CID: workflowCID.String(), Timestamp: now()})
	} else {
		n.bus.Publish(Event{Kind: EventWorkflowInfoQuorumFailure, CID: workflowCID.String(), Timestamp: now()})
	}
	return nil
}

// GetWorkflowInfoDHT looks up a workflow's progress record by CID.
func (n *Host) GetWorkflowInfoDHT(ctx context.Context, workflowCID cid.Cid) ([]byte, bool, error) {
	key := workflowDHTPrefix + workflowCID.String()
	data, err := n.dht.GetValue(ctx, key)
	if err != nil {
		return nil, false, nil
	}
	n.bus.Publish(Event{Kind: EventGotWorkflowInfoDHT, CID: workflowCID.String(), Timestamp: now()})
	return data, true, nil
}

// countProviders is a coarse quorum estimate: the number of currently
// connected peers, since the DHT
// client library does not expose a direct per-put acknowledgement
// count. This treats "reached quorum" as "had at least QuorumTarget
// peers connected at put time", a conservative approximation in the
// absence of per-key store-confirmation from the DHT implementation.
func (n *Host) countProviders(_ context.Context, _ string) int {
	return len(n.h.Network().Peers())
}
