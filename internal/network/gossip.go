package network

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

// GossipReceipt publishes a newly produced receipt on the receipts
// topic. Gossip ordering is not guaranteed; it is a best-effort fast
// path ahead of the DHT put performed alongside it.
func (n *Host) GossipReceipt(ctx context.Context, receiptCID cid.Cid, receipt invocation.Receipt) error {
	data, err := ipld.EncodeDagCBOR(receipt.ToWireValue())
	if err != nil {
		return err
	}
	if err := n.topic.Publish(ctx, data); err != nil {
		return err
	}
	n.bus.Publish(Event{Kind: EventPublishedReceiptPubsub, CID: receiptCID.String(), Timestamp: now()})
	return nil
}

// ReceivedReceipt is handed to the caller for every receipt received
// on the gossip topic from another peer, so it can be inserted into the
// local cache; the same receipt-CID may arrive more than once.
type ReceivedReceipt struct {
	CID     cid.Cid
	Receipt invocation.Receipt
}

// subscribeReceipts drains the receipts topic for the lifetime of ctx,
// decoding each message and forwarding it through onReceived. Gossip
// consumers must be idempotent on receipt-CID since delivery order and
// delivery count are both unguaranteed.
func (n *Host) subscribeReceipts(ctx context.Context) {
	sub, err := n.topic.Subscribe()
	if err != nil {
		n.log.Error("subscribe to receipts topic failed", "err", err)
		return
	}
	defer sub.Cancel()

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue
		}

		v, err := ipld.DecodeDagCBOR(msg.Data)
		if err != nil {
			n.log.Error("decode gossiped receipt failed", "err", err)
			continue
		}
		receipt, err := invocation.ReceiptFromWireValue(v)
		if err != nil {
			n.log.Error("parse gossiped receipt failed", "err", err)
			continue
		}
		receiptCID, err := receipt.CID()
		if err != nil {
			continue
		}

		n.bus.Publish(Event{Kind: EventReceivedReceiptPubsub, CID: receiptCID.String(), Timestamp: now()})

		if n.onReceipt != nil {
			n.onReceipt(receipt, receiptCID)
		}
	}
}
