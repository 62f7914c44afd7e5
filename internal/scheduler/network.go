package scheduler

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
)

// Network is the narrow slice of *network.Host the worker depends on,
// kept as an interface so dispatch logic can be tested without a real
// libp2p host.
type Network interface {
	GossipReceipt(ctx context.Context, receiptCID cid.Cid, receipt invocation.Receipt) error
	PutReceiptDHT(ctx context.Context, receiptCID cid.Cid, receipt invocation.Receipt) error
	GetReceiptDHT(ctx context.Context, receiptCID cid.Cid) (invocation.Receipt, bool, error)
	GetReceiptByInstructionDHT(ctx context.Context, instructionCID cid.Cid) (cid.Cid, bool, error)
}
