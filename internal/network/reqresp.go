package network

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// fetchProtocol is the direct request/response protocol a peer uses
// to ask another for a specific receipt-CID or workflow-CID when
// gossip has not yet delivered it.
const fetchProtocol protocol.ID = "/homestar/fetch/1.0.0"

// maxFetchResponse bounds how much a single request/response exchange
// will read, guarding against a misbehaving peer streaming unbounded
// data.
const maxFetchResponse = 16 << 20

// RecordSource answers a fetch request for a CID this node already
// has locally cached or stored, returning (nil, false) on a miss.
type RecordSource func(ctx context.Context, c cid.Cid) (ipld.Value, bool)

// ServeFetch installs the stream handler answering fetch requests
// using source, which the caller wires to the receipt cache/store and
// the workflow-info store.
func (n *Host) ServeFetch(source RecordSource) {
	n.h.SetStreamHandler(fetchProtocol, func(s network.Stream) {
		defer s.Close()

		reqLine, err := bufio.NewReader(s).ReadString('\n')
		if err != nil {
			return
		}
		reqLine = trimNewline(reqLine)

		c, err := cid.Decode(reqLine)
		if err != nil {
			return
		}

		v, ok := source(s.Context(), c)
		if !ok {
			_, _ = s.Write([]byte("0\n"))
			return
		}

		data, err := ipld.EncodeDagCBOR(v)
		if err != nil {
			_, _ = s.Write([]byte("0\n"))
			return
		}

		_, _ = fmt.Fprintf(s, "1\n%d\n", len(data))
		_, _ = s.Write(data)
	})
}

// RequestRecord asks peerID directly for the record named by c,
// used when gossip hasn't delivered it and the DHT lookup missed too.
func (n *Host) RequestRecord(ctx context.Context, peerID peer.ID, c cid.Cid) (ipld.Value, bool, error) {
	s, err := n.h.NewStream(ctx, peerID, fetchProtocol)
	if err != nil {
		return ipld.Value{}, false, fmt.Errorf("network: open fetch stream: %w", err)
	}
	defer s.Close()

	if _, err := fmt.Fprintf(s, "%s\n", c.String()); err != nil {
		return ipld.Value{}, false, err
	}

	r := bufio.NewReader(s)
	status, err := r.ReadString('\n')
	if err != nil {
		return ipld.Value{}, false, err
	}
	if trimNewline(status) == "0" {
		return ipld.Value{}, false, nil
	}

	lengthLine, err := r.ReadString('\n')
	if err != nil {
		return ipld.Value{}, false, err
	}
	var length int
	if _, err := fmt.Sscanf(trimNewline(lengthLine), "%d", &length); err != nil {
		return ipld.Value{}, false, err
	}
	if length > maxFetchResponse {
		return ipld.Value{}, false, fmt.Errorf("network: fetch response too large (%d bytes)", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return ipld.Value{}, false, err
	}

	v, err := ipld.DecodeDagCBOR(data)
	if err != nil {
		return ipld.Value{}, false, err
	}
	return v, true, nil
}

func trimNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		return s[:len(s)-1]
	}
	return s
}
