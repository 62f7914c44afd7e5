package ipld

import (
	"bytes"
	"fmt"

	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// EncodeDagCBOR produces the canonical binary encoding used for CID
// computation and for inter-peer receipt/workflow transport.
func EncodeDagCBOR(v Value) ([]byte, error) {
	node, err := ToNode(v)
	if err != nil {
		return nil, fmt.Errorf("dag-cbor encode: %w", err)
	}

	var buf bytes.Buffer
	if err := dagcbor.Encode(node, &buf); err != nil {
		return nil, fmt.Errorf("dag-cbor encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDagCBOR is the inverse of EncodeDagCBOR. decode(encode(v)) == v
// for every value encodable in DAG-CBOR (§8 quantified invariant).
func DecodeDagCBOR(data []byte) (Value, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(nb, bytes.NewReader(data)); err != nil {
		return Value{}, fmt.Errorf("dag-cbor decode: %w", err)
	}
	return FromNode(nb.Build())
}
