package ipld

import (
	"bytes"
	"fmt"

	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// EncodeDagJSON produces the human-readable form used at the RPC
// boundary. Links render as {"/": "<cid>"} and raw bytes as
// {"/": {"bytes": "<base64>"}}, matching §6 of the spec exactly.
func EncodeDagJSON(v Value) ([]byte, error) {
	node, err := ToNode(v)
	if err != nil {
		return nil, fmt.Errorf("dag-json encode: %w", err)
	}

	var buf bytes.Buffer
	if err := dagjson.Encode(node, &buf); err != nil {
		return nil, fmt.Errorf("dag-json encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDagJSON parses a DAG-JSON document, recognizing both the link
// and byte-object encodings described in §6.
func DecodeDagJSON(data []byte) (Value, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagjson.Decode(nb, bytes.NewReader(data)); err != nil {
		return Value{}, fmt.Errorf("dag-json decode: %w", err)
	}
	return FromNode(nb.Build())
}
