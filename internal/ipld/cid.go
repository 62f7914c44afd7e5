package ipld

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeCID hashes the canonical DAG-CBOR encoding of v into a CIDv1
// with a dag-cbor codec tag and a sha2-256 multihash. Because encoding
// is canonical, CID(v) is stable under any decode/re-encode round trip
// and two bitwise-different encodings never share a CID.
func ComputeCID(v Value) (cid.Cid, error) {
	bytes, err := EncodeDagCBOR(v)
	if err != nil {
		return cid.Undef, fmt.Errorf("compute cid: encode dag-cbor: %w", err)
	}

	mh, err := multihash.Sum(bytes, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("compute cid: hash: %w", err)
	}

	return cid.NewCidV1(cid.DagCBOR, mh), nil
}

// VerifyCID recomputes the CID of v and compares it against want.
func VerifyCID(v Value, want cid.Cid) error {
	got, err := ComputeCID(v)
	if err != nil {
		return err
	}
	if !got.Equals(want) {
		return fmt.Errorf("cid mismatch: computed %s, expected %s", got, want)
	}
	return nil
}
