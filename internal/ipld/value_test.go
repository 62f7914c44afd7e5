package ipld

import (
	"testing"
)

// TestRoundTripDagCBOR checks decode(encode(v)) == v for every value
// class, the quantified invariant from spec.md §8.
func TestRoundTripDagCBOR(t *testing.T) {
	cases := map[string]Value{
		"null":   Null(),
		"bool":   Bool(true),
		"int":    Int(-42),
		"float":  Float(1.5),
		"string": String("hello"),
		"bytes":  Bytes([]byte{1, 2, 3}),
		"list":   List(Int(1), Int(2), String("three")),
		"map": MapFromGo(map[string]Value{
			"a": Int(1),
			"b": String("two"),
		}),
	}

	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			encoded, err := EncodeDagCBOR(v)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			decoded, err := DecodeDagCBOR(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if !decoded.Equal(v) {
				t.Fatalf("round trip mismatch: got %#v, want %#v", decoded, v)
			}
		})
	}
}

// TestCIDStable checks that CID(v) is stable across repeated computation.
func TestCIDStable(t *testing.T) {
	v := MapFromGo(map[string]Value{
		"resource": String("ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"),
		"nonce":    Bytes(nil),
	})

	first, err := ComputeCID(v)
	if err != nil {
		t.Fatalf("compute cid: %v", err)
	}
	second, err := ComputeCID(v)
	if err != nil {
		t.Fatalf("compute cid: %v", err)
	}
	if !first.Equals(second) {
		t.Fatalf("cid not stable: %s != %s", first, second)
	}
}

// TestEqualValuesShareCID checks the value-layer half of the
// instruction-CID invariant: two equal values encode identically and so
// share a CID.
func TestEqualValuesShareCID(t *testing.T) {
	a := List(Int(1), String("x"))
	b := List(Int(1), String("x"))

	ca, err := ComputeCID(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := ComputeCID(b)
	if err != nil {
		t.Fatal(err)
	}
	if !ca.Equals(cb) {
		t.Fatalf("expected equal values to share a CID: %s != %s", ca, cb)
	}
}
