package invocation

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// OutcomeTag discriminates a Receipt's output branch.
type OutcomeTag string

const (
	OutcomeOk    OutcomeTag = "ok"
	OutcomeError OutcomeTag = "error"
	OutcomeJust  OutcomeTag = "just"
)

// Outcome is a Receipt's tagged result.
type Outcome struct {
	Tag   OutcomeTag
	Value ipld.Value
}

// ToValue renders an Outcome as the 2-element [tag, value] list the
// rest of the system (and the WIT result<T,E> mapping) expects.
func (o Outcome) ToValue() ipld.Value {
	return ipld.List(ipld.String(string(o.Tag)), o.Value)
}

// IssuerDID is the receipt-issuer's decentralized identifier, derived
// from the node's public key.
type IssuerDID string

// Receipt is a signed, content-addressed record of one instruction
// execution or replay.
type Receipt struct {
	Ran  Pointer
	Out  Outcome
	Meta map[string]ipld.Value
	Iss  *IssuerDID
	Prf  []cid.Cid

	// Signature over the canonical encoding of the unsigned fields,
	// produced by a Signer at construction time.
	Signature []byte
}

// ToValue renders a Receipt into its canonical IPLD form. The CID of
// this value is the receipt-CID, memoizing the execution.
func (r Receipt) ToValue() ipld.Value {
	meta := map[string]ipld.Value{}
	for k, v := range r.Meta {
		meta[k] = v
	}

	prf := make([]ipld.Value, len(r.Prf))
	for i, p := range r.Prf {
		prf[i] = ipld.Link(p)
	}

	fields := map[string]ipld.Value{
		"ran":  r.Ran.ToValue(),
		"out":  r.Out.ToValue(),
		"meta": ipld.MapFromGo(meta),
		"prf":  ipld.List(prf...),
	}
	if r.Iss != nil {
		fields["iss"] = ipld.String(string(*r.Iss))
	} else {
		fields["iss"] = ipld.Null()
	}

	return ipld.MapFromGo(fields)
}

// CID computes the receipt's content address. Two receipts for the
// same instruction executed by different issuers have different CIDs
// because Iss is part of the signed, hashed payload — see the open
// question on receipt deduplication in spec.md §9.
func (r Receipt) CID() (cid.Cid, error) {
	c, err := ipld.ComputeCID(r.ToValue())
	if err != nil {
		return cid.Undef, fmt.Errorf("receipt cid: %w", err)
	}
	return c, nil
}

// ToWireValue renders a Receipt the same way ToValue does, plus its
// Signature, for transmission over gossip/DHT/direct-fetch where a
// recipient needs the signature to validate the receipt. The
// signature is deliberately excluded from ToValue/CID so that two
// re-signings of the same (ran, out, meta, iss, prf) tuple by the same
// issuer still compute the same receipt-CID.
func (r Receipt) ToWireValue() ipld.Value {
	fields, keys, _ := r.ToValue().AsMap()
	wire := make(map[string]ipld.Value, len(fields)+1)
	for _, k := range keys {
		wire[k] = fields[k]
	}
	if len(r.Signature) > 0 {
		wire["signature"] = ipld.Bytes(r.Signature)
	} else {
		wire["signature"] = ipld.Null()
	}
	return ipld.MapFromGo(wire)
}

// ReceiptFromWireValue parses a Receipt back out of the encoding
// ToWireValue produces, the counterpart a gossip/DHT/direct-fetch
// recipient uses to recover a usable Receipt (including its
// signature) from the bytes on the wire.
func ReceiptFromWireValue(v ipld.Value) (Receipt, error) {
	fields, _, ok := v.AsMap()
	if !ok {
		return Receipt{}, fmt.Errorf("receipt: wire value is not a map")
	}

	ranField, ok := fields["ran"]
	if !ok {
		return Receipt{}, fmt.Errorf("receipt: missing ran")
	}
	ranMap, _, ok := ranField.AsMap()
	if !ok {
		return Receipt{}, fmt.Errorf("receipt: ran is not a map")
	}
	ranLink, ok := ranMap["/"]
	if !ok {
		return Receipt{}, fmt.Errorf("receipt: ran missing link")
	}
	ranStr, ok := ranLink.AsString()
	if !ok {
		return Receipt{}, fmt.Errorf("receipt: ran link is not a string")
	}
	ranCID, err := cid.Decode(ranStr)
	if err != nil {
		return Receipt{}, fmt.Errorf("receipt: decode ran cid: %w", err)
	}

	outField, ok := fields["out"]
	if !ok {
		return Receipt{}, fmt.Errorf("receipt: missing out")
	}
	outItems, ok := outField.AsList()
	if !ok || len(outItems) != 2 {
		return Receipt{}, fmt.Errorf("receipt: out is not a 2-element list")
	}
	tag, ok := outItems[0].AsString()
	if !ok {
		return Receipt{}, fmt.Errorf("receipt: out tag is not a string")
	}

	r := Receipt{
		Ran: Pointer{CID: ranCID},
		Out: Outcome{Tag: OutcomeTag(tag), Value: outItems[1]},
	}

	if metaField, ok := fields["meta"]; ok {
		if m, _, ok := metaField.AsMap(); ok && len(m) > 0 {
			r.Meta = m
		}
	}

	if prfField, ok := fields["prf"]; ok {
		if items, ok := prfField.AsList(); ok {
			prf := make([]cid.Cid, 0, len(items))
			for _, item := range items {
				c, ok := item.AsLink()
				if !ok {
					return Receipt{}, fmt.Errorf("receipt: prf entry is not a link")
				}
				prf = append(prf, c)
			}
			r.Prf = prf
		}
	}

	if issField, ok := fields["iss"]; ok && !issField.IsNull() {
		s, ok := issField.AsString()
		if !ok {
			return Receipt{}, fmt.Errorf("receipt: iss is not a string")
		}
		did := IssuerDID(s)
		r.Iss = &did
	}

	if sigField, ok := fields["signature"]; ok && !sigField.IsNull() {
		sig, ok := sigField.AsBytes()
		if !ok {
			return Receipt{}, fmt.Errorf("receipt: signature is not bytes")
		}
		r.Signature = sig
	}

	return r, nil
}

// IsError reports whether the receipt's outcome is the Error branch.
func (r Receipt) IsError() bool { return r.Out.Tag == OutcomeError }

// InstructionCID extracts the instruction CID this receipt ran, which
// is the primary cache key, from its Ran pointer.
func (r Receipt) InstructionCID() cid.Cid { return r.Ran.CID }
