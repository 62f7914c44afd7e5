package invocation

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// AwaitSelector picks which branch of a receipt's outcome an Await
// argument accepts.
type AwaitSelector string

const (
	AwaitOK    AwaitSelector = "await/ok"
	AwaitError AwaitSelector = "await/error"
	AwaitAny   AwaitSelector = "await/*"
)

// Pointer names the invocation/instruction/receipt whose output is to
// be spliced into a dependent task's arguments.
type Pointer struct {
	CID cid.Cid
}

// ToValue encodes a Pointer as the IPLD link-map {"/": "<cid>"}.
func (p Pointer) ToValue() ipld.Value {
	return ipld.MapFromGo(map[string]ipld.Value{"/": ipld.String(p.CID.String())})
}

// Argument is either a literal IPLD value or an Await placeholder.
type Argument struct {
	// Literal is set when this argument carries a plain value.
	Literal ipld.Value
	// IsAwait is true when this argument is a promise instead of a literal.
	IsAwait  bool
	Selector AwaitSelector
	Pointer  Pointer
}

// LiteralArg builds a literal-value Argument.
func LiteralArg(v ipld.Value) Argument { return Argument{Literal: v} }

// AwaitArg builds a promise Argument.
func AwaitArg(selector AwaitSelector, p Pointer) Argument {
	return Argument{IsAwait: true, Selector: selector, Pointer: p}
}

// ToValue encodes an Argument to IPLD: a literal value, or a
// single-key map {"await/ok|await/error|await/*": pointer}.
func (a Argument) ToValue() ipld.Value {
	if !a.IsAwait {
		return a.Literal
	}
	return ipld.MapFromGo(map[string]ipld.Value{
		string(a.Selector): a.Pointer.ToValue(),
	})
}

// Input is the instruction's function name and argument list.
type Input struct {
	Func string
	Args []Argument
}

// Instruction is the tuple named in §3: the content address of an
// instruction is its fingerprint and primary cache key.
type Instruction struct {
	Resource Resource
	Op       string // always "wasm/run"
	Input    Input
	Nonce    []byte // 0, 12, or 16 bytes after normalization
}

const OpWasmRun = "wasm/run"

// ToValue renders an Instruction into its canonical IPLD form.
func (i Instruction) ToValue() ipld.Value {
	args := make([]ipld.Value, len(i.Input.Args))
	for idx, a := range i.Input.Args {
		args[idx] = a.ToValue()
	}

	input := ipld.MapFromGo(map[string]ipld.Value{
		"func": ipld.String(i.Input.Func),
		"args": ipld.List(args...),
	})

	return ipld.MapFromGo(map[string]ipld.Value{
		"resource": ipld.String(i.Resource.URI),
		"op":       ipld.String(i.Op),
		"input":    input,
		"nonce":    ipld.Bytes(i.Nonce),
	})
}

// CID computes the instruction's content address, used as the
// memoization key by the receipt cache.
func (i Instruction) CID() (cid.Cid, error) {
	c, err := ipld.ComputeCID(i.ToValue())
	if err != nil {
		return cid.Undef, fmt.Errorf("instruction cid: %w", err)
	}
	return c, nil
}

// IsPure reports whether the instruction's nonce is empty, meaning its
// CID depends only on (resource, func, args) and repeated dispatch is
// safe to replay from cache indefinitely.
func (i Instruction) IsPure() bool { return len(i.Nonce) == 0 }
