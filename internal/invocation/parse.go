package invocation

import (
	"fmt"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// PointerFromValue parses the {"/": "<cid>"} link-map ToValue produces
// for a Pointer, the same shape ReceiptFromWireValue reads for "ran".
func PointerFromValue(v ipld.Value) (Pointer, error) {
	fields, _, ok := v.AsMap()
	if !ok {
		return Pointer{}, fmt.Errorf("pointer: value is not a map")
	}
	link, ok := fields["/"]
	if !ok {
		return Pointer{}, fmt.Errorf("pointer: missing link")
	}
	s, ok := link.AsString()
	if !ok {
		return Pointer{}, fmt.Errorf("pointer: link is not a string")
	}
	c, err := cid.Decode(s)
	if err != nil {
		return Pointer{}, fmt.Errorf("pointer: decode cid: %w", err)
	}
	return Pointer{CID: c}, nil
}

// TaskFromValue parses a Task out of the IPLD value §6 describes:
// `{ run: Instruction, meta, prf, cause? }`. This is the inverse of
// Task.ToValue, used to decode a workflow submission at the RPC
// boundary.
func TaskFromValue(v ipld.Value) (Task, error) {
	fields, _, ok := v.AsMap()
	if !ok {
		return Task{}, fmt.Errorf("task: value is not a map")
	}

	runField, ok := fields["run"]
	if !ok {
		return Task{}, fmt.Errorf("task: missing run")
	}
	instr, err := instructionFromValue(runField)
	if err != nil {
		return Task{}, fmt.Errorf("task: %w", err)
	}

	task := Task{Run: instr}

	if metaField, ok := fields["meta"]; ok {
		res, err := resourcesFromValue(metaField)
		if err != nil {
			return Task{}, fmt.Errorf("task: %w", err)
		}
		task.Meta = res
	}

	if prfField, ok := fields["prf"]; ok {
		items, ok := prfField.AsList()
		if !ok {
			return Task{}, fmt.Errorf("task: prf is not a list")
		}
		prf := make([]cid.Cid, 0, len(items))
		for _, item := range items {
			c, ok := item.AsLink()
			if !ok {
				return Task{}, fmt.Errorf("task: prf entry is not a link")
			}
			prf = append(prf, c)
		}
		task.Prf = prf
	}

	if causeField, ok := fields["cause"]; ok && !causeField.IsNull() {
		p, err := PointerFromValue(causeField)
		if err != nil {
			return Task{}, fmt.Errorf("task: cause: %w", err)
		}
		task.Cause = &p
	}

	return task, nil
}

func instructionFromValue(v ipld.Value) (Instruction, error) {
	fields, _, ok := v.AsMap()
	if !ok {
		return Instruction{}, fmt.Errorf("instruction: value is not a map")
	}

	resourceField, ok := fields["resource"]
	if !ok {
		return Instruction{}, fmt.Errorf("instruction: missing resource")
	}
	uri, ok := resourceField.AsString()
	if !ok {
		return Instruction{}, fmt.Errorf("instruction: resource is not a string")
	}

	op := OpWasmRun
	if opField, ok := fields["op"]; ok {
		s, ok := opField.AsString()
		if !ok {
			return Instruction{}, fmt.Errorf("instruction: op is not a string")
		}
		op = s
	}

	inputField, ok := fields["input"]
	if !ok {
		return Instruction{}, fmt.Errorf("instruction: missing input")
	}
	input, err := inputFromValue(inputField)
	if err != nil {
		return Instruction{}, fmt.Errorf("instruction: %w", err)
	}

	var nonce []byte
	if nonceField, ok := fields["nonce"]; ok {
		nonce, err = NonceFromValue(nonceField)
		if err != nil {
			return Instruction{}, fmt.Errorf("instruction: %w", err)
		}
	}

	return Instruction{
		Resource: Resource{URI: uri},
		Op:       op,
		Input:    input,
		Nonce:    nonce,
	}, nil
}

func inputFromValue(v ipld.Value) (Input, error) {
	fields, _, ok := v.AsMap()
	if !ok {
		return Input{}, fmt.Errorf("input: value is not a map")
	}

	funcField, ok := fields["func"]
	if !ok {
		return Input{}, fmt.Errorf("input: missing func")
	}
	fn, ok := funcField.AsString()
	if !ok {
		return Input{}, fmt.Errorf("input: func is not a string")
	}

	var args []Argument
	if argsField, ok := fields["args"]; ok {
		items, ok := argsField.AsList()
		if !ok {
			return Input{}, fmt.Errorf("input: args is not a list")
		}
		args = make([]Argument, len(items))
		for i, item := range items {
			a, err := argumentFromValue(item)
			if err != nil {
				return Input{}, fmt.Errorf("input: arg %d: %w", i, err)
			}
			args[i] = a
		}
	}

	return Input{Func: fn, Args: args}, nil
}

// argumentFromValue recognizes the single-key await-selector map shape
// ({"await/ok|await/error|await/*": pointer}) and falls back to a
// literal value for everything else, the inverse of Argument.ToValue.
func argumentFromValue(v ipld.Value) (Argument, error) {
	if fields, keys, ok := v.AsMap(); ok && len(keys) == 1 {
		switch AwaitSelector(keys[0]) {
		case AwaitOK, AwaitError, AwaitAny:
			p, err := PointerFromValue(fields[keys[0]])
			if err != nil {
				return Argument{}, fmt.Errorf("argument: %w", err)
			}
			return AwaitArg(AwaitSelector(keys[0]), p), nil
		}
	}
	return LiteralArg(v), nil
}

func resourcesFromValue(v ipld.Value) (Resources, error) {
	var res Resources
	if v.IsNull() {
		return res, nil
	}

	fields, _, ok := v.AsMap()
	if !ok {
		return Resources{}, fmt.Errorf("meta: value is not a map")
	}

	if fuelField, ok := fields["fuel"]; ok && !fuelField.IsNull() {
		n, ok := fuelField.AsInt()
		if !ok {
			return Resources{}, fmt.Errorf("meta: fuel is not an int")
		}
		fuel := uint64(n)
		res.Fuel = &fuel
	}
	if memField, ok := fields["memory"]; ok && !memField.IsNull() {
		n, ok := memField.AsInt()
		if !ok {
			return Resources{}, fmt.Errorf("meta: memory is not an int")
		}
		mem := uint64(n)
		res.Memory = &mem
	}
	if timeField, ok := fields["time"]; ok && !timeField.IsNull() {
		n, ok := timeField.AsInt()
		if !ok {
			return Resources{}, fmt.Errorf("meta: time is not an int")
		}
		d := time.Duration(n) * time.Millisecond
		res.Time = &d
	}

	return res, nil
}
