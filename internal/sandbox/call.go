package sandbox

import (
	"context"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v25"

	"github.com/ipvm-wg/homestar/internal/interp"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

// Signature declares the WIT parameter and return types of an
// exported function. The interpreter needs this ahead of a call; it
// is never inferred from the compiled module, per §4.1's type-directed
// contract.
type Signature struct {
	Params []interp.Type
	Return interp.Type
}

// Sandbox instantiates fetched Wasm bytes and invokes exported
// functions under task-scoped fuel/memory/timeout limits. Arguments
// and results cross the guest boundary as a single DAG-CBOR-encoded
// buffer written into and read back out of the instance's linear
// memory via its exported alloc/dealloc functions — the same
// buffer-passing convention as the teacher driver's ioBuffer
// configuration, generalized from a single fixed buffer to one
// allocated per call.
type Sandbox struct {
	engine  *Engine
	fetcher Fetcher
}

// NewSandbox wires a compilation/epoch engine to a resource fetcher.
func NewSandbox(engine *Engine, fetcher Fetcher) *Sandbox {
	return &Sandbox{engine: engine, fetcher: fetcher}
}

// Result is the outcome of a single sandboxed invocation.
type Result struct {
	Value ipld.Value
}

// Invoke resolves task.Run.Resource, instantiates it, translates args
// into WIT per sig.Params, calls task.Run.Input.Func, and translates
// the return value back into IPLD per sig.Return.
func (s *Sandbox) Invoke(ctx context.Context, task invocation.Task, sig Signature, args []ipld.Value) (Result, error) {
	if len(args) != len(sig.Params) {
		return Result{}, fmt.Errorf("sandbox: %s expects %d args, got %d", task.Run.Input.Func, len(sig.Params), len(args))
	}

	wasmBytes, err := s.fetcher.Fetch(ctx, task.Run.Resource)
	if err != nil {
		return Result{}, err
	}

	cidKey, err := moduleCacheKey(task.Run.Resource)
	if err != nil {
		return Result{}, err
	}
	module, err := s.engine.Module(cidKey, wasmBytes)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: compile module: %w", err)
	}

	limits := ResolveLimits(task.Meta)
	store, err := s.engine.newLimitedStore(limits)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: configure store: %w", err)
	}

	linker := wasmtime.NewLinker(s.engine.engine)
	instance, err := linker.Instantiate(store, module)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: instantiate: %w", err)
	}

	argBuf, err := encodeArgs(args, sig.Params)
	if err != nil {
		return Result{}, err
	}

	resultBuf, err := callBuffered(store, instance, task.Run.Input.Func, argBuf)
	if err != nil {
		return Result{}, translateTrap(err)
	}

	return decodeResult(resultBuf, sig.Return)
}

func moduleCacheKey(r invocation.Resource) (string, error) {
	if s, err := r.CIDString(); err == nil {
		return s, nil
	}
	return r.URI, nil
}

// encodeArgs coerces each argument through the WIT type it targets
// (range checks, arity checks, and all the other admission rules from
// §4.1 fire here) and re-renders the coerced value as canonical IPLD,
// then DAG-CBOR-encodes the positional list as the single buffer the
// guest's generated bindings decode.
func encodeArgs(args []ipld.Value, params []interp.Type) ([]byte, error) {
	coerced := make([]ipld.Value, len(args))
	for i, a := range args {
		wv, err := interp.ToWit(a, params[i], ipld.Path{fmt.Sprintf("args.%d", i)})
		if err != nil {
			return nil, err
		}
		iv, err := interp.FromWit(wv, ipld.Path{fmt.Sprintf("args.%d", i)})
		if err != nil {
			return nil, err
		}
		coerced[i] = iv
	}
	return ipld.EncodeDagCBOR(ipld.List(coerced...))
}

func decodeResult(buf []byte, ret interp.Type) (Result, error) {
	v, err := ipld.DecodeDagCBOR(buf)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: decode result buffer: %w", err)
	}
	wv, err := interp.ToWit(v, ret, ipld.Path{"return"})
	if err != nil {
		return Result{}, err
	}
	iv, err := interp.FromWit(wv, ipld.Path{"return"})
	if err != nil {
		return Result{}, err
	}
	return Result{Value: iv}, nil
}

// callBuffered writes buf into the instance's memory via its exported
// "alloc" function, calls fnName(ptr, len) expecting it to return a
// (resultPtr, resultLen) pair, reads the result bytes back out of
// memory, and frees both buffers via "dealloc" if the module exports
// one.
func callBuffered(store *wasmtime.Store, instance *wasmtime.Instance, fnName string, buf []byte) ([]byte, error) {
	memExtern := instance.GetExport(store, "memory")
	if memExtern == nil || memExtern.Memory() == nil {
		return nil, fmt.Errorf("sandbox: module does not export memory")
	}
	mem := memExtern.Memory()

	allocExtern := instance.GetExport(store, "alloc")
	if allocExtern == nil || allocExtern.Func() == nil {
		return nil, fmt.Errorf("sandbox: module does not export alloc")
	}
	alloc := allocExtern.Func()

	fnExtern := instance.GetExport(store, fnName)
	if fnExtern == nil || fnExtern.Func() == nil {
		return nil, fmt.Errorf("sandbox: module does not export function %q", fnName)
	}
	fn := fnExtern.Func()

	ptrVal, err := alloc.Call(store, int32(len(buf)))
	if err != nil {
		return nil, err
	}
	ptr, ok := ptrVal.(int32)
	if !ok {
		return nil, fmt.Errorf("sandbox: alloc did not return an i32 pointer")
	}

	data := mem.UnsafeData(store)
	copy(data[ptr:], buf)

	raw, err := fn.Call(store, ptr, int32(len(buf)))
	if err != nil {
		return nil, err
	}

	packed, ok := raw.(int64)
	if !ok {
		return nil, fmt.Errorf("sandbox: %s did not return a packed (ptr,len) i64", fnName)
	}
	resultPtr := int32(packed >> 32)
	resultLen := int32(packed & 0xffffffff)

	data = mem.UnsafeData(store)
	out := make([]byte, resultLen)
	copy(out, data[resultPtr:resultPtr+resultLen])

	if deallocExtern := instance.GetExport(store, "dealloc"); deallocExtern != nil && deallocExtern.Func() != nil {
		_, _ = deallocExtern.Func().Call(store, ptr, int32(len(buf)))
		_, _ = deallocExtern.Func().Call(store, resultPtr, resultLen)
	}

	return out, nil
}

// translateTrap maps a wasmtime trap into the sandbox's resource-aware
// error types where the trap's code is fuel or memory exhaustion,
// leaving other traps as opaque execution failures.
func translateTrap(err error) error {
	if trap, ok := err.(*wasmtime.Trap); ok {
		code := trap.Code()
		if code != nil {
			switch *code {
			case wasmtime.OutOfFuel:
				return &ResourceExhaustedError{Resource: ResourceFuel}
			case wasmtime.MemoryOutOfBounds:
				return &ResourceExhaustedError{Resource: ResourceMemory}
			}
		}
	}
	return fmt.Errorf("sandbox: execution failed: %w", err)
}
