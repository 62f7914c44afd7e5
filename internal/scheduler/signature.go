package scheduler

import (
	"fmt"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/sandbox"
)

// SignatureResolver answers the parameter/return WIT types an
// instruction's exported function uses, per §4.1: the interpreter is
// always type-directed from the resource's WIT schema, never
// inference. Parsing a component's embedded WIT schema is out of
// scope here (see DESIGN.md); a resolver is how that information
// reaches the sandbox instead.
type SignatureResolver interface {
	Resolve(resource invocation.Resource, fn string) (sandbox.Signature, error)
}

// StaticSignatures is a SignatureResolver backed by a fixed table,
// keyed by resource URI and function name, suitable for a deployment
// where the set of Wasm components is known ahead of time.
type StaticSignatures struct {
	table map[string]map[string]sandbox.Signature
}

// NewStaticSignatures builds an empty table; use Register to populate it.
func NewStaticSignatures() *StaticSignatures {
	return &StaticSignatures{table: make(map[string]map[string]sandbox.Signature)}
}

// Register associates fn on resourceURI with sig.
func (s *StaticSignatures) Register(resourceURI, fn string, sig sandbox.Signature) {
	byFn, ok := s.table[resourceURI]
	if !ok {
		byFn = make(map[string]sandbox.Signature)
		s.table[resourceURI] = byFn
	}
	byFn[fn] = sig
}

func (s *StaticSignatures) Resolve(resource invocation.Resource, fn string) (sandbox.Signature, error) {
	byFn, ok := s.table[resource.URI]
	if !ok {
		return sandbox.Signature{}, fmt.Errorf("scheduler: no signature table for resource %s", resource.URI)
	}
	sig, ok := byFn[fn]
	if !ok {
		return sandbox.Signature{}, fmt.Errorf("scheduler: no signature for %s on resource %s", fn, resource.URI)
	}
	return sig, nil
}
