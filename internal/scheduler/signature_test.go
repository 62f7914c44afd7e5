package scheduler

import (
	"testing"

	"github.com/ipvm-wg/homestar/internal/interp"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/sandbox"
)

func TestStaticSignaturesRegisterAndResolve(t *testing.T) {
	sigs := NewStaticSignatures()
	resource := invocation.Resource{URI: "ipfs://bafyfake"}
	want := sandbox.Signature{Params: []interp.Type{interp.U64()}, Return: interp.Str()}
	sigs.Register(resource.URI, "crop", want)

	got, err := sigs.Resolve(resource, "crop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(got.Params))
	}
}

func TestStaticSignaturesResolveUnknownResource(t *testing.T) {
	sigs := NewStaticSignatures()
	_, err := sigs.Resolve(invocation.Resource{URI: "ipfs://unknown"}, "crop")
	if err == nil {
		t.Fatal("expected error for unregistered resource")
	}
}

func TestStaticSignaturesResolveUnknownFunc(t *testing.T) {
	sigs := NewStaticSignatures()
	resource := invocation.Resource{URI: "ipfs://bafyfake"}
	sigs.Register(resource.URI, "crop", sandbox.Signature{Return: interp.Str()})

	_, err := sigs.Resolve(resource, "rotate90")
	if err == nil {
		t.Fatal("expected error for unregistered function")
	}
}
