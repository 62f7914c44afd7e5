package scheduler

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

func fakeCID(seed byte) cid.Cid {
	mh, err := multihash.Sum([]byte{seed}, multihash.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	return cid.NewCidV1(cid.DagCBOR, mh)
}

func TestSelectBranchAwaitOKAcceptsOkAndJust(t *testing.T) {
	ptr := fakeCID(1)
	for _, tag := range []invocation.OutcomeTag{invocation.OutcomeOk, invocation.OutcomeJust} {
		v, err := selectBranch(invocation.AwaitOK, ptr, invocation.Outcome{Tag: tag, Value: ipld.Int(7)})
		if err != nil {
			t.Fatalf("await/ok on %s: unexpected error: %v", tag, err)
		}
		if i, ok := v.AsInt(); !ok || i != 7 {
			t.Fatalf("await/ok on %s: expected value 7, got %+v", tag, v)
		}
	}
}

func TestSelectBranchAwaitOKRejectsError(t *testing.T) {
	ptr := fakeCID(2)
	_, err := selectBranch(invocation.AwaitOK, ptr, invocation.Outcome{Tag: invocation.OutcomeError, Value: ipld.String("boom")})
	if err == nil {
		t.Fatal("expected PromiseBranchMismatchError")
	}
	mismatch, ok := err.(*PromiseBranchMismatchError)
	if !ok {
		t.Fatalf("expected *PromiseBranchMismatchError, got %T", err)
	}
	if mismatch.Selector != invocation.AwaitOK || mismatch.Pointer != ptr || mismatch.Got != invocation.OutcomeError {
		t.Fatalf("unexpected mismatch fields: %+v", mismatch)
	}
}

func TestSelectBranchAwaitErrorRequiresError(t *testing.T) {
	ptr := fakeCID(3)
	if _, err := selectBranch(invocation.AwaitError, ptr, invocation.Outcome{Tag: invocation.OutcomeOk, Value: ipld.Int(1)}); err == nil {
		t.Fatal("expected PromiseBranchMismatchError on Ok outcome")
	}

	v, err := selectBranch(invocation.AwaitError, ptr, invocation.Outcome{Tag: invocation.OutcomeError, Value: ipld.String("nope")})
	if err != nil {
		t.Fatalf("await/error on Error outcome: unexpected error: %v", err)
	}
	if s, ok := v.AsString(); !ok || s != "nope" {
		t.Fatalf("expected error message round-tripped, got %+v", v)
	}
}

func TestSelectBranchAwaitAnyAcceptsEverything(t *testing.T) {
	ptr := fakeCID(4)
	for _, tag := range []invocation.OutcomeTag{invocation.OutcomeOk, invocation.OutcomeError, invocation.OutcomeJust} {
		if _, err := selectBranch(invocation.AwaitAny, ptr, invocation.Outcome{Tag: tag, Value: ipld.Null()}); err != nil {
			t.Fatalf("await/* on %s: unexpected error: %v", tag, err)
		}
	}
}

func TestResolveArgsLiteralPassthrough(t *testing.T) {
	args := []invocation.Argument{invocation.LiteralArg(ipld.String("crop"))}
	out, err := resolveArgs(args, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, ok := out[0].AsString(); !ok || s != "crop" {
		t.Fatalf("expected literal passthrough, got %+v", out[0])
	}
}

func TestResolveArgsUnresolvedAwait(t *testing.T) {
	ptr := invocation.Pointer{CID: fakeCID(5)}
	args := []invocation.Argument{invocation.AwaitArg(invocation.AwaitOK, ptr)}

	_, err := resolveArgs(args, map[cid.Cid]invocation.Receipt{})
	if err == nil {
		t.Fatal("expected UnresolvedAwaitError")
	}
	unresolved, ok := err.(*UnresolvedAwaitError)
	if !ok {
		t.Fatalf("expected *UnresolvedAwaitError, got %T", err)
	}
	if unresolved.Pointer != ptr.CID {
		t.Fatalf("expected pointer %s, got %s", ptr.CID, unresolved.Pointer)
	}
}

func TestResolveArgsAwaitResolvedAgainstMap(t *testing.T) {
	producerCID := fakeCID(6)
	ptr := invocation.Pointer{CID: producerCID}
	resolved := map[cid.Cid]invocation.Receipt{
		producerCID: {Out: invocation.Outcome{Tag: invocation.OutcomeOk, Value: ipld.Int(42)}},
	}

	args := []invocation.Argument{invocation.AwaitArg(invocation.AwaitOK, ptr)}
	out, err := resolveArgs(args, resolved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i, ok := out[0].AsInt(); !ok || i != 42 {
		t.Fatalf("expected resolved value 42, got %+v", out[0])
	}
}
