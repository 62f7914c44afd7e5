package invocation

import (
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

func TestTaskFromValueInvertsToValue(t *testing.T) {
	fuel := uint64(2000)
	task := Task{
		Run: Instruction{
			Resource: Resource{URI: "ipfs://bafyfake"},
			Op:       OpWasmRun,
			Input: Input{
				Func: "crop",
				Args: []Argument{
					LiteralArg(ipld.Int(7)),
					AwaitArg(AwaitError, Pointer{CID: testCID(t)}),
				},
			},
			Nonce: nil,
		},
		Meta: Resources{Fuel: &fuel},
		Prf:  []cid.Cid{testCID(t)},
	}

	got, err := TaskFromValue(task.ToValue())
	if err != nil {
		t.Fatalf("task from value: %v", err)
	}

	if got.Run.Resource.URI != task.Run.Resource.URI {
		t.Fatalf("resource mismatch: %s != %s", got.Run.Resource.URI, task.Run.Resource.URI)
	}
	if got.Run.Input.Func != "crop" {
		t.Fatalf("func mismatch: %s", got.Run.Input.Func)
	}
	if len(got.Run.Input.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(got.Run.Input.Args))
	}
	if got.Run.Input.Args[0].IsAwait {
		t.Fatal("expected arg 0 to be a literal")
	}
	if n, ok := got.Run.Input.Args[0].Literal.AsInt(); !ok || n != 7 {
		t.Fatalf("expected literal 7, got %v (ok=%v)", n, ok)
	}
	if !got.Run.Input.Args[1].IsAwait || got.Run.Input.Args[1].Selector != AwaitError {
		t.Fatalf("expected an await/error arg, got %+v", got.Run.Input.Args[1])
	}
	if got.Meta.Fuel == nil || *got.Meta.Fuel != fuel {
		t.Fatalf("expected fuel %d, got %+v", fuel, got.Meta.Fuel)
	}
	if len(got.Prf) != 1 || !got.Prf[0].Equals(task.Prf[0]) {
		t.Fatalf("prf mismatch: %+v", got.Prf)
	}
	if got.Cause != nil {
		t.Fatalf("expected no cause, got %+v", got.Cause)
	}
}

func TestTaskFromValueParsesCause(t *testing.T) {
	c := testCID(t)
	task := Task{
		Run:   Instruction{Resource: Resource{URI: "ipfs://bafyfake"}, Op: OpWasmRun, Input: Input{Func: "noop"}},
		Cause: &Pointer{CID: c},
	}

	got, err := TaskFromValue(task.ToValue())
	if err != nil {
		t.Fatalf("task from value: %v", err)
	}
	if got.Cause == nil || !got.Cause.CID.Equals(c) {
		t.Fatalf("expected cause %s, got %+v", c, got.Cause)
	}
}

func testCID(t *testing.T) cid.Cid {
	t.Helper()
	c, err := ipld.ComputeCID(ipld.String("test-fixture"))
	if err != nil {
		t.Fatalf("compute fixture cid: %v", err)
	}
	return c
}
