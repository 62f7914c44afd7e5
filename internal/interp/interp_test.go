package interp

import (
	"testing"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

func TestToWitIntegerRangeChecked(t *testing.T) {
	_, err := ToWit(ipld.Int(256), U8(), nil)
	if _, ok := err.(*RangeOverflowError); !ok {
		t.Fatalf("expected RangeOverflowError, got %v", err)
	}

	v, err := ToWit(ipld.Int(255), U8(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.U != 255 {
		t.Fatalf("expected 255, got %d", v.U)
	}
}

func TestToWitFloatAdmitsIntegerCast(t *testing.T) {
	v, err := ToWit(ipld.Int(7), F64(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindFloat64 || v.F64 != 7.0 {
		t.Fatalf("expected float64 7.0, got %+v", v)
	}
}

func TestToWitStringFromNullAndLink(t *testing.T) {
	v, err := ToWit(ipld.Null(), Str(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Str != "null" {
		t.Fatalf("expected literal \"null\", got %q", v.Str)
	}

	c, err := ipld.ComputeCID(ipld.String("x"))
	if err != nil {
		t.Fatal(err)
	}
	v, err = ToWit(ipld.Link(c), Str(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Str != c.String() {
		t.Fatalf("expected link rendered as %q, got %q", c.String(), v.Str)
	}
}

func TestToWitVariantDispatch(t *testing.T) {
	okPayload := U64()
	errPayload := Str()
	vt := Variant(Case{Name: "ok", Payload: &okPayload}, Case{Name: "err", Payload: &errPayload})

	in := ipld.MapFromGo(map[string]ipld.Value{"ok": ipld.Int(42)})
	v, err := ToWit(in, vt, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.CaseName != "ok" || v.Payload == nil || v.Payload.U != 42 {
		t.Fatalf("unexpected variant value: %+v", v)
	}
}

func TestToWitVariantUnknownCase(t *testing.T) {
	vt := Variant(Case{Name: "ok"})
	in := ipld.MapFromGo(map[string]ipld.Value{"nope": ipld.Null()})
	_, err := ToWit(in, vt, nil)
	if _, ok := err.(*UnknownVariantCaseError); !ok {
		t.Fatalf("expected UnknownVariantCaseError, got %v", err)
	}
}

func TestToWitResultDisambiguation(t *testing.T) {
	okT := Str()
	errT := Str()
	rt := Result(&okT, &errT)

	ok := ipld.List(ipld.String("done"), ipld.Null())
	v, err := ToWit(ok, rt, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsOk || v.ResVal == nil || v.ResVal.Str != "done" {
		t.Fatalf("unexpected ok result: %+v", v)
	}

	bad := ipld.List(ipld.Null(), ipld.Null())
	_, err = ToWit(bad, rt, nil)
	if _, ok := err.(*AmbiguousResultError); !ok {
		t.Fatalf("expected AmbiguousResultError, got %v", err)
	}
}

func TestRoundTripListOfU8(t *testing.T) {
	original := ipld.Bytes([]byte{1, 2, 3})
	wv, err := ToWit(original, ListOf(U8()), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	back, err := FromWit(wv, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(original) {
		t.Fatalf("round trip mismatch: got %s", back.GoString())
	}
}

func TestFromWitResultOkLeavesErrSlotNull(t *testing.T) {
	v := Value{Kind: KindResult, IsOk: true, ResVal: &Value{Kind: KindU64, U: 9}}

	out, err := FromWit(v, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := out.AsList()
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2-element list, got %s", out.GoString())
	}
	if n, ok := items[0].AsInt(); !ok || n != 9 {
		t.Fatalf("expected ok slot 9, got %s", items[0].GoString())
	}
	if !items[1].IsNull() {
		t.Fatalf("expected err slot null, got %s", items[1].GoString())
	}
}

func TestFromWitResultErrSideSentinelWhenErrUnit(t *testing.T) {
	v := Value{Kind: KindResult, IsOk: false, ResVal: nil}
	out, err := FromWit(v, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := out.AsList()
	if !items[0].IsNull() {
		t.Fatalf("expected ok slot null, got %s", items[0].GoString())
	}
	if n, ok := items[1].AsInt(); !ok || n != 1 {
		t.Fatalf("expected err slot sentinel 1, got %s", items[1].GoString())
	}
}
