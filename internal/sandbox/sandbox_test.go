package sandbox

import (
	"testing"
	"time"

	"github.com/ipvm-wg/homestar/internal/interp"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

func TestResolveLimitsDefaults(t *testing.T) {
	l := ResolveLimits(invocation.Resources{})
	if l.Fuel != 0 || l.Memory != 4<<30 || l.Timeout != 100*time.Second {
		t.Fatalf("unexpected defaults: %+v", l)
	}
}

func TestResolveLimitsOverride(t *testing.T) {
	fuel := uint64(1000)
	timeout := 5 * time.Second
	l := ResolveLimits(invocation.Resources{Fuel: &fuel, Time: &timeout})
	if l.Fuel != 1000 || l.Timeout != 5*time.Second || l.Memory != 4<<30 {
		t.Fatalf("unexpected override result: %+v", l)
	}
}

func TestEncodeArgsRangeChecked(t *testing.T) {
	_, err := encodeArgs([]ipld.Value{ipld.Int(999)}, []interp.Type{interp.U8()})
	if _, ok := err.(*interp.RangeOverflowError); !ok {
		t.Fatalf("expected RangeOverflowError, got %v", err)
	}
}

func TestDecodeResultRejectsMismatchedReturnType(t *testing.T) {
	buf, err := encodeArgs([]ipld.Value{ipld.Int(7), ipld.String("crop")}, []interp.Type{interp.U64(), interp.Str()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := decodeResult(buf, interp.ListOf(interp.Str()))
	// ListOf(string) won't match a 2-elem heterogeneous encoding, so this
	// exercises the type-mismatch path instead of a clean round trip.
	if err == nil {
		t.Fatalf("expected a type error decoding heterogeneous buffer as list<string>, got %+v", out)
	}
}

func TestModuleCacheKeyFallsBackToURI(t *testing.T) {
	key, err := moduleCacheKey(invocation.Resource{URI: "https://example.com/task.wasm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "https://example.com/task.wasm" {
		t.Fatalf("expected URI fallback, got %s", key)
	}
}
