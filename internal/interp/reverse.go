package interp

import (
	"fmt"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// FromWit converts a WIT value back into IPLD, symmetric to ToWit with
// the documented deliberate asymmetries: a non-empty list whose
// elements are all u8 reconstructs as Bytes (never String or
// List<Integer>, regardless of how the forward direction admitted it),
// while an empty list renders as an empty List whatever its declared
// element type; a string value is always returned as
// a String even if its content is a CID's textual form — the
// interpreter never guesses a link back into existence; floats always
// return as Float, preserving decimal precision; a result renders as a
// 2-list with Null in the unused slot, and when the used side carries
// no payload (unit) the integer sentinel 1 stands in its slot
// ([1, null] for Ok, [null, 1] for Err).
func FromWit(v Value, path ipld.Path) (ipld.Value, error) {
	switch v.Kind {
	case KindBool:
		return ipld.Bool(v.B), nil

	case KindU8, KindU16, KindU32, KindU64:
		return ipld.Int(int64(v.U)), nil

	case KindS8, KindS16, KindS32, KindS64:
		return ipld.Int(v.I), nil

	case KindFloat32:
		return ipld.Float(float64(v.F32)), nil

	case KindFloat64:
		return ipld.Float(v.F64), nil

	case KindChar:
		return ipld.String(string(v.Ch)), nil

	case KindString:
		return ipld.String(v.Str), nil

	case KindList:
		return bytesOrListFromWit(v)

	case KindTuple:
		items := make([]ipld.Value, len(v.List))
		for i, item := range v.List {
			iv, err := FromWit(item, path.Push(fmt.Sprintf("%d", i)))
			if err != nil {
				return ipld.Value{}, err
			}
			items[i] = iv
		}
		return ipld.List(items...), nil

	case KindRecord:
		keys := make([]string, 0, len(v.Record))
		for k := range v.Record {
			keys = append(keys, k)
		}
		m := make(map[string]ipld.Value, len(v.Record))
		for _, k := range keys {
			fv, err := FromWit(v.Record[k], path.Push(k))
			if err != nil {
				return ipld.Value{}, err
			}
			m[k] = fv
		}
		return ipld.MapFromGo(m), nil

	case KindVariant:
		if v.Payload == nil {
			return ipld.MapFromGo(map[string]ipld.Value{v.CaseName: ipld.Null()}), nil
		}
		pv, err := FromWit(*v.Payload, path.Push(v.CaseName))
		if err != nil {
			return ipld.Value{}, err
		}
		return ipld.MapFromGo(map[string]ipld.Value{v.CaseName: pv}), nil

	case KindEnum:
		return ipld.String(v.CaseName), nil

	case KindFlags:
		items := make([]ipld.Value, len(v.Flags))
		for i, f := range v.Flags {
			items[i] = ipld.String(f)
		}
		return ipld.List(items...), nil

	case KindOption:
		if !v.Present {
			return ipld.Null(), nil
		}
		return FromWit(*v.Some, path)

	case KindResult:
		return resultFromWit(v, path)

	case KindUnit:
		return ipld.Null(), nil
	}

	return ipld.Value{}, fmt.Errorf("%s: unknown wit value kind %v", path, v.Kind)
}

// bytesOrListFromWit reconstructs a WIT list. A non-empty list whose
// every element is a Kind U8 value renders as Bytes per the reverse
// contract's documented asymmetry; an empty list carries no element
// type and renders as an empty List; any other list<T> renders
// element-wise.
func bytesOrListFromWit(v Value) (ipld.Value, error) {
	isBytes := len(v.List) > 0
	for _, item := range v.List {
		if item.Kind != KindU8 {
			isBytes = false
			break
		}
	}
	if isBytes {
		b := make([]byte, len(v.List))
		for i, item := range v.List {
			b[i] = byte(item.U)
		}
		return ipld.Bytes(b), nil
	}

	items := make([]ipld.Value, len(v.List))
	for i, item := range v.List {
		iv, err := FromWit(item, ipld.Path{})
		if err != nil {
			return ipld.Value{}, err
		}
		items[i] = iv
	}
	return ipld.List(items...), nil
}

func resultFromWit(v Value, path ipld.Path) (ipld.Value, error) {
	sentinel := ipld.Int(1)

	if v.IsOk {
		okVal := sentinel
		if v.ResVal != nil {
			iv, err := FromWit(*v.ResVal, path.Push("0"))
			if err != nil {
				return ipld.Value{}, err
			}
			okVal = iv
		}
		return ipld.List(okVal, ipld.Null()), nil
	}

	errVal := sentinel
	if v.ResVal != nil {
		iv, err := FromWit(*v.ResVal, path.Push("1"))
		if err != nil {
			return ipld.Value{}, err
		}
		errVal = iv
	}
	return ipld.List(ipld.Null(), errVal), nil
}
