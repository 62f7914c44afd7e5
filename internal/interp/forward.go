package interp

import (
	"fmt"
	"unicode/utf8"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// ToWit converts an IPLD value into a WIT value of the given target
// type, following the forward contract table: the admitted IPLD kinds
// and the conversion performed are fixed per WIT target kind, never
// inferred from what the IPLD value happens to look like.
func ToWit(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	// Special cases that apply regardless of the IPLD value's own kind,
	// checked before the general per-target-kind dispatch below.
	if t.Kind == KindString {
		if v.IsNull() {
			return Value{Kind: KindString, Str: "null"}, nil
		}
		if link, ok := v.AsLink(); ok {
			return Value{Kind: KindString, Str: link.String()}, nil
		}
	}

	switch t.Kind {
	case KindBool:
		b, ok := v.AsBool()
		if !ok {
			return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
		}
		return Value{Kind: KindBool, B: b}, nil

	case KindU8, KindU16, KindU32, KindU64, KindS8, KindS16, KindS32, KindS64:
		return toWitInteger(v, t, path)

	case KindFloat32:
		f, ok := witFloat(v)
		if !ok {
			return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
		}
		return Value{Kind: KindFloat32, F32: float32(f)}, nil

	case KindFloat64:
		f, ok := witFloat(v)
		if !ok {
			return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
		}
		return Value{Kind: KindFloat64, F64: f}, nil

	case KindChar:
		s, ok := v.AsString()
		if !ok {
			return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
		}
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError || size != len(s) {
			return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
		}
		return Value{Kind: KindChar, Ch: r}, nil

	case KindString:
		if s, ok := v.AsString(); ok {
			return Value{Kind: KindString, Str: s}, nil
		}
		if b, ok := v.AsBytes(); ok {
			if !utf8.Valid(b) {
				return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
			}
			return Value{Kind: KindString, Str: string(b)}, nil
		}
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}

	case KindList:
		if t.IsListOfU8() {
			return toWitBytes(v, path)
		}
		return toWitList(v, t, path)

	case KindTuple:
		return toWitTuple(v, t, path)

	case KindRecord:
		return toWitRecord(v, t, path)

	case KindVariant:
		return toWitVariant(v, t, path)

	case KindEnum:
		return toWitEnum(v, t, path)

	case KindFlags:
		return toWitFlags(v, t, path)

	case KindOption:
		return toWitOption(v, t, path)

	case KindResult:
		return toWitResult(v, t, path)

	case KindUnit:
		return Value{Kind: KindUnit}, nil
	}

	return Value{}, fmt.Errorf("%s: unknown wit target kind %v", path, t.Kind)
}

func intRange(k Kind) (lo, hi int64, unsigned bool) {
	switch k {
	case KindU8:
		return 0, 1<<8 - 1, true
	case KindU16:
		return 0, 1<<16 - 1, true
	case KindU32:
		return 0, 1<<32 - 1, true
	case KindU64:
		return 0, 0, true // checked separately, full uint64 range
	case KindS8:
		return -1 << 7, 1<<7 - 1, false
	case KindS16:
		return -1 << 15, 1<<15 - 1, false
	case KindS32:
		return -1 << 31, 1<<31 - 1, false
	case KindS64:
		return 0, 0, false // full int64 range
	}
	return 0, 0, false
}

func toWitInteger(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	i, ok := v.AsInt()
	if !ok {
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
	}

	if t.Kind == KindU64 {
		if i < 0 {
			return Value{}, &RangeOverflowError{Path: path, Kind: t.Kind, Repr: fmt.Sprintf("%d", i)}
		}
		return Value{Kind: t.Kind, U: uint64(i)}, nil
	}
	if t.Kind == KindS64 {
		return Value{Kind: t.Kind, I: i}, nil
	}

	lo, hi, unsigned := intRange(t.Kind)
	if i < lo || i > hi {
		return Value{}, &RangeOverflowError{Path: path, Kind: t.Kind, Repr: fmt.Sprintf("%d", i)}
	}
	if unsigned {
		return Value{Kind: t.Kind, U: uint64(i)}, nil
	}
	return Value{Kind: t.Kind, I: i}, nil
}

// witFloat admits Float directly, or Integer cast to float — the
// result remains a float for the rest of the computation, it is never
// re-coerced back to an integer representation.
func witFloat(v ipld.Value) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if i, ok := v.AsInt(); ok {
		return float64(i), true
	}
	return 0, false
}

func toWitBytes(v ipld.Value, path ipld.Path) (Value, error) {
	if b, ok := v.AsBytes(); ok {
		return bytesToWitList(b), nil
	}
	if s, ok := v.AsString(); ok {
		return bytesToWitList([]byte(s)), nil
	}
	if items, ok := v.AsList(); ok {
		b := make([]byte, len(items))
		for i, item := range items {
			n, ok := item.AsInt()
			if !ok || n < 0 || n > 255 {
				return Value{}, &TypeMismatchError{Path: path.Push(fmt.Sprintf("%d", i)), Want: KindU8, Got: item.Kind()}
			}
			b[i] = byte(n)
		}
		return bytesToWitList(b), nil
	}
	return Value{}, &TypeMismatchError{Path: path, Want: KindList, Got: v.Kind()}
}

func bytesToWitList(b []byte) Value {
	items := make([]Value, len(b))
	for i, by := range b {
		items[i] = Value{Kind: KindU8, U: uint64(by)}
	}
	return Value{Kind: KindList, List: items}
}

func toWitList(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	items, ok := v.AsList()
	if !ok {
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
	}
	out := make([]Value, len(items))
	for i, item := range items {
		wv, err := ToWit(item, *t.Elem, path.Push(fmt.Sprintf("%d", i)))
		if err != nil {
			return Value{}, err
		}
		out[i] = wv
	}
	return Value{Kind: KindList, List: out}, nil
}

func toWitTuple(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	items, ok := v.AsList()
	if !ok {
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
	}
	if len(items) != len(t.Tuple) {
		return Value{}, &ArityMismatchError{Path: path, Want: len(t.Tuple), Got: len(items)}
	}
	out := make([]Value, len(items))
	for i, item := range items {
		wv, err := ToWit(item, t.Tuple[i], path.Push(fmt.Sprintf("%d", i)))
		if err != nil {
			return Value{}, err
		}
		out[i] = wv
	}
	return Value{Kind: KindTuple, List: out}, nil
}

func toWitRecord(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	m, _, ok := v.AsMap()
	if !ok {
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
	}
	if len(m) != len(t.Fields) {
		return Value{}, &ArityMismatchError{Path: path, Want: len(t.Fields), Got: len(m)}
	}
	out := make(map[string]Value, len(t.Fields))
	for _, f := range t.Fields {
		fv, ok := m[f.Name]
		if !ok {
			return Value{}, &TypeMismatchError{Path: path.Push(f.Name), Want: f.Type.Kind, Got: ipld.KindInvalid}
		}
		wv, err := ToWit(fv, f.Type, path.Push(f.Name))
		if err != nil {
			return Value{}, err
		}
		out[f.Name] = wv
	}
	return Value{Kind: KindRecord, Record: out}, nil
}

func toWitVariant(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	m, keys, ok := v.AsMap()
	if !ok || len(keys) != 1 {
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
	}
	caseName := keys[0]
	var matched *Case
	for i := range t.Cases {
		if t.Cases[i].Name == caseName {
			matched = &t.Cases[i]
			break
		}
	}
	if matched == nil {
		return Value{}, &UnknownVariantCaseError{Path: path, Case: caseName}
	}
	if matched.Payload == nil {
		return Value{Kind: KindVariant, CaseName: caseName}, nil
	}
	payload, err := ToWit(m[caseName], *matched.Payload, path.Push(caseName))
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindVariant, CaseName: caseName, Payload: &payload}, nil
}

func toWitEnum(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	s, ok := v.AsString()
	if !ok {
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
	}
	for _, c := range t.Cases {
		if c.Name == s {
			return Value{Kind: KindEnum, CaseName: s}, nil
		}
	}
	return Value{}, &UnknownVariantCaseError{Path: path, Case: s}
}

func toWitFlags(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	items, ok := v.AsList()
	if !ok {
		return Value{}, &TypeMismatchError{Path: path, Want: t.Kind, Got: v.Kind()}
	}
	valid := make(map[string]bool, len(t.Cases))
	for _, c := range t.Cases {
		valid[c.Name] = true
	}
	names := make([]string, len(items))
	for i, item := range items {
		s, ok := item.AsString()
		if !ok {
			return Value{}, &TypeMismatchError{Path: path.Push(fmt.Sprintf("%d", i)), Want: t.Kind, Got: item.Kind()}
		}
		if !valid[s] {
			return Value{}, &UnknownVariantCaseError{Path: path.Push(fmt.Sprintf("%d", i)), Case: s}
		}
		names[i] = s
	}
	return Value{Kind: KindFlags, Flags: names}, nil
}

func toWitOption(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	if v.IsNull() {
		return Value{Kind: KindOption, Present: false}, nil
	}
	some, err := ToWit(v, *t.Elem, path)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindOption, Present: true, Some: &some}, nil
}

func toWitResult(v ipld.Value, t Type, path ipld.Path) (Value, error) {
	items, ok := v.AsList()
	if !ok || len(items) != 2 {
		n := 0
		if ok {
			n = len(items)
		}
		return Value{}, &ArityMismatchError{Path: path, Want: 2, Got: n}
	}

	okSlot, errSlot := items[0], items[1]
	okIsValue := !okSlot.IsNull()
	errIsValue := !errSlot.IsNull()

	switch {
	case okIsValue && !errIsValue:
		var resVal *Value
		if t.Ok != nil {
			wv, err := ToWit(okSlot, *t.Ok, path.Push("0"))
			if err != nil {
				return Value{}, err
			}
			resVal = &wv
		}
		return Value{Kind: KindResult, IsOk: true, ResVal: resVal}, nil

	case errIsValue && !okIsValue:
		var resVal *Value
		if t.Err != nil {
			wv, err := ToWit(errSlot, *t.Err, path.Push("1"))
			if err != nil {
				return Value{}, err
			}
			resVal = &wv
		}
		return Value{Kind: KindResult, IsOk: false, ResVal: resVal}, nil

	default:
		// Both null or both non-null: the slots cannot be told apart, so
		// this always fails as ambiguous.
		return Value{}, &AmbiguousResultError{Path: path}
	}
}
