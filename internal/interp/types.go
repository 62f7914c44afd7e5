// Package interp implements the bidirectional, type-directed
// translation between IPLD values and Wasm component-model (WIT)
// values described in spec.md §4.1. The interpreter always knows the
// target WIT type ahead of time — it never infers one from IPLD shape
// alone — so every conversion takes an explicit Type parameter and
// recurses on it, never on runtime reflection of the IPLD side.
package interp

// Kind enumerates the WIT value classes the interpreter understands.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindFloat32
	KindFloat64
	KindChar
	KindString
	KindList
	KindTuple
	KindRecord
	KindVariant
	KindEnum
	KindFlags
	KindOption
	KindResult
	KindUnit
)

// Field is a named record field or tuple-equivalent slot.
type Field struct {
	Name string
	Type Type
}

// Case is a variant/enum arm. Payload is nil for an enum case or a
// variant case that carries no value.
type Case struct {
	Name    string
	Payload *Type
}

// Type describes a single WIT type the interpreter can translate to
// or from. Only the fields relevant to Kind are populated.
type Type struct {
	Kind Kind

	// list<T>, option<T>
	Elem *Type

	// tuple<T1,...,Tn>
	Tuple []Type

	// record{f1: T1, ...}
	Fields []Field

	// variant{c1(T1?), ...} / enum{c1, ...} / flags{f1, ...}
	Cases []Case

	// result<T, E> — nil Ok/Err means that side is unit.
	Ok  *Type
	Err *Type
}

// IsListOfU8 reports whether t is WIT's list<u8>, which has a
// deliberately distinct IPLD admission set from list<T> in general.
func (t Type) IsListOfU8() bool {
	return t.Kind == KindList && t.Elem != nil && t.Elem.Kind == KindU8
}

// Integer convenience constructors.
func U8() Type  { return Type{Kind: KindU8} }
func U16() Type { return Type{Kind: KindU16} }
func U32() Type { return Type{Kind: KindU32} }
func U64() Type { return Type{Kind: KindU64} }
func S8() Type  { return Type{Kind: KindS8} }
func S16() Type { return Type{Kind: KindS16} }
func S32() Type { return Type{Kind: KindS32} }
func S64() Type { return Type{Kind: KindS64} }

func Bool() Type    { return Type{Kind: KindBool} }
func F32() Type     { return Type{Kind: KindFloat32} }
func F64() Type     { return Type{Kind: KindFloat64} }
func Char() Type    { return Type{Kind: KindChar} }
func Str() Type     { return Type{Kind: KindString} }
func Unit() Type    { return Type{Kind: KindUnit} }
func ListOf(e Type) Type   { return Type{Kind: KindList, Elem: &e} }
func OptionOf(e Type) Type { return Type{Kind: KindOption, Elem: &e} }
func TupleOf(ts ...Type) Type { return Type{Kind: KindTuple, Tuple: ts} }

func Record(fields ...Field) Type { return Type{Kind: KindRecord, Fields: fields} }
func Variant(cases ...Case) Type  { return Type{Kind: KindVariant, Cases: cases} }
func Enum(names ...string) Type {
	cases := make([]Case, len(names))
	for i, n := range names {
		cases[i] = Case{Name: n}
	}
	return Type{Kind: KindEnum, Cases: cases}
}
func Flags(names ...string) Type {
	cases := make([]Case, len(names))
	for i, n := range names {
		cases[i] = Case{Name: n}
	}
	return Type{Kind: KindFlags, Cases: cases}
}
func Result(ok, errT *Type) Type { return Type{Kind: KindResult, Ok: ok, Err: errT} }

// Value is a WIT component-model runtime value, the interpreter's typed
// intermediate form; the Wasm sandbox converts it back to IPLD and
// exchanges a DAG-CBOR buffer with guest code.
type Value struct {
	Kind Kind

	B      bool
	U      uint64
	I      int64
	F32    float32
	F64    float64
	Ch     rune
	Str    string
	List   []Value
	Record map[string]Value
	// CaseName/Payload together represent a variant arm; Payload is nil
	// for an enum value or a case carrying no value.
	CaseName string
	Payload  *Value
	Flags    []string
	// Option: Some holds the payload, Present distinguishes None from
	// a Some wrapping a zero value.
	Present bool
	Some    *Value
	// Result
	IsOk    bool
	ResVal  *Value
}
