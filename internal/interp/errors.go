package interp

import (
	"fmt"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// TypeMismatchError is returned when an IPLD value's kind cannot be
// admitted by the target WIT type at all (e.g. a Map where a List is
// required).
type TypeMismatchError struct {
	Path     ipld.Path
	Want     Kind
	Got      ipld.Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: type mismatch: wit type wants %v, ipld value is %v", e.Path, e.Want, e.Got)
}

// ArityMismatchError is returned when a tuple or record's element
// count does not match the target type's shape.
type ArityMismatchError struct {
	Path ipld.Path
	Want int
	Got  int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("%s: arity mismatch: wit type wants %d elements, ipld value has %d", e.Path, e.Want, e.Got)
}

// RangeOverflowError is returned when an integer value does not fit in
// the target WIT integer type's range.
type RangeOverflowError struct {
	Path ipld.Path
	Kind Kind
	Repr string
}

func (e *RangeOverflowError) Error() string {
	return fmt.Sprintf("%s: value %s does not fit in %v", e.Path, e.Repr, e.Kind)
}

// UnknownVariantCaseError is returned when an IPLD map's single key
// does not name any case of the target variant or enum.
type UnknownVariantCaseError struct {
	Path ipld.Path
	Case string
}

func (e *UnknownVariantCaseError) Error() string {
	return fmt.Sprintf("%s: unknown variant/enum case %q", e.Path, e.Case)
}

// AmbiguousResultError is returned when a 2-element list targeting a
// result<T,E> cannot be structurally disambiguated into Ok or Err —
// either both slots are null, or both are non-null.
type AmbiguousResultError struct {
	Path ipld.Path
}

func (e *AmbiguousResultError) Error() string {
	return fmt.Sprintf("%s: ambiguous result: cannot disambiguate ok/err slot", e.Path)
}
