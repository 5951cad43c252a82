// Package sexp implements the S-expression facade SEAP treats as an
// opaque, reference-counted payload type. It provides exactly the
// capabilities the core needs: construct integer/string/list values, free
// them, compare atoms, and walk association-list style attributes.
package sexp

import (
	"fmt"
	"sync/atomic"
)

// Kind identifies the shape of a Value.
type Kind uint8

// The three shapes a Value can take.
const (
	KindInt Kind = iota
	KindString
	KindList
)

// Value is a node in an S-expression tree: an integer atom, a string
// atom, or a list of Values. It is reference-counted so a payload handed
// to a packet can be cloned into shared ownership without a deep copy.
type Value struct {
	kind Kind
	num  int64
	str  string
	list []*Value
	refs int32
}

// NewInt constructs an owned integer atom.
func NewInt(n int64) *Value {
	return &Value{kind: KindInt, num: n, refs: 1}
}

// NewString constructs an owned string atom.
func NewString(s string) *Value {
	return &Value{kind: KindString, str: s, refs: 1}
}

// NewList constructs an owned list. Ownership of each element transfers
// to the new list.
func NewList(items ...*Value) *Value {
	return &Value{kind: KindList, list: items, refs: 1}
}

// Kind reports the shape of v.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindList
	}
	return v.kind
}

// IsAtom reports whether v is an integer or string atom.
func (v *Value) IsAtom() bool {
	return v.Kind() == KindInt || v.Kind() == KindString
}

// IsList reports whether v is a list.
func (v *Value) IsList() bool {
	return v.Kind() == KindList
}

// Int returns v's integer value. ok is false if v is not an integer atom.
func (v *Value) Int() (n int64, ok bool) {
	if v == nil || v.kind != KindInt {
		return 0, false
	}
	return v.num, true
}

// Str returns v's string value. ok is false if v is not a string atom.
func (v *Value) Str() (s string, ok bool) {
	if v == nil || v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// List returns v's elements. ok is false if v is not a list.
func (v *Value) List() (items []*Value, ok bool) {
	if v == nil || v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Clone returns v with its reference count incremented, giving the
// caller a second owning handle on the same underlying value.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	atomic.AddInt32(&v.refs, 1)
	return v
}

// Free releases one reference to v and everything it owns. v must not be
// used after its last reference is freed.
func Free(v *Value) {
	if v == nil {
		return
	}
	if atomic.AddInt32(&v.refs, -1) > 0 {
		return
	}
	if v.kind == KindList {
		for _, item := range v.list {
			Free(item)
		}
	}
	v.list = nil
}

// Equal reports whether a and b are structurally equal: same kind, same
// atom value, or same list length with pairwise-equal elements.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInt:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Assoc treats v as an association list of (name value) pairs — each
// element a two-item list whose head is a string atom — and returns the
// value paired with name, per spec.md §6's "attribute containment"
// capability. ok is false if v is not a list or name is not present.
func Assoc(v *Value, name string) (val *Value, ok bool) {
	items, isList := v.List()
	if !isList {
		return nil, false
	}
	for _, pair := range items {
		pairItems, isPair := pair.List()
		if !isPair || len(pairItems) != 2 {
			continue
		}
		key, isStr := pairItems[0].Str()
		if isStr && key == name {
			return pairItems[1], true
		}
	}
	return nil, false
}

// Pair builds a two-element (name value) association list entry.
func Pair(name string, value *Value) *Value {
	return NewList(NewString(name), value)
}

func (v *Value) String() string {
	switch v.Kind() {
	case KindInt:
		n, _ := v.Int()
		return fmt.Sprintf("%d", n)
	case KindString:
		s, _ := v.Str()
		return fmt.Sprintf("%q", s)
	default:
		items, _ := v.List()
		s := "("
		for i, item := range items {
			if i > 0 {
				s += " "
			}
			s += item.String()
		}
		return s + ")"
	}
}
