package types

import (
	"strings"

	"src.elv.sh/pkg/persistent/vector"
)

// ListValue is the Lst variant of Value. It is a persistent sequence:
// every mutator returns a new list and never disturbs other references.
// Storage is a structural-sharing vector, so Set and Append are
// O(log n), not a full copy; InsertAt, DeleteAt (except at the end)
// and Slice build a new vector element by element.
type ListValue struct {
	vec vector.Vector
}

var emptyVec = vector.Empty

// NewList creates a list from a slice of values.
func NewList(elements []Value) ListValue {
	v := emptyVec
	for _, e := range elements {
		v = v.Conj(e)
	}
	return ListValue{vec: v}
}

// NewEmptyList creates an empty list.
func NewEmptyList() ListValue {
	return ListValue{vec: emptyVec}
}

func (l ListValue) Type() TypeCode { return TYPE_LIST }

func (l ListValue) String() string {
	if l.Len() == 0 {
		return "{}"
	}
	var parts []string
	for it := l.vec.Iterator(); it.HasElem(); it.Next() {
		parts = append(parts, it.Elem().(Value).String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (l ListValue) Truthy() bool { return l.Len() > 0 }

func (l ListValue) Equal(other Value) bool {
	o, ok := other.(ListValue)
	if !ok || l.Len() != o.Len() {
		return false
	}
	ia, ib := l.vec.Iterator(), o.vec.Iterator()
	for ia.HasElem() {
		if !ia.Elem().(Value).Equal(ib.Elem().(Value)) {
			return false
		}
		ia.Next()
		ib.Next()
	}
	return true
}

// Len returns the number of elements.
func (l ListValue) Len() int { return l.vec.Len() }

// Get returns the element at a 1-based index, or nil when out of range.
func (l ListValue) Get(index int) Value {
	v, ok := l.vec.Index(index - 1)
	if !ok {
		return nil
	}
	return v.(Value)
}

// Set returns a new list with the 1-based index replaced.
// Out-of-range indices return the list unchanged; callers that must
// distinguish check the range first.
func (l ListValue) Set(index int, value Value) ListValue {
	if index < 1 || index > l.Len() {
		return l
	}
	return ListValue{vec: l.vec.Assoc(index-1, value)}
}

// Append returns a new list with value added at the end.
func (l ListValue) Append(value Value) ListValue {
	return ListValue{vec: l.vec.Conj(value)}
}

// InsertAt returns a new list with value inserted before the 1-based index.
// index may be Len()+1 to append.
func (l ListValue) InsertAt(index int, value Value) ListValue {
	n := l.Len()
	if index < 1 {
		index = 1
	}
	if index > n+1 {
		index = n + 1
	}
	out := emptyVec
	for i := 1; i < index; i++ {
		out = out.Conj(l.Get(i))
	}
	out = out.Conj(value)
	for i := index; i <= n; i++ {
		out = out.Conj(l.Get(i))
	}
	return ListValue{vec: out}
}

// DeleteAt returns a new list with the element at the 1-based index removed.
func (l ListValue) DeleteAt(index int) ListValue {
	n := l.Len()
	if index < 1 || index > n {
		return l
	}
	if index == n {
		return ListValue{vec: l.vec.Pop()}
	}
	out := emptyVec
	for i := 1; i <= n; i++ {
		if i == index {
			continue
		}
		out = out.Conj(l.Get(i))
	}
	return ListValue{vec: out}
}

// Slice returns the 1-based inclusive subrange [start..end].
// An inverted range yields the empty list.
func (l ListValue) Slice(start, end int) ListValue {
	n := l.Len()
	if start < 1 {
		start = 1
	}
	if end > n {
		end = n
	}
	if start > end {
		return NewEmptyList()
	}
	out := emptyVec
	for i := start; i <= end; i++ {
		out = out.Conj(l.Get(i))
	}
	return ListValue{vec: out}
}

// Elements returns the elements as a Go slice.
func (l ListValue) Elements() []Value {
	out := make([]Value, 0, l.Len())
	for it := l.vec.Iterator(); it.HasElem(); it.Next() {
		out = append(out, it.Elem().(Value))
	}
	return out
}

// IsMember returns the 1-based index of the first element
// indistinguishable from v, or 0.
func (l ListValue) IsMember(v Value) int {
	i := 1
	for it := l.vec.Iterator(); it.HasElem(); it.Next() {
		if Indistinguishable(it.Elem().(Value), v) {
			return i
		}
		i++
	}
	return 0
}

// Contains returns the 1-based index of the first element equal to v
// under == equality, or 0. This is the `in` operator.
func (l ListValue) Contains(v Value) int {
	i := 1
	for it := l.vec.Iterator(); it.HasElem(); it.Next() {
		if it.Elem().(Value).Equal(v) {
			return i
		}
		i++
	}
	return 0
}
