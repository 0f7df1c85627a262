package types

import "strconv"

// IntValue is the Int variant of Value, a 64-bit signed integer.
type IntValue struct {
	Val int64
}

// NewInt creates an integer value.
func NewInt(v int64) IntValue {
	return IntValue{Val: v}
}

func (i IntValue) Type() TypeCode { return TYPE_INT }
func (i IntValue) String() string { return strconv.FormatInt(i.Val, 10) }
func (i IntValue) Truthy() bool   { return i.Val != 0 }

func (i IntValue) Equal(other Value) bool {
	o, ok := other.(IntValue)
	return ok && i.Val == o.Val
}
