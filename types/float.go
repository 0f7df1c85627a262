package types

import (
	"strconv"
	"strings"
)

// FloatValue is the Flt variant of Value, an IEEE-754 double.
type FloatValue struct {
	Val float64
}

// NewFloat creates a float value.
func NewFloat(v float64) FloatValue {
	return FloatValue{Val: v}
}

func (f FloatValue) Type() TypeCode { return TYPE_FLOAT }

// String formats the float so that it always reads back as a float:
// a "." or an exponent is guaranteed to be present.
func (f FloatValue) String() string {
	s := strconv.FormatFloat(f.Val, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") || strings.HasPrefix(s, "Inf") || strings.HasPrefix(s, "-Inf") {
		if strings.ContainsAny(s, "0123456789") {
			s += ".0"
		}
	}
	return s
}

func (f FloatValue) Truthy() bool { return f.Val != 0.0 }

func (f FloatValue) Equal(other Value) bool {
	o, ok := other.(FloatValue)
	return ok && f.Val == o.Val
}
