package types

import (
	"math"
	"strconv"
	"strings"
)

// ToStr renders a value the way tostr() does: strings are unquoted,
// errors print their message, lists collapse to "{list}".
func ToStr(v Value) string {
	switch val := v.(type) {
	case StrValue:
		return val.Value()
	case ErrValue:
		return val.Code.Message()
	case ListValue:
		return "{list}"
	default:
		return v.String()
	}
}

// ToInt converts a value to an integer.
// Floats truncate toward zero and fail E_FLOAT only if the truncated
// value is out of range; NaN is E_INVARG. Strings parse a leading
// decimal number, yielding 0 on garbage rather than an error.
func ToInt(v Value) (int64, ErrorCode) {
	switch val := v.(type) {
	case IntValue:
		return val.Val, E_NONE
	case FloatValue:
		if math.IsNaN(val.Val) {
			return 0, E_INVARG
		}
		t := math.Trunc(val.Val)
		if t >= math.MaxInt64 || t < math.MinInt64 {
			return 0, E_FLOAT
		}
		return int64(t), E_NONE
	case ObjValue:
		return int64(val.Val), E_NONE
	case ErrValue:
		return int64(val.Code), E_NONE
	case StrValue:
		return parseLeadingInt(val.Value()), E_NONE
	default:
		return 0, E_TYPE
	}
}

// ToFloat converts a value to a float.
func ToFloat(v Value) (float64, ErrorCode) {
	switch val := v.(type) {
	case IntValue:
		return float64(val.Val), E_NONE
	case FloatValue:
		return val.Val, E_NONE
	case StrValue:
		return parseLeadingFloat(val.Value()), E_NONE
	case ErrValue:
		return float64(val.Code), E_NONE
	default:
		return 0, E_TYPE
	}
}

// ToObj converts a value to an object reference.
// Strings accept an optional leading "#".
func ToObj(v Value) (ObjID, ErrorCode) {
	switch val := v.(type) {
	case ObjValue:
		return val.Val, E_NONE
	case IntValue:
		return ObjID(val.Val), E_NONE
	case StrValue:
		s := strings.TrimSpace(val.Value())
		s = strings.TrimPrefix(s, "#")
		return ObjID(parseLeadingInt(s)), E_NONE
	default:
		return 0, E_TYPE
	}
}

func parseLeadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseLeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	// Longest prefix that parses as a float.
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return 0
}
