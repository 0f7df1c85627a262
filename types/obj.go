package types

import "strconv"

// ObjValue is the Obj variant of Value, an object number.
type ObjValue struct {
	Val ObjID
}

// NewObj creates an object value.
func NewObj(id ObjID) ObjValue {
	return ObjValue{Val: id}
}

func (o ObjValue) Type() TypeCode { return TYPE_OBJ }
func (o ObjValue) String() string { return "#" + strconv.FormatInt(int64(o.Val), 10) }
// Truthy: object references are always false.
func (o ObjValue) Truthy() bool { return false }

func (o ObjValue) Equal(other Value) bool {
	v, ok := other.(ObjValue)
	return ok && o.Val == v.Val
}
