package types

import "testing"

func intList(ns ...int64) ListValue {
	vals := make([]Value, len(ns))
	for i, n := range ns {
		vals[i] = NewInt(n)
	}
	return NewList(vals)
}

func TestListPersistence(t *testing.T) {
	orig := intList(1, 2, 3)
	mod := orig.Set(2, NewInt(99))
	if got := orig.Get(2).(IntValue).Val; got != 2 {
		t.Errorf("Set mutated the original: %d", got)
	}
	if got := mod.Get(2).(IntValue).Val; got != 99 {
		t.Errorf("Set result wrong: %d", got)
	}
	if orig.Len() != mod.Len() {
		t.Error("Set changed length")
	}
}

func TestListInsertDeleteInverse(t *testing.T) {
	l := intList(1, 2, 3, 4)
	for i := 1; i <= l.Len()+1; i++ {
		round := l.InsertAt(i, NewInt(99)).DeleteAt(i)
		if !round.Equal(l) {
			t.Errorf("insert/delete at %d not inverse: %s", i, round.String())
		}
	}
}

func TestListAppendEqualsInsertAtEnd(t *testing.T) {
	l := intList(5, 6)
	a := l.Append(NewInt(7))
	b := l.InsertAt(l.Len()+1, NewInt(7))
	if !a.Equal(b) {
		t.Errorf("append %s != insert-at-end %s", a.String(), b.String())
	}
}

func TestListSlice(t *testing.T) {
	l := intList(10, 20, 30, 40)
	if got := l.Slice(2, 3); !got.Equal(intList(20, 30)) {
		t.Errorf("Slice(2,3) = %s", got.String())
	}
	if got := l.Slice(3, 2); got.Len() != 0 {
		t.Errorf("inverted slice should be empty, got %s", got.String())
	}
}

func TestListMembership(t *testing.T) {
	l := NewList([]Value{NewStr("FOO"), NewStr("foo")})
	if got := l.IsMember(NewStr("foo")); got != 2 {
		t.Errorf("IsMember case-sensitive = %d, want 2", got)
	}
	if got := l.Contains(NewStr("foo")); got != 1 {
		t.Errorf("Contains case-folding = %d, want 1", got)
	}
	if got := l.Contains(NewInt(1)); got != 0 {
		t.Errorf("Contains missing = %d, want 0", got)
	}
}

func TestListEqualDeep(t *testing.T) {
	a := NewList([]Value{NewInt(1), intList(2, 3)})
	b := NewList([]Value{NewInt(1), intList(2, 3)})
	c := NewList([]Value{NewInt(1), intList(2, 4)})
	if !a.Equal(b) {
		t.Error("deep equal lists unequal")
	}
	if a.Equal(c) {
		t.Error("different lists compare equal")
	}
}
