package types

import "testing"

func TestLiteralRoundTrip(t *testing.T) {
	values := []Value{
		NewInt(0),
		NewInt(-42),
		NewInt(9223372036854775807),
		NewFloat(3.5),
		NewFloat(-0.25),
		NewFloat(1e100),
		NewStr(""),
		NewStr("plain"),
		NewStr(`with "quotes" and \backslash`),
		NewObj(0),
		NewObj(ObjNothing),
		NewErr(E_PERM),
		NewEmptyList(),
		NewList([]Value{NewInt(1), NewStr("two"), NewObj(3)}),
		NewList([]Value{NewList([]Value{NewErr(E_DIV)}), NewFloat(2.5)}),
	}
	for _, v := range values {
		lit := ToLiteral(v)
		back, err := ParseLiteral(lit)
		if err != nil {
			t.Errorf("ParseLiteral(%q): %v", lit, err)
			continue
		}
		if !Indistinguishable(v, back) {
			t.Errorf("round trip %q: got %q", lit, ToLiteral(back))
		}
	}
}

func TestParseLiteralRejects(t *testing.T) {
	bad := []string{"", "{1, 2", `"unterminated`, "E_BOGUS", "1 2", "#"}
	for _, s := range bad {
		if v, err := ParseLiteral(s); err == nil {
			t.Errorf("ParseLiteral(%q) accepted as %s", s, ToLiteral(v))
		}
	}
}

func TestValueHashMatchesLiteralHash(t *testing.T) {
	values := []Value{
		NewInt(7),
		NewStr("hello"),
		NewList([]Value{NewInt(1), NewStr("x")}),
	}
	for _, v := range values {
		if ValueHash(v) != HashString(ToLiteral(v)) {
			t.Errorf("value_hash(%s) != string_hash(toliteral)", ToLiteral(v))
		}
	}
}

func TestHashStringForm(t *testing.T) {
	// The well-known MD5 of the empty string, uppercased.
	if got := HashString(""); got != "D41D8CD98F00B204E9800998ECF8427E" {
		t.Errorf("HashString(\"\") = %s", got)
	}
}
