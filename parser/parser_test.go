package parser

import (
	"strings"
	"testing"

	"etamoo/types"
)

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser(input)
	e, err := p.ParseExpression()
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return e
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  types.Value
	}{
		{"42", types.NewInt(42)},
		{"-42", types.NewInt(-42)},
		{"3.5", types.NewFloat(3.5)},
		{`"hi"`, types.NewStr("hi")},
		{"#7", types.NewObj(7)},
		{"#-1", types.NewObj(types.ObjNothing)},
		{"E_PERM", types.NewErr(types.E_PERM)},
	}
	for _, tt := range tests {
		e := parseExpr(t, tt.input)
		lit, ok := e.(*LiteralExpr)
		if !ok {
			t.Errorf("%q: got %T, want literal", tt.input, e)
			continue
		}
		if !types.Indistinguishable(lit.Value, tt.want) {
			t.Errorf("%q: got %s", tt.input, lit.Value.String())
		}
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 < 2 && 3 < 4", "((1 < 2) && (3 < 4))"},
		{"a || b && c", "(a || (b && c))"},
		{"1 + 2 == 3", "((1 + 2) == 3)"},
		{"2 ^ 3 * 4", "((2 ^ 3) * 4)"},
		{"x in {1, 2}", "(x in {1, 2})"},
	}
	for _, tt := range tests {
		if got := ExprString(parseExpr(t, tt.input)); got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseConditional(t *testing.T) {
	got := ExprString(parseExpr(t, "a ? b | c ? d | e"))
	want := "(a ? b | (c ? d | e))"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestParsePostfix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"x.name", "x.name"},
		{"x.(n)", "x.(n)"},
		{"x:go(1, 2)", "x:go(1, 2)"},
		{"x[1]", "x[1]"},
		{"x[1..$]", "x[1..$]"},
		{"x.a.b[2]", "x.a.b[2]"},
		{"$foo", "$foo"},
		{"$foo(1)", "$foo(1)"},
		{"f(@args)", "f(@args)"},
	}
	for _, tt := range tests {
		if got := ExprString(parseExpr(t, tt.input)); got != tt.want {
			t.Errorf("%q: got %s", tt.input, got)
		}
	}
}

func TestParseCatchExpr(t *testing.T) {
	e := parseExpr(t, "`x.y ! E_PROPNF, E_PERM => 0'")
	c, ok := e.(*CatchExpr)
	if !ok {
		t.Fatalf("got %T", e)
	}
	if len(c.Codes) != 2 || c.Default == nil {
		t.Errorf("codes %d default %v", len(c.Codes), c.Default)
	}

	e = parseExpr(t, "`f() ! ANY'")
	c = e.(*CatchExpr)
	if c.Codes != nil || c.Default != nil {
		t.Error("ANY catch should have nil codes and default")
	}
}

func TestParseScatter(t *testing.T) {
	e := parseExpr(t, "{a, ?b = 5, @rest} = v")
	sc, ok := e.(*ScatterExpr)
	if !ok {
		t.Fatalf("got %T", e)
	}
	if len(sc.Targets) != 3 {
		t.Fatalf("targets %d", len(sc.Targets))
	}
	if sc.Targets[0].Name != "a" || sc.Targets[0].Optional || sc.Targets[0].Rest {
		t.Error("first target wrong")
	}
	if !sc.Targets[1].Optional || sc.Targets[1].Default == nil {
		t.Error("second target should be optional with default")
	}
	if !sc.Targets[2].Rest {
		t.Error("third target should be rest")
	}
}

func TestParseScatterOutsideAssignment(t *testing.T) {
	p := NewParser("{a, ?b} + 1")
	if _, err := p.ParseExpression(); err == nil {
		t.Error("scatter pattern outside assignment accepted")
	}
}

func TestParseErrorsAnnotateLines(t *testing.T) {
	p := NewParser("x = 1;\ny = ;\n")
	_, err := p.ParseProgram()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error not line-annotated: %v", err)
	}
}
