package parser

import "testing"

func parseProgram(t *testing.T, input string) []Stmt {
	t.Helper()
	p := NewParser(input)
	stmts, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return stmts
}

func TestParseIf(t *testing.T) {
	stmts := parseProgram(t, `
		if (x > 1)
			y = 1;
		elseif (x > 0)
			y = 2;
		else
			y = 3;
		endif
	`)
	ifStmt, ok := stmts[0].(*IfStmt)
	if !ok {
		t.Fatalf("got %T", stmts[0])
	}
	if len(ifStmt.ElseIfs) != 1 || ifStmt.Else == nil {
		t.Errorf("elseifs %d else %v", len(ifStmt.ElseIfs), ifStmt.Else)
	}
}

func TestParseLoops(t *testing.T) {
	stmts := parseProgram(t, `
		while going (x)
			break going;
		endwhile
		for v, i in (list)
			continue;
		endfor
		for n in [1..10]
		endfor
	`)
	w := stmts[0].(*WhileStmt)
	if w.Label != "going" {
		t.Errorf("while label %q", w.Label)
	}
	if b := w.Body[0].(*BreakStmt); b.Label != "going" {
		t.Errorf("break label %q", b.Label)
	}
	f := stmts[1].(*ForStmt)
	if f.Value != "v" || f.Index != "i" || f.Container == nil {
		t.Errorf("for-list parsed wrong: %+v", f)
	}
	fr := stmts[2].(*ForStmt)
	if fr.Container != nil || fr.RangeStart == nil || fr.RangeEnd == nil {
		t.Errorf("for-range parsed wrong: %+v", fr)
	}
}

func TestParseFork(t *testing.T) {
	stmts := parseProgram(t, `
		fork tid (5)
			x = 1;
		endfork
		fork (0)
		endfork
	`)
	f := stmts[0].(*ForkStmt)
	if f.Var != "tid" || f.Delay == nil || len(f.Body) != 1 {
		t.Errorf("fork parsed wrong: %+v", f)
	}
	anon := stmts[1].(*ForkStmt)
	if anon.Var != "" {
		t.Errorf("anonymous fork got label %q", anon.Var)
	}
}

func TestParseTryForms(t *testing.T) {
	stmts := parseProgram(t, `
		try
			x = 1;
		except e (E_DIV, E_RANGE)
			y = 1;
		except (ANY)
			y = 2;
		endtry
		try
			x = 2;
		finally
			z = 1;
		endtry
	`)
	te := stmts[0].(*TryStmt)
	if len(te.Excepts) != 2 || te.Finally != nil {
		t.Fatalf("try/except parsed wrong")
	}
	if te.Excepts[0].Variable != "e" || len(te.Excepts[0].Codes) != 2 {
		t.Error("first clause wrong")
	}
	if te.Excepts[1].Codes != nil {
		t.Error("ANY clause should have nil codes")
	}
	tf := stmts[1].(*TryStmt)
	if tf.Excepts != nil || tf.Finally == nil {
		t.Error("try/finally parsed wrong")
	}
}

func TestUnparseStable(t *testing.T) {
	source := []string{
		"if (x > 1)",
		"  y = 2;",
		"else",
		"  while (x)",
		"    x = x - 1;",
		"  endwhile",
		"endif",
		"return {1, 2};",
	}
	stmts := parseProgram(t, join(source))
	listing := Unparse(stmts)
	reparsed := parseProgram(t, join(listing))
	again := Unparse(reparsed)
	if len(listing) != len(again) {
		t.Fatalf("listing unstable: %d vs %d lines", len(listing), len(again))
	}
	for i := range listing {
		if listing[i] != again[i] {
			t.Errorf("line %d: %q vs %q", i, listing[i], again[i])
		}
	}
}

func join(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
