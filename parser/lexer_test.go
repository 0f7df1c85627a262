package parser

import "testing"

func lexAll(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TOKEN_EOF || tok.Type == TOKEN_ERROR {
			return toks
		}
	}
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
	}{
		{"1 + 2", []TokenType{TOKEN_INT, TOKEN_PLUS, TOKEN_INT, TOKEN_EOF}},
		{"3.14", []TokenType{TOKEN_FLOAT, TOKEN_EOF}},
		{"1e5", []TokenType{TOKEN_FLOAT, TOKEN_EOF}},
		{"1..5", []TokenType{TOKEN_INT, TOKEN_DOTDOT, TOKEN_INT, TOKEN_EOF}},
		{"#42", []TokenType{TOKEN_OBJNUM, TOKEN_EOF}},
		{"#-1", []TokenType{TOKEN_OBJNUM, TOKEN_EOF}},
		{`"hi"`, []TokenType{TOKEN_STR, TOKEN_EOF}},
		{"x == y != z", []TokenType{TOKEN_IDENT, TOKEN_EQ, TOKEN_IDENT, TOKEN_NE, TOKEN_IDENT, TOKEN_EOF}},
		{"a && b || !c", []TokenType{TOKEN_IDENT, TOKEN_AND, TOKEN_IDENT, TOKEN_OR, TOKEN_NOT, TOKEN_IDENT, TOKEN_EOF}},
		{"obj:verb(x)", []TokenType{TOKEN_IDENT, TOKEN_COLON, TOKEN_IDENT, TOKEN_LPAREN, TOKEN_IDENT, TOKEN_RPAREN, TOKEN_EOF}},
		{"{@x}", []TokenType{TOKEN_LBRACE, TOKEN_AT, TOKEN_IDENT, TOKEN_RBRACE, TOKEN_EOF}},
		{"`e ! ANY => 0'", []TokenType{TOKEN_BACKTICK, TOKEN_IDENT, TOKEN_NOT, TOKEN_IDENT, TOKEN_ARROW, TOKEN_INT, TOKEN_QUOTE, TOKEN_EOF}},
		{"IF endif", []TokenType{TOKEN_IF, TOKEN_ENDIF, TOKEN_EOF}},
		{"x = y => z", []TokenType{TOKEN_IDENT, TOKEN_ASSIGN, TOKEN_IDENT, TOKEN_ARROW, TOKEN_IDENT, TOKEN_EOF}},
		{"a /* gone */ b", []TokenType{TOKEN_IDENT, TOKEN_IDENT, TOKEN_EOF}},
	}
	for _, tt := range tests {
		toks := lexAll(tt.input)
		if len(toks) != len(tt.types) {
			t.Errorf("%q: got %d tokens, want %d", tt.input, len(toks), len(tt.types))
			continue
		}
		for i, want := range tt.types {
			if toks[i].Type != want {
				t.Errorf("%q token %d: got %s, want %s", tt.input, i, toks[i].Type, want)
			}
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll(`"a \"quoted\" word"`)
	if toks[0].Type != TOKEN_STR || toks[0].Value != `a "quoted" word` {
		t.Errorf("got %s %q", toks[0].Type, toks[0].Value)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	toks := lexAll(`"open`)
	if toks[0].Type != TOKEN_ERROR {
		t.Errorf("expected error token, got %s", toks[0].Type)
	}
}

func TestLexerLineNumbers(t *testing.T) {
	toks := lexAll("a\nb\n  c")
	if toks[0].Line != 1 || toks[1].Line != 2 || toks[2].Line != 3 {
		t.Errorf("line numbers: %d %d %d", toks[0].Line, toks[1].Line, toks[2].Line)
	}
}
