package parser

import (
	"fmt"
	"strconv"
	"strings"

	"etamoo/types"
)

// intZero is the implicit value of empty statements and bare returns.
var intZero = types.NewInt(0)

// Parser turns MOO source text into an AST. A parse failure returns a
// line-annotated error and no partial tree.
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
}

// NewParser creates a parser over the given source.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) pos() Position {
	return Position{Line: p.current.Line, Col: p.current.Col}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", p.current.Line, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(t TokenType) error {
	if p.current.Type != t {
		return p.errorf("expected %s, found %s %q", t, p.current.Type, p.current.Value)
	}
	p.nextToken()
	return nil
}

// Binding powers, loosest first.
const (
	precNone    = 0
	precAssign  = 1
	precCond    = 2
	precOr      = 3
	precAnd     = 4
	precCompare = 5
	precAdd     = 6
	precMul     = 7
	precPow     = 8
	precUnary   = 9
)

func binaryPrec(t TokenType) int {
	switch t {
	case TOKEN_ASSIGN:
		return precAssign
	case TOKEN_QUESTION:
		return precCond
	case TOKEN_OR:
		return precOr
	case TOKEN_AND:
		return precAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE, TOKEN_IN:
		return precCompare
	case TOKEN_PLUS, TOKEN_MINUS:
		return precAdd
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_PERCENT:
		return precMul
	case TOKEN_CARET:
		return precPow
	}
	return precNone
}

// ParseExpression parses a single expression from the source.
// Used by tests.
func (p *Parser) ParseExpression() (Expr, error) {
	e, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	if p.current.Type != TOKEN_EOF {
		return nil, p.errorf("unexpected %s after expression", p.current.Type)
	}
	return e, nil
}

func (p *Parser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.current.Type
		prec := binaryPrec(op)
		if prec == precNone || prec < minPrec {
			return left, nil
		}

		switch op {
		case TOKEN_ASSIGN:
			pos := p.pos()
			p.nextToken()
			right, err := p.parseExpr(precAssign) // right associative
			if err != nil {
				return nil, err
			}
			left, err = p.makeAssign(pos, left, right)
			if err != nil {
				return nil, err
			}
		case TOKEN_QUESTION:
			pos := p.pos()
			p.nextToken()
			thenExpr, err := p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
			if err := p.expect(TOKEN_PIPE); err != nil {
				return nil, err
			}
			elseExpr, err := p.parseExpr(precCond)
			if err != nil {
				return nil, err
			}
			left = &CondExpr{Pos: pos, Condition: left, ThenExpr: thenExpr, ElseExpr: elseExpr}
		case TOKEN_AND:
			pos := p.pos()
			p.nextToken()
			right, err := p.parseExpr(precAnd + 1)
			if err != nil {
				return nil, err
			}
			left = &AndExpr{Pos: pos, Left: left, Right: right}
		case TOKEN_OR:
			pos := p.pos()
			p.nextToken()
			right, err := p.parseExpr(precOr + 1)
			if err != nil {
				return nil, err
			}
			left = &OrExpr{Pos: pos, Left: left, Right: right}
		default:
			pos := p.pos()
			p.nextToken()
			right, err := p.parseExpr(prec + 1)
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Pos: pos, Left: left, Operator: op, Right: right}
		}
	}
}

// makeAssign validates an assignment target.
func (p *Parser) makeAssign(pos Position, target, value Expr) (Expr, error) {
	switch t := target.(type) {
	case *IdentifierExpr, *IndexExpr, *RangeExpr, *PropertyExpr:
		return &AssignExpr{Pos: pos, Target: target, Value: value}, nil
	case *ListExpr:
		targets, err := p.scatterTargets(t)
		if err != nil {
			return nil, err
		}
		return &ScatterExpr{Pos: pos, Targets: targets, Value: value}, nil
	default:
		return nil, fmt.Errorf("line %d: invalid assignment target", pos.Line)
	}
}

// scatterTargets converts a brace list to scatter binding slots.
func (p *Parser) scatterTargets(list *ListExpr) ([]ScatterTarget, error) {
	targets := make([]ScatterTarget, 0, len(list.Elements))
	seenRest := false
	for _, el := range list.Elements {
		switch e := el.(type) {
		case *IdentifierExpr:
			targets = append(targets, ScatterTarget{Name: e.Name})
		case *scatterOptExpr:
			targets = append(targets, ScatterTarget{Name: e.Name, Optional: true, Default: e.Default})
		case *SpliceExpr:
			id, ok := e.Expr.(*IdentifierExpr)
			if !ok {
				return nil, fmt.Errorf("line %d: scatter rest target must be a variable", e.Pos.Line)
			}
			if seenRest {
				return nil, fmt.Errorf("line %d: more than one @rest target", e.Pos.Line)
			}
			seenRest = true
			targets = append(targets, ScatterTarget{Name: id.Name, Rest: true})
		default:
			return nil, fmt.Errorf("line %d: invalid scatter target", el.Position().Line)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("line %d: empty scatter assignment", list.Pos.Line)
	}
	return targets, nil
}

// scatterOptExpr is a parse-time placeholder for ?name [= default]
// inside a brace list. It is rejected anywhere a real expression is
// required.
type scatterOptExpr struct {
	Pos     Position
	Name    string
	Default Expr
}

func (e *scatterOptExpr) Position() Position { return e.Pos }
func (e *scatterOptExpr) exprNode()          {}

func (p *Parser) parseUnary() (Expr, error) {
	switch p.current.Type {
	case TOKEN_MINUS, TOKEN_NOT:
		pos := p.pos()
		op := p.current.Type
		p.nextToken()
		if op == TOKEN_MINUS && p.current.Type == TOKEN_INT && p.current.Value == "9223372036854775808" {
			p.nextToken()
			return &LiteralExpr{Pos: pos, Value: types.NewInt(-9223372036854775808)}, nil
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold negation of numeric literals so -9223372036854775808
		// and friends read as single constants.
		if op == TOKEN_MINUS {
			if lit, ok := operand.(*LiteralExpr); ok {
				switch v := lit.Value.(type) {
				case types.IntValue:
					return &LiteralExpr{Pos: pos, Value: types.NewInt(-v.Val)}, nil
				case types.FloatValue:
					return &LiteralExpr{Pos: pos, Value: types.NewFloat(-v.Val)}, nil
				}
			}
		}
		return &UnaryExpr{Pos: pos, Operator: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.current.Type {
		case TOKEN_DOT:
			pos := p.pos()
			p.nextToken()
			if p.current.Type == TOKEN_LPAREN {
				p.nextToken()
				name, err := p.parseExpr(precNone)
				if err != nil {
					return nil, err
				}
				if err := p.expect(TOKEN_RPAREN); err != nil {
					return nil, err
				}
				expr = &PropertyExpr{Pos: pos, Expr: expr, NameExpr: name}
			} else if p.current.Type == TOKEN_IDENT || p.isKeywordIdent() {
				expr = &PropertyExpr{Pos: pos, Expr: expr, Name: p.current.Value}
				p.nextToken()
			} else {
				return nil, p.errorf("expected property name after '.'")
			}
		case TOKEN_COLON:
			pos := p.pos()
			p.nextToken()
			var name string
			var nameExpr Expr
			if p.current.Type == TOKEN_LPAREN {
				p.nextToken()
				ne, err := p.parseExpr(precNone)
				if err != nil {
					return nil, err
				}
				if err := p.expect(TOKEN_RPAREN); err != nil {
					return nil, err
				}
				nameExpr = ne
			} else if p.current.Type == TOKEN_IDENT || p.isKeywordIdent() {
				name = p.current.Value
				p.nextToken()
			} else {
				return nil, p.errorf("expected verb name after ':'")
			}
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			expr = &VerbCallExpr{Pos: pos, Expr: expr, Verb: name, VerbExpr: nameExpr, Args: args}
		case TOKEN_LBRACKET:
			pos := p.pos()
			p.nextToken()
			first, err := p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
			if p.current.Type == TOKEN_DOTDOT {
				p.nextToken()
				end, err := p.parseExpr(precNone)
				if err != nil {
					return nil, err
				}
				if err := p.expect(TOKEN_RBRACKET); err != nil {
					return nil, err
				}
				expr = &RangeExpr{Pos: pos, Expr: expr, Start: first, End: end}
			} else {
				if err := p.expect(TOKEN_RBRACKET); err != nil {
					return nil, err
				}
				expr = &IndexExpr{Pos: pos, Expr: expr, Index: first}
			}
		default:
			return expr, nil
		}
	}
}

// isKeywordIdent allows keywords to double as property and verb names,
// which real databases rely on (e.g. obj.in).
func (p *Parser) isKeywordIdent() bool {
	_, ok := keywords[strings.ToLower(p.current.Value)]
	return ok && p.current.Value != ""
}

func (p *Parser) parsePrimary() (Expr, error) {
	pos := p.pos()

	switch p.current.Type {
	case TOKEN_INT:
		n, err := strconv.ParseInt(p.current.Value, 10, 64)
		if err != nil {
			return nil, p.errorf("integer literal out of range: %s", p.current.Value)
		}
		p.nextToken()
		return &LiteralExpr{Pos: pos, Value: types.NewInt(n)}, nil

	case TOKEN_FLOAT:
		f, err := strconv.ParseFloat(p.current.Value, 64)
		if err != nil {
			return nil, p.errorf("bad float literal: %s", p.current.Value)
		}
		p.nextToken()
		return &LiteralExpr{Pos: pos, Value: types.NewFloat(f)}, nil

	case TOKEN_STR:
		s := p.current.Value
		p.nextToken()
		return &LiteralExpr{Pos: pos, Value: types.NewStr(s)}, nil

	case TOKEN_OBJNUM:
		n, err := strconv.ParseInt(p.current.Value[1:], 10, 64)
		if err != nil {
			return nil, p.errorf("bad object number: %s", p.current.Value)
		}
		p.nextToken()
		return &LiteralExpr{Pos: pos, Value: types.NewObj(types.ObjID(n))}, nil

	case TOKEN_IDENT:
		name := p.current.Value
		// Error names are literals.
		if code, ok := types.ErrorFromString(name); ok && strings.HasPrefix(strings.ToUpper(name), "E_") {
			p.nextToken()
			return &LiteralExpr{Pos: pos, Value: types.NewErr(code)}, nil
		}
		if p.peek.Type == TOKEN_LPAREN {
			p.nextToken()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return &BuiltinCallExpr{Pos: pos, Name: name, Args: args}, nil
		}
		p.nextToken()
		return &IdentifierExpr{Pos: pos, Name: name}, nil

	case TOKEN_DOLLAR:
		if p.peek.Type == TOKEN_IDENT {
			p.nextToken()
			name := p.current.Value
			p.nextToken()
			if p.current.Type == TOKEN_LPAREN {
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				return &SysPropExpr{Pos: pos, Name: name, Call: true, Args: args}, nil
			}
			return &SysPropExpr{Pos: pos, Name: name}, nil
		}
		p.nextToken()
		return &LengthExpr{Pos: pos}, nil

	case TOKEN_LPAREN:
		p.nextToken()
		inner, err := p.parseExpr(precNone)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TOKEN_RPAREN); err != nil {
			return nil, err
		}
		return inner, nil

	case TOKEN_LBRACE:
		return p.parseBraceList()

	case TOKEN_AT:
		p.nextToken()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &SpliceExpr{Pos: pos, Expr: inner}, nil

	case TOKEN_BACKTICK:
		return p.parseCatchExpr()
	}

	return nil, p.errorf("unexpected %s %q in expression", p.current.Type, p.current.Value)
}

// parseBraceList parses {e1, ..., en}, tolerating ?name [= dflt] slots
// so the whole list can become a scatter target.
func (p *Parser) parseBraceList() (Expr, error) {
	pos := p.pos()
	if err := p.expect(TOKEN_LBRACE); err != nil {
		return nil, err
	}
	var elements []Expr
	if p.current.Type != TOKEN_RBRACE {
		for {
			if p.current.Type == TOKEN_QUESTION {
				optPos := p.pos()
				p.nextToken()
				if p.current.Type != TOKEN_IDENT {
					return nil, p.errorf("expected variable after '?'")
				}
				name := p.current.Value
				p.nextToken()
				var dflt Expr
				if p.current.Type == TOKEN_ASSIGN {
					p.nextToken()
					d, err := p.parseExpr(precCond)
					if err != nil {
						return nil, err
					}
					dflt = d
				}
				elements = append(elements, &scatterOptExpr{Pos: optPos, Name: name, Default: dflt})
			} else {
				el, err := p.parseExpr(precCond)
				if err != nil {
					return nil, err
				}
				elements = append(elements, el)
			}
			if p.current.Type != TOKEN_COMMA {
				break
			}
			p.nextToken()
		}
	}
	if err := p.expect(TOKEN_RBRACE); err != nil {
		return nil, err
	}
	list := &ListExpr{Pos: pos, Elements: elements}
	if p.current.Type != TOKEN_ASSIGN {
		for _, el := range elements {
			if _, bad := el.(*scatterOptExpr); bad {
				return nil, p.errorf("scatter pattern outside assignment")
			}
		}
	}
	return list, nil
}

func (p *Parser) parseCatchExpr() (Expr, error) {
	pos := p.pos()
	if err := p.expect(TOKEN_BACKTICK); err != nil {
		return nil, err
	}
	inner, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_NOT); err != nil {
		return nil, err
	}
	codes, err := p.parseErrorCodes()
	if err != nil {
		return nil, err
	}
	var dflt Expr
	if p.current.Type == TOKEN_ARROW {
		p.nextToken()
		d, err := p.parseExpr(precNone)
		if err != nil {
			return nil, err
		}
		dflt = d
	}
	if err := p.expect(TOKEN_QUOTE); err != nil {
		return nil, err
	}
	return &CatchExpr{Pos: pos, Expr: inner, Codes: codes, Default: dflt}, nil
}

// parseErrorCodes parses ANY or a comma-separated code list; nil means
// ANY.
func (p *Parser) parseErrorCodes() ([]Expr, error) {
	if p.current.Type == TOKEN_IDENT && strings.EqualFold(p.current.Value, "any") {
		p.nextToken()
		return nil, nil
	}
	var codes []Expr
	for {
		c, err := p.parseExpr(precCond)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
		if p.current.Type != TOKEN_COMMA {
			return codes, nil
		}
		p.nextToken()
	}
}

// parseArgList parses (e1, ..., en) where elements may be splices.
func (p *Parser) parseArgList() ([]Expr, error) {
	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	args := []Expr{}
	if p.current.Type != TOKEN_RPAREN {
		for {
			a, err := p.parseExpr(precCond)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.current.Type != TOKEN_COMMA {
				break
			}
			p.nextToken()
		}
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}
