package parser

import (
	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/langerr"
	"github.com/user/humanlogica/internal/lexer"
)

// parseExpr is the entry point for the full precedence chain (lowest to
// highest): or, and, not, comparison, additive, multiplicative, unary,
// postfix, primary.
func (p *Parser) parseExpr() (ast.Node, *langerr.Error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Node, *langerr.Error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.OR) {
		start := p.pos_()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: start}, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Node, *langerr.Error) {
	left, err := p.parseNotLevel()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.AND) {
		start := p.pos_()
		p.advance()
		right, err := p.parseNotLevel()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: start}, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

// parseNotLevel implements the dedicated "not" precedence level that sits
// between and/comparison (spec.md §4.9's precedence list names "not" here
// as well as again among the unary operators).
func (p *Parser) parseNotLevel() (ast.Node, *langerr.Error) {
	if p.at(lexer.NOT) {
		start := p.pos_()
		p.advance()
		operand, err := p.parseNotLevel()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Base: ast.Base{Pos: start}, Op: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[lexer.Kind]string{
	lexer.EQ: "==", lexer.NEQ: "!=", lexer.LT: "<", lexer.GT: ">", lexer.LE: "<=", lexer.GE: ">=",
}

func (p *Parser) parseComparison() (ast.Node, *langerr.Error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.cur().Kind]
		if !ok {
			break
		}
		start := p.pos_()
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: start}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Node, *langerr.Error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.PLUS) || p.at(lexer.MINUS) {
		start := p.pos_()
		op := "+"
		if p.at(lexer.MINUS) {
			op = "-"
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: start}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Node, *langerr.Error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.STAR) || p.at(lexer.SLASH) || p.at(lexer.PERCENT) {
		start := p.pos_()
		var op string
		switch p.cur().Kind {
		case lexer.STAR:
			op = "*"
		case lexer.SLASH:
			op = "/"
		case lexer.PERCENT:
			op = "%"
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Base: ast.Base{Pos: start}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Node, *langerr.Error) {
	if p.at(lexer.MINUS) || p.at(lexer.NOT) {
		start := p.pos_()
		op := "-"
		if p.at(lexer.NOT) {
			op = "not"
		}
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Base: ast.Base{Pos: start}, Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Node, *langerr.Error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case lexer.DOT:
			start := p.pos_()
			p.advance()
			name, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberAccess{Base: ast.Base{Pos: start}, Target: expr, Name: name.Lexeme}
		case lexer.LPAREN:
			start := p.pos_()
			p.advance()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
			expr = &ast.FnCall{Base: ast.Base{Pos: start}, Callee: expr, Args: args}
		case lexer.LBRACKET:
			start := p.pos_()
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBRACKET); err != nil {
				return nil, err
			}
			expr = &ast.IndexAccess{Base: ast.Base{Pos: start}, Target: expr, Index: idx}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgList() ([]ast.Node, *langerr.Error) {
	var args []ast.Node
	for !p.at(lexer.RPAREN) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Node, *langerr.Error) {
	start := p.pos_()
	tok := p.cur()
	switch tok.Kind {
	case lexer.INT:
		p.advance()
		return &ast.IntLit{Base: ast.Base{Pos: start}, Value: tok.IntVal}, nil
	case lexer.FLOAT:
		p.advance()
		return &ast.FloatLit{Base: ast.Base{Pos: start}, Value: tok.FloatVal}, nil
	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Base: ast.Base{Pos: start}, Value: tok.StrVal}, nil
	case lexer.TRUE:
		p.advance()
		return &ast.BoolLit{Base: ast.Base{Pos: start}, Value: true}, nil
	case lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Base: ast.Base{Pos: start}, Value: false}, nil
	case lexer.NONE:
		p.advance()
		return &ast.NoneLit{Base: ast.Base{Pos: start}}, nil
	case lexer.ACTIVE:
		p.advance()
		return &ast.StatusLit{Base: ast.Base{Pos: start}, Value: "active"}, nil
	case lexer.INACTIVE:
		p.advance()
		return &ast.StatusLit{Base: ast.Base{Pos: start}, Value: "inactive"}, nil
	case lexer.BROKEN:
		p.advance()
		return &ast.StatusLit{Base: ast.Base{Pos: start}, Value: "broken"}, nil
	case lexer.IDENT:
		p.advance()
		return &ast.Identifier{Base: ast.Base{Pos: start}, Name: tok.Lexeme}, nil
	case lexer.LPAREN:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case lexer.READ:
		return p.parseReadExpr(start)
	default:
		return nil, langerr.Parse(langerr.Pos{Line: tok.Line, Col: tok.Col},
			"unexpected token %s %q in expression", tok.Kind, tok.Lexeme)
	}
}

func (p *Parser) parseReadExpr(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // read
	name, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	speaker, varName := splitDotted(name)
	return &ast.ReadExpr{Base: ast.Base{Pos: start}, Speaker: speaker, Name: varName}, nil
}

// splitDotted splits "Speaker.name" into ("Speaker", "name"); a bare "name"
// splits into ("", "name") meaning "current speaker".
func splitDotted(name string) (speaker, varName string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
