// Package parser implements C9: a recursive-descent parser producing a
// closed ast.Node tree from a token stream (spec.md §4.9).
package parser

import (
	"strings"

	"github.com/user/humanlogica/internal/ast"
	"github.com/user/humanlogica/internal/langerr"
	"github.com/user/humanlogica/internal/lexer"
)

// Parser holds a flat token slice and a cursor for a single left-to-right
// recursive-descent pass. The only backtracking is over skipped newlines,
// when a lookahead for an optional otherwise/broken/elif/else arm fails.
type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse tokenizes and parses src into a Program.
func Parse(src string) (*ast.Program, *langerr.Error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseProgram()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atStmtEnd() bool {
	k := p.cur().Kind
	return k == lexer.NEWLINE || k == lexer.RBRACE || k == lexer.EOF
}

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) pos_() ast.Pos {
	t := p.cur()
	return ast.Pos{Line: t.Line, Col: t.Col}
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, *langerr.Error) {
	if !p.at(k) {
		return lexer.Token{}, langerr.Parse(langerr.Pos{Line: p.cur().Line, Col: p.cur().Col},
			"expected %s, found %s %q", k, p.cur().Kind, p.cur().Lexeme)
	}
	return p.advance(), nil
}

func (p *Parser) skipNewlines() {
	for p.at(lexer.NEWLINE) {
		p.advance()
	}
}

// consumeStatementEnd requires that a statement be followed by a newline,
// a closing brace, or EOF, and swallows any run of blank lines.
func (p *Parser) consumeStatementEnd() *langerr.Error {
	if p.at(lexer.RBRACE) || p.at(lexer.EOF) {
		return nil
	}
	if !p.at(lexer.NEWLINE) {
		return langerr.Parse(langerr.Pos{Line: p.cur().Line, Col: p.cur().Col},
			"expected end of statement, found %s %q", p.cur().Kind, p.cur().Lexeme)
	}
	p.skipNewlines()
	return nil
}

func (p *Parser) parseProgram() (*ast.Program, *langerr.Error) {
	prog := &ast.Program{}
	p.skipNewlines()
	for !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		if err := p.consumeStatementEnd(); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// parseBlock consumes a brace-delimited statement list.
func (p *Parser) parseBlock() ([]ast.Node, *langerr.Error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	var stmts []ast.Node
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if err := p.consumeStatementEnd(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (ast.Node, *langerr.Error) {
	start := p.pos_()
	switch p.cur().Kind {
	case lexer.SPEAKER:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.SpeakerDecl{Base: ast.Base{Pos: start}, Name: name.Lexeme}, nil

	case lexer.WORLD:
		p.advance()
		return &ast.WorldDecl{Base: ast.Base{Pos: start}}, nil

	case lexer.AS:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.AsBlock{Base: ast.Base{Pos: start}, Speaker: name.Lexeme, Body: body}, nil

	case lexer.LET:
		p.advance()
		name, err := p.parseDottedName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ASSIGN); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Let{Base: ast.Base{Pos: start}, Name: name, Value: value}, nil

	case lexer.SPEAK:
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Speak{Base: ast.Base{Pos: start}, Value: value}, nil

	case lexer.WHEN:
		return p.parseWhen(start)

	case lexer.IF:
		return p.parseIf(start)

	case lexer.WHILE:
		return p.parseWhile(start)

	case lexer.FN:
		return p.parseFn(start)

	case lexer.RETURN:
		p.advance()
		if p.atStmtEnd() {
			return &ast.Return{Base: ast.Base{Pos: start}}, nil
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Return{Base: ast.Base{Pos: start}, Value: value}, nil

	case lexer.REQUEST:
		return p.parseRequest(start)

	case lexer.RESPOND:
		return p.parseRespond(start)

	case lexer.INSPECT:
		p.advance()
		target, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Inspect{Base: ast.Base{Pos: start}, Target: target}, nil

	case lexer.HISTORY:
		p.advance()
		if p.atStmtEnd() {
			return &ast.History{Base: ast.Base{Pos: start}}, nil
		}
		count, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.History{Base: ast.Base{Pos: start}, Count: count}, nil

	case lexer.LEDGER:
		return p.parseLedgerStmt(start)

	case lexer.VERIFY:
		p.advance()
		if _, err := p.expect(lexer.LEDGER); err != nil {
			return nil, err
		}
		return &ast.Verify{Base: ast.Base{Pos: start}}, nil

	case lexer.SEAL:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.Seal{Base: ast.Base{Pos: start}, Name: name.Lexeme}, nil

	case lexer.PASS:
		p.advance()
		return &ast.Pass{Base: ast.Base{Pos: start}}, nil

	case lexer.FAIL:
		p.advance()
		if p.atStmtEnd() {
			return &ast.Fail{Base: ast.Base{Pos: start}}, nil
		}
		reason, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Fail{Base: ast.Base{Pos: start}, Reason: reason}, nil

	default:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ExpressionStatement{Base: ast.Base{Pos: start}, Expr: expr}, nil
	}
}

func (p *Parser) parseWhen(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // when
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	active, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	w := &ast.When{Base: ast.Base{Pos: start}, Condition: cond, Active: active}

	save := p.pos
	p.skipNewlines()
	if p.at(lexer.OTHERWISE) {
		p.advance()
		w.Otherwise, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	} else {
		p.pos = save
	}

	save = p.pos
	p.skipNewlines()
	if p.at(lexer.BROKEN) {
		p.advance()
		w.Broken, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	} else {
		p.pos = save
	}
	return w, nil
}

func (p *Parser) parseIf(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // if
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n := &ast.If{Base: ast.Base{Pos: start}, Condition: cond, Then: then}

	for {
		save := p.pos
		p.skipNewlines()
		if !p.at(lexer.ELIF) {
			p.pos = save
			break
		}
		elifStart := p.pos_()
		p.advance()
		ec, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		eb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		n.Elifs = append(n.Elifs, &ast.Elif{Base: ast.Base{Pos: elifStart}, Condition: ec, Body: eb})
	}

	save := p.pos
	p.skipNewlines()
	if p.at(lexer.ELSE) {
		p.advance()
		n.Else, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	} else {
		p.pos = save
	}
	return n, nil
}

func (p *Parser) parseWhile(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // while
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	// The ", max N" clause is optional in the grammar; a missing bound is
	// left as a nil Max so the compiler can reject it under A9.
	var maxExpr ast.Node
	if p.at(lexer.COMMA) {
		p.advance()
		if _, err := p.expect(lexer.MAX); err != nil {
			return nil, err
		}
		maxExpr, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{Base: ast.Base{Pos: start}, Condition: cond, Max: maxExpr, Body: body}, nil
}

func (p *Parser) parseFn(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // fn
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var params []string
	for !p.at(lexer.RPAREN) {
		pn, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, pn.Lexeme)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Fn{Base: ast.Base{Pos: start}, Name: name.Lexeme, Params: params, Body: body}, nil
}

func (p *Parser) parseRequest(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // request
	target, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.COMMA); err != nil {
		return nil, err
	}
	label, err := p.parseLabel()
	if err != nil {
		return nil, err
	}
	req := &ast.Request{Base: ast.Base{Pos: start}, Target: target, Label: label}
	if p.at(lexer.COMMA) {
		p.advance()
		payload, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		req.Payload = payload
	}
	return req, nil
}

func (p *Parser) parseLabel() (string, *langerr.Error) {
	switch p.cur().Kind {
	case lexer.IDENT:
		return p.advance().Lexeme, nil
	case lexer.STRING:
		return p.advance().StrVal, nil
	default:
		return "", langerr.Parse(langerr.Pos{Line: p.cur().Line, Col: p.cur().Col},
			"expected request label, found %s %q", p.cur().Kind, p.cur().Lexeme)
	}
}

func (p *Parser) parseRespond(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // respond
	var accept bool
	switch p.cur().Kind {
	case lexer.ACCEPT:
		p.advance()
		accept = true
	case lexer.REFUSE:
		p.advance()
		accept = false
	default:
		return nil, langerr.Parse(langerr.Pos{Line: p.cur().Line, Col: p.cur().Col},
			"expected accept or refuse, found %s %q", p.cur().Kind, p.cur().Lexeme)
	}
	r := &ast.Respond{Base: ast.Base{Pos: start}, Accept: accept}
	if !p.atStmtEnd() {
		payload, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		r.Payload = payload
	}
	return r, nil
}

func (p *Parser) parseLedgerStmt(start ast.Pos) (ast.Node, *langerr.Error) {
	p.advance() // ledger
	last := false
	if p.at(lexer.IDENT) && p.cur().Lexeme == "last" {
		p.advance()
		last = true
	}
	count, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.LedgerStmt{Base: ast.Base{Pos: start}, Last: last, Count: count}, nil
}

// parseDottedName parses an IDENT optionally followed by ('.' IDENT)*,
// returning the dot-joined name (e.g. "Jared.grade" or "self.v").
func (p *Parser) parseDottedName() (string, *langerr.Error) {
	first, err := p.expect(lexer.IDENT)
	if err != nil {
		return "", err
	}
	parts := []string{first.Lexeme}
	for p.at(lexer.DOT) {
		p.advance()
		next, err := p.expect(lexer.IDENT)
		if err != nil {
			return "", err
		}
		parts = append(parts, next.Lexeme)
	}
	return strings.Join(parts, "."), nil
}

