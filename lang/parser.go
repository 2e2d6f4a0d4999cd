// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lang

import (
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// parser is a recursive descent parser over a fully tokenized source.
type parser struct {
	tokens  []Token
	current int
}

// Parse parses the source of one program. The file name is only used in positions.
//
// It returns an *Error with Kind SyntaxError on malformed input. Parsing is deterministic:
// the same source always yields the same AST or the same error.
func Parse(file, src string) (*Program, error) {
	tokens, err := Tokenize(file, src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	prog := &Program{File: file}
	for !p.at(EOF) {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		prog.Items = append(prog.Items, item)
	}
	klog.V(2).Infof("parsed %q: %d tokens, %d items", file, len(tokens), len(prog.Items))
	return prog, nil
}

// ParseFile reads and parses the program in the given path.
func ParseFile(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read source %q", path)
	}
	return Parse(path, string(src))
}

func (p *parser) peek() Token { return p.tokens[p.current] }

func (p *parser) at(t TokenType) bool { return p.peek().Type == t }

func (p *parser) advance() Token {
	tok := p.tokens[p.current]
	if tok.Type != EOF {
		p.current++
	}
	return tok
}

func (p *parser) unexpected(expected string) *Error {
	tok := p.peek()
	found := tok.Type.String()
	if tok.Type == Identifier || tok.Type == Number {
		found = found + " " + tok.Lexeme
	}
	return Errorf(SyntaxError, tok.Pos, tok.Lexeme, "expected %s, found %s", expected, found)
}

// expect consumes a token of type t, or fails.
func (p *parser) expect(t TokenType) (Token, error) {
	if !p.at(t) {
		return Token{}, p.unexpected(t.String())
	}
	return p.advance(), nil
}

func (p *parser) expectIdent(what string) (Token, error) {
	if !p.at(Identifier) {
		return Token{}, p.unexpected(what)
	}
	return p.advance(), nil
}

func (p *parser) parseItem() (Item, error) {
	switch p.peek().Type {
	case Fn:
		return p.parseFunction()
	case Struct:
		return p.parseStruct()
	default:
		return nil, p.unexpected("'fn' or 'struct'")
	}
}

func (p *parser) parseFunction() (Item, error) {
	fnTok := p.advance()
	name, err := p.expectIdent("function name")
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(LParen); err != nil {
		return nil, err
	}
	var params []string
	if !p.at(RParen) {
		for {
			param, err := p.expectIdent("parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, param.Lexeme)
			if !p.at(Comma) {
				break
			}
			p.advance()
		}
	}
	if _, err = p.expect(RParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDecl{Pos: fnTok.Pos, Name: name.Lexeme, Params: params, Body: body}, nil
}

func (p *parser) parseStruct() (Item, error) {
	structTok := p.advance()
	name, err := p.expectIdent("struct name")
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(LBrace); err != nil {
		return nil, err
	}
	decl := &StructDecl{Pos: structTok.Pos, Name: name.Lexeme}
	for !p.at(RBrace) && !p.at(EOF) {
		fieldName, err := p.expectIdent("field name")
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(Colon); err != nil {
			return nil, err
		}
		fieldType, err := p.expectIdent("field type")
		if err != nil {
			return nil, err
		}
		decl.Fields = append(decl.Fields, Field{Pos: fieldName.Pos, Name: fieldName.Lexeme, Type: fieldType.Lexeme})
		if p.at(Comma) {
			p.advance()
		}
	}
	if _, err = p.expect(RBrace); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *parser) parseBlock() (*Block, error) {
	open, err := p.expect(LBrace)
	if err != nil {
		return nil, err
	}
	block := &Block{Pos: open.Pos}
	for !p.at(RBrace) {
		if p.at(EOF) {
			return nil, p.unexpected("'}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	p.advance()
	return block, nil
}

func (p *parser) parseStatement() (Stmt, error) {
	switch p.peek().Type {
	case Learn, Let:
		return p.parseDeclaration()
	case Minimize:
		tok := p.advance()
		value, err := p.parseTerminated()
		if err != nil {
			return nil, err
		}
		return &MinimizeStmt{Pos: tok.Pos, Value: value}, nil
	case Optimize:
		return p.parseOptimize()
	case Return:
		tok := p.advance()
		if p.at(Semicolon) {
			p.advance()
			return &ReturnStmt{Pos: tok.Pos}, nil
		}
		value, err := p.parseTerminated()
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Pos: tok.Pos, Value: value}, nil
	case Identifier:
		if p.tokens[p.current+1].Type == Assign {
			name := p.advance()
			p.advance()
			value, err := p.parseTerminated()
			if err != nil {
				return nil, err
			}
			return &AssignStmt{Pos: name.Pos, Name: name.Lexeme, Value: value}, nil
		}
	}
	pos := p.peek().Pos
	x, err := p.parseTerminated()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Pos: pos, X: x}, nil
}

// parseDeclaration parses `learn name = expr;` and `let name = expr;`.
func (p *parser) parseDeclaration() (Stmt, error) {
	kw := p.advance()
	name, err := p.expectIdent("variable name")
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(Assign); err != nil {
		return nil, err
	}
	value, err := p.parseTerminated()
	if err != nil {
		return nil, err
	}
	if kw.Type == Learn {
		return &LearnStmt{Pos: kw.Pos, Name: name.Lexeme, Value: value}, nil
	}
	return &LetStmt{Pos: kw.Pos, Name: name.Lexeme, Value: value}, nil
}

// parseTerminated parses an expression followed by ';'.
func (p *parser) parseTerminated() (Expr, error) {
	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(Semicolon); err != nil {
		return nil, err
	}
	return x, nil
}

func (p *parser) parseOptimize() (Stmt, error) {
	tok := p.advance()
	stmt := &OptimizeStmt{Pos: tok.Pos}
	if p.at(LParen) {
		p.advance()
		for !p.at(RParen) {
			name, err := p.expectIdent("optimize option name")
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(Assign); err != nil {
				return nil, err
			}
			value, err := p.expect(Number)
			if err != nil {
				return nil, err
			}
			stmt.Options = append(stmt.Options, Option{Pos: name.Pos, Name: name.Lexeme, Value: value.Value})
			if !p.at(Comma) {
				break
			}
			p.advance()
		}
		if _, err := p.expect(RParen); err != nil {
			return nil, err
		}
	}
	if p.at(Until) {
		p.advance()
		until, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Until = until
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *parser) parseExpression() (Expr, error) {
	return p.parseComparison()
}

var comparisonOps = map[TokenType]BinaryOp{
	Less: OpLess, Greater: OpGreater, LessEq: OpLessEq, GreaterEq: OpGreaterEq,
	Equal: OpEqual, NotEqual: OpNotEqual,
}

// parseComparison parses at most one comparison: comparisons do not chain.
func (p *parser) parseComparison() (Expr, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, found := comparisonOps[p.peek().Type]
	if !found {
		return x, nil
	}
	opTok := p.advance()
	y, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if _, chained := comparisonOps[p.peek().Type]; chained {
		return nil, Errorf(SyntaxError, p.peek().Pos, p.peek().Lexeme, "comparison operators cannot be chained")
	}
	return &BinaryExpr{Pos: opTok.Pos, Op: op, X: x, Y: y}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	x, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.at(Plus) || p.at(Minus) {
		opTok := p.advance()
		op := OpAdd
		if opTok.Type == Minus {
			op = OpSub
		}
		y, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Pos: opTok.Pos, Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseTerm() (Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(Star) || p.at(Slash) || p.at(Percent) {
		opTok := p.advance()
		var op BinaryOp
		switch opTok.Type {
		case Star:
			op = OpMul
		case Slash:
			op = OpDiv
		default:
			op = OpMod
		}
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Pos: opTok.Pos, Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.at(Minus) {
		tok := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NegExpr{Pos: tok.Pos, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.at(LParen) {
		return x, nil
	}
	ident, ok := x.(*Ident)
	if !ok {
		return nil, Errorf(SyntaxError, p.peek().Pos, "(", "can only call identifiers")
	}
	p.advance()
	call := &CallExpr{Pos: ident.Pos, Func: ident.Name}
	if !p.at(RParen) {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.at(Comma) {
				break
			}
			p.advance()
		}
	}
	if _, err = p.expect(RParen); err != nil {
		return nil, err
	}
	if p.at(LParen) {
		return nil, Errorf(SyntaxError, p.peek().Pos, "(", "can only call identifiers")
	}
	return call, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case Number:
		p.advance()
		return &NumberLit{Pos: tok.Pos, Value: tok.Value}, nil
	case Identifier:
		p.advance()
		return &Ident{Pos: tok.Pos, Name: tok.Lexeme}, nil
	case LParen:
		p.advance()
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(RParen); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, p.unexpected("expression")
	}
}
