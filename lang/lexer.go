// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lang

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// lexer splits a source into tokens. It works on the whole source held in memory.
type lexer struct {
	file string
	src  string

	offset int // byte offset of the next rune.
	line   int
	column int
}

// Tokenize splits src into tokens. The last token is always EOF.
//
// The file name is only used to build positions.
func Tokenize(file, src string) ([]Token, error) {
	lx := &lexer{file: file, src: src, line: 1, column: 1}
	var tokens []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) pos() Pos {
	return Pos{File: lx.file, Line: lx.line, Column: lx.column}
}

// peek returns the rune at the current offset plus ahead runes, or -1 at the end of the source.
func (lx *lexer) peek(ahead int) rune {
	offset := lx.offset
	for {
		if offset >= len(lx.src) {
			return -1
		}
		r, size := utf8.DecodeRuneInString(lx.src[offset:])
		if ahead == 0 {
			return r
		}
		offset += size
		ahead--
	}
}

func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(lx.src[lx.offset:])
	lx.offset += size
	if r == '\n' {
		lx.line++
		lx.column = 1
	} else {
		lx.column++
	}
	return r
}

func (lx *lexer) skipSpaceAndComments() {
	for {
		r := lx.peek(0)
		switch {
		case r == -1:
			return
		case unicode.IsSpace(r):
			lx.advance()
		case r == '#' || (r == '/' && lx.peek(1) == '/'):
			for r := lx.peek(0); r != -1 && r != '\n'; r = lx.peek(0) {
				lx.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return isIdentStart(r) || unicode.IsDigit(r) }
func isDigit(r rune) bool      { return r >= '0' && r <= '9' }

func (lx *lexer) next() (Token, error) {
	lx.skipSpaceAndComments()
	start := lx.offset
	pos := lx.pos()
	r := lx.peek(0)
	if r == -1 {
		return Token{Type: EOF, Pos: pos}, nil
	}
	if r == utf8.RuneError {
		return Token{}, Errorf(SyntaxError, pos, "", "invalid UTF-8 encoding")
	}

	switch {
	case isIdentStart(r):
		for isIdentPart(lx.peek(0)) {
			lx.advance()
		}
		lexeme := lx.src[start:lx.offset]
		if kw, found := keywords[lexeme]; found {
			return Token{Type: kw, Lexeme: lexeme, Pos: pos}, nil
		}
		return Token{Type: Identifier, Lexeme: lexeme, Pos: pos}, nil

	case isDigit(r) || (r == '.' && isDigit(lx.peek(1))):
		return lx.number(start, pos)
	}

	lx.advance()
	single := func(t TokenType) (Token, error) {
		return Token{Type: t, Lexeme: lx.src[start:lx.offset], Pos: pos}, nil
	}
	withEqual := func(plain, withEq TokenType) (Token, error) {
		if lx.peek(0) == '=' {
			lx.advance()
			return single(withEq)
		}
		return single(plain)
	}
	switch r {
	case '(':
		return single(LParen)
	case ')':
		return single(RParen)
	case '{':
		return single(LBrace)
	case '}':
		return single(RBrace)
	case ',':
		return single(Comma)
	case ':':
		return single(Colon)
	case ';':
		return single(Semicolon)
	case '+':
		return single(Plus)
	case '-':
		return single(Minus)
	case '*':
		return single(Star)
	case '/':
		return single(Slash)
	case '%':
		return single(Percent)
	case '<':
		return withEqual(Less, LessEq)
	case '>':
		return withEqual(Greater, GreaterEq)
	case '=':
		return withEqual(Assign, Equal)
	case '!':
		if lx.peek(0) == '=' {
			lx.advance()
			return single(NotEqual)
		}
	}
	return Token{}, Errorf(SyntaxError, pos, string(r), "unexpected character %q", r)
}

// number scans a decimal floating point literal: digits, an optional fraction and an
// optional exponent.
func (lx *lexer) number(start int, pos Pos) (Token, error) {
	for isDigit(lx.peek(0)) {
		lx.advance()
	}
	if lx.peek(0) == '.' {
		lx.advance()
		for isDigit(lx.peek(0)) {
			lx.advance()
		}
	}
	if r := lx.peek(0); r == 'e' || r == 'E' {
		next := lx.peek(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(lx.peek(2))) {
			lx.advance()
			if next == '+' || next == '-' {
				lx.advance()
			}
			for isDigit(lx.peek(0)) {
				lx.advance()
			}
		}
	}
	if isIdentStart(lx.peek(0)) {
		return Token{}, Errorf(SyntaxError, lx.pos(), lx.src[start:lx.offset],
			"invalid character %q after number %q", lx.peek(0), lx.src[start:lx.offset])
	}
	lexeme := lx.src[start:lx.offset]
	value, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		// Only range errors are possible here, the syntax was checked above.
		return Token{}, Errorf(SyntaxError, pos, lexeme, "number %q out of range", lexeme)
	}
	return Token{Type: Number, Lexeme: lexeme, Value: value, Pos: pos}, nil
}
