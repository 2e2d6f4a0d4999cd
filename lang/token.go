// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lang

import "fmt"

// TokenType identifies the lexical class of a Token.
type TokenType int

const (
	EOF TokenType = iota

	// Literals and identifiers.
	Number
	Identifier

	// Keywords.
	Fn
	Struct
	Learn
	Let
	Minimize
	Optimize
	Until
	Return

	// Punctuation.
	LParen
	RParen
	LBrace
	RBrace
	Comma
	Colon
	Semicolon
	Assign

	// Operators.
	Plus
	Minus
	Star
	Slash
	Percent
	Less
	Greater
	LessEq
	GreaterEq
	Equal
	NotEqual
)

var tokenTypeNames = [...]string{
	EOF:        "end of file",
	Number:     "number",
	Identifier: "identifier",
	Fn:         "'fn'",
	Struct:     "'struct'",
	Learn:      "'learn'",
	Let:        "'let'",
	Minimize:   "'minimize'",
	Optimize:   "'optimize'",
	Until:      "'until'",
	Return:     "'return'",
	LParen:     "'('",
	RParen:     "')'",
	LBrace:     "'{'",
	RBrace:     "'}'",
	Comma:      "','",
	Colon:      "':'",
	Semicolon:  "';'",
	Assign:     "'='",
	Plus:       "'+'",
	Minus:      "'-'",
	Star:       "'*'",
	Slash:      "'/'",
	Percent:    "'%'",
	Less:       "'<'",
	Greater:    "'>'",
	LessEq:     "'<='",
	GreaterEq:  "'>='",
	Equal:      "'=='",
	NotEqual:   "'!='",
}

// String returns a human-readable name, suitable for diagnostics.
func (t TokenType) String() string {
	if t < 0 || int(t) >= len(tokenTypeNames) {
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
	return tokenTypeNames[t]
}

var keywords = map[string]TokenType{
	"fn":       Fn,
	"struct":   Struct,
	"learn":    Learn,
	"let":      Let,
	"minimize": Minimize,
	"optimize": Optimize,
	"until":    Until,
	"return":   Return,
}

// Token is a lexical token. Value is only set for Number tokens.
type Token struct {
	Type   TokenType
	Lexeme string
	Value  float64
	Pos    Pos
}

// String implements fmt.Stringer.
func (t Token) String() string {
	switch t.Type {
	case Number, Identifier:
		return fmt.Sprintf("%s %s %q", t.Pos, t.Type, t.Lexeme)
	default:
		return fmt.Sprintf("%s %s", t.Pos, t.Type)
	}
}
