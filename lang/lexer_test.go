// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lang

import (
	"go/format"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for ii, tok := range tokens {
		types[ii] = tok.Type
	}
	return types
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize("t.noma", "learn x = 5.0; // comment\nlet y = x*x <= .5e1;")
	require.NoError(t, err)
	assert.Equal(t, []TokenType{
		Learn, Identifier, Assign, Number, Semicolon,
		Let, Identifier, Assign, Identifier, Star, Identifier, LessEq, Number, Semicolon,
		EOF}, tokenTypes(tokens))
	assert.Equal(t, 5.0, tokens[3].Value)
	assert.Equal(t, 5.0, tokens[12].Value)
	assert.Equal(t, Pos{File: "t.noma", Line: 2, Column: 1}, tokens[5].Pos)
	assert.Equal(t, Pos{File: "t.noma", Line: 2, Column: 9}, tokens[8].Pos)
}

func TestTokenizeNumbers(t *testing.T) {
	for src, want := range map[string]float64{
		"0":      0,
		"25":     25,
		"0.0001": 0.0001,
		"1e-4":   1e-4,
		"2.5E+2": 250,
		".25":    0.25,
	} {
		tokens, err := Tokenize("", src)
		require.NoErrorf(t, err, "source %q", src)
		require.Len(t, tokens, 2)
		assert.Equalf(t, want, tokens[0].Value, "source %q", src)
	}
}

func TestTokenizeOperators(t *testing.T) {
	tokens, err := Tokenize("", "< > <= >= == != = + - * / % ( ) { } , : ;")
	require.NoError(t, err)
	assert.Equal(t, []TokenType{
		Less, Greater, LessEq, GreaterEq, Equal, NotEqual, Assign,
		Plus, Minus, Star, Slash, Percent, LParen, RParen, LBrace, RBrace, Comma, Colon, Semicolon,
		EOF}, tokenTypes(tokens))
}

func TestTokenizeHashComment(t *testing.T) {
	tokens, err := Tokenize("", "# whole line\nreturn x; # trailing")
	require.NoError(t, err)
	assert.Equal(t, []TokenType{Return, Identifier, Semicolon, EOF}, tokenTypes(tokens))
}

func TestTokenizeErrors(t *testing.T) {
	for _, src := range []string{"let x = 3 $ 4;", "let x = 12abc;", "x ! y"} {
		_, err := Tokenize("bad.noma", src)
		require.Errorf(t, err, "source %q", src)
		assert.Truef(t, IsKind(err, SyntaxError), "source %q: got %v", src, err)
	}

	_, err := Tokenize("bad.noma", "let x =\n  3 $ 4;")
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, Pos{File: "bad.noma", Line: 2, Column: 5}, e.Pos)
	assert.Equal(t, "$", e.Construct)
}

func TestTokenizeUnicodeIdentifier(t *testing.T) {
	tokens, err := Tokenize("", "let größe = 1; größe")
	require.NoError(t, err)
	assert.Equal(t, "größe", tokens[1].Lexeme)
	assert.Equal(t, 16, tokens[5].Pos.Column)
}

func TestTokenTypeNames(t *testing.T) {
	assert.Equal(t, "identifier", Identifier.String())
	assert.Equal(t, "'<='", LessEq.String())
	kind, err := ErrorKindString("unresolvedvariable")
	require.NoError(t, err)
	assert.Equal(t, UnresolvedVariable, kind)
	requireFormatted(t, "token.go", "gen_errorkind_enumer.go")
}

// requireFormatted checks the files are in gofmt layout.
func requireFormatted(t *testing.T, files ...string) {
	for _, file := range files {
		src, err := os.ReadFile(file)
		require.NoError(t, err)
		formatted, err := format.Source(src)
		require.NoError(t, err)
		assert.Equal(t, string(formatted), string(src), "%s is not formatted", file)
	}
}
