// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lang

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies the diagnostics reported by the compiler and by generated programs.
type ErrorKind int

//go:generate go tool enumer -type=ErrorKind -output=gen_errorkind_enumer.go errors.go

const (
	// SyntaxError is reported by the lexer and the parser for malformed source.
	SyntaxError ErrorKind = iota

	// UnresolvedVariable is a reference to a name not declared in any enclosing scope.
	UnresolvedVariable

	// UnsupportedConstruct is valid syntax for which there is no lowering rule.
	UnsupportedConstruct

	// NumericDivergence is a non-finite value produced while evaluating a program.
	// It can only be detected when the program runs.
	NumericDivergence

	// Redeclared is a second declaration of a name in the same scope.
	Redeclared
)

// Pos is a position in a source file. Lines and columns start at 1, and
// columns count runes, not bytes.
type Pos struct {
	File   string
	Line   int
	Column int
}

// IsValid returns whether the position points somewhere in a source.
func (p Pos) IsValid() bool { return p.Line > 0 }

// String implements fmt.Stringer, in the usual "file:line:column" format.
func (p Pos) String() string {
	if !p.IsValid() {
		if p.File != "" {
			return p.File
		}
		return "<unknown position>"
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is a located diagnostic. Every error returned by the compiler pipeline for
// problems in the user's program is (or wraps) an *Error.
type Error struct {
	Kind ErrorKind
	Pos  Pos

	// Construct names the offending construct: an identifier, a builtin, an operator or
	// a statement keyword. It may be empty for syntax errors.
	Construct string

	Msg string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// Errorf creates a new *Error of the given kind at the given position.
func Errorf(kind ErrorKind, pos Pos, construct string, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Pos:       pos,
		Construct: construct,
		Msg:       fmt.Sprintf(format, args...),
	}
}

// AsError extracts the *Error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind returns whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
