// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
)

// scope holds the names visible in a block.
//
// The top-level scope of main holds variables, which have values at run time. A loop body scope holds
// bindings of names to nodes of the loop graph: they exist only during one iteration's forward pass.
type scope struct {
	parent *scope

	variables map[string]*Variable
	order     []*Variable

	bindings map[string]*Binding
}

func newScope(parent *scope) *scope {
	return &scope{
		parent:    parent,
		variables: make(map[string]*Variable),
		bindings:  make(map[string]*Binding),
	}
}

// declared returns the position of the visible declaration of name, if any.
func (s *scope) declared(name string) (lang.Pos, bool) {
	for ; s != nil; s = s.parent {
		if v, found := s.variables[name]; found {
			return v.Pos, true
		}
		if b, found := s.bindings[name]; found {
			return b.Pos, true
		}
	}
	return lang.Pos{}, false
}

// checkNotDeclared returns a lang.Redeclared error if name is already visible.
func (s *scope) checkNotDeclared(name string, pos lang.Pos) error {
	if previous, found := s.declared(name); found {
		return lang.Errorf(lang.Redeclared, pos, name, "%q already declared at %s", name, previous)
	}
	return nil
}

func (s *scope) declareVariable(name string, trainable bool, pos lang.Pos) *Variable {
	v := &Variable{Name: name, Trainable: trainable, Pos: pos}
	s.variables[name] = v
	s.order = append(s.order, v)
	return v
}

// lookupVariable returns the variable with the given name, searching enclosing scopes.
func (s *scope) lookupVariable(name string) *Variable {
	for ; s != nil; s = s.parent {
		if v, found := s.variables[name]; found {
			return v
		}
	}
	return nil
}

// trainables returns all visible trainable variables, outermost first, in declaration order.
func (s *scope) trainables() []*Variable {
	var chain []*scope
	for ; s != nil; s = s.parent {
		chain = append(chain, s)
	}
	var result []*Variable
	for ii := len(chain) - 1; ii >= 0; ii-- {
		for _, v := range chain[ii].order {
			if v.Trainable {
				result = append(result, v)
			}
		}
	}
	return result
}

func unresolved(ident *lang.Ident) error {
	return lang.Errorf(lang.UnresolvedVariable, ident.Pos, ident.Name, "undeclared variable %q", ident.Name)
}

// variableResolver resolves identifiers to variable nodes of g. Used for straight-line statements.
func (s *scope) variableResolver(g *graph.Graph) graph.Resolver {
	return func(ident *lang.Ident) (*graph.Node, error) {
		v := s.lookupVariable(ident.Name)
		if v == nil {
			return nil, unresolved(ident)
		}
		return graph.Variable(g, v.Name, v.Trainable), nil
	}
}

// bodyResolver resolves identifiers inside a loop body: bindings of the body first, then
// the variables of the enclosing scopes.
func (s *scope) bodyResolver(g *graph.Graph) graph.Resolver {
	return func(ident *lang.Ident) (*graph.Node, error) {
		if b, found := s.bindings[ident.Name]; found {
			return g.NodeById(b.Node), nil
		}
		v := s.lookupVariable(ident.Name)
		if v == nil {
			return nil, unresolved(ident)
		}
		return graph.Variable(g, v.Name, v.Trainable), nil
	}
}
