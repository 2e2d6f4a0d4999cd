// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
	"github.com/gomlx/noma/ml/train/optimizers"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"
)

// DefaultMaxIterations is the iteration cap of an optimize loop that doesn't set max_iter.
const DefaultMaxIterations = 1000

// maxIterationsLimit is the largest accepted max_iter.
const maxIterationsLimit = math.MaxInt32

// loopOptionNames maps each accepted optimize option, including aliases, to its canonical name.
var loopOptionNames = map[string]string{
	"lr":             "lr",
	"learning_rate":  "lr",
	"max_iter":       "max_iter",
	"max_iterations": "max_iter",
}

// Compile lowers the program into a Module.
//
// Only `fn main()` is lowered: other functions, parameters and struct declarations are rejected with
// lang.UnsupportedConstruct. Compilation stops at the first error, which is always a *lang.Error
// naming the offending construct and its position.
func Compile(prog *lang.Program) (*Module, error) {
	main, err := findMain(prog)
	if err != nil {
		return nil, err
	}
	c := &compiler{module: &Module{Name: prog.File}}
	if err = c.lowerMain(main); err != nil {
		return nil, err
	}
	klog.V(1).Infof("compiled %q: %d variables, %d steps (%d loops)",
		prog.File, len(c.module.Variables), len(c.module.Steps), len(c.module.Loops()))
	return c.module, nil
}

// CompileSource parses and compiles the source of a program.
func CompileSource(file, src string) (*Module, error) {
	prog, err := lang.Parse(file, src)
	if err != nil {
		return nil, err
	}
	return Compile(prog)
}

// CompileFile reads, parses and compiles the program in path.
func CompileFile(path string) (*Module, error) {
	prog, err := lang.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(prog)
}

func findMain(prog *lang.Program) (*lang.FuncDecl, error) {
	var main *lang.FuncDecl
	for _, item := range prog.Items {
		switch item := item.(type) {
		case *lang.StructDecl:
			return nil, lang.Errorf(lang.UnsupportedConstruct, item.Pos, "struct",
				"struct declarations (%q) are not supported", item.Name)
		case *lang.FuncDecl:
			if item.Name != "main" {
				return nil, lang.Errorf(lang.UnsupportedConstruct, item.Pos, item.Name,
					"user-defined functions (%q) are not supported, only fn main()", item.Name)
			}
			if main != nil {
				return nil, lang.Errorf(lang.Redeclared, item.Pos, "main", "fn main already declared at %s", main.Pos)
			}
			if len(item.Params) > 0 {
				return nil, lang.Errorf(lang.UnsupportedConstruct, item.Pos, "main",
					"fn main cannot take parameters, got %d", len(item.Params))
			}
			main = item
		}
	}
	if main == nil {
		return nil, lang.Errorf(lang.UnsupportedConstruct, lang.Pos{File: prog.File}, "main",
			"program has no fn main()")
	}
	return main, nil
}

// compiler holds the state of one compilation.
type compiler struct {
	module *Module
}

func (c *compiler) lowerMain(main *lang.FuncDecl) error {
	top := newScope(nil)
	returned := false
	for _, stmt := range main.Body.Stmts {
		if returned {
			return lang.Errorf(lang.UnsupportedConstruct, stmt.Position(), "return",
				"statements after return are not supported")
		}
		var err error
		switch stmt := stmt.(type) {
		case *lang.LearnStmt:
			err = c.lowerDeclaration(top, stmt.Pos, stmt.Name, true, stmt.Value)
		case *lang.LetStmt:
			err = c.lowerDeclaration(top, stmt.Pos, stmt.Name, false, stmt.Value)
		case *lang.AssignStmt:
			err = c.lowerAssignment(top, stmt)
		case *lang.OptimizeStmt:
			err = c.lowerLoop(top, stmt)
		case *lang.ReturnStmt:
			returned = true
			err = c.lowerReturn(top, stmt)
		case *lang.MinimizeStmt:
			err = lang.Errorf(lang.UnsupportedConstruct, stmt.Pos, "minimize",
				"minimize can only be used inside an optimize block")
		default:
			err = unsupportedStatement(stmt)
		}
		if err != nil {
			return err
		}
	}
	for _, v := range top.order {
		c.module.Variables = append(c.module.Variables, *v)
	}
	return nil
}

func unsupportedStatement(stmt lang.Stmt) error {
	if exprStmt, ok := stmt.(*lang.ExprStmt); ok {
		return lang.Errorf(lang.UnsupportedConstruct, exprStmt.Pos, lang.FormatExpr(exprStmt.X),
			"expression statements are not supported, the value would be discarded")
	}
	return lang.Errorf(lang.UnsupportedConstruct, stmt.Position(), fmt.Sprintf("%T", stmt), "unsupported statement")
}

// traceStraightLine traces an expression outside loops into a new graph.
func traceStraightLine(s *scope, name string, value lang.Expr) (*graph.Graph, graph.NodeId, error) {
	g := graph.New(name)
	output, err := graph.NewTracer(g, s.variableResolver(g)).Expr(value)
	if err != nil {
		return nil, graph.InvalidNodeId, err
	}
	return g, output.Id(), nil
}

func (c *compiler) lowerDeclaration(s *scope, pos lang.Pos, name string, trainable bool, value lang.Expr) error {
	if err := s.checkNotDeclared(name, pos); err != nil {
		return err
	}
	keyword := "let"
	if trainable {
		keyword = "learn"
	}
	// The value is traced before the name is declared: `let x = x + 1;` refers to an outer x.
	g, output, err := traceStraightLine(s, keyword+" "+name, value)
	if err != nil {
		return err
	}
	s.declareVariable(name, trainable, pos)
	c.module.Steps = append(c.module.Steps, &AssignStep{Pos: pos, Target: name, Declare: true, Graph: g, Output: output})
	return nil
}

func (c *compiler) lowerAssignment(s *scope, stmt *lang.AssignStmt) error {
	if s.lookupVariable(stmt.Name) == nil {
		return unresolved(&lang.Ident{Pos: stmt.Pos, Name: stmt.Name})
	}
	g, output, err := traceStraightLine(s, stmt.Name+" =", stmt.Value)
	if err != nil {
		return err
	}
	c.module.Steps = append(c.module.Steps, &AssignStep{Pos: stmt.Pos, Target: stmt.Name, Graph: g, Output: output})
	return nil
}

func (c *compiler) lowerReturn(s *scope, stmt *lang.ReturnStmt) error {
	if stmt.Value == nil {
		return nil
	}
	g, output, err := traceStraightLine(s, "return", stmt.Value)
	if err != nil {
		return err
	}
	c.module.Return = &ReturnStep{Pos: stmt.Pos, Graph: g, Output: output}
	return nil
}

// loopOptions parses the options of an optimize statement.
func loopOptions(stmt *lang.OptimizeStmt) (learningRate float64, maxIterations int, err error) {
	learningRate, maxIterations = optimizers.DefaultLearningRate, DefaultMaxIterations
	seen := make(map[string]bool)
	for _, opt := range stmt.Options {
		canonical, found := loopOptionNames[opt.Name]
		if !found {
			names := maps.Keys(loopOptionNames)
			slices.Sort(names)
			return 0, 0, lang.Errorf(lang.UnsupportedConstruct, opt.Pos, opt.Name,
				"unknown optimize option %q, valid options are %s", opt.Name, strings.Join(names, ", "))
		}
		if seen[canonical] {
			return 0, 0, lang.Errorf(lang.UnsupportedConstruct, opt.Pos, opt.Name,
				"optimize option %q set more than once", canonical)
		}
		seen[canonical] = true
		switch canonical {
		case "lr":
			if !(opt.Value > 0) || math.IsInf(opt.Value, 0) {
				return 0, 0, lang.Errorf(lang.UnsupportedConstruct, opt.Pos, opt.Name,
					"learning rate must be a positive number, got %g", opt.Value)
			}
			learningRate = opt.Value
		case "max_iter":
			if opt.Value < 1 || opt.Value > maxIterationsLimit || opt.Value != math.Trunc(opt.Value) {
				return 0, 0, lang.Errorf(lang.UnsupportedConstruct, opt.Pos, opt.Name,
					"max_iter must be a positive integer up to %d, got %g", maxIterationsLimit, opt.Value)
			}
			maxIterations = int(opt.Value)
		}
	}
	return
}

func (c *compiler) lowerLoop(outer *scope, stmt *lang.OptimizeStmt) error {
	learningRate, maxIterations, err := loopOptions(stmt)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("optimize@%d:%d", stmt.Pos.Line, stmt.Pos.Column)
	g := graph.New(name)
	loop := &LoopStep{
		Pos:           stmt.Pos,
		Name:          name,
		Graph:         g,
		Loss:          graph.InvalidNodeId,
		Predicate:     graph.InvalidNodeId,
		LearningRate:  learningRate,
		MaxIterations: maxIterations,
	}

	// Every trainable variable visible at the loop is updated by it, even if the loss doesn't depend on it.
	for _, v := range outer.trainables() {
		graph.Variable(g, v.Name, true)
		loop.Trainables = append(loop.Trainables, v.Name)
	}

	body := newScope(outer)
	tracer := graph.NewTracer(g, body.bodyResolver(g))
	for _, stmt := range stmt.Body.Stmts {
		switch stmt := stmt.(type) {
		case *lang.LetStmt:
			if err = body.checkNotDeclared(stmt.Name, stmt.Pos); err != nil {
				return err
			}
			node, err := tracer.Expr(stmt.Value)
			if err != nil {
				return err
			}
			loop.bind(body, stmt.Name, node.Id(), stmt.Pos)

		case *lang.AssignStmt:
			if _, isBinding := body.bindings[stmt.Name]; !isBinding {
				if v := outer.lookupVariable(stmt.Name); v != nil {
					return lang.Errorf(lang.UnsupportedConstruct, stmt.Pos, stmt.Name,
						"cannot assign to variable %q inside an optimize block, variables only change between iterations", stmt.Name)
				}
				return unresolved(&lang.Ident{Pos: stmt.Pos, Name: stmt.Name})
			}
			node, err := tracer.Expr(stmt.Value)
			if err != nil {
				return err
			}
			loop.bind(body, stmt.Name, node.Id(), stmt.Pos)

		case *lang.MinimizeStmt:
			if loop.Loss != graph.InvalidNodeId {
				return lang.Errorf(lang.UnsupportedConstruct, stmt.Pos, "minimize",
					"optimize block with more than one minimize statement")
			}
			node, err := tracer.Expr(stmt.Value)
			if err != nil {
				return err
			}
			loop.Loss = node.Id()

		case *lang.LearnStmt:
			return lang.Errorf(lang.UnsupportedConstruct, stmt.Pos, "learn",
				"learn variables must be declared outside optimize blocks")
		case *lang.OptimizeStmt:
			return lang.Errorf(lang.UnsupportedConstruct, stmt.Pos, "optimize", "nested optimize blocks are not supported")
		case *lang.ReturnStmt:
			return lang.Errorf(lang.UnsupportedConstruct, stmt.Pos, "return", "return inside an optimize block")
		default:
			return unsupportedStatement(stmt)
		}
	}
	if loop.Loss == graph.InvalidNodeId {
		return lang.Errorf(lang.UnsupportedConstruct, stmt.Pos, "optimize", "optimize block has no minimize statement")
	}
	if stmt.Until != nil {
		predicate, err := tracer.Predicate(stmt.Until)
		if err != nil {
			return err
		}
		loop.Predicate = predicate.Id()
	}
	for _, node := range g.Variables() {
		if !node.IsTrainable() {
			loop.Inputs = append(loop.Inputs, node.VariableName())
		}
	}
	klog.V(2).Infof("lowered %s: %d nodes, trainables %v, inputs %v", name, g.NumNodes(), loop.Trainables, loop.Inputs)
	c.module.Steps = append(c.module.Steps, loop)
	return nil
}

// bind name to a node of the loop graph, in the body scope.
func (loop *LoopStep) bind(body *scope, name string, node graph.NodeId, pos lang.Pos) {
	binding := Binding{Name: name, Node: node, Pos: pos}
	body.bindings[name] = &binding
	loop.Bindings = append(loop.Bindings, binding)
}
