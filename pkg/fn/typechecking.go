package fn

import (
	"fmt"

	"its-hmny.dev/fnc/pkg/ir"
)

// ----------------------------------------------------------------------------
// Well-formedness Checker

// The Checker enforces everything about an AST that does not need type
// resolution: per-function sanity (distinct names, return placement) and
// global uniqueness of (name, argument type tuple) signatures, including
// against the builtin catalogue. It runs after parsing and before lowering,
// so the lowerer can assume overload resolution has at most one winner.
type Checker struct{ program Program }

// Initializes and returns to the caller a brand new 'Checker' struct.
func NewChecker(p Program) Checker {
	return Checker{program: p}
}

// Runs every check, first error wins.
func (c *Checker) Check() error {
	for _, function := range c.program.Functions {
		if err := c.CheckFunction(function); err != nil {
			return err
		}
	}

	if err := c.CheckDuplicateDefinitions(); err != nil {
		return err
	}
	return c.CheckBuiltinShadowing()
}

// Specialized function to check a single definition: parameters and locals
// share one namespace and must be pairwise distinct, and the statement list
// must be non-empty with exactly one return, in last position.
func (c *Checker) CheckFunction(function Function) error {
	names := append(append([]VarDecl{}, function.Args...), function.Locals...)
	for i, first := range names {
		for j, second := range names {
			if i != j && first.Name.Text == second.Name.Text {
				return fmt.Errorf("Duplicate argument name %s and %s", first.Name.At(), second.Name.At())
			}
		}
	}

	if len(function.Body) == 0 {
		return fmt.Errorf("Function statement list must have at least one statement %s", function.BodyOpen.At())
	}
	pending := append([]Statement{}, function.Body[:len(function.Body)-1]...)
	for len(pending) > 0 {
		statement := pending[0]
		pending = pending[1:]
		switch stmt := statement.(type) {
		case ReturnStmt:
			return fmt.Errorf("Return statement must be the last one %s", stmt.Open.At())
		case IfStmt:
			pending = append(append(pending, stmt.Then...), stmt.Else...)
		case WhileStmt:
			pending = append(pending, stmt.Body...)
		}
	}
	if _, ok := function.Body[len(function.Body)-1].(ReturnStmt); !ok {
		return fmt.Errorf("Last statement in function definition statement list must be return statement %s", function.BodyOpen.At())
	}

	return nil
}

// Specialized function to reject two user definitions sharing a signature.
func (c *Checker) CheckDuplicateDefinitions() error {
	for i, first := range c.program.Functions {
		for j, second := range c.program.Functions {
			if i == j || first.Name.Text != second.Name.Text {
				continue
			}
			if !sameArgTypes(first.Args, second.Args) {
				continue
			}
			return fmt.Errorf("Duplicate function definitions %s and %s", first.Open.At(), second.Open.At())
		}
	}

	return nil
}

// Specialized function to reject a user definition whose signature collides
// with an entry of the builtin catalogue.
func (c *Checker) CheckBuiltinShadowing() error {
	for _, function := range c.program.Functions {
		for _, builtin := range ir.Builtins {
			if function.Name.Text != builtin.Name || len(function.Args) != len(builtin.Args) {
				continue
			}

			match := true
			for i, arg := range function.Args {
				if ir.Type(arg.Type) != builtin.Args[i] {
					match = false
					break
				}
			}
			if match {
				return fmt.Errorf("Duplicate function definition with builtin %q %s", builtin.Name, function.Open.At())
			}
		}
	}

	return nil
}

// Reports whether two parameter lists carry the same type tuple.
func sameArgTypes(first, second []VarDecl) bool {
	if len(first) != len(second) {
		return false
	}
	for i := range first {
		if first[i].Type != second[i].Type {
			return false
		}
	}
	return true
}
