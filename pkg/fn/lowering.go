package fn

import (
	"fmt"

	"its-hmny.dev/fnc/pkg/ir"
	"its-hmny.dev/fnc/pkg/sexp"
)

// ----------------------------------------------------------------------------
// fn Lowerer

// The Lowerer takes a checked 'fn.Program' and produces its 'ir.Program'
// counterpart.
//
// This is where names stop existing: every variable reference is replaced by
// the parameter or local slot it resolves to, and every call site is bound to
// the single user function or builtin whose (name, argument type tuple) key
// matches. Type checking rides along, since resolving an expression is what
// reveals its type: set sources must match their destination, conditions must
// be bool and return values must match the declared return type.
type Lowerer struct{ program Program }

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// The program is expected to have passed the Checker already.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process: first every declaration is materialized (so
// that calls can resolve against functions defined later in the file), then
// each body is lowered against the full declaration list.
func (l *Lowerer) Lower() (ir.Program, error) {
	declarations := make([]*ir.FnDecl, 0, len(l.program.Functions))
	for _, function := range l.program.Functions {
		decl := &ir.FnDecl{Name: function.Name.Text, Return: ir.Type(function.Return)}
		for _, arg := range function.Args {
			decl.Args = append(decl.Args, ir.Arg{Name: arg.Name.Text, Type: ir.Type(arg.Type)})
		}
		for _, local := range function.Locals {
			decl.Locals = append(decl.Locals, ir.Arg{Name: local.Name.Text, Type: ir.Type(local.Type)})
		}
		declarations = append(declarations, decl)
	}

	program := ir.Program{}
	for i, function := range l.program.Functions {
		body, err := l.HandleStatementList(declarations, declarations[i], function.Body)
		if err != nil {
			return ir.Program{}, err
		}
		program.Funcs = append(program.Funcs, ir.FnDef{Decl: declarations[i], Body: body})
	}

	for _, constant := range l.program.Constants {
		program.Consts = append(program.Consts, ir.Const{
			Kind: ir.Type(constant.Kind), Text: constant.Atom.Text, Index: constant.Index,
		})
	}

	return program, nil
}

// Generalized function to lower a statement list (a function body or a nested
// if/while block) within the scope of 'current'.
func (l *Lowerer) HandleStatementList(declarations []*ir.FnDecl, current *ir.FnDecl, statements []Statement) ([]ir.Stmt, error) {
	lowered := []ir.Stmt{}

	for _, statement := range statements {
		switch stmt := statement.(type) {
		case SetStmt:
			dest, err := l.resolveVariable(current, stmt.Dest)
			if err != nil {
				return nil, err
			}
			src, srcType, err := l.HandleExpression(declarations, current, stmt.Src)
			if err != nil {
				return nil, err
			}
			if srcType != dest.Type {
				return nil, fmt.Errorf("Type mismatch in statement set %s", stmt.Open.At())
			}
			lowered = append(lowered, &ir.Set{Dest: dest, Src: src})

		case IfStmt:
			cond, condType, err := l.HandleExpression(declarations, current, stmt.Cond)
			if err != nil {
				return nil, err
			}
			if condType != ir.Bool {
				return nil, fmt.Errorf("Condition must be bool %s", stmt.Open.At())
			}
			thenBranch, err := l.HandleStatementList(declarations, current, stmt.Then)
			if err != nil {
				return nil, err
			}
			elseBranch, err := l.HandleStatementList(declarations, current, stmt.Else)
			if err != nil {
				return nil, err
			}
			lowered = append(lowered, &ir.If{Cond: cond, Then: thenBranch, Else: elseBranch})

		case WhileStmt:
			cond, condType, err := l.HandleExpression(declarations, current, stmt.Cond)
			if err != nil {
				return nil, err
			}
			if condType != ir.Bool {
				return nil, fmt.Errorf("Condition must be bool %s", stmt.Open.At())
			}
			body, err := l.HandleStatementList(declarations, current, stmt.Body)
			if err != nil {
				return nil, err
			}
			lowered = append(lowered, &ir.While{Cond: cond, Body: body})

		case ReturnStmt:
			value, valueType, err := l.HandleExpression(declarations, current, stmt.Value)
			if err != nil {
				return nil, err
			}
			if valueType != current.Return {
				return nil, fmt.Errorf("Function does not return value of return type %s", stmt.Open.At())
			}
			lowered = append(lowered, &ir.Return{Value: value})

		default:
			panic("Compiler Error: unknown statement type")
		}
	}

	return lowered, nil
}

// Generalized function to lower an expression, returning the resolved IR
// node together with its static type.
func (l *Lowerer) HandleExpression(declarations []*ir.FnDecl, current *ir.FnDecl, expression Expression) (ir.Expr, ir.Type, error) {
	switch expr := expression.(type) {
	case Variable:
		arg, err := l.resolveVariable(current, expr.Name)
		if err != nil {
			return nil, "", err
		}
		return arg, arg.Type, nil

	case Constant:
		constant := ir.Const{Kind: ir.Type(expr.Kind), Text: expr.Atom.Text, Index: expr.Index}
		return constant, constant.Kind, nil

	case Call:
		call, err := l.HandleCall(declarations, current, expr)
		if err != nil {
			return nil, "", err
		}
		return call, ir.ReturnType(call.Fn), nil
	}

	panic("Compiler Error: unknown expression type")
}

// Specialized function to resolve a call site: arguments are resolved first,
// then the (name, argument type tuple) key is matched linearly against the
// user declarations and then the builtin catalogue. The Checker guarantees at
// most one match exists.
func (l *Lowerer) HandleCall(declarations []*ir.FnDecl, current *ir.FnDecl, call Call) (*ir.Call, error) {
	arguments := make([]ir.Expr, 0, len(call.Args))
	for _, argument := range call.Args {
		switch arg := argument.(type) {
		case Variable:
			resolved, err := l.resolveVariable(current, arg.Name)
			if err != nil {
				return nil, err
			}
			arguments = append(arguments, resolved)
		case Constant:
			arguments = append(arguments, ir.Const{Kind: ir.Type(arg.Kind), Text: arg.Atom.Text, Index: arg.Index})
		default:
			panic("Compiler Error: call argument is neither variable nor constant")
		}
	}

	argTypes := make([]ir.Type, len(arguments))
	for i, argument := range arguments {
		argTypes[i] = ir.TypeOf(argument)
	}

	for _, decl := range declarations {
		if decl.Name == call.Name.Text && sameTypes(declArgTypes(decl), argTypes) {
			return &ir.Call{Fn: decl, Args: arguments}, nil
		}
	}
	for i := range ir.Builtins {
		builtin := &ir.Builtins[i]
		if builtin.Name == call.Name.Text && sameTypes(builtin.Args, argTypes) {
			return &ir.Call{Fn: builtin, Args: arguments}, nil
		}
	}

	return nil, fmt.Errorf("Function call does not match any functions %s", call.Open.At())
}

// Looks the token up in the current function's parameters, then locals.
func (l *Lowerer) resolveVariable(current *ir.FnDecl, token sexp.Token) (ir.Arg, error) {
	for _, arg := range current.Args {
		if arg.Name == token.Text {
			return arg, nil
		}
	}
	for _, local := range current.Locals {
		if local.Name == token.Text {
			return local, nil
		}
	}

	return ir.Arg{}, fmt.Errorf("token %q is not a variable nor parameter %s", token.Text, token.At())
}

func declArgTypes(decl *ir.FnDecl) []ir.Type {
	types := make([]ir.Type, len(decl.Args))
	for i, arg := range decl.Args {
		types[i] = arg.Type
	}
	return types
}

func sameTypes(first, second []ir.Type) bool {
	if len(first) != len(second) {
		return false
	}
	for i := range first {
		if first[i] != second[i] {
			return false
		}
	}
	return true
}
