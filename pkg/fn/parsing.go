package fn

import (
	"fmt"
	"regexp"

	"its-hmny.dev/fnc/pkg/sexp"
)

// ----------------------------------------------------------------------------
// Lexical classes

// The identifier class deliberately excludes '.' (so floats never collide with
// names) but admits the bare '+' and '-' operator spellings. Numbers may carry
// a sign; a float needs digits on both sides of the dot.
var (
	identifierRe = regexp.MustCompile(`^(?:[a-zA-Z!$%&*/:<=>?^_~][a-zA-Z!$%&*/:<=>?^_~0-9]*|\+|-)$`)
	intRe        = regexp.MustCompile(`^[+-]?[0-9]+$`)
	floatRe      = regexp.MustCompile(`^[+-]?[0-9]+[.][0-9]+$`)
)

// Reports whether the atom spells one of the three type names.
func parseType(text string) (Type, bool) {
	switch t := Type(text); t {
	case Int, Float, Bool:
		return t, true
	}

	return "", false
}

// ----------------------------------------------------------------------------
// Syntax Parser

// The Parser walks the generic S-expression tree with the language's fixed
// shape rules and produces the typed AST. It owns the constant pool: every
// atom that classifies as a literal is appended to it, in source order, at
// the moment it is parsed.
type Parser struct{ constants []Constant }

// Initializes and returns to the caller a brand new 'Parser' struct.
func NewParser() Parser {
	return Parser{}
}

// Parser entrypoint: takes the root list produced by the tree builder and
// extracts a 'fn.Program' from it. Every top-level element must be a
// function definition.
func (p *Parser) FromTree(root sexp.List) (Program, error) {
	program := Program{}

	for _, element := range root.Elements {
		list, ok := element.(sexp.List)
		if !ok {
			return Program{}, fmt.Errorf("Function definition must be a list %s", sexp.At(element))
		}

		function, err := p.HandleFunction(list)
		if err != nil {
			return Program{}, err
		}
		program.Functions = append(program.Functions, function)
	}

	program.Constants = p.constants
	return program, nil
}

// Specialized function to convert a top-level list to a 'fn.Function'.
// The list must have exactly the 6 elements of the fn definition shape.
func (p *Parser) HandleFunction(list sexp.List) (Function, error) {
	if len(list.Elements) != 6 {
		return Function{}, fmt.Errorf("Function definition must have 6 elements %s", list.At())
	}

	head, ok := list.Elements[0].(sexp.Token)
	if !ok {
		return Function{}, fmt.Errorf("Function must start with atom %s", sexp.At(list.Elements[0]))
	}
	if head.Text != "fn" {
		return Function{}, fmt.Errorf("Function must start with fn %s", head.At())
	}

	name, ok := list.Elements[1].(sexp.Token)
	if !ok {
		return Function{}, fmt.Errorf("Function name must be an atom %s", sexp.At(list.Elements[1]))
	}
	if !identifierRe.MatchString(name.Text) {
		return Function{}, fmt.Errorf("Function name does not match identifier pattern %s", name.At())
	}

	retAtom, ok := list.Elements[2].(sexp.Token)
	if !ok {
		return Function{}, fmt.Errorf("Function return type must be an atom %s", sexp.At(list.Elements[2]))
	}
	retType, ok := parseType(retAtom.Text)
	if !ok {
		return Function{}, fmt.Errorf("Function return type is not valid %s", retAtom.At())
	}

	args, err := p.HandleVarList(list.Elements[3])
	if err != nil {
		return Function{}, err
	}
	locals, err := p.HandleVarList(list.Elements[4])
	if err != nil {
		return Function{}, err
	}

	bodyList, ok := list.Elements[5].(sexp.List)
	if !ok {
		return Function{}, fmt.Errorf("Statement list must be a list %s", sexp.At(list.Elements[5]))
	}
	body, err := p.HandleStatementList(bodyList)
	if err != nil {
		return Function{}, err
	}

	return Function{
		Open: list.Open, Name: name, Return: retType,
		Args: args, Locals: locals,
		Body: body, BodyOpen: bodyList.Open,
	}, nil
}

// Specialized function to convert an arg-list or var-list node into its
// '(<name> <type>)' pairs.
func (p *Parser) HandleVarList(node sexp.Node) ([]VarDecl, error) {
	list, ok := node.(sexp.List)
	if !ok {
		return nil, fmt.Errorf("Argument list must be a list %s", sexp.At(node))
	}

	decls := []VarDecl{}
	for _, element := range list.Elements {
		pair, ok := element.(sexp.List)
		if !ok {
			return nil, fmt.Errorf("Name type pair must be a list %s", sexp.At(element))
		}
		if len(pair.Elements) != 2 {
			return nil, fmt.Errorf("Name type pair must have 2 elements %s", pair.At())
		}

		name, ok := pair.Elements[0].(sexp.Token)
		if !ok {
			return nil, fmt.Errorf("Argument name must be an atom %s", sexp.At(pair.Elements[0]))
		}
		if !identifierRe.MatchString(name.Text) {
			return nil, fmt.Errorf("Argument name does not match identifier pattern %s", name.At())
		}

		typeAtom, ok := pair.Elements[1].(sexp.Token)
		if !ok {
			return nil, fmt.Errorf("Argument type must be an atom %s", sexp.At(pair.Elements[1]))
		}
		declType, ok := parseType(typeAtom.Text)
		if !ok {
			return nil, fmt.Errorf("Argument type is not valid %s", typeAtom.At())
		}

		decls = append(decls, VarDecl{Name: name, Type: declType})
	}

	return decls, nil
}

// Specialized function to convert a stmt-list into its statements. The head
// atom of each element selects the statement form and fixes its arity.
func (p *Parser) HandleStatementList(list sexp.List) ([]Statement, error) {
	statements := []Statement{}

	for _, element := range list.Elements {
		stmtList, ok := element.(sexp.List)
		if !ok {
			return nil, fmt.Errorf("Statement must be a list %s", sexp.At(element))
		}

		statement, err := p.HandleStatement(stmtList)
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}

	return statements, nil
}

// Specialized function to convert a single statement list to its AST node.
func (p *Parser) HandleStatement(list sexp.List) (Statement, error) {
	if len(list.Elements) == 0 {
		return nil, fmt.Errorf("Statement must be a non-empty list %s", list.At())
	}

	head, ok := list.Elements[0].(sexp.Token)
	if !ok {
		return nil, fmt.Errorf("Statement name must be an atom %s", sexp.At(list.Elements[0]))
	}

	switch head.Text {
	case "set":
		if len(list.Elements) != 3 {
			return nil, fmt.Errorf("Set statement list must have 3 elements %s", list.At())
		}
		dest, err := p.checkAtomIdentifier(list.Elements[1])
		if err != nil {
			return nil, err
		}
		src, err := p.HandleExpression(list.Elements[2])
		if err != nil {
			return nil, err
		}
		return SetStmt{Open: list.Open, Dest: dest, Src: src}, nil

	case "if":
		if len(list.Elements) != 4 {
			return nil, fmt.Errorf("If statement list must have 4 elements %s", list.At())
		}
		cond, err := p.HandleExpression(list.Elements[1])
		if err != nil {
			return nil, err
		}
		thenList, ok := list.Elements[2].(sexp.List)
		if !ok {
			return nil, fmt.Errorf("Statement list must be a list %s", sexp.At(list.Elements[2]))
		}
		thenBranch, err := p.HandleStatementList(thenList)
		if err != nil {
			return nil, err
		}
		elseList, ok := list.Elements[3].(sexp.List)
		if !ok {
			return nil, fmt.Errorf("Statement list must be a list %s", sexp.At(list.Elements[3]))
		}
		elseBranch, err := p.HandleStatementList(elseList)
		if err != nil {
			return nil, err
		}
		return IfStmt{Open: list.Open, Cond: cond, Then: thenBranch, Else: elseBranch}, nil

	case "while":
		if len(list.Elements) != 3 {
			return nil, fmt.Errorf("While statement list must have 3 elements %s", list.At())
		}
		cond, err := p.HandleExpression(list.Elements[1])
		if err != nil {
			return nil, err
		}
		bodyList, ok := list.Elements[2].(sexp.List)
		if !ok {
			return nil, fmt.Errorf("Statement list must be a list %s", sexp.At(list.Elements[2]))
		}
		body, err := p.HandleStatementList(bodyList)
		if err != nil {
			return nil, err
		}
		return WhileStmt{Open: list.Open, Cond: cond, Body: body}, nil

	case "return":
		if len(list.Elements) != 2 {
			return nil, fmt.Errorf("Return statement list must have 2 elements %s", list.At())
		}
		value, err := p.HandleExpression(list.Elements[1])
		if err != nil {
			return nil, err
		}
		return ReturnStmt{Open: list.Open, Value: value}, nil
	}

	return nil, fmt.Errorf("Statement name is not valid %s", head.At())
}

// Specialized function to convert an expression node: a lone atom becomes a
// variable or interned constant, a list becomes a flat call whose arguments
// must themselves be atoms.
func (p *Parser) HandleExpression(node sexp.Node) (Expression, error) {
	switch element := node.(type) {
	case sexp.Token:
		return p.HandleOperand(element), nil

	case sexp.List:
		if len(element.Elements) == 0 {
			return nil, fmt.Errorf("Function call must be a non-empty list %s", element.At())
		}
		name, err := p.checkAtomIdentifier(element.Elements[0])
		if err != nil {
			return nil, err
		}

		args := []Expression{}
		for _, argument := range element.Elements[1:] {
			atom, ok := argument.(sexp.Token)
			if !ok {
				return nil, fmt.Errorf("Element must be an atom %s", sexp.At(argument))
			}
			args = append(args, p.HandleOperand(atom))
		}
		return Call{Open: element.Open, Name: name, Args: args}, nil
	}

	panic("Compiler Error: unknown tree node type")
}

// Classifies a lone atom: 'true'/'false', then integer, then float literals
// become interned constants, anything else is a variable reference.
func (p *Parser) HandleOperand(atom sexp.Token) Expression {
	switch {
	case atom.Text == "true" || atom.Text == "false":
		return p.intern(Bool, atom)
	case intRe.MatchString(atom.Text):
		return p.intern(Int, atom)
	case floatRe.MatchString(atom.Text):
		return p.intern(Float, atom)
	}

	return Variable{Name: atom}
}

// Appends a new literal occurrence to the pool and returns its entity.
func (p *Parser) intern(kind Type, atom sexp.Token) Constant {
	constant := Constant{Kind: kind, Atom: atom, Index: len(p.constants)}
	p.constants = append(p.constants, constant)
	return constant
}

// Checks that a node is an atom matching the identifier pattern.
func (p *Parser) checkAtomIdentifier(node sexp.Node) (sexp.Token, error) {
	atom, ok := node.(sexp.Token)
	if !ok {
		return sexp.Token{}, fmt.Errorf("Element must be an atom %s", sexp.At(node))
	}
	if !identifierRe.MatchString(atom.Text) {
		return sexp.Token{}, fmt.Errorf("Element is not valid identifier %s", atom.At())
	}

	return atom, nil
}
