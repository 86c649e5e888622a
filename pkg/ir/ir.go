package ir

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the fnc IR.
//
// The IR is what comes out of semantic analysis: the same statements as the
// source language, but with every variable reference replaced by the Arg slot
// it resolved to and every call bound to the exact declaration (user function
// or builtin) picked by overload resolution. There is no name lookup left to
// do after this point, so the code generator can walk the tree mechanically.

// Type of a value flowing through the program. Types are nominal and
// invariant, there are no implicit conversions anywhere in the language.
type Type string

const (
	Int   Type = "int"
	Float Type = "float"
	Bool  Type = "bool"
)

// ----------------------------------------------------------------------------
// Declarations

// An Arg is one named slot of a function: either a parameter or a local
// variable (both share a single namespace). Args are small and compared by
// value, a resolved reference is just a copy of the declaring slot.
type Arg struct {
	Name string
	Type Type
}

// A FnDecl is the callable surface of a user function: everything overload
// resolution and the calling convention need, without the body.
type FnDecl struct {
	Name   string
	Return Type
	Args   []Arg // Parameters, in declaration order
	Locals []Arg // Local variables, in declaration order
}

// ----------------------------------------------------------------------------
// Expressions

// An Expr is either an Arg (a resolved variable reference), a Const (an
// interned literal) or a *Call, use type switch to disambiguate.
type Expr interface{}

// A Const is one textual occurrence of a literal. Every occurrence is a
// distinct entity; Index is its position in the interned pool and later names
// its label in the emitted .data section.
type Const struct {
	Kind  Type
	Text  string // The literal spelling from the source
	Index int    // Position in the constant pool, in source order
}

// A Call is a function call bound to its resolved callee. Arguments are Args
// or Consts only, the surface grammar cannot express nested calls.
type Call struct {
	Fn   Callee
	Args []Expr
}

// Callee is either a *FnDecl (user function) or a *Builtin. The pointer
// identity is what the code generator keys its label table on.
type Callee interface{}

// ReturnType reports the declared return type of a resolved callee.
func ReturnType(callee Callee) Type {
	switch fn := callee.(type) {
	case *FnDecl:
		return fn.Return
	case *Builtin:
		return fn.Return
	}

	panic("Compiler Error: unknown callee type")
}

// TypeOf reports the static type of any IR expression.
func TypeOf(expr Expr) Type {
	switch e := expr.(type) {
	case Arg:
		return e.Type
	case Const:
		return e.Kind
	case *Call:
		return ReturnType(e.Fn)
	}

	panic("Compiler Error: unknown expression type")
}

// ----------------------------------------------------------------------------
// Statements

// A Stmt is one of *Set, *If, *While or *Return. Statements are pointers so
// that the code generator can key its control-flow label tables on node
// identity (two structurally equal ifs still get distinct labels).
type Stmt interface{}

type Set struct { // Stores the value of 'Src' into the 'Dest' slot
	Dest Arg
	Src  Expr
}

type If struct { // Two-way branch on a bool condition
	Cond Expr
	Then []Stmt
	Else []Stmt
}

type While struct { // Pre-checked loop on a bool condition
	Cond Expr
	Body []Stmt
}

type Return struct { // Yields the function's result, always the last statement
	Value Expr
}

// ----------------------------------------------------------------------------
// Program

// A FnDef pairs a declaration with its lowered body.
type FnDef struct {
	Decl *FnDecl
	Body []Stmt
}

// A Program is the complete unit handed to the code generator: every user
// function in source order plus the constant pool backing the .data section.
type Program struct {
	Funcs  []FnDef
	Consts []Const
}
