package ir

// ----------------------------------------------------------------------------
// Builtin catalogue

// This section contains the catalogue of predefined operator functions.
//
// Builtins take part in overload resolution exactly like user functions (keyed
// by name plus argument type tuple) but their body is a literal AArch64
// snippet emitted verbatim by the code generator. Each stub follows the same
// calling convention as everything else: operands arrive in x0/x1 (int, bool)
// or d0/d1 (float), the result leaves in x0 or d0, and the stub returns with
// no frame of its own.
//
// The table is fixed: entries are never added, removed or reordered at
// runtime, and the code generator derives the stable fn_<i> labels from the
// entry order below.

// A Builtin is one predefined operator overload.
type Builtin struct {
	Name   string // The operator spelling used at call sites
	Return Type
	Args   []Type
	Body   string // Literal assembly body, one instruction per line
}

var Builtins = []Builtin{
	{Name: "==", Return: Bool, Args: []Type{Int, Int}, Body: "cmp x0, x1\ncset x0, eq\nret"},
	{Name: "==", Return: Bool, Args: []Type{Bool, Bool}, Body: "cmp x0, x1\ncset x0, eq\nret"},

	{Name: "*", Return: Int, Args: []Type{Int, Int}, Body: "mul x0, x0, x1\nret"},
	{Name: "/", Return: Int, Args: []Type{Int, Int}, Body: "sdiv x0, x0, x1\nret"},
	{Name: "+", Return: Int, Args: []Type{Int, Int}, Body: "add x0, x0, x1\nret"},
	{Name: "-", Return: Int, Args: []Type{Int, Int}, Body: "sub x0, x0, x1\nret"},

	{Name: ">", Return: Bool, Args: []Type{Int, Int}, Body: "cmp x0, x1\ncset x0, gt\nret"},
	{Name: "<", Return: Bool, Args: []Type{Int, Int}, Body: "cmp x0, x1\ncset x0, lt\nret"},
	{Name: ">=", Return: Bool, Args: []Type{Int, Int}, Body: "cmp x0, x1\ncset x0, ge\nret"},
	{Name: "<=", Return: Bool, Args: []Type{Int, Int}, Body: "cmp x0, x1\ncset x0, le\nret"},

	{Name: "*", Return: Float, Args: []Type{Float, Float}, Body: "fmul d0, d0, d1\nret"},
	{Name: "/", Return: Float, Args: []Type{Float, Float}, Body: "fdiv d0, d0, d1\nret"},
	{Name: "+", Return: Float, Args: []Type{Float, Float}, Body: "fadd d0, d0, d1\nret"},
	{Name: "-", Return: Float, Args: []Type{Float, Float}, Body: "fsub d0, d0, d1\nret"},

	{Name: "==", Return: Bool, Args: []Type{Float, Float}, Body: "fcmp d0, d1\ncset x0, eq\nret"},
	{Name: ">", Return: Bool, Args: []Type{Float, Float}, Body: "fcmp d0, d1\ncset x0, gt\nret"},
	{Name: "<", Return: Bool, Args: []Type{Float, Float}, Body: "fcmp d0, d1\ncset x0, lt\nret"},
	{Name: ">=", Return: Bool, Args: []Type{Float, Float}, Body: "fcmp d0, d1\ncset x0, ge\nret"},
	{Name: "<=", Return: Bool, Args: []Type{Float, Float}, Body: "fcmp d0, d1\ncset x0, le\nret"},
}
