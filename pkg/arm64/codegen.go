package arm64

import (
	"fmt"
	"strconv"
	"strings"

	"its-hmny.dev/fnc/pkg/ir"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes an 'ir.Program' and spits out its AArch64 assembly counterpart.
//
// The output is GNU assembler text: a .data section holding the labelled
// constant pool, then .text with one stub per builtin followed by one function
// per user definition. User functions get a frame-pointer based frame: every
// parameter and local owns an 8-byte slot at [fp, #-k], parameters are
// materialized from their arrival registers (or the caller's stack area) on
// entry and locals are zero-initialized. The calling convention is the AAPCS64
// restriction used everywhere in the language: first 8 int/bool arguments in
// x0..x7, first 8 float arguments in d0..d7, the rest spilled to 8-byte stack
// slots with the stack kept 16-byte aligned. x9/d9 serve as scratch.
type CodeGenerator struct {
	program ir.Program

	fnLabels    map[ir.Callee]string // Callable (builtin or user) to its fn_<i> label
	constLabels map[int]string       // Pool index to its const_<i> label
	ifLabels    map[*ir.If]string    // If node to its if_<i> label prefix
	whileLabels map[*ir.While]string // While node to its while_<i> label prefix

	asm []string // The emitted lines, in order
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
func NewCodeGenerator(p ir.Program) CodeGenerator {
	return CodeGenerator{program: p}
}

// Translates the whole program to assembly, one line per slice element.
func (cg *CodeGenerator) Generate() ([]string, error) {
	cg.asm = []string{}
	cg.AllocateLabels()

	if err := cg.GenerateData(); err != nil {
		return nil, err
	}

	cg.emit(".text")
	cg.GenerateBuiltins()
	for _, function := range cg.program.Funcs {
		cg.GenerateFunction(function)
	}

	return cg.asm, nil
}

// ----------------------------------------------------------------------------
// Label allocation

// Mints every label up front: callables are numbered with the builtins first
// and the user functions after, in source order; constants reuse their pool
// index; if/while nodes are numbered by a pre-emission traversal so that two
// distinct nodes never share a label, however deeply they nest.
func (cg *CodeGenerator) AllocateLabels() {
	cg.fnLabels = map[ir.Callee]string{}
	for i := range ir.Builtins {
		cg.fnLabels[&ir.Builtins[i]] = fmt.Sprintf("fn_%d", len(cg.fnLabels))
	}
	for _, function := range cg.program.Funcs {
		cg.fnLabels[function.Decl] = fmt.Sprintf("fn_%d", len(cg.fnLabels))
	}

	cg.constLabels = map[int]string{}
	for _, constant := range cg.program.Consts {
		cg.constLabels[constant.Index] = fmt.Sprintf("const_%d", constant.Index)
	}

	cg.ifLabels, cg.whileLabels = map[*ir.If]string{}, map[*ir.While]string{}
	for _, function := range cg.program.Funcs {
		cg.collectBranchLabels(function.Body)
	}
}

func (cg *CodeGenerator) collectBranchLabels(body []ir.Stmt) {
	for _, statement := range body {
		switch stmt := statement.(type) {
		case *ir.If:
			cg.ifLabels[stmt] = fmt.Sprintf("if_%d", len(cg.ifLabels))
			cg.collectBranchLabels(stmt.Then)
			cg.collectBranchLabels(stmt.Else)
		case *ir.While:
			cg.whileLabels[stmt] = fmt.Sprintf("while_%d", len(cg.whileLabels))
			cg.collectBranchLabels(stmt.Body)
		}
	}
}

// ----------------------------------------------------------------------------
// Data section

// Emits the constant pool: one labelled .dword (int, bool as 0/1) or .double
// (float) per literal occurrence, in source order, each 8-byte aligned.
func (cg *CodeGenerator) GenerateData() error {
	cg.emit(".data")

	for _, constant := range cg.program.Consts {
		directive := ""
		switch constant.Kind {
		case ir.Bool:
			value := 0
			if constant.Text == "true" {
				value = 1
			}
			directive = fmt.Sprintf(".dword %d", value)

		case ir.Int:
			value, err := strconv.ParseInt(constant.Text, 10, 64)
			if err != nil {
				return fmt.Errorf("integer constant '%s' does not fit in 64 bits", constant.Text)
			}
			directive = fmt.Sprintf(".dword %d", value)

		case ir.Float:
			value, err := strconv.ParseFloat(constant.Text, 64)
			if err != nil {
				return fmt.Errorf("float constant '%s' is not representable", constant.Text)
			}
			directive = fmt.Sprintf(".double %s", strconv.FormatFloat(value, 'g', -1, 64))

		default:
			panic("Compiler Error: unknown constant kind")
		}

		cg.emit(".align 8")
		cg.emit("%s: %s", cg.constLabels[constant.Index], directive)
	}

	return nil
}

// ----------------------------------------------------------------------------
// Builtin stubs

// Emits every catalogue entry as a globally visible function whose body is
// its literal assembly snippet.
func (cg *CodeGenerator) GenerateBuiltins() {
	for i := range ir.Builtins {
		builtin := &ir.Builtins[i]
		cg.emit("// %s", builtin.Name)
		cg.emit(".global %s", cg.fnLabels[builtin])
		cg.emit("%s:", cg.fnLabels[builtin])
		cg.asm = append(cg.asm, strings.Split(builtin.Body, "\n")...)
	}
}

// ----------------------------------------------------------------------------
// User functions

// Emits one user function: label, prologue (frame setup, parameter
// materialization, local zeroing), the lowered body and the epilogue. The
// body always ends with a return statement that leaves the result in x0/d0,
// so a single epilogue after the body is enough.
func (cg *CodeGenerator) GenerateFunction(function ir.FnDef) {
	label := cg.fnLabels[function.Decl]
	cg.emit("// %s", function.Decl.Name)
	cg.emit(".global %s", label)
	cg.emit("%s:", label)

	offsets, frame := cg.GeneratePrologue(function.Decl)
	cg.GenerateStatementList(function.Body, offsets)

	cg.emit("ldp fp, lr, [sp, #%d]", frame-16)
	cg.emit("add sp, sp, #%d", frame)
	cg.emit("ret")
}

// Reserves the frame and assigns every parameter and local its slot.
//
// The frame is the slot area (parameter+local count rounded up to even, 8
// bytes each) plus a 16-byte cell on top holding the saved fp/lr pair; its
// total size is therefore always a multiple of 16. fp points at the saved
// pair, slots sit at [fp, #-8], [fp, #-16], ... parameters first then locals,
// in declaration order. Incoming stack-passed arguments live in the caller's
// frame at [fp, #16], [fp, #24], ...
func (cg *CodeGenerator) GeneratePrologue(decl *ir.FnDecl) (map[ir.Arg]int, int) {
	slots := len(decl.Args) + len(decl.Locals)
	if slots%2 == 1 {
		slots++
	}
	frame := slots*8 + 16

	cg.emit("sub sp, sp, #%d", frame)
	cg.emit("stp fp, lr, [sp, #%d]", frame-16)
	cg.emit("add fp, sp, #%d", frame-16)

	offsets, offset := map[ir.Arg]int{}, 0
	intReg, floatReg, stackArg := 0, 0, 0

	for _, arg := range decl.Args {
		offset += 8
		offsets[arg] = offset

		switch arg.Type {
		case ir.Int, ir.Bool:
			if intReg < 8 {
				cg.emit("str x%d, [fp, #-%d]", intReg, offset)
			} else {
				cg.emit("ldr x9, [fp, #%d]", 16+stackArg*8)
				cg.emit("str x9, [fp, #-%d]", offset)
				stackArg++
			}
			intReg++

		case ir.Float:
			if floatReg < 8 {
				cg.emit("str d%d, [fp, #-%d]", floatReg, offset)
			} else {
				cg.emit("ldr d9, [fp, #%d]", 16+stackArg*8)
				cg.emit("str d9, [fp, #-%d]", offset)
				stackArg++
			}
			floatReg++
		}
	}

	for _, local := range decl.Locals {
		offset += 8
		offsets[local] = offset
		cg.emit("mov x9, #0")
		cg.emit("str x9, [fp, #-%d]", offset)
	}

	return offsets, frame
}

// ----------------------------------------------------------------------------
// Statements

// Generalized function to emit a statement list (a body or a nested block).
func (cg *CodeGenerator) GenerateStatementList(statements []ir.Stmt, offsets map[ir.Arg]int) {
	for _, statement := range statements {
		switch stmt := statement.(type) {
		case *ir.Set:
			class := cg.GenerateExpression(stmt.Src, offsets)
			cg.emit("str %s0, [fp, #-%d]", class, offsets[stmt.Dest])

		case *ir.If:
			label := cg.ifLabels[stmt]
			cg.GenerateCondition(stmt.Cond, offsets)
			cg.emit("cmp x0, #1")
			cg.emit("bne %s_false", label)
			cg.emit("%s_true:", label)
			cg.GenerateStatementList(stmt.Then, offsets)
			cg.emit("b %s_end", label)
			cg.emit("%s_false:", label)
			cg.GenerateStatementList(stmt.Else, offsets)
			cg.emit("b %s_end", label)
			cg.emit("%s_end:", label)

		case *ir.While:
			label := cg.whileLabels[stmt]
			cg.emit("%s_start:", label)
			cg.GenerateCondition(stmt.Cond, offsets)
			cg.emit("cmp x0, #1")
			cg.emit("bne %s_end", label)
			cg.GenerateStatementList(stmt.Body, offsets)
			cg.emit("b %s_start", label)
			cg.emit("%s_end:", label)

		case *ir.Return:
			cg.GenerateExpression(stmt.Value, offsets)

		default:
			panic("Compiler Error: unknown statement type")
		}
	}
}

// Evaluates a condition into x0. Lowering guarantees the bool type, anything
// else slipping through is a compiler defect.
func (cg *CodeGenerator) GenerateCondition(cond ir.Expr, offsets map[ir.Arg]int) {
	if ir.TypeOf(cond) != ir.Bool {
		panic("Compiler Error: condition is not bool")
	}
	cg.GenerateExpression(cond, offsets)
}

// ----------------------------------------------------------------------------
// Expressions

// Evaluates an expression into x0 or d0 (per its type) and returns the
// register class used ("x" or "d").
func (cg *CodeGenerator) GenerateExpression(expression ir.Expr, offsets map[ir.Arg]int) string {
	switch expr := expression.(type) {
	case ir.Arg:
		class := regClass(expr.Type)
		cg.emit("ldr %s0, [fp, #-%d]", class, offsets[expr])
		return class

	case ir.Const:
		class := regClass(expr.Kind)
		cg.emit("ldr x0, =%s", cg.constLabels[expr.Index])
		cg.emit("ldr %s0, [x0]", class)
		return class

	case *ir.Call:
		cg.GenerateCall(expr, offsets)
		return regClass(ir.ReturnType(expr.Fn))
	}

	panic("Compiler Error: unknown expression type")
}

// One argument routed to a register, with the class and index it goes to.
type registerArg struct {
	arg   ir.Expr
	class string
	index int
}

// Emits a full call sequence: arguments are partitioned the same way the
// callee's prologue will expect them (first 8 per register class, rest on the
// stack), the spill area is reserved 16-byte aligned (odd spill counts get a
// zeroed filler slot), stack arguments are staged through x9/d9, register
// arguments are loaded directly, and the stack adjustment is undone right
// after the bl. The result is in x0/d0 per the callee's return type.
func (cg *CodeGenerator) GenerateCall(call *ir.Call, offsets map[ir.Arg]int) {
	intReg, floatReg := 0, 0
	registerArgs, stackArgs := []registerArg{}, []ir.Expr{}

	for _, argument := range call.Args {
		switch regClass(ir.TypeOf(argument)) {
		case "x":
			if intReg < 8 {
				registerArgs = append(registerArgs, registerArg{argument, "x", intReg})
			} else {
				stackArgs = append(stackArgs, argument)
			}
			intReg++
		case "d":
			if floatReg < 8 {
				registerArgs = append(registerArgs, registerArg{argument, "d", floatReg})
			} else {
				stackArgs = append(stackArgs, argument)
			}
			floatReg++
		}
	}

	spill := len(stackArgs) * 8
	if len(stackArgs)%2 != 0 {
		spill += 8
	}

	if spill > 0 {
		cg.emit("sub sp, sp, #%d", spill)
		if len(stackArgs)%2 != 0 {
			cg.emit("str xzr, [sp, #%d]", len(stackArgs)*8)
		}
	}

	for i, argument := range stackArgs {
		class := regClass(ir.TypeOf(argument))
		cg.loadScratch(argument, class, offsets)
		cg.emit("str %s9, [sp, #%d]", class, i*8)
	}
	for _, destination := range registerArgs {
		cg.loadRegister(destination, offsets)
	}

	cg.emit("bl %s", cg.fnLabels[call.Fn])

	if spill > 0 {
		cg.emit("add sp, sp, #%d", spill)
	}
}

// Loads a call argument into the x9/d9 scratch register.
func (cg *CodeGenerator) loadScratch(argument ir.Expr, class string, offsets map[ir.Arg]int) {
	switch arg := argument.(type) {
	case ir.Arg:
		cg.emit("ldr %s9, [fp, #-%d]", class, offsets[arg])
	case ir.Const:
		cg.emit("ldr x9, =%s", cg.constLabels[arg.Index])
		cg.emit("ldr %s9, [x9]", class)
	default:
		panic("Compiler Error: call argument is neither variable nor constant")
	}
}

// Loads a call argument straight into its destination argument register.
// Float constants stage their pool address through x9 first.
func (cg *CodeGenerator) loadRegister(destination registerArg, offsets map[ir.Arg]int) {
	switch arg := destination.arg.(type) {
	case ir.Arg:
		cg.emit("ldr %s%d, [fp, #-%d]", destination.class, destination.index, offsets[arg])

	case ir.Const:
		if destination.class == "x" {
			cg.emit("ldr x%d, =%s", destination.index, cg.constLabels[arg.Index])
			cg.emit("ldr x%d, [x%d]", destination.index, destination.index)
		} else {
			cg.emit("ldr x9, =%s", cg.constLabels[arg.Index])
			cg.emit("ldr d%d, [x9]", destination.index)
		}

	default:
		panic("Compiler Error: call argument is neither variable nor constant")
	}
}

// ----------------------------------------------------------------------------
// Helpers

// Register class carrying values of type 't': "d" for floats, "x" otherwise.
func regClass(t ir.Type) string {
	if t == ir.Float {
		return "d"
	}
	return "x"
}

func (cg *CodeGenerator) emit(format string, args ...any) {
	cg.asm = append(cg.asm, fmt.Sprintf(format, args...))
}
