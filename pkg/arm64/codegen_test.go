package arm64_test

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"its-hmny.dev/fnc/pkg/arm64"
	"its-hmny.dev/fnc/pkg/fn"
	"its-hmny.dev/fnc/pkg/ir"
	"its-hmny.dev/fnc/pkg/sexp"
)

// Runs the whole pipeline on 'source' and returns the emitted assembly lines.
// The 19 builtin stubs always come first, so the first user function is fn_19.
func compile(t *testing.T, source string) []string {
	t.Helper()

	tokens, err := sexp.Tokenize([]byte(source))
	require.NoError(t, err)
	tree, err := sexp.BuildTree(tokens)
	require.NoError(t, err)

	parser := fn.NewParser()
	program, err := parser.FromTree(tree)
	require.NoError(t, err)

	checker := fn.NewChecker(program)
	require.NoError(t, checker.Check())

	lowerer := fn.NewLowerer(program)
	irProgram, err := lowerer.Lower()
	require.NoError(t, err)

	codegen := arm64.NewCodeGenerator(irProgram)
	asm, err := codegen.Generate()
	require.NoError(t, err)
	return asm
}

// Returns the slice of lines belonging to the given function label, from its
// "label:" line up to (and including) its final ret.
func functionBody(t *testing.T, asm []string, label string) []string {
	t.Helper()

	start := -1
	for i, line := range asm {
		if line == label+":" {
			start = i
			break
		}
	}
	require.GreaterOrEqual(t, start, 0, "label %s not emitted", label)

	for i := start + 1; i < len(asm); i++ {
		if asm[i] == "ret" {
			return asm[start : i+1]
		}
	}
	t.Fatalf("function %s has no ret", label)
	return nil
}

func TestIdentityFunction(t *testing.T) {
	asm := compile(t, "(fn id int ((x int)) () ((return x)))")

	// One user function after the builtin stubs, globally visible and
	// preceded by its source-name comment.
	assert.Contains(t, asm, "// id")
	assert.Contains(t, asm, ".global fn_19")

	body := functionBody(t, asm, "fn_19")
	// One parameter: 2 slots after rounding, plus the saved fp/lr pair.
	assert.Contains(t, body, "sub sp, sp, #32")
	assert.Contains(t, body, "stp fp, lr, [sp, #16]")
	assert.Contains(t, body, "add fp, sp, #16")
	// x arrives in x0 and lives at [fp, #-8]; the return loads it back.
	assert.Contains(t, body, "str x0, [fp, #-8]")
	assert.Contains(t, body, "ldr x0, [fp, #-8]")
	// Epilogue restores the pair and unwinds the whole frame.
	assert.Contains(t, body, "ldp fp, lr, [sp, #16]")
	assert.Contains(t, body, "add sp, sp, #32")
	assert.Equal(t, "ret", body[len(body)-1])
}

func TestEmptyFrameStaysAligned(t *testing.T) {
	asm := compile(t, "(fn five int () () ((return 5)))")
	body := functionBody(t, asm, "fn_19")

	// No params and no locals still reserve the 16-byte fp/lr cell.
	assert.Contains(t, body, "sub sp, sp, #16")
	assert.Contains(t, body, "stp fp, lr, [sp, #0]")
	assert.Contains(t, body, "add fp, sp, #0")
	// The literal is fetched through its pool label.
	assert.Contains(t, body, "ldr x0, =const_0")
	assert.Contains(t, asm, "const_0: .dword 5")
}

func TestFrameSizesAreMultiplesOf16(t *testing.T) {
	sources := []string{
		"(fn f int () () ((return 1)))",
		"(fn f int ((a int)) () ((return a)))",
		"(fn f int ((a int)(b int)) () ((return a)))",
		"(fn f int ((a int)(b int)(c int)) ((d int)(e int)) ((return a)))",
	}
	frameRe := regexp.MustCompile(`^sub sp, sp, #(\d+)$`)

	for _, source := range sources {
		body := functionBody(t, compile(t, source), "fn_19")
		match := frameRe.FindStringSubmatch(body[1])
		require.NotNil(t, match, "prologue should open with the frame reservation")
		size, err := strconv.Atoi(match[1])
		require.NoError(t, err)
		assert.Zero(t, size%16, "frame of %q is %d bytes", source, size)
	}
}

func TestConstantPool(t *testing.T) {
	asm := compile(t, "(fn f float ((b bool)) ((x float)) ((if b ((set x 2.5)) ((set x -1.0)))(return x)))")

	// .data comes first, entries in textual order, each 8-byte aligned;
	// bools encode as 0/1 dwords, floats as .double.
	require.Equal(t, ".data", asm[0])
	assert.Contains(t, asm, "const_0: .double 2.5")
	assert.Contains(t, asm, "const_1: .double -1")
	assert.Contains(t, asm, ".align 8")

	data := strings.Join(asm, "\n")
	assert.Less(t, strings.Index(data, "const_0:"), strings.Index(data, "const_1:"))
}

func TestBuiltinStubs(t *testing.T) {
	asm := compile(t, "(fn f int ((a int)) () ((return a)))")

	// All 19 stubs precede the user code, each under its fn_<i> label.
	for i := 0; i < 19; i++ {
		assert.Contains(t, asm, fmt.Sprintf(".global fn_%d", i))
	}
	// Spot-check the int '+' stub (fn_4 by catalogue order).
	body := functionBody(t, asm, "fn_4")
	assert.Equal(t, []string{"fn_4:", "add x0, x0, x1", "ret"}, body)
	// And the float '>' one (fn_15).
	body = functionBody(t, asm, "fn_15")
	assert.Equal(t, []string{"fn_15:", "fcmp d0, d1", "cset x0, gt", "ret"}, body)
}

func TestArithmeticCall(t *testing.T) {
	asm := compile(t, "(fn add2 int ((a int)(b int)) () ((set a (+ a b))(return a)))")
	body := functionBody(t, asm, "fn_19")

	// Operands load straight into the argument registers, then bl to the
	// int '+' stub, then the result is stored back into a's slot.
	assert.Contains(t, body, "ldr x0, [fp, #-8]")
	assert.Contains(t, body, "ldr x1, [fp, #-16]")
	assert.Contains(t, body, "bl fn_4")
	assert.Contains(t, body, "str x0, [fp, #-8]")
	// Two register arguments never touch the stack.
	for _, line := range body {
		assert.NotContains(t, line, "[sp, #0]")
	}
}

func TestFloatComparison(t *testing.T) {
	asm := compile(t, "(fn gt bool ((x float)(y float)) () ((return (> x y))))")
	body := functionBody(t, asm, "fn_19")

	// Float params arrive in d0/d1 and reload into d0/d1 for the call;
	// the float '>' stub leaves the bool in x0.
	assert.Contains(t, body, "str d0, [fp, #-8]")
	assert.Contains(t, body, "str d1, [fp, #-16]")
	assert.Contains(t, body, "ldr d0, [fp, #-8]")
	assert.Contains(t, body, "ldr d1, [fp, #-16]")
	assert.Contains(t, body, "bl fn_15")
}

func TestWhileLoop(t *testing.T) {
	asm := compile(t, "(fn count int ((n int)) ((i int)) ((while (< i n) ((set i (+ i 1)))) (return i)))")
	body := functionBody(t, asm, "fn_19")

	// Locals are zero-initialized through the scratch register.
	assert.Contains(t, body, "mov x9, #0")
	assert.Contains(t, body, "str x9, [fp, #-16]")

	// The loop gets its start/end label pair and the backward branch.
	assert.Contains(t, body, "while_0_start:")
	assert.Contains(t, body, "while_0_end:")
	assert.Contains(t, body, "b while_0_start")
	assert.Contains(t, body, "bne while_0_end")
	assert.Contains(t, body, "cmp x0, #1")
	assert.Contains(t, body, "bl fn_7") // the int '<' stub
}

func TestIfBranches(t *testing.T) {
	asm := compile(t, "(fn f int ((a int)(b bool)) () ((if b ((set a 1)) ((set a 2)))(return a)))")
	body := strings.Join(functionBody(t, asm, "fn_19"), "\n")

	// Both arms jump to the shared end label, the false label is branched
	// to when the condition is not 1.
	assert.Contains(t, body, "bne if_0_false")
	assert.Contains(t, body, "if_0_true:")
	assert.Contains(t, body, "if_0_false:")
	assert.Contains(t, body, "if_0_end:")
	assert.Equal(t, 2, strings.Count(body, "b if_0_end"))
}

func TestNestedControlFlowLabels(t *testing.T) {
	asm := compile(t, `
		(fn f int ((n int)(b bool)) ((i int))
			((while (< i n)
				((if b
					((while (< i n) ((set i (+ i 1)))))
					((set i n)))))
			 (return i)))`)
	body := strings.Join(functionBody(t, asm, "fn_19"), "\n")

	// Three levels of nesting produce three distinct, non-colliding labels.
	assert.Contains(t, body, "while_0_start:")
	assert.Contains(t, body, "while_1_start:")
	assert.Contains(t, body, "if_0_true:")
	// Every label pair is balanced: each start has exactly one definition
	// and one backward branch.
	assert.Equal(t, 1, strings.Count(body, "while_0_start:"))
	assert.Equal(t, 1, strings.Count(body, "while_1_start:"))
	assert.Equal(t, 1, strings.Count(body, "b while_0_start"))
	assert.Equal(t, 1, strings.Count(body, "b while_1_start"))
	assert.Equal(t, 1, strings.Count(body, "while_0_end:"))
	assert.Equal(t, 1, strings.Count(body, "while_1_end:"))
}

func TestOverloadedFunctionsCoexist(t *testing.T) {
	asm := compile(t, `
		(fn sq int ((x int)) () ((return (* x x))))
		(fn sq float ((x float)) () ((return (* x x))))
		(fn use float ((a float)) () ((return (sq a))))`)

	// Both overloads get their own labels (fn_19, fn_20) and the float call
	// site binds to the second one.
	assert.Contains(t, asm, ".global fn_19")
	assert.Contains(t, asm, ".global fn_20")
	assert.Contains(t, asm, ".global fn_21")

	intBody := strings.Join(functionBody(t, asm, "fn_19"), "\n")
	floatBody := strings.Join(functionBody(t, asm, "fn_20"), "\n")
	useBody := strings.Join(functionBody(t, asm, "fn_21"), "\n")
	assert.Contains(t, intBody, "bl fn_2")    // int '*'
	assert.Contains(t, floatBody, "bl fn_10") // float '*'
	assert.Contains(t, useBody, "bl fn_20")
}

func TestEightRegisterArguments(t *testing.T) {
	params, operands := []string{}, []string{}
	for i := 1; i <= 8; i++ {
		params = append(params, fmt.Sprintf("(a%d int)", i))
		operands = append(operands, fmt.Sprintf("a%d", i))
	}
	source := fmt.Sprintf(`
		(fn callee int (%s) () ((return a1)))
		(fn caller int (%s) () ((return (callee %s))))`,
		strings.Join(params, ""), strings.Join(params, ""), strings.Join(operands, " "))

	asm := compile(t, source)
	caller := functionBody(t, asm, "fn_20")

	// Exactly 8 int arguments ride in x0..x7, nothing spills.
	for i := 0; i < 8; i++ {
		assert.Contains(t, caller, fmt.Sprintf("ldr x%d, [fp, #-%d]", i, 8*(i+1)))
	}
	joined := strings.Join(caller, "\n")
	assert.NotContains(t, joined, "str x9, [sp,")
	assert.NotContains(t, joined, "str xzr,")
}

func TestNinthArgumentSpills(t *testing.T) {
	params, operands := []string{}, []string{}
	for i := 1; i <= 9; i++ {
		params = append(params, fmt.Sprintf("(a%d int)", i))
		operands = append(operands, fmt.Sprintf("a%d", i))
	}
	source := fmt.Sprintf(`
		(fn callee int (%s) () ((return a9)))
		(fn caller int (%s) () ((return (callee %s))))`,
		strings.Join(params, ""), strings.Join(params, ""), strings.Join(operands, " "))

	asm := compile(t, source)

	// Caller side: one spilled argument, staged through x9 into a 16-byte
	// aligned area with a zeroed filler slot.
	caller := functionBody(t, asm, "fn_20")
	assert.Contains(t, caller, "sub sp, sp, #16")
	assert.Contains(t, caller, "str xzr, [sp, #8]")
	assert.Contains(t, caller, "str x9, [sp, #0]")
	assert.Contains(t, caller, "add sp, sp, #16")

	// Callee side: the 9th parameter is read back from the caller's frame.
	callee := functionBody(t, asm, "fn_19")
	assert.Contains(t, callee, "ldr x9, [fp, #16]")
	assert.Contains(t, callee, "str x9, [fp, #-72]")
}

func TestMixedRegisterClasses(t *testing.T) {
	params, operands := []string{}, []string{}
	for i := 1; i <= 8; i++ {
		params = append(params, fmt.Sprintf("(a%d int)", i))
		operands = append(operands, fmt.Sprintf("a%d", i))
	}
	params = append(params, "(x float)")
	operands = append(operands, "x")
	source := fmt.Sprintf(`
		(fn callee float (%s) () ((return x)))
		(fn caller float (%s) () ((return (callee %s))))`,
		strings.Join(params, ""), strings.Join(params, ""), strings.Join(operands, " "))

	asm := compile(t, source)
	caller := strings.Join(functionBody(t, asm, "fn_20"), "\n")

	// 8 ints fill x0..x7, the float still rides in d0: nothing spills.
	assert.Contains(t, caller, "ldr x7, [fp, #-64]")
	assert.Contains(t, caller, "ldr d0, [fp, #-72]")
	assert.NotContains(t, caller, "str x9, [sp,")
	assert.NotContains(t, caller, "str d9, [sp,")
}

func TestConstantsInCalls(t *testing.T) {
	asm := compile(t, "(fn f float ((x float)) () ((return (+ x 1.5))))")
	body := functionBody(t, asm, "fn_19")

	// A float constant argument stages its pool address through x9.
	assert.Contains(t, body, "ldr d0, [fp, #-8]")
	assert.Contains(t, body, "ldr x9, =const_0")
	assert.Contains(t, body, "ldr d1, [x9]")
	assert.Contains(t, body, "bl fn_12") // float '+'
}

func TestLabelsUniqueAcrossFunctions(t *testing.T) {
	asm := compile(t, `
		(fn f int ((b bool)(a int)) () ((if b () ())(return a)))
		(fn g int ((b bool)(a int)) () ((if b () ())(return a)))`)
	joined := strings.Join(asm, "\n")

	// Two ifs in two different functions still get distinct labels.
	assert.Contains(t, joined, "if_0_true:")
	assert.Contains(t, joined, "if_1_true:")
	assert.Equal(t, 1, strings.Count(joined, "if_0_true:"))
	assert.Equal(t, 1, strings.Count(joined, "if_1_true:"))
}

func TestBoolConstantEncoding(t *testing.T) {
	asm := compile(t, "(fn f bool () () ((return true)))")
	assert.Contains(t, asm, "const_0: .dword 1")

	asm = compile(t, "(fn f bool () () ((return false)))")
	assert.Contains(t, asm, "const_0: .dword 0")
}

func TestGeneratorNormalizesIntegers(t *testing.T) {
	// An explicit plus sign disappears in the emitted pool entry.
	asm := compile(t, "(fn f int () () ((return +42)))")
	assert.Contains(t, asm, "const_0: .dword 42")

	program := ir.Program{Consts: []ir.Const{{Kind: ir.Int, Text: "99999999999999999999", Index: 0}}}
	codegen := arm64.NewCodeGenerator(program)
	_, err := codegen.Generate()
	require.Error(t, err, "a pool entry that does not fit 64 bits must be rejected")
}
