package fn_test

import (
	"strings"
	"testing"

	"its-hmny.dev/fnc/pkg/fn"
)

// Parses then checks, shared by every test below.
func check(t *testing.T, source string) error {
	t.Helper()

	program, err := parse(t, source)
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}

	checker := fn.NewChecker(program)
	return checker.Check()
}

func TestCheckFunction(t *testing.T) {
	test := func(source string, diagnostic string) {
		err := check(t, source)
		if diagnostic == "" {
			if err != nil {
				t.Errorf("expected no error, got: %s", err)
			}
			return
		}
		if err == nil || !strings.Contains(err.Error(), diagnostic) {
			t.Errorf("expected %q, got: %v", diagnostic, err)
		}
	}

	t.Run("Duplicate names", func(t *testing.T) {
		// Parameters and locals share one namespace.
		test("(fn f int ((x int)(x int)) () ((return x)))", "Duplicate argument name")
		test("(fn f int ((x int)) ((x int)) ((return x)))", "Duplicate argument name")
		test("(fn f int ((x int)) ((y int)) ((return x)))", "")
	})

	t.Run("Return placement", func(t *testing.T) {
		test("(fn f int () () ())", "Function statement list must have at least one statement")
		test("(fn f int ((x int)) () ((return x)(set x x)))", "Return statement must be the last one")
		test("(fn f int ((x int)) () ((set x x)))", "Last statement in function definition statement list must be return statement")
		// Nested blocks are allowed to not end in return.
		test("(fn f int ((x int)(b bool)) () ((if b ((set x x)) ())(return x)))", "")
	})

	t.Run("Duplicate definitions", func(t *testing.T) {
		test(`(fn f int ((x int)) () ((return x)))
		      (fn f int ((y int)) () ((return y)))`, "Duplicate function definitions")
		// Same name with different argument types is a legal overload.
		test(`(fn f int ((x int)) () ((return x)))
		      (fn f float ((x float)) () ((return x)))`, "")
	})

	t.Run("Builtin shadowing", func(t *testing.T) {
		test("(fn + int ((a int)(b int)) () ((return a)))", `Duplicate function definition with builtin "+"`)
		test("(fn == bool ((a float)(b float)) () ((return true)))", `Duplicate function definition with builtin "=="`)
		// A fresh signature over an operator name is fine.
		test("(fn + int ((a int)(b int)(c int)) () ((return a)))", "")
	})
}

func TestCheckReportsBothPositions(t *testing.T) {
	err := check(t, "(fn f int ((x int)\n(x int)) () ((return x)))")
	if err == nil {
		t.Fatal("expected a duplicate name error")
	}
	// Both colliding declarations are reported.
	if !strings.Contains(err.Error(), "at line 1") || !strings.Contains(err.Error(), "at line 2") {
		t.Fatalf("expected both positions in the diagnostic, got: %s", err)
	}
}
