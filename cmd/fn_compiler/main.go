package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/fnc/pkg/arm64"
	"its-hmny.dev/fnc/pkg/fn"
	"its-hmny.dev/fnc/pkg/sexp"
)

var Description = strings.ReplaceAll(`
The fn Compiler takes a single source file written in the fn language (a small
statically-typed procedural language with an S-expression syntax) and compiles
it ahead-of-time to AArch64 assembly text, ready to be assembled and linked.
`, "\n", " ")

var FnCompiler = cli.New(Description).
	WithArg(cli.NewArg("input", "The source (.txt) file to be compiled, 'example.txt' when omitted").
		AsOptional().WithType(cli.TypeString)).
	WithArg(cli.NewArg("output", "The assembly output (.s), input path with '.s' extension when omitted").
		AsOptional().WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	input := "example.txt"
	if len(args) > 0 {
		input = args[0]
	}
	output := strings.TrimSuffix(input, filepath.Ext(input)) + ".s"
	if len(args) > 1 {
		output = args[1]
	}

	source, err := os.ReadFile(input)
	if err != nil {
		fmt.Printf("Error: Unable to open input file: %s\n", err)
		return -1
	}

	// Scans the raw bytes into the S-expression token stream.
	tokens, err := sexp.Tokenize(source)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return -1
	}

	// Folds the token stream into the generic S-expression tree.
	tree, err := sexp.BuildTree(tokens)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return -1
	}

	// Instantiate a parser to extract the typed AST (a 'fn.Program') from the tree.
	parser := fn.NewParser()
	program, err := parser.FromTree(tree)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return -1
	}

	// Enforces AST well-formedness (duplicate names, return placement,
	// signature uniqueness against user functions and builtins).
	checker := fn.NewChecker(program)
	if err := checker.Check(); err != nil {
		fmt.Printf("Error: %s\n", err)
		return -1
	}

	// Instantiate a lowerer to resolve every reference and call, producing
	// the typed IR counterpart 'ir.Program'.
	lowerer := fn.NewLowerer(program)
	irProgram, err := lowerer.Lower()
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return -1
	}

	// Now, instantiates a code generator for the AArch64 target.
	codegen := arm64.NewCodeGenerator(irProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return -1
	}

	// The output sink is opened only once the whole compilation has
	// succeeded, so a failed run never leaves a truncated artifact behind.
	sink, err := os.Create(output)
	if err != nil {
		fmt.Printf("Error: Unable to open output file: %s\n", err)
		return -1
	}
	defer sink.Close()

	for _, line := range compiled {
		fmt.Fprintf(sink, "%s\n", line)
	}

	return 0
}

func main() { os.Exit(FnCompiler.Run(os.Args, os.Stdout)) }
