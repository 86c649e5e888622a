package sexp

import "fmt"

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the S-expression surface.
//
// The whole source file is just nested lists of atoms, so the surface layer only
// knows about three token kinds: '(' and ')' plus atoms (a maximal run over the
// identifier character class). Every token remembers the 1-based line and column
// it was read at, so that every later stage can point its diagnostics back at
// the exact spot in the source. What an atom means (statement keyword, number,
// variable, ...) is decided by the syntax parser, not here.

// ----------------------------------------------------------------------------
// Tokens

// A Token is a single lexeme read from the source text.
type Token struct {
	Kind   TokenKind // Discriminates parentheses from atoms
	Line   int       // 1-based line of the token's first character
	Column int       // 1-based column, counted from the last newline
	Text   string    // The atom's literal spelling (empty for parentheses)
}

type TokenKind uint8 // Enumeration of the three lexeme kinds

const (
	OpenParen  TokenKind = 0 // A literal '('
	CloseParen TokenKind = 1 // A literal ')'
	Atom       TokenKind = 2 // A maximal run of identifier characters
)

// Returns the token's surface spelling.
func (token Token) String() string {
	switch token.Kind {
	case OpenParen:
		return "("
	case CloseParen:
		return ")"
	}
	return token.Text
}

// Returns the token's position formatted the way diagnostics embed it.
func (token Token) At() string {
	return fmt.Sprintf("at line %d, column %d", token.Line, token.Column)
}

// ----------------------------------------------------------------------------
// Tree nodes

// A Node is either a Token (an atom) or a List, use type switch to disambiguate.
type Node interface{}

// A List is a parenthesized sequence of nodes. It keeps the '(' token that
// opened it so diagnostics about the list as a whole have a position.
type List struct {
	Open     Token  // The opening paren (zero valued for the synthetic root)
	Elements []Node // The nested atoms and lists, in source order
}

// Returns the list's opening paren position formatted for diagnostics.
func (list List) At() string { return list.Open.At() }

// At formats the position of any tree node for diagnostics.
func At(node Node) string {
	switch element := node.(type) {
	case Token:
		return element.At()
	case List:
		return element.At()
	}

	panic("Compiler Error: unknown tree node type")
}
