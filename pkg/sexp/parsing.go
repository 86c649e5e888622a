package sexp

import (
	"fmt"

	"its-hmny.dev/fnc/pkg/utils"
)

// ----------------------------------------------------------------------------
// Tokenizer

// This section defines the tokenizer for the S-expression surface.
//
// The tokenizer advances a byte cursor over the source and, at each step, tries
// the following matches in priority order: '(' or ')', a maximal atom run,
// horizontal whitespace (discarded) and newlines (discarded, but they bump the
// line counter and reset the column anchor). Anything else is a lexical error
// pointing at the offending character.

// Reports whether 'c' belongs to the atom character class
// (letters, digits and the symbols !$%&*/+-:<=>?^_~.).
func isAtomChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}

	switch c {
	case '!', '$', '%', '&', '*', '/', '+', '-', ':', '<', '=', '>', '?', '^', '_', '~', '.':
		return true
	}

	return false
}

// Tokenize scans the whole 'source' and returns its token sequence in order.
func Tokenize(source []byte) ([]Token, error) {
	tokens := []Token{}
	offset, line, lineStart := 0, 1, 0

	for offset < len(source) {
		column := offset - lineStart + 1

		switch c := source[offset]; {
		case c == '(':
			tokens = append(tokens, Token{Kind: OpenParen, Line: line, Column: column})
			offset++

		case c == ')':
			tokens = append(tokens, Token{Kind: CloseParen, Line: line, Column: column})
			offset++

		case isAtomChar(c):
			start := offset
			for offset < len(source) && isAtomChar(source[offset]) {
				offset++
			}
			tokens = append(tokens, Token{Kind: Atom, Line: line, Column: column, Text: string(source[start:offset])})

		case c == ' ', c == '\t', c == '\r':
			offset++

		case c == '\n':
			line, offset = line+1, offset+1
			lineStart = offset

		default:
			return nil, fmt.Errorf("Unrecognized symbol at line %d, column %d", line, column)
		}
	}

	return tokens, nil
}

// ----------------------------------------------------------------------------
// Tree builder

// BuildTree folds the token sequence into a single synthetic root list.
//
// Every '(' opens a child list and every ')' closes the innermost open one; the
// open lists are tracked on a stack. After the stream is exhausted, any list
// still open is an unmatched paren error pointing at the innermost '(' (a stray
// ')' with nothing open is reported at the ')' itself).
func BuildTree(tokens []Token) (List, error) {
	root := &List{}
	parents := utils.NewStack[*List]()
	current := root

	for _, token := range tokens {
		switch token.Kind {
		case OpenParen:
			parents.Push(current)
			current = &List{Open: token}

		case CloseParen:
			parent, ok := parents.Pop()
			if !ok {
				return List{}, fmt.Errorf("Unmatched paren %s", token.At())
			}
			parent.Elements = append(parent.Elements, *current)
			current = parent

		default:
			current.Elements = append(current.Elements, token)
		}
	}

	if parents.Count() > 0 {
		return List{}, fmt.Errorf("Unmatched paren %s", current.Open.At())
	}

	return *root, nil
}
