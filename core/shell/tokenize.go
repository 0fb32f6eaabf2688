// Package shell is the command-line interpreter that sits between a terminal
// and the executor. It records history, substitutes variables, tokenizes
// and routes each line to a built-in, a program script or the executor.
package shell

import (
	"strings"
)

type quoteState int

const (
	unquoted quoteState = iota
	inSingleQuote
	inDoubleQuote
)

func isBlank(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// next returns the state after reading r in state s and whether r is a quote
// delimiter rather than content.
func (s quoteState) next(r rune) (quoteState, bool) {
	switch {
	case s == unquoted && r == '\'':
		return inSingleQuote, true
	case s == unquoted && r == '"':
		return inDoubleQuote, true
	case s == inSingleQuote && r == '\'':
		return unquoted, true
	case s == inDoubleQuote && r == '"':
		return unquoted, true
	default:
		return s, false
	}
}

// Tokenize splits line into arguments. Single and double quotes group text
// including whitespace and semicolons, the delimiters themselves are
// dropped. A quote left open at the end of the line is kept literally.
func Tokenize(line string) []string {
	var (
		tokens  []string
		current strings.Builder
		// started is set once the current token has any content or quotes,
		// so '' yields an empty token.
		started bool
		state   = unquoted
		// openedAt is the offset in current where an open quote began.
		openedAt int
		opener   rune
	)

	for _, r := range line {
		if state == unquoted && isBlank(r) {
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
			continue
		}

		nextState, isDelim := state.next(r)
		if isDelim {
			if state == unquoted {
				openedAt = current.Len()
				opener = r
			}
			state = nextState
			started = true
			continue
		}

		current.WriteRune(r)
		started = true
	}

	if !started {
		return tokens
	}

	last := current.String()
	if state != unquoted {
		last = last[:openedAt] + string(opener) + last[openedAt:]
	}
	return append(tokens, last)
}

// SplitInstructions splits line on semicolons outside of quotes. Fragments
// are returned verbatim, quotes included.
func SplitInstructions(line string) []string {
	var (
		out   []string
		state = unquoted
		start int
	)

	for i, r := range line {
		if state == unquoted && r == ';' {
			out = append(out, line[start:i])
			start = i + 1
			continue
		}
		state, _ = state.next(r)
	}

	return append(out, line[start:])
}
