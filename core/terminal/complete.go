package terminal

import (
	"strings"
)

// completer offers command names for the first word and previous lines
// otherwise. Nothing is offered while a command owns the input.
type completer struct {
	t *Terminal
}

// Do implements readline.AutoCompleter.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	if c.t.Busy() {
		return nil, 0
	}

	typed := string(line[:pos])
	if strings.TrimSpace(typed) == "" {
		return nil, 0
	}

	if !strings.ContainsAny(strings.TrimLeft(typed, " "), " \t") {
		word := strings.TrimLeft(typed, " ")
		return suffixes(word, c.t.shell.CommandNames(), " "), len([]rune(word))
	}

	lines, err := c.t.shell.History.All()
	if err != nil {
		return nil, 0
	}
	// Most recent first.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return suffixes(typed, lines, ""), len(line[:pos])
}

func suffixes(prefix string, candidates []string, trailer string) [][]rune {
	var out [][]rune
	for _, candidate := range candidates {
		if candidate != prefix && strings.HasPrefix(candidate, prefix) {
			out = append(out, []rune(strings.TrimPrefix(candidate, prefix)+trailer))
		}
	}
	return out
}
