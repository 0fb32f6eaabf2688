package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/josephlewis42/libterm/core/vos"
)

// wcTally holds the counts of one input.
type wcTally struct {
	name  string
	lines int
	words int
	bytes int
	chars int
}

func (t *wcTally) add(other *wcTally) {
	t.lines += other.lines
	t.words += other.words
	t.bytes += other.bytes
	t.chars += other.chars
}

// countInput tallies r, invalid UTF-8 sequences count as one character per
// byte.
func countInput(name string, r io.Reader) (*wcTally, error) {
	tally := &wcTally{name: name}
	br := bufio.NewReader(r)
	inWord := false
	for {
		c, size, err := br.ReadRune()
		if err == io.EOF {
			return tally, nil
		}
		if err != nil {
			return nil, err
		}

		tally.bytes += size
		tally.chars++
		if c == '\n' {
			tally.lines++
		}
		if unicode.IsSpace(c) {
			inWord = false
		} else if !inWord {
			inWord = true
			tally.words++
		}
	}
}

type wcColumn struct {
	flag  *bool
	value func(*wcTally) int
}

// Wc implements the POSIX command by the same name.
// https://pubs.opengroup.org/onlinepubs/009695399/utilities/wc.html
func Wc(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "wc [-c|-m] [-lw] [FILE...]",
		Short: "Write the number of newlines, words, and bytes contained in each input file to the standard output.",
	}

	opts := cmd.Flags()
	columns := []wcColumn{
		{opts.BoolLong("lines", 'l', "write the number of newlines in each file"), func(t *wcTally) int { return t.lines }},
		{opts.BoolLong("words", 'w', "write the number of words in each file"), func(t *wcTally) int { return t.words }},
		{opts.BoolLong("bytes", 'c', "write the number of bytes in each file"), func(t *wcTally) int { return t.bytes }},
		{opts.BoolLong("chars", 'm', "write the number of characters in each file"), func(t *wcTally) int { return t.chars }},
	}

	return cmd.Run(virtOS, func() int {
		var picked []wcColumn
		for _, col := range columns {
			if *col.flag {
				picked = append(picked, col)
			}
		}
		if len(picked) == 0 {
			picked = columns[:3]
		}

		files := opts.Args()
		show := func(t *wcTally) {
			var fields []string
			for _, col := range picked {
				fields = append(fields, fmt.Sprint(col.value(t)))
			}
			if len(files) > 0 {
				fields = append(fields, t.name)
			}
			fmt.Fprintln(virtOS.Stdout(), strings.Join(fields, " "))
		}

		total := &wcTally{name: "total"}
		status := cmd.RunEachFileOrStdin(virtOS, files, func(name string, fd io.Reader) error {
			tally, err := countInput(name, fd)
			if err != nil {
				return err
			}
			show(tally)
			total.add(tally)
			return nil
		})

		if len(files) > 1 {
			show(total)
		}
		return status
	})
}

var _ vos.ProcessFunc = Wc

func init() {
	mustAddCmd("wc", Wc)
}
