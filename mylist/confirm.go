package mylist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// TerminalConfirmer asks on Out and reads Y or N lines from In, asking again
// on any other answer.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

func NewTerminalConfirmer(in io.Reader, out io.Writer) *TerminalConfirmer {
	return &TerminalConfirmer{In: in, Out: out}
}

var (
	warnBanner = color.New(color.FgYellow, color.Bold)
	faint      = color.New(color.Faint)
)

func (c *TerminalConfirmer) Confirm(prompt string, detail []string) (bool, error) {
	if c.scanner == nil {
		c.scanner = bufio.NewScanner(c.In)
	}

	warnBanner.Fprintln(c.Out, prompt)
	if len(detail) > 0 {
		faint.Fprintln(c.Out, strings.Join(detail, " "))
	}
	for {
		fmt.Fprint(c.Out, "[Y/N] ")
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return false, err
			}
			return false, errors.New("no answer: input closed")
		}
		switch strings.ToUpper(strings.TrimSpace(c.scanner.Text())) {
		case "Y":
			return true, nil
		case "N":
			return false, nil
		}
		fmt.Fprintln(c.Out, "Please answer Y or N.")
	}
}
