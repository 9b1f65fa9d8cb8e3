// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"fmt"
	"io"
	"strings"
)

// ListCommand prints the command names, optionally only those with the
// prefix given as first argument.
func (c *Commands) ListCommand(w io.Writer) QFunc {
	return func(a Arguments) error {
		args := a.Args()
		cl := c.List()
		switch len(args) {
		default:
			printPartialCmdList(w, cl, args[1].String())
		case 0, 1:
			printFullCmdList(w, cl)
		}
		return nil
	}
}

func printFullCmdList(w io.Writer, cl []string) {
	for _, c := range cl {
		fmt.Fprintf(w, "  %s\n", c)
	}
	fmt.Fprintf(w, "%v commands\n", len(cl))
}

func printPartialCmdList(w io.Writer, cl []string, part string) {
	count := 0
	for _, c := range cl {
		if strings.HasPrefix(c, part) {
			fmt.Fprintf(w, "  %s\n", c)
			count++
		}
	}
	fmt.Fprintf(w, "%v commands beginning with \"%v\"\n", count, part)
}
