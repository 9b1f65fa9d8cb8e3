// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"strconv"
	"strings"
	"unicode"
)

type QArg struct {
	a string
}

func (a QArg) String() string {
	return a.a
}

func (a QArg) Int() int {
	r, err := strconv.ParseInt(a.a, 10, 0)
	if err != nil {
		return 0
	}
	return int(r)
}

func (a QArg) Float32() float32 {
	r, err := strconv.ParseFloat(a.a, 32)
	if err != nil {
		return 0
	}
	return float32(r)
}

func (a QArg) Bool() bool {
	switch a.a {
	case "1", "t", "T", "true", "TRUE", "True", "On", "ON", "on":
		return true
	default:
		return false
	}
}

type Arguments struct {
	// each arg on its own
	args []QArg
	// the trimmed input line
	full string
}

// Argv returns argument i or an empty one.
func (c *Arguments) Argv(i int) QArg {
	if i < 0 || i >= len(c.args) {
		return QArg{}
	}
	return c.args[i]
}

func (c *Arguments) Full() string {
	return c.full
}

func (c *Arguments) Args() []QArg {
	return c.args
}

// ArgumentString is the input after the command name, without surrounding
// quotes.
func (c *Arguments) ArgumentString() string {
	if len(c.args) < 2 {
		return ""
	}
	r := strings.TrimPrefix(c.full, c.args[0].String())
	r = strings.TrimLeftFunc(r, unicode.IsSpace)
	if len(r) > 1 && r[0] == '"' {
		r = strings.Trim(r, "\"\t\n\v\f\r ")
	}
	return r
}

// Parse splits one command line into arguments. Double quotes group words
// and "//" starts a comment.
func Parse(s string) (args Arguments) {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	args.full = strings.TrimFunc(s, unicode.IsSpace)
	args.args = []QArg{}
	in := args.full
	for {
		in = strings.TrimLeft(in, " \t")
		switch {
		case in == "", strings.HasPrefix(in, "//"):
			return
		case in[0] == '"':
			end := strings.IndexByte(in[1:], '"')
			if end < 0 {
				// unterminated, take the rest
				args.args = append(args.args, QArg{in[1:]})
				return
			}
			args.args = append(args.args, QArg{in[1 : end+1]})
			in = in[end+2:]
		default:
			end := strings.IndexAny(in, " \t\"")
			if end < 0 {
				end = len(in)
			}
			args.args = append(args.args, QArg{in[:end]})
			in = in[end:]
		}
	}
}

// SplitLines splits a script into command lines at newlines and at
// semicolons outside quotes.
func SplitLines(script string) []string {
	var lines []string
	quoted := false
	start := 0
	for i := 0; i < len(script); i++ {
		switch c := script[i]; {
		case c == '"':
			quoted = !quoted
		case c == '\n' || (c == ';' && !quoted):
			lines = append(lines, script[start:i])
			start = i + 1
			quoted = false
		}
	}
	lines = append(lines, script[start:])
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
