// SPDX-License-Identifier: GPL-2.0-or-later

// Package cmd holds the host command table.
package cmd

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownCommand = errors.New("unknown command")

type QFunc func(args Arguments) error

type Commands map[string]QFunc

func New() *Commands {
	c := make(Commands)
	return &c
}

func (c *Commands) Add(name string, f QFunc) error {
	ln := strings.ToLower(name)
	if _, ok := (*c)[ln]; ok {
		return errors.Errorf("command %s already defined", ln)
	}
	(*c)[ln] = f
	return nil
}

func (c *Commands) Exists(cmdName string) bool {
	_, ok := (*c)[strings.ToLower(cmdName)]
	return ok
}

func (c *Commands) List() []string {
	cmds := make([]string, 0, len(*c))
	for cmd := range *c {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}

// Execute runs the command named by the first argument. It reports false if
// there is no such command.
func (c *Commands) Execute(a Arguments) (bool, error) {
	n := a.Args()
	if len(n) == 0 {
		return false, nil
	}
	name := strings.ToLower(n[0].String())
	cmd, ok := (*c)[name]
	if !ok {
		return false, nil
	}
	if err := cmd(a); err != nil {
		return true, errors.Wrap(err, name)
	}
	return true, nil
}

// ExecuteLine parses and runs one line.
func (c *Commands) ExecuteLine(line string) error {
	a := Parse(line)
	if len(a.Args()) == 0 {
		return nil
	}
	ok, err := c.Execute(a)
	if !ok && err == nil {
		return errors.Wrap(ErrUnknownCommand, a.Argv(0).String())
	}
	return err
}

func Must(err error) {
	if err != nil {
		panic(err.Error())
	}
}
