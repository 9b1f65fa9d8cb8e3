// SPDX-License-Identifier: GPL-2.0-or-later

package cbuf

import (
	"github.com/pkg/errors"

	"govbsp/cmd"
)

// Efunc reports whether it handled the line.
type Efunc func(*CommandBuffer, cmd.Arguments) (bool, error)

type executors []Efunc

func (ex executors) execute(c *CommandBuffer, a cmd.Arguments) error {
	args := a.Args()
	if len(args) == 0 {
		return nil // no tokens
	}
	for _, e := range ex {
		if ok, err := e(c, a); err != nil {
			return err
		} else if ok {
			return nil
		}
	}
	return errors.Wrap(cmd.ErrUnknownCommand, args[0].String())
}
