// SPDX-License-Identifier: GPL-2.0-or-later

package chunk

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrBadMagic     = errors.New("bad magic")
	ErrVersionRange = errors.New("version out of range")
	ErrCorruptChunk = errors.New("corrupt chunk")
	ErrClosed       = errors.New("container closed")
)

// FormatError is a fatal problem with the container itself. The caller must
// not read any chunk after receiving one.
type FormatError struct {
	File     string
	Lump     int // -1 for the header
	Err      error
	Expected string
	Actual   string
}

func (e *FormatError) Error() string {
	where := "header"
	if e.Lump >= 0 {
		where = fmt.Sprintf("lump %d", e.Lump)
	}
	return fmt.Sprintf("%s: %s: %v (expected %s, got %s)", e.File, where, e.Err, e.Expected, e.Actual)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
