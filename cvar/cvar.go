// SPDX-License-Identifier: GPL-2.0-or-later

// Package cvar holds named console variables.
package cvar

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"govbsp/cmd"
)

var ErrUnknown = errors.New("unknown variable")

type Flag uint64

const (
	NONE    Flag = 0
	ARCHIVE Flag = 1
	NOTIFY  Flag = 1 << 1
	ROM     Flag = 1 << 6
)

type CallbackFunc func(cv *Cvar)

type Cvar struct {
	archive  bool
	notify   bool
	rom      bool
	user     bool
	callback CallbackFunc
	name     string
	// stringValue is the truth, value the derived one
	stringValue  string
	value        float32
	defaultValue string
	id           int
}

func (cv *Cvar) Archive() bool {
	return cv.archive
}

func (cv *Cvar) Notify() bool {
	return cv.notify
}

func (cv *Cvar) UserDefined() bool {
	return cv.user
}

// SetCallback installs cb and runs it once with the current value.
func (cv *Cvar) SetCallback(cb CallbackFunc) {
	cv.callback = cb
	if cb != nil {
		cb(cv)
	}
}

func (cv *Cvar) SetByString(s string) {
	if cv.rom {
		return
	}
	cv.stringValue = s
	pf, _ := strconv.ParseFloat(cv.stringValue, 32)
	cv.value = float32(pf)
	if cv.callback != nil {
		cv.callback(cv)
	}
}

func (cv *Cvar) Reset() {
	cv.SetByString(cv.defaultValue)
}

func (cv *Cvar) String() string {
	return cv.stringValue
}

func (cv *Cvar) Default() string {
	return cv.defaultValue
}

func (cv *Cvar) ID() int {
	return cv.id
}

func (cv *Cvar) Name() string {
	return cv.name
}

func (cv *Cvar) Value() float32 {
	return cv.value
}

func (cv *Cvar) Int() int {
	return int(cv.value)
}

// Seconds reads the value as a duration in seconds.
func (cv *Cvar) Seconds() time.Duration {
	return time.Duration(float64(cv.value) * float64(time.Second))
}

func (cv *Cvar) SetValue(value float32) {
	if float32(int(value)) == value {
		cv.SetByString(strconv.FormatInt(int64(value), 10))
	} else {
		cv.SetByString(strconv.FormatFloat(float64(value), 'f', -1, 32))
	}
}

func (cv *Cvar) Toggle() {
	if cv.String() == "1" {
		cv.SetByString("0")
	} else {
		cv.SetByString("1")
	}
}

func (cv *Cvar) Bool() bool {
	return cv.stringValue != "0" && cv.stringValue != ""
}

// List is a set of variables. Setting values runs callbacks on the calling
// goroutine.
type List struct {
	mu     sync.Mutex
	vars   []*Cvar
	byName map[string]*Cvar
}

func NewList() *List {
	return &List{byName: make(map[string]*Cvar)}
}

func (l *List) All() []*Cvar {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Cvar(nil), l.vars...)
}

func (l *List) Get(name string) (*Cvar, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cv, ok := l.byName[strings.ToLower(name)]
	return cv, ok
}

func (l *List) create(name, value string) *Cvar {
	cv := &Cvar{name: name, defaultValue: value, id: len(l.vars)}
	cv.SetByString(value)
	l.vars = append(l.vars, cv)
	l.byName[strings.ToLower(name)] = cv
	return cv
}

// Register adds a variable. A user defined variable of the same name,
// created by Set before registration, hands over its value.
func (l *List) Register(name, value string, flags Flag) (*Cvar, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cv, ok := l.byName[strings.ToLower(name)]
	switch {
	case ok && !cv.user:
		return nil, errors.Errorf("can't register variable %s, already defined", name)
	case ok:
		cv.user = false
		cv.defaultValue = value
	default:
		cv = l.create(name, value)
	}
	cv.archive = flags&ARCHIVE != 0
	cv.notify = flags&NOTIFY != 0
	cv.rom = flags&ROM != 0
	return cv, nil
}

func (l *List) MustRegister(n, v string, flag Flag) *Cvar {
	cv, err := l.Register(n, v, flag)
	if err != nil {
		panic(err)
	}
	return cv
}

// Set assigns value to name, creating a user defined variable if needed.
func (l *List) Set(name, value string) {
	l.mu.Lock()
	cv, ok := l.byName[strings.ToLower(name)]
	if !ok {
		cv = l.create(name, value)
		cv.user = true
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	cv.SetByString(value)
}

// Execute shows or sets a variable named by the first argument. It reports
// false when there is no such variable.
func (l *List) Execute(a cmd.Arguments, w io.Writer) bool {
	args := a.Args()
	if len(args) == 0 {
		return false
	}
	cv, ok := l.Get(args[0].String())
	if !ok {
		return false
	}
	if len(args) == 1 {
		fmt.Fprintf(w, "\"%s\" is \"%s\"\n", cv.Name(), cv.String())
		return true
	}
	cv.SetByString(args[1].String())
	return true
}

// AddCommands registers set, toggle, reset, resetall and cvarlist.
func (l *List) AddCommands(c *cmd.Commands, w io.Writer) error {
	for _, e := range []struct {
		name string
		f    cmd.QFunc
	}{
		{"set", l.set(c, w)},
		{"toggle", l.toggle(w)},
		{"reset", l.reset(w)},
		{"resetall", l.resetAll},
		{"cvarlist", l.list(w)},
	} {
		if err := c.Add(e.name, e.f); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) set(c *cmd.Commands, w io.Writer) cmd.QFunc {
	return func(a cmd.Arguments) error {
		args := a.Args()[1:]
		if len(args) < 2 {
			fmt.Fprintf(w, "set <cvar> <value>\n")
			return nil
		}
		if c.Exists(args[0].String()) {
			return errors.Errorf("%s conflicts with a command", args[0])
		}
		l.Set(args[0].String(), args[1].String())
		return nil
	}
}

func (l *List) toggle(w io.Writer) cmd.QFunc {
	return func(a cmd.Arguments) error {
		args := a.Args()[1:]
		if len(args) != 1 {
			fmt.Fprintf(w, "toggle <cvar> : toggle cvar\n")
			return nil
		}
		cv, ok := l.Get(args[0].String())
		if !ok {
			return errors.Wrap(ErrUnknown, args[0].String())
		}
		cv.Toggle()
		return nil
	}
}

func (l *List) reset(w io.Writer) cmd.QFunc {
	return func(a cmd.Arguments) error {
		args := a.Args()[1:]
		if len(args) != 1 {
			fmt.Fprintf(w, "reset <cvar> : reset cvar to default\n")
			return nil
		}
		cv, ok := l.Get(args[0].String())
		if !ok {
			return errors.Wrap(ErrUnknown, args[0].String())
		}
		cv.Reset()
		return nil
	}
}

func (l *List) resetAll(cmd.Arguments) error {
	for _, cv := range l.All() {
		cv.Reset()
	}
	return nil
}

func (l *List) list(w io.Writer) cmd.QFunc {
	return func(a cmd.Arguments) error {
		prefix := a.Argv(1).String()
		vars := l.All()
		sort.Slice(vars, func(i, j int) bool { return vars[i].Name() < vars[j].Name() })
		n := 0
		for _, v := range vars {
			if !strings.HasPrefix(v.Name(), prefix) {
				continue
			}
			n++
			archive := " "
			if v.Archive() {
				archive = "*"
			}
			fmt.Fprintf(w, "%s %s \"%s\"\n", archive, v.Name(), v.String())
		}
		fmt.Fprintf(w, "%v cvars\n", n)
		return nil
	}
}
