// SPDX-License-Identifier: GPL-2.0-or-later

// Package cbuf queues console text for execution one frame at a time.
package cbuf

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"govbsp/cmd"
)

// CommandBuffer holds text waiting to be executed. Text may be added from
// any goroutine, Execute runs on the frame goroutine.
type CommandBuffer struct {
	mu        sync.Mutex
	buf       string
	wait      bool
	executors executors
	log       logrus.FieldLogger
}

func (c *CommandBuffer) SetCommandExecutors(e []Efunc) {
	c.executors = e
}

func (c *CommandBuffer) SetLogger(l logrus.FieldLogger) {
	c.log = l
}

func (c *CommandBuffer) logger() logrus.FieldLogger {
	if c.log == nil {
		return logrus.StandardLogger()
	}
	return c.log
}

// Wait stops the current Execute after the running line. The rest follows
// in the next frame.
func (c *CommandBuffer) Wait() {
	c.mu.Lock()
	c.wait = true
	c.mu.Unlock()
}

func (c *CommandBuffer) AddText(text string) {
	c.mu.Lock()
	c.buf += text
	c.mu.Unlock()
}

// InsertText puts text in front of everything queued.
func (c *CommandBuffer) InsertText(text string) {
	c.mu.Lock()
	c.buf = text + "\n" + c.buf
	c.mu.Unlock()
}

func (c *CommandBuffer) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.buf) == ""
}

// next cuts the first line off the buffer. Lines end at a newline or at a
// ';' outside quotes.
func (c *CommandBuffer) next() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return "", false
	}
	i := 0
	quote := false
LineLoop:
	for i = 0; i < len(c.buf); i++ {
		switch c.buf[i] {
		case '"':
			quote = !quote
		case ';':
			if !quote {
				break LineLoop
			}
		case '\n':
			break LineLoop
		}
	}
	line := c.buf[:i]
	if i < len(c.buf) {
		i++
	}
	c.buf = c.buf[i:]
	return line, true
}

func (c *CommandBuffer) takeWait() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.wait
	c.wait = false
	return w
}

// Execute runs queued lines until the buffer is empty or a wait is hit.
// Failing lines are logged and skipped.
func (c *CommandBuffer) Execute() {
	for {
		line, ok := c.next()
		if !ok {
			return
		}
		a := cmd.Parse(line)
		if len(a.Args()) > 0 && strings.EqualFold(a.Args()[0].String(), "wait") {
			c.Wait()
		} else if err := c.executors.execute(c, a); err != nil {
			c.logger().WithError(err).WithField("line", a.Full()).Warn("command failed")
		}
		if c.takeWait() {
			return
		}
	}
}
