// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Entity is one block of key/value pairs from the entity lump. Repeated keys
// keep the last value, key order follows the first occurrence.
type Entity struct {
	keys   []string
	values map[string]string
}

func NewEntity() *Entity {
	return &Entity{values: make(map[string]string)}
}

func (e *Entity) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

func (e *Entity) Property(name string) (string, bool) {
	v, ok := e.values[name]
	return v, ok
}

// ClassName returns the "classname" property.
func (e *Entity) ClassName() string {
	return e.values["classname"]
}

func (e *Entity) PropertyNames() []string {
	return append([]string(nil), e.keys...)
}

// ParseEntities splits the entity lump text
//
//	{
//	"classname" "worldspawn"
//	"skyname" "sky_day01_01"
//	}
//
// into entities. Text after a NUL byte is ignored.
func ParseEntities(data []byte) ([]*Entity, error) {
	if end := bytes.IndexByte(data, 0); end >= 0 {
		data = data[:end]
	}
	t := &entityTokenizer{src: data}
	var es []*Entity
	for {
		tok, ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return es, nil
		}
		if tok != "{" {
			return nil, errors.Errorf("entity %d: expected {, got %q", len(es), tok)
		}
		e := NewEntity()
		for {
			key, ok, err := t.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.Errorf("entity %d: unexpected end of data", len(es))
			}
			if key == "}" {
				break
			}
			value, ok, err := t.next()
			if err != nil {
				return nil, err
			}
			if !ok || value == "}" || value == "{" {
				return nil, errors.Errorf("entity %d: key %q without value", len(es), key)
			}
			e.Set(key, value)
		}
		es = append(es, e)
	}
}

type entityTokenizer struct {
	src []byte
	pos int
}

// next returns the next brace or quoted string. ok is false at the end.
func (t *entityTokenizer) next() (string, bool, error) {
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == '{' || c == '}':
			t.pos++
			return string(c), true, nil
		case c == '"':
			end := bytes.IndexByte(t.src[t.pos+1:], '"')
			if end < 0 {
				return "", false, errors.Errorf("unterminated string at byte %d", t.pos)
			}
			s := string(t.src[t.pos+1 : t.pos+1+end])
			t.pos += end + 2
			return s, true, nil
		case c <= ' ':
			t.pos++
		default:
			// unquoted word
			start := t.pos
			for t.pos < len(t.src) && t.src[t.pos] > ' ' && !strings.ContainsRune("{}\"", rune(t.src[t.pos])) {
				t.pos++
			}
			return string(t.src[start:t.pos]), true, nil
		}
	}
	return "", false, nil
}

func (a *assembly) loadEntities() error {
	data, err := a.raw(LumpEntities, MaxMapEntString)
	if err != nil {
		return err
	}
	es, err := ParseEntities(data)
	if err != nil {
		return a.formatError(LumpEntities, "entity text", err.Error())
	}
	if len(es) > MaxMapEntities {
		return a.formatError(LumpEntities, fmt.Sprintf("at most %d entities", MaxMapEntities), fmt.Sprintf("%d", len(es)))
	}
	a.w.Entities = es
	return nil
}
