// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"govbsp/chunk"
)

const (
	propNameLength       = 128
	detailSpriteDictSize = 32
)

var gameLumpEntrySize = binary.Size(dgamelump{})

// loadGameLumps reads the game lump directory. Payload offsets are absolute
// positions in the file that holds the directory.
func (a *assembly) loadGameLumps() error {
	dir, err := a.raw(LumpGameLump, 0)
	if err != nil {
		return err
	}
	if len(dir) == 0 {
		return nil
	}
	if len(dir) < 4 {
		return a.formatError(LumpGameLump, "lump count", fmt.Sprintf("%d bytes", len(dir)))
	}
	n := int(int32(binary.LittleEndian.Uint32(dir)))
	if n < 0 || 4+n*gameLumpEntrySize > len(dir) {
		return a.formatError(LumpGameLump,
			fmt.Sprintf("directory inside %d bytes", len(dir)),
			fmt.Sprintf("%d entries", n))
	}
	entries := make([]dgamelump, n)
	if err := binary.Read(bytes.NewReader(dir[4:]), binary.LittleEndian, entries); err != nil {
		return errors.Wrap(err, "game lump directory")
	}
	a.w.GameLumps = make([]GameLump, 0, n)
	for _, e := range entries {
		data, err := a.c.ReadSourceAt(LumpGameLump, int64(e.FileOfs), int64(e.FileLen))
		if err != nil {
			return err
		}
		if e.Flags&gameLumpCompressed != 0 && len(data) > 0 {
			data, err = chunk.Decompress(data, 0)
			if err != nil {
				return a.formatError(LumpGameLump, fmt.Sprintf("game lump %#x to inflate", e.ID), err.Error())
			}
		}
		gl := GameLump{ID: e.ID, Flags: e.Flags, Version: e.Version, Data: data}
		a.w.GameLumps = append(a.w.GameLumps, gl)
		switch e.ID {
		case GameLumpStaticProps:
			sp, err := parseStaticProps(data)
			if err != nil {
				return a.formatError(LumpGameLump, "static prop dictionary", err.Error())
			}
			a.w.StaticProps = sp
		case GameLumpDetailProps:
			dp, err := parseDetailProps(data)
			if err != nil {
				return a.formatError(LumpGameLump, "detail prop dictionary", err.Error())
			}
			a.w.DetailProps = dp
		}
	}
	return nil
}

// GameLump returns the game lump with id or nil.
func (w *WorldData) GameLump(id int32) *GameLump {
	for i := range w.GameLumps {
		if w.GameLumps[i].ID == id {
			return &w.GameLumps[i]
		}
	}
	return nil
}

type cursor struct {
	b   []byte
	off int
}

func (c *cursor) int32() (int, error) {
	if c.off+4 > len(c.b) {
		return 0, errors.Errorf("truncated at byte %d", c.off)
	}
	v := int32(binary.LittleEndian.Uint32(c.b[c.off:]))
	c.off += 4
	if v < 0 {
		return 0, errors.Errorf("negative count %d at byte %d", v, c.off-4)
	}
	return int(v), nil
}

func (c *cursor) skip(n int) error {
	if n < 0 || c.off+n > len(c.b) {
		return errors.Errorf("truncated at byte %d, need %d more", c.off, n)
	}
	c.off += n
	return nil
}

func (c *cursor) names(n int) ([]string, error) {
	start := c.off
	if err := c.skip(n * propNameLength); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		raw := c.b[start+i*propNameLength : start+(i+1)*propNameLength]
		if end := bytes.IndexByte(raw, 0); end >= 0 {
			raw = raw[:end]
		}
		out[i] = string(raw)
	}
	return out, nil
}

func parseStaticProps(b []byte) (StaticProps, error) {
	var sp StaticProps
	c := &cursor{b: b}
	n, err := c.int32()
	if err != nil {
		return sp, err
	}
	if sp.Models, err = c.names(n); err != nil {
		return sp, err
	}
	if sp.NumLeafs, err = c.int32(); err != nil {
		return sp, err
	}
	if err := c.skip(2 * sp.NumLeafs); err != nil {
		return sp, err
	}
	if sp.NumProps, err = c.int32(); err != nil {
		return sp, err
	}
	return sp, nil
}

func parseDetailProps(b []byte) (DetailProps, error) {
	var dp DetailProps
	c := &cursor{b: b}
	n, err := c.int32()
	if err != nil {
		return dp, err
	}
	if dp.Models, err = c.names(n); err != nil {
		return dp, err
	}
	if dp.NumSprites, err = c.int32(); err != nil {
		return dp, err
	}
	if err := c.skip(detailSpriteDictSize * dp.NumSprites); err != nil {
		return dp, err
	}
	if dp.NumProps, err = c.int32(); err != nil {
		return dp, err
	}
	return dp, nil
}
