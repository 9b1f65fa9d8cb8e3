// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
)

var physModelSize = binary.Size(dphysmodel{})

// loadPhysCollide hands every model's collision blob to the physics baker.
// The list ends with a model index of -1.
func (a *assembly) loadPhysCollide() error {
	data, err := a.raw(LumpPhysCollide, 0)
	if err != nil {
		return err
	}
	off := 0
	for off+physModelSize <= len(data) {
		var h dphysmodel
		if err := binary.Read(bytes.NewReader(data[off:off+physModelSize]), binary.LittleEndian, &h); err != nil {
			return err
		}
		off += physModelSize
		if h.ModelIndex == -1 {
			return nil
		}
		if h.DataSize < 0 || h.KeyDataSize < 0 || off+int(h.DataSize)+int(h.KeyDataSize) > len(data) {
			return a.formatError(LumpPhysCollide,
				fmt.Sprintf("collision data inside %d bytes", len(data)),
				fmt.Sprintf("model %d data %d key data %d at %d", h.ModelIndex, h.DataSize, h.KeyDataSize, off))
		}
		blob := data[off : off+int(h.DataSize)]
		off += int(h.DataSize)
		key := data[off : off+int(h.KeyDataSize)]
		off += int(h.KeyDataSize)
		if a.Physics == nil {
			continue
		}
		if err := a.Physics.BakeCollision(int(h.ModelIndex), int(h.SolidCount), blob, string(bytes.TrimRight(key, "\x00"))); err != nil {
			a.log.WithError(err).WithField("model", h.ModelIndex).Warn("collision bake failed")
		}
	}
	if len(data) > 0 {
		a.log.Debug("physics collision list without terminator")
	}
	return nil
}

func (a *assembly) loadPakFile() error {
	data, err := a.raw(LumpPakFile, 0)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	z, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return a.formatError(LumpPakFile, "zip archive", err.Error())
	}
	a.w.pak = z
	return nil
}
