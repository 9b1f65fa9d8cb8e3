// SPDX-License-Identifier: GPL-2.0-or-later

package model

import (
	"path"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"govbsp/bsp"
)

var (
	ErrNotFound      = errors.New("asset not found")
	ErrUnknownKind   = errors.New("unknown asset kind")
	ErrUnknownFormat = errors.New("unknown file format")
)

type Kind int

const (
	KindWorld Kind = iota
	KindStudio
	KindSprite
	KindSubmodel
)

func (k Kind) String() string {
	switch k {
	case KindWorld:
		return "world"
	case KindStudio:
		return "studio"
	case KindSprite:
		return "sprite"
	case KindSubmodel:
		return "submodel"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Asset is a decoded studio model or sprite.
type Asset interface {
	Name() string
	Mins() mgl32.Vec3
	Maxs() mgl32.Vec3
	Flags() int
}

// Payload is the loaded content of a record. It is one of *WorldPayload,
// *StudioPayload, *SpritePayload or *SubmodelPayload.
type Payload interface {
	payload()
}

type WorldPayload struct {
	World *bsp.WorldData
}

type StudioPayload struct {
	Model Asset
}

type SpritePayload struct {
	Model Asset
}

// SubmodelPayload is a brush model "*N" of the active world.
type SubmodelPayload struct {
	World *bsp.WorldData
	Index int
}

func (*WorldPayload) payload()    {}
func (*StudioPayload) payload()   {}
func (*SpritePayload) payload()   {}
func (*SubmodelPayload) payload() {}

func (p *SubmodelPayload) Submodel() *bsp.Submodel {
	return &p.World.Models[p.Index]
}

// Record tracks one named asset.
type Record struct {
	Name        string
	Key         string
	Kind        Kind
	Refs        RefSet
	LastSession int
	Loaded      bool
	Bad         bool
	Payload     Payload
}

// NormalizeName removes "./" segments and duplicate separators and turns
// backslashes into slashes. Case is kept.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if IsSubmodelName(name) {
		return name
	}
	abs := strings.HasPrefix(name, "/")
	var parts []string
	for _, p := range strings.Split(name, "/") {
		if p == "" || p == "." {
			continue
		}
		parts = append(parts, p)
	}
	n := strings.Join(parts, "/")
	if abs {
		n = "/" + n
	}
	return n
}

// Key is the case folded lookup key of a normalized name.
func Key(name string) string {
	return strings.ToLower(name)
}

// IsSubmodelName reports whether name has the "*N" form.
func IsSubmodelName(name string) bool {
	if len(name) < 2 || name[0] != '*' {
		return false
	}
	_, err := strconv.Atoi(name[1:])
	return err == nil
}

func submodelIndex(name string) int {
	i, _ := strconv.Atoi(name[1:])
	return i
}

// KindOf classifies a normalized name by its extension.
func KindOf(name string) (Kind, error) {
	if IsSubmodelName(name) {
		return KindSubmodel, nil
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".bsp":
		return KindWorld, nil
	case ".mdl":
		return KindStudio, nil
	case ".spr", ".vmt":
		return KindSprite, nil
	}
	return 0, errors.Wrap(ErrUnknownKind, name)
}
