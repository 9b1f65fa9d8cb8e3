// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"govbsp/chunk"
)

// FormatError reports map data that cannot be assembled. The partial world
// is discarded.
type FormatError struct {
	File     string
	Lump     int
	Expected string
	Actual   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s (%d): expected %s, got %s", e.File, LumpName(e.Lump), e.Lump, e.Expected, e.Actual)
}

// Assembler decodes a container into WorldData.
type Assembler struct {
	Materials MaterialResolver
	Physics   PhysicsBaker
	Lightmaps LightmapNotifier
	HDR       bool
	Log       logrus.FieldLogger
}

func NewAssembler() *Assembler {
	return &Assembler{
		Materials: NopMaterials{},
		Physics:   NopPhysics{},
		Lightmaps: NopLightmaps{},
		Log:       logrus.StandardLogger(),
	}
}

type assembly struct {
	*Assembler
	c   *chunk.Container
	w   *WorldData
	log logrus.FieldLogger
}

type pass struct {
	name string
	run  func(*assembly) error
}

// Passes depend on the ones before them.
var passes = []pass{
	{"entities", (*assembly).loadEntities},
	{"texdata", (*assembly).loadTexData},
	{"texinfo", (*assembly).loadTexInfo},
	{"planes", (*assembly).loadPlanes},
	{"vertexes", (*assembly).loadVertexes},
	{"edges", (*assembly).loadEdges},
	{"surfedges", (*assembly).loadSurfEdges},
	{"lighting", (*assembly).loadLighting},
	{"faces", (*assembly).loadFaces},
	{"vertnormals", (*assembly).loadVertNormals},
	{"leafs", (*assembly).loadLeafs},
	{"leaffaces", (*assembly).loadLeafFaces},
	{"leafbrushes", (*assembly).loadLeafBrushes},
	{"leafwaterdata", (*assembly).loadLeafWater},
	{"nodes", (*assembly).loadNodes},
	{"brushes", (*assembly).loadBrushes},
	{"models", (*assembly).loadModels},
	{"displacements", (*assembly).loadDisplacements},
	{"visibility", (*assembly).loadVisibility},
	{"areas", (*assembly).loadAreas},
	{"cubemaps", (*assembly).loadCubemaps},
	{"gamelump", (*assembly).loadGameLumps},
	{"physcollide", (*assembly).loadPhysCollide},
	{"pakfile", (*assembly).loadPakFile},
}

// Assemble runs every pass over c. Chunk buffers are released as each pass
// finishes; c stays open.
func (a *Assembler) Assemble(c *chunk.Container) (*WorldData, error) {
	log := a.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &assembly{
		Assembler: a,
		c:         c,
		w: &WorldData{
			Name:     c.Name(),
			Version:  c.Version(),
			Revision: c.Revision(),
		},
		log: log.WithField("file", c.Name()),
	}
	for _, p := range passes {
		start := time.Now()
		if err := p.run(s); err != nil {
			return nil, errors.Wrapf(err, "%s pass", p.name)
		}
		s.log.WithField("pass", p.name).Debugf("done in %v", time.Since(start))
		if p.name == "faces" && a.Lightmaps != nil {
			a.Lightmaps.LightmapsChanged(s.w)
		}
	}
	return s.w, nil
}

func (a *assembly) formatError(lump int, expected, actual string) error {
	return &FormatError{
		File:     a.c.Name(),
		Lump:     lump,
		Expected: expected,
		Actual:   actual,
	}
}

func (a *assembly) indexError(lump int, what string, idx, n int) error {
	return a.formatError(lump, fmt.Sprintf("%s in [0,%d)", what, n), fmt.Sprintf("%d", idx))
}

// raw returns a copy of the lump bytes.
func (a *assembly) raw(lump int, max int) ([]byte, error) {
	r, err := a.c.Reader(lump)
	if err != nil {
		return nil, err
	}
	defer r.Release()
	if max > 0 && r.Size() > max {
		return nil, a.formatError(lump, fmt.Sprintf("at most %d bytes", max), fmt.Sprintf("%d bytes", r.Size()))
	}
	return append([]byte(nil), r.Bytes()...), nil
}

// readLump decodes lump as a dense array of T.
func readLump[T any](a *assembly, lump int, max int) ([]T, error) {
	var zero T
	size := binary.Size(zero)
	r, err := a.c.Reader(lump)
	if err != nil {
		return nil, err
	}
	defer r.Release()
	if r.Size()%size != 0 {
		return nil, a.formatError(lump, fmt.Sprintf("multiple of %d bytes", size), fmt.Sprintf("%d bytes", r.Size()))
	}
	n := r.Size() / size
	if max > 0 && n > max {
		return nil, a.formatError(lump, fmt.Sprintf("at most %d elements", max), fmt.Sprintf("%d", n))
	}
	out := make([]T, n)
	if err := r.Elements(size, out); err != nil {
		return nil, err
	}
	return out, nil
}
