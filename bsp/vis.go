// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"encoding/binary"
	"fmt"
)

const (
	visPVS = 0
	visPAS = 1
)

func (a *assembly) loadVisibility() error {
	data, err := a.raw(LumpVisibility, MaxMapVisibility)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		a.w.Vis = Visibility{}
		return nil
	}
	if len(data) < 4 {
		return a.formatError(LumpVisibility, "cluster count", fmt.Sprintf("%d bytes", len(data)))
	}
	n := int(int32(binary.LittleEndian.Uint32(data)))
	if n < 0 || 4+8*n > len(data) {
		return a.formatError(LumpVisibility,
			fmt.Sprintf("offset table inside %d bytes", len(data)),
			fmt.Sprintf("%d clusters", n))
	}
	offsets := make([][2]int32, n)
	for i := range offsets {
		for k := 0; k < 2; k++ {
			o := int32(binary.LittleEndian.Uint32(data[4+8*i+4*k:]))
			if o < 0 || int(o) > len(data) {
				return a.indexError(LumpVisibility, "vis offset", int(o), len(data))
			}
			offsets[i][k] = o
		}
	}
	a.w.Vis = Visibility{NumClusters: n, Offsets: offsets, data: data}
	return nil
}

// RowBytes is the size of one decompressed cluster bit row.
func (v *Visibility) RowBytes() int {
	return (v.NumClusters + 7) / 8
}

// ClusterPVS returns the decompressed potentially visible set of cluster.
// Without vis data or for clusters outside the map everything is visible.
func (w *WorldData) ClusterPVS(cluster int) []byte {
	return w.Vis.decompress(cluster, visPVS)
}

// ClusterPAS returns the potentially audible set of cluster.
func (w *WorldData) ClusterPAS(cluster int) []byte {
	return w.Vis.decompress(cluster, visPAS)
}

func (v *Visibility) decompress(cluster, kind int) []byte {
	row := v.RowBytes()
	out := make([]byte, row)
	if cluster < 0 || cluster >= v.NumClusters || len(v.data) == 0 {
		for i := range out {
			out[i] = 0xff
		}
		return out
	}
	DecompressVis(v.data[v.Offsets[cluster][kind]:], out)
	return out
}

// DecompressVis expands run length encoded vis data into out. A zero byte
// is followed by the number of zero bytes it stands for:
// 70550311 becomes 700000500011.
func DecompressVis(in, out []byte) {
	j := 0
	for i := 0; i < len(in) && j < len(out); i++ {
		if in[i] != 0 {
			out[j] = in[i]
			j++
			continue
		}
		i++
		if i >= len(in) {
			return
		}
		for c := int(in[i]); c > 0 && j < len(out); c-- {
			out[j] = 0
			j++
		}
	}
}
