// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

// MaterialResolver maps surface names to material keys.
type MaterialResolver interface {
	ResolveMaterial(name string) (int, error)
}

// PhysicsBaker receives the serialized collision of each brush model.
type PhysicsBaker interface {
	BakeCollision(model, solids int, data []byte, keyData string) error
}

// LightmapNotifier is told when a world's lighting and faces are ready.
type LightmapNotifier interface {
	LightmapsChanged(w *WorldData)
}

type NopMaterials struct{}

func (NopMaterials) ResolveMaterial(string) (int, error) { return -1, nil }

type NopPhysics struct{}

func (NopPhysics) BakeCollision(int, int, []byte, string) error { return nil }

type NopLightmaps struct{}

func (NopLightmaps) LightmapsChanged(*WorldData) {}

// MaterialTable hands out sequential keys, one per distinct name.
type MaterialTable struct {
	keys  map[string]int
	names []string
}

func NewMaterialTable() *MaterialTable {
	return &MaterialTable{keys: make(map[string]int)}
}

func (m *MaterialTable) ResolveMaterial(name string) (int, error) {
	if k, ok := m.keys[name]; ok {
		return k, nil
	}
	k := len(m.names)
	m.keys[name] = k
	m.names = append(m.names, name)
	return k, nil
}

func (m *MaterialTable) Names() []string {
	return m.names
}
