package loam

import "fmt"

// TileMap is the per-layer grid of resolved tile templates. All layers share
// identical tile-grid dimensions; the size is fixed once the first layer is
// established. Cells hold references into the owning templateSet (nil for
// empty), never copies.
type TileMap struct {
	templates *templateSet
	layers    []*tileLayer
	width     int // tiles
	height    int // tiles
}

type tileLayer struct {
	name string
	grid []*TileTemplate // row-major, len = width * height
}

func newTileMap(templates *templateSet) *TileMap {
	return &TileMap{templates: templates}
}

// Width returns the map width in tiles (0 before the first layer).
func (m *TileMap) Width() int {
	return m.width
}

// Height returns the map height in tiles (0 before the first layer).
func (m *TileMap) Height() int {
	return m.height
}

// NumLayers returns the number of tile layers.
func (m *TileMap) NumLayers() int {
	return len(m.layers)
}

// AddLayer resolves a grid of tile identifiers (indexed [row][col]) into a
// new layer appended above existing ones. The first layer fixes the map
// dimensions; subsequent layers must match them exactly.
func (m *TileMap) AddLayer(name string, ids [][]string) error {
	if len(ids) == 0 || len(ids[0]) == 0 {
		return fmt.Errorf("loam: layer %q has no tiles", name)
	}
	h := len(ids)
	w := len(ids[0])

	if len(m.layers) == 0 {
		m.width = w
		m.height = h
	} else if w != m.width || h != m.height {
		return fmt.Errorf("loam: layer %q is %dx%d tiles, map is %dx%d",
			name, w, h, m.width, m.height)
	}

	layer := &tileLayer{name: name, grid: make([]*TileTemplate, w*h)}
	for row, cols := range ids {
		if len(cols) != w {
			return fmt.Errorf("loam: layer %q row %d has %d columns, want %d",
				name, row, len(cols), w)
		}
		for col, id := range cols {
			if t := m.templates.resolve(id); !t.Empty() {
				layer.grid[row*w+col] = t
			}
		}
	}
	m.layers = append(m.layers, layer)
	return nil
}

// SetTile overwrites a single cell's identifier at the given layer.
func (m *TileMap) SetTile(layer, col, row int, id string) error {
	if layer < 0 || layer >= len(m.layers) {
		return fmt.Errorf("loam: layer %d out of range", layer)
	}
	if col < 0 || col >= m.width || row < 0 || row >= m.height {
		return fmt.Errorf("loam: tile (%d,%d) outside %dx%d map", col, row, m.width, m.height)
	}
	t := m.templates.resolve(id)
	if t.Empty() {
		m.layers[layer].grid[row*m.width+col] = nil
	} else {
		m.layers[layer].grid[row*m.width+col] = t
	}
	return nil
}

// at returns the template at a cell, or nil for empty / out of range.
func (m *TileMap) at(layer, col, row int) *TileTemplate {
	if layer < 0 || layer >= len(m.layers) ||
		col < 0 || col >= m.width || row < 0 || row >= m.height {
		return nil
	}
	return m.layers[layer].grid[row*m.width+col]
}

// Identifiers serializes a layer's resolved grid back to identifier form
// (indexed [row][col]). Round-tripping the result through AddLayer reproduces
// an identical resolved grid.
func (m *TileMap) Identifiers(layer int) [][]string {
	if layer < 0 || layer >= len(m.layers) {
		return nil
	}
	out := make([][]string, m.height)
	grid := m.layers[layer].grid
	for row := 0; row < m.height; row++ {
		cols := make([]string, m.width)
		for col := 0; col < m.width; col++ {
			if t := grid[row*m.width+col]; t != nil {
				cols[col] = t.Identifier()
			} else {
				cols[col] = EmptyTileID
			}
		}
		out[row] = cols
	}
	return out
}

// dispose drops all layers. Templates are owned by the templateSet.
func (m *TileMap) dispose() {
	m.layers = nil
	m.width = 0
	m.height = 0
}
