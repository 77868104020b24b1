package loam

import (
	"image"
	"testing"
)

// fakeTexture is a GPU-free Texture used by the recording backend.
type fakeTexture struct {
	id   int
	w, h int
}

func (t *fakeTexture) Size() (int, int) {
	return t.w, t.h
}

type renderRecord struct {
	root      *Node
	target    Texture
	transform [6]float64
}

type blitRecord struct {
	dst, src Texture
	dx, dy   float64
	srcRect  image.Rectangle
}

// fakeBackend records every backend call so cache behavior is assertable
// without a GPU.
type fakeBackend struct {
	nextID   int
	created  []*fakeTexture
	renders  []renderRecord
	blits    []blitRecord
	clears   int
	destroys int
}

var _ Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{}
}

func (b *fakeBackend) CreateTexture(w, h int) Texture {
	b.nextID++
	t := &fakeTexture{id: b.nextID, w: w, h: h}
	b.created = append(b.created, t)
	return t
}

func (b *fakeBackend) Render(root *Node, target Texture, transform [6]float64) {
	b.renders = append(b.renders, renderRecord{root: root, target: target, transform: transform})
}

func (b *fakeBackend) Clear(target Texture) {
	b.clears++
}

func (b *fakeBackend) Blit(dst, src Texture, dx, dy float64, srcRect image.Rectangle) {
	b.blits = append(b.blits, blitRecord{dst: dst, src: src, dx: dx, dy: dy, srcRect: srcRect})
}

func (b *fakeBackend) DestroyTexture(t Texture) {
	b.destroys++
}

// --- Shared fixtures ---

// uniformGrid builds a rows×cols identifier grid filled with id.
func uniformGrid(cols, rows int, id string) [][]string {
	grid := make([][]string, rows)
	for r := range grid {
		row := make([]string, cols)
		for c := range row {
			row[c] = id
		}
		grid[r] = row
	}
	return grid
}

// newTestLayer builds a 16px-tile layer over a cols×rows uniform map, applies
// optional config tweaks, and runs Setup.
func newTestLayer(t *testing.T, backend *fakeBackend, cols, rows int, tweak func(*Config)) *TileCacheLayer {
	t.Helper()
	cfg := Config{
		Backend:    backend,
		Tileset:    &fakeTexture{w: 64, h: 64},
		TileWidth:  16,
		TileHeight: 16,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	layer, err := NewTileCacheLayer("test", cfg)
	if err != nil {
		t.Fatalf("NewTileCacheLayer: %v", err)
	}
	if err := layer.AddTileLayer("ground", uniformGrid(cols, rows, "1")); err != nil {
		t.Fatalf("AddTileLayer: %v", err)
	}
	if err := layer.Setup(nil); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return layer
}
