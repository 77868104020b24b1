package loam

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Tile identifier flag bits (same convention as Tiled TMX GIDs).
const (
	TileFlipH    uint32 = 1 << 31 // horizontal mirror
	TileFlipV    uint32 = 1 << 30 // vertical flip
	TileFlipD    uint32 = 1 << 29 // diagonal flip (90° rotation-swap)
	tileFlagMask uint32 = TileFlipH | TileFlipV | TileFlipD
)

// EmptyTileID is the identifier sentinel for "no drawable".
const EmptyTileID = "0"

// tileStackSeparator joins stacked parts within a single tile identifier.
const tileStackSeparator = "|"

// EncodeTileID builds a tile identifier string from a base frame (1-based,
// flag bits clear) and the three transform bits.
func EncodeTileID(frame uint32, mirrorX, flipY, rotate bool) string {
	gid := frame
	if mirrorX {
		gid |= TileFlipH
	}
	if flipY {
		gid |= TileFlipV
	}
	if rotate {
		gid |= TileFlipD
	}
	return strconv.FormatUint(uint64(gid), 10)
}

// StackTileIDs joins multiple tile identifiers into one stacked identifier.
func StackTileIDs(ids ...string) string {
	return strings.Join(ids, tileStackSeparator)
}

// decodeTransform converts the three flag bits into the (scaleX, scaleY,
// rotation) triple applied to a tile instance. The diagonal bit swaps the
// scale axes and sets a 90° rotation; every one of the 8 bit combinations
// yields a distinct triple.
func decodeTransform(gid uint32) (scaleX, scaleY, rotation float64) {
	scaleX, scaleY = 1, 1
	if gid&TileFlipH != 0 {
		scaleX = -1
	}
	if gid&TileFlipV != 0 {
		scaleY = -1
	}
	if gid&TileFlipD != 0 {
		scaleX, scaleY = scaleY, scaleX
		rotation = halfPi
	}
	return scaleX, scaleY, rotation
}

const halfPi = 1.5707963267948966

// TileTemplate owns one canonical drawable for a tile identifier plus a
// growable pool of additional instances, so the same template can appear many
// times in one redraw pass without instance aliasing. A pass-local cursor is
// reset by clear(); instances survive across passes.
type TileTemplate struct {
	id        string
	empty     bool
	canonical *Node
	pool      []*Node
	cursor    int
}

// Identifier returns the identifier string this template was resolved from.
func (t *TileTemplate) Identifier() string {
	return t.id
}

// Empty reports whether this is the null template (empty sentinel).
func (t *TileTemplate) Empty() bool {
	return t.empty
}

// getNext returns the first never-used pooled instance this pass, lazily
// cloning a new instance when the pool is exhausted. Returns nil for the
// null template.
func (t *TileTemplate) getNext() *Node {
	if t.empty {
		return nil
	}
	if t.cursor < len(t.pool) {
		n := t.pool[t.cursor]
		t.cursor++
		return n
	}
	n := cloneNode(t.canonical)
	t.pool = append(t.pool, n)
	t.cursor++
	return n
}

// clear resets the per-pass cursor without destroying instances.
func (t *TileTemplate) clear() {
	t.cursor = 0
}

// dispose releases all pooled instances.
func (t *TileTemplate) dispose() {
	for _, n := range t.pool {
		n.Dispose()
	}
	t.pool = nil
	t.cursor = 0
	if t.canonical != nil {
		t.canonical.Dispose()
		t.canonical = nil
	}
}

// cloneNode deep-copies a template drawable: transform, texture reference,
// region, owner tag, and children. Event-free template nodes only.
func cloneNode(src *Node) *Node {
	n := &Node{
		Name:     src.Name,
		Type:     src.Type,
		X:        src.X,
		Y:        src.Y,
		ScaleX:   src.ScaleX,
		ScaleY:   src.ScaleY,
		Rotation: src.Rotation,
		PivotX:   src.PivotX,
		PivotY:   src.PivotY,
		Alpha:    src.Alpha,
		Texture:  src.Texture,
		Region:   src.Region,
		owner:    src.owner,
	}
	n.ID = nextNodeID()
	n.Visible = true
	n.Renderable = true
	n.transformDirty = true
	for _, child := range src.children {
		n.AddChild(cloneNode(child))
	}
	return n
}

// templateSet lazily resolves tile identifiers to templates and owns every
// template created for a map.
type templateSet struct {
	tileset   Texture
	tileW     int
	tileH     int
	columns   int
	templates map[string]*TileTemplate
	null      *TileTemplate
}

func newTemplateSet(tileset Texture, tileW, tileH int) *templateSet {
	columns := 1
	if tileset != nil && tileW > 0 {
		w, _ := tileset.Size()
		if c := w / tileW; c > 0 {
			columns = c
		}
	}
	return &templateSet{
		tileset:   tileset,
		tileW:     tileW,
		tileH:     tileH,
		columns:   columns,
		templates: make(map[string]*TileTemplate),
		null:      &TileTemplate{id: EmptyTileID, empty: true},
	}
}

// resolve returns the template for the given identifier, creating it on first
// reference. The empty sentinel resolves to a shared null template. A
// malformed identifier degrades to the null template with a warning.
func (s *templateSet) resolve(id string) *TileTemplate {
	if id == "" || id == EmptyTileID {
		return s.null
	}
	if t, ok := s.templates[id]; ok {
		return t
	}

	canonical, err := s.buildDrawable(id)
	if err != nil {
		warnf("bad tile identifier %q: %v", id, err)
		return s.null
	}

	t := &TileTemplate{id: id, canonical: canonical}
	s.templates[id] = t
	return t
}

// buildDrawable constructs the canonical node for an identifier: a single
// sprite for one part, a container of stacked sprites for several.
func (s *templateSet) buildDrawable(id string) (*Node, error) {
	parts := strings.Split(id, tileStackSeparator)
	if len(parts) == 1 {
		return s.buildPart(parts[0], id)
	}

	container := NewContainer(id)
	container.owner = id
	for _, part := range parts {
		if part == EmptyTileID || part == "" {
			continue
		}
		sprite, err := s.buildPart(part, id)
		if err != nil {
			container.Dispose()
			return nil, err
		}
		container.AddChild(sprite)
	}
	return container, nil
}

// buildPart constructs one sprite from a single GID part. The sprite pivots
// about the tile center so the decoded mirror/rotation keeps the drawable
// inside its cell.
func (s *templateSet) buildPart(part, owner string) (*Node, error) {
	raw, err := strconv.ParseUint(part, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse gid: %w", err)
	}
	gid := uint32(raw)
	frame := gid &^ tileFlagMask
	if frame == 0 {
		return nil, fmt.Errorf("flag bits set on empty frame")
	}

	// Frames are 1-based; frame 1 is the tileset's top-left tile.
	idx := int(frame - 1)
	col := idx % s.columns
	row := idx / s.columns
	region := image.Rect(col*s.tileW, row*s.tileH, (col+1)*s.tileW, (row+1)*s.tileH)

	sprite := NewSpriteRegion(part, s.tileset, region)
	sprite.owner = owner
	sprite.PivotX = float64(s.tileW) / 2
	sprite.PivotY = float64(s.tileH) / 2
	sprite.X = sprite.PivotX
	sprite.Y = sprite.PivotY
	sprite.ScaleX, sprite.ScaleY, sprite.Rotation = decodeTransform(gid)
	return sprite, nil
}

// clearAll resets every template's pass cursor.
func (s *templateSet) clearAll() {
	for _, t := range s.templates {
		t.clear()
	}
}

// dispose destroys all templates and their pooled instances.
func (s *templateSet) dispose() {
	for id, t := range s.templates {
		t.dispose()
		delete(s.templates, id)
	}
}
