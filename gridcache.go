package loam

import (
	"fmt"
	"image"
	"math"
)

// extrusionBleed is the number of border pixels duplicated beyond each
// block's logical edge so scaled bilinear sampling never shows a seam
// between adjacent blocks.
const extrusionBleed = 1

// gridBlock is one independently cached block of the map: a texture with an
// extruded border, the sprite node displaying it, and the pixel AABB used
// for visibility culling.
type gridBlock struct {
	tex    *CacheTexture
	node   *Node
	region CacheRegion
	bounds Rect // layer-pixel AABB of the block content (no bleed)
}

// gridCache partitions the whole map into a grid of fixed-size blocks, each
// baked once into its own texture. Off-screen blocks are hidden, not
// destroyed, so per-frame cost is O(visible blocks).
type gridCache struct {
	l         *TileCacheLayer
	blockCols int // tiles per full block, X
	blockRows int // tiles per full block, Y
	blocksX   int
	blocksY   int
	blocks    []*gridBlock
}

func newGridCache(l *TileCacheLayer) *gridCache {
	return &gridCache{l: l}
}

func (g *gridCache) build() {
	l := g.l
	tw, th := l.tilePixelW(), l.tilePixelH()

	// Full blocks fill the largest power-of-two texture within the cap,
	// leaving room for the extrusion border.
	blockPx := prevPowerOfTwo(l.cfg.MaxTextureSize)
	g.blockCols = max(1, int(float64(blockPx-2*extrusionBleed)/tw))
	g.blockRows = max(1, int(float64(blockPx-2*extrusionBleed)/th))

	mapCols, mapRows := l.tiles.Width(), l.tiles.Height()
	g.blocksX = (mapCols + g.blockCols - 1) / g.blockCols
	g.blocksY = (mapRows + g.blockRows - 1) / g.blockRows

	g.blocks = make([]*gridBlock, 0, g.blocksX*g.blocksY)
	for by := 0; by < g.blocksY; by++ {
		for bx := 0; bx < g.blocksX; bx++ {
			region := CacheRegion{
				Left:   bx * g.blockCols,
				Top:    by * g.blockRows,
				Right:  min((bx+1)*g.blockCols, mapCols) - 1,
				Bottom: min((by+1)*g.blockRows, mapRows) - 1,
			}
			contentW := int(math.Ceil(float64(region.Cols()) * tw))
			contentH := int(math.Ceil(float64(region.Rows()) * th))

			block := &gridBlock{
				tex:    newCacheTexture(l.backend, contentW+2*extrusionBleed, contentH+2*extrusionBleed),
				region: region,
				bounds: region.pixelBounds(tw, th, 0, 0),
			}
			l.stats.TexturesCreated++

			block.node = NewSprite(fmt.Sprintf("block-%d-%d", bx, by), block.tex.Texture())
			block.node.SetPosition(block.bounds.X-extrusionBleed, block.bounds.Y-extrusionBleed)
			l.content.AddChild(block.node)

			g.blocks = append(g.blocks, block)
		}
	}

	for _, block := range g.blocks {
		g.bake(block)
	}
	l.stats.Redraws++
}

// bake renders a block's tiles into a scratch target sized exactly to the
// block content (so drawing clips at the block border for free), then copies
// the scratch into the block texture at the four cardinal 1-pixel offsets
// and finally centered. The shifted copies leave a 1-pixel extruded ring
// around the true content.
func (g *gridCache) bake(block *gridBlock) {
	l := g.l
	contentW := int(math.Ceil(block.bounds.Width))
	contentH := int(math.Ceil(block.bounds.Height))
	if contentW <= 0 || contentH <= 0 {
		return
	}

	scratch := l.pool.Acquire(contentW, contentH)
	l.renderCells(scratch, block.region, emptyRegion, block.region.Left, block.region.Top)

	src := image.Rect(0, 0, contentW, contentH)
	dst := block.tex.Texture()
	l.backend.Clear(dst)
	l.backend.Blit(dst, scratch, extrusionBleed, 0, src)                // north
	l.backend.Blit(dst, scratch, extrusionBleed, 2*extrusionBleed, src) // south
	l.backend.Blit(dst, scratch, 0, extrusionBleed, src)                // west
	l.backend.Blit(dst, scratch, 2*extrusionBleed, extrusionBleed, src) // east
	l.backend.Blit(dst, scratch, extrusionBleed, extrusionBleed, src)   // center, true offset
	l.stats.Blits += 5

	l.pool.Release(scratch)
}

func (g *gridCache) update(view Rect, force bool) {
	if force {
		for _, block := range g.blocks {
			g.bake(block)
		}
		g.l.stats.Redraws++
	}

	// Visibility culling: hide blocks whose pixel AABB misses the viewport.
	// Hidden blocks are skipped entirely, restoring per-update cost to
	// O(visible blocks).
	for _, block := range g.blocks {
		block.node.Visible = block.bounds.Intersects(view)
	}
}

// blockAt returns the block containing tile (col, row), or nil.
func (g *gridCache) blockAt(col, row int) *gridBlock {
	if col < 0 || row < 0 {
		return nil
	}
	bx := col / g.blockCols
	by := row / g.blockRows
	if bx >= g.blocksX || by >= g.blocksY {
		return nil
	}
	return g.blocks[by*g.blocksX+bx]
}

func (g *gridCache) dispose() {
	for _, block := range g.blocks {
		block.tex.dispose(g.l.backend)
		block.node.Dispose()
	}
	g.blocks = nil
}
