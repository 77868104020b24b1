package loam

import (
	"image"
	"math"
)

// windowState tracks the sliding window lifecycle:
// UNINITIALIZED -> CACHED -> (stale) -> REDRAWING -> CACHED.
type windowState uint8

const (
	windowUninitialized windowState = iota
	windowCached
	windowRedrawing
)

// slidingWindowCache maintains a camera-centered window of the map in a
// double-buffered texture pair. While the viewport stays inside the cached
// pixel bounding box no redraw happens; when it leaves, surviving content is
// blitted into the back buffer at the aligned offset and only the newly
// revealed cells are repopulated, bounding redraw cost to the perimeter
// strip revealed by motion rather than the whole window.
type slidingWindowCache struct {
	l      *TileCacheLayer
	active *CacheTexture
	node   *Node

	state       windowState
	region      CacheRegion
	pixelBounds Rect

	// Maximum window size the texture can hold, in tiles.
	maxCols int
	maxRows int
}

func newSlidingWindowCache(l *TileCacheLayer) *slidingWindowCache {
	return &slidingWindowCache{l: l, region: emptyRegion}
}

func (s *slidingWindowCache) build() {
	maxDim := float64(s.l.cfg.MaxTextureSize)
	tw, th := s.l.tilePixelW(), s.l.tilePixelH()

	s.maxCols = min(s.l.tiles.Width(), int(maxDim/tw))
	s.maxRows = min(s.l.tiles.Height(), int(maxDim/th))

	// The window always fits maxDim by construction; the pow2 round-up must
	// not push the texture past the cap.
	texW := min(nextPowerOfTwo(int(math.Ceil(float64(s.maxCols)*tw))), s.l.cfg.MaxTextureSize)
	texH := min(nextPowerOfTwo(int(math.Ceil(float64(s.maxRows)*th))), s.l.cfg.MaxTextureSize)

	s.active = newCacheTexturePair(s.l.backend, texW, texH)
	s.l.stats.TexturesCreated += 2

	s.node = NewSprite("window-cache", s.active.Texture())
	s.l.content.AddChild(s.node)
}

func (s *slidingWindowCache) update(view Rect, force bool) {
	l := s.l
	viewClamped := l.clampViewToMap(view)

	// Fast path: the viewport is still inside what we've cached.
	if !force && s.state == windowCached && s.pixelBounds.ContainsRect(viewClamped) {
		l.stats.Repositions++
		return
	}

	s.state = windowRedrawing
	newRegion := s.candidateWindow(viewClamped)
	old := s.region
	if force {
		// Full invalidation (tile edit or entity bake): the previous
		// content is stale, so nothing survives a blit.
		old = emptyRegion
	}

	tw, th := l.tilePixelW(), l.tilePixelH()

	switch {
	case old.Empty():
		l.backend.Clear(s.active.Texture())
		l.renderCells(s.active.Texture(), newRegion, emptyRegion, newRegion.Left, newRegion.Top)
		l.stats.Redraws++

	case newRegion == old:
		// Containment failed on pixels but the tile window is unchanged;
		// nothing to redraw.

	case newRegion.Left == old.Left && newRegion.Top == old.Top:
		// Same origin: previously cached cells are already at the right
		// pixel offsets, so skip the blit and redraw only the delta. An
		// overlay entity reaching from the kept cells into the delta would
		// composite twice; redraw everything instead in that case.
		if l.overlays.straddles(newRegion, old) {
			l.backend.Clear(s.active.Texture())
			l.renderCells(s.active.Texture(), newRegion, emptyRegion, newRegion.Left, newRegion.Top)
		} else {
			l.renderCells(s.active.Texture(), newRegion, old, newRegion.Left, newRegion.Top)
		}
		l.stats.Redraws++

	default:
		overlap := newRegion.Intersect(old)
		if overlap.Empty() || l.overlays.straddles(newRegion, overlap) {
			l.backend.Clear(s.active.Texture())
			l.renderCells(s.active.Texture(), newRegion, emptyRegion, newRegion.Left, newRegion.Top)
			l.stats.Redraws++
			break
		}

		// Swap the texture pair, carry the overlapping strip over at its
		// new offset, then populate only the newly revealed cells.
		next := s.active.Alternate()
		l.backend.Clear(next.Texture())

		srcRect := image.Rect(
			int(math.Round(float64(overlap.Left-old.Left)*tw)),
			int(math.Round(float64(overlap.Top-old.Top)*th)),
			int(math.Round(float64(overlap.Right-old.Left+1)*tw)),
			int(math.Round(float64(overlap.Bottom-old.Top+1)*th)),
		)
		dx := float64(overlap.Left-newRegion.Left) * tw
		dy := float64(overlap.Top-newRegion.Top) * th
		l.backend.Blit(next.Texture(), s.active.Texture(), dx, dy, srcRect)
		l.stats.Blits++

		l.renderCells(next.Texture(), newRegion, overlap, newRegion.Left, newRegion.Top)
		l.stats.Redraws++

		s.active = next
		s.node.Texture = next.Texture()
	}

	s.region = newRegion
	s.pixelBounds = newRegion.pixelBounds(tw, th, 0, 0)
	s.node.SetPosition(s.pixelBounds.X, s.pixelBounds.Y)
	s.state = windowCached
}

// candidateWindow sizes a window to the viewport plus the configured buffer
// margin (capped at what the texture holds), centers it on the viewport, and
// clamps it inside the map: a window that would overshoot past tile 0 or the
// last tile is shifted inward by the overflow amount.
func (s *slidingWindowCache) candidateWindow(view Rect) CacheRegion {
	l := s.l
	tw, th := l.tilePixelW(), l.tilePixelH()

	// +2 accounts for partial tiles visible at both edges when the camera
	// is not tile-aligned.
	cols := int(math.Ceil(view.Width/tw)) + 2 + 2*l.cfg.BufferTiles
	rows := int(math.Ceil(view.Height/th)) + 2 + 2*l.cfg.BufferTiles
	cols = min(cols, s.maxCols)
	rows = min(rows, s.maxRows)

	centerCol := int(math.Floor((view.X + view.Width/2) / tw))
	centerRow := int(math.Floor((view.Y + view.Height/2) / th))

	return centeredRegion(centerCol, centerRow, cols, rows, l.tiles.Width(), l.tiles.Height())
}

// Region returns the currently cached tile region.
func (s *slidingWindowCache) Region() CacheRegion {
	return s.region
}

// PixelBounds returns the cached region's layer-pixel bounding box.
func (s *slidingWindowCache) PixelBounds() Rect {
	return s.pixelBounds
}

func (s *slidingWindowCache) dispose() {
	if s.active != nil {
		s.active.dispose(s.l.backend)
		s.active = nil
	}
	if s.node != nil {
		s.node.Dispose()
		s.node = nil
	}
	s.region = emptyRegion
	s.state = windowUninitialized
}
