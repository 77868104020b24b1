package loam

// StrategyKind identifies which caching strategy the selector picked.
type StrategyKind uint8

const (
	// StrategyNone populates tiles live into the visible region on every
	// invalidation; no persistent texture is kept.
	StrategyNone StrategyKind = iota
	// StrategySingle bakes the entire map once into one texture.
	StrategySingle
	// StrategyGrid partitions the map into independently cached blocks with
	// a 1-pixel extrusion border.
	StrategyGrid
	// StrategySlidingWindow keeps a double-buffered camera-centered window
	// of the map cached, blitting surviving content as the camera moves.
	StrategySlidingWindow
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyNone:
		return "none"
	case StrategySingle:
		return "single"
	case StrategyGrid:
		return "grid"
	case StrategySlidingWindow:
		return "sliding-window"
	default:
		return "unknown"
	}
}

// strategy is the dispatch surface shared by the four implementations.
// A strategy is selected once at setup and never swapped.
type strategy interface {
	// build allocates textures and display nodes; full-map strategies also
	// bake their initial content here.
	build()
	// update runs once per render phase with the current layer-space
	// viewport. force redraws cached content even if the camera is inside
	// the cached region (tile edit or entity bake invalidation).
	update(view Rect, force bool)
	// dispose destroys textures and detaches display nodes.
	dispose()
}

// chooseStrategy picks the caching strategy from the map/texture size
// relationship. Deterministic on exactly these inputs. Geometric
// infeasibility (tile plus bleed margin exceeding the maximum texture
// dimension) produces a warning and a fallback to the next available
// strategy rather than an error.
func chooseStrategy(disable, forceFull bool, mapPxW, mapPxH, tilePxW, tilePxH, maxDim float64) StrategyKind {
	if disable {
		return StrategyNone
	}
	if mapPxW <= maxDim && mapPxH <= maxDim {
		return StrategySingle
	}

	gridFits := (mapPxW <= 2*maxDim && mapPxH <= maxDim) ||
		(mapPxW <= maxDim && mapPxH <= 2*maxDim)
	if forceFull || gridFits {
		// Grid blocks carry a 1px extrusion border on each side.
		if tilePxW+2 <= maxDim && tilePxH+2 <= maxDim {
			return StrategyGrid
		}
		warnf("tile size %gx%g (plus bleed) exceeds max cache texture %g; grid cache unavailable",
			tilePxW, tilePxH, maxDim)
	}

	if tilePxW <= maxDim && tilePxH <= maxDim {
		return StrategySlidingWindow
	}
	warnf("tile size %gx%g exceeds max cache texture %g; caching disabled",
		tilePxW, tilePxH, maxDim)
	return StrategyNone
}

// --- No-cache strategy ---

// noCache populates live tile instances for the visible viewport region on
// every invalidation. There is no persistent texture: the instances stay in
// the display tree and the caller's renderer draws them each frame.
type noCache struct {
	l      *TileCacheLayer
	live   *Node
	region CacheRegion
}

func newNoCache(l *TileCacheLayer) *noCache {
	return &noCache{l: l, region: emptyRegion}
}

func (s *noCache) build() {
	s.live = NewContainer("live-tiles")
	s.live.SetScale(s.l.cfg.ScaleX, s.l.cfg.ScaleY)
	s.l.content.AddChild(s.live)
}

func (s *noCache) update(view Rect, force bool) {
	region := s.l.viewRegion(view, 0)
	if !force && region == s.region {
		return
	}
	s.region = region

	s.l.templates.clearAll()
	s.live.RemoveChildren()
	region.eachCell(func(col, row int) {
		s.l.addCellTiles(s.live, col, row)
	})
	s.l.stats.Redraws++
}

func (s *noCache) dispose() {
	if s.live != nil {
		s.live.Dispose()
		s.live = nil
	}
}

// --- Single full-map cache strategy ---

// singleCache bakes the whole map into one texture sized to the next power
// of two above the map's pixel size. The bake happens once; camera motion
// only repositions the layer node. Tile edits and entity bakes re-bake.
type singleCache struct {
	l    *TileCacheLayer
	tex  *CacheTexture
	node *Node
}

func newSingleCache(l *TileCacheLayer) *singleCache {
	return &singleCache{l: l}
}

func (s *singleCache) build() {
	// Power of two where it fits; MaxTextureSize is a hard cap, so a
	// non-pow2 cap wins over the round-up.
	maxDim := s.l.cfg.MaxTextureSize
	w := min(nextPowerOfTwo(int(s.l.mapPixelW()+0.5)), maxDim)
	h := min(nextPowerOfTwo(int(s.l.mapPixelH()+0.5)), maxDim)
	s.tex = newCacheTexture(s.l.backend, w, h)
	s.l.stats.TexturesCreated++

	s.node = NewSprite("map-cache", s.tex.Texture())
	s.l.content.AddChild(s.node)
	s.bake()
}

func (s *singleCache) bake() {
	s.l.backend.Clear(s.tex.Texture())
	s.l.renderCells(s.tex.Texture(), s.l.fullRegion(), emptyRegion, 0, 0)
	s.l.stats.Redraws++
}

func (s *singleCache) update(view Rect, force bool) {
	if force {
		s.bake()
		return
	}
	s.l.stats.Repositions++
}

func (s *singleCache) dispose() {
	if s.tex != nil {
		s.tex.dispose(s.l.backend)
		s.tex = nil
	}
	if s.node != nil {
		s.node.Dispose()
		s.node = nil
	}
}
