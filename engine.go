package loam

import (
	"fmt"
	"math"
	"sort"
)

// defaultMaxTextureSize caps cache texture dimensions when the config leaves
// MaxTextureSize zero. Conservative bound supported by every desktop GPU.
const defaultMaxTextureSize = 2048

// defaultBufferTiles is the sliding-window margin beyond the viewport edge.
const defaultBufferTiles = 2

// Config is the setup-time configuration surface for a TileCacheLayer.
type Config struct {
	// Backend renders and owns textures. Required.
	Backend Backend
	// Tileset is the source texture tile frames are cut from. Required for
	// non-empty maps.
	Tileset Texture
	// TileWidth and TileHeight are the tile pixel dimensions. Required.
	TileWidth  int
	TileHeight int

	// MaxTextureSize caps the cache texture dimension. 0 means 2048.
	MaxTextureSize int
	// BufferTiles is the number of extra tiles beyond the viewport edge the
	// sliding window keeps cached. 0 means 2.
	BufferTiles int
	// ForceFullCache bakes the entire map (grid cache) even when it exceeds
	// the normal whole-map threshold.
	ForceFullCache bool
	// DisableCache turns persistent caching off entirely; tiles are
	// populated live into the visible region on every invalidation.
	DisableCache bool

	// ScaleX and ScaleY are render scale factors applied when baking tiles.
	// 0 means 1.
	ScaleX float64
	ScaleY float64
	// OffsetX and OffsetY position the map's top-left corner in world
	// pixels.
	OffsetX float64
	OffsetY float64

	// WorldWidth and WorldHeight are the world pixel size used for the lax
	// (parallax) viewport mapping. 0 means the layer's own pixel size, i.e.
	// no differential scroll.
	WorldWidth  float64
	WorldHeight float64
}

// BakeEvent is emitted when an entity is first composited permanently into
// the background cache.
type BakeEvent struct {
	EntityID uint32
	Region   CacheRegion
}

// BakeSink receives bake notifications. See the ecs sub-module for a
// Donburi-backed implementation.
type BakeSink interface {
	EmitBake(event BakeEvent)
}

// TileCacheLayer is the cache rendering engine: it owns the tile map, the
// template pool, the selected caching strategy, and a scene node that
// displays the cached background. Single-threaded; drive it from the render
// loop via ViewportChanged and FrameTick.
type TileCacheLayer struct {
	cfg     Config
	backend Backend
	pool    *texturePool

	templates *templateSet
	tiles     *TileMap
	overlays  *overlayMap

	node    *Node // root node attached to the caller's display tree
	content *Node // layer-space container holding strategy display nodes

	kind  StrategyKind
	strat strategy

	camera *Camera

	view        Rect // current layer-space viewport
	viewChanged bool
	dirty       bool // coalesced invalidation flag
	ready       bool // setup complete

	debug bool
	stats CacheStats
	sink  BakeSink
}

// NewTileCacheLayer validates the configuration and creates an engine.
// Call AddTileLayer to install tile grids, then Setup to select a strategy
// and build the cache.
func NewTileCacheLayer(name string, cfg Config) (*TileCacheLayer, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("loam: config requires a Backend")
	}
	if cfg.TileWidth <= 0 || cfg.TileHeight <= 0 {
		return nil, fmt.Errorf("loam: config requires positive tile dimensions, got %dx%d",
			cfg.TileWidth, cfg.TileHeight)
	}
	if cfg.ScaleX == 0 {
		cfg.ScaleX = 1
	}
	if cfg.ScaleY == 0 {
		cfg.ScaleY = 1
	}
	if cfg.MaxTextureSize == 0 {
		cfg.MaxTextureSize = defaultMaxTextureSize
	}
	if cfg.BufferTiles == 0 {
		cfg.BufferTiles = defaultBufferTiles
	}

	l := &TileCacheLayer{
		cfg:     cfg,
		backend: cfg.Backend,
		pool:    newTexturePool(cfg.Backend),
		node:    NewContainer(name),
		content: NewContainer(name + "-content"),
	}
	l.node.AddChild(l.content)
	l.templates = newTemplateSet(cfg.Tileset, cfg.TileWidth, cfg.TileHeight)
	l.tiles = newTileMap(l.templates)
	l.overlays = newOverlayMap()
	return l, nil
}

// Node returns the scene node displaying the cached background. Attach it to
// the caller's display tree.
func (l *TileCacheLayer) Node() *Node {
	return l.node
}

// Kind returns the strategy the selector picked (valid after Setup).
func (l *TileCacheLayer) Kind() StrategyKind {
	return l.kind
}

// Stats returns the cumulative cache activity counters.
func (l *TileCacheLayer) Stats() CacheStats {
	return l.stats
}

// SetDebugMode enables per-redraw stat logging to stderr.
func (l *TileCacheLayer) SetDebugMode(enabled bool) {
	l.debug = enabled
}

// SetBakeSink installs a receiver for entity bake events.
func (l *TileCacheLayer) SetBakeSink(sink BakeSink) {
	l.sink = sink
}

// BindCamera derives the viewport from cam on every FrameTick, advancing its
// scroll tween first. Pass nil to unbind.
func (l *TileCacheLayer) BindCamera(cam *Camera) {
	l.camera = cam
}

// --- Tile-edit entry points ---

// AddTileLayer resolves a grid of tile identifiers into a new map layer. The
// first layer fixes the map dimensions. Adding a layer after Setup marks the
// whole cache dirty.
func (l *TileCacheLayer) AddTileLayer(name string, ids [][]string) error {
	if err := l.tiles.AddLayer(name, ids); err != nil {
		return err
	}
	if l.ready {
		l.dirty = true
	}
	return nil
}

// SetTile overwrites a single cell's identifier and marks the cache dirty.
func (l *TileCacheLayer) SetTile(layer, col, row int, id string) error {
	if err := l.tiles.SetTile(layer, col, row, id); err != nil {
		return err
	}
	if l.ready {
		l.dirty = true
	}
	return nil
}

// Identifiers serializes a layer's resolved grid back to identifier form.
func (l *TileCacheLayer) Identifiers(layer int) [][]string {
	return l.tiles.Identifiers(layer)
}

// Map returns the underlying tile map store.
func (l *TileCacheLayer) Map() *TileMap {
	return l.tiles
}

// --- Setup ---

// Setup selects the caching strategy from the map/texture size relationship,
// allocates cache textures, bakes full-map strategies, and attaches the
// layer node to parent. Requires at least one tile layer.
func (l *TileCacheLayer) Setup(parent *Node) error {
	if l.ready {
		return fmt.Errorf("loam: setup already complete")
	}
	if l.tiles.NumLayers() == 0 {
		return fmt.Errorf("loam: setup requires at least one tile layer")
	}

	maxDim := float64(l.cfg.MaxTextureSize)
	l.kind = chooseStrategy(
		l.cfg.DisableCache, l.cfg.ForceFullCache,
		l.mapPixelW(), l.mapPixelH(),
		l.tilePixelW(), l.tilePixelH(),
		maxDim,
	)

	switch l.kind {
	case StrategyNone:
		l.strat = newNoCache(l)
	case StrategySingle:
		l.strat = newSingleCache(l)
	case StrategyGrid:
		l.strat = newGridCache(l)
	case StrategySlidingWindow:
		l.strat = newSlidingWindowCache(l)
	}

	l.strat.build()
	if parent != nil {
		parent.AddChild(l.node)
	}
	l.node.SetPosition(l.cfg.OffsetX, l.cfg.OffsetY)
	// The window strategy defers its first population to the render phase;
	// seed the dirty flag so the first tick fills it even when no viewport
	// update arrives beforehand.
	if l.kind == StrategySlidingWindow {
		l.dirty = true
	}
	l.ready = true
	return nil
}

// Dispose destroys all cache textures, pooled instances, and scene nodes.
func (l *TileCacheLayer) Dispose() {
	if l.strat != nil {
		l.strat.dispose()
		l.strat = nil
	}
	l.pool.Drain()
	l.templates.dispose()
	l.tiles.dispose()
	l.node.Dispose()
	l.ready = false
}

// --- Frame phases ---

// ViewportChanged records a new world-space viewport. The redraw decision is
// deferred to the render phase (FrameTick) so multiple triggers within one
// tick coalesce. No-op before Setup completes.
func (l *TileCacheLayer) ViewportChanged(view Rect) {
	if !l.ready {
		return
	}
	mapped := l.mapViewport(view)
	if mapped == l.view && !l.viewChanged {
		return
	}
	l.view = mapped
	l.viewChanged = true

	// Cheap path: reposition the layer node so layer-space content tracks
	// the (possibly parallax-shifted) scroll immediately.
	l.node.SetPosition(view.X-mapped.X+l.cfg.OffsetX, view.Y-mapped.Y+l.cfg.OffsetY)
}

// FrameTick runs the conditional render phase: if a bound camera exists its
// tween advances and the viewport is re-derived, then the selected strategy
// redraws if and only if the dirty flag is set or the viewport left the
// cached region. dt is the frame delta in seconds.
func (l *TileCacheLayer) FrameTick(dt float64) {
	if !l.ready {
		return
	}

	if l.camera != nil {
		l.camera.update(float32(dt))
		l.ViewportChanged(l.camera.VisibleBounds())
	}

	if !l.viewChanged && !l.dirty {
		return
	}
	force := l.dirty
	l.dirty = false
	l.viewChanged = false

	l.strat.update(l.view, force)

	if l.debug {
		l.stats.debugLog()
	}
}

// --- Entity overlay entry point ---

// EntityCacheRequest permanently composites entity into the background: its
// drawable bounds are mapped to the covered tile range, the entity is
// registered in the overlay map for every covered cell, the whole cache is
// marked dirty, and the entity's own render path is disabled (it is static
// bake-only from here on). The entity node remains externally owned: remove
// it via RemoveCachedEntity before destroying it externally.
//
// No-op with a warning when caching is disabled (there is no persistent
// texture to bake into).
func (l *TileCacheLayer) EntityCacheRequest(entity *Node, depth float64) {
	if !l.ready {
		warnf("entity cache request before setup; ignored")
		return
	}
	if l.kind == StrategyNone {
		warnf("entity cache request with caching disabled; ignored")
		return
	}

	region := l.entityRegion(entity)
	if region.Empty() {
		warnf("entity %q has no drawable bounds; ignored", entity.Name)
		return
	}

	l.overlays.insert(&overlayEntry{node: entity, depth: depth, region: region})
	entity.Visible = false

	// Coarse invalidation: entity caching is a one-time bake, not a
	// per-frame event, so a full-cache recompute is acceptable.
	l.dirty = true
}

// RemoveCachedEntity withdraws an entity from the overlay map and restores
// its own render path. Call before destroying an overlay entity externally.
func (l *TileCacheLayer) RemoveCachedEntity(entity *Node) {
	if l.overlays.remove(entity) {
		entity.Visible = true
		l.dirty = true
	}
}

// entityRegion maps an entity's world drawable bounds to the tile range it
// covers, clamped to the map. Cells are inclusive of the lower edge and
// exclusive of the upper, so bounds ending exactly on a tile boundary do not
// claim the next cell.
func (l *TileCacheLayer) entityRegion(entity *Node) CacheRegion {
	local := subtreeBounds(entity)
	if local.Width <= 0 || local.Height <= 0 {
		return emptyRegion
	}
	world := currentWorldTransform(entity)
	world[4] += world[0]*local.X + world[2]*local.Y
	world[5] += world[1]*local.X + world[3]*local.Y
	aabb := worldAABB(world, local.Width, local.Height)

	tw, th := l.tilePixelW(), l.tilePixelH()
	const edge = 1e-9
	region := CacheRegion{
		Left:   int(math.Floor((aabb.X - l.cfg.OffsetX) / tw)),
		Top:    int(math.Floor((aabb.Y - l.cfg.OffsetY) / th)),
		Right:  int(math.Ceil((aabb.X+aabb.Width-l.cfg.OffsetX)/tw - edge)) - 1,
		Bottom: int(math.Ceil((aabb.Y+aabb.Height-l.cfg.OffsetY)/th - edge)) - 1,
	}
	return region.Intersect(l.fullRegion())
}

// --- Geometry helpers ---

// tilePixelW returns one tile's width in layer pixels (render scale applied).
func (l *TileCacheLayer) tilePixelW() float64 {
	return float64(l.cfg.TileWidth) * l.cfg.ScaleX
}

// tilePixelH returns one tile's height in layer pixels.
func (l *TileCacheLayer) tilePixelH() float64 {
	return float64(l.cfg.TileHeight) * l.cfg.ScaleY
}

// mapPixelW returns the map width in layer pixels.
func (l *TileCacheLayer) mapPixelW() float64 {
	return float64(l.tiles.Width()) * l.tilePixelW()
}

// mapPixelH returns the map height in layer pixels.
func (l *TileCacheLayer) mapPixelH() float64 {
	return float64(l.tiles.Height()) * l.tilePixelH()
}

// fullRegion returns the whole map as a CacheRegion.
func (l *TileCacheLayer) fullRegion() CacheRegion {
	if l.tiles.Width() == 0 {
		return emptyRegion
	}
	return CacheRegion{Left: 0, Top: 0, Right: l.tiles.Width() - 1, Bottom: l.tiles.Height() - 1}
}

// clampViewToMap intersects a layer-space viewport with the map bounds.
func (l *TileCacheLayer) clampViewToMap(view Rect) Rect {
	x0 := math.Max(view.X, 0)
	y0 := math.Max(view.Y, 0)
	x1 := math.Min(view.X+view.Width, l.mapPixelW())
	y1 := math.Min(view.Y+view.Height, l.mapPixelH())
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// viewRegion returns the tiles covered by a layer-space viewport plus margin,
// clamped to the map.
func (l *TileCacheLayer) viewRegion(view Rect, margin int) CacheRegion {
	if l.tiles.Width() == 0 {
		return emptyRegion
	}
	v := l.clampViewToMap(view)
	tw, th := l.tilePixelW(), l.tilePixelH()
	region := CacheRegion{
		Left:   int(math.Floor(v.X/tw)) - margin,
		Top:    int(math.Floor(v.Y/th)) - margin,
		Right:  int(math.Ceil((v.X+v.Width)/tw)) - 1 + margin,
		Bottom: int(math.Ceil((v.Y+v.Height)/th)) - 1 + margin,
	}
	return region.Intersect(l.fullRegion())
}

// mapViewport converts a world-space viewport into the layer's local scroll
// coordinate (lax camera): position along each axis is linearly remapped from
// [0, worldSize-viewportSize] to [0, layerSize-viewportSize]. When the
// viewport fills the world the raw position passes through unchanged. The
// viewport size itself propagates unchanged.
func (l *TileCacheLayer) mapViewport(view Rect) Rect {
	out := view
	out.X = laxMap(view.X-l.cfg.OffsetX, view.Width, l.worldW(), l.mapPixelW())
	out.Y = laxMap(view.Y-l.cfg.OffsetY, view.Height, l.worldH(), l.mapPixelH())
	return out
}

func (l *TileCacheLayer) worldW() float64 {
	if l.cfg.WorldWidth > 0 {
		return l.cfg.WorldWidth
	}
	return l.mapPixelW()
}

func (l *TileCacheLayer) worldH() float64 {
	if l.cfg.WorldHeight > 0 {
		return l.cfg.WorldHeight
	}
	return l.mapPixelH()
}

// laxMap remaps a scroll position from world range to layer range. A zero
// denominator (viewport fills the world) passes the raw position through.
func laxMap(pos, viewSize, worldSize, layerSize float64) float64 {
	denom := worldSize - viewSize
	if denom == 0 {
		return pos
	}
	return pos * (layerSize - viewSize) / denom
}

// currentWorldTransform recomputes a node's world transform by walking its
// parent chain, independent of traversal caching. Used for externally owned
// overlay entities whose trees this engine never traverses.
func currentWorldTransform(n *Node) [6]float64 {
	local := computeLocalTransform(n)
	if n.Parent == nil {
		return local
	}
	return multiplyAffine(currentWorldTransform(n.Parent), local)
}

// --- Redraw pass machinery shared by strategies ---

// addCellTiles appends pooled tile instances for every layer's template at
// (col, row) to parent, positioned in unscaled layer coordinates.
func (l *TileCacheLayer) addCellTiles(parent *Node, col, row int) {
	x := float64(col * l.cfg.TileWidth)
	y := float64(row * l.cfg.TileHeight)
	for li := 0; li < l.tiles.NumLayers(); li++ {
		t := l.tiles.at(li, col, row)
		if t == nil {
			continue
		}
		inst := t.getNext()
		if inst == nil {
			continue
		}
		inst.SetPosition(x+t.canonical.X, y+t.canonical.Y)
		parent.AddChild(inst)
	}
}

// renderCells populates every cell of region not covered by skip into target,
// whose pixel origin corresponds to tile (originCol, originRow), then
// composites any overlay entities registered on those cells in depth order.
// This is the single redraw pass implementation shared by all caching
// strategies.
func (l *TileCacheLayer) renderCells(target Texture, region, skip CacheRegion, originCol, originRow int) {
	l.templates.clearAll()
	l.overlays.beginPass()

	root := NewContainer("redraw-pass")
	var entries []*overlayEntry
	region.eachCellNotIn(skip, func(col, row int) {
		l.addCellTiles(root, col, row)
		entries = l.overlays.collect(col, row, entries)
		l.stats.CellsPopulated++
	})

	transform := [6]float64{
		l.cfg.ScaleX, 0, 0, l.cfg.ScaleY,
		-float64(originCol) * l.tilePixelW(),
		-float64(originRow) * l.tilePixelH(),
	}
	l.backend.Render(root, target, transform)

	// Overlay entities draw after tiles so they sit on top; depth order
	// resolves stacking among the entities themselves.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].depth < entries[j].depth
	})
	// Entity world coordinates are already in layer pixels; only the target
	// origin translation applies, not the tile render scale.
	entityTransform := [6]float64{1, 0, 0, 1, transform[4], transform[5]}
	for _, e := range entries {
		l.bakeEntity(e, target, entityTransform)
	}

	// Detach pooled instances so the next pass can reparent them freely.
	root.RemoveChildren()
}

// bakeEntity renders an overlay entity into the cache target. The entity's
// own render path stays disabled; only this bake pass draws it.
func (l *TileCacheLayer) bakeEntity(e *overlayEntry, target Texture, transform [6]float64) {
	n := e.node
	if n.IsDisposed() {
		return
	}

	parentWorld := identityTransform
	if n.Parent != nil {
		parentWorld = currentWorldTransform(n.Parent)
	}
	// Entity world coordinates include the map offset; cache targets do not.
	parentWorld[4] -= l.cfg.OffsetX
	parentWorld[5] -= l.cfg.OffsetY

	n.Visible = true
	l.backend.Render(n, target, multiplyAffine(transform, parentWorld))
	n.Visible = false

	if !e.baked {
		e.baked = true
		l.stats.EntitiesBaked++
		if l.sink != nil {
			l.sink.EmitBake(BakeEvent{EntityID: n.ID, Region: e.region})
		}
	}
}
