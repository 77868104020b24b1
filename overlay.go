package loam

// overlayEntry is one externally owned drawable permanently composited into
// the background. The engine never controls the entity's lifecycle beyond
// drawing it; external destruction must be coordinated via
// RemoveCachedEntity before the next redraw.
type overlayEntry struct {
	node   *Node
	depth  float64
	region CacheRegion // tile cells the entity's bounds cover

	lastPass uint64 // "already collected this pass" marker
	baked    bool   // first composite already happened (bake event emitted)
}

type cellKey struct {
	col, row int
}

// overlayMap is a sparse mapping from tile coordinate to the ordered list of
// overlay entries whose bounds cover that cell. An entity spanning many cells
// appears in each of them but is collected at most once per redraw pass via
// the pass counter.
type overlayMap struct {
	cells map[cellKey][]*overlayEntry
	pass  uint64
}

func newOverlayMap() *overlayMap {
	return &overlayMap{cells: make(map[cellKey][]*overlayEntry)}
}

// insert registers an entry for every cell its region covers.
func (o *overlayMap) insert(e *overlayEntry) {
	e.region.eachCell(func(col, row int) {
		key := cellKey{col, row}
		o.cells[key] = append(o.cells[key], e)
	})
}

// remove withdraws every entry referencing node. Returns true if any entry
// was removed.
func (o *overlayMap) remove(node *Node) bool {
	removed := false
	for key, entries := range o.cells {
		kept := entries[:0]
		for _, e := range entries {
			if e.node == node {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(o.cells, key)
		} else {
			o.cells[key] = kept
		}
	}
	return removed
}

// entriesAt returns the entries registered on a cell (nil for none).
func (o *overlayMap) entriesAt(col, row int) []*overlayEntry {
	return o.cells[cellKey{col, row}]
}

// empty reports whether no entities are registered.
func (o *overlayMap) empty() bool {
	return len(o.cells) == 0
}

// straddles reports whether any entry's coverage inside bounds extends both
// into keep and beyond it. Such an entry cannot be carried forward by a blit
// of keep: redrawing its uncovered cells would composite it a second time
// over the blitted pixels.
func (o *overlayMap) straddles(bounds, keep CacheRegion) bool {
	for _, entries := range o.cells {
		for _, e := range entries {
			covered := e.region.Intersect(bounds)
			if covered.Empty() {
				continue
			}
			if covered.Intersects(keep) && !keep.ContainsRegion(covered) {
				return true
			}
		}
	}
	return false
}

// beginPass starts a new redraw pass; entries collected in earlier passes
// become collectable again.
func (o *overlayMap) beginPass() {
	o.pass++
}

// collect appends the entries registered on (col, row) that have not yet been
// collected this pass. An entity spanning many redrawn cells is therefore
// drawn exactly once per pass.
func (o *overlayMap) collect(col, row int, out []*overlayEntry) []*overlayEntry {
	for _, e := range o.cells[cellKey{col, row}] {
		if e.lastPass == o.pass {
			continue
		}
		e.lastPass = o.pass
		out = append(out, e)
	}
	return out
}
