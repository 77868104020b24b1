package loam

// CacheRegion is an integer tile-space rectangle [Left,Right]×[Top,Bottom],
// bounds inclusive, describing which tiles are baked into a cache texture.
// The empty sentinel (Left > Right) distinguishes "nothing cached yet".
type CacheRegion struct {
	Left, Top, Right, Bottom int
}

// emptyRegion is the "nothing cached yet" sentinel.
var emptyRegion = CacheRegion{Left: 0, Top: 0, Right: -1, Bottom: -1}

// Empty reports whether the region holds no cells.
func (r CacheRegion) Empty() bool {
	return r.Left > r.Right || r.Top > r.Bottom
}

// Cols returns the region width in tiles.
func (r CacheRegion) Cols() int {
	if r.Empty() {
		return 0
	}
	return r.Right - r.Left + 1
}

// Rows returns the region height in tiles.
func (r CacheRegion) Rows() int {
	if r.Empty() {
		return 0
	}
	return r.Bottom - r.Top + 1
}

// ContainsCell reports whether the cell (col, row) lies inside the region.
func (r CacheRegion) ContainsCell(col, row int) bool {
	return col >= r.Left && col <= r.Right && row >= r.Top && row <= r.Bottom
}

// ContainsRegion reports whether other lies entirely inside r.
func (r CacheRegion) ContainsRegion(other CacheRegion) bool {
	if other.Empty() {
		return true
	}
	return other.Left >= r.Left && other.Right <= r.Right &&
		other.Top >= r.Top && other.Bottom <= r.Bottom
}

// Intersects reports whether r and other share at least one cell.
func (r CacheRegion) Intersects(other CacheRegion) bool {
	if r.Empty() || other.Empty() {
		return false
	}
	return r.Left <= other.Right && r.Right >= other.Left &&
		r.Top <= other.Bottom && r.Bottom >= other.Top
}

// Intersect returns the overlapping cells of r and other (possibly empty).
func (r CacheRegion) Intersect(other CacheRegion) CacheRegion {
	out := CacheRegion{
		Left:   max(r.Left, other.Left),
		Top:    max(r.Top, other.Top),
		Right:  min(r.Right, other.Right),
		Bottom: min(r.Bottom, other.Bottom),
	}
	if out.Empty() {
		return emptyRegion
	}
	return out
}

// eachCell calls fn for every cell in the region, row-major.
func (r CacheRegion) eachCell(fn func(col, row int)) {
	for row := r.Top; row <= r.Bottom; row++ {
		for col := r.Left; col <= r.Right; col++ {
			fn(col, row)
		}
	}
}

// eachCellNotIn calls fn for every cell of r that is NOT covered by other.
// This drives the sliding-window delta redraw: only the strip of newly
// revealed cells is repopulated.
func (r CacheRegion) eachCellNotIn(other CacheRegion, fn func(col, row int)) {
	for row := r.Top; row <= r.Bottom; row++ {
		for col := r.Left; col <= r.Right; col++ {
			if !other.ContainsCell(col, row) {
				fn(col, row)
			}
		}
	}
}

// pixelBounds converts the region to a world-pixel rectangle given tile
// dimensions and the map's pixel offset.
func (r CacheRegion) pixelBounds(tileW, tileH float64, offsetX, offsetY float64) Rect {
	if r.Empty() {
		return Rect{}
	}
	return Rect{
		X:      offsetX + float64(r.Left)*tileW,
		Y:      offsetY + float64(r.Top)*tileH,
		Width:  float64(r.Cols()) * tileW,
		Height: float64(r.Rows()) * tileH,
	}
}

// centeredRegion builds a cols×rows window centered on the given cell,
// clamped so it never overshoots past tile 0 or the last tile: a window that
// would overflow is shifted inward by the overflow amount, and a window
// larger than the map collapses to the map bounds.
func centeredRegion(centerCol, centerRow, cols, rows, mapCols, mapRows int) CacheRegion {
	if cols > mapCols {
		cols = mapCols
	}
	if rows > mapRows {
		rows = mapRows
	}

	left := centerCol - cols/2
	top := centerRow - rows/2

	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	if left+cols > mapCols {
		left = mapCols - cols
	}
	if top+rows > mapRows {
		top = mapRows - rows
	}

	return CacheRegion{Left: left, Top: top, Right: left + cols - 1, Bottom: top + rows - 1}
}
