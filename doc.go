// Package loam renders very large 2D tile-grid backgrounds by caching
// rasterized tile regions into reusable offscreen textures instead of
// redrawing every tile every frame.
//
// A TileCacheLayer owns one or more tile layers (grids of tile identifier
// strings resolved to pooled drawable templates) and, at setup time, picks one
// of four caching strategies based on the map's pixel size versus the maximum
// cache texture dimension:
//
//   - no cache: tiles are repopulated live into the visible region
//   - single cache: the whole map baked once into one texture
//   - grid cache: the map split into independently cached blocks with a
//     1-pixel extrusion border to prevent sampling seams
//   - sliding window: a double-buffered camera-centered window that blits
//     surviving content forward and redraws only newly revealed cells
//
// Each frame the caller feeds the engine a world-space viewport (directly or
// through a bound Camera); the engine maps it into tile space, tests it
// against the cached region, and redraws only when stale. Movable entities
// can be permanently composited ("baked") into the background via
// EntityCacheRequest.
//
// The graphics backend is abstracted behind the Backend interface; the
// production implementation renders with ebiten. Tests run against a
// recording fake, so the cache logic is verifiable without a GPU.
//
// loam is single-threaded and frame-tick driven: all mutation happens from
// the caller's update loop, and every started redraw completes within the
// tick that began it.
package loam
