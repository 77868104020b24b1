package loam

import (
	"fmt"
	"os"
)

// warnf prints a non-fatal configuration warning to stderr. Warnings surface
// once at setup time; the engine degrades (fallback strategy, null template)
// rather than failing.
func warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "[loam] warning: "+format+"\n", args...)
}

// CacheStats counts cache activity since setup. The counters are cumulative;
// they double as the debug observability surface and as test probes for the
// engine's redraw behavior.
type CacheStats struct {
	Redraws         int // redraw passes executed
	Blits           int // buffer-to-buffer content copies
	CellsPopulated  int // tile cells rendered into a cache texture
	TexturesCreated int // cache textures allocated
	Repositions     int // viewport updates satisfied by moving the node only
	EntitiesBaked   int // entities permanently composited into the cache
}

// debugLog prints the current counters to stderr. Only called when the
// engine's debug mode is on.
func (s CacheStats) debugLog() {
	_, _ = fmt.Fprintf(os.Stderr,
		"[loam] redraws: %d | blits: %d | cells: %d | textures: %d | repositions: %d | baked: %d\n",
		s.Redraws, s.Blits, s.CellsPopulated, s.TexturesCreated, s.Repositions, s.EntitiesBaked)
}
