package loam

import "image"

// CacheTexture is a render target holding a pre-rasterized region of tiles.
// A CacheTexture may carry an alternate back-buffer used by the sliding
// window strategy; swapping the pair is an O(1) pointer exchange.
type CacheTexture struct {
	tex  Texture
	w, h int
	alt  *CacheTexture // double-buffer pair, nil when not double-buffered
}

// newCacheTexture allocates a single cache texture through the backend.
func newCacheTexture(backend Backend, w, h int) *CacheTexture {
	return &CacheTexture{tex: backend.CreateTexture(w, h), w: w, h: h}
}

// newCacheTexturePair allocates two same-sized cache textures linked as
// front/back buffers.
func newCacheTexturePair(backend Backend, w, h int) *CacheTexture {
	front := newCacheTexture(backend, w, h)
	back := newCacheTexture(backend, w, h)
	front.alt = back
	back.alt = front
	return front
}

// Texture returns the underlying backend texture.
func (c *CacheTexture) Texture() Texture {
	return c.tex
}

// Size returns the texture dimensions in pixels.
func (c *CacheTexture) Size() (int, int) {
	return c.w, c.h
}

// Alternate returns the paired back-buffer, or nil.
func (c *CacheTexture) Alternate() *CacheTexture {
	return c.alt
}

// Bounds returns the full pixel rectangle of the texture.
func (c *CacheTexture) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.w, c.h)
}

// dispose destroys this texture and its pair (if any).
func (c *CacheTexture) dispose(backend Backend) {
	if c.tex != nil {
		backend.DestroyTexture(c.tex)
		c.tex = nil
	}
	if c.alt != nil {
		pair := c.alt
		c.alt = nil
		pair.alt = nil
		pair.dispose(backend)
	}
}

// --- Scratch texture pool ---

// texturePool manages reusable scratch textures keyed by power-of-two
// dimensions. Block bake passes acquire a scratch target, render into it, and
// release it; after warmup Acquire/Release allocate nothing.
type texturePool struct {
	backend Backend
	buckets map[uint64][]Texture
}

func newTexturePool(backend Backend) *texturePool {
	return &texturePool{backend: backend}
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared texture with at least (w, h) pixels.
// Dimensions are rounded up to the next power of two.
func (p *texturePool) Acquire(w, h int) Texture {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			tex := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			p.backend.Clear(tex)
			return tex
		}
	}

	return p.backend.CreateTexture(pw, ph)
}

// Release returns a texture to the pool for reuse. It is cleared on next
// Acquire, not here (avoids redundant GPU work on release-then-reacquire).
func (p *texturePool) Release(tex Texture) {
	if tex == nil {
		return
	}
	w, h := tex.Size()
	key := poolKey(w, h)

	if p.buckets == nil {
		p.buckets = make(map[uint64][]Texture)
	}
	p.buckets[key] = append(p.buckets[key], tex)
}

// Drain destroys every pooled texture.
func (p *texturePool) Drain() {
	for key, stack := range p.buckets {
		for _, tex := range stack {
			p.backend.DestroyTexture(tex)
		}
		delete(p.buckets, key)
	}
}
