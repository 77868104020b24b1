package loam

import "testing"

func TestCacheTexturePairLinksBothWays(t *testing.T) {
	b := newFakeBackend()
	front := newCacheTexturePair(b, 64, 64)

	back := front.Alternate()
	if back == nil || back.Alternate() != front {
		t.Fatal("pair must link front and back both ways")
	}
	if len(b.created) != 2 {
		t.Errorf("created %d textures, want 2", len(b.created))
	}
}

func TestCacheTextureDisposeDestroysPair(t *testing.T) {
	b := newFakeBackend()
	front := newCacheTexturePair(b, 64, 64)

	front.dispose(b)
	if b.destroys != 2 {
		t.Errorf("destroyed %d textures, want 2", b.destroys)
	}
	// Dispose again is a no-op.
	front.dispose(b)
	if b.destroys != 2 {
		t.Errorf("double dispose destroyed %d textures", b.destroys)
	}
}

func TestPoolRoundsUpToPowerOfTwo(t *testing.T) {
	b := newFakeBackend()
	p := newTexturePool(b)

	tex := p.Acquire(48, 17)
	if w, h := tex.Size(); w != 64 || h != 32 {
		t.Errorf("acquired %dx%d, want 64x32", w, h)
	}
}

func TestPoolReusesReleasedTexture(t *testing.T) {
	b := newFakeBackend()
	p := newTexturePool(b)

	first := p.Acquire(40, 40)
	p.Release(first)

	second := p.Acquire(33, 60)
	if second != first {
		t.Error("same pow2 bucket should reuse the released texture")
	}
	if len(b.created) != 1 {
		t.Errorf("created %d textures, want 1", len(b.created))
	}
	if b.clears != 1 {
		t.Errorf("reused texture cleared %d times, want 1", b.clears)
	}
}

func TestPoolSeparatesBuckets(t *testing.T) {
	b := newFakeBackend()
	p := newTexturePool(b)

	p.Release(p.Acquire(64, 64))
	other := p.Acquire(64, 16)
	if w, h := other.Size(); w != 64 || h != 16 {
		t.Errorf("acquired %dx%d from the wrong bucket", w, h)
	}
	if len(b.created) != 2 {
		t.Errorf("created %d textures, want 2", len(b.created))
	}
}

func TestPoolDrain(t *testing.T) {
	b := newFakeBackend()
	p := newTexturePool(b)

	p.Release(p.Acquire(32, 32))
	p.Release(p.Acquire(64, 64))
	p.Drain()

	if b.destroys != 2 {
		t.Errorf("destroyed %d textures, want 2", b.destroys)
	}
	if len(p.buckets) != 0 {
		t.Error("buckets not emptied")
	}
}

func TestPowerOfTwoHelpers(t *testing.T) {
	cases := []struct{ n, next, prev int }{
		{1, 1, 1},
		{2, 2, 2},
		{3, 4, 2},
		{17, 32, 16},
		{64, 64, 64},
		{100, 128, 64},
	}
	for _, c := range cases {
		if got := nextPowerOfTwo(c.n); got != c.next {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", c.n, got, c.next)
		}
		if got := prevPowerOfTwo(c.n); got != c.prev {
			t.Errorf("prevPowerOfTwo(%d) = %d, want %d", c.n, got, c.prev)
		}
	}
}
