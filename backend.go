package loam

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Texture is a GPU-backed render target created by a Backend. Cache textures,
// atlas pages, and scratch targets all satisfy this interface.
type Texture interface {
	// Size returns the texture dimensions in pixels.
	Size() (w, h int)
}

// Backend is the graphics contract the cache engine renders through. The
// production implementation is EbitenBackend; tests substitute a recording
// fake so cache behavior is assertable without a GPU.
type Backend interface {
	// CreateTexture returns a cleared offscreen render target of the given
	// pixel size. The target must support being rendered into repeatedly.
	CreateTexture(w, h int) Texture

	// Render rasterizes a node subtree into target. The transform maps the
	// subtree's local space into target pixels. Masks set on nodes are
	// honored. Rendering does not clear the target.
	Render(root *Node, target Texture, transform [6]float64)

	// Clear fills the target with transparent black.
	Clear(target Texture)

	// Blit copies srcRect of src into dst with its top-left corner at
	// (dx, dy), without blending (opaque copy, alpha preserved).
	Blit(dst, src Texture, dx, dy float64, srcRect image.Rectangle)

	// DestroyTexture reclaims the texture's GPU memory. The texture must
	// not be used afterwards.
	DestroyTexture(t Texture)
}

// --- ebiten implementation ---

// EbitenBackend renders through ebiten offscreen images.
type EbitenBackend struct{}

// NewEbitenBackend returns the production Backend.
func NewEbitenBackend() *EbitenBackend {
	return &EbitenBackend{}
}

// EbitenTexture wraps an *ebiten.Image as a Texture. Exposed so callers can
// hand atlas pages to the engine and draw cache output themselves.
type EbitenTexture struct {
	img *ebiten.Image
}

// WrapImage wraps an existing ebiten image (e.g. a loaded tileset) as a
// Texture. The caller retains ownership.
func WrapImage(img *ebiten.Image) *EbitenTexture {
	return &EbitenTexture{img: img}
}

// Image returns the underlying ebiten image.
func (t *EbitenTexture) Image() *ebiten.Image {
	return t.img
}

// Size returns the image dimensions in pixels.
func (t *EbitenTexture) Size() (int, int) {
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

// CreateTexture allocates an unmanaged offscreen image. Unmanaged images skip
// ebiten's automatic atlas management, which suits long-lived render targets.
func (b *EbitenBackend) CreateTexture(w, h int) Texture {
	return &EbitenTexture{img: ebiten.NewImageWithOptions(
		image.Rect(0, 0, w, h),
		&ebiten.NewImageOptions{Unmanaged: true},
	)}
}

// Clear fills the target with transparent black.
func (b *EbitenBackend) Clear(target Texture) {
	target.(*EbitenTexture).img.Clear()
}

// Blit copies srcRect of src into dst at (dx, dy) with BlendCopy so the
// source alpha overwrites the destination rather than compositing over it.
func (b *EbitenBackend) Blit(dst, src Texture, dx, dy float64, srcRect image.Rectangle) {
	dstImg := dst.(*EbitenTexture).img
	srcImg := src.(*EbitenTexture).img
	sub := srcImg.SubImage(srcRect).(*ebiten.Image)

	var op ebiten.DrawImageOptions
	op.GeoM.Translate(dx, dy)
	op.Blend = ebiten.BlendCopy
	dstImg.DrawImage(sub, &op)
}

// DestroyTexture deallocates the image immediately instead of waiting for GC.
func (b *EbitenBackend) DestroyTexture(t Texture) {
	t.(*EbitenTexture).img.Deallocate()
}

// blendAlphaMask clips destination pixels to the source's alpha channel.
var blendAlphaMask = ebiten.Blend{
	BlendFactorSourceRGB:        ebiten.BlendFactorZero,
	BlendFactorSourceAlpha:      ebiten.BlendFactorZero,
	BlendFactorDestinationRGB:   ebiten.BlendFactorSourceAlpha,
	BlendFactorDestinationAlpha: ebiten.BlendFactorSourceAlpha,
	BlendOperationRGB:           ebiten.BlendOperationAdd,
	BlendOperationAlpha:         ebiten.BlendOperationAdd,
}

// Render rasterizes a node subtree into target with the given transform.
func (b *EbitenBackend) Render(root *Node, target Texture, transform [6]float64) {
	b.drawNode(root, target.(*EbitenTexture).img, transform, 1.0)
}

// drawNode draws a node and its children recursively. Masked nodes are
// rendered to a scratch image, clipped by the mask's alpha, and composited.
func (b *EbitenBackend) drawNode(n *Node, dst *ebiten.Image, parentTransform [6]float64, parentAlpha float64) {
	if !n.Visible || n.disposed {
		return
	}

	local := computeLocalTransform(n)
	transform := multiplyAffine(parentTransform, local)
	alpha := parentAlpha * n.Alpha

	if n.mask != nil {
		b.drawMasked(n, dst, transform, alpha)
		return
	}

	if n.Type == NodeTypeSprite && n.Renderable && n.Texture != nil {
		b.drawSprite(n, dst, transform, alpha)
	}

	for _, child := range n.children {
		b.drawNode(child, dst, transform, alpha)
	}
}

// drawSprite submits a single sprite draw.
func (b *EbitenBackend) drawSprite(n *Node, dst *ebiten.Image, transform [6]float64, alpha float64) {
	img := n.Texture.(*EbitenTexture).img
	if n.Region.Dx() > 0 && n.Region.Dy() > 0 {
		img = img.SubImage(n.Region).(*ebiten.Image)
	}

	var op ebiten.DrawImageOptions
	op.GeoM.SetElement(0, 0, transform[0])
	op.GeoM.SetElement(1, 0, transform[1])
	op.GeoM.SetElement(0, 1, transform[2])
	op.GeoM.SetElement(1, 1, transform[3])
	op.GeoM.SetElement(0, 2, transform[4])
	op.GeoM.SetElement(1, 2, transform[5])
	op.ColorScale.ScaleAlpha(float32(alpha))
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(img, &op)
}

// drawMasked renders n's subtree and its mask to scratch images, clips the
// subtree by the mask alpha, and composites the result into dst.
func (b *EbitenBackend) drawMasked(n *Node, dst *ebiten.Image, transform [6]float64, alpha float64) {
	bounds := subtreeBounds(n)
	w := int(bounds.Width + 0.5)
	h := int(bounds.Height + 0.5)
	if w <= 0 || h <= 0 {
		return
	}

	offset := [6]float64{1, 0, 0, 1, -bounds.X, -bounds.Y}

	scratch := ebiten.NewImage(w, h)
	b.drawSubtreeUnmasked(n, scratch, offset, 1.0)

	maskImg := ebiten.NewImage(w, h)
	b.drawNode(n.mask, maskImg, offset, 1.0)

	var maskOp ebiten.DrawImageOptions
	maskOp.Blend = blendAlphaMask
	scratch.DrawImage(maskImg, &maskOp)
	maskImg.Deallocate()

	// Composite at the subtree's true position.
	composite := transform
	composite[4] += transform[0]*bounds.X + transform[2]*bounds.Y
	composite[5] += transform[1]*bounds.X + transform[3]*bounds.Y

	var op ebiten.DrawImageOptions
	op.GeoM.SetElement(0, 0, composite[0])
	op.GeoM.SetElement(1, 0, composite[1])
	op.GeoM.SetElement(0, 1, composite[2])
	op.GeoM.SetElement(1, 1, composite[3])
	op.GeoM.SetElement(0, 2, composite[4])
	op.GeoM.SetElement(1, 2, composite[5])
	op.ColorScale.ScaleAlpha(float32(alpha))
	dst.DrawImage(scratch, &op)
	scratch.Deallocate()
}

// drawSubtreeUnmasked draws n and its children ignoring n's own mask (the
// caller applies it afterwards).
func (b *EbitenBackend) drawSubtreeUnmasked(n *Node, dst *ebiten.Image, parentTransform [6]float64, parentAlpha float64) {
	if n.Type == NodeTypeSprite && n.Renderable && n.Texture != nil {
		b.drawSprite(n, dst, parentTransform, parentAlpha)
	}
	for _, child := range n.children {
		b.drawNode(child, dst, parentTransform, parentAlpha)
	}
}

// subtreeBounds computes the bounding rectangle of a node and all its
// descendants in the node's local coordinate space.
func subtreeBounds(n *Node) Rect {
	var r Rect
	first := true
	subtreeBoundsWalk(n, identityTransform, &r, &first)
	return r
}

func subtreeBoundsWalk(n *Node, localTransform [6]float64, bounds *Rect, first *bool) {
	if w, h := n.size(); w > 0 && h > 0 {
		aabb := worldAABB(localTransform, w, h)
		if *first {
			*bounds = aabb
			*first = false
		} else {
			*bounds = bounds.Union(aabb)
		}
	}
	for _, child := range n.children {
		childTransform := multiplyAffine(localTransform, computeLocalTransform(child))
		subtreeBoundsWalk(child, childTransform, bounds, first)
	}
}
