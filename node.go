package loam

import "image"

// NodeType distinguishes rendering behavior for a Node.
type NodeType uint8

const (
	NodeTypeContainer NodeType = iota // group node with no visual output
	NodeTypeSprite                    // renders a texture (or sub-region of one)
)

// nodeIDCounter is a plain counter (no atomic — loam is single-threaded).
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// Node is a scene graph element. A single flat struct is used for both node
// types to avoid interface dispatch on the hot path. Sprite nodes reference a
// backend Texture; container nodes only group children.
type Node struct {
	// Identity
	ID   uint32
	Name string
	Type NodeType

	// Hierarchy
	Parent   *Node
	children []*Node

	// Transform (local)
	X, Y     float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64
	PivotX   float64
	PivotY   float64

	// Computed (updated during traversal)
	worldTransform [6]float64
	worldAlpha     float64
	transformDirty bool

	// Visibility
	Alpha      float64
	Visible    bool
	Renderable bool

	// Sprite fields (NodeTypeSprite)
	Texture Texture
	// Region is the sub-rectangle of Texture to draw. A zero Region means
	// the full texture.
	Region image.Rectangle

	// Mask node. Not part of the tree; its transforms are relative to this
	// node. The mask's alpha channel clips this node's rendered output.
	mask *Node

	// owner is the tile identifier of the template this instance belongs
	// to, or "" for non-template nodes. Lets a consumer report an
	// instance's template for pool clearing without a back-pointer.
	owner string

	disposed bool
}

// nodeDefaults sets the common default field values shared by constructors.
func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.ScaleX = 1
	n.ScaleY = 1
	n.Alpha = 1
	n.Visible = true
	n.Renderable = true
	n.transformDirty = true
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Type: NodeTypeContainer}
	nodeDefaults(n)
	return n
}

// NewSprite creates a sprite node that renders the given texture.
func NewSprite(name string, tex Texture) *Node {
	n := &Node{Name: name, Type: NodeTypeSprite, Texture: tex}
	nodeDefaults(n)
	return n
}

// NewSpriteRegion creates a sprite node that renders a sub-rectangle of the
// given texture (an atlas frame).
func NewSpriteRegion(name string, tex Texture, region image.Rectangle) *Node {
	n := &Node{Name: name, Type: NodeTypeSprite, Texture: tex, Region: region}
	nodeDefaults(n)
	return n
}

// SetMask sets a mask node for this node. Pass nil to clear.
func (n *Node) SetMask(maskNode *Node) {
	n.mask = maskNode
}

// Mask returns the current mask node, or nil if none is set.
func (n *Node) Mask() *Node {
	return n.mask
}

// TemplateOwner returns the tile identifier of the template that owns this
// instance, or "" if the node is not a pooled template instance.
func (n *Node) TemplateOwner() string {
	return n.owner
}

// size returns the node's untransformed pixel dimensions for AABB purposes.
func (n *Node) size() (w, h float64) {
	if n.Type != NodeTypeSprite {
		return 0, 0
	}
	if n.Region.Dx() > 0 || n.Region.Dy() > 0 {
		return float64(n.Region.Dx()), float64(n.Region.Dy())
	}
	if n.Texture != nil {
		tw, th := n.Texture.Size()
		return float64(tw), float64(th)
	}
	return 0, 0
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("loam: cannot add nil child")
	}
	if isAncestor(child, n) {
		panic("loam: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
	markSubtreeDirty(child)
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("loam: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	markSubtreeDirty(child)
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node.
// Children are NOT disposed.
func (n *Node) RemoveChildren() {
	for _, child := range n.children {
		child.Parent = nil
		markSubtreeDirty(child)
	}
	n.children = n.children[:0]
}

// Children returns the child list. The returned slice MUST NOT be mutated by
// the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed, and
// recursively disposes all descendants. Textures referenced by sprite nodes
// are NOT destroyed; they remain owned by whoever created them.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.Parent = nil
	n.mask = nil
	n.Texture = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// markSubtreeDirty sets transformDirty on node and all its descendants.
func markSubtreeDirty(node *Node) {
	node.transformDirty = true
	for _, child := range node.children {
		markSubtreeDirty(child)
	}
}
