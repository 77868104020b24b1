package loam

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertMatrix(t *testing.T, name string, got, want [6]float64) {
	t.Helper()
	for i := range got {
		if math.Abs(got[i]-want[i]) > epsilon {
			t.Errorf("%s[%d] = %v, want %v (full: %v vs %v)", name, i, got[i], want[i], got, want)
		}
	}
}

// --- computeLocalTransform ---

func TestLocalTransformIdentity(t *testing.T) {
	n := NewContainer("test")
	got := computeLocalTransform(n)
	assertMatrix(t, "identity", got, [6]float64{1, 0, 0, 1, 0, 0})
}

func TestLocalTransformTranslation(t *testing.T) {
	n := NewContainer("test")
	n.X = 10
	n.Y = 20
	got := computeLocalTransform(n)
	assertMatrix(t, "translation", got, [6]float64{1, 0, 0, 1, 10, 20})
}

func TestLocalTransformScale(t *testing.T) {
	n := NewContainer("test")
	n.ScaleX = 2
	n.ScaleY = 3
	got := computeLocalTransform(n)
	assertMatrix(t, "scale", got, [6]float64{2, 0, 0, 3, 0, 0})
}

func TestLocalTransformRotation90(t *testing.T) {
	n := NewContainer("test")
	n.Rotation = math.Pi / 2
	got := computeLocalTransform(n)
	// cos(90)=0, sin(90)=1 → a=0, b=1, c=-1, d=0
	assertMatrix(t, "rot90", got, [6]float64{0, 1, -1, 0, 0, 0})
}

func TestLocalTransformPivot(t *testing.T) {
	n := NewContainer("test")
	n.X = 100
	n.Y = 100
	n.PivotX = 8
	n.PivotY = 8
	got := computeLocalTransform(n)
	assertMatrix(t, "pivot", got, [6]float64{1, 0, 0, 1, 92, 92})
}

func TestLocalTransformPivotWithScale(t *testing.T) {
	n := NewContainer("test")
	n.X = 100
	n.PivotX = 10
	n.ScaleX = 2
	got := computeLocalTransform(n)
	assertMatrix(t, "pivot+scale", got, [6]float64{2, 0, 0, 1, 80, 0})
}

// --- multiplyAffine / invertAffine ---

func TestMultiplyAffineIdentity(t *testing.T) {
	m := [6]float64{2, 0, 0, 3, 5, 7}
	assertMatrix(t, "id*m", multiplyAffine(identityTransform, m), m)
	assertMatrix(t, "m*id", multiplyAffine(m, identityTransform), m)
}

func TestInvertAffineRoundTrip(t *testing.T) {
	n := NewContainer("test")
	n.X = 12
	n.Y = -3
	n.ScaleX = 2
	n.ScaleY = 0.5
	n.Rotation = 0.7
	m := computeLocalTransform(n)
	round := multiplyAffine(m, invertAffine(m))
	assertMatrix(t, "m*inv(m)", round, identityTransform)
}

func TestInvertAffineSingular(t *testing.T) {
	assertMatrix(t, "inv(singular)", invertAffine([6]float64{0, 0, 0, 0, 5, 5}), identityTransform)
}

func TestTransformPoint(t *testing.T) {
	m := [6]float64{2, 0, 0, 2, 10, 20}
	x, y := transformPoint(m, 3, 4)
	assertNear(t, "x", x, 16)
	assertNear(t, "y", y, 28)
}

// --- worldAABB ---

func TestWorldAABBTranslated(t *testing.T) {
	m := [6]float64{1, 0, 0, 1, 5, 6}
	r := worldAABB(m, 10, 20)
	assertNear(t, "x", r.X, 5)
	assertNear(t, "y", r.Y, 6)
	assertNear(t, "w", r.Width, 10)
	assertNear(t, "h", r.Height, 20)
}

func TestWorldAABBRotated90(t *testing.T) {
	m := [6]float64{0, 1, -1, 0, 0, 0}
	r := worldAABB(m, 10, 20)
	// A 10x20 box rotated 90° occupies 20x10.
	assertNear(t, "x", r.X, -20)
	assertNear(t, "y", r.Y, 0)
	assertNear(t, "w", r.Width, 20)
	assertNear(t, "h", r.Height, 10)
}

// --- updateWorldTransform ---

func TestUpdateWorldTransformPropagates(t *testing.T) {
	parent := NewContainer("parent")
	parent.X = 10
	child := NewContainer("child")
	child.X = 5
	parent.AddChild(child)

	updateWorldTransform(parent, identityTransform, 1.0, false)
	assertMatrix(t, "child world", child.WorldTransform(), [6]float64{1, 0, 0, 1, 15, 0})
}

func TestUpdateWorldTransformAlpha(t *testing.T) {
	parent := NewContainer("parent")
	parent.Alpha = 0.5
	child := NewContainer("child")
	child.Alpha = 0.5
	parent.AddChild(child)

	updateWorldTransform(parent, identityTransform, 1.0, false)
	assertNear(t, "worldAlpha", child.worldAlpha, 0.25)
}

func TestSettersMarkDirty(t *testing.T) {
	n := NewContainer("test")
	updateWorldTransform(n, identityTransform, 1.0, false)
	if n.transformDirty {
		t.Fatal("expected clean after traversal")
	}
	n.SetPosition(1, 2)
	if !n.transformDirty {
		t.Error("SetPosition should mark dirty")
	}
}
