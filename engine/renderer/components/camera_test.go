package components

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-5), "want %v, got %v", want, got)
}

func TestCameraView(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, mgl32.Ident4(), c.GetView())

	c.SetPosition(mgl32.Vec3{0, 0, 5})
	assert.True(t, c.IsDirty)
	eye := c.GetView().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assertVec3(t, mgl32.Vec3{0, 0, -5}, eye.Vec3())
	assert.False(t, c.IsDirty)
}

func TestCameraDirections(t *testing.T) {
	c := NewCamera()
	assertVec3(t, mgl32.Vec3{0, 0, -1}, c.Forward())
	assertVec3(t, mgl32.Vec3{1, 0, 0}, c.Right())

	c.Yaw(gomath.Pi / 2)
	assertVec3(t, mgl32.Vec3{-1, 0, 0}, c.Forward())

	c.MoveForward(2)
	assertVec3(t, mgl32.Vec3{-2, 0, 0}, c.GetPosition())
	c.MoveUp(1)
	assertVec3(t, mgl32.Vec3{-2, 1, 0}, c.GetPosition())
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	assert.InDelta(t, pitchLimit, c.GetEulerRotation().X(), 1e-6)
	c.Pitch(-20)
	assert.InDelta(t, -pitchLimit, c.GetEulerRotation().X(), 1e-6)
}

func TestCameraProjectionDepthRange(t *testing.T) {
	c := NewCamera()
	p := c.Projection(16.0 / 9.0)

	near := p.Mul4x1(mgl32.Vec4{0, 0, -c.Near, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, -c.Far, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)

	up := p.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	assert.Less(t, up.Y(), float32(0), "clip space y points down")
}

func TestCameraOrbitFacesTarget(t *testing.T) {
	c := NewCamera()
	c.Orbit(mgl32.Vec3{}, 3, 0, 0.7)
	target := c.GetView().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assertVec3(t, mgl32.Vec3{0, 0, -3}, target.Vec3())
}
