package umbra

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCamera_ForwardDefaultsLookDownNegativeZ(t *testing.T) {
	c := &Camera{}
	f := c.Forward()
	assert.InDelta(t, 0, float64(f.X()), 1e-6)
	assert.InDelta(t, -1, float64(f.Z()), 1e-6)
}

func TestCamera_ForwardYaw(t *testing.T) {
	c := &Camera{Yaw: 90}
	f := c.Forward()
	assert.InDelta(t, 1, float64(f.X()), 1e-6)
	assert.InDelta(t, 0, float64(f.Z()), 1e-6)
}

func TestCamera_ProjectionRemapsDepth(t *testing.T) {
	c := &Camera{FovDeg: 60, Near: 1, Far: 100}
	proj := c.ProjectionMatrix(1)

	// A point on the near plane lands at clip z = 0 under WebGPU conventions.
	clip := proj.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	assert.InDelta(t, 0, float64(clip.Z()/clip.W()), 1e-5)

	clipFar := proj.Mul4x1(mgl32.Vec4{0, 0, -100, 1})
	assert.InDelta(t, 1, float64(clipFar.Z()/clipFar.W()), 1e-5)
}

func TestCamera_ViewMatrixCentersTarget(t *testing.T) {
	c := &Camera{Position: mgl32.Vec3{0, 0, 10}}
	view := c.ViewMatrix()

	// The point straight ahead maps onto the view axis.
	p := view.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, float64(p.X()), 1e-5)
	assert.InDelta(t, 0, float64(p.Y()), 1e-5)
	assert.InDelta(t, -10, float64(p.Z()), 1e-5)
}
