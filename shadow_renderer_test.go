package umbra

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ndcOf projects a world point and returns normalized device coordinates.
func ndcOf(m mgl32.Mat4, p mgl32.Vec3) (mgl32.Vec3, float32) {
	clip := m.Mul4x1(mgl32.Vec4{p.X(), p.Y(), p.Z(), 1})
	w := clip.W()
	return mgl32.Vec3{clip.X() / w, clip.Y() / w, clip.Z() / w}, w
}

func TestSanitizeDirection(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, sanitizeDirection(mgl32.Vec3{}))
	assert.InDelta(t, 1.0, float64(sanitizeDirection(mgl32.Vec3{3, 4, 0}).Len()), 1e-6)
}

func TestUpFor(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, upFor(mgl32.Vec3{0, -1, 0}))
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, upFor(mgl32.Vec3{0, 1, 0}))
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, upFor(mgl32.Vec3{1, 0, 0}))
}

func TestProjectiveViewProj_SpotCentersTarget(t *testing.T) {
	c := ShadowCaster{
		Type:      LightTypeSpot,
		Position:  mgl32.Vec3{0, 10, 0},
		Direction: mgl32.Vec3{0, -1, 0},
		OuterDeg:  35,
		NearPlane: 0.1,
		FarPlane:  50,
	}

	m := ProjectiveViewProj(c)
	ndc, w := ndcOf(m, mgl32.Vec3{0, 0, 0})

	require.Greater(t, w, float32(0))
	assert.InDelta(t, 0, float64(ndc.X()), 1e-5)
	assert.InDelta(t, 0, float64(ndc.Y()), 1e-5)
	assert.Greater(t, ndc.Z(), float32(0), "depth is remapped to [0,1]")
	assert.Less(t, ndc.Z(), float32(1))
}

func TestProjectiveViewProj_SpotConeEdge(t *testing.T) {
	c := ShadowCaster{
		Type:      LightTypeSpot,
		Position:  mgl32.Vec3{},
		Direction: mgl32.Vec3{0, 0, -1},
		OuterDeg:  30,
		NearPlane: 0.1,
		FarPlane:  100,
	}

	// The shadow frustum FOV is twice the outer half-angle, so a point on the
	// cone edge lands exactly on the map border.
	m := ProjectiveViewProj(c)
	edge := mgl32.Vec3{float32(10 * 0.57735), 0, -10} // tan(30 deg) * 10
	ndc, _ := ndcOf(m, edge)

	assert.InDelta(t, 1, float64(mgl32.Abs(ndc.X())), 1e-3)
	assert.InDelta(t, 0, float64(ndc.Y()), 1e-5)
}

func TestProjectiveViewProj_DirectionalOrtho(t *testing.T) {
	c := ShadowCaster{
		Type:        LightTypeDirectional,
		Position:    mgl32.Vec3{0, 20, 0},
		Direction:   mgl32.Vec3{0, -1, 0},
		OrthoExtent: 10,
		NearPlane:   0.1,
		FarPlane:    100,
	}

	m := ProjectiveViewProj(c)

	ndcCenter, _ := ndcOf(m, mgl32.Vec3{0, 0, 0})
	assert.InDelta(t, 0, float64(ndcCenter.X()), 1e-5)
	assert.InDelta(t, 0, float64(ndcCenter.Y()), 1e-5)

	// A point at the ortho half-extent maps to the NDC border.
	ndcEdge, _ := ndcOf(m, mgl32.Vec3{10, 0, 0})
	assert.InDelta(t, 1, float64(mgl32.Abs(ndcEdge.X())), 1e-4)
}

func TestProjectiveViewProj_DirectionalExtentDefault(t *testing.T) {
	c := ShadowCaster{
		Type:      LightTypeDirectional,
		Position:  mgl32.Vec3{0, 20, 0},
		Direction: mgl32.Vec3{0, -1, 0},
		NearPlane: 0.1,
		FarPlane:  100,
	}

	m := ProjectiveViewProj(c)
	ndc, _ := ndcOf(m, mgl32.Vec3{40, 0, 0})
	assert.InDelta(t, 1, float64(mgl32.Abs(ndc.X())), 1e-4, "zero extent falls back to 40")
}

func TestPointFaceViewProj_FacesCenterTheirAxis(t *testing.T) {
	c := ShadowCaster{
		Type:      LightTypePoint,
		Position:  mgl32.Vec3{2, 3, 4},
		NearPlane: 0.1,
		FarPlane:  50,
	}

	for face, basis := range cubeFaceBases {
		t.Run(fmt.Sprintf("face%d", face), func(t *testing.T) {
			m := PointFaceViewProj(c, face)
			target := c.Position.Add(basis.forward.Mul(10))
			ndc, w := ndcOf(m, target)

			require.Greater(t, w, float32(0))
			assert.InDelta(t, 0, float64(ndc.X()), 1e-5)
			assert.InDelta(t, 0, float64(ndc.Y()), 1e-5)
		})
	}
}

func TestPointFaceViewProj_NinetyDegreeFrustum(t *testing.T) {
	c := ShadowCaster{
		Type:      LightTypePoint,
		Position:  mgl32.Vec3{},
		NearPlane: 0.1,
		FarPlane:  50,
	}

	// With a 90 degree square frustum, a point offset sideways by the viewing
	// distance sits exactly on the frustum border.
	m := PointFaceViewProj(c, 0) // +X face
	ndc, _ := ndcOf(m, mgl32.Vec3{10, 10, 0})
	assert.InDelta(t, 1, float64(mgl32.Abs(ndc.Y())), 1e-4)
}

func TestShadowBindings_UniformSizes(t *testing.T) {
	b := NewShadowBindings()

	assert.Equal(t, MaxShadowLights*80, len(b.ProjectiveBytes()))
	assert.Equal(t, MaxShadowLights*32, len(b.PointBytes()))
}

func TestShadowBindings_InfoForLight_Unknown(t *testing.T) {
	b := NewShadowBindings()
	info, ok := b.InfoForLight("nope")
	assert.False(t, ok)
	assert.False(t, info.Active)
}
