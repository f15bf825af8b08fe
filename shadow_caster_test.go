package umbra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectShadowCasters_FiltersNonCasters(t *testing.T) {
	reg := NewLightRegistry()

	casting := NewLight(LightTypeSpot)
	casting.CastsShadows = true
	reg.Add(casting)

	plain := NewLight(LightTypeSpot)
	reg.Add(plain)

	disabled := NewLight(LightTypePoint)
	disabled.CastsShadows = true
	disabled.Enabled = false
	reg.Add(disabled)

	projective, point := CollectShadowCasters(reg, 0)

	require.Len(t, projective, 1)
	assert.Equal(t, casting.ID, projective[0].ID)
	assert.Empty(t, point)
}

func TestCollectShadowCasters_SplitsByKind(t *testing.T) {
	reg := NewLightRegistry()

	for _, lt := range []LightType{LightTypeDirectional, LightTypeSpot, LightTypePoint} {
		l := NewLight(lt)
		l.CastsShadows = true
		reg.Add(l)
	}

	projective, point := CollectShadowCasters(reg, 0)

	// Directional and spot lights both need a single view/projection, so they
	// share the projective list.
	assert.Len(t, projective, 2)
	require.Len(t, point, 1)
	assert.Equal(t, LightTypePoint, point[0].Type)
}

func TestCollectShadowCasters_SortsByImportanceThenIndex(t *testing.T) {
	reg := NewLightRegistry()

	low := NewLight(LightTypePoint)
	low.CastsShadows = true
	low.Importance = 1
	reg.Add(low)

	high := NewLight(LightTypePoint)
	high.CastsShadows = true
	high.Importance = 5
	reg.Add(high)

	tiedA := NewLight(LightTypePoint)
	tiedA.CastsShadows = true
	tiedA.Importance = 3
	reg.Add(tiedA)

	tiedB := NewLight(LightTypePoint)
	tiedB.CastsShadows = true
	tiedB.Importance = 3
	reg.Add(tiedB)

	_, point := CollectShadowCasters(reg, 0)

	require.Len(t, point, 4)
	assert.Equal(t, high.ID, point[0].ID)
	assert.Equal(t, tiedA.ID, point[1].ID, "ties break by registration order")
	assert.Equal(t, tiedB.ID, point[2].ID)
	assert.Equal(t, low.ID, point[3].ID)
}

func TestSnapshotCaster_Defaults(t *testing.T) {
	l := NewLight(LightTypePoint)
	l.Importance = 0
	l.ShadowResolution = 0

	caster := snapshotCaster(l, 7)

	assert.Equal(t, float32(1.0), caster.Importance)
	assert.Equal(t, 1024, caster.Resolution)
	assert.Equal(t, uint64(7), caster.FrameIndex)
}

func TestSnapshotCaster_CarriesForceFlag(t *testing.T) {
	l := NewLight(LightTypePoint)
	l.UpdateShadowThisFrame = true

	caster := snapshotCaster(l, 0)
	assert.True(t, caster.ForceFullUpdate)
}
