package umbra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLightRegistry_AddAssignsIDAndIndex(t *testing.T) {
	reg := NewLightRegistry()

	a := &Light{Type: LightTypePoint, Enabled: true}
	id := reg.Add(a)

	require.NotEmpty(t, id)
	assert.Equal(t, 0, a.Index)
	assert.Same(t, a, reg.Get(id))

	b := NewLight(LightTypeSpot)
	reg.Add(b)
	assert.Equal(t, 1, b.Index)
	assert.Equal(t, 2, reg.Count())
}

func TestLightRegistry_Remove(t *testing.T) {
	reg := NewLightRegistry()
	id := reg.Add(NewLight(LightTypePoint))

	reg.Remove(id)
	assert.Nil(t, reg.Get(id))
	assert.Zero(t, reg.Count())
}

func TestLightRegistry_EnabledOrder(t *testing.T) {
	reg := NewLightRegistry()

	first := NewLight(LightTypePoint)
	reg.Add(first)

	off := NewLight(LightTypePoint)
	off.Enabled = false
	reg.Add(off)

	last := NewLight(LightTypeDirectional)
	reg.Add(last)

	enabled := reg.Enabled()
	require.Len(t, enabled, 2)
	assert.Same(t, first, enabled[0])
	assert.Same(t, last, enabled[1])

	assert.Len(t, reg.All(), 3)
}

func TestNewLight_Defaults(t *testing.T) {
	l := NewLight(LightTypeSpot)

	assert.True(t, l.Enabled)
	assert.False(t, l.CastsShadows)
	assert.Equal(t, float32(1.0), l.Importance)
	assert.Equal(t, 1024, l.ShadowResolution)
	assert.Equal(t, int32(2), l.ShadowBias)
	assert.True(t, l.CullFrontFaces)
}
