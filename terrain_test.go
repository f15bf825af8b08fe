package umbra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerrainHeight_Deterministic(t *testing.T) {
	p := DefaultTerrainParams()

	a := TerrainHeight(p, 12.5, -7.25)
	b := TerrainHeight(p, 12.5, -7.25)
	assert.Equal(t, a, b)
}

func TestTerrainHeight_AmplitudeBound(t *testing.T) {
	p := DefaultTerrainParams()

	for x := float32(-60); x <= 60; x += 7.3 {
		for z := float32(-60); z <= 60; z += 5.1 {
			h := TerrainHeight(p, x, z)
			assert.LessOrEqual(t, h, p.Height)
			assert.GreaterOrEqual(t, h, -p.Height)
		}
	}
}

func TestTerrainHeight_SeedChangesField(t *testing.T) {
	a := DefaultTerrainParams()
	b := a
	b.Seed = a.Seed + 1

	differs := false
	for x := float32(0); x < 50 && !differs; x += 11 {
		if TerrainHeight(a, x, 3) != TerrainHeight(b, x, 3) {
			differs = true
		}
	}
	assert.True(t, differs, "different seeds should produce different terrain")
}

func TestValueNoise_Range(t *testing.T) {
	for x := float32(-5); x < 5; x += 0.37 {
		for z := float32(-5); z < 5; z += 0.53 {
			v := valueNoise2D(x, z, 42)
			assert.LessOrEqual(t, v, float32(1))
			assert.GreaterOrEqual(t, v, float32(-1))
		}
	}
}

func TestValueNoise_InterpolatesLattice(t *testing.T) {
	// At integer lattice points the noise equals the lattice value itself.
	assert.Equal(t, latticeValue(3, -2, 9), valueNoise2D(3, -2, 9))
}
