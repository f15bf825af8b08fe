package umbra

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmitter() *ParticleEmitter {
	return &ParticleEmitter{
		Enabled:         true,
		Rotation:        mgl32.QuatIdent(),
		MaxParticles:    16,
		SpawnRate:       10,
		LifetimeRange:   [2]float32{1, 1},
		StartSpeedRange: [2]float32{1, 2},
		StartSizeRange:  [2]float32{0.1, 0.2},
	}
}

func TestParticles_SpawnAccumulator(t *testing.T) {
	ps := NewParticleSystem("", 1)
	ps.AddEmitter(newTestEmitter())

	// 10/sec at 0.05s steps spawns one particle every other step.
	ps.Step(0.05)
	assert.Equal(t, 0, ps.AliveCount())
	ps.Step(0.05)
	assert.Equal(t, 1, ps.AliveCount())
	ps.Step(0.05)
	assert.Equal(t, 1, ps.AliveCount())
	ps.Step(0.05)
	assert.Equal(t, 2, ps.AliveCount())
}

func TestParticles_CapacityClamp(t *testing.T) {
	ps := NewParticleSystem("", 1)
	em := newTestEmitter()
	em.MaxParticles = 4
	em.SpawnRate = 1000
	em.LifetimeRange = [2]float32{100, 100}
	ps.AddEmitter(em)

	for i := 0; i < 10; i++ {
		ps.Step(0.1)
	}
	assert.Equal(t, 4, ps.AliveCount())
}

func TestParticles_LifetimeKill(t *testing.T) {
	ps := NewParticleSystem("", 1)
	em := newTestEmitter()
	em.SpawnRate = 100
	em.LifetimeRange = [2]float32{0.2, 0.2}
	ps.AddEmitter(em)

	ps.Step(0.1)
	require.Greater(t, ps.AliveCount(), 0)

	// Stop spawning, let everything age out.
	em.SpawnRate = 0
	ps.Step(0.1)
	ps.Step(0.1)
	assert.Equal(t, 0, ps.AliveCount())
}

func TestParticles_DisabledEmitterIsInert(t *testing.T) {
	ps := NewParticleSystem("", 1)
	em := newTestEmitter()
	em.Enabled = false
	em.SpawnRate = 1000
	ps.AddEmitter(em)

	ps.Step(0.1)
	assert.Equal(t, 0, ps.AliveCount())
}

func TestParticles_GravityPullsDown(t *testing.T) {
	ps := NewParticleSystem("", 1)
	em := newTestEmitter()
	em.SpawnRate = 100
	em.StartSpeedRange = [2]float32{0, 0}
	em.Gravity = 10
	em.LifetimeRange = [2]float32{10, 10}
	em.Position = mgl32.Vec3{0, 5, 0}
	ps.AddEmitter(em)

	ps.Step(0.1)
	require.Greater(t, em.pool.alive, 0)
	for i := 0; i < 10; i++ {
		ps.Step(0.1)
	}
	assert.Less(t, em.pool.pos[0].Y(), float32(5))
	assert.Less(t, em.pool.vel[0].Y(), float32(0))
}

func TestParticles_NoDrawablesForShadowPasses(t *testing.T) {
	ps := NewParticleSystem("", 1)
	ps.meshRef = &Mesh{}
	em := newTestEmitter()
	em.SpawnRate = 100
	ps.AddEmitter(em)
	ps.Step(0.1)
	require.Greater(t, ps.AliveCount(), 0)

	assert.Empty(t, ps.AppendDrawables(nil, true))
	assert.Len(t, ps.AppendDrawables(nil, false), ps.AliveCount())
}

func TestSampleCone_ZeroAngleIsAxis(t *testing.T) {
	ps := NewParticleSystem("", 1)
	dir := sampleCone(ps.rng, mgl32.QuatIdent(), 0)
	assert.InDelta(t, 1, float64(dir.Y()), 1e-6)
}

func TestSampleCone_StaysInsideCone(t *testing.T) {
	ps := NewParticleSystem("", 1)
	const coneDeg = 30
	minCos := float32(0.8659) // cos(30 deg), with slack for float math

	for i := 0; i < 200; i++ {
		dir := sampleCone(ps.rng, mgl32.QuatIdent(), coneDeg)
		assert.InDelta(t, 1, float64(dir.Len()), 1e-5)
		assert.GreaterOrEqual(t, dir.Y(), minCos-1e-4)
	}
}
