package umbra

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// ParticleEmitter is a CPU-simulated emitter. Keep parameters minimal; can
// extend later.
type ParticleEmitter struct {
	Enabled bool

	Position mgl32.Vec3
	Rotation mgl32.Quat

	MaxParticles int

	SpawnRate        float32    // particles per second
	LifetimeRange    [2]float32 // seconds (min,max)
	StartSpeedRange  [2]float32 // units/sec (min,max)
	StartSizeRange   [2]float32 // world units (min,max)
	StartColorMin    [4]float32 // RGBA min (0..1)
	StartColorMax    [4]float32 // RGBA max (0..1)
	Gravity          float32    // positive acceleration downward
	Drag             float32    // per-second linear drag
	ConeAngleDegrees float32    // 0=along emitter up axis; larger spreads

	pool particlePool
}

// particlePool is the SoA particle storage with swap-remove kills.
type particlePool struct {
	pos   []mgl32.Vec3
	vel   []mgl32.Vec3
	age   []float32
	life  []float32
	size  []float32
	color [][4]float32

	alive    int
	spawnAcc float32 // fractional spawns accumulator
	capacity int
}

func (p *particlePool) ensure(capacity int) {
	if capacity <= 0 {
		capacity = 1
	}
	if p.capacity == capacity && p.pos != nil {
		return
	}
	p.capacity = capacity
	p.pos = make([]mgl32.Vec3, capacity)
	p.vel = make([]mgl32.Vec3, capacity)
	p.age = make([]float32, capacity)
	p.life = make([]float32, capacity)
	p.size = make([]float32, capacity)
	p.color = make([][4]float32, capacity)
	p.alive = 0
	p.spawnAcc = 0
}

// Swap-remove one particle
func (p *particlePool) killAt(i int) {
	last := p.alive - 1
	p.pos[i] = p.pos[last]
	p.vel[i] = p.vel[last]
	p.age[i] = p.age[last]
	p.life[i] = p.life[last]
	p.size[i] = p.size[last]
	p.color[i] = p.color[last]
	p.alive--
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// sampleCone picks a direction uniformly inside a cone around the emitter's
// up axis (0,1,0), rotated by the emitter rotation.
func sampleCone(rng *rand.Rand, rot mgl32.Quat, coneDeg float32) mgl32.Vec3 {
	axis := mgl32.Vec3{0, 1, 0}
	if coneDeg <= 0.0 {
		return rot.Rotate(axis).Normalize()
	}
	thetaMax := float32(math.Pi) * (coneDeg / 180.0)
	u := rng.Float32()
	v := rng.Float32()
	cosTheta := lerp(float32(math.Cos(float64(thetaMax))), 1.0, u)
	sinTheta := float32(math.Sqrt(float64(1.0 - cosTheta*cosTheta)))
	phi := 2.0 * float32(math.Pi) * v

	local := mgl32.Vec3{
		float32(math.Cos(float64(phi))) * sinTheta,
		cosTheta,
		float32(math.Sin(float64(phi))) * sinTheta,
	}
	return rot.Rotate(local).Normalize()
}

// ParticleSystem owns every emitter and contributes drawables to the main
// pass. Particles never cast shadows.
type ParticleSystem struct {
	Emitters []*ParticleEmitter

	mesh    MeshID
	meshRef *Mesh
	rng     *rand.Rand
}

func NewParticleSystem(mesh MeshID, seed int64) *ParticleSystem {
	return &ParticleSystem{
		mesh: mesh,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (ps *ParticleSystem) AddEmitter(em *ParticleEmitter) *ParticleEmitter {
	ps.Emitters = append(ps.Emitters, em)
	return em
}

// AliveCount returns the number of live particles across all emitters.
func (ps *ParticleSystem) AliveCount() int {
	total := 0
	for _, em := range ps.Emitters {
		total += em.pool.alive
	}
	return total
}

// Step advances every enabled emitter by dt seconds.
func (ps *ParticleSystem) Step(dt float32) {
	if dt <= 0 {
		dt = 1.0 / 60.0
	}
	for _, em := range ps.Emitters {
		if !em.Enabled || em.MaxParticles <= 0 {
			continue
		}
		pl := &em.pool
		pl.ensure(em.MaxParticles)

		// Spawn
		pl.spawnAcc += em.SpawnRate * dt
		spawnCount := int(pl.spawnAcc)
		if spawnCount > 0 {
			pl.spawnAcc -= float32(spawnCount)
		}
		if spawnCount > em.MaxParticles-pl.alive {
			spawnCount = em.MaxParticles - pl.alive
		}
		for i := 0; i < spawnCount; i++ {
			idx := pl.alive
			pl.alive++

			pl.pos[idx] = em.Position

			dir := sampleCone(ps.rng, em.Rotation, em.ConeAngleDegrees)
			speed := lerp(em.StartSpeedRange[0], em.StartSpeedRange[1], ps.rng.Float32())
			pl.vel[idx] = dir.Mul(speed)

			pl.age[idx] = 0
			pl.life[idx] = lerp(em.LifetimeRange[0], em.LifetimeRange[1], ps.rng.Float32())
			pl.size[idx] = lerp(em.StartSizeRange[0], em.StartSizeRange[1], ps.rng.Float32())

			var c [4]float32
			for j := 0; j < 4; j++ {
				c[j] = lerp(em.StartColorMin[j], em.StartColorMax[j], ps.rng.Float32())
			}
			pl.color[idx] = c
		}

		// Integrate
		drag := float32(math.Max(0, float64(1.0-em.Drag*dt)))
		grav := em.Gravity
		i := 0
		for i < pl.alive {
			v := pl.vel[i]
			v = v.Add(mgl32.Vec3{0, -grav * dt, 0})
			v = v.Mul(drag)
			p := pl.pos[i].Add(v.Mul(dt))

			age := pl.age[i] + dt
			if age >= pl.life[i] {
				pl.killAt(i)
				continue
			}

			pl.vel[i] = v
			pl.pos[i] = p
			pl.age[i] = age
			i++
		}
	}
}

// AppendDrawables packs live particles as emissive drawables for the main
// pass. Shadow passes get nothing.
func (ps *ParticleSystem) AppendDrawables(dst []Drawable, shadowsOnly bool) []Drawable {
	if shadowsOnly || ps.meshRef == nil {
		return dst
	}
	for _, em := range ps.Emitters {
		pl := &em.pool
		for i := 0; i < pl.alive; i++ {
			p := pl.pos[i]
			s := pl.size[i]
			fade := 1.0 - pl.age[i]/pl.life[i]
			model := mgl32.Translate3D(p.X(), p.Y(), p.Z()).Mul4(mgl32.Scale3D(s, s, s))
			dst = append(dst, Drawable{
				Mesh:  ps.meshRef,
				Model: model,
				Material: Material{
					BaseColor: pl.color[i],
					Roughness: 1,
					Emissive:  1.5 * fade,
				},
			})
		}
	}
	return dst
}

var _ DrawableSource = (*ParticleSystem)(nil)

// ParticlesModule installs the particle system with a shared billboard-sized
// cube mesh and registers it as a drawable source.
type ParticlesModule struct {
	Seed int64
}

func (m ParticlesModule) Install(app *App) {
	meshes := resource[MeshRegistry](app)

	id, err := CreateCubeMesh(meshes, 1)
	if err != nil {
		app.Logger().Errorf("particles: mesh upload failed: %v", err)
		return
	}
	seed := m.Seed
	if seed == 0 {
		seed = 1
	}
	ps := NewParticleSystem(id, seed)
	ps.meshRef = meshes.Mesh(id)
	meshes.AddSource(ps)
	app.AddResources(ps)
	app.UseSystem(System(particleSystem).InStage(Update))
}

func particleSystem(ps *ParticleSystem, t *Time) {
	ps.Step(float32(t.Dt))
}
