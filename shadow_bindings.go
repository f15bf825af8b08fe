package umbra

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ProjectiveShadowGPU is the per-slot uniform block for directional and spot
// shadows. Field order and padding match the WGSL struct; 80 bytes.
type ProjectiveShadowGPU struct {
	ViewProj      mgl32.Mat4
	Near          float32
	Far           float32
	InvResolution float32
	LightType     float32
}

// PointShadowGPU is the per-slot uniform block for point shadows; 32 bytes.
type PointShadowGPU struct {
	Position      [3]float32
	Far           float32
	Near          float32
	InvResolution float32
	Pad           [2]float32
}

// LightShadowInfo tells the shading pass where one light's shadow data lives
// this frame.
type LightShadowInfo struct {
	Active bool
	Kind   LightType
	Slot   int
}

// ShadowBindings is what the shadow subsystem publishes for consumers each
// frame: texture views, samplers, slot uniforms, and the per-light slot map.
// Every view is always non-nil; lights without storage get the 1x1 fallback.
type ShadowBindings struct {
	ArrayView      *wgpu.TextureView
	CubeViews      [MaxShadowLights]*wgpu.TextureView
	CompareSampler *wgpu.Sampler
	RawSampler     *wgpu.Sampler

	Projective [MaxShadowLights]ProjectiveShadowGPU
	Points     [MaxShadowLights]PointShadowGPU

	// Generation increments whenever a view handle changed, signaling
	// consumers to rebuild bind groups.
	Generation uint64

	info map[LightID]LightShadowInfo
}

func NewShadowBindings() *ShadowBindings {
	return &ShadowBindings{info: make(map[LightID]LightShadowInfo)}
}

// InfoForLight returns this frame's slot assignment for a light. Lights that
// were evicted or never admitted report Active false.
func (b *ShadowBindings) InfoForLight(id LightID) (LightShadowInfo, bool) {
	info, ok := b.info[id]
	return info, ok
}

// ActiveCount returns how many slots are live, per kind.
func (b *ShadowBindings) ActiveCount() (projective, point int) {
	for _, info := range b.info {
		if !info.Active {
			continue
		}
		if info.Kind == LightTypePoint {
			point++
		} else {
			projective++
		}
	}
	return projective, point
}

// ProjectiveBytes marshals the projective slot uniforms for upload.
func (b *ShadowBindings) ProjectiveBytes() []byte {
	return wgpu.ToBytes(b.Projective[:])
}

// PointBytes marshals the point slot uniforms for upload.
func (b *ShadowBindings) PointBytes() []byte {
	return wgpu.ToBytes(b.Points[:])
}

// Publish rebuilds the bindings from this frame's plan and pool state. Called
// after the depth passes are encoded, before the main pass consumes them.
func (b *ShadowBindings) Publish(plan FrameShadowPlan, pool *ShadowPool) {
	arrayView := pool.ArrayView()
	var cubeViews [MaxShadowLights]*wgpu.TextureView
	for i := range cubeViews {
		cubeViews[i] = pool.FallbackCubeView()
	}

	b.Projective = [MaxShadowLights]ProjectiveShadowGPU{}
	b.Points = [MaxShadowLights]PointShadowGPU{}
	for id := range b.info {
		delete(b.info, id)
	}

	for _, adm := range plan.Projective {
		c := adm.Caster
		b.Projective[adm.Layer] = ProjectiveShadowGPU{
			ViewProj:      ProjectiveViewProj(c),
			Near:          c.NearPlane,
			Far:           c.FarPlane,
			InvResolution: 1.0 / float32(pool.ArrayResolution()),
			LightType:     float32(c.Type),
		}
		b.info[c.ID] = LightShadowInfo{Active: true, Kind: c.Type, Slot: adm.Layer}
	}

	for _, adm := range plan.Points {
		c := adm.Caster
		cube := pool.Cube(c.ID)
		if cube == nil {
			b.info[c.ID] = LightShadowInfo{Active: false, Kind: c.Type}
			continue
		}
		cubeViews[adm.Slot] = cube.CubeView
		b.Points[adm.Slot] = PointShadowGPU{
			Position:      [3]float32{c.Position.X(), c.Position.Y(), c.Position.Z()},
			Far:           c.FarPlane,
			Near:          c.NearPlane,
			InvResolution: 1.0 / float32(cube.Resolution),
		}
		b.info[c.ID] = LightShadowInfo{Active: true, Kind: c.Type, Slot: adm.Slot}
	}

	for _, id := range plan.Inactive {
		if _, ok := b.info[id]; !ok {
			b.info[id] = LightShadowInfo{Active: false}
		}
	}
	for _, id := range plan.Evicted {
		if _, ok := b.info[id]; !ok {
			b.info[id] = LightShadowInfo{Active: false}
		}
	}

	changed := arrayView != b.ArrayView ||
		b.CompareSampler != pool.CompareSampler() ||
		b.RawSampler != pool.RawSampler()
	for i := range cubeViews {
		if cubeViews[i] != b.CubeViews[i] {
			changed = true
		}
	}
	b.ArrayView = arrayView
	b.CubeViews = cubeViews
	b.CompareSampler = pool.CompareSampler()
	b.RawSampler = pool.RawSampler()
	if changed {
		b.Generation++
	}
}
