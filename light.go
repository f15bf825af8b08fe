package umbra

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type LightType uint32

const (
	LightTypePoint       LightType = 0
	LightTypeDirectional LightType = 1
	LightTypeSpot        LightType = 2
)

// LightID is a stable opaque identifier. It survives removal and reordering
// of other lights, so persistent shadow state keyed by it can never reattach
// to the wrong light.
type LightID string

func NewLightID() LightID {
	return LightID(uuid.NewString())
}

// Light is a scene light plus its shadow-casting parameters. Mutated by UI
// and animation controllers; lives in the registry until removed.
type Light struct {
	ID    LightID
	Index int // registration order, used only for deterministic tie-breaks

	Type      LightType
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Color     [3]float32
	Intensity float32
	Range     float32
	InnerDeg  float32 // spot inner cone half-angle, degrees
	OuterDeg  float32 // spot outer cone half-angle, degrees

	Enabled      bool
	CastsShadows bool

	// Shadow parameters. Bias values are hardware depth-bias units; both zero
	// disables biasing for the caster entirely.
	OrthoExtent      float32 // directional ortho half-extent, world units
	ShadowBias       int32   // constant depth bias
	ShadowSlopeBias  float32 // slope-scaled depth bias
	ShadowNearPlane  float32
	ShadowFarPlane   float32
	ShadowResolution int
	CullFrontFaces   bool

	// Importance ranks this light for shadow slot admission. It is a plain
	// scheduling input: callers that want distance-based ranking compute it
	// themselves. Defaults to 1.0.
	Importance float32

	// UpdateShadowThisFrame forces a full cubemap refresh on the next frame,
	// e.g. right after a large movement. Cleared by the shadow pass.
	UpdateShadowThisFrame bool
}

// NewLight returns a light with the same defaults the editor uses.
func NewLight(lightType LightType) *Light {
	return &Light{
		ID:               NewLightID(),
		Type:             lightType,
		Direction:        mgl32.Vec3{0, -1, 0},
		Color:            [3]float32{1, 1, 1},
		Intensity:        1.0,
		Range:            15.0,
		InnerDeg:         25,
		OuterDeg:         35,
		Enabled:          true,
		CastsShadows:     false,
		OrthoExtent:      40,
		ShadowBias:       2,
		ShadowSlopeBias:  2.0,
		ShadowNearPlane:  0.1,
		ShadowFarPlane:   100,
		ShadowResolution: 1024,
		CullFrontFaces:   true,
		Importance:       1.0,
	}
}

// LightRegistry owns all non-ephemeral lights in the scene.
type LightRegistry struct {
	lights    map[LightID]*Light
	nextIndex int
}

func NewLightRegistry() *LightRegistry {
	return &LightRegistry{lights: make(map[LightID]*Light)}
}

// Add registers the light and assigns its tie-break index.
func (r *LightRegistry) Add(l *Light) LightID {
	if l.ID == "" {
		l.ID = NewLightID()
	}
	l.Index = r.nextIndex
	r.nextIndex++
	r.lights[l.ID] = l
	return l.ID
}

func (r *LightRegistry) Remove(id LightID) {
	delete(r.lights, id)
}

func (r *LightRegistry) Get(id LightID) *Light {
	return r.lights[id]
}

func (r *LightRegistry) Count() int {
	return len(r.lights)
}

// All returns every registered light ordered by registration index.
func (r *LightRegistry) All() []*Light {
	res := make([]*Light, 0, len(r.lights))
	for _, l := range r.lights {
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res
}

// Enabled returns enabled lights ordered by registration index.
func (r *LightRegistry) Enabled() []*Light {
	res := make([]*Light, 0, len(r.lights))
	for _, l := range r.lights {
		if l.Enabled {
			res = append(res, l)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res
}

// LightModule installs the light registry.
type LightModule struct{}

func (LightModule) Install(app *App) {
	app.AddResources(NewLightRegistry())
}
