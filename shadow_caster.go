package umbra

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// ShadowCaster is a per-frame snapshot of one shadow-casting light. It is
// rebuilt every frame; nothing in the shadow pipeline holds a pointer to the
// live Light.
type ShadowCaster struct {
	ID    LightID
	Index int

	Type      LightType
	Position  mgl32.Vec3
	Direction mgl32.Vec3

	OuterDeg    float32 // spot cone half-angle; FOV of the shadow frustum is twice this
	OrthoExtent float32 // directional ortho half-extent

	Bias       int32
	SlopeBias  float32
	NearPlane  float32
	FarPlane   float32
	Resolution int

	Importance     float32
	CullFrontFaces bool

	// ForceFullUpdate requests all six cubemap faces this frame regardless of
	// the round-robin position.
	ForceFullUpdate bool

	FrameIndex uint64
}

// snapshotCaster copies the scheduling-relevant fields out of a light.
func snapshotCaster(l *Light, frame uint64) ShadowCaster {
	importance := l.Importance
	if importance <= 0 {
		importance = 1.0
	}
	resolution := l.ShadowResolution
	if resolution <= 0 {
		resolution = 1024
	}
	return ShadowCaster{
		ID:              l.ID,
		Index:           l.Index,
		Type:            l.Type,
		Position:        l.Position,
		Direction:       l.Direction,
		OuterDeg:        l.OuterDeg,
		OrthoExtent:     l.OrthoExtent,
		Bias:            l.ShadowBias,
		SlopeBias:       l.ShadowSlopeBias,
		NearPlane:       l.ShadowNearPlane,
		FarPlane:        l.ShadowFarPlane,
		Resolution:      resolution,
		Importance:      importance,
		CullFrontFaces:  l.CullFrontFaces,
		ForceFullUpdate: l.UpdateShadowThisFrame,
		FrameIndex:      frame,
	}
}

// CollectShadowCasters filters enabled shadow-casting lights into the two
// scheduling lists. Spot lights go to the projective list with directional
// lights: both need exactly one view/projection. The returned lists are
// sorted by importance descending, ties broken by ascending registration
// index so the admission order is deterministic. This ordering is the
// admission policy: the scheduler takes list prefixes.
func CollectShadowCasters(reg *LightRegistry, frame uint64) (projective, point []ShadowCaster) {
	for _, l := range reg.Enabled() {
		if !l.CastsShadows {
			continue
		}
		caster := snapshotCaster(l, frame)
		switch l.Type {
		case LightTypePoint:
			point = append(point, caster)
		default:
			projective = append(projective, caster)
		}
	}

	byRank := func(list []ShadowCaster) func(i, j int) bool {
		return func(i, j int) bool {
			if list[i].Importance != list[j].Importance {
				return list[i].Importance > list[j].Importance
			}
			return list[i].Index < list[j].Index
		}
	}
	sort.SliceStable(projective, byRank(projective))
	sort.SliceStable(point, byRank(point))
	return projective, point
}
