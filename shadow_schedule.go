package umbra

import (
	"sort"
)

const (
	// MaxShadowLights caps concurrently active shadow slots per kind
	// (projective array layers, point cubemaps).
	MaxShadowLights = 4

	// BasePointFacesPerFrame is how many cubemap faces a point light renders
	// in a steady-state frame. Spreads the six-face cost over three frames.
	BasePointFacesPerFrame = 2

	// CubeFaceCount is the number of cubemap faces.
	CubeFaceCount = 6
)

// ProjectiveAdmission assigns one directional/spot caster to a depth-array
// layer for this frame.
type ProjectiveAdmission struct {
	Caster ShadowCaster
	Layer  int
}

// PointAdmission assigns one point caster to an output cube slot and lists
// the faces to render this frame.
type PointAdmission struct {
	Caster      ShadowCaster
	Slot        int // importance-ordered output slot; not stable across frames
	Faces       []int
	FullRefresh bool
}

// FrameShadowPlan is the scheduler's complete decision for one frame. It
// contains no GPU types; the resource pool and renderer execute it.
type FrameShadowPlan struct {
	Projective []ProjectiveAdmission

	// ArrayResolution is the shared resolution of the depth array this frame:
	// the max requested among admitted projective casters. One array texture
	// at a compromise resolution instead of N independently sized textures.
	ArrayResolution int

	Points []PointAdmission

	// Evicted lists point lights whose cubemaps must be freed this frame.
	Evicted []LightID

	// Inactive lists casters that requested a slot and did not get one. Their
	// shading falls back to fully lit.
	Inactive []LightID
}

type pointSlotState struct {
	nextFace  int
	lastFrame uint64
}

// ShadowScheduler decides which casters get shadow storage each frame. The
// per-light face counters are the only state that survives between frames;
// everything else in the plan is recomputed from the caster lists.
type ShadowScheduler struct {
	points map[LightID]*pointSlotState
}

func NewShadowScheduler() *ShadowScheduler {
	return &ShadowScheduler{points: make(map[LightID]*pointSlotState)}
}

// Schedule enforces the capacity caps and computes per-light update cadence.
// Input lists must already be sorted by importance (CollectShadowCasters
// does this); admission takes list prefixes.
func (s *ShadowScheduler) Schedule(projective, point []ShadowCaster) FrameShadowPlan {
	var plan FrameShadowPlan

	// Projective: top-N share one depth array.
	activeProjective := min(len(projective), MaxShadowLights)
	for i := 0; i < activeProjective; i++ {
		plan.Projective = append(plan.Projective, ProjectiveAdmission{
			Caster: projective[i],
			Layer:  i,
		})
		if projective[i].Resolution > plan.ArrayResolution {
			plan.ArrayResolution = projective[i].Resolution
		}
	}
	for i := activeProjective; i < len(projective); i++ {
		plan.Inactive = append(plan.Inactive, projective[i].ID)
	}

	// Point: top-N keep or create a persistent cube slot.
	activePoint := min(len(point), MaxShadowLights)
	admitted := make(map[LightID]bool, activePoint)
	for i := 0; i < activePoint; i++ {
		caster := point[i]
		admitted[caster.ID] = true

		state, exists := s.points[caster.ID]
		if !exists {
			state = &pointSlotState{}
			s.points[caster.ID] = state
		}

		fullRefresh := !exists || caster.ForceFullUpdate
		var faces []int
		if fullRefresh {
			faces = allCubeFaces()
			state.nextFace = 0
		} else {
			for f := 0; f < BasePointFacesPerFrame; f++ {
				faces = append(faces, (state.nextFace+f)%CubeFaceCount)
			}
			state.nextFace = (state.nextFace + BasePointFacesPerFrame) % CubeFaceCount
		}
		state.lastFrame = caster.FrameIndex

		plan.Points = append(plan.Points, PointAdmission{
			Caster:      caster,
			Slot:        i,
			Faces:       faces,
			FullRefresh: fullRefresh,
		})
	}
	for i := activePoint; i < len(point); i++ {
		plan.Inactive = append(plan.Inactive, point[i].ID)
	}

	// Trim: any persistent slot not admitted this frame is released now.
	// Evicted cubemaps are freed immediately, never kept cold; re-admission
	// reallocates and renders all six faces.
	for id := range s.points {
		if !admitted[id] {
			delete(s.points, id)
			plan.Evicted = append(plan.Evicted, id)
		}
	}

	// Safety net: the persistent map must never exceed the cap. The primary
	// path already trims to at most MaxShadowLights; if a future change
	// creates entries before trimming, drop the lowest-ranked extras here.
	if len(s.points) > MaxShadowLights {
		ranked := make([]ShadowCaster, 0, len(point))
		for _, c := range point {
			if _, ok := s.points[c.ID]; ok {
				ranked = append(ranked, c)
			}
		}
		for i := MaxShadowLights; i < len(ranked); i++ {
			delete(s.points, ranked[i].ID)
			plan.Evicted = append(plan.Evicted, ranked[i].ID)
		}
	}
	sort.Slice(plan.Evicted, func(i, j int) bool { return plan.Evicted[i] < plan.Evicted[j] })

	return plan
}

func allCubeFaces() []int {
	return []int{0, 1, 2, 3, 4, 5}
}

// ResetFaceRotation restarts a light's round-robin at face zero. Called when
// cube storage was reallocated outside the scheduler's view, so the forced
// all-face pass that follows lines up with the rotation state.
func (s *ShadowScheduler) ResetFaceRotation(id LightID) {
	if state, ok := s.points[id]; ok {
		state.nextFace = 0
	}
}

// HasSlot reports whether a point light currently holds a persistent cube
// slot. Exposed for the debug overlay.
func (s *ShadowScheduler) HasSlot(id LightID) bool {
	_, ok := s.points[id]
	return ok
}

// SlotCount returns the number of persistent point slots.
func (s *ShadowScheduler) SlotCount() int {
	return len(s.points)
}
