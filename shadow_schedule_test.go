package umbra

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointCaster(id string, index int, importance float32) ShadowCaster {
	return ShadowCaster{
		ID:         LightID(id),
		Index:      index,
		Type:       LightTypePoint,
		Importance: importance,
		Resolution: 512,
		NearPlane:  0.1,
		FarPlane:   50,
	}
}

func projectiveCaster(id string, index int, importance float32, resolution int) ShadowCaster {
	return ShadowCaster{
		ID:         LightID(id),
		Index:      index,
		Type:       LightTypeSpot,
		Importance: importance,
		Resolution: resolution,
		OuterDeg:   35,
		NearPlane:  0.1,
		FarPlane:   50,
	}
}

func TestSchedule_ProjectiveCapacity(t *testing.T) {
	s := NewShadowScheduler()

	var projective []ShadowCaster
	for i := 0; i < MaxShadowLights+3; i++ {
		projective = append(projective, projectiveCaster(fmt.Sprintf("spot-%d", i), i, float32(10-i), 1024))
	}

	plan := s.Schedule(projective, nil)

	require.Len(t, plan.Projective, MaxShadowLights)
	assert.Len(t, plan.Inactive, 3)
	for i, adm := range plan.Projective {
		assert.Equal(t, i, adm.Layer, "layers are assigned in importance order")
	}
}

func TestSchedule_ArrayResolutionIsMaxAdmitted(t *testing.T) {
	s := NewShadowScheduler()

	projective := []ShadowCaster{
		projectiveCaster("a", 0, 5, 1024),
		projectiveCaster("b", 1, 4, 2048),
		projectiveCaster("c", 2, 3, 512),
	}
	plan := s.Schedule(projective, nil)

	assert.Equal(t, 2048, plan.ArrayResolution)
}

func TestSchedule_ArrayResolutionIgnoresUnadmitted(t *testing.T) {
	s := NewShadowScheduler()

	var projective []ShadowCaster
	for i := 0; i < MaxShadowLights; i++ {
		projective = append(projective, projectiveCaster(fmt.Sprintf("p-%d", i), i, 10, 1024))
	}
	// Highest resolution but lowest importance; must not inflate the array.
	projective = append(projective, projectiveCaster("huge", 99, 1, 4096))

	plan := s.Schedule(projective, nil)

	assert.Equal(t, 1024, plan.ArrayResolution)
	assert.Contains(t, plan.Inactive, LightID("huge"))
}

func TestSchedule_PointCapacityAndRanking(t *testing.T) {
	s := NewShadowScheduler()

	// Ten point lights with importance 10..1, as in a crowded scene.
	var point []ShadowCaster
	for i := 0; i < 10; i++ {
		point = append(point, pointCaster(fmt.Sprintf("pt-%d", i), i, float32(10-i)))
	}

	plan := s.Schedule(nil, point)

	require.Len(t, plan.Points, MaxShadowLights)
	for i, adm := range plan.Points {
		assert.Equal(t, LightID(fmt.Sprintf("pt-%d", i)), adm.Caster.ID)
		assert.Equal(t, i, adm.Slot, "output slots follow importance order")
	}
	assert.Len(t, plan.Inactive, 6)
	assert.Equal(t, MaxShadowLights, s.SlotCount())
}

func TestSchedule_NewSlotGetsFullRefresh(t *testing.T) {
	s := NewShadowScheduler()

	plan := s.Schedule(nil, []ShadowCaster{pointCaster("a", 0, 1)})

	require.Len(t, plan.Points, 1)
	assert.True(t, plan.Points[0].FullRefresh)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, plan.Points[0].Faces)
}

func TestSchedule_RoundRobinCoversAllFaces(t *testing.T) {
	s := NewShadowScheduler()
	caster := pointCaster("a", 0, 1)

	// First frame allocates and renders everything.
	s.Schedule(nil, []ShadowCaster{caster})

	// Three steady-state frames cover all six faces in order.
	var seen []int
	for frame := 0; frame < 3; frame++ {
		plan := s.Schedule(nil, []ShadowCaster{caster})
		require.Len(t, plan.Points, 1)
		adm := plan.Points[0]
		assert.False(t, adm.FullRefresh)
		assert.Len(t, adm.Faces, BasePointFacesPerFrame)
		seen = append(seen, adm.Faces...)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, seen)

	// The rotation wraps around.
	plan := s.Schedule(nil, []ShadowCaster{caster})
	assert.Equal(t, []int{0, 1}, plan.Points[0].Faces)
}

func TestSchedule_ForceFullUpdate(t *testing.T) {
	s := NewShadowScheduler()
	caster := pointCaster("a", 0, 1)

	s.Schedule(nil, []ShadowCaster{caster})
	s.Schedule(nil, []ShadowCaster{caster}) // rotation now at face 2

	forced := caster
	forced.ForceFullUpdate = true
	plan := s.Schedule(nil, []ShadowCaster{forced})

	require.Len(t, plan.Points, 1)
	assert.True(t, plan.Points[0].FullRefresh)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, plan.Points[0].Faces)

	// The forced refresh resets the rotation.
	plan = s.Schedule(nil, []ShadowCaster{caster})
	assert.Equal(t, []int{0, 1}, plan.Points[0].Faces)
}

func TestSchedule_EvictionIsImmediate(t *testing.T) {
	s := NewShadowScheduler()

	var point []ShadowCaster
	for i := 0; i < MaxShadowLights; i++ {
		point = append(point, pointCaster(fmt.Sprintf("pt-%d", i), i, 5))
	}
	s.Schedule(nil, point)
	require.Equal(t, MaxShadowLights, s.SlotCount())

	// A more important newcomer displaces the weakest holder.
	newcomer := pointCaster("vip", 99, 100)
	plan := s.Schedule(nil, append([]ShadowCaster{newcomer}, point...))

	require.Len(t, plan.Points, MaxShadowLights)
	assert.Equal(t, LightID("vip"), plan.Points[0].Caster.ID)
	assert.Equal(t, []LightID{"pt-3"}, plan.Evicted)
	assert.False(t, s.HasSlot("pt-3"))
	assert.Equal(t, MaxShadowLights, s.SlotCount())
}

func TestSchedule_ReadmissionAfterEvictionIsFullRefresh(t *testing.T) {
	s := NewShadowScheduler()

	a := pointCaster("a", 0, 1)
	s.Schedule(nil, []ShadowCaster{a})
	s.Schedule(nil, nil) // a disappears, slot evicted
	assert.False(t, s.HasSlot("a"))

	plan := s.Schedule(nil, []ShadowCaster{a})
	require.Len(t, plan.Points, 1)
	assert.True(t, plan.Points[0].FullRefresh)
}

func TestSchedule_DisabledLightIsEvicted(t *testing.T) {
	s := NewShadowScheduler()

	a := pointCaster("a", 0, 2)
	b := pointCaster("b", 1, 1)
	s.Schedule(nil, []ShadowCaster{a, b})

	plan := s.Schedule(nil, []ShadowCaster{b})
	assert.Equal(t, []LightID{"a"}, plan.Evicted)
	require.Len(t, plan.Points, 1)
	assert.Equal(t, LightID("b"), plan.Points[0].Caster.ID)
}

func TestSchedule_EvictedListIsSorted(t *testing.T) {
	s := NewShadowScheduler()

	point := []ShadowCaster{
		pointCaster("zeta", 0, 1),
		pointCaster("alpha", 1, 1),
		pointCaster("mid", 2, 1),
	}
	s.Schedule(nil, point)

	plan := s.Schedule(nil, nil)
	assert.True(t, sort.SliceIsSorted(plan.Evicted, func(i, j int) bool {
		return plan.Evicted[i] < plan.Evicted[j]
	}))
	assert.Len(t, plan.Evicted, 3)
}

func TestSchedule_SecondaryTrimSafetyNet(t *testing.T) {
	s := NewShadowScheduler()

	// Simulate stale state beyond the cap.
	var point []ShadowCaster
	for i := 0; i < MaxShadowLights+2; i++ {
		id := LightID(fmt.Sprintf("pt-%d", i))
		s.points[id] = &pointSlotState{}
		point = append(point, pointCaster(string(id), i, float32(10-i)))
	}

	plan := s.Schedule(nil, point)

	assert.LessOrEqual(t, s.SlotCount(), MaxShadowLights)
	assert.NotEmpty(t, plan.Evicted)
	assert.True(t, sort.SliceIsSorted(plan.Evicted, func(i, j int) bool {
		return plan.Evicted[i] < plan.Evicted[j]
	}), "eviction order stays deterministic when the net fires")
}

func TestSchedule_ResetFaceRotation(t *testing.T) {
	s := NewShadowScheduler()
	caster := pointCaster("a", 0, 1)

	s.Schedule(nil, []ShadowCaster{caster})
	s.Schedule(nil, []ShadowCaster{caster}) // rotation now at face 2

	s.ResetFaceRotation("a")

	plan := s.Schedule(nil, []ShadowCaster{caster})
	assert.Equal(t, []int{0, 1}, plan.Points[0].Faces)
}

func TestSchedule_MixedKindsAreIndependent(t *testing.T) {
	s := NewShadowScheduler()

	var projective, point []ShadowCaster
	for i := 0; i < MaxShadowLights; i++ {
		projective = append(projective, projectiveCaster(fmt.Sprintf("spot-%d", i), i, 5, 1024))
		point = append(point, pointCaster(fmt.Sprintf("pt-%d", i), i, 5))
	}

	plan := s.Schedule(projective, point)

	assert.Len(t, plan.Projective, MaxShadowLights)
	assert.Len(t, plan.Points, MaxShadowLights)
	assert.Empty(t, plan.Inactive)
}
