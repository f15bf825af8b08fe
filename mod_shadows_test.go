package umbra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteFullRefresh_AfterCubeReallocation(t *testing.T) {
	s := NewShadowScheduler()
	caster := pointCaster("a", 0, 1)

	// Steady state: the light holds its slot and gets a partial update.
	s.Schedule(nil, []ShadowCaster{caster})
	plan := s.Schedule(nil, []ShadowCaster{caster})
	require.Len(t, plan.Points, 1)
	adm := &plan.Points[0]
	require.False(t, adm.FullRefresh)
	require.Len(t, adm.Faces, BasePointFacesPerFrame)

	// The pool reallocated the cube (e.g. a resolution change); the fresh
	// texture has no depth in it, so every face must render this frame.
	promoteFullRefresh(adm, s)

	assert.True(t, adm.FullRefresh)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, adm.Faces)

	// The rotation restarts behind the forced pass.
	next := s.Schedule(nil, []ShadowCaster{caster})
	assert.Equal(t, []int{0, 1}, next.Points[0].Faces)
}
