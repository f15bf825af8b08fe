package umbra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextAtlas_PacksPrintableASCII(t *testing.T) {
	ta := NewTextAtlas()

	require.NotNil(t, ta.AtlasImage)
	for r := rune(33); r < 127; r++ {
		assert.Contains(t, ta.Glyphs, r, "missing glyph %q", r)
	}
}

func TestTextAtlas_GlyphUVsInsideAtlas(t *testing.T) {
	ta := NewTextAtlas()

	for r, g := range ta.Glyphs {
		assert.GreaterOrEqual(t, g.UVMin[0], float32(0), "glyph %q", r)
		assert.GreaterOrEqual(t, g.UVMin[1], float32(0), "glyph %q", r)
		assert.LessOrEqual(t, g.UVMax[0], float32(1), "glyph %q", r)
		assert.LessOrEqual(t, g.UVMax[1], float32(1), "glyph %q", r)
		assert.Less(t, g.UVMin[0], g.UVMax[0], "glyph %q", r)
	}
}

func TestTextAtlas_BuildVerticesQuadCount(t *testing.T) {
	ta := NewTextAtlas()

	items := []TextItem{{Text: "abc", Scale: 1, Color: [4]float32{1, 1, 1, 1}}}
	vertices := ta.BuildVertices(items, 640, 480)
	assert.Len(t, vertices, 3*6, "six vertices per glyph")
}

func TestTextAtlas_BuildVerticesNewline(t *testing.T) {
	ta := NewTextAtlas()

	one := ta.BuildVertices([]TextItem{{Text: "ab"}}, 640, 480)
	two := ta.BuildVertices([]TextItem{{Text: "a\nb"}}, 640, 480)
	require.Len(t, two, len(one), "newline emits no geometry")

	// The second line sits lower on screen (NDC y decreases downward).
	assert.Less(t, two[len(two)-1].Pos[1], one[len(one)-1].Pos[1])
}

func TestTextAtlas_MeasureText(t *testing.T) {
	ta := NewTextAtlas()

	w1, h1 := ta.MeasureText("hello", 1)
	assert.Greater(t, w1, float32(0))
	assert.Greater(t, h1, float32(0))

	w2, h2 := ta.MeasureText("hello\nhello world", 1)
	assert.Greater(t, w2, w1, "widest line wins")
	assert.Equal(t, 2*h1, h2)

	wScaled, _ := ta.MeasureText("hello", 2)
	assert.Equal(t, 2*w1, wScaled)
}
