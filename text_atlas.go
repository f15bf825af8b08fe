package umbra

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextVertex is one overlay glyph-quad corner. Pos is in NDC.
type TextVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

// TextItem is one block of overlay text in pixel coordinates, origin top left.
type TextItem struct {
	Text     string
	Position [2]float32
	Scale    float32
	Color    [4]float32
}

type GlyphInfo struct {
	UVMin [2]float32
	UVMax [2]float32
	Size  [2]float32
	Off   [2]float32
	Adv   float32
}

// TextAtlas packs the builtin 7x13 bitmap face into a single alpha texture
// and builds screen-space quads from it. No font file is needed.
type TextAtlas struct {
	AtlasImage *image.Alpha
	Glyphs     map[rune]GlyphInfo
	Face       font.Face
}

func NewTextAtlas() *TextAtlas {
	face := basicfont.Face7x13

	const atlasSize = 256
	atlas := image.NewAlpha(image.Rect(0, 0, atlasSize, atlasSize))
	glyphs := make(map[rune]GlyphInfo)

	x, y := 2, 2
	rowHeight := 0

	for r := rune(32); r < 127; r++ {
		bounds, mask, maskp, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}

		w := mask.Bounds().Dx()
		h := mask.Bounds().Dy()

		if x+w >= atlasSize {
			x = 2
			y += rowHeight + 2
			rowHeight = 0
		}
		if y+h >= atlasSize {
			break
		}

		draw.Draw(atlas, image.Rect(x, y, x+w, y+h), mask, maskp, draw.Src)

		glyphs[r] = GlyphInfo{
			UVMin: [2]float32{float32(x) / atlasSize, float32(y) / atlasSize},
			UVMax: [2]float32{float32(x+w) / atlasSize, float32(y+h) / atlasSize},
			Size:  [2]float32{float32(w), float32(h)},
			Off:   [2]float32{float32(bounds.Min.X), float32(bounds.Min.Y)},
			Adv:   float32(adv) / 64.0,
		}

		x += w + 2
		if h > rowHeight {
			rowHeight = h
		}
	}

	return &TextAtlas{
		AtlasImage: atlas,
		Glyphs:     glyphs,
		Face:       face,
	}
}

// BuildVertices converts text items to NDC quads for the current screen size.
func (ta *TextAtlas) BuildVertices(items []TextItem, screenW, screenH int) []TextVertex {
	vertices := make([]TextVertex, 0, 512)

	sw := float32(screenW)
	sh := float32(screenH)
	metrics := ta.Face.Metrics()
	ascent := float32(metrics.Ascent.Ceil())
	lineHeight := float32(metrics.Height.Ceil())

	for _, item := range items {
		scale := item.Scale
		if scale <= 0 {
			scale = 1
		}
		startX := item.Position[0]
		posX := startX
		posY := item.Position[1] + ascent*scale

		for _, r := range item.Text {
			if r == '\n' {
				posX = startX
				posY += lineHeight * scale
				continue
			}
			g, ok := ta.Glyphs[r]
			if !ok {
				continue
			}

			x0 := (posX+g.Off[0]*scale)/sw*2.0 - 1.0
			y0 := 1.0 - (posY+g.Off[1]*scale)/sh*2.0
			x1 := (posX+(g.Off[0]+g.Size[0])*scale)/sw*2.0 - 1.0
			y1 := 1.0 - (posY+(g.Off[1]+g.Size[1])*scale)/sh*2.0

			vertices = append(vertices,
				TextVertex{Pos: [2]float32{x0, y0}, UV: [2]float32{g.UVMin[0], g.UVMin[1]}, Color: item.Color},
				TextVertex{Pos: [2]float32{x1, y0}, UV: [2]float32{g.UVMax[0], g.UVMin[1]}, Color: item.Color},
				TextVertex{Pos: [2]float32{x0, y1}, UV: [2]float32{g.UVMin[0], g.UVMax[1]}, Color: item.Color},
				TextVertex{Pos: [2]float32{x1, y0}, UV: [2]float32{g.UVMax[0], g.UVMin[1]}, Color: item.Color},
				TextVertex{Pos: [2]float32{x1, y1}, UV: [2]float32{g.UVMax[0], g.UVMax[1]}, Color: item.Color},
				TextVertex{Pos: [2]float32{x0, y1}, UV: [2]float32{g.UVMin[0], g.UVMax[1]}, Color: item.Color},
			)

			posX += g.Adv * scale
		}
	}
	return vertices
}

// MeasureText returns the pixel width and height of a text block.
func (ta *TextAtlas) MeasureText(text string, scale float32) (float32, float32) {
	if ta == nil {
		return 0, 0
	}
	metrics := ta.Face.Metrics()
	lineHeight := float32(metrics.Height.Ceil())

	maxW := float32(0)
	currentW := float32(0)
	lines := 1

	for _, r := range text {
		if r == '\n' {
			if currentW > maxW {
				maxW = currentW
			}
			currentW = 0
			lines++
			continue
		}
		g, ok := ta.Glyphs[r]
		if !ok {
			continue
		}
		currentW += g.Adv * scale
	}
	if currentW > maxW {
		maxW = currentW
	}
	return maxW, lineHeight * scale * float32(lines)
}
