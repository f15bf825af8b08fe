package umbra

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// TerrainParams controls the procedural heightfield.
type TerrainParams struct {
	Size      float32 // world-space side length
	GridSize  int     // vertices per side
	Height    float32 // peak amplitude
	Octaves   int
	Seed      int64
	BaseColor [4]float32
	Roughness float32
}

func DefaultTerrainParams() TerrainParams {
	return TerrainParams{
		Size:      120,
		GridSize:  96,
		Height:    6,
		Octaves:   4,
		Seed:      1337,
		BaseColor: [4]float32{0.32, 0.42, 0.25, 1},
		Roughness: 0.95,
	}
}

// TerrainHeight samples the layered value noise at world x/z.
func TerrainHeight(p TerrainParams, x, z float32) float32 {
	var total, amplitude float32 = 0, 1
	frequency := float32(1.0) / p.Size * 2.0
	var norm float32

	octaves := p.Octaves
	if octaves < 1 {
		octaves = 1
	}
	for o := 0; o < octaves; o++ {
		total += valueNoise2D(x*frequency, z*frequency, p.Seed+int64(o)) * amplitude
		norm += amplitude
		amplitude *= 0.5
		frequency *= 2.0
	}
	return total / norm * p.Height
}

// valueNoise2D is lattice value noise with smoothstep interpolation.
func valueNoise2D(x, z float32, seed int64) float32 {
	x0 := int64(math.Floor(float64(x)))
	z0 := int64(math.Floor(float64(z)))
	fx := x - float32(x0)
	fz := z - float32(z0)

	sx := fx * fx * (3 - 2*fx)
	sz := fz * fz * (3 - 2*fz)

	v00 := latticeValue(x0, z0, seed)
	v10 := latticeValue(x0+1, z0, seed)
	v01 := latticeValue(x0, z0+1, seed)
	v11 := latticeValue(x0+1, z0+1, seed)

	a := v00 + (v10-v00)*sx
	b := v01 + (v11-v01)*sx
	return a + (b-a)*sz
}

// latticeValue hashes an integer lattice point to [-1, 1].
func latticeValue(x, z, seed int64) float32 {
	h := uint64(x)*0x9E3779B97F4A7C15 ^ uint64(z)*0xC2B2AE3D27D4EB4F ^ uint64(seed)*0x165667B19E3779F9
	h ^= h >> 29
	h *= 0xBF58476D1CE4E5B9
	h ^= h >> 32
	return float32(h&0xFFFF)/32767.5 - 1.0
}

// CreateTerrainMesh builds the heightfield mesh with analytic-ish normals
// from central differences.
func CreateTerrainMesh(r *MeshRegistry, p TerrainParams) (MeshID, error) {
	n := p.GridSize
	if n < 2 {
		n = 2
	}
	step := p.Size / float32(n-1)
	half := p.Size * 0.5

	vertices := make([]Vertex, 0, n*n)
	for zi := 0; zi < n; zi++ {
		for xi := 0; xi < n; xi++ {
			x := float32(xi)*step - half
			z := float32(zi)*step - half
			y := TerrainHeight(p, x, z)

			// Central-difference normal.
			hl := TerrainHeight(p, x-step, z)
			hr := TerrainHeight(p, x+step, z)
			hd := TerrainHeight(p, x, z-step)
			hu := TerrainHeight(p, x, z+step)
			normal := mgl32.Vec3{hl - hr, 2 * step, hd - hu}.Normalize()

			vertices = append(vertices, Vertex{
				Position: [3]float32{x, y, z},
				Normal:   [3]float32{normal.X(), normal.Y(), normal.Z()},
				UV:       [2]float32{float32(xi) / float32(n-1), float32(zi) / float32(n-1)},
			})
		}
	}

	indices := make([]uint32, 0, (n-1)*(n-1)*6)
	for zi := uint32(0); zi < uint32(n-1); zi++ {
		for xi := uint32(0); xi < uint32(n-1); xi++ {
			a := zi*uint32(n) + xi
			b := a + uint32(n)
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}

	return r.Upload("Terrain", vertices, indices)
}

// TerrainModule generates the terrain and registers it as a shadow-casting
// mesh instance.
type TerrainModule struct {
	Params TerrainParams
}

func (m TerrainModule) Install(app *App) {
	meshes := resource[MeshRegistry](app)

	params := m.Params
	if params.GridSize == 0 {
		params = DefaultTerrainParams()
	}

	id, err := CreateTerrainMesh(meshes, params)
	if err != nil {
		app.Logger().Errorf("terrain: mesh upload failed: %v", err)
		return
	}
	meshes.AddInstance(&MeshInstance{
		Mesh: id,
		Material: Material{
			BaseColor: params.BaseColor,
			Roughness: params.Roughness,
		},
		CastsShadows: true,
	})
}
