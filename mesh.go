package umbra

import (
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type MeshID string

func newMeshID() MeshID {
	return MeshID(uuid.NewString())
}

// Vertex is the interleaved vertex layout shared by every pipeline.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

const vertexStride = 8 * 4

func vertexBufferLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: vertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x3},
			{ShaderLocation: 1, Offset: 12, Format: wgpu.VertexFormatFloat32x3},
			{ShaderLocation: 2, Offset: 24, Format: wgpu.VertexFormatFloat32x2},
		},
	}
}

// Mesh is an uploaded GPU mesh.
type Mesh struct {
	ID          MeshID
	VertexBuf   *wgpu.Buffer
	IndexBuf    *wgpu.Buffer
	IndexCount  uint32
	VertexCount uint32
}

// Material holds the PBR-lite surface parameters uploaded per draw.
type Material struct {
	BaseColor [4]float32
	Roughness float32
	Metallic  float32
	Emissive  float32
}

// MeshInstance places a mesh in the world.
type MeshInstance struct {
	Mesh     MeshID
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Material Material

	// CastsShadows excludes an instance from depth passes when false
	// (e.g. particles, overlay geometry).
	CastsShadows bool
}

// ModelMatrix composes the instance transform.
func (mi *MeshInstance) ModelMatrix() mgl32.Mat4 {
	scale := mi.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	rot := mi.Rotation
	if rot == (mgl32.Quat{}) {
		rot = mgl32.QuatIdent()
	}
	translate := mgl32.Translate3D(mi.Position.X(), mi.Position.Y(), mi.Position.Z())
	return translate.Mul4(rot.Mat4()).Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// Drawable is what a depth or shading pass needs from one instance.
type Drawable struct {
	Mesh     *Mesh
	Model    mgl32.Mat4
	Material Material
}

// DrawableSource contributes per-frame drawables that are not backed by a
// registered instance, e.g. particles.
type DrawableSource interface {
	AppendDrawables(dst []Drawable, shadowsOnly bool) []Drawable
}

// MeshRegistry owns GPU meshes and their instances. Render passes enumerate
// drawables through it and never touch instance storage directly.
type MeshRegistry struct {
	device    *wgpu.Device
	meshes    map[MeshID]*Mesh
	Instances []*MeshInstance
	sources   []DrawableSource
}

func NewMeshRegistry(device *wgpu.Device) *MeshRegistry {
	return &MeshRegistry{
		device: device,
		meshes: make(map[MeshID]*Mesh),
	}
}

// Upload creates GPU buffers for the mesh data and registers it.
func (r *MeshRegistry) Upload(label string, vertices []Vertex, indices []uint32) (MeshID, error) {
	vertexBuf, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label + " Vertex Buffer",
		Contents: wgpu.ToBytes(vertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return "", err
	}
	indexBuf, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label + " Index Buffer",
		Contents: wgpu.ToBytes(indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vertexBuf.Release()
		return "", err
	}

	id := newMeshID()
	r.meshes[id] = &Mesh{
		ID:          id,
		VertexBuf:   vertexBuf,
		IndexBuf:    indexBuf,
		IndexCount:  uint32(len(indices)),
		VertexCount: uint32(len(vertices)),
	}
	return id, nil
}

func (r *MeshRegistry) Mesh(id MeshID) *Mesh {
	return r.meshes[id]
}

func (r *MeshRegistry) AddInstance(mi *MeshInstance) *MeshInstance {
	r.Instances = append(r.Instances, mi)
	return mi
}

// AddSource registers a dynamic drawable provider.
func (r *MeshRegistry) AddSource(s DrawableSource) {
	r.sources = append(r.sources, s)
}

// Drawables packs all instances for a pass. Shadow passes set shadowsOnly to
// skip instances that never cast.
func (r *MeshRegistry) Drawables(shadowsOnly bool) []Drawable {
	res := make([]Drawable, 0, len(r.Instances))
	for _, mi := range r.Instances {
		if shadowsOnly && !mi.CastsShadows {
			continue
		}
		mesh, ok := r.meshes[mi.Mesh]
		if !ok {
			continue
		}
		res = append(res, Drawable{
			Mesh:     mesh,
			Model:    mi.ModelMatrix(),
			Material: mi.Material,
		})
	}
	for _, s := range r.sources {
		res = s.AppendDrawables(res, shadowsOnly)
	}
	return res
}

// MeshModule installs the mesh registry.
type MeshModule struct{}

func (MeshModule) Install(app *App) {
	gpu := resource[GpuState](app)
	app.AddResources(NewMeshRegistry(gpu.Device))
}

// CreateCubeMesh builds a unit cube centered at the origin, scaled by size.
func CreateCubeMesh(r *MeshRegistry, size float32) (MeshID, error) {
	h := size * 0.5
	faces := []struct {
		normal mgl32.Vec3
		u, v   mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}

	var vertices []Vertex
	var indices []uint32
	for _, f := range faces {
		base := uint32(len(vertices))
		center := f.normal.Mul(h)
		for _, corner := range [][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			pos := center.Add(f.u.Mul(h * corner[0])).Add(f.v.Mul(h * corner[1]))
			vertices = append(vertices, Vertex{
				Position: [3]float32{pos.X(), pos.Y(), pos.Z()},
				Normal:   [3]float32{f.normal.X(), f.normal.Y(), f.normal.Z()},
				UV:       [2]float32{(corner[0] + 1) * 0.5, (corner[1] + 1) * 0.5},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return r.Upload("Cube", vertices, indices)
}

// CreateSphereMesh builds a UV sphere.
func CreateSphereMesh(r *MeshRegistry, radius float32, segments int) (MeshID, error) {
	if segments < 3 {
		segments = 3
	}
	rings := segments

	var vertices []Vertex
	var indices []uint32

	for ring := 0; ring <= rings; ring++ {
		phi := math.Pi * float64(ring) / float64(rings)
		for seg := 0; seg <= segments; seg++ {
			theta := 2 * math.Pi * float64(seg) / float64(segments)

			nx := float32(math.Sin(phi) * math.Cos(theta))
			ny := float32(math.Cos(phi))
			nz := float32(math.Sin(phi) * math.Sin(theta))

			vertices = append(vertices, Vertex{
				Position: [3]float32{nx * radius, ny * radius, nz * radius},
				Normal:   [3]float32{nx, ny, nz},
				UV:       [2]float32{float32(seg) / float32(segments), float32(ring) / float32(rings)},
			})
		}
	}

	stride := uint32(segments + 1)
	for ring := uint32(0); ring < uint32(rings); ring++ {
		for seg := uint32(0); seg < uint32(segments); seg++ {
			a := ring*stride + seg
			b := a + stride
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return r.Upload("Sphere", vertices, indices)
}

// CreatePlaneMesh builds a flat XZ plane centered at the origin.
func CreatePlaneMesh(r *MeshRegistry, size float32) (MeshID, error) {
	h := size * 0.5
	vertices := []Vertex{
		{Position: [3]float32{-h, 0, -h}, Normal: [3]float32{0, 1, 0}, UV: [2]float32{0, 0}},
		{Position: [3]float32{h, 0, -h}, Normal: [3]float32{0, 1, 0}, UV: [2]float32{1, 0}},
		{Position: [3]float32{h, 0, h}, Normal: [3]float32{0, 1, 0}, UV: [2]float32{1, 1}},
		{Position: [3]float32{-h, 0, h}, Normal: [3]float32{0, 1, 0}, UV: [2]float32{0, 1}},
	}
	indices := []uint32{0, 2, 1, 0, 3, 2}
	return r.Upload("Plane", vertices, indices)
}
