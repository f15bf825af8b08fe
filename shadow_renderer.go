package umbra

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Depth-only vertex shader. The MVP lives in a dynamic-offset uniform slot so
// one buffer serves every draw of every shadow pass in the frame.
const shadowDepthWGSL = `
struct DrawData {
    mvp: mat4x4<f32>,
};

@group(0) @binding(0) var<uniform> draw: DrawData;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return draw.mvp * vec4<f32>(position, 1.0);
}
`

// mvpSlotStride is the spacing of per-draw uniform slots. 256 is the WebGPU
// minimum dynamic-offset alignment; the mat4 occupies the first 64 bytes.
const mvpSlotStride = 256

type shadowPipelineKey struct {
	cullMode  wgpu.CullMode
	bias      int32
	slopeBias float32
}

// ShadowRenderer encodes the depth-only passes a FrameShadowPlan asks for.
// Depth bias is pipeline state in WebGPU, so pipelines are cached per
// (cull mode, bias) combination and created on first use.
type ShadowRenderer struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	log    Logger

	shader     *wgpu.ShaderModule
	bindLayout *wgpu.BindGroupLayout
	pipeLayout *wgpu.PipelineLayout
	pipelines  map[shadowPipelineKey]*wgpu.RenderPipeline

	mvpBuffer *wgpu.Buffer
	mvpBind   *wgpu.BindGroup
	mvpSlots  int
}

func NewShadowRenderer(device *wgpu.Device, queue *wgpu.Queue, log Logger) (*ShadowRenderer, error) {
	r := &ShadowRenderer{
		device:    device,
		queue:     queue,
		log:       log,
		pipelines: make(map[shadowPipelineKey]*wgpu.RenderPipeline),
	}

	var err error
	r.shader, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Shadow Depth Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shadowDepthWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("shadow renderer: shader: %w", err)
	}

	r.bindLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Shadow Draw BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   64,
				},
			},
		},
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("shadow renderer: bind group layout: %w", err)
	}

	r.pipeLayout, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Shadow Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("shadow renderer: pipeline layout: %w", err)
	}

	if err := r.ensureSlots(64); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

// ensureSlots grows the per-draw uniform buffer to hold at least n slots.
func (r *ShadowRenderer) ensureSlots(n int) error {
	if n <= r.mvpSlots {
		return nil
	}
	capacity := r.mvpSlots
	if capacity == 0 {
		capacity = 64
	}
	for capacity < n {
		capacity *= 2
	}

	if r.mvpBind != nil {
		r.mvpBind.Release()
		r.mvpBind = nil
	}
	if r.mvpBuffer != nil {
		r.mvpBuffer.Release()
		r.mvpBuffer = nil
	}

	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Shadow Draw Uniforms",
		Size:  uint64(capacity * mvpSlotStride),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("shadow renderer: draw uniform buffer: %w", err)
	}
	bind, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Shadow Draw Bind Group",
		Layout: r.bindLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Offset: 0, Size: 64},
		},
	})
	if err != nil {
		buf.Release()
		return fmt.Errorf("shadow renderer: draw bind group: %w", err)
	}

	r.mvpBuffer = buf
	r.mvpBind = bind
	r.mvpSlots = capacity
	return nil
}

// pipelineFor returns the cached depth pipeline for a caster's cull mode and
// bias settings, compiling it on first use.
func (r *ShadowRenderer) pipelineFor(c ShadowCaster) (*wgpu.RenderPipeline, error) {
	cull := wgpu.CullModeBack
	if c.CullFrontFaces {
		cull = wgpu.CullModeFront
	}
	key := shadowPipelineKey{cullMode: cull, bias: c.Bias, slopeBias: c.SlopeBias}
	if pipe, ok := r.pipelines[key]; ok {
		return pipe, nil
	}

	pipe, err := r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Shadow Depth Pipeline",
		Layout: r.pipeLayout,
		Vertex: wgpu.VertexState{
			Module:     r.shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexBufferLayout()},
		},
		// Depth only, no fragment stage.
		Fragment: nil,
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:              shadowDepthFormat,
			DepthWriteEnabled:   true,
			DepthCompare:        wgpu.CompareFunctionLess,
			DepthBias:           key.bias,
			DepthBiasSlopeScale: key.slopeBias,
			StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shadow renderer: pipeline (cull=%v bias=%d slope=%g): %w",
			cull, key.bias, key.slopeBias, err)
	}
	r.pipelines[key] = pipe
	r.log.Debugf("shadow renderer: compiled depth pipeline cull=%v bias=%d slope=%g",
		cull, key.bias, key.slopeBias)
	return pipe, nil
}

// sanitizeDirection guards the view matrix against zero or denormal light
// directions coming from the UI.
func sanitizeDirection(d mgl32.Vec3) mgl32.Vec3 {
	if d.LenSqr() < 1e-8 {
		return mgl32.Vec3{0, -1, 0}
	}
	return d.Normalize()
}

// upFor avoids a degenerate lookAt when the light points straight up or down.
func upFor(dir mgl32.Vec3) mgl32.Vec3 {
	if dir.Y() > 0.999 || dir.Y() < -0.999 {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{0, 1, 0}
}

// ProjectiveViewProj builds the view-projection of a directional or spot
// caster. Directional lights use an orthographic box anchored at the light
// position; spot lights use a perspective frustum with FOV equal to twice
// the outer cone half-angle.
func ProjectiveViewProj(c ShadowCaster) mgl32.Mat4 {
	dir := sanitizeDirection(c.Direction)
	view := mgl32.LookAtV(c.Position, c.Position.Add(dir), upFor(dir))

	var proj mgl32.Mat4
	if c.Type == LightTypeDirectional {
		e := c.OrthoExtent
		if e <= 0 {
			e = 40
		}
		proj = mgl32.Ortho(-e, e, -e, e, c.NearPlane, c.FarPlane)
	} else {
		fov := mgl32.DegToRad(2 * c.OuterDeg)
		proj = mgl32.Perspective(fov, 1, c.NearPlane, c.FarPlane)
	}
	return glToWgpuClip.Mul4(proj).Mul4(view)
}

// cubeFaceBases are the canonical cubemap face orientations: forward
// direction and up vector per face index (+X -X +Y -Y +Z -Z).
var cubeFaceBases = [CubeFaceCount]struct {
	forward mgl32.Vec3
	up      mgl32.Vec3
}{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
}

// PointFaceViewProj builds the view-projection of one cubemap face: a 90
// degree square frustum looking down the face axis from the light position.
func PointFaceViewProj(c ShadowCaster, face int) mgl32.Mat4 {
	basis := cubeFaceBases[face]
	view := mgl32.LookAtV(c.Position, c.Position.Add(basis.forward), basis.up)
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, c.NearPlane, c.FarPlane)
	return glToWgpuClip.Mul4(proj).Mul4(view)
}

// RenderPlan encodes one depth pass per projective layer and per scheduled
// cubemap face. Targets are cleared even when there is nothing to draw so a
// stale depth image can never keep shadowing. Storage for every target must
// already exist in the pool.
func (r *ShadowRenderer) RenderPlan(encoder *wgpu.CommandEncoder, plan FrameShadowPlan, pool *ShadowPool, drawables []Drawable) error {
	type depthPass struct {
		view     *wgpu.TextureView
		pipeline *wgpu.RenderPipeline
		baseSlot int
	}

	var passes []depthPass
	var mvps []mgl32.Mat4
	slot := 0

	addPass := func(view *wgpu.TextureView, caster ShadowCaster, viewProj mgl32.Mat4) error {
		pipe, err := r.pipelineFor(caster)
		if err != nil {
			return err
		}
		passes = append(passes, depthPass{view: view, pipeline: pipe, baseSlot: slot})
		for _, d := range drawables {
			mvps = append(mvps, viewProj.Mul4(d.Model))
			slot++
		}
		return nil
	}

	for _, adm := range plan.Projective {
		view := pool.ArrayLayerView(adm.Layer)
		if view == nil {
			continue
		}
		if err := addPass(view, adm.Caster, ProjectiveViewProj(adm.Caster)); err != nil {
			return err
		}
	}
	for _, adm := range plan.Points {
		cube := pool.Cube(adm.Caster.ID)
		if cube == nil {
			continue
		}
		for _, face := range adm.Faces {
			if err := addPass(cube.FaceViews[face], adm.Caster, PointFaceViewProj(adm.Caster, face)); err != nil {
				return err
			}
		}
	}
	if len(passes) == 0 {
		return nil
	}

	if slot > 0 {
		if err := r.ensureSlots(slot); err != nil {
			return err
		}
		data := make([]byte, slot*mvpSlotStride)
		for i, m := range mvps {
			copy(data[i*mvpSlotStride:], wgpu.ToBytes(m[:]))
		}
		if err := r.queue.WriteBuffer(r.mvpBuffer, 0, data); err != nil {
			return fmt.Errorf("shadow renderer: draw uniform upload: %w", err)
		}
	}

	for _, pass := range passes {
		rp := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			Label: "Shadow Depth Pass",
			DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
				View:            pass.view,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: 1.0,
			},
		})
		rp.SetPipeline(pass.pipeline)
		for i, d := range drawables {
			offset := uint32((pass.baseSlot + i) * mvpSlotStride)
			rp.SetBindGroup(0, r.mvpBind, []uint32{offset})
			rp.SetVertexBuffer(0, d.Mesh.VertexBuf, 0, wgpu.WholeSize)
			rp.SetIndexBuffer(d.Mesh.IndexBuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			rp.DrawIndexed(d.Mesh.IndexCount, 1, 0, 0, 0)
		}
		if err := rp.End(); err != nil {
			rp.Release()
			return fmt.Errorf("shadow renderer: depth pass: %w", err)
		}
		rp.Release()
	}
	return nil
}

// Destroy frees every GPU object the renderer owns.
func (r *ShadowRenderer) Destroy() {
	for key, pipe := range r.pipelines {
		pipe.Release()
		delete(r.pipelines, key)
	}
	if r.mvpBind != nil {
		r.mvpBind.Release()
		r.mvpBind = nil
	}
	if r.mvpBuffer != nil {
		r.mvpBuffer.Release()
		r.mvpBuffer = nil
	}
	if r.pipeLayout != nil {
		r.pipeLayout.Release()
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		r.bindLayout.Release()
		r.bindLayout = nil
	}
	if r.shader != nil {
		r.shader.Release()
		r.shader = nil
	}
}
