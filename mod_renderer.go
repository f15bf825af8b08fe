package umbra

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxSceneLights caps how many lights the forward pass shades. Independent of
// the shadow slot cap; lights beyond their shadow slot still contribute
// unshadowed illumination.
const MaxSceneLights = 16

const sceneDepthFormat = wgpu.TextureFormatDepth24Plus

const forwardWGSL = `
struct FrameData {
    view_proj: mat4x4<f32>,
    camera_pos: vec4<f32>,
    ambient: vec4<f32>,
    counts: vec4<f32>,
};

struct SceneLight {
    position_range: vec4<f32>,
    direction_type: vec4<f32>,
    color_intensity: vec4<f32>,
    cone_shadow: vec4<f32>,
};

struct ProjectiveShadow {
    view_proj: mat4x4<f32>,
    params: vec4<f32>,
};

struct PointShadow {
    position_far: vec4<f32>,
    params: vec4<f32>,
};

struct DrawData {
    model: mat4x4<f32>,
    base_color: vec4<f32>,
    material: vec4<f32>,
};

@group(0) @binding(0) var<uniform> frame: FrameData;
@group(0) @binding(1) var<uniform> lights: array<SceneLight, 16>;

@group(1) @binding(0) var<uniform> proj_shadows: array<ProjectiveShadow, 4>;
@group(1) @binding(1) var<uniform> point_shadows: array<PointShadow, 4>;
@group(1) @binding(2) var shadow_array: texture_depth_2d_array;
@group(1) @binding(3) var shadow_cmp: sampler_comparison;
@group(1) @binding(4) var shadow_cube_0: texture_depth_cube;
@group(1) @binding(5) var shadow_cube_1: texture_depth_cube;
@group(1) @binding(6) var shadow_cube_2: texture_depth_cube;
@group(1) @binding(7) var shadow_cube_3: texture_depth_cube;

@group(2) @binding(0) var<uniform> draw: DrawData;

struct VertexOutput {
    @builtin(position) clip_pos: vec4<f32>,
    @location(0) world_pos: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
};

@vertex
fn vs_main(
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
) -> VertexOutput {
    var out: VertexOutput;
    let world = draw.model * vec4<f32>(position, 1.0);
    out.world_pos = world.xyz;
    out.clip_pos = frame.view_proj * world;
    out.normal = normalize((draw.model * vec4<f32>(normal, 0.0)).xyz);
    out.uv = uv;
    return out;
}

fn projective_visibility(slot: i32, world_pos: vec3<f32>) -> f32 {
    let shadow = proj_shadows[slot];
    let clip = shadow.view_proj * vec4<f32>(world_pos, 1.0);
    if (clip.w <= 0.0) {
        return 1.0;
    }
    let ndc = clip.xyz / clip.w;
    let uv = ndc.xy * vec2<f32>(0.5, -0.5) + vec2<f32>(0.5, 0.5);
    if (uv.x < 0.0 || uv.x > 1.0 || uv.y < 0.0 || uv.y > 1.0 || ndc.z <= 0.0 || ndc.z >= 1.0) {
        return 1.0;
    }
    return textureSampleCompareLevel(shadow_array, shadow_cmp, uv, slot, ndc.z);
}

fn point_visibility(slot: i32, world_pos: vec3<f32>) -> f32 {
    let shadow = point_shadows[slot];
    let to_frag = world_pos - shadow.position_far.xyz;
    let dist = max(abs(to_frag.x), max(abs(to_frag.y), abs(to_frag.z)));
    let far = shadow.position_far.w;
    let near = shadow.params.x;
    if (dist <= near || dist >= far) {
        return 1.0;
    }
    let ref_depth = far * (dist - near) / (dist * (far - near));
    switch (slot) {
        case 0: {
            return textureSampleCompareLevel(shadow_cube_0, shadow_cmp, to_frag, ref_depth);
        }
        case 1: {
            return textureSampleCompareLevel(shadow_cube_1, shadow_cmp, to_frag, ref_depth);
        }
        case 2: {
            return textureSampleCompareLevel(shadow_cube_2, shadow_cmp, to_frag, ref_depth);
        }
        default: {
            return textureSampleCompareLevel(shadow_cube_3, shadow_cmp, to_frag, ref_depth);
        }
    }
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let n = normalize(in.normal);
    let view_dir = normalize(frame.camera_pos.xyz - in.world_pos);
    let base = draw.base_color.rgb;
    let roughness = clamp(draw.material.x, 0.0, 1.0);
    let metallic = clamp(draw.material.y, 0.0, 1.0);
    let emissive = draw.material.z;

    var color = frame.ambient.rgb * base;
    let count = i32(frame.counts.x);
    for (var i = 0; i < count; i = i + 1) {
        let light = lights[i];
        let light_type = light.direction_type.w;

        var l = vec3<f32>(0.0);
        var attenuation = 1.0;
        if (light_type == 1.0) {
            l = normalize(-light.direction_type.xyz);
        } else {
            let to_light = light.position_range.xyz - in.world_pos;
            let dist = length(to_light);
            let range = max(light.position_range.w, 0.001);
            if (dist > range) {
                continue;
            }
            l = to_light / max(dist, 0.0001);
            let falloff = clamp(1.0 - dist / range, 0.0, 1.0);
            attenuation = falloff * falloff;
            if (light_type == 2.0) {
                let cos_angle = dot(-l, normalize(light.direction_type.xyz));
                let cos_inner = light.cone_shadow.x;
                let cos_outer = light.cone_shadow.y;
                attenuation *= clamp((cos_angle - cos_outer) / max(cos_inner - cos_outer, 0.001), 0.0, 1.0);
            }
        }

        let ndotl = max(dot(n, l), 0.0);
        if (ndotl <= 0.0 || attenuation <= 0.0) {
            continue;
        }

        var visibility = 1.0;
        let shadow_kind = light.cone_shadow.z;
        let slot = i32(light.cone_shadow.w);
        if (shadow_kind == 1.0) {
            visibility = projective_visibility(slot, in.world_pos);
        } else if (shadow_kind == 2.0) {
            visibility = point_visibility(slot, in.world_pos);
        }
        if (visibility <= 0.0) {
            continue;
        }

        let half_dir = normalize(l + view_dir);
        let spec_power = mix(256.0, 4.0, roughness);
        let spec = pow(max(dot(n, half_dir), 0.0), spec_power);
        let diffuse = base * ndotl * (1.0 - metallic * 0.5);
        let radiance = light.color_intensity.rgb * light.color_intensity.w * attenuation * visibility;
        color += (diffuse + vec3<f32>(spec * (0.04 + metallic * 0.5))) * radiance;
    }
    color += base * emissive;
    return vec4<f32>(color, draw.base_color.a);
}
`

// frameGPU matches the WGSL FrameData struct.
type frameGPU struct {
	ViewProj  mgl32.Mat4
	CameraPos [4]float32
	Ambient   [4]float32
	Counts    [4]float32
}

// lightGPU matches the WGSL SceneLight struct. ConeShadow packs the spot cone
// cosines plus the shadow kind (0 none, 1 projective, 2 point) and slot.
type lightGPU struct {
	PositionRange  [4]float32
	DirectionType  [4]float32
	ColorIntensity [4]float32
	ConeShadow     [4]float32
}

// drawGPU matches the WGSL DrawData struct; 96 bytes per slot.
type drawGPU struct {
	Model     mgl32.Mat4
	BaseColor [4]float32
	Material  [4]float32
}

const drawDataSize = 96

// MainRenderer owns the forward pass: the one shading pipeline, the scene
// depth buffer and the per-frame uniform buffers. The shadow inputs arrive
// through ShadowBindings; their bind group is rebuilt only when the bindings'
// generation changes.
type MainRenderer struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	log    Logger

	shader       *wgpu.ShaderModule
	frameLayout  *wgpu.BindGroupLayout
	shadowLayout *wgpu.BindGroupLayout
	drawLayout   *wgpu.BindGroupLayout
	pipeLayout   *wgpu.PipelineLayout
	pipeline     *wgpu.RenderPipeline

	frameBuffer       *wgpu.Buffer
	lightsBuffer      *wgpu.Buffer
	projShadowBuffer  *wgpu.Buffer
	pointShadowBuffer *wgpu.Buffer
	drawBuffer        *wgpu.Buffer
	drawSlots         int

	frameBind  *wgpu.BindGroup
	shadowBind *wgpu.BindGroup
	shadowGen  uint64
	drawBind   *wgpu.BindGroup

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView
	depthWidth   uint32
	depthHeight  uint32

	ClearColor wgpu.Color
	Ambient    [3]float32
}

func NewMainRenderer(gpu *GpuState, log Logger) (*MainRenderer, error) {
	r := &MainRenderer{
		device:     gpu.Device,
		queue:      gpu.Queue,
		log:        log,
		ClearColor: wgpu.Color{R: 0.05, G: 0.07, B: 0.1, A: 1.0},
		Ambient:    [3]float32{0.08, 0.08, 0.1},
	}

	var err error
	r.shader, err = gpu.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Forward Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: forwardWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("main renderer: shader: %w", err)
	}

	r.frameLayout, err = gpu.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Frame BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: frame layout: %w", err)
	}

	shadowEntries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		},
		{
			Binding:    2,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeDepth,
				ViewDimension: wgpu.TextureViewDimension2DArray,
			},
		},
		{
			Binding:    3,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeComparison},
		},
	}
	for i := 0; i < MaxShadowLights; i++ {
		shadowEntries = append(shadowEntries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(4 + i),
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeDepth,
				ViewDimension: wgpu.TextureViewDimensionCube,
			},
		})
	}
	r.shadowLayout, err = gpu.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Shadow Inputs BGL",
		Entries: shadowEntries,
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: shadow layout: %w", err)
	}

	r.drawLayout, err = gpu.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Draw BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   drawDataSize,
				},
			},
		},
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: draw layout: %w", err)
	}

	r.pipeLayout, err = gpu.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Forward Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.frameLayout, r.shadowLayout, r.drawLayout},
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: pipeline layout: %w", err)
	}

	r.pipeline, err = gpu.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Forward Pipeline",
		Layout: r.pipeLayout,
		Vertex: wgpu.VertexState{
			Module:     r.shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexBufferLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     r.shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    gpu.SurfaceConfig.Format,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            sceneDepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: pipeline: %w", err)
	}

	r.frameBuffer, err = gpu.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Uniforms",
		Size:  uint64(len(wgpu.ToBytes([]frameGPU{{}}))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: frame buffer: %w", err)
	}
	r.lightsBuffer, err = gpu.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Light Uniforms",
		Size:  uint64(len(wgpu.ToBytes(make([]lightGPU, MaxSceneLights)))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: lights buffer: %w", err)
	}
	r.projShadowBuffer, err = gpu.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Projective Shadow Uniforms",
		Size:  uint64(len(wgpu.ToBytes(make([]ProjectiveShadowGPU, MaxShadowLights)))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: projective shadow buffer: %w", err)
	}
	r.pointShadowBuffer, err = gpu.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Point Shadow Uniforms",
		Size:  uint64(len(wgpu.ToBytes(make([]PointShadowGPU, MaxShadowLights)))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: point shadow buffer: %w", err)
	}

	r.frameBind, err = gpu.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Frame Bind Group",
		Layout: r.frameLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.frameBuffer, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: r.lightsBuffer, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("main renderer: frame bind group: %w", err)
	}

	if err := r.ensureDrawSlots(64); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *MainRenderer) ensureDrawSlots(n int) error {
	if n <= r.drawSlots {
		return nil
	}
	capacity := r.drawSlots
	if capacity == 0 {
		capacity = 64
	}
	for capacity < n {
		capacity *= 2
	}

	if r.drawBind != nil {
		r.drawBind.Release()
		r.drawBind = nil
	}
	if r.drawBuffer != nil {
		r.drawBuffer.Release()
		r.drawBuffer = nil
	}

	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Forward Draw Uniforms",
		Size:  uint64(capacity * mvpSlotStride),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("main renderer: draw uniform buffer: %w", err)
	}
	bind, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Forward Draw Bind Group",
		Layout: r.drawLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Offset: 0, Size: drawDataSize},
		},
	})
	if err != nil {
		buf.Release()
		return fmt.Errorf("main renderer: draw bind group: %w", err)
	}

	r.drawBuffer = buf
	r.drawBind = bind
	r.drawSlots = capacity
	return nil
}

// ensureShadowBind rebuilds the shadow input bind group when the published
// views changed.
func (r *MainRenderer) ensureShadowBind(bindings *ShadowBindings) error {
	if r.shadowBind != nil && r.shadowGen == bindings.Generation {
		return nil
	}
	if bindings.ArrayView == nil || bindings.CompareSampler == nil {
		return fmt.Errorf("main renderer: shadow bindings not published yet")
	}

	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: r.projShadowBuffer, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: r.pointShadowBuffer, Size: wgpu.WholeSize},
		{Binding: 2, TextureView: bindings.ArrayView},
		{Binding: 3, Sampler: bindings.CompareSampler},
	}
	for i := 0; i < MaxShadowLights; i++ {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(4 + i),
			TextureView: bindings.CubeViews[i],
		})
	}

	bind, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Shadow Inputs Bind Group",
		Layout:  r.shadowLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("main renderer: shadow bind group: %w", err)
	}
	if r.shadowBind != nil {
		r.shadowBind.Release()
	}
	r.shadowBind = bind
	r.shadowGen = bindings.Generation
	return nil
}

func (r *MainRenderer) ensureDepthBuffer(width, height uint32) error {
	if r.depthTexture != nil && r.depthWidth == width && r.depthHeight == height {
		return nil
	}
	if r.depthView != nil {
		r.depthView.Release()
		r.depthView = nil
	}
	if r.depthTexture != nil {
		r.depthTexture.Release()
		r.depthTexture = nil
	}

	tex, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Scene Depth",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        sceneDepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("main renderer: depth buffer %dx%d: %w", width, height, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("main renderer: depth view: %w", err)
	}

	r.depthTexture = tex
	r.depthView = view
	r.depthWidth = width
	r.depthHeight = height
	return nil
}

// packLights builds the light uniform array for shading, annotating each
// light with its shadow slot from this frame's bindings.
func packLights(lights *LightRegistry, bindings *ShadowBindings) (out [MaxSceneLights]lightGPU, count int) {
	for _, l := range lights.Enabled() {
		if count >= MaxSceneLights {
			break
		}
		dir := sanitizeDirection(l.Direction)

		var shadowKind, shadowSlot float32
		if info, ok := bindings.InfoForLight(l.ID); ok && info.Active {
			if info.Kind == LightTypePoint {
				shadowKind = 2
			} else {
				shadowKind = 1
			}
			shadowSlot = float32(info.Slot)
		}

		cosInner := cos32(mgl32.DegToRad(l.InnerDeg))
		cosOuter := cos32(mgl32.DegToRad(l.OuterDeg))

		out[count] = lightGPU{
			PositionRange:  [4]float32{l.Position.X(), l.Position.Y(), l.Position.Z(), l.Range},
			DirectionType:  [4]float32{dir.X(), dir.Y(), dir.Z(), float32(l.Type)},
			ColorIntensity: [4]float32{l.Color[0], l.Color[1], l.Color[2], l.Intensity},
			ConeShadow:     [4]float32{cosInner, cosOuter, shadowKind, shadowSlot},
		}
		count++
	}
	return out, count
}

// FrameTarget holds the swapchain view between the forward pass and present.
// Later stages (overlay) draw into it with LoadOpLoad.
type FrameTarget struct {
	View *wgpu.TextureView
}

// RendererModule installs the forward pass. Requires WindowModule,
// CameraModule, LightModule, MeshModule and ShadowModule.
type RendererModule struct{}

func (RendererModule) Install(app *App) {
	gpu := resource[GpuState](app)
	renderer, err := NewMainRenderer(gpu, app.Logger())
	if err != nil {
		panic(err)
	}
	app.AddResources(renderer, &FrameTarget{})
	app.UseSystem(System(forwardPassSystem).InStage(Render))
	app.UseSystem(System(presentSystem).InStage(Finale))
}

// presentSystem flips the frame after every pass has drawn into it.
func presentSystem(gpu *GpuState, target *FrameTarget) {
	if target.View == nil {
		return
	}
	target.View.Release()
	target.View = nil
	gpu.Surface.Present()
}

func forwardPassSystem(
	gpu *GpuState,
	cam *Camera,
	lights *LightRegistry,
	meshes *MeshRegistry,
	bindings *ShadowBindings,
	r *MainRenderer,
	target *FrameTarget,
	log *Log,
) {
	width := gpu.SurfaceConfig.Width
	height := gpu.SurfaceConfig.Height
	if width == 0 || height == 0 {
		return
	}
	if err := r.ensureDepthBuffer(width, height); err != nil {
		log.Errorf("forward pass: %v", err)
		return
	}
	if err := r.ensureShadowBind(bindings); err != nil {
		log.Errorf("forward pass: %v", err)
		return
	}

	aspect := float32(width) / float32(height)
	view := cam.ViewMatrix()
	proj := cam.ProjectionMatrix(aspect)
	packed, lightCount := packLights(lights, bindings)

	frame := frameGPU{
		ViewProj:  proj.Mul4(view),
		CameraPos: [4]float32{cam.Position.X(), cam.Position.Y(), cam.Position.Z(), 1},
		Ambient:   [4]float32{r.Ambient[0], r.Ambient[1], r.Ambient[2], 1},
		Counts:    [4]float32{float32(lightCount), 0, 0, 0},
	}

	drawables := meshes.Drawables(false)
	if err := r.ensureDrawSlots(len(drawables)); err != nil {
		log.Errorf("forward pass: %v", err)
		return
	}
	drawData := make([]byte, len(drawables)*mvpSlotStride)
	for i, d := range drawables {
		slot := drawGPU{
			Model:     d.Model,
			BaseColor: d.Material.BaseColor,
			Material:  [4]float32{d.Material.Roughness, d.Material.Metallic, d.Material.Emissive, 0},
		}
		copy(drawData[i*mvpSlotStride:], wgpu.ToBytes([]drawGPU{slot}))
	}

	if err := r.queue.WriteBuffer(r.frameBuffer, 0, wgpu.ToBytes([]frameGPU{frame})); err != nil {
		log.Errorf("forward pass: frame upload: %v", err)
		return
	}
	if err := r.queue.WriteBuffer(r.lightsBuffer, 0, wgpu.ToBytes(packed[:])); err != nil {
		log.Errorf("forward pass: light upload: %v", err)
		return
	}
	if err := r.queue.WriteBuffer(r.projShadowBuffer, 0, bindings.ProjectiveBytes()); err != nil {
		log.Errorf("forward pass: shadow upload: %v", err)
		return
	}
	if err := r.queue.WriteBuffer(r.pointShadowBuffer, 0, bindings.PointBytes()); err != nil {
		log.Errorf("forward pass: shadow upload: %v", err)
		return
	}
	if len(drawables) > 0 {
		if err := r.queue.WriteBuffer(r.drawBuffer, 0, drawData); err != nil {
			log.Errorf("forward pass: draw upload: %v", err)
			return
		}
	}

	surfaceTexture, err := gpu.Surface.GetCurrentTexture()
	if err != nil {
		// Usually a swapchain resize race; reconfigure and try next frame.
		log.Warnf("forward pass: surface acquire: %v", err)
		gpu.Surface.Configure(gpu.Adapter, gpu.Device, gpu.SurfaceConfig)
		return
	}
	surfaceView, err := surfaceTexture.CreateView(nil)
	if err != nil {
		log.Errorf("forward pass: surface view: %v", err)
		return
	}
	target.View = surfaceView

	encoder, err := gpu.Device.CreateCommandEncoder(nil)
	if err != nil {
		log.Errorf("forward pass: command encoder: %v", err)
		return
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Forward Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       surfaceView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: r.ClearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})

	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.frameBind, nil)
	pass.SetBindGroup(1, r.shadowBind, nil)
	for i, d := range drawables {
		pass.SetBindGroup(2, r.drawBind, []uint32{uint32(i * mvpSlotStride)})
		pass.SetVertexBuffer(0, d.Mesh.VertexBuf, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(d.Mesh.IndexBuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(d.Mesh.IndexCount, 1, 0, 0, 0)
	}
	if err := pass.End(); err != nil {
		pass.Release()
		log.Errorf("forward pass: %v", err)
		return
	}
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		log.Errorf("forward pass: encoder finish: %v", err)
		return
	}
	defer cmd.Release()
	gpu.Queue.Submit(cmd)
}

// Destroy frees every GPU object the renderer owns.
func (r *MainRenderer) Destroy() {
	if r.drawBind != nil {
		r.drawBind.Release()
		r.drawBind = nil
	}
	if r.shadowBind != nil {
		r.shadowBind.Release()
		r.shadowBind = nil
	}
	if r.frameBind != nil {
		r.frameBind.Release()
		r.frameBind = nil
	}
	if r.drawBuffer != nil {
		r.drawBuffer.Release()
		r.drawBuffer = nil
	}
	if r.pointShadowBuffer != nil {
		r.pointShadowBuffer.Release()
		r.pointShadowBuffer = nil
	}
	if r.projShadowBuffer != nil {
		r.projShadowBuffer.Release()
		r.projShadowBuffer = nil
	}
	if r.lightsBuffer != nil {
		r.lightsBuffer.Release()
		r.lightsBuffer = nil
	}
	if r.frameBuffer != nil {
		r.frameBuffer.Release()
		r.frameBuffer = nil
	}
	if r.depthView != nil {
		r.depthView.Release()
		r.depthView = nil
	}
	if r.depthTexture != nil {
		r.depthTexture.Release()
		r.depthTexture = nil
	}
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	if r.pipeLayout != nil {
		r.pipeLayout.Release()
		r.pipeLayout = nil
	}
	if r.drawLayout != nil {
		r.drawLayout.Release()
		r.drawLayout = nil
	}
	if r.shadowLayout != nil {
		r.shadowLayout.Release()
		r.shadowLayout = nil
	}
	if r.frameLayout != nil {
		r.frameLayout.Release()
		r.frameLayout = nil
	}
	if r.shader != nil {
		r.shader.Release()
		r.shader = nil
	}
}

func cos32(x float32) float32 {
	return float32(math.Cos(float64(x)))
}
