package umbra

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

const overlayWGSL = `
struct VertexOutput {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) color: vec4<f32>,
};

@group(0) @binding(0) var glyph_tex: texture_2d<f32>;
@group(0) @binding(1) var glyph_smp: sampler;

@vertex
fn vs_main(
    @location(0) pos: vec2<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) color: vec4<f32>,
) -> VertexOutput {
    var out: VertexOutput;
    out.pos = vec4<f32>(pos, 0.0, 1.0);
    out.uv = uv;
    out.color = color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let a = textureSample(glyph_tex, glyph_smp, in.uv).r;
    return vec4<f32>(in.color.rgb, in.color.a * a);
}
`

// Overlay renders scheduler and scene stats as text on top of the frame.
type Overlay struct {
	Enabled bool

	atlas     *TextAtlas
	pipeline  *wgpu.RenderPipeline
	bindGroup *wgpu.BindGroup

	vertexBuf *wgpu.Buffer
	vertexCap int
}

// OverlayModule installs the debug overlay and the light toggle hotkeys.
// F1 toggles the overlay; number keys 1..9 toggle the matching light.
type OverlayModule struct{}

func (OverlayModule) Install(app *App) {
	gpu := resource[GpuState](app)
	overlay, err := newOverlay(gpu)
	if err != nil {
		app.Logger().Errorf("overlay: %v", err)
		overlay = &Overlay{}
	}
	app.AddResources(overlay)
	app.UseSystem(System(lightHotkeysSystem).InStage(Update))
	app.UseSystem(System(overlaySystem).InStage(PostRender))
}

func newOverlay(gpu *GpuState) (*Overlay, error) {
	atlas := NewTextAtlas()

	w := atlas.AtlasImage.Bounds().Dx()
	h := atlas.AtlasImage.Bounds().Dy()
	tex, err := gpu.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Overlay Glyph Atlas",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: atlas texture: %w", err)
	}
	err = gpu.Queue.WriteTexture(tex.AsImageCopy(), atlas.AtlasImage.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(w),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})
	if err != nil {
		return nil, fmt.Errorf("overlay: atlas upload: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("overlay: atlas view: %w", err)
	}

	sampler, err := gpu.Device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Overlay Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: sampler: %w", err)
	}

	shader, err := gpu.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Overlay Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: overlayWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: shader: %w", err)
	}

	pipeline, err := gpu.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Overlay Pipeline",
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: 8 * 4,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: gpu.SurfaceConfig.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: pipeline: %w", err)
	}

	bindGroup, err := gpu.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Overlay Bind Group",
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: sampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: bind group: %w", err)
	}

	return &Overlay{
		Enabled:   true,
		atlas:     atlas,
		pipeline:  pipeline,
		bindGroup: bindGroup,
	}, nil
}

var digitKeys = [...]int{Key1, Key2, Key3, Key4, Key5, Key6, Key7, Key8, Key9}

// lightHotkeysSystem toggles lights with the number keys and the overlay
// with F1.
func lightHotkeysSystem(input *Input, lights *LightRegistry, overlay *Overlay, app *App) {
	if input.JustPressed[KeyF1] {
		overlay.Enabled = !overlay.Enabled
	}
	if input.JustPressed[KeyEscape] {
		app.Quit()
	}

	all := lights.All()
	for i, key := range digitKeys {
		if !input.JustPressed[key] {
			continue
		}
		if i < len(all) {
			all[i].Enabled = !all[i].Enabled
		}
	}
}

func (o *Overlay) ensureVertexBuffer(device *wgpu.Device, n int) error {
	if n <= o.vertexCap {
		return nil
	}
	capacity := o.vertexCap
	if capacity == 0 {
		capacity = 1024
	}
	for capacity < n {
		capacity *= 2
	}
	if o.vertexBuf != nil {
		o.vertexBuf.Release()
		o.vertexBuf = nil
	}
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Overlay Vertices",
		Size:  uint64(capacity * 8 * 4),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("overlay: vertex buffer: %w", err)
	}
	o.vertexBuf = buf
	o.vertexCap = capacity
	return nil
}

func lightKindName(t LightType) string {
	switch t {
	case LightTypeDirectional:
		return "dir"
	case LightTypeSpot:
		return "spot"
	default:
		return "point"
	}
}

// overlayText composes the stats block: frame counters on top, then one line
// per shadow-casting light with its slot assignment this frame.
func overlayText(fps float64, lights *LightRegistry, bindings *ShadowBindings, stats *ShadowStats, particleCount int, cam *Camera) string {
	all := lights.All()
	enabled := 0
	for _, l := range all {
		if l.Enabled {
			enabled++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"fps %5.1f   lights %d/%d\n"+
			"shadows: proj %d/%d  point %d/%d  faces %d\n"+
			"evicted %d  inactive %d  particles %d\n"+
			"cam %.1f %.1f %.1f   [1-9] toggle lights  [F1] overlay",
		fps, enabled, len(all),
		stats.ProjectiveActive, MaxShadowLights,
		stats.PointActive, MaxShadowLights,
		stats.FacesRendered,
		stats.Evicted, stats.Inactive, particleCount,
		cam.Position.X(), cam.Position.Y(), cam.Position.Z(),
	)
	for i, l := range all {
		if !l.CastsShadows {
			continue
		}
		state := "--"
		if !l.Enabled {
			state = "off"
		} else if info, ok := bindings.InfoForLight(l.ID); ok && info.Active {
			state = fmt.Sprintf("slot %d", info.Slot)
		}
		fmt.Fprintf(&b, "\n [%d] %-5s %s", i+1, lightKindName(l.Type), state)
	}
	return b.String()
}

func overlaySystem(
	gpu *GpuState,
	overlay *Overlay,
	target *FrameTarget,
	stats *ShadowStats,
	lights *LightRegistry,
	bindings *ShadowBindings,
	particles *ParticleSystem,
	cam *Camera,
	t *Time,
	log *Log,
) {
	if !overlay.Enabled || overlay.pipeline == nil || target.View == nil {
		return
	}

	fps := 0.0
	if t.Dt > 0 {
		fps = 1.0 / t.Dt
	}
	text := overlayText(fps, lights, bindings, stats, particles.AliveCount(), cam)

	items := []TextItem{{
		Text:     text,
		Position: [2]float32{8, 8},
		Scale:    1,
		Color:    [4]float32{0.9, 0.95, 1.0, 0.9},
	}}
	vertices := overlay.atlas.BuildVertices(items, int(gpu.SurfaceConfig.Width), int(gpu.SurfaceConfig.Height))
	if len(vertices) == 0 {
		return
	}
	if err := overlay.ensureVertexBuffer(gpu.Device, len(vertices)); err != nil {
		log.Errorf("%v", err)
		return
	}
	if err := gpu.Queue.WriteBuffer(overlay.vertexBuf, 0, wgpu.ToBytes(vertices)); err != nil {
		log.Errorf("overlay: vertex upload: %v", err)
		return
	}

	encoder, err := gpu.Device.CreateCommandEncoder(nil)
	if err != nil {
		log.Errorf("overlay: command encoder: %v", err)
		return
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Overlay Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    target.View,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	})
	pass.SetPipeline(overlay.pipeline)
	pass.SetBindGroup(0, overlay.bindGroup, nil)
	pass.SetVertexBuffer(0, overlay.vertexBuf, 0, wgpu.WholeSize)
	pass.Draw(uint32(len(vertices)), 1, 0, 0)
	if err := pass.End(); err != nil {
		pass.Release()
		log.Errorf("overlay: %v", err)
		return
	}
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		log.Errorf("overlay: encoder finish: %v", err)
		return
	}
	defer cmd.Release()
	gpu.Queue.Submit(cmd)
}
