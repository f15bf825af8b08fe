package umbra

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShadowPool owns every GPU object the shadow pipeline renders into or
// samples from: the shared projective depth array, the per-light cubemaps,
// the 1x1 fallback textures, and the two samplers. Textures are reallocated
// only when their requested dimensions change.
type ShadowPool struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	log    Logger

	arrayTexture    *wgpu.Texture
	arrayView       *wgpu.TextureView // 2d-array view over every layer
	arrayLayerViews []*wgpu.TextureView
	arrayLayers     int
	arrayResolution int

	cubes map[LightID]*CubeShadow

	fallbackArrayTexture *wgpu.Texture
	fallbackArrayView    *wgpu.TextureView
	fallbackCubeTexture  *wgpu.Texture
	fallbackCubeView     *wgpu.TextureView

	compareSampler *wgpu.Sampler
	rawSampler     *wgpu.Sampler
}

// CubeShadow is one point light's cubemap storage.
type CubeShadow struct {
	Texture    *wgpu.Texture
	CubeView   *wgpu.TextureView
	FaceViews  [CubeFaceCount]*wgpu.TextureView
	Resolution int
}

const shadowDepthFormat = wgpu.TextureFormatDepth32Float

// NewShadowPool creates the frame-independent objects: samplers and the
// fallback textures that stand in for any light without a real slot. The
// fallbacks mean shading never binds a nil handle.
func NewShadowPool(device *wgpu.Device, queue *wgpu.Queue, log Logger) (*ShadowPool, error) {
	p := &ShadowPool{
		device: device,
		queue:  queue,
		log:    log,
		cubes:  make(map[LightID]*CubeShadow),
	}

	var err error
	// Depth-comparison sampler: hardware PCF, lit when reference <= stored.
	p.compareSampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shadow Compare Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		Compare:       wgpu.CompareFunctionLessEqual,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("shadow pool: compare sampler: %w", err)
	}

	// Non-comparison sampler for raw depth visualization in the debug path.
	p.rawSampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shadow Raw Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("shadow pool: raw sampler: %w", err)
	}

	p.fallbackArrayTexture, p.fallbackArrayView, err = p.createDepthArray("Fallback Shadow Array", 1, MaxShadowLights)
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("shadow pool: fallback array: %w", err)
	}

	p.fallbackCubeTexture, err = p.createCubeTexture("Fallback Shadow Cube", 1)
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("shadow pool: fallback cube: %w", err)
	}
	p.fallbackCubeView, err = p.fallbackCubeTexture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           "Fallback Shadow Cube View",
		Format:          shadowDepthFormat,
		Dimension:       wgpu.TextureViewDimensionCube,
		MipLevelCount:   1,
		ArrayLayerCount: CubeFaceCount,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("shadow pool: fallback cube view: %w", err)
	}

	if err := p.clearFallbacks(); err != nil {
		p.Destroy()
		return nil, err
	}

	return p, nil
}

// clearFallbacks writes depth 1.0 into every fallback layer and face so a
// light without a real slot always samples as fully lit.
func (p *ShadowPool) clearFallbacks() error {
	encoder, err := p.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("shadow pool: fallback clear encoder: %w", err)
	}
	defer encoder.Release()

	clearLayer := func(tex *wgpu.Texture, label string, layer int) error {
		view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           label,
			Format:          shadowDepthFormat,
			Dimension:       wgpu.TextureViewDimension2D,
			MipLevelCount:   1,
			BaseArrayLayer:  uint32(layer),
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			return fmt.Errorf("shadow pool: fallback clear view: %w", err)
		}
		defer view.Release()

		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			Label: "Fallback Shadow Clear",
			DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
				View:            view,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: 1.0,
			},
		})
		if err := pass.End(); err != nil {
			pass.Release()
			return fmt.Errorf("shadow pool: fallback clear pass: %w", err)
		}
		pass.Release()
		return nil
	}

	for layer := 0; layer < MaxShadowLights; layer++ {
		if err := clearLayer(p.fallbackArrayTexture, "Fallback Array Clear", layer); err != nil {
			return err
		}
	}
	for face := 0; face < CubeFaceCount; face++ {
		if err := clearLayer(p.fallbackCubeTexture, "Fallback Cube Clear", face); err != nil {
			return err
		}
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("shadow pool: fallback clear finish: %w", err)
	}
	defer cmd.Release()
	p.queue.Submit(cmd)
	return nil
}

func (p *ShadowPool) createDepthArray(label string, resolution, layers int) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := p.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(resolution),
			Height:             uint32(resolution),
			DepthOrArrayLayers: uint32(layers),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        shadowDepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " View",
		Format:          shadowDepthFormat,
		Dimension:       wgpu.TextureViewDimension2DArray,
		MipLevelCount:   1,
		ArrayLayerCount: uint32(layers),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

func (p *ShadowPool) createCubeTexture(label string, resolution int) (*wgpu.Texture, error) {
	return p.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(resolution),
			Height:             uint32(resolution),
			DepthOrArrayLayers: CubeFaceCount,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        shadowDepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
}

// EnsureArray (re)allocates the projective depth array. Reallocation happens
// only when (layers, resolution) differs from the cached values, so a stable
// admitted set causes no churn.
func (p *ShadowPool) EnsureArray(layers, resolution int) error {
	if layers <= 0 || resolution <= 0 {
		return nil
	}
	if p.arrayTexture != nil && p.arrayLayers == layers && p.arrayResolution == resolution {
		return nil
	}
	p.releaseArray()

	tex, view, err := p.createDepthArray("Shadow Depth Array", resolution, layers)
	if err != nil {
		return fmt.Errorf("shadow pool: depth array %dx%d@%d: %w", resolution, resolution, layers, err)
	}

	layerViews := make([]*wgpu.TextureView, layers)
	for i := 0; i < layers; i++ {
		layerViews[i], err = tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("Shadow Depth Array Layer %d", i),
			Format:          shadowDepthFormat,
			Dimension:       wgpu.TextureViewDimension2D,
			MipLevelCount:   1,
			BaseArrayLayer:  uint32(i),
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			for _, v := range layerViews[:i] {
				v.Release()
			}
			view.Release()
			tex.Release()
			return fmt.Errorf("shadow pool: layer view %d: %w", i, err)
		}
	}

	p.arrayTexture = tex
	p.arrayView = view
	p.arrayLayerViews = layerViews
	p.arrayLayers = layers
	p.arrayResolution = resolution
	return nil
}

// EnsureCube returns the cube storage for a point light, (re)allocating when
// the light has none or its requested resolution changed. The second return
// reports a fresh allocation: the caller must then render every face, since
// the new texture holds no usable depth.
func (p *ShadowPool) EnsureCube(id LightID, resolution int) (*CubeShadow, bool, error) {
	if cube, ok := p.cubes[id]; ok {
		if cube.Resolution == resolution {
			return cube, false, nil
		}
		p.releaseCube(cube)
		delete(p.cubes, id)
	}

	tex, err := p.createCubeTexture("Point Shadow Cube", resolution)
	if err != nil {
		return nil, false, fmt.Errorf("shadow pool: cube %d: %w", resolution, err)
	}

	cube := &CubeShadow{Texture: tex, Resolution: resolution}
	cube.CubeView, err = tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           "Point Shadow Cube View",
		Format:          shadowDepthFormat,
		Dimension:       wgpu.TextureViewDimensionCube,
		MipLevelCount:   1,
		ArrayLayerCount: CubeFaceCount,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, false, fmt.Errorf("shadow pool: cube view: %w", err)
	}
	for face := 0; face < CubeFaceCount; face++ {
		cube.FaceViews[face], err = tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("Point Shadow Cube Face %d", face),
			Format:          shadowDepthFormat,
			Dimension:       wgpu.TextureViewDimension2D,
			MipLevelCount:   1,
			BaseArrayLayer:  uint32(face),
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			p.releaseCube(cube)
			return nil, false, fmt.Errorf("shadow pool: cube face view %d: %w", face, err)
		}
	}

	p.cubes[id] = cube
	return cube, true, nil
}

// Cube returns the existing storage for a light, or nil.
func (p *ShadowPool) Cube(id LightID) *CubeShadow {
	return p.cubes[id]
}

// CubeCount returns the number of live cubemaps.
func (p *ShadowPool) CubeCount() int {
	return len(p.cubes)
}

// Release frees the cubemaps of evicted lights immediately. Evicted storage
// is never cached; a later re-admission reallocates from scratch.
func (p *ShadowPool) Release(ids []LightID) {
	for _, id := range ids {
		if cube, ok := p.cubes[id]; ok {
			p.releaseCube(cube)
			delete(p.cubes, id)
			p.log.Debugf("shadow pool: released cube for light %s", id)
		}
	}
}

// FallbackArrayView returns the 1x1 always-lit depth array bound for lights
// without a projective slot.
func (p *ShadowPool) FallbackArrayView() *wgpu.TextureView { return p.fallbackArrayView }

// FallbackCubeView returns the 1x1 always-lit cubemap bound for lights
// without a cube slot.
func (p *ShadowPool) FallbackCubeView() *wgpu.TextureView { return p.fallbackCubeView }

// ArrayView returns the whole-array view for shading, or the fallback when
// no array has been allocated yet.
func (p *ShadowPool) ArrayView() *wgpu.TextureView {
	if p.arrayView == nil {
		return p.fallbackArrayView
	}
	return p.arrayView
}

// ArrayLayerView returns the render-attachment view of one layer.
func (p *ShadowPool) ArrayLayerView(layer int) *wgpu.TextureView {
	if layer < 0 || layer >= len(p.arrayLayerViews) {
		return nil
	}
	return p.arrayLayerViews[layer]
}

// ArrayResolution returns the current shared resolution, 0 when unallocated.
func (p *ShadowPool) ArrayResolution() int { return p.arrayResolution }

// CompareSampler returns the depth-comparison (hardware PCF) sampler.
func (p *ShadowPool) CompareSampler() *wgpu.Sampler { return p.compareSampler }

// RawSampler returns the non-comparison sampler for depth visualization.
func (p *ShadowPool) RawSampler() *wgpu.Sampler { return p.rawSampler }

func (p *ShadowPool) releaseArray() {
	for _, v := range p.arrayLayerViews {
		v.Release()
	}
	p.arrayLayerViews = nil
	if p.arrayView != nil {
		p.arrayView.Release()
		p.arrayView = nil
	}
	if p.arrayTexture != nil {
		p.arrayTexture.Release()
		p.arrayTexture = nil
	}
	p.arrayLayers = 0
	p.arrayResolution = 0
}

func (p *ShadowPool) releaseCube(cube *CubeShadow) {
	for _, v := range cube.FaceViews {
		if v != nil {
			v.Release()
		}
	}
	if cube.CubeView != nil {
		cube.CubeView.Release()
	}
	if cube.Texture != nil {
		cube.Texture.Release()
	}
}

// Destroy frees everything the pool owns.
func (p *ShadowPool) Destroy() {
	p.releaseArray()
	for id, cube := range p.cubes {
		p.releaseCube(cube)
		delete(p.cubes, id)
	}
	if p.fallbackArrayView != nil {
		p.fallbackArrayView.Release()
		p.fallbackArrayView = nil
	}
	if p.fallbackArrayTexture != nil {
		p.fallbackArrayTexture.Release()
		p.fallbackArrayTexture = nil
	}
	if p.fallbackCubeView != nil {
		p.fallbackCubeView.Release()
		p.fallbackCubeView = nil
	}
	if p.fallbackCubeTexture != nil {
		p.fallbackCubeTexture.Release()
		p.fallbackCubeTexture = nil
	}
	if p.compareSampler != nil {
		p.compareSampler.Release()
		p.compareSampler = nil
	}
	if p.rawSampler != nil {
		p.rawSampler.Release()
		p.rawSampler = nil
	}
}
