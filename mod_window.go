package umbra

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowState owns the GLFW window. The window lives on the main OS thread;
// the loop that polls it must stay locked to that thread.
type WindowState struct {
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
	windowTitle  string
}

// GpuState owns the wgpu device, queue and the configured surface.
type GpuState struct {
	Surface       *wgpu.Surface
	Adapter       *wgpu.Adapter
	Device        *wgpu.Device
	Queue         *wgpu.Queue
	SurfaceConfig *wgpu.SurfaceConfiguration
}

// WindowModule creates the GLFW window and brings up the wgpu device and
// swapchain, then installs both as resources.
type WindowModule struct {
	Width  int
	Height int
	Title  string
}

func (mod WindowModule) Install(app *App) {
	win := createWindowState(mod.Width, mod.Height, mod.Title)
	gpu := createGpuState(win)

	app.AddResources(win, gpu)
	app.UseSystem(System(windowEventsSystem).InStage(Prelude))
}

func createWindowState(windowWidth int, windowHeight int, windowTitle string) *WindowState {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // tell GLFW we don't want OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		panic(err)
	}

	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  windowWidth,
		WindowHeight: windowHeight,
		windowTitle:  windowTitle,
	}
}

func createGpuState(s *WindowState) *GpuState {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	// wraps the GLFW window into a wgpu surface
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(s.windowGlfw))
	// finds a suitable GPU (discrete GPU preferred)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		panic(err)
	}
	// allocates the device and command queue
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "Main Device",
		RequiredFeatures: nil,
		RequiredLimits:   nil,
	})
	if err != nil {
		panic(err)
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	// defines how the swapchain behaves (size, format, vsync)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(s.WindowWidth),
		Height:      uint32(s.WindowHeight),
		PresentMode: wgpu.PresentModeFifo, // vsync
		AlphaMode:   caps.AlphaModes[0],
	}

	surface.Configure(adapter, device, &surfaceConfig)

	return &GpuState{
		Surface:       surface,
		Adapter:       adapter,
		Device:        device,
		Queue:         queue,
		SurfaceConfig: &surfaceConfig,
	}
}

func windowEventsSystem(s *WindowState, gpu *GpuState, app *App) {
	if s.windowGlfw.ShouldClose() {
		app.Quit()
		return
	}
	glfw.PollEvents()

	// Reconfigure the swapchain when the framebuffer size changes.
	w, h := s.windowGlfw.GetSize()
	if w > 0 && h > 0 && (w != s.WindowWidth || h != s.WindowHeight) {
		s.WindowWidth = w
		s.WindowHeight = h
		gpu.SurfaceConfig.Width = uint32(w)
		gpu.SurfaceConfig.Height = uint32(h)
		gpu.Surface.Configure(gpu.Adapter, gpu.Device, gpu.SurfaceConfig)
	}
}
