package umbra

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the single scene camera resource.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32 // degrees
	Pitch    float32 // degrees

	FovDeg float32
	Near   float32
	Far    float32

	Speed       float32
	Sensitivity float32
}

// Forward returns the normalized view direction derived from yaw/pitch.
func (c *Camera) Forward() mgl32.Vec3 {
	yawRad := mgl32.DegToRad(c.Yaw)
	pitchRad := mgl32.DegToRad(c.Pitch)

	return mgl32.Vec3{
		float32(math.Sin(float64(yawRad)) * math.Cos(float64(pitchRad))),
		float32(math.Sin(float64(pitchRad))),
		float32(-math.Cos(float64(yawRad)) * math.Cos(float64(pitchRad))),
	}.Normalize()
}

// ViewMatrix builds the right-handed lookAt view matrix.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	forward := c.Forward()
	return mgl32.LookAtV(c.Position, c.Position.Add(forward), mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix builds a perspective projection remapped to WebGPU's
// z in [0,1] clip convention.
func (c *Camera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(c.FovDeg), aspect, c.Near, c.Far)
	return glToWgpuClip.Mul4(proj)
}

// glToWgpuClip remaps OpenGL clip z from [-1,1] to WebGPU's [0,1].
var glToWgpuClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// CameraModule installs the camera resource and the fly controls.
type CameraModule struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
}

func (m CameraModule) Install(app *App) {
	app.AddResources(&Camera{
		Position:    m.Position,
		Yaw:         m.Yaw,
		Pitch:       m.Pitch,
		FovDeg:      60,
		Near:        0.1,
		Far:         500,
		Speed:       8.0,
		Sensitivity: 0.1,
	})
	app.UseSystem(System(flyCameraSystem).InStage(Update))
}

func flyCameraSystem(cam *Camera, input *Input, tm *Time) {
	if input.JustPressed[KeyTab] {
		input.MouseCaptured = !input.MouseCaptured
	}

	dt := float32(tm.Dt)
	if dt <= 0 {
		return
	}

	if input.MouseCaptured {
		cam.Yaw += float32(input.MouseDeltaX) * cam.Sensitivity
		cam.Pitch -= float32(input.MouseDeltaY) * cam.Sensitivity
	}

	// Clamp pitch
	if cam.Pitch > 89.0 {
		cam.Pitch = 89.0
	}
	if cam.Pitch < -89.0 {
		cam.Pitch = -89.0
	}

	forward := cam.Forward()
	right := forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
	up := mgl32.Vec3{0, 1, 0}

	moveDir := mgl32.Vec3{0, 0, 0}
	if input.Pressed[KeyW] {
		moveDir = moveDir.Add(forward)
	}
	if input.Pressed[KeyS] {
		moveDir = moveDir.Sub(forward)
	}
	if input.Pressed[KeyD] {
		moveDir = moveDir.Add(right)
	}
	if input.Pressed[KeyA] {
		moveDir = moveDir.Sub(right)
	}
	if input.Pressed[KeySpace] {
		moveDir = moveDir.Add(up)
	}
	if input.Pressed[KeyControl] {
		moveDir = moveDir.Sub(up)
	}

	if moveDir.Len() > 0 {
		cam.Position = cam.Position.Add(moveDir.Normalize().Mul(cam.Speed * dt))
	}
}
