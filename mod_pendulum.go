package umbra

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Pendulum swings a shadow-casting point light on a damped arm. While the
// swing is fast the light requests a full cubemap refresh every frame, so the
// moving shadows never show a stale face.
type Pendulum struct {
	Anchor  mgl32.Vec3
	Length  float32
	Angle   float32 // radians from vertical
	Speed   float32 // angular velocity, radians per second
	Damping float32 // per-second velocity decay
	Azimuth float32 // swing plane rotation around Y, radians

	// FastSpeed is the angular speed above which the light forces full
	// cubemap refreshes.
	FastSpeed float32

	Light  LightID
	marker *MeshInstance
}

// Position returns the bob's world position for the current angle.
func (p *Pendulum) Position() mgl32.Vec3 {
	planeDir := mgl32.Vec3{
		float32(math.Cos(float64(p.Azimuth))),
		0,
		float32(math.Sin(float64(p.Azimuth))),
	}
	sin := float32(math.Sin(float64(p.Angle)))
	cos := float32(math.Cos(float64(p.Angle)))
	return p.Anchor.Add(planeDir.Mul(sin * p.Length)).Sub(mgl32.Vec3{0, cos * p.Length, 0})
}

// Step integrates the damped pendulum equation.
func (p *Pendulum) Step(dt float32) {
	const gravity = 9.81
	if p.Length <= 0 {
		return
	}
	accel := -(gravity / p.Length) * float32(math.Sin(float64(p.Angle)))
	p.Speed += accel * dt
	p.Speed *= float32(math.Max(0, float64(1.0-p.Damping*dt)))
	p.Angle += p.Speed * dt
}

// PendulumModule creates the pendulum, its point light and a small emissive
// marker mesh at the bob.
type PendulumModule struct {
	Anchor     mgl32.Vec3
	Length     float32
	StartAngle float32 // radians
	Color      [3]float32
}

func (m PendulumModule) Install(app *App) {
	lights := resource[LightRegistry](app)
	meshes := resource[MeshRegistry](app)

	length := m.Length
	if length <= 0 {
		length = 6
	}
	color := m.Color
	if color == ([3]float32{}) {
		color = [3]float32{1.0, 0.7, 0.3}
	}

	light := NewLight(LightTypePoint)
	light.Color = color
	light.Intensity = 3.0
	light.Range = 30
	light.CastsShadows = true
	light.ShadowFarPlane = 40
	light.Importance = 2.0
	lights.Add(light)

	pendulum := &Pendulum{
		Anchor:    m.Anchor,
		Length:    length,
		Angle:     m.StartAngle,
		Damping:   0.12,
		FastSpeed: 1.5,
		Light:     light.ID,
	}

	if id, err := CreateSphereMesh(meshes, 0.25, 12); err == nil {
		pendulum.marker = meshes.AddInstance(&MeshInstance{
			Mesh: id,
			Material: Material{
				BaseColor: [4]float32{color[0], color[1], color[2], 1},
				Emissive:  2.0,
			},
		})
	} else {
		app.Logger().Errorf("pendulum: marker mesh: %v", err)
	}

	app.AddResources(pendulum)
	app.UseSystem(System(pendulumSystem).InStage(Update))
}

func pendulumSystem(p *Pendulum, lights *LightRegistry, t *Time) {
	dt := float32(t.Dt)
	if dt <= 0 {
		return
	}
	p.Step(dt)

	pos := p.Position()
	if p.marker != nil {
		p.marker.Position = pos
	}
	light := lights.Get(p.Light)
	if light == nil {
		return
	}
	light.Position = pos
	if speed := p.Speed; speed > p.FastSpeed || speed < -p.FastSpeed {
		light.UpdateShadowThisFrame = true
	}
}
