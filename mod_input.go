package umbra

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	KeyA int = iota
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyL
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyW
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeySpace
	KeyEnter
	KeyEscape
	KeyTab
	KeyRight
	KeyLeft
	KeyDown
	KeyUp
	KeyF1
	KeyF2
	KeyF3
	KeyShift
	KeyControl
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle
	keyCount
)

type InputModule struct{}

type Input struct {
	Pressed [keyCount]bool

	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	MouseCaptured            bool

	WindowWidth, WindowHeight int
}

func (mod InputModule) Install(app *App) {
	app.AddResources(&Input{})
	app.UseSystem(System(inputSystem).InStage(PreUpdate))
}

func inputSystem(s *WindowState, input *Input) {
	// Update keyboard
	for key, glfwKey := range keyToGlfw {
		action := s.windowGlfw.GetKey(glfwKey)

		input.JustPressed[key] = false
		input.JustReleased[key] = false

		if glfw.Press == action {
			if !input.Pressed[key] {
				input.JustPressed[key] = true
			}
			input.Pressed[key] = true
		} else if glfw.Release == action {
			if input.Pressed[key] {
				input.JustReleased[key] = true
			}
			input.Pressed[key] = false
		}
	}

	// Update mouse
	mx, my := s.windowGlfw.GetCursorPos()
	if input.MouseCaptured {
		input.MouseDeltaX = mx - input.MouseX
		input.MouseDeltaY = my - input.MouseY
	} else {
		input.MouseDeltaX = 0
		input.MouseDeltaY = 0
	}
	input.MouseX = mx
	input.MouseY = my

	input.WindowWidth, input.WindowHeight = s.windowGlfw.GetSize()

	// Update mouse buttons
	for btn := MouseButtonLeft; btn <= MouseButtonMiddle; btn++ {
		var glfwBtn glfw.MouseButton
		switch btn {
		case MouseButtonLeft:
			glfwBtn = glfw.MouseButtonLeft
		case MouseButtonRight:
			glfwBtn = glfw.MouseButtonRight
		case MouseButtonMiddle:
			glfwBtn = glfw.MouseButtonMiddle
		}

		action := s.windowGlfw.GetMouseButton(glfwBtn)
		input.JustPressed[btn] = false
		input.JustReleased[btn] = false

		if glfw.Press == action {
			if !input.Pressed[btn] {
				input.JustPressed[btn] = true
			}
			input.Pressed[btn] = true
		} else if glfw.Release == action {
			if input.Pressed[btn] {
				input.JustReleased[btn] = true
			}
			input.Pressed[btn] = false
		}
	}

	if input.MouseCaptured {
		s.windowGlfw.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		s.windowGlfw.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

var keyToGlfw = map[int]glfw.Key{
	KeyA:       glfw.KeyA,
	KeyB:       glfw.KeyB,
	KeyC:       glfw.KeyC,
	KeyD:       glfw.KeyD,
	KeyE:       glfw.KeyE,
	KeyF:       glfw.KeyF,
	KeyG:       glfw.KeyG,
	KeyH:       glfw.KeyH,
	KeyL:       glfw.KeyL,
	KeyP:       glfw.KeyP,
	KeyQ:       glfw.KeyQ,
	KeyR:       glfw.KeyR,
	KeyS:       glfw.KeyS,
	KeyT:       glfw.KeyT,
	KeyW:       glfw.KeyW,
	Key0:       glfw.Key0,
	Key1:       glfw.Key1,
	Key2:       glfw.Key2,
	Key3:       glfw.Key3,
	Key4:       glfw.Key4,
	Key5:       glfw.Key5,
	Key6:       glfw.Key6,
	Key7:       glfw.Key7,
	Key8:       glfw.Key8,
	Key9:       glfw.Key9,
	KeySpace:   glfw.KeySpace,
	KeyEnter:   glfw.KeyEnter,
	KeyEscape:  glfw.KeyEscape,
	KeyTab:     glfw.KeyTab,
	KeyRight:   glfw.KeyRight,
	KeyLeft:    glfw.KeyLeft,
	KeyDown:    glfw.KeyDown,
	KeyUp:      glfw.KeyUp,
	KeyF1:      glfw.KeyF1,
	KeyF2:      glfw.KeyF2,
	KeyF3:      glfw.KeyF3,
	KeyShift:   glfw.KeyLeftShift,
	KeyControl: glfw.KeyLeftControl,
}
