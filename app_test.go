package umbra

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func newTestApp() *App {
	app := &App{
		stages:    defaultStages(),
		systems:   make(map[string][]systemFn),
		resources: make(map[reflect.Type]any),
	}
	for _, stage := range app.stages {
		app.systems[stage.Name] = make([]systemFn, 0)
	}
	return app
}

func TestApp_AddResources(t *testing.T) {
	app := newTestApp()

	resource1 := &MockResource1{name: "Resource1"}
	app.AddResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.AddResources(resource1)
	})

	resource2 := &MockResource2{name: "Resource2"}
	app.AddResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")
}

func TestApp_AddResources_RejectsValue(t *testing.T) {
	app := newTestApp()
	require.Panics(t, func() {
		app.AddResources(MockResource1{name: "not a pointer"})
	})
}

func TestApp_SystemInjection(t *testing.T) {
	app := newTestApp()
	app.AddResources(&MockResource1{name: "injected"})

	var got string
	app.UseSystem(System(func(r *MockResource1) {
		got = r.name
	}))

	app.RunFrame()
	assert.Equal(t, "injected", got)
}

func TestApp_SystemInjection_AppParameter(t *testing.T) {
	app := newTestApp()

	var got *App
	app.UseSystem(System(func(a *App) {
		got = a
	}))

	app.RunFrame()
	assert.Same(t, app, got)
}

func TestApp_SystemInjection_MissingResourcePanics(t *testing.T) {
	app := newTestApp()
	app.UseSystem(System(func(r *MockResource1) {}))

	require.Panics(t, func() {
		app.RunFrame()
	})
}

func TestApp_StageOrder(t *testing.T) {
	app := newTestApp()

	var order []string
	app.UseSystem(System(func() { order = append(order, "render") }).InStage(Render))
	app.UseSystem(System(func() { order = append(order, "prelude") }).InStage(Prelude))
	app.UseSystem(System(func() { order = append(order, "update") }).InStage(Update))

	app.RunFrame()
	assert.Equal(t, []string{"prelude", "update", "render"}, order)
}

func TestApp_QuitStopsRun(t *testing.T) {
	app := newTestApp()

	frames := 0
	app.UseSystem(System(func(a *App) {
		frames++
		if frames == 3 {
			a.Quit()
		}
	}))

	app.Run()
	assert.Equal(t, 3, frames)
}

func TestApp_UseStage(t *testing.T) {
	app := newTestApp()
	custom := Stage{Name: "Custom"}
	app.UseStage(custom, AfterStage(Update))

	var order []string
	app.UseSystem(System(func() { order = append(order, "update") }).InStage(Update))
	app.UseSystem(System(func() { order = append(order, "custom") }).InStage(custom))
	app.UseSystem(System(func() { order = append(order, "postupdate") }).InStage(PostUpdate))

	app.RunFrame()
	assert.Equal(t, []string{"update", "custom", "postupdate"}, order)
}

func TestApp_UseSystem_UnknownStagePanics(t *testing.T) {
	app := newTestApp()
	require.Panics(t, func() {
		app.UseSystem(System(func() {}).InStage(Stage{Name: "Nope"}))
	})
}

func TestApp_Logger_FallsBackToNop(t *testing.T) {
	app := newTestApp()
	logger := app.Logger()
	require.NotNil(t, logger)
	assert.False(t, logger.DebugEnabled())
}
