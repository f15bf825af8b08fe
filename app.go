package umbra

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// Module is a unit of engine functionality. Installing a module registers
// its resources and systems on the app.
type Module interface {
	Install(app *App)
}

// App owns the resource map and the per-stage system lists, and drives the
// frame loop. Systems are plain functions; their pointer parameters are
// resolved from the resource map when they are called.
type App struct {
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any

	quitRequested bool
}

// AddResources registers resources for system injection. Each resource type
// can be registered once; a duplicate registration is a wiring bug and panics.
func (app *App) AddResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Quit makes the frame loop stop after the current frame completes.
func (app *App) Quit() {
	app.quitRequested = true
}

// Run executes the frame loop until a system calls Quit.
func (app *App) Run() {
	for !app.quitRequested {
		app.RunFrame()
	}
}

// RunFrame executes every stage once, in order.
func (app *App) RunFrame() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
	}
}

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)

		if argType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("system %s: parameter %d must be a pointer", systemName(systemValue), i))
		}

		if argType.Elem() == reflect.TypeOf(App{}) {
			args[i] = reflect.ValueOf(app)
			continue
		}

		resource, ok := app.resources[argType.Elem()]
		if !ok {
			msg := fmt.Sprintf("Unable to resolve system dependency.\nSystem: %s\nDependency: %s",
				systemName(systemValue),
				fmt.Sprint(argType),
			)
			panic(msg)
		}
		args[i] = reflect.ValueOf(resource)
	}
	systemValue.Call(args)
}

func systemName(v reflect.Value) string {
	return runtime.FuncForPC(v.Pointer()).Name()
}

// resource fetches a registered resource by type. Used by modules that need
// another module's resource at install time; missing dependencies are a
// wiring bug and panic.
func resource[T any](app *App) *T {
	r, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		panic(fmt.Sprintf("resource %T is not installed", (*T)(nil)))
	}
	return r.(*T)
}

// ResourceOf is the exported form of resource lookup for module authors
// outside the package.
func ResourceOf[T any](app *App) *T {
	return resource[T](app)
}
