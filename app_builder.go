package umbra

import (
	"reflect"
)

type AppBuilder struct {
	app     *App
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	app := &App{
		stages:    defaultStages(),
		systems:   make(map[string][]systemFn),
		resources: make(map[reflect.Type]any),
	}
	for _, stage := range app.stages {
		app.systems[stage.Name] = make([]systemFn, 0)
	}
	return &AppBuilder{app: app}
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)
	return b
}

func (b *AppBuilder) Build() *App {
	app := b.app
	for _, module := range b.modules {
		module.Install(app)
	}
	return app
}
