package umbra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type MockModule struct {
	installed bool
}

func (m *MockModule) Install(app *App) {
	m.installed = true
}

type MockModule2 struct {
	installed bool
}

func (m *MockModule2) Install(app *App) {
	m.installed = true
}

func TestAppBuilder_InstallsModules(t *testing.T) {
	mod1 := &MockModule{}
	mod2 := &MockModule2{}

	app := NewAppBuilder().
		UseModule(mod1, mod2).
		Build()

	assert.NotNil(t, app)
	assert.True(t, mod1.installed, "first module should be installed")
	assert.True(t, mod2.installed, "second module should be installed")
}

func TestAppBuilder_DefaultStages(t *testing.T) {
	app := NewAppBuilder().Build()

	assert.Equal(t, defaultStages(), app.stages)
	for _, stage := range app.stages {
		assert.Contains(t, app.systems, stage.Name)
	}
}

func TestAppBuilder_ModuleResources(t *testing.T) {
	app := NewAppBuilder().
		UseModule(LoggingModule{Prefix: "test"}).
		Build()

	logger := app.Logger()
	assert.NotNil(t, logger)
	assert.False(t, logger.DebugEnabled())
}
