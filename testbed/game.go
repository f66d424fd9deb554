package testbed

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/saeedelsayed/vulkan-playground/engine"
	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/components"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/views"
)

const (
	VertexShaderFile   = "world.vert.spv"
	FragmentShaderFile = "world.frag.spv"

	orbitCameraName = "orbit"
	// Radians per second.
	orbitSpeed  float32 = 0.4
	orbitRadius float32 = 2.5
	orbitHeight float32 = 0.8
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera
	orbitAngle  float32

	width  uint32
	height uint32

	quad    *views.Model
	objects []*views.GameObject
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	// Sampler order in world.frag: nature, then background.
	core.LogDebug("textures: %v", g.ApplicationConfig.Assets.Textures)
	return nil
}

// QuadBuilder is a unit quad in the XY plane facing +Z, with UVs covering the
// whole texture.
func QuadBuilder() views.ModelBuilder {
	normal := mgl32.Vec3{0, 0, 1}
	return views.ModelBuilder{
		Vertices: []views.Vertex{
			{Position: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}, Normal: normal, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}, Normal: normal, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}, Normal: normal, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}, Normal: normal, UV: mgl32.Vec2{0, 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

func loadShader(dir, name string) ([]byte, error) {
	bl := &loaders.BinaryLoader{}
	res, err := bl.Load(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	return res.Data.([]byte), nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	if g.SystemManager == nil || g.Renderer == nil {
		return errors.New("the engine is not yet initialized with all the system managers")
	}
	state := g.State.(*gameState)
	r := g.Renderer

	shadersDir := g.ApplicationConfig.Assets.ShadersDir
	vert, err := loadShader(shadersDir, VertexShaderFile)
	if err != nil {
		return err
	}
	frag, err := loadShader(shadersDir, FragmentShaderFile)
	if err != nil {
		return err
	}
	world, err := views.NewWorldView(r.Context, views.WorldViewConfig{
		RenderPass:     r.RenderPass(),
		GlobalLayout:   r.GlobalLayout(),
		VertexShader:   vert,
		FragmentShader: frag,
	})
	if err != nil {
		return err
	}
	// The renderer destroys registered views with the global state.
	r.RegisterView(world)

	state.quad, err = views.NewModel(r.Context, r.Transfer, QuadBuilder())
	if err != nil {
		return err
	}
	state.objects = []*views.GameObject{views.NewGameObject(state.quad)}

	state.WorldCamera, err = g.SystemManager.CameraSystem.Acquire(orbitCameraName)
	if err != nil {
		return err
	}
	state.WorldCamera.Orbit(mgl32.Vec3{}, orbitRadius, orbitHeight, 0)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.orbitAngle += orbitSpeed * float32(deltaTime)
	state.WorldCamera.Orbit(mgl32.Vec3{}, orbitRadius, orbitHeight, state.orbitAngle)
	return nil
}

func (g *TestGame) Render(packet *renderer.RenderPacket, deltaTime float64) error {
	state := g.State.(*gameState)
	packet.Camera = state.WorldCamera
	packet.Objects = state.objects
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	if state.quad != nil {
		state.quad.Destroy()
		state.quad = nil
	}
	state.objects = nil
	if state.WorldCamera != nil {
		g.SystemManager.CameraSystem.Release(orbitCameraName)
		state.WorldCamera = nil
	}
	return nil
}
