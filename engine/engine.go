package engine

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/saeedelsayed/vulkan-playground/engine/assets"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/platform"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer"
	"github.com/saeedelsayed/vulkan-playground/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Everything has been released
	EngineStageShutdown
)

type Engine struct {
	currentStage  Stage
	config        *ApplicationConfig
	gameInstance  *Game
	isRunning     bool
	isSuspended   bool
	bus           *core.EventBus
	platform      *platform.Platform
	renderer      *renderer.Renderer
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.Metrics
	frameCount    uint64

	// Textures changed on disk since the last frame.
	pendingReloads map[string]struct{}
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.New("game and application config are required")
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		currentStage:   EngineStageUninitialized,
		config:         g.ApplicationConfig,
		gameInstance:   g,
		bus:            core.NewEventBus(),
		clock:          core.NewClock(),
		metrics:        core.NewMetrics(),
		width:          g.ApplicationConfig.StartWidth,
		height:         g.ApplicationConfig.StartHeight,
		pendingReloads: make(map[string]struct{}),
	}, nil
}

// Events returns the bus the engine dispatches once per frame. Safe to use
// from any goroutine.
func (e *Engine) Events() *core.EventBus {
	return e.bus
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return errors.AssertionFailedf("engine initialized twice")
	}
	e.currentStage = EngineStageInitializing
	cfg := e.config
	core.SetLogLevel(cfg.LogLevel)

	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return err
		}
	}

	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onQuit)
	e.bus.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.bus.Register(core.EVENT_CODE_TEXTURE_CHANGED, e.onTextureChanged)

	var surface renderer.Surface
	if !cfg.Renderer.Headless {
		e.platform = platform.New(e.bus)
		if err := e.platform.Startup(cfg.Name, cfg.StartPosX, cfg.StartPosY, cfg.StartWidth, cfg.StartHeight); err != nil {
			return err
		}
		surface = e.platform
	}

	r, err := renderer.New(renderer.Config{
		ApplicationName: cfg.Name,
		Width:           cfg.StartWidth,
		Height:          cfg.StartHeight,
		FramesInFlight:  cfg.Renderer.FramesInFlight,
		Headless:        cfg.Renderer.Headless,
		Validation:      cfg.Renderer.Validation,
		VSync:           cfg.Renderer.VSync,
	}, surface)
	if err != nil {
		return err
	}
	e.renderer = r

	e.assetManager, err = assets.NewAssetManager(e.bus)
	if err != nil {
		return err
	}
	if err := e.assetManager.Initialize(cfg.Assets.HotReload, assetDirs(cfg.Assets)...); err != nil {
		return err
	}

	e.systemManager, err = systems.NewSystemManager(cfg.Assets.Workers, r, e.assetManager)
	if err != nil {
		return err
	}
	textures, err := e.systemManager.TextureSystem.LoadTextures(cfg.Assets.Textures)
	if err != nil {
		return err
	}
	if err := r.InitializeGlobalState(textures); err != nil {
		return err
	}

	e.gameInstance.SystemManager = e.systemManager
	e.gameInstance.Renderer = r
	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// assetDirs lists the directories holding the configured textures and
// shaders, without duplicates.
func assetDirs(cfg AssetsConfig) []string {
	seen := make(map[string]struct{})
	for _, t := range cfg.Textures {
		seen[filepath.Clean(filepath.Dir(t))] = struct{}{}
	}
	if cfg.ShadersDir != "" {
		seen[filepath.Clean(cfg.ShadersDir)] = struct{}{}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	// A directory nested in another is walked by its parent.
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		nested := false
		for _, parent := range out {
			if isWithin(parent, d) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, d)
		}
	}
	return out
}

func isWithin(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

/**
 * @brief Runs frames until the quit event, the window closing, max_frames
 * or a fatal error. Shutdown must still be called afterwards.
 */
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return errors.AssertionFailedf("run called in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true
	e.clock.Start()
	maxFrames := e.config.Renderer.MaxFrames

	for e.isRunning {
		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		e.bus.Dispatch()
		if !e.isRunning {
			break
		}
		e.reloadTextures()

		if e.isSuspended {
			if e.platform != nil {
				e.platform.WaitEvents()
			} else {
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}

		frameStart := time.Now()
		delta := float64(e.clock.Tick())

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}

		packet := &renderer.RenderPacket{DeltaTime: delta}
		if err := e.gameInstance.FnRender(packet, delta); err != nil {
			core.LogError("game render failed, shutting down: %s", err)
			return err
		}
		if err := e.renderer.DrawFrame(packet); err != nil {
			core.LogError("frame %d failed: %+v", e.frameCount, err)
			return err
		}
		e.frameCount++

		if e.metrics.Update(time.Since(frameStart).Seconds()) {
			core.LogDebug("fps %.0f, frame %.3fms", e.metrics.FPS(), e.metrics.FrameTime())
		}
		if maxFrames > 0 && e.frameCount >= maxFrames {
			core.LogInfo("rendered %d frames, stopping", e.frameCount)
			e.isRunning = false
		}
	}
	return nil
}

// reloadTextures runs between frames, so no frame is being recorded while
// the global sets are rewritten.
func (e *Engine) reloadTextures() {
	if len(e.pendingReloads) == 0 {
		return
	}
	for path := range e.pendingReloads {
		delete(e.pendingReloads, path)
		if _, err := e.systemManager.TextureSystem.Reload(path); err != nil {
			core.LogError("hot reload of %s failed: %s", path, err)
		}
	}
}

/**
 * @brief Waits for the device to go idle, then releases everything in the
 * reverse order of creation. Safe to call after a failed Initialize.
 */
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	var errs error

	if e.renderer != nil {
		if err := e.renderer.WaitIdle(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if e.renderer != nil {
		e.renderer.ReleaseGlobalState()
	}
	if e.systemManager != nil {
		if err := e.systemManager.Shutdown(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if e.assetManager != nil {
		if err := e.assetManager.Shutdown(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	e.bus.Shutdown()
	e.currentStage = EngineStageShutdown
	core.LogInfo("engine shut down after %d frames", e.frameCount)
	return errs
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onQuit(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.isRunning = false
	return true
}

func (e *Engine) onTextureChanged(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
	e.pendingReloads[data.Path] = struct{}{}
	return true
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
	width, height := data.U32[0], data.U32[1]
	if width == e.width && height == e.height {
		return true
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.renderer.OnResize(width, height)
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	return true
}
