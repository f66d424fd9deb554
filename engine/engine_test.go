package engine_test

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/testbed"
)

func writeTexture(t *testing.T, path string, size int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// headlessConfig lays out a texture and a shader directory under a temp dir.
func headlessConfig(t *testing.T, frames uint64) *engine.ApplicationConfig {
	t.Helper()
	root := t.TempDir()
	textures := filepath.Join(root, "textures")
	shaders := filepath.Join(root, "shaders")
	require.NoError(t, os.Mkdir(textures, 0o755))
	require.NoError(t, os.Mkdir(shaders, 0o755))

	nature := filepath.Join(textures, "nature.png")
	background := filepath.Join(textures, "background.png")
	writeTexture(t, nature, 4, color.RGBA{G: 180, A: 255})
	writeTexture(t, background, 8, color.RGBA{B: 180, A: 255})

	spv := make([]byte, 8)
	binary.LittleEndian.PutUint32(spv, 0x07230203)
	for _, name := range []string{testbed.VertexShaderFile, testbed.FragmentShaderFile} {
		require.NoError(t, os.WriteFile(filepath.Join(shaders, name), spv, 0o644))
	}

	cfg := engine.DefaultApplicationConfig()
	cfg.LogLevel = core.WarnLevel
	cfg.StartWidth = 320
	cfg.StartHeight = 240
	cfg.Renderer.Headless = true
	cfg.Renderer.MaxFrames = frames
	cfg.Assets.Textures = []string{nature, background}
	cfg.Assets.ShadersDir = shaders
	cfg.Assets.HotReload = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestEngineHeadlessRun(t *testing.T) {
	cfg := headlessConfig(t, 12)
	game := testbed.NewTestGame(cfg)
	e, err := engine.New(game.Game)
	require.NoError(t, err)

	require.NoError(t, e.Initialize())
	dev := game.Renderer.HeadlessDevice()
	require.NotNil(t, dev)

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(12), e.FrameCount())
	assert.LessOrEqual(t, dev.MaxOutstanding(), int(cfg.Renderer.FramesInFlight))
	assert.Equal(t, uint32(12%cfg.Renderer.FramesInFlight), game.Renderer.FrameCycle().FrameIndex())

	require.NoError(t, e.Shutdown())
	assert.Equal(t, engine.EngineStageShutdown, e.Stage())
	assert.Equal(t, 12, dev.DrawCount(), "one quad per frame")
	assert.Empty(t, dev.ValidationErrors())
	require.NoError(t, e.Shutdown())
}

func TestEngineStopsOnQuitEvent(t *testing.T) {
	cfg := headlessConfig(t, 0)
	game := testbed.NewTestGame(cfg)
	e, err := engine.New(game.Game)
	require.NoError(t, err)
	defer e.Shutdown()
	require.NoError(t, e.Initialize())

	update := game.FnUpdate
	game.FnUpdate = func(dt float64) error {
		if e.FrameCount() == 5 {
			e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
		return update(dt)
	}
	require.NoError(t, e.Run())
	assert.Equal(t, uint64(6), e.FrameCount())
}

func TestEngineSuspendsWhileMinimized(t *testing.T) {
	cfg := headlessConfig(t, 0)
	game := testbed.NewTestGame(cfg)
	e, err := engine.New(game.Game)
	require.NoError(t, err)
	defer e.Shutdown()
	require.NoError(t, e.Initialize())

	bus := e.Events()
	update := game.FnUpdate
	game.FnUpdate = func(dt float64) error {
		switch e.FrameCount() {
		case 2:
			bus.Fire(core.EVENT_CODE_RESIZED, nil, core.EventContext{U32: [4]uint32{0, 0}})
			go func() {
				time.Sleep(50 * time.Millisecond)
				bus.Fire(core.EVENT_CODE_RESIZED, nil, core.EventContext{U32: [4]uint32{640, 480}})
			}()
		case 4:
			bus.Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
		return update(dt)
	}
	require.NoError(t, e.Run())
	w, h := e.GetFramebufferSize()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)
	assert.Equal(t, uint32(640), game.Renderer.FrameCycle().Extent().Width)
}

func TestEngineHotReloadsTextures(t *testing.T) {
	cfg := headlessConfig(t, 0)
	cfg.Assets.HotReload = true
	nature := cfg.Assets.Textures[0]
	game := testbed.NewTestGame(cfg)
	e, err := engine.New(game.Game)
	require.NoError(t, err)
	defer e.Shutdown()
	require.NoError(t, e.Initialize())

	ts := game.SystemManager.TextureSystem
	original, err := ts.Acquire(nature)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	written := false
	update := game.FnUpdate
	game.FnUpdate = func(dt float64) error {
		if !written && e.FrameCount() == 3 {
			writeTexture(t, nature, 16, color.RGBA{R: 255, A: 255})
			written = true
		}
		current, err := ts.Acquire(nature)
		if err != nil {
			return err
		}
		if current != original || time.Now().After(deadline) {
			e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
		// Give the watcher goroutine time to run.
		time.Sleep(time.Millisecond)
		return update(dt)
	}
	require.NoError(t, e.Run())

	current, err := ts.Acquire(nature)
	require.NoError(t, err)
	require.NotSame(t, original, current, "texture was not reloaded")
	assert.Equal(t, uint32(16), current.Width)

	frames := game.Renderer.FrameCycle()
	dev := game.Renderer.HeadlessDevice()
	for i := uint32(0); i < frames.FramesInFlight(); i++ {
		writes := dev.DescriptorWrites(frames.Slot(i).GlobalSet)
		assert.Equal(t, current.Image.View, writes[1].ImageInfo[0].View)
	}
}

func TestEngineInitializeFailsWithoutShaders(t *testing.T) {
	cfg := headlessConfig(t, 1)
	cfg.Assets.ShadersDir = filepath.Join(t.TempDir(), "missing")
	e, err := engine.New(testbed.NewTestGame(cfg).Game)
	require.NoError(t, err)
	assert.Error(t, e.Initialize())
	require.NoError(t, e.Shutdown())
}
