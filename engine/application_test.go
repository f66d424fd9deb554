package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func TestLoadApplicationConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "test"
width = 800
height = 600

[renderer]
frames_in_flight = 3
vsync = false

[assets]
textures = ["a.png", "b.png"]
workers = 0
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ANIMA_MAX_FRAMES=42\n"), 0o644))
	t.Setenv("ANIMA_HEADLESS", "true")
	t.Setenv("ANIMA_LOG_LEVEL", "DEBUG")
	// godotenv never overrides variables that are already set.
	t.Setenv("ANIMA_MAX_FRAMES", "")
	require.NoError(t, os.Unsetenv("ANIMA_MAX_FRAMES"))

	cfg, err := LoadApplicationConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Name)
	assert.Equal(t, uint32(800), cfg.StartWidth)
	assert.Equal(t, uint32(3), cfg.Renderer.FramesInFlight)
	assert.False(t, cfg.Renderer.VSync)
	assert.True(t, cfg.Renderer.Validation, "defaults survive")
	assert.True(t, cfg.Renderer.Headless)
	assert.Equal(t, uint64(42), cfg.Renderer.MaxFrames)
	assert.Equal(t, core.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"a.png", "b.png"}, cfg.Assets.Textures)
	assert.Equal(t, 1, cfg.Assets.Workers)
}

func TestLoadApplicationConfigMissingFile(t *testing.T) {
	cfg, err := LoadApplicationConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultApplicationConfig().Renderer, cfg.Renderer)
}

func TestApplicationConfigValidate(t *testing.T) {
	cfg := DefaultApplicationConfig()
	cfg.Renderer.FramesInFlight = 4
	assert.Error(t, cfg.Validate())

	cfg = DefaultApplicationConfig()
	cfg.Renderer.FramesInFlight = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultApplicationConfig()
	cfg.StartHeight = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultApplicationConfig()
	cfg.Assets.Textures = nil
	assert.Error(t, cfg.Validate())

	// The sampler array in the world shader has a fixed length.
	cfg = DefaultApplicationConfig()
	cfg.Assets.Textures = cfg.Assets.Textures[:1]
	assert.Error(t, cfg.Validate())

	cfg = DefaultApplicationConfig()
	cfg.Assets.Textures = append(cfg.Assets.Textures, "assets/textures/extra.png")
	assert.Error(t, cfg.Validate())

	t.Setenv("ANIMA_FRAMES_IN_FLIGHT", "many")
	_, err := LoadApplicationConfig("")
	assert.Error(t, err)
}

func TestAssetDirs(t *testing.T) {
	dirs := assetDirs(AssetsConfig{
		Textures:   []string{"assets/textures/a.png", "assets/textures/b.png", "assets-extra/c.png"},
		ShadersDir: "assets/textures/../shaders",
	})
	assert.Equal(t, []string{"assets-extra", "assets/shaders", "assets/textures"}, dirs)

	dirs = assetDirs(AssetsConfig{
		Textures:   []string{"assets/textures/a.png"},
		ShadersDir: "assets",
	})
	assert.Equal(t, []string{"assets"}, dirs)
}
