package engine

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer"
)

// Environment variables that override values from the config file.
const (
	envPrefix         = "ANIMA_"
	envHeadless       = envPrefix + "HEADLESS"
	envMaxFrames      = envPrefix + "MAX_FRAMES"
	envFramesInFlight = envPrefix + "FRAMES_IN_FLIGHT"
	envLogLevel       = envPrefix + "LOG_LEVEL"
	envValidation     = envPrefix + "VALIDATION"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"height"`
	// The application name used in windowing, if applicable.
	Name     string        `toml:"name"`
	LogLevel core.LogLevel `toml:"log_level"`

	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

type RendererConfig struct {
	// Runs on the software device without a window.
	Headless bool `toml:"headless"`
	// Stops the run loop after this many frames. Zero runs until quit.
	MaxFrames      uint64 `toml:"max_frames"`
	FramesInFlight uint32 `toml:"frames_in_flight"`
	Validation     bool   `toml:"validation"`
	VSync          bool   `toml:"vsync"`
}

type AssetsConfig struct {
	Textures   []string `toml:"textures"`
	ShadersDir string   `toml:"shaders_dir"`
	HotReload  bool     `toml:"hot_reload"`
	Workers    int      `toml:"workers"`
}

// DefaultApplicationConfig matches the sample scene shipped in testbed.
func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		Name:        "Anima Frame Core",
		LogLevel:    core.InfoLevel,
		Renderer: RendererConfig{
			FramesInFlight: 2,
			Validation:     true,
			VSync:          true,
		},
		Assets: AssetsConfig{
			Textures:   []string{"assets/textures/nature.png", "assets/textures/background.png"},
			ShadersDir: "assets/shaders",
			HotReload:  true,
			Workers:    2,
		},
	}
}

// LoadApplicationConfig reads the TOML file at path on top of the defaults,
// then applies a .env file next to it (if any) and ANIMA_* variables.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			core.LogWarn("config file %s not found, using defaults", path)
		case err != nil:
			return nil, errors.Wrapf(err, "reading config %s", path)
		default:
			if err := toml.Unmarshal(raw, cfg); err != nil {
				return nil, errors.Wrapf(err, "parsing config %s", path)
			}
		}

		envFile := filepath.Join(filepath.Dir(path), ".env")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "loading %s", envFile)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) applyEnv() error {
	if v, ok := os.LookupEnv(envHeadless); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", envHeadless)
		}
		c.Renderer.Headless = b
	}
	if v, ok := os.LookupEnv(envValidation); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", envValidation)
		}
		c.Renderer.Validation = b
	}
	if v, ok := os.LookupEnv(envMaxFrames); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", envMaxFrames)
		}
		c.Renderer.MaxFrames = n
	}
	if v, ok := os.LookupEnv(envFramesInFlight); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", envFramesInFlight)
		}
		c.Renderer.FramesInFlight = uint32(n)
	}
	if v, ok := os.LookupEnv(envLogLevel); ok {
		c.LogLevel = core.LogLevel(strings.ToLower(v))
	}
	return nil
}

func (c *ApplicationConfig) Validate() error {
	if c.StartWidth == 0 || c.StartHeight == 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.StartWidth, c.StartHeight)
	}
	if c.Renderer.FramesInFlight < 1 || c.Renderer.FramesInFlight > 3 {
		return errors.Newf("frames_in_flight must be within [1, 3], got %d", c.Renderer.FramesInFlight)
	}
	if len(c.Assets.Textures) != renderer.GlobalTextureCount {
		return errors.Newf("exactly %d textures are required, got %d", renderer.GlobalTextureCount, len(c.Assets.Textures))
	}
	if c.Assets.Workers <= 0 {
		c.Assets.Workers = 1
	}
	return nil
}
