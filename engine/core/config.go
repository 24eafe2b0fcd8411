package core

import (
	"bytes"
	"errors"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Logging     LoggingConfig     `toml:"logging"`
	Renderer    RendererConfig    `toml:"renderer"`
	Camera      CameraConfig      `toml:"camera"`
	Lights      LightsConfig      `toml:"lights"`
	Entities    []EntityConfig    `toml:"entities"`
}

type ApplicationConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position x axis.
	PosX uint32 `toml:"pos_x"`
	// Window starting position y axis.
	PosY uint32 `toml:"pos_y"`
	// Window width. The renderer keeps this extent for its whole lifetime.
	Width uint32 `toml:"width"`
	// Window height.
	Height uint32 `toml:"height"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	Validation       bool   `toml:"validation"`
	ShaderDir        string `toml:"shader_dir"`
	PipelineCacheDir string `toml:"pipeline_cache_dir"`
	WatchShaders     bool   `toml:"watch_shaders"`
	MaxTextureSize   int    `toml:"max_texture_size"`
	// Timeouts in nanoseconds.
	FenceTimeout   uint64 `toml:"fence_timeout"`
	AcquireTimeout uint64 `toml:"acquire_timeout"`
	UploadTimeout  uint64 `toml:"upload_timeout"`
}

type CameraConfig struct {
	Position [3]float32 `toml:"position"`
	Yaw      float32    `toml:"yaw"`
	Pitch    float32    `toml:"pitch"`
	FovY     float32    `toml:"fov"`
	Near     float32    `toml:"near"`
	Far      float32    `toml:"far"`
	Speed    float32    `toml:"speed"`
}

type PointLightConfig struct {
	Position    [4]float32 `toml:"position"`
	Colour      [4]float32 `toml:"colour"`
	Attenuation [3]float32 `toml:"attenuation"`
}

type DirectionalLightConfig struct {
	Direction [4]float32 `toml:"direction"`
	Colour    [4]float32 `toml:"colour"`
}

type LightsConfig struct {
	Point       []PointLightConfig       `toml:"point"`
	Directional []DirectionalLightConfig `toml:"directional"`
}

type EntityConfig struct {
	Name       string     `toml:"name"`
	Model      string     `toml:"model"`
	Position   [3]float32 `toml:"position"`
	Renderable bool       `toml:"renderable"`
}

// DefaultConfig is the configuration used when no file is present, and the
// base every loaded file is decoded on top of.
func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:   "Umbra",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Logging: LoggingConfig{
			Level: "debug",
		},
		Renderer: RendererConfig{
			Validation:       true,
			ShaderDir:        "resources/shaders",
			PipelineCacheDir: "resources/cache",
			WatchShaders:     true,
			MaxTextureSize:   4096,
			FenceTimeout:     1_000_000_000,
			AcquireTimeout:   1_000_000_000,
			UploadTimeout:    9_999_999_999,
		},
		Camera: CameraConfig{
			Position: [3]float32{0, 2, 10},
			Yaw:      -90,
			FovY:     70,
			Near:     0.1,
			Far:      200,
			Speed:    5,
		},
	}
}

// LoadConfig decodes the TOML file at path over DefaultConfig. A missing file
// is not an error: the defaults are returned as they are.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogWarn("config file `%s` not found, using defaults", path)
			return cfg, nil
		}
		return nil, NewError(ErrorKindConfig, "core.LoadConfig", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, NewError(ErrorKindConfig, "core.LoadConfig", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return Errorf(ErrorKindConfig, "core.Config.Validate", "window extent must be non-zero, got %dx%d", c.Application.Width, c.Application.Height)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return Errorf(ErrorKindConfig, "core.Config.Validate", "invalid clip planes near=%f far=%f", c.Camera.Near, c.Camera.Far)
	}
	for i, e := range c.Entities {
		if e.Model == "" {
			return Errorf(ErrorKindConfig, "core.Config.Validate", "entity %d (%s) has no model", i, e.Name)
		}
	}
	return nil
}
