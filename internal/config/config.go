// Package config holds the field-defaulted settings for the renderer. Every
// creation call derives its own options from a Config that has passed Validate.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Window struct {
	Title  string
	Width  int
	Height int
}

type Validation struct {
	Enabled bool
	Layers  []string
}

type Shaders struct {
	Vertex   string
	Fragment string
}

// Scoring weights used when ranking physical devices.
type Scoring struct {
	DiscreteBonus      int
	ImageDimensionRate int
}

type Config struct {
	ApplicationName string
	Window          Window
	Validation      Validation
	Shaders         Shaders
	Scoring         Scoring

	DeviceExtensions []string

	// FramesInFlight is the size F of the frame slot ring.
	FramesInFlight int
	// FrameTimeout bounds every fence wait and image acquire.
	FrameTimeout time.Duration

	PreferMailbox bool
	ClearColor    [4]float32
}

func Default() Config {
	return Config{
		ApplicationName: "Hello Triangle",
		Window: Window{
			Title:  "Vulkan",
			Width:  800,
			Height: 600,
		},
		// Release builds (-tags release) start without validation.
		Validation: Validation{
			Enabled: diagnosticsDefault,
			Layers:  []string{"VK_LAYER_KHRONOS_validation"},
		},
		Shaders: Shaders{
			Vertex:   "shaders/vert.spv",
			Fragment: "shaders/frag.spv",
		},
		Scoring: Scoring{
			DiscreteBonus:      1000,
			ImageDimensionRate: 1,
		},
		DeviceExtensions: []string{khr_swapchain.ExtensionName},
		FramesInFlight:   2,
		FrameTimeout:     10 * time.Second,
		PreferMailbox:    true,
		ClearColor:       [4]float32{0, 0, 0, 1},
	}
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Mark(errors.Newf("window size %dx%d must be positive", c.Window.Width, c.Window.Height), ErrInvalidConfig)
	}
	if c.FramesInFlight < 1 {
		return errors.Mark(errors.Newf("frames in flight must be at least 1, got %d", c.FramesInFlight), ErrInvalidConfig)
	}
	if c.FrameTimeout <= 0 {
		return errors.Mark(errors.Newf("frame timeout must be positive, got %s", c.FrameTimeout), ErrInvalidConfig)
	}
	if c.Shaders.Vertex == "" || c.Shaders.Fragment == "" {
		return errors.Mark(errors.New("both shader paths are required"), ErrInvalidConfig)
	}
	if c.Validation.Enabled && len(c.Validation.Layers) == 0 {
		return errors.Mark(errors.New("validation enabled without any layer names"), ErrInvalidConfig)
	}
	if c.Scoring.DiscreteBonus < 0 || c.Scoring.ImageDimensionRate < 0 {
		return errors.Mark(errors.New("scoring weights must not be negative"), ErrInvalidConfig)
	}
	return nil
}
