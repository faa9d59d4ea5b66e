package config

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero width", func(c *Config) { c.Window.Width = 0 }},
		{"negative height", func(c *Config) { c.Window.Height = -1 }},
		{"no frames in flight", func(c *Config) { c.FramesInFlight = 0 }},
		{"zero timeout", func(c *Config) { c.FrameTimeout = 0 }},
		{"negative timeout", func(c *Config) { c.FrameTimeout = -time.Second }},
		{"missing vertex shader", func(c *Config) { c.Shaders.Vertex = "" }},
		{"missing fragment shader", func(c *Config) { c.Shaders.Fragment = "" }},
		{"validation without layers", func(c *Config) {
			c.Validation.Enabled = true
			c.Validation.Layers = nil
		}},
		{"negative discrete bonus", func(c *Config) { c.Scoring.DiscreteBonus = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			err := c.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidationLayersOptionalWhenDisabled(t *testing.T) {
	c := Default()
	c.Validation.Enabled = false
	c.Validation.Layers = nil
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestDefaultDiagnosticsFollowBuild(t *testing.T) {
	c := Default()
	if c.Validation.Enabled != diagnosticsDefault {
		t.Errorf("Validation.Enabled = %v, want %v for this build", c.Validation.Enabled, diagnosticsDefault)
	}
	if len(c.Validation.Layers) == 0 {
		t.Error("default config has no validation layer names")
	}
}
