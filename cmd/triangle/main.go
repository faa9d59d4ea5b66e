package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/vkngwrapper/triangle-loop/internal/config"
	"github.com/vkngwrapper/triangle-loop/internal/device"
	"github.com/vkngwrapper/triangle-loop/internal/driver"
	"github.com/vkngwrapper/triangle-loop/internal/mesh"
	"github.com/vkngwrapper/triangle-loop/internal/registry"
	"github.com/vkngwrapper/triangle-loop/internal/shader"
	"github.com/vkngwrapper/triangle-loop/internal/window"
)

type TriangleApplication struct {
	cfg    config.Config
	logger *slog.Logger

	resized  *driver.Flag
	window   *window.Window
	ctx      *device.Context
	renderer *driver.VulkanRenderer
}

func (app *TriangleApplication) Run() error {
	err := app.cfg.Validate()
	if err != nil {
		return err
	}

	err = app.initWindow()
	if err != nil {
		return err
	}
	defer app.cleanup()

	err = app.initVulkan()
	if err != nil {
		return err
	}

	return app.mainLoop()
}

func (app *TriangleApplication) initWindow() error {
	app.resized = &driver.Flag{}

	var err error
	app.window, err = window.Open(window.Options{
		Title:  app.cfg.Window.Title,
		Width:  app.cfg.Window.Width,
		Height: app.cfg.Window.Height,
	}, app.resized, app.logger)
	return err
}

func (app *TriangleApplication) initVulkan() error {
	loader, err := app.window.Loader()
	if err != nil {
		return err
	}

	app.ctx, err = device.NewContext(loader, device.InstanceOptions{
		ApplicationName:   app.cfg.ApplicationName,
		WindowExtensions:  app.window.InstanceExtensions(),
		EnableDiagnostics: app.cfg.Validation.Enabled,
		ValidationLayers:  app.cfg.Validation.Layers,
	}, app.logger)
	if err != nil {
		return err
	}

	surface, err := app.window.CreateSurface(app.ctx.Instance())
	if err != nil {
		return err
	}
	app.ctx.AttachSurface(surface)

	candidates, err := registry.Enumerate(app.ctx.Instance(), surface, app.cfg.DeviceExtensions, app.logger)
	if err != nil {
		return err
	}

	selection, err := registry.SelectDevice(candidates, app.cfg.DeviceExtensions, registry.Weights{
		DiscreteBonus:      app.cfg.Scoring.DiscreteBonus,
		ImageDimensionRate: app.cfg.Scoring.ImageDimensionRate,
	})
	if err != nil {
		return err
	}
	app.logger.Info("physical device selected",
		slog.String("name", selection.Candidate.Name),
		slog.Int("score", selection.Score))

	err = app.ctx.CreateDevice(selection.Candidate.Device, selection.Indices, device.DeviceOptions{
		Extensions:        app.cfg.DeviceExtensions,
		EnableDiagnostics: app.cfg.Validation.Enabled,
		ValidationLayers:  app.cfg.Validation.Layers,
	})
	if err != nil {
		return err
	}

	width, height := app.window.DrawableSize()
	app.renderer, err = driver.NewVulkanRenderer(app.ctx, width, height, driver.RendererOptions{
		Shaders: os.DirFS("."),
		ShaderPaths: shader.Paths{
			Vertex:   app.cfg.Shaders.Vertex,
			Fragment: app.cfg.Shaders.Fragment,
		},
		PreferMailbox:  app.cfg.PreferMailbox,
		FramesInFlight: app.cfg.FramesInFlight,
		ClearColor:     app.cfg.ClearColor,
		Vertices:       mesh.Triangle,
	}, app.logger)
	return err
}

func (app *TriangleApplication) mainLoop() error {
	d, err := driver.New(app.renderer, app.renderer.Ring(), app.window, app.resized, driver.Options{
		FrameTimeout: app.cfg.FrameTimeout,
	}, app.logger)
	if err != nil {
		return err
	}

	return d.Run()
}

func (app *TriangleApplication) cleanup() {
	if app.renderer != nil {
		if app.ctx.Device() != nil {
			if err := app.ctx.WaitIdle(); err != nil {
				app.logger.Error("wait for idle before teardown", slog.Any("error", err))
			}
		}
		app.renderer.Destroy()
	}

	if app.ctx != nil {
		app.ctx.Destroy()
	}

	app.window.Destroy()
}

func main() {
	cfg := config.Default()
	level := slog.LevelInfo
	if os.Getenv("TRIANGLE_DEBUG") != "" {
		level = slog.LevelDebug
		cfg.Validation.Enabled = true
	}

	app := &TriangleApplication{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	err := app.Run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
