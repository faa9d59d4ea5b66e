// Package window wraps the SDL window that backs the presentation surface and
// turns its events into quit and resize notifications for the frame loop.
package window

import (
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"
)

var (
	ErrWindowCreation  = errors.New("failed to create window")
	ErrSurfaceCreation = errors.New("failed to create surface")
)

// Notifier receives resize notifications.
type Notifier interface {
	Set()
}

type Options struct {
	Title  string
	Width  int
	Height int
}

type Window struct {
	logger  *slog.Logger
	window  *sdl.Window
	resized Notifier
	quit    bool
}

// Open initializes SDL video and creates a resizable window able to host a
// Vulkan surface.
func Open(opts Options, resized Notifier, logger *slog.Logger) (*Window, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "init video"), ErrWindowCreation)
	}

	window, err := sdl.CreateWindow(opts.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(opts.Width), int32(opts.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Mark(errors.Wrapf(err, "%dx%d", opts.Width, opts.Height), ErrWindowCreation)
	}

	return &Window{logger: logger, window: window, resized: resized}, nil
}

// Loader returns the API loader bound to SDL's instance proc address.
func (w *Window) Loader() (core.Loader, error) {
	loader, err := core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "create loader")
	}
	return loader, nil
}

func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error) {
	surfaceLoader := vkng_sdl2.CreateExtensionFromInstance(instance)
	surface, _, err := surfaceLoader.CreateSurface(instance, w.window)
	if err != nil {
		return nil, errors.Mark(err, ErrSurfaceCreation)
	}
	return surface, nil
}

func (w *Window) DrawableSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *Window) Minimized() bool {
	return w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0
}

// handle applies a single event and reports whether quit has been requested.
func (w *Window) handle(event sdl.Event) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.quit = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.logger.Debug("window resized", slog.Int("width", int(e.Data1)), slog.Int("height", int(e.Data2)))
			if w.resized != nil {
				w.resized.Set()
			}
		case sdl.WINDOWEVENT_MINIMIZED:
			w.logger.Debug("window minimized")
		case sdl.WINDOWEVENT_RESTORED:
			w.logger.Debug("window restored")
		case sdl.WINDOWEVENT_CLOSE:
			w.quit = true
		}
	}
	return w.quit
}

func (w *Window) PumpEvents() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
	return w.quit
}

func (w *Window) WaitEvents() bool {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	return w.PumpEvents()
}

// Destroy closes the window and shuts SDL down. The surface must already be
// gone.
func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
