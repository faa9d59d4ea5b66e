// Package driver runs the steady-state frame loop: wait for the slot's fence,
// acquire an image, submit its pre-recorded commands, present it and advance
// the slot. A stale chain is rebuilt in place of a frame.
package driver

import (
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
)

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateSubmitting
	StatePresenting
	StateRecreating
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateSubmitting:
		return "submitting"
	case StatePresenting:
		return "presenting"
	case StateRecreating:
		return "recreating"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Renderer performs the GPU side of a frame for a given slot and image.
type Renderer interface {
	// WaitForSlot blocks until the latest submission made from slot has
	// finished. Any slot may be waited on, not just the current one.
	WaitForSlot(slot int, timeout time.Duration) error
	Acquire(slot int, timeout time.Duration) (int, Status, error)
	// Submit resets the slot's fence and submits the image's commands.
	Submit(slot, image int) error
	Present(slot, image int) (Status, error)
	WaitIdle() error
	// Recreate rebuilds the chain and re-records commands for the given
	// drawable size, returning the new image count.
	Recreate(width, height int) (int, error)
}

type Slots interface {
	Len() int
	Index() int
	Advance() int
}

// Window is the part of the windowing collaborator the driver needs.
type Window interface {
	// PumpEvents drains pending events and reports whether quit was requested.
	PumpEvents() bool
	// WaitEvents blocks until at least one event arrives, then drains all
	// pending events like PumpEvents.
	WaitEvents() bool
	DrawableSize() (int, int)
	Minimized() bool
}

type Options struct {
	FrameTimeout time.Duration
}

type Driver struct {
	logger   *slog.Logger
	renderer Renderer
	slots    Slots
	window   Window
	resized  *Flag
	timeout  time.Duration

	// imageSlots[i] is the slot whose fence guards the latest submission of
	// image i's command buffer, or -1.
	imageSlots []int

	state State
	stats Stats
}

func New(renderer Renderer, slots Slots, window Window, resized *Flag, opts Options, logger *slog.Logger) (*Driver, error) {
	if opts.FrameTimeout <= 0 {
		return nil, errors.Newf("frame timeout must be positive, got %s", opts.FrameTimeout)
	}
	if slots.Len() < 1 {
		return nil, errors.New("driver needs at least one frame slot")
	}
	if resized == nil {
		resized = &Flag{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Driver{
		logger:   logger,
		renderer: renderer,
		slots:    slots,
		window:   window,
		resized:  resized,
		timeout:  opts.FrameTimeout,
		stats:    Stats{Submissions: map[int]int{}},
	}, nil
}

func (d *Driver) State() State { return d.state }
func (d *Driver) Stats() Stats { return d.stats.clone() }

// Frame runs one loop iteration. Errors are fatal.
func (d *Driver) Frame() error {
	d.stats.Iterations++
	slot := d.slots.Index()

	d.state = StateAcquiring
	start := hrtime.Now()
	err := d.renderer.WaitForSlot(slot, d.timeout)
	d.stats.observeFenceWait(hrtime.Since(start))
	if err != nil {
		return err
	}

	image, status, err := d.renderer.Acquire(slot, d.timeout)
	if err != nil {
		return err
	}
	if status == StatusOutOfDate {
		return d.recreate("acquire reported out of date chain")
	}
	recreateAfterPresent := status == StatusSuboptimal

	d.state = StateSubmitting
	err = d.waitForImage(image, slot)
	if err != nil {
		return err
	}
	err = d.renderer.Submit(slot, image)
	if err != nil {
		return err
	}
	d.imageSlots[image] = slot
	d.stats.Submissions[image]++

	d.state = StatePresenting
	status, err = d.renderer.Present(slot, image)
	if err != nil {
		return err
	}
	d.stats.Presented++

	d.slots.Advance()

	resized := d.resized.Take()
	if status != StatusOK || recreateAfterPresent || resized {
		d.logger.Debug("chain stale after present",
			slog.String("status", status.String()),
			slog.Bool("suboptimal_acquire", recreateAfterPresent),
			slog.Bool("resized", resized))
		return d.recreate("present reported stale chain")
	}

	d.state = StateIdle
	return nil
}

// waitForImage blocks until no submission from another slot can still be
// reading image's command buffer. Images are handed out in an order the
// driver does not control, so the slot's own fence is not enough once the
// chain has more images than there are slots.
func (d *Driver) waitForImage(image, slot int) error {
	for len(d.imageSlots) <= image {
		d.imageSlots = append(d.imageSlots, -1)
	}

	owner := d.imageSlots[image]
	if owner < 0 || owner == slot {
		return nil
	}

	start := hrtime.Now()
	err := d.renderer.WaitForSlot(owner, d.timeout)
	d.stats.observeFenceWait(hrtime.Since(start))
	if err != nil {
		return errors.Wrapf(err, "image %d still in flight on slot %d", image, owner)
	}
	d.stats.ImageWaits++
	return nil
}

func (d *Driver) resetImages(count int) {
	d.imageSlots = d.imageSlots[:0]
	for i := 0; i < count; i++ {
		d.imageSlots = append(d.imageSlots, -1)
	}
}

// waitForDrawable blocks on window events until the drawable size is
// non-zero. It reports false if quit was requested meanwhile.
func (d *Driver) waitForDrawable() (int, int, bool) {
	width, height := d.window.DrawableSize()
	for width == 0 || height == 0 || d.window.Minimized() {
		if quit := d.window.WaitEvents(); quit {
			return 0, 0, false
		}
		width, height = d.window.DrawableSize()
	}
	return width, height, true
}

func (d *Driver) recreate(reason string) error {
	d.state = StateRecreating

	width, height, ok := d.waitForDrawable()
	if !ok {
		d.state = StateShutdown
		return nil
	}

	err := d.renderer.WaitIdle()
	if err != nil {
		return err
	}

	// The rebuild uses the current size, so any pending notification is
	// already satisfied.
	d.resized.Take()

	images, err := d.renderer.Recreate(width, height)
	if err != nil {
		return err
	}
	// The device is idle, so no old submission guards any image.
	d.resetImages(images)
	d.stats.Recreations++

	d.logger.Info("presentation chain recreated",
		slog.String("reason", reason),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("images", images))

	d.state = StateIdle
	return nil
}

// Run drives frames until the window asks to quit, then waits for the device
// to go idle. Resource teardown is left to the caller.
func (d *Driver) Run() error {
	loopStart := hrtime.Now()

	for d.state != StateShutdown {
		if quit := d.window.PumpEvents(); quit {
			break
		}

		width, height := d.window.DrawableSize()
		if width == 0 || height == 0 || d.window.Minimized() {
			if _, _, ok := d.waitForDrawable(); !ok {
				break
			}
			continue
		}

		err := d.Frame()
		if err != nil {
			return err
		}
	}

	d.state = StateShutdown
	d.stats.Elapsed = hrtime.Since(loopStart)
	d.logger.Info("frame loop finished",
		slog.Int("iterations", d.stats.Iterations),
		slog.Int("presented", d.stats.Presented),
		slog.Int("recreations", d.stats.Recreations),
		slog.Int("image_waits", d.stats.ImageWaits),
		slog.Duration("max_fence_wait", d.stats.MaxFenceWait),
		slog.Duration("elapsed", d.stats.Elapsed))

	return d.renderer.WaitIdle()
}
