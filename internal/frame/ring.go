// Package frame holds the fixed ring of per-frame synchronization primitives
// that bounds how many frames the CPU may queue ahead of the GPU.
package frame

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

var ErrSyncCreation = errors.New("failed to create synchronization primitive")

type Slot struct {
	ImageAvailable core1_0.Semaphore
	RenderFinished core1_0.Semaphore
	InFlight       core1_0.Fence
}

// Ring is sized once and never rebuilt with the swapchain. Its index advances
// by one per frame regardless of which swapchain image was drawn.
type Ring struct {
	slots   []Slot
	current int
}

func newRing(count int) *Ring {
	return &Ring{slots: make([]Slot, count)}
}

// NewRing creates count slots. Fences start signaled so the first wait on
// each slot returns immediately.
func NewRing(device core1_0.Device, count int) (*Ring, error) {
	if count < 1 {
		return nil, errors.Newf("frame ring needs at least one slot, got %d", count)
	}

	ring := newRing(count)
	for i := range ring.slots {
		slot := &ring.slots[i]
		var err error

		slot.ImageAvailable, _, err = device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			ring.Destroy()
			return nil, errors.Mark(errors.Wrapf(err, "image available semaphore %d", i), ErrSyncCreation)
		}

		slot.RenderFinished, _, err = device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			ring.Destroy()
			return nil, errors.Mark(errors.Wrapf(err, "render finished semaphore %d", i), ErrSyncCreation)
		}

		slot.InFlight, _, err = device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			ring.Destroy()
			return nil, errors.Mark(errors.Wrapf(err, "in flight fence %d", i), ErrSyncCreation)
		}
	}

	return ring, nil
}

func (r *Ring) Len() int        { return len(r.slots) }
func (r *Ring) Index() int      { return r.current }
func (r *Ring) Current() Slot   { return r.slots[r.current] }
func (r *Ring) Slot(i int) Slot { return r.slots[i] }

// Advance moves to the next slot and returns its index.
func (r *Ring) Advance() int {
	r.current = (r.current + 1) % len(r.slots)
	return r.current
}

// Destroy releases every primitive that was created, newest slot first.
func (r *Ring) Destroy() {
	for i := len(r.slots) - 1; i >= 0; i-- {
		slot := &r.slots[i]
		if slot.InFlight != nil {
			slot.InFlight.Destroy(nil)
			slot.InFlight = nil
		}
		if slot.RenderFinished != nil {
			slot.RenderFinished.Destroy(nil)
			slot.RenderFinished = nil
		}
		if slot.ImageAvailable != nil {
			slot.ImageAvailable.Destroy(nil)
			slot.ImageAvailable = nil
		}
	}
	r.current = 0
}
