package driver

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

var (
	ErrFrameTimeout = errors.New("timed out waiting for frame")
	ErrAcquire      = errors.New("failed to acquire swapchain image")
	ErrSubmit       = errors.New("failed to submit draw commands")
	ErrPresent      = errors.New("failed to present swapchain image")
)

// Status is the outcome of an acquire or present that did not fail.
type Status int

const (
	StatusOK Status = iota
	// StatusSuboptimal means the image was usable but the chain no longer
	// matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the chain can no longer be used.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	default:
		return "unknown"
	}
}

// classify turns an acquire or present result into a Status. Staleness is
// never an error; every other failure is marked with kind.
func classify(res common.VkResult, err error, kind error) (Status, error) {
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return StatusOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return StatusSuboptimal, nil
	case core1_0.VKTimeout, core1_0.VKNotReady:
		return StatusOK, errors.Mark(errors.Newf("result %v", res), ErrFrameTimeout)
	}

	if err != nil {
		return StatusOK, errors.Mark(err, kind)
	}
	return StatusOK, nil
}
