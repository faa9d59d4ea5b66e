package swapchain

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/triangle-loop/internal/registry"
)

// ChooseSurfaceFormat prefers 8-bit BGRA in the sRGB non-linear color space
// and otherwise takes the first reported format.
func ChooseSurfaceFormat(availableFormats []khr_surface.Format) khr_surface.Format {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// ChoosePresentMode picks mailbox when allowed and available. FIFO is the
// fallback since every implementation must support it.
func ChoosePresentMode(availablePresentModes []khr_surface.PresentMode, preferMailbox bool) khr_surface.PresentMode {
	if preferMailbox {
		for _, presentMode := range availablePresentModes {
			if presentMode == khr_surface.PresentModeMailbox {
				return presentMode
			}
		}
	}

	return khr_surface.PresentModeFIFO
}

func clamp(value, lower, upper int) int {
	if value < lower {
		value = lower
	}
	if value > upper {
		value = upper
	}
	return value
}

// ChooseExtent clamps the drawable size of the window to the bounds the
// surface reports.
func ChooseExtent(capabilities *khr_surface.Capabilities, window core1_0.Extent2D) core1_0.Extent2D {
	return core1_0.Extent2D{
		Width:  clamp(window.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(window.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum. A maximum of
// zero means unbounded.
func ChooseImageCount(capabilities *khr_surface.Capabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// ChooseSharingMode shares images concurrently between distinct graphics and
// present families.
func ChooseSharingMode(indices registry.QueueFamilyIndices) (core1_0.SharingMode, []int) {
	if *indices.GraphicsFamily != *indices.PresentFamily {
		return core1_0.SharingModeConcurrent, []int{*indices.GraphicsFamily, *indices.PresentFamily}
	}
	return core1_0.SharingModeExclusive, nil
}
