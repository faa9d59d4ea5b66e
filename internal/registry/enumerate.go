package registry

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
)

type surfaceFamilies struct {
	device   core1_0.PhysicalDevice
	surface  khr_surface.Surface
	families []*core1_0.QueueFamily
}

func (s *surfaceFamilies) QueueFamilyCount() int {
	return len(s.families)
}

func (s *surfaceFamilies) SupportsGraphics(index int) bool {
	return (s.families[index].QueueFlags & core1_0.QueueGraphics) != 0
}

func (s *surfaceFamilies) SupportsPresent(index int) (bool, error) {
	supported, _, err := s.surface.PhysicalDeviceSurfaceSupport(s.device, index)
	return supported, err
}

// Enumerate queries every physical device of the instance against the surface
// and returns one fresh Candidate per device.
func Enumerate(instance core1_0.Instance, surface khr_surface.Surface, required []string, logger *slog.Logger) ([]*Candidate, error) {
	physicalDevices, _, err := instance.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	candidates := make([]*Candidate, 0, len(physicalDevices))
	for _, device := range physicalDevices {
		candidate, err := describe(device, surface, required)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Debug("device candidate",
				slog.String("name", candidate.Name),
				slog.Bool("discrete", candidate.Discrete),
				slog.Int("max_image_dimension_2d", candidate.MaxImageDimension2D),
				slog.Bool("geometry_shader", candidate.GeometryShader),
				slog.Int("surface_formats", candidate.SurfaceFormats),
				slog.Int("present_modes", candidate.PresentModes))
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func describe(device core1_0.PhysicalDevice, surface khr_surface.Surface, required []string) (*Candidate, error) {
	properties, err := device.Properties()
	if err != nil {
		return nil, errors.Wrap(err, "query device properties")
	}

	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return nil, errors.Wrapf(err, "enumerate extensions of %q", properties.DriverName)
	}

	candidate := &Candidate{
		Device:         device,
		Name:           properties.DriverName,
		Discrete:       properties.DriverType == core1_0.PhysicalDeviceTypeDiscreteGPU,
		GeometryShader: device.Features().GeometryShader,
		Extensions:     make(map[string]struct{}, len(extensions)),
		Families: &surfaceFamilies{
			device:   device,
			surface:  surface,
			families: device.QueueFamilyProperties(),
		},
	}
	if properties.Limits != nil {
		candidate.MaxImageDimension2D = properties.Limits.MaxImageDimension2D
	}
	for name := range extensions {
		candidate.Extensions[name] = struct{}{}
	}

	// Surface support can only be asked of devices that expose the swapchain
	// extensions.
	if !candidate.hasExtensions(required) {
		return candidate, nil
	}

	formats, _, err := surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil {
		return nil, errors.Wrapf(err, "query surface formats of %q", candidate.Name)
	}
	presentModes, _, err := surface.PhysicalDeviceSurfacePresentModes(device)
	if err != nil {
		return nil, errors.Wrapf(err, "query present modes of %q", candidate.Name)
	}
	candidate.SurfaceFormats = len(formats)
	candidate.PresentModes = len(presentModes)

	return candidate, nil
}
