// Package device owns the API instance, the optional validation messenger, the
// presentation surface and the logical device with its two queues. Everything
// created from the logical device must be destroyed before Context.Destroy.
package device

import (
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/triangle-loop/internal/registry"
)

var (
	ErrDeviceCreation = errors.New("failed to create logical device")
	ErrQueueRetrieval = errors.New("failed to retrieve device queue")
	ErrNoSurface      = errors.New("no surface attached")
	ErrDeviceExists   = errors.New("logical device already created")
)

type Context struct {
	logger *slog.Logger

	instance  core1_0.Instance
	messenger ext_debug_utils.Messenger
	surface   khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device
	indices        registry.QueueFamilyIndices

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func (c *Context) Instance() core1_0.Instance             { return c.instance }
func (c *Context) Surface() khr_surface.Surface           { return c.surface }
func (c *Context) PhysicalDevice() core1_0.PhysicalDevice { return c.physicalDevice }
func (c *Context) Device() core1_0.Device                 { return c.device }
func (c *Context) Indices() registry.QueueFamilyIndices   { return c.indices }
func (c *Context) GraphicsQueue() core1_0.Queue           { return c.graphicsQueue }
func (c *Context) PresentQueue() core1_0.Queue            { return c.presentQueue }

// AttachSurface hands ownership of a window surface to the context.
func (c *Context) AttachSurface(surface khr_surface.Surface) {
	c.surface = surface
}

type DeviceOptions struct {
	Extensions []string
	// EnableDiagnostics also enables the validation layers at device level
	// for loaders that still honor device layers.
	EnableDiagnostics bool
	ValidationLayers  []string
}

// queueCreateInfos issues one request per distinct family, one queue each.
func queueCreateInfos(indices registry.QueueFamilyIndices) []core1_0.DeviceQueueCreateInfo {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range indices.Unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}
	return queueFamilyOptions
}

func deviceExtensionNames(required []string, available map[string]*core1_0.ExtensionProperties) []string {
	extensionNames := append([]string(nil), required...)

	// Portability implementations require the subset extension whenever it
	// is advertised.
	if _, supported := available[khr_portability_subset.ExtensionName]; supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}
	return extensionNames
}

// CreateDevice creates the logical device on the selected physical device and
// retrieves its graphics and present queues.
func (c *Context) CreateDevice(physicalDevice core1_0.PhysicalDevice, indices registry.QueueFamilyIndices, opts DeviceOptions) error {
	if c.device != nil {
		return ErrDeviceExists
	}
	if c.surface == nil {
		return ErrNoSurface
	}
	if !indices.IsComplete() {
		return errors.Mark(errors.New("queue family indices incomplete"), ErrDeviceCreation)
	}

	available, _, err := physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "enumerate device extensions"), ErrDeviceCreation)
	}

	info := core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueCreateInfos(indices),
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			GeometryShader: true,
		},
		EnabledExtensionNames: deviceExtensionNames(opts.Extensions, available),
	}
	if opts.EnableDiagnostics {
		info.EnabledLayerNames = opts.ValidationLayers
	}

	device, _, err := physicalDevice.CreateDevice(nil, info)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create logical device"), ErrDeviceCreation)
	}
	c.physicalDevice = physicalDevice
	c.device = device
	c.indices = indices

	c.graphicsQueue = device.GetQueue(*indices.GraphicsFamily, 0)
	if c.graphicsQueue == nil {
		return errors.Mark(errors.Newf("graphics queue of family %d is nil", *indices.GraphicsFamily), ErrQueueRetrieval)
	}
	c.presentQueue = device.GetQueue(*indices.PresentFamily, 0)
	if c.presentQueue == nil {
		return errors.Mark(errors.Newf("present queue of family %d is nil", *indices.PresentFamily), ErrQueueRetrieval)
	}

	// Both queues are index 0 of their family, so one family means one queue.
	if indices.Shared() {
		c.logger.Info("graphics and present share one queue",
			slog.Int("queue_family", *indices.GraphicsFamily))
	} else {
		c.logger.Info("separate graphics and present queues",
			slog.Int("graphics_family", *indices.GraphicsFamily),
			slog.Int("present_family", *indices.PresentFamily))
	}

	return nil
}

// WaitIdle blocks until the device has finished all submitted work.
func (c *Context) WaitIdle() error {
	if c.device == nil {
		return nil
	}
	_, err := c.device.WaitIdle()
	return errors.Wrap(err, "wait for device idle")
}

// Destroy releases the logical device, surface, messenger and instance in
// that order. It tolerates a partially constructed context.
func (c *Context) Destroy() {
	if c.device != nil {
		c.device.Destroy(nil)
		c.device = nil
		c.graphicsQueue = nil
		c.presentQueue = nil
	}

	if c.surface != nil {
		c.surface.Destroy(nil)
		c.surface = nil
	}

	if c.messenger != nil {
		c.messenger.Destroy(nil)
		c.messenger = nil
	}

	if c.instance != nil {
		c.instance.Destroy(nil)
		c.instance = nil
	}
}
